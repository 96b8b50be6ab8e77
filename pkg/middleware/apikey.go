package middleware

import (
	"log"

	"github.com/gin-gonic/gin"
	"github.com/nao1215/porygon/pkg/accessgate"
	"github.com/nao1215/porygon/pkg/response"
)

// contextKeyIdentity はGinコンテキストにIdentityを格納するためのキー。
const contextKeyIdentity = "identity"

// AccessGate はAPIキーを検証し、エンドポイントへのアクセス権を確認するGinミドルウェアを返す。
// 公開パスは検証せずに通過させる。拒否した場合は標準形式のエラーを返し、
// 後続のハンドラを実行しない。許可した場合はIdentityをGinコンテキストと
// リクエストのcontext.Contextの両方に設定する。
func AccessGate(gate *accessgate.Gate) gin.HandlerFunc {
	return func(c *gin.Context) {
		d := gate.Check(c.Request)
		if !d.Allowed {
			log.Printf("[AccessGate] リクエストを拒否: %s %s status=%d reason=%v user_id=%q request_id=%s",
				c.Request.Method, c.Request.URL.Path, d.Status, d.Err, d.Identity.UserID, GetRequestID(c))
			response.Error(c, d.Status, d.Message)
			return
		}

		if !d.Public {
			c.Set(contextKeyIdentity, d.Identity)
			c.Request = c.Request.WithContext(accessgate.WithIdentity(c.Request.Context(), d.Identity))
		}
		c.Next()
	}
}

// GetIdentity はGinコンテキストから認証済みのIdentityを取得する。
// AccessGateミドルウェアが事前に適用されている必要がある。公開パスではfalseを返す。
func GetIdentity(c *gin.Context) (accessgate.Identity, bool) {
	v, ok := c.Get(contextKeyIdentity)
	if !ok {
		return accessgate.Identity{}, false
	}
	id, ok := v.(accessgate.Identity)
	return id, ok
}
