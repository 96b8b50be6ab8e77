package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// allowAnyOrigin は全オリジンを許可する指定。
const allowAnyOrigin = "*"

// CORS は指定されたオリジンからのクロスオリジンリクエストを許可するGinミドルウェアを返す。
// allowedOriginsに "*" を含めると全オリジンを許可し、リクエストのOriginをそのまま返す。
// extraHeadersはAccess-Control-Allow-Headersに追加するヘッダー（APIキーのヘッダー名など）。
// 許可されたオリジンからのプリフライト（Access-Control-Request-Methodを伴うOPTIONS）のみ
// ここで204を返して終了する。それ以外のOPTIONSは後続のミドルウェアに渡す。
func CORS(allowedOrigins []string, extraHeaders ...string) gin.HandlerFunc {
	allowHeaders := strings.Join(append([]string{"Authorization", "Content-Type", headerKeyRequestID}, extraHeaders...), ", ")

	anyOrigin := false
	originsSet := make(map[string]struct{}, len(allowedOrigins))
	for _, o := range allowedOrigins {
		if o == allowAnyOrigin {
			anyOrigin = true
		}
		originsSet[o] = struct{}{}
	}

	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		_, listed := originsSet[origin]
		allowed := origin != "" && (anyOrigin || listed)
		if allowed {
			c.Header("Access-Control-Allow-Origin", origin)
			c.Header("Access-Control-Allow-Credentials", "true")
			c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
			c.Header("Access-Control-Allow-Headers", allowHeaders)
			c.Header("Access-Control-Expose-Headers", headerKeyRequestID)
			c.Header("Access-Control-Max-Age", "86400")
			c.Header("Vary", "Origin")
		}

		if allowed && c.Request.Method == http.MethodOptions && c.GetHeader("Access-Control-Request-Method") != "" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
