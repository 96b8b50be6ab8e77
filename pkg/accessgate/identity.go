package accessgate

import "context"

// Identity はAPIキーから解決された呼び出し元の情報を表す。
// リクエストの間だけ有効で、永続化はしない。
type Identity struct {
	// UserID はAPIキーに紐づくユーザーの一意識別子。
	UserID string `yaml:"user_id" json:"user_id"`
	// Role はユーザーに割り当てられたロール名。
	Role string `yaml:"role" json:"role"`
}

// identityKey はコンテキストにIdentityを格納するためのキー。
type identityKey struct{}

// WithIdentity はコンテキストにIdentityを設定する。
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

// IdentityFromContext はコンテキストからIdentityを取得する。
// 認証を経ていないリクエスト（公開パスなど）ではfalseを返す。
func IdentityFromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey{}).(Identity)
	return id, ok
}
