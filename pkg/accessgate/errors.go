package accessgate

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrMissingCredential はAPIキーのヘッダーが送られていないことを表す。
	ErrMissingCredential = errors.New("missing credential")
	// ErrInvalidCredential はAPIキーがレジストリに存在しないことを表す。
	ErrInvalidCredential = errors.New("invalid credential")
	// ErrForbidden はロールにリクエスト先エンドポイントの権限がないことを表す。
	ErrForbidden = errors.New("forbidden")
)

// StatusOf はエラーに対応するHTTPステータスコードを返す。
// 認証・認可以外のエラーは500として扱う。
func StatusOf(err error) int {
	switch {
	case errors.Is(err, ErrMissingCredential), errors.Is(err, ErrInvalidCredential):
		return http.StatusUnauthorized
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

// messageOf はクライアントに返すレスポンスメッセージを組み立てる。
func messageOf(err error, method, path string) string {
	switch {
	case errors.Is(err, ErrMissingCredential):
		return "Missing authentication credentials."
	case errors.Is(err, ErrInvalidCredential):
		return "Invalid API Key."
	case errors.Is(err, ErrForbidden):
		return fmt.Sprintf("You do not have permission to access this endpoint: %s %s", method, path)
	default:
		return "Internal server error."
	}
}
