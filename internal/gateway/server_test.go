package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/nao1215/porygon/internal/config"
	"github.com/nao1215/porygon/internal/keystore"
	"github.com/nao1215/porygon/pkg/accessgate"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// testPolicyYAML はテスト用のアクセスポリシー。
const testPolicyYAML = `
roles:
  admin: ["*"]
  data_scientist:
    - "GET /api/v1/porygon/*"
    - "POST /api/v1/AA/RAGenius/redmine"
  viewer:
    - "GET /api/v1/AA/RAGenius/*"
api_keys:
  admin_key:
    user_id: admin1
    role: admin
  api_key_for_scientist:
    user_id: scientist1
    role: data_scientist
  api_key_for_customer:
    user_id: customer1
    role: viewer
`

// envelope はテストでレスポンスを検証するための標準レスポンス形式。
type envelope struct {
	ResponseCode    int             `json:"responseCode"`
	ResponseMessage string          `json:"responseMessage"`
	Results         json.RawMessage `json:"results"`
}

// writePolicy はポリシーYAMLを一時ディレクトリに書き出し、そのパスを返す。
func writePolicy(t *testing.T, body string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "access.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("ポリシーファイルの書き込みに失敗: %v", err)
	}
	return path
}

// newTestServer はテスト用のサーバーを生成する。
func newTestServer(t *testing.T) *Server {
	t.Helper()

	s, err := NewServer(context.Background(), config.Config{
		Port:           "0",
		PolicyPath:     writePolicy(t, testPolicyYAML),
		AllowedOrigins: []string{"*"},
	})
	if err != nil {
		t.Fatalf("NewServer()でエラーが発生: %v", err)
	}
	return s
}

// doRequest はサーバーにリクエストを送り、レスポンスを返す。
func doRequest(s *Server, method, path, apiKey string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	if apiKey != "" {
		req.Header.Set(accessgate.DefaultHeader, apiKey)
	}
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	return w
}

// decodeEnvelope はレスポンスボディを標準レスポンス形式としてパースする。
func decodeEnvelope(t *testing.T, w *httptest.ResponseRecorder) envelope {
	t.Helper()

	var body envelope
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("レスポンスボディのパースに失敗: %v (body=%s)", err, w.Body.String())
	}
	return body
}

// TestHealthCheck はヘルスチェックが認証なしで応答することを検証する。
func TestHealthCheck(t *testing.T) {
	t.Parallel()

	w := doRequest(newTestServer(t), http.MethodGet, "/health", "")
	if w.Code != http.StatusOK {
		t.Fatalf("ステータスコード = %d, want %d", w.Code, http.StatusOK)
	}

	var body map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("レスポンスのパースに失敗: %v", err)
	}
	if body["status"] != "ok" || body["service"] != serviceName {
		t.Errorf("body = %v", body)
	}
	if w.Header().Get("X-Request-ID") == "" {
		t.Error("X-Request-IDヘッダーが設定されていない")
	}
}

// TestHandleInfo は公開エンドポイントを検証する。
func TestHandleInfo(t *testing.T) {
	t.Parallel()

	s := newTestServer(t)

	t.Run("APIキーなしでサービス情報が返ること", func(t *testing.T) {
		t.Parallel()

		w := doRequest(s, http.MethodGet, "/api/v1/public/info", "")
		if w.Code != http.StatusOK {
			t.Fatalf("ステータスコード = %d, want %d", w.Code, http.StatusOK)
		}
		body := decodeEnvelope(t, w)
		var info Info
		if err := json.Unmarshal(body.Results, &info); err != nil {
			t.Fatalf("resultsのパースに失敗: %v", err)
		}
		if info.Title != "Porygon API" || info.Version != "1.0.0" {
			t.Errorf("info = %+v", info)
		}
	})

	t.Run("不正なAPIキーが付いていても公開パスは通過すること", func(t *testing.T) {
		t.Parallel()

		w := doRequest(s, http.MethodGet, "/api/v1/public/info", "invalid-key")
		if w.Code != http.StatusOK {
			t.Errorf("ステータスコード = %d, want %d", w.Code, http.StatusOK)
		}
	})
}

// TestHandleMe は呼び出し元のIdentityを返すエンドポイントを検証する。
func TestHandleMe(t *testing.T) {
	t.Parallel()

	s := newTestServer(t)

	tests := []struct {
		name        string
		apiKey      string
		wantStatus  int
		wantMessage string
		wantUserID  string
	}{
		{
			name:       "adminはIdentityを取得できること",
			apiKey:     "admin_key",
			wantStatus: http.StatusOK,
			wantUserID: "admin1",
		},
		{
			name:       "パターンに一致するdata_scientistはIdentityを取得できること",
			apiKey:     "api_key_for_scientist",
			wantStatus: http.StatusOK,
			wantUserID: "scientist1",
		},
		{
			name:        "パターンに一致しないviewerは403になること",
			apiKey:      "api_key_for_customer",
			wantStatus:  http.StatusForbidden,
			wantMessage: "You do not have permission to access this endpoint: GET /api/v1/porygon/me",
		},
		{
			name:        "APIキーなしは401になること",
			wantStatus:  http.StatusUnauthorized,
			wantMessage: "Missing authentication credentials.",
		},
		{
			name:        "未登録のAPIキーは401になること",
			apiKey:      "unknown",
			wantStatus:  http.StatusUnauthorized,
			wantMessage: "Invalid API Key.",
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			w := doRequest(s, http.MethodGet, "/api/v1/porygon/me", tt.apiKey)
			if w.Code != tt.wantStatus {
				t.Fatalf("ステータスコード = %d, want %d", w.Code, tt.wantStatus)
			}
			body := decodeEnvelope(t, w)
			if body.ResponseCode != tt.wantStatus {
				t.Errorf("responseCode = %d, want %d", body.ResponseCode, tt.wantStatus)
			}

			if tt.wantStatus != http.StatusOK {
				if body.ResponseMessage != tt.wantMessage {
					t.Errorf("responseMessage = %q, want %q", body.ResponseMessage, tt.wantMessage)
				}
				if string(body.Results) != "null" {
					t.Errorf("results = %s, want null", body.Results)
				}
				return
			}

			var id accessgate.Identity
			if err := json.Unmarshal(body.Results, &id); err != nil {
				t.Fatalf("resultsのパースに失敗: %v", err)
			}
			if id.UserID != tt.wantUserID {
				t.Errorf("user_id = %q, want %q", id.UserID, tt.wantUserID)
			}
		})
	}
}

// TestNoRoute は未登録ルートの扱いを検証する。
func TestNoRoute(t *testing.T) {
	t.Parallel()

	s := newTestServer(t)

	t.Run("認証なしの場合は404より先に401が返ること", func(t *testing.T) {
		t.Parallel()

		w := doRequest(s, http.MethodGet, "/api/v1/unknown", "")
		if w.Code != http.StatusUnauthorized {
			t.Errorf("ステータスコード = %d, want %d", w.Code, http.StatusUnauthorized)
		}
	})

	t.Run("ゲートを通過した場合は404の標準レスポンスが返ること", func(t *testing.T) {
		t.Parallel()

		w := doRequest(s, http.MethodDelete, "/api/v1/porygon/UserQuery/999", "admin_key")
		if w.Code != http.StatusNotFound {
			t.Fatalf("ステータスコード = %d, want %d", w.Code, http.StatusNotFound)
		}
		body := decodeEnvelope(t, w)
		if body.ResponseCode != http.StatusNotFound || string(body.Results) != "null" {
			t.Errorf("body = %+v", body)
		}
	})
}

// TestCORSPreflight はプリフライトリクエストが認証なしで応答することを検証する。
func TestCORSPreflight(t *testing.T) {
	t.Parallel()

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/porygon/me", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", http.MethodGet)
	w := httptest.NewRecorder()
	newTestServer(t).Handler().ServeHTTP(w, req)

	if w.Code != http.StatusNoContent {
		t.Errorf("ステータスコード = %d, want %d", w.Code, http.StatusNoContent)
	}
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:3000" {
		t.Errorf("Access-Control-Allow-Origin = %q", got)
	}
	if got := w.Header().Get("Access-Control-Allow-Headers"); got != "Authorization, Content-Type, X-Request-ID, X-API-Key" {
		t.Errorf("Access-Control-Allow-Headers = %q", got)
	}
}

// TestOptionsWithoutPreflight はプリフライトでないOPTIONSリクエストがアクセスゲートを通ることを検証する。
func TestOptionsWithoutPreflight(t *testing.T) {
	t.Parallel()

	s := newTestServer(t)

	for _, origin := range []string{"", "https://evil.example"} {
		req := httptest.NewRequest(http.MethodOptions, "/api/v1/porygon/UserQuery/999", nil)
		if origin != "" {
			req.Header.Set("Origin", origin)
		}
		w := httptest.NewRecorder()
		s.Handler().ServeHTTP(w, req)

		if w.Code != http.StatusUnauthorized {
			t.Fatalf("origin=%q: ステータスコード = %d, want %d", origin, w.Code, http.StatusUnauthorized)
		}
		body := decodeEnvelope(t, w)
		if body.ResponseCode != http.StatusUnauthorized || body.ResponseMessage != "Missing authentication credentials." {
			t.Errorf("origin=%q: body = %+v", origin, body)
		}
		if string(body.Results) != "null" {
			t.Errorf("origin=%q: results = %s, want null", origin, body.Results)
		}
	}
}

// TestNewServer はサーバー生成時のポリシー読み込みを検証する。
func TestNewServer(t *testing.T) {
	t.Parallel()

	t.Run("キーストアが指定された場合はロールとAPIキーが置き換わること", func(t *testing.T) {
		t.Parallel()

		ctx := context.Background()
		dbPath := filepath.Join(t.TempDir(), "access.db")
		store, err := keystore.Open(ctx, dbPath)
		if err != nil {
			t.Fatalf("keystore.Open()でエラーが発生: %v", err)
		}
		p := accessgate.DefaultPolicy()
		p.Roles = map[string][]string{"operator": {"GET /api/v1/porygon/*"}}
		p.APIKeys = map[string]accessgate.Identity{"db_key": {UserID: "operator1", Role: "operator"}}
		if err := store.Import(ctx, p); err != nil {
			t.Fatalf("Import()でエラーが発生: %v", err)
		}
		if err := store.Close(); err != nil {
			t.Fatalf("Close()でエラーが発生: %v", err)
		}

		s, err := NewServer(ctx, config.Config{
			Port:       "0",
			PolicyPath: writePolicy(t, testPolicyYAML),
			DBPath:     dbPath,
		})
		if err != nil {
			t.Fatalf("NewServer()でエラーが発生: %v", err)
		}

		if w := doRequest(s, http.MethodGet, "/api/v1/porygon/me", "db_key"); w.Code != http.StatusOK {
			t.Errorf("db_key: ステータスコード = %d, want %d", w.Code, http.StatusOK)
		}
		if w := doRequest(s, http.MethodGet, "/api/v1/porygon/me", "admin_key"); w.Code != http.StatusUnauthorized {
			t.Errorf("admin_key: ステータスコード = %d, want %d", w.Code, http.StatusUnauthorized)
		}
	})

	t.Run("APIキーが登録されていないキーストアの場合はエラーになること", func(t *testing.T) {
		t.Parallel()

		_, err := NewServer(context.Background(), config.Config{
			PolicyPath: writePolicy(t, testPolicyYAML),
			DBPath:     filepath.Join(t.TempDir(), "empty.db"),
		})
		if err == nil {
			t.Fatal("NewServer()がエラーを返さなかった")
		}
	})

	t.Run("ポリシーファイルが存在しない場合はエラーになること", func(t *testing.T) {
		t.Parallel()

		_, err := NewServer(context.Background(), config.Config{
			PolicyPath: filepath.Join(t.TempDir(), "missing.yaml"),
		})
		if err == nil {
			t.Fatal("NewServer()がエラーを返さなかった")
		}
	})

	t.Run("不正なポリシーの場合はエラーになること", func(t *testing.T) {
		t.Parallel()

		_, err := NewServer(context.Background(), config.Config{
			PolicyPath: writePolicy(t, "roles:\n  viewer: [\"GET\"]\n"),
		})
		if err == nil {
			t.Fatal("NewServer()がエラーを返さなかった")
		}
	})
}
