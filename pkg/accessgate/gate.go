package accessgate

import (
	"fmt"
	"net/http"
	"sort"
	"strings"
)

// role はコンパイル済みのロール定義。
type role struct {
	// full はパターンに "*" が含まれ、全エンドポイントを許可することを表す。
	full bool
	// patterns は評価順に並んだエンドポイントパターン。
	patterns []pattern
}

// Gate はAPIキーの認証とエンドポイントの認可を行う。
// New で構築した後は読み取り専用であり、複数のゴルーチンから同時に使用できる。
type Gate struct {
	// header はAPIキーを受け取るHTTPヘッダー名。
	header string
	// defaultRole はロール未設定のIdentityに適用するロール名。
	defaultRole string
	// publicPaths は認証を行わないパスのプレフィックス。
	publicPaths []string
	// roles はロール名からロール定義への対応。
	roles map[string]role
	// keys はAPIキーからIdentityへの対応。
	keys map[string]Identity
}

// Decision はリクエストに対する判定結果を表す。
type Decision struct {
	// Allowed はリクエストを後続のハンドラに渡してよいかを表す。
	Allowed bool
	// Public は公開パスとして認証を省略したことを表す。
	Public bool
	// Identity は解決された呼び出し元。認証に失敗した場合はゼロ値。
	Identity Identity
	// Status は拒否時に返すHTTPステータスコード。許可時は200。
	Status int
	// Err は拒否理由。ErrMissingCredential, ErrInvalidCredential, ErrForbidden のいずれか。
	Err error
	// Message はクライアントに返すメッセージ。
	Message string
	// Detail は認可失敗時の "<METHOD> <path>"。
	Detail string
}

// New はPolicyを検証し、Gateを構築する。
// Policyの内容はコピーされるため、呼び出し後にPolicyを変更してもGateには影響しない。
func New(p Policy) (*Gate, error) {
	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("ポリシーが不正です: %w", err)
	}

	g := &Gate{
		header:      p.Header,
		defaultRole: p.DefaultRole,
		publicPaths: append([]string(nil), p.PublicPaths...),
		roles:       make(map[string]role, len(p.Roles)),
		keys:        make(map[string]Identity, len(p.APIKeys)),
	}
	for name, raws := range p.Roles {
		r := role{patterns: make([]pattern, 0, len(raws))}
		for _, raw := range raws {
			if raw == wildcard {
				r.full = true
			}
			r.patterns = append(r.patterns, compilePattern(raw))
		}
		g.roles[name] = r
	}
	for key, id := range p.APIKeys {
		g.keys[key] = id
	}
	return g, nil
}

// Header はAPIキーを受け取るHTTPヘッダー名を返す。
func (g *Gate) Header() string {
	return g.header
}

// Roles は定義済みのロール名をソートして返す。
func (g *Gate) Roles() []string {
	names := make([]string, 0, len(g.roles))
	for name := range g.roles {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// IsPublic はパスが公開パスのいずれかで始まるかを判定する。
func (g *Gate) IsPublic(path string) bool {
	for _, prefix := range g.publicPaths {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}

// Authenticate はAPIキーをIdentityに解決する。
// 空文字列はヘッダー未送信と同じく ErrMissingCredential となる。
// 返すIdentityはレジストリのコピーである。
func (g *Gate) Authenticate(credential string) (Identity, error) {
	if credential == "" {
		return Identity{}, ErrMissingCredential
	}
	id, ok := g.keys[credential]
	if !ok {
		return Identity{}, ErrInvalidCredential
	}
	return id, nil
}

// Authorize はIdentityのロールが method と path の組にアクセスできるかを判定する。
// 未定義のロールはパターンを持たないため常に拒否される。
func (g *Gate) Authorize(id Identity, method, path string) bool {
	name := id.Role
	if name == "" {
		name = g.defaultRole
	}
	r, ok := g.roles[name]
	if !ok {
		return false
	}
	if r.full {
		return true
	}

	target := method + " " + path
	for _, p := range r.patterns {
		if p.match(target) {
			return true
		}
	}
	return false
}

// Check はリクエストを公開パス判定、認証、認可の順に評価する。
// 拒否時のDecisionにはステータスコードとメッセージが設定される。
func (g *Gate) Check(r *http.Request) Decision {
	path := r.URL.Path
	if g.IsPublic(path) {
		return Decision{Allowed: true, Public: true, Status: http.StatusOK}
	}

	id, err := g.Authenticate(r.Header.Get(g.header))
	if err != nil {
		return Decision{
			Status:  StatusOf(err),
			Err:     err,
			Message: messageOf(err, r.Method, path),
		}
	}

	if !g.Authorize(id, r.Method, path) {
		return Decision{
			Identity: id,
			Status:   http.StatusForbidden,
			Err:      ErrForbidden,
			Message:  messageOf(ErrForbidden, r.Method, path),
			Detail:   r.Method + " " + path,
		}
	}

	return Decision{Allowed: true, Identity: id, Status: http.StatusOK}
}
