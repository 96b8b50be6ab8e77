package accessgate

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

// DefaultHeader はAPIキーを受け取るHTTPヘッダー名の既定値。
const DefaultHeader = "X-API-Key"

// DefaultRole はIdentityにロールが設定されていない場合に使用するロール名の既定値。
const DefaultRole = "viewer"

// Policy はGateを構築するための静的な設定を表す。
// プロセス起動時に読み込み、実行中に変更することはない。
type Policy struct {
	// Header はAPIキーを受け取るHTTPヘッダー名。
	Header string `yaml:"header"`
	// DefaultRole はロール未設定のIdentityに適用するロール名。
	DefaultRole string `yaml:"default_role"`
	// PublicPaths は認証なしで通過させるパスのプレフィックス。
	PublicPaths []string `yaml:"public_paths"`
	// Roles はロール名から許可エンドポイントパターンへの対応。
	// パターンの順序は評価順として保持される。
	Roles map[string][]string `yaml:"roles"`
	// APIKeys はAPIキーからIdentityへの対応。
	APIKeys map[string]Identity `yaml:"api_keys"`
}

// DefaultPolicy はロールとAPIキーを含まない既定のPolicyを返す。
func DefaultPolicy() Policy {
	return Policy{
		Header:      DefaultHeader,
		DefaultRole: DefaultRole,
		PublicPaths: []string{"/docs", "/openapi.json", "/redoc", "/api/v1/public", "/health"},
	}
}

// Validate はPolicyの整合性を検証する。
// 未定義のロールを参照するAPIキーはエラーにしない（実行時に全拒否となる）。
func (p Policy) Validate() error {
	var errs []error
	if p.Header == "" {
		errs = append(errs, errors.New("APIキーのヘッダー名が空です"))
	}
	for _, prefix := range p.PublicPaths {
		if prefix == "" {
			errs = append(errs, errors.New("空の公開パスは指定できません"))
		}
	}
	for name, patterns := range p.Roles {
		if name == "" {
			errs = append(errs, errors.New("空のロール名は指定できません"))
		}
		for _, raw := range patterns {
			if err := validatePattern(raw); err != nil {
				errs = append(errs, fmt.Errorf("ロール %q: %w", name, err))
			}
		}
	}
	owners := make(map[string]struct{}, len(p.APIKeys))
	for key, id := range p.APIKeys {
		if key == "" {
			errs = append(errs, errors.New("空のAPIキーは指定できません"))
		}
		if id.UserID == "" {
			errs = append(errs, fmt.Errorf("APIキー %s のuser_idが空です", MaskKey(key)))
			continue
		}
		if _, dup := owners[id.UserID]; dup {
			errs = append(errs, fmt.Errorf("user_id %q が複数のAPIキーに割り当てられています", id.UserID))
		}
		owners[id.UserID] = struct{}{}
	}
	return errors.Join(errs...)
}

// UnknownRoles はAPIKeysが参照しているがRolesに定義されていないロール名を返す。
// 結果はソート済み。
func (p Policy) UnknownRoles() []string {
	seen := make(map[string]struct{})
	for _, id := range p.APIKeys {
		role := id.Role
		if role == "" {
			role = p.DefaultRole
		}
		if _, ok := p.Roles[role]; ok {
			continue
		}
		seen[role] = struct{}{}
	}
	unknown := make([]string, 0, len(seen))
	for role := range seen {
		unknown = append(unknown, role)
	}
	sort.Strings(unknown)
	return unknown
}

// Load はYAML形式のPolicyを読み込む。
// ファイルに書かれていない項目はDefaultPolicyの値を保つ。未知のキーはエラーとする。
func Load(r io.Reader) (Policy, error) {
	p := DefaultPolicy()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&p); err != nil && !errors.Is(err, io.EOF) {
		return Policy{}, fmt.Errorf("ポリシーのデコードに失敗: %w", err)
	}
	if err := p.Validate(); err != nil {
		return Policy{}, fmt.Errorf("ポリシーが不正です: %w", err)
	}
	return p, nil
}

// LoadFile は指定パスのYAMLファイルからPolicyを読み込む。
func LoadFile(path string) (Policy, error) {
	f, err := os.Open(path)
	if err != nil {
		return Policy{}, fmt.Errorf("ポリシーファイルのオープンに失敗: %w", err)
	}
	defer f.Close()

	p, err := Load(f)
	if err != nil {
		return Policy{}, fmt.Errorf("%s: %w", path, err)
	}
	return p, nil
}

// MaskKey はログや一覧表示用にAPIキーの大部分を伏せた文字列を返す。
func MaskKey(key string) string {
	const visible = 4
	if len(key) <= visible {
		return "****"
	}
	return key[:visible] + "****"
}
