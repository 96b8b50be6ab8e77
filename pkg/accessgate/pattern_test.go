package accessgate

import "testing"

// TestPatternMatch はエンドポイントパターンの照合を検証する。
func TestPatternMatch(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		pattern string
		target  string
		want    bool
	}{
		{name: "末尾ワイルドカードでサブパスに一致すること", pattern: "GET /api/v1/X/*", target: "GET /api/v1/X/items", want: true},
		{name: "末尾ワイルドカードは空文字列にも一致すること", pattern: "GET /api/v1/X/*", target: "GET /api/v1/X/", want: true},
		{name: "メソッドが異なれば一致しないこと", pattern: "GET /api/v1/X/*", target: "POST /api/v1/X/items", want: false},
		{name: "パスが異なれば一致しないこと", pattern: "GET /api/v1/X/*", target: "GET /api/v1/Y/items", want: false},
		{name: "ワイルドカードなしのパターンは前方一致で判定されること", pattern: "POST /api/v1/AA/RAGenius/redmine", target: "POST /api/v1/AA/RAGenius/redmine/42", want: true},
		{name: "ワイルドカードなしのパターンは短い文字列に一致しないこと", pattern: "POST /api/v1/AA/RAGenius/redmine", target: "POST /api/v1/AA/RAGenius", want: false},
		{name: "ドットは任意文字ではなくリテラルとして扱われること", pattern: "GET /a.b", target: "GET /aXb", want: false},
		{name: "メソッド位置のワイルドカードが任意のメソッドに一致すること", pattern: "* /api/*/items", target: "DELETE /api/v1/items", want: true},
		{name: "中間のワイルドカードの後ろのリテラルが無ければ一致しないこと", pattern: "GET /api/*/items", target: "GET /api/v1/other", want: false},
		{name: "単独のワイルドカードは全てに一致すること", pattern: "*", target: "PATCH /anything", want: true},
		{name: "先頭はアンカーされること", pattern: "GET /api", target: "XGET /api", want: false},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			p := compilePattern(tt.pattern)
			if got := p.match(tt.target); got != tt.want {
				t.Errorf("match(%q, %q) = %v, want %v", tt.pattern, tt.target, got, tt.want)
			}
		})
	}
}

// TestValidatePattern はパターン書式の検証を確認する。
func TestValidatePattern(t *testing.T) {
	t.Parallel()

	valid := []string{"*", "GET /x", "* /x", "GET *", "DELETE /api/v1/porygon/*"}
	for _, raw := range valid {
		if err := validatePattern(raw); err != nil {
			t.Errorf("validatePattern(%q) = %v, want nil", raw, err)
		}
	}

	invalid := []string{"GET", " /x", "GET x", "GET ", ""}
	for _, raw := range invalid {
		if err := validatePattern(raw); err == nil {
			t.Errorf("validatePattern(%q) = nil, want error", raw)
		}
	}
}
