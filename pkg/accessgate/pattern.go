package accessgate

import (
	"fmt"
	"strings"
)

// wildcard はロールに全エンドポイントへのアクセスを許可するパターン。
const wildcard = "*"

// pattern はコンパイル済みのエンドポイントパターン。
// "*" で分割したリテラル片を保持し、正規表現は使用しない。
type pattern struct {
	// raw は設定に書かれた元の文字列。
	raw string
	// segments は "*" で区切られたリテラル片。
	segments []string
}

// compilePattern はパターン文字列をリテラル片に分解する。
func compilePattern(raw string) pattern {
	return pattern{raw: raw, segments: strings.Split(raw, wildcard)}
}

// match は "<METHOD> <path>" 形式の文字列がパターンに一致するかを判定する。
// 先頭のみアンカーされ、"*" は任意の文字列（空文字列を含む）に一致する。
// パターン末尾以降の余分な文字列は一致を妨げない。
func (p pattern) match(s string) bool {
	head := p.segments[0]
	if !strings.HasPrefix(s, head) {
		return false
	}
	rest := s[len(head):]
	for _, seg := range p.segments[1:] {
		i := strings.Index(rest, seg)
		if i < 0 {
			return false
		}
		rest = rest[i+len(seg):]
	}
	return true
}

// validatePattern はパターンが "*" または "<METHOD> <path>" の形式であることを検証する。
func validatePattern(raw string) error {
	if raw == wildcard {
		return nil
	}
	method, path, ok := strings.Cut(raw, " ")
	if !ok {
		return fmt.Errorf("パターン %q に空白区切りのメソッドとパスがありません", raw)
	}
	if method == "" || strings.ContainsAny(method, " \t") {
		return fmt.Errorf("パターン %q のメソッドが不正です", raw)
	}
	if path == "" || (path[0] != '/' && path[0] != '*') {
		return fmt.Errorf("パターン %q のパスは '/' または '*' で始まる必要があります", raw)
	}
	return nil
}
