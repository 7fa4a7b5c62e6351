// Package security はアプリケーションのセキュリティ機能を提供する。
//
// TextSanitizer は商品名などのプレーンテキスト入力からHTMLマークアップを除去する。
// bluemondayのStrictPolicyを使用し、すべてのタグと属性を取り除く。
package security

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// maxSanitizePasses はエンティティ経由で再出現するマークアップを除去する最大回数。
// この回数で出力が安定しない入力は空文字列として扱う。
const maxSanitizePasses = 8

// TextSanitizer はプレーンテキストのサニタイズ機能のインターフェース。
type TextSanitizer interface {
	// Sanitize はマークアップを除去したテキストを返す。
	// HTMLエンティティはデコードされ、前後の空白は除去される。
	// 同一入力に対して常に同一出力を返す。
	Sanitize(raw string) string
}

// textSanitizer はTextSanitizerの実装。
// bluemondayのポリシーはスレッドセーフであり、複数のゴルーチンから共有できる。
type textSanitizer struct {
	policy *bluemonday.Policy
}

// NewTextSanitizer はStrictPolicyを使うTextSanitizerを生成する。
func NewTextSanitizer() TextSanitizer {
	return &textSanitizer{policy: bluemonday.StrictPolicy()}
}

// Sanitize はタグを除去し、エンティティをデコードしたテキストを返す。
// 出力はタグ除去とデコードを繰り返しても変化しない状態まで収束させる。
func (s *textSanitizer) Sanitize(raw string) string {
	out := raw
	for i := 0; i < maxSanitizePasses; i++ {
		next := html.UnescapeString(s.policy.Sanitize(out))
		if next == out {
			return strings.TrimSpace(out)
		}
		out = next
	}
	return ""
}
