// Package security はアプリケーションのセキュリティ機能を提供する。
package security

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// TextSanitizer は物件やレビューの自由入力からマークアップを取り除く。
type TextSanitizer struct {
	policy *bluemonday.Policy
}

// NewTextSanitizer は全タグを除去するポリシーでTextSanitizerを生成する。
func NewTextSanitizer() *TextSanitizer {
	return &TextSanitizer{policy: bluemonday.StrictPolicy()}
}

// maxSanitizePasses はエンティティで多重に隠されたタグを剥がす回数の上限。
const maxSanitizePasses = 5

// Sanitize はタグを除去したプレーンテキストを返す。
// bluemondayはエンティティ化した文字列を返すため、テンプレート側での
// 二重エスケープを避けるよう元の文字に戻す。戻した結果にタグが現れる
// （&lt;b&gt; など）ことがあるため、結果が変わらなくなるまで繰り返す。
func (s *TextSanitizer) Sanitize(raw string) string {
	out := raw
	for i := 0; i < maxSanitizePasses && out != ""; i++ {
		next := strings.TrimSpace(html.UnescapeString(s.policy.Sanitize(out)))
		if next == out {
			break
		}
		out = next
	}
	return out
}
