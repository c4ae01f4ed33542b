package security

import (
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// TextSanitizerService は届出の自由記述をHTMLとして埋め込める形に変換するインターフェース。
// 届出APIのレコードは第三者が入力した文字列であり、一覧の表示用ビューを返す前に使用される。
type TextSanitizerService interface {
	// Sanitize は全てのタグを除去し、残った文字列をHTMLエスケープして返す。
	// 前後の空白は取り除く。同一入力に対して常に同一出力を返す。
	Sanitize(text string) string
}

// textSanitizer はbluemondayのStrictPolicyを保持する。
// Policyは生成後に変更しなければ並行に使用できる。
type textSanitizer struct {
	policy *bluemonday.Policy
}

// NewTextSanitizer はTextSanitizerServiceの新しいインスタンスを生成する。
func NewTextSanitizer() *textSanitizer {
	return &textSanitizer{policy: bluemonday.StrictPolicy()}
}

// Sanitize はTextSanitizerServiceを実装する。
func (s *textSanitizer) Sanitize(text string) string {
	if text == "" {
		return ""
	}
	return strings.TrimSpace(s.policy.Sanitize(text))
}
