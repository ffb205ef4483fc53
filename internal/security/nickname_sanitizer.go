package security

import (
	"strings"
	"unicode/utf8"

	"github.com/microcosm-cc/bluemonday"
)

// MaxNicknameLength はニックネームの最大文字数（rune単位）。
const MaxNicknameLength = 30

// NicknameSanitizer はソーシャルログイン提供元から受け取った表示名を
// プレーンテキストのニックネームに整形する。
type NicknameSanitizer struct {
	policy *bluemonday.Policy
}

// NewNicknameSanitizer はNicknameSanitizerを生成する。
// 全てのタグを除去するStrictPolicyを用いる。
func NewNicknameSanitizer() *NicknameSanitizer {
	return &NicknameSanitizer{policy: bluemonday.StrictPolicy()}
}

// SanitizeNickname はタグを除去し、空白を整理してMaxNicknameLength文字に切り詰める。
func (s *NicknameSanitizer) SanitizeNickname(raw string) string {
	cleaned := strings.Join(strings.Fields(s.policy.Sanitize(raw)), " ")
	if utf8.RuneCountInString(cleaned) <= MaxNicknameLength {
		return cleaned
	}
	return string([]rune(cleaned)[:MaxNicknameLength])
}
