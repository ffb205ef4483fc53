// Package model はドメインモデルを定義する。
package model

import (
	"strings"
	"time"
)

// MemberRole は会員の権限種別を表す。
type MemberRole string

const (
	RoleUser  MemberRole = "USER"
	RoleAdmin MemberRole = "ADMIN"
)

// ParseMemberRole は文字列からMemberRoleを解決する。
// 空文字列や未知の値はRoleUserとして扱う。
func ParseMemberRole(s string) MemberRole {
	switch MemberRole(strings.ToUpper(strings.TrimSpace(s))) {
	case RoleAdmin:
		return RoleAdmin
	default:
		return RoleUser
	}
}

// Authority は権限文字列（ROLE_USER等）を返す。
func (r MemberRole) Authority() string {
	return "ROLE_" + strings.ToUpper(string(r))
}

// SocialType は会員の登録元IdPを表す。
type SocialType string

const (
	SocialNone   SocialType = "NONE"
	SocialGoogle SocialType = "GOOGLE"
	SocialNaver  SocialType = "NAVER"
	SocialKakao  SocialType = "KAKAO" // 未使用
)

// ParseSocialType は文字列からSocialTypeを解決する。
// 空文字列や未知の値はSocialNoneとして扱う。
func ParseSocialType(s string) SocialType {
	switch SocialType(strings.ToUpper(strings.TrimSpace(s))) {
	case SocialGoogle:
		return SocialGoogle
	case SocialNaver:
		return SocialNaver
	case SocialKakao:
		return SocialKakao
	default:
		return SocialNone
	}
}

// NoLocalPassword はローカルパスワードを持たない会員（ソーシャル会員）の
// PasswordHashに格納するセンチネル値。
const NoLocalPassword = ""

// Member はサービスの会員アカウントを表す。
// Emailが識別キーで、保存時の大文字小文字を区別する。
type Member struct {
	ID           int64
	Email        string
	PasswordHash string
	Nickname     string
	Role         MemberRole
	SocialType   SocialType
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// IsSocial はソーシャルログイン由来の会員かどうかを返す。
func (m *Member) IsSocial() bool {
	return m.SocialType != "" && m.SocialType != SocialNone
}

// HasLocalPassword はパスワード認証に使えるハッシュを保持しているかを返す。
// ソーシャル会員は常にfalse。
func (m *Member) HasLocalPassword() bool {
	return !m.IsSocial() && m.PasswordHash != NoLocalPassword
}

// EffectiveRole は未設定の場合にRoleUserを補ったロールを返す。
func (m *Member) EffectiveRole() MemberRole {
	if m.Role == "" {
		return RoleUser
	}
	return ParseMemberRole(string(m.Role))
}
