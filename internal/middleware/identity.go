// Package middleware はHTTPミドルウェアを提供する。
package middleware

import (
	"context"

	"github.com/hitoshi/suppleit/internal/model"
)

// contextKey はコンテキストに値を格納するための型安全なキー。
type contextKey string

var (
	identityContextKey = contextKey("identity")
	logSlotContextKey  = contextKey("log_slot")
)

// Identity はRequestGateが確立した認証済みの呼び出し元。
type Identity struct {
	Email       string
	Role        model.MemberRole
	Authorities []string
}

// HasRole は指定ロールを持つかを返す。
func (i *Identity) HasRole(role model.MemberRole) bool {
	want := role.Authority()
	for _, a := range i.Authorities {
		if a == want {
			return true
		}
	}
	return false
}

// NewIdentity は会員からIdentityを生成する。
func NewIdentity(member *model.Member) *Identity {
	role := member.EffectiveRole()
	return &Identity{
		Email:       member.Email,
		Role:        role,
		Authorities: []string{role.Authority()},
	}
}

// IdentityFromContext はリクエストコンテキストから認証済みの呼び出し元を取得する。
func IdentityFromContext(ctx context.Context) (*Identity, bool) {
	id, ok := ctx.Value(identityContextKey).(*Identity)
	return id, ok && id != nil
}

// ContextWithIdentity はコンテキストに呼び出し元を注入する。
// ロギングミドルウェアの内側であれば、ログにもemailが出力される。
func ContextWithIdentity(ctx context.Context, id *Identity) context.Context {
	if slot, ok := ctx.Value(logSlotContextKey).(*logSlot); ok {
		slot.email = id.Email
	}
	return context.WithValue(ctx, identityContextKey, id)
}
