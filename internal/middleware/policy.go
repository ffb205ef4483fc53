package middleware

import (
	"net/http"

	"github.com/hitoshi/suppleit/internal/model"
)

// RequireAuthenticated はRequestGateが呼び出し元を確立したリクエストのみを通す。
// 未認証の場合は401 UNAUTHORIZEDを返す。
func RequireAuthenticated() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, ok := IdentityFromContext(r.Context()); !ok {
				WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireRole は指定ロールを持つ呼び出し元のみを通す。
// 未認証は401 UNAUTHORIZED、ロール不足は403 FORBIDDENを返す。
func RequireRole(role model.MemberRole) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, ok := IdentityFromContext(r.Context())
			if !ok {
				WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
				return
			}
			if !id.HasRole(role) {
				WriteErrorResponse(w, http.StatusForbidden, model.NewForbiddenError())
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
