package handler

import (
	"context"
	"net/http"

	"github.com/hitoshi/suppleit/internal/member"
	"github.com/hitoshi/suppleit/internal/middleware"
	"github.com/hitoshi/suppleit/internal/model"
)

// MemberServiceInterface は会員ハンドラーが必要とするサービスインターフェース。
type MemberServiceInterface interface {
	Profile(ctx context.Context, email string) (*member.Profile, error)
}

// MemberHandler は会員情報のHTTPハンドラー。
type MemberHandler struct {
	service MemberServiceInterface
}

// NewMemberHandler はMemberHandlerを生成する。
func NewMemberHandler(service MemberServiceInterface) *MemberHandler {
	return &MemberHandler{service: service}
}

// Info は認証済みの呼び出し元の会員情報を返す。
// GET /api/member/info
func (h *MemberHandler) Info(w http.ResponseWriter, r *http.Request) {
	id, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		middleware.WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	profile, err := h.service.Profile(r.Context(), id.Email)
	if err != nil {
		if model.HasCode(err, model.ErrCodeAccountNotFound) {
			middleware.WriteErrorResponse(w, http.StatusNotFound, model.NewAccountNotFoundError())
			return
		}
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, dataResponse{
		Success: true,
		Data:    profile,
	})
}
