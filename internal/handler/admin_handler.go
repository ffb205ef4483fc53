package handler

import (
	"context"
	"net/http"
)

// RevocationInspector は失効ストアの運用情報を取得するインターフェース。
// revocation.MemoryStoreとrevocation.RedisStoreが満たす。
type RevocationInspector interface {
	Backend() string
	Count(ctx context.Context) (int, error)
}

// AdminHandler は運用者向けのHTTPハンドラー。
type AdminHandler struct {
	revocations RevocationInspector
}

// NewAdminHandler はAdminHandlerを生成する。
func NewAdminHandler(revocations RevocationInspector) *AdminHandler {
	return &AdminHandler{revocations: revocations}
}

type revocationStatus struct {
	Backend string `json:"backend"`
	Entries int    `json:"entries"`
}

// Revocations は失効ストアのバックエンド名と現在の登録件数を返す。
// GET /admin/revocations
func (h *AdminHandler) Revocations(w http.ResponseWriter, r *http.Request) {
	count, err := h.revocations.Count(r.Context())
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, dataResponse{
		Success: true,
		Data: revocationStatus{
			Backend: h.revocations.Backend(),
			Entries: count,
		},
	})
}
