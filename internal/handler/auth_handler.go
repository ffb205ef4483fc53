package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/hitoshi/suppleit/internal/auth"
	"github.com/hitoshi/suppleit/internal/middleware"
	"github.com/hitoshi/suppleit/internal/model"
)

// AuthServiceInterface は認証ハンドラーが必要とするサービスインターフェース。
type AuthServiceInterface interface {
	Authenticate(ctx context.Context, email, password string) (string, error)
	IssueRefreshToken(email string) (string, error)
	RefreshToken(ctx context.Context, refreshToken string) (string, error)
	Logout(ctx context.Context, accessToken string) (auth.LogoutResult, error)
	ChangePassword(ctx context.Context, email, oldPassword, newPassword string) error
	GenerateTemporaryPassword(ctx context.Context, email, nickname string) (string, error)
}

// AuthHandler はパスワード認証とトークン管理のHTTPハンドラー。
type AuthHandler struct {
	service AuthServiceInterface
	tokens  middleware.TokenValidator
}

// NewAuthHandler はAuthHandlerを生成する。
// tokensはパスワード変更時に呼び出し元を特定するために使う。
func NewAuthHandler(service AuthServiceInterface, tokens middleware.TokenValidator) *AuthHandler {
	return &AuthHandler{
		service: service,
		tokens:  tokens,
	}
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type refreshResponse struct {
	Success     bool   `json:"success"`
	AccessToken string `json:"accessToken"`
}

type changePasswordRequest struct {
	OldPassword string `json:"oldPassword"`
	NewPassword string `json:"newPassword"`
}

type findPasswordRequest struct {
	Email    string `json:"email"`
	Nickname string `json:"nickname"`
}

type findPasswordResponse struct {
	Success      bool   `json:"success"`
	TempPassword string `json:"tempPassword"`
}

// Login はメールアドレスとパスワードで認証し、トークンペアを返す。
// POST /api/auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	accessToken, err := h.service.Authenticate(r.Context(), req.Email, req.Password)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	refreshToken, err := h.service.IssueRefreshToken(req.Email)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, auth.TokenPair{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
	})
}

// Logout はBearerトークンを失効させる。
// 期限切れ・失効済みのトークンでも成功を返す。
// POST /api/auth/logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	tok, err := middleware.ExtractBearer(r.Header)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	result, err := h.service.Logout(r.Context(), tok)
	if err != nil {
		// 有効期限を取り出せないトークンは認証失敗ではなく不正な入力として扱う
		var apiErr *model.APIError
		if errors.As(err, &apiErr) && apiErr.Code == model.ErrCodeInvalidToken {
			middleware.WriteErrorResponse(w, http.StatusBadRequest, apiErr)
			return
		}
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, messageResponse{
		Success: true,
		Message: result.Message(),
	})
}

// Refresh はリフレッシュトークンから新しいアクセストークンを発行する。
// POST /api/auth/refresh
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.RefreshToken) == "" {
		middleware.WriteErrorResponse(w, http.StatusBadRequest,
			model.NewInvalidArgumentError("refreshTokenを指定してください。"))
		return
	}

	accessToken, err := h.service.RefreshToken(r.Context(), req.RefreshToken)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, refreshResponse{
		Success:     true,
		AccessToken: accessToken,
	})
}

// ChangePassword は呼び出し元のパスワードを変更する。
// POST /api/auth/change-password
func (h *AuthHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	email, err := middleware.EmailFromBearer(r.Header, h.tokens)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	var req changePasswordRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if err := h.service.ChangePassword(r.Context(), email, req.OldPassword, req.NewPassword); err != nil {
		handleServiceError(w, err)
		return
	}

	slog.Info("password changed", slog.String("email", email))
	writeJSON(w, http.StatusOK, messageResponse{
		Success: true,
		Message: "パスワードを変更しました。",
	})
}

// FindPassword はメールアドレスとニックネームを照合し、仮パスワードを発行する。
// POST /api/auth/find/password
func (h *AuthHandler) FindPassword(w http.ResponseWriter, r *http.Request) {
	var req findPasswordRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Email) == "" || strings.TrimSpace(req.Nickname) == "" {
		middleware.WriteErrorResponse(w, http.StatusBadRequest,
			model.NewInvalidArgumentError("メールアドレスとニックネームを入力してください。"))
		return
	}

	temp, err := h.service.GenerateTemporaryPassword(r.Context(), req.Email, req.Nickname)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, findPasswordResponse{
		Success:      true,
		TempPassword: temp,
	})
}
