package handler

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/suppleit/internal/auth"
	"github.com/hitoshi/suppleit/internal/member"
	"github.com/hitoshi/suppleit/internal/model"
)

// SocialLoginServiceInterface はソーシャルログインハンドラーが必要とするサービスインターフェース。
type SocialLoginServiceInterface interface {
	LoginURL(provider, state string) (string, error)
	Login(ctx context.Context, provider, code string) (*auth.SocialLoginResult, error)
}

// SocialHandler はOAuthプロバイダー経由のログインを扱うHTTPハンドラー。
type SocialHandler struct {
	service SocialLoginServiceInterface
}

// NewSocialHandler はSocialHandlerを生成する。
func NewSocialHandler(service SocialLoginServiceInterface) *SocialHandler {
	return &SocialHandler{service: service}
}

type socialLoginRequest struct {
	Code  string `json:"code"`
	State string `json:"state"`
}

type socialLoginData struct {
	AccessToken  string         `json:"accessToken"`
	RefreshToken string         `json:"refreshToken"`
	Member       member.Profile `json:"member"`
}

type loginURLData struct {
	LoginURL string `json:"loginUrl"`
	State    string `json:"state"`
}

// LoginURL はプロバイダーの認証画面URLとstate値を返す。
// stateの保持と照合はクライアントが行う。
// GET /api/social/login/{provider}
func (h *SocialHandler) LoginURL(w http.ResponseWriter, r *http.Request) {
	provider := chi.URLParam(r, "provider")

	state, err := generateState()
	if err != nil {
		handleServiceError(w, err)
		return
	}

	url, err := h.service.LoginURL(provider, state)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, dataResponse{
		Success: true,
		Data:    loginURLData{LoginURL: url, State: state},
	})
}

// Login は認可コードでログインし、トークンペアと会員情報を返す。
// POST /api/social/login/{provider}
func (h *SocialHandler) Login(w http.ResponseWriter, r *http.Request) {
	provider := chi.URLParam(r, "provider")

	var req socialLoginRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	result, err := h.service.Login(r.Context(), provider, req.Code)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	message := "ログインしました。"
	if result.Created {
		message = "会員登録が完了しました。"
	}

	socialType := result.Member.SocialType
	if socialType == "" {
		socialType = model.SocialNone
	}

	writeJSON(w, http.StatusOK, dataResponse{
		Success: true,
		Message: message,
		Data: socialLoginData{
			AccessToken:  result.Tokens.AccessToken,
			RefreshToken: result.Tokens.RefreshToken,
			Member: member.Profile{
				Email:      result.Member.Email,
				Nickname:   result.Member.Nickname,
				Role:       result.Member.EffectiveRole(),
				SocialType: socialType,
			},
		},
	})
}

// generateState はCSRF対策用のランダムなstate値を生成する。
func generateState() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
