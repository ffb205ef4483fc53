package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/suppleit/internal/auth"
	"github.com/hitoshi/suppleit/internal/model"
)

// --- モック定義 ---

type mockSocialService struct {
	loginURLFn func(provider, state string) (string, error)
	loginFn    func(ctx context.Context, provider, code string) (*auth.SocialLoginResult, error)
}

func (m *mockSocialService) LoginURL(provider, state string) (string, error) {
	if m.loginURLFn != nil {
		return m.loginURLFn(provider, state)
	}
	return "", nil
}

func (m *mockSocialService) Login(ctx context.Context, provider, code string) (*auth.SocialLoginResult, error) {
	if m.loginFn != nil {
		return m.loginFn(ctx, provider, code)
	}
	return nil, nil
}

func socialRouter(svc SocialLoginServiceInterface) http.Handler {
	h := NewSocialHandler(svc)
	r := chi.NewRouter()
	r.Get("/api/social/login/{provider}", h.LoginURL)
	r.Post("/api/social/login/{provider}", h.Login)
	return r
}

// --- テスト ---

func TestSocialHandler_Login_Success(t *testing.T) {
	svc := &mockSocialService{
		loginFn: func(_ context.Context, provider, code string) (*auth.SocialLoginResult, error) {
			if provider != "google" || code != "auth-code" {
				t.Errorf("Login(%q, %q)", provider, code)
			}
			return &auth.SocialLoginResult{
				Tokens: &auth.TokenPair{AccessToken: "a", RefreshToken: "r"},
				Member: &model.Member{
					Email:      "carol@example.com",
					Nickname:   "carol",
					Role:       model.RoleUser,
					SocialType: model.SocialGoogle,
				},
				Created: true,
			}, nil
		},
	}

	w := httptest.NewRecorder()
	socialRouter(svc).ServeHTTP(w, jsonRequest(http.MethodPost, "/api/social/login/google", `{"code":"auth-code","state":"s"}`))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 (body: %s)", w.Code, w.Body.String())
	}
	body := decodeBody(t, w)
	if body["success"] != true {
		t.Errorf("success = %v", body["success"])
	}
	if body["message"] != "会員登録が完了しました。" {
		t.Errorf("message = %v", body["message"])
	}
	data, ok := body["data"].(map[string]interface{})
	if !ok {
		t.Fatalf("data = %v", body["data"])
	}
	if data["accessToken"] != "a" || data["refreshToken"] != "r" {
		t.Errorf("tokens = %v / %v", data["accessToken"], data["refreshToken"])
	}
	m, _ := data["member"].(map[string]interface{})
	if m["email"] != "carol@example.com" || m["socialType"] != "GOOGLE" || m["role"] != "USER" {
		t.Errorf("member = %v", m)
	}
	if _, leaked := m["passwordHash"]; leaked {
		t.Error("password hash should not be exposed")
	}
}

func TestSocialHandler_Login_Errors(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"unknown provider", model.NewUnsupportedProviderError("kakao"), http.StatusBadRequest, model.ErrCodeUnsupportedProvider},
		{"missing code", model.NewInvalidArgumentError("認可コードを指定してください。"), http.StatusBadRequest, model.ErrCodeInvalidArgument},
		{"exchange failure", model.NewInvalidCredentialsError("ソーシャルログインの認証に失敗しました。"), http.StatusUnauthorized, model.ErrCodeInvalidCredentials},
		{"conflict", model.NewSocialAccountConflictError(model.SocialNaver), http.StatusUnauthorized, model.ErrCodeSocialAccountConflict},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &mockSocialService{
				loginFn: func(context.Context, string, string) (*auth.SocialLoginResult, error) {
					return nil, tt.err
				},
			}
			w := httptest.NewRecorder()
			socialRouter(svc).ServeHTTP(w, jsonRequest(http.MethodPost, "/api/social/login/google", `{"code":"c"}`))
			assertErrorBody(t, w, tt.status, tt.code)
		})
	}
}

func TestSocialHandler_LoginURL(t *testing.T) {
	var gotState string
	svc := &mockSocialService{
		loginURLFn: func(provider, state string) (string, error) {
			if provider != "naver" {
				return "", model.NewUnsupportedProviderError(provider)
			}
			gotState = state
			return "https://nid.naver.com/oauth2.0/authorize?state=" + state, nil
		},
	}

	w := httptest.NewRecorder()
	socialRouter(svc).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/social/login/naver", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if len(gotState) != 32 {
		t.Errorf("state length = %d, want 32 hex chars", len(gotState))
	}
	data, _ := decodeBody(t, w)["data"].(map[string]interface{})
	if data["state"] != gotState {
		t.Errorf("state = %v, want %q", data["state"], gotState)
	}

	w = httptest.NewRecorder()
	socialRouter(svc).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/social/login/kakao", nil))
	assertErrorBody(t, w, http.StatusBadRequest, model.ErrCodeUnsupportedProvider)
}
