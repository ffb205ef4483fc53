package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/hitoshi/suppleit/internal/auth"
	"github.com/hitoshi/suppleit/internal/middleware"
	"github.com/hitoshi/suppleit/internal/model"
)

// --- モック定義 ---

type mockAuthService struct {
	authenticateFn      func(ctx context.Context, email, password string) (string, error)
	issueRefreshTokenFn func(email string) (string, error)
	refreshTokenFn      func(ctx context.Context, refreshToken string) (string, error)
	logoutFn            func(ctx context.Context, accessToken string) (auth.LogoutResult, error)
	changePasswordFn    func(ctx context.Context, email, oldPassword, newPassword string) error
	generateTempFn      func(ctx context.Context, email, nickname string) (string, error)
}

func (m *mockAuthService) Authenticate(ctx context.Context, email, password string) (string, error) {
	if m.authenticateFn != nil {
		return m.authenticateFn(ctx, email, password)
	}
	return "", nil
}

func (m *mockAuthService) IssueRefreshToken(email string) (string, error) {
	if m.issueRefreshTokenFn != nil {
		return m.issueRefreshTokenFn(email)
	}
	return "", nil
}

func (m *mockAuthService) RefreshToken(ctx context.Context, refreshToken string) (string, error) {
	if m.refreshTokenFn != nil {
		return m.refreshTokenFn(ctx, refreshToken)
	}
	return "", nil
}

func (m *mockAuthService) Logout(ctx context.Context, accessToken string) (auth.LogoutResult, error) {
	if m.logoutFn != nil {
		return m.logoutFn(ctx, accessToken)
	}
	return auth.LogoutRevoked, nil
}

func (m *mockAuthService) ChangePassword(ctx context.Context, email, oldPassword, newPassword string) error {
	if m.changePasswordFn != nil {
		return m.changePasswordFn(ctx, email, oldPassword, newPassword)
	}
	return nil
}

func (m *mockAuthService) GenerateTemporaryPassword(ctx context.Context, email, nickname string) (string, error) {
	if m.generateTempFn != nil {
		return m.generateTempFn(ctx, email, nickname)
	}
	return "", nil
}

// stubTokens は"valid-<email>"形式のトークンのみを有効とみなすTokenValidator。
type stubTokens struct{}

func (stubTokens) Validate(tok string) bool {
	return strings.HasPrefix(tok, "valid-")
}

func (stubTokens) Subject(tok string) (string, error) {
	if !strings.HasPrefix(tok, "valid-") {
		return "", errors.New("invalid")
	}
	return strings.TrimPrefix(tok, "valid-"), nil
}

// --- ヘルパー ---

func jsonRequest(method, path, body string) *http.Request {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response body: %v\nraw: %s", err, w.Body.String())
	}
	return body
}

func assertErrorBody(t *testing.T, w *httptest.ResponseRecorder, status int, code string) {
	t.Helper()
	if w.Code != status {
		t.Errorf("status = %d, want %d (body: %s)", w.Code, status, w.Body.String())
	}
	var body middleware.ErrorResponseBody
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode error body: %v", err)
	}
	if body.Success {
		t.Error("success should be false")
	}
	if body.Code != code {
		t.Errorf("code = %q, want %q", body.Code, code)
	}
	if body.Message == "" {
		t.Error("message should not be empty")
	}
}

// --- POST /api/auth/login ---

func TestAuthHandler_Login_ReturnsTokenPair(t *testing.T) {
	svc := &mockAuthService{
		authenticateFn: func(_ context.Context, email, password string) (string, error) {
			if email != "alice@example.com" || password != "Secret123!" {
				t.Errorf("Authenticate(%q, %q)", email, password)
			}
			return "access-1", nil
		},
		issueRefreshTokenFn: func(email string) (string, error) {
			return "refresh-1", nil
		},
	}
	h := NewAuthHandler(svc, stubTokens{})

	w := httptest.NewRecorder()
	h.Login(w, jsonRequest(http.MethodPost, "/api/auth/login", `{"email":"alice@example.com","password":"Secret123!"}`))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	body := decodeBody(t, w)
	if body["accessToken"] != "access-1" || body["refreshToken"] != "refresh-1" {
		t.Errorf("body = %v", body)
	}
}

func TestAuthHandler_Login_InvalidCredentials(t *testing.T) {
	refreshCalled := false
	svc := &mockAuthService{
		authenticateFn: func(context.Context, string, string) (string, error) {
			return "", model.NewInvalidCredentialsError("メールアドレスまたはパスワードが正しくありません。")
		},
		issueRefreshTokenFn: func(string) (string, error) {
			refreshCalled = true
			return "", nil
		},
	}
	h := NewAuthHandler(svc, stubTokens{})

	w := httptest.NewRecorder()
	h.Login(w, jsonRequest(http.MethodPost, "/api/auth/login", `{"email":"alice@example.com","password":"wrong"}`))

	assertErrorBody(t, w, http.StatusUnauthorized, model.ErrCodeInvalidCredentials)
	if refreshCalled {
		t.Error("refresh token should not be issued on failure")
	}
}

func TestAuthHandler_Login_MalformedBody(t *testing.T) {
	h := NewAuthHandler(&mockAuthService{}, stubTokens{})

	w := httptest.NewRecorder()
	h.Login(w, jsonRequest(http.MethodPost, "/api/auth/login", `{"email":`))

	assertErrorBody(t, w, http.StatusBadRequest, model.ErrCodeInvalidArgument)
}

// --- POST /api/auth/logout ---

func TestAuthHandler_Logout_Results(t *testing.T) {
	tests := []struct {
		name   string
		result auth.LogoutResult
	}{
		{"revoked", auth.LogoutRevoked},
		{"already expired", auth.LogoutAlreadyExpired},
		{"already revoked", auth.LogoutAlreadyRevoked},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &mockAuthService{
				logoutFn: func(_ context.Context, tok string) (auth.LogoutResult, error) {
					if tok != "tok-1" {
						t.Errorf("token = %q, want tok-1", tok)
					}
					return tt.result, nil
				},
			}
			h := NewAuthHandler(svc, stubTokens{})

			req := httptest.NewRequest(http.MethodPost, "/api/auth/logout", nil)
			req.Header.Set("Authorization", "Bearer tok-1")
			w := httptest.NewRecorder()
			h.Logout(w, req)

			if w.Code != http.StatusOK {
				t.Fatalf("status = %d, want 200", w.Code)
			}
			body := decodeBody(t, w)
			if body["success"] != true {
				t.Errorf("success = %v, want true", body["success"])
			}
			if body["message"] != tt.result.Message() {
				t.Errorf("message = %v, want %q", body["message"], tt.result.Message())
			}
		})
	}
}

func TestAuthHandler_Logout_MissingHeader(t *testing.T) {
	h := NewAuthHandler(&mockAuthService{}, stubTokens{})

	for _, header := range []string{"", "Token abc", "Bearer "} {
		req := httptest.NewRequest(http.MethodPost, "/api/auth/logout", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		w := httptest.NewRecorder()
		h.Logout(w, req)

		assertErrorBody(t, w, http.StatusUnauthorized, model.ErrCodeMalformedAuthHeader)
	}
}

func TestAuthHandler_Logout_NoExpiryIsBadRequest(t *testing.T) {
	svc := &mockAuthService{
		logoutFn: func(context.Context, string) (auth.LogoutResult, error) {
			return 0, model.NewInvalidTokenError("有効期限を取得できないトークンです。")
		},
	}
	h := NewAuthHandler(svc, stubTokens{})

	req := httptest.NewRequest(http.MethodPost, "/api/auth/logout", nil)
	req.Header.Set("Authorization", "Bearer garbage")
	w := httptest.NewRecorder()
	h.Logout(w, req)

	assertErrorBody(t, w, http.StatusBadRequest, model.ErrCodeInvalidToken)
}

func TestAuthHandler_Logout_StoreFailure(t *testing.T) {
	svc := &mockAuthService{
		logoutFn: func(context.Context, string) (auth.LogoutResult, error) {
			return 0, errors.New("redis unavailable")
		},
	}
	h := NewAuthHandler(svc, stubTokens{})

	req := httptest.NewRequest(http.MethodPost, "/api/auth/logout", nil)
	req.Header.Set("Authorization", "Bearer tok")
	w := httptest.NewRecorder()
	h.Logout(w, req)

	assertErrorBody(t, w, http.StatusInternalServerError, model.ErrCodeInternal)
}

// --- POST /api/auth/refresh ---

func TestAuthHandler_Refresh(t *testing.T) {
	svc := &mockAuthService{
		refreshTokenFn: func(_ context.Context, refresh string) (string, error) {
			if refresh == "good-refresh" {
				return "new-access", nil
			}
			return "", model.NewInvalidTokenError("リフレッシュトークンが無効または期限切れです。")
		},
	}
	h := NewAuthHandler(svc, stubTokens{})

	w := httptest.NewRecorder()
	h.Refresh(w, jsonRequest(http.MethodPost, "/api/auth/refresh", `{"refreshToken":"good-refresh"}`))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	body := decodeBody(t, w)
	if body["success"] != true || body["accessToken"] != "new-access" {
		t.Errorf("body = %v", body)
	}

	w = httptest.NewRecorder()
	h.Refresh(w, jsonRequest(http.MethodPost, "/api/auth/refresh", `{"refreshToken":"bad"}`))
	assertErrorBody(t, w, http.StatusUnauthorized, model.ErrCodeInvalidToken)

	w = httptest.NewRecorder()
	h.Refresh(w, jsonRequest(http.MethodPost, "/api/auth/refresh", `{}`))
	assertErrorBody(t, w, http.StatusBadRequest, model.ErrCodeInvalidArgument)
}

// --- POST /api/auth/change-password ---

func TestAuthHandler_ChangePassword(t *testing.T) {
	var gotEmail, gotOld, gotNew string
	svc := &mockAuthService{
		changePasswordFn: func(_ context.Context, email, oldPassword, newPassword string) error {
			gotEmail, gotOld, gotNew = email, oldPassword, newPassword
			return nil
		},
	}
	h := NewAuthHandler(svc, stubTokens{})

	req := jsonRequest(http.MethodPost, "/api/auth/change-password", `{"oldPassword":"old","newPassword":"new"}`)
	req.Header.Set("Authorization", "Bearer valid-alice@example.com")
	w := httptest.NewRecorder()
	h.ChangePassword(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if gotEmail != "alice@example.com" || gotOld != "old" || gotNew != "new" {
		t.Errorf("ChangePassword(%q, %q, %q)", gotEmail, gotOld, gotNew)
	}
	if body := decodeBody(t, w); body["success"] != true {
		t.Errorf("body = %v", body)
	}
}

func TestAuthHandler_ChangePassword_Failures(t *testing.T) {
	svc := &mockAuthService{
		changePasswordFn: func(context.Context, string, string, string) error {
			return model.NewInvalidArgumentError("現在のパスワードが正しくありません。")
		},
	}
	h := NewAuthHandler(svc, stubTokens{})

	req := jsonRequest(http.MethodPost, "/api/auth/change-password", `{"oldPassword":"x","newPassword":"y"}`)
	req.Header.Set("Authorization", "Bearer valid-alice@example.com")
	w := httptest.NewRecorder()
	h.ChangePassword(w, req)
	assertErrorBody(t, w, http.StatusBadRequest, model.ErrCodeInvalidArgument)

	req = jsonRequest(http.MethodPost, "/api/auth/change-password", `{"oldPassword":"x","newPassword":"y"}`)
	req.Header.Set("Authorization", "Bearer expired")
	w = httptest.NewRecorder()
	h.ChangePassword(w, req)
	assertErrorBody(t, w, http.StatusUnauthorized, model.ErrCodeInvalidToken)
}

// --- POST /api/auth/find/password ---

func TestAuthHandler_FindPassword(t *testing.T) {
	svc := &mockAuthService{
		generateTempFn: func(_ context.Context, email, nickname string) (string, error) {
			if nickname != "alice" {
				return "", model.NewInvalidArgumentError("ニックネームが一致しません。")
			}
			return "a1b2c3d4", nil
		},
	}
	h := NewAuthHandler(svc, stubTokens{})

	w := httptest.NewRecorder()
	h.FindPassword(w, jsonRequest(http.MethodPost, "/api/auth/find/password", `{"email":"alice@example.com","nickname":"alice"}`))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	body := decodeBody(t, w)
	if body["success"] != true || body["tempPassword"] != "a1b2c3d4" {
		t.Errorf("body = %v", body)
	}

	w = httptest.NewRecorder()
	h.FindPassword(w, jsonRequest(http.MethodPost, "/api/auth/find/password", `{"email":"alice@example.com","nickname":"bob"}`))
	assertErrorBody(t, w, http.StatusBadRequest, model.ErrCodeInvalidArgument)

	w = httptest.NewRecorder()
	h.FindPassword(w, jsonRequest(http.MethodPost, "/api/auth/find/password", `{"email":"alice@example.com"}`))
	assertErrorBody(t, w, http.StatusBadRequest, model.ErrCodeInvalidArgument)
}

// --- mapAPIErrorToHTTPStatus ---

func TestMapAPIErrorToHTTPStatus(t *testing.T) {
	tests := []struct {
		code string
		want int
	}{
		{model.ErrCodeInvalidArgument, http.StatusBadRequest},
		{model.ErrCodeUnsupportedProvider, http.StatusBadRequest},
		{model.ErrCodeInvalidCredentials, http.StatusUnauthorized},
		{model.ErrCodeInvalidToken, http.StatusUnauthorized},
		{model.ErrCodeAccountNotFound, http.StatusUnauthorized},
		{model.ErrCodeMalformedAuthHeader, http.StatusUnauthorized},
		{model.ErrCodeRevokedToken, http.StatusUnauthorized},
		{model.ErrCodeSocialAccountConflict, http.StatusUnauthorized},
		{model.ErrCodeForbidden, http.StatusForbidden},
		{model.ErrCodeRateLimited, http.StatusTooManyRequests},
		{"SOMETHING_ELSE", http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			if got := mapAPIErrorToHTTPStatus(&model.APIError{Code: tt.code}); got != tt.want {
				t.Errorf("status = %d, want %d", got, tt.want)
			}
		})
	}
}
