package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/hitoshi/suppleit/internal/model"
)

// TestWriteErrorResponse_AuthErrors は認証まわりのエラー生成関数の内容が
// そのまま統一フォーマットの本文になることを検証する。
func TestWriteErrorResponse_AuthErrors(t *testing.T) {
	tests := []struct {
		name         string
		status       int
		apiErr       *model.APIError
		wantCode     string
		wantCategory string
	}{
		{"失効済みトークン", http.StatusUnauthorized, model.NewRevokedTokenError(), model.ErrCodeRevokedToken, "auth"},
		{"Bearer形式でないヘッダー", http.StatusUnauthorized, model.NewMalformedAuthHeaderError(), model.ErrCodeMalformedAuthHeader, "auth"},
		{"期限切れトークン", http.StatusUnauthorized, model.NewInvalidTokenError("トークンの有効期限が切れています。"), model.ErrCodeInvalidToken, "auth"},
		{"ログイン資格情報の不一致", http.StatusUnauthorized, model.NewInvalidCredentialsError("パスワードが一致しません。"), model.ErrCodeInvalidCredentials, "auth"},
		{"会員が存在しない", http.StatusUnauthorized, model.NewAccountNotFoundError(), model.ErrCodeAccountNotFound, "auth"},
		{"別プロバイダーで登録済み", http.StatusUnauthorized, model.NewSocialAccountConflictError(model.SocialGoogle), model.ErrCodeSocialAccountConflict, "auth"},
		{"未対応プロバイダー", http.StatusBadRequest, model.NewUnsupportedProviderError("kakao"), model.ErrCodeUnsupportedProvider, "validation"},
		{"不正な入力", http.StatusBadRequest, model.NewInvalidArgumentError("emailは必須です。"), model.ErrCodeInvalidArgument, "validation"},
		{"未認証", http.StatusUnauthorized, model.NewUnauthorizedError(), model.ErrCodeUnauthorized, "auth"},
		{"管理者以外", http.StatusForbidden, model.NewForbiddenError(), model.ErrCodeForbidden, "auth"},
		{"レート制限", http.StatusTooManyRequests, model.NewRateLimitedError(), model.ErrCodeRateLimited, "system"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()

			WriteErrorResponse(w, tt.status, tt.apiErr)

			resp := w.Result()
			if resp.StatusCode != tt.status {
				t.Errorf("status = %d, want %d", resp.StatusCode, tt.status)
			}
			if ct := resp.Header.Get("Content-Type"); ct != "application/json" {
				t.Errorf("Content-Type = %q, want %q", ct, "application/json")
			}

			var body ErrorResponseBody
			if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
				t.Fatalf("failed to decode: %v", err)
			}

			if body.Success {
				t.Error("success should be false")
			}
			if body.Code != tt.wantCode {
				t.Errorf("code = %q, want %q", body.Code, tt.wantCode)
			}
			if body.Category != tt.wantCategory {
				t.Errorf("category = %q, want %q", body.Category, tt.wantCategory)
			}
			if body.Message != tt.apiErr.Message {
				t.Errorf("message = %q, want %q", body.Message, tt.apiErr.Message)
			}
			if body.Action == "" || body.Action != tt.apiErr.Action {
				t.Errorf("action = %q, want %q", body.Action, tt.apiErr.Action)
			}
		})
	}
}

// TestWriteErrorResponse_ConflictNamesExistingProvider は登録済みプロバイダーが
// メッセージに含まれ、利用者が正しいログイン方法を選べることを検証する。
func TestWriteErrorResponse_ConflictNamesExistingProvider(t *testing.T) {
	w := httptest.NewRecorder()

	WriteErrorResponse(w, http.StatusUnauthorized, model.NewSocialAccountConflictError(model.SocialNaver))

	var body ErrorResponseBody
	if err := json.NewDecoder(w.Result().Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode: %v", err)
	}
	if !strings.Contains(body.Message+body.Action, string(model.SocialNaver)) {
		t.Errorf("message/action should mention %q: %+v", model.SocialNaver, body)
	}
}

// TestInternalServerError_HidesDetails は内部エラーが固定の本文で返ることを検証する。
func TestInternalServerError_HidesDetails(t *testing.T) {
	w := httptest.NewRecorder()

	WriteInternalServerError(w)

	resp := w.Result()
	if resp.StatusCode != http.StatusInternalServerError {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusInternalServerError)
	}

	var body ErrorResponseBody
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode: %v", err)
	}

	want := model.NewInternalError()
	if body.Code != model.ErrCodeInternal || body.Category != "system" {
		t.Errorf("unexpected body: %+v", body)
	}
	if body.Message != want.Message || body.Action != want.Action {
		t.Errorf("body = %+v, want message/action of %+v", body, want)
	}
}

// TestErrorResponseBody_FieldNames はクライアントが読むJSONキーが揃っていることを検証する。
func TestErrorResponseBody_FieldNames(t *testing.T) {
	w := httptest.NewRecorder()

	WriteErrorResponse(w, http.StatusUnauthorized, model.NewRevokedTokenError())

	var raw map[string]interface{}
	if err := json.NewDecoder(w.Result().Body).Decode(&raw); err != nil {
		t.Fatalf("failed to decode: %v", err)
	}

	for _, field := range []string{"success", "code", "message", "category", "action"} {
		if _, ok := raw[field]; !ok {
			t.Errorf("missing required field: %s", field)
		}
	}
	if len(raw) != 5 {
		t.Errorf("unexpected extra fields: %v", raw)
	}
}
