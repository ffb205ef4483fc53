package middleware

import (
	"net/http"
	"strings"

	"github.com/hitoshi/suppleit/internal/model"
)

const bearerPrefix = "Bearer "

// TokenValidator はアクセストークンの検証に必要な操作。token.Codecが満たす。
type TokenValidator interface {
	Validate(token string) bool
	Subject(token string) (string, error)
}

// bearerToken はAuthorizationヘッダーから「Bearer 」以降を取り出す。
func bearerToken(h http.Header) (string, bool) {
	v := h.Get("Authorization")
	if !strings.HasPrefix(v, bearerPrefix) {
		return "", false
	}
	tok := strings.TrimSpace(v[len(bearerPrefix):])
	return tok, tok != ""
}

// ExtractBearer はAuthorizationヘッダーからBearerトークンを取り出す。
// ヘッダーが無い、Bearer形式でない、トークンが空の場合はMALFORMED_AUTH_HEADERを返す。
func ExtractBearer(h http.Header) (string, error) {
	tok, ok := bearerToken(h)
	if !ok {
		return "", model.NewMalformedAuthHeaderError()
	}
	return tok, nil
}

// EmailFromBearer はリクエストのBearerトークンを改めて検証し、呼び出し元のemailを返す。
// RequestGateの結果に依存せず、ヘッダー不正はMALFORMED_AUTH_HEADER、
// 無効・期限切れのトークンはINVALID_TOKENとして返す。
func EmailFromBearer(h http.Header, tokens TokenValidator) (string, error) {
	tok, err := ExtractBearer(h)
	if err != nil {
		return "", err
	}
	if !tokens.Validate(tok) {
		return "", model.NewInvalidTokenError("アクセストークンが無効または期限切れです。")
	}
	email, err := tokens.Subject(tok)
	if err != nil {
		return "", model.NewInvalidTokenError("アクセストークンが無効または期限切れです。")
	}
	return email, nil
}
