// Package model はドメインモデルを定義する。
package model

import (
	"errors"
	"fmt"
)

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeInvalidCredentials    = "INVALID_CREDENTIALS"
	ErrCodeInvalidToken          = "INVALID_TOKEN"
	ErrCodeAccountNotFound       = "ACCOUNT_NOT_FOUND"
	ErrCodeMalformedAuthHeader   = "MALFORMED_AUTH_HEADER"
	ErrCodeRevokedToken          = "REVOKED_TOKEN"
	ErrCodeInvalidArgument       = "INVALID_ARGUMENT"
	ErrCodeSocialAccountConflict = "SOCIAL_ACCOUNT_CONFLICT"
	ErrCodeUnsupportedProvider   = "UNSUPPORTED_PROVIDER"
	ErrCodeUnauthorized          = "UNAUTHORIZED"
	ErrCodeForbidden             = "FORBIDDEN"
	ErrCodeRateLimited           = "RATE_LIMITED"
	ErrCodeInternal              = "INTERNAL_ERROR"
)

// HasCode はerrのチェーンに指定コードのAPIErrorが含まれるかを返す。
func HasCode(err error, code string) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code == code
	}
	return false
}

// NewInvalidCredentialsError はログイン資格情報の不一致エラーを生成する。
// reasonには利用者に表示してよい理由を渡す。
func NewInvalidCredentialsError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidCredentials,
		Message:  reason,
		Category: "auth",
		Action:   "メールアドレスとパスワードを確認してください。",
	}
}

// NewInvalidTokenError は署名・構造・有効期限のいずれかが不正なトークンのエラーを生成する。
func NewInvalidTokenError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidToken,
		Message:  reason,
		Category: "auth",
		Action:   "再度ログインしてください。",
	}
}

// NewAccountNotFoundError は会員が存在しない場合のエラーを生成する。
func NewAccountNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeAccountNotFound,
		Message:  "該当するメールアドレスで登録された会員が存在しません。",
		Category: "auth",
		Action:   "メールアドレスを確認するか、新規登録してください。",
	}
}

// NewMalformedAuthHeaderError はAuthorizationヘッダーが欠落または不正な場合のエラーを生成する。
func NewMalformedAuthHeaderError() *APIError {
	return &APIError{
		Code:     ErrCodeMalformedAuthHeader,
		Message:  "認証形式が不正です。Bearerトークンが必要です。",
		Category: "auth",
		Action:   "Authorizationヘッダーに「Bearer <token>」を指定してください。",
	}
}

// NewRevokedTokenError はログアウト済みトークンのエラーを生成する。
func NewRevokedTokenError() *APIError {
	return &APIError{
		Code:     ErrCodeRevokedToken,
		Message:  "トークンは無効化されています（ログアウト済み）。",
		Category: "auth",
		Action:   "再度ログインしてください。",
	}
}

// NewInvalidArgumentError は入力値の検証エラーを生成する。
func NewInvalidArgumentError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidArgument,
		Message:  reason,
		Category: "validation",
		Action:   "入力内容を確認してください。",
	}
}

// NewSocialAccountConflictError は別のソーシャルアカウントで登録済みのメールアドレスの場合のエラーを生成する。
func NewSocialAccountConflictError(existing SocialType) *APIError {
	return &APIError{
		Code:     ErrCodeSocialAccountConflict,
		Message:  fmt.Sprintf("既に別のソーシャルアカウント（%s）で登録されたメールアドレスです。", existing),
		Category: "auth",
		Action:   "登録時に使用したソーシャルアカウントでログインしてください。",
	}
}

// NewUnsupportedProviderError は未対応のソーシャルログイン提供元のエラーを生成する。
func NewUnsupportedProviderError(provider string) *APIError {
	return &APIError{
		Code:     ErrCodeUnsupportedProvider,
		Message:  fmt.Sprintf("対応していないソーシャルログイン提供元です: %s", provider),
		Category: "validation",
		Action:   "google または naver を指定してください。",
	}
}

// NewUnauthorizedError は認証が必要な操作を未認証で呼び出した場合のエラーを生成する。
func NewUnauthorizedError() *APIError {
	return &APIError{
		Code:     ErrCodeUnauthorized,
		Message:  "認証が必要です。",
		Category: "auth",
		Action:   "ログインしてください。",
	}
}

// NewForbiddenError は権限が不足している場合のエラーを生成する。
func NewForbiddenError() *APIError {
	return &APIError{
		Code:     ErrCodeForbidden,
		Message:  "この操作を行う権限がありません。",
		Category: "auth",
		Action:   "管理者にお問い合わせください。",
	}
}

// NewInternalError は内部エラーの統一表現を生成する。
// 詳細はログのみに記録する。
func NewInternalError() *APIError {
	return &APIError{
		Code:     ErrCodeInternal,
		Message:  "内部エラーが発生しました。",
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	}
}

// NewRateLimitedError はレート制限超過のエラーを生成する。
func NewRateLimitedError() *APIError {
	return &APIError{
		Code:     ErrCodeRateLimited,
		Message:  "リクエストが多すぎます。",
		Category: "system",
		Action:   "Retry-Afterヘッダーの秒数だけ待ってから再度お試しください。",
	}
}
