// Package auth はパスワード認証、トークンの発行・再発行・失効、ソーシャルログインを提供する。
// パスワードの照合とトークンペアの発行はこのパッケージのみが行う。
package auth

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/hitoshi/suppleit/internal/metrics"
	"github.com/hitoshi/suppleit/internal/model"
	"github.com/hitoshi/suppleit/internal/repository"
	"github.com/hitoshi/suppleit/internal/revocation"
	"github.com/hitoshi/suppleit/internal/token"
)

// TempPasswordLength は仮パスワードの文字数。
const TempPasswordLength = 8

// TokenPair はアクセストークンとリフレッシュトークンの組。
type TokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// LogoutResult はログアウト処理の結果を表す。
type LogoutResult int

const (
	// LogoutRevoked は今回の呼び出しでトークンを失効させたことを表す。
	LogoutRevoked LogoutResult = iota
	// LogoutAlreadyExpired はトークンが既に期限切れだったことを表す。
	LogoutAlreadyExpired
	// LogoutAlreadyRevoked はトークンが既に失効済みだったことを表す。
	LogoutAlreadyRevoked
)

// Message はログアウト結果の利用者向けメッセージを返す。
func (r LogoutResult) Message() string {
	switch r {
	case LogoutAlreadyExpired:
		return "既に期限切れのトークンです。"
	case LogoutAlreadyRevoked:
		return "既にログアウト済みです。"
	default:
		return "ログアウトしました。"
	}
}

// Service は認証に関するビジネスロジックを提供する。
type Service struct {
	members         repository.MemberRepository
	codec           *token.Codec
	revocations     revocation.Store
	hasher          PasswordHasher
	metrics         metrics.MetricsCollector
	newTempPassword func() string
}

// NewService はServiceを生成する。mcがnilの場合はメトリクスを記録しない。
func NewService(
	members repository.MemberRepository,
	codec *token.Codec,
	revocations revocation.Store,
	hasher PasswordHasher,
	mc metrics.MetricsCollector,
) *Service {
	if mc == nil {
		mc = metrics.Nop{}
	}
	return &Service{
		members:         members,
		codec:           codec,
		revocations:     revocations,
		hasher:          hasher,
		metrics:         mc,
		newTempPassword: generateTempPassword,
	}
}

// Authenticate はメールアドレスとパスワードを検証し、アクセストークンを返す。
// リフレッシュトークンは発行しない（IssueRefreshTokenを別途呼ぶ）。
func (s *Service) Authenticate(ctx context.Context, email, password string) (string, error) {
	member, err := s.members.FindByEmail(ctx, email)
	if err != nil {
		return "", fmt.Errorf("failed to find member: %w", err)
	}

	if rejection := s.checkCredentials(member, password); rejection != nil {
		s.metrics.RecordLogin("failure")
		slog.Info("login rejected",
			slog.String("email", email),
			slog.String("reason", rejection.Message),
		)
		return "", rejection
	}

	accessToken, err := s.issueAccess(member)
	if err != nil {
		return "", err
	}

	s.metrics.RecordLogin("success")
	slog.Info("member logged in", slog.String("email", member.Email))
	return accessToken, nil
}

// checkCredentials は会員の存在、ソーシャル会員でないこと、パスワードの一致を順に検証する。
func (s *Service) checkCredentials(member *model.Member, password string) *model.APIError {
	const mismatch = "メールアドレスまたはパスワードが正しくありません。"

	if member == nil {
		return model.NewInvalidCredentialsError(mismatch)
	}
	if member.IsSocial() {
		return model.NewInvalidCredentialsError("ソーシャルログインで登録されたアカウントです。ソーシャルログインをご利用ください。")
	}
	if !member.HasLocalPassword() {
		return model.NewInvalidCredentialsError(mismatch)
	}
	if !s.hasher.Matches(member.PasswordHash, password) {
		return model.NewInvalidCredentialsError(mismatch)
	}
	return nil
}

// IssueRefreshToken はemailに対するリフレッシュトークンを発行する。
func (s *Service) IssueRefreshToken(email string) (string, error) {
	refresh, err := s.codec.IssueRefreshToken(email)
	if err != nil {
		return "", fmt.Errorf("failed to issue refresh token: %w", err)
	}
	s.metrics.RecordTokenIssued(string(token.KindRefresh))
	return refresh, nil
}

// IssueTokenPair は会員の現在のロールでアクセストークンとリフレッシュトークンを発行する。
func (s *Service) IssueTokenPair(member *model.Member) (*TokenPair, error) {
	access, err := s.issueAccess(member)
	if err != nil {
		return nil, err
	}
	refresh, err := s.IssueRefreshToken(member.Email)
	if err != nil {
		return nil, err
	}
	return &TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

func (s *Service) issueAccess(member *model.Member) (string, error) {
	access, err := s.codec.IssueAccessToken(member.Email, string(member.EffectiveRole()))
	if err != nil {
		return "", fmt.Errorf("failed to issue access token: %w", err)
	}
	s.metrics.RecordTokenIssued(string(token.KindAccess))
	return access, nil
}

// RefreshToken はリフレッシュトークンを検証し、会員の現在のロールで新しいアクセストークンを返す。
// リフレッシュトークン自体のローテーションや失効は行わない。
func (s *Service) RefreshToken(ctx context.Context, refreshToken string) (string, error) {
	if !s.codec.ValidateRefresh(refreshToken) {
		s.metrics.RecordRefresh("invalid")
		return "", model.NewInvalidTokenError("リフレッシュトークンが無効または期限切れです。")
	}

	email, err := s.codec.Subject(refreshToken)
	if err != nil {
		s.metrics.RecordRefresh("invalid")
		return "", model.NewInvalidTokenError("リフレッシュトークンが無効または期限切れです。")
	}

	member, err := s.members.FindByEmail(ctx, email)
	if err != nil {
		return "", fmt.Errorf("failed to find member: %w", err)
	}
	if member == nil {
		s.metrics.RecordRefresh("not_found")
		return "", model.NewAccountNotFoundError()
	}

	accessToken, err := s.issueAccess(member)
	if err != nil {
		return "", err
	}

	s.metrics.RecordRefresh("success")
	return accessToken, nil
}

// Logout はアクセストークンを失効させる。
// 期限切れ・失効済みのトークンは成功として扱い、何度呼んでも同じ結果になる。
// 有効期限を取り出せないトークンとアクセストークン以外はINVALID_TOKENを返す。
func (s *Service) Logout(ctx context.Context, accessToken string) (LogoutResult, error) {
	if s.codec.IsExpired(accessToken) {
		return LogoutAlreadyExpired, nil
	}

	revoked, err := s.revocations.IsRevoked(ctx, accessToken)
	if err != nil {
		return 0, fmt.Errorf("failed to check revocation: %w", err)
	}
	if revoked {
		return LogoutAlreadyRevoked, nil
	}

	expiresAt, ok := s.codec.Expiry(accessToken)
	if !ok {
		return 0, model.NewInvalidTokenError("有効期限を取得できないトークンです。")
	}
	if !s.codec.Validate(accessToken) {
		// 署名・期限は正しいが種別が異なる（リフレッシュトークン等）
		return 0, model.NewInvalidTokenError("アクセストークンではありません。")
	}

	if err := s.revocations.Add(ctx, accessToken, expiresAt); err != nil {
		return 0, fmt.Errorf("failed to revoke token: %w", err)
	}

	s.metrics.RecordRevocation()
	return LogoutRevoked, nil
}

// ChangePassword はパスワードを変更する。
// ソーシャル会員、現在のパスワード不一致、新旧パスワードが同一の場合はINVALID_ARGUMENTを返す。
func (s *Service) ChangePassword(ctx context.Context, email, oldPassword, newPassword string) error {
	if newPassword == "" {
		return model.NewInvalidArgumentError("新しいパスワードを入力してください。")
	}

	member, err := s.members.FindByEmail(ctx, email)
	if err != nil {
		return fmt.Errorf("failed to find member: %w", err)
	}
	if member == nil {
		return model.NewInvalidArgumentError("会員が見つかりません。")
	}
	if member.IsSocial() {
		return model.NewInvalidArgumentError("ソーシャルログイン会員はパスワードを変更できません。")
	}
	if !s.hasher.Matches(member.PasswordHash, oldPassword) {
		return model.NewInvalidArgumentError("現在のパスワードが正しくありません。")
	}
	if s.hasher.Matches(member.PasswordHash, newPassword) {
		return model.NewInvalidArgumentError("新しいパスワードは現在のパスワードと異なるものを指定してください。")
	}

	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return err
	}
	if err := s.members.UpdatePassword(ctx, member.Email, hash); err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}

	slog.Info("password changed", slog.String("email", member.Email))
	return nil
}

// GenerateTemporaryPassword はニックネームの一致を確認したうえで仮パスワードを発行し、
// ハッシュを保存して平文を返す。平文の配送は呼び出し側の責務。
func (s *Service) GenerateTemporaryPassword(ctx context.Context, email, nickname string) (string, error) {
	member, err := s.members.FindByEmail(ctx, email)
	if err != nil {
		return "", fmt.Errorf("failed to find member: %w", err)
	}
	if member == nil {
		return "", model.NewInvalidArgumentError("会員が見つかりません。")
	}
	if member.IsSocial() {
		return "", model.NewInvalidArgumentError("ソーシャルログイン会員は仮パスワードを発行できません。")
	}
	if member.Nickname != nickname {
		return "", model.NewInvalidArgumentError("ニックネームが一致しません。")
	}

	temp := s.newTempPassword()
	hash, err := s.hasher.Hash(temp)
	if err != nil {
		return "", err
	}
	if err := s.members.UpdatePassword(ctx, member.Email, hash); err != nil {
		return "", fmt.Errorf("failed to update password: %w", err)
	}

	slog.Info("temporary password issued", slog.String("email", member.Email))
	return temp, nil
}

// generateTempPassword はランダムな8文字の仮パスワードを生成する。
func generateTempPassword() string {
	return uuid.NewString()[:TempPasswordLength]
}
