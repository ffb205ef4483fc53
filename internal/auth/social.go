package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/hitoshi/suppleit/internal/model"
	"github.com/hitoshi/suppleit/internal/repository"
)

// NicknameSanitizer は提供元の表示名をニックネームに整形する。
type NicknameSanitizer interface {
	SanitizeNickname(raw string) string
}

// SocialLoginResult はソーシャルログインの結果。
type SocialLoginResult struct {
	Tokens  *TokenPair
	Member  *model.Member
	Created bool
}

// SocialLoginService はOAuthプロバイダー経由のログインと会員の自動登録を行う。
type SocialLoginService struct {
	auth      *Service
	members   repository.MemberRepository
	sanitizer NicknameSanitizer
	providers map[model.SocialType]OAuthProvider
}

// NewSocialLoginService はSocialLoginServiceを生成する。
func NewSocialLoginService(authSvc *Service, members repository.MemberRepository, sanitizer NicknameSanitizer) *SocialLoginService {
	return &SocialLoginService{
		auth:      authSvc,
		members:   members,
		sanitizer: sanitizer,
		providers: make(map[model.SocialType]OAuthProvider),
	}
}

// Register はプロバイダーを登録する。起動時にのみ呼び出すこと。
func (s *SocialLoginService) Register(socialType model.SocialType, provider OAuthProvider) {
	s.providers[socialType] = provider
}

// Providers は登録済みプロバイダー名を小文字・昇順で返す。
func (s *SocialLoginService) Providers() []string {
	names := make([]string, 0, len(s.providers))
	for t := range s.providers {
		names = append(names, strings.ToLower(string(t)))
	}
	sort.Strings(names)
	return names
}

func (s *SocialLoginService) provider(name string) (model.SocialType, OAuthProvider, error) {
	socialType := model.ParseSocialType(name)
	p, ok := s.providers[socialType]
	if socialType == model.SocialNone || !ok {
		return "", nil, model.NewUnsupportedProviderError(name)
	}
	return socialType, p, nil
}

// LoginURL は指定プロバイダーの認証画面URLを返す。
func (s *SocialLoginService) LoginURL(providerName, state string) (string, error) {
	_, p, err := s.provider(providerName)
	if err != nil {
		return "", err
	}
	return p.GetLoginURL(state), nil
}

// Login は認可コードを交換して会員を特定し、トークンペアを発行する。
// 未登録のメールアドレスの場合はパスワードなしの会員を作成する。
// 別のソーシャル提供元で登録済みの場合はSOCIAL_ACCOUNT_CONFLICTを返す。
func (s *SocialLoginService) Login(ctx context.Context, providerName, code string) (*SocialLoginResult, error) {
	socialType, p, err := s.provider(providerName)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(code) == "" {
		return nil, model.NewInvalidArgumentError("認可コードを指定してください。")
	}

	info, err := p.ExchangeCode(ctx, code)
	if err != nil {
		slog.Warn("social code exchange failed",
			slog.String("provider", string(socialType)),
			slog.String("error", err.Error()),
		)
		return nil, model.NewInvalidCredentialsError("ソーシャルログインの認証に失敗しました。")
	}
	if info.Email == "" {
		return nil, model.NewInvalidCredentialsError("ソーシャルログイン提供元からメールアドレスを取得できませんでした。")
	}

	member, created, err := s.findOrCreate(ctx, socialType, info)
	if err != nil {
		return nil, err
	}

	tokens, err := s.auth.IssueTokenPair(member)
	if err != nil {
		return nil, err
	}

	slog.Info("social login",
		slog.String("email", member.Email),
		slog.String("provider", string(socialType)),
		slog.Bool("created", created),
	)
	return &SocialLoginResult{Tokens: tokens, Member: member, Created: created}, nil
}

func (s *SocialLoginService) findOrCreate(ctx context.Context, socialType model.SocialType, info *OAuthUserInfo) (*model.Member, bool, error) {
	existing, err := s.members.FindByEmail(ctx, info.Email)
	if err != nil {
		return nil, false, fmt.Errorf("failed to find member: %w", err)
	}
	if existing != nil {
		if existing.IsSocial() && existing.SocialType != socialType {
			return nil, false, model.NewSocialAccountConflictError(existing.SocialType)
		}
		return existing, false, nil
	}

	nickname := s.sanitizer.SanitizeNickname(info.Name)
	if nickname == "" {
		nickname = strings.ToLower(string(socialType))
	}
	member := &model.Member{
		Email:        info.Email,
		PasswordHash: model.NoLocalPassword,
		Nickname:     nickname,
		Role:         model.RoleUser,
		SocialType:   socialType,
	}

	if err := s.members.Create(ctx, member); err != nil {
		if !errors.Is(err, repository.ErrDuplicateEmail) {
			return nil, false, fmt.Errorf("failed to create member: %w", err)
		}
		// 同時ログインで先に作成された会員を使う
		raced, findErr := s.members.FindByEmail(ctx, info.Email)
		if findErr != nil || raced == nil {
			return nil, false, fmt.Errorf("failed to reload member after duplicate insert: %w", err)
		}
		if raced.IsSocial() && raced.SocialType != socialType {
			return nil, false, model.NewSocialAccountConflictError(raced.SocialType)
		}
		return raced, false, nil
	}

	return member, true, nil
}
