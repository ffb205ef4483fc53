// Package member は認証済み会員のプロフィール参照を提供する。
package member

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/hitoshi/suppleit/internal/model"
	"github.com/hitoshi/suppleit/internal/repository"
)

// Profile は会員情報APIで公開する項目。パスワードハッシュは含めない。
type Profile struct {
	Email      string           `json:"email"`
	Nickname   string           `json:"nickname"`
	Role       model.MemberRole `json:"role"`
	SocialType model.SocialType `json:"socialType"`
}

// Service は会員情報のサービス層。
type Service struct {
	members repository.MemberRepository
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(members repository.MemberRepository) *Service {
	return &Service{members: members}
}

// Profile はemailに対応する会員のプロフィールを返す。
// トークン発行後に会員が削除されていた場合はACCOUNT_NOT_FOUNDを返す。
func (s *Service) Profile(ctx context.Context, email string) (*Profile, error) {
	m, err := s.members.FindByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("会員の取得に失敗しました: %w", err)
	}
	if m == nil {
		slog.Warn("authenticated member no longer exists",
			slog.String("email", email),
		)
		return nil, model.NewAccountNotFoundError()
	}

	socialType := m.SocialType
	if socialType == "" {
		socialType = model.SocialNone
	}

	return &Profile{
		Email:      m.Email,
		Nickname:   m.Nickname,
		Role:       m.EffectiveRole(),
		SocialType: socialType,
	}, nil
}
