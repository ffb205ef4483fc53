// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"errors"

	"github.com/hitoshi/suppleit/internal/model"
)

// ErrDuplicateEmail は同じメールアドレスの会員が既に存在する場合のエラー。
var ErrDuplicateEmail = errors.New("member email already exists")

// MemberRepository は会員データの永続化インターフェース。
type MemberRepository interface {
	// FindByEmail は指定メールアドレスの会員を取得する。見つからない場合はnilを返す。
	FindByEmail(ctx context.Context, email string) (*model.Member, error)

	// Create は会員を作成する。IDと作成日時はDB側で採番される。
	Create(ctx context.Context, member *model.Member) error

	// UpdatePassword は会員のパスワードハッシュを更新する。
	UpdatePassword(ctx context.Context, email, passwordHash string) error
}
