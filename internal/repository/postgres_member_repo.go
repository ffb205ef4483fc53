package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/hitoshi/suppleit/internal/model"
	"github.com/lib/pq"
)

// uniqueViolation はPostgreSQLの一意制約違反のSQLSTATE。
const uniqueViolation = "23505"

// PostgresMemberRepo はPostgreSQLを使用した会員リポジトリ。
type PostgresMemberRepo struct {
	db *sql.DB
}

// NewPostgresMemberRepo はPostgresMemberRepoを生成する。
func NewPostgresMemberRepo(db *sql.DB) *PostgresMemberRepo {
	return &PostgresMemberRepo{db: db}
}

// FindByEmail は指定メールアドレスの会員を取得する。見つからない場合はnilを返す。
func (r *PostgresMemberRepo) FindByEmail(ctx context.Context, email string) (*model.Member, error) {
	var (
		m            model.Member
		passwordHash sql.NullString
		role         string
		socialType   string
	)
	err := r.db.QueryRowContext(ctx,
		`SELECT member_id, email, password_hash, nickname, member_role, social_type, created_at, updated_at
		 FROM members WHERE email = $1`,
		email,
	).Scan(&m.ID, &m.Email, &passwordHash, &m.Nickname, &role, &socialType, &m.CreatedAt, &m.UpdatedAt)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find member by email: %w", err)
	}

	m.PasswordHash = passwordHash.String
	m.Role = model.ParseMemberRole(role)
	m.SocialType = model.ParseSocialType(socialType)
	return &m, nil
}

// Create は会員を作成し、採番されたIDとタイムスタンプをmに設定する。
// メールアドレスが既に登録済みの場合はErrDuplicateEmailを返す。
func (r *PostgresMemberRepo) Create(ctx context.Context, m *model.Member) error {
	err := r.db.QueryRowContext(ctx,
		`INSERT INTO members (email, password_hash, nickname, member_role, social_type)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING member_id, created_at, updated_at`,
		m.Email, nullablePasswordHash(m.PasswordHash), m.Nickname, string(m.EffectiveRole()), string(socialTypeOrNone(m.SocialType)),
	).Scan(&m.ID, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && string(pqErr.Code) == uniqueViolation {
			return ErrDuplicateEmail
		}
		return fmt.Errorf("failed to insert member: %w", err)
	}
	return nil
}

// UpdatePassword は会員のパスワードハッシュを更新する。
func (r *PostgresMemberRepo) UpdatePassword(ctx context.Context, email, passwordHash string) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE members SET password_hash = $1, updated_at = NOW() WHERE email = $2`,
		passwordHash, email,
	)
	if err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("member not found: %s", email)
	}
	return nil
}

// nullablePasswordHash はパスワードなしのセンチネルをNULLとして保存する。
func nullablePasswordHash(hash string) sql.NullString {
	if hash == model.NoLocalPassword {
		return sql.NullString{}
	}
	return sql.NullString{String: hash, Valid: true}
}

func socialTypeOrNone(t model.SocialType) model.SocialType {
	if t == "" {
		return model.SocialNone
	}
	return t
}

// compile-time interface check
var _ MemberRepository = (*PostgresMemberRepo)(nil)
