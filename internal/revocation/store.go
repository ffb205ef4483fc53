// Package revocation はログアウトにより明示的に無効化されたアクセストークンを、
// 本来の有効期限を迎えるまで記録する。
package revocation

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// SweepInterval は期限切れエントリの定期掃除間隔。
const SweepInterval = 10 * time.Minute

// Store は失効トークンの記録先。
// 実装は呼び出し側のロックなしで並行に利用できなければならない。
// Addが返った後のIsRevokedは、どのgoroutineからでもそのトークンを失効済みと判定する。
type Store interface {
	// Add はトークンを失効済みとして記録する。空文字の場合は何もしない。
	Add(ctx context.Context, token string, expiresAt time.Time) error
	// IsRevoked はトークンが失効済みかどうかを返す。空文字は常にfalse。
	IsRevoked(ctx context.Context, token string) (bool, error)
	// Sweep は有効期限を過ぎたエントリを削除し、削除件数を返す。
	Sweep(ctx context.Context) (int, error)
	// Backend はバックエンド名（"memory" / "redis"）を返す。
	Backend() string
}

// Counter は現在のエントリ数を報告できるStore。
type Counter interface {
	Count(ctx context.Context) (int, error)
}

// Fingerprint はトークンのSHA-256ハッシュを16進文字列で返す。
// ストアは生のトークンを保持せず、この値をキーにする。
func Fingerprint(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// tokenPrefix はログ出力用にトークン先頭10文字のみを返す。
func tokenPrefix(token string) string {
	if len(token) <= 10 {
		return token
	}
	return token[:10]
}
