package revocation

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultRedisPrefix はRedisキーの既定プレフィックス。
const DefaultRedisPrefix = "suppleit:revoked"

// RedisStore はRedisによるStore実装。複数インスタンス構成で失効状態を共有する。
// 各キーはトークンの有効期限で自動的に消えるため、Sweepは何もしない。
type RedisStore struct {
	client *redis.Client
	prefix string
	now    func() time.Time
}

// NewRedisStore はRedisStoreを生成する。prefixが空の場合はDefaultRedisPrefixを使う。
func NewRedisStore(client *redis.Client, prefix string) *RedisStore {
	trimmed := strings.TrimSpace(prefix)
	if trimmed == "" {
		trimmed = DefaultRedisPrefix
	}
	return &RedisStore{client: client, prefix: trimmed, now: time.Now}
}

// WithClock は残り有効期間の計算に使う時計を差し替える。テスト用。
func (s *RedisStore) WithClock(now func() time.Time) *RedisStore {
	if now != nil {
		s.now = now
	}
	return s
}

// Add はトークンのキーを有効期限までのTTL付きで書き込む。
// 有効期限を既に過ぎている場合は記録しない。
func (s *RedisStore) Add(ctx context.Context, token string, expiresAt time.Time) error {
	if token == "" {
		slog.Warn("revocation add skipped: empty token")
		return nil
	}

	ttl := expiresAt.Sub(s.now())
	if ttl <= 0 {
		return nil
	}

	if err := s.client.Set(ctx, s.key(token), expiresAt.UnixMilli(), ttl).Err(); err != nil {
		return fmt.Errorf("redis set revoked token: %w", err)
	}

	slog.Info("token revoked",
		slog.String("token_prefix", tokenPrefix(token)),
		slog.Time("expires_at", expiresAt),
		slog.String("backend", s.Backend()),
	)
	return nil
}

// IsRevoked はトークンのキーが存在するかどうかを返す。
func (s *RedisStore) IsRevoked(ctx context.Context, token string) (bool, error) {
	if token == "" {
		return false, nil
	}

	n, err := s.client.Exists(ctx, s.key(token)).Result()
	if err != nil {
		return false, fmt.Errorf("redis exists revoked token: %w", err)
	}
	return n > 0, nil
}

// Sweep は何もしない。期限切れキーはRedisが削除する。
func (s *RedisStore) Sweep(_ context.Context) (int, error) {
	return 0, nil
}

// Count はプレフィックスに一致するキー数をSCANで数える。
func (s *RedisStore) Count(ctx context.Context) (int, error) {
	var (
		cursor uint64
		total  int
	)
	for {
		keys, next, err := s.client.Scan(ctx, cursor, s.prefix+":*", 500).Result()
		if err != nil {
			return 0, fmt.Errorf("redis scan revoked tokens: %w", err)
		}
		total += len(keys)
		if next == 0 {
			return total, nil
		}
		cursor = next
	}
}

// Backend はバックエンド名を返す。
func (s *RedisStore) Backend() string {
	return "redis"
}

func (s *RedisStore) key(token string) string {
	return s.prefix + ":" + Fingerprint(token)
}

var (
	_ Store   = (*RedisStore)(nil)
	_ Counter = (*RedisStore)(nil)
)
