package revocation

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// MemoryStore はプロセス内マップによるStore実装。単一インスタンス構成向け。
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]time.Time
	now     func() time.Time
}

// NewMemoryStore はMemoryStoreを生成する。
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]time.Time),
		now:     time.Now,
	}
}

// WithClock は内部時計を差し替える。テスト用。
func (s *MemoryStore) WithClock(now func() time.Time) *MemoryStore {
	if now != nil {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.now = now
	}
	return s
}

// Add はトークンを記録し、続けて期限切れエントリを掃除する。
// 同一トークンの再登録は有効期限を上書きする。
func (s *MemoryStore) Add(ctx context.Context, token string, expiresAt time.Time) error {
	if token == "" {
		slog.Warn("revocation add skipped: empty token")
		return nil
	}

	s.mu.Lock()
	s.entries[Fingerprint(token)] = expiresAt
	s.mu.Unlock()

	slog.Info("token revoked",
		slog.String("token_prefix", tokenPrefix(token)),
		slog.Time("expires_at", expiresAt),
	)

	_, err := s.Sweep(ctx)
	return err
}

// IsRevoked はトークンが記録済みかどうかを返す。
func (s *MemoryStore) IsRevoked(_ context.Context, token string) (bool, error) {
	if token == "" {
		return false, nil
	}

	s.mu.RLock()
	_, ok := s.entries[Fingerprint(token)]
	s.mu.RUnlock()
	return ok, nil
}

// Sweep は有効期限が現在時刻以前のエントリを削除する。
func (s *MemoryStore) Sweep(_ context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	removed := 0
	for key, expiresAt := range s.entries {
		if !expiresAt.After(now) {
			delete(s.entries, key)
			removed++
		}
	}
	return removed, nil
}

// Count は現在のエントリ数を返す。
func (s *MemoryStore) Count(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries), nil
}

// Backend はバックエンド名を返す。
func (s *MemoryStore) Backend() string {
	return "memory"
}

var (
	_ Store   = (*MemoryStore)(nil)
	_ Counter = (*MemoryStore)(nil)
)
