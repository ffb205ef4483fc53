// Package cleanup は失効済みトークンの定期削除ジョブを提供する。
// 有効期限を過ぎた失効エントリをSweepIntervalごとに削除する。
// 削除は記憶領域の整理であり、トークンの有効性判定は削除の有無に依存しない。
package cleanup

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hitoshi/suppleit/internal/metrics"
	"github.com/hitoshi/suppleit/internal/revocation"
)

// Sweeper は期限切れエントリを削除できる失効ストア。
type Sweeper interface {
	Sweep(ctx context.Context) (int, error)
	Backend() string
}

// CleanupJob は失効ストアの定期削除ジョブ。
type CleanupJob struct {
	store   Sweeper
	logger  *slog.Logger
	metrics metrics.MetricsCollector
}

// NewCleanupJob は新しいCleanupJobを生成する。mcがnilの場合はメトリクスを記録しない。
func NewCleanupJob(store Sweeper, logger *slog.Logger, mc metrics.MetricsCollector) *CleanupJob {
	if mc == nil {
		mc = metrics.Nop{}
	}
	return &CleanupJob{
		store:   store,
		logger:  logger,
		metrics: mc,
	}
}

// Run は期限切れの失効エントリを1回削除する。
// ストアが件数を返せる場合は残件数もゲージに反映する。
// 冪等: 削除対象がない場合でもエラーにならない。
func (j *CleanupJob) Run(ctx context.Context) error {
	start := time.Now()

	removed, err := j.store.Sweep(ctx)
	if err != nil {
		j.logger.Error("失効トークンの削除に失敗しました",
			slog.String("error", err.Error()),
			slog.String("backend", j.store.Backend()),
		)
		return fmt.Errorf("失効トークンの削除に失敗: %w", err)
	}
	j.metrics.RecordSwept(removed)

	attrs := []any{
		slog.Int("deleted_count", removed),
		slog.String("backend", j.store.Backend()),
		slog.Float64("duration_ms", float64(time.Since(start).Milliseconds())),
	}

	if counter, ok := j.store.(revocation.Counter); ok {
		remaining, err := counter.Count(ctx)
		if err != nil {
			j.logger.Warn("失効トークン件数の取得に失敗しました",
				slog.String("error", err.Error()),
			)
		} else {
			j.metrics.SetRevocationEntries(remaining)
			attrs = append(attrs, slog.Int("remaining", remaining))
		}
	}

	j.logger.Info("失効トークンの削除ジョブが完了しました", attrs...)
	return nil
}

// Start はintervalごとにRunを実行する。ctxがキャンセルされるまでブロックする。
func (j *CleanupJob) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	j.logger.Info("失効トークンの削除ジョブを開始しました",
		slog.Duration("interval", interval),
	)

	for {
		select {
		case <-ctx.Done():
			j.logger.Info("失効トークンの削除ジョブを停止しました")
			return
		case <-ticker.C:
			// 失敗はRun内でログに記録済み。次の周期で再試行する
			_ = j.Run(ctx)
		}
	}
}
