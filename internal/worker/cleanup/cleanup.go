// Package cleanup はworkerが定期実行する掃除ジョブを提供する。
// 物件が存在しなくなったレビュー（カスケード削除の取りこぼし）と、
// 期限切れから保持期間を過ぎたセッションを削除する。
package cleanup

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/hitoshi/wanderlust/internal/metrics"
)

// Executor はSQLのExecContextを抽象化するインターフェース。
// *sql.DB や *sql.Tx を受け付けることができる。
type Executor interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

const (
	sweepOrphanReviewsQuery = `DELETE FROM reviews r
		WHERE NOT EXISTS (SELECT 1 FROM listings l WHERE l.id = r.listing_id)`
	purgeExpiredSessionsQuery = `DELETE FROM sessions WHERE expires_at < $1`
)

// DefaultSessionRetention は期限切れセッションを残しておく期間のデフォルト。
const DefaultSessionRetention = 24 * time.Hour

// CleanupJob は孤立レビューと期限切れセッションの掃除ジョブ。
// 何度実行しても結果は変わらない。
type CleanupJob struct {
	db        Executor
	collector metrics.MetricsCollector
	logger    *slog.Logger
	now       func() time.Time

	SessionRetention time.Duration // 期限切れ後もセッション行を残す期間
}

// NewCleanupJob は新しいCleanupJobを生成する。
func NewCleanupJob(db Executor, collector metrics.MetricsCollector, logger *slog.Logger, sessionRetention time.Duration) *CleanupJob {
	if collector == nil {
		collector = metrics.Nop{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	if sessionRetention <= 0 {
		sessionRetention = DefaultSessionRetention
	}
	return &CleanupJob{
		db:               db,
		collector:        collector,
		logger:           logger,
		now:              time.Now,
		SessionRetention: sessionRetention,
	}
}

// Run は孤立レビューの削除と期限切れセッションの削除を順に実行する。
// レビューの削除に失敗した場合もセッションの削除は試みる。
func (j *CleanupJob) Run(ctx context.Context) error {
	start := time.Now()

	orphans, reviewErr := j.sweepOrphanReviews(ctx)
	sessions, sessionErr := j.purgeExpiredSessions(ctx)

	if reviewErr != nil {
		return reviewErr
	}
	if sessionErr != nil {
		return sessionErr
	}

	j.logger.Info("cleanup job completed",
		slog.Int64("orphan_reviews_deleted", orphans),
		slog.Int64("sessions_deleted", sessions),
		slog.Float64("duration_ms", float64(time.Since(start).Milliseconds())),
	)
	return nil
}

// sweepOrphanReviews は物件が存在しないレビューを削除する。
func (j *CleanupJob) sweepOrphanReviews(ctx context.Context) (int64, error) {
	n, err := j.exec(ctx, sweepOrphanReviewsQuery)
	if err != nil {
		j.logger.Error("failed to sweep orphan reviews", slog.String("error", err.Error()))
		return 0, fmt.Errorf("孤立レビューの削除に失敗: %w", err)
	}
	if n > 0 {
		// カスケードが取りこぼした件数は運用で追えるよう警告にする
		j.logger.Warn("orphan reviews swept", slog.Int64("count", n))
	}
	j.collector.RecordOrphansSwept(n)
	return n, nil
}

// purgeExpiredSessions は期限切れからSessionRetention以上経過したセッションを削除する。
func (j *CleanupJob) purgeExpiredSessions(ctx context.Context) (int64, error) {
	cutoff := j.now().Add(-j.SessionRetention)
	n, err := j.exec(ctx, purgeExpiredSessionsQuery, cutoff)
	if err != nil {
		j.logger.Error("failed to purge expired sessions",
			slog.String("error", err.Error()),
			slog.Duration("retention", j.SessionRetention),
		)
		return 0, fmt.Errorf("期限切れセッションの削除に失敗: %w", err)
	}
	return n, nil
}

func (j *CleanupJob) exec(ctx context.Context, query string, args ...interface{}) (int64, error) {
	result, err := j.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("削除件数の取得に失敗: %w", err)
	}
	return n, nil
}

// Start は起動直後に1回、その後intervalごとにRunを実行する。ctxがキャンセルされるまでブロックする。
func (j *CleanupJob) Start(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Hour
	}
	j.runOnce(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			j.runOnce(ctx)
		}
	}
}

func (j *CleanupJob) runOnce(ctx context.Context) {
	if err := j.Run(ctx); err != nil {
		j.logger.Error("cleanup job failed", slog.String("error", err.Error()))
	}
}
