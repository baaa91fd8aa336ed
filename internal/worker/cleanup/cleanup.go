// Package cleanup は古いデータの自動削除ジョブを提供する。
// 処理済みWebhookイベントと放置されたドラフトブループリントを
// 日次バッチで削除する。
package cleanup

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"
)

// Executor はSQLのExecContextを抽象化するインターフェース。
// *sql.DB や *sql.Tx を受け付けることができる。
type Executor interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

// CleanupJob は保持期間を超過したデータの自動削除ジョブ。
// 日次実行のバッチジョブとして設計されており、冪等な削除処理を保証する。
type CleanupJob struct {
	db                 Executor
	logger             *slog.Logger
	EventRetentionDays int // 処理済みWebhookイベントの保持日数（デフォルト: 90）
	DraftRetentionDays int // 未更新ドラフトの保持日数（デフォルト: 180）
}

// NewCleanupJob は新しいCleanupJobを生成する。
func NewCleanupJob(db Executor, logger *slog.Logger) *CleanupJob {
	return &CleanupJob{
		db:                 db,
		logger:             logger,
		EventRetentionDays: 90,
		DraftRetentionDays: 180,
	}
}

// Run は保持期間を超過したデータを削除する。
// 冪等: 削除対象がない場合でもエラーにならない。
func (j *CleanupJob) Run(ctx context.Context) error {
	start := time.Now()

	deletedEvents, err := j.deleteProcessedEvents(ctx)
	if err != nil {
		return err
	}

	deletedDrafts, err := j.deleteStaleDrafts(ctx)
	if err != nil {
		return err
	}

	duration := time.Since(start)
	j.logger.Info("クリーンアップジョブが完了しました",
		slog.Int64("deleted_events", deletedEvents),
		slog.Int64("deleted_drafts", deletedDrafts),
		slog.Float64("duration_ms", float64(duration.Milliseconds())),
	)

	return nil
}

// Start は指定間隔のティッカーでジョブを定期実行する。
// コンテキストがキャンセルされるまで実行を継続する。
func (j *CleanupJob) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	j.logger.Info("クリーンアップジョブを開始しました",
		slog.Duration("interval", interval),
	)

	for {
		select {
		case <-ctx.Done():
			j.logger.Info("クリーンアップジョブを停止しました")
			return
		case <-ticker.C:
			if err := j.Run(ctx); err != nil {
				j.logger.Error("クリーンアップジョブの実行に失敗しました",
					slog.String("error", err.Error()),
				)
			}
		}
	}
}

// deleteProcessedEvents は保持期間を超過した処理済みWebhookイベントを削除する。
func (j *CleanupJob) deleteProcessedEvents(ctx context.Context) (int64, error) {
	interval := fmt.Sprintf("%d days", j.EventRetentionDays)

	query := `DELETE FROM webhook_events WHERE status = 'processed' AND processed_at < now() - $1::interval`
	result, err := j.db.ExecContext(ctx, query, interval)
	if err != nil {
		j.logger.Error("Webhookイベントのクリーンアップに失敗しました",
			slog.String("error", err.Error()),
			slog.Int("retention_days", j.EventRetentionDays),
		)
		return 0, fmt.Errorf("webhookイベントのクリーンアップに失敗: %w", err)
	}

	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("削除件数の取得に失敗: %w", err)
	}
	return deleted, nil
}

// deleteStaleDrafts は保持期間を超過して放置されたドラフトブループリントを削除する。
func (j *CleanupJob) deleteStaleDrafts(ctx context.Context) (int64, error) {
	interval := fmt.Sprintf("%d days", j.DraftRetentionDays)

	query := `DELETE FROM blueprints WHERE status = 'draft' AND updated_at < now() - $1::interval`
	result, err := j.db.ExecContext(ctx, query, interval)
	if err != nil {
		j.logger.Error("ドラフトのクリーンアップに失敗しました",
			slog.String("error", err.Error()),
			slog.Int("retention_days", j.DraftRetentionDays),
		)
		return 0, fmt.Errorf("ドラフトのクリーンアップに失敗: %w", err)
	}

	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("削除件数の取得に失敗: %w", err)
	}
	return deleted, nil
}
