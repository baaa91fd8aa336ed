package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/smartslate/polaris/internal/model"
)

// PostgresWebhookEventRepo はPostgreSQLを使用したWebhookイベントキューのリポジトリ。
type PostgresWebhookEventRepo struct {
	db *sql.DB
}

// NewPostgresWebhookEventRepo はPostgresWebhookEventRepoを生成する。
func NewPostgresWebhookEventRepo(db *sql.DB) *PostgresWebhookEventRepo {
	return &PostgresWebhookEventRepo{db: db}
}

// Insert はWebhookイベントを未処理状態で登録する。
// provider_event_idが重複する場合は登録せずfalseを返す。
func (r *PostgresWebhookEventRepo) Insert(ctx context.Context, event *model.WebhookEvent) (bool, error) {
	result, err := r.db.ExecContext(ctx,
		`INSERT INTO webhook_events (id, provider_event_id, event_type, payload, status, attempts, last_error, next_attempt_at, received_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 ON CONFLICT (provider_event_id) DO NOTHING`,
		event.ID, event.ProviderEventID, event.EventType, event.Payload,
		event.Status, event.Attempts, event.LastError, event.NextAttemptAt, event.ReceivedAt,
	)
	if err != nil {
		return false, fmt.Errorf("Webhookイベントの登録に失敗しました: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("登録結果の取得に失敗しました: %w", err)
	}
	return rowsAffected > 0, nil
}

// ListDue は処理期限が到来した未処理イベントを取得する。
// FOR UPDATE SKIP LOCKEDで複数ワーカーの重複取得を防ぐ。
func (r *PostgresWebhookEventRepo) ListDue(ctx context.Context, limit int) ([]*model.WebhookEvent, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, provider_event_id, event_type, payload, status, attempts, COALESCE(last_error, ''), next_attempt_at, received_at, processed_at
		 FROM webhook_events
		 WHERE status = 'pending' AND next_attempt_at <= NOW()
		 ORDER BY next_attempt_at ASC
		 LIMIT $1
		 FOR UPDATE SKIP LOCKED`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("処理対象イベントの取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var events []*model.WebhookEvent
	for rows.Next() {
		event := &model.WebhookEvent{}
		if err := rows.Scan(
			&event.ID, &event.ProviderEventID, &event.EventType, &event.Payload,
			&event.Status, &event.Attempts, &event.LastError, &event.NextAttemptAt,
			&event.ReceivedAt, &event.ProcessedAt,
		); err != nil {
			return nil, fmt.Errorf("イベント行の読み取りに失敗しました: %w", err)
		}
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("イベント一覧の走査に失敗しました: %w", err)
	}
	return events, nil
}

// MarkProcessed はイベントを処理完了にする。
func (r *PostgresWebhookEventRepo) MarkProcessed(ctx context.Context, id string, processedAt time.Time) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE webhook_events SET status = 'processed', processed_at = $2 WHERE id = $1`,
		id, processedAt,
	)
	if err != nil {
		return fmt.Errorf("イベントの完了記録に失敗しました: %w", err)
	}
	return checkEventUpdated(result, id)
}

// MarkRetry は処理失敗を記録し、次回試行時刻を設定する。
func (r *PostgresWebhookEventRepo) MarkRetry(ctx context.Context, id string, attempts int, lastError string, nextAttemptAt time.Time) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE webhook_events SET attempts = $2, last_error = $3, next_attempt_at = $4 WHERE id = $1`,
		id, attempts, lastError, nextAttemptAt,
	)
	if err != nil {
		return fmt.Errorf("イベントの再試行記録に失敗しました: %w", err)
	}
	return checkEventUpdated(result, id)
}

// MarkFailed はリトライ上限に達したイベントを失敗状態にする。
func (r *PostgresWebhookEventRepo) MarkFailed(ctx context.Context, id string, attempts int, lastError string) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE webhook_events SET status = 'failed', attempts = $2, last_error = $3 WHERE id = $1`,
		id, attempts, lastError,
	)
	if err != nil {
		return fmt.Errorf("イベントの失敗記録に失敗しました: %w", err)
	}
	return checkEventUpdated(result, id)
}

// checkEventUpdated は更新対象のイベントが存在したかを検証する。
func checkEventUpdated(result sql.Result, id string) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("更新結果の取得に失敗しました: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("Webhookイベントが見つかりません: %s", id)
	}
	return nil
}

// compile-time interface check
var _ WebhookEventRepository = (*PostgresWebhookEventRepo)(nil)
