package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/smartslate/polaris/internal/model"
)

// PostgresSubscriptionRepo はPostgreSQLを使用したサブスクリプションリポジトリ。
type PostgresSubscriptionRepo struct {
	db *sql.DB
}

// NewPostgresSubscriptionRepo はPostgresSubscriptionRepoを生成する。
func NewPostgresSubscriptionRepo(db *sql.DB) *PostgresSubscriptionRepo {
	return &PostgresSubscriptionRepo{db: db}
}

const subscriptionColumns = `id, user_id, tier, status, razorpay_subscription_id,
	COALESCE(current_period_start, 'epoch'::timestamptz),
	COALESCE(current_period_end, 'epoch'::timestamptz),
	cancel_at_period_end, created_at, updated_at`

// scanSubscription は1行をSubscriptionに読み取る。
func scanSubscription(row *sql.Row) (*model.Subscription, error) {
	sub := &model.Subscription{}
	err := row.Scan(
		&sub.ID, &sub.UserID, &sub.Tier, &sub.Status, &sub.RazorpaySubscriptionID,
		&sub.CurrentPeriodStart, &sub.CurrentPeriodEnd,
		&sub.CancelAtPeriodEnd, &sub.CreatedAt, &sub.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return sub, nil
}

// FindByID は指定IDのサブスクリプションを取得する。見つからない場合はnilを返す。
func (r *PostgresSubscriptionRepo) FindByID(ctx context.Context, id string) (*model.Subscription, error) {
	sub, err := scanSubscription(r.db.QueryRowContext(ctx,
		`SELECT `+subscriptionColumns+` FROM subscriptions WHERE id = $1`,
		id,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("サブスクリプションの取得に失敗しました: %w", err)
	}
	return sub, nil
}

// FindByRazorpayID はRazorpayのサブスクリプションIDで検索する。見つからない場合はnilを返す。
func (r *PostgresSubscriptionRepo) FindByRazorpayID(ctx context.Context, razorpayID string) (*model.Subscription, error) {
	sub, err := scanSubscription(r.db.QueryRowContext(ctx,
		`SELECT `+subscriptionColumns+` FROM subscriptions WHERE razorpay_subscription_id = $1`,
		razorpayID,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("RazorpayIDによるサブスクリプションの検索に失敗しました: %w", err)
	}
	return sub, nil
}

// FindCurrentByUserID はユーザーの現在有効なサブスクリプションを返す。
// 最終状態（cancelled、expired）以外のものを新しい順に1件返す。見つからない場合はnilを返す。
func (r *PostgresSubscriptionRepo) FindCurrentByUserID(ctx context.Context, userID string) (*model.Subscription, error) {
	sub, err := scanSubscription(r.db.QueryRowContext(ctx,
		`SELECT `+subscriptionColumns+` FROM subscriptions
		 WHERE user_id = $1 AND status NOT IN ('cancelled', 'expired')
		 ORDER BY created_at DESC LIMIT 1`,
		userID,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("現在のサブスクリプションの検索に失敗しました: %w", err)
	}
	return sub, nil
}

// Create はサブスクリプションを作成する。
func (r *PostgresSubscriptionRepo) Create(ctx context.Context, sub *model.Subscription) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO subscriptions
		 (id, user_id, tier, status, razorpay_subscription_id, current_period_start, current_period_end, cancel_at_period_end, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, NULLIF($6, 'epoch'::timestamptz), NULLIF($7, 'epoch'::timestamptz), $8, $9, $10)`,
		sub.ID, sub.UserID, sub.Tier, sub.Status, sub.RazorpaySubscriptionID,
		sub.CurrentPeriodStart, sub.CurrentPeriodEnd, sub.CancelAtPeriodEnd,
		sub.CreatedAt, sub.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("サブスクリプションの作成に失敗しました: %w", err)
	}
	return nil
}

// Update はstatus、期間、cancel_at_period_endを更新する。
func (r *PostgresSubscriptionRepo) Update(ctx context.Context, sub *model.Subscription) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE subscriptions
		 SET status = $2,
		     current_period_start = NULLIF($3, 'epoch'::timestamptz),
		     current_period_end = NULLIF($4, 'epoch'::timestamptz),
		     cancel_at_period_end = $5,
		     updated_at = NOW()
		 WHERE id = $1`,
		sub.ID, sub.Status, sub.CurrentPeriodStart, sub.CurrentPeriodEnd, sub.CancelAtPeriodEnd,
	)
	if err != nil {
		return fmt.Errorf("サブスクリプションの更新に失敗しました: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("更新結果の取得に失敗しました: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("サブスクリプションが見つかりません: %s", sub.ID)
	}
	return nil
}

// UpdateStatus はサブスクリプションの状態のみを更新する。
func (r *PostgresSubscriptionRepo) UpdateStatus(ctx context.Context, id string, status model.SubscriptionStatus) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE subscriptions SET status = $2, updated_at = NOW() WHERE id = $1`,
		id, status,
	)
	if err != nil {
		return fmt.Errorf("サブスクリプション状態の更新に失敗しました: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("更新結果の取得に失敗しました: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("サブスクリプションが見つかりません: %s", id)
	}
	return nil
}

// Delete は指定IDのサブスクリプションを削除する。
func (r *PostgresSubscriptionRepo) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM subscriptions WHERE id = $1`,
		id,
	)
	if err != nil {
		return fmt.Errorf("サブスクリプションの削除に失敗しました: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("削除結果の取得に失敗しました: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("サブスクリプションが見つかりません: %s", id)
	}
	return nil
}

// compile-time interface check
var _ SubscriptionRepository = (*PostgresSubscriptionRepo)(nil)
