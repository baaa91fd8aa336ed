package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/smartslate/polaris/internal/model"
)

// PostgresPaymentRepo はPostgreSQLを使用した決済リポジトリ。
type PostgresPaymentRepo struct {
	db *sql.DB
}

// NewPostgresPaymentRepo はPostgresPaymentRepoを生成する。
func NewPostgresPaymentRepo(db *sql.DB) *PostgresPaymentRepo {
	return &PostgresPaymentRepo{db: db}
}

// FindByRazorpayPaymentID はRazorpayの決済IDで検索する。見つからない場合はnilを返す。
func (r *PostgresPaymentRepo) FindByRazorpayPaymentID(ctx context.Context, razorpayPaymentID string) (*model.Payment, error) {
	p := &model.Payment{}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, user_id, razorpay_payment_id, razorpay_order_id, amount_paise, currency, status, method, created_at
		 FROM payments WHERE razorpay_payment_id = $1`,
		razorpayPaymentID,
	).Scan(&p.ID, &p.UserID, &p.RazorpayPaymentID, &p.RazorpayOrderID, &p.AmountPaise, &p.Currency, &p.Status, &p.Method, &p.CreatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("決済の検索に失敗しました: %w", err)
	}

	return p, nil
}

// Create は決済レコードを作成する。
func (r *PostgresPaymentRepo) Create(ctx context.Context, p *model.Payment) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO payments (id, user_id, razorpay_payment_id, razorpay_order_id, amount_paise, currency, status, method, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		p.ID, p.UserID, p.RazorpayPaymentID, p.RazorpayOrderID, p.AmountPaise, p.Currency, p.Status, p.Method, p.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("決済レコードの作成に失敗しました: %w", err)
	}
	return nil
}

// UpdateStatus は決済の状態を更新する。
func (r *PostgresPaymentRepo) UpdateStatus(ctx context.Context, id string, status model.PaymentStatus) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE payments SET status = $2 WHERE id = $1`,
		id, status,
	)
	if err != nil {
		return fmt.Errorf("決済状態の更新に失敗しました: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("更新結果の取得に失敗しました: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("決済が見つかりません: %s", id)
	}
	return nil
}

// ListByUserID はユーザーの決済履歴を新しい順に返す。
func (r *PostgresPaymentRepo) ListByUserID(ctx context.Context, userID string, limit int) ([]*model.Payment, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, user_id, razorpay_payment_id, razorpay_order_id, amount_paise, currency, status, method, created_at
		 FROM payments WHERE user_id = $1 ORDER BY created_at DESC LIMIT $2`,
		userID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("決済履歴の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var payments []*model.Payment
	for rows.Next() {
		p := &model.Payment{}
		if err := rows.Scan(&p.ID, &p.UserID, &p.RazorpayPaymentID, &p.RazorpayOrderID, &p.AmountPaise, &p.Currency, &p.Status, &p.Method, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("決済行の読み取りに失敗しました: %w", err)
		}
		payments = append(payments, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("決済履歴の走査に失敗しました: %w", err)
	}
	return payments, nil
}

// compile-time interface check
var _ PaymentRepository = (*PostgresPaymentRepo)(nil)
