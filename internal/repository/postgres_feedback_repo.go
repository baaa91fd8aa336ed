package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/smartslate/polaris/internal/model"
)

// PostgresFeedbackRepo はPostgreSQLを使用したフィードバックリポジトリ。
type PostgresFeedbackRepo struct {
	db *sql.DB
}

// NewPostgresFeedbackRepo はPostgresFeedbackRepoを生成する。
func NewPostgresFeedbackRepo(db *sql.DB) *PostgresFeedbackRepo {
	return &PostgresFeedbackRepo{db: db}
}

const feedbackColumns = `id, user_id, category, message, status,
	COALESCE(response, ''), COALESCE(responded_by, ''), created_at, responded_at`

// FindByID は指定IDのフィードバックを取得する。見つからない場合はnilを返す。
func (r *PostgresFeedbackRepo) FindByID(ctx context.Context, id string) (*model.FeedbackSubmission, error) {
	fb := &model.FeedbackSubmission{}
	err := r.db.QueryRowContext(ctx,
		`SELECT `+feedbackColumns+` FROM feedback_submissions WHERE id = $1`,
		id,
	).Scan(&fb.ID, &fb.UserID, &fb.Category, &fb.Message, &fb.Status, &fb.Response, &fb.RespondedBy, &fb.CreatedAt, &fb.RespondedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("フィードバックの取得に失敗しました: %w", err)
	}

	return fb, nil
}

// Create はフィードバックを作成する。
func (r *PostgresFeedbackRepo) Create(ctx context.Context, fb *model.FeedbackSubmission) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO feedback_submissions (id, user_id, category, message, status, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		fb.ID, fb.UserID, fb.Category, fb.Message, fb.Status, fb.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("フィードバックの作成に失敗しました: %w", err)
	}
	return nil
}

// ListByStatus は指定状態のフィードバック一覧を新しい順に返す。
// statusが空文字の場合は全件を返す。
func (r *PostgresFeedbackRepo) ListByStatus(ctx context.Context, status model.FeedbackStatus, limit int) ([]*model.FeedbackSubmission, error) {
	var (
		rows *sql.Rows
		err  error
	)
	if status == "" {
		rows, err = r.db.QueryContext(ctx,
			`SELECT `+feedbackColumns+` FROM feedback_submissions ORDER BY created_at DESC LIMIT $1`,
			limit,
		)
	} else {
		rows, err = r.db.QueryContext(ctx,
			`SELECT `+feedbackColumns+` FROM feedback_submissions WHERE status = $1 ORDER BY created_at DESC LIMIT $2`,
			status, limit,
		)
	}
	if err != nil {
		return nil, fmt.Errorf("フィードバック一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var submissions []*model.FeedbackSubmission
	for rows.Next() {
		fb := &model.FeedbackSubmission{}
		if err := rows.Scan(&fb.ID, &fb.UserID, &fb.Category, &fb.Message, &fb.Status, &fb.Response, &fb.RespondedBy, &fb.CreatedAt, &fb.RespondedAt); err != nil {
			return nil, fmt.Errorf("フィードバック行の読み取りに失敗しました: %w", err)
		}
		submissions = append(submissions, fb)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("フィードバック一覧の走査に失敗しました: %w", err)
	}
	return submissions, nil
}

// Respond はフィードバックに返信を記録し、状態をrespondedに更新する。
func (r *PostgresFeedbackRepo) Respond(ctx context.Context, id, response, respondedBy string, respondedAt time.Time) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE feedback_submissions
		 SET status = $2, response = $3, responded_by = $4, responded_at = $5
		 WHERE id = $1`,
		id, model.FeedbackStatusResponded, response, respondedBy, respondedAt,
	)
	if err != nil {
		return fmt.Errorf("フィードバックへの返信に失敗しました: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("更新結果の取得に失敗しました: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("フィードバックが見つかりません: %s", id)
	}
	return nil
}

// compile-time interface check
var _ FeedbackRepository = (*PostgresFeedbackRepo)(nil)
