package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/smartslate/polaris/internal/model"
)

// PostgresBlueprintRepo はPostgreSQLを使用したブループリントリポジトリ。
// 設問と回答はJSONBカラムに格納する。
type PostgresBlueprintRepo struct {
	db *sql.DB
}

// NewPostgresBlueprintRepo はPostgresBlueprintRepoを生成する。
func NewPostgresBlueprintRepo(db *sql.DB) *PostgresBlueprintRepo {
	return &PostgresBlueprintRepo{db: db}
}

// FindByID は指定IDのブループリントを取得する。見つからない場合はnilを返す。
func (r *PostgresBlueprintRepo) FindByID(ctx context.Context, id string) (*model.Blueprint, error) {
	bp := &model.Blueprint{}
	var questionsJSON, answersJSON []byte
	err := r.db.QueryRowContext(ctx,
		`SELECT id, user_id, title, status, questions, answers, content, generation_count, created_at, updated_at
		 FROM blueprints WHERE id = $1`,
		id,
	).Scan(&bp.ID, &bp.UserID, &bp.Title, &bp.Status, &questionsJSON, &answersJSON, &bp.Content, &bp.GenerationCount, &bp.CreatedAt, &bp.UpdatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("ブループリントの取得に失敗しました: %w", err)
	}

	if err := json.Unmarshal(questionsJSON, &bp.Questions); err != nil {
		return nil, fmt.Errorf("設問の読み取りに失敗しました: %w", err)
	}
	if err := json.Unmarshal(answersJSON, &bp.Answers); err != nil {
		return nil, fmt.Errorf("回答の読み取りに失敗しました: %w", err)
	}

	return bp, nil
}

// Create はブループリントを作成する。
func (r *PostgresBlueprintRepo) Create(ctx context.Context, bp *model.Blueprint) error {
	questionsJSON, answersJSON, err := marshalWizardState(bp)
	if err != nil {
		return err
	}

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO blueprints (id, user_id, title, status, questions, answers, content, generation_count, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		bp.ID, bp.UserID, bp.Title, bp.Status, questionsJSON, answersJSON, bp.Content, bp.GenerationCount, bp.CreatedAt, bp.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("ブループリントの作成に失敗しました: %w", err)
	}
	return nil
}

// Update はタイトル、状態、設問、回答、本文、生成回数を更新する。
func (r *PostgresBlueprintRepo) Update(ctx context.Context, bp *model.Blueprint) error {
	questionsJSON, answersJSON, err := marshalWizardState(bp)
	if err != nil {
		return err
	}

	result, err := r.db.ExecContext(ctx,
		`UPDATE blueprints
		 SET title = $2, status = $3, questions = $4, answers = $5, content = $6, generation_count = $7, updated_at = NOW()
		 WHERE id = $1`,
		bp.ID, bp.Title, bp.Status, questionsJSON, answersJSON, bp.Content, bp.GenerationCount,
	)
	if err != nil {
		return fmt.Errorf("ブループリントの更新に失敗しました: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("更新結果の取得に失敗しました: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("ブループリントが見つかりません: %s", bp.ID)
	}
	return nil
}

// Delete は指定IDのブループリントを削除する。
func (r *PostgresBlueprintRepo) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM blueprints WHERE id = $1`,
		id,
	)
	if err != nil {
		return fmt.Errorf("ブループリントの削除に失敗しました: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("削除結果の取得に失敗しました: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("ブループリントが見つかりません: %s", id)
	}
	return nil
}

// ListByUserID はユーザーのブループリント一覧を新しい順に返す。
func (r *PostgresBlueprintRepo) ListByUserID(ctx context.Context, userID string) ([]*model.Blueprint, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, user_id, title, status, questions, answers, content, generation_count, created_at, updated_at
		 FROM blueprints WHERE user_id = $1 ORDER BY created_at DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("ブループリント一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var blueprints []*model.Blueprint
	for rows.Next() {
		bp := &model.Blueprint{}
		var questionsJSON, answersJSON []byte
		if err := rows.Scan(&bp.ID, &bp.UserID, &bp.Title, &bp.Status, &questionsJSON, &answersJSON, &bp.Content, &bp.GenerationCount, &bp.CreatedAt, &bp.UpdatedAt); err != nil {
			return nil, fmt.Errorf("ブループリント行の読み取りに失敗しました: %w", err)
		}
		if err := json.Unmarshal(questionsJSON, &bp.Questions); err != nil {
			return nil, fmt.Errorf("設問の読み取りに失敗しました: %w", err)
		}
		if err := json.Unmarshal(answersJSON, &bp.Answers); err != nil {
			return nil, fmt.Errorf("回答の読み取りに失敗しました: %w", err)
		}
		blueprints = append(blueprints, bp)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ブループリント一覧の走査に失敗しました: %w", err)
	}
	return blueprints, nil
}

// CountCreatedSince は指定日時以降にユーザーが作成したブループリント数を返す。
func (r *PostgresBlueprintRepo) CountCreatedSince(ctx context.Context, userID string, since time.Time) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM blueprints WHERE user_id = $1 AND created_at >= $2`,
		userID, since,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("ブループリント作成数の集計に失敗しました: %w", err)
	}
	return count, nil
}

// SumGenerationsSince は指定日時以降に作成されたブループリントのAI生成回数の合計を返す。
func (r *PostgresBlueprintRepo) SumGenerationsSince(ctx context.Context, userID string, since time.Time) (int, error) {
	var total int
	err := r.db.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(generation_count), 0) FROM blueprints WHERE user_id = $1 AND created_at >= $2`,
		userID, since,
	).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("AI生成回数の集計に失敗しました: %w", err)
	}
	return total, nil
}

// marshalWizardState は設問と回答をJSONBカラム用にエンコードする。
// nilスライスは空配列として格納する。
func marshalWizardState(bp *model.Blueprint) ([]byte, []byte, error) {
	questions := bp.Questions
	if questions == nil {
		questions = []model.WizardQuestion{}
	}
	answers := bp.Answers
	if answers == nil {
		answers = []model.WizardAnswer{}
	}

	questionsJSON, err := json.Marshal(questions)
	if err != nil {
		return nil, nil, fmt.Errorf("設問のエンコードに失敗しました: %w", err)
	}
	answersJSON, err := json.Marshal(answers)
	if err != nil {
		return nil, nil, fmt.Errorf("回答のエンコードに失敗しました: %w", err)
	}
	return questionsJSON, answersJSON, nil
}

// compile-time interface check
var _ BlueprintRepository = (*PostgresBlueprintRepo)(nil)
