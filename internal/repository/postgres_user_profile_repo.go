package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/smartslate/polaris/internal/model"
)

// PostgresUserProfileRepo はPostgreSQLを使用したユーザープロフィールリポジトリ。
type PostgresUserProfileRepo struct {
	db *sql.DB
}

// NewPostgresUserProfileRepo はPostgresUserProfileRepoを生成する。
func NewPostgresUserProfileRepo(db *sql.DB) *PostgresUserProfileRepo {
	return &PostgresUserProfileRepo{db: db}
}

// FindByID は指定IDのプロフィールを取得する。見つからない場合はnilを返す。
func (r *PostgresUserProfileRepo) FindByID(ctx context.Context, id string) (*model.UserProfile, error) {
	p := &model.UserProfile{}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, email, full_name, role, tier, created_at, updated_at
		 FROM user_profiles WHERE id = $1`,
		id,
	).Scan(&p.ID, &p.Email, &p.FullName, &p.Role, &p.Tier, &p.CreatedAt, &p.UpdatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("プロフィールの取得に失敗しました: %w", err)
	}

	return p, nil
}

// Create はプロフィールを作成する。
func (r *PostgresUserProfileRepo) Create(ctx context.Context, p *model.UserProfile) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO user_profiles (id, email, full_name, role, tier, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		p.ID, p.Email, p.FullName, p.Role, p.Tier, p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("プロフィールの作成に失敗しました: %w", err)
	}
	return nil
}

// Update はemail、full_nameを更新する。
func (r *PostgresUserProfileRepo) Update(ctx context.Context, p *model.UserProfile) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE user_profiles SET email = $2, full_name = $3, updated_at = NOW() WHERE id = $1`,
		p.ID, p.Email, p.FullName,
	)
	if err != nil {
		return fmt.Errorf("プロフィールの更新に失敗しました: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("更新結果の取得に失敗しました: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("プロフィールが見つかりません: %s", p.ID)
	}
	return nil
}

// UpdateTier はプロフィールのティアを更新する。
func (r *PostgresUserProfileRepo) UpdateTier(ctx context.Context, id string, tier model.Tier) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE user_profiles SET tier = $2, updated_at = NOW() WHERE id = $1`,
		id, tier,
	)
	if err != nil {
		return fmt.Errorf("ティアの更新に失敗しました: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("更新結果の取得に失敗しました: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("プロフィールが見つかりません: %s", id)
	}
	return nil
}

// DeleteByID は指定IDのプロフィールを削除する。
// 関連レコードはCASCADE削除される。
func (r *PostgresUserProfileRepo) DeleteByID(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM user_profiles WHERE id = $1`,
		id,
	)
	if err != nil {
		return fmt.Errorf("プロフィールの削除に失敗しました: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("削除結果の取得に失敗しました: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("プロフィールが見つかりません: %s", id)
	}
	return nil
}

// compile-time interface check
var _ UserProfileRepository = (*PostgresUserProfileRepo)(nil)
