// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"time"

	"github.com/smartslate/polaris/internal/model"
)

// UserProfileRepository はユーザープロフィールの永続化インターフェース。
type UserProfileRepository interface {
	// FindByID は指定IDのプロフィールを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.UserProfile, error)

	// Create はプロフィールを作成する。
	Create(ctx context.Context, profile *model.UserProfile) error

	// Update はemail、full_nameを更新する。
	Update(ctx context.Context, profile *model.UserProfile) error

	// UpdateTier はプロフィールのティアを更新する。
	UpdateTier(ctx context.Context, id string, tier model.Tier) error

	// DeleteByID は指定IDのプロフィールを削除する。
	// 関連するsubscriptions、payments、blueprints、feedback_submissionsはCASCADE削除される。
	DeleteByID(ctx context.Context, id string) error
}

// SubscriptionRepository はサブスクリプションの永続化インターフェース。
type SubscriptionRepository interface {
	// FindByID は指定IDのサブスクリプションを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Subscription, error)

	// FindByRazorpayID はRazorpayのサブスクリプションIDで検索する。見つからない場合はnilを返す。
	FindByRazorpayID(ctx context.Context, razorpaySubscriptionID string) (*model.Subscription, error)

	// FindCurrentByUserID はユーザーの現在有効な（最終状態でない）サブスクリプションを返す。
	// 見つからない場合はnilを返す。
	FindCurrentByUserID(ctx context.Context, userID string) (*model.Subscription, error)

	// Create はサブスクリプションを作成する。
	Create(ctx context.Context, sub *model.Subscription) error

	// Update はstatus、期間、cancel_at_period_endを更新する。
	Update(ctx context.Context, sub *model.Subscription) error

	// UpdateStatus はサブスクリプションの状態のみを更新する。
	UpdateStatus(ctx context.Context, id string, status model.SubscriptionStatus) error

	// Delete は指定IDのサブスクリプションを削除する。
	Delete(ctx context.Context, id string) error
}

// PaymentRepository は決済履歴の永続化インターフェース。
type PaymentRepository interface {
	// FindByRazorpayPaymentID はRazorpayの決済IDで検索する。見つからない場合はnilを返す。
	FindByRazorpayPaymentID(ctx context.Context, razorpayPaymentID string) (*model.Payment, error)

	// Create は決済レコードを作成する。
	Create(ctx context.Context, payment *model.Payment) error

	// UpdateStatus は決済の状態を更新する。
	UpdateStatus(ctx context.Context, id string, status model.PaymentStatus) error

	// ListByUserID はユーザーの決済履歴を新しい順に返す。
	ListByUserID(ctx context.Context, userID string, limit int) ([]*model.Payment, error)
}

// BlueprintRepository はブループリントの永続化インターフェース。
type BlueprintRepository interface {
	// FindByID は指定IDのブループリントを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Blueprint, error)

	// Create はブループリントを作成する。
	Create(ctx context.Context, bp *model.Blueprint) error

	// Update はタイトル、状態、設問、回答、本文、生成回数を更新する。
	Update(ctx context.Context, bp *model.Blueprint) error

	// Delete は指定IDのブループリントを削除する。
	Delete(ctx context.Context, id string) error

	// ListByUserID はユーザーのブループリント一覧を新しい順に返す。
	ListByUserID(ctx context.Context, userID string) ([]*model.Blueprint, error)

	// CountCreatedSince は指定日時以降にユーザーが作成したブループリント数を返す。
	// ティアごとの月間作成上限の判定に使用する。
	CountCreatedSince(ctx context.Context, userID string, since time.Time) (int, error)

	// SumGenerationsSince は指定日時以降に作成されたブループリントのAI生成回数の合計を返す。
	// ティアごとの月間生成上限の判定に使用する。
	SumGenerationsSince(ctx context.Context, userID string, since time.Time) (int, error)
}

// FeedbackRepository はフィードバックの永続化インターフェース。
type FeedbackRepository interface {
	// FindByID は指定IDのフィードバックを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.FeedbackSubmission, error)

	// Create はフィードバックを作成する。
	Create(ctx context.Context, fb *model.FeedbackSubmission) error

	// ListByStatus は指定状態のフィードバック一覧を新しい順に返す。
	// statusが空文字の場合は全件を返す。
	ListByStatus(ctx context.Context, status model.FeedbackStatus, limit int) ([]*model.FeedbackSubmission, error)

	// Respond はフィードバックに返信を記録し、状態をrespondedに更新する。
	Respond(ctx context.Context, id, response, respondedBy string, respondedAt time.Time) error
}

// WebhookEventRepository はWebhookイベントキューの永続化インターフェース。
type WebhookEventRepository interface {
	// Insert はWebhookイベントを未処理状態で登録する。
	// provider_event_idが重複する場合は登録せずfalseを返す（冪等な受信）。
	Insert(ctx context.Context, event *model.WebhookEvent) (bool, error)

	// ListDue は処理期限が到来した未処理イベントを取得する。
	// FOR UPDATE SKIP LOCKEDで複数ワーカーの重複取得を防ぐ。
	ListDue(ctx context.Context, limit int) ([]*model.WebhookEvent, error)

	// MarkProcessed はイベントを処理完了にする。
	MarkProcessed(ctx context.Context, id string, processedAt time.Time) error

	// MarkRetry は処理失敗を記録し、次回試行時刻を設定する。
	MarkRetry(ctx context.Context, id string, attempts int, lastError string, nextAttemptAt time.Time) error

	// MarkFailed はリトライ上限に達したイベントを失敗状態にする。
	MarkFailed(ctx context.Context, id string, attempts int, lastError string) error
}
