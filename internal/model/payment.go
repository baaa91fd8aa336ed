package model

import "time"

// PaymentStatus は決済の状態を表す。
type PaymentStatus string

const (
	// PaymentStatusCreated は決済レコード作成済み、確定待ちの状態。
	PaymentStatusCreated PaymentStatus = "created"
	// PaymentStatusCaptured は決済が確定した状態。
	PaymentStatusCaptured PaymentStatus = "captured"
	// PaymentStatusFailed は決済が失敗した状態。
	PaymentStatusFailed PaymentStatus = "failed"
	// PaymentStatusRefunded は返金済みの状態。
	PaymentStatusRefunded PaymentStatus = "refunded"
)

// Payment は決済ゲートウェイ経由の1回の決済を表す。
// 金額はpaisa（1/100ルピー）単位で保持する。
type Payment struct {
	ID                string
	UserID            string
	RazorpayPaymentID string
	RazorpayOrderID   string
	AmountPaise       int64
	Currency          string
	Status            PaymentStatus
	Method            string
	CreatedAt         time.Time
}

// WebhookEventStatus はWebhookイベントの処理状態を表す。
type WebhookEventStatus string

const (
	// WebhookEventStatusPending は未処理のイベント。
	WebhookEventStatusPending WebhookEventStatus = "pending"
	// WebhookEventStatusProcessed は処理完了したイベント。
	WebhookEventStatusProcessed WebhookEventStatus = "processed"
	// WebhookEventStatusFailed はリトライ上限に達し処理を断念したイベント。
	WebhookEventStatusFailed WebhookEventStatus = "failed"
)

// WebhookEvent は決済ゲートウェイから受信した課金状態変更通知を表す。
// HTTPハンドラーは署名検証と永続化のみを行い、
// 状態反映はワーカーが非同期に実行する。
type WebhookEvent struct {
	ID              string
	ProviderEventID string
	EventType       string
	Payload         []byte
	Status          WebhookEventStatus
	Attempts        int
	LastError       string
	NextAttemptAt   time.Time
	ReceivedAt      time.Time
	ProcessedAt     *time.Time
}
