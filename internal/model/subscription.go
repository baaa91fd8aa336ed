package model

import "time"

// SubscriptionStatus はサブスクリプションのライフサイクル状態を表す。
// Razorpay側の状態遷移（created → active → halted/cancelled/completed）に対応する。
type SubscriptionStatus string

const (
	// SubscriptionStatusCreated は決済ゲートウェイで作成済み、初回課金待ちの状態。
	SubscriptionStatusCreated SubscriptionStatus = "created"
	// SubscriptionStatusActive は課金が成立し有効な状態。
	SubscriptionStatusActive SubscriptionStatus = "active"
	// SubscriptionStatusHalted は課金失敗が続き停止された状態。
	SubscriptionStatusHalted SubscriptionStatus = "halted"
	// SubscriptionStatusCancelling はキャンセル処理中の状態。
	SubscriptionStatusCancelling SubscriptionStatus = "cancelling"
	// SubscriptionStatusCancelled はキャンセル済みの状態。
	SubscriptionStatusCancelled SubscriptionStatus = "cancelled"
	// SubscriptionStatusExpired は契約期間が満了した状態。
	SubscriptionStatusExpired SubscriptionStatus = "expired"
)

// IsTerminal はこれ以上状態遷移しない最終状態かどうかを返す。
func (s SubscriptionStatus) IsTerminal() bool {
	return s == SubscriptionStatusCancelled || s == SubscriptionStatusExpired
}

// Subscription はユーザーの有料ティア契約を表す。
type Subscription struct {
	ID                     string
	UserID                 string
	Tier                   Tier
	Status                 SubscriptionStatus
	RazorpaySubscriptionID string
	CurrentPeriodStart     time.Time
	CurrentPeriodEnd       time.Time
	CancelAtPeriodEnd      bool
	CreatedAt              time.Time
	UpdatedAt              time.Time
}
