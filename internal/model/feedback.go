package model

import "time"

// FeedbackStatus はフィードバックの対応状態を表す。
type FeedbackStatus string

const (
	// FeedbackStatusOpen は未対応のフィードバック。
	FeedbackStatusOpen FeedbackStatus = "open"
	// FeedbackStatusResponded は管理者が返信済みのフィードバック。
	FeedbackStatusResponded FeedbackStatus = "responded"
)

// FeedbackCategory はフィードバックの分類を表す。
type FeedbackCategory string

const (
	// FeedbackCategoryBug は不具合報告。
	FeedbackCategoryBug FeedbackCategory = "bug"
	// FeedbackCategoryFeature は機能要望。
	FeedbackCategoryFeature FeedbackCategory = "feature"
	// FeedbackCategoryBilling は課金に関する問い合わせ。
	FeedbackCategoryBilling FeedbackCategory = "billing"
	// FeedbackCategoryOther はその他。
	FeedbackCategoryOther FeedbackCategory = "other"
)

// IsValidFeedbackCategory はカテゴリが定義済みのものかを検証する。
func IsValidFeedbackCategory(c FeedbackCategory) bool {
	switch c {
	case FeedbackCategoryBug, FeedbackCategoryFeature, FeedbackCategoryBilling, FeedbackCategoryOther:
		return true
	default:
		return false
	}
}

// FeedbackSubmission はユーザーから送信されたフィードバックを表す。
// Messageは保存前にサニタイズされる。
type FeedbackSubmission struct {
	ID          string
	UserID      string
	Category    FeedbackCategory
	Message     string
	Status      FeedbackStatus
	Response    string
	RespondedBy string
	CreatedAt   time.Time
	RespondedAt *time.Time
}
