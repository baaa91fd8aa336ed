package repository

import (
	"testing"
	"time"

	"github.com/smartslate/polaris/internal/model"
)

// PostgresSubscriptionRepoはSubscriptionRepositoryインターフェースを満たすことを検証
func TestPostgresSubscriptionRepo_ImplementsInterface(t *testing.T) {
	var _ SubscriptionRepository = (*PostgresSubscriptionRepo)(nil)
}

// NewPostgresSubscriptionRepoが正しく初期化されることを検証
func TestNewPostgresSubscriptionRepo_Initializes(t *testing.T) {
	repo := NewPostgresSubscriptionRepo(nil)
	if repo == nil {
		t.Fatal("expected non-nil repo")
	}
}

// Subscriptionモデルのフィールドが正しく構築されることを検証
func TestPostgresSubscriptionRepo_SubscriptionModel_Fields(t *testing.T) {
	now := time.Now()
	sub := &model.Subscription{
		ID:                     "sub-id-1",
		UserID:                 "user-id-1",
		Tier:                   model.TierNavigator,
		Status:                 model.SubscriptionStatusActive,
		RazorpaySubscriptionID: "sub_RzpTest001",
		CurrentPeriodStart:     now,
		CurrentPeriodEnd:       now.AddDate(0, 1, 0),
		CreatedAt:              now,
		UpdatedAt:              now,
	}

	if sub.Tier != model.TierNavigator {
		t.Errorf("sub.Tier = %q, want %q", sub.Tier, model.TierNavigator)
	}
	if sub.Status != model.SubscriptionStatusActive {
		t.Errorf("sub.Status = %q, want %q", sub.Status, model.SubscriptionStatusActive)
	}
	if sub.Status.IsTerminal() {
		t.Error("active subscription should not be terminal")
	}
}

// 未設定の請求期間がゼロ値であることを検証
func TestPostgresSubscriptionRepo_SubscriptionModel_ZeroPeriod(t *testing.T) {
	sub := &model.Subscription{
		ID:     "sub-id-2",
		UserID: "user-id-2",
		Tier:   model.TierNavigator,
		Status: model.SubscriptionStatusCreated,
	}

	if !sub.CurrentPeriodStart.IsZero() {
		t.Error("current_period_start should be zero by default")
	}
	if !sub.CurrentPeriodEnd.IsZero() {
		t.Error("current_period_end should be zero by default")
	}
}

// TestPostgresUserProfileRepo_ImplementsInterface はPostgresUserProfileRepoがUserProfileRepositoryを実装することを検証する。
func TestPostgresUserProfileRepo_ImplementsInterface(t *testing.T) {
	// コンパイル時チェック：PostgresUserProfileRepoがUserProfileRepositoryを満たすことを検証
	var _ UserProfileRepository = (*PostgresUserProfileRepo)(nil)
}

// TestPostgresPaymentRepo_ImplementsInterface はPostgresPaymentRepoがPaymentRepositoryを実装することを検証する。
func TestPostgresPaymentRepo_ImplementsInterface(t *testing.T) {
	// コンパイル時チェック：PostgresPaymentRepoがPaymentRepositoryを満たすことを検証
	var _ PaymentRepository = (*PostgresPaymentRepo)(nil)
}
