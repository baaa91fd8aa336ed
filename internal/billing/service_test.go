package billing

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/smartslate/polaris/internal/model"
	"github.com/smartslate/polaris/internal/razorpay"
)

// TestInitiateUpgrade_Success はアップグレードサガが全ステップ完了することを検証する。
func TestInitiateUpgrade_Success(t *testing.T) {
	var createdSub *model.Subscription
	subRepo := &mockSubscriptionRepo{
		createFunc: func(ctx context.Context, sub *model.Subscription) error {
			createdSub = sub
			return nil
		},
	}
	service := newTestService(subRepo, &mockUserProfileRepo{}, &mockPaymentRepo{}, &mockGateway{})

	result, err := service.InitiateUpgrade(context.Background(), "user-1", model.TierNavigator)
	if err != nil {
		t.Fatalf("InitiateUpgrade() error = %v", err)
	}

	if result.CheckoutURL != "https://rzp.io/i/mock" {
		t.Errorf("CheckoutURL = %q, want mock short URL", result.CheckoutURL)
	}
	if createdSub == nil {
		t.Fatal("subscription should be persisted")
	}
	if createdSub.Tier != model.TierNavigator {
		t.Errorf("tier = %q, want %q", createdSub.Tier, model.TierNavigator)
	}
	if createdSub.Status != model.SubscriptionStatusCreated {
		t.Errorf("status = %q, want %q", createdSub.Status, model.SubscriptionStatusCreated)
	}
	if createdSub.RazorpaySubscriptionID != "sub_RzpMock" {
		t.Errorf("razorpay ID = %q, want %q", createdSub.RazorpaySubscriptionID, "sub_RzpMock")
	}
}

// TestInitiateUpgrade_InvalidTier はプランのないティアが拒否されることを検証する。
func TestInitiateUpgrade_InvalidTier(t *testing.T) {
	service := newTestService(&mockSubscriptionRepo{}, &mockUserProfileRepo{}, &mockPaymentRepo{}, &mockGateway{})

	_, err := service.InitiateUpgrade(context.Background(), "user-1", model.TierExplorer)

	var apiErr *model.APIError
	if !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodeInvalidTier {
		t.Errorf("error = %v, want INVALID_TIER", err)
	}
}

// TestInitiateUpgrade_DuplicateSubscription は既存サブスクリプションがある場合に拒否されることを検証する。
func TestInitiateUpgrade_DuplicateSubscription(t *testing.T) {
	subRepo := &mockSubscriptionRepo{
		findCurrentByUserIDFunc: func(ctx context.Context, userID string) (*model.Subscription, error) {
			return &model.Subscription{ID: "existing", UserID: userID, Status: model.SubscriptionStatusActive}, nil
		},
	}
	gateway := &mockGateway{
		createSubscriptionFunc: func(ctx context.Context, planID string, totalCount int, notes map[string]string) (*razorpay.Subscription, error) {
			t.Error("gateway should not be called when validation fails")
			return nil, nil
		},
	}
	service := newTestService(subRepo, &mockUserProfileRepo{}, &mockPaymentRepo{}, gateway)

	_, err := service.InitiateUpgrade(context.Background(), "user-1", model.TierNavigator)

	var apiErr *model.APIError
	if !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodeDuplicateSubscription {
		t.Errorf("error = %v, want DUPLICATE_SUBSCRIPTION", err)
	}
}

// TestInitiateUpgrade_PersistFailureCancelsGatewaySubscription は
// 行の保存失敗時にゲートウェイ側のサブスクリプションが補償解約されることを検証する。
func TestInitiateUpgrade_PersistFailureCancelsGatewaySubscription(t *testing.T) {
	cancelledIDs := []string{}
	gateway := &mockGateway{
		cancelSubscriptionFunc: func(ctx context.Context, subscriptionID string, cancelAtCycleEnd bool) (*razorpay.Subscription, error) {
			cancelledIDs = append(cancelledIDs, subscriptionID)
			return &razorpay.Subscription{ID: subscriptionID, Status: "cancelled"}, nil
		},
	}
	subRepo := &mockSubscriptionRepo{
		createFunc: func(ctx context.Context, sub *model.Subscription) error {
			return errors.New("insert failed")
		},
	}
	service := newTestService(subRepo, &mockUserProfileRepo{}, &mockPaymentRepo{}, gateway)

	_, err := service.InitiateUpgrade(context.Background(), "user-1", model.TierNavigator)
	if err == nil {
		t.Fatal("expected error from persist step")
	}

	if len(cancelledIDs) != 1 || cancelledIDs[0] != "sub_RzpMock" {
		t.Errorf("cancelled IDs = %v, want [sub_RzpMock]", cancelledIDs)
	}
}

// TestCancelSubscription_AtPeriodEnd は期間終了時解約でティアが維持されることを検証する。
func TestCancelSubscription_AtPeriodEnd(t *testing.T) {
	var updated *model.Subscription
	tierChanged := false
	subRepo := &mockSubscriptionRepo{
		findCurrentByUserIDFunc: func(ctx context.Context, userID string) (*model.Subscription, error) {
			return &model.Subscription{
				ID:                     "sub-1",
				UserID:                 userID,
				Tier:                   model.TierNavigator,
				Status:                 model.SubscriptionStatusActive,
				RazorpaySubscriptionID: "sub_Rzp001",
			}, nil
		},
		updateFunc: func(ctx context.Context, sub *model.Subscription) error {
			updated = sub
			return nil
		},
	}
	profileRepo := &mockUserProfileRepo{
		updateTierFunc: func(ctx context.Context, id string, tier model.Tier) error {
			tierChanged = true
			return nil
		},
	}
	service := newTestService(subRepo, profileRepo, &mockPaymentRepo{}, &mockGateway{})

	sub, err := service.CancelSubscription(context.Background(), "user-1", true)
	if err != nil {
		t.Fatalf("CancelSubscription() error = %v", err)
	}

	if sub.Status != model.SubscriptionStatusCancelling {
		t.Errorf("status = %q, want %q", sub.Status, model.SubscriptionStatusCancelling)
	}
	if updated == nil || !updated.CancelAtPeriodEnd {
		t.Error("cancel_at_period_end should be set")
	}
	if tierChanged {
		t.Error("tier should not change until period end")
	}
}

// TestCancelSubscription_Immediate は即時解約でティアがexplorerに降格することを検証する。
func TestCancelSubscription_Immediate(t *testing.T) {
	var newTier model.Tier
	subRepo := &mockSubscriptionRepo{
		findCurrentByUserIDFunc: func(ctx context.Context, userID string) (*model.Subscription, error) {
			return &model.Subscription{
				ID:                     "sub-1",
				UserID:                 userID,
				Tier:                   model.TierVoyager,
				Status:                 model.SubscriptionStatusActive,
				RazorpaySubscriptionID: "sub_Rzp001",
			}, nil
		},
	}
	profileRepo := &mockUserProfileRepo{
		updateTierFunc: func(ctx context.Context, id string, tier model.Tier) error {
			newTier = tier
			return nil
		},
	}
	service := newTestService(subRepo, profileRepo, &mockPaymentRepo{}, &mockGateway{})

	sub, err := service.CancelSubscription(context.Background(), "user-1", false)
	if err != nil {
		t.Fatalf("CancelSubscription() error = %v", err)
	}

	if sub.Status != model.SubscriptionStatusCancelled {
		t.Errorf("status = %q, want %q", sub.Status, model.SubscriptionStatusCancelled)
	}
	if newTier != model.TierExplorer {
		t.Errorf("tier = %q, want %q", newTier, model.TierExplorer)
	}
}

// TestCancelSubscription_NoSubscription はサブスクリプションがない場合のエラーを検証する。
func TestCancelSubscription_NoSubscription(t *testing.T) {
	service := newTestService(&mockSubscriptionRepo{}, &mockUserProfileRepo{}, &mockPaymentRepo{}, &mockGateway{})

	_, err := service.CancelSubscription(context.Background(), "user-1", true)

	var apiErr *model.APIError
	if !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodeSubscriptionNotFound {
		t.Errorf("error = %v, want SUBSCRIPTION_NOT_FOUND", err)
	}
}

// TestCancelSubscription_GatewayFailureRestoresStatus は
// ゲートウェイ解約失敗時に状態が復元されることを検証する。
func TestCancelSubscription_GatewayFailureRestoresStatus(t *testing.T) {
	statusHistory := []model.SubscriptionStatus{}
	subRepo := &mockSubscriptionRepo{
		findCurrentByUserIDFunc: func(ctx context.Context, userID string) (*model.Subscription, error) {
			return &model.Subscription{
				ID:                     "sub-1",
				UserID:                 userID,
				Tier:                   model.TierNavigator,
				Status:                 model.SubscriptionStatusActive,
				RazorpaySubscriptionID: "sub_Rzp001",
			}, nil
		},
		updateStatusFunc: func(ctx context.Context, id string, status model.SubscriptionStatus) error {
			statusHistory = append(statusHistory, status)
			return nil
		},
	}
	gateway := &mockGateway{
		cancelSubscriptionFunc: func(ctx context.Context, subscriptionID string, cancelAtCycleEnd bool) (*razorpay.Subscription, error) {
			return nil, errors.New("gateway down")
		},
	}
	service := newTestService(subRepo, &mockUserProfileRepo{}, &mockPaymentRepo{}, gateway)

	_, err := service.CancelSubscription(context.Background(), "user-1", true)
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodeGatewayUnavailable {
		t.Fatalf("error = %v, want GATEWAY_UNAVAILABLE", err)
	}

	// cancelling → 補償でactiveへ復元
	want := []model.SubscriptionStatus{model.SubscriptionStatusCancelling, model.SubscriptionStatusActive}
	if len(statusHistory) != len(want) {
		t.Fatalf("statusHistory = %v, want %v", statusHistory, want)
	}
	for i := range want {
		if statusHistory[i] != want[i] {
			t.Errorf("statusHistory[%d] = %q, want %q", i, statusHistory[i], want[i])
		}
	}
}

// TestInitiateUpgrade_GatewayFailureRetried はゲートウェイ作成失敗が
// リトライされ、最終的にGATEWAY_UNAVAILABLEとして返ることを検証する。
func TestInitiateUpgrade_GatewayFailureRetried(t *testing.T) {
	calls := 0
	gateway := &mockGateway{
		createSubscriptionFunc: func(ctx context.Context, planID string, totalCount int, notes map[string]string) (*razorpay.Subscription, error) {
			calls++
			return nil, errors.New("connection refused")
		},
	}
	logger := testLogger()
	service := NewService(
		logger,
		NewSagaRunner(logger, nil, 2, time.Millisecond),
		gateway,
		NewLogNotifier(logger),
		&mockSubscriptionRepo{},
		&mockUserProfileRepo{},
		&mockPaymentRepo{},
		map[model.Tier]string{model.TierNavigator: "plan_navigator"},
	)

	_, err := service.InitiateUpgrade(context.Background(), "user-1", model.TierNavigator)

	if calls != 2 {
		t.Errorf("gateway calls = %d, want 2 (gateway step should be retried)", calls)
	}
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodeGatewayUnavailable {
		t.Errorf("error = %v, want GATEWAY_UNAVAILABLE", err)
	}
}

// TestPaymentHistory_ClampsLimit は不正なlimitがデフォルト値に丸められることを検証する。
func TestPaymentHistory_ClampsLimit(t *testing.T) {
	var gotLimit int
	paymentRepo := &mockPaymentRepo{
		listByUserIDFunc: func(ctx context.Context, userID string, limit int) ([]*model.Payment, error) {
			gotLimit = limit
			return []*model.Payment{
				{ID: "p1", UserID: userID, AmountPaise: 99900, Status: model.PaymentStatusCaptured, CreatedAt: time.Now()},
			}, nil
		},
	}
	service := newTestService(&mockSubscriptionRepo{}, &mockUserProfileRepo{}, paymentRepo, &mockGateway{})

	payments, err := service.PaymentHistory(context.Background(), "user-1", -1)
	if err != nil {
		t.Fatalf("PaymentHistory() error = %v", err)
	}

	if gotLimit != 50 {
		t.Errorf("limit = %d, want 50", gotLimit)
	}
	if len(payments) != 1 {
		t.Errorf("len(payments) = %d, want 1", len(payments))
	}
}
