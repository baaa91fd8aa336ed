package billing

import (
	"context"
	"time"

	"github.com/smartslate/polaris/internal/model"
	"github.com/smartslate/polaris/internal/razorpay"
	"github.com/smartslate/polaris/internal/repository"
)

// mockSubscriptionRepo はテスト用のSubscriptionRepository実装。
type mockSubscriptionRepo struct {
	findByIDFunc            func(ctx context.Context, id string) (*model.Subscription, error)
	findByRazorpayIDFunc    func(ctx context.Context, razorpayID string) (*model.Subscription, error)
	findCurrentByUserIDFunc func(ctx context.Context, userID string) (*model.Subscription, error)
	createFunc              func(ctx context.Context, sub *model.Subscription) error
	updateFunc              func(ctx context.Context, sub *model.Subscription) error
	updateStatusFunc        func(ctx context.Context, id string, status model.SubscriptionStatus) error
	deleteFunc              func(ctx context.Context, id string) error
}

func (m *mockSubscriptionRepo) FindByID(ctx context.Context, id string) (*model.Subscription, error) {
	if m.findByIDFunc != nil {
		return m.findByIDFunc(ctx, id)
	}
	return nil, nil
}

func (m *mockSubscriptionRepo) FindByRazorpayID(ctx context.Context, razorpayID string) (*model.Subscription, error) {
	if m.findByRazorpayIDFunc != nil {
		return m.findByRazorpayIDFunc(ctx, razorpayID)
	}
	return nil, nil
}

func (m *mockSubscriptionRepo) FindCurrentByUserID(ctx context.Context, userID string) (*model.Subscription, error) {
	if m.findCurrentByUserIDFunc != nil {
		return m.findCurrentByUserIDFunc(ctx, userID)
	}
	return nil, nil
}

func (m *mockSubscriptionRepo) Create(ctx context.Context, sub *model.Subscription) error {
	if m.createFunc != nil {
		return m.createFunc(ctx, sub)
	}
	return nil
}

func (m *mockSubscriptionRepo) Update(ctx context.Context, sub *model.Subscription) error {
	if m.updateFunc != nil {
		return m.updateFunc(ctx, sub)
	}
	return nil
}

func (m *mockSubscriptionRepo) UpdateStatus(ctx context.Context, id string, status model.SubscriptionStatus) error {
	if m.updateStatusFunc != nil {
		return m.updateStatusFunc(ctx, id, status)
	}
	return nil
}

func (m *mockSubscriptionRepo) Delete(ctx context.Context, id string) error {
	if m.deleteFunc != nil {
		return m.deleteFunc(ctx, id)
	}
	return nil
}

var _ repository.SubscriptionRepository = (*mockSubscriptionRepo)(nil)

// mockUserProfileRepo はテスト用のUserProfileRepository実装。
type mockUserProfileRepo struct {
	findByIDFunc   func(ctx context.Context, id string) (*model.UserProfile, error)
	createFunc     func(ctx context.Context, profile *model.UserProfile) error
	updateFunc     func(ctx context.Context, profile *model.UserProfile) error
	updateTierFunc func(ctx context.Context, id string, tier model.Tier) error
	deleteByIDFunc func(ctx context.Context, id string) error
}

func (m *mockUserProfileRepo) FindByID(ctx context.Context, id string) (*model.UserProfile, error) {
	if m.findByIDFunc != nil {
		return m.findByIDFunc(ctx, id)
	}
	return &model.UserProfile{ID: id, Role: model.RoleMember, Tier: model.TierExplorer}, nil
}

func (m *mockUserProfileRepo) Create(ctx context.Context, profile *model.UserProfile) error {
	if m.createFunc != nil {
		return m.createFunc(ctx, profile)
	}
	return nil
}

func (m *mockUserProfileRepo) Update(ctx context.Context, profile *model.UserProfile) error {
	if m.updateFunc != nil {
		return m.updateFunc(ctx, profile)
	}
	return nil
}

func (m *mockUserProfileRepo) UpdateTier(ctx context.Context, id string, tier model.Tier) error {
	if m.updateTierFunc != nil {
		return m.updateTierFunc(ctx, id, tier)
	}
	return nil
}

func (m *mockUserProfileRepo) DeleteByID(ctx context.Context, id string) error {
	if m.deleteByIDFunc != nil {
		return m.deleteByIDFunc(ctx, id)
	}
	return nil
}

var _ repository.UserProfileRepository = (*mockUserProfileRepo)(nil)

// mockPaymentRepo はテスト用のPaymentRepository実装。
type mockPaymentRepo struct {
	findByRazorpayPaymentIDFunc func(ctx context.Context, razorpayPaymentID string) (*model.Payment, error)
	createFunc                  func(ctx context.Context, payment *model.Payment) error
	updateStatusFunc            func(ctx context.Context, id string, status model.PaymentStatus) error
	listByUserIDFunc            func(ctx context.Context, userID string, limit int) ([]*model.Payment, error)
}

func (m *mockPaymentRepo) FindByRazorpayPaymentID(ctx context.Context, razorpayPaymentID string) (*model.Payment, error) {
	if m.findByRazorpayPaymentIDFunc != nil {
		return m.findByRazorpayPaymentIDFunc(ctx, razorpayPaymentID)
	}
	return nil, nil
}

func (m *mockPaymentRepo) Create(ctx context.Context, payment *model.Payment) error {
	if m.createFunc != nil {
		return m.createFunc(ctx, payment)
	}
	return nil
}

func (m *mockPaymentRepo) UpdateStatus(ctx context.Context, id string, status model.PaymentStatus) error {
	if m.updateStatusFunc != nil {
		return m.updateStatusFunc(ctx, id, status)
	}
	return nil
}

func (m *mockPaymentRepo) ListByUserID(ctx context.Context, userID string, limit int) ([]*model.Payment, error) {
	if m.listByUserIDFunc != nil {
		return m.listByUserIDFunc(ctx, userID, limit)
	}
	return nil, nil
}

var _ repository.PaymentRepository = (*mockPaymentRepo)(nil)

// mockGateway はテスト用のGateway実装。
type mockGateway struct {
	createSubscriptionFunc func(ctx context.Context, planID string, totalCount int, notes map[string]string) (*razorpay.Subscription, error)
	cancelSubscriptionFunc func(ctx context.Context, subscriptionID string, cancelAtCycleEnd bool) (*razorpay.Subscription, error)
}

func (m *mockGateway) CreateSubscription(ctx context.Context, planID string, totalCount int, notes map[string]string) (*razorpay.Subscription, error) {
	if m.createSubscriptionFunc != nil {
		return m.createSubscriptionFunc(ctx, planID, totalCount, notes)
	}
	return &razorpay.Subscription{ID: "sub_RzpMock", Status: "created", ShortURL: "https://rzp.io/i/mock"}, nil
}

func (m *mockGateway) CancelSubscription(ctx context.Context, subscriptionID string, cancelAtCycleEnd bool) (*razorpay.Subscription, error) {
	if m.cancelSubscriptionFunc != nil {
		return m.cancelSubscriptionFunc(ctx, subscriptionID, cancelAtCycleEnd)
	}
	return &razorpay.Subscription{ID: subscriptionID, Status: "cancelled"}, nil
}

var _ Gateway = (*mockGateway)(nil)

// newTestService はモックを組み合わせたテスト用Serviceを生成する。
func newTestService(subRepo *mockSubscriptionRepo, profileRepo *mockUserProfileRepo, paymentRepo *mockPaymentRepo, gateway *mockGateway) *Service {
	logger := testLogger()
	saga := NewSagaRunner(logger, nil, 1, time.Millisecond)
	return NewService(
		logger,
		saga,
		gateway,
		NewLogNotifier(logger),
		subRepo,
		profileRepo,
		paymentRepo,
		map[model.Tier]string{
			model.TierNavigator: "plan_navigator",
			model.TierVoyager:   "plan_voyager",
		},
	)
}
