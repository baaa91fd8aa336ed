package billing

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/smartslate/polaris/internal/model"
	"github.com/smartslate/polaris/internal/razorpay"
	"github.com/smartslate/polaris/internal/repository"
)

// defaultBillingCycles は月額プランの課金サイクル数（12ヶ月分）。
const defaultBillingCycles = 12

// Gateway は決済ゲートウェイに必要なインターフェース。
// razorpay.Clientの部分集合として定義する。
type Gateway interface {
	CreateSubscription(ctx context.Context, planID string, totalCount int, notes map[string]string) (*razorpay.Subscription, error)
	CancelSubscription(ctx context.Context, subscriptionID string, cancelAtCycleEnd bool) (*razorpay.Subscription, error)
}

// Notifier はサブスクリプション変更の通知インターフェース。
// 通知は非クリティカルな処理であり、失敗してもサガは巻き戻さない。
type Notifier interface {
	NotifySubscriptionChange(ctx context.Context, userID string, tier model.Tier, status model.SubscriptionStatus) error
}

// LogNotifier は通知をログ出力するNotifierの実装。
type LogNotifier struct {
	logger *slog.Logger
}

// NewLogNotifier はLogNotifierを生成する。
func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

// NotifySubscriptionChange はサブスクリプション変更をログに記録する。
func (n *LogNotifier) NotifySubscriptionChange(ctx context.Context, userID string, tier model.Tier, status model.SubscriptionStatus) error {
	n.logger.Info("subscription changed",
		slog.String("user_id", userID),
		slog.String("tier", string(tier)),
		slog.String("status", string(status)),
	)
	return nil
}

// UpgradeResult はアップグレード開始の結果。
// CheckoutURLはフロントエンドがRazorpayの決済画面を開くためのURL。
type UpgradeResult struct {
	Subscription *model.Subscription
	CheckoutURL  string
}

// Service はサブスクリプション課金のユースケースを提供する。
type Service struct {
	logger           *slog.Logger
	saga             *SagaRunner
	gateway          Gateway
	notifier         Notifier
	subscriptionRepo repository.SubscriptionRepository
	userProfileRepo  repository.UserProfileRepository
	paymentRepo      repository.PaymentRepository
	planIDs          map[model.Tier]string
}

// NewService はServiceを生成する。
// planIDsは有料ティアごとのRazorpayプランID。
func NewService(
	logger *slog.Logger,
	saga *SagaRunner,
	gateway Gateway,
	notifier Notifier,
	subscriptionRepo repository.SubscriptionRepository,
	userProfileRepo repository.UserProfileRepository,
	paymentRepo repository.PaymentRepository,
	planIDs map[model.Tier]string,
) *Service {
	return &Service{
		logger:           logger,
		saga:             saga,
		gateway:          gateway,
		notifier:         notifier,
		subscriptionRepo: subscriptionRepo,
		userProfileRepo:  userProfileRepo,
		paymentRepo:      paymentRepo,
		planIDs:          planIDs,
	}
}

// InitiateUpgrade は有料ティアへのアップグレードをサガとして実行する。
// ステップ:
//  1. 検証（ティア・プロフィール・重複サブスクリプション）
//  2. ゲートウェイでサブスクリプション作成（補償: ゲートウェイ解約）
//  3. サブスクリプション行の保存（補償: 行の削除）
//  4. 通知（非クリティカル、補償なし）
//
// 決済完了後の有効化はWebhook（subscription.activated）で行う。
func (s *Service) InitiateUpgrade(ctx context.Context, userID string, tier model.Tier) (*UpgradeResult, error) {
	planID, ok := s.planIDs[tier]
	if !ok || planID == "" {
		return nil, model.NewInvalidTierError(string(tier))
	}

	var (
		gatewaySub *razorpay.Subscription
		sub        *model.Subscription
	)

	steps := []SagaStep{
		{
			Name: "validate",
			Run: func(ctx context.Context) error {
				profile, err := s.userProfileRepo.FindByID(ctx, userID)
				if err != nil {
					return fmt.Errorf("プロフィールの取得に失敗しました: %w", err)
				}
				if profile == nil {
					return model.NewUserNotFoundError()
				}

				current, err := s.subscriptionRepo.FindCurrentByUserID(ctx, userID)
				if err != nil {
					return fmt.Errorf("現在のサブスクリプションの確認に失敗しました: %w", err)
				}
				if current != nil {
					return model.NewDuplicateSubscriptionError()
				}
				return nil
			},
		},
		{
			Name: "create_gateway_subscription",
			Run: func(ctx context.Context) error {
				created, err := s.gateway.CreateSubscription(ctx, planID, defaultBillingCycles, map[string]string{
					"user_id": userID,
					"tier":    string(tier),
				})
				if err != nil {
					return model.NewGatewayUnavailableError(err.Error())
				}
				gatewaySub = created
				return nil
			},
			Compensate: func(ctx context.Context) error {
				_, err := s.gateway.CancelSubscription(ctx, gatewaySub.ID, false)
				return err
			},
		},
		{
			Name: "persist_subscription",
			Run: func(ctx context.Context) error {
				now := time.Now()
				sub = &model.Subscription{
					ID:                     uuid.NewString(),
					UserID:                 userID,
					Tier:                   tier,
					Status:                 model.SubscriptionStatusCreated,
					RazorpaySubscriptionID: gatewaySub.ID,
					CreatedAt:              now,
					UpdatedAt:              now,
				}
				return s.subscriptionRepo.Create(ctx, sub)
			},
			Compensate: func(ctx context.Context) error {
				return s.subscriptionRepo.Delete(ctx, sub.ID)
			},
		},
		{
			Name: "notify",
			Run: func(ctx context.Context) error {
				// 通知失敗でアップグレードを巻き戻さない
				if err := s.notifier.NotifySubscriptionChange(ctx, userID, tier, model.SubscriptionStatusCreated); err != nil {
					s.logger.Warn("subscription notification failed",
						slog.String("user_id", userID),
						slog.String("error", err.Error()),
					)
				}
				return nil
			},
		},
	}

	if err := s.saga.Execute(ctx, "subscription_upgrade", userID, steps); err != nil {
		return nil, err
	}

	return &UpgradeResult{
		Subscription: sub,
		CheckoutURL:  gatewaySub.ShortURL,
	}, nil
}

// CancelSubscription は現在のサブスクリプションの解約をサガとして実行する。
// atPeriodEndがtrueの場合は請求期間終了時に解約し、ティアは期間終了まで維持される
// （最終的な降格はWebhookのsubscription.cancelledで行う）。
// falseの場合は即時解約し、ティアをexplorerに降格する。
// ステップ:
//  1. 検証（解約可能なサブスクリプションの存在確認）
//  2. 解約処理中への状態変更（補償: 元の状態へ復元）
//  3. ゲートウェイ解約（リトライあり、補償なし）
//  4. 確定と降格
//  5. 通知（非クリティカル、補償なし）
func (s *Service) CancelSubscription(ctx context.Context, userID string, atPeriodEnd bool) (*model.Subscription, error) {
	var (
		sub            *model.Subscription
		previousStatus model.SubscriptionStatus
	)

	steps := []SagaStep{
		{
			Name: "validate",
			Run: func(ctx context.Context) error {
				current, err := s.subscriptionRepo.FindCurrentByUserID(ctx, userID)
				if err != nil {
					return fmt.Errorf("現在のサブスクリプションの確認に失敗しました: %w", err)
				}
				if current == nil {
					return model.NewSubscriptionNotFoundError(userID)
				}
				if current.Status == model.SubscriptionStatusCancelling {
					return model.NewSubscriptionNotActiveError()
				}
				sub = current
				previousStatus = current.Status
				return nil
			},
		},
		{
			Name: "mark_cancelling",
			Run: func(ctx context.Context) error {
				return s.subscriptionRepo.UpdateStatus(ctx, sub.ID, model.SubscriptionStatusCancelling)
			},
			Compensate: func(ctx context.Context) error {
				return s.subscriptionRepo.UpdateStatus(ctx, sub.ID, previousStatus)
			},
		},
		{
			Name: "cancel_gateway_subscription",
			Run: func(ctx context.Context) error {
				// ゲートウェイ側で解約が確定した後は巻き戻せないため補償を持たない
				_, err := s.gateway.CancelSubscription(ctx, sub.RazorpaySubscriptionID, atPeriodEnd)
				if err != nil {
					return model.NewGatewayUnavailableError(err.Error())
				}
				return nil
			},
		},
		{
			Name: "finalize",
			Run: func(ctx context.Context) error {
				if atPeriodEnd {
					sub.Status = model.SubscriptionStatusCancelling
					sub.CancelAtPeriodEnd = true
					return s.subscriptionRepo.Update(ctx, sub)
				}

				sub.Status = model.SubscriptionStatusCancelled
				sub.CancelAtPeriodEnd = false
				if err := s.subscriptionRepo.Update(ctx, sub); err != nil {
					return err
				}
				return s.userProfileRepo.UpdateTier(ctx, userID, model.TierExplorer)
			},
		},
		{
			Name: "notify",
			Run: func(ctx context.Context) error {
				if err := s.notifier.NotifySubscriptionChange(ctx, userID, sub.Tier, sub.Status); err != nil {
					s.logger.Warn("subscription notification failed",
						slog.String("user_id", userID),
						slog.String("error", err.Error()),
					)
				}
				return nil
			},
		},
	}

	if err := s.saga.Execute(ctx, "subscription_cancel", userID, steps); err != nil {
		return nil, err
	}

	return sub, nil
}

// CurrentSubscription はユーザーの現在のサブスクリプションを返す。
// 有効なサブスクリプションがない場合はnilを返す（explorerティア）。
func (s *Service) CurrentSubscription(ctx context.Context, userID string) (*model.Subscription, error) {
	sub, err := s.subscriptionRepo.FindCurrentByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("サブスクリプションの取得に失敗しました: %w", err)
	}
	return sub, nil
}

// PaymentHistory はユーザーの決済履歴を新しい順に返す。
func (s *Service) PaymentHistory(ctx context.Context, userID string, limit int) ([]*model.Payment, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	payments, err := s.paymentRepo.ListByUserID(ctx, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("決済履歴の取得に失敗しました: %w", err)
	}
	return payments, nil
}
