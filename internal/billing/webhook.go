package billing

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/smartslate/polaris/internal/model"
	"github.com/smartslate/polaris/internal/repository"
)

// WebhookMetrics はWebhook処理のメトリクス記録インターフェース。
type WebhookMetrics interface {
	RecordWebhookEvent(eventType string)
	RecordWebhookFailure(eventType string)
	RecordPayment(status string)
}

// webhookPayload はRazorpay Webhookのペイロード構造。
type webhookPayload struct {
	Event   string `json:"event"`
	Payload struct {
		Payment struct {
			Entity paymentEntity `json:"entity"`
		} `json:"payment"`
		Subscription struct {
			Entity subscriptionEntity `json:"entity"`
		} `json:"subscription"`
	} `json:"payload"`
}

// paymentEntity はWebhookペイロード内の決済エンティティ。
type paymentEntity struct {
	ID       string `json:"id"`
	OrderID  string `json:"order_id"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Status   string `json:"status"`
	Method   string `json:"method"`
	Notes    struct {
		UserID string `json:"user_id"`
	} `json:"notes"`
}

// subscriptionEntity はWebhookペイロード内のサブスクリプションエンティティ。
type subscriptionEntity struct {
	ID           string `json:"id"`
	Status       string `json:"status"`
	CurrentStart int64  `json:"current_start"`
	CurrentEnd   int64  `json:"current_end"`
}

// WebhookProcessor は受信済みWebhookイベントをドメインの状態に反映する。
// イベントは冪等に処理できるよう、常に現在の状態への上書きとして適用する。
type WebhookProcessor struct {
	logger           *slog.Logger
	metrics          WebhookMetrics
	subscriptionRepo repository.SubscriptionRepository
	userProfileRepo  repository.UserProfileRepository
	paymentRepo      repository.PaymentRepository
}

// NewWebhookProcessor はWebhookProcessorを生成する。
func NewWebhookProcessor(
	logger *slog.Logger,
	metrics WebhookMetrics,
	subscriptionRepo repository.SubscriptionRepository,
	userProfileRepo repository.UserProfileRepository,
	paymentRepo repository.PaymentRepository,
) *WebhookProcessor {
	return &WebhookProcessor{
		logger:           logger,
		metrics:          metrics,
		subscriptionRepo: subscriptionRepo,
		userProfileRepo:  userProfileRepo,
		paymentRepo:      paymentRepo,
	}
}

// ProcessEvent はWebhookイベントを種別に応じて処理する。
// 未知のイベント種別はログに記録して成功扱いとする（リトライしても意味がないため）。
func (p *WebhookProcessor) ProcessEvent(ctx context.Context, event *model.WebhookEvent) error {
	var payload webhookPayload
	if err := json.Unmarshal(event.Payload, &payload); err != nil {
		return fmt.Errorf("Webhookペイロードのパースに失敗しました: %w", err)
	}

	var err error
	switch payload.Event {
	case "payment.captured":
		err = p.applyPayment(ctx, &payload, model.PaymentStatusCaptured)
	case "payment.failed":
		err = p.applyPayment(ctx, &payload, model.PaymentStatusFailed)
	case "subscription.activated":
		err = p.applySubscriptionState(ctx, &payload, model.SubscriptionStatusActive, true)
	case "subscription.charged":
		err = p.applyCharge(ctx, &payload)
	case "subscription.halted":
		err = p.applySubscriptionState(ctx, &payload, model.SubscriptionStatusHalted, false)
	case "subscription.cancelled":
		err = p.applyTerminalState(ctx, &payload, model.SubscriptionStatusCancelled)
	case "subscription.completed":
		err = p.applyTerminalState(ctx, &payload, model.SubscriptionStatusExpired)
	default:
		p.logger.Info("unknown webhook event ignored",
			slog.String("event_type", payload.Event),
			slog.String("provider_event_id", event.ProviderEventID),
		)
		return nil
	}

	if err != nil {
		if p.metrics != nil {
			p.metrics.RecordWebhookFailure(payload.Event)
		}
		return err
	}

	if p.metrics != nil {
		p.metrics.RecordWebhookEvent(payload.Event)
	}
	return nil
}

// applyPayment は決済イベントを決済履歴に反映する。
// 既存の決済レコードがあれば状態のみ更新する（冪等）。
func (p *WebhookProcessor) applyPayment(ctx context.Context, payload *webhookPayload, status model.PaymentStatus) error {
	entity := payload.Payload.Payment.Entity
	if entity.ID == "" {
		return fmt.Errorf("決済エンティティが含まれていません")
	}

	existing, err := p.paymentRepo.FindByRazorpayPaymentID(ctx, entity.ID)
	if err != nil {
		return fmt.Errorf("既存決済の確認に失敗しました: %w", err)
	}
	if existing != nil {
		if existing.Status == status {
			return nil
		}
		if err := p.paymentRepo.UpdateStatus(ctx, existing.ID, status); err != nil {
			return err
		}
		if p.metrics != nil {
			p.metrics.RecordPayment(string(status))
		}
		return nil
	}

	userID := entity.Notes.UserID
	if userID == "" {
		// notesにuser_idがない場合はサブスクリプションから逆引きする
		sub, err := p.findSubscription(ctx, payload)
		if err != nil {
			return err
		}
		userID = sub.UserID
	}

	payment := &model.Payment{
		ID:                uuid.NewString(),
		UserID:            userID,
		RazorpayPaymentID: entity.ID,
		RazorpayOrderID:   entity.OrderID,
		AmountPaise:       entity.Amount,
		Currency:          entity.Currency,
		Status:            status,
		Method:            entity.Method,
		CreatedAt:         time.Now(),
	}
	if err := p.paymentRepo.Create(ctx, payment); err != nil {
		return err
	}
	if p.metrics != nil {
		p.metrics.RecordPayment(string(status))
	}
	return nil
}

// applySubscriptionState はサブスクリプションの状態と請求期間を更新する。
// upgradeTierがtrueの場合はユーザーのティアをサブスクリプションのティアに引き上げる。
func (p *WebhookProcessor) applySubscriptionState(ctx context.Context, payload *webhookPayload, status model.SubscriptionStatus, upgradeTier bool) error {
	sub, err := p.findSubscription(ctx, payload)
	if err != nil {
		return err
	}

	entity := payload.Payload.Subscription.Entity
	sub.Status = status
	if entity.CurrentStart > 0 {
		sub.CurrentPeriodStart = time.Unix(entity.CurrentStart, 0)
	}
	if entity.CurrentEnd > 0 {
		sub.CurrentPeriodEnd = time.Unix(entity.CurrentEnd, 0)
	}

	if err := p.subscriptionRepo.Update(ctx, sub); err != nil {
		return err
	}

	if upgradeTier {
		if err := p.userProfileRepo.UpdateTier(ctx, sub.UserID, sub.Tier); err != nil {
			return err
		}
	}
	return nil
}

// applyCharge は継続課金イベントを処理する。
// 請求期間を更新し、含まれる決済を履歴に記録する。
func (p *WebhookProcessor) applyCharge(ctx context.Context, payload *webhookPayload) error {
	if err := p.applySubscriptionState(ctx, payload, model.SubscriptionStatusActive, false); err != nil {
		return err
	}
	if payload.Payload.Payment.Entity.ID != "" {
		return p.applyPayment(ctx, payload, model.PaymentStatusCaptured)
	}
	return nil
}

// applyTerminalState はサブスクリプションを最終状態にし、ティアをexplorerに降格する。
func (p *WebhookProcessor) applyTerminalState(ctx context.Context, payload *webhookPayload, status model.SubscriptionStatus) error {
	sub, err := p.findSubscription(ctx, payload)
	if err != nil {
		return err
	}

	// 既に最終状態なら何もしない（冪等）
	if sub.Status.IsTerminal() {
		return nil
	}

	if err := p.subscriptionRepo.UpdateStatus(ctx, sub.ID, status); err != nil {
		return err
	}
	return p.userProfileRepo.UpdateTier(ctx, sub.UserID, model.TierExplorer)
}

// findSubscription はペイロードのサブスクリプションIDから内部レコードを検索する。
func (p *WebhookProcessor) findSubscription(ctx context.Context, payload *webhookPayload) (*model.Subscription, error) {
	razorpayID := payload.Payload.Subscription.Entity.ID
	if razorpayID == "" {
		return nil, fmt.Errorf("サブスクリプションエンティティが含まれていません")
	}

	sub, err := p.subscriptionRepo.FindByRazorpayID(ctx, razorpayID)
	if err != nil {
		return nil, fmt.Errorf("サブスクリプションの検索に失敗しました: %w", err)
	}
	if sub == nil {
		return nil, fmt.Errorf("サブスクリプションが見つかりません: %s", razorpayID)
	}
	return sub, nil
}
