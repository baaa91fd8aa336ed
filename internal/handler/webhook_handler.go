package handler

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/smartslate/polaris/internal/model"
	"github.com/smartslate/polaris/internal/razorpay"
)

// maxWebhookBodySize はWebhookリクエストボディの最大サイズ（1MB）。
const maxWebhookBodySize = 1 << 20

// WebhookEventInserter はWebhookイベントの受付キューへの登録インターフェース。
type WebhookEventInserter interface {
	// Insert はイベントを未処理状態で登録する。重複ならfalseを返す。
	Insert(ctx context.Context, event *model.WebhookEvent) (bool, error)
}

// WebhookMetricsRecorder はWebhook受信のメトリクス記録インターフェース。
type WebhookMetricsRecorder interface {
	RecordWebhookEvent(eventType string)
}

// WebhookHandler はRazorpay WebhookのHTTPハンドラー。
// 署名検証と受付キューへの登録のみを行い、実処理はワーカーに委ねる。
type WebhookHandler struct {
	logger        *slog.Logger
	inserter      WebhookEventInserter
	metrics       WebhookMetricsRecorder
	webhookSecret string
}

// NewWebhookHandler はWebhookHandlerを生成する。
func NewWebhookHandler(logger *slog.Logger, inserter WebhookEventInserter, metrics WebhookMetricsRecorder, webhookSecret string) *WebhookHandler {
	return &WebhookHandler{
		logger:        logger,
		inserter:      inserter,
		metrics:       metrics,
		webhookSecret: webhookSecret,
	}
}

// webhookEnvelope はイベント種別の抽出に使うWebhookペイロードの外形。
type webhookEnvelope struct {
	Event string `json:"event"`
}

// HandleRazorpayWebhook はRazorpayからのWebhook通知を受け付ける。
//
// 1. HMAC-SHA256署名を検証する（不一致は403）
// 2. イベントを受付キューに登録する（重複は登録せず受理）
// 3. 受理した場合は常に200を返す（Razorpay側のリトライを止めるため）
//
// POST /api/webhooks/razorpay
func (h *WebhookHandler) HandleRazorpayWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBodySize))
	if err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError("リクエストボディの読み取りに失敗しました"))
		return
	}

	signature := r.Header.Get("X-Razorpay-Signature")
	if !razorpay.VerifyWebhookSignature(body, signature, h.webhookSecret) {
		h.logger.Warn("webhook signature verification failed",
			slog.String("remote_addr", r.RemoteAddr),
		)
		writeAPIErrorResponse(w, http.StatusForbidden, model.NewWebhookSignatureInvalidError())
		return
	}

	var envelope webhookEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil || envelope.Event == "" {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError("Webhookペイロードの解析に失敗しました"))
		return
	}

	// イベントIDヘッダーがない場合はボディのハッシュで重複を判定する
	providerEventID := r.Header.Get("X-Razorpay-Event-Id")
	if providerEventID == "" {
		sum := sha256.Sum256(body)
		providerEventID = hex.EncodeToString(sum[:])
	}

	now := time.Now()
	inserted, err := h.inserter.Insert(r.Context(), &model.WebhookEvent{
		ID:              uuid.NewString(),
		ProviderEventID: providerEventID,
		EventType:       envelope.Event,
		Payload:         body,
		Status:          model.WebhookEventStatusPending,
		NextAttemptAt:   now,
		ReceivedAt:      now,
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}

	if !inserted {
		h.logger.Info("duplicate webhook event ignored",
			slog.String("provider_event_id", providerEventID),
			slog.String("event_type", envelope.Event),
		)
		writeJSONResponse(w, http.StatusOK, map[string]string{"status": "duplicate"})
		return
	}

	h.metrics.RecordWebhookEvent(envelope.Event)
	h.logger.Info("webhook event accepted",
		slog.String("provider_event_id", providerEventID),
		slog.String("event_type", envelope.Event),
	)
	writeJSONResponse(w, http.StatusOK, map[string]string{"status": "accepted"})
}
