package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/smartslate/polaris/internal/billing"
	"github.com/smartslate/polaris/internal/middleware"
	"github.com/smartslate/polaris/internal/model"
)

// BillingServiceInterface はサブスクリプションハンドラーが必要とするサービスインターフェース。
type BillingServiceInterface interface {
	// InitiateUpgrade は有料ティアへのアップグレードを開始する。
	InitiateUpgrade(ctx context.Context, userID string, tier model.Tier) (*billing.UpgradeResult, error)
	// CancelSubscription は現在のサブスクリプションを解約する。
	CancelSubscription(ctx context.Context, userID string, atPeriodEnd bool) (*model.Subscription, error)
	// CurrentSubscription は現在のサブスクリプションを返す（未契約ならnil）。
	CurrentSubscription(ctx context.Context, userID string) (*model.Subscription, error)
	// PaymentHistory は決済履歴を新しい順で返す。
	PaymentHistory(ctx context.Context, userID string, limit int) ([]*model.Payment, error)
}

// SubscriptionHandler はサブスクリプションと決済履歴のHTTPハンドラー。
type SubscriptionHandler struct {
	service BillingServiceInterface
}

// NewSubscriptionHandler はSubscriptionHandlerを生成する。
func NewSubscriptionHandler(service BillingServiceInterface) *SubscriptionHandler {
	return &SubscriptionHandler{service: service}
}

// upgradeRequest はアップグレードリクエストのボディ。
type upgradeRequest struct {
	Tier string `json:"tier"`
}

// subscriptionResponse はサブスクリプションのAPIレスポンス。
type subscriptionResponse struct {
	ID                 string     `json:"id"`
	Tier               string     `json:"tier"`
	Status             string     `json:"status"`
	CurrentPeriodStart *time.Time `json:"current_period_start,omitempty"`
	CurrentPeriodEnd   *time.Time `json:"current_period_end,omitempty"`
	CancelAtPeriodEnd  bool       `json:"cancel_at_period_end"`
	CreatedAt          time.Time  `json:"created_at"`
}

// upgradeResponse はアップグレード開始のAPIレスポンス。
// CheckoutURLはユーザーを決済ページへ誘導するためのURL。
type upgradeResponse struct {
	Subscription subscriptionResponse `json:"subscription"`
	CheckoutURL  string               `json:"checkout_url"`
}

// paymentResponse は決済履歴のAPIレスポンス。
type paymentResponse struct {
	ID                string    `json:"id"`
	RazorpayPaymentID string    `json:"razorpay_payment_id"`
	AmountPaise       int64     `json:"amount_paise"`
	Currency          string    `json:"currency"`
	Status            string    `json:"status"`
	Method            string    `json:"method,omitempty"`
	CreatedAt         time.Time `json:"created_at"`
}

// GetCurrentSubscription は現在のサブスクリプションを返す。
// 未契約の場合はexplorerティア相当の情報を返す。
// GET /api/subscriptions
func (h *SubscriptionHandler) GetCurrentSubscription(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	sub, err := h.service.CurrentSubscription(r.Context(), userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	if sub == nil {
		writeJSONResponse(w, http.StatusOK, map[string]any{
			"subscription": nil,
			"tier":         string(model.TierExplorer),
		})
		return
	}

	resp := toSubscriptionResponse(sub)
	writeJSONResponse(w, http.StatusOK, map[string]any{
		"subscription": resp,
		"tier":         string(sub.Tier),
	})
}

// Upgrade は有料ティアへのアップグレード開始を処理する。
// POST /api/subscriptions
func (h *SubscriptionHandler) Upgrade(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	var req upgradeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError("リクエストボディの解析に失敗しました"))
		return
	}

	result, err := h.service.InitiateUpgrade(r.Context(), userID, model.Tier(req.Tier))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSONResponse(w, http.StatusCreated, upgradeResponse{
		Subscription: toSubscriptionResponse(result.Subscription),
		CheckoutURL:  result.CheckoutURL,
	})
}

// Cancel はサブスクリプション解約を処理する。
// at_period_endクエリパラメータ（デフォルトtrue）で期間末解約か即時解約かを指定する。
// DELETE /api/subscriptions/:id
func (h *SubscriptionHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	subscriptionID := chi.URLParam(r, "id")

	// 解約対象が呼び出し元の現在のサブスクリプションであることを確認する
	current, err := h.service.CurrentSubscription(r.Context(), userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	if current == nil || current.ID != subscriptionID {
		writeAPIErrorResponse(w, http.StatusNotFound, model.NewSubscriptionNotFoundError(subscriptionID))
		return
	}

	atPeriodEnd := true
	if v := r.URL.Query().Get("at_period_end"); v != "" {
		parsed, err := strconv.ParseBool(v)
		if err != nil {
			writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError("at_period_endはtrueまたはfalseを指定してください"))
			return
		}
		atPeriodEnd = parsed
	}

	sub, err := h.service.CancelSubscription(r.Context(), userID, atPeriodEnd)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, toSubscriptionResponse(sub))
}

// ListPayments は決済履歴を返す。
// GET /api/payments/history
func (h *SubscriptionHandler) ListPayments(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil {
			writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError("limitは数値で指定してください"))
			return
		}
		limit = parsed
	}

	payments, err := h.service.PaymentHistory(r.Context(), userID, limit)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	results := make([]paymentResponse, len(payments))
	for i, p := range payments {
		results[i] = paymentResponse{
			ID:                p.ID,
			RazorpayPaymentID: p.RazorpayPaymentID,
			AmountPaise:       p.AmountPaise,
			Currency:          p.Currency,
			Status:            string(p.Status),
			Method:            p.Method,
			CreatedAt:         p.CreatedAt,
		}
	}
	writeJSONResponse(w, http.StatusOK, map[string]any{"payments": results})
}

// toSubscriptionResponse はドメインのSubscriptionをレスポンス型に変換する。
func toSubscriptionResponse(sub *model.Subscription) subscriptionResponse {
	resp := subscriptionResponse{
		ID:                sub.ID,
		Tier:              string(sub.Tier),
		Status:            string(sub.Status),
		CancelAtPeriodEnd: sub.CancelAtPeriodEnd,
		CreatedAt:         sub.CreatedAt,
	}
	if !sub.CurrentPeriodStart.IsZero() {
		start := sub.CurrentPeriodStart
		resp.CurrentPeriodStart = &start
	}
	if !sub.CurrentPeriodEnd.IsZero() {
		end := sub.CurrentPeriodEnd
		resp.CurrentPeriodEnd = &end
	}
	return resp
}
