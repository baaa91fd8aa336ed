// Package razorpay はRazorpay決済ゲートウェイ連携機能を提供する。
// サブスクリプションAPIの呼び出しとWebhook署名の検証を含む。
package razorpay

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
)

// defaultBaseURL はRazorpay REST APIのベースURL。
const defaultBaseURL = "https://api.razorpay.com"

// Subscription はRazorpayのサブスクリプションAPIレスポンス。
type Subscription struct {
	ID           string `json:"id"`
	PlanID       string `json:"plan_id"`
	Status       string `json:"status"`
	CurrentStart int64  `json:"current_start"`
	CurrentEnd   int64  `json:"current_end"`
	ShortURL     string `json:"short_url"`
}

// PaymentDetail はRazorpayの決済APIレスポンス。
type PaymentDetail struct {
	ID       string `json:"id"`
	OrderID  string `json:"order_id"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Status   string `json:"status"`
	Method   string `json:"method"`
}

// Client はRazorpay REST APIのクライアント。
// key_id/key_secretによるBasic認証で呼び出す。
type Client struct {
	httpClient *http.Client
	logger     *slog.Logger
	keyID      string
	keySecret  string
	baseURL    string // テスト用にエンドポイントを差し替え可能
}

// NewClient はClientの新しいインスタンスを生成する。
// baseURLが空の場合は本番APIのURLを使用する。
func NewClient(httpClient *http.Client, logger *slog.Logger, keyID, keySecret, baseURL string) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Client{
		httpClient: httpClient,
		logger:     logger,
		keyID:      keyID,
		keySecret:  keySecret,
		baseURL:    baseURL,
	}
}

// CreateSubscription は指定プランのサブスクリプションを作成する。
// totalCountは課金サイクル数（月額プランの場合は12で1年分）。
func (c *Client) CreateSubscription(ctx context.Context, planID string, totalCount int, notes map[string]string) (*Subscription, error) {
	payload := map[string]any{
		"plan_id":         planID,
		"total_count":     totalCount,
		"customer_notify": 1,
	}
	if len(notes) > 0 {
		payload["notes"] = notes
	}

	var sub Subscription
	if err := c.doJSON(ctx, http.MethodPost, "/v1/subscriptions", payload, &sub); err != nil {
		return nil, fmt.Errorf("サブスクリプションの作成に失敗しました: %w", err)
	}
	return &sub, nil
}

// CancelSubscription はサブスクリプションを解約する。
// cancelAtCycleEndがtrueの場合は現在の請求期間終了時に解約する。
func (c *Client) CancelSubscription(ctx context.Context, subscriptionID string, cancelAtCycleEnd bool) (*Subscription, error) {
	payload := map[string]any{
		"cancel_at_cycle_end": 0,
	}
	if cancelAtCycleEnd {
		payload["cancel_at_cycle_end"] = 1
	}

	var sub Subscription
	path := fmt.Sprintf("/v1/subscriptions/%s/cancel", subscriptionID)
	if err := c.doJSON(ctx, http.MethodPost, path, payload, &sub); err != nil {
		return nil, fmt.Errorf("サブスクリプションの解約に失敗しました: %w", err)
	}
	return &sub, nil
}

// FetchSubscription はサブスクリプションの現在の状態を取得する。
func (c *Client) FetchSubscription(ctx context.Context, subscriptionID string) (*Subscription, error) {
	var sub Subscription
	path := fmt.Sprintf("/v1/subscriptions/%s", subscriptionID)
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &sub); err != nil {
		return nil, fmt.Errorf("サブスクリプションの取得に失敗しました: %w", err)
	}
	return &sub, nil
}

// FetchPayment は決済の詳細を取得する。
func (c *Client) FetchPayment(ctx context.Context, paymentID string) (*PaymentDetail, error) {
	var payment PaymentDetail
	path := fmt.Sprintf("/v1/payments/%s", paymentID)
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &payment); err != nil {
		return nil, fmt.Errorf("決済情報の取得に失敗しました: %w", err)
	}
	return &payment, nil
}

// doJSON はBasic認証付きでAPIを呼び出し、レスポンスJSONをoutにデコードする。
func (c *Client) doJSON(ctx context.Context, method, path string, payload any, out any) error {
	var body io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("リクエストボディのエンコードに失敗しました: %w", err)
		}
		body = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("HTTPリクエストの作成に失敗しました: %w", err)
	}
	req.SetBasicAuth(c.keyID, c.keySecret)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("Razorpay APIの呼び出しに失敗しました",
			slog.String("method", method),
			slog.String("path", path),
			slog.String("error", err.Error()),
		)
		return err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("レスポンスボディの読み取りに失敗しました: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.logger.Error("Razorpay APIがエラーステータスを返しました",
			slog.String("method", method),
			slog.String("path", path),
			slog.Int("http_status", resp.StatusCode),
		)
		return fmt.Errorf("Razorpay APIがステータス %d を返しました", resp.StatusCode)
	}

	if out != nil {
		if err := json.Unmarshal(respBody, out); err != nil {
			return fmt.Errorf("レスポンスJSONのパースに失敗しました: %w", err)
		}
	}
	return nil
}
