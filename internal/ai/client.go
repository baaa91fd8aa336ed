// Package ai はブループリント生成AIサービスのクライアントを提供する。
package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/smartslate/polaris/internal/model"
)

// GenerateQuestionsRequest は設問生成APIへのリクエスト。
type GenerateQuestionsRequest struct {
	Title   string               `json:"title"`
	Answers []model.WizardAnswer `json:"answers,omitempty"`
}

// generateQuestionsResponse は設問生成APIのレスポンス。
type generateQuestionsResponse struct {
	Questions []model.WizardQuestion `json:"questions"`
}

// GenerateBlueprintRequest は本文生成APIへのリクエスト。
type GenerateBlueprintRequest struct {
	Title     string                 `json:"title"`
	Questions []model.WizardQuestion `json:"questions"`
	Answers   []model.WizardAnswer   `json:"answers"`
}

// generateBlueprintResponse は本文生成APIのレスポンス。
type generateBlueprintResponse struct {
	Content string `json:"content"`
}

// Client はブループリント生成AIサービスのクライアント。
// APIキーによるBearer認証で呼び出す。
type Client struct {
	httpClient *http.Client
	logger     *slog.Logger
	apiKey     string
	baseURL    string // テスト用にエンドポイントを差し替え可能
}

// NewClient はClientの新しいインスタンスを生成する。
func NewClient(httpClient *http.Client, logger *slog.Logger, apiKey, baseURL string) *Client {
	return &Client{
		httpClient: httpClient,
		logger:     logger,
		apiKey:     apiKey,
		baseURL:    baseURL,
	}
}

// GenerateQuestions はタイトルとこれまでの回答からウィザードの設問を生成する。
// AIサービスが利用できない場合はAPIErrorを返す。
func (c *Client) GenerateQuestions(ctx context.Context, req *GenerateQuestionsRequest) ([]model.WizardQuestion, error) {
	var resp generateQuestionsResponse
	if err := c.doJSON(ctx, "/v1/questions", req, &resp); err != nil {
		return nil, err
	}
	return resp.Questions, nil
}

// GenerateBlueprint は設問と回答からブループリント本文を生成する。
// AIサービスが利用できない場合はAPIErrorを返す。
func (c *Client) GenerateBlueprint(ctx context.Context, req *GenerateBlueprintRequest) (string, error) {
	var resp generateBlueprintResponse
	if err := c.doJSON(ctx, "/v1/blueprints", req, &resp); err != nil {
		return "", err
	}
	return resp.Content, nil
}

// doJSON はBearer認証付きでAIサービスを呼び出し、レスポンスJSONをoutにデコードする。
// 呼び出し失敗はすべてAI_UNAVAILABLEのAPIErrorに変換する。
func (c *Client) doJSON(ctx context.Context, path string, payload any, out any) error {
	encoded, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("リクエストボディのエンコードに失敗しました: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(encoded))
	if err != nil {
		return fmt.Errorf("HTTPリクエストの作成に失敗しました: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("AIサービスの呼び出しに失敗しました",
			slog.String("path", path),
			slog.String("error", err.Error()),
		)
		return model.NewAIUnavailableError(err.Error())
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return model.NewAIUnavailableError("レスポンスの読み取りに失敗しました")
	}

	if resp.StatusCode != http.StatusOK {
		c.logger.Error("AIサービスがエラーステータスを返しました",
			slog.String("path", path),
			slog.Int("http_status", resp.StatusCode),
		)
		return model.NewAIUnavailableError(fmt.Sprintf("status %d", resp.StatusCode))
	}

	if err := json.Unmarshal(respBody, out); err != nil {
		return model.NewAIUnavailableError("レスポンスJSONのパースに失敗しました")
	}
	return nil
}
