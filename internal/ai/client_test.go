package ai

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/smartslate/polaris/internal/model"
)

// newTestClient はhttptestサーバーに向けたテスト用クライアントを生成する。
func newTestClient(serverURL string) *Client {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewClient(http.DefaultClient, logger, "test-api-key", serverURL)
}

// TestGenerateQuestions_Success は設問生成APIの呼び出しを検証する。
func TestGenerateQuestions_Success(t *testing.T) {
	var gotAuth string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		if r.URL.Path != "/v1/questions" {
			t.Errorf("path = %q, want %q", r.URL.Path, "/v1/questions")
		}
		json.NewEncoder(w).Encode(map[string]any{
			"questions": []model.WizardQuestion{
				{ID: "q1", Prompt: "対象となる学習者は誰ですか？", Kind: "text"},
				{ID: "q2", Prompt: "学習期間はどのくらいですか？", Kind: "choice"},
			},
		})
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	questions, err := client.GenerateQuestions(context.Background(), &GenerateQuestionsRequest{Title: "新人研修"})
	if err != nil {
		t.Fatalf("GenerateQuestions() error = %v", err)
	}

	if gotAuth != "Bearer test-api-key" {
		t.Errorf("Authorization = %q, want Bearer token", gotAuth)
	}
	if len(questions) != 2 {
		t.Fatalf("len(questions) = %d, want 2", len(questions))
	}
	if questions[0].ID != "q1" {
		t.Errorf("questions[0].ID = %q, want %q", questions[0].ID, "q1")
	}
}

// TestGenerateBlueprint_Success は本文生成APIの呼び出しを検証する。
func TestGenerateBlueprint_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/blueprints" {
			t.Errorf("path = %q, want %q", r.URL.Path, "/v1/blueprints")
		}
		json.NewEncoder(w).Encode(map[string]string{
			"content": "## 学習目標\n基礎を理解する。",
		})
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	content, err := client.GenerateBlueprint(context.Background(), &GenerateBlueprintRequest{
		Title:     "新人研修",
		Questions: []model.WizardQuestion{{ID: "q1", Prompt: "対象は？", Kind: "text"}},
		Answers:   []model.WizardAnswer{{QuestionID: "q1", Value: "新入社員"}},
	})
	if err != nil {
		t.Fatalf("GenerateBlueprint() error = %v", err)
	}

	if content == "" {
		t.Error("content should not be empty")
	}
}

// TestClient_ServerError はAIサービスのエラーがAI_UNAVAILABLEに変換されることを検証する。
func TestClient_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	_, err := client.GenerateQuestions(context.Background(), &GenerateQuestionsRequest{Title: "test"})
	if err == nil {
		t.Fatal("expected error for 503 response")
	}

	var apiErr *model.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("error should be *model.APIError, got %T", err)
	}
	if apiErr.Code != model.ErrCodeAIUnavailable {
		t.Errorf("code = %q, want %q", apiErr.Code, model.ErrCodeAIUnavailable)
	}
}

// TestClient_ConnectionError は接続失敗がAI_UNAVAILABLEに変換されることを検証する。
func TestClient_ConnectionError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close() // 即座に閉じて接続エラーを発生させる

	client := newTestClient(server.URL)
	_, err := client.GenerateBlueprint(context.Background(), &GenerateBlueprintRequest{Title: "test"})

	var apiErr *model.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("error should be *model.APIError, got %T", err)
	}
	if apiErr.Code != model.ErrCodeAIUnavailable {
		t.Errorf("code = %q, want %q", apiErr.Code, model.ErrCodeAIUnavailable)
	}
}
