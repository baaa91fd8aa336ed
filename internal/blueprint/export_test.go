package blueprint

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/smartslate/polaris/internal/model"
)

// TestExportMarkdown_Complete は完成済みブループリントのMarkdown出力を検証する。
func TestExportMarkdown_Complete(t *testing.T) {
	repo := &mockBlueprintRepo{
		findByIDFunc: func(ctx context.Context, id string) (*model.Blueprint, error) {
			return &model.Blueprint{
				ID:     id,
				UserID: "user-1",
				Title:  "新人研修プログラム",
				Status: model.BlueprintStatusComplete,
				Questions: []model.WizardQuestion{
					{ID: "q1", Prompt: "対象となる学習者は誰ですか？", Kind: "text"},
					{ID: "q2", Prompt: "学習期間はどのくらいですか？", Kind: "text"},
				},
				Answers: []model.WizardAnswer{
					{QuestionID: "q1", Value: "新入社員"},
				},
				Content:   "## 学習目標\n基礎を理解する。",
				CreatedAt: time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC),
			}, nil
		},
	}
	service := newTestBlueprintService(repo, &mockProfileRepo{}, &mockGenerator{})

	md, err := service.ExportMarkdown(context.Background(), "user-1", "bp-1")
	if err != nil {
		t.Fatalf("ExportMarkdown() error = %v", err)
	}

	wants := []string{
		"# 新人研修プログラム",
		"作成日: 2026-08-01",
		"### 対象となる学習者は誰ですか？",
		"新入社員",
		"（未回答）",
		"## ブループリント",
		"## 学習目標",
	}
	for _, want := range wants {
		if !strings.Contains(md, want) {
			t.Errorf("markdown should contain %q\ngot:\n%s", want, md)
		}
	}
}

// TestExportMarkdown_Deterministic は同一入力で同一出力になることを検証する。
func TestExportMarkdown_Deterministic(t *testing.T) {
	bp := &model.Blueprint{
		ID:     "bp-1",
		UserID: "user-1",
		Title:  "研修",
		Status: model.BlueprintStatusComplete,
		Questions: []model.WizardQuestion{
			{ID: "q1", Prompt: "対象は？", Kind: "text"},
			{ID: "q2", Prompt: "期間は？", Kind: "text"},
		},
		Answers: []model.WizardAnswer{
			{QuestionID: "q2", Value: "3ヶ月"},
			{QuestionID: "q1", Value: "新入社員"},
		},
		Content:   "本文",
		CreatedAt: time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC),
	}

	first := renderMarkdown(bp)
	second := renderMarkdown(bp)

	if first != second {
		t.Error("renderMarkdown should be deterministic")
	}
	// 出力は設問の定義順（回答の順序に依存しない）
	if strings.Index(first, "対象は？") > strings.Index(first, "期間は？") {
		t.Error("questions should appear in definition order")
	}
}

// TestExportMarkdown_DraftNotReady は未完成ブループリントがBLUEPRINT_NOT_READYになることを検証する。
func TestExportMarkdown_DraftNotReady(t *testing.T) {
	repo := &mockBlueprintRepo{
		findByIDFunc: func(ctx context.Context, id string) (*model.Blueprint, error) {
			return &model.Blueprint{ID: id, UserID: "user-1", Status: model.BlueprintStatusDraft}, nil
		},
	}
	service := newTestBlueprintService(repo, &mockProfileRepo{}, &mockGenerator{})

	_, err := service.ExportMarkdown(context.Background(), "user-1", "bp-1")

	var apiErr *model.APIError
	if !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodeBlueprintNotReady {
		t.Errorf("error = %v, want BLUEPRINT_NOT_READY", err)
	}
}
