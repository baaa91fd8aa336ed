package repository

import (
	"testing"

	"github.com/smartslate/polaris/internal/model"
)

// TestPostgresBlueprintRepo_ImplementsInterface はPostgresBlueprintRepoがBlueprintRepositoryを実装することを検証する。
func TestPostgresBlueprintRepo_ImplementsInterface(t *testing.T) {
	// コンパイル時チェック：PostgresBlueprintRepoがBlueprintRepositoryを満たすことを検証
	var _ BlueprintRepository = (*PostgresBlueprintRepo)(nil)
}

// TestPostgresFeedbackRepo_ImplementsInterface はPostgresFeedbackRepoがFeedbackRepositoryを実装することを検証する。
func TestPostgresFeedbackRepo_ImplementsInterface(t *testing.T) {
	// コンパイル時チェック：PostgresFeedbackRepoがFeedbackRepositoryを満たすことを検証
	var _ FeedbackRepository = (*PostgresFeedbackRepo)(nil)
}

// TestPostgresWebhookEventRepo_ImplementsInterface はPostgresWebhookEventRepoがWebhookEventRepositoryを実装することを検証する。
func TestPostgresWebhookEventRepo_ImplementsInterface(t *testing.T) {
	// コンパイル時チェック：PostgresWebhookEventRepoがWebhookEventRepositoryを満たすことを検証
	var _ WebhookEventRepository = (*PostgresWebhookEventRepo)(nil)
}

// marshalWizardStateがnilスライスを空配列としてエンコードすることを検証
func TestMarshalWizardState_NilSlices(t *testing.T) {
	bp := &model.Blueprint{ID: "bp-1"}

	questionsJSON, answersJSON, err := marshalWizardState(bp)
	if err != nil {
		t.Fatalf("marshalWizardState() error = %v", err)
	}
	if string(questionsJSON) != "[]" {
		t.Errorf("questions JSON = %q, want %q", questionsJSON, "[]")
	}
	if string(answersJSON) != "[]" {
		t.Errorf("answers JSON = %q, want %q", answersJSON, "[]")
	}
}

// marshalWizardStateが設問と回答を正しくエンコードすることを検証
func TestMarshalWizardState_Populated(t *testing.T) {
	bp := &model.Blueprint{
		ID: "bp-2",
		Questions: []model.WizardQuestion{
			{ID: "q1", Prompt: "対象となる学習者は誰ですか？", Kind: "text"},
		},
		Answers: []model.WizardAnswer{
			{QuestionID: "q1", Value: "新入社員"},
		},
	}

	questionsJSON, answersJSON, err := marshalWizardState(bp)
	if err != nil {
		t.Fatalf("marshalWizardState() error = %v", err)
	}
	if len(questionsJSON) == 0 || string(questionsJSON) == "[]" {
		t.Errorf("questions JSON should not be empty, got %q", questionsJSON)
	}
	if len(answersJSON) == 0 || string(answersJSON) == "[]" {
		t.Errorf("answers JSON should not be empty, got %q", answersJSON)
	}
}
