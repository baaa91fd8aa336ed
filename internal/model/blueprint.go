package model

import "time"

// BlueprintStatus はブループリントのウィザード進行状態を表す。
type BlueprintStatus string

const (
	// BlueprintStatusDraft は回答入力中のドラフト状態。
	BlueprintStatusDraft BlueprintStatus = "draft"
	// BlueprintStatusGenerating はAIによるドキュメント生成中の状態。
	BlueprintStatusGenerating BlueprintStatus = "generating"
	// BlueprintStatusComplete は生成が完了した状態。
	BlueprintStatusComplete BlueprintStatus = "complete"
)

// WizardQuestion はAIが生成したウィザードの設問を表す。
type WizardQuestion struct {
	ID     string `json:"id"`
	Prompt string `json:"prompt"`
	Kind   string `json:"kind"` // "text", "choice", "scale" のいずれか
}

// WizardAnswer はウィザード設問へのユーザー回答を表す。
type WizardAnswer struct {
	QuestionID string `json:"question_id"`
	Value      string `json:"value"`
}

// Blueprint はAIウィザードで生成する学習計画ドキュメントを表す。
// QuestionsとAnswersはJSONBカラムに保存される。
// Contentは生成完了後のMarkdownドキュメント本文。
type Blueprint struct {
	ID              string
	UserID          string
	Title           string
	Status          BlueprintStatus
	Questions       []WizardQuestion
	Answers         []WizardAnswer
	Content         string
	GenerationCount int
	CreatedAt       time.Time
	UpdatedAt       time.Time
}
