// Package model はドメインモデルを定義する。
package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, billing, blueprint, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeUnauthorized            = "UNAUTHORIZED"
	ErrCodeForbidden               = "FORBIDDEN"
	ErrCodeInvalidRequest          = "INVALID_REQUEST"
	ErrCodeUserNotFound            = "USER_NOT_FOUND"
	ErrCodeInvalidTier             = "INVALID_TIER"
	ErrCodeBlueprintNotFound       = "BLUEPRINT_NOT_FOUND"
	ErrCodeBlueprintLimit          = "BLUEPRINT_LIMIT"
	ErrCodeGenerationLimit         = "GENERATION_LIMIT"
	ErrCodeBlueprintNotReady       = "BLUEPRINT_NOT_READY"
	ErrCodeBlueprintNotEditable    = "BLUEPRINT_NOT_EDITABLE"
	ErrCodeSubscriptionNotFound    = "SUBSCRIPTION_NOT_FOUND"
	ErrCodeDuplicateSubscription   = "DUPLICATE_SUBSCRIPTION"
	ErrCodeSubscriptionNotActive   = "SUBSCRIPTION_NOT_ACTIVE"
	ErrCodeGatewayUnavailable      = "GATEWAY_UNAVAILABLE"
	ErrCodeAIUnavailable           = "AI_UNAVAILABLE"
	ErrCodeWebhookSignatureInvalid = "WEBHOOK_SIGNATURE_INVALID"
	ErrCodeFeedbackNotFound        = "FEEDBACK_NOT_FOUND"
	ErrCodeInvalidCategory         = "INVALID_CATEGORY"
	ErrCodeOperationInFlight       = "OPERATION_IN_FLIGHT"
)

// NewUnauthorizedError は認証エラーを生成する。
func NewUnauthorizedError() *APIError {
	return &APIError{
		Code:     ErrCodeUnauthorized,
		Message:  "認証が必要です。",
		Category: "auth",
		Action:   "ログインしてください。",
	}
}

// NewForbiddenError は認可エラーを生成する。
func NewForbiddenError() *APIError {
	return &APIError{
		Code:     ErrCodeForbidden,
		Message:  "この操作を行う権限がありません。",
		Category: "auth",
		Action:   "管理者に問い合わせてください。",
	}
}

// NewInvalidRequestError はリクエスト内容の検証エラーを生成する。
func NewInvalidRequestError(detail string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidRequest,
		Message:  fmt.Sprintf("リクエストの内容が不正です: %s", detail),
		Category: "validation",
		Action:   "入力内容を確認して再度お試しください。",
	}
}

// NewUserNotFoundError はユーザーが見つからない場合のエラーを生成する。
func NewUserNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeUserNotFound,
		Message:  "ユーザーが見つかりません。",
		Category: "auth",
		Action:   "ログインし直してください。",
	}
}

// NewInvalidTierError は未定義のティアが指定された場合のエラーを生成する。
func NewInvalidTierError(tier string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidTier,
		Message:  fmt.Sprintf("無効なティアです: %s", tier),
		Category: "validation",
		Action:   "ティアには explorer、navigator、voyager のいずれかを指定してください。",
	}
}

// NewBlueprintNotFoundError はブループリント未検出エラーを生成する。
func NewBlueprintNotFoundError(blueprintID string) *APIError {
	return &APIError{
		Code:     ErrCodeBlueprintNotFound,
		Message:  fmt.Sprintf("指定されたブループリントが見つかりません: %s", blueprintID),
		Category: "blueprint",
		Action:   "ブループリントIDを確認してください。",
	}
}

// NewBlueprintLimitError は月間ブループリント作成上限エラーを生成する。
func NewBlueprintLimitError(limit int) *APIError {
	return &APIError{
		Code:     ErrCodeBlueprintLimit,
		Message:  fmt.Sprintf("当月のブループリント作成数が上限（%d件）に達しています。", limit),
		Category: "blueprint",
		Action:   "上位ティアへのアップグレードを検討するか、翌月までお待ちください。",
	}
}

// NewGenerationLimitError は月間AI生成回数上限エラーを生成する。
func NewGenerationLimitError(limit int) *APIError {
	return &APIError{
		Code:     ErrCodeGenerationLimit,
		Message:  fmt.Sprintf("当月のAI生成回数が上限（%d回）に達しています。", limit),
		Category: "blueprint",
		Action:   "上位ティアへのアップグレードを検討するか、翌月までお待ちください。",
	}
}

// NewBlueprintNotReadyError は未完成のブループリントをエクスポートしようとした場合のエラーを生成する。
func NewBlueprintNotReadyError() *APIError {
	return &APIError{
		Code:     ErrCodeBlueprintNotReady,
		Message:  "ブループリントはまだ完成していません。",
		Category: "blueprint",
		Action:   "ウィザードを完了してからエクスポートしてください。",
	}
}

// NewBlueprintNotEditableError はドラフト以外のブループリントを編集しようとした場合のエラーを生成する。
func NewBlueprintNotEditableError() *APIError {
	return &APIError{
		Code:     ErrCodeBlueprintNotEditable,
		Message:  "このブループリントは編集できない状態です。",
		Category: "blueprint",
		Action:   "生成完了後のブループリントは編集できません。新しいブループリントを作成してください。",
	}
}

// NewSubscriptionNotFoundError はサブスクリプションが見つからない場合のエラーを生成する。
func NewSubscriptionNotFoundError(subscriptionID string) *APIError {
	return &APIError{
		Code:     ErrCodeSubscriptionNotFound,
		Message:  fmt.Sprintf("指定されたサブスクリプションが見つかりません: %s", subscriptionID),
		Category: "billing",
		Action:   "サブスクリプションIDを確認してください。",
	}
}

// NewDuplicateSubscriptionError は有効な契約が既にある状態で新規契約しようとした場合のエラーを生成する。
func NewDuplicateSubscriptionError() *APIError {
	return &APIError{
		Code:     ErrCodeDuplicateSubscription,
		Message:  "有効なサブスクリプションが既に存在します。",
		Category: "billing",
		Action:   "現在の契約をキャンセルしてから、新しいティアを契約してください。",
	}
}

// NewSubscriptionNotActiveError はキャンセル可能な状態でない契約への操作エラーを生成する。
func NewSubscriptionNotActiveError() *APIError {
	return &APIError{
		Code:     ErrCodeSubscriptionNotActive,
		Message:  "サブスクリプションはキャンセル可能な状態ではありません。",
		Category: "billing",
		Action:   "キャンセルは有効な契約に対してのみ実行できます。",
	}
}

// NewGatewayUnavailableError は決済ゲートウェイ呼び出し失敗エラーを生成する。
func NewGatewayUnavailableError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeGatewayUnavailable,
		Message:  fmt.Sprintf("決済ゲートウェイとの通信に失敗しました: %s", reason),
		Category: "billing",
		Action:   "しばらく待ってから再度お試しください。",
	}
}

// NewAIUnavailableError はAIサービス呼び出し失敗エラーを生成する。
func NewAIUnavailableError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeAIUnavailable,
		Message:  fmt.Sprintf("AIサービスとの通信に失敗しました: %s", reason),
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	}
}

// NewWebhookSignatureInvalidError はWebhook署名検証失敗エラーを生成する。
func NewWebhookSignatureInvalidError() *APIError {
	return &APIError{
		Code:     ErrCodeWebhookSignatureInvalid,
		Message:  "Webhook署名の検証に失敗しました。",
		Category: "auth",
		Action:   "Webhookシークレットの設定を確認してください。",
	}
}

// NewFeedbackNotFoundError はフィードバック未検出エラーを生成する。
func NewFeedbackNotFoundError(feedbackID string) *APIError {
	return &APIError{
		Code:     ErrCodeFeedbackNotFound,
		Message:  fmt.Sprintf("指定されたフィードバックが見つかりません: %s", feedbackID),
		Category: "validation",
		Action:   "フィードバックIDを確認してください。",
	}
}

// NewOperationInFlightError は同一ユーザーの課金処理が既に実行中の場合のエラーを生成する。
func NewOperationInFlightError() *APIError {
	return &APIError{
		Code:     ErrCodeOperationInFlight,
		Message:  "同一ユーザーの課金処理が既に実行中です。",
		Category: "billing",
		Action:   "実行中の処理が完了してから再度お試しください。",
	}
}

// NewInvalidCategoryError は無効なフィードバックカテゴリエラーを生成する。
func NewInvalidCategoryError(category string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidCategory,
		Message:  fmt.Sprintf("無効なカテゴリです: %s", category),
		Category: "validation",
		Action:   "カテゴリには bug、feature、billing、other のいずれかを指定してください。",
	}
}
