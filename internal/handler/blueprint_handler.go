// Package handler はHTTP APIのハンドラーとルーティングを提供する。
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/smartslate/polaris/internal/middleware"
	"github.com/smartslate/polaris/internal/model"
)

// BlueprintServiceInterface はブループリントハンドラーが必要とするサービスインターフェース。
type BlueprintServiceInterface interface {
	// Create はタイトルからドラフトのブループリントを作成する。
	Create(ctx context.Context, userID, title string) (*model.Blueprint, error)
	// GenerateQuestions はAIにヒアリング設問を生成させる。
	GenerateQuestions(ctx context.Context, userID, blueprintID string) (*model.Blueprint, error)
	// SaveAnswers はウィザード回答を保存する。
	SaveAnswers(ctx context.Context, userID, blueprintID string, answers []model.WizardAnswer) (*model.Blueprint, error)
	// Finalize はAIにブループリント本文を生成させ完成状態にする。
	Finalize(ctx context.Context, userID, blueprintID string) (*model.Blueprint, error)
	// Get は所有者のブループリントを取得する。
	Get(ctx context.Context, userID, blueprintID string) (*model.Blueprint, error)
	// List は所有者のブループリント一覧を返す。
	List(ctx context.Context, userID string) ([]*model.Blueprint, error)
	// Delete はブループリントを削除する。
	Delete(ctx context.Context, userID, blueprintID string) error
	// ExportMarkdown は完成済みブループリントをMarkdownとして出力する。
	ExportMarkdown(ctx context.Context, userID, blueprintID string) (string, error)
}

// BlueprintHandler はブループリント管理のHTTPハンドラー。
type BlueprintHandler struct {
	service BlueprintServiceInterface
}

// NewBlueprintHandler はBlueprintHandlerを生成する。
func NewBlueprintHandler(service BlueprintServiceInterface) *BlueprintHandler {
	return &BlueprintHandler{service: service}
}

// createBlueprintRequest はブループリント作成リクエストのボディ。
type createBlueprintRequest struct {
	Title string `json:"title"`
}

// saveAnswersRequest は回答保存リクエストのボディ。
type saveAnswersRequest struct {
	Answers []model.WizardAnswer `json:"answers"`
}

// blueprintResponse はブループリントのAPIレスポンス。
type blueprintResponse struct {
	ID              string                 `json:"id"`
	Title           string                 `json:"title"`
	Status          string                 `json:"status"`
	Questions       []model.WizardQuestion `json:"questions"`
	Answers         []model.WizardAnswer   `json:"answers"`
	Content         string                 `json:"content,omitempty"`
	GenerationCount int                    `json:"generation_count"`
	CreatedAt       time.Time              `json:"created_at"`
	UpdatedAt       time.Time              `json:"updated_at"`
}

// apiErrorResponse は統一エラーフォーマットのレスポンス。
type apiErrorResponse struct {
	Code     string `json:"code"`
	Message  string `json:"message"`
	Category string `json:"category"`
	Action   string `json:"action"`
}

// CreateBlueprint はブループリント作成を処理する。
// POST /api/blueprints
func (h *BlueprintHandler) CreateBlueprint(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	var req createBlueprintRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError("リクエストボディの解析に失敗しました"))
		return
	}

	bp, err := h.service.Create(r.Context(), userID, req.Title)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSONResponse(w, http.StatusCreated, toBlueprintResponse(bp))
}

// ListBlueprints はブループリント一覧を返す。
// GET /api/blueprints
func (h *BlueprintHandler) ListBlueprints(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	list, err := h.service.List(r.Context(), userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	results := make([]blueprintResponse, len(list))
	for i, bp := range list {
		results[i] = toBlueprintResponse(bp)
	}
	writeJSONResponse(w, http.StatusOK, map[string]any{"blueprints": results})
}

// GetBlueprint はブループリント詳細を取得する。
// GET /api/blueprints/:id
func (h *BlueprintHandler) GetBlueprint(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	bp, err := h.service.Get(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, toBlueprintResponse(bp))
}

// GenerateQuestions はヒアリング設問の生成を処理する。
// POST /api/blueprints/:id/questions
func (h *BlueprintHandler) GenerateQuestions(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	bp, err := h.service.GenerateQuestions(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, toBlueprintResponse(bp))
}

// SaveAnswers はウィザード回答の保存を処理する。
// PUT /api/blueprints/:id/answers
func (h *BlueprintHandler) SaveAnswers(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	var req saveAnswersRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError("リクエストボディの解析に失敗しました"))
		return
	}

	bp, err := h.service.SaveAnswers(r.Context(), userID, chi.URLParam(r, "id"), req.Answers)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, toBlueprintResponse(bp))
}

// FinalizeBlueprint はブループリント本文の生成を処理する。
// POST /api/blueprints/:id/finalize
func (h *BlueprintHandler) FinalizeBlueprint(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	bp, err := h.service.Finalize(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, toBlueprintResponse(bp))
}

// ExportBlueprint は完成済みブループリントのMarkdown出力を処理する。
// GET /api/blueprints/:id/export
func (h *BlueprintHandler) ExportBlueprint(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	md, err := h.service.ExportMarkdown(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(md))
}

// DeleteBlueprint はブループリント削除を処理する。
// DELETE /api/blueprints/:id
func (h *BlueprintHandler) DeleteBlueprint(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	if err := h.service.Delete(r.Context(), userID, chi.URLParam(r, "id")); err != nil {
		handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// toBlueprintResponse はドメインのBlueprintをレスポンス型に変換する。
func toBlueprintResponse(bp *model.Blueprint) blueprintResponse {
	return blueprintResponse{
		ID:              bp.ID,
		Title:           bp.Title,
		Status:          string(bp.Status),
		Questions:       bp.Questions,
		Answers:         bp.Answers,
		Content:         bp.Content,
		GenerationCount: bp.GenerationCount,
		CreatedAt:       bp.CreatedAt,
		UpdatedAt:       bp.UpdatedAt,
	}
}

// writeJSONResponse はJSONレスポンスを書き込む。
func writeJSONResponse(w http.ResponseWriter, statusCode int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(body)
}

// writeAPIErrorResponse は統一エラーフォーマットでエラーレスポンスを書き込む。
func writeAPIErrorResponse(w http.ResponseWriter, statusCode int, apiErr *model.APIError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(apiErrorResponse{
		Code:     apiErr.Code,
		Message:  apiErr.Message,
		Category: apiErr.Category,
		Action:   apiErr.Action,
	})
}

// handleServiceError はサービス層から返されたエラーを適切なHTTPステータスコードに変換する。
func handleServiceError(w http.ResponseWriter, err error) {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		writeAPIErrorResponse(w, mapAPIErrorToHTTPStatus(apiErr), apiErr)
		return
	}

	// APIError以外のエラーは内部サーバーエラーとして扱う
	slog.Error("internal server error", slog.String("error", err.Error()))
	writeAPIErrorResponse(w, http.StatusInternalServerError, &model.APIError{
		Code:     "INTERNAL_ERROR",
		Message:  "内部エラーが発生しました。",
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	})
}

// mapAPIErrorToHTTPStatus はAPIErrorコードからHTTPステータスコードにマッピングする。
func mapAPIErrorToHTTPStatus(apiErr *model.APIError) int {
	switch apiErr.Code {
	case model.ErrCodeUnauthorized:
		return http.StatusUnauthorized
	case model.ErrCodeForbidden, model.ErrCodeWebhookSignatureInvalid:
		return http.StatusForbidden
	case model.ErrCodeInvalidRequest, model.ErrCodeInvalidTier, model.ErrCodeInvalidCategory:
		return http.StatusBadRequest
	case model.ErrCodeUserNotFound, model.ErrCodeBlueprintNotFound,
		model.ErrCodeSubscriptionNotFound, model.ErrCodeFeedbackNotFound:
		return http.StatusNotFound
	case model.ErrCodeDuplicateSubscription, model.ErrCodeSubscriptionNotActive,
		model.ErrCodeBlueprintNotEditable, model.ErrCodeOperationInFlight:
		return http.StatusConflict
	case model.ErrCodeBlueprintNotReady:
		return http.StatusUnprocessableEntity
	case model.ErrCodeBlueprintLimit, model.ErrCodeGenerationLimit:
		return http.StatusTooManyRequests
	case model.ErrCodeGatewayUnavailable, model.ErrCodeAIUnavailable:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
