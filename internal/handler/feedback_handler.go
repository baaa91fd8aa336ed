package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/smartslate/polaris/internal/middleware"
	"github.com/smartslate/polaris/internal/model"
)

// FeedbackServiceInterface はフィードバックハンドラーが必要とするサービスインターフェース。
type FeedbackServiceInterface interface {
	// Submit はユーザーからのフィードバックを受け付ける。
	Submit(ctx context.Context, userID string, category model.FeedbackCategory, message string) (*model.FeedbackSubmission, error)
	// List は管理者向けにフィードバック一覧を返す。statusが空なら全件。
	List(ctx context.Context, status model.FeedbackStatus, limit int) ([]*model.FeedbackSubmission, error)
	// Respond は管理者がフィードバックに返信する。
	Respond(ctx context.Context, feedbackID, response, respondedBy string) (*model.FeedbackSubmission, error)
}

// FeedbackHandler はフィードバックのHTTPハンドラー。
type FeedbackHandler struct {
	service FeedbackServiceInterface
}

// NewFeedbackHandler はFeedbackHandlerを生成する。
func NewFeedbackHandler(service FeedbackServiceInterface) *FeedbackHandler {
	return &FeedbackHandler{service: service}
}

// submitFeedbackRequest はフィードバック送信リクエストのボディ。
type submitFeedbackRequest struct {
	Category string `json:"category"`
	Message  string `json:"message"`
}

// respondFeedbackRequest は管理者返信リクエストのボディ。
type respondFeedbackRequest struct {
	Response string `json:"response"`
}

// feedbackResponse はフィードバックのAPIレスポンス。
type feedbackResponse struct {
	ID          string     `json:"id"`
	UserID      string     `json:"user_id"`
	Category    string     `json:"category"`
	Message     string     `json:"message"`
	Status      string     `json:"status"`
	Response    string     `json:"response,omitempty"`
	RespondedBy string     `json:"responded_by,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	RespondedAt *time.Time `json:"responded_at,omitempty"`
}

// SubmitFeedback はフィードバック送信を処理する。
// POST /api/feedback
func (h *FeedbackHandler) SubmitFeedback(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	var req submitFeedbackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError("リクエストボディの解析に失敗しました"))
		return
	}

	fb, err := h.service.Submit(r.Context(), userID, model.FeedbackCategory(req.Category), req.Message)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSONResponse(w, http.StatusCreated, toFeedbackResponse(fb))
}

// ListFeedback は管理者向けのフィードバック一覧を返す。
// statusクエリパラメータで対応状態を絞り込める。
// GET /api/feedback
func (h *FeedbackHandler) ListFeedback(w http.ResponseWriter, r *http.Request) {
	status := model.FeedbackStatus(r.URL.Query().Get("status"))
	if status != "" && status != model.FeedbackStatusOpen && status != model.FeedbackStatusResponded {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError("statusはopenまたはrespondedを指定してください"))
		return
	}

	list, err := h.service.List(r.Context(), status, 0)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	results := make([]feedbackResponse, len(list))
	for i, fb := range list {
		results[i] = toFeedbackResponse(fb)
	}
	writeJSONResponse(w, http.StatusOK, map[string]any{"feedback": results})
}

// RespondFeedback は管理者によるフィードバック返信を処理する。
// POST /api/feedback/:id/respond
func (h *FeedbackHandler) RespondFeedback(w http.ResponseWriter, r *http.Request) {
	adminID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	var req respondFeedbackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError("リクエストボディの解析に失敗しました"))
		return
	}

	fb, err := h.service.Respond(r.Context(), chi.URLParam(r, "id"), req.Response, adminID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, toFeedbackResponse(fb))
}

// toFeedbackResponse はドメインのFeedbackSubmissionをレスポンス型に変換する。
func toFeedbackResponse(fb *model.FeedbackSubmission) feedbackResponse {
	return feedbackResponse{
		ID:          fb.ID,
		UserID:      fb.UserID,
		Category:    string(fb.Category),
		Message:     fb.Message,
		Status:      string(fb.Status),
		Response:    fb.Response,
		RespondedBy: fb.RespondedBy,
		CreatedAt:   fb.CreatedAt,
		RespondedAt: fb.RespondedAt,
	}
}
