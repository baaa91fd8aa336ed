package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/smartslate/polaris/internal/middleware"
	"github.com/smartslate/polaris/internal/model"
)

// mockBlueprintService はテスト用のBlueprintServiceInterface実装。
type mockBlueprintService struct {
	createFunc            func(ctx context.Context, userID, title string) (*model.Blueprint, error)
	generateQuestionsFunc func(ctx context.Context, userID, blueprintID string) (*model.Blueprint, error)
	saveAnswersFunc       func(ctx context.Context, userID, blueprintID string, answers []model.WizardAnswer) (*model.Blueprint, error)
	finalizeFunc          func(ctx context.Context, userID, blueprintID string) (*model.Blueprint, error)
	getFunc               func(ctx context.Context, userID, blueprintID string) (*model.Blueprint, error)
	listFunc              func(ctx context.Context, userID string) ([]*model.Blueprint, error)
	deleteFunc            func(ctx context.Context, userID, blueprintID string) error
	exportFunc            func(ctx context.Context, userID, blueprintID string) (string, error)
}

func (m *mockBlueprintService) Create(ctx context.Context, userID, title string) (*model.Blueprint, error) {
	if m.createFunc != nil {
		return m.createFunc(ctx, userID, title)
	}
	return &model.Blueprint{ID: "bp-1", UserID: userID, Title: title, Status: model.BlueprintStatusDraft}, nil
}

func (m *mockBlueprintService) GenerateQuestions(ctx context.Context, userID, blueprintID string) (*model.Blueprint, error) {
	if m.generateQuestionsFunc != nil {
		return m.generateQuestionsFunc(ctx, userID, blueprintID)
	}
	return &model.Blueprint{ID: blueprintID, UserID: userID}, nil
}

func (m *mockBlueprintService) SaveAnswers(ctx context.Context, userID, blueprintID string, answers []model.WizardAnswer) (*model.Blueprint, error) {
	if m.saveAnswersFunc != nil {
		return m.saveAnswersFunc(ctx, userID, blueprintID, answers)
	}
	return &model.Blueprint{ID: blueprintID, UserID: userID, Answers: answers}, nil
}

func (m *mockBlueprintService) Finalize(ctx context.Context, userID, blueprintID string) (*model.Blueprint, error) {
	if m.finalizeFunc != nil {
		return m.finalizeFunc(ctx, userID, blueprintID)
	}
	return &model.Blueprint{ID: blueprintID, UserID: userID, Status: model.BlueprintStatusComplete}, nil
}

func (m *mockBlueprintService) Get(ctx context.Context, userID, blueprintID string) (*model.Blueprint, error) {
	if m.getFunc != nil {
		return m.getFunc(ctx, userID, blueprintID)
	}
	return &model.Blueprint{ID: blueprintID, UserID: userID}, nil
}

func (m *mockBlueprintService) List(ctx context.Context, userID string) ([]*model.Blueprint, error) {
	if m.listFunc != nil {
		return m.listFunc(ctx, userID)
	}
	return nil, nil
}

func (m *mockBlueprintService) Delete(ctx context.Context, userID, blueprintID string) error {
	if m.deleteFunc != nil {
		return m.deleteFunc(ctx, userID, blueprintID)
	}
	return nil
}

func (m *mockBlueprintService) ExportMarkdown(ctx context.Context, userID, blueprintID string) (string, error) {
	if m.exportFunc != nil {
		return m.exportFunc(ctx, userID, blueprintID)
	}
	return "# export\n", nil
}

var _ BlueprintServiceInterface = (*mockBlueprintService)(nil)

// newAuthenticatedRequest はユーザーIDをコンテキストに設定したリクエストを生成する。
func newAuthenticatedRequest(method, target, body string) *http.Request {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	}
	ctx := middleware.ContextWithUserID(req.Context(), "user-1")
	ctx = middleware.ContextWithUserEmail(ctx, "user@example.com")
	return req.WithContext(ctx)
}

// newURLParamContext はchiのURLパラメータを設定したリクエストを返す。
func withURLParam(req *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
}

// decodeErrorResponse はエラーレスポンスのボディを解析する。
func decodeErrorResponse(t *testing.T, rec *httptest.ResponseRecorder) apiErrorResponse {
	t.Helper()
	var resp apiErrorResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode error response: %v", err)
	}
	return resp
}

// TestCreateBlueprint_Success はブループリント作成の正常系を検証する。
func TestCreateBlueprint_Success(t *testing.T) {
	h := NewBlueprintHandler(&mockBlueprintService{})

	req := newAuthenticatedRequest(http.MethodPost, "/api/blueprints", `{"title":"新人研修"}`)
	rec := httptest.NewRecorder()
	h.CreateBlueprint(rec, req)

	if rec.Code != http.StatusCreated {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusCreated)
	}

	var resp blueprintResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Title != "新人研修" {
		t.Errorf("title = %q, want 新人研修", resp.Title)
	}
	if resp.Status != string(model.BlueprintStatusDraft) {
		t.Errorf("status = %q, want draft", resp.Status)
	}
}

// TestCreateBlueprint_Unauthorized は未認証リクエストが401になることを検証する。
func TestCreateBlueprint_Unauthorized(t *testing.T) {
	h := NewBlueprintHandler(&mockBlueprintService{})

	req := httptest.NewRequest(http.MethodPost, "/api/blueprints", strings.NewReader(`{"title":"x"}`))
	rec := httptest.NewRecorder()
	h.CreateBlueprint(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusUnauthorized)
	}
}

// TestCreateBlueprint_LimitExceeded は月間作成上限超過が429になることを検証する。
func TestCreateBlueprint_LimitExceeded(t *testing.T) {
	service := &mockBlueprintService{
		createFunc: func(ctx context.Context, userID, title string) (*model.Blueprint, error) {
			return nil, model.NewBlueprintLimitError(2)
		},
	}
	h := NewBlueprintHandler(service)

	req := newAuthenticatedRequest(http.MethodPost, "/api/blueprints", `{"title":"研修"}`)
	rec := httptest.NewRecorder()
	h.CreateBlueprint(rec, req)

	if rec.Code != http.StatusTooManyRequests {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusTooManyRequests)
	}
	if resp := decodeErrorResponse(t, rec); resp.Code != model.ErrCodeBlueprintLimit {
		t.Errorf("code = %q, want BLUEPRINT_LIMIT", resp.Code)
	}
}

// TestGetBlueprint_NotFound は存在しないブループリントが404になることを検証する。
func TestGetBlueprint_NotFound(t *testing.T) {
	service := &mockBlueprintService{
		getFunc: func(ctx context.Context, userID, blueprintID string) (*model.Blueprint, error) {
			return nil, model.NewBlueprintNotFoundError(blueprintID)
		},
	}
	h := NewBlueprintHandler(service)

	req := withURLParam(newAuthenticatedRequest(http.MethodGet, "/api/blueprints/missing", ""), "id", "missing")
	rec := httptest.NewRecorder()
	h.GetBlueprint(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusNotFound)
	}
}

// TestFinalizeBlueprint_AIUnavailable はAI障害が502になることを検証する。
func TestFinalizeBlueprint_AIUnavailable(t *testing.T) {
	service := &mockBlueprintService{
		finalizeFunc: func(ctx context.Context, userID, blueprintID string) (*model.Blueprint, error) {
			return nil, model.NewAIUnavailableError("接続できません")
		},
	}
	h := NewBlueprintHandler(service)

	req := withURLParam(newAuthenticatedRequest(http.MethodPost, "/api/blueprints/bp-1/finalize", ""), "id", "bp-1")
	rec := httptest.NewRecorder()
	h.FinalizeBlueprint(rec, req)

	if rec.Code != http.StatusBadGateway {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusBadGateway)
	}
}

// TestSaveAnswers_PassesBody は回答がサービスへ渡されることを検証する。
func TestSaveAnswers_PassesBody(t *testing.T) {
	var gotAnswers []model.WizardAnswer
	service := &mockBlueprintService{
		saveAnswersFunc: func(ctx context.Context, userID, blueprintID string, answers []model.WizardAnswer) (*model.Blueprint, error) {
			gotAnswers = answers
			return &model.Blueprint{ID: blueprintID, Answers: answers}, nil
		},
	}
	h := NewBlueprintHandler(service)

	body := `{"answers":[{"question_id":"q1","value":"新入社員"}]}`
	req := withURLParam(newAuthenticatedRequest(http.MethodPut, "/api/blueprints/bp-1/answers", body), "id", "bp-1")
	rec := httptest.NewRecorder()
	h.SaveAnswers(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if len(gotAnswers) != 1 || gotAnswers[0].QuestionID != "q1" {
		t.Errorf("answers = %v, want [q1]", gotAnswers)
	}
}

// TestExportBlueprint_Markdown はMarkdownがtext/markdownで返ることを検証する。
func TestExportBlueprint_Markdown(t *testing.T) {
	service := &mockBlueprintService{
		exportFunc: func(ctx context.Context, userID, blueprintID string) (string, error) {
			return "# 研修計画\n\n本文\n", nil
		},
	}
	h := NewBlueprintHandler(service)

	req := withURLParam(newAuthenticatedRequest(http.MethodGet, "/api/blueprints/bp-1/export", ""), "id", "bp-1")
	rec := httptest.NewRecorder()
	h.ExportBlueprint(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if ct := rec.Header().Get("Content-Type"); !strings.Contains(ct, "text/markdown") {
		t.Errorf("content-type = %q, want text/markdown", ct)
	}
	if !strings.Contains(rec.Body.String(), "# 研修計画") {
		t.Errorf("body should contain markdown heading, got %q", rec.Body.String())
	}
}

// TestDeleteBlueprint_NoContent は削除成功が204になることを検証する。
func TestDeleteBlueprint_NoContent(t *testing.T) {
	h := NewBlueprintHandler(&mockBlueprintService{})

	req := withURLParam(newAuthenticatedRequest(http.MethodDelete, "/api/blueprints/bp-1", ""), "id", "bp-1")
	rec := httptest.NewRecorder()
	h.DeleteBlueprint(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusNoContent)
	}
}

// TestHandleServiceError_Internal はAPIError以外のエラーが500になることを検証する。
func TestHandleServiceError_Internal(t *testing.T) {
	service := &mockBlueprintService{
		listFunc: func(ctx context.Context, userID string) ([]*model.Blueprint, error) {
			return nil, context.DeadlineExceeded
		},
	}
	h := NewBlueprintHandler(service)

	req := newAuthenticatedRequest(http.MethodGet, "/api/blueprints", "")
	rec := httptest.NewRecorder()
	h.ListBlueprints(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusInternalServerError)
	}
	if resp := decodeErrorResponse(t, rec); resp.Code != "INTERNAL_ERROR" {
		t.Errorf("code = %q, want INTERNAL_ERROR", resp.Code)
	}
}
