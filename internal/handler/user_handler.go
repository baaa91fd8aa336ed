package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/smartslate/polaris/internal/middleware"
	"github.com/smartslate/polaris/internal/model"
)

// UserServiceInterface はユーザーハンドラーが必要とするサービスインターフェース。
type UserServiceInterface interface {
	// EnsureProfile はプロフィールを取得する。初回アクセス時は自動作成する。
	EnsureProfile(ctx context.Context, userID, email string) (*model.UserProfile, error)
	// UpdateFullName は表示名を更新する。
	UpdateFullName(ctx context.Context, userID, fullName string) (*model.UserProfile, error)
	// UsageSummary は今月の利用状況を返す。
	UsageSummary(ctx context.Context, userID string) (*model.UsageSummary, error)
	// Withdraw は退会処理を行う。
	Withdraw(ctx context.Context, userID string) error
	// AdminUpdateTier は管理者による対象ユーザーのティア変更を行う。
	AdminUpdateTier(ctx context.Context, targetUserID string, tier model.Tier) (*model.UserProfile, error)
}

// UserHandler はユーザープロフィールのHTTPハンドラー。
type UserHandler struct {
	service UserServiceInterface
}

// NewUserHandler はUserHandlerを生成する。
func NewUserHandler(service UserServiceInterface) *UserHandler {
	return &UserHandler{service: service}
}

// updateProfileRequest はプロフィール更新リクエストのボディ。
type updateProfileRequest struct {
	FullName string `json:"full_name"`
}

// upgradeTierRequest は管理者によるティア変更リクエストのボディ。
type upgradeTierRequest struct {
	UserID string `json:"user_id"`
	Tier   string `json:"tier"`
}

// profileResponse はプロフィールのAPIレスポンス。
type profileResponse struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	FullName  string    `json:"full_name,omitempty"`
	Role      string    `json:"role"`
	Tier      string    `json:"tier"`
	CreatedAt time.Time `json:"created_at"`
}

// usageResponse は利用状況のAPIレスポンス。上限-1は無制限を表す。
type usageResponse struct {
	Tier             string    `json:"tier"`
	BlueprintsUsed   int       `json:"blueprints_used"`
	BlueprintsLimit  int       `json:"blueprints_limit"`
	GenerationsUsed  int       `json:"generations_used"`
	GenerationsLimit int       `json:"generations_limit"`
	PeriodStart      time.Time `json:"period_start"`
}

// Me は認証済みユーザーのプロフィールを返す。
// 初回アクセス時はJWTクレームからプロフィールを自動作成する。
// GET /api/user/me
func (h *UserHandler) Me(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}
	email := middleware.UserEmailFromContext(r.Context())

	profile, err := h.service.EnsureProfile(r.Context(), userID, email)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, toProfileResponse(profile))
}

// UpdateProfile は表示名の更新を処理する。
// PATCH /api/user/me
func (h *UserHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	var req updateProfileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError("リクエストボディの解析に失敗しました"))
		return
	}

	profile, err := h.service.UpdateFullName(r.Context(), userID, req.FullName)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, toProfileResponse(profile))
}

// Usage は今月の利用状況を返す。
// GET /api/user/usage
func (h *UserHandler) Usage(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	summary, err := h.service.UsageSummary(r.Context(), userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, usageResponse{
		Tier:             string(summary.Tier),
		BlueprintsUsed:   summary.BlueprintsUsed,
		BlueprintsLimit:  summary.BlueprintsLimit,
		GenerationsUsed:  summary.GenerationsUsed,
		GenerationsLimit: summary.GenerationsLimit,
		PeriodStart:      summary.PeriodStart,
	})
}

// Withdraw は退会処理を実行する。
// DELETE /api/user/me
func (h *UserHandler) Withdraw(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	if err := h.service.Withdraw(r.Context(), userID); err != nil {
		handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// UpgradeTier は管理者による対象ユーザーのティア変更を処理する。
// 管理者権限の検証はミドルウェアで行われる。
// POST /api/admin/upgrade-tier
func (h *UserHandler) UpgradeTier(w http.ResponseWriter, r *http.Request) {
	var req upgradeTierRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError("リクエストボディの解析に失敗しました"))
		return
	}
	if req.UserID == "" {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError("user_idを指定してください"))
		return
	}

	profile, err := h.service.AdminUpdateTier(r.Context(), req.UserID, model.Tier(req.Tier))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, toProfileResponse(profile))
}

// toProfileResponse はドメインのUserProfileをレスポンス型に変換する。
func toProfileResponse(profile *model.UserProfile) profileResponse {
	return profileResponse{
		ID:        profile.ID,
		Email:     profile.Email,
		FullName:  profile.FullName,
		Role:      string(profile.Role),
		Tier:      string(profile.Tier),
		CreatedAt: profile.CreatedAt,
	}
}
