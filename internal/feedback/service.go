// Package feedback はユーザーフィードバックの受付と管理者返信のユースケースを提供する。
package feedback

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/smartslate/polaris/internal/model"
	"github.com/smartslate/polaris/internal/repository"
	"github.com/smartslate/polaris/internal/security"
)

// maxMessageLength はフィードバック本文の最大文字数。
const maxMessageLength = 2000

// defaultListLimit は一覧取得のデフォルト件数。
const defaultListLimit = 50

// Service はフィードバックのユースケースを提供する。
type Service struct {
	logger       *slog.Logger
	feedbackRepo repository.FeedbackRepository
	sanitizer    security.ContentSanitizerService
}

// NewService はServiceを生成する。
func NewService(
	logger *slog.Logger,
	feedbackRepo repository.FeedbackRepository,
	sanitizer security.ContentSanitizerService,
) *Service {
	return &Service{
		logger:       logger,
		feedbackRepo: feedbackRepo,
		sanitizer:    sanitizer,
	}
}

// Submit はユーザーからのフィードバックを受け付ける。
// 本文はサニタイズされ、未知のカテゴリはINVALID_CATEGORYとして拒否する。
func (s *Service) Submit(ctx context.Context, userID string, category model.FeedbackCategory, message string) (*model.FeedbackSubmission, error) {
	if !model.IsValidFeedbackCategory(category) {
		return nil, model.NewInvalidCategoryError(string(category))
	}

	message = strings.TrimSpace(s.sanitizer.SanitizeText(message))
	if message == "" {
		return nil, model.NewInvalidRequestError("フィードバック本文を入力してください")
	}
	if len([]rune(message)) > maxMessageLength {
		return nil, model.NewInvalidRequestError(fmt.Sprintf("フィードバック本文は%d文字以内で入力してください", maxMessageLength))
	}

	fb := &model.FeedbackSubmission{
		ID:        uuid.NewString(),
		UserID:    userID,
		Category:  category,
		Message:   message,
		Status:    model.FeedbackStatusOpen,
		CreatedAt: time.Now(),
	}
	if err := s.feedbackRepo.Create(ctx, fb); err != nil {
		return nil, fmt.Errorf("フィードバックの保存に失敗しました: %w", err)
	}

	s.logger.Info("feedback submitted",
		slog.String("feedback_id", fb.ID),
		slog.String("category", string(category)),
	)
	return fb, nil
}

// List は管理者向けにフィードバック一覧を返す。
// statusが空の場合は全件を対象とする。
func (s *Service) List(ctx context.Context, status model.FeedbackStatus, limit int) ([]*model.FeedbackSubmission, error) {
	if limit <= 0 || limit > 100 {
		limit = defaultListLimit
	}

	list, err := s.feedbackRepo.ListByStatus(ctx, status, limit)
	if err != nil {
		return nil, fmt.Errorf("フィードバック一覧の取得に失敗しました: %w", err)
	}
	return list, nil
}

// Respond は管理者がフィードバックに返信し、状態をrespondedに更新する。
func (s *Service) Respond(ctx context.Context, feedbackID, response, respondedBy string) (*model.FeedbackSubmission, error) {
	response = strings.TrimSpace(s.sanitizer.SanitizeText(response))
	if response == "" {
		return nil, model.NewInvalidRequestError("返信内容を入力してください")
	}

	fb, err := s.feedbackRepo.FindByID(ctx, feedbackID)
	if err != nil {
		return nil, fmt.Errorf("フィードバックの取得に失敗しました: %w", err)
	}
	if fb == nil {
		return nil, model.NewFeedbackNotFoundError(feedbackID)
	}

	now := time.Now()
	if err := s.feedbackRepo.Respond(ctx, feedbackID, response, respondedBy, now); err != nil {
		return nil, fmt.Errorf("返信の保存に失敗しました: %w", err)
	}

	fb.Status = model.FeedbackStatusResponded
	fb.Response = response
	fb.RespondedBy = respondedBy
	fb.RespondedAt = &now

	s.logger.Info("feedback responded",
		slog.String("feedback_id", feedbackID),
		slog.String("responded_by", respondedBy),
	)
	return fb, nil
}
