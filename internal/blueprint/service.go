// Package blueprint は学習ブループリントのウィザードと生成のユースケースを提供する。
package blueprint

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/smartslate/polaris/internal/ai"
	"github.com/smartslate/polaris/internal/model"
	"github.com/smartslate/polaris/internal/repository"
	"github.com/smartslate/polaris/internal/security"
)

// maxTitleLength はブループリントタイトルの最大文字数。
const maxTitleLength = 200

// Generator はAI生成に必要なインターフェース。
// ai.Clientの部分集合として定義する。
type Generator interface {
	GenerateQuestions(ctx context.Context, req *ai.GenerateQuestionsRequest) ([]model.WizardQuestion, error)
	GenerateBlueprint(ctx context.Context, req *ai.GenerateBlueprintRequest) (string, error)
}

// GenerationMetrics は生成処理のメトリクス記録インターフェース。
type GenerationMetrics interface {
	RecordBlueprintGeneration()
	RecordAILatency(duration time.Duration)
}

// Service はブループリントのユースケースを提供する。
// すべての操作は所有者スコープで行われ、他ユーザーのブループリントは
// 存在しないものとして扱う（BLUEPRINT_NOT_FOUND）。
type Service struct {
	logger          *slog.Logger
	blueprintRepo   repository.BlueprintRepository
	userProfileRepo repository.UserProfileRepository
	generator       Generator
	sanitizer       security.ContentSanitizerService
	metrics         GenerationMetrics
}

// NewService はServiceを生成する。
func NewService(
	logger *slog.Logger,
	blueprintRepo repository.BlueprintRepository,
	userProfileRepo repository.UserProfileRepository,
	generator Generator,
	sanitizer security.ContentSanitizerService,
	metrics GenerationMetrics,
) *Service {
	return &Service{
		logger:          logger,
		blueprintRepo:   blueprintRepo,
		userProfileRepo: userProfileRepo,
		generator:       generator,
		sanitizer:       sanitizer,
		metrics:         metrics,
	}
}

// Create は下書き状態の新しいブループリントを作成する。
// ティアごとの月間作成上限を超える場合はBLUEPRINT_LIMITを返す。
func (s *Service) Create(ctx context.Context, userID, title string) (*model.Blueprint, error) {
	title = strings.TrimSpace(s.sanitizer.SanitizeText(title))
	if title == "" {
		return nil, model.NewInvalidRequestError("タイトルは必須です")
	}
	if len([]rune(title)) > maxTitleLength {
		return nil, model.NewInvalidRequestError(fmt.Sprintf("タイトルは%d文字以内で入力してください", maxTitleLength))
	}

	limits, err := s.limitsForUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	if limits.BlueprintsPerMonth >= 0 {
		count, err := s.blueprintRepo.CountCreatedSince(ctx, userID, monthStart(time.Now()))
		if err != nil {
			return nil, fmt.Errorf("作成数の確認に失敗しました: %w", err)
		}
		if count >= limits.BlueprintsPerMonth {
			return nil, model.NewBlueprintLimitError(limits.BlueprintsPerMonth)
		}
	}

	now := time.Now()
	bp := &model.Blueprint{
		ID:        uuid.NewString(),
		UserID:    userID,
		Title:     title,
		Status:    model.BlueprintStatusDraft,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.blueprintRepo.Create(ctx, bp); err != nil {
		return nil, fmt.Errorf("ブループリントの作成に失敗しました: %w", err)
	}

	s.logger.Info("blueprint created",
		slog.String("blueprint_id", bp.ID),
		slog.String("user_id", userID),
	)
	return bp, nil
}

// GenerateQuestions はAIでウィザードの設問を生成して保存する。
// ティアごとの月間生成上限を超える場合はGENERATION_LIMITを返す。
func (s *Service) GenerateQuestions(ctx context.Context, userID, blueprintID string) (*model.Blueprint, error) {
	bp, err := s.findOwned(ctx, userID, blueprintID)
	if err != nil {
		return nil, err
	}
	if bp.Status != model.BlueprintStatusDraft {
		return nil, model.NewBlueprintNotEditableError()
	}

	if err := s.checkGenerationLimit(ctx, userID); err != nil {
		return nil, err
	}

	start := time.Now()
	questions, err := s.generator.GenerateQuestions(ctx, &ai.GenerateQuestionsRequest{
		Title:   bp.Title,
		Answers: bp.Answers,
	})
	s.recordGeneration(time.Since(start))
	if err != nil {
		return nil, err
	}

	bp.Questions = questions
	bp.GenerationCount++
	bp.UpdatedAt = time.Now()
	if err := s.blueprintRepo.Update(ctx, bp); err != nil {
		return nil, fmt.Errorf("設問の保存に失敗しました: %w", err)
	}
	return bp, nil
}

// SaveAnswers はウィザードの回答をサニタイズして保存する。
func (s *Service) SaveAnswers(ctx context.Context, userID, blueprintID string, answers []model.WizardAnswer) (*model.Blueprint, error) {
	bp, err := s.findOwned(ctx, userID, blueprintID)
	if err != nil {
		return nil, err
	}
	if bp.Status != model.BlueprintStatusDraft {
		return nil, model.NewBlueprintNotEditableError()
	}

	// 設問に存在しない回答は受け付けない
	known := make(map[string]struct{}, len(bp.Questions))
	for _, q := range bp.Questions {
		known[q.ID] = struct{}{}
	}
	sanitized := make([]model.WizardAnswer, 0, len(answers))
	for _, a := range answers {
		if _, ok := known[a.QuestionID]; !ok {
			return nil, model.NewInvalidRequestError(fmt.Sprintf("未知の設問IDです: %s", a.QuestionID))
		}
		sanitized = append(sanitized, model.WizardAnswer{
			QuestionID: a.QuestionID,
			Value:      strings.TrimSpace(s.sanitizer.SanitizeText(a.Value)),
		})
	}

	bp.Answers = sanitized
	bp.UpdatedAt = time.Now()
	if err := s.blueprintRepo.Update(ctx, bp); err != nil {
		return nil, fmt.Errorf("回答の保存に失敗しました: %w", err)
	}
	return bp, nil
}

// Finalize は設問と回答からAIで本文を生成し、ブループリントを完成させる。
// 生成中はgenerating状態になり、失敗時はdraftに戻る。
func (s *Service) Finalize(ctx context.Context, userID, blueprintID string) (*model.Blueprint, error) {
	bp, err := s.findOwned(ctx, userID, blueprintID)
	if err != nil {
		return nil, err
	}
	if bp.Status != model.BlueprintStatusDraft {
		return nil, model.NewBlueprintNotEditableError()
	}
	if len(bp.Questions) == 0 || len(bp.Answers) == 0 {
		return nil, model.NewInvalidRequestError("設問と回答がそろっていません")
	}

	if err := s.checkGenerationLimit(ctx, userID); err != nil {
		return nil, err
	}

	bp.Status = model.BlueprintStatusGenerating
	bp.UpdatedAt = time.Now()
	if err := s.blueprintRepo.Update(ctx, bp); err != nil {
		return nil, fmt.Errorf("状態の更新に失敗しました: %w", err)
	}

	start := time.Now()
	content, err := s.generator.GenerateBlueprint(ctx, &ai.GenerateBlueprintRequest{
		Title:     bp.Title,
		Questions: bp.Questions,
		Answers:   bp.Answers,
	})
	s.recordGeneration(time.Since(start))
	if err != nil {
		// 失敗時はdraftに戻して再試行可能にする
		bp.Status = model.BlueprintStatusDraft
		if revertErr := s.blueprintRepo.Update(ctx, bp); revertErr != nil {
			s.logger.Error("failed to revert blueprint status",
				slog.String("blueprint_id", bp.ID),
				slog.String("error", revertErr.Error()),
			)
		}
		return nil, err
	}

	bp.Content = s.sanitizer.SanitizeContent(content)
	bp.Status = model.BlueprintStatusComplete
	bp.GenerationCount++
	bp.UpdatedAt = time.Now()
	if err := s.blueprintRepo.Update(ctx, bp); err != nil {
		return nil, fmt.Errorf("本文の保存に失敗しました: %w", err)
	}

	s.logger.Info("blueprint finalized",
		slog.String("blueprint_id", bp.ID),
		slog.String("user_id", userID),
	)
	return bp, nil
}

// Get は所有するブループリントを取得する。
func (s *Service) Get(ctx context.Context, userID, blueprintID string) (*model.Blueprint, error) {
	return s.findOwned(ctx, userID, blueprintID)
}

// List はユーザーのブループリント一覧を新しい順に返す。
func (s *Service) List(ctx context.Context, userID string) ([]*model.Blueprint, error) {
	blueprints, err := s.blueprintRepo.ListByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("ブループリント一覧の取得に失敗しました: %w", err)
	}
	return blueprints, nil
}

// Delete は所有するブループリントを削除する。
func (s *Service) Delete(ctx context.Context, userID, blueprintID string) error {
	bp, err := s.findOwned(ctx, userID, blueprintID)
	if err != nil {
		return err
	}
	if err := s.blueprintRepo.Delete(ctx, bp.ID); err != nil {
		return fmt.Errorf("ブループリントの削除に失敗しました: %w", err)
	}
	return nil
}

// findOwned は所有者スコープでブループリントを取得する。
// 存在しない場合も他ユーザー所有の場合もBLUEPRINT_NOT_FOUNDを返す。
func (s *Service) findOwned(ctx context.Context, userID, blueprintID string) (*model.Blueprint, error) {
	bp, err := s.blueprintRepo.FindByID(ctx, blueprintID)
	if err != nil {
		return nil, fmt.Errorf("ブループリントの取得に失敗しました: %w", err)
	}
	if bp == nil || bp.UserID != userID {
		return nil, model.NewBlueprintNotFoundError(blueprintID)
	}
	return bp, nil
}

// limitsForUser はユーザーのティアに応じた上限を返す。
func (s *Service) limitsForUser(ctx context.Context, userID string) (model.TierLimits, error) {
	profile, err := s.userProfileRepo.FindByID(ctx, userID)
	if err != nil {
		return model.TierLimits{}, fmt.Errorf("プロフィールの取得に失敗しました: %w", err)
	}
	if profile == nil {
		return model.TierLimits{}, model.NewUserNotFoundError()
	}
	return model.LimitsForTier(profile.Tier), nil
}

// checkGenerationLimit は月間のAI生成上限を確認する。
func (s *Service) checkGenerationLimit(ctx context.Context, userID string) error {
	limits, err := s.limitsForUser(ctx, userID)
	if err != nil {
		return err
	}
	if limits.GenerationsPerMonth < 0 {
		return nil
	}

	used, err := s.blueprintRepo.SumGenerationsSince(ctx, userID, monthStart(time.Now()))
	if err != nil {
		return fmt.Errorf("生成回数の確認に失敗しました: %w", err)
	}
	if used >= limits.GenerationsPerMonth {
		return model.NewGenerationLimitError(limits.GenerationsPerMonth)
	}
	return nil
}

// recordGeneration は生成実行のメトリクスを記録する。
func (s *Service) recordGeneration(duration time.Duration) {
	if s.metrics == nil {
		return
	}
	s.metrics.RecordBlueprintGeneration()
	s.metrics.RecordAILatency(duration)
}

// monthStart は指定時刻の属する月の開始時刻（UTC）を返す。
// 月間上限の集計起点として使用する。
func monthStart(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}
