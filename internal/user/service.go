// Package user はユーザープロフィールと利用状況のユースケースを提供する。
package user

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/smartslate/polaris/internal/model"
	"github.com/smartslate/polaris/internal/razorpay"
	"github.com/smartslate/polaris/internal/repository"
	"github.com/smartslate/polaris/internal/security"
)

// maxFullNameLength は表示名の最大文字数。
const maxFullNameLength = 100

// SubscriptionCanceller は退会時のサブスクリプション解約に必要なインターフェース。
// razorpay.Clientの部分集合として定義する。
type SubscriptionCanceller interface {
	CancelSubscription(ctx context.Context, subscriptionID string, cancelAtCycleEnd bool) (*razorpay.Subscription, error)
}

// Service はユーザープロフィールのユースケースを提供する。
type Service struct {
	logger           *slog.Logger
	userProfileRepo  repository.UserProfileRepository
	blueprintRepo    repository.BlueprintRepository
	subscriptionRepo repository.SubscriptionRepository
	canceller        SubscriptionCanceller
	sanitizer        security.ContentSanitizerService
}

// NewService はServiceを生成する。
func NewService(
	logger *slog.Logger,
	userProfileRepo repository.UserProfileRepository,
	blueprintRepo repository.BlueprintRepository,
	subscriptionRepo repository.SubscriptionRepository,
	canceller SubscriptionCanceller,
	sanitizer security.ContentSanitizerService,
) *Service {
	return &Service{
		logger:           logger,
		userProfileRepo:  userProfileRepo,
		blueprintRepo:    blueprintRepo,
		subscriptionRepo: subscriptionRepo,
		canceller:        canceller,
		sanitizer:        sanitizer,
	}
}

// EnsureProfile は認証済みユーザーのプロフィールを返す。
// 初回アクセス時はexplorerティアの一般ユーザーとして自動作成する。
func (s *Service) EnsureProfile(ctx context.Context, userID, email string) (*model.UserProfile, error) {
	profile, err := s.userProfileRepo.FindByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("プロフィールの取得に失敗しました: %w", err)
	}
	if profile != nil {
		return profile, nil
	}

	now := time.Now()
	profile = &model.UserProfile{
		ID:        userID,
		Email:     email,
		Role:      model.RoleMember,
		Tier:      model.TierExplorer,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.userProfileRepo.Create(ctx, profile); err != nil {
		return nil, fmt.Errorf("プロフィールの作成に失敗しました: %w", err)
	}

	s.logger.Info("profile provisioned",
		slog.String("user_id", userID),
	)
	return profile, nil
}

// Get はプロフィールを取得する。存在しない場合はUSER_NOT_FOUNDを返す。
func (s *Service) Get(ctx context.Context, userID string) (*model.UserProfile, error) {
	profile, err := s.userProfileRepo.FindByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("プロフィールの取得に失敗しました: %w", err)
	}
	if profile == nil {
		return nil, model.NewUserNotFoundError()
	}
	return profile, nil
}

// UpdateFullName は表示名をサニタイズして更新する。
func (s *Service) UpdateFullName(ctx context.Context, userID, fullName string) (*model.UserProfile, error) {
	fullName = strings.TrimSpace(s.sanitizer.SanitizeText(fullName))
	if len([]rune(fullName)) > maxFullNameLength {
		return nil, model.NewInvalidRequestError(fmt.Sprintf("表示名は%d文字以内で入力してください", maxFullNameLength))
	}

	profile, err := s.Get(ctx, userID)
	if err != nil {
		return nil, err
	}

	profile.FullName = fullName
	if err := s.userProfileRepo.Update(ctx, profile); err != nil {
		return nil, fmt.Errorf("プロフィールの更新に失敗しました: %w", err)
	}
	return profile, nil
}

// UsageSummary は今月の利用状況とティアの上限を返す。
func (s *Service) UsageSummary(ctx context.Context, userID string) (*model.UsageSummary, error) {
	profile, err := s.Get(ctx, userID)
	if err != nil {
		return nil, err
	}

	since := monthStart(time.Now())
	limits := model.LimitsForTier(profile.Tier)

	blueprintsUsed, err := s.blueprintRepo.CountCreatedSince(ctx, userID, since)
	if err != nil {
		return nil, fmt.Errorf("作成数の集計に失敗しました: %w", err)
	}
	generationsUsed, err := s.blueprintRepo.SumGenerationsSince(ctx, userID, since)
	if err != nil {
		return nil, fmt.Errorf("生成回数の集計に失敗しました: %w", err)
	}

	return &model.UsageSummary{
		Tier:             profile.Tier,
		BlueprintsUsed:   blueprintsUsed,
		BlueprintsLimit:  limits.BlueprintsPerMonth,
		GenerationsUsed:  generationsUsed,
		GenerationsLimit: limits.GenerationsPerMonth,
		PeriodStart:      since,
	}, nil
}

// Withdraw は退会処理を行う。
// 有効なサブスクリプションがあればゲートウェイでの即時解約を試みる
// （解約失敗はログに記録して退会は継続する）。
// プロフィール削除により関連データはCASCADE削除される。
func (s *Service) Withdraw(ctx context.Context, userID string) error {
	profile, err := s.Get(ctx, userID)
	if err != nil {
		return err
	}

	sub, err := s.subscriptionRepo.FindCurrentByUserID(ctx, userID)
	if err != nil {
		return fmt.Errorf("サブスクリプションの確認に失敗しました: %w", err)
	}
	if sub != nil && sub.RazorpaySubscriptionID != "" {
		if _, err := s.canceller.CancelSubscription(ctx, sub.RazorpaySubscriptionID, false); err != nil {
			s.logger.Error("gateway cancellation failed during withdrawal",
				slog.String("user_id", userID),
				slog.String("razorpay_subscription_id", sub.RazorpaySubscriptionID),
				slog.String("error", err.Error()),
			)
		}
	}

	if err := s.userProfileRepo.DeleteByID(ctx, profile.ID); err != nil {
		return fmt.Errorf("退会処理に失敗しました: %w", err)
	}

	s.logger.Info("user withdrawn",
		slog.String("user_id", userID),
	)
	return nil
}

// AdminUpdateTier は管理者による対象ユーザーのティア変更を行う。
// 管理者権限の検証はミドルウェアで行われる。
func (s *Service) AdminUpdateTier(ctx context.Context, targetUserID string, tier model.Tier) (*model.UserProfile, error) {
	if !model.IsValidTier(tier) {
		return nil, model.NewInvalidTierError(string(tier))
	}

	profile, err := s.Get(ctx, targetUserID)
	if err != nil {
		return nil, err
	}

	if err := s.userProfileRepo.UpdateTier(ctx, targetUserID, tier); err != nil {
		return nil, fmt.Errorf("ティアの更新に失敗しました: %w", err)
	}

	profile.Tier = tier
	s.logger.Info("tier updated by admin",
		slog.String("user_id", targetUserID),
		slog.String("tier", string(tier)),
	)
	return profile, nil
}

// monthStart は指定時刻の属する月の開始時刻（UTC）を返す。
func monthStart(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}
