// Package model はドメインモデルを定義する。
package model

import "time"

// Role はユーザーの権限ロールを表す。
type Role string

const (
	// RoleMember は一般ユーザーを示す。
	RoleMember Role = "member"
	// RoleAdmin は管理者を示す。フィードバック対応やティア変更が可能。
	RoleAdmin Role = "admin"
)

// Tier はサブスクリプションのティア（プラン）を表す。
type Tier string

const (
	// TierExplorer は無料ティア。
	TierExplorer Tier = "explorer"
	// TierNavigator は標準有料ティア。
	TierNavigator Tier = "navigator"
	// TierVoyager は上位有料ティア。利用上限なし。
	TierVoyager Tier = "voyager"
)

// IsValidTier はティア名が定義済みのものかを検証する。
func IsValidTier(t Tier) bool {
	switch t {
	case TierExplorer, TierNavigator, TierVoyager:
		return true
	default:
		return false
	}
}

// TierLimits はティアごとの月間利用上限を表す。
// -1 は無制限を意味する。
type TierLimits struct {
	BlueprintsPerMonth  int
	GenerationsPerMonth int
}

// LimitsForTier はティアに対応する月間利用上限を返す。
// 未知のティアにはexplorer相当の上限を返す。
func LimitsForTier(t Tier) TierLimits {
	switch t {
	case TierNavigator:
		return TierLimits{BlueprintsPerMonth: 10, GenerationsPerMonth: 100}
	case TierVoyager:
		return TierLimits{BlueprintsPerMonth: -1, GenerationsPerMonth: -1}
	default:
		return TierLimits{BlueprintsPerMonth: 2, GenerationsPerMonth: 10}
	}
}

// UserProfile はサービス利用ユーザーのプロフィールを表す。
// IDはSupabase Authが発行するユーザーID（UUID）と一致する。
type UserProfile struct {
	ID        string
	Email     string
	FullName  string
	Role      Role
	Tier      Tier
	CreatedAt time.Time
	UpdatedAt time.Time
}

// IsAdmin は管理者ロールかどうかを返す。
func (u *UserProfile) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// UsageSummary はユーザーの当月利用状況と上限を表す。
type UsageSummary struct {
	Tier             Tier
	BlueprintsUsed   int
	BlueprintsLimit  int
	GenerationsUsed  int
	GenerationsLimit int
	PeriodStart      time.Time
}
