package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/smartslate/polaris/internal/middleware"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	Logger            *slog.Logger
	JWTSecret         string
	RoleFinder        middleware.RoleFinder
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter

	// ハンドラー依存
	UserService      UserServiceInterface
	BlueprintService BlueprintServiceInterface
	BillingService   BillingServiceInterface
	FeedbackService  FeedbackServiceInterface
	WebhookHandler   *WebhookHandler
	MetricsHandler   http.Handler
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → SecurityHeaders → CORS → Logging
//	認証ルート: → Auth(JWT) → RateLimit(General)
//	管理者ルート: さらに → Admin(role)
//
// 公開ルート（/health, /metrics, Webhook）は認証チェーンの外に配置する。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))
	r.Use(middleware.NewLoggingMiddleware(deps.Logger))

	userHandler := NewUserHandler(deps.UserService)
	blueprintHandler := NewBlueprintHandler(deps.BlueprintService)
	subscriptionHandler := NewSubscriptionHandler(deps.BillingService)
	feedbackHandler := NewFeedbackHandler(deps.FeedbackService)

	// --- 公開ルート ---

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSONResponse(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	if deps.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", deps.MetricsHandler)
	}

	// Webhook受信（IP単位の固定ウィンドウレート制限）
	r.With(deps.RateLimiter.WebhookMiddleware()).
		Post("/api/webhooks/razorpay", deps.WebhookHandler.HandleRazorpayWebhook)

	// --- 認証が必要なルート ---
	// ミドルウェアスタック: Auth(JWT) → RateLimit(General)
	r.Group(func(r chi.Router) {
		r.Use(middleware.NewAuthMiddleware(deps.JWTSecret))
		r.Use(deps.RateLimiter.GeneralMiddleware())

		// ユーザー管理
		r.Route("/api/user", func(r chi.Router) {
			r.Get("/me", userHandler.Me)
			r.Patch("/me", userHandler.UpdateProfile)
			r.Delete("/me", userHandler.Withdraw)
			r.Get("/usage", userHandler.Usage)
		})

		// ブループリント管理
		r.Route("/api/blueprints", func(r chi.Router) {
			r.Get("/", blueprintHandler.ListBlueprints)
			r.Post("/", blueprintHandler.CreateBlueprint)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", blueprintHandler.GetBlueprint)
				r.Delete("/", blueprintHandler.DeleteBlueprint)
				r.Put("/answers", blueprintHandler.SaveAnswers)
				r.Get("/export", blueprintHandler.ExportBlueprint)

				// AI生成操作（ユーザー単位のスライディングウィンドウレート制限を追加）
				r.With(deps.RateLimiter.GenerationMiddleware()).Post("/questions", blueprintHandler.GenerateQuestions)
				r.With(deps.RateLimiter.GenerationMiddleware()).Post("/finalize", blueprintHandler.FinalizeBlueprint)
			})
		})

		// サブスクリプションと決済履歴
		r.Route("/api/subscriptions", func(r chi.Router) {
			r.Get("/", subscriptionHandler.GetCurrentSubscription)
			r.Post("/", subscriptionHandler.Upgrade)
			r.Delete("/{id}", subscriptionHandler.Cancel)
		})
		r.Get("/api/payments/history", subscriptionHandler.ListPayments)

		// フィードバック送信
		r.Post("/api/feedback", feedbackHandler.SubmitFeedback)

		// --- 管理者専用ルート ---
		r.Group(func(r chi.Router) {
			r.Use(middleware.NewAdminMiddleware(deps.RoleFinder))

			r.Get("/api/feedback", feedbackHandler.ListFeedback)
			r.Post("/api/feedback/{id}/respond", feedbackHandler.RespondFeedback)
			r.Post("/api/admin/upgrade-tier", userHandler.UpgradeTier)
		})
	})

	return r
}
