// Package app はアプリケーションの起動と依存関係のワイヤリングを提供する。
package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/time/rate"

	"github.com/smartslate/polaris/internal/ai"
	"github.com/smartslate/polaris/internal/billing"
	"github.com/smartslate/polaris/internal/blueprint"
	"github.com/smartslate/polaris/internal/config"
	"github.com/smartslate/polaris/internal/database"
	"github.com/smartslate/polaris/internal/feedback"
	"github.com/smartslate/polaris/internal/handler"
	"github.com/smartslate/polaris/internal/logger"
	"github.com/smartslate/polaris/internal/metrics"
	"github.com/smartslate/polaris/internal/middleware"
	"github.com/smartslate/polaris/internal/model"
	"github.com/smartslate/polaris/internal/razorpay"
	"github.com/smartslate/polaris/internal/repository"
	"github.com/smartslate/polaris/internal/security"
	"github.com/smartslate/polaris/internal/user"
	"github.com/smartslate/polaris/internal/worker/cleanup"
	"github.com/smartslate/polaris/internal/worker/events"
)

// Init はアプリケーションの初期化を行う。
// 環境変数からConfigを読み込み、JSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w)

	// 2. 環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	return cfg, nil
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応するモードで起動する。
// argsにはos.Args[1:]を渡す。
func Run(w io.Writer, args []string) error {
	cmd := ParseCommand(args)

	// healthcheck は軽量サブコマンドのため、フル初期化をスキップする
	if cmd == CommandHealthcheck {
		port := os.Getenv("SERVER_PORT")
		if port == "" {
			port = "8080"
		}
		return runHealthcheck(port)
	}

	cfg, err := Init(w)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	slog.Info("starting application",
		slog.String("command", string(cmd)),
		slog.String("port", cfg.ServerPort),
		slog.String("base_url", cfg.BaseURL),
	)

	switch cmd {
	case CommandServe:
		return runServe(cfg)
	case CommandWorker:
		return runWorker(cfg)
	case CommandMigrate:
		return runMigrate(cfg)
	default:
		return runServe(cfg)
	}
}

// runServe はAPIサーバーモードで起動する。
// DB接続を開き、全依存関係をワイヤリングし、HTTPサーバーを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(cfg *config.Config) error {
	// 1. DB接続
	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	slog.Info("database connection established")

	// 2. リポジトリの初期化
	userProfileRepo := repository.NewPostgresUserProfileRepo(db)
	subscriptionRepo := repository.NewPostgresSubscriptionRepo(db)
	paymentRepo := repository.NewPostgresPaymentRepo(db)
	blueprintRepo := repository.NewPostgresBlueprintRepo(db)
	feedbackRepo := repository.NewPostgresFeedbackRepo(db)
	webhookEventRepo := repository.NewPostgresWebhookEventRepo(db)

	// 3. メトリクスとセキュリティサービスの初期化
	registry := prometheus.NewRegistry()
	collector := metrics.NewCollector(registry)
	sanitizer := security.NewContentSanitizer()

	// 4. 外部APIクライアントの初期化
	razorpayClient := razorpay.NewClient(
		&http.Client{Timeout: cfg.GatewayTimeout},
		slog.Default(),
		cfg.RazorpayKeyID, cfg.RazorpayKeySecret, cfg.RazorpayAPIURL,
	)
	aiClient := ai.NewClient(
		&http.Client{Timeout: cfg.AITimeout},
		slog.Default(),
		cfg.AIServiceKey, cfg.AIServiceURL,
	)

	// 5. ドメインサービスの初期化
	saga := billing.NewSagaRunner(slog.Default(), collector, cfg.SagaRetryAttempts, cfg.SagaRetryDelay)
	notifier := billing.NewLogNotifier(slog.Default())
	planIDs := map[model.Tier]string{
		model.TierNavigator: cfg.RazorpayPlanNavigator,
		model.TierVoyager:   cfg.RazorpayPlanVoyager,
	}
	billingService := billing.NewService(
		slog.Default(), saga, razorpayClient, notifier,
		subscriptionRepo, userProfileRepo, paymentRepo, planIDs,
	)

	blueprintService := blueprint.NewService(
		slog.Default(), blueprintRepo, userProfileRepo, aiClient, sanitizer, collector,
	)
	userService := user.NewService(
		slog.Default(), userProfileRepo, blueprintRepo, subscriptionRepo, razorpayClient, sanitizer,
	)
	feedbackService := feedback.NewService(slog.Default(), feedbackRepo, sanitizer)

	// 6. レート制限の設定（configはreq/min単位）
	rateLimiterCfg := middleware.DefaultRateLimiterConfig()
	rateLimiterCfg.GeneralRate = rate.Limit(float64(cfg.RateLimitGeneral) / 60.0)
	rateLimiterCfg.GeneralBurst = cfg.RateLimitGeneral
	rateLimiterCfg.GenerationLimit = cfg.RateLimitGeneration
	rateLimiterCfg.WebhookLimit = cfg.RateLimitWebhook
	rateLimiter := middleware.NewRateLimiter(rateLimiterCfg)
	defer rateLimiter.Stop()

	// 7. ルーターの構築
	deps := &handler.RouterDeps{
		Logger:            slog.Default(),
		JWTSecret:         cfg.SupabaseJWTSecret,
		RoleFinder:        userProfileRepo,
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		RateLimiter:       rateLimiter,

		UserService:      userService,
		BlueprintService: blueprintService,
		BillingService:   billingService,
		FeedbackService:  feedbackService,
		WebhookHandler: handler.NewWebhookHandler(
			slog.Default(), webhookEventRepo, collector, cfg.RazorpayWebhookSecret,
		),
		MetricsHandler: metrics.Handler(registry),
	}

	router := handler.NewRouter(deps)

	// 8. HTTPサーバーの起動
	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// グレースフルシャットダウンのためのシグナルハンドリング
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		slog.Info("API server starting",
			slog.String("addr", server.Addr),
		)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server listen error", slog.String("error", err.Error()))
		}
	}()

	<-stop
	slog.Info("shutting down API server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("API server stopped gracefully")
	return nil
}

// runWorker はワーカーモードで起動する。
// DB接続を開き、Webhookイベント処理ワーカーとクリーンアップジョブを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとシャットダウンする。
func runWorker(cfg *config.Config) error {
	// 1. DB接続
	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	slog.Info("database connection established (worker)")

	// 2. リポジトリの初期化
	userProfileRepo := repository.NewPostgresUserProfileRepo(db)
	subscriptionRepo := repository.NewPostgresSubscriptionRepo(db)
	paymentRepo := repository.NewPostgresPaymentRepo(db)
	webhookEventRepo := repository.NewPostgresWebhookEventRepo(db)

	// 3. メトリクスの初期化
	registry := prometheus.NewRegistry()
	collector := metrics.NewCollector(registry)

	// 4. イベント処理ワーカーの初期化
	webhookProcessor := billing.NewWebhookProcessor(
		slog.Default(), collector, subscriptionRepo, userProfileRepo, paymentRepo,
	)
	eventWorker := events.NewProcessor(
		webhookEventRepo, webhookProcessor, slog.Default(), collector,
		cfg.WorkerMaxConcurrent, cfg.EventMaxAttempts, cfg.EventRetryDelay,
	)

	// 5. クリーンアップジョブの初期化
	cleanupJob := cleanup.NewCleanupJob(db, slog.Default())
	cleanupJob.EventRetentionDays = cfg.EventRetentionDays
	cleanupJob.DraftRetentionDays = cfg.DraftRetentionDays

	// グレースフルシャットダウンのためのシグナルハンドリング
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-stop
		slog.Info("shutting down worker...")
		cancel()
	}()

	slog.Info("worker starting",
		slog.Duration("event_interval", cfg.EventWorkerInterval),
		slog.Int("max_concurrent", cfg.WorkerMaxConcurrent),
	)

	// クリーンアップジョブを日次でバックグラウンド実行
	go func() {
		// 起動直後に1回実行
		if err := cleanupJob.Run(ctx); err != nil {
			slog.Error("cleanup job failed", slog.String("error", err.Error()))
		}
		cleanupJob.Start(ctx, 24*time.Hour)
	}()

	// イベント処理ワーカーをメインgoroutineで実行（ブロッキング）
	eventWorker.Start(ctx, cfg.EventWorkerInterval)

	slog.Info("worker stopped gracefully")
	return nil
}

// runMigrate はデータベースマイグレーションを実行する。
// すべての未適用マイグレーションを順番に適用する。
func runMigrate(cfg *config.Config) error {
	slog.Info("running database migrations",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	if err := database.RunMigrations(cfg.DatabaseURL); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	slog.Info("database migrations completed successfully")
	return nil
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /health エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(port string) error {
	url := fmt.Sprintf("http://localhost:%s/health", port)
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(url)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}

// maskDatabaseURL はデータベースURLの認証情報をマスクする。
func maskDatabaseURL(url string) string {
	if len(url) > 20 {
		return url[:12] + "***@..."
	}
	return "***"
}
