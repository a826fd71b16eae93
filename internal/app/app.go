// Package app はアプリケーションの起動とワイヤリングを提供する。
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

	"github.com/hitoshi/quickstore/internal/account"
	"github.com/hitoshi/quickstore/internal/audit"
	"github.com/hitoshi/quickstore/internal/config"
	"github.com/hitoshi/quickstore/internal/database"
	"github.com/hitoshi/quickstore/internal/folder"
	"github.com/hitoshi/quickstore/internal/handler"
	"github.com/hitoshi/quickstore/internal/item"
	"github.com/hitoshi/quickstore/internal/logger"
	"github.com/hitoshi/quickstore/internal/metrics"
	"github.com/hitoshi/quickstore/internal/middleware"
	"github.com/hitoshi/quickstore/internal/ratelimit"
	"github.com/hitoshi/quickstore/internal/repository"
	"github.com/hitoshi/quickstore/internal/security"
	"github.com/hitoshi/quickstore/internal/share"
	"github.com/hitoshi/quickstore/internal/stats"
	"github.com/hitoshi/quickstore/internal/webhook"
	"github.com/hitoshi/quickstore/internal/worker/cleanup"
	webhookworker "github.com/hitoshi/quickstore/internal/worker/webhook"
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
	accountRepo := repository.NewPostgresAccountRepo(db)
	sessionRepo := repository.NewPostgresSessionRepo(db)
	itemRepo := repository.NewPostgresItemRepo(db)
	folderRepo := repository.NewPostgresFolderRepo(db)
	activityRepo := repository.NewPostgresActivityRepo(db)
	shareRepo := repository.NewPostgresShareRepo(db)
	webhookRepo := repository.NewPostgresWebhookRepo(db)

	// 3. セキュリティとメトリクスの初期化
	urlGuard := security.NewURLGuard()
	sanitizer := security.NewContentSanitizer()

	registry := prometheus.NewRegistry()
	collector := metrics.NewCollector(registry)

	// 4. 監査レコーダーとアイテム保存レートリミッターの初期化
	recorder := audit.NewLogger(activityRepo, slog.Default(), collector)

	saveLimiter := ratelimit.NewLimiter(5 * time.Minute)
	defer saveLimiter.Stop()

	// 5. ドメインサービスの初期化
	mailer := account.NewLogMailer(slog.Default())
	accountService := account.NewService(
		accountRepo, sessionRepo, itemRepo, folderRepo, activityRepo,
		recorder, mailer, slog.Default(), collector, cfg.SessionTTL,
	)
	itemService := item.NewService(itemRepo, saveLimiter, recorder, sanitizer, collector)
	folderService := folder.NewService(folderRepo, recorder, collector)
	shareService := share.NewService(shareRepo, itemRepo, accountRepo, recorder, collector)
	webhookService := webhook.NewService(webhookRepo, urlGuard, collector)
	statsService := stats.NewService(accountRepo, itemRepo, folderRepo)

	// 6. ルーターの構築
	rateLimiterCfg := middleware.DefaultRateLimiterConfig()
	if cfg.RateLimitGeneral > 0 {
		// configのRateLimitGeneralはreq/min単位なのでreq/secに変換する
		rateLimiterCfg.GeneralRate = rate.Limit(float64(cfg.RateLimitGeneral) / 60.0)
		rateLimiterCfg.GeneralBurst = cfg.RateLimitGeneral
	}
	rateLimiter := middleware.NewRateLimiter(rateLimiterCfg)
	defer rateLimiter.Stop()

	deps := &handler.RouterDeps{
		Logger:            slog.Default(),
		HealthChecker:     db,
		SessionFinder:     sessionRepo,
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		RateLimiter:       rateLimiter,

		AuthService: accountService,
		AuthConfig: handler.AuthHandlerConfig{
			CookieSecure: cfg.CookieSecure,
		},

		AccountService: accountService,
		ItemService:    itemService,
		FolderService:  folderService,
		ShareService:   shareService,
		WebhookService: webhookService,
		StatsService:   statsService,
	}

	router := handler.NewRouter(deps)

	// Prometheusスクレイプ用エンドポイントはAPIルーターの外に置く
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler(registry))
	mux.Handle("/", router)

	// 7. HTTPサーバーの起動
	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
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
// DB接続を開き、クリーンアップジョブとWebhookディスパッチャを起動する。
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
	accountRepo := repository.NewPostgresAccountRepo(db)
	sessionRepo := repository.NewPostgresSessionRepo(db)
	activityRepo := repository.NewPostgresActivityRepo(db)
	webhookRepo := repository.NewPostgresWebhookRepo(db)

	// 3. メトリクスの初期化
	registry := prometheus.NewRegistry()
	collector := metrics.NewCollector(registry)

	// 4. クリーンアップジョブの初期化
	cleanupJob := cleanup.NewCleanupJob(sessionRepo, accountRepo, activityRepo, slog.Default())
	if cfg.ActivityRetentionDays > 0 {
		cleanupJob.RetentionDays = cfg.ActivityRetentionDays
	}

	// 5. Webhookディスパッチャの初期化
	// 配信先は登録時に検証済みだが、配信時もSSRF防止クライアントを使用する
	urlGuard := security.NewURLGuard()
	dispatcher := webhookworker.NewDispatcher(
		activityRepo, webhookRepo,
		urlGuard.NewSafeClient(cfg.WebhookTimeout),
		slog.Default(), collector, 0,
	)

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
		slog.Duration("cleanup_interval", cfg.CleanupInterval),
		slog.Duration("dispatch_interval", cfg.WebhookDispatchInterval),
		slog.Int("retention_days", cleanupJob.RetentionDays),
	)

	// クリーンアップジョブをバックグラウンドで定期実行
	go cleanupJob.RunPeriodically(ctx, cfg.CleanupInterval)

	// Webhookディスパッチャをメインgoroutineで実行（ブロッキング）
	dispatcher.Start(ctx, cfg.WebhookDispatchInterval)

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
