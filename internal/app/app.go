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

	"github.com/hitoshi/productguard/internal/config"
	"github.com/hitoshi/productguard/internal/database"
	"github.com/hitoshi/productguard/internal/evidence"
	"github.com/hitoshi/productguard/internal/handler"
	"github.com/hitoshi/productguard/internal/logger"
	"github.com/hitoshi/productguard/internal/mailer"
	"github.com/hitoshi/productguard/internal/metrics"
	"github.com/hitoshi/productguard/internal/middleware"
	"github.com/hitoshi/productguard/internal/repository"
	"github.com/hitoshi/productguard/internal/security"
	"github.com/hitoshi/productguard/internal/worker/cleanup"
	"github.com/hitoshi/productguard/internal/worker/sendqueue"
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
	tokenRepo := repository.NewPostgresAPITokenRepo(db)
	productRepo := repository.NewPostgresProductRepo(db)
	infRepo := repository.NewPostgresInfringementRepo(db)
	profileRepo := repository.NewPostgresDMCAProfileRepo(db)
	queueRepo := repository.NewPostgresQueueRepo(db)
	takedownRepo := repository.NewPostgresTakedownRepo(db)
	commLogRepo := repository.NewPostgresCommLogRepo(db)

	// 3. メトリクスの初期化
	registry := prometheus.NewRegistry()
	collector := metrics.NewCollector(registry)

	// 4. セキュリティサービスの初期化
	ssrfGuard := security.NewSSRFGuard()
	sanitizer := security.NewContentSanitizer()

	// 5. 証拠収集・分析サービスの初期化
	capturer := evidence.NewCapturer(ssrfGuard, sanitizer, slog.Default())
	completionClient := evidence.NewCompletionClient(
		&http.Client{Timeout: cfg.CaptureTimeout},
		slog.Default(), cfg.AIEndpoint, cfg.AIAPIKey, cfg.AIModel,
	)
	analyzer := evidence.NewAnalyzer(completionClient, slog.Default())

	// 6. メール送信と送信キュープロセッサの初期化
	// /api/queue/process からの手動サイクル実行に使用される。
	// 定期実行はworkerモードが担う。
	sender := mailer.NewSMTPSender(
		cfg.SMTPAddr, cfg.SMTPUsername, cfg.SMTPPassword,
		cfg.SMTPFrom, cfg.SMTPFromName, slog.Default(),
	)
	processor := sendqueue.NewProcessor(
		queueRepo, infRepo, takedownRepo, commLogRepo,
		sender, collector, slog.Default(),
		cfg.QueueBatchSize, cfg.QueueRetryDelay, cfg.SendPacing,
	)

	// 7. ルーターの構築
	// configのレート値はreq/min単位なのでreq/secに変換する
	rateLimiterCfg := middleware.DefaultRateLimiterConfig()
	rateLimiterCfg.GeneralRate = rateLimitPerSecond(cfg.RateLimitGeneral)
	rateLimiterCfg.GeneralBurst = cfg.RateLimitGeneral
	rateLimiterCfg.NoticeRate = rateLimitPerSecond(cfg.RateLimitNotice)
	rateLimiterCfg.NoticeBurst = cfg.RateLimitNotice
	rateLimiter := middleware.NewRateLimiter(rateLimiterCfg)
	defer rateLimiter.Stop()

	deps := &handler.RouterDeps{
		TokenFinder:       tokenRepo,
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		RateLimiter:       rateLimiter,
		Logger:            slog.Default(),

		Infringements: infRepo,
		Products:      productRepo,
		Profiles:      profileRepo,
		Queue:         queueRepo,
		Takedowns:     takedownRepo,
		CommLogs:      commLogRepo,
		Processor:     processor,
		Capturer:      capturer,
		Analyzer:      analyzer,
		URLValidator:  ssrfGuard,
		Collector:     collector,

		MetricsHandler: metrics.SetupMetricsRoute(registry),
	}

	router := handler.NewRouter(deps)

	// 8. HTTPサーバーの起動
	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
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
// DB接続を開き、送信キュープロセッサを定期実行する。
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
	infRepo := repository.NewPostgresInfringementRepo(db)
	queueRepo := repository.NewPostgresQueueRepo(db)
	takedownRepo := repository.NewPostgresTakedownRepo(db)
	commLogRepo := repository.NewPostgresCommLogRepo(db)

	// 3. メトリクスの初期化
	// workerモードはHTTPを公開しないため、レジストリはプロセス内集計のみ。
	registry := prometheus.NewRegistry()
	collector := metrics.NewCollector(registry)

	// 4. メール送信の初期化
	sender := mailer.NewSMTPSender(
		cfg.SMTPAddr, cfg.SMTPUsername, cfg.SMTPPassword,
		cfg.SMTPFrom, cfg.SMTPFromName, slog.Default(),
	)

	// 5. 送信キュープロセッサの初期化
	processor := sendqueue.NewProcessor(
		queueRepo, infRepo, takedownRepo, commLogRepo,
		sender, collector, slog.Default(),
		cfg.QueueBatchSize, cfg.QueueRetryDelay, cfg.SendPacing,
	)

	// 6. クリーンアップジョブの初期化
	cleanupJob := cleanup.NewCleanupJob(db, slog.Default())

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
		slog.Duration("queue_interval", cfg.QueueInterval),
		slog.Int("batch_size", cfg.QueueBatchSize),
	)

	// クリーンアップジョブを日次でバックグラウンド実行
	go func() {
		// 起動直後に1回実行
		if err := cleanupJob.Run(ctx); err != nil {
			slog.Error("cleanup job failed", slog.String("error", err.Error()))
		}

		ticker := time.NewTicker(24 * time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := cleanupJob.Run(ctx); err != nil {
					slog.Error("cleanup job failed", slog.String("error", err.Error()))
				}
			}
		}
	}()

	// 送信キュープロセッサをメインgoroutineで実行（ブロッキング）
	processor.Start(ctx, cfg.QueueInterval)

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

// rateLimitPerSecond はreq/min設定値をrate.Limit（req/sec）へ変換する。
func rateLimitPerSecond(perMinute int) rate.Limit {
	return rate.Limit(float64(perMinute) / 60.0)
}

// maskDatabaseURL はデータベースURLの認証情報をマスクする。
func maskDatabaseURL(url string) string {
	if len(url) > 20 {
		return url[:12] + "***@..."
	}
	return "***"
}
