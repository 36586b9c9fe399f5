package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/productguard/internal/middleware"
	"github.com/hitoshi/productguard/internal/model"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	TokenFinder       middleware.APITokenFinder
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter
	Logger            *slog.Logger

	// ハンドラー依存
	Infringements InfringementStore
	Products      ProductStore
	Profiles      DMCAProfileStore
	Queue         QueueStore
	Takedowns     TakedownStore
	CommLogs      CommunicationLogReader
	Processor     BatchProcessor
	Capturer      PageCapturer
	Analyzer      EvidenceAnalyzer
	URLValidator  URLValidator
	Collector     PipelineMetrics

	// /metrics に公開するPrometheusハンドラー
	MetricsHandler http.Handler
}

// PipelineMetrics はHTTP層が記録するメトリクスの集約インターフェース。
type PipelineMetrics interface {
	NoticeMetrics
	CaptureMetrics
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → Logging → SecurityHeaders → CORS → TokenAuth → RateLimit(General)
//
// /health と /metrics は認証チェーンの外に配置する。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewLoggingMiddleware(deps.Logger))
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))

	noticeHandler := NewNoticeHandler(deps.Infringements, deps.Products, deps.Profiles, deps.Queue, deps.Collector)
	queueHandler := NewQueueHandler(deps.Queue, deps.Infringements, deps.Processor)
	infHandler := NewInfringementHandler(deps.Infringements, deps.Products, deps.CommLogs, deps.Capturer, deps.Analyzer, deps.URLValidator, deps.Collector)
	takedownHandler := NewTakedownHandler(deps.Takedowns, deps.Infringements)
	productHandler := NewProductHandler(deps.Products)
	profileHandler := NewProfileHandler(deps.Profiles)

	// --- 認証不要のルート ---

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	if deps.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", deps.MetricsHandler)
	}

	// --- 認証が必要なルート ---
	// ミドルウェアスタック: TokenAuth → RateLimit(General)
	r.Group(func(r chi.Router) {
		r.Use(middleware.NewTokenAuthMiddleware(deps.TokenFinder))
		r.Use(deps.RateLimiter.GeneralMiddleware())

		// 通知生成（生成専用レート制限を追加）
		r.Route("/api/notices", func(r chi.Router) {
			notice := r.With(deps.RateLimiter.NoticeGenerationMiddleware())
			notice.Post("/", noticeHandler.GenerateNotice)
			notice.Post("/bulk", noticeHandler.BulkGenerate)

			// 品質チェックは純粋な検査であり生成レート制限の対象外
			r.Post("/quality", noticeHandler.CheckQuality)
		})

		// 送信キュー
		r.Route("/api/queue", func(r chi.Router) {
			r.Post("/", queueHandler.Enqueue)
			r.Get("/", queueHandler.ListQueue)
			r.Post("/process", queueHandler.ProcessBatch)
			r.Get("/{id}", queueHandler.GetQueueItem)
		})

		// 侵害レコード
		r.Route("/api/infringements", func(r chi.Router) {
			r.Post("/", infHandler.CreateInfringement)
			r.Get("/", infHandler.ListInfringements)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", infHandler.GetInfringement)
				r.Get("/targets", infHandler.ListTargets)
				r.Get("/communications", infHandler.ListCommunications)
				r.Post("/capture", infHandler.CaptureEvidence)

				// 検証アクション
				r.Post("/verify", infHandler.UpdateStatus(model.InfringementStatusActive))
				r.Post("/false-positive", infHandler.UpdateStatus(model.InfringementStatusFalsePositive))
				r.Post("/dispute", infHandler.UpdateStatus(model.InfringementStatusDisputed))
				r.Post("/removed", infHandler.UpdateStatus(model.InfringementStatusRemoved))
				r.Post("/archive", infHandler.UpdateStatus(model.InfringementStatusArchived))
			})
		})

		// テイクダウン追跡
		r.Route("/api/takedowns", func(r chi.Router) {
			r.Get("/", takedownHandler.ListTakedowns)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", takedownHandler.GetTakedown)
				r.Patch("/status", takedownHandler.UpdateStatus)
			})
		})

		// 商品管理
		r.Route("/api/products", func(r chi.Router) {
			r.Post("/", productHandler.CreateProduct)
			r.Get("/", productHandler.ListProducts)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", productHandler.GetProduct)
				r.Put("/", productHandler.UpdateProduct)
			})
		})

		// DMCAプロフィール
		r.Route("/api/profile", func(r chi.Router) {
			r.Get("/", profileHandler.GetProfile)
			r.Put("/", profileHandler.UpsertProfile)
		})
	})

	return r
}
