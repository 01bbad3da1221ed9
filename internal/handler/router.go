package handler

import (
	"io/fs"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/idgate/internal/metrics"
	"github.com/hitoshi/idgate/internal/middleware"
	"github.com/hitoshi/idgate/internal/telemetry"
	"github.com/prometheus/client_golang/prometheus"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	Logger             *slog.Logger
	SessionVerifier    middleware.SessionVerifier
	CORSAllowedOrigins []string
	LoginRateLimiter   *middleware.RateLimiter
	// TracingServiceName が空の場合はサーバースパンを作らない
	TracingServiceName string

	// 観測
	HealthChecker   HealthChecker
	Metrics         metrics.Recorder
	MetricsGatherer prometheus.Gatherer

	// 認証
	AuthService    AuthServiceInterface
	GoogleClientID string

	// 静的ファイル（index.html、dashboard.html、scripts/、styles/）
	StaticFS fs.FS
}

// NewRouter は全エンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Tracing → Recovery → Logging → SecurityHeaders → CORS → Metrics
//
// /api/* はBearer認証の内側、/auth/google はログイン用レート制限の内側に配置する。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	recorder := deps.Metrics
	if recorder == nil {
		recorder = metrics.Nop{}
	}

	if deps.TracingServiceName != "" {
		r.Use(telemetry.Middleware(deps.TracingServiceName))
	}
	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewLoggingMiddleware(logger))
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigins))
	r.Use(middleware.NewMetricsMiddleware(recorder))

	authHandler := NewAuthHandler(deps.AuthService)
	userHandler := NewUserHandler()
	configHandler := NewConfigHandler(deps.GoogleClientID)

	// --- 認証不要のルート ---

	if deps.HealthChecker != nil {
		r.Get("/health", NewHealthHandler(deps.HealthChecker).Check)
	}
	if deps.MetricsGatherer != nil {
		r.Handle("/metrics", metrics.Handler(deps.MetricsGatherer))
	}

	r.Get("/config", configHandler.Get)

	r.Group(func(r chi.Router) {
		if deps.LoginRateLimiter != nil {
			r.Use(deps.LoginRateLimiter.LoginMiddleware())
		}
		r.Post("/auth/google", authHandler.GoogleLogin)
	})

	// --- 認証が必要なルート ---
	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.NewBearerAuthMiddleware(deps.SessionVerifier))

		r.Get("/user", userHandler.Me)
		r.Post("/logout", userHandler.Logout)
	})

	// --- 静的ページ ---
	if deps.StaticFS != nil {
		static := NewStaticHandler(deps.StaticFS)
		r.Get("/", static.Index)
		r.Get("/dashboard", static.Dashboard)
		r.Get("/scripts/*", static.Assets)
		r.Get("/styles/*", static.Assets)
	}

	return r
}
