package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/hitoshi/idfinder/internal/middleware"
	"github.com/hitoshi/idfinder/internal/security"
)

// HealthChecker はDB接続の疎通確認に使用する。*sql.DBが実装する。
type HealthChecker interface {
	PingContext(ctx context.Context) error
}

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	Logger            *slog.Logger
	HealthChecker     HealthChecker
	UserResolver      middleware.UserResolver
	RateLimiter       *middleware.RateLimiter
	CORSAllowedOrigin string
	CSRF              middleware.CSRFConfig
	MetricsHandler    http.Handler

	AuthService AuthServiceInterface
	AuthConfig  AuthHandlerConfig

	RegistryService RegistryServiceInterface
	URLGuard        URLValidator
	Sanitizer       security.TextSanitizerService
}

// NewRouter は全エンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアの実行順序:
//
//	Recovery → RequestID → RealIP → SecurityHeaders → CORS → Session → Logging
//
// /api/* と /auth/logout にはさらに RateLimit(General) と CSRF を適用し、
// 届出作成には RateLimit(Report) を追加する。
// /health と /metrics はログとレート制限の対象外とする。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.NewRecoveryMiddleware(deps.Logger))
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.NewSecurityHeadersMiddleware(deps.CSRF.CookieSecure))
	// プリフライトはルートにマッチしないためトップレベルで処理する
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))

	r.Get("/health", healthHandler(deps.HealthChecker))
	if deps.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", deps.MetricsHandler)
	}

	authHandler := NewAuthHandler(deps.AuthService, deps.AuthConfig)
	recordHandler := NewRecordHandler(deps.RegistryService, deps.URLGuard, deps.Sanitizer)

	r.Group(func(r chi.Router) {
		r.Use(middleware.NewSessionMiddleware(deps.UserResolver))
		r.Use(middleware.NewLoggingMiddleware(deps.Logger))

		// IdPとのリダイレクトはトップレベル遷移のためCSRFトークンを要求しない
		r.Get("/auth/login", authHandler.Login)
		r.Get("/auth/callback", authHandler.Callback)
		r.Get("/auth/me", authHandler.Me)

		r.Group(func(r chi.Router) {
			r.Use(deps.RateLimiter.GeneralMiddleware())
			r.Use(middleware.NewCSRFMiddleware(deps.CSRF))

			r.Post("/auth/logout", authHandler.Logout)

			r.Route("/api", func(r chi.Router) {
				r.Method(http.MethodGet, "/csrf-token", middleware.NewCSRFTokenHandler(deps.CSRF))
				r.Get("/listings", recordHandler.Listings)

				r.Route("/lost", func(r chi.Router) {
					r.Get("/", recordHandler.ListLost)
					r.With(deps.RateLimiter.ReportMiddleware()).Post("/", recordHandler.ReportLost)
				})
				r.Route("/found", func(r chi.Router) {
					r.Get("/", recordHandler.ListFound)
					r.With(deps.RateLimiter.ReportMiddleware()).Post("/", recordHandler.ReportFound)
				})
			})
		})
	})

	return r
}

// healthHandler はDBに疎通できれば200、できなければ503を返す。
func healthHandler(checker HealthChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
		defer cancel()

		if checker != nil {
			if err := checker.PingContext(ctx); err != nil {
				slog.Error("health check failed", slog.String("error", err.Error()))
				writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
				return
			}
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
