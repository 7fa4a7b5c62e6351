package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/hitoshi/invman/internal/metrics"
	"github.com/hitoshi/invman/internal/middleware"
)

// HealthChecker はヘルスチェックで疎通を確認する依存先。*sql.DBが満たす。
type HealthChecker interface {
	PingContext(ctx context.Context) error
}

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	Logger            *slog.Logger
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter
	TokenVerifier     middleware.TokenVerifier
	Metrics           metrics.MetricsCollector
	Gatherer          prometheus.Gatherer

	// nilの場合は常に正常を返す（インメモリモード）
	HealthChecker HealthChecker

	// 認証
	AuthService AuthServiceInterface

	// 商品
	ProductService ProductServiceInterface
	Images         ImageStore
	Uploads        http.Handler
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	RealIP → Recovery → Logging → Metrics → SecurityHeaders → CORS
//
// 商品APIには Auth → RateLimit(General) を追加で適用する。
// 登録・ログインにはIP単位のRateLimit(Auth)を適用する。
func NewRouter(deps *RouterDeps) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	collector := deps.Metrics
	if collector == nil {
		collector = metrics.Nop{}
	}

	r := chi.NewRouter()

	r.Use(chimw.RealIP)
	r.Use(middleware.NewRecoveryMiddleware(logger))
	r.Use(middleware.NewLoggingMiddleware(logger))
	r.Use(middleware.NewMetricsMiddleware(collector))
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))

	authHandler := NewAuthHandler(deps.AuthService)
	productHandler := NewProductHandler(deps.ProductService, deps.Images)
	requireToken := middleware.NewAuthMiddleware(deps.TokenVerifier, collector)

	// --- 運用エンドポイント ---
	r.Get("/health", healthHandler(deps.HealthChecker))
	if deps.Gatherer != nil {
		r.Method(http.MethodGet, "/metrics", metrics.Handler(deps.Gatherer))
	}
	if deps.Uploads != nil {
		r.Method(http.MethodGet, "/uploads/*", deps.Uploads)
	}

	// --- 認証 ---
	r.Route("/api/auth", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(deps.RateLimiter.AuthMiddleware())
			r.Post("/register", authHandler.Register)
			r.Post("/login", authHandler.Login)
		})
		r.With(requireToken).Get("/profile", authHandler.Profile)
	})

	// --- 認証が必要なルート ---
	// ミドルウェアスタック: Auth → RateLimit(General)
	r.Route("/api/products", func(r chi.Router) {
		r.Use(requireToken)
		r.Use(deps.RateLimiter.GeneralMiddleware())

		r.Get("/", productHandler.ListProducts)
		r.Post("/", productHandler.CreateProduct)
		r.Get("/latest", productHandler.LatestProducts)

		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", productHandler.GetProduct)
			r.Put("/", productHandler.UpdateProduct)
			r.Delete("/", productHandler.DeleteProduct)
		})
	})

	return r
}

// healthHandler は依存先の疎通を確認し、正常なら200 "ok"を返す。
func healthHandler(checker HealthChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if checker != nil {
			if err := checker.PingContext(r.Context()); err != nil {
				slog.Error("health check failed", slog.String("error", err.Error()))
				http.Error(w, "unavailable", http.StatusServiceUnavailable)
				return
			}
		}
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	}
}
