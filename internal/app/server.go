package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/hitoshi/invman/internal/auth"
	"github.com/hitoshi/invman/internal/config"
	"github.com/hitoshi/invman/internal/database"
	"github.com/hitoshi/invman/internal/handler"
	"github.com/hitoshi/invman/internal/metrics"
	"github.com/hitoshi/invman/internal/middleware"
	"github.com/hitoshi/invman/internal/model"
	"github.com/hitoshi/invman/internal/product"
	"github.com/hitoshi/invman/internal/repository"
	"github.com/hitoshi/invman/internal/security"
	"github.com/hitoshi/invman/internal/upload"
	"github.com/hitoshi/invman/internal/worker/cleanup"
)

const (
	dbConnectRetries = 5
	dbConnectBackoff = 500 * time.Millisecond
	shutdownTimeout  = 30 * time.Second
)

// Server はワイヤリング済みのAPIサーバーを表す。
type Server struct {
	Handler http.Handler

	cfg     *config.Config
	db      *sql.DB
	limiter *middleware.RateLimiter
	cleanup *cleanup.CleanupJob
	logger  *slog.Logger
}

// NewServer は設定に従って全依存関係をワイヤリングする。
// DATABASE_URLが設定されている場合はPostgreSQLに接続し、マイグレーションを適用する。
// 未設定の場合はインメモリストアを使用する。
func NewServer(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Server, error) {
	s := &Server{cfg: cfg, logger: logger}

	// 1. メトリクス
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	collector := metrics.NewCollector(reg)

	// 2. リポジトリの初期化
	var (
		userRepo    repository.UserRepository
		productRepo repository.ProductRepository
		health      handler.HealthChecker
	)
	if cfg.UsesMemoryStore() {
		var seed []*model.Product
		if cfg.SeedProducts {
			seed = product.DemoProducts()
		}
		userRepo = repository.NewMemoryUserRepo()
		productRepo = repository.NewMemoryProductRepo(seed...)
		logger.Warn("DATABASE_URL is not set; using in-memory stores",
			slog.Int("seeded_products", len(seed)),
		)
	} else {
		db, err := openDatabase(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		s.db = db
		userRepo = repository.NewPostgresUserRepo(db)
		productRepo = repository.NewPostgresProductRepo(db)
		health = db
	}

	// 3. 画像保存先
	store := upload.NewStore(cfg.UploadDir, cfg.UploadMaxSize)
	if err := store.EnsureDir(); err != nil {
		s.Close()
		return nil, err
	}

	// 4. ドメインサービスの初期化
	tokens, err := auth.NewTokenService([]byte(cfg.JWTSecret), auth.WithTTL(cfg.TokenTTL))
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("failed to create token service: %w", err)
	}
	credentials := auth.NewService(userRepo, auth.NewBcryptHasher(cfg.BcryptCost), auth.WithMetrics(collector))
	products := product.NewService(productRepo, security.NewTextSanitizer())

	// 5. ルーターの構築
	s.limiter = middleware.NewRateLimiter(middleware.NewRateLimiterConfig(cfg.RateLimitGeneral, cfg.RateLimitAuth))
	s.Handler = handler.NewRouter(&handler.RouterDeps{
		Logger:            logger,
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		RateLimiter:       s.limiter,
		TokenVerifier:     tokens,
		Metrics:           collector,
		Gatherer:          reg,
		HealthChecker:     health,
		AuthService:       handler.NewAuthServiceAdapter(credentials, tokens),
		ProductService:    products,
		Images:            store,
		Uploads:           store.Handler(),
	})

	// 6. 孤立画像クリーンアップ
	s.cleanup = cleanup.NewCleanupJob(productRepo, store, logger, collector)

	return s, nil
}

// openDatabase はPostgreSQLに接続し、起動待ちとマイグレーションを行う。
func openDatabase(ctx context.Context, url string) (*sql.DB, error) {
	db, err := database.Open(url)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := database.WaitReady(ctx, db, dbConnectRetries, dbConnectBackoff); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	slog.Info("database connection established")

	if err := database.RunMigrations(url); err != nil {
		db.Close()
		return nil, fmt.Errorf("migration failed: %w", err)
	}
	return db, nil
}

// Serve はlnでHTTPサーバーを起動し、ctxがキャンセルされるとグレースフルシャットダウンする。
// クリーンアップジョブはサーバーと同じ寿命でバックグラウンド実行する。
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	server := &http.Server{
		Handler:      s.Handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	jobCtx, cancelJob := context.WithCancel(ctx)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		s.cleanup.Start(jobCtx, s.cfg.CleanupInterval)
	}()
	defer func() {
		cancelJob()
		wg.Wait()
	}()

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("API server starting", slog.String("addr", ln.Addr().String()))
		if err := server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("server listen error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	s.logger.Info("shutting down API server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	s.logger.Info("API server stopped gracefully")
	return nil
}

// Close はレートリミッターとDB接続を解放する。
func (s *Server) Close() error {
	if s.limiter != nil {
		s.limiter.Stop()
	}
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}
