package server

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"pricewaterfall/internal/adapters/cache"
	"pricewaterfall/internal/adapters/exchange/fallback"
	"pricewaterfall/internal/adapters/exchange/httpx"
	"pricewaterfall/internal/adapters/exchange/primary"
	"pricewaterfall/internal/adapters/exchange/secondary"
	v1 "pricewaterfall/internal/adapters/handler/http/v1"
	"pricewaterfall/internal/adapters/repository/postgres"
	"pricewaterfall/internal/config"
	"pricewaterfall/internal/core/domain"
	"pricewaterfall/internal/core/port"
	"pricewaterfall/internal/core/service/health"
	"pricewaterfall/internal/core/service/prices"
	"pricewaterfall/internal/core/service/ratelimit"
	"pricewaterfall/internal/core/service/symbols"

	"github.com/redis/go-redis/v9"

	_ "github.com/lib/pq"
)

type App struct {
	cfg         *config.Config
	router      *http.ServeMux
	db          *sql.DB
	redisClient *redis.Client

	// Services
	priceService  *prices.Service
	healthService port.HealthService

	// For graceful shutdown
	ctx    context.Context
	cancel context.CancelFunc
}

func NewApp(cfg *config.Config) *App {
	ctx, cancel := context.WithCancel(context.Background())

	return &App{
		cfg:    cfg,
		ctx:    ctx,
		cancel: cancel,
	}
}

func (app *App) Initialize() error {
	slog.Info("Initializing application...")
	app.router = http.NewServeMux()

	// Database connection
	dbConn, err := postgres.NewDbConnInstance(&app.cfg.Repository)
	if err != nil {
		slog.Error("Connection to database failed", "error", err)
		return err
	}
	app.db = dbConn
	slog.Info("Database connected successfully")

	// Redis connection; the limiter store is mandatory because cooldown
	// and debounce semantics live there.
	redisClient := redis.NewClient(&redis.Options{
		Addr:         fmt.Sprintf("%s:%d", app.cfg.Cache.RedisHost, app.cfg.Cache.RedisPort),
		Password:     app.cfg.Cache.RedisPassword,
		DB:           app.cfg.Cache.RedisDB,
		PoolSize:     app.cfg.Cache.PoolSize,
		MinIdleConns: app.cfg.Cache.MinIdleConns,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := redisClient.Ping(ctx).Err(); err != nil {
		slog.Error("Redis connection failed", "error", err)
		return fmt.Errorf("redis unavailable: %w", err)
	}
	app.redisClient = redisClient
	slog.Info("Redis connected successfully")

	kv := cache.NewRedisAdapter(redisClient)
	store := postgres.NewPriceRepository(app.db)
	limiter := ratelimit.NewLimiter(kv)
	resolver := symbols.NewResolver(app.cfg.Pricing.SymbolOverrides)

	// Feed clients share one HTTP client configuration.
	httpClient := httpx.New(app.cfg.Providers.Timeout())

	primaryFeed := primary.NewBinanceClient(app.cfg.Providers.BinanceBaseURL, httpClient)
	aggregator := secondary.NewAggregator(app.cfg.Providers.Timeout(),
		secondary.NewBybitClient(app.cfg.Providers.BybitBaseURL, httpClient),
		secondary.NewKuCoinClient(app.cfg.Providers.KuCoinBaseURL, httpClient),
		secondary.NewGateIOClient(app.cfg.Providers.GateIOBaseURL, httpClient),
		secondary.NewOKXClient(app.cfg.Providers.OKXBaseURL, httpClient),
	)
	fallbackFeed := fallback.NewCoinGeckoClient(app.cfg.Providers.CoinGeckoBaseURL, httpClient)

	app.priceService = prices.NewService(store, primaryFeed, aggregator, fallbackFeed,
		limiter, resolver, prices.Config{
			FallbackCooldown: app.cfg.Pricing.FallbackCooldown(),
			RefreshCooldown:  app.cfg.Pricing.RefreshCooldown(),
			TrackedAssets:    trackedAssets(app.cfg.Pricing.TrackedAssets),
		})

	app.healthService = health.NewHealthService(store, kv)

	priceHandler := v1.NewPriceHandler(app.priceService, limiter,
		v1.RefreshLimit{
			MaxAttempts: app.cfg.Pricing.RefreshRateLimit.MaxAttempts,
			Window:      app.cfg.Pricing.RefreshRateLimit.Window(),
		},
		app.cfg.Pricing.FallbackCooldown(),
	)
	healthHandler := v1.NewHealthHandler(app.healthService)

	v1.SetRoutes(app.router, priceHandler, healthHandler)
	v1.SetDebugRoutes(app.router, kv)

	// Keep tracked assets warm without waiting for manual refreshes.
	go app.startRefreshLoop()

	slog.Info("Application initialized successfully")
	return nil
}

func (app *App) Run() {
	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", app.cfg.App.Port),
		Handler: app.router,
	}

	slog.Info("Starting server", "port", app.cfg.App.Port)

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("Server error", "error", err)
		return
	}
}

// startRefreshLoop periodically re-runs the waterfall for tracked assets.
// The shared debounce flag makes this safe to run in every instance: only
// one of them performs each refresh.
func (app *App) startRefreshLoop() {
	interval := app.cfg.Pricing.RefreshInterval()
	slog.Info("Starting background refresh loop", "interval", interval.String())

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			ran, err := app.priceService.RefreshAll(app.ctx)
			if err != nil {
				slog.Error("Background refresh failed", "error", err)
			} else if ran {
				slog.Debug("Background refresh executed")
			}

		case <-app.ctx.Done():
			slog.Info("Background refresh loop stopped")
			return
		}
	}
}

func trackedAssets(cfgAssets []config.TrackedAsset) []domain.TrackedAsset {
	out := make([]domain.TrackedAsset, 0, len(cfgAssets))
	for _, a := range cfgAssets {
		out = append(out, domain.TrackedAsset{AssetID: a.AssetID, Symbol: a.Symbol})
	}
	return out
}

// Shutdown gracefully shuts down the application
func (app *App) Shutdown() error {
	slog.Info("Shutting down application...")

	// Cancel context to stop all goroutines
	app.cancel()

	// Close database connection
	if app.db != nil {
		if err := app.db.Close(); err != nil {
			slog.Error("Failed to close database", "error", err)
		}
	}

	// Close Redis connection
	if app.redisClient != nil {
		if err := app.redisClient.Close(); err != nil {
			slog.Error("Failed to close Redis", "error", err)
		}
	}

	slog.Info("Application shutdown complete")
	return nil
}
