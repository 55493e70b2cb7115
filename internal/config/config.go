package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"
)

func GetConfig(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	var cfg Config
	if err = json.NewDecoder(f).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	// Override with environment variables
	if port := os.Getenv("PORT"); port != "" {
		p, err := strconv.Atoi(port)
		if err != nil {
			return nil, err
		}
		cfg.App.Port = p
	}

	// DB environment variables
	if host := os.Getenv("DB_HOST"); host != "" {
		cfg.Repository.DBHost = host
	}
	if port := os.Getenv("DB_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			cfg.Repository.DBPort = p
		}
	}
	if user := os.Getenv("DB_USER"); user != "" {
		cfg.Repository.DBUsername = user
	}
	if password := os.Getenv("DB_PASSWORD"); password != "" {
		cfg.Repository.DBPassword = password
	}
	if name := os.Getenv("DB_NAME"); name != "" {
		cfg.Repository.DBName = name
	}

	// Redis environment variables
	if redisHost := os.Getenv("REDIS_HOST"); redisHost != "" {
		cfg.Cache.RedisHost = redisHost
	}
	if redisPort := os.Getenv("REDIS_PORT"); redisPort != "" {
		cfg.Cache.RedisPort, _ = strconv.Atoi(redisPort)
	}
	if redisPassword := os.Getenv("REDIS_PASSWORD"); redisPassword != "" {
		cfg.Cache.RedisPassword = redisPassword
	}
	if redisDB := os.Getenv("REDIS_DB"); redisDB != "" {
		cfg.Cache.RedisDB, _ = strconv.Atoi(redisDB)
	}
	if poolSize := os.Getenv("REDIS_POOL_SIZE"); poolSize != "" {
		cfg.Cache.PoolSize, _ = strconv.Atoi(poolSize)
	}
	if minIdleConns := os.Getenv("REDIS_MIN_IDLE_CONNS"); minIdleConns != "" {
		cfg.Cache.MinIdleConns, _ = strconv.Atoi(minIdleConns)
	}

	// Provider environment variables; base URL overrides point the feed
	// clients at emulators during local development.
	if timeout := os.Getenv("PROVIDER_TIMEOUT_SEC"); timeout != "" {
		cfg.Providers.TimeoutSec, _ = strconv.Atoi(timeout)
	}
	if u := os.Getenv("BINANCE_BASE_URL"); u != "" {
		cfg.Providers.BinanceBaseURL = u
	}
	if u := os.Getenv("BYBIT_BASE_URL"); u != "" {
		cfg.Providers.BybitBaseURL = u
	}
	if u := os.Getenv("KUCOIN_BASE_URL"); u != "" {
		cfg.Providers.KuCoinBaseURL = u
	}
	if u := os.Getenv("GATEIO_BASE_URL"); u != "" {
		cfg.Providers.GateIOBaseURL = u
	}
	if u := os.Getenv("OKX_BASE_URL"); u != "" {
		cfg.Providers.OKXBaseURL = u
	}
	if u := os.Getenv("COINGECKO_BASE_URL"); u != "" {
		cfg.Providers.CoinGeckoBaseURL = u
	}

	// Pricing environment variables
	if v := os.Getenv("FALLBACK_COOLDOWN_SEC"); v != "" {
		cfg.Pricing.FallbackCooldownSec, _ = strconv.Atoi(v)
	}
	if v := os.Getenv("REFRESH_COOLDOWN_SEC"); v != "" {
		cfg.Pricing.RefreshCooldownSec, _ = strconv.Atoi(v)
	}
	if v := os.Getenv("REFRESH_INTERVAL_SEC"); v != "" {
		cfg.Pricing.RefreshIntervalSec, _ = strconv.Atoi(v)
	}

	return &cfg, nil
}

type Config struct {
	App        App        `json:"app"`
	Repository Repository `json:"repository"`
	Cache      Cache      `json:"cache"`
	Providers  Providers  `json:"providers"`
	Pricing    Pricing    `json:"pricing"`
}

type App struct {
	Port int `json:"port"`
}

type Repository struct {
	DBHost      string `json:"db_host"`
	DBPort      int    `json:"db_port"`
	DBUsername  string `json:"db_username"`
	DBPassword  string `json:"db_password"`
	DBName      string `json:"db_name"`
	DBSSLMode   string `json:"db_ssl_mode"`
	MaxConn     int    `json:"max_conn"`
	MaxIdleConn int    `json:"max_idle_conn"`
}

type Cache struct {
	RedisHost     string `json:"redis_host"`
	RedisPort     int    `json:"redis_port"`
	RedisPassword string `json:"redis_password"`
	RedisDB       int    `json:"redis_db"`
	PoolSize      int    `json:"pool_size"`
	MinIdleConns  int    `json:"min_idle_conns"`
}

// Providers holds per-feed base URLs (empty means the real endpoint) and
// the shared HTTP timeout.
type Providers struct {
	TimeoutSec       int    `json:"timeout_sec"`
	BinanceBaseURL   string `json:"binance_base_url"`
	BybitBaseURL     string `json:"bybit_base_url"`
	KuCoinBaseURL    string `json:"kucoin_base_url"`
	GateIOBaseURL    string `json:"gateio_base_url"`
	OKXBaseURL       string `json:"okx_base_url"`
	CoinGeckoBaseURL string `json:"coingecko_base_url"`
}

// Pricing holds the waterfall's cooldown windows, the background refresh
// cadence, the refresh endpoint's per-caller rate limit, the seed list of
// tracked assets and extra asset-to-symbol overrides.
type Pricing struct {
	FallbackCooldownSec int               `json:"fallback_cooldown_sec"`
	RefreshCooldownSec  int               `json:"refresh_cooldown_sec"`
	RefreshIntervalSec  int               `json:"refresh_interval_sec"`
	RefreshRateLimit    RateLimit         `json:"refresh_rate_limit"`
	TrackedAssets       []TrackedAsset    `json:"tracked_assets"`
	SymbolOverrides     map[string]string `json:"symbol_overrides"`
}

type RateLimit struct {
	MaxAttempts int `json:"max_attempts"`
	WindowSec   int `json:"window_sec"`
}

type TrackedAsset struct {
	AssetID string `json:"asset_id"`
	Symbol  string `json:"symbol"`
}

// Duration accessors with defaults, so zero-valued config still runs.

func (p Providers) Timeout() time.Duration {
	if p.TimeoutSec <= 0 {
		return 10 * time.Second
	}
	return time.Duration(p.TimeoutSec) * time.Second
}

func (p Pricing) FallbackCooldown() time.Duration {
	if p.FallbackCooldownSec <= 0 {
		return 60 * time.Second
	}
	return time.Duration(p.FallbackCooldownSec) * time.Second
}

func (p Pricing) RefreshCooldown() time.Duration {
	if p.RefreshCooldownSec <= 0 {
		return 30 * time.Second
	}
	return time.Duration(p.RefreshCooldownSec) * time.Second
}

func (p Pricing) RefreshInterval() time.Duration {
	if p.RefreshIntervalSec <= 0 {
		return 5 * time.Minute
	}
	return time.Duration(p.RefreshIntervalSec) * time.Second
}

func (r RateLimit) Window() time.Duration {
	if r.WindowSec <= 0 {
		return time.Minute
	}
	return time.Duration(r.WindowSec) * time.Second
}
