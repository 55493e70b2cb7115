package postgres

import (
	"database/sql"
	"errors"
	"fmt"

	"pricewaterfall/internal/config"
)

const schema = `
CREATE TABLE IF NOT EXISTS current_prices (
	asset_id   TEXT PRIMARY KEY,
	symbol     TEXT NOT NULL,
	price_usd  DOUBLE PRECISION NOT NULL,
	change_24h DOUBLE PRECISION NOT NULL DEFAULT 0,
	source     TEXT NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS price_history (
	id          BIGSERIAL PRIMARY KEY,
	asset_id    TEXT NOT NULL,
	price_usd   DOUBLE PRECISION NOT NULL,
	recorded_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_price_history_asset_time
	ON price_history (asset_id, recorded_at DESC);
`

func NewDbConnInstance(cfg *config.Repository) (*sql.DB, error) {
	if cfg == nil {
		return nil, errors.New("Postgres configuration is nil")
	}

	dsn := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.DBHost,
		cfg.DBPort,
		cfg.DBUsername,
		cfg.DBPassword,
		cfg.DBName,
		cfg.DBSSLMode,
	)

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("Failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("Failed to ping database: %w", err)
	}

	if cfg.MaxConn > 0 {
		db.SetMaxOpenConns(cfg.MaxConn)
	}
	if cfg.MaxIdleConn > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConn)
	}

	if err := EnsureSchema(db); err != nil {
		return nil, err
	}

	return db, nil
}

// EnsureSchema creates the quote and history tables when missing.
func EnsureSchema(db *sql.DB) error {
	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("Failed to ensure schema: %w", err)
	}
	return nil
}
