package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"pricewaterfall/internal/core/domain"
	"pricewaterfall/internal/core/port"
)

// PriceRepository stores current quotes (one row per asset) and the
// append-only price history in PostgreSQL.
type PriceRepository struct {
	db *sql.DB
}

func NewPriceRepository(db *sql.DB) port.QuoteStore {
	return &PriceRepository{db: db}
}

// UpsertQuote writes the current quote and its history point in a single
// transaction, so a crash cannot leave history out of sync with the
// current quote.
func (r *PriceRepository) UpsertQuote(ctx context.Context, quote domain.PriceQuote) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin quote transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO current_prices (asset_id, symbol, price_usd, change_24h, source, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (asset_id) DO UPDATE SET
			symbol     = EXCLUDED.symbol,
			price_usd  = EXCLUDED.price_usd,
			change_24h = EXCLUDED.change_24h,
			source     = EXCLUDED.source,
			updated_at = EXCLUDED.updated_at`,
		quote.AssetID, quote.Symbol, quote.PriceUSD, quote.Change24hPercent, quote.Source, quote.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert quote for %s: %w", quote.AssetID, err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO price_history (asset_id, price_usd, recorded_at)
		VALUES ($1, $2, $3)`,
		quote.AssetID, quote.PriceUSD, quote.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to append history for %s: %w", quote.AssetID, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit quote for %s: %w", quote.AssetID, err)
	}
	return nil
}

// GetQuote returns the current quote for an asset, or domain.ErrNotFound.
func (r *PriceRepository) GetQuote(ctx context.Context, assetID string) (*domain.PriceQuote, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT asset_id, symbol, price_usd, change_24h, source, updated_at
		FROM current_prices
		WHERE asset_id = $1`, assetID)

	var q domain.PriceQuote
	err := row.Scan(&q.AssetID, &q.Symbol, &q.PriceUSD, &q.Change24hPercent, &q.Source, &q.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("quote for %s: %w", assetID, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read quote for %s: %w", assetID, err)
	}
	return &q, nil
}

// ListQuotes returns all current quotes ordered by symbol.
func (r *PriceRepository) ListQuotes(ctx context.Context) ([]domain.PriceQuote, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT asset_id, symbol, price_usd, change_24h, source, updated_at
		FROM current_prices
		ORDER BY symbol ASC, asset_id ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list quotes: %w", err)
	}
	defer rows.Close()

	var quotes []domain.PriceQuote
	for rows.Next() {
		var q domain.PriceQuote
		if err := rows.Scan(&q.AssetID, &q.Symbol, &q.PriceUSD, &q.Change24hPercent, &q.Source, &q.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan quote row: %w", err)
		}
		quotes = append(quotes, q)
	}
	return quotes, rows.Err()
}

// ListTracked returns every asset that has a current quote.
func (r *PriceRepository) ListTracked(ctx context.Context) ([]domain.TrackedAsset, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT asset_id, symbol FROM current_prices ORDER BY asset_id ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list tracked assets: %w", err)
	}
	defer rows.Close()

	var tracked []domain.TrackedAsset
	for rows.Next() {
		var t domain.TrackedAsset
		if err := rows.Scan(&t.AssetID, &t.Symbol); err != nil {
			return nil, fmt.Errorf("failed to scan tracked asset: %w", err)
		}
		tracked = append(tracked, t)
	}
	return tracked, rows.Err()
}

// GetHistory returns the most recent limit points in chronological order.
// The query fetches newest-first for the index, then the slice is reversed
// for display.
func (r *PriceRepository) GetHistory(ctx context.Context, assetID string, limit int) ([]domain.PriceHistoryPoint, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT asset_id, price_usd, recorded_at
		FROM price_history
		WHERE asset_id = $1
		ORDER BY recorded_at DESC
		LIMIT $2`, assetID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to read history for %s: %w", assetID, err)
	}
	defer rows.Close()

	points, err := scanHistory(rows)
	if err != nil {
		return nil, err
	}

	// Reverse newest-first into chronological order.
	for i, j := 0, len(points)-1; i < j; i, j = i+1, j-1 {
		points[i], points[j] = points[j], points[i]
	}
	return points, nil
}

// GetHistorySince returns points recorded at or after since, oldest first.
func (r *PriceRepository) GetHistorySince(ctx context.Context, assetID string, since time.Time) ([]domain.PriceHistoryPoint, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT asset_id, price_usd, recorded_at
		FROM price_history
		WHERE asset_id = $1 AND recorded_at >= $2
		ORDER BY recorded_at ASC`, assetID, since)
	if err != nil {
		return nil, fmt.Errorf("failed to read history window for %s: %w", assetID, err)
	}
	defer rows.Close()

	return scanHistory(rows)
}

// Ping checks database connection health
func (r *PriceRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func scanHistory(rows *sql.Rows) ([]domain.PriceHistoryPoint, error) {
	var points []domain.PriceHistoryPoint
	for rows.Next() {
		var p domain.PriceHistoryPoint
		if err := rows.Scan(&p.AssetID, &p.PriceUSD, &p.RecordedAt); err != nil {
			return nil, fmt.Errorf("failed to scan history row: %w", err)
		}
		points = append(points, p)
	}
	return points, rows.Err()
}
