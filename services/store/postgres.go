package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/lib/pq"

	"sjsage522/hotdealmatcher/helpers"
	"sjsage522/hotdealmatcher/internal/crawler"
	cerrors "sjsage522/hotdealmatcher/pkg/errors"
)

// PostgresStore persists watermarks and result rows to PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore opens a connection, runs schema migrations, and returns a
// ready-to-use store. The database may still be starting up, so the initial
// ping is retried with backoff.
func NewPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, cerrors.NewStorage("postgres", "open", err)
	}

	err = helpers.RetryWithBackoff(ctx, 5, func(attempt int) error {
		return db.PingContext(ctx)
	})
	if err != nil {
		return nil, cerrors.NewStorage("postgres", "ping", err)
	}

	ps := &PostgresStore{db: db}
	if err := ps.migrate(); err != nil {
		return nil, cerrors.NewStorage("postgres", "migrate", err)
	}

	return ps, nil
}

func (ps *PostgresStore) migrate() error {
	_, err := ps.db.Exec(`
		CREATE TABLE IF NOT EXISTS watermarks (
			source            VARCHAR(50) PRIMARY KEY,
			last_processed_id BIGINT      NOT NULL DEFAULT 0,
			row_offset        BIGINT      NOT NULL DEFAULT 0,
			updated_at        TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);

		CREATE TABLE IF NOT EXISTS result_rows (
			id            SERIAL PRIMARY KEY,
			ts            TIMESTAMPTZ NOT NULL,
			source_name   VARCHAR(50) NOT NULL,
			post_id       BIGINT      NOT NULL,
			post_url      TEXT        NOT NULL,
			raw_title     TEXT        NOT NULL,
			cleaned_title TEXT        NOT NULL,
			shop_url      TEXT        NOT NULL,
			source_price  BIGINT      NOT NULL,
			mall_title    TEXT        NOT NULL,
			catalog_url   TEXT        NOT NULL DEFAULT '',
			catalog_id    TEXT        NOT NULL DEFAULT '',
			catalog_title TEXT        NOT NULL DEFAULT '',
			catalog_price TEXT        NOT NULL DEFAULT '',
			shipping_info TEXT        NOT NULL DEFAULT '',
			review_count  TEXT        NOT NULL DEFAULT ''
		);

		CREATE INDEX IF NOT EXISTS idx_result_rows_source  ON result_rows(source_name);
		CREATE INDEX IF NOT EXISTS idx_result_rows_post_id ON result_rows(post_id);
		CREATE INDEX IF NOT EXISTS idx_result_rows_ts      ON result_rows(ts);
	`)
	return err
}

// LoadWatermark returns the stored watermark, or the zero value on first run.
func (ps *PostgresStore) LoadWatermark(ctx context.Context, source string) (crawler.Watermark, error) {
	var wm crawler.Watermark
	err := ps.db.QueryRowContext(ctx,
		`SELECT last_processed_id, row_offset FROM watermarks WHERE source = $1`,
		source,
	).Scan(&wm.LastProcessedID, &wm.RowOffset)
	if err == sql.ErrNoRows {
		return crawler.Watermark{}, nil
	}
	if err != nil {
		return crawler.Watermark{}, fmt.Errorf("postgres: load watermark: %w", err)
	}
	return wm, nil
}

// SaveWatermark upserts the per-source watermark.
func (ps *PostgresStore) SaveWatermark(ctx context.Context, source string, wm crawler.Watermark) error {
	_, err := ps.db.ExecContext(ctx, `
		INSERT INTO watermarks (source, last_processed_id, row_offset, updated_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (source) DO UPDATE
		SET last_processed_id = EXCLUDED.last_processed_id,
		    row_offset        = EXCLUDED.row_offset,
		    updated_at        = NOW()
	`, source, wm.LastProcessedID, wm.RowOffset)
	if err != nil {
		return fmt.Errorf("postgres: save watermark: %w", err)
	}
	return nil
}

// AppendRows batch-inserts result rows.
func (ps *PostgresStore) AppendRows(ctx context.Context, rows []crawler.ResultRow) error {
	if len(rows) == 0 {
		return nil
	}

	const batchSize = 50
	for i := 0; i < len(rows); i += batchSize {
		end := i + batchSize
		if end > len(rows) {
			end = len(rows)
		}
		if err := ps.insertBatch(ctx, rows[i:end]); err != nil {
			return err
		}
	}
	return nil
}

func (ps *PostgresStore) insertBatch(ctx context.Context, batch []crawler.ResultRow) error {
	const cols = 15
	valueStrings := make([]string, 0, len(batch))
	valueArgs := make([]interface{}, 0, len(batch)*cols)

	for idx, r := range batch {
		base := idx * cols
		placeholders := make([]string, cols)
		for c := 0; c < cols; c++ {
			placeholders[c] = fmt.Sprintf("$%d", base+c+1)
		}
		valueStrings = append(valueStrings, "("+strings.Join(placeholders, ",")+")")
		valueArgs = append(valueArgs,
			r.Timestamp, r.SourceName, r.PostID, r.PostURL, r.RawTitle,
			r.CleanedTitle, r.ShopURL, r.SourcePrice, r.MallTitle,
			r.CatalogURL, r.CatalogID, r.CatalogTitle, r.CatalogPrice,
			r.ShippingInfo, r.ReviewCount)
	}

	query := fmt.Sprintf(`
		INSERT INTO result_rows (
			ts, source_name, post_id, post_url, raw_title,
			cleaned_title, shop_url, source_price, mall_title,
			catalog_url, catalog_id, catalog_title, catalog_price,
			shipping_info, review_count
		)
		VALUES %s
	`, strings.Join(valueStrings, ","))

	if _, err := ps.db.ExecContext(ctx, query, valueArgs...); err != nil {
		return fmt.Errorf("postgres: append rows: %w", err)
	}
	return nil
}

// FetchRows retrieves stored rows for one source, oldest first. Used by the
// reporting workflow.
func (ps *PostgresStore) FetchRows(ctx context.Context, source string, limit int) ([]crawler.ResultRow, error) {
	rows, err := ps.db.QueryContext(ctx, `
		SELECT ts, source_name, post_id, post_url, raw_title,
		       cleaned_title, shop_url, source_price, mall_title,
		       catalog_url, catalog_id, catalog_title, catalog_price,
		       shipping_info, review_count
		FROM result_rows
		WHERE source_name = $1
		ORDER BY id
		LIMIT $2
	`, source, limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: fetch rows: %w", err)
	}
	defer rows.Close()

	var result []crawler.ResultRow
	for rows.Next() {
		var r crawler.ResultRow
		if err := rows.Scan(
			&r.Timestamp, &r.SourceName, &r.PostID, &r.PostURL, &r.RawTitle,
			&r.CleanedTitle, &r.ShopURL, &r.SourcePrice, &r.MallTitle,
			&r.CatalogURL, &r.CatalogID, &r.CatalogTitle, &r.CatalogPrice,
			&r.ShippingInfo, &r.ReviewCount,
		); err != nil {
			return nil, fmt.Errorf("postgres: scan row: %w", err)
		}
		result = append(result, r)
	}
	return result, rows.Err()
}

func (ps *PostgresStore) Close() error {
	return ps.db.Close()
}
