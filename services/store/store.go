// Package store persists watermarks and result rows.
package store

import (
	"context"

	"sjsage522/hotdealmatcher/internal/crawler"
)

// WatermarkStore persists the per-source incremental crawl state. Load
// returns the zero Watermark when no prior state exists (first run).
type WatermarkStore interface {
	LoadWatermark(ctx context.Context, source string) (crawler.Watermark, error)
	SaveWatermark(ctx context.Context, source string, wm crawler.Watermark) error
}

// ResultStore appends processed comparison rows. Rows are append-only;
// downstream consumers de-duplicate by post id.
type ResultStore interface {
	AppendRows(ctx context.Context, rows []crawler.ResultRow) error
}

// Store combines both persistence concerns behind one backing store.
type Store interface {
	WatermarkStore
	ResultStore
	Close() error
}
