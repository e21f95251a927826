package publisher

import "sjsage522/hotdealmatcher/internal/crawler"

// Publisher fans freshly appended result rows out to downstream consumers
// (the dashboard reads them off a stream).
type Publisher interface {
	// PublishRows publishes a batch of result rows
	PublishRows(rows []crawler.ResultRow) error

	// TrimStreams trims all streams to the configured maximum length
	TrimStreams() error

	// Close closes the publisher connection
	Close() error
}
