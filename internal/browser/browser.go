// Package browser provides a narrow page-fetch capability on top of a
// headless Chrome instance. Crawler stages acquire one Session per stage and
// parse the rendered HTML with goquery; no DOM logic lives here.
package browser

import "context"

// Session is a scoped browser page. Acquire one per pipeline stage and close
// it on every path.
type Session interface {
	// Navigate loads the URL and waits for the document to settle.
	Navigate(ctx context.Context, url string) error
	// HTML returns the rendered top document.
	HTML(ctx context.Context) (string, error)
	// FrameHTML returns the rendered document of a same-origin named iframe.
	FrameHTML(ctx context.Context, name string) (string, error)
	// Click clicks the first visible element matching the selector and waits
	// for the page to settle.
	Click(ctx context.Context, selector string) error
	Close() error
}

// Launcher creates browser sessions against a shared Chrome process.
type Launcher interface {
	NewSession(ctx context.Context) (Session, error)
	Close() error
}
