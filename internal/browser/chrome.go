package browser

import (
	"context"
	"fmt"
	"time"

	"github.com/chromedp/chromedp"

	cerrors "sjsage522/hotdealmatcher/pkg/errors"
)

const defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 " +
	"(KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// ChromeLauncher runs a single headless Chrome process and hands out
// tab-scoped sessions. Closing the launcher tears down every open session.
type ChromeLauncher struct {
	allocCtx    context.Context
	cancelAlloc context.CancelFunc
	rootCtx     context.Context
	cancelRoot  context.CancelFunc
	timeout     time.Duration
}

// NewChromeLauncher starts the allocator. timeout bounds every navigation and
// evaluation issued through sessions.
func NewChromeLauncher(timeout time.Duration) *ChromeLauncher {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.UserAgent(defaultUserAgent),
	)

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(context.Background(), opts...)

	// Suppress chromedp log noise
	rootCtx, cancelRoot := chromedp.NewContext(allocCtx, chromedp.WithLogf(func(string, ...interface{}) {}))

	return &ChromeLauncher{
		allocCtx:    allocCtx,
		cancelAlloc: cancelAlloc,
		rootCtx:     rootCtx,
		cancelRoot:  cancelRoot,
		timeout:     timeout,
	}
}

// NewSession opens a fresh tab. The caller's context gates every operation on
// the session; cancelling it aborts in-flight navigation.
func (l *ChromeLauncher) NewSession(ctx context.Context) (Session, error) {
	tabCtx, cancelTab := chromedp.NewContext(l.rootCtx)
	return &chromeSession{
		caller:  ctx,
		tabCtx:  tabCtx,
		cancel:  cancelTab,
		timeout: l.timeout,
	}, nil
}

// Close shuts down the Chrome process and every open session.
func (l *ChromeLauncher) Close() error {
	l.cancelRoot()
	l.cancelAlloc()
	return nil
}

type chromeSession struct {
	caller  context.Context
	tabCtx  context.Context
	cancel  context.CancelFunc
	timeout time.Duration
}

// run executes chromedp actions bounded by the session timeout, aborting
// early when the caller's context is done.
func (s *chromeSession) run(ctx context.Context, actions ...chromedp.Action) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.caller.Err(); err != nil {
		return err
	}

	opCtx, cancelOp := context.WithTimeout(s.tabCtx, s.timeout)
	defer cancelOp()

	done := make(chan error, 1)
	go func() {
		done <- chromedp.Run(opCtx, actions...)
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		cancelOp()
		<-done
		return ctx.Err()
	}
}

func (s *chromeSession) Navigate(ctx context.Context, url string) error {
	err := s.run(ctx,
		chromedp.Navigate(url),
		chromedp.WaitReady("body"),
	)
	if err != nil {
		return cerrors.NewBrowser("session", fmt.Sprintf("navigate %s", url), err)
	}
	return nil
}

func (s *chromeSession) HTML(ctx context.Context) (string, error) {
	var html string
	err := s.run(ctx, chromedp.OuterHTML("html", &html, chromedp.ByQuery))
	if err != nil {
		return "", cerrors.NewBrowser("session", "read document", err)
	}
	return html, nil
}

func (s *chromeSession) FrameHTML(ctx context.Context, name string) (string, error) {
	var html string
	err := s.run(ctx, chromedp.Evaluate(frameHTMLScript(name), &html))
	if err != nil {
		return "", cerrors.NewBrowser("session", fmt.Sprintf("read frame %s", name), err)
	}
	if html == "" {
		return "", cerrors.NewBrowser("session", fmt.Sprintf("frame %s not found", name), nil)
	}
	return html, nil
}

func (s *chromeSession) Click(ctx context.Context, selector string) error {
	err := s.run(ctx,
		chromedp.Click(selector, chromedp.ByQuery, chromedp.NodeVisible),
		// Give the page a beat to re-render after the click.
		chromedp.Sleep(500*time.Millisecond),
	)
	if err != nil {
		return cerrors.NewBrowser("session", fmt.Sprintf("click %s", selector), err)
	}
	return nil
}

func (s *chromeSession) Close() error {
	s.cancel()
	return nil
}

// frameHTMLScript reads a same-origin named iframe's document. Cross-origin
// frames yield an empty string rather than throwing.
func frameHTMLScript(name string) string {
	return fmt.Sprintf(`(() => {
		try {
			const frame = document.querySelector('iframe[name=%q]');
			if (!frame || !frame.contentDocument) return "";
			return frame.contentDocument.documentElement.outerHTML;
		} catch (e) {
			return "";
		}
	})()`, name)
}
