// Package worker composes the crawl pipeline: listing walk, link resolution,
// mall title extraction, catalog price resolution, persistence, publishing.
package worker

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"golang.org/x/time/rate"

	"sjsage522/hotdealmatcher/config"
	"sjsage522/hotdealmatcher/internal/browser"
	"sjsage522/hotdealmatcher/internal/crawler"
	"sjsage522/hotdealmatcher/logger"
	"sjsage522/hotdealmatcher/services/cache"
	"sjsage522/hotdealmatcher/services/publisher"
	"sjsage522/hotdealmatcher/services/store"
)

// Source is one listing source the worker crawls. Build binds the source to
// the walk-stage browser session; HTTP-backed sources ignore it.
type Source struct {
	Name         string
	NeedsBrowser bool
	Build        func(session browser.Session) *crawler.ListingSource
}

// DefaultSources returns the production source set.
func DefaultSources(cfg config.Config, cacheSvc cache.CacheService) []Source {
	return []Source{
		{
			Name:         "cafe",
			NeedsBrowser: true,
			Build: func(session browser.Session) *crawler.ListingSource {
				return crawler.NewCafeSource(cfg, session)
			},
		},
		{
			Name: "ruliweb",
			Build: func(session browser.Session) *crawler.ListingSource {
				return crawler.NewRuliwebSource(cfg, cacheSvc)
			},
		},
		{
			Name: "ppomppu",
			Build: func(session browser.Session) *crawler.ListingSource {
				return crawler.NewPpomSource(cfg, cacheSvc)
			},
		},
	}
}

// Worker drives crawl cycles. Stages run strictly sequentially, one post at
// a time, with a scoped browser session per stage and min-interval pacing
// between browser requests.
type Worker struct {
	cfg      config.Config
	launcher browser.Launcher
	store    store.Store
	pub      publisher.Publisher
	sources  []Source
	limiter  *rate.Limiter
	log      *logger.Logger
}

// NewWorker creates a worker over the given sources.
func NewWorker(
	cfg config.Config,
	launcher browser.Launcher,
	st store.Store,
	pub publisher.Publisher,
	sources []Source,
) *Worker {
	return &Worker{
		cfg:      cfg,
		launcher: launcher,
		store:    st,
		pub:      pub,
		sources:  sources,
		limiter:  rate.NewLimiter(rate.Every(cfg.RequestInterval), 1),
		log:      logger.ForWorker(),
	}
}

// Start runs crawl cycles until the context is cancelled. A failed cycle
// waits out the same interval as a cool-down instead of exiting.
func (w *Worker) Start(ctx context.Context) {
	for {
		start := time.Now()
		if err := w.RunCycle(ctx); err != nil {
			if ctx.Err() != nil {
				w.log.Info().Msg("Worker stopped")
				return
			}
			w.log.WithError(err).Error().Msg("Crawl cycle failed, cooling down")
		} else {
			w.log.Info().Dur("elapsed", time.Since(start)).Msg("Crawl cycle finished")
		}

		select {
		case <-ctx.Done():
			w.log.Info().Msg("Worker stopped")
			return
		case <-time.After(w.cfg.CrawlInterval):
		}
	}
}

// RunCycle runs one crawl cycle over every source.
func (w *Worker) RunCycle(ctx context.Context) error {
	for _, src := range w.sources {
		if err := w.runSource(ctx, src); err != nil {
			return fmt.Errorf("source %s: %w", src.Name, err)
		}
	}

	if w.pub != nil {
		if err := w.pub.TrimStreams(); err != nil {
			w.log.WithError(err).Warn().Msg("Failed to trim streams")
		}
	}
	return nil
}

// runSource processes one source end to end. The watermark is saved only
// after the listing walk completed and the produced rows were appended.
func (w *Worker) runSource(ctx context.Context, src Source) error {
	log := logger.ForSource(src.Name)

	wm, err := w.store.LoadWatermark(ctx, src.Name)
	if err != nil {
		return fmt.Errorf("load watermark: %w", err)
	}
	log.Info().Int("watermark", wm.LastProcessedID).Msg("Starting crawl")

	result, err := w.walkStage(ctx, src, wm.LastProcessedID)
	if err != nil {
		return fmt.Errorf("listing walk: %w", err)
	}

	if len(result.Posts) == 0 {
		log.Info().Msg("No new posts")
		return w.store.SaveWatermark(ctx, src.Name, crawler.Watermark{
			LastProcessedID: result.MaxID,
			RowOffset:       wm.RowOffset,
		})
	}

	links, err := w.linkStage(ctx, result.Posts)
	if err != nil {
		return err
	}

	mallTitles, err := w.mallStage(ctx, result.Posts, links)
	if err != nil {
		return err
	}

	rows, err := w.catalogStage(ctx, src.Name, result.Posts, links, mallTitles)
	if err != nil {
		return err
	}

	if err := w.store.AppendRows(ctx, rows); err != nil {
		return fmt.Errorf("append rows: %w", err)
	}

	if w.pub != nil {
		if err := w.pub.PublishRows(rows); err != nil {
			log.WithError(err).Warn().Msg("Failed to publish rows")
		}
	}

	// The walk completed and the rows are durable: advance the watermark
	if err := w.store.SaveWatermark(ctx, src.Name, crawler.Watermark{
		LastProcessedID: result.MaxID,
		RowOffset:       wm.RowOffset + len(rows),
	}); err != nil {
		return fmt.Errorf("save watermark: %w", err)
	}

	log.Info().Int("rows", len(rows)).Int("watermark", result.MaxID).Msg("Source crawl finished")
	return nil
}

// walkStage runs the listing walk with its own scoped browser session.
func (w *Worker) walkStage(ctx context.Context, src Source, floor int) (*crawler.WalkResult, error) {
	var session browser.Session
	if src.NeedsBrowser {
		var err error
		session, err = w.launcher.NewSession(ctx)
		if err != nil {
			return nil, fmt.Errorf("acquire browser session: %w", err)
		}
		defer session.Close()
	}

	walker := crawler.NewWalker(src.Build(session), w.cfg.MaxPages)
	return walker.Walk(ctx, floor)
}

// linkStage resolves the shopping link of every post, one at a time.
func (w *Worker) linkStage(ctx context.Context, posts []crawler.Post) ([]crawler.LinkResult, error) {
	session, err := w.launcher.NewSession(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire browser session: %w", err)
	}
	defer session.Close()

	resolver := crawler.NewLinkResolver(session)
	links := make([]crawler.LinkResult, 0, len(posts))

	for _, post := range posts {
		if err := w.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		link := resolver.Resolve(ctx, post.PostURL)
		for attempt := 0; link.State == crawler.LinkUnreachable && attempt < w.cfg.MaxRetries; attempt++ {
			if err := w.limiter.Wait(ctx); err != nil {
				return nil, err
			}
			link = resolver.Resolve(ctx, post.PostURL)
		}
		links = append(links, link)
	}
	return links, nil
}

// mallStage extracts the canonical mall title for every resolved link. Every
// extraction failure substitutes the post's cleaned title: downstream search
// needs some title to work with, so the fallback is mandatory.
func (w *Worker) mallStage(ctx context.Context, posts []crawler.Post, links []crawler.LinkResult) ([]string, error) {
	session, err := w.launcher.NewSession(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire browser session: %w", err)
	}
	defer session.Close()

	extractor := crawler.NewMallTitleExtractor(session)
	titles := make([]string, 0, len(posts))

	for i, post := range posts {
		if links[i].State != crawler.LinkFound {
			titles = append(titles, post.CleanedTitle)
			continue
		}

		if err := w.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		title, err := extractor.ExtractTitle(ctx, links[i].URL)
		for attempt := 0; err == crawler.ErrMallUnreachable && attempt < w.cfg.MaxRetries; attempt++ {
			if werr := w.limiter.Wait(ctx); werr != nil {
				return nil, werr
			}
			title, err = extractor.ExtractTitle(ctx, links[i].URL)
		}
		if err != nil {
			titles = append(titles, post.CleanedTitle)
			continue
		}
		titles = append(titles, title)
	}
	return titles, nil
}

// catalogStage resolves the catalog price for every post and assembles the
// final rows. A failed resolution fills every catalog field with the same
// reason sentinel, never a partial row.
func (w *Worker) catalogStage(
	ctx context.Context,
	sourceName string,
	posts []crawler.Post,
	links []crawler.LinkResult,
	mallTitles []string,
) ([]crawler.ResultRow, error) {
	session, err := w.launcher.NewSession(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire browser session: %w", err)
	}
	defer session.Close()

	resolver := crawler.NewCatalogResolver(session)
	rows := make([]crawler.ResultRow, 0, len(posts))

	for i, post := range posts {
		if err := w.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		row := crawler.ResultRow{
			Timestamp:    time.Now(),
			SourceName:   sourceName,
			PostID:       post.ID,
			PostURL:      post.PostURL,
			RawTitle:     post.RawTitle,
			CleanedTitle: post.CleanedTitle,
			ShopURL:      links[i].Sentinel(),
			SourcePrice:  post.Price,
			MallTitle:    mallTitles[i],
		}

		info, err := resolver.Resolve(ctx, row.MallTitle)
		for attempt := 0; err == crawler.ErrSearchFailed && attempt < w.cfg.MaxRetries; attempt++ {
			if werr := w.limiter.Wait(ctx); werr != nil {
				return nil, werr
			}
			info, err = resolver.Resolve(ctx, row.MallTitle)
		}

		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			sentinel := crawler.CatalogSentinel(err)
			row.CatalogURL = sentinel
			row.CatalogID = sentinel
			row.CatalogTitle = sentinel
			row.CatalogPrice = sentinel
			row.ShippingInfo = sentinel
			row.ReviewCount = sentinel
		} else {
			row.CatalogURL = info.URL
			row.CatalogID = info.ID
			row.CatalogTitle = info.Title
			row.CatalogPrice = strconv.Itoa(info.Price)
			row.ShippingInfo = info.Shipping
			row.ReviewCount = info.ReviewCount
		}

		rows = append(rows, row)
	}
	return rows, nil
}
