package crawler

import (
	"context"

	"github.com/PuerkitoBio/goquery"

	"sjsage522/hotdealmatcher/internal/normalizer"
	"sjsage522/hotdealmatcher/logger"
)

// Walker walks a source's paginated listing newest-first until it reaches the
// watermark floor or the page ceiling, collecting every post above the floor.
type Walker struct {
	source   *ListingSource
	maxPages int
	log      *logger.Logger
}

// NewWalker creates a walker for one listing source.
func NewWalker(source *ListingSource, maxPages int) *Walker {
	return &Walker{
		source:   source,
		maxPages: maxPages,
		log:      logger.ForSource(source.Name),
	}
}

// Walk runs one listing walk with the given watermark floor. It returns the
// new posts oldest-first and the maximum id observed, which is the next
// watermark. Page fetch or row parse failures skip that page or row; only
// context cancellation aborts the walk.
func (w *Walker) Walk(ctx context.Context, floor int) (*WalkResult, error) {
	result := &WalkResult{
		MaxID: floor,
		Stop:  StopPageLimit,
	}
	firstRow := true

pages:
	for page := 1; page <= w.maxPages; page++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		doc, err := w.source.Fetcher.FetchPage(ctx, page)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			w.log.WithError(err).Warn().Int("page", page).Msg("Failed to fetch listing page")
			continue
		}

		rows := w.source.Rows(doc)
		w.log.Debug().Int("page", page).Int("rows", rows.Length()).Msg("Parsed listing page")

		for i := 0; i < rows.Length(); i++ {
			row := rows.Eq(i)

			// Skip pinned/notice rows by their structural marker
			if w.skip(row) {
				continue
			}

			id, err := w.source.ParseID(row)
			if err != nil {
				w.log.WithError(err).Debug().Int("page", page).Msg("Skipping row without a post id")
				continue
			}

			// Strictly greater, so a re-encountered pinned or duplicate row
			// with a stale id cannot pull the watermark back down.
			if id > result.MaxID {
				result.MaxID = id
			}

			if firstRow {
				firstRow = false
				if id < floor {
					result.Stop = StopFloorReached
					w.log.Debug().Int("id", id).Int("floor", floor).Msg("Listing already caught up")
					break pages
				}
			}

			if id <= floor {
				result.Stop = StopWatermarkReached
				w.log.Info().Int("id", id).Int("floor", floor).Msg("Reached already-processed post")
				break pages
			}

			result.Posts = append(result.Posts, w.buildPost(id, row))
		}
	}

	if result.Stop == StopPageLimit {
		w.log.Warn().
			Int("max_pages", w.maxPages).
			Int("new_posts", len(result.Posts)).
			Msg("Page ceiling exhausted before reaching watermark")
	}

	// Rows arrive newest-first; downstream appends oldest-first.
	reversePosts(result.Posts)

	w.log.Info().
		Int("new_posts", len(result.Posts)).
		Int("watermark", result.MaxID).
		Str("stop", result.Stop.String()).
		Msg("Listing walk finished")

	return result, nil
}

func (w *Walker) skip(row *goquery.Selection) bool {
	return w.source.ClassFilter != "" && row.HasClass(w.source.ClassFilter)
}

func (w *Walker) buildPost(id int, row *goquery.Selection) Post {
	rawTitle := w.source.Title(row)
	cleaned := normalizer.CleanTitle(rawTitle)
	return Post{
		ID:           id,
		RawTitle:     rawTitle,
		CleanedTitle: cleaned,
		Price:        normalizer.ExtractPrice(cleaned),
		PostURL:      w.source.PostURL(id),
	}
}

func reversePosts(posts []Post) {
	for i, j := 0, len(posts)-1; i < j; i, j = i+1, j-1 {
		posts[i], posts[j] = posts[j], posts[i]
	}
}
