package crawler

import (
	"context"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"sjsage522/hotdealmatcher/helpers"
	"sjsage522/hotdealmatcher/internal/browser"
	"sjsage522/hotdealmatcher/logger"
)

// LinkState tags the outcome of a shopping-link resolution.
type LinkState int

const (
	// LinkFound means a shopping URL was extracted.
	LinkFound LinkState = iota
	// LinkNone means the post loaded fine but carries no shopping link.
	LinkNone
	// LinkUnreachable means the post page could not be loaded at all.
	LinkUnreachable
)

// LinkResult is the tagged outcome of resolving one post's shopping link.
type LinkResult struct {
	State LinkState
	URL   string
}

// Sentinel returns the stored-field representation of the result.
func (r LinkResult) Sentinel() string {
	switch r.State {
	case LinkFound:
		return r.URL
	case LinkUnreachable:
		return SentinelPostUnreachable
	default:
		return SentinelNoLink
	}
}

// LinkResolver extracts the outbound shopping-mall URL from a cafe post.
// Tier 1 looks for the structurally marked inline link in the post body;
// tier 2 scans comments left by the post's author. Cafe post content lives
// inside the cafe_main iframe.
type LinkResolver struct {
	session   browser.Session
	frameName string
	log       *logger.Logger
}

// NewLinkResolver creates a resolver bound to a scoped browser session.
func NewLinkResolver(session browser.Session) *LinkResolver {
	return &LinkResolver{
		session:   session,
		frameName: "cafe_main",
		log:       logger.ForStage("link"),
	}
}

// Resolve loads the post permalink and runs the two extraction tiers. Any
// navigation or frame failure degrades to LinkUnreachable; a clean page with
// no link yields LinkNone. Errors never propagate: this is a best-effort
// enrichment stage and one failed post must not abort the batch.
func (r *LinkResolver) Resolve(ctx context.Context, postURL string) LinkResult {
	if err := r.session.Navigate(ctx, postURL); err != nil {
		r.log.WithError(err).Warn().Str("url", postURL).Msg("Failed to load post")
		return LinkResult{State: LinkUnreachable}
	}

	html, err := r.session.FrameHTML(ctx, r.frameName)
	if err != nil {
		html, err = r.session.HTML(ctx)
	}
	if err != nil {
		r.log.WithError(err).Warn().Str("url", postURL).Msg("Failed to read post content")
		return LinkResult{State: LinkUnreachable}
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		r.log.WithError(err).Warn().Str("url", postURL).Msg("Failed to parse post content")
		return LinkResult{State: LinkUnreachable}
	}

	// Tier 1: inline link in the post body
	if url := inlineLink(doc); url != "" {
		r.log.Debug().Str("url", url).Msg("Found inline shopping link")
		return LinkResult{State: LinkFound, URL: url}
	}

	// Tier 2: links in comments left by the post's author
	if url := writerCommentLink(doc); url != "" {
		r.log.Debug().Str("url", url).Msg("Found shopping link in writer comment")
		return LinkResult{State: LinkFound, URL: url}
	}

	return LinkResult{State: LinkNone}
}

func inlineLink(doc *goquery.Document) string {
	var found string
	doc.Find(".se-link").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		text := strings.TrimSpace(s.Text())
		if strings.HasPrefix(text, "http://") || strings.HasPrefix(text, "https://") {
			found = text
			return false
		}
		if href, ok := s.Attr("href"); ok {
			href = strings.TrimSpace(href)
			if strings.HasPrefix(href, "http://") || strings.HasPrefix(href, "https://") {
				found = href
				return false
			}
		}
		return true
	})
	return found
}

func writerCommentLink(doc *goquery.Document) string {
	var found string
	doc.Find(".comment_box").EachWithBreak(func(_ int, comment *goquery.Selection) bool {
		// Only comments carrying the writer badge are trusted
		if comment.Find(".comment_badge_writer").Length() == 0 {
			return true
		}

		body := comment.Find(".text_comment").First()
		if body.Length() == 0 {
			return true
		}

		if href, ok := body.Find("a").First().Attr("href"); ok && strings.TrimSpace(href) != "" {
			found = strings.TrimSpace(href)
			return false
		}

		if url := helpers.FirstURL(body.Text()); url != "" {
			found = url
			return false
		}
		return true
	})
	return found
}
