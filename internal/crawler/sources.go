package crawler

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"sjsage522/hotdealmatcher/config"
	"sjsage522/hotdealmatcher/helpers"
	"sjsage522/hotdealmatcher/internal/browser"
	cerrors "sjsage522/hotdealmatcher/pkg/errors"
	"sjsage522/hotdealmatcher/services/cache"
)

// PageFetcher retrieves one listing page as a parsed document.
type PageFetcher interface {
	FetchPage(ctx context.Context, page int) (*goquery.Document, error)
}

// ListingSource describes how to read one board's listing pages. Selector
// details are configuration data; the walker only consumes this shape.
type ListingSource struct {
	Name string
	// Rows selects the listing rows of a page, newest first.
	Rows func(doc *goquery.Document) *goquery.Selection
	// ClassFilter marks pinned/notice rows to skip.
	ClassFilter string
	// ParseID extracts the post id from a row.
	ParseID func(s *goquery.Selection) (int, error)
	// Title extracts the raw title from a row.
	Title func(s *goquery.Selection) string
	// PostURL builds the canonical permalink for a post id.
	PostURL func(id int) string

	Fetcher PageFetcher
}

// HTTPPageFetcher fetches listing pages over plain HTTP with randomized
// headers. A memcache cooldown key suppresses fetches after a soft block.
type HTTPPageFetcher struct {
	URLForPage func(page int) string
	CacheKey   string
	BlockTime  time.Duration
	CacheSvc   cache.CacheService
}

func (f *HTTPPageFetcher) FetchPage(ctx context.Context, page int) (*goquery.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// Check if the source is in a cooldown window
	if f.CacheSvc != nil && f.CacheKey != "" {
		if _, err := f.CacheSvc.Get(f.CacheKey); err == nil {
			return nil, cerrors.New(cerrors.ErrorTypeRateLimit, f.CacheKey,
				fmt.Sprintf("%d초 동안 더 이상 요청을 보내지 않음", int(f.BlockTime/time.Second)), nil)
		}
	}

	body, err := helpers.FetchWithRandomHeaders(f.URLForPage(page))
	if err != nil {
		var rle *helpers.RateLimitError
		if errors.As(err, &rle) && f.CacheSvc != nil && f.CacheKey != "" {
			blockTime := f.BlockTime
			if rle.Cooldown > blockTime {
				blockTime = rle.Cooldown
			}
			f.CacheSvc.Set(f.CacheKey, []byte(strconv.Itoa(int(blockTime/time.Second))), blockTime)
			return nil, cerrors.NewRateLimit(f.CacheKey, blockTime)
		}
		return nil, err
	}

	doc, err := goquery.NewDocumentFromReader(body)
	if err != nil {
		return nil, cerrors.NewParsing(f.CacheKey, "HTML 파싱 오류", err)
	}
	return doc, nil
}

// BrowserPageFetcher fetches listing pages through a browser session. The
// naver cafe renders its listing inside a named iframe; FrameName selects it,
// falling back to the top document when the frame is absent.
type BrowserPageFetcher struct {
	Session    browser.Session
	URLForPage func(page int) string
	FrameName  string
}

func (f *BrowserPageFetcher) FetchPage(ctx context.Context, page int) (*goquery.Document, error) {
	if err := f.Session.Navigate(ctx, f.URLForPage(page)); err != nil {
		return nil, err
	}

	var html string
	var err error
	if f.FrameName != "" {
		html, err = f.Session.FrameHTML(ctx, f.FrameName)
		if err != nil {
			html, err = f.Session.HTML(ctx)
		}
	} else {
		html, err = f.Session.HTML(ctx)
	}
	if err != nil {
		return nil, err
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, cerrors.NewParsing("browser", "HTML 파싱 오류", err)
	}
	return doc, nil
}

// idFromText parses an integer post id out of an element's trimmed text.
func idFromText(s *goquery.Selection, selector string) (int, error) {
	text := strings.TrimSpace(s.Find(selector).First().Text())
	if text == "" {
		return 0, fmt.Errorf("no id element for selector %q", selector)
	}
	id, err := strconv.Atoi(text)
	if err != nil {
		return 0, fmt.Errorf("invalid post id %q: %w", text, err)
	}
	return id, nil
}

// NewCafeSource builds the naver cafe listing source. The listing lives in
// the cafe_main iframe; the second article-board table holds the rows.
func NewCafeSource(cfg config.Config, session browser.Session) *ListingSource {
	return &ListingSource{
		Name: "cafe",
		Rows: func(doc *goquery.Document) *goquery.Selection {
			return doc.Find(".article-board.m-tcol-c").Eq(1).Find(".td_article")
		},
		ClassFilter: "board-notice",
		ParseID: func(s *goquery.Selection) (int, error) {
			return idFromText(s, ".inner_number")
		},
		Title: func(s *goquery.Selection) string {
			return strings.TrimSpace(s.Find(".article").First().Text())
		},
		PostURL: func(id int) string {
			return fmt.Sprintf(
				"https://cafe.naver.com/ArticleRead.nhn?clubid=%s&page=1&menuid=%s&boardtype=L&articleid=%d&referrerAllArticles=false",
				cfg.CafeClubID, cfg.CafeMenuID, id)
		},
		Fetcher: &BrowserPageFetcher{
			Session:   session,
			FrameName: "cafe_main",
			URLForPage: func(page int) string {
				return fmt.Sprintf("%s&search.menuid=%s&search.page=%d", cfg.CafeListURL, cfg.CafeMenuID, page)
			},
		},
	}
}

// NewRuliwebSource builds the ruliweb hotdeal board source over plain HTTP.
func NewRuliwebSource(cfg config.Config, cacheSvc cache.CacheService) *ListingSource {
	return &ListingSource{
		Name: "ruliweb",
		Rows: func(doc *goquery.Document) *goquery.Selection {
			return doc.Find("tr.table_body")
		},
		ClassFilter: "notice",
		ParseID: func(s *goquery.Selection) (int, error) {
			return idFromText(s, "td.id")
		},
		Title: func(s *goquery.Selection) string {
			return strings.TrimSpace(s.Find("a.deco").First().Text())
		},
		PostURL: func(id int) string {
			return fmt.Sprintf("%s/read/%d", cfg.RuliwebURL, id)
		},
		Fetcher: &HTTPPageFetcher{
			CacheKey:  "rate_limited_ruliweb",
			BlockTime: 5 * time.Minute,
			CacheSvc:  cacheSvc,
			URLForPage: func(page int) string {
				return fmt.Sprintf("%s?page=%d", cfg.RuliwebURL, page)
			},
		},
	}
}

// NewPpomSource builds the ppomppu board source over plain HTTP.
func NewPpomSource(cfg config.Config, cacheSvc cache.CacheService) *ListingSource {
	return &ListingSource{
		Name: "ppomppu",
		Rows: func(doc *goquery.Document) *goquery.Selection {
			return doc.Find("tr.baseList")
		},
		ClassFilter: "baseList-notice",
		ParseID: func(s *goquery.Selection) (int, error) {
			// Permalink query carries the id; the number cell is the fallback
			if href, ok := s.Find("a.baseList-title").First().Attr("href"); ok {
				if part, err := helpers.GetSplitPart(href, "no=", 1); err == nil {
					if id, err := strconv.Atoi(strings.SplitN(part, "&", 2)[0]); err == nil {
						return id, nil
					}
				}
			}
			return idFromText(s, "td.baseList-numb")
		},
		Title: func(s *goquery.Selection) string {
			return strings.TrimSpace(s.Find("a.baseList-title").First().Text())
		},
		PostURL: func(id int) string {
			return fmt.Sprintf("%s&no=%d", cfg.PpomURL, id)
		},
		Fetcher: &HTTPPageFetcher{
			CacheKey:  "rate_limited_ppomppu",
			BlockTime: 5 * time.Minute,
			CacheSvc:  cacheSvc,
			URLForPage: func(page int) string {
				return fmt.Sprintf("%s&page=%d", cfg.PpomURL, page)
			},
		},
	}
}
