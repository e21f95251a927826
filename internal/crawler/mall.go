package crawler

import (
	"context"
	"errors"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"sjsage522/hotdealmatcher/internal/browser"
	"sjsage522/hotdealmatcher/logger"
)

// Typed failures of mall title extraction. Each maps to a distinct stored
// sentinel; callers must substitute the post's cleaned title on any of them.
var (
	ErrUnknownMall       = errors.New("unknown shopping mall")
	ErrNoWorkingSelector = errors.New("known mall, no working selector")
	ErrMallUnreachable   = errors.New("mall page unreachable")
)

// MallSentinel maps a mall extraction failure to its stored sentinel string.
func MallSentinel(err error) string {
	switch {
	case errors.Is(err, ErrUnknownMall):
		return SentinelUnknownMall
	case errors.Is(err, ErrNoWorkingSelector):
		return SentinelNoSelector
	default:
		return SentinelMallUnreachable
	}
}

// MallProfile is the static per-mall configuration: a URL fragment that
// identifies the mall and the ordered product-title selector chain for its
// detail pages.
type MallProfile struct {
	ID        string
	Fragment  string
	Selectors []string
}

// mallProfiles is consulted in order. brand.naver precedes naver so brand
// store URLs are not misclassified as plain naver shopping.
var mallProfiles = []MallProfile{
	{ID: "auction", Fragment: "auction", Selectors: []string{"#frmMain h1", ".itemtit"}},
	{ID: "lotteon", Fragment: "lotteon", Selectors: []string{".productName h1", "#stickyTopParent h1", ".prd-title"}},
	{ID: "wemakeprice", Fragment: "wemakeprice", Selectors: []string{"#_infoDescription h3", ".deal_tit"}},
	{ID: "gmarket", Fragment: "gmarket", Selectors: []string{".itemtit", "#goodsDetailTab h3", ".box__item-title h1"}},
	{ID: "gs", Fragment: "gs", Selectors: []string{"#mainInfo section h1", ".prd-name"}},
	{ID: "tmon", Fragment: "tmon", Selectors: []string{".deal-title h2", "article .title h2"}},
	{ID: "11st", Fragment: "11st", Selectors: []string{"#layBodyWrap h1", ".c_product_info_title h1"}},
	{ID: "interpark", Fragment: "interpark", Selectors: []string{".productTitle span", ".prdName"}},
	{ID: "coupang", Fragment: "coupang", Selectors: []string{".prod-buy-header__title", "h2.prod-title"}},
	{ID: "brand.naver", Fragment: "brand.naver", Selectors: []string{"fieldset h3", "._22kNQuEXmb"}},
	{ID: "naver", Fragment: "naver", Selectors: []string{"fieldset h3", "h2._1eddO7u4UC", ".product_title h3"}},
	{ID: "kakao", Fragment: "kakao", Selectors: []string{".product_detail strong", ".tit_product"}},
	{ID: "yes24", Fragment: "yes24", Selectors: []string{".gd_name", "h2.gd_name"}},
	{ID: "nsmall", Fragment: "nsmall", Selectors: []string{".product-info h3", ".prd_name"}},
	{ID: "ssg", Fragment: "ssg", Selectors: []string{".cdtl_info_tit h2", ".cdtl_prd_name"}},
}

// DetectMall matches the URL against the known mall fragments, in order.
func DetectMall(url string) (*MallProfile, bool) {
	lowered := strings.ToLower(url)
	for i := range mallProfiles {
		if strings.Contains(lowered, mallProfiles[i].Fragment) {
			return &mallProfiles[i], true
		}
	}
	return nil, false
}

// MallTitleExtractor recovers a canonical product title from a resolved
// shopping-mall page.
type MallTitleExtractor struct {
	session browser.Session
	log     *logger.Logger
}

// NewMallTitleExtractor creates an extractor bound to a scoped browser session.
func NewMallTitleExtractor(session browser.Session) *MallTitleExtractor {
	return &MallTitleExtractor{
		session: session,
		log:     logger.ForStage("mall"),
	}
}

// ExtractTitle loads the mall page and tries the mall's selector chain in
// listed order, returning the first non-empty text. The three error values
// distinguish unknown mall, selector drift, and unreachable page.
func (e *MallTitleExtractor) ExtractTitle(ctx context.Context, url string) (string, error) {
	if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
		return "", ErrMallUnreachable
	}

	profile, ok := DetectMall(url)
	if !ok {
		e.log.Debug().Str("url", url).Msg("URL does not match any known mall")
		return "", ErrUnknownMall
	}

	if err := e.session.Navigate(ctx, url); err != nil {
		e.log.WithError(err).Warn().Str("mall", profile.ID).Str("url", url).Msg("Failed to load mall page")
		return "", ErrMallUnreachable
	}

	html, err := e.session.HTML(ctx)
	if err != nil {
		e.log.WithError(err).Warn().Str("mall", profile.ID).Msg("Failed to read mall page")
		return "", ErrMallUnreachable
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", ErrMallUnreachable
	}

	if title, ok := firstMatch(doc, profile.Selectors); ok {
		e.log.Debug().Str("mall", profile.ID).Str("title", title).Msg("Extracted mall title")
		return title, nil
	}

	// Every selector in the profile failed: site markup drifted
	e.log.Warn().Str("mall", profile.ID).Str("url", url).Msg("No selector in profile matched")
	return "", ErrNoWorkingSelector
}

// firstMatch tries each selector in order and returns the first non-empty
// trimmed text.
func firstMatch(doc *goquery.Document, selectors []string) (string, bool) {
	for _, selector := range selectors {
		text := strings.TrimSpace(doc.Find(selector).First().Text())
		if text != "" {
			return text, true
		}
	}
	return "", false
}
