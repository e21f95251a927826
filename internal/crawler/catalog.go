package crawler

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"sjsage522/hotdealmatcher/internal/browser"
	"sjsage522/hotdealmatcher/logger"
)

// Typed reasons for catalog resolution failure. Each maps to one stored
// sentinel; a failed resolution always fills every catalog field with that
// same sentinel, never a partial row.
var (
	ErrSearchFailed   = errors.New("catalog search failed")
	ErrNoCatalogMatch = errors.New("no price-comparison catalog for query")
	ErrExtraction     = errors.New("catalog extraction failed")
)

// CatalogSentinel maps a catalog resolution failure to its sentinel string.
func CatalogSentinel(err error) string {
	switch {
	case errors.Is(err, ErrSearchFailed):
		return SentinelSearchFailed
	case errors.Is(err, ErrNoCatalogMatch):
		return SentinelNoCatalogMatch
	default:
		return SentinelExtractError
	}
}

// CatalogInfo is a successful catalog resolution: the confirmed lowest price
// for the catalog grouping matching the searched title.
type CatalogInfo struct {
	URL         string
	ID          string
	Title       string
	Price       int
	Shipping    string
	ReviewCount string
}

// catalogSelectors is configuration data: where things live on the search
// and catalog pages. Chains are tried in order, first match wins.
type catalogSelectors struct {
	SearchURL      string
	CatalogURL     string
	EntryLink      []string
	ProductName    []string
	ReviewCount    []string
	ShippingToggle string
	LowestPrice    []string
	ShippingInfo   []string
}

func defaultCatalogSelectors() catalogSelectors {
	return catalogSelectors{
		SearchURL:  "https://search.shopping.naver.com/search/all?query=%s",
		CatalogURL: "https://search.shopping.naver.com/catalog/%s",
		EntryLink: []string{
			"a[data-nclick*='i:']",
		},
		ProductName: []string{
			".basicList_title__VfX3c a",
			".product_title__Mmw2K a",
		},
		ReviewCount: []string{
			".basicList_etc_box__5lkgg em",
			"a[data-nclick*='rvw'] em",
		},
		ShippingToggle: ".filter_delivery_include__V5Hqs a",
		LowestPrice: []string{
			".lowestPrice_num__A5gM9",
			"table tbody tr:first-child td:nth-child(2) a em",
		},
		ShippingInfo: []string{
			"table tbody tr:first-child td:nth-child(3)",
			".lowestPrice_delivery_price__VVlwjW",
		},
	}
}

// CatalogResolver finds the price-comparison catalog entry for a product
// title on the external shopping search engine and extracts its confirmed
// lowest price, shipping terms, and review count.
type CatalogResolver struct {
	session   browser.Session
	selectors catalogSelectors
	log       *logger.Logger
}

// NewCatalogResolver creates a resolver bound to a scoped browser session.
func NewCatalogResolver(session browser.Session) *CatalogResolver {
	return &CatalogResolver{
		session:   session,
		selectors: defaultCatalogSelectors(),
		log:       logger.ForStage("catalog"),
	}
}

// Resolve runs the tiered pipeline: search, enter the price-comparison view,
// parse the catalog id out of the entry's click-tracking attribute, then read
// the confirmed lowest price from the catalog detail page. Every failure
// returns one of the three typed reasons; there is no partial success.
func (r *CatalogResolver) Resolve(ctx context.Context, title string) (*CatalogInfo, error) {
	searchURL := fmt.Sprintf(r.selectors.SearchURL, url.QueryEscape(title))
	if err := r.session.Navigate(ctx, searchURL); err != nil {
		r.log.WithError(err).Warn().Str("query", title).Msg("Search navigation failed")
		return nil, ErrSearchFailed
	}

	html, err := r.session.HTML(ctx)
	if err != nil {
		r.log.WithError(err).Warn().Str("query", title).Msg("Failed to read search results")
		return nil, ErrSearchFailed
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, ErrSearchFailed
	}

	// No catalog entry on the results page means the engine found no
	// price-comparison grouping for this query. Common and expected.
	entry, ok := r.catalogEntry(doc)
	if !ok {
		r.log.Debug().Str("query", title).Msg("No price-comparison entry for query")
		return nil, ErrNoCatalogMatch
	}

	nclick, _ := entry.Attr("data-nclick")
	catalogID, ok := ParseCatalogID(nclick)
	if !ok {
		// The entry exists but its tracking attribute is unusable; treated
		// the same as no catalog grouping.
		return nil, ErrNoCatalogMatch
	}

	info := &CatalogInfo{
		ID:  catalogID,
		URL: fmt.Sprintf(r.selectors.CatalogURL, catalogID),
	}

	if name, ok := firstMatch(doc, r.selectors.ProductName); ok {
		info.Title = name
	} else if text := strings.TrimSpace(entry.Text()); text != "" {
		info.Title = text
	} else {
		return nil, ErrExtraction
	}

	// Missing review count is reported, not failed
	if reviews, ok := firstMatch(doc, r.selectors.ReviewCount); ok {
		info.ReviewCount = reviews
	} else {
		info.ReviewCount = SentinelNoReviews
	}

	if err := r.resolveDetail(ctx, info); err != nil {
		return nil, err
	}

	r.log.Debug().
		Str("catalog_id", info.ID).
		Int("price", info.Price).
		Msg("Resolved catalog entry")
	return info, nil
}

// resolveDetail loads the catalog detail page and reads the final confirmed
// lowest price with shipping included where the toggle exists.
func (r *CatalogResolver) resolveDetail(ctx context.Context, info *CatalogInfo) error {
	if err := r.session.Navigate(ctx, info.URL); err != nil {
		r.log.WithError(err).Warn().Str("catalog_id", info.ID).Msg("Catalog detail navigation failed")
		return ErrExtraction
	}

	// Engage the shipping-inclusive toggle when available; its absence is
	// not a failure, the visible price is used as-is.
	if err := r.session.Click(ctx, r.selectors.ShippingToggle); err != nil {
		r.log.Debug().Str("catalog_id", info.ID).Msg("Shipping-inclusive toggle not available")
	}

	html, err := r.session.HTML(ctx)
	if err != nil {
		return ErrExtraction
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return ErrExtraction
	}

	priceText, ok := firstMatch(doc, r.selectors.LowestPrice)
	if !ok {
		return ErrExtraction
	}

	price, err := parsePrice(priceText)
	if err != nil {
		r.log.Warn().Str("catalog_id", info.ID).Str("price", priceText).Msg("Unparsable lowest price")
		return ErrExtraction
	}
	info.Price = price

	if shipping, ok := firstMatch(doc, r.selectors.ShippingInfo); ok {
		info.Shipping = shipping
	} else {
		info.Shipping = SentinelNoShippingInfo
	}

	return nil
}

func (r *CatalogResolver) catalogEntry(doc *goquery.Document) (*goquery.Selection, bool) {
	for _, selector := range r.selectors.EntryLink {
		entry := doc.Find(selector).First()
		if entry.Length() > 0 {
			return entry, true
		}
	}
	return nil, false
}

// ParseCatalogID extracts the catalog id from a click-tracking attribute of
// the form "key:value" pairs joined by commas; the id is the value of the
// "i" key.
func ParseCatalogID(dataNclick string) (string, bool) {
	for _, entry := range strings.Split(dataNclick, ",") {
		entry = strings.TrimSpace(entry)
		if strings.HasPrefix(entry, "i:") {
			id := strings.TrimPrefix(entry, "i:")
			if id != "" {
				return id, true
			}
		}
	}
	return "", false
}

// parsePrice strips thousands separators and the currency suffix before
// integer parsing.
func parsePrice(text string) (int, error) {
	cleaned := strings.TrimSpace(text)
	cleaned = strings.ReplaceAll(cleaned, ",", "")
	cleaned = strings.TrimSuffix(cleaned, "원")
	cleaned = strings.TrimSpace(cleaned)
	return strconv.Atoi(cleaned)
}
