// Package crawler implements the incremental crawl pipeline: the paginated
// listing walker, the shopping-link resolver, the mall title extractor, and
// the catalog price resolver.
package crawler

import "time"

// Korean sentinel strings stored in ResultRow fields in place of real data.
// Downstream consumers match on these exact values; do not change them.
const (
	// Shopping-link resolver
	SentinelNoLink          = "링크 없음"
	SentinelPostUnreachable = "게시글 접속불가"

	// Mall title extractor
	SentinelUnknownMall     = "모르는 사이트"
	SentinelNoSelector      = "설정된 사이트, 설정안된 태그"
	SentinelMallUnreachable = "링크 접속불가"

	// Catalog price resolver
	SentinelSearchFailed   = "검색 실패"
	SentinelNoCatalogMatch = "네이버 가격비교 없음"
	SentinelExtractError   = "에러 발생"
	SentinelNoReviews      = "리뷰 없음"
	SentinelNoShippingInfo = "배송비 정보 없음"
)

// Post is one forum/cafe listing entry. Created during the listing walk,
// immutable afterwards, and held only for the duration of one crawl cycle.
type Post struct {
	ID           int
	RawTitle     string
	CleanedTitle string
	Price        int
	PostURL      string
}

// Watermark is the per-source incremental crawl state. LastProcessedID is the
// highest post id already processed; RowOffset is where spreadsheet-backed
// stores append next.
type Watermark struct {
	LastProcessedID int
	RowOffset       int
}

// ResultRow is one fully-processed product comparison record, the persisted
// unit of work. Rows are append-only once written. Catalog fields hold either
// real data or one of the sentinel strings above, never a mix within one row.
type ResultRow struct {
	Timestamp    time.Time `json:"timestamp"`
	SourceName   string    `json:"source_name"`
	PostID       int       `json:"post_id"`
	PostURL      string    `json:"post_url"`
	RawTitle     string    `json:"raw_title"`
	CleanedTitle string    `json:"cleaned_title"`
	ShopURL      string    `json:"shop_url"`
	SourcePrice  int       `json:"source_price"`

	MallTitle string `json:"mall_title"`

	CatalogURL   string `json:"catalog_url"`
	CatalogID    string `json:"catalog_id"`
	CatalogTitle string `json:"catalog_title"`
	CatalogPrice string `json:"catalog_price"`
	ShippingInfo string `json:"shipping_info"`
	ReviewCount  string `json:"review_count"`
}

// StopReason reports why a listing walk terminated.
type StopReason int

const (
	// StopWatermarkReached means a post at or below the floor was seen.
	StopWatermarkReached StopReason = iota
	// StopPageLimit means the page ceiling was exhausted before reaching the
	// watermark. Normal termination, logged as an operational concern.
	StopPageLimit
	// StopFloorReached means the very first row was already below the floor;
	// the listing is fully caught up.
	StopFloorReached
)

func (r StopReason) String() string {
	switch r {
	case StopWatermarkReached:
		return "watermark_reached"
	case StopPageLimit:
		return "page_limit"
	case StopFloorReached:
		return "floor_reached"
	default:
		return "unknown"
	}
}

// WalkResult is the outcome of one listing walk: the new posts oldest-first
// and the highest id observed, which becomes the next watermark.
type WalkResult struct {
	Posts []Post
	MaxID int
	Stop  StopReason
}
