package crawler

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func searchURLFor(title string) string {
	return fmt.Sprintf("https://search.shopping.naver.com/search/all?query=%s", url.QueryEscape(title))
}

const catalogSearchHTML = `<html><body>
	<div class="basicList_title__VfX3c"><a>삼성 노트북 갤럭시북4</a></div>
	<a data-nclick="N=a:lst.product, r:1, i:44816658618">상품</a>
	<div class="basicList_etc_box__5lkgg"><em>1,234</em></div>
</body></html>`

const catalogDetailHTML = `<html><body>
	<span class="lowestPrice_num__A5gM9">799,000</span>
	<table><tbody>
		<tr><td>판매처</td><td><a><em>799,000</em></a></td><td>무료배송</td></tr>
	</tbody></table>
</body></html>`

func TestCatalogResolve(t *testing.T) {
	session := newFakeSession()
	session.pages[searchURLFor("삼성 노트북")] = catalogSearchHTML
	session.pages["https://search.shopping.naver.com/catalog/44816658618"] = catalogDetailHTML

	resolver := NewCatalogResolver(session)
	info, err := resolver.Resolve(context.Background(), "삼성 노트북")
	require.NoError(t, err)

	assert.Equal(t, "44816658618", info.ID)
	assert.Equal(t, "https://search.shopping.naver.com/catalog/44816658618", info.URL)
	assert.Equal(t, "삼성 노트북 갤럭시북4", info.Title)
	assert.Equal(t, 799000, info.Price)
	assert.Equal(t, "1,234", info.ReviewCount)

	// The shipping-inclusive toggle is engaged before reading the price
	assert.Contains(t, session.clicked, ".filter_delivery_include__V5Hqs a")
}

func TestCatalogResolveSearchFailed(t *testing.T) {
	session := newFakeSession()
	session.navErr[searchURLFor("삼성 노트북")] = errors.New("net::ERR_TIMED_OUT")

	resolver := NewCatalogResolver(session)
	_, err := resolver.Resolve(context.Background(), "삼성 노트북")

	assert.ErrorIs(t, err, ErrSearchFailed)
	assert.Equal(t, SentinelSearchFailed, CatalogSentinel(err))
}

func TestCatalogResolveNoCatalogMatch(t *testing.T) {
	session := newFakeSession()
	session.pages[searchURLFor("희귀한 상품")] = `<html><body>
		<div class="basicList_title__VfX3c"><a>일반 검색 결과</a></div>
	</body></html>`

	resolver := NewCatalogResolver(session)
	_, err := resolver.Resolve(context.Background(), "희귀한 상품")

	assert.ErrorIs(t, err, ErrNoCatalogMatch)
	assert.Equal(t, SentinelNoCatalogMatch, CatalogSentinel(err))
}

func TestCatalogResolveBadTrackingAttribute(t *testing.T) {
	// The entry exists but its tracking attribute has no usable id.
	session := newFakeSession()
	session.pages[searchURLFor("상품")] = `<html><body>
		<a data-nclick="N=a:lst.product, r:1, i:">상품</a>
	</body></html>`

	resolver := NewCatalogResolver(session)
	_, err := resolver.Resolve(context.Background(), "상품")

	assert.ErrorIs(t, err, ErrNoCatalogMatch)
}

func TestCatalogResolveDetailUnreachable(t *testing.T) {
	session := newFakeSession()
	session.pages[searchURLFor("삼성 노트북")] = catalogSearchHTML
	session.navErr["https://search.shopping.naver.com/catalog/44816658618"] = errors.New("net::ERR_TIMED_OUT")

	resolver := NewCatalogResolver(session)
	_, err := resolver.Resolve(context.Background(), "삼성 노트북")

	assert.ErrorIs(t, err, ErrExtraction)
	assert.Equal(t, SentinelExtractError, CatalogSentinel(err))
}

func TestCatalogResolveUnparsablePrice(t *testing.T) {
	session := newFakeSession()
	session.pages[searchURLFor("삼성 노트북")] = catalogSearchHTML
	session.pages["https://search.shopping.naver.com/catalog/44816658618"] = `<html><body>
		<span class="lowestPrice_num__A5gM9">가격 문의</span>
	</body></html>`

	resolver := NewCatalogResolver(session)
	_, err := resolver.Resolve(context.Background(), "삼성 노트북")

	assert.ErrorIs(t, err, ErrExtraction)
}

func TestCatalogResolveMissingReviewsAndShipping(t *testing.T) {
	session := newFakeSession()
	session.pages[searchURLFor("삼성 노트북")] = `<html><body>
		<div class="basicList_title__VfX3c"><a>삼성 노트북 갤럭시북4</a></div>
		<a data-nclick="i:123">상품</a>
	</body></html>`
	session.pages["https://search.shopping.naver.com/catalog/123"] = `<html><body>
		<span class="lowestPrice_num__A5gM9">19,900원</span>
	</body></html>`

	resolver := NewCatalogResolver(session)
	info, err := resolver.Resolve(context.Background(), "삼성 노트북")
	require.NoError(t, err)

	assert.Equal(t, 19900, info.Price)
	assert.Equal(t, SentinelNoReviews, info.ReviewCount)
	assert.Equal(t, SentinelNoShippingInfo, info.Shipping)
}

func TestCatalogResolveMissingToggleIsNotFatal(t *testing.T) {
	session := newFakeSession()
	session.pages[searchURLFor("삼성 노트북")] = catalogSearchHTML
	session.pages["https://search.shopping.naver.com/catalog/44816658618"] = catalogDetailHTML
	session.clickErr[".filter_delivery_include__V5Hqs a"] = errors.New("element not visible")

	resolver := NewCatalogResolver(session)
	info, err := resolver.Resolve(context.Background(), "삼성 노트북")

	require.NoError(t, err)
	assert.Equal(t, 799000, info.Price)
}

func TestParseCatalogID(t *testing.T) {
	tests := []struct {
		nclick   string
		expected string
		ok       bool
	}{
		{"N=a:lst.product, r:1, i:44816658618", "44816658618", true},
		{"i:7", "7", true},
		{"r:1, i:", "", false},
		{"r:1, n:5", "", false},
		{"", "", false},
	}

	for _, tt := range tests {
		id, ok := ParseCatalogID(tt.nclick)
		assert.Equal(t, tt.ok, ok, tt.nclick)
		assert.Equal(t, tt.expected, id, tt.nclick)
	}
}

func TestParsePrice(t *testing.T) {
	price, err := parsePrice(" 1,299,000원 ")
	require.NoError(t, err)
	assert.Equal(t, 1299000, price)

	_, err = parsePrice("가격 문의")
	assert.Error(t, err)
}
