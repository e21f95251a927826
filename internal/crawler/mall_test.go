package crawler

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetectMall(t *testing.T) {
	tests := []struct {
		url      string
		expected string
	}{
		{"https://www.coupang.com/vp/products/123", "coupang"},
		{"https://www.11st.co.kr/products/99", "11st"},
		{"https://item.gmarket.co.kr/Item?goodscode=7", "gmarket"},
		{"https://BRAND.NAVER.com/store/products/1", "brand.naver"},
		{"https://smartstore.naver.com/store/products/1", "naver"},
		{"https://www.ssg.com/item/5", "ssg"},
	}

	for _, tt := range tests {
		profile, ok := DetectMall(tt.url)
		require.True(t, ok, tt.url)
		assert.Equal(t, tt.expected, profile.ID, tt.url)
	}

	_, ok := DetectMall("https://unknown-shop.example.com/item/1")
	assert.False(t, ok)
}

func TestDetectMallBrandStoreBeforePlainNaver(t *testing.T) {
	// brand.naver must win over the plain naver fragment it contains.
	profile, ok := DetectMall("https://brand.naver.com/samsung/products/1")
	require.True(t, ok)
	assert.Equal(t, "brand.naver", profile.ID)
}

func TestExtractTitleFirstSelectorWins(t *testing.T) {
	url := "https://www.coupang.com/vp/products/123"
	session := newFakeSession()
	session.pages[url] = `<html><body>
		<h2 class="prod-buy-header__title">삼성전자 갤럭시북4</h2>
	</body></html>`

	extractor := NewMallTitleExtractor(session)
	title, err := extractor.ExtractTitle(context.Background(), url)

	require.NoError(t, err)
	assert.Equal(t, "삼성전자 갤럭시북4", title)
}

func TestExtractTitleFallbackSelector(t *testing.T) {
	// First selector misses, second in the chain matches.
	url := "https://item.gmarket.co.kr/Item?goodscode=7"
	session := newFakeSession()
	session.pages[url] = `<html><body>
		<div id="goodsDetailTab"><h3>LG 모니터 27인치</h3></div>
	</body></html>`

	extractor := NewMallTitleExtractor(session)
	title, err := extractor.ExtractTitle(context.Background(), url)

	require.NoError(t, err)
	assert.Equal(t, "LG 모니터 27인치", title)
}

func TestExtractTitleUnknownMall(t *testing.T) {
	extractor := NewMallTitleExtractor(newFakeSession())
	_, err := extractor.ExtractTitle(context.Background(), "https://unknown-shop.example.com/item/1")

	assert.ErrorIs(t, err, ErrUnknownMall)
	assert.Equal(t, SentinelUnknownMall, MallSentinel(err))
}

func TestExtractTitleNoWorkingSelector(t *testing.T) {
	url := "https://www.coupang.com/vp/products/123"
	session := newFakeSession()
	session.pages[url] = `<html><body><div class="redesigned-layout">아무 제목 없음</div></body></html>`

	extractor := NewMallTitleExtractor(session)
	_, err := extractor.ExtractTitle(context.Background(), url)

	assert.ErrorIs(t, err, ErrNoWorkingSelector)
	assert.Equal(t, SentinelNoSelector, MallSentinel(err))
}

func TestExtractTitleUnreachable(t *testing.T) {
	url := "https://www.coupang.com/vp/products/123"
	session := newFakeSession()
	session.navErr[url] = errors.New("net::ERR_NAME_NOT_RESOLVED")

	extractor := NewMallTitleExtractor(session)
	_, err := extractor.ExtractTitle(context.Background(), url)

	assert.ErrorIs(t, err, ErrMallUnreachable)
	assert.Equal(t, SentinelMallUnreachable, MallSentinel(err))
}

func TestExtractTitleRejectsNonHTTPInput(t *testing.T) {
	extractor := NewMallTitleExtractor(newFakeSession())

	_, err := extractor.ExtractTitle(context.Background(), SentinelNoLink)
	assert.ErrorIs(t, err, ErrMallUnreachable)
}
