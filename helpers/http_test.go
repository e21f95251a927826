package helpers

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFetchWithRandomHeaders(t *testing.T) {
	// Create a test server
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Check that headers are set
		assert.NotEmpty(t, r.Header.Get("User-Agent"))
		assert.NotEmpty(t, r.Header.Get("Accept"))
		assert.NotEmpty(t, r.Header.Get("Accept-Language"))
		assert.NotEmpty(t, r.Header.Get("referer"))

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("<html><body>Hello, World!</body></html>"))
	}))
	defer server.Close()

	reader, err := FetchWithRandomHeaders(server.URL)
	assert.NoError(t, err)

	body, err := io.ReadAll(reader)
	assert.NoError(t, err)
	assert.Contains(t, string(body), "Hello, World!")
}

func TestFetchWithRandomHeadersNonUTF8(t *testing.T) {
	// Create a test server that returns a non-UTF8 response
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=iso-8859-1")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("<html><body>Hello, World!</body></html>"))
	}))
	defer server.Close()

	reader, err := FetchWithRandomHeaders(server.URL)
	assert.NoError(t, err)

	body, err := io.ReadAll(reader)
	assert.NoError(t, err)
	assert.Contains(t, string(body), "Hello, World!")
}

func TestFetchWithRandomHeadersError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	_, err := FetchWithRandomHeaders(server.URL)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "unexpected status code: 500")
}

func TestFetchWithRandomHeadersRateLimited(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "60")
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	_, err := FetchWithRandomHeaders(server.URL)
	assert.Error(t, err)

	var rle *RateLimitError
	assert.True(t, errors.As(err, &rle))
	assert.Equal(t, 60*time.Second, rle.Cooldown)
}

func TestFetchWithRandomHeadersInvalidURL(t *testing.T) {
	_, err := FetchWithRandomHeaders("http://invalid.url.that.does.not.exist")
	assert.Error(t, err)
}

func TestGetSplitPart(t *testing.T) {
	part, err := GetSplitPart("a|b|c", "|", 1)
	assert.NoError(t, err)
	assert.Equal(t, "b", part)

	_, err = GetSplitPart("a|b|c", "|", 5)
	assert.Error(t, err)
}

func TestExtractURLs(t *testing.T) {
	text := "구매링크 https://smartstore.naver.com/item/1 그리고 http://gmarket.co.kr/x"
	urls := ExtractURLs(text)
	assert.Equal(t, []string{"https://smartstore.naver.com/item/1", "http://gmarket.co.kr/x"}, urls)

	assert.Equal(t, "https://smartstore.naver.com/item/1", FirstURL(text))
	assert.Equal(t, "", FirstURL("링크 없는 본문"))
}
