package commerce

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/jameskeane/bcrypt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testClientID = "test-client-id"

func testSecret(t *testing.T) string {
	t.Helper()
	salt, err := bcrypt.Salt(4)
	require.NoError(t, err)
	return salt
}

func TestSignature(t *testing.T) {
	secret := testSecret(t)
	timestamp := int64(1700000000000)

	sign, err := Signature(testClientID, secret, timestamp)
	require.NoError(t, err)

	hashed, err := base64.StdEncoding.DecodeString(sign)
	require.NoError(t, err)

	// The decoded signature must verify against the signed payload
	password := fmt.Sprintf("%s_%d", testClientID, timestamp)
	assert.True(t, bcrypt.Match(password, string(hashed)))
}

func TestSignatureInvalidSalt(t *testing.T) {
	_, err := Signature(testClientID, "not-a-bcrypt-salt", 1700000000000)
	assert.Error(t, err)
}

func newTestServer(t *testing.T, secret string) (*httptest.Server, *int) {
	t.Helper()
	tokenIssues := 0

	mux := http.NewServeMux()
	mux.HandleFunc("/external/v1/oauth2/token", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, testClientID, r.PostFormValue("client_id"))
		assert.Equal(t, "client_credentials", r.PostFormValue("grant_type"))
		assert.Equal(t, "SELF", r.PostFormValue("type"))
		assert.NotEmpty(t, r.PostFormValue("timestamp"))
		assert.NotEmpty(t, r.PostFormValue("client_secret_sign"))

		tokenIssues++
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"access_token":"token-%d","expires_in":10800,"token_type":"Bearer"}`, tokenIssues)
	})
	mux.HandleFunc("/external/v1/product-models", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer token-1", r.Header.Get("Authorization"))
		assert.Equal(t, "갤럭시북4", r.URL.Query().Get("name"))
		assert.Equal(t, "1", r.URL.Query().Get("page"))
		assert.Equal(t, "20", r.URL.Query().Get("size"))

		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"contents":[{"id":999,"name":"삼성전자 갤럭시북4","categoryId":"50000151"}],"totalElements":1}`)
	})
	mux.HandleFunc("/external/v1/product-models/999", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer token-1", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"id":999,"name":"삼성전자 갤럭시북4","categoryId":"50000151","manufacturerName":"삼성전자","brandName":"갤럭시북"}`)
	})

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server, &tokenIssues
}

func TestSearchCatalog(t *testing.T) {
	secret := testSecret(t)
	server, _ := newTestServer(t, secret)
	client := NewClientWithBaseURL(server.URL, testClientID, secret)

	page, err := client.SearchCatalog(context.Background(), "갤럭시북4", 1, 20)
	require.NoError(t, err)

	assert.Equal(t, 1, page.TotalElements)
	require.Len(t, page.Contents, 1)
	assert.Equal(t, int64(999), page.Contents[0].ID)
	assert.Equal(t, "삼성전자 갤럭시북4", page.Contents[0].Name)
}

func TestGetCatalogDetail(t *testing.T) {
	secret := testSecret(t)
	server, _ := newTestServer(t, secret)
	client := NewClientWithBaseURL(server.URL, testClientID, secret)

	detail, err := client.GetCatalogDetail(context.Background(), 999)
	require.NoError(t, err)

	assert.Equal(t, int64(999), detail.ID)
	assert.Equal(t, "삼성전자", detail.Manufacturer)
	assert.Equal(t, "갤럭시북", detail.Brand)
}

func TestTokenIsCachedUntilExpiry(t *testing.T) {
	tokenIssues := 0
	mux := http.NewServeMux()
	mux.HandleFunc("/external/v1/oauth2/token", func(w http.ResponseWriter, r *http.Request) {
		tokenIssues++
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"access_token":"token","expires_in":10800}`)
	})
	mux.HandleFunc("/external/v1/product-models/999", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"id":999,"name":"상품"}`)
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	secret := testSecret(t)
	client := NewClientWithBaseURL(server.URL, testClientID, secret)

	now := time.Now()
	client.now = func() time.Time { return now }

	ctx := context.Background()
	_, err := client.GetCatalogDetail(ctx, 999)
	require.NoError(t, err)
	_, err = client.GetCatalogDetail(ctx, 999)
	require.NoError(t, err)
	assert.Equal(t, 1, tokenIssues)

	// Past expiry the next call re-issues
	now = now.Add(4 * time.Hour)
	_, err = client.GetCatalogDetail(ctx, 999)
	require.NoError(t, err)
	assert.Equal(t, 2, tokenIssues)
}

func TestTokenErrorSurfaces(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"code":"GW.AUTHN","message":"invalid sign"}`, http.StatusUnauthorized)
	}))
	defer server.Close()

	secret := testSecret(t)
	client := NewClientWithBaseURL(server.URL, testClientID, secret)

	_, err := client.SearchCatalog(context.Background(), "갤럭시북4", 1, 20)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")
}
