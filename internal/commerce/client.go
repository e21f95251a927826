// Package commerce is an OAuth2-signed REST client for the commerce
// product-catalog API. It is consumed only by the reporting workflow, not by
// the crawl pipeline.
package commerce

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/jameskeane/bcrypt"

	"sjsage522/hotdealmatcher/logger"
)

// DefaultBaseURL is the production API endpoint.
const DefaultBaseURL = "https://api.commerce.naver.com"

// tokenLifetimeSlack re-issues tokens a bit before their actual expiry.
const tokenLifetimeSlack = 60 * time.Second

// Client is the commerce API client. Token issuance is lazy and cached.
type Client struct {
	baseURL      string
	clientID     string
	clientSecret string
	httpClient   *http.Client
	log          *logger.Logger
	now          func() time.Time

	mu          sync.Mutex
	accessToken string
	tokenExpiry time.Time
}

// NewClient creates a client against the production endpoint.
func NewClient(clientID, clientSecret string) *Client {
	return NewClientWithBaseURL(DefaultBaseURL, clientID, clientSecret)
}

// NewClientWithBaseURL creates a client against a specific endpoint.
func NewClientWithBaseURL(baseURL, clientID, clientSecret string) *Client {
	return &Client{
		baseURL:      strings.TrimSuffix(baseURL, "/"),
		clientID:     clientID,
		clientSecret: clientSecret,
		httpClient:   &http.Client{Timeout: 10 * time.Second},
		log:          logger.ForStage("commerce"),
		now:          time.Now,
	}
}

// Signature computes the request signature: "<client_id>_<timestamp>" hashed
// with bcrypt using the client secret as the salt, base64-encoded.
func Signature(clientID, clientSecret string, timestamp int64) (string, error) {
	password := fmt.Sprintf("%s_%d", clientID, timestamp)
	hashed, err := bcrypt.Hash(password, clientSecret)
	if err != nil {
		return "", fmt.Errorf("commerce: sign: %w", err)
	}
	return base64.StdEncoding.EncodeToString([]byte(hashed)), nil
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
	TokenType   string `json:"token_type"`
}

// token returns a cached access token, issuing a fresh one when missing or
// near expiry.
func (c *Client) token(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.accessToken != "" && c.now().Before(c.tokenExpiry.Add(-tokenLifetimeSlack)) {
		return c.accessToken, nil
	}

	timestamp := c.now().UnixMilli()
	signature, err := Signature(c.clientID, c.clientSecret, timestamp)
	if err != nil {
		return "", err
	}

	form := url.Values{}
	form.Set("client_id", c.clientID)
	form.Set("timestamp", strconv.FormatInt(timestamp, 10))
	form.Set("client_secret_sign", signature)
	form.Set("grant_type", "client_credentials")
	form.Set("type", "SELF")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/external/v1/oauth2/token", strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("commerce: token request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("commerce: token request status %d: %s", resp.StatusCode, body)
	}

	var token tokenResponse
	if err := json.Unmarshal(body, &token); err != nil {
		return "", fmt.Errorf("commerce: decode token: %w", err)
	}
	if token.AccessToken == "" {
		return "", fmt.Errorf("commerce: empty access token")
	}

	expiresIn := token.ExpiresIn
	if expiresIn == 0 {
		expiresIn = 10800
	}

	c.accessToken = token.AccessToken
	c.tokenExpiry = c.now().Add(time.Duration(expiresIn) * time.Second)
	c.log.Debug().Time("expiry", c.tokenExpiry).Msg("Issued commerce access token")

	return c.accessToken, nil
}

// CatalogModel is one product-model entry of a search result.
type CatalogModel struct {
	ID         int64  `json:"id"`
	Name       string `json:"name"`
	CategoryID string `json:"categoryId"`
}

// CatalogPage is one page of catalog search results.
type CatalogPage struct {
	Contents      []CatalogModel `json:"contents"`
	TotalElements int            `json:"totalElements"`
}

// SearchCatalog searches product models by name.
func (c *Client) SearchCatalog(ctx context.Context, name string, page, size int) (*CatalogPage, error) {
	query := url.Values{}
	query.Set("name", name)
	query.Set("page", strconv.Itoa(page))
	query.Set("size", strconv.Itoa(size))

	var result CatalogPage
	if err := c.get(ctx, "/external/v1/product-models?"+query.Encode(), &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// CatalogDetail is the full product-model record.
type CatalogDetail struct {
	ID           int64           `json:"id"`
	Name         string          `json:"name"`
	CategoryID   string          `json:"categoryId"`
	Manufacturer string          `json:"manufacturerName"`
	Brand        string          `json:"brandName"`
	Attributes   json.RawMessage `json:"attributes"`
}

// GetCatalogDetail fetches one product model by id.
func (c *Client) GetCatalogDetail(ctx context.Context, id int64) (*CatalogDetail, error) {
	var result CatalogDetail
	if err := c.get(ctx, fmt.Sprintf("/external/v1/product-models/%d", id), &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *Client) get(ctx context.Context, path string, out interface{}) error {
	token, err := c.token(ctx)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("commerce: request %s: %w", path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("commerce: request %s status %d: %s", path, resp.StatusCode, body)
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("commerce: decode %s: %w", path, err)
	}
	return nil
}
