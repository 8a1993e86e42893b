// Package client holds HTTP clients for external services.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/awacs/annotate/internal/config"
)

// Listing is one vehicle row from the partner database.
type Listing struct {
	AdID        string   `json:"ad_id"`
	Category    string   `json:"category"`
	Make        string   `json:"make"`
	Model       string   `json:"model"`
	Year        string   `json:"year"`
	ImageURLs   []string `json:"image_urls"`
	LastUpdated int64    `json:"last_updated"`
}

// SearchPage is one page of a bulk listing search.
type SearchPage struct {
	Listings       []Listing `json:"listings"`
	TotalAvailable int       `json:"total_available"`
}

// DBAPIClient is the partner database HTTP client, used for bulk fetch.
// It authenticates with an OAuth2 client-credentials grant and caches
// the token until shortly before expiry.
type DBAPIClient struct {
	httpClient *http.Client
	baseURL    string
	cfg        config.DBAPIConfig

	mu          sync.Mutex
	token       string
	tokenExpiry time.Time
}

func NewDBAPIClient(cfg *config.DBAPIConfig) *DBAPIClient {
	return &DBAPIClient{
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		cfg:     *cfg,
	}
}

// IsConfigured reports whether credentials are available.
func (c *DBAPIClient) IsConfigured() bool {
	return c.cfg.Configured() && c.baseURL != ""
}

// Credentials optionally overrides the configured OAuth client for one
// search call.
type Credentials struct {
	ClientID     string
	ClientSecret string
	GrantType    string
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
}

func (c *DBAPIClient) fetchToken(ctx context.Context, creds Credentials) (string, error) {
	clientID, clientSecret, grantType := c.cfg.ClientID, c.cfg.ClientSecret, c.cfg.GrantType
	if creds.ClientID != "" {
		clientID, clientSecret = creds.ClientID, creds.ClientSecret
	}
	if creds.GrantType != "" {
		grantType = creds.GrantType
	}
	if grantType == "" {
		grantType = "client_credentials"
	}

	// Reuse the cached token only for the configured identity. The lock
	// covers the whole check-fetch-store sequence so concurrent searches
	// share one token request instead of racing on the cache.
	usingConfigured := clientID == c.cfg.ClientID
	c.mu.Lock()
	defer c.mu.Unlock()
	if usingConfigured && c.token != "" && time.Now().Before(c.tokenExpiry) {
		return c.token, nil
	}

	form := url.Values{}
	form.Set("grant_type", grantType)
	form.Set("client_id", clientID)
	form.Set("client_secret", clientSecret)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/oauth/token", strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("token request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read token response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("token request failed (status %d): %s", resp.StatusCode, string(body))
	}

	var tok tokenResponse
	if err := json.Unmarshal(body, &tok); err != nil {
		return "", fmt.Errorf("unmarshal token response: %w", err)
	}
	if usingConfigured {
		c.token = tok.AccessToken
		c.tokenExpiry = time.Now().Add(time.Duration(tok.ExpiresIn-60) * time.Second)
	}
	return tok.AccessToken, nil
}

// SearchRequest is the paged listing search against the partner DB.
type SearchRequest struct {
	MinLastUpdate int64 `json:"min_last_update"`
	MaxLastUpdate int64 `json:"max_last_update"`
	ListingStart  int   `json:"listing_start"`
	ListingEnd    int   `json:"listing_end"`
}

// Search fetches one page of listings updated inside the window.
func (c *DBAPIClient) Search(ctx context.Context, creds Credentials, search SearchRequest) (*SearchPage, error) {
	token, err := c.fetchToken(ctx, creds)
	if err != nil {
		return nil, err
	}

	bodyBytes, err := json.Marshal(search)
	if err != nil {
		return nil, fmt.Errorf("marshal search request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/listings/search", bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("search request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read search response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("search failed (status %d): %s", resp.StatusCode, string(respBody))
	}

	var page SearchPage
	if err := json.Unmarshal(respBody, &page); err != nil {
		return nil, fmt.Errorf("unmarshal search response: %w", err)
	}
	return &page, nil
}
