// Package kalshi fetches markets from the Kalshi trade API and normalizes
// them into listings.
package kalshi

import (
	"context"
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/json"
	"encoding/pem"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/algorhythmic/marketfinder/internal/domain"
)

// ClientConfig holds Kalshi API parameters.
type ClientConfig struct {
	BaseURL  string // e.g. "https://api.elections.kalshi.com/trade-api/v2"
	ApiKeyID string
	PageSize int
	MaxPages int
	Logger   *slog.Logger
}

// Client is the REST client for the Kalshi trade API. Market data endpoints
// work unauthenticated; when an RSA key is configured requests are signed,
// which raises the rate limit tier.
type Client struct {
	baseURL    string
	apiKeyID   string
	privateKey *rsa.PrivateKey
	pageSize   int
	maxPages   int
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a new Kalshi REST client.
func NewClient(cfg ClientConfig) *Client {
	pageSize := cfg.PageSize
	if pageSize <= 0 {
		pageSize = 200
	}
	maxPages := cfg.MaxPages
	if maxPages <= 0 {
		maxPages = 25
	}
	return &Client{
		baseURL:  cfg.BaseURL,
		apiKeyID: cfg.ApiKeyID,
		pageSize: pageSize,
		maxPages: maxPages,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		logger: cfg.Logger.With(slog.String("component", "kalshi_client")),
	}
}

// SetRSAPrivateKey loads an RSA private key from PEM-encoded bytes and
// enables signed authentication.
func (c *Client) SetRSAPrivateKey(pemBytes []byte) error {
	block, _ := pem.Decode(pemBytes)
	if block == nil {
		return fmt.Errorf("kalshi: no PEM block found in private key")
	}

	key, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		// Try PKCS1 as fallback.
		pkcs1Key, pkcs1Err := x509.ParsePKCS1PrivateKey(block.Bytes)
		if pkcs1Err != nil {
			return fmt.Errorf("kalshi: parse private key: %w (pkcs1: %v)", err, pkcs1Err)
		}
		c.privateKey = pkcs1Key
		return nil
	}

	rsaKey, ok := key.(*rsa.PrivateKey)
	if !ok {
		return fmt.Errorf("kalshi: expected RSA private key, got %T", key)
	}
	c.privateKey = rsaKey
	return nil
}

// ListActive fetches all open markets, following the cursor until exhaustion
// or the page cap, and normalizes them into listings.
func (c *Client) ListActive(ctx context.Context) ([]domain.Listing, error) {
	var listings []domain.Listing
	cursor := ""

	for page := 0; page < c.maxPages; page++ {
		markets, next, err := c.getMarkets(ctx, cursor)
		if err != nil {
			return nil, fmt.Errorf("kalshi: page %d: %w", page, err)
		}

		for i := range markets {
			l := markets[i].ToListing()
			if l.IsActive {
				listings = append(listings, l)
			}
		}

		if next == "" {
			break
		}
		cursor = next
	}

	c.logger.Info("fetched kalshi listings", slog.Int("count", len(listings)))
	return listings, nil
}

func (c *Client) getMarkets(ctx context.Context, cursor string) ([]APIMarket, string, error) {
	params := url.Values{}
	params.Set("limit", strconv.Itoa(c.pageSize))
	params.Set("status", "open")
	if cursor != "" {
		params.Set("cursor", cursor)
	}

	path := "/markets?" + params.Encode()
	body, err := c.doRequest(ctx, http.MethodGet, path)
	if err != nil {
		return nil, "", err
	}

	var resp struct {
		Markets []APIMarket `json:"markets"`
		Cursor  string      `json:"cursor"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, "", fmt.Errorf("decode markets: %w", err)
	}
	return resp.Markets, resp.Cursor, nil
}

func (c *Client) doRequest(ctx context.Context, method, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	if c.privateKey != nil {
		if err := c.signRequest(req, method, path); err != nil {
			return nil, fmt.Errorf("sign request: %w", err)
		}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if err := checkStatus(resp.StatusCode, body); err != nil {
		return nil, err
	}
	return body, nil
}

func (c *Client) signRequest(req *http.Request, method, path string) error {
	ts := strconv.FormatInt(time.Now().UnixMilli(), 10)

	// The message to sign is: timestamp + method + path.
	message := ts + method + path

	hash := sha256.Sum256([]byte(message))
	signature, err := rsa.SignPSS(rand.Reader, c.privateKey, crypto.SHA256, hash[:], &rsa.PSSOptions{
		SaltLength: rsa.PSSSaltLengthEqualsHash,
	})
	if err != nil {
		return fmt.Errorf("RSA sign: %w", err)
	}

	req.Header.Set("KALSHI-ACCESS-KEY", c.apiKeyID)
	req.Header.Set("KALSHI-ACCESS-SIGNATURE", base64.StdEncoding.EncodeToString(signature))
	req.Header.Set("KALSHI-ACCESS-TIMESTAMP", ts)
	return nil
}

func checkStatus(statusCode int, body []byte) error {
	if statusCode >= 200 && statusCode < 300 {
		return nil
	}

	var apiErr KalshiErrorResponse
	_ = json.Unmarshal(body, &apiErr)

	switch statusCode {
	case http.StatusNotFound:
		return fmt.Errorf("kalshi: not found: %s (%s)", apiErr.Message, apiErr.Code)
	case http.StatusTooManyRequests:
		return fmt.Errorf("kalshi: rate limited: %s (%s)", apiErr.Message, apiErr.Code)
	default:
		return fmt.Errorf("kalshi: HTTP %d: %s (%s)", statusCode, apiErr.Message, apiErr.Code)
	}
}
