// Package polymarket fetches markets from the Polymarket Gamma API and
// normalizes them into listings.
package polymarket

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/algorhythmic/marketfinder/internal/domain"
)

// ClientConfig holds Gamma API parameters.
type ClientConfig struct {
	GammaHost string // e.g. "https://gamma-api.polymarket.com"
	PageSize  int
	MaxPages  int
	Logger    *slog.Logger
}

// Client is the REST client for the Polymarket Gamma API.
type Client struct {
	baseURL    string
	pageSize   int
	maxPages   int
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a new Gamma API client.
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
		baseURL:  cfg.GammaHost,
		pageSize: pageSize,
		maxPages: maxPages,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		logger: cfg.Logger.With(slog.String("component", "polymarket_client")),
	}
}

// ListActive fetches all active markets, paginating until the API returns a
// short page or the page cap is reached, and normalizes them into listings.
// Malformed markets are skipped and counted, never fatal.
func (c *Client) ListActive(ctx context.Context) ([]domain.Listing, error) {
	var listings []domain.Listing
	skipped := 0

	for page := 0; page < c.maxPages; page++ {
		markets, err := c.getMarkets(ctx, c.pageSize, page*c.pageSize)
		if err != nil {
			return nil, fmt.Errorf("polymarket: page %d: %w", page, err)
		}

		for i := range markets {
			l, err := markets[i].ToListing()
			if err != nil {
				if errors.Is(err, domain.ErrInvalidListing) {
					skipped++
					continue
				}
				return nil, err
			}
			if l.IsActive {
				listings = append(listings, l)
			}
		}

		if len(markets) < c.pageSize {
			break
		}
	}

	c.logger.Info("fetched polymarket listings",
		slog.Int("count", len(listings)),
		slog.Int("skipped_malformed", skipped),
	)
	return listings, nil
}

func (c *Client) getMarkets(ctx context.Context, limit, offset int) ([]APIMarket, error) {
	params := url.Values{}
	params.Set("limit", strconv.Itoa(limit))
	params.Set("offset", strconv.Itoa(offset))
	params.Set("active", "true")
	params.Set("closed", "false")

	body, err := c.doGet(ctx, "/markets?"+params.Encode())
	if err != nil {
		return nil, err
	}

	var markets []APIMarket
	if err := json.Unmarshal(body, &markets); err != nil {
		return nil, fmt.Errorf("decode markets: %w", err)
	}
	return markets, nil
}

func (c *Client) doGet(ctx context.Context, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, string(body))
	}
	return body, nil
}
