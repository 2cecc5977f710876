package catalog

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

const defaultUpstreamTimeout = 30 * time.Second

// Upstream fetches one model listing per (category, order) pair. The raw
// response body is persisted verbatim, so implementations must not reshape
// it.
type Upstream interface {
	FetchListing(ctx context.Context, category, order string) ([]byte, error)
}

// OpenRouterClient fetches listings from the OpenRouter frontend catalog API.
type OpenRouterClient struct {
	baseURL string
	client  *http.Client
}

// NewOpenRouterClient creates an upstream client. baseURL is typically
// https://openrouter.ai; tests point it at a local server.
func NewOpenRouterClient(baseURL string, timeout time.Duration) *OpenRouterClient {
	if timeout <= 0 {
		timeout = defaultUpstreamTimeout
	}

	return &OpenRouterClient{
		baseURL: baseURL,
		client: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
}

// FetchListing GETs /api/frontend/models/find for one pair and returns the
// raw body.
func (c *OpenRouterClient) FetchListing(ctx context.Context, category, order string) ([]byte, error) {
	query := url.Values{}
	query.Set("categories", category)
	query.Set("order", order)
	reqURL := fmt.Sprintf("%s/api/frontend/models/find?%s", c.baseURL, query.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("catalog fetch failed for %s/%s: %w", category, order, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("catalog fetch for %s/%s returned status %d", category, order, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog response for %s/%s: %w", category, order, err)
	}

	return body, nil
}
