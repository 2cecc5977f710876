package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// VerifyResult is the verification backend's answer for one bearer token.
type VerifyResult struct {
	Valid                     bool     `json:"valid"`
	UserID                    string   `json:"userId"`
	Providers                 []string `json:"providers,omitempty"`
	FallbackProviderModelPair string   `json:"fallbackProviderModelPair,omitempty"`
	AnalysisTarget            string   `json:"analysisTarget,omitempty"`
}

// Verifier resolves bearer tokens against an external verification backend.
type Verifier interface {
	Verify(ctx context.Context, token string) (*VerifyResult, error)
}

const defaultVerifyTimeout = 5 * time.Second

// HTTPVerifier calls the backend's POST /v1/apikey/verify endpoint.
type HTTPVerifier struct {
	backendURL string
	client     *http.Client
}

// NewHTTPVerifier creates a verifier against the given backend base URL.
func NewHTTPVerifier(backendURL string, timeout time.Duration) *HTTPVerifier {
	if timeout <= 0 {
		timeout = defaultVerifyTimeout
	}

	return &HTTPVerifier{
		backendURL: backendURL,
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

// Verify posts the token to the backend. Any transport failure, non-success
// status, or undecodable body is returned as an error; the middleware is the
// layer that collapses those into a single unauthorized outcome.
func (v *HTTPVerifier) Verify(ctx context.Context, token string) (*VerifyResult, error) {
	body, err := json.Marshal(map[string]string{"key": token})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal verify request: %w", err)
	}

	url := v.backendURL + "/v1/apikey/verify"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create verify request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := v.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("verification backend unreachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("verification backend returned status %d", resp.StatusCode)
	}

	var result VerifyResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("malformed verification response: %w", err)
	}

	return &result, nil
}
