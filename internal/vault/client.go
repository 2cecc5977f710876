package vault

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"time"

	"llm_router/internal/logging"
)

const defaultTimeout = 10 * time.Second

// Storage path segments compose directly from userID and provider, so both
// are restricted to a safe charset before any request is built.
var pathSegmentRe = regexp.MustCompile(`^[A-Za-z0-9_\-.:@]+$`)

// Config holds connection settings for the secret store.
type Config struct {
	Address string // e.g. http://127.0.0.1:8200
	Token   string
	Timeout time.Duration
}

// Client is a typed client for a KV-v2 style versioned secret store. Secrets
// are keyed by (userID, provider); the value is a flat map of credential
// fields. Operations on distinct pairs touch disjoint paths and need no
// coordination.
type Client struct {
	address string
	token   string
	client  *http.Client
}

// NewClient creates a vault client. A zero timeout falls back to the default.
func NewClient(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	return &Client{
		address: cfg.Address,
		token:   cfg.Token,
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

func validateSegments(op, userID, provider string) *Error {
	if !pathSegmentRe.MatchString(userID) {
		return newPathError(op, fmt.Sprintf("invalid userId %q", userID))
	}
	if !pathSegmentRe.MatchString(provider) {
		return newPathError(op, fmt.Sprintf("invalid provider %q", provider))
	}
	return nil
}

func (c *Client) dataURL(userID, provider string) string {
	return fmt.Sprintf("%s/v1/secret/data/%s/%s", c.address, userID, provider)
}

func (c *Client) metadataURL(userID, provider string) string {
	return fmt.Sprintf("%s/v1/secret/metadata/%s/%s", c.address, userID, provider)
}

func (c *Client) do(ctx context.Context, method, url string, body any) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("X-Vault-Token", c.token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	return c.client.Do(req)
}

// AddSecret writes the full field mapping for (userID, provider). Overwrite
// semantics: last write wins, no merge with existing fields.
func (c *Client) AddSecret(ctx context.Context, userID, provider string, fields map[string]string) error {
	const op = "addSecret"

	if err := validateSegments(op, userID, provider); err != nil {
		return err
	}

	payload := map[string]any{"data": fields}
	resp, err := c.do(ctx, http.MethodPut, c.dataURL(userID, provider), payload)
	if err != nil {
		logging.Errorf("vault addSecret failed user=%s provider=%s: %v", userID, provider, err)
		return newWriteError(op, "secret store write failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		err := fmt.Errorf("secret store returned status %d", resp.StatusCode)
		logging.Errorf("vault addSecret failed user=%s provider=%s: %v", userID, provider, err)
		return newWriteError(op, "secret store write failed", err)
	}

	return nil
}

// kvReadResponse mirrors the KV-v2 read envelope: the secret fields sit at
// data.data.
type kvReadResponse struct {
	Data struct {
		Data json.RawMessage `json:"data"`
	} `json:"data"`
}

// GetSecret reads the field mapping for (userID, provider). A success
// response whose payload is null or not an object is a protocol violation
// and fails with a read error; it is never coerced to an empty map.
func (c *Client) GetSecret(ctx context.Context, userID, provider string) (map[string]string, error) {
	const op = "getSecret"

	if err := validateSegments(op, userID, provider); err != nil {
		return nil, err
	}

	resp, err := c.do(ctx, http.MethodGet, c.dataURL(userID, provider), nil)
	if err != nil {
		logging.Errorf("vault getSecret failed user=%s provider=%s: %v", userID, provider, err)
		return nil, newReadError(op, "secret store read failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		err := fmt.Errorf("secret store returned status %d", resp.StatusCode)
		logging.Errorf("vault getSecret failed user=%s provider=%s: %v", userID, provider, err)
		return nil, newReadError(op, "secret store read failed", err)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, newReadError(op, "failed to read response body", err)
	}

	var envelope kvReadResponse
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, newReadError(op, "malformed secret store response", err)
	}

	raw := envelope.Data.Data
	if len(raw) == 0 || string(raw) == "null" {
		err := fmt.Errorf("secret payload is not an object")
		logging.Errorf("vault getSecret malformed payload user=%s provider=%s", userID, provider)
		return nil, newReadError(op, "malformed secret store response", err)
	}

	var fields map[string]string
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, newReadError(op, "malformed secret store response", err)
	}
	if fields == nil {
		err := fmt.Errorf("secret payload is not an object")
		return nil, newReadError(op, "malformed secret store response", err)
	}

	return fields, nil
}

// DeleteSecret removes all versions of the secret for (userID, provider).
// The delete targets the metadata path: the store ties full-version deletion
// to metadata, not to the data path.
func (c *Client) DeleteSecret(ctx context.Context, userID, provider string) error {
	const op = "deleteSecret"

	if err := validateSegments(op, userID, provider); err != nil {
		return err
	}

	resp, err := c.do(ctx, http.MethodDelete, c.metadataURL(userID, provider), nil)
	if err != nil {
		logging.Errorf("vault deleteSecret failed user=%s provider=%s: %v", userID, provider, err)
		return newDeleteError(op, "secret store delete failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		err := fmt.Errorf("secret store returned status %d", resp.StatusCode)
		logging.Errorf("vault deleteSecret failed user=%s provider=%s: %v", userID, provider, err)
		return newDeleteError(op, "secret store delete failed", err)
	}

	return nil
}

// HealthStatus is the subset of the store's health response the router cares
// about.
type HealthStatus struct {
	Initialized bool `json:"initialized"`
	Sealed      bool `json:"sealed"`
}

// Health reports the store's seal status. Operational path only; request
// handling never calls this.
func (c *Client) Health(ctx context.Context) (*HealthStatus, error) {
	url := c.address + "/v1/sys/health"

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("secret store health check failed: %w", err)
	}
	defer resp.Body.Close()

	// The health endpoint signals sealed state via status code as well as
	// the body, so any parseable body is accepted regardless of status.
	var status HealthStatus
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return nil, fmt.Errorf("malformed health response: %w", err)
	}

	return &status, nil
}

// Unseal submits the configured unseal key. Called by the operator
// entrypoint when Health reports a sealed store.
func (c *Client) Unseal(ctx context.Context, key string) error {
	url := c.address + "/v1/sys/unseal"

	payload := map[string]any{"key": key}
	resp, err := c.do(ctx, http.MethodPut, url, payload)
	if err != nil {
		return fmt.Errorf("unseal request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("unseal returned status %d", resp.StatusCode)
	}

	return nil
}
