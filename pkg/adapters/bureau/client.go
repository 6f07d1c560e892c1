package bureau

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aretw0/lendflow/pkg/ports"
	"github.com/go-resty/resty/v2"
)

// ErrNotConfigured is returned by a Client without a base URL.
var ErrNotConfigured = errors.New("credit bureau client is not configured")

// VerifyPath is the bureau endpoint, shared with the HTTP adapter that serves the mock.
const VerifyPath = "/verification/credit"

// Client calls a remote bureau exposing POST /verification/credit.
type Client struct {
	baseURL    string
	httpClient *resty.Client
}

// ClientOption configures a Client.
type ClientOption func(*resty.Client)

// WithAPIKey sends key in the X-API-Key header.
func WithAPIKey(key string) ClientOption {
	return func(c *resty.Client) {
		if key != "" {
			c.SetHeader("X-API-Key", key)
		}
	}
}

// WithTimeout bounds every request.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *resty.Client) {
		if d > 0 {
			c.SetTimeout(d)
		}
	}
}

// NewClient creates a bureau client. An empty baseURL yields a client that always fails
// with ErrNotConfigured, so the engine falls back to the conservative default.
func NewClient(baseURL string, opts ...ClientOption) *Client {
	baseURL = strings.TrimRight(baseURL, "/")
	client := resty.New().
		SetBaseURL(baseURL).
		SetHeader("User-Agent", "lendflow-bureau/1.0").
		SetTimeout(5 * time.Second)
	for _, opt := range opts {
		opt(client)
	}
	return &Client{baseURL: baseURL, httpClient: client}
}

// IsEnabled reports whether the client has somewhere to call.
func (c *Client) IsEnabled() bool {
	return c != nil && c.baseURL != ""
}

// Verify implements ports.CreditVerifier.
func (c *Client) Verify(ctx context.Context, identifier string, kind ports.IdentifierType) (ports.VerificationResult, error) {
	if !c.IsEnabled() {
		return ports.VerificationResult{}, ErrNotConfigured
	}
	var report ports.VerificationResult
	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"identifier":      identifier,
			"identifier_type": string(kind),
		}).
		SetResult(&report).
		Post(VerifyPath)
	if err != nil {
		return ports.VerificationResult{}, fmt.Errorf("credit bureau request failed: %w", err)
	}
	if resp.IsError() {
		return ports.VerificationResult{}, fmt.Errorf("credit bureau error (%d): %s", resp.StatusCode(), resp.String())
	}
	return report, nil
}
