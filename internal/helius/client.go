// Package helius is a client for the Helius enhanced-transactions HTTP API.
package helius

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Default configuration values.
const (
	DefaultBaseURL = "https://api.helius.xyz"
	DefaultTimeout = 20 * time.Second

	// maxErrorBodyLog bounds how much of an error body reaches the logs.
	maxErrorBodyLog = 200
)

// Client talks to the enhanced-transactions endpoint.
type Client struct {
	baseURL string
	apiKey  string
	client  *http.Client
	logger  *log.Logger
}

// ClientOption configures Client.
type ClientOption func(*Client)

// WithBaseURL overrides the API base URL.
func WithBaseURL(u string) ClientOption {
	return func(c *Client) {
		c.baseURL = strings.TrimRight(u, "/")
	}
}

// WithTimeout sets the HTTP client timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		c.client.Timeout = d
	}
}

// WithHTTPClient sets a custom http.Client.
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *Client) {
		c.client = client
	}
}

// WithLogger sets the logger.
func WithLogger(logger *log.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// NewClient creates a new enhanced-transactions client.
func NewClient(apiKey string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL: DefaultBaseURL,
		apiKey:  apiKey,
		client:  &http.Client{Timeout: DefaultTimeout},
		logger:  log.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Transactions fetches one page of parsed transactions for wallet, newest
// first. before requests transactions strictly older than that signature;
// empty means the newest page. limit caps the page size when positive.
func (c *Client) Transactions(ctx context.Context, wallet, before string, limit int) ([]*Transaction, error) {
	q := url.Values{}
	q.Set("api-key", c.apiKey)
	q.Set("maxSupportedTransactionVersion", "0")
	if before != "" {
		q.Set("before", before)
	}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}

	endpoint := fmt.Sprintf("%s/v0/addresses/%s/transactions?%s", c.baseURL, wallet, q.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, c.apiError(resp.StatusCode, body)
	}

	// Decode leniently: keep each item's raw JSON for opaque persistence
	// alongside the strictly typed view.
	var items []json.RawMessage
	if err := json.Unmarshal(body, &items); err != nil {
		return nil, fmt.Errorf("unmarshal transactions page: %w", err)
	}

	txs := make([]*Transaction, 0, len(items))
	for i, item := range items {
		var tx Transaction
		if err := json.Unmarshal(item, &tx); err != nil {
			return nil, fmt.Errorf("unmarshal transaction %d: %w", i, err)
		}
		if tx.Signature == "" {
			return nil, fmt.Errorf("transaction %d has no signature", i)
		}
		tx.Raw = item
		txs = append(txs, &tx)
	}

	return txs, nil
}

// NextBefore derives the pagination cursor from a page: the signature of the
// last returned item, or empty for an empty page.
func NextBefore(txs []*Transaction) string {
	if len(txs) == 0 {
		return ""
	}
	return txs[len(txs)-1].Signature
}

// apiError maps a non-2xx response to a typed error and logs the status with
// a bounded prefix of the body.
func (c *Client) apiError(status int, body []byte) error {
	snippet := body
	if len(snippet) > maxErrorBodyLog {
		snippet = snippet[:maxErrorBodyLog]
	}
	c.logger.Printf("helius error: status=%d body=%q", status, snippet)

	var envelope errorEnvelope
	_ = json.Unmarshal(body, &envelope)
	message := envelope.Message
	if message == "" {
		message = envelope.Error
	}
	if message == "" {
		message = strings.TrimSpace(string(snippet))
	}

	apiErr := &APIError{
		StatusCode: status,
		Message:    message,
		Code:       envelope.Code,
	}

	lower := strings.ToLower(message)
	switch {
	case status == http.StatusBadRequest &&
		(strings.Contains(lower, "invalid before") || envelope.Code == "INVALID_BEFORE"):
		apiErr.sentinel = ErrCursorInvalid
		apiErr.Hint = "will reset the cursor and retry"
	case status == http.StatusBadRequest &&
		(strings.Contains(lower, "unauthorized") || strings.Contains(lower, "api-key") || strings.Contains(lower, "api key")):
		apiErr.sentinel = ErrUnauthorized
		apiErr.Hint = "check your API key"
	case status == http.StatusTooManyRequests:
		apiErr.sentinel = ErrRateLimited
		apiErr.Hint = "rate limited, backing off"
	}

	return apiErr
}
