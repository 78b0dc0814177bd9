package metadata

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"solana-wallet-indexer/internal/domain"
)

// DefaultJupiterBaseURL is the Jupiter token list API.
const DefaultJupiterBaseURL = "https://tokens.jup.ag"

// JupiterSource resolves mints one at a time against the Jupiter token list.
type JupiterSource struct {
	baseURL string
	client  *http.Client
}

// JupiterOption configures JupiterSource.
type JupiterOption func(*JupiterSource)

// WithJupiterBaseURL overrides the API base URL.
func WithJupiterBaseURL(u string) JupiterOption {
	return func(s *JupiterSource) {
		s.baseURL = strings.TrimRight(u, "/")
	}
}

// WithJupiterHTTPClient sets a custom http.Client.
func WithJupiterHTTPClient(client *http.Client) JupiterOption {
	return func(s *JupiterSource) {
		s.client = client
	}
}

// NewJupiterSource creates a Jupiter-backed metadata source.
func NewJupiterSource(opts ...JupiterOption) *JupiterSource {
	s := &JupiterSource{
		baseURL: DefaultJupiterBaseURL,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Name implements Source.
func (s *JupiterSource) Name() string { return domain.MetaSourceJupiter }

type jupiterToken struct {
	Address  string `json:"address"`
	Name     string `json:"name"`
	Symbol   string `json:"symbol"`
	Decimals int    `json:"decimals"`
}

// Resolve implements Source. Unknown mints return 404 upstream and are
// skipped; any other failure aborts the batch.
func (s *JupiterSource) Resolve(ctx context.Context, mints []string) (map[string]*domain.TokenMeta, error) {
	out := make(map[string]*domain.TokenMeta, len(mints))
	for _, mint := range mints {
		meta, err := s.lookup(ctx, mint)
		if err != nil {
			return nil, err
		}
		if meta != nil {
			out[mint] = meta
		}
	}
	return out, nil
}

func (s *JupiterSource) lookup(ctx context.Context, mint string) (*domain.TokenMeta, error) {
	endpoint := fmt.Sprintf("%s/token/%s", s.baseURL, mint)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		io.Copy(io.Discard, resp.Body)
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("jupiter: status %d", resp.StatusCode)
	}

	var token jupiterToken
	if err := json.NewDecoder(resp.Body).Decode(&token); err != nil {
		return nil, fmt.Errorf("decode jupiter token: %w", err)
	}
	if token.Symbol == "" {
		return nil, nil
	}

	meta := &domain.TokenMeta{
		Mint:     mint,
		Symbol:   token.Symbol,
		Decimals: token.Decimals,
		Source:   domain.MetaSourceJupiter,
	}
	if token.Name != "" {
		meta.Name = &token.Name
	}
	return meta, nil
}
