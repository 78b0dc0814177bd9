package metadata

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"solana-wallet-indexer/internal/domain"
)

// DefaultHeliusBaseURL is the Helius token-metadata API.
const DefaultHeliusBaseURL = "https://api.helius.xyz"

// HeliusSource resolves mints against the Helius token-metadata endpoint,
// which accepts whole batches in one request.
type HeliusSource struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// HeliusOption configures HeliusSource.
type HeliusOption func(*HeliusSource)

// WithHeliusBaseURL overrides the API base URL.
func WithHeliusBaseURL(u string) HeliusOption {
	return func(s *HeliusSource) {
		s.baseURL = strings.TrimRight(u, "/")
	}
}

// WithHeliusHTTPClient sets a custom http.Client.
func WithHeliusHTTPClient(client *http.Client) HeliusOption {
	return func(s *HeliusSource) {
		s.client = client
	}
}

// NewHeliusSource creates a Helius-backed metadata source.
func NewHeliusSource(apiKey string, opts ...HeliusOption) *HeliusSource {
	s := &HeliusSource{
		baseURL: DefaultHeliusBaseURL,
		apiKey:  apiKey,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Name implements Source.
func (s *HeliusSource) Name() string { return domain.MetaSourceHelius }

type heliusMetadataRequest struct {
	MintAccounts    []string `json:"mintAccounts"`
	IncludeOffChain bool     `json:"includeOffChain"`
}

type heliusMetadataItem struct {
	Account            string `json:"account"`
	OnChainAccountInfo struct {
		AccountInfo struct {
			Data struct {
				Parsed struct {
					Info struct {
						Decimals int `json:"decimals"`
					} `json:"info"`
				} `json:"parsed"`
			} `json:"data"`
		} `json:"accountInfo"`
	} `json:"onChainAccountInfo"`
	OnChainMetadata struct {
		Metadata struct {
			Data struct {
				Name   string `json:"name"`
				Symbol string `json:"symbol"`
			} `json:"data"`
		} `json:"metadata"`
	} `json:"onChainMetadata"`
	LegacyMetadata struct {
		Name     string `json:"name"`
		Symbol   string `json:"symbol"`
		Decimals int    `json:"decimals"`
	} `json:"legacyMetadata"`
}

// Resolve implements Source.
func (s *HeliusSource) Resolve(ctx context.Context, mints []string) (map[string]*domain.TokenMeta, error) {
	payload, err := json.Marshal(heliusMetadataRequest{MintAccounts: mints})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/v0/token-metadata?api-key=%s", s.baseURL, url.QueryEscape(s.apiKey))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("helius token-metadata: status %d", resp.StatusCode)
	}

	var items []heliusMetadataItem
	if err := json.NewDecoder(resp.Body).Decode(&items); err != nil {
		return nil, fmt.Errorf("decode token-metadata response: %w", err)
	}

	out := make(map[string]*domain.TokenMeta, len(items))
	for _, item := range items {
		meta := item.toMeta()
		if meta != nil {
			out[meta.Mint] = meta
		}
	}
	return out, nil
}

// toMeta merges the on-chain and legacy views, preferring on-chain fields.
func (item *heliusMetadataItem) toMeta() *domain.TokenMeta {
	symbol := strings.TrimRight(item.OnChainMetadata.Metadata.Data.Symbol, "\x00")
	name := strings.TrimRight(item.OnChainMetadata.Metadata.Data.Name, "\x00")
	if symbol == "" {
		symbol = item.LegacyMetadata.Symbol
	}
	if name == "" {
		name = item.LegacyMetadata.Name
	}
	if symbol == "" || item.Account == "" {
		return nil
	}

	decimals := item.OnChainAccountInfo.AccountInfo.Data.Parsed.Info.Decimals
	if decimals == 0 && item.LegacyMetadata.Decimals > 0 {
		decimals = item.LegacyMetadata.Decimals
	}

	meta := &domain.TokenMeta{
		Mint:     item.Account,
		Symbol:   symbol,
		Decimals: decimals,
		Source:   domain.MetaSourceHelius,
	}
	if name != "" {
		meta.Name = &name
	}
	return meta
}
