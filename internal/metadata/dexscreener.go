package metadata

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"solana-wallet-indexer/internal/domain"
)

// DexScreener API limits.
const (
	DefaultDexScreenerBaseURL = "https://api.dexscreener.com"

	// dexScreenerBatchSize is the most mints one tokens request accepts.
	dexScreenerBatchSize = 30
)

// DexScreenerSource resolves mints from DexScreener pair listings. The venue
// publishes symbol and name but not decimals, so entries carry the derived
// decimal default.
type DexScreenerSource struct {
	baseURL string
	client  *http.Client
}

// DexScreenerOption configures DexScreenerSource.
type DexScreenerOption func(*DexScreenerSource)

// WithDexScreenerBaseURL overrides the API base URL.
func WithDexScreenerBaseURL(u string) DexScreenerOption {
	return func(s *DexScreenerSource) {
		s.baseURL = strings.TrimRight(u, "/")
	}
}

// WithDexScreenerHTTPClient sets a custom http.Client.
func WithDexScreenerHTTPClient(client *http.Client) DexScreenerOption {
	return func(s *DexScreenerSource) {
		s.client = client
	}
}

// NewDexScreenerSource creates a DexScreener-backed metadata source.
func NewDexScreenerSource(opts ...DexScreenerOption) *DexScreenerSource {
	s := &DexScreenerSource{
		baseURL: DefaultDexScreenerBaseURL,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Name implements Source.
func (s *DexScreenerSource) Name() string { return domain.MetaSourceDexScreener }

type dexScreenerResponse struct {
	Pairs []struct {
		BaseToken struct {
			Address string `json:"address"`
			Name    string `json:"name"`
			Symbol  string `json:"symbol"`
		} `json:"baseToken"`
	} `json:"pairs"`
}

// Resolve implements Source. Mints are queried in batches of up to thirty per
// request, matching entries by the pair's base token address.
func (s *DexScreenerSource) Resolve(ctx context.Context, mints []string) (map[string]*domain.TokenMeta, error) {
	out := make(map[string]*domain.TokenMeta, len(mints))
	for start := 0; start < len(mints); start += dexScreenerBatchSize {
		end := start + dexScreenerBatchSize
		if end > len(mints) {
			end = len(mints)
		}
		if err := s.lookupBatch(ctx, mints[start:end], out); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (s *DexScreenerSource) lookupBatch(ctx context.Context, mints []string, out map[string]*domain.TokenMeta) error {
	endpoint := fmt.Sprintf("%s/latest/dex/tokens/%s", s.baseURL, strings.Join(mints, ","))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("dexscreener: status %d", resp.StatusCode)
	}

	var decoded dexScreenerResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return fmt.Errorf("decode dexscreener response: %w", err)
	}

	wanted := make(map[string]struct{}, len(mints))
	for _, mint := range mints {
		wanted[mint] = struct{}{}
	}

	for _, pair := range decoded.Pairs {
		addr := pair.BaseToken.Address
		if _, ok := wanted[addr]; !ok {
			continue
		}
		if _, done := out[addr]; done {
			continue
		}
		if pair.BaseToken.Symbol == "" {
			continue
		}
		meta := &domain.TokenMeta{
			Mint:     addr,
			Symbol:   pair.BaseToken.Symbol,
			Decimals: DerivedDecimals,
			Source:   domain.MetaSourceDexScreener,
		}
		if pair.BaseToken.Name != "" {
			name := pair.BaseToken.Name
			meta.Name = &name
		}
		out[addr] = meta
	}
	return nil
}
