package oracle

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"solana-wallet-indexer/internal/domain"
)

// DefaultGeckoBaseURL is the GeckoTerminal public API.
const DefaultGeckoBaseURL = "https://api.geckoterminal.com/api/v2"

// geckoResolutions maps bar sizes to timeframe path and aggregate parameter.
var geckoResolutions = map[string]struct {
	timeframe string
	aggregate string
}{
	domain.Resolution1m: {"minute", "1"},
	domain.Resolution5m: {"minute", "5"},
	domain.Resolution1h: {"hour", "1"},
	domain.Resolution1d: {"day", "1"},
}

// Gecko is the GeckoTerminal-backed price oracle. Candle queries go through
// the mint's most liquid pool, discovered once and cached for the process
// lifetime.
type Gecko struct {
	baseURL string
	client  *http.Client

	mu    sync.Mutex
	pools map[string]string // mint -> pool address
}

// GeckoOption configures Gecko.
type GeckoOption func(*Gecko)

// WithGeckoBaseURL overrides the API base URL.
func WithGeckoBaseURL(u string) GeckoOption {
	return func(o *Gecko) {
		o.baseURL = strings.TrimRight(u, "/")
	}
}

// WithGeckoHTTPClient sets a custom http.Client.
func WithGeckoHTTPClient(client *http.Client) GeckoOption {
	return func(o *Gecko) {
		o.client = client
	}
}

// NewGecko creates a GeckoTerminal oracle. No API key required.
func NewGecko(opts ...GeckoOption) *Gecko {
	o := &Gecko{
		baseURL: DefaultGeckoBaseURL,
		client:  &http.Client{Timeout: 15 * time.Second},
		pools:   make(map[string]string),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

var _ PriceOracle = (*Gecko)(nil)

type geckoPoolsResponse struct {
	Data []struct {
		Attributes struct {
			Address string `json:"address"`
		} `json:"attributes"`
	} `json:"data"`
}

type geckoOHLCVResponse struct {
	Data struct {
		Attributes struct {
			// Rows are [timestamp, open, high, low, close, volume].
			OHLCVList [][]float64 `json:"ohlcv_list"`
		} `json:"attributes"`
	} `json:"data"`
}

type geckoPriceResponse struct {
	Data struct {
		Attributes struct {
			TokenPrices map[string]string `json:"token_prices"`
		} `json:"attributes"`
	} `json:"data"`
}

// Candles implements PriceOracle.
func (o *Gecko) Candles(ctx context.Context, mint string, start, end int64, resolution string) ([]*domain.Candle, error) {
	res, ok := geckoResolutions[resolution]
	if !ok {
		return nil, fmt.Errorf("unsupported resolution %q", resolution)
	}

	pool, err := o.poolFor(ctx, mint)
	if err != nil {
		return nil, err
	}

	q := url.Values{}
	q.Set("aggregate", res.aggregate)
	q.Set("before_timestamp", strconv.FormatInt(end, 10))
	q.Set("limit", "1000")
	q.Set("currency", "usd")

	path := fmt.Sprintf("/networks/solana/pools/%s/ohlcv/%s?%s", pool, res.timeframe, q.Encode())
	var decoded geckoOHLCVResponse
	if err := o.get(ctx, path, &decoded); err != nil {
		return nil, err
	}

	var candles []*domain.Candle
	for _, row := range decoded.Data.Attributes.OHLCVList {
		if len(row) < 5 {
			continue
		}
		t := int64(row[0])
		if t < start || t > end {
			continue
		}
		candles = append(candles, &domain.Candle{
			Mint:       mint,
			Resolution: resolution,
			T:          t,
			Open:       row[1],
			High:       row[2],
			Low:        row[3],
			Close:      row[4],
		})
	}
	// The provider returns newest-first.
	for i, j := 0, len(candles)-1; i < j; i, j = i+1, j-1 {
		candles[i], candles[j] = candles[j], candles[i]
	}
	return candles, nil
}

// CurrentPriceUSD implements PriceOracle.
func (o *Gecko) CurrentPriceUSD(ctx context.Context, mint string) (float64, error) {
	var decoded geckoPriceResponse
	if err := o.get(ctx, "/simple/networks/solana/token_price/"+mint, &decoded); err != nil {
		return 0, err
	}

	for addr, priceStr := range decoded.Data.Attributes.TokenPrices {
		if !strings.EqualFold(addr, mint) {
			continue
		}
		price, err := strconv.ParseFloat(priceStr, 64)
		if err != nil || price <= 0 {
			break
		}
		return price, nil
	}
	return 0, fmt.Errorf("gecko price for %s: %w", mint, ErrPriceUnknown)
}

// poolFor resolves the mint's top pool, caching the answer.
func (o *Gecko) poolFor(ctx context.Context, mint string) (string, error) {
	o.mu.Lock()
	pool, ok := o.pools[mint]
	o.mu.Unlock()
	if ok {
		return pool, nil
	}

	var decoded geckoPoolsResponse
	if err := o.get(ctx, "/networks/solana/tokens/"+mint+"/pools?page=1", &decoded); err != nil {
		return "", err
	}
	if len(decoded.Data) == 0 {
		return "", fmt.Errorf("no pool for %s: %w", mint, ErrPriceUnknown)
	}
	pool = decoded.Data[0].Attributes.Address

	o.mu.Lock()
	o.pools[mint] = pool
	o.mu.Unlock()
	return pool, nil
}

func (o *Gecko) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, o.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := o.client.Do(req)
	if err != nil {
		return fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return fmt.Errorf("gecko: %w", ErrPriceUnknown)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("gecko: status %d", resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode gecko response: %w", err)
	}
	return nil
}
