package oracle

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"solana-wallet-indexer/internal/domain"
)

// DefaultBirdeyeBaseURL is the Birdeye public API.
const DefaultBirdeyeBaseURL = "https://public-api.birdeye.so"

// birdeyeResolutions maps bar sizes to the provider's type parameter.
var birdeyeResolutions = map[string]string{
	domain.Resolution1m: "1m",
	domain.Resolution5m: "5m",
	domain.Resolution1h: "1H",
	domain.Resolution1d: "1D",
}

// Birdeye is the Birdeye-backed price oracle.
type Birdeye struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// BirdeyeOption configures Birdeye.
type BirdeyeOption func(*Birdeye)

// WithBirdeyeBaseURL overrides the API base URL.
func WithBirdeyeBaseURL(u string) BirdeyeOption {
	return func(o *Birdeye) {
		o.baseURL = strings.TrimRight(u, "/")
	}
}

// WithBirdeyeHTTPClient sets a custom http.Client.
func WithBirdeyeHTTPClient(client *http.Client) BirdeyeOption {
	return func(o *Birdeye) {
		o.client = client
	}
}

// NewBirdeye creates a Birdeye oracle.
func NewBirdeye(apiKey string, opts ...BirdeyeOption) *Birdeye {
	o := &Birdeye{
		baseURL: DefaultBirdeyeBaseURL,
		apiKey:  apiKey,
		client:  &http.Client{Timeout: 15 * time.Second},
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

var _ PriceOracle = (*Birdeye)(nil)

type birdeyeOHLCVResponse struct {
	Success bool `json:"success"`
	Data    struct {
		Items []struct {
			UnixTime int64   `json:"unixTime"`
			O        float64 `json:"o"`
			H        float64 `json:"h"`
			L        float64 `json:"l"`
			C        float64 `json:"c"`
		} `json:"items"`
	} `json:"data"`
}

type birdeyePriceResponse struct {
	Success bool `json:"success"`
	Data    struct {
		Value float64 `json:"value"`
	} `json:"data"`
}

// Candles implements PriceOracle.
func (o *Birdeye) Candles(ctx context.Context, mint string, start, end int64, resolution string) ([]*domain.Candle, error) {
	barType, ok := birdeyeResolutions[resolution]
	if !ok {
		return nil, fmt.Errorf("unsupported resolution %q", resolution)
	}

	q := url.Values{}
	q.Set("address", mint)
	q.Set("type", barType)
	q.Set("time_from", strconv.FormatInt(start, 10))
	q.Set("time_to", strconv.FormatInt(end, 10))

	var decoded birdeyeOHLCVResponse
	if err := o.get(ctx, "/defi/ohlcv?"+q.Encode(), &decoded); err != nil {
		return nil, err
	}
	if !decoded.Success {
		return nil, fmt.Errorf("birdeye: ohlcv request not successful for %s", mint)
	}

	candles := make([]*domain.Candle, 0, len(decoded.Data.Items))
	for _, item := range decoded.Data.Items {
		if item.UnixTime < start || item.UnixTime > end {
			continue
		}
		candles = append(candles, &domain.Candle{
			Mint:       mint,
			Resolution: resolution,
			T:          item.UnixTime,
			Open:       item.O,
			High:       item.H,
			Low:        item.L,
			Close:      item.C,
		})
	}
	return candles, nil
}

// CurrentPriceUSD implements PriceOracle.
func (o *Birdeye) CurrentPriceUSD(ctx context.Context, mint string) (float64, error) {
	q := url.Values{}
	q.Set("address", mint)

	var decoded birdeyePriceResponse
	if err := o.get(ctx, "/defi/price?"+q.Encode(), &decoded); err != nil {
		return 0, err
	}
	if !decoded.Success || decoded.Data.Value <= 0 {
		return 0, fmt.Errorf("birdeye price for %s: %w", mint, ErrPriceUnknown)
	}
	return decoded.Data.Value, nil
}

func (o *Birdeye) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, o.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("X-API-KEY", o.apiKey)
	req.Header.Set("x-chain", "solana")

	resp, err := o.client.Do(req)
	if err != nil {
		return fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return fmt.Errorf("birdeye: %w", ErrPriceUnknown)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("birdeye: status %d", resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode birdeye response: %w", err)
	}
	return nil
}
