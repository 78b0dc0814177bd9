// Package watch tails a wallet live: a Solana logsSubscribe stream mentioning
// the wallet triggers incremental tail syncs as new activity lands.
package watch

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/gorilla/websocket"

	"solana-wallet-indexer/internal/ingestion"
)

// TailSyncer pulls the newest unseen transactions into the store.
// Implemented by ingestion.Backfiller.
type TailSyncer interface {
	SyncTail(ctx context.Context, wallet string) (*ingestion.Stats, error)
}

// Config controls connection behavior. Zero values select defaults.
type Config struct {
	ReconnectDelay    time.Duration
	MaxReconnectDelay time.Duration
	PingInterval      time.Duration
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration

	// Debounce coalesces bursts of notifications into one sync.
	Debounce time.Duration
}

// DefaultConfig returns the standard connection settings.
func DefaultConfig() Config {
	return Config{
		ReconnectDelay:    1 * time.Second,
		MaxReconnectDelay: 30 * time.Second,
		PingInterval:      30 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      10 * time.Second,
		Debounce:          2 * time.Second,
	}
}

// Watcher holds one wallet subscription and reacts to its notifications.
type Watcher struct {
	endpoint string
	wallet   string
	syncer   TailSyncer
	cfg      Config
	logger   *log.Logger

	trigger chan struct{}
}

// New creates a Watcher. config nil uses DefaultConfig.
func New(endpoint, wallet string, syncer TailSyncer, config *Config, logger *log.Logger) *Watcher {
	cfg := DefaultConfig()
	if config != nil {
		cfg = *config
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Watcher{
		endpoint: endpoint,
		wallet:   wallet,
		syncer:   syncer,
		cfg:      cfg,
		logger:   logger,
		trigger:  make(chan struct{}, 1),
	}
}

// Run connects, subscribes and processes notifications until ctx is done.
// Connection loss reconnects with exponential backoff and resubscribes.
func (w *Watcher) Run(ctx context.Context) error {
	go w.syncLoop(ctx)

	delay := w.cfg.ReconnectDelay
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		err := w.session(ctx)
		if err != nil && ctx.Err() == nil {
			w.logger.Printf("watch: connection lost for %s: %v", w.wallet, err)
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
		if delay > w.cfg.MaxReconnectDelay {
			delay = w.cfg.MaxReconnectDelay
		}
	}
}

// session runs one connection: dial, subscribe, read until failure.
func (w *Watcher) session(ctx context.Context) error {
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, w.endpoint, nil)
	if err != nil {
		return fmt.Errorf("websocket dial: %w", err)
	}
	defer conn.Close()

	stop := make(chan struct{})
	defer close(stop)
	go w.pingLoop(conn, stop)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-stop:
		}
	}()

	if err := w.subscribe(conn); err != nil {
		return err
	}
	w.logger.Printf("watch: subscribed to logs mentioning %s", w.wallet)

	// Catch up on anything that happened while disconnected.
	w.fire()

	for {
		conn.SetReadDeadline(time.Now().Add(w.cfg.ReadTimeout))
		_, message, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("websocket read: %w", err)
		}
		w.handleMessage(message)
	}
}

// subscribe sends logsSubscribe for the wallet and waits for confirmation.
func (w *Watcher) subscribe(conn *websocket.Conn) error {
	req := wsRequest{
		JSONRPC: "2.0",
		ID:      1,
		Method:  "logsSubscribe",
		Params: []any{
			map[string]any{"mentions": []string{w.wallet}},
			map[string]string{"commitment": "confirmed"},
		},
	}

	conn.SetWriteDeadline(time.Now().Add(w.cfg.WriteTimeout))
	if err := conn.WriteJSON(req); err != nil {
		return fmt.Errorf("write subscribe: %w", err)
	}

	conn.SetReadDeadline(time.Now().Add(w.cfg.ReadTimeout))
	_, message, err := conn.ReadMessage()
	if err != nil {
		return fmt.Errorf("read subscribe response: %w", err)
	}

	var resp wsSubscribeResponse
	if err := json.Unmarshal(message, &resp); err != nil || resp.Result == 0 {
		return fmt.Errorf("subscription rejected: %s", message)
	}
	return nil
}

// handleMessage dispatches one frame. Only successful log notifications
// trigger a sync; failed transactions never reach the ledger.
func (w *Watcher) handleMessage(message []byte) {
	var notif wsNotification
	if err := json.Unmarshal(message, &notif); err != nil || notif.Method != "logsNotification" {
		return
	}
	if notif.Params == nil || notif.Params.Result.Value.Err != nil {
		return
	}
	w.logger.Printf("watch: activity %s at slot %d", notif.Params.Result.Value.Signature, notif.Params.Result.Context.Slot)
	w.fire()
}

// fire requests a sync without blocking; a pending request absorbs the rest
// of the burst.
func (w *Watcher) fire() {
	select {
	case w.trigger <- struct{}{}:
	default:
	}
}

// syncLoop serializes tail syncs behind a debounce window.
func (w *Watcher) syncLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.trigger:
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(w.cfg.Debounce):
		}

		stats, err := w.syncer.SyncTail(ctx, w.wallet)
		if err != nil {
			w.logger.Printf("watch: tail sync failed for %s: %v", w.wallet, err)
			continue
		}
		if stats.RawTxCount > 0 {
			w.logger.Printf("watch: synced %d new transactions for %s", stats.RawTxCount, w.wallet)
		}
	}
}

// pingLoop keeps the connection alive until the session ends.
func (w *Watcher) pingLoop(conn *websocket.Conn, stop <-chan struct{}) {
	ticker := time.NewTicker(w.cfg.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(w.cfg.WriteTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

type wsRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      uint64 `json:"id"`
	Method  string `json:"method"`
	Params  []any  `json:"params,omitempty"`
}

type wsSubscribeResponse struct {
	JSONRPC string `json:"jsonrpc"`
	ID      uint64 `json:"id"`
	Result  int64  `json:"result"`
}

type wsNotification struct {
	JSONRPC string    `json:"jsonrpc"`
	Method  string    `json:"method"`
	Params  *wsParams `json:"params"`
}

type wsParams struct {
	Subscription int64 `json:"subscription"`
	Result       struct {
		Context struct {
			Slot int64 `json:"slot"`
		} `json:"context"`
		Value struct {
			Signature string `json:"signature"`
			Err       any    `json:"err"`
		} `json:"value"`
	} `json:"result"`
}
