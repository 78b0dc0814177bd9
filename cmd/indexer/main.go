// Command indexer ingests a Solana wallet's transaction history, keeps it
// reconciled against the provider, and reconstructs FIFO positions with
// peak-potential and regret metrics.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"solana-wallet-indexer/internal/config"
	"solana-wallet-indexer/internal/domain"
	"solana-wallet-indexer/internal/helius"
	"solana-wallet-indexer/internal/ingestion"
	"solana-wallet-indexer/internal/metadata"
	"solana-wallet-indexer/internal/normalizer"
	"solana-wallet-indexer/internal/observability"
	"solana-wallet-indexer/internal/oracle"
	"solana-wallet-indexer/internal/position"
	"solana-wallet-indexer/internal/reconcile"
	"solana-wallet-indexer/internal/storage"
	chstore "solana-wallet-indexer/internal/storage/clickhouse"
	"solana-wallet-indexer/internal/storage/memory"
	"solana-wallet-indexer/internal/storage/migrations"
	pgstore "solana-wallet-indexer/internal/storage/postgres"
	"solana-wallet-indexer/internal/walletaddr"
	"solana-wallet-indexer/internal/watch"
	"solana-wallet-indexer/internal/workqueue"
)

const usage = `Usage: indexer <command> [flags]

Commands:
  backfill          Ingest a wallet's full history, newest first
  sync-tail         Ingest transactions newer than the stored history
  status            Print the wallet's sync state and audit trail
  reconcile-recent  Verify and repair the rolling slot window
  analyze           Reconstruct FIFO positions and print the report
  watch             Follow the wallet live over websocket

Common flags:
  -wallet <address>   Wallet to operate on (required)
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	logger := log.New(os.Stderr, "[indexer] ", log.LstdFlags)

	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("configuration: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Println("shutdown requested")
		cancel()
	}()

	command := os.Args[1]
	args := os.Args[2:]

	var runErr error
	switch command {
	case "backfill":
		runErr = runBackfill(ctx, cfg, logger, args)
	case "sync-tail":
		runErr = runSyncTail(ctx, cfg, logger, args)
	case "status":
		runErr = runStatus(ctx, cfg, logger, args)
	case "reconcile-recent":
		runErr = runReconcileRecent(ctx, cfg, logger, args)
	case "analyze":
		runErr = runAnalyze(ctx, cfg, logger, args)
	case "watch":
		runErr = runWatch(ctx, cfg, logger, args)
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n%s", command, usage)
		os.Exit(2)
	}

	if runErr != nil {
		logger.Printf("error: %v", runErr)
		if hint := hintFor(runErr); hint != "" {
			logger.Printf("hint: %s", hint)
		}
		os.Exit(1)
	}
}

// hintFor maps known failures to operator guidance.
func hintFor(err error) string {
	var apiErr *helius.APIError
	if errors.As(err, &apiErr) && apiErr.Hint != "" {
		return apiErr.Hint
	}
	switch {
	case errors.Is(err, ingestion.ErrBackfillRequired):
		return "run `indexer backfill -wallet <address>` first"
	case errors.Is(err, reconcile.ErrNoVerifiedSlot):
		return "run a backfill and a sync-tail before reconciling"
	case errors.Is(err, walletaddr.ErrInvalidAddress):
		return "wallet must be a base58-encoded ed25519 public key"
	}
	return ""
}

// stores bundles one storage backend selection.
type stores struct {
	raws    storage.RawTransactionStore
	events  storage.WalletEventStore
	sync    storage.SyncStateStore
	audits  storage.ReconcileAuditStore
	meta    storage.TokenMetaStore
	candles storage.CandleStore

	close func()
}

// openStores selects Postgres when DATABASE_URL is set, in-memory otherwise,
// and ClickHouse for candles when CLICKHOUSE_DSN is set.
func openStores(ctx context.Context, cfg *config.Config, logger *log.Logger) (*stores, error) {
	s := &stores{close: func() {}}

	if cfg.DatabaseURL != "" {
		pool, err := pgstore.NewPool(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
			pool.Close()
			return nil, fmt.Errorf("apply postgres migrations: %w", err)
		}
		s.raws = pgstore.NewRawTransactionStore(pool)
		s.events = pgstore.NewWalletEventStore(pool)
		s.sync = pgstore.NewSyncStateStore(pool)
		s.audits = pgstore.NewReconcileAuditStore(pool)
		s.meta = pgstore.NewTokenMetaStore(pool)
		s.close = pool.Close
	} else {
		logger.Println("DATABASE_URL not set, using in-memory storage")
		s.raws = memory.NewRawTransactionStore()
		s.events = memory.NewWalletEventStore()
		s.sync = memory.NewSyncStateStore()
		s.audits = memory.NewReconcileAuditStore()
		s.meta = memory.NewTokenMetaStore()
	}

	if cfg.ClickhouseDSN != "" {
		conn, err := chstore.NewConn(ctx, cfg.ClickhouseDSN)
		if err != nil {
			s.close()
			return nil, fmt.Errorf("connect clickhouse: %w", err)
		}
		if err := migrations.RunClickhouseMigrations(ctx, conn); err != nil {
			conn.Close()
			s.close()
			return nil, fmt.Errorf("apply clickhouse migrations: %w", err)
		}
		s.candles = chstore.NewCandleStore(conn)
		prevClose := s.close
		s.close = func() {
			conn.Close()
			prevClose()
		}
	} else {
		s.candles = memory.NewCandleStore()
	}

	return s, nil
}

// app wires the full pipeline for one invocation.
type app struct {
	stores     *stores
	backfiller *ingestion.Backfiller
	auditor    *reconcile.Auditor
	oracle     oracle.PriceOracle
	logger     *log.Logger
}

func buildApp(ctx context.Context, cfg *config.Config, logger *log.Logger) (*app, error) {
	s, err := openStores(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	client := helius.NewClient(cfg.HeliusAPIKey,
		helius.WithTimeout(cfg.Timeout()),
		helius.WithLogger(logger),
	)

	resolver := metadata.NewResolver(metadata.Options{
		Store: s.meta,
		Sources: []metadata.Source{
			metadata.NewJupiterSource(),
			metadata.NewDexScreenerSource(),
			metadata.NewHeliusSource(cfg.HeliusAPIKey),
		},
		Queue:  workqueue.New(1, 2),
		Logger: logger,
	})

	norm := normalizer.New(normalizer.Options{
		Resolver: resolver,
		Logger:   logger,
	})

	// One queue for everything that talks to the transaction provider, so
	// backfill, tail sync and reconciliation share the same budget.
	providerQueue := workqueue.New(2, 2)

	backfiller := ingestion.New(ingestion.Options{
		Source:     client,
		Normalizer: norm,
		RawStore:   s.raws,
		EventStore: s.events,
		SyncStore:  s.sync,
		Queue:      providerQueue,
		PageLimit:  cfg.PageLimit,
		MaxPages:   cfg.MaxPages,
		Logger:     logger,
	})

	auditor := reconcile.New(reconcile.Options{
		Source:     client,
		Normalizer: norm,
		RawStore:   s.raws,
		EventStore: s.events,
		SyncStore:  s.sync,
		AuditStore: s.audits,
		Queue:      providerQueue,
		PageLimit:  cfg.PageLimit,
		Logger:     logger,
	})

	var upstream oracle.PriceOracle
	switch cfg.PriceProvider {
	case config.PriceProviderGecko:
		upstream = oracle.NewGecko()
	default:
		upstream = oracle.NewBirdeye(cfg.BirdeyeAPIKey)
	}

	return &app{
		stores:     s,
		backfiller: backfiller,
		auditor:    auditor,
		oracle:     oracle.NewCached(upstream, s.candles, logger),
		logger:     logger,
	}, nil
}

func (a *app) shutdown() {
	a.stores.close()
}

// walletFlag parses the common -wallet flag and validates the address.
func walletFlag(name string, args []string, extra func(*flag.FlagSet)) (string, *flag.FlagSet, error) {
	fs := flag.NewFlagSet(name, flag.ExitOnError)
	wallet := fs.String("wallet", "", "wallet address (required)")
	if extra != nil {
		extra(fs)
	}
	fs.Parse(args)

	if *wallet == "" {
		return "", fs, fmt.Errorf("-wallet is required")
	}
	if err := walletaddr.Validate(*wallet); err != nil {
		return "", fs, fmt.Errorf("wallet %q: %w", *wallet, err)
	}
	return *wallet, fs, nil
}

func runBackfill(ctx context.Context, cfg *config.Config, logger *log.Logger, args []string) error {
	var maxPages int
	wallet, _, err := walletFlag("backfill", args, func(fs *flag.FlagSet) {
		fs.IntVar(&maxPages, "max-pages", 0, "page cap for this run (default from config)")
	})
	if err != nil {
		return err
	}

	a, err := buildApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.shutdown()

	stats, err := a.backfiller.Backfill(ctx, wallet, maxPages)
	reportStats(logger, "backfill", stats)
	observability.RecordIngest(stats.PagesFetched, stats.RawTxCount, stats.WalletTxCount, stats.Retries)
	if err == nil {
		observability.RecordBackfillDuration(stats.Duration)
	}
	return err
}

func runSyncTail(ctx context.Context, cfg *config.Config, logger *log.Logger, args []string) error {
	wallet, _, err := walletFlag("sync-tail", args, nil)
	if err != nil {
		return err
	}

	a, err := buildApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.shutdown()

	stats, err := a.backfiller.SyncTail(ctx, wallet)
	reportStats(logger, "sync-tail", stats)
	observability.RecordIngest(stats.PagesFetched, stats.RawTxCount, stats.WalletTxCount, stats.Retries)
	return err
}

func runStatus(ctx context.Context, cfg *config.Config, logger *log.Logger, args []string) error {
	wallet, _, err := walletFlag("status", args, nil)
	if err != nil {
		return err
	}

	a, err := buildApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.shutdown()

	state, err := a.stores.sync.Get(ctx, wallet)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			fmt.Printf("wallet %s: never backfilled\n", wallet)
			return nil
		}
		return fmt.Errorf("load sync state: %w", err)
	}

	fmt.Printf("wallet:        %s\n", state.Wallet)
	fmt.Printf("cursor:        %s\n", strOrDash(state.LastBefore))
	if state.VerifiedSlot != nil {
		fmt.Printf("verified slot: %d\n", *state.VerifiedSlot)
	} else {
		fmt.Printf("verified slot: -\n")
	}
	if state.FullScanAt != nil {
		fmt.Printf("full scan at:  %s\n", time.UnixMilli(*state.FullScanAt).UTC().Format(time.RFC3339))
	} else {
		fmt.Printf("full scan at:  -\n")
	}

	audits, err := a.stores.audits.GetByWallet(ctx, wallet)
	if err != nil {
		return fmt.Errorf("load audits: %w", err)
	}
	fmt.Printf("audits:        %d\n", len(audits))
	for _, audit := range tail(audits, 5) {
		fmt.Printf("  [%d, %d] raw=%d events=%d ok=%t\n",
			audit.FromSlot, audit.ToSlot, audit.CountRaw, audit.CountWalletTx, audit.OK)
	}
	return nil
}

func runReconcileRecent(ctx context.Context, cfg *config.Config, logger *log.Logger, args []string) error {
	var window int64
	wallet, _, err := walletFlag("reconcile-recent", args, func(fs *flag.FlagSet) {
		fs.Int64Var(&window, "window", reconcile.DefaultWindowSize, "slot window below the verified slot")
	})
	if err != nil {
		return err
	}

	a, err := buildApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.shutdown()

	results, err := a.auditor.ReconcileRecentSlots(ctx, wallet, window)
	for _, result := range results {
		logger.Printf("reconcile [%d, %d]: provider=%d store=%d repaired=%d ok=%t",
			result.FromSlot, result.ToSlot, result.ProviderCount, result.StoreCount, result.Repaired, result.OK)
		observability.RecordReconcile(result.OK, result.Repaired)
	}
	return err
}

func runAnalyze(ctx context.Context, cfg *config.Config, logger *log.Logger, args []string) error {
	var asJSON bool
	wallet, _, err := walletFlag("analyze", args, func(fs *flag.FlagSet) {
		fs.BoolVar(&asJSON, "json", false, "emit the full report as JSON")
	})
	if err != nil {
		return err
	}

	a, err := buildApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.shutdown()

	events, err := a.stores.events.GetByWallet(ctx, wallet)
	if err != nil {
		return fmt.Errorf("load events: %w", err)
	}
	if len(events) == 0 {
		return fmt.Errorf("no events for %s: %w", wallet, ingestion.ErrBackfillRequired)
	}

	currentPrices := fetchCurrentPrices(ctx, a.oracle, events, logger)

	reconstructor := position.New(position.Options{
		Oracle: a.oracle,
		Logger: logger,
	})
	report, err := reconstructor.Reconstruct(ctx, wallet, events, currentPrices)
	if err != nil {
		return err
	}

	if asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	}
	printReport(report)
	return nil
}

func runWatch(ctx context.Context, cfg *config.Config, logger *log.Logger, args []string) error {
	var metricsAddr string
	wallet, _, err := walletFlag("watch", args, func(fs *flag.FlagSet) {
		fs.StringVar(&metricsAddr, "metrics-addr", "", "serve /metrics on this address")
	})
	if err != nil {
		return err
	}
	if cfg.SolanaWSEndpoint == "" {
		return fmt.Errorf("SOLANA_WS_ENDPOINT is required for watch mode")
	}

	a, err := buildApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.shutdown()

	if metricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", observability.Handler())
		mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("ok"))
		})
		server := &http.Server{Addr: metricsAddr, Handler: mux}
		go func() {
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Printf("metrics server: %v", err)
			}
		}()
		defer server.Close()
		logger.Printf("metrics on %s/metrics", metricsAddr)
	}

	watcher := watch.New(cfg.SolanaWSEndpoint, wallet, a.backfiller, nil, logger)
	err = watcher.Run(ctx)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// fetchCurrentPrices marks every traded mint to market. Unpriceable mints are
// simply absent and value as zero downstream.
func fetchCurrentPrices(ctx context.Context, o oracle.PriceOracle, events []*domain.WalletEvent, logger *log.Logger) map[string]float64 {
	prices := make(map[string]float64)
	seen := make(map[string]struct{})
	for _, e := range events {
		if _, ok := seen[e.TokenMint]; ok {
			continue
		}
		seen[e.TokenMint] = struct{}{}

		price, err := o.CurrentPriceUSD(ctx, e.TokenMint)
		if err != nil {
			if !errors.Is(err, oracle.ErrPriceUnknown) {
				logger.Printf("spot price for %s: %v", e.TokenMint, err)
			}
			continue
		}
		prices[e.TokenMint] = price
	}
	return prices
}

func printReport(report *domain.PositionReport) {
	fmt.Printf("wallet: %s (%d events)\n", report.Wallet, report.EventCount)
	fmt.Printf("realized:       $%.2f\n", report.RealizedUSD)
	fmt.Printf("peak potential: $%.2f\n", report.PeakPotentialUSD)
	fmt.Printf("regret gap:     $%.2f\n", report.RegretGapUSD)
	fmt.Printf("open positions: $%.2f\n", report.OpenPositionsUSD)

	for _, token := range report.Tokens {
		fmt.Printf("\n%s (%s)\n", token.Symbol, token.Mint)
		fmt.Printf("  lots=%d realized=$%.2f peak=$%.2f regret=$%.2f remaining=%.6f ($%.2f)\n",
			len(token.Lots), token.RealizedUSD, token.PeakPotentialUSD,
			token.RegretGapUSD, token.RemainingQty, token.RemainingUSD)
	}

	if len(report.DroppedSellQty) > 0 {
		fmt.Println("\nsells without matching buys (incomplete history):")
		for mint, qty := range report.DroppedSellQty {
			fmt.Printf("  %s: %.6f\n", mint, qty)
		}
	}
}

func reportStats(logger *log.Logger, op string, stats *ingestion.Stats) {
	logger.Printf("%s: pages=%d raw=%d events=%d slots=[%d, %d] retries=%d elapsed=%s",
		op, stats.PagesFetched, stats.RawTxCount, stats.WalletTxCount,
		stats.LastSlot, stats.FirstSlot, stats.Retries, stats.Duration.Round(time.Millisecond))
}

func strOrDash(s *string) string {
	if s == nil || *s == "" {
		return "-"
	}
	return *s
}

func tail(audits []*domain.ReconcileAudit, n int) []*domain.ReconcileAudit {
	if len(audits) <= n {
		return audits
	}
	return audits[len(audits)-n:]
}
