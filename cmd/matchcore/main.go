package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/efreitasn/matchcore/internal/config"
	"github.com/efreitasn/matchcore/internal/dispatch"
	"github.com/efreitasn/matchcore/internal/domain"
	"github.com/efreitasn/matchcore/internal/engine"
	"github.com/efreitasn/matchcore/internal/handler"
	"github.com/efreitasn/matchcore/internal/health"
	"github.com/efreitasn/matchcore/internal/journal"
	"github.com/efreitasn/matchcore/internal/logging"
	"github.com/efreitasn/matchcore/internal/notify"
	"github.com/efreitasn/matchcore/internal/publish"
	"github.com/efreitasn/matchcore/internal/schedule"
	"github.com/efreitasn/matchcore/internal/sequence"
	"github.com/efreitasn/matchcore/internal/service"
	"github.com/efreitasn/matchcore/internal/store"
	"github.com/efreitasn/matchcore/internal/worker"
)

func main() {
	healthcheck := flag.Bool("healthcheck", false, "Run health check against running server")
	flag.Parse()

	// Handle -healthcheck flag: HTTP GET to localhost:PORT/healthz, exit 0/1.
	if *healthcheck {
		port := os.Getenv("PORT")
		if port == "" {
			port = "8080"
		}
		resp, err := http.Get(fmt.Sprintf("http://localhost:%s/healthz", port))
		if err != nil || resp.StatusCode != http.StatusOK {
			os.Exit(1)
		}
		os.Exit(0)
	}

	// Load configuration.
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", slog.String("error", err.Error()))
		os.Exit(1)
	}

	logger, logCloser := logging.New(os.Stdout, logging.Options{
		Level:      cfg.LogLevel,
		File:       cfg.LogFile,
		MaxSizeMB:  cfg.LogFileMaxMB,
		MaxBackups: cfg.LogFileMaxBackups,
		MaxAgeDays: cfg.LogFileMaxAgeDays,
	})
	defer logCloser.Close()
	slog.SetDefault(logger)

	catalog, err := config.LoadCatalog(cfg.CatalogFile)
	if err != nil {
		logger.Error("failed to load catalog", slog.String("file", cfg.CatalogFile), slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Instantiate stores.
	monitor := health.NewMonitor(logger)
	orderStore := store.NewOrderStore()
	tradeStore := store.NewTradeStore(cfg.TradeHistory)
	depthStore := store.NewDepthStore()

	// Journal and recovery. Without a journal every start is a cold start.
	var jrnl *journal.Journal
	var recovered journal.State
	pruneStart := time.Now().Add(-cfg.PruneRetention)
	if cfg.JournalDir != "" {
		jrnl, err = journal.Open(cfg.JournalDir)
		if err != nil {
			logger.Error("failed to open journal", slog.String("dir", cfg.JournalDir), slog.String("error", err.Error()))
			os.Exit(1)
		}
		recovered, err = jrnl.Replay(func(l engine.Log) {
			orderStore.Handle(l)
			tradeStore.Handle(l)
		})
		if err != nil {
			logger.Error("failed to replay journal", slog.String("error", err.Error()))
			os.Exit(1)
		}
		cursor, ok, err := jrnl.Cursor(schedule.PruneCursor)
		if err != nil {
			logger.Error("failed to read prune cursor", slog.String("error", err.Error()))
			os.Exit(1)
		}
		if ok {
			pruneStart = cursor
		}
		logger.Info("journal replayed",
			slog.Uint64("last_seq", recovered.LastSeq),
			slog.Time("prune_start", pruneStart),
		)
	}

	// Asynchronous sinks. Each gets its own worker so a slow consumer only
	// backs up its own buffer.
	workerCtx, cancelWorkers := context.WithCancel(context.Background())
	defer cancelWorkers()

	sinks := dispatch.Fanout{orderStore, tradeStore, depthStore}
	var workers []*worker.LogWorker
	addWorker := func(name string, sink worker.BatchHandler) {
		w := worker.New(worker.Config{
			Name:       name,
			QueueSize:  cfg.LogWorkerQueue,
			BatchSize:  cfg.LogWorkerBatch,
			PauseAfter: 10,
		}, sink, monitor, logger)
		w.Start(workerCtx)
		workers = append(workers, w)
		sinks = append(sinks, w)
	}

	if jrnl != nil {
		addWorker("journal", jrnl)
	}
	var publisher *publish.Publisher
	if len(cfg.KafkaBrokers) > 0 {
		publisher = publish.New(cfg.KafkaBrokers, cfg.KafkaTopic)
		addWorker("kafka", publisher)
	}
	if cfg.NotifyURL != "" {
		addWorker("notify", notify.New(cfg.NotifyURL, cfg.NotifyTimeout))
	}

	// Dispatcher: plain products first so synthetic legs exist.
	dispatcher := dispatch.New(
		dispatch.Config{QueueSize: cfg.QueueSize, BandPolicy: engine.BandPolicy(cfg.BandPolicy)},
		sequence.New(recovered.LastSeq),
		monitor,
		sinks,
		logger,
	)
	for _, synthetic := range []bool{false, true} {
		for _, p := range catalog.Products() {
			if p.Synthetic() != synthetic {
				continue
			}
			if err := dispatcher.Register(p); err != nil {
				logger.Error("failed to register product", slog.String("product_id", p.ID), slog.String("error", err.Error()))
				os.Exit(1)
			}
		}
	}

	for productID, seq := range recovered.TradeSeqs {
		if err := dispatcher.SeedTradeSeq(productID, seq); err != nil {
			logger.Warn("trade sequence not restored", slog.String("product_id", productID), slog.String("error", err.Error()))
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		if err := dispatcher.Run(ctx); err != nil {
			logger.Error("dispatcher halted, restart required", slog.String("error", err.Error()))
		}
	}()

	if err := importBooks(ctx, dispatcher, orderStore.Live()); err != nil {
		logger.Error("failed to import orders", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Services.
	orderSvc := service.NewOrderService(catalog, orderStore, dispatcher)
	marketSvc := service.NewMarketService(catalog, tradeStore, depthStore, cfg.VWAPWindow)
	adminSvc := service.NewAdminService(catalog, dispatcher, monitor)

	// Background producers.
	schedule.NewDailyLimitScheduler(catalog, dispatcher, cfg.ScheduleInterval, cfg.Timezone, logger).Start(ctx)
	if cfg.PruneEnabled {
		var progress schedule.Progress
		if jrnl != nil {
			progress = jrnl
		}
		schedule.NewPruneSweep(dispatcher, cfg.PruneInterval, cfg.PruneRetention, cfg.PruneUsers,
			pruneStart, progress, logger).Start(ctx)
	}

	router := handler.NewRouter(orderSvc, marketSvc, adminSvc, logger)

	// Configure HTTP server.
	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	// Start HTTP server in a goroutine.
	go func() {
		logger.Info("server starting", slog.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}()

	// Wait for SIGINT/SIGTERM.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	logger.Info("shutdown signal received", slog.String("signal", sig.String()))

	// Graceful shutdown: stop intake, stop the dispatcher, then drain sinks.
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", slog.String("error", err.Error()))
	}
	cancel()
	<-dispatcher.Done()

	drained := make(chan struct{})
	go func() {
		for _, w := range workers {
			w.Close()
		}
		close(drained)
	}()
	select {
	case <-drained:
	case <-shutdownCtx.Done():
		logger.Warn("sinks not drained before shutdown timeout")
		cancelWorkers()
		<-drained
	}

	if publisher != nil {
		if err := publisher.Close(); err != nil {
			logger.Error("kafka writer close error", slog.String("error", err.Error()))
		}
	}
	if jrnl != nil {
		if err := jrnl.Close(); err != nil {
			logger.Error("journal close error", slog.String("error", err.Error()))
		}
	}

	logger.Info("server stopped")
}

// importBooks re-places orders that were resting or pending when the
// process stopped, in their original arrival order, then tells every book
// the import is complete.
func importBooks(ctx context.Context, d *dispatch.Dispatcher, live []domain.Order) error {
	for i := range live {
		o := live[i]
		if err := d.Submit(ctx, engine.Place{Order: &o}); err != nil {
			return fmt.Errorf("import %s: %w", o.ID, err)
		}
	}
	return d.Submit(ctx, engine.Signal{Type: engine.SignalOrderImported, At: time.Now()})
}
