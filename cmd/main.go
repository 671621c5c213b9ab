package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/okian/rapport/internal/adapters/guard"
	"github.com/okian/rapport/internal/adapters/http/api"
	"github.com/okian/rapport/internal/adapters/repository"
	service "github.com/okian/rapport/internal/app"
	"github.com/okian/rapport/internal/config"
	"github.com/okian/rapport/internal/domain/matching"
	"github.com/okian/rapport/internal/domain/model"
	"github.com/okian/rapport/internal/domain/reputation"
	"github.com/okian/rapport/pkg/logger"
	"github.com/okian/rapport/pkg/metrics"
)

// HTTP server timeout constants.
const (
	readTimeout               = 10 * time.Second
	writeTimeout              = 10 * time.Second
	idleTimeout               = 60 * time.Second
	readHeaderTimeout         = 5 * time.Second
	systemMetricsInterval     = 10 * time.Second
	serviceMetricsInterval    = 5 * time.Second
	nanosecondsPerMillisecond = 1e6
)

func main() {
	// a missing .env is fine
	_ = godotenv.Load()

	// Root context with cancel on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "rapport:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	// Load configuration (defaults -> optional file -> env)
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	if err := logger.Init(logger.WithFormat(cfg.LogFormat)); err != nil {
		return fmt.Errorf("initialize logging: %w", err)
	}
	log := logger.Get()
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		log.Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}

	svc, err := buildService(ctx, cfg, log)
	if err != nil {
		return err
	}
	if err := svc.Start(ctx); err != nil {
		return fmt.Errorf("start service: %w", err)
	}

	go startSystemMetricsUpdater(ctx)
	go startServiceMetricsUpdater(ctx, svc)

	mux := http.NewServeMux()
	api.NewServer(svc, api.WithMaxStandingsLimit(cfg.MaxStandingsLimit)).Register(ctx, mux)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           mux,
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info(ctx, "starting HTTP server", logger.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	var runErr error
	select {
	case <-ctx.Done():
		log.Info(ctx, "shutting down server...")
	case err := <-serveErr:
		runErr = fmt.Errorf("http server: %w", err)
	}

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error(ctx, "server shutdown failed", logger.Error(err))
	}
	if err := svc.Stop(shutdownCtx); err != nil {
		log.Error(ctx, "service shutdown failed", logger.Error(err))
	}
	log.Info(ctx, "server stopped")
	return runErr
}

// buildService wires the ledger, catalog and engine settings from cfg.
func buildService(ctx context.Context, cfg *config.Config, log logger.Logger) (*service.Service, error) {
	calc, err := reputation.NewCalculator(
		reputation.WithLadder(cfg.LevelLadder),
		reputation.WithRankLabels(cfg.RankLabels),
		reputation.WithDecay(reputation.DecayConfig{
			Enabled:     cfg.DecayEnabled,
			GracePeriod: cfg.DecayGracePeriod,
			FloorFactor: cfg.DecayFloor,
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("reputation calculator: %w", err)
	}

	ledger, err := repository.OpenLedger(ctx, cfg.LedgerBackend, cfg.LedgerDSN)
	if err != nil {
		return nil, err
	}

	catalog := repository.NewMemoryCatalog()
	if cfg.CatalogFile != "" {
		seed, err := repository.LoadCatalogFile(cfg.CatalogFile)
		if err != nil {
			_ = ledger.Close()
			return nil, err
		}
		if err := repository.Seed(ctx, catalog, seed); err != nil {
			_ = ledger.Close()
			return nil, fmt.Errorf("seed catalog: %w", err)
		}
		counts := catalog.Counts()
		log.Info(ctx, "catalog seeded",
			logger.String("file", cfg.CatalogFile),
			logger.Int("requesters", counts.Requesters),
			logger.Int("candidates", counts.Candidates),
			logger.Int("opportunities", counts.Opportunities))
	}

	return service.New(
		service.WithLogger(log.Named("service")),
		service.WithWorkerCount(cfg.WorkerCount),
		service.WithQueueSize(cfg.EventQueueSize),
		service.WithDedupeSize(cfg.DedupeSize),
		service.WithCalculator(calc),
		service.WithLedger(ledger),
		service.WithCatalog(catalog),
		service.WithProfiles(profiles(cfg.MatchProfiles), cfg.MatchDefaultProfile),
		service.WithMinScore(cfg.MatchMinScore),
		service.WithOpportunityLimits(cfg.OpportunityDefaultLimit, cfg.MaxOpportunityLimit),
		service.WithSegmentGate(cfg.SegmentGate),
		service.WithEventPoints(eventPoints(cfg.EventPoints)),
		service.WithRefreshSchedule(cfg.StandingsRefresh),
		service.WithRefreshConcurrency(cfg.RefreshConcurrency),
		service.WithGuardOptions(
			guard.WithMaxRetries(uint64(cfg.FetchMaxRetries)),
			guard.WithBreakerFailures(uint32(cfg.BreakerFailures)),
			guard.WithBreakerTimeout(cfg.BreakerTimeout),
		),
	), nil
}

func profiles(in map[string]map[string]float64) map[string]matching.Weights {
	out := make(map[string]matching.Weights, len(in))
	for name, weights := range in {
		w := make(matching.Weights, len(weights))
		for factor, v := range weights {
			w[model.Factor(factor)] = v
		}
		out[name] = w
	}
	return out
}

func eventPoints(in map[string]int64) map[model.EventKind]int64 {
	out := make(map[model.EventKind]int64, len(in))
	for kind, v := range in {
		out[model.EventKind(kind)] = v
	}
	return out
}

// startSystemMetricsUpdater starts a background goroutine that updates system metrics.
func startSystemMetricsUpdater(ctx context.Context) {
	ticker := time.NewTicker(systemMetricsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			updateSystemMetrics()
		}
	}
}

// startServiceMetricsUpdater refreshes the queue and worker gauges.
func startServiceMetricsUpdater(ctx context.Context, svc *service.Service) {
	ticker := time.NewTicker(serviceMetricsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			// GetStats observes the pool gauges as a side effect
			st := svc.GetStats(ctx)
			metrics.UpdateQueueSize(st.QueueLength)
			metrics.UpdateStandingsSize(st.RankedSubjects)
		}
	}
}

// updateSystemMetrics updates system-level metrics.
func updateSystemMetrics() {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	metrics.UpdateSystemMemoryUsage(m.Alloc)
	metrics.UpdateSystemGoroutineCount(runtime.NumGoroutine())
	if m.NumGC > 0 {
		avgPauseMs := float64(m.PauseTotalNs) / float64(m.NumGC) / nanosecondsPerMillisecond
		metrics.RecordSystemGCPauseTime(avgPauseMs)
	}
}
