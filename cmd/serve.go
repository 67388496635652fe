package cmd

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/leadpulsehq/leadpulse/internal/channels"
	"github.com/leadpulsehq/leadpulse/internal/config"
	"github.com/leadpulsehq/leadpulse/internal/engine"
	"github.com/leadpulsehq/leadpulse/internal/httpapi"
	"github.com/leadpulsehq/leadpulse/internal/reply"
	"github.com/leadpulsehq/leadpulse/internal/scheduler"
	"github.com/leadpulsehq/leadpulse/internal/store"
	"github.com/leadpulsehq/leadpulse/internal/store/memory"
	"github.com/leadpulsehq/leadpulse/internal/store/pg"
)

func runServe() {
	logLevel := slog.LevelInfo
	if verbose {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	})))

	cfg, err := config.Load(resolveConfigPath())
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	if cfg.LockTTL() < 2*cfg.DebounceDelay() {
		slog.Warn("lock ttl is close to the batch window; slow drains may lose their lock",
			"lock_ttl", cfg.LockTTL(), "debounce", cfg.DebounceDelay())
	}

	storeCfg := store.Config{
		PostgresDSN:     cfg.Database.PostgresDSN,
		DedupTTL:        cfg.DedupTTL(),
		DedupMaxEntries: cfg.Engine.DedupMaxEntries,
	}

	var stores *store.Stores
	mode := "standalone"
	if cfg.Database.PostgresDSN != "" {
		stores, err = pg.NewPGStores(storeCfg)
		if err != nil {
			slog.Error("failed to connect to postgres", "error", err)
			os.Exit(1)
		}
		mode = "managed"
	} else {
		stores = memory.NewStores(storeCfg)
	}

	sched := scheduler.NewTimerScheduler(scheduler.SystemClock())
	defer sched.Stop()

	var gen reply.Generator
	if cfg.Reply.APIKey != "" {
		gen = reply.NewOpenAIGenerator(cfg.Reply.APIKey, cfg.Reply.APIBase, cfg.Reply.Model)
		slog.Info("reply generator: llm", "model", cfg.Reply.Model)
	} else {
		gen = &reply.RuleGenerator{AnswersPerStage: cfg.Reply.AnswersPerStage}
		slog.Info("reply generator: deterministic rules (no api key configured)")
	}

	var sender engine.Sender
	if cfg.Provider.SendAPIURL != "" {
		sender = channels.NewHTTPSender(cfg.Provider.SendAPIURL, cfg.Provider.SendAPIToken, cfg.Provider.SendRatePerSec)
	} else {
		sender = channels.LogSender{}
	}

	eng := engine.New(stores, sched, gen, sender, engine.Options{
		OrgID:         cfg.Engine.OrgID,
		DebounceDelay: cfg.DebounceDelay(),
		LockTTL:       cfg.LockTTL(),
		HistoryLimit:  cfg.Engine.HistoryLimit,
	})

	handler := httpapi.NewHandler(eng, cfg.Gateway.Token, cfg.Gateway.RateLimitRPM)
	mux := http.NewServeMux()
	handler.RegisterRoutes(mux)

	srv := &http.Server{
		Addr:              cfg.ListenAddr(),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		slog.Info("leadpulse gateway starting",
			"version", Version,
			"addr", srv.Addr,
			"mode", mode,
			"org", cfg.Engine.OrgID,
			"debounce", cfg.DebounceDelay(),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	// Dedup rows outlive their TTL in managed mode; sweep them periodically.
	if dedup, ok := stores.Dedup.(*pg.PGDedupStore); ok {
		g.Go(func() error {
			ticker := time.NewTicker(5 * time.Minute)
			defer ticker.Stop()
			for {
				select {
				case <-gctx.Done():
					return nil
				case <-ticker.C:
					if n, err := dedup.Sweep(gctx); err != nil {
						slog.Warn("dedup sweep failed", "error", err)
					} else if n > 0 {
						slog.Debug("dedup sweep", "removed", n)
					}
				}
			}
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		slog.Info("graceful shutdown initiated")
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer shutdownCancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		slog.Error("gateway error", "error", err)
		os.Exit(1)
	}
}
