// Command sptnr is the thin CLI entry point of spec.md §6 ("not part of
// core"): flag parsing, perpetual-mode scheduling, and signal-driven
// cancellation around the pipeline package. Grounded on the teacher's
// main.go wiring order (config -> logger -> stores -> router -> serve),
// trimmed to this system's four collaborators (store, rate limiter,
// external clients, library) instead of the teacher's Postgres/Redis/plugin
// stack.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"sptnr-core/api"
	"sptnr-core/config"
	"sptnr-core/externalclients/metadataa"
	"sptnr-core/externalclients/metadatab"
	"sptnr-core/externalclients/popularity"
	"sptnr-core/externalclients/scrobbles"
	"sptnr-core/library"
	"sptnr-core/library/fake"
	"sptnr-core/pipeline"
	"sptnr-core/playlist"
	"sptnr-core/ratelimiter"
	"sptnr-core/shared/logger"
	"sptnr-core/store"
)

const (
	exitOK           = 0
	exitConfigError  = 1
	exitConnectivity = 2
)

func main() {
	os.Exit(run())
}

func run() int {
	var (
		artist    = flag.String("artist", "", "only scan this artist")
		batchrate = flag.Bool("batchrate", false, "override features.batchrate")
		dryRun    = flag.Bool("dry-run", false, "compute ratings without pushing them to the library")
		force     = flag.Bool("force", false, "ignore the album-skip-days cache and rescan everything")
		perpetual = flag.Bool("perpetual", false, "loop forever, rescanning on an interval, and serve the status API")
		verbose   = flag.Bool("verbose", false, "enable debug-level logging")
	)
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "configuration error:", err)
		return exitConfigError
	}
	if *batchrate {
		cfg.Features.Batchrate = true
	}
	if *force {
		cfg.Features.Force = true
	}
	if *perpetual {
		cfg.Features.Perpetual = true
	}
	if *verbose {
		cfg.Features.Verbose = true
		cfg.LogLevel = "debug"
	}

	log, err := logger.Init(cfg.LogPath, cfg.LogLevel)
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to initialize logger:", err)
		return exitConfigError
	}
	log.Unified.Info("starting sptnr-core", "perpetual", cfg.Features.Perpetual, "dry_run", *dryRun)

	st, err := store.Open(cfg.DBPath)
	if err != nil {
		log.Unified.Error("failed to open store", "error", err)
		return exitConfigError
	}
	defer st.Close()

	statePath := cfg.DBPath + ".ratelimiter.json"
	limiter := ratelimiter.New(ratelimiter.Quotas{
		PopularityWindowLimit: cfg.Quotas.PopularityWindowLimit,
		PopularityDailyLimit:  cfg.Quotas.PopularityDailyLimit,
		ScrobblesMinSpacingMs: cfg.Quotas.ScrobblesMinSpacingMs,
		ScrobblesDailyLimit:   cfg.Quotas.ScrobblesDailyLimit,
	}, statePath)
	defer limiter.Flush()

	popClient := popularity.New(cfg.API.Popularity.ClientID, cfg.API.Popularity.ClientSecret)
	scrobClient := scrobbles.New(cfg.API.Scrobbles.APIKey)
	metaAClient := metadataa.New(cfg.API.MetadataA.UserAgent)
	metaBClient := metadatab.New(cfg.API.MetadataB.Token)

	// The Subsonic adapter is an explicit Non-goal (spec.md §1): library.Library
	// is the extension point. Production deployments supply a real
	// implementation; absent one, sptnr-core runs against an empty in-memory
	// library so the rest of the pipeline remains exercisable end to end.
	lib := resolveLibrary(cfg, log)

	pipeline.EmitPlaylist = playlist.New(cfg.PlaylistDir).Generate

	svc := &pipeline.Services{
		Config:     cfg,
		Store:      st,
		Limiter:    limiter,
		Library:    lib,
		Popularity: popClient,
		Scrobbles:  scrobClient,
		MetadataA:  metaAClient,
		MetadataB:  metaBClient,
		Logger:     log,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Features.Perpetual {
		go serveStatusAPI(ctx, svc, log)
		return runPerpetual(ctx, svc, *artist, *dryRun, log)
	}

	filters := pipeline.Filters{Artist: *artist, Force: cfg.Features.Force, DryRun: *dryRun}
	if err := pipeline.Run(ctx, svc, filters); err != nil {
		log.Unified.Error("scan run failed", "error", err)
		return exitConnectivity
	}
	return exitOK
}

func resolveLibrary(cfg *config.Config, log *logger.Tiers) library.Library {
	if cfg.Library.BaseURL == "" {
		log.Unified.Warn("no library.base_url configured; running against an empty in-memory library")
		return fake.New()
	}
	log.Unified.Warn("a Subsonic adapter for library.base_url is not implemented by this package (out of scope per spec); running against an empty in-memory library", "base_url", cfg.Library.BaseURL)
	return fake.New()
}

func runPerpetual(ctx context.Context, svc *pipeline.Services, artist string, dryRun bool, log *logger.Tiers) int {
	const interval = time.Hour
	filters := pipeline.Filters{Artist: artist, Force: svc.Config.Features.Force, DryRun: dryRun}

	for {
		if err := pipeline.Run(ctx, svc, filters); err != nil {
			log.Unified.Error("scan run failed", "error", err)
		}
		select {
		case <-ctx.Done():
			log.Unified.Info("shutting down")
			return exitOK
		case <-time.After(interval):
		}
	}
}

func serveStatusAPI(ctx context.Context, svc *pipeline.Services, log *logger.Tiers) {
	router := api.NewRouter(&api.Services{
		Store:      svc.Store,
		Limiter:    svc.Limiter,
		Popularity: svc.Popularity,
		Scrobbles:  svc.Scrobbles,
		MetadataA:  svc.MetadataA,
		MetadataB:  svc.MetadataB,
	})

	srv := &http.Server{Addr: ":8080", Handler: router}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	log.Unified.Info("status API listening", "addr", srv.Addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Unified.Error("status API server failed", "error", err)
	}
}
