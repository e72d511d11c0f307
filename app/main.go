package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"

	"feedpipe/app/api"
	"feedpipe/app/blob"
	"feedpipe/app/cfg"
	"feedpipe/app/dispatch"
	"feedpipe/app/fetch"
	"feedpipe/app/poller"
	"feedpipe/app/queue"
	"feedpipe/app/registry"
	"feedpipe/app/store"
	"feedpipe/app/summarize"
)

const postEventBuffer = 256
const textEventBuffer = 256

func main() {
	appCfg, err := cfg.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	if appCfg == nil {
		// Help was shown, exit gracefully
		return
	}

	logLevel := slog.LevelInfo
	if appCfg.Debug {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	})))

	slog.Info("Starting feedpipe", "version", appCfg.Version)

	db, err := store.Open(appCfg.DataDir)
	if err != nil {
		slog.Error("Failed to open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	version, dirty, err := store.RunMigrations(db)
	if err != nil {
		slog.Error("Failed to run migrations", "error", err)
		os.Exit(1)
	}
	slog.Info("Database ready", "schema_version", version, "dirty", dirty)

	reg, err := registry.Load(appCfg.FeedsFile)
	if err != nil {
		slog.Error("Failed to load feed registry", "file", appCfg.FeedsFile, "error", err)
		os.Exit(1)
	}
	slog.Info("Feed registry loaded", "file", appCfg.FeedsFile, "feeds", len(reg.Feeds()))

	blobs, err := blob.NewStore(filepath.Join(appCfg.DataDir, "artifacts"))
	if err != nil {
		slog.Error("Failed to open blob store", "error", err)
		os.Exit(1)
	}

	postRepo := store.NewPostRepository(db, postEventBuffer)
	summaryRepo := store.NewSummaryRepository(db)

	fetchQueue := queue.New(db.DB,
		time.Duration(appCfg.QueueVisibility)*time.Second, appCfg.QueueMaxDeliveries)

	httpClient := &http.Client{}

	// Subscribe before any pipeline stage starts producing artifacts so
	// no text-creation notification is missed.
	textEvents := blobs.Subscribe(blob.ArtifactText, textEventBuffer)

	var modelClient summarize.ModelClient
	if !appCfg.SkipModel {
		modelClient = summarize.NewClient(appCfg.ModelURL, appCfg.ModelName,
			appCfg.ModelAPIKey, time.Duration(appCfg.ModelTimeout)*time.Second)
	}

	dispatcher := dispatch.New(postRepo.Events(), fetchQueue)
	fetcher := fetch.New(fetchQueue, blobs, httpClient, appCfg.UserAgent,
		appCfg.PageSizeLimit, time.Duration(appCfg.FetchTimeout)*time.Second,
		appCfg.FetchWorkers)
	summarizer := summarize.New(blobs, summaryRepo, modelClient,
		appCfg.SkipModel, appCfg.SummaryCharLimit, appCfg.PromptCharBudget)
	feedPoller := poller.New(reg, postRepo, httpClient, appCfg.UserAgent,
		appCfg.FeedConcurrency, appCfg.ItemConcurrency, appCfg.FeedSizeLimit,
		time.Duration(appCfg.FeedTimeout)*time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		dispatcher.Run(ctx)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		fetcher.Run(ctx)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		summarizer.Run(ctx, textEvents)
	}()

	reports := &api.ReportHolder{}

	runCycle := func() {
		reports.Set(feedPoller.Run(ctx))
	}

	slog.Info("Starting poll schedule", "interval_seconds", appCfg.PollInterval)
	schedule := cron.New()
	if _, err := schedule.AddFunc(fmt.Sprintf("@every %ds", appCfg.PollInterval), runCycle); err != nil {
		slog.Error("Failed to schedule poll cycle", "error", err)
		os.Exit(1)
	}
	schedule.Start()

	// First cycle runs immediately rather than waiting out the interval.
	go runCycle()

	apiHandler := api.NewHandler(postRepo, summaryRepo, fetchQueue, reports, len(reg.Feeds()))
	server := api.NewServer(apiHandler)

	httpServer := &http.Server{
		Addr:         ":" + appCfg.Port,
		Handler:      server,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	serverErrChan := make(chan error, 1)
	go func() {
		slog.Info("HTTP server listening", "port", appCfg.Port)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		slog.Info("Received signal", "signal", sig.String())
	case err := <-serverErrChan:
		slog.Error("Server error", "error", err)
	}

	slog.Info("Shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	}

	scheduleCtx := schedule.Stop()
	<-scheduleCtx.Done()

	cancel()
	postRepo.CloseEvents()
	blobs.Close()
	wg.Wait()

	slog.Info("Shutdown complete")
}
