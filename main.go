package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "net/http/pprof"

	"github.com/joho/godotenv"

	"github.com/rxguard/prescription-api/alternatives"
	"github.com/rxguard/prescription-api/analyzer"
	"github.com/rxguard/prescription-api/config"
	"github.com/rxguard/prescription-api/data"
	"github.com/rxguard/prescription-api/dosing"
	"github.com/rxguard/prescription-api/extractor"
	"github.com/rxguard/prescription-api/handlers"
	"github.com/rxguard/prescription-api/health"
	"github.com/rxguard/prescription-api/interactions"
	"github.com/rxguard/prescription-api/logging"
	"github.com/rxguard/prescription-api/refdata"
	"github.com/rxguard/prescription-api/rxnorm"
	"github.com/rxguard/prescription-api/scheduler"
	"github.com/rxguard/prescription-api/server"
	"github.com/rxguard/prescription-api/severity"
	"github.com/rxguard/prescription-api/validation"
)

func main() {
	// Environment file is optional, real environment wins
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		logging.Error("Invalid configuration", "error", err)
		os.Exit(1)
	}

	logging.InitLogger("logs", cfg.LogRetentionWeeks, cfg.MaxLogFileSize)

	// Shared building blocks
	dataContainer := data.NewDataContainer()
	dataContainer.SetServerStartTime(time.Now())
	classifier := severity.NewClassifier()
	loader := refdata.NewLoader(cfg.DataDir, classifier)
	validator := validation.NewInputValidator()

	// External drug code directory
	resolver, err := rxnorm.NewClient(cfg.RxNormBaseURL, time.Duration(cfg.RxNormTimeoutSecs)*time.Second, cfg.RxNormCacheEntries)
	if err != nil {
		logging.Error("Failed to create code resolver", "error", err)
		os.Exit(1)
	}

	// Analysis pipeline
	suggester := alternatives.NewSuggester(resolver, dataContainer)
	verifier := dosing.NewVerifier(dataContainer, suggester)
	matcher := interactions.NewMatcher(dataContainer)
	pipeline := analyzer.NewAnalyzer(extractor.NewExtractor(), resolver, verifier, matcher)

	// Initial load plus periodic reloads
	sched := scheduler.NewScheduler(dataContainer, loader, validator)
	if err := sched.Start(); err != nil {
		logging.Error("Failed to start scheduler", "error", err)
		os.Exit(1)
	}
	defer sched.Stop()

	handler := handlers.NewHTTPHandler(
		dataContainer,
		validator,
		pipeline,
		classifier,
		suggester,
		health.NewHealthChecker(dataContainer),
	)

	srv := server.NewServer(cfg, handler)

	// Channel to listen for interrupt signals
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	// Start the server in a goroutine
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.Error("Server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	// Block until a signal is received
	<-quit

	// Create a context with timeout for shutdown
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logging.Error("Shutdown failed", "error", err)
		os.Exit(1)
	}
}
