package main

import (
	"pagesmith-deployment/internal/attachments"
	"pagesmith-deployment/internal/config"
	"pagesmith-deployment/internal/database"
	"pagesmith-deployment/internal/generator"
	"pagesmith-deployment/internal/github"
	"pagesmith-deployment/internal/llm"
	"pagesmith-deployment/internal/logger"
	"pagesmith-deployment/internal/newrelic"
	"pagesmith-deployment/internal/notifier"
	"pagesmith-deployment/internal/orchestrator"
	"pagesmith-deployment/internal/repomanager"
	"pagesmith-deployment/internal/server"
)

func main() {
	// Initialize global logger
	appLogger := logger.Initialize()
	appLogger.Info("Pagesmith Deployment Service starting")

	// Load configuration
	cfg := config.Load()

	// Initialize New Relic monitoring
	nrApp, err := newrelic.Initialize(cfg)
	if err != nil {
		appLogger.WithError(err).Warn("Failed to initialize New Relic, continuing without monitoring")
	}

	// Initialize round ledger
	db := database.InitDB(cfg.DatabasePath)
	defer db.Close()

	// Provider clients
	primary := llm.NewClient("primary", cfg.PrimaryLLM.BaseURL, cfg.PrimaryLLM.APIKey, cfg.PrimaryLLM.Model, cfg.GenTimeout)
	var fallback llm.Provider
	if cfg.HasFallback() {
		fallback = llm.NewClient("fallback", cfg.FallbackLLM.BaseURL, cfg.FallbackLLM.APIKey, cfg.FallbackLLM.Model, cfg.GenTimeout)
	}
	hosting := github.NewClient(cfg.GitHubAPIURL, cfg.GitHubToken, cfg.GitHubOwner, cfg.RepoTimeout)

	// Pipeline components
	pipeline := orchestrator.New(
		attachments.NewResolver(),
		generator.New(primary, fallback, cfg.GenAttempts, cfg.GenBackoffBase, cfg.GenBackoffCap),
		repomanager.NewManager(hosting, cfg.RepoAttempts, cfg.RepoBackoffBase, cfg.RepoBackoffCap, cfg.HostingPollInterval, cfg.HostingPollBudget),
		notifier.New(cfg.NotifyAttempts, cfg.NotifyBackoffBase, cfg.NotifyBackoffCap, cfg.NotifyTimeout),
	)

	// Create and start server
	srv := server.NewServer(cfg, db, pipeline, nrApp)
	if err := srv.Start(); err != nil {
		appLogger.Fatal("Server failed to start:", err)
	}
}
