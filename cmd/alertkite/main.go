package main

import (
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"gorm.io/gorm/logger"

	"github.com/alertkite/alertkite/internal/config"
	"github.com/alertkite/alertkite/internal/database"
	"github.com/alertkite/alertkite/internal/handlers"
	"github.com/alertkite/alertkite/internal/llm"
	"github.com/alertkite/alertkite/internal/metrics"
	"github.com/alertkite/alertkite/internal/middleware"
	"github.com/alertkite/alertkite/internal/notify"
	"github.com/alertkite/alertkite/internal/services"
	"github.com/alertkite/alertkite/internal/vectorstore"
)

func main() {
	// Load .env file if it exists (ignore error if file doesn't exist)
	if err := godotenv.Load(); err != nil {
		log.Printf("No .env file found or error loading it (this is fine if using environment variables): %v", err)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	log.Printf("Starting alertkite...")

	if err := database.Connect(cfg.DatabaseURL, logger.Warn); err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	log.Printf("Database connection established")

	if err := database.AutoMigrate(); err != nil {
		log.Fatalf("Failed to run database migrations: %v", err)
	}

	registry := prometheus.NewRegistry()
	if err := metrics.Register(registry); err != nil {
		log.Fatalf("Failed to register metrics: %v", err)
	}

	// Optional out-of-band services. A nil Slack notifier disables
	// notifications entirely.
	var notifier notify.Notifier
	if slackNotifier := notify.NewSlackNotifier(cfg.SlackBotToken, cfg.SlackAlertsChannel); slackNotifier != nil {
		notifier = slackNotifier
		log.Printf("Slack notifications enabled for channel %s", cfg.SlackAlertsChannel)
	}

	llmClient := llm.NewClient(cfg.OllamaHost, cfg.OllamaModel, cfg.RCAGenerationTimeout)
	vectors := vectorstore.NewClient(cfg.VectorStoreURL)

	db := database.GetDB()
	alertService := services.NewAlertService(db, cfg.CorrelationThreshold, cfg.CorrelationTimeWindow, notifier)
	log.Printf("Alert service initialized (threshold=%.2f window=%s)", cfg.CorrelationThreshold, cfg.CorrelationTimeWindow)

	rcaService := services.NewRCAService(db, llmClient, vectors, notifier, cfg.MaxHistoricalContext, cfg.RCAGenerationTimeout)
	log.Printf("RCA service initialized (model=%s)", cfg.OllamaModel)

	mux := http.NewServeMux()
	handlers.SetupRoutes(mux,
		handlers.NewAlertHandler(alertService),
		handlers.NewRCAHandler(rcaService),
		handlers.NewHealthHandler(db, rcaService, cfg.OllamaModel),
		registry,
	)

	handler := middleware.RequestID(middleware.Logging(mux))
	handler = middleware.CORS(middleware.CORSConfig{AllowedOrigins: []string{"*"}}, handler)

	httpServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler: handler,
	}

	go func() {
		log.Printf("Starting HTTP server on port %d", cfg.HTTPPort)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("HTTP server error: %v", err)
		}
	}()

	log.Printf("Alert ingestion endpoint: http://localhost:%d/api/alerts", cfg.HTTPPort)
	log.Printf("Health check endpoint: http://localhost:%d/health", cfg.HTTPPort)
	log.Printf("Metrics endpoint: http://localhost:%d/metrics", cfg.HTTPPort)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	log.Println("Received shutdown signal, cleaning up...")
	if err := httpServer.Close(); err != nil {
		log.Printf("Error shutting down HTTP server: %v", err)
	}
	if err := database.Close(); err != nil {
		log.Printf("Error closing database: %v", err)
	}
	log.Println("Shutdown complete")
}
