package handlers

import (
	"fmt"
	"net/http"
	"time"

	"gorm.io/gorm"

	"github.com/alertkite/alertkite/internal/api"
	"github.com/alertkite/alertkite/internal/services"
)

// Version is the reported application version
const Version = "1.0.0"

// HealthHandler handles liveness and component health endpoints
type HealthHandler struct {
	db         *gorm.DB
	rcaService *services.RCAService
	llmModel   string
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(db *gorm.DB, rcaService *services.RCAService, llmModel string) *HealthHandler {
	return &HealthHandler{
		db:         db,
		rcaService: rcaService,
		llmModel:   llmModel,
	}
}

// SetupRoutes registers health routes on the mux
func (h *HealthHandler) SetupRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", h.handleHealth)
	mux.HandleFunc("GET /health/detailed", h.handleDetailedHealth)
	mux.HandleFunc("GET /version", h.handleVersion)
}

type componentHealth struct {
	Status  string `json:"status"`
	Details string `json:"details"`
}

func (h *HealthHandler) handleHealth(w http.ResponseWriter, r *http.Request) {
	api.RespondJSON(w, http.StatusOK, map[string]string{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"service":   "alertkite",
	})
}

func (h *HealthHandler) handleDetailedHealth(w http.ResponseWriter, r *http.Request) {
	components := map[string]componentHealth{}
	healthy := true

	if err := h.checkDatabase(); err != nil {
		components["database"] = componentHealth{Status: "unhealthy", Details: fmt.Sprintf("Database error: %v", err)}
		healthy = false
	} else {
		components["database"] = componentHealth{Status: "healthy", Details: "Database connection"}
	}

	if h.rcaService.TestLLMConnection(r.Context()) {
		components["llm"] = componentHealth{Status: "healthy", Details: fmt.Sprintf("Ollama connection with %s", h.llmModel)}
	} else {
		components["llm"] = componentHealth{Status: "unhealthy", Details: "Ollama connection failed or model not available"}
		healthy = false
	}

	if stats := h.rcaService.VectorStoreStats(r.Context()); stats != nil && stats.CollectionName != "unknown" {
		components["vector_store"] = componentHealth{
			Status:  "healthy",
			Details: fmt.Sprintf("Vector store with %d documents", stats.TotalDocuments),
		}
	} else {
		components["vector_store"] = componentHealth{Status: "unhealthy", Details: "Vector store unavailable"}
		healthy = false
	}

	status := "healthy"
	code := http.StatusOK
	if !healthy {
		status = "degraded"
		code = http.StatusServiceUnavailable
	}

	api.RespondJSON(w, code, map[string]interface{}{
		"status":     status,
		"timestamp":  time.Now().UTC().Format(time.RFC3339),
		"components": components,
	})
}

func (h *HealthHandler) handleVersion(w http.ResponseWriter, r *http.Request) {
	api.RespondJSON(w, http.StatusOK, map[string]string{
		"application": "alertkite",
		"version":     Version,
		"api_version": "v1",
	})
}

func (h *HealthHandler) checkDatabase() error {
	sqlDB, err := h.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Ping()
}
