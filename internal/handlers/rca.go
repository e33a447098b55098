package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"gorm.io/gorm"

	"github.com/alertkite/alertkite/internal/api"
	"github.com/alertkite/alertkite/internal/database"
	"github.com/alertkite/alertkite/internal/services"
)

// RCAHandler handles root-cause-analysis endpoints
type RCAHandler struct {
	rcaService *services.RCAService
}

// NewRCAHandler creates a new RCA handler
func NewRCAHandler(rcaService *services.RCAService) *RCAHandler {
	return &RCAHandler{rcaService: rcaService}
}

// SetupRoutes registers RCA routes on the mux
func (h *RCAHandler) SetupRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/rca/generate", h.handleGenerate)
	mux.HandleFunc("GET /api/rca", h.handleList)
	mux.HandleFunc("GET /api/rca/stats/summary", h.handleStatistics)
	mux.HandleFunc("GET /api/rca/stats/accuracy", h.handleAccuracyMetrics)
	mux.HandleFunc("GET /api/rca/stats/performance", h.handlePerformanceMetrics)
	mux.HandleFunc("GET /api/rca/{rcaId}", h.handleGet)
	mux.HandleFunc("PUT /api/rca/{rcaId}", h.handleUpdate)
	mux.HandleFunc("DELETE /api/rca/{rcaId}", h.handleDelete)
	mux.HandleFunc("PUT /api/rca/{rcaId}/status", h.handleUpdateStatus)
	mux.HandleFunc("POST /api/rca/{rcaId}/feedback", h.handleFeedback)
}

func (h *RCAHandler) handleGenerate(w http.ResponseWriter, r *http.Request) {
	var req api.GenerateRCARequest
	if err := api.DecodeJSON(r, &req); err != nil {
		api.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if fieldErrors := api.Validate(req); fieldErrors != nil {
		api.RespondValidationError(w, fieldErrors)
		return
	}

	useHistorical := true
	if req.UseHistoricalContext != nil {
		useHistorical = *req.UseHistoricalContext
	}

	result, err := h.rcaService.GenerateRCA(services.GenerateRCAInput{
		CorrelationID:        req.CorrelationID,
		Title:                req.Title,
		Priority:             req.Priority,
		AssignedTo:           req.AssignedTo,
		UseHistoricalContext: useHistorical,
	})
	if err != nil {
		if errors.Is(err, services.ErrNoAlertsForCorrelation) {
			api.RespondError(w, http.StatusNotFound, err.Error())
			return
		}
		api.RespondError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to start RCA generation: %v", err))
		return
	}

	api.RespondJSON(w, http.StatusOK, result)
}

func (h *RCAHandler) handleList(w http.ResponseWriter, r *http.Request) {
	pagination := api.ParsePagination(r)

	startDate, err := api.QueryTime(r, "start_date")
	if err != nil {
		api.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}
	endDate, err := api.QueryTime(r, "end_date")
	if err != nil {
		api.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	filter := services.RCAFilter{
		Status:        api.QueryCSV(r, "status"),
		Priority:      api.QueryCSV(r, "priority"),
		AssignedTo:    r.URL.Query().Get("assigned_to"),
		Team:          r.URL.Query().Get("team"),
		CorrelationID: r.URL.Query().Get("correlation_id"),
		StartDate:     startDate,
		EndDate:       endDate,
		Limit:         pagination.Limit,
		Offset:        pagination.Offset,
	}
	if v := r.URL.Query().Get("min_accuracy"); v != "" {
		minAccuracy, err := strconv.ParseFloat(v, 64)
		if err != nil {
			api.RespondError(w, http.StatusBadRequest, "invalid min_accuracy: must be a number")
			return
		}
		filter.MinAccuracy = &minAccuracy
	}

	rcas, err := h.rcaService.ListRCAs(filter)
	if err != nil {
		api.RespondError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to get RCAs: %v", err))
		return
	}

	api.RespondJSON(w, http.StatusOK, rcas)
}

func (h *RCAHandler) handleGet(w http.ResponseWriter, r *http.Request) {
	rcaID := r.PathValue("rcaId")

	rca, err := h.rcaService.GetRCA(rcaID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			api.RespondError(w, http.StatusNotFound, fmt.Sprintf("RCA not found: %s", rcaID))
			return
		}
		api.RespondError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to get RCA: %v", err))
		return
	}

	api.RespondJSON(w, http.StatusOK, rca)
}

func (h *RCAHandler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	rcaID := r.PathValue("rcaId")

	var req api.UpdateRCARequest
	if err := api.DecodeJSON(r, &req); err != nil {
		api.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if fieldErrors := api.Validate(req); fieldErrors != nil {
		api.RespondValidationError(w, fieldErrors)
		return
	}

	input := services.UpdateRCAInput{
		Priority:       req.Priority,
		Title:          req.Title,
		Summary:        req.Summary,
		RootCause:      req.RootCause,
		Solution:       req.Solution,
		AssignedTo:     req.AssignedTo,
		Team:           req.Team,
		BusinessImpact: req.BusinessImpact,
	}
	if req.Status != nil {
		status := database.RCAStatus(*req.Status)
		input.Status = &status
	}

	rca, err := h.rcaService.UpdateRCA(rcaID, input)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			api.RespondError(w, http.StatusNotFound, fmt.Sprintf("RCA not found: %s", rcaID))
			return
		}
		api.RespondError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to update RCA: %v", err))
		return
	}

	api.RespondJSON(w, http.StatusOK, rca)
}

func (h *RCAHandler) handleUpdateStatus(w http.ResponseWriter, r *http.Request) {
	rcaID := r.PathValue("rcaId")

	var req struct {
		Status     string  `json:"status" validate:"required,oneof=open in_progress closed"`
		AssignedTo *string `json:"assigned_to"`
	}
	if err := api.DecodeJSON(r, &req); err != nil {
		api.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if fieldErrors := api.Validate(req); fieldErrors != nil {
		api.RespondValidationError(w, fieldErrors)
		return
	}

	status := database.RCAStatus(req.Status)
	input := services.UpdateRCAInput{
		Status:     &status,
		AssignedTo: req.AssignedTo,
	}

	if _, err := h.rcaService.UpdateRCA(rcaID, input); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			api.RespondError(w, http.StatusNotFound, fmt.Sprintf("RCA not found: %s", rcaID))
			return
		}
		api.RespondError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to update RCA status: %v", err))
		return
	}

	api.RespondJSON(w, http.StatusOK, map[string]string{
		"message": fmt.Sprintf("RCA status updated to %s", req.Status),
		"rca_id":  rcaID,
	})
}

func (h *RCAHandler) handleDelete(w http.ResponseWriter, r *http.Request) {
	rcaID := r.PathValue("rcaId")

	if err := h.rcaService.DeleteRCA(rcaID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			api.RespondError(w, http.StatusNotFound, fmt.Sprintf("RCA not found: %s", rcaID))
			return
		}
		api.RespondError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to delete RCA: %v", err))
		return
	}

	api.RespondNoContent(w)
}

func (h *RCAHandler) handleFeedback(w http.ResponseWriter, r *http.Request) {
	rcaID := r.PathValue("rcaId")

	var req api.FeedbackRequest
	if err := api.DecodeJSON(r, &req); err != nil {
		api.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if fieldErrors := api.Validate(req); fieldErrors != nil {
		api.RespondValidationError(w, fieldErrors)
		return
	}

	result, err := h.rcaService.SubmitFeedback(services.FeedbackInput{
		RCAID:          rcaID,
		IsAccurate:     *req.IsAccurate,
		AccuracyRating: req.AccuracyRating,
		FeedbackText:   req.FeedbackText,
		UserID:         req.UserID,
		UserRole:       req.UserRole,
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			api.RespondError(w, http.StatusNotFound, fmt.Sprintf("RCA not found: %s", rcaID))
			return
		}
		api.RespondError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to submit feedback: %v", err))
		return
	}

	api.RespondJSON(w, http.StatusOK, result)
}

func (h *RCAHandler) handleStatistics(w http.ResponseWriter, r *http.Request) {
	stats, err := h.rcaService.GetRCAStatistics()
	if err != nil {
		api.RespondError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to get RCA statistics: %v", err))
		return
	}

	api.RespondJSON(w, http.StatusOK, stats)
}

func (h *RCAHandler) handleAccuracyMetrics(w http.ResponseWriter, r *http.Request) {
	days := 30
	if v := r.URL.Query().Get("days"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 365 {
			api.RespondError(w, http.StatusBadRequest, "invalid days: must be between 1 and 365")
			return
		}
		days = n
	}

	metrics, err := h.rcaService.GetAccuracyMetrics(days)
	if err != nil {
		api.RespondError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to get accuracy metrics: %v", err))
		return
	}

	api.RespondJSON(w, http.StatusOK, metrics)
}

func (h *RCAHandler) handlePerformanceMetrics(w http.ResponseWriter, r *http.Request) {
	metrics, err := h.rcaService.GetPerformanceMetrics(r.Context())
	if err != nil {
		api.RespondError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to get performance metrics: %v", err))
		return
	}

	api.RespondJSON(w, http.StatusOK, metrics)
}
