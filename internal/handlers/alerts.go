package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"gorm.io/gorm"

	"github.com/alertkite/alertkite/internal/api"
	"github.com/alertkite/alertkite/internal/correlation"
	"github.com/alertkite/alertkite/internal/database"
	"github.com/alertkite/alertkite/internal/services"
)

// AlertHandler handles alert and correlation endpoints
type AlertHandler struct {
	alertService *services.AlertService
}

// NewAlertHandler creates a new alert handler
func NewAlertHandler(alertService *services.AlertService) *AlertHandler {
	return &AlertHandler{alertService: alertService}
}

// SetupRoutes registers alert routes on the mux
func (h *AlertHandler) SetupRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/alerts", h.handleCreateAlert)
	mux.HandleFunc("GET /api/alerts", h.handleListAlerts)
	mux.HandleFunc("POST /api/alerts/bulk", h.handleBulkCreate)
	mux.HandleFunc("GET /api/alerts/uncorrelated", h.handleUncorrelated)
	mux.HandleFunc("GET /api/alerts/stats/summary", h.handleStatistics)
	mux.HandleFunc("POST /api/alerts/correlate", h.handleForceCorrelate)
	mux.HandleFunc("GET /api/alerts/correlation/{correlationId}", h.handleAlertsByCorrelation)
	mux.HandleFunc("GET /api/alerts/{alertId}", h.handleGetAlert)
	mux.HandleFunc("PUT /api/alerts/{alertId}", h.handleUpdateAlert)
	mux.HandleFunc("DELETE /api/alerts/{alertId}", h.handleDeleteAlert)
	mux.HandleFunc("GET /api/correlations/groups", h.handleCorrelationGroups)
}

func toCreateInput(req api.CreateAlertRequest) services.CreateAlertInput {
	return services.CreateAlertInput{
		AlertID:        req.AlertID,
		Source:         req.Source,
		Severity:       database.AlertSeverity(req.Severity),
		AlertType:      database.AlertType(req.AlertType),
		Title:          req.Title,
		Description:    req.Description,
		Message:        req.Message,
		RawData:        req.RawData,
		AlertTimestamp: req.AlertTimestamp,
	}
}

func (h *AlertHandler) handleCreateAlert(w http.ResponseWriter, r *http.Request) {
	var req api.CreateAlertRequest
	if err := api.DecodeJSON(r, &req); err != nil {
		api.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if fieldErrors := api.Validate(req); fieldErrors != nil {
		api.RespondValidationError(w, fieldErrors)
		return
	}

	alert, _, err := h.alertService.CreateAlert(toCreateInput(req))
	if err != nil {
		api.RespondError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to create alert: %v", err))
		return
	}

	api.RespondJSON(w, http.StatusCreated, alert)
}

func (h *AlertHandler) handleBulkCreate(w http.ResponseWriter, r *http.Request) {
	var req api.BulkCreateAlertsRequest
	if err := api.DecodeJSON(r, &req); err != nil {
		api.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if fieldErrors := api.Validate(req); fieldErrors != nil {
		api.RespondValidationError(w, fieldErrors)
		return
	}

	inputs := make([]services.CreateAlertInput, 0, len(req.Alerts))
	for _, a := range req.Alerts {
		inputs = append(inputs, toCreateInput(a))
	}

	alerts, err := h.alertService.BulkCreateAlerts(inputs)
	if err != nil {
		api.RespondError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to create alerts: %v", err))
		return
	}

	api.RespondJSON(w, http.StatusCreated, alerts)
}

func (h *AlertHandler) handleListAlerts(w http.ResponseWriter, r *http.Request) {
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

	filter := services.AlertFilter{
		Status:        api.QueryCSV(r, "status"),
		Severity:      api.QueryCSV(r, "severity"),
		Source:        api.QueryCSV(r, "source"),
		AlertType:     api.QueryCSV(r, "alert_type"),
		CorrelationID: r.URL.Query().Get("correlation_id"),
		StartDate:     startDate,
		EndDate:       endDate,
		Limit:         pagination.Limit,
		Offset:        pagination.Offset,
	}

	alerts, err := h.alertService.ListAlerts(filter)
	if err != nil {
		api.RespondError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to get alerts: %v", err))
		return
	}

	api.RespondJSON(w, http.StatusOK, alerts)
}

func (h *AlertHandler) handleGetAlert(w http.ResponseWriter, r *http.Request) {
	alertID := r.PathValue("alertId")

	alert, err := h.alertService.GetAlert(alertID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			api.RespondError(w, http.StatusNotFound, fmt.Sprintf("Alert not found: %s", alertID))
			return
		}
		api.RespondError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to get alert: %v", err))
		return
	}

	api.RespondJSON(w, http.StatusOK, alert)
}

func (h *AlertHandler) handleUpdateAlert(w http.ResponseWriter, r *http.Request) {
	alertID := r.PathValue("alertId")

	var req api.UpdateAlertRequest
	if err := api.DecodeJSON(r, &req); err != nil {
		api.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if fieldErrors := api.Validate(req); fieldErrors != nil {
		api.RespondValidationError(w, fieldErrors)
		return
	}

	input := services.UpdateAlertInput{
		Title:       req.Title,
		Description: req.Description,
		Message:     req.Message,
	}
	if req.Status != nil {
		status := database.AlertStatus(*req.Status)
		input.Status = &status
	}
	if req.Severity != nil {
		severity := database.AlertSeverity(*req.Severity)
		input.Severity = &severity
	}

	alert, err := h.alertService.UpdateAlert(alertID, input)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			api.RespondError(w, http.StatusNotFound, fmt.Sprintf("Alert not found: %s", alertID))
			return
		}
		api.RespondError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to update alert: %v", err))
		return
	}

	api.RespondJSON(w, http.StatusOK, alert)
}

func (h *AlertHandler) handleDeleteAlert(w http.ResponseWriter, r *http.Request) {
	alertID := r.PathValue("alertId")

	if err := h.alertService.DeleteAlert(alertID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			api.RespondError(w, http.StatusNotFound, fmt.Sprintf("Alert not found: %s", alertID))
			return
		}
		api.RespondError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to delete alert: %v", err))
		return
	}

	api.RespondNoContent(w)
}

func (h *AlertHandler) handleAlertsByCorrelation(w http.ResponseWriter, r *http.Request) {
	correlationID := r.PathValue("correlationId")

	alerts, err := h.alertService.GetAlertsByCorrelation(correlationID)
	if err != nil {
		api.RespondError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to get alerts: %v", err))
		return
	}
	if len(alerts) == 0 {
		api.RespondError(w, http.StatusNotFound, fmt.Sprintf("No alerts found for correlation ID: %s", correlationID))
		return
	}

	api.RespondJSON(w, http.StatusOK, alerts)
}

func (h *AlertHandler) handleForceCorrelate(w http.ResponseWriter, r *http.Request) {
	var req api.CorrelateRequest
	if err := api.DecodeJSON(r, &req); err != nil {
		api.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if fieldErrors := api.Validate(req); fieldErrors != nil {
		api.RespondValidationError(w, fieldErrors)
		return
	}

	result, err := h.alertService.ForceCorrelate(req.AlertIDs)
	if err != nil {
		if errors.Is(err, correlation.ErrNotEnoughAlerts) {
			api.RespondError(w, http.StatusBadRequest, err.Error())
			return
		}
		api.RespondError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to correlate alerts: %v", err))
		return
	}

	api.RespondJSON(w, http.StatusOK, api.CorrelateResponse{
		CorrelationID:     result.CorrelationID,
		AlertCount:        result.AlertCount,
		ConfidenceScore:   result.ConfidenceScore,
		CorrelationMethod: string(database.CorrelationMethodManual),
		CreatedAt:         time.Now().UTC(),
	})
}

func (h *AlertHandler) handleCorrelationGroups(w http.ResponseWriter, r *http.Request) {
	pagination := api.ParsePagination(r)

	groups, err := h.alertService.GetCorrelationGroups(pagination.Limit)
	if err != nil {
		api.RespondError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to get correlation groups: %v", err))
		return
	}

	api.RespondJSON(w, http.StatusOK, map[string]interface{}{
		"groups": groups,
		"total":  len(groups),
	})
}

func (h *AlertHandler) handleUncorrelated(w http.ResponseWriter, r *http.Request) {
	pagination := api.ParsePagination(r)

	alerts, err := h.alertService.GetUncorrelatedAlerts(pagination.Limit)
	if err != nil {
		api.RespondError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to get uncorrelated alerts: %v", err))
		return
	}

	api.RespondJSON(w, http.StatusOK, alerts)
}

func (h *AlertHandler) handleStatistics(w http.ResponseWriter, r *http.Request) {
	stats, err := h.alertService.GetAlertStatistics()
	if err != nil {
		api.RespondError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to get alert statistics: %v", err))
		return
	}

	api.RespondJSON(w, http.StatusOK, stats)
}
