package api

import (
	"time"

	"github.com/alertkite/alertkite/internal/database"
)

// CreateAlertRequest is the body of POST /api/alerts
type CreateAlertRequest struct {
	AlertID        string         `json:"alert_id" validate:"omitempty,max=64"`
	Source         string         `json:"source" validate:"required,max=128"`
	Severity       string         `json:"severity" validate:"required,oneof=low medium high critical"`
	Title          string         `json:"title" validate:"required,max=255"`
	Description    string         `json:"description"`
	Message        string         `json:"message" validate:"required"`
	AlertType      string         `json:"alert_type" validate:"required,oneof=logs traces metrics events"`
	RawData        database.JSONB `json:"raw_data"`
	AlertTimestamp *time.Time     `json:"alert_timestamp"`
}

// BulkCreateAlertsRequest is the body of POST /api/alerts/bulk
type BulkCreateAlertsRequest struct {
	Alerts []CreateAlertRequest `json:"alerts" validate:"required,min=1,max=100,dive"`
}

// UpdateAlertRequest is the body of PUT /api/alerts/{alert_id}
type UpdateAlertRequest struct {
	Status      *string `json:"status" validate:"omitempty,oneof=open acknowledged resolved"`
	Severity    *string `json:"severity" validate:"omitempty,oneof=low medium high critical"`
	Title       *string `json:"title" validate:"omitempty,max=255"`
	Description *string `json:"description"`
	Message     *string `json:"message"`
}

// CorrelateRequest is the body of POST /api/alerts/correlate
type CorrelateRequest struct {
	AlertIDs []string `json:"alert_ids" validate:"required,min=2,dive,required"`
}

// CorrelateResponse reports the manually created correlation group
type CorrelateResponse struct {
	CorrelationID     string    `json:"correlation_id"`
	AlertCount        int       `json:"alert_count"`
	ConfidenceScore   float64   `json:"confidence_score"`
	CorrelationMethod string    `json:"correlation_method"`
	CreatedAt         time.Time `json:"created_at"`
}

// CreateAlertResponse wraps a created alert with its correlation outcome
type CreateAlertResponse struct {
	Alert           *database.Alert `json:"alert"`
	CorrelationID   *string         `json:"correlation_id"`
	CorrelationInfo interface{}     `json:"correlation_info,omitempty"`
}

// GenerateRCARequest is the body of POST /api/rca/generate
type GenerateRCARequest struct {
	CorrelationID        string `json:"correlation_id" validate:"required"`
	Title                string `json:"title" validate:"omitempty,max=255"`
	Priority             string `json:"priority" validate:"omitempty,oneof=low medium high critical"`
	AssignedTo           string `json:"assigned_to" validate:"omitempty,max=128"`
	UseHistoricalContext *bool  `json:"use_historical_context"`
}

// UpdateRCARequest is the body of PUT /api/rca/{rca_id}
type UpdateRCARequest struct {
	Status         *string `json:"status" validate:"omitempty,oneof=open in_progress closed"`
	Priority       *string `json:"priority" validate:"omitempty,oneof=low medium high critical"`
	Title          *string `json:"title" validate:"omitempty,max=255"`
	Summary        *string `json:"summary"`
	RootCause      *string `json:"root_cause"`
	Solution       *string `json:"solution"`
	AssignedTo     *string `json:"assigned_to" validate:"omitempty,max=128"`
	Team           *string `json:"team" validate:"omitempty,max=128"`
	BusinessImpact *string `json:"business_impact" validate:"omitempty,oneof=low medium high unknown"`
}

// FeedbackRequest is the body of POST /api/rca/{rca_id}/feedback
type FeedbackRequest struct {
	IsAccurate     *bool   `json:"is_accurate" validate:"required"`
	AccuracyRating float64 `json:"accuracy_rating" validate:"gte=0,lte=1"`
	FeedbackText   string  `json:"feedback_text"`
	UserID         string  `json:"user_id" validate:"omitempty,max=128"`
	UserRole       string  `json:"user_role" validate:"omitempty,max=64"`
}
