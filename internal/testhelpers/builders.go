package testhelpers

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/alertkite/alertkite/internal/database"
)

// AlertBuilder builds Alert instances for testing
type AlertBuilder struct {
	alert database.Alert
}

// NewAlertBuilder creates an alert builder with sensible defaults
func NewAlertBuilder() *AlertBuilder {
	now := time.Now().UTC()
	return &AlertBuilder{
		alert: database.Alert{
			AlertID:   uuid.New().String(),
			Source:    "prometheus",
			Severity:  database.AlertSeverityHigh,
			Status:    database.AlertStatusOpen,
			Title:     "High CPU usage on web-01",
			Message:   "CPU usage exceeded 90 percent for 5 minutes",
			AlertType: database.AlertTypeMetrics,
			RawData: database.JSONB{
				"metric_name": "cpu_usage",
				"threshold":   "0.9",
				"host":        "web-01",
				"environment": "production",
			},
			AlertTimestamp: &now,
		},
	}
}

// WithAlertID sets the external alert id
func (b *AlertBuilder) WithAlertID(id string) *AlertBuilder {
	b.alert.AlertID = id
	return b
}

// WithSource sets the monitoring source
func (b *AlertBuilder) WithSource(source string) *AlertBuilder {
	b.alert.Source = source
	return b
}

// WithSeverity sets the severity
func (b *AlertBuilder) WithSeverity(severity database.AlertSeverity) *AlertBuilder {
	b.alert.Severity = severity
	return b
}

// WithStatus sets the lifecycle status
func (b *AlertBuilder) WithStatus(status database.AlertStatus) *AlertBuilder {
	b.alert.Status = status
	return b
}

// WithTitle sets the title
func (b *AlertBuilder) WithTitle(title string) *AlertBuilder {
	b.alert.Title = title
	return b
}

// WithMessage sets the message
func (b *AlertBuilder) WithMessage(message string) *AlertBuilder {
	b.alert.Message = message
	return b
}

// WithType sets the alert type
func (b *AlertBuilder) WithType(alertType database.AlertType) *AlertBuilder {
	b.alert.AlertType = alertType
	return b
}

// WithRawData sets the raw data payload
func (b *AlertBuilder) WithRawData(raw database.JSONB) *AlertBuilder {
	b.alert.RawData = raw
	return b
}

// WithCorrelation assigns the alert to a correlation group
func (b *AlertBuilder) WithCorrelation(correlationID string, score float64) *AlertBuilder {
	b.alert.CorrelationID = &correlationID
	b.alert.CorrelationScore = &score
	return b
}

// Build returns the constructed alert
func (b *AlertBuilder) Build() database.Alert {
	return b.alert
}

// RCABuilder builds RCA instances for testing
type RCABuilder struct {
	rca database.RCA
}

// NewRCABuilder creates an RCA builder with sensible defaults
func NewRCABuilder() *RCABuilder {
	return &RCABuilder{
		rca: database.RCA{
			RCAID:           uuid.New().String(),
			CorrelationID:   uuid.New().String(),
			Status:          database.RCAStatusOpen,
			Priority:        "medium",
			Title:           "RCA for 2 correlated alerts",
			Summary:         "Database connection pool exhaustion cascading to API errors",
			RootCause:       "Connection pool sized below peak load",
			Solution:        "Increase pool size and add connection timeouts",
			ConfidenceScore: 0.85,
		},
	}
}

// WithRCAID sets the external RCA id
func (b *RCABuilder) WithRCAID(id string) *RCABuilder {
	b.rca.RCAID = id
	return b
}

// WithCorrelationID sets the correlation group id
func (b *RCABuilder) WithCorrelationID(id string) *RCABuilder {
	b.rca.CorrelationID = id
	return b
}

// WithStatus sets the lifecycle status
func (b *RCABuilder) WithStatus(status database.RCAStatus) *RCABuilder {
	b.rca.Status = status
	return b
}

// WithAccuracy sets the accuracy rating
func (b *RCABuilder) WithAccuracy(rating float64) *RCABuilder {
	b.rca.AccuracyRating = &rating
	return b
}

// WithResolutionTime sets the resolution time in minutes
func (b *RCABuilder) WithResolutionTime(minutes int) *RCABuilder {
	b.rca.ResolutionTime = &minutes
	return b
}

// Build returns the constructed RCA
func (b *RCABuilder) Build() database.RCA {
	return b.rca
}

// UniqueTitle returns a title suffixed with a short unique token, for
// tests that need distinguishable alerts
func UniqueTitle(prefix string) string {
	return fmt.Sprintf("%s %s", prefix, uuid.New().String()[:8])
}
