package database

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"
)

// JSONB is a custom type for PostgreSQL JSONB columns
type JSONB map[string]interface{}

// Scan implements the sql.Scanner interface
func (j *JSONB) Scan(value interface{}) error {
	if value == nil {
		*j = make(map[string]interface{})
		return nil
	}
	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, j)
	case string:
		return json.Unmarshal([]byte(v), j)
	default:
		return errors.New("unsupported type for JSONB column")
	}
}

// Value implements the driver.Valuer interface
func (j JSONB) Value() (driver.Value, error) {
	if j == nil {
		return nil, nil
	}
	return json.Marshal(j)
}

// AlertSeverity represents normalized severity levels
type AlertSeverity string

const (
	AlertSeverityLow      AlertSeverity = "low"
	AlertSeverityMedium   AlertSeverity = "medium"
	AlertSeverityHigh     AlertSeverity = "high"
	AlertSeverityCritical AlertSeverity = "critical"
)

// AlertType categorizes the telemetry signal an alert was raised from
type AlertType string

const (
	AlertTypeLogs    AlertType = "logs"
	AlertTypeTraces  AlertType = "traces"
	AlertTypeMetrics AlertType = "metrics"
	AlertTypeEvents  AlertType = "events"
)

// AlertStatus represents the lifecycle state of an alert
type AlertStatus string

const (
	AlertStatusOpen         AlertStatus = "open"
	AlertStatusAcknowledged AlertStatus = "acknowledged"
	AlertStatusResolved     AlertStatus = "resolved"
)

// Alert represents one observed monitoring event.
// Only the correlation fields are mutated after creation; the correlation
// engine never deletes alerts.
type Alert struct {
	ID      uint   `gorm:"primaryKey" json:"id"`
	AlertID string `gorm:"uniqueIndex;size:64;not null" json:"alert_id"`

	Source   string        `gorm:"size:128;not null;index" json:"source"` // monitoring tool, e.g. "prometheus"
	Severity AlertSeverity `gorm:"type:varchar(20);not null;index" json:"severity"`
	Status   AlertStatus   `gorm:"type:varchar(20);not null;default:'open';index" json:"status"`

	Title       string `gorm:"type:varchar(255)" json:"title"`
	Description string `gorm:"type:text" json:"description"`
	Message     string `gorm:"type:text" json:"message"`

	AlertType AlertType `gorm:"type:varchar(20);not null;index" json:"alert_type"`
	RawData   JSONB     `gorm:"type:jsonb" json:"raw_data"`

	CorrelationID    *string  `gorm:"size:64;index" json:"correlation_id"`
	CorrelationScore *float64 `json:"correlation_score"`

	AlertTimestamp *time.Time `json:"alert_timestamp"` // externally supplied event time
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

func (Alert) TableName() string {
	return "alerts"
}

// IsOpen reports whether the alert still participates in correlation
func (a *Alert) IsOpen() bool {
	return a.Status == AlertStatusOpen
}

// CorrelationMethod tags how a correlation group was formed
type CorrelationMethod string

const (
	CorrelationMethodSimilarity CorrelationMethod = "similarity"
	CorrelationMethodManual     CorrelationMethod = "manual"
)

// CorrelationGroup is an aggregate over a set of alerts believed to share a
// root cause. AlertCount and ConfidenceScore are maintained incrementally as
// members join; the time window spans member creation times.
type CorrelationGroup struct {
	ID            uint   `gorm:"primaryKey" json:"id"`
	CorrelationID string `gorm:"uniqueIndex;size:64;not null" json:"correlation_id"`

	AlertCount        int               `gorm:"not null" json:"alert_count"`
	ConfidenceScore   float64           `gorm:"type:decimal(4,3)" json:"confidence_score"`
	CorrelationMethod CorrelationMethod `gorm:"type:varchar(20);not null" json:"correlation_method"`

	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (CorrelationGroup) TableName() string {
	return "correlation_groups"
}

// RCAStatus represents the lifecycle state of an RCA record
type RCAStatus string

const (
	RCAStatusInProgress RCAStatus = "in_progress"
	RCAStatusOpen       RCAStatus = "open"
	RCAStatusClosed     RCAStatus = "closed"
)

// RCA is one root-cause-analysis narrative per correlation group
type RCA struct {
	ID            uint   `gorm:"primaryKey" json:"id"`
	RCAID         string `gorm:"uniqueIndex;size:64;not null" json:"rca_id"`
	CorrelationID string `gorm:"size:64;index;not null" json:"correlation_id"`

	Status   RCAStatus `gorm:"type:varchar(20);not null;default:'in_progress';index" json:"status"`
	Priority string    `gorm:"type:varchar(20);default:'medium';index" json:"priority"` // low, medium, high, critical

	Title          string `gorm:"type:varchar(255)" json:"title"`
	Summary        string `gorm:"type:text" json:"summary"`
	RootCause      string `gorm:"type:text" json:"root_cause"`
	Solution       string `gorm:"type:text" json:"solution"`
	ImpactAnalysis string `gorm:"type:text" json:"impact_analysis"`

	LLMAnalysis       JSONB   `gorm:"type:jsonb" json:"llm_analysis"`
	ConfidenceScore   float64 `gorm:"type:decimal(4,3)" json:"confidence_score"`
	HistoricalContext JSONB   `gorm:"type:jsonb" json:"historical_context"`

	UserFeedback   JSONB    `gorm:"type:jsonb" json:"user_feedback"`
	AccuracyRating *float64 `json:"accuracy_rating"` // 0.0 to 1.0
	IsAccurate     *bool    `json:"is_accurate"`

	ResolutionTime  *int   `json:"resolution_time"` // minutes
	AffectedSystems JSONB  `gorm:"type:jsonb" json:"affected_systems"`
	BusinessImpact  string `gorm:"type:varchar(20)" json:"business_impact"`

	AssignedTo string `gorm:"type:varchar(128)" json:"assigned_to"`
	Team       string `gorm:"type:varchar(128)" json:"team"`

	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
	ResolvedAt *time.Time `json:"resolved_at"`
}

func (RCA) TableName() string {
	return "rca_analyses"
}

// RCAFeedback records one human judgement of an RCA's accuracy
type RCAFeedback struct {
	ID    uint   `gorm:"primaryKey" json:"id"`
	RCAID string `gorm:"size:64;index;not null" json:"rca_id"`

	FeedbackType      string   `gorm:"type:varchar(20);not null" json:"feedback_type"` // positive, negative, neutral
	PredictedAccuracy float64  `gorm:"type:decimal(4,3)" json:"predicted_accuracy"`
	ActualAccuracy    *float64 `gorm:"type:decimal(4,3)" json:"actual_accuracy"`

	FeedbackText      string `gorm:"type:text" json:"feedback_text"`
	CorrectedAnalysis string `gorm:"type:text" json:"corrected_analysis"`

	UserID   string `gorm:"type:varchar(128)" json:"user_id"`
	UserRole string `gorm:"type:varchar(64)" json:"user_role"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (RCAFeedback) TableName() string {
	return "rca_feedback"
}

// GetSeverityEmoji returns an emoji for the alert severity, used in Slack
// notifications
func GetSeverityEmoji(severity AlertSeverity) string {
	switch severity {
	case AlertSeverityCritical:
		return ":red_circle:"
	case AlertSeverityHigh:
		return ":large_orange_circle:"
	case AlertSeverityMedium:
		return ":large_yellow_circle:"
	case AlertSeverityLow:
		return ":large_blue_circle:"
	default:
		return ":white_circle:"
	}
}
