package services

import (
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/alertkite/alertkite/internal/correlation"
	"github.com/alertkite/alertkite/internal/database"
	"github.com/alertkite/alertkite/internal/metrics"
	"github.com/alertkite/alertkite/internal/notify"
)

// AlertService manages alert ingestion, queries, and the synchronous
// correlation step that runs on every new alert.
type AlertService struct {
	db        *gorm.DB
	threshold float64
	window    time.Duration
	notifier  notify.Notifier
}

// NewAlertService creates a new AlertService. The notifier may be nil.
func NewAlertService(db *gorm.DB, threshold float64, window time.Duration, notifier notify.Notifier) *AlertService {
	return &AlertService{
		db:        db,
		threshold: threshold,
		window:    window,
		notifier:  notifier,
	}
}

// CreateAlertInput holds the fields accepted for alert creation
type CreateAlertInput struct {
	AlertID        string
	Source         string
	Severity       database.AlertSeverity
	AlertType      database.AlertType
	Title          string
	Description    string
	Message        string
	RawData        database.JSONB
	AlertTimestamp *time.Time
}

// CreateAlert persists a new alert and runs correlation against the open
// candidate pool. The alert insert and all correlation mutations commit in
// one transaction: a store failure rolls everything back and surfaces, so
// no alert is ever left half-correlated.
func (s *AlertService) CreateAlert(input CreateAlertInput) (*database.Alert, *correlation.Result, error) {
	alertID := input.AlertID
	if alertID == "" {
		alertID = uuid.New().String()
	}

	eventTime := input.AlertTimestamp
	if eventTime == nil {
		now := time.Now().UTC()
		eventTime = &now
	}

	alert := &database.Alert{
		AlertID:        alertID,
		Source:         input.Source,
		Severity:       input.Severity,
		Status:         database.AlertStatusOpen,
		Title:          input.Title,
		Description:    input.Description,
		Message:        input.Message,
		AlertType:      input.AlertType,
		RawData:        input.RawData,
		AlertTimestamp: eventTime,
	}

	var result *correlation.Result
	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(alert).Error; err != nil {
			return fmt.Errorf("failed to create alert: %w", err)
		}

		engine := correlation.NewEngine(tx, s.threshold, s.window)
		r, err := engine.FindCorrelations(alert)
		if err != nil {
			return err
		}
		result = r
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	metrics.ObserveAlertIngested(string(alert.Severity))
	if result != nil {
		metrics.ObserveCorrelationDecision(true, result.ConfidenceScore)
		log.Printf("Alert %s correlated with ID: %s", alert.AlertID, result.CorrelationID)
		if s.notifier != nil {
			go s.notifier.NotifyCorrelation(alert, result)
		}
	} else {
		metrics.ObserveCorrelationDecision(false, 0)
	}

	log.Printf("Alert created successfully: %s", alert.AlertID)
	return alert, result, nil
}

// BulkCreateAlerts creates multiple alerts sequentially, each with its own
// correlation pass. The first failure aborts the batch.
func (s *AlertService) BulkCreateAlerts(inputs []CreateAlertInput) ([]database.Alert, error) {
	created := make([]database.Alert, 0, len(inputs))
	for _, input := range inputs {
		alert, _, err := s.CreateAlert(input)
		if err != nil {
			return created, err
		}
		created = append(created, *alert)
	}
	log.Printf("Bulk created %d alerts", len(created))
	return created, nil
}

// GetAlert fetches an alert by its external alert id
func (s *AlertService) GetAlert(alertID string) (*database.Alert, error) {
	var alert database.Alert
	if err := s.db.Where("alert_id = ?", alertID).First(&alert).Error; err != nil {
		return nil, err
	}
	return &alert, nil
}

// AlertFilter holds the filters and pagination for alert listing
type AlertFilter struct {
	Status        []string
	Severity      []string
	Source        []string
	AlertType     []string
	CorrelationID string
	StartDate     *time.Time
	EndDate       *time.Time
	Limit         int
	Offset        int
}

// ListAlerts returns alerts matching the filter, newest first
func (s *AlertService) ListAlerts(filter AlertFilter) ([]database.Alert, error) {
	query := s.db.Model(&database.Alert{})

	if len(filter.Status) > 0 {
		query = query.Where("status IN ?", filter.Status)
	}
	if len(filter.Severity) > 0 {
		query = query.Where("severity IN ?", filter.Severity)
	}
	if len(filter.Source) > 0 {
		query = query.Where("source IN ?", filter.Source)
	}
	if len(filter.AlertType) > 0 {
		query = query.Where("alert_type IN ?", filter.AlertType)
	}
	if filter.CorrelationID != "" {
		query = query.Where("correlation_id = ?", filter.CorrelationID)
	}
	if filter.StartDate != nil {
		query = query.Where("created_at >= ?", *filter.StartDate)
	}
	if filter.EndDate != nil {
		query = query.Where("created_at <= ?", *filter.EndDate)
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}

	var alerts []database.Alert
	err := query.Order("created_at DESC").Offset(filter.Offset).Limit(limit).Find(&alerts).Error
	return alerts, err
}

// UpdateAlertInput holds the mutable alert fields
type UpdateAlertInput struct {
	Status      *database.AlertStatus
	Severity    *database.AlertSeverity
	Title       *string
	Description *string
	Message     *string
}

// UpdateAlert applies the set fields of the update to an alert
func (s *AlertService) UpdateAlert(alertID string, input UpdateAlertInput) (*database.Alert, error) {
	alert, err := s.GetAlert(alertID)
	if err != nil {
		return nil, err
	}

	updates := map[string]interface{}{}
	if input.Status != nil {
		updates["status"] = *input.Status
	}
	if input.Severity != nil {
		updates["severity"] = *input.Severity
	}
	if input.Title != nil {
		updates["title"] = *input.Title
	}
	if input.Description != nil {
		updates["description"] = *input.Description
	}
	if input.Message != nil {
		updates["message"] = *input.Message
	}

	if len(updates) > 0 {
		if err := s.db.Model(alert).Updates(updates).Error; err != nil {
			return nil, fmt.Errorf("failed to update alert %s: %w", alertID, err)
		}
	}

	return s.GetAlert(alertID)
}

// DeleteAlert removes an alert. This is an admin operation; the correlation
// engine itself never deletes alerts.
func (s *AlertService) DeleteAlert(alertID string) error {
	result := s.db.Where("alert_id = ?", alertID).Delete(&database.Alert{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	log.Printf("Alert deleted successfully: %s", alertID)
	return nil
}

// GetAlertsByCorrelation returns all alerts in a correlation group,
// newest first
func (s *AlertService) GetAlertsByCorrelation(correlationID string) ([]database.Alert, error) {
	return correlation.NewStore(s.db).AlertsByCorrelation(correlationID)
}

// GetUncorrelatedAlerts returns open alerts that have not joined any group
func (s *AlertService) GetUncorrelatedAlerts(limit int) ([]database.Alert, error) {
	if limit <= 0 {
		limit = 100
	}
	var alerts []database.Alert
	err := s.db.
		Where("correlation_id IS NULL").
		Where("status = ?", database.AlertStatusOpen).
		Order("created_at DESC").
		Limit(limit).
		Find(&alerts).Error
	return alerts, err
}

// ForceCorrelate manually groups the given alert ids into one new
// correlation group with confidence 1.0
func (s *AlertService) ForceCorrelate(alertIDs []string) (*correlation.Result, error) {
	engine := correlation.NewEngine(s.db, s.threshold, s.window)
	return engine.ForceCorrelate(alertIDs)
}

// GetCorrelationGroups lists correlation groups newest-first
func (s *AlertService) GetCorrelationGroups(limit int) ([]correlation.GroupSummary, error) {
	engine := correlation.NewEngine(s.db, s.threshold, s.window)
	return engine.GetCorrelationGroups(limit)
}

// AlertStatistics summarizes the alert population
type AlertStatistics struct {
	TotalAlerts          int64            `json:"total_alerts"`
	OpenAlerts           int64            `json:"open_alerts"`
	ResolvedAlerts       int64            `json:"resolved_alerts"`
	RecentAlerts         int64            `json:"recent_alerts"`
	SeverityDistribution map[string]int64 `json:"severity_distribution"`
	SourceDistribution   map[string]int64 `json:"source_distribution"`
}

// GetAlertStatistics computes summary statistics over all alerts
func (s *AlertService) GetAlertStatistics() (*AlertStatistics, error) {
	stats := &AlertStatistics{
		SeverityDistribution: make(map[string]int64),
		SourceDistribution:   make(map[string]int64),
	}

	if err := s.db.Model(&database.Alert{}).Count(&stats.TotalAlerts).Error; err != nil {
		return nil, fmt.Errorf("failed to get alert statistics: %w", err)
	}
	s.db.Model(&database.Alert{}).Where("status = ?", database.AlertStatusOpen).Count(&stats.OpenAlerts)
	s.db.Model(&database.Alert{}).Where("status = ?", database.AlertStatusResolved).Count(&stats.ResolvedAlerts)

	recentThreshold := time.Now().UTC().Add(-24 * time.Hour)
	s.db.Model(&database.Alert{}).Where("created_at >= ?", recentThreshold).Count(&stats.RecentAlerts)

	for _, severity := range []database.AlertSeverity{
		database.AlertSeverityLow,
		database.AlertSeverityMedium,
		database.AlertSeverityHigh,
		database.AlertSeverityCritical,
	} {
		var count int64
		s.db.Model(&database.Alert{}).Where("severity = ?", severity).Count(&count)
		stats.SeverityDistribution[string(severity)] = count
	}

	rows, err := s.db.Model(&database.Alert{}).
		Select("source, count(*) as count").
		Group("source").
		Rows()
	if err != nil {
		return nil, fmt.Errorf("failed to get source distribution: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var source string
		var count int64
		if err := rows.Scan(&source, &count); err != nil {
			return nil, err
		}
		stats.SourceDistribution[source] = count
	}

	return stats, nil
}
