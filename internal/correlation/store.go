package correlation

import (
	"time"

	"gorm.io/gorm"

	"github.com/alertkite/alertkite/internal/database"
)

// Store owns the durable correlation records: candidate queries over open
// alerts and the group aggregates maintained by the engine.
type Store struct {
	db *gorm.DB
}

// NewStore creates a correlation store over the given database handle
func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

// OpenAlertsSince returns open alerts created at or after the given time,
// excluding the alert with the given primary key. Results are ordered by
// creation time ascending so candidate iteration is deterministic.
func (s *Store) OpenAlertsSince(since time.Time, excludeID uint) ([]database.Alert, error) {
	var alerts []database.Alert
	err := s.db.
		Where("created_at >= ?", since).
		Where("id <> ?", excludeID).
		Where("status = ?", database.AlertStatusOpen).
		Order("created_at ASC").
		Find(&alerts).Error
	return alerts, err
}

// GroupByID fetches a correlation group record by its correlation id
func (s *Store) GroupByID(correlationID string) (*database.CorrelationGroup, error) {
	var group database.CorrelationGroup
	if err := s.db.Where("correlation_id = ?", correlationID).First(&group).Error; err != nil {
		return nil, err
	}
	return &group, nil
}

// Groups returns correlation groups ordered by creation time descending,
// capped at limit
func (s *Store) Groups(limit int) ([]database.CorrelationGroup, error) {
	var groups []database.CorrelationGroup
	err := s.db.Order("created_at DESC").Limit(limit).Find(&groups).Error
	return groups, err
}

// AlertsByCorrelation returns all alerts carrying the given correlation id
func (s *Store) AlertsByCorrelation(correlationID string) ([]database.Alert, error) {
	var alerts []database.Alert
	err := s.db.
		Where("correlation_id = ?", correlationID).
		Order("created_at DESC").
		Find(&alerts).Error
	return alerts, err
}

// AlertsByAlertIDs resolves a list of external alert identifiers to alert
// records. Unknown ids are silently absent from the result.
func (s *Store) AlertsByAlertIDs(alertIDs []string) ([]database.Alert, error) {
	var alerts []database.Alert
	err := s.db.Where("alert_id IN ?", alertIDs).Find(&alerts).Error
	return alerts, err
}
