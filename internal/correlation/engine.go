package correlation

import (
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/alertkite/alertkite/internal/database"
)

// ErrNotEnoughAlerts is returned by ForceCorrelate when fewer than two of
// the given alert ids resolve to existing alerts.
var ErrNotEnoughAlerts = errors.New("at least 2 existing alerts are required for correlation")

// Engine decides, for each newly created alert, whether it joins an existing
// correlation group or starts a new one. Scoring runs without holding any
// lock; group creation and updates commit in a single transaction.
type Engine struct {
	db        *gorm.DB
	store     *Store
	threshold float64
	window    time.Duration
}

// NewEngine creates a correlation engine with the given match threshold and
// candidate time window
func NewEngine(db *gorm.DB, threshold float64, window time.Duration) *Engine {
	return &Engine{
		db:        db,
		store:     NewStore(db),
		threshold: threshold,
		window:    window,
	}
}

// Result describes the group an alert was correlated into
type Result struct {
	CorrelationID   string  `json:"correlation_id"`
	ConfidenceScore float64 `json:"confidence_score"`
	AlertCount      int     `json:"alert_count"`
}

// match pairs a winning candidate with its similarity score
type match struct {
	alert *database.Alert
	score float64
}

// FindCorrelations runs the correlation decision procedure for a newly
// created, still-open alert. It returns nil when no candidate in the time
// window scores at or above the threshold. Store errors during commit roll
// back all partial mutations and surface to the caller.
func (e *Engine) FindCorrelations(newAlert *database.Alert) (*Result, error) {
	since := time.Now().UTC().Add(-e.window)
	candidates, err := e.store.OpenAlertsSince(since, newAlert.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to gather correlation candidates: %w", err)
	}

	if len(candidates) == 0 {
		log.Printf("No recent alerts found for correlation with %s", newAlert.AlertID)
		return nil, nil
	}

	best := e.findBestMatch(newAlert, candidates)
	if best == nil {
		log.Printf("No strong correlations found for alert %s", newAlert.AlertID)
		return nil, nil
	}

	result, err := e.updateCorrelationGroup(newAlert, best)
	if err != nil {
		return nil, err
	}

	log.Printf("Alert %s added to correlation group %s", newAlert.AlertID, result.CorrelationID)
	return result, nil
}

// findBestMatch scores the new alert against every candidate and returns the
// highest-scoring candidate at or above the threshold, or nil. The strict
// comparison keeps the first candidate encountered on score ties.
func (e *Engine) findBestMatch(newAlert *database.Alert, candidates []database.Alert) *match {
	newFeatures := ExtractFeatures(newAlert)

	var best *match
	bestScore := 0.0

	for i := range candidates {
		candidate := &candidates[i]
		score := Similarity(newFeatures, ExtractFeatures(candidate))
		if score > bestScore && score >= e.threshold {
			bestScore = score
			best = &match{alert: candidate, score: score}
		}
	}

	return best
}

// updateCorrelationGroup assigns the new alert to the winning candidate's
// group, creating the group when the candidate is not yet correlated. All
// aggregate and alert mutations commit or fail together.
func (e *Engine) updateCorrelationGroup(newAlert *database.Alert, best *match) (*Result, error) {
	var result *Result

	err := e.db.Transaction(func(tx *gorm.DB) error {
		if best.alert.CorrelationID == nil {
			r, err := e.createGroup(tx, newAlert, best)
			if err != nil {
				return err
			}
			result = r
			return nil
		}

		r, err := e.joinGroup(tx, newAlert, best)
		if err != nil {
			return err
		}
		result = r
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to update correlation group: %w", err)
	}

	return result, nil
}

// createGroup mints a new correlation group for the new alert and the
// winning, previously uncorrelated candidate
func (e *Engine) createGroup(tx *gorm.DB, newAlert *database.Alert, best *match) (*Result, error) {
	correlationID := uuid.New().String()

	group := &database.CorrelationGroup{
		CorrelationID:     correlationID,
		AlertCount:        2,
		ConfidenceScore:   best.score,
		CorrelationMethod: database.CorrelationMethodSimilarity,
		StartTime:         minTime(newAlert.CreatedAt, best.alert.CreatedAt),
		EndTime:           maxTime(newAlert.CreatedAt, best.alert.CreatedAt),
	}
	if err := tx.Create(group).Error; err != nil {
		return nil, err
	}

	if err := assignCorrelation(tx, best.alert.ID, correlationID, best.score); err != nil {
		return nil, err
	}
	if err := assignCorrelation(tx, newAlert.ID, correlationID, best.score); err != nil {
		return nil, err
	}

	newAlert.CorrelationID = &correlationID
	newAlert.CorrelationScore = &best.score

	return &Result{
		CorrelationID:   correlationID,
		ConfidenceScore: best.score,
		AlertCount:      2,
	}, nil
}

// joinGroup adds the new alert to the candidate's existing group, extending
// the time window upper bound and averaging the confidence. The confidence
// update is the two-term average (existing + score) / 2, not a member-count
// weighted mean.
func (e *Engine) joinGroup(tx *gorm.DB, newAlert *database.Alert, best *match) (*Result, error) {
	correlationID := *best.alert.CorrelationID

	var group database.CorrelationGroup
	if err := tx.Where("correlation_id = ?", correlationID).First(&group).Error; err != nil {
		return nil, err
	}

	group.AlertCount++
	group.EndTime = maxTime(group.EndTime, newAlert.CreatedAt)
	group.ConfidenceScore = (group.ConfidenceScore + best.score) / 2

	if err := tx.Model(&database.CorrelationGroup{}).
		Where("correlation_id = ?", correlationID).
		Updates(map[string]interface{}{
			"alert_count":      group.AlertCount,
			"end_time":         group.EndTime,
			"confidence_score": group.ConfidenceScore,
		}).Error; err != nil {
		return nil, err
	}

	if err := assignCorrelation(tx, newAlert.ID, correlationID, best.score); err != nil {
		return nil, err
	}

	newAlert.CorrelationID = &correlationID
	newAlert.CorrelationScore = &best.score

	return &Result{
		CorrelationID:   correlationID,
		ConfidenceScore: best.score,
		AlertCount:      group.AlertCount,
	}, nil
}

// ForceCorrelate manually groups the given alerts under one new correlation
// id with confidence 1.0, overriding any prior group membership of those
// alerts. It fails when fewer than two of the ids resolve.
func (e *Engine) ForceCorrelate(alertIDs []string) (*Result, error) {
	alerts, err := e.store.AlertsByAlertIDs(alertIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve alerts: %w", err)
	}
	if len(alerts) < 2 {
		return nil, ErrNotEnoughAlerts
	}

	correlationID := uuid.New().String()
	confidence := 1.0

	start := alerts[0].CreatedAt
	end := alerts[0].CreatedAt
	for _, a := range alerts[1:] {
		start = minTime(start, a.CreatedAt)
		end = maxTime(end, a.CreatedAt)
	}

	err = e.db.Transaction(func(tx *gorm.DB) error {
		for i := range alerts {
			if err := assignCorrelation(tx, alerts[i].ID, correlationID, confidence); err != nil {
				return err
			}
		}

		group := &database.CorrelationGroup{
			CorrelationID:     correlationID,
			AlertCount:        len(alerts),
			ConfidenceScore:   confidence,
			CorrelationMethod: database.CorrelationMethodManual,
			StartTime:         start,
			EndTime:           end,
		}
		return tx.Create(group).Error
	})
	if err != nil {
		return nil, fmt.Errorf("failed to force correlate alerts: %w", err)
	}

	log.Printf("Manually correlated %d alerts with ID %s", len(alerts), correlationID)
	return &Result{
		CorrelationID:   correlationID,
		ConfidenceScore: confidence,
		AlertCount:      len(alerts),
	}, nil
}

// GroupSummary is a correlation group with its member alert ids
type GroupSummary struct {
	CorrelationID     string                     `json:"correlation_id"`
	AlertCount        int                        `json:"alert_count"`
	ConfidenceScore   float64                    `json:"confidence_score"`
	CorrelationMethod database.CorrelationMethod `json:"correlation_method"`
	StartTime         time.Time                  `json:"start_time"`
	EndTime           time.Time                  `json:"end_time"`
	Alerts            []string                   `json:"alerts"`
}

// GetCorrelationGroups lists correlation groups newest-first with their
// member alert ids, capped at limit
func (e *Engine) GetCorrelationGroups(limit int) ([]GroupSummary, error) {
	groups, err := e.store.Groups(limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get correlation groups: %w", err)
	}

	summaries := make([]GroupSummary, 0, len(groups))
	for _, g := range groups {
		alerts, err := e.store.AlertsByCorrelation(g.CorrelationID)
		if err != nil {
			return nil, fmt.Errorf("failed to get alerts for group %s: %w", g.CorrelationID, err)
		}

		alertIDs := make([]string, 0, len(alerts))
		for _, a := range alerts {
			alertIDs = append(alertIDs, a.AlertID)
		}

		summaries = append(summaries, GroupSummary{
			CorrelationID:     g.CorrelationID,
			AlertCount:        g.AlertCount,
			ConfidenceScore:   g.ConfidenceScore,
			CorrelationMethod: g.CorrelationMethod,
			StartTime:         g.StartTime,
			EndTime:           g.EndTime,
			Alerts:            alertIDs,
		})
	}

	return summaries, nil
}

// assignCorrelation writes an alert's correlation id and score
func assignCorrelation(tx *gorm.DB, alertPK uint, correlationID string, score float64) error {
	return tx.Model(&database.Alert{}).
		Where("id = ?", alertPK).
		Updates(map[string]interface{}{
			"correlation_id":    correlationID,
			"correlation_score": score,
		}).Error
}

func minTime(a, b time.Time) time.Time {
	if a.Before(b) {
		return a
	}
	return b
}

func maxTime(a, b time.Time) time.Time {
	if a.After(b) {
		return a
	}
	return b
}
