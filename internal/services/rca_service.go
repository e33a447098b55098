package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/alertkite/alertkite/internal/correlation"
	"github.com/alertkite/alertkite/internal/database"
	"github.com/alertkite/alertkite/internal/llm"
	"github.com/alertkite/alertkite/internal/metrics"
	"github.com/alertkite/alertkite/internal/notify"
	"github.com/alertkite/alertkite/internal/vectorstore"
)

// ErrNoAlertsForCorrelation is returned when RCA generation is requested
// for a correlation id that has no member alerts.
var ErrNoAlertsForCorrelation = errors.New("no alerts found for correlation id")

// RCAService manages root-cause-analysis records and the background
// generation pipeline. Generation never leaves a record stuck in
// in_progress: a failed pipeline writes a degraded open record.
type RCAService struct {
	db       *gorm.DB
	llm      *llm.Client
	vectors  *vectorstore.Client
	notifier notify.Notifier

	maxHistoricalContext int
	generationTimeout    time.Duration
}

// NewRCAService creates a new RCAService. The vector store client and
// notifier may be nil.
func NewRCAService(db *gorm.DB, llmClient *llm.Client, vectors *vectorstore.Client,
	notifier notify.Notifier, maxHistoricalContext int, generationTimeout time.Duration) *RCAService {
	return &RCAService{
		db:                   db,
		llm:                  llmClient,
		vectors:              vectors,
		notifier:             notifier,
		maxHistoricalContext: maxHistoricalContext,
		generationTimeout:    generationTimeout,
	}
}

// GenerateRCAInput holds the parameters for starting an RCA generation
type GenerateRCAInput struct {
	CorrelationID        string
	Title                string
	Priority             string
	AssignedTo           string
	UseHistoricalContext bool
}

// GenerateRCAResult is the immediate response of a generation request;
// the analysis itself completes in the background.
type GenerateRCAResult struct {
	RCAID                   string `json:"rca_id"`
	Status                  string `json:"status"`
	Message                 string `json:"message"`
	EstimatedCompletionTime int    `json:"estimated_completion_time"`
}

// GenerateRCA creates an in_progress RCA record for the correlation group
// and kicks off analysis in a background goroutine
func (s *RCAService) GenerateRCA(input GenerateRCAInput) (*GenerateRCAResult, error) {
	alerts, err := correlation.NewStore(s.db).AlertsByCorrelation(input.CorrelationID)
	if err != nil {
		return nil, fmt.Errorf("failed to load alerts for correlation %s: %w", input.CorrelationID, err)
	}
	if len(alerts) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoAlertsForCorrelation, input.CorrelationID)
	}

	title := input.Title
	if title == "" {
		title = fmt.Sprintf("RCA for %d correlated alerts", len(alerts))
	}
	priority := input.Priority
	if priority == "" {
		priority = "medium"
	}

	rca := &database.RCA{
		RCAID:         uuid.New().String(),
		CorrelationID: input.CorrelationID,
		Status:        database.RCAStatusInProgress,
		Priority:      priority,
		Title:         title,
		Summary:       "RCA generation in progress...",
		AssignedTo:    input.AssignedTo,
	}
	if err := s.db.Create(rca).Error; err != nil {
		return nil, fmt.Errorf("failed to create RCA record: %w", err)
	}

	go s.runAnalysis(rca.RCAID, alerts, input.UseHistoricalContext)

	log.Printf("RCA generation started for correlation %s", input.CorrelationID)
	return &GenerateRCAResult{
		RCAID:                   rca.RCAID,
		Status:                  string(database.RCAStatusInProgress),
		Message:                 "RCA generation started",
		EstimatedCompletionTime: int(s.generationTimeout.Seconds()),
	}, nil
}

// runAnalysis executes the generation pipeline for one RCA record. Every
// exit path moves the record out of in_progress.
func (s *RCAService) runAnalysis(rcaID string, alerts []database.Alert, useHistoricalContext bool) {
	ctx, cancel := context.WithTimeout(context.Background(), s.generationTimeout)
	defer cancel()

	start := time.Now()
	patterns := vectorstore.BuildAlertPatterns(alerts)

	var historical []llm.HistoricalCase
	var historicalContext database.JSONB
	if useHistoricalContext && s.vectors != nil {
		cases := s.vectors.SearchSimilar(ctx, patterns, s.maxHistoricalContext)
		entries := make([]interface{}, 0, len(cases))
		for _, c := range cases {
			historical = append(historical, llm.HistoricalCase{
				Document:   c.Document,
				Similarity: c.Similarity,
			})
			entries = append(entries, map[string]interface{}{
				"document":   c.Document,
				"similarity": c.Similarity,
				"metadata":   c.Metadata,
			})
		}
		if len(entries) > 0 {
			historicalContext = database.JSONB{"cases": entries}
		}
	}

	analysis, err := s.llm.GenerateRCA(ctx, alerts, historical)
	if err != nil {
		log.Printf("Failed to generate RCA analysis for %s: %v", rcaID, err)
		s.markFailed(rcaID, err)
		metrics.ObserveRCAGeneration(time.Since(start), metrics.RCAOutcomeFailed)
		return
	}

	summary := s.llm.GenerateSummary(ctx, analysis)

	affected := make([]interface{}, 0, len(analysis.AffectedSystems))
	for _, sys := range analysis.AffectedSystems {
		affected = append(affected, sys)
	}

	updates := map[string]interface{}{
		"status":           database.RCAStatusOpen,
		"summary":          summary,
		"root_cause":       analysis.RootCause,
		"solution":         analysis.Solution,
		"impact_analysis":  analysis.ImpactAnalysis,
		"confidence_score": analysis.ConfidenceScore,
		"llm_analysis":     analysis.JSONB(),
		"affected_systems": database.JSONB{"systems": affected},
		"business_impact":  analysis.BusinessImpact,
	}
	if historicalContext != nil {
		updates["historical_context"] = historicalContext
	}

	if err := s.db.Model(&database.RCA{}).Where("rca_id = ?", rcaID).Updates(updates).Error; err != nil {
		log.Printf("Failed to persist RCA analysis for %s: %v", rcaID, err)
		s.markFailed(rcaID, err)
		metrics.ObserveRCAGeneration(time.Since(start), metrics.RCAOutcomeFailed)
		return
	}

	metrics.ObserveRCAGeneration(time.Since(start), metrics.RCAOutcomeSuccess)
	log.Printf("RCA analysis completed for %s", rcaID)

	rca, err := s.GetRCA(rcaID)
	if err != nil {
		return
	}
	if s.vectors != nil {
		s.vectors.StoreRCA(ctx, rcaID, rca, patterns)
	}
	if s.notifier != nil {
		s.notifier.NotifyRCACompleted(rca)
	}
}

// markFailed moves an RCA record into its terminal degraded state
func (s *RCAService) markFailed(rcaID string, cause error) {
	updates := map[string]interface{}{
		"status":           database.RCAStatusOpen,
		"summary":          fmt.Sprintf("RCA generation failed: %v", cause),
		"root_cause":       "Automatic analysis failed",
		"solution":         "Manual analysis required",
		"confidence_score": 0.0,
	}
	if err := s.db.Model(&database.RCA{}).Where("rca_id = ?", rcaID).Updates(updates).Error; err != nil {
		log.Printf("Failed to mark RCA %s as failed: %v", rcaID, err)
	}
}

// GetRCA fetches an RCA by its external id
func (s *RCAService) GetRCA(rcaID string) (*database.RCA, error) {
	var rca database.RCA
	if err := s.db.Where("rca_id = ?", rcaID).First(&rca).Error; err != nil {
		return nil, err
	}
	return &rca, nil
}

// RCAFilter holds the filters and pagination for RCA listing
type RCAFilter struct {
	Status        []string
	Priority      []string
	AssignedTo    string
	Team          string
	CorrelationID string
	StartDate     *time.Time
	EndDate       *time.Time
	MinAccuracy   *float64
	Limit         int
	Offset        int
}

// ListRCAs returns RCAs matching the filter, newest first
func (s *RCAService) ListRCAs(filter RCAFilter) ([]database.RCA, error) {
	query := s.db.Model(&database.RCA{})

	if len(filter.Status) > 0 {
		query = query.Where("status IN ?", filter.Status)
	}
	if len(filter.Priority) > 0 {
		query = query.Where("priority IN ?", filter.Priority)
	}
	if filter.AssignedTo != "" {
		query = query.Where("assigned_to = ?", filter.AssignedTo)
	}
	if filter.Team != "" {
		query = query.Where("team = ?", filter.Team)
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
	if filter.MinAccuracy != nil {
		query = query.Where("accuracy_rating >= ?", *filter.MinAccuracy)
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}

	var rcas []database.RCA
	err := query.Order("created_at DESC").Offset(filter.Offset).Limit(limit).Find(&rcas).Error
	return rcas, err
}

// UpdateRCAInput holds the mutable RCA fields
type UpdateRCAInput struct {
	Status         *database.RCAStatus
	Priority       *string
	Title          *string
	Summary        *string
	RootCause      *string
	Solution       *string
	AssignedTo     *string
	Team           *string
	BusinessImpact *string
}

// UpdateRCA applies the set fields of the update. Closing an RCA stamps
// resolved_at and derives the resolution time in minutes.
func (s *RCAService) UpdateRCA(rcaID string, input UpdateRCAInput) (*database.RCA, error) {
	rca, err := s.GetRCA(rcaID)
	if err != nil {
		return nil, err
	}

	updates := map[string]interface{}{}
	if input.Status != nil {
		updates["status"] = *input.Status
		if *input.Status == database.RCAStatusClosed {
			now := time.Now().UTC()
			updates["resolved_at"] = now
			updates["resolution_time"] = int(now.Sub(rca.CreatedAt).Minutes())
		}
	}
	if input.Priority != nil {
		updates["priority"] = *input.Priority
	}
	if input.Title != nil {
		updates["title"] = *input.Title
	}
	if input.Summary != nil {
		updates["summary"] = *input.Summary
	}
	if input.RootCause != nil {
		updates["root_cause"] = *input.RootCause
	}
	if input.Solution != nil {
		updates["solution"] = *input.Solution
	}
	if input.AssignedTo != nil {
		updates["assigned_to"] = *input.AssignedTo
	}
	if input.Team != nil {
		updates["team"] = *input.Team
	}

	if len(updates) > 0 {
		if err := s.db.Model(rca).Updates(updates).Error; err != nil {
			return nil, fmt.Errorf("failed to update RCA %s: %w", rcaID, err)
		}
	}
	if input.BusinessImpact != nil {
		if err := s.db.Model(rca).Update("business_impact", *input.BusinessImpact).Error; err != nil {
			return nil, fmt.Errorf("failed to update RCA %s: %w", rcaID, err)
		}
	}

	log.Printf("RCA updated successfully: %s", rcaID)
	return s.GetRCA(rcaID)
}

// FeedbackInput is one human judgement of an RCA's accuracy
type FeedbackInput struct {
	RCAID          string
	IsAccurate     bool
	AccuracyRating float64
	FeedbackText   string
	UserID         string
	UserRole       string
}

// FeedbackResult reports the outcome of a feedback submission
type FeedbackResult struct {
	Message         string  `json:"message"`
	UpdatedAccuracy float64 `json:"updated_accuracy"`
}

// SubmitFeedback records a human accuracy judgement on an RCA. The rating
// is stored on the RCA itself, appended to its feedback history, and kept
// as a separate feedback row for accuracy tracking.
func (s *RCAService) SubmitFeedback(input FeedbackInput) (*FeedbackResult, error) {
	rca, err := s.GetRCA(input.RCAID)
	if err != nil {
		return nil, err
	}

	entry := map[string]interface{}{
		"is_accurate":     input.IsAccurate,
		"accuracy_rating": input.AccuracyRating,
		"feedback_text":   input.FeedbackText,
		"user_id":         input.UserID,
		"user_role":       input.UserRole,
		"timestamp":       time.Now().UTC().Format(time.RFC3339),
	}

	entries := []interface{}{}
	if rca.UserFeedback != nil {
		if existing, ok := rca.UserFeedback["entries"].([]interface{}); ok {
			entries = existing
		}
	}
	entries = append(entries, entry)

	predicted := rca.ConfidenceScore
	if predicted == 0 {
		predicted = 0.5
	}
	feedbackType := "negative"
	if input.IsAccurate {
		feedbackType = "positive"
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		updates := map[string]interface{}{
			"is_accurate":     input.IsAccurate,
			"accuracy_rating": input.AccuracyRating,
			"user_feedback":   database.JSONB{"entries": entries},
		}
		if err := tx.Model(rca).Updates(updates).Error; err != nil {
			return err
		}

		record := &database.RCAFeedback{
			RCAID:             input.RCAID,
			FeedbackType:      feedbackType,
			PredictedAccuracy: predicted,
			ActualAccuracy:    &input.AccuracyRating,
			FeedbackText:      input.FeedbackText,
			UserID:            input.UserID,
			UserRole:          input.UserRole,
		}
		return tx.Create(record).Error
	})
	if err != nil {
		return nil, fmt.Errorf("failed to submit feedback: %w", err)
	}

	log.Printf("Feedback submitted for RCA %s", input.RCAID)
	return &FeedbackResult{
		Message:         "Feedback submitted successfully",
		UpdatedAccuracy: input.AccuracyRating,
	}, nil
}

// RCAStatistics summarizes the RCA population and accuracy metrics
type RCAStatistics struct {
	TotalRCAs             int64   `json:"total_rcas"`
	OpenRCAs              int64   `json:"open_rcas"`
	InProgressRCAs        int64   `json:"in_progress_rcas"`
	ClosedRCAs            int64   `json:"closed_rcas"`
	RCAsWithFeedback      int64   `json:"rcas_with_feedback"`
	AverageAccuracy       float64 `json:"average_accuracy"`
	AverageResolutionTime float64 `json:"average_resolution_time"`
	RecentRCAs            int64   `json:"recent_rcas"`
}

// GetRCAStatistics computes summary statistics over all RCAs
func (s *RCAService) GetRCAStatistics() (*RCAStatistics, error) {
	stats := &RCAStatistics{}

	if err := s.db.Model(&database.RCA{}).Count(&stats.TotalRCAs).Error; err != nil {
		return nil, fmt.Errorf("failed to get RCA statistics: %w", err)
	}
	s.db.Model(&database.RCA{}).Where("status = ?", database.RCAStatusOpen).Count(&stats.OpenRCAs)
	s.db.Model(&database.RCA{}).Where("status = ?", database.RCAStatusInProgress).Count(&stats.InProgressRCAs)
	s.db.Model(&database.RCA{}).Where("status = ?", database.RCAStatusClosed).Count(&stats.ClosedRCAs)

	var accuracySum *float64
	s.db.Model(&database.RCA{}).Where("accuracy_rating IS NOT NULL").Count(&stats.RCAsWithFeedback)
	if stats.RCAsWithFeedback > 0 {
		s.db.Model(&database.RCA{}).Where("accuracy_rating IS NOT NULL").
			Select("sum(accuracy_rating)").Scan(&accuracySum)
		if accuracySum != nil {
			stats.AverageAccuracy = *accuracySum / float64(stats.RCAsWithFeedback)
		}
	}

	var resolvedCount int64
	var resolutionSum *float64
	s.db.Model(&database.RCA{}).Where("resolution_time IS NOT NULL").Count(&resolvedCount)
	if resolvedCount > 0 {
		s.db.Model(&database.RCA{}).Where("resolution_time IS NOT NULL").
			Select("sum(resolution_time)").Scan(&resolutionSum)
		if resolutionSum != nil {
			stats.AverageResolutionTime = *resolutionSum / float64(resolvedCount)
		}
	}

	recentThreshold := time.Now().UTC().Add(-24 * time.Hour)
	s.db.Model(&database.RCA{}).Where("created_at >= ?", recentThreshold).Count(&stats.RecentRCAs)

	return stats, nil
}

// AccuracyBucket is one week of accuracy trend data
type AccuracyBucket struct {
	Week     string  `json:"week"`
	Accuracy float64 `json:"accuracy"`
	Count    int     `json:"count"`
}

// AccuracyMetrics reports RCA accuracy over a trailing period
type AccuracyMetrics struct {
	TotalRCAs       int64            `json:"total_rcas"`
	WithFeedback    int              `json:"with_feedback"`
	AverageAccuracy float64          `json:"average_accuracy"`
	AccuracyTrend   []AccuracyBucket `json:"accuracy_trend"`
}

// GetAccuracyMetrics computes accuracy over the trailing number of days,
// with a weekly trend capped at twelve buckets
func (s *RCAService) GetAccuracyMetrics(days int) (*AccuracyMetrics, error) {
	endDate := time.Now().UTC()
	startDate := endDate.Add(-time.Duration(days) * 24 * time.Hour)

	var withFeedback []database.RCA
	err := s.db.
		Where("created_at >= ? AND created_at <= ?", startDate, endDate).
		Where("accuracy_rating IS NOT NULL").
		Find(&withFeedback).Error
	if err != nil {
		return nil, fmt.Errorf("failed to get accuracy metrics: %w", err)
	}

	metrics := &AccuracyMetrics{
		WithFeedback:  len(withFeedback),
		AccuracyTrend: []AccuracyBucket{},
	}
	s.db.Model(&database.RCA{}).
		Where("created_at >= ? AND created_at <= ?", startDate, endDate).
		Count(&metrics.TotalRCAs)

	if len(withFeedback) > 0 {
		var sum float64
		for _, rca := range withFeedback {
			sum += *rca.AccuracyRating
		}
		metrics.AverageAccuracy = sum / float64(len(withFeedback))
	}

	weeks := days / 7
	if weeks > 12 {
		weeks = 12
	}
	for i := 0; i < weeks; i++ {
		weekStart := startDate.Add(time.Duration(i) * 7 * 24 * time.Hour)
		weekEnd := weekStart.Add(7 * 24 * time.Hour)

		var sum float64
		count := 0
		for _, rca := range withFeedback {
			if !rca.CreatedAt.Before(weekStart) && rca.CreatedAt.Before(weekEnd) {
				sum += *rca.AccuracyRating
				count++
			}
		}

		bucket := AccuracyBucket{Week: weekStart.Format("2006-01-02"), Count: count}
		if count > 0 {
			bucket.Accuracy = sum / float64(count)
		}
		metrics.AccuracyTrend = append(metrics.AccuracyTrend, bucket)
	}

	return metrics, nil
}

// PerformanceMetrics reports resolution and correlation performance
type PerformanceMetrics struct {
	AverageResolutionTime float64 `json:"average_resolution_time"`
	TotalAlertsProcessed  int64   `json:"total_alerts_processed"`
	CorrelationAccuracy   float64 `json:"correlation_accuracy"`
	SystemUptime          float64 `json:"system_uptime"`
}

// GetPerformanceMetrics computes system-wide performance indicators. The
// uptime figure degrades when the LLM backend is unreachable.
func (s *RCAService) GetPerformanceMetrics(ctx context.Context) (*PerformanceMetrics, error) {
	metrics := &PerformanceMetrics{SystemUptime: 100.0}

	var resolvedCount int64
	var resolutionSum *float64
	s.db.Model(&database.RCA{}).Where("resolution_time IS NOT NULL").Count(&resolvedCount)
	if resolvedCount > 0 {
		s.db.Model(&database.RCA{}).Where("resolution_time IS NOT NULL").
			Select("sum(resolution_time)").Scan(&resolutionSum)
		if resolutionSum != nil {
			metrics.AverageResolutionTime = *resolutionSum / float64(resolvedCount)
		}
	}

	if err := s.db.Model(&database.Alert{}).Count(&metrics.TotalAlertsProcessed).Error; err != nil {
		return nil, fmt.Errorf("failed to get performance metrics: %w", err)
	}
	if metrics.TotalAlertsProcessed > 0 {
		var correlated int64
		s.db.Model(&database.Alert{}).Where("correlation_id IS NOT NULL").Count(&correlated)
		metrics.CorrelationAccuracy = float64(correlated) / float64(metrics.TotalAlertsProcessed) * 100
	}

	if !s.llm.TestConnection(ctx) {
		metrics.SystemUptime = 85.0
	}

	return metrics, nil
}

// TestLLMConnection reports whether the LLM backend is reachable with the
// configured model available
func (s *RCAService) TestLLMConnection(ctx context.Context) bool {
	return s.llm.TestConnection(ctx)
}

// VectorStoreStats returns document counts for the historical RCA corpus
func (s *RCAService) VectorStoreStats(ctx context.Context) *vectorstore.CollectionStats {
	if s.vectors == nil {
		return nil
	}
	stats := s.vectors.Stats(ctx)
	return &stats
}

// DeleteRCA removes an RCA and its feedback records
func (s *RCAService) DeleteRCA(rcaID string) error {
	rca, err := s.GetRCA(rcaID)
	if err != nil {
		return err
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("rca_id = ?", rcaID).Delete(&database.RCAFeedback{}).Error; err != nil {
			return err
		}
		return tx.Delete(rca).Error
	})
	if err != nil {
		return fmt.Errorf("failed to delete RCA %s: %w", rcaID, err)
	}

	log.Printf("RCA deleted successfully: %s", rcaID)
	return nil
}
