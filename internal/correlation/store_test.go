package correlation

import (
	"testing"
	"time"

	"github.com/alertkite/alertkite/internal/database"
)

func TestStore_OpenAlertsSince_OrderAndFilters(t *testing.T) {
	db := setupTestDB(t)
	store := NewStore(db)

	now := time.Now().UTC()

	newer := cpuAlert("newer")
	newer.CreatedAt = now.Add(-30 * time.Second)
	createAlert(t, db, newer)

	older := cpuAlert("older")
	older.CreatedAt = now.Add(-90 * time.Second)
	createAlert(t, db, older)

	stale := cpuAlert("stale")
	stale.CreatedAt = now.Add(-10 * time.Minute)
	createAlert(t, db, stale)

	acked := cpuAlert("acked")
	acked.Status = database.AlertStatusAcknowledged
	createAlert(t, db, acked)

	excluded := createAlert(t, db, cpuAlert("self"))

	alerts, err := store.OpenAlertsSince(now.Add(-5*time.Minute), excluded.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(alerts) != 2 {
		t.Fatalf("candidate count = %d, want 2", len(alerts))
	}
	if alerts[0].AlertID != "older" || alerts[1].AlertID != "newer" {
		t.Errorf("candidates out of order: %s, %s", alerts[0].AlertID, alerts[1].AlertID)
	}
}

func TestStore_AlertsByAlertIDs_SkipsUnknown(t *testing.T) {
	db := setupTestDB(t)
	store := NewStore(db)

	createAlert(t, db, cpuAlert("known-1"))
	createAlert(t, db, cpuAlert("known-2"))

	alerts, err := store.AlertsByAlertIDs([]string{"known-1", "known-2", "ghost"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(alerts) != 2 {
		t.Errorf("resolved count = %d, want 2", len(alerts))
	}
}

func TestStore_GroupByID_NotFound(t *testing.T) {
	db := setupTestDB(t)
	store := NewStore(db)

	if _, err := store.GroupByID("missing"); err == nil {
		t.Error("expected an error for a missing group")
	}
}

func TestStore_Groups_NewestFirstWithCap(t *testing.T) {
	db := setupTestDB(t)
	store := NewStore(db)

	for i, id := range []string{"g1", "g2", "g3"} {
		db.Create(&database.CorrelationGroup{
			CorrelationID:     id,
			AlertCount:        2,
			ConfidenceScore:   0.8,
			CorrelationMethod: database.CorrelationMethodSimilarity,
			CreatedAt:         time.Now().UTC().Add(time.Duration(i) * time.Second),
		})
	}

	groups, err := store.Groups(2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(groups) != 2 {
		t.Fatalf("group count = %d, want 2", len(groups))
	}
	if groups[0].CorrelationID != "g3" {
		t.Errorf("first group = %s, want g3", groups[0].CorrelationID)
	}
}
