package handlers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"gorm.io/gorm"

	"github.com/alertkite/alertkite/internal/database"
	"github.com/alertkite/alertkite/internal/llm"
	"github.com/alertkite/alertkite/internal/metrics"
	"github.com/alertkite/alertkite/internal/services"
	"github.com/alertkite/alertkite/internal/testhelpers"
)

const testAnalysisJSON = `{"root_cause": "Pool exhaustion", "solution": "Resize pool", "confidence_score": 0.85}`

func newTestMux(t *testing.T) (*http.ServeMux, *gorm.DB) {
	t.Helper()
	db := testhelpers.NewTestDB(t)

	ollama := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/chat":
			json.NewEncoder(w).Encode(map[string]interface{}{
				"message": map[string]string{"role": "assistant", "content": testAnalysisJSON},
			})
		case "/api/tags":
			json.NewEncoder(w).Encode(map[string]interface{}{
				"models": []map[string]string{{"name": "llama3"}},
			})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(ollama.Close)

	llmClient := llm.NewClient(ollama.URL, "llama3", 5*time.Second)
	alertService := services.NewAlertService(db, 0.7, 300*time.Second, nil)
	rcaService := services.NewRCAService(db, llmClient, nil, nil, 10, 5*time.Second)

	registry := prometheus.NewRegistry()
	if err := metrics.Register(registry); err != nil {
		t.Fatalf("failed to register metrics: %v", err)
	}

	mux := http.NewServeMux()
	SetupRoutes(mux,
		NewAlertHandler(alertService),
		NewRCAHandler(rcaService),
		NewHealthHandler(db, rcaService, "llama3"),
		registry,
	)
	return mux, db
}

func doJSON(t *testing.T, mux *http.ServeMux, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("failed to marshal body: %v", err)
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

func createAlertBody(title string) map[string]interface{} {
	return map[string]interface{}{
		"source":     "prometheus",
		"severity":   "high",
		"alert_type": "metrics",
		"title":      title,
		"message":    "CPU usage exceeded 90 percent for 5 minutes",
		"raw_data": map[string]interface{}{
			"metric_name": "cpu_usage",
			"host":        "web-01",
			"environment": "production",
		},
	}
}

func TestCreateAlertEndpoint(t *testing.T) {
	mux, _ := newTestMux(t)

	rec := doJSON(t, mux, "POST", "/api/alerts", createAlertBody("High CPU usage on web-01"))
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	var alert database.Alert
	if err := json.Unmarshal(rec.Body.Bytes(), &alert); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if alert.AlertID == "" {
		t.Error("expected generated alert_id in response")
	}
	if alert.Status != database.AlertStatusOpen {
		t.Errorf("expected open status, got %s", alert.Status)
	}
}

func TestCreateAlertValidation(t *testing.T) {
	mux, _ := newTestMux(t)

	body := createAlertBody("High CPU usage on web-01")
	body["severity"] = "urgent"

	rec := doJSON(t, mux, "POST", "/api/alerts", body)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", rec.Code)
	}

	var resp struct {
		Details map[string]string `json:"details"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if _, ok := resp.Details["severity"]; !ok {
		t.Errorf("expected severity detail, got %v", resp.Details)
	}
}

func TestCreateAlertMalformedBody(t *testing.T) {
	mux, _ := newTestMux(t)

	req := httptest.NewRequest("POST", "/api/alerts", bytes.NewReader([]byte(`{"source":`)))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestCreateAlertCorrelatesSecondAlert(t *testing.T) {
	mux, _ := newTestMux(t)

	doJSON(t, mux, "POST", "/api/alerts", createAlertBody("High CPU usage on web-01"))
	rec := doJSON(t, mux, "POST", "/api/alerts", createAlertBody("High CPU usage on web-01"))
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rec.Code)
	}

	var alert database.Alert
	if err := json.Unmarshal(rec.Body.Bytes(), &alert); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if alert.CorrelationID == nil {
		t.Fatal("expected second identical alert to correlate")
	}
}

func TestGetAlertNotFound(t *testing.T) {
	mux, _ := newTestMux(t)

	rec := doJSON(t, mux, "GET", "/api/alerts/unknown", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestAlertLifecycle(t *testing.T) {
	mux, _ := newTestMux(t)

	rec := doJSON(t, mux, "POST", "/api/alerts", createAlertBody("High CPU usage on web-01"))
	var created database.Alert
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	path := "/api/alerts/" + created.AlertID

	if rec := doJSON(t, mux, "GET", path, nil); rec.Code != http.StatusOK {
		t.Fatalf("GET expected 200, got %d", rec.Code)
	}

	rec = doJSON(t, mux, "PUT", path, map[string]interface{}{"status": "resolved"})
	if rec.Code != http.StatusOK {
		t.Fatalf("PUT expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var updated database.Alert
	if err := json.Unmarshal(rec.Body.Bytes(), &updated); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if updated.Status != database.AlertStatusResolved {
		t.Errorf("expected resolved, got %s", updated.Status)
	}

	if rec := doJSON(t, mux, "DELETE", path, nil); rec.Code != http.StatusNoContent {
		t.Fatalf("DELETE expected 204, got %d", rec.Code)
	}
	if rec := doJSON(t, mux, "DELETE", path, nil); rec.Code != http.StatusNotFound {
		t.Fatalf("second DELETE expected 404, got %d", rec.Code)
	}
}

func TestListAlertsWithFilter(t *testing.T) {
	mux, db := newTestMux(t)

	open := testhelpers.NewAlertBuilder().Build()
	resolved := testhelpers.NewAlertBuilder().WithStatus(database.AlertStatusResolved).Build()
	for _, a := range []*database.Alert{&open, &resolved} {
		if err := db.Create(a).Error; err != nil {
			t.Fatalf("failed to seed alert: %v", err)
		}
	}

	rec := doJSON(t, mux, "GET", "/api/alerts?status=open", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var alerts []database.Alert
	if err := json.Unmarshal(rec.Body.Bytes(), &alerts); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if len(alerts) != 1 || alerts[0].AlertID != open.AlertID {
		t.Errorf("filter returned wrong alerts: %v", alerts)
	}
}

func TestForceCorrelateEndpoint(t *testing.T) {
	mux, db := newTestMux(t)

	a := testhelpers.NewAlertBuilder().Build()
	b := testhelpers.NewAlertBuilder().Build()
	for _, alert := range []*database.Alert{&a, &b} {
		if err := db.Create(alert).Error; err != nil {
			t.Fatalf("failed to seed alert: %v", err)
		}
	}

	rec := doJSON(t, mux, "POST", "/api/alerts/correlate", map[string]interface{}{
		"alert_ids": []string{a.AlertID, b.AlertID},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		CorrelationID     string  `json:"correlation_id"`
		AlertCount        int     `json:"alert_count"`
		ConfidenceScore   float64 `json:"confidence_score"`
		CorrelationMethod string  `json:"correlation_method"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if resp.CorrelationMethod != "manual" || resp.ConfidenceScore != 1.0 || resp.AlertCount != 2 {
		t.Errorf("unexpected response: %+v", resp)
	}

	rec = doJSON(t, mux, "GET", "/api/alerts/correlation/"+resp.CorrelationID, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 for group members, got %d", rec.Code)
	}
}

func TestForceCorrelateRejectsSingleID(t *testing.T) {
	mux, _ := newTestMux(t)

	rec := doJSON(t, mux, "POST", "/api/alerts/correlate", map[string]interface{}{
		"alert_ids": []string{"only-one"},
	})
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", rec.Code)
	}
}

func TestForceCorrelateUnknownIDs(t *testing.T) {
	mux, _ := newTestMux(t)

	rec := doJSON(t, mux, "POST", "/api/alerts/correlate", map[string]interface{}{
		"alert_ids": []string{"ghost-1", "ghost-2"},
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 when ids resolve to fewer than two alerts, got %d", rec.Code)
	}
}

func TestCorrelationGroupsEndpoint(t *testing.T) {
	mux, db := newTestMux(t)

	a := testhelpers.NewAlertBuilder().Build()
	b := testhelpers.NewAlertBuilder().Build()
	for _, alert := range []*database.Alert{&a, &b} {
		if err := db.Create(alert).Error; err != nil {
			t.Fatalf("failed to seed alert: %v", err)
		}
	}
	doJSON(t, mux, "POST", "/api/alerts/correlate", map[string]interface{}{
		"alert_ids": []string{a.AlertID, b.AlertID},
	})

	rec := doJSON(t, mux, "GET", "/api/correlations/groups", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var resp struct {
		Groups []interface{} `json:"groups"`
		Total  int           `json:"total"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if resp.Total != 1 {
		t.Errorf("expected 1 group, got %d", resp.Total)
	}
}

func TestAlertStatsEndpoint(t *testing.T) {
	mux, _ := newTestMux(t)

	doJSON(t, mux, "POST", "/api/alerts", createAlertBody("High CPU usage on web-01"))

	rec := doJSON(t, mux, "GET", "/api/alerts/stats/summary", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var stats services.AlertStatistics
	if err := json.Unmarshal(rec.Body.Bytes(), &stats); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if stats.TotalAlerts != 1 {
		t.Errorf("expected 1 total alert, got %d", stats.TotalAlerts)
	}
}

func TestGenerateRCAEndpoint(t *testing.T) {
	mux, db := newTestMux(t)

	for i := 0; i < 2; i++ {
		alert := testhelpers.NewAlertBuilder().WithCorrelation("corr-1", 0.9).Build()
		if err := db.Create(&alert).Error; err != nil {
			t.Fatalf("failed to seed alert: %v", err)
		}
	}

	rec := doJSON(t, mux, "POST", "/api/rca/generate", map[string]interface{}{
		"correlation_id": "corr-1",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp services.GenerateRCAResult
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if resp.Status != "in_progress" {
		t.Errorf("expected in_progress, got %s", resp.Status)
	}

	// Wait for the background pipeline so the test database is not torn
	// down underneath it.
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		get := doJSON(t, mux, "GET", "/api/rca/"+resp.RCAID, nil)
		var rca database.RCA
		if err := json.Unmarshal(get.Body.Bytes(), &rca); err == nil && rca.Status != database.RCAStatusInProgress {
			if rca.RootCause != "Pool exhaustion" {
				t.Errorf("unexpected root cause: %q", rca.RootCause)
			}
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatal("RCA generation did not complete")
}

func TestGenerateRCAWithoutAlerts(t *testing.T) {
	mux, _ := newTestMux(t)

	rec := doJSON(t, mux, "POST", "/api/rca/generate", map[string]interface{}{
		"correlation_id": "missing",
	})
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestRCAStatusEndpointValidation(t *testing.T) {
	mux, db := newTestMux(t)

	rca := testhelpers.NewRCABuilder().Build()
	if err := db.Create(&rca).Error; err != nil {
		t.Fatalf("failed to seed RCA: %v", err)
	}

	rec := doJSON(t, mux, "PUT", "/api/rca/"+rca.RCAID+"/status", map[string]interface{}{
		"status": "archived",
	})
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 for invalid status, got %d", rec.Code)
	}

	rec = doJSON(t, mux, "PUT", "/api/rca/"+rca.RCAID+"/status", map[string]interface{}{
		"status": "closed",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestRCAFeedbackEndpoint(t *testing.T) {
	mux, db := newTestMux(t)

	rca := testhelpers.NewRCABuilder().Build()
	if err := db.Create(&rca).Error; err != nil {
		t.Fatalf("failed to seed RCA: %v", err)
	}

	rec := doJSON(t, mux, "POST", fmt.Sprintf("/api/rca/%s/feedback", rca.RCAID), map[string]interface{}{
		"is_accurate":     true,
		"accuracy_rating": 0.9,
		"feedback_text":   "Spot on",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestHealthEndpoint(t *testing.T) {
	mux, _ := newTestMux(t)

	rec := doJSON(t, mux, "GET", "/health", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var resp map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if resp["status"] != "healthy" {
		t.Errorf("expected healthy, got %q", resp["status"])
	}
}

func TestDetailedHealthDegradesWithoutVectorStore(t *testing.T) {
	mux, _ := newTestMux(t)

	rec := doJSON(t, mux, "GET", "/health/detailed", nil)
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 without a vector store, got %d", rec.Code)
	}

	var resp struct {
		Status     string                     `json:"status"`
		Components map[string]json.RawMessage `json:"components"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if resp.Status != "degraded" {
		t.Errorf("expected degraded, got %q", resp.Status)
	}
	for _, component := range []string{"database", "llm", "vector_store"} {
		if _, ok := resp.Components[component]; !ok {
			t.Errorf("missing component %s", component)
		}
	}
}

func TestMetricsEndpoint(t *testing.T) {
	mux, _ := newTestMux(t)

	doJSON(t, mux, "POST", "/api/alerts", createAlertBody("High CPU usage on web-01"))

	rec := doJSON(t, mux, "GET", "/metrics", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !bytes.Contains(rec.Body.Bytes(), []byte("alertkite_alerts_ingested_total")) {
		t.Error("expected alertkite metrics in exposition")
	}
}
