package vectorstore

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/alertkite/alertkite/internal/database"
)

// newChromaStub implements the minimal collection endpoints used by the
// client
func newChromaStub(t *testing.T) (*httptest.Server, *[]string) {
	t.Helper()
	var storedDocs []string

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/collections", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]interface{}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("bad collections request: %v", err)
		}
		if body["name"] != "rca_collection" {
			t.Errorf("unexpected collection name: %v", body["name"])
		}
		json.NewEncoder(w).Encode(map[string]string{"id": "col-1"})
	})
	mux.HandleFunc("POST /api/v1/collections/col-1/add", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Documents []string `json:"documents"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("bad add request: %v", err)
		}
		storedDocs = append(storedDocs, body.Documents...)
		w.WriteHeader(http.StatusCreated)
	})
	mux.HandleFunc("POST /api/v1/collections/col-1/query", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"documents": [][]string{{"Root Cause: pool exhaustion", "Root Cause: disk full"}},
			"metadatas": [][]map[string]interface{}{{{"rca_id": "r-1"}, {"rca_id": "r-2"}}},
			"distances": [][]float64{{0.1, 0.4}},
		})
	})
	mux.HandleFunc("GET /api/v1/collections/col-1/count", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(7)
	})
	mux.HandleFunc("GET /api/v1/heartbeat", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	return httptest.NewServer(mux), &storedDocs
}

func TestStoreRCA(t *testing.T) {
	server, storedDocs := newChromaStub(t)
	defer server.Close()

	client := NewClient(server.URL)
	rca := &database.RCA{
		Status:         database.RCAStatusOpen,
		RootCause:      "Pool exhaustion",
		Solution:       "Resize pool",
		ImpactAnalysis: "API errors",
	}

	ok := client.StoreRCA(context.Background(), "r-1", rca, []string{"prometheus metrics high High CPU"})
	if !ok {
		t.Fatal("StoreRCA should succeed against a healthy server")
	}
	if len(*storedDocs) != 1 {
		t.Fatalf("expected 1 stored document, got %d", len(*storedDocs))
	}
	doc := (*storedDocs)[0]
	for _, want := range []string{"Root Cause: Pool exhaustion", "Solution: Resize pool", "Alert Patterns:"} {
		if !strings.Contains(doc, want) {
			t.Errorf("document missing %q: %s", want, doc)
		}
	}
}

func TestStoreRCAUnreachable(t *testing.T) {
	client := NewClient("http://localhost:1")
	rca := &database.RCA{Status: database.RCAStatusOpen}

	if client.StoreRCA(context.Background(), "r-1", rca, nil) {
		t.Error("StoreRCA must report failure when the store is unreachable")
	}
}

func TestSearchSimilar(t *testing.T) {
	server, _ := newChromaStub(t)
	defer server.Close()

	client := NewClient(server.URL)
	cases := client.SearchSimilar(context.Background(), []string{"prometheus metrics high High CPU"}, 5)

	if len(cases) != 2 {
		t.Fatalf("expected 2 cases, got %d", len(cases))
	}
	if cases[0].Similarity != 0.9 {
		t.Errorf("distance 0.1 must become similarity 0.9, got %f", cases[0].Similarity)
	}
	if cases[0].Metadata["rca_id"] != "r-1" {
		t.Errorf("unexpected metadata: %v", cases[0].Metadata)
	}
}

func TestSearchSimilarUnreachable(t *testing.T) {
	client := NewClient("http://localhost:1")
	if cases := client.SearchSimilar(context.Background(), []string{"x"}, 5); len(cases) != 0 {
		t.Errorf("unreachable store must return no cases, got %d", len(cases))
	}
}

func TestStats(t *testing.T) {
	server, _ := newChromaStub(t)
	defer server.Close()

	stats := NewClient(server.URL).Stats(context.Background())
	if stats.TotalDocuments != 7 {
		t.Errorf("expected 7 documents, got %d", stats.TotalDocuments)
	}
	if stats.CollectionName != "rca_collection" {
		t.Errorf("unexpected collection name: %s", stats.CollectionName)
	}
}

func TestHealthy(t *testing.T) {
	server, _ := newChromaStub(t)
	defer server.Close()

	if !NewClient(server.URL).Healthy(context.Background()) {
		t.Error("healthy server must report healthy")
	}
	if NewClient("http://localhost:1").Healthy(context.Background()) {
		t.Error("unreachable server must report unhealthy")
	}
}

func TestBuildAlertPatterns(t *testing.T) {
	alerts := []database.Alert{{
		Source:    "prometheus",
		AlertType: database.AlertTypeMetrics,
		Severity:  database.AlertSeverityHigh,
		Title:     "High CPU",
	}}

	patterns := BuildAlertPatterns(alerts)
	if len(patterns) != 1 {
		t.Fatalf("expected 1 pattern, got %d", len(patterns))
	}
	if patterns[0] != "prometheus metrics high High CPU" {
		t.Errorf("unexpected pattern: %q", patterns[0])
	}
}
