package vectorstore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/alertkite/alertkite/internal/database"
)

const collectionName = "rca_collection"

// Client talks to a Chroma-compatible vector database over HTTP. The store
// is an enrichment layer: every method degrades gracefully so RCA
// generation keeps working when the vector database is down.
type Client struct {
	baseURL    string
	httpClient *http.Client

	mu           sync.Mutex
	collectionID string
}

// SimilarCase is one historical RCA document returned by a similarity
// search
type SimilarCase struct {
	Document   string                 `json:"document"`
	Similarity float64                `json:"similarity"`
	Metadata   map[string]interface{} `json:"metadata"`
}

// CollectionStats summarizes the stored RCA corpus
type CollectionStats struct {
	TotalDocuments int    `json:"total_documents"`
	CollectionName string `json:"collection_name"`
}

// NewClient creates a vector store client for the given base URL
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

// BuildAlertPatterns converts alerts into the short pattern strings used
// both for storage metadata and similarity queries
func BuildAlertPatterns(alerts []database.Alert) []string {
	patterns := make([]string, 0, len(alerts))
	for _, alert := range alerts {
		patterns = append(patterns, fmt.Sprintf("%s %s %s %s",
			alert.Source, alert.AlertType, alert.Severity, alert.Title))
	}
	return patterns
}

// StoreRCA indexes a completed analysis for future similarity lookups.
// Returns false on any failure; storage is never required for an RCA to
// complete.
func (c *Client) StoreRCA(ctx context.Context, rcaID string, rca *database.RCA, alertPatterns []string) bool {
	collectionID, err := c.ensureCollection(ctx)
	if err != nil {
		log.Printf("Failed to store RCA in vector database: %v", err)
		return false
	}

	document := strings.Join([]string{
		"Root Cause: " + rca.RootCause,
		"Solution: " + rca.Solution,
		"Impact: " + rca.ImpactAnalysis,
		"Alert Patterns: " + strings.Join(alertPatterns, " | "),
	}, " ")

	body := map[string]interface{}{
		"ids":       []string{uuid.New().String()},
		"documents": []string{document},
		"metadatas": []map[string]interface{}{{
			"rca_id":      rcaID,
			"timestamp":   time.Now().UTC().Format(time.RFC3339),
			"alert_count": len(alertPatterns),
			"status":      string(rca.Status),
		}},
	}

	path := fmt.Sprintf("/api/v1/collections/%s/add", collectionID)
	if err := c.post(ctx, path, body, nil); err != nil {
		log.Printf("Failed to store RCA in vector database: %v", err)
		return false
	}

	log.Printf("RCA %s stored in vector database", rcaID)
	return true
}

// SearchSimilar finds historical RCA documents matching the alert
// patterns. Returns an empty slice on any failure.
func (c *Client) SearchSimilar(ctx context.Context, alertPatterns []string, limit int) []SimilarCase {
	collectionID, err := c.ensureCollection(ctx)
	if err != nil {
		log.Printf("Failed to search similar RCA cases: %v", err)
		return nil
	}

	body := map[string]interface{}{
		"query_texts": []string{"Alert Patterns: " + strings.Join(alertPatterns, " | ")},
		"n_results":   limit,
		"include":     []string{"documents", "metadatas", "distances"},
	}

	var result struct {
		Documents [][]string                 `json:"documents"`
		Metadatas [][]map[string]interface{} `json:"metadatas"`
		Distances [][]float64                `json:"distances"`
	}
	path := fmt.Sprintf("/api/v1/collections/%s/query", collectionID)
	if err := c.post(ctx, path, body, &result); err != nil {
		log.Printf("Failed to search similar RCA cases: %v", err)
		return nil
	}

	if len(result.Documents) == 0 {
		return nil
	}

	cases := make([]SimilarCase, 0, len(result.Documents[0]))
	for i, doc := range result.Documents[0] {
		similar := SimilarCase{Document: doc}
		if len(result.Distances) > 0 && i < len(result.Distances[0]) {
			// Chroma reports distances; flip to a similarity.
			similar.Similarity = 1 - result.Distances[0][i]
		}
		if len(result.Metadatas) > 0 && i < len(result.Metadatas[0]) {
			similar.Metadata = result.Metadatas[0][i]
		}
		cases = append(cases, similar)
	}

	log.Printf("Found %d similar RCA cases", len(cases))
	return cases
}

// Stats returns document counts for the RCA collection
func (c *Client) Stats(ctx context.Context) CollectionStats {
	collectionID, err := c.ensureCollection(ctx)
	if err != nil {
		return CollectionStats{CollectionName: "unknown"}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		fmt.Sprintf("%s/api/v1/collections/%s/count", c.baseURL, collectionID), nil)
	if err != nil {
		return CollectionStats{CollectionName: collectionName}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		log.Printf("Failed to get collection stats: %v", err)
		return CollectionStats{CollectionName: collectionName}
	}
	defer resp.Body.Close()

	var count int
	if err := json.NewDecoder(resp.Body).Decode(&count); err != nil {
		return CollectionStats{CollectionName: collectionName}
	}

	return CollectionStats{TotalDocuments: count, CollectionName: collectionName}
}

// Healthy reports whether the vector database answers its heartbeat
func (c *Client) Healthy(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/v1/heartbeat", nil)
	if err != nil {
		return false
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

// ensureCollection resolves the RCA collection id, creating the collection
// on first use
func (c *Client) ensureCollection(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.collectionID != "" {
		return c.collectionID, nil
	}

	body := map[string]interface{}{
		"name":          collectionName,
		"get_or_create": true,
		"metadata": map[string]interface{}{
			"description": "Historical RCA data for similarity matching",
		},
	}

	var result struct {
		ID string `json:"id"`
	}
	if err := c.post(ctx, "/api/v1/collections", body, &result); err != nil {
		return "", fmt.Errorf("failed to initialize vector store collection: %w", err)
	}
	if result.ID == "" {
		return "", fmt.Errorf("vector store returned empty collection id")
	}

	c.collectionID = result.ID
	log.Printf("Vector store initialized successfully")
	return c.collectionID, nil
}

func (c *Client) post(ctx context.Context, path string, body interface{}, out interface{}) error {
	jsonBody, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewBuffer(jsonBody))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("vector store request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read vector store response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("vector store returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(respBody)))
	}

	if out != nil {
		if err := json.Unmarshal(respBody, out); err != nil {
			return fmt.Errorf("failed to parse vector store response: %w", err)
		}
	}
	return nil
}
