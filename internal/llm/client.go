package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/alertkite/alertkite/internal/database"
)

// Client talks to an Ollama server for root cause analysis generation
type Client struct {
	host       string
	model      string
	httpClient *http.Client
}

// NewClient creates an Ollama client. The timeout bounds a single chat
// completion, not the whole RCA pipeline.
func NewClient(host, model string, timeout time.Duration) *Client {
	return &Client{
		host:  strings.TrimRight(host, "/"),
		model: model,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Ollama API request/response structures
type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
	Stream   bool          `json:"stream"`
	Options  chatOptions   `json:"options"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatOptions struct {
	Temperature float64 `json:"temperature"`
	TopP        float64 `json:"top_p,omitempty"`
	NumPredict  int     `json:"num_predict"`
}

type chatResponse struct {
	Message chatMessage `json:"message"`
	Error   string      `json:"error"`
}

// HistoricalCase is one similar past incident used as analysis context
type HistoricalCase struct {
	Document   string  `json:"document"`
	Similarity float64 `json:"similarity"`
}

// Analysis is the structured result of one RCA generation. Every field is
// populated, falling back to defaults when the model response is unusable.
type Analysis struct {
	RootCause                 string   `json:"root_cause"`
	Solution                  string   `json:"solution"`
	ImpactAnalysis            string   `json:"impact_analysis"`
	ConfidenceScore           float64  `json:"confidence_score"`
	AffectedSystems           []string `json:"affected_systems"`
	BusinessImpact            string   `json:"business_impact"`
	EstimatedResolutionTime   int      `json:"estimated_resolution_time"`
	PreventionMeasures        string   `json:"prevention_measures"`
	MonitoringRecommendations string   `json:"monitoring_recommendations"`
	UrgencyLevel              string   `json:"urgency_level"`
	RawResponse               string   `json:"llm_raw_response"`
	GeneratedAt               string   `json:"generated_at"`
	ParseError                string   `json:"error,omitempty"`
}

// JSONB converts the analysis into the shape stored on the RCA record
func (a *Analysis) JSONB() database.JSONB {
	data, err := json.Marshal(a)
	if err != nil {
		return database.JSONB{"error": "failed to encode analysis"}
	}
	var out database.JSONB
	if err := json.Unmarshal(data, &out); err != nil {
		return database.JSONB{"error": "failed to encode analysis"}
	}
	return out
}

// GenerateRCA asks the model for a structured root cause analysis of the
// given correlated alerts. Historical cases, when present, are appended to
// the prompt as prior incidents.
func (c *Client) GenerateRCA(ctx context.Context, alerts []database.Alert, historical []HistoricalCase) (*Analysis, error) {
	prompt := buildRCAPrompt(prepareAlertContext(alerts), historical)

	content, err := c.chat(ctx, []chatMessage{
		{Role: "system", Content: "You are an expert IT operations analyst. Provide responses in valid JSON format only."},
		{Role: "user", Content: prompt},
	}, chatOptions{Temperature: 0.3, TopP: 0.9, NumPredict: 2048})
	if err != nil {
		return nil, fmt.Errorf("failed to generate analysis: %w", err)
	}

	log.Printf("RCA analysis generated for %d alerts", len(alerts))
	return parseAnalysis(content), nil
}

// GenerateSummary produces a short executive summary of a finished
// analysis. Failures degrade to a fixed string, never an error.
func (c *Client) GenerateSummary(ctx context.Context, analysis *Analysis) string {
	prompt := fmt.Sprintf(`Provide a concise executive summary (2-3 sentences) of this RCA analysis:

Root Cause: %s
Solution: %s
Impact: %s
Business Impact: %s

Make it suitable for management reporting.`,
		analysis.RootCause, analysis.Solution, analysis.ImpactAnalysis, analysis.BusinessImpact)

	content, err := c.chat(ctx, []chatMessage{
		{Role: "user", Content: prompt},
	}, chatOptions{Temperature: 0.3, NumPredict: 256})
	if err != nil {
		log.Printf("Failed to generate summary: %v", err)
		return "Summary generation failed"
	}
	return strings.TrimSpace(content)
}

// TestConnection checks that the Ollama server is reachable and the
// configured model is pulled
func (c *Client) TestConnection(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.host+"/api/tags", nil)
	if err != nil {
		return false
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		log.Printf("Failed to connect to Ollama: %v", err)
		return false
	}
	defer resp.Body.Close()

	var tags struct {
		Models []struct {
			Name string `json:"name"`
		} `json:"models"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&tags); err != nil {
		log.Printf("Failed to parse Ollama model list: %v", err)
		return false
	}

	available := make([]string, 0, len(tags.Models))
	for _, m := range tags.Models {
		available = append(available, m.Name)
		if m.Name == c.model || strings.TrimSuffix(m.Name, ":latest") == c.model {
			log.Printf("Successfully connected to Ollama. Model %s is available.", c.model)
			return true
		}
	}

	log.Printf("Model %s not found. Available models: %v", c.model, available)
	return false
}

func (c *Client) chat(ctx context.Context, messages []chatMessage, options chatOptions) (string, error) {
	reqBody := chatRequest{
		Model:    c.model,
		Messages: messages,
		Stream:   false,
		Options:  options,
	}

	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.host+"/api/chat", bytes.NewBuffer(jsonBody))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("ollama request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read ollama response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("ollama returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var chatResp chatResponse
	if err := json.Unmarshal(body, &chatResp); err != nil {
		return "", fmt.Errorf("failed to parse ollama response: %w", err)
	}
	if chatResp.Error != "" {
		return "", fmt.Errorf("ollama error: %s", chatResp.Error)
	}

	return chatResp.Message.Content, nil
}

func prepareAlertContext(alerts []database.Alert) string {
	var b strings.Builder
	for i, alert := range alerts {
		description := alert.Description
		if description == "" {
			description = "N/A"
		}
		timestamp := ""
		if alert.AlertTimestamp != nil {
			timestamp = alert.AlertTimestamp.UTC().Format(time.RFC3339)
		}

		fmt.Fprintf(&b, `
Alert %d:
- ID: %s
- Source: %s
- Severity: %s
- Type: %s
- Title: %s
- Description: %s
- Message: %s
- Timestamp: %s
`, i+1, alert.AlertID, alert.Source, alert.Severity, alert.AlertType,
			alert.Title, description, alert.Message, timestamp)

		if len(alert.RawData) > 0 {
			if raw, err := json.MarshalIndent(alert.RawData, "", "  "); err == nil {
				fmt.Fprintf(&b, "- Raw Data: %s\n", raw)
			}
		}
		b.WriteString("\n")
	}
	return b.String()
}

func buildRCAPrompt(alertContext string, historical []HistoricalCase) string {
	historicalText := ""
	if len(historical) > 0 {
		var b strings.Builder
		b.WriteString("\n\nHistorical Similar Cases:\n")
		for i, c := range historical {
			fmt.Fprintf(&b, "Case %d (Similarity: %.2f):\n%s\n\n", i+1, c.Similarity, c.Document)
		}
		historicalText = b.String()
	}

	return fmt.Sprintf(`You are an expert IT operations analyst specializing in root cause analysis.
Analyze the following correlated alerts and provide a comprehensive root cause analysis.

CORRELATED ALERTS:
%s

%s

Please provide a detailed analysis in the following JSON format:
{
    "root_cause": "Detailed explanation of the root cause",
    "solution": "Step-by-step solution to resolve the issue",
    "impact_analysis": "Analysis of the impact on systems and business",
    "confidence_score": 0.85,
    "affected_systems": ["system1", "system2"],
    "business_impact": "high/medium/low",
    "estimated_resolution_time": 60,
    "prevention_measures": "Recommendations to prevent future occurrences",
    "monitoring_recommendations": "Additional monitoring suggestions",
    "urgency_level": "critical/high/medium/low"
}

Focus on:
1. Identifying the underlying cause, not just symptoms
2. Providing actionable solutions
3. Considering system dependencies and interactions
4. Assessing business impact accurately
5. Learning from historical similar cases if provided

Response must be valid JSON only, no additional text.`, alertContext, historicalText)
}

// parseAnalysis extracts the structured analysis from a model response.
// The response may wrap the JSON object in prose; everything between the
// first '{' and the last '}' is treated as the payload. An unparseable
// response yields the low-confidence fallback analysis.
func parseAnalysis(text string) *Analysis {
	cleaned := strings.TrimSpace(text)

	jsonText := cleaned
	start := strings.Index(cleaned, "{")
	end := strings.LastIndex(cleaned, "}")
	if start != -1 && end != -1 && end > start {
		jsonText = cleaned[start : end+1]
	}

	var raw struct {
		RootCause                 *string         `json:"root_cause"`
		Solution                  *string         `json:"solution"`
		ImpactAnalysis            *string         `json:"impact_analysis"`
		ConfidenceScore           *float64        `json:"confidence_score"`
		AffectedSystems           []string        `json:"affected_systems"`
		BusinessImpact            *string         `json:"business_impact"`
		EstimatedResolutionTime   *int            `json:"estimated_resolution_time"`
		PreventionMeasures        *string         `json:"prevention_measures"`
		MonitoringRecommendations *string         `json:"monitoring_recommendations"`
		UrgencyLevel              *string         `json:"urgency_level"`
	}
	if err := json.Unmarshal([]byte(jsonText), &raw); err != nil {
		log.Printf("Failed to parse JSON from LLM response: %v", err)
		return fallbackAnalysis(text)
	}

	analysis := &Analysis{
		RootCause:                 stringOr(raw.RootCause, "Unable to determine root cause"),
		Solution:                  stringOr(raw.Solution, "Further investigation required"),
		ImpactAnalysis:            stringOr(raw.ImpactAnalysis, "Impact assessment pending"),
		ConfidenceScore:           clamp01(floatOr(raw.ConfidenceScore, 0.5)),
		AffectedSystems:           raw.AffectedSystems,
		BusinessImpact:            stringOr(raw.BusinessImpact, "medium"),
		EstimatedResolutionTime:   intOr(raw.EstimatedResolutionTime, 60),
		PreventionMeasures:        stringOr(raw.PreventionMeasures, ""),
		MonitoringRecommendations: stringOr(raw.MonitoringRecommendations, ""),
		UrgencyLevel:              stringOr(raw.UrgencyLevel, "medium"),
		RawResponse:               text,
		GeneratedAt:               time.Now().UTC().Format(time.RFC3339),
	}
	if analysis.AffectedSystems == nil {
		analysis.AffectedSystems = []string{}
	}
	return analysis
}

func fallbackAnalysis(rawResponse string) *Analysis {
	return &Analysis{
		RootCause:                 "Failed to parse LLM analysis",
		Solution:                  "Manual analysis required",
		ImpactAnalysis:            "Unable to assess impact automatically",
		ConfidenceScore:           0.1,
		AffectedSystems:           []string{},
		BusinessImpact:            "unknown",
		EstimatedResolutionTime:   120,
		PreventionMeasures:        "Review alert correlation and analysis process",
		MonitoringRecommendations: "Implement better monitoring for similar issues",
		UrgencyLevel:              "medium",
		RawResponse:               rawResponse,
		GeneratedAt:               time.Now().UTC().Format(time.RFC3339),
		ParseError:                "JSON parsing failed",
	}
}

func stringOr(v *string, def string) string {
	if v == nil {
		return def
	}
	return *v
}

func floatOr(v *float64, def float64) float64 {
	if v == nil {
		return def
	}
	return *v
}

func intOr(v *int, def int) int {
	if v == nil {
		return def
	}
	return *v
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
