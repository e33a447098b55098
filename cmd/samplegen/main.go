package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// scenarioFile is the root of a YAML scenario definition
type scenarioFile struct {
	Scenarios []scenario `yaml:"scenarios"`
}

// scenario is one named burst of related alerts
type scenario struct {
	Name     string        `yaml:"name"`
	Repeat   int           `yaml:"repeat"`
	Interval time.Duration `yaml:"interval"`
	Alerts   []alertSpec   `yaml:"alerts"`
}

// alertSpec mirrors the create-alert request body
type alertSpec struct {
	Source      string                 `yaml:"source" json:"source"`
	Severity    string                 `yaml:"severity" json:"severity"`
	AlertType   string                 `yaml:"alert_type" json:"alert_type"`
	Title       string                 `yaml:"title" json:"title"`
	Description string                 `yaml:"description,omitempty" json:"description,omitempty"`
	Message     string                 `yaml:"message" json:"message"`
	RawData     map[string]interface{} `yaml:"raw_data,omitempty" json:"raw_data,omitempty"`
}

func main() {
	var (
		scenarioPath = flag.String("scenario", "scenarios.yaml", "path to the YAML scenario file")
		baseURL      = flag.String("url", "http://localhost:8000", "base URL of the alertkite API")
		only         = flag.String("only", "", "run only the named scenario")
	)
	flag.Parse()

	data, err := os.ReadFile(*scenarioPath)
	if err != nil {
		log.Fatalf("Failed to read scenario file: %v", err)
	}

	var file scenarioFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		log.Fatalf("Failed to parse scenario file: %v", err)
	}
	if len(file.Scenarios) == 0 {
		log.Fatalf("Scenario file %s defines no scenarios", *scenarioPath)
	}

	client := &http.Client{Timeout: 30 * time.Second}

	for _, sc := range file.Scenarios {
		if *only != "" && sc.Name != *only {
			continue
		}
		if err := runScenario(client, *baseURL, sc); err != nil {
			log.Fatalf("Scenario %s failed: %v", sc.Name, err)
		}
	}
}

func runScenario(client *http.Client, baseURL string, sc scenario) error {
	repeat := sc.Repeat
	if repeat <= 0 {
		repeat = 1
	}

	log.Printf("Running scenario %s: %d alerts x %d rounds", sc.Name, len(sc.Alerts), repeat)

	for round := 0; round < repeat; round++ {
		for _, alert := range sc.Alerts {
			correlationID, err := postAlert(client, baseURL, alert)
			if err != nil {
				return err
			}
			if correlationID != "" {
				log.Printf("  %s -> correlated into %s", alert.Title, correlationID)
			} else {
				log.Printf("  %s -> uncorrelated", alert.Title)
			}

			if sc.Interval > 0 {
				time.Sleep(sc.Interval)
			}
		}
	}
	return nil
}

func postAlert(client *http.Client, baseURL string, alert alertSpec) (string, error) {
	body, err := json.Marshal(alert)
	if err != nil {
		return "", fmt.Errorf("failed to marshal alert: %w", err)
	}

	resp, err := client.Post(baseURL+"/api/alerts", "application/json", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to post alert: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusCreated {
		return "", fmt.Errorf("unexpected status %d: %s", resp.StatusCode, respBody)
	}

	var created struct {
		CorrelationID *string `json:"correlation_id"`
	}
	if err := json.Unmarshal(respBody, &created); err != nil {
		return "", fmt.Errorf("failed to parse response: %w", err)
	}
	if created.CorrelationID != nil {
		return *created.CorrelationID, nil
	}
	return "", nil
}
