package correlation

import (
	"fmt"

	"github.com/alertkite/alertkite/internal/database"
)

// Features is a flat categorical+text projection of an alert, used only for
// similarity comparison. It is computed fresh per comparison and never
// persisted.
type Features map[string]string

// textFields are concatenated into the document used for the text sub-score.
var textFields = []string{"title", "description", "message"}

// ExtractFeatures projects an alert into a comparable feature mapping.
// Missing raw_data or missing type-specific keys degrade to empty strings;
// extraction never fails.
func ExtractFeatures(alert *database.Alert) Features {
	features := Features{
		"source":      alert.Source,
		"severity":    string(alert.Severity),
		"alert_type":  string(alert.AlertType),
		"title":       alert.Title,
		"description": alert.Description,
		"message":     alert.Message,
	}

	if alert.RawData != nil {
		switch alert.AlertType {
		case database.AlertTypeLogs:
			features["log_level"] = rawString(alert.RawData, "level")
			features["service"] = rawString(alert.RawData, "service")
		case database.AlertTypeMetrics:
			features["metric_name"] = rawString(alert.RawData, "metric")
			features["threshold"] = rawString(alert.RawData, "threshold")
		case database.AlertTypeTraces:
			features["trace_service"] = rawString(alert.RawData, "service")
			features["operation"] = rawString(alert.RawData, "operation")
		}

		features["host"] = rawString(alert.RawData, "host")
		features["environment"] = rawString(alert.RawData, "environment")
	}

	return features
}

// rawString reads a raw_data value as a string, casting non-string values
func rawString(data database.JSONB, key string) string {
	v, ok := data[key]
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}
