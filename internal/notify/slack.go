package notify

import (
	"fmt"
	"log"

	"github.com/slack-go/slack"

	"github.com/alertkite/alertkite/internal/correlation"
	"github.com/alertkite/alertkite/internal/database"
)

// Notifier delivers out-of-band notifications for correlation and RCA
// events. Delivery is best-effort; failures are logged, never surfaced.
type Notifier interface {
	NotifyCorrelation(alert *database.Alert, result *correlation.Result)
	NotifyRCACompleted(rca *database.RCA)
}

// SlackNotifier posts notifications to a Slack channel
type SlackNotifier struct {
	client  *slack.Client
	channel string
}

// NewSlackNotifier creates a Slack notifier. Returns nil when no bot token
// is configured, which callers treat as notifications disabled.
func NewSlackNotifier(botToken, channel string) *SlackNotifier {
	if botToken == "" {
		log.Printf("SlackNotifier: no bot token configured, notifications disabled")
		return nil
	}
	return &SlackNotifier{
		client:  slack.New(botToken),
		channel: channel,
	}
}

// NotifyCorrelation announces that an alert joined or created a
// correlation group
func (n *SlackNotifier) NotifyCorrelation(alert *database.Alert, result *correlation.Result) {
	emoji := database.GetSeverityEmoji(alert.Severity)
	attachment := slack.Attachment{
		Color: severityColor(alert.Severity),
		Title: fmt.Sprintf("%s Alert correlated: %s", emoji, alert.Title),
		Fields: []slack.AttachmentField{
			{Title: "Correlation ID", Value: result.CorrelationID, Short: true},
			{Title: "Alerts in group", Value: fmt.Sprintf("%d", result.AlertCount), Short: true},
			{Title: "Confidence", Value: fmt.Sprintf("%.2f", result.ConfidenceScore), Short: true},
			{Title: "Source", Value: alert.Source, Short: true},
		},
	}

	_, _, err := n.client.PostMessage(n.channel, slack.MsgOptionAttachments(attachment))
	if err != nil {
		log.Printf("SlackNotifier: failed to post correlation message: %v", err)
	}
}

// NotifyRCACompleted announces a finished root cause analysis
func (n *SlackNotifier) NotifyRCACompleted(rca *database.RCA) {
	attachment := slack.Attachment{
		Color: "#36a64f",
		Title: fmt.Sprintf("RCA completed: %s", rca.Title),
		Text:  rca.Summary,
		Fields: []slack.AttachmentField{
			{Title: "Correlation ID", Value: rca.CorrelationID, Short: true},
			{Title: "Confidence", Value: fmt.Sprintf("%.2f", rca.ConfidenceScore), Short: true},
			{Title: "Root cause", Value: rca.RootCause, Short: false},
		},
	}

	_, _, err := n.client.PostMessage(n.channel, slack.MsgOptionAttachments(attachment))
	if err != nil {
		log.Printf("SlackNotifier: failed to post RCA message: %v", err)
	}
}

func severityColor(severity database.AlertSeverity) string {
	switch severity {
	case database.AlertSeverityCritical:
		return "#d40e0d"
	case database.AlertSeverityHigh:
		return "#ff9000"
	case database.AlertSeverityMedium:
		return "#ffd700"
	default:
		return "#439fe0"
	}
}
