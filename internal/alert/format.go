package alert

import (
	"encoding/json"
	"fmt"
)

// FormatPayload builds the webhook body for the given format.
func FormatPayload(format string, n Notification) ([]byte, error) {
	switch format {
	case "slack":
		return formatSlack(n)
	default:
		return formatGeneric(n)
	}
}

func formatGeneric(n Notification) ([]byte, error) {
	return json.Marshal(n)
}

func formatSlack(n Notification) ([]byte, error) {
	payload := map[string]any{
		"blocks": []any{
			map[string]any{
				"type": "header",
				"text": map[string]any{
					"type": "plain_text",
					"text": fmt.Sprintf("agentbus: %s", n.EventType),
				},
			},
			map[string]any{
				"type": "section",
				"fields": []any{
					map[string]any{"type": "mrkdwn", "text": fmt.Sprintf("*Agent:* %s", n.Agent)},
					map[string]any{"type": "mrkdwn", "text": fmt.Sprintf("*Request:* %s", n.RequestID)},
					map[string]any{"type": "mrkdwn", "text": fmt.Sprintf("*Correlation:* %s", n.CorrelationID)},
					map[string]any{"type": "mrkdwn", "text": fmt.Sprintf("*Reason:* %s", n.Reason)},
				},
			},
		},
	}
	return json.Marshal(payload)
}
