package alert

// Config defines a webhook alert destination.
type Config struct {
	URL     string            `yaml:"url"     json:"url"`
	Format  string            `yaml:"format"  json:"format"` // "generic", "slack"
	Events  []string          `yaml:"events"  json:"events"` // ["ESCALATED", "TASK_FAILED"]; empty = all
	Headers map[string]string `yaml:"headers" json:"headers"`
}

// Notification is the payload sent to webhook endpoints.
type Notification struct {
	Timestamp     string `json:"timestamp"`
	EventType     string `json:"event_type"`
	RequestID     string `json:"request_id,omitempty"`
	CorrelationID string `json:"correlation_id,omitempty"`
	Agent         string `json:"agent"`
	Reason        string `json:"reason"`
}
