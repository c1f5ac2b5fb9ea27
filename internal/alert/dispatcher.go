package alert

// Dispatcher fans out notifications to matching webhook configurations.
type Dispatcher struct {
	configs []Config
}

// NewDispatcher creates a Dispatcher from webhook configurations.
// Returns nil if configs is empty (callers should nil-check).
func NewDispatcher(configs []Config) *Dispatcher {
	if len(configs) == 0 {
		return nil
	}
	return &Dispatcher{configs: configs}
}

// Dispatch sends the notification to all webhooks whose Events list
// matches its event type (an empty list matches everything).
// Fires goroutines — does not block the caller.
func (d *Dispatcher) Dispatch(n Notification) {
	for _, cfg := range d.configs {
		if matches(cfg.Events, n) {
			go Send(cfg, n)
		}
	}
}

func matches(events []string, n Notification) bool {
	if len(events) == 0 {
		return true
	}
	for _, e := range events {
		if e == n.EventType {
			return true
		}
	}
	return false
}
