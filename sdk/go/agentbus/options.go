package agentbus

import "time"

// Option configures a Client at creation time.
type Option func(*clientConfig)

type clientConfig struct {
	agentID      string
	busPath      string
	hitlDir      string
	configPath   string
	pollInterval time.Duration
	waitTimeout  time.Duration
}

// WithAgentID sets the identity stamped on published events.
func WithAgentID(id string) Option {
	return func(c *clientConfig) { c.agentID = id }
}

// WithBusPath sets the path to the durable event log.
func WithBusPath(path string) Option {
	return func(c *clientConfig) { c.busPath = path }
}

// WithHITLDir sets the approval request store directory.
func WithHITLDir(dir string) Option {
	return func(c *clientConfig) { c.hitlDir = dir }
}

// WithConfig loads defaults from a config YAML file. Explicit options
// override values from the file.
func WithConfig(path string) Option {
	return func(c *clientConfig) { c.configPath = path }
}

// WithPollInterval sets how often WaitForDecision checks the bus.
func WithPollInterval(d time.Duration) Option {
	return func(c *clientConfig) { c.pollInterval = d }
}

// WithWaitTimeout bounds how long WaitForDecision blocks.
func WithWaitTimeout(d time.Duration) Option {
	return func(c *clientConfig) { c.waitTimeout = d }
}
