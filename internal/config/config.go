package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ppiankov/agentbus/internal/alert"
)

// BusConfig locates the durable event log.
type BusConfig struct {
	Path string `yaml:"path"`
}

// HITLConfig tunes the approval workflow.
type HITLConfig struct {
	Dir          string   `yaml:"dir"`
	PollInterval Duration `yaml:"poll_interval"`
	WaitTimeout  Duration `yaml:"wait_timeout"`
}

// ToolConfig configures the enhanced tool layer.
type ToolConfig struct {
	ServerCommand    []string `yaml:"server_command"`
	CircuitThreshold int      `yaml:"circuit_threshold"`
	CallTimeout      Duration `yaml:"call_timeout"`
}

// TraceConfig tunes the trace collector.
type TraceConfig struct {
	Path          string   `yaml:"path"`
	SampleRate    float64  `yaml:"sample_rate"`
	BatchSize     int      `yaml:"batch_size"`
	FlushInterval Duration `yaml:"flush_interval"`
}

// Config holds all runtime parameters.
type Config struct {
	AgentID string              `yaml:"agent_id"`
	Bus     BusConfig           `yaml:"bus"`
	Routing map[string][]string `yaml:"routing"`
	HITL    HITLConfig          `yaml:"hitl"`
	Tools   ToolConfig          `yaml:"tools"`
	Trace   TraceConfig         `yaml:"trace"`
	Alerts  []alert.Config      `yaml:"alerts"`
}

// DefaultConfig returns the built-in configuration.
func DefaultConfig() *Config {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	base := filepath.Join(home, ".agentbus")
	return &Config{
		AgentID: "orchestrator",
		Bus:     BusConfig{Path: filepath.Join(base, "events.jsonl")},
		Routing: map[string][]string{},
		HITL: HITLConfig{
			Dir:          filepath.Join(base, "hitl"),
			PollInterval: Duration(500 * time.Millisecond),
			WaitTimeout:  Duration(5 * time.Minute),
		},
		Tools: ToolConfig{
			CircuitThreshold: 3,
			CallTimeout:      Duration(30 * time.Second),
		},
		Trace: TraceConfig{
			Path:          filepath.Join(base, "traces.jsonl"),
			SampleRate:    1.0,
			BatchSize:     32,
			FlushInterval: Duration(5 * time.Second),
		},
	}
}

// DefaultPath returns the default config location.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "agentbus.yaml"
	}
	return filepath.Join(home, ".agentbus", "config.yaml")
}

// Load reads configuration from a YAML file.
// Empty path falls back to ~/.agentbus/config.yaml.
// Missing file returns defaults. Invalid YAML returns an error.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultPath()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultConfig(), nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	// Start with defaults, YAML overwrites only specified fields
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.expandPaths()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// expandPaths resolves leading ~/ in path fields so init-generated
// configs land in the home directory, not a literal "~" in the cwd.
func (c *Config) expandPaths() {
	c.Bus.Path = expandHome(c.Bus.Path)
	c.HITL.Dir = expandHome(c.HITL.Dir)
	c.Trace.Path = expandHome(c.Trace.Path)
}

func expandHome(path string) string {
	if !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[2:])
}

func (c *Config) validate() error {
	if c.AgentID == "" {
		return fmt.Errorf("config: agent_id must not be empty")
	}
	if c.Trace.SampleRate < 0 || c.Trace.SampleRate > 1 {
		return fmt.Errorf("config: trace sample_rate must be in [0.0, 1.0], got %v", c.Trace.SampleRate)
	}
	if c.HITL.PollInterval <= 0 {
		return fmt.Errorf("config: hitl poll_interval must be positive")
	}
	return nil
}

// DefaultConfigYAML returns a commented YAML string for init.
func DefaultConfigYAML() string {
	return `# agentbus configuration
# Generated by: agentbus init

# Identity stamped on events this process publishes.
agent_id: orchestrator

# Durable event log. One JSON object per line, hash-chained.
bus:
  path: ~/.agentbus/events.jsonl

# Event routing: event type -> agent IDs that consume it.
# "*" matches every event type.
routing:
  TASK_COMPLETED: [reviewer]
  TASK_FAILED: [orchestrator]

# Human-in-the-loop approval workflow.
hitl:
  dir: ~/.agentbus/hitl
  poll_interval: 500ms
  wait_timeout: 5m

# Enhanced tool layer. Leave server_command empty to run local-only.
tools:
  server_command: []
  circuit_threshold: 3
  call_timeout: 30s

# Trace collector.
trace:
  path: ~/.agentbus/traces.jsonl
  sample_rate: 1.0
  batch_size: 32
  flush_interval: 5s

# Webhook alerts fired on escalation. Formats: generic, slack.
alerts: []
`
}
