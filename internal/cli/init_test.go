package cli

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ppiankov/agentbus/internal/bus"
	"github.com/ppiankov/agentbus/internal/config"
	"github.com/ppiankov/agentbus/internal/hitl"
)

func TestInitWritesLoadableConfig(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	path := filepath.Join(t.TempDir(), "config.yaml")
	configPath = path
	defer func() { configPath = "" }()

	if err := runInit(initCmd, nil); err != nil {
		t.Fatalf("init failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("config not written: %v", err)
	}
	if len(data) == 0 {
		t.Fatal("config is empty")
	}

	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("generated config does not load: %v", err)
	}
	if cfg.AgentID == "" {
		t.Fatal("expected agent_id in generated config")
	}

	// The generated paths must be usable as-is: no literal "~" dirs.
	for _, p := range []string{cfg.Bus.Path, cfg.HITL.Dir, cfg.Trace.Path} {
		if strings.Contains(p, "~") {
			t.Fatalf("generated config path not expanded: %q", p)
		}
	}
	log, err := bus.Open(cfg.Bus.Path)
	if err != nil {
		t.Fatalf("bus path from generated config unusable: %v", err)
	}
	log.Close()
	if _, err := hitl.NewStore(cfg.HITL.Dir); err != nil {
		t.Fatalf("hitl dir from generated config unusable: %v", err)
	}
	if !strings.HasPrefix(cfg.Bus.Path, home) {
		t.Fatalf("expected bus path under home %q, got %q", home, cfg.Bus.Path)
	}
}

func TestInitRefusesToOverwrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	configPath = path
	defer func() { configPath = "" }()

	if err := os.WriteFile(path, []byte("agent_id: custom\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	initForce = false
	if err := runInit(initCmd, nil); err == nil {
		t.Fatal("expected refusal without --force")
	}

	initForce = true
	defer func() { initForce = false }()
	if err := runInit(initCmd, nil); err != nil {
		t.Fatalf("expected --force to overwrite: %v", err)
	}
}
