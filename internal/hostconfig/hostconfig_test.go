package hostconfig

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeTemp(t *testing.T, name, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write temp config: %v", err)
	}
	return path
}

func TestManagerParseJSON(t *testing.T) {
	t.Parallel()
	path := writeTemp(t, "cameleer.json", `{
		"logging": {"level": "debug", "console": true},
		"engine": {"maxNumFails": 3, "recoveryInterval": "10s"},
		"queues": [{"name": "default", "kind": "parallel", "isDefault": true, "parallelism": 4}],
		"staticContext": {"path": "state.json"},
		"control": {"instrument": "stdin"}
	}`)

	m := NewManager(path)
	cfg, err := m.Load(context.Background())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Logging.Level != "debug" {
		t.Fatalf("Logging.Level = %q, want debug", cfg.Logging.Level)
	}
	if cfg.Engine.MaxNumFails != 3 {
		t.Fatalf("Engine.MaxNumFails = %d, want 3", cfg.Engine.MaxNumFails)
	}
	if cfg.Engine.ResolvedRecoveryInterval() != 10*time.Second {
		t.Fatalf("ResolvedRecoveryInterval = %v, want 10s", cfg.Engine.ResolvedRecoveryInterval())
	}
	if len(cfg.Queues) != 1 || cfg.Queues[0].Name != "default" {
		t.Fatalf("unexpected queues: %+v", cfg.Queues)
	}
	if cfg.StaticContext.ResolvedSerializeInterval() != 2*time.Second {
		t.Fatalf("default serialize interval = %v, want 2s", cfg.StaticContext.ResolvedSerializeInterval())
	}
}

func TestManagerParseYAML(t *testing.T) {
	t.Parallel()
	path := writeTemp(t, "cameleer.yaml", "logging:\n  level: warn\nengine:\n  maxNumFails: 1\nqueues:\n  - name: default\n    kind: cost\n    capabilities: 2.5\ncontrol:\n  instrument: none\n")

	m := NewManager(path)
	cfg, err := m.Load(context.Background())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Logging.Level != "warn" {
		t.Fatalf("Logging.Level = %q, want warn", cfg.Logging.Level)
	}
	if len(cfg.Queues) != 1 || cfg.Queues[0].Kind != "cost" {
		t.Fatalf("unexpected queues: %+v", cfg.Queues)
	}
}

func TestManagerRejectsUnknownField(t *testing.T) {
	t.Parallel()
	path := writeTemp(t, "cameleer.json", `{"logging": {"level": "info"}, "bogus": true}`)
	m := NewManager(path)
	if _, err := m.Load(context.Background()); err == nil {
		t.Fatal("expected error for unknown field")
	}
}

func TestValidateRejectsDuplicateQueueName(t *testing.T) {
	t.Parallel()
	cfg := &Config{Queues: []QueueConfig{
		{Name: "default", Kind: "parallel"},
		{Name: "default", Kind: "cost"},
	}}
	if err := Validate(cfg); err == nil {
		t.Fatal("expected error for duplicate queue name")
	}
}

func TestValidateRejectsUnknownQueueKind(t *testing.T) {
	t.Parallel()
	cfg := &Config{Queues: []QueueConfig{{Name: "q1", Kind: "bogus"}}}
	if err := Validate(cfg); err == nil {
		t.Fatal("expected error for unknown queue kind")
	}
}

func TestValidateRejectsUnknownInstrument(t *testing.T) {
	t.Parallel()
	cfg := &Config{Control: ControlConfig{Instrument: "carrier-pigeon"}}
	if err := Validate(cfg); err == nil {
		t.Fatal("expected error for unknown instrument")
	}
}

func TestValidateAcceptsHTTPPortSuffix(t *testing.T) {
	t.Parallel()
	cfg := &Config{Control: ControlConfig{Instrument: "http-9090"}}
	if err := Validate(cfg); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}

func TestSubscribePublish(t *testing.T) {
	t.Parallel()
	path := writeTemp(t, "cameleer.json", `{"control": {"instrument": "none"}}`)
	m := NewManager(path)
	if _, err := m.Load(context.Background()); err != nil {
		t.Fatalf("Load: %v", err)
	}

	ch := m.Subscribe(1)
	defer m.Unsubscribe(ch)

	cfg2 := &Config{}
	m.publish(cfg2)

	select {
	case got := <-ch:
		if got != cfg2 {
			t.Fatal("published value mismatch")
		}
	default:
		t.Fatal("expected a published value")
	}
}
