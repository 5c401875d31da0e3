package statectx

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	logx "cameleer/pkg/logx"
)

func TestLoadMissingFileStartsEmpty(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "missing.json")
	s := Load(path, time.Second, logx.Nop())
	p := s.ProxyFor("Class", "task")
	if snap := p.Snapshot(); len(snap) != 0 {
		t.Fatalf("expected empty snapshot, got %+v", snap)
	}
}

func TestLoadCorruptFileStartsEmpty(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "corrupt.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatalf("write corrupt file: %v", err)
	}
	s := Load(path, time.Second, logx.Nop())
	p := s.ProxyFor("Class", "task")
	if snap := p.Snapshot(); len(snap) != 0 {
		t.Fatalf("expected empty snapshot from corrupt file, got %+v", snap)
	}
}

func TestKeyFormat(t *testing.T) {
	t.Parallel()
	if got := Key("MyClass", "myTask"); got != "MyClass_myTask" {
		t.Fatalf("Key = %q, want MyClass_myTask", got)
	}
}

func TestProxySetGet(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "ctx.json")
	s := Load(path, time.Hour, logx.Nop())
	p := s.ProxyFor("Class", "task")

	if _, ok := p.Get("count"); ok {
		t.Fatal("expected missing field to report ok=false")
	}
	p.Set("count", 3.0)
	v, ok := p.Get("count")
	if !ok || v != 3.0 {
		t.Fatalf("Get(count) = (%v, %v), want (3, true)", v, ok)
	}
}

func TestShutdownSavesSynchronously(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "ctx.json")
	s := Load(path, time.Hour, logx.Nop())
	p := s.ProxyFor("Class", "task")
	p.Set("field", "value")

	if err := s.Shutdown(); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}

	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile after Shutdown: %v", err)
	}
	var m map[string]map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if m["Class_task"]["field"] != "value" {
		t.Fatalf("persisted data = %+v, want field=value", m)
	}
}

func TestDebouncedSaveCollapsesBurst(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "ctx.json")
	s := Load(path, 30*time.Millisecond, logx.Nop())
	p := s.ProxyFor("Class", "task")

	for i := 0; i < 5; i++ {
		p.Set("n", i)
	}

	if _, err := os.Stat(path); err == nil {
		t.Fatal("expected no write before the debounce interval elapses")
	}

	time.Sleep(100 * time.Millisecond)
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("expected a debounced write to have landed: %v", err)
	}
	var m map[string]map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if m["Class_task"]["n"] != float64(4) {
		t.Fatalf("persisted n = %v, want 4 (last write in burst)", m["Class_task"]["n"])
	}
}
