// Package statectx implements the Static Task Context Store: a
// per-task persistent key-value map backed by a single JSON file, whose
// mutations are observable and debounce-serialized to disk.
package statectx

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	logx "cameleer/pkg/logx"
)

// Key builds the persisted-record key "<ClassName>_<TaskName>".
func Key(className, taskName string) string {
	return className + "_" + taskName
}

// Store owns the single JSON file backing every task's static context.
type Store struct {
	log               logx.Logger
	path              string
	serializeInterval time.Duration

	mu     sync.Mutex
	data   map[string]map[string]any
	timer  *time.Timer
	closed bool
}

// Load reads the backing file best-effort: a missing or unreadable file
// yields an empty map, never a fatal error.
func Load(path string, serializeInterval time.Duration, log logx.Logger) *Store {
	if log.IsZero() {
		log = logx.Nop()
	}
	if serializeInterval <= 0 {
		serializeInterval = 2 * time.Second
	}
	s := &Store{log: log, path: path, serializeInterval: serializeInterval, data: map[string]map[string]any{}}
	s.bestEffortLoad()
	return s
}

func (s *Store) bestEffortLoad() {
	b, err := os.ReadFile(s.path)
	if err != nil {
		return
	}
	var m map[string]map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		s.log.Warn("statectx: corrupt context file, starting empty", logx.String("path", s.path), logx.Err(err))
		return
	}
	if m != nil {
		s.data = m
	}
}

// Proxy is the explicit get/set wrapper a task interacts with, never
// touching the underlying map directly.
type Proxy struct {
	store *Store
	key   string
}

// ProxyFor returns the observable proxy for one task, keyed by its resolved
// class and task name.
func (s *Store) ProxyFor(className, taskName string) *Proxy {
	return &Proxy{store: s, key: Key(className, taskName)}
}

// Get reads one field of this task's context map.
func (p *Proxy) Get(field string) (any, bool) {
	p.store.mu.Lock()
	defer p.store.mu.Unlock()
	m := p.store.data[p.key]
	if m == nil {
		return nil, false
	}
	v, ok := m[field]
	return v, ok
}

// Snapshot returns a shallow copy of this task's full context map.
func (p *Proxy) Snapshot() map[string]any {
	p.store.mu.Lock()
	defer p.store.mu.Unlock()
	m := p.store.data[p.key]
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// Set mutates one field and arms the debounce timer: a pending timer is
// cancelled and replaced on every new write, so a burst collapses to at most
// one disk write after serializeInterval of quiet.
func (p *Proxy) Set(field string, value any) {
	p.store.mu.Lock()
	defer p.store.mu.Unlock()
	m := p.store.data[p.key]
	if m == nil {
		m = map[string]any{}
		p.store.data[p.key] = m
	}
	m[field] = value
	p.store.scheduleSaveLocked()
}

func (s *Store) scheduleSaveLocked() {
	if s.closed {
		return
	}
	if s.timer != nil {
		s.timer.Stop()
	}
	s.timer = time.AfterFunc(s.serializeInterval, s.debouncedSave)
}

func (s *Store) debouncedSave() {
	if err := s.Save(); err != nil {
		s.log.Warn("statectx: debounced save failed", logx.Err(err))
	}
}

// Save writes the whole store atomically (temp file + rename), grounded on
// the same snapshot+rename pattern used for dedup compaction elsewhere in
// the pack.
func (s *Store) Save() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveLocked()
}

func (s *Store) saveLocked() error {
	if strings.TrimSpace(s.path) == "" {
		return nil
	}
	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	b, err := json.MarshalIndent(s.data, "", "  ")
	if err != nil {
		return err
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, s.path)
}

// Shutdown cancels the pending timer and performs one final synchronous
// save.
func (s *Store) Shutdown() error {
	s.mu.Lock()
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.closed = true
	err := s.saveLocked()
	s.mu.Unlock()
	return err
}
