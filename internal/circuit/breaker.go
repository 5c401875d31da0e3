// Package circuit implements a per-task consecutive-failure circuit breaker
// with exponential cooldown. It is checked after the concurrency-group gate
// and before the interruption window and queue selection, as an additive
// admission gate that never overrides the
// single-task outstanding-job check.
package circuit

import (
	"strings"
	"sync"
	"time"
)

// Config controls one breaker's trip threshold and cooldown curve.
//
// Trip <= 0 disables the breaker entirely for the keys it governs.
type Config struct {
	Trip       int
	BaseDelay  time.Duration
	MaxDelay   time.Duration
	ResetAfter time.Duration
}

func (c Config) withDefaults() Config {
	if c.BaseDelay <= 0 {
		c.BaseDelay = 5 * time.Second
	}
	if c.MaxDelay <= 0 {
		c.MaxDelay = 2 * time.Minute
	}
	if c.ResetAfter <= 0 {
		c.ResetAfter = 5 * time.Minute
	}
	return c
}

type state struct {
	fails       int
	openUntil   time.Time
	lastFailure time.Time
}

// Store tracks breaker state for a set of keys (typically task names).
type Store struct {
	mu sync.Mutex
	m  map[string]*state
}

func NewStore() *Store {
	return &Store{m: map[string]*state{}}
}

func (s *Store) get(key string) *state {
	key = strings.TrimSpace(key)
	if key == "" {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.m[key]
	if st == nil {
		st = &state{}
		s.m[key] = st
	}
	return st
}

// IsOpen reports whether key's circuit is currently open (admission should
// be refused) and, if so, until when.
func (s *Store) IsOpen(now time.Time, key string, cfg Config) (bool, time.Time) {
	if cfg.Trip <= 0 {
		return false, time.Time{}
	}
	cfg = cfg.withDefaults()
	st := s.get(key)
	if st == nil {
		return false, time.Time{}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	resetIfQuiet(st, now, cfg)
	if !st.openUntil.IsZero() && now.Before(st.openUntil) {
		return true, st.openUntil
	}
	return false, time.Time{}
}

// RecordResult updates key's breaker state after a job finishes.
func (s *Store) RecordResult(now time.Time, key string, cfg Config, err error) {
	if cfg.Trip <= 0 {
		return
	}
	cfg = cfg.withDefaults()
	st := s.get(key)
	if st == nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	resetIfQuiet(st, now, cfg)

	if err == nil {
		st.fails = 0
		st.openUntil = time.Time{}
		st.lastFailure = time.Time{}
		return
	}

	st.fails++
	st.lastFailure = now
	if st.fails < cfg.Trip {
		return
	}

	pow := st.fails - cfg.Trip
	d := cfg.BaseDelay
	for i := 0; i < pow; i++ {
		d *= 2
		if d >= cfg.MaxDelay {
			d = cfg.MaxDelay
			break
		}
	}
	if d > cfg.MaxDelay {
		d = cfg.MaxDelay
	}
	st.openUntil = now.Add(d)
}

func resetIfQuiet(st *state, now time.Time, cfg Config) {
	if !st.lastFailure.IsZero() && cfg.ResetAfter > 0 && now.Sub(st.lastFailure) > cfg.ResetAfter {
		st.fails = 0
		st.openUntil = time.Time{}
	}
}

// Snapshot reports the total number of tracked keys and how many currently
// have an open circuit, for diagnostics.
func (s *Store) Snapshot(now time.Time) (total, open int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	total = len(s.m)
	for _, st := range s.m {
		if !st.openUntil.IsZero() && now.Before(st.openUntil) {
			open++
		}
	}
	return total, open
}
