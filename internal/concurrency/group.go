// Package concurrency implements concurrency groups: a task may declare a
// key so that several different tasks sharing it are limited together, a
// generalization of the single-task outstanding-job check to a shared
// semaphore. It is an additive admission gate: it only ever makes admission
// stricter.
package concurrency

import "sync"

// Semaphore bounds concurrent admissions for one group key.
type Semaphore struct {
	limit int
	ch    chan struct{}
}

func newSemaphore(limit int) *Semaphore {
	return &Semaphore{limit: limit, ch: make(chan struct{}, limit)}
}

// TryAcquire admits one more holder iff the group is under its limit.
func (s *Semaphore) TryAcquire() bool {
	select {
	case s.ch <- struct{}{}:
		return true
	default:
		return false
	}
}

// Release frees one slot.
func (s *Semaphore) Release() {
	select {
	case <-s.ch:
	default:
	}
}

// GroupStore keeps one Semaphore per group key, first-seen limit wins.
type GroupStore struct {
	mu     sync.Mutex
	groups map[string]*Semaphore
}

func NewGroupStore() *GroupStore {
	return &GroupStore{groups: map[string]*Semaphore{}}
}

// Get returns the Semaphore for key, creating it with limit on first use.
func (g *GroupStore) Get(key string, limit int) *Semaphore {
	if limit <= 0 {
		return nil
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	sem, ok := g.groups[key]
	if !ok {
		sem = newSemaphore(limit)
		g.groups[key] = sem
	}
	return sem
}

// Key derives the group key: an explicit ConcurrencyKey, falling back to the
// task name when none is set (so a task with no key is its own group).
func Key(concurrencyKey, taskName string) string {
	if concurrencyKey != "" {
		return concurrencyKey
	}
	return taskName
}
