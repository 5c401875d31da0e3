package queue

import (
	"context"
	"sync"
)

// CostQueue is a single active worker admitting jobs against a capabilities
// budget: job.cost <= capabilities, or unconditionally if AllowExclusiveJobs
// is set and no job is currently running.
type CostQueue struct {
	name           string
	isDefault      bool
	capabilities   float64
	allowExclusive bool

	hub    *subHub
	ctx    context.Context
	cancel context.CancelFunc

	mu        sync.Mutex
	paused    bool
	runningID *uint64
	backlog   []Runnable
}

func NewCost(name string, isDefault bool, capabilities float64, allowExclusiveJobs bool) *CostQueue {
	ctx, cancel := context.WithCancel(context.Background())
	return &CostQueue{
		name:           name,
		isDefault:      isDefault,
		capabilities:   capabilities,
		allowExclusive: allowExclusiveJobs,
		hub:            newSubHub(),
		ctx:            ctx,
		cancel:         cancel,
		paused:         true,
	}
}

func (q *CostQueue) Name() string          { return q.name }
func (q *CostQueue) Kind() Kind            { return KindCost }
func (q *CostQueue) IsDefault() bool       { return q.isDefault }
func (q *CostQueue) Capabilities() float64 { return q.capabilities }

// IsAppropriate: a cost queue only takes cost tasks (cost != nil), and only
// if the cost fits the budget, or exclusive admission applies.
func (q *CostQueue) IsAppropriate(cost *float64) bool {
	if cost == nil {
		return false
	}
	if *cost <= q.capabilities {
		return true
	}
	if q.allowExclusive && !q.IsWorking() {
		return true
	}
	return false
}

func (q *CostQueue) Load() float64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	load := float64(len(q.backlog))
	if q.runningID != nil {
		load++
	}
	return load
}

func (q *CostQueue) Resume() {
	q.mu.Lock()
	q.paused = false
	q.mu.Unlock()
	q.dispatchNext()
}

func (q *CostQueue) Pause() {
	q.mu.Lock()
	q.paused = true
	q.mu.Unlock()
}

func (q *CostQueue) AddJob(r Runnable) {
	q.mu.Lock()
	if q.paused || q.runningID != nil {
		q.backlog = append(q.backlog, r)
		q.mu.Unlock()
		return
	}
	id := r.JobID
	q.runningID = &id
	q.mu.Unlock()
	go q.run(r)
}

func (q *CostQueue) run(r Runnable) {
	q.hub.publish(Event{Kind: EventRun, JobID: r.JobID})
	err := r.Run(q.ctx)
	q.mu.Lock()
	q.runningID = nil
	q.mu.Unlock()

	if err != nil {
		q.hub.publish(Event{Kind: EventFailed, JobID: r.JobID, Err: err})
	} else {
		q.hub.publish(Event{Kind: EventDone, JobID: r.JobID})
	}
	q.dispatchNext()
}

func (q *CostQueue) dispatchNext() {
	q.mu.Lock()
	if q.paused || q.runningID != nil || len(q.backlog) == 0 {
		idle := q.runningID == nil && len(q.backlog) == 0
		q.mu.Unlock()
		if idle {
			q.hub.publish(Event{Kind: EventIdle})
		}
		return
	}
	r := q.backlog[0]
	q.backlog = q.backlog[1:]
	id := r.JobID
	q.runningID = &id
	q.mu.Unlock()
	go q.run(r)
}

func (q *CostQueue) ClearBacklog() {
	q.mu.Lock()
	q.backlog = nil
	q.mu.Unlock()
}

func (q *CostQueue) IsIdle() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.runningID == nil && len(q.backlog) == 0
}

func (q *CostQueue) IsWorking() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.runningID != nil
}

func (q *CostQueue) CurrentJobs() []uint64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.runningID == nil {
		return nil
	}
	return []uint64{*q.runningID}
}

func (q *CostQueue) Backlog() []uint64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]uint64, len(q.backlog))
	for i, r := range q.backlog {
		out[i] = r.JobID
	}
	return out
}

func (q *CostQueue) Subscribe() (<-chan Event, func()) { return q.hub.subscribe() }

func (q *CostQueue) Stop() { q.cancel() }
