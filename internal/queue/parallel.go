package queue

import (
	"context"
	"sync"
)

// ParallelQueue admits up to Parallelism concurrent jobs regardless of cost
//.
type ParallelQueue struct {
	name        string
	isDefault   bool
	parallelism int

	hub    *subHub
	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	paused  bool
	sem     chan struct{}
	current map[uint64]struct{}
	backlog []Runnable
}

func NewParallel(name string, isDefault bool, parallelism int) *ParallelQueue {
	if parallelism <= 0 {
		parallelism = 1
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &ParallelQueue{
		name:        name,
		isDefault:   isDefault,
		parallelism: parallelism,
		hub:         newSubHub(),
		ctx:         ctx,
		cancel:      cancel,
		paused:      true,
		sem:         make(chan struct{}, parallelism),
		current:     map[uint64]struct{}{},
	}
}

func (q *ParallelQueue) Name() string      { return q.name }
func (q *ParallelQueue) Kind() Kind        { return KindParallel }
func (q *ParallelQueue) IsDefault() bool   { return q.isDefault }
func (q *ParallelQueue) Capabilities() float64 { return 0 }

// IsAppropriate: a parallel queue takes any non-cost task (cost == nil).
func (q *ParallelQueue) IsAppropriate(cost *float64) bool { return cost == nil }

func (q *ParallelQueue) Load() float64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return float64(len(q.current))
}

func (q *ParallelQueue) Resume() {
	q.mu.Lock()
	q.paused = false
	q.mu.Unlock()
	q.drainBacklog()
}

func (q *ParallelQueue) Pause() {
	q.mu.Lock()
	q.paused = true
	q.mu.Unlock()
}

func (q *ParallelQueue) AddJob(r Runnable) {
	q.mu.Lock()
	if q.paused {
		q.backlog = append(q.backlog, r)
		q.mu.Unlock()
		return
	}
	select {
	case q.sem <- struct{}{}:
		q.current[r.JobID] = struct{}{}
		q.mu.Unlock()
		go q.run(r)
	default:
		q.backlog = append(q.backlog, r)
		q.mu.Unlock()
	}
}

func (q *ParallelQueue) run(r Runnable) {
	q.hub.publish(Event{Kind: EventRun, JobID: r.JobID})
	err := r.Run(q.ctx)
	q.mu.Lock()
	delete(q.current, r.JobID)
	<-q.sem
	q.mu.Unlock()

	if err != nil {
		q.hub.publish(Event{Kind: EventFailed, JobID: r.JobID, Err: err})
	} else {
		q.hub.publish(Event{Kind: EventDone, JobID: r.JobID})
	}
	q.drainBacklog()
}

func (q *ParallelQueue) drainBacklog() {
	for {
		q.mu.Lock()
		if q.paused || len(q.backlog) == 0 {
			idle := len(q.current) == 0 && len(q.backlog) == 0
			q.mu.Unlock()
			if idle {
				q.hub.publish(Event{Kind: EventIdle})
			}
			return
		}
		select {
		case q.sem <- struct{}{}:
			r := q.backlog[0]
			q.backlog = q.backlog[1:]
			q.current[r.JobID] = struct{}{}
			q.mu.Unlock()
			go q.run(r)
		default:
			q.mu.Unlock()
			return
		}
	}
}

func (q *ParallelQueue) ClearBacklog() {
	q.mu.Lock()
	q.backlog = nil
	q.mu.Unlock()
}

func (q *ParallelQueue) IsIdle() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.current) == 0 && len(q.backlog) == 0
}

func (q *ParallelQueue) IsWorking() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.current) > 0
}

func (q *ParallelQueue) CurrentJobs() []uint64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]uint64, 0, len(q.current))
	for id := range q.current {
		out = append(out, id)
	}
	return out
}

func (q *ParallelQueue) Backlog() []uint64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]uint64, len(q.backlog))
	for i, r := range q.backlog {
		out[i] = r.JobID
	}
	return out
}

func (q *ParallelQueue) Subscribe() (<-chan Event, func()) { return q.hub.subscribe() }

func (q *ParallelQueue) Stop() { q.cancel() }
