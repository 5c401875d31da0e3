package engine

import (
	"context"
	"time"

	"cameleer/internal/circuit"
	"cameleer/internal/concurrency"
	"cameleer/internal/history"
	"cameleer/internal/job"
	"cameleer/internal/queue"
	"cameleer/internal/schedule"
	"cameleer/internal/taskconfig"
	logx "cameleer/pkg/logx"
)

// onFiring runs the full on-firing admission algorithm for one
// task's schedule event. Calendar "end of bounded event" firings never
// reach here, already discarded by the Fanin.
func (e *Engine) onFiring(taskName string, ev schedule.Event) {
	e.mu.Lock()
	lt, ok := e.tasks[taskName]
	e.mu.Unlock()
	if !ok {
		return
	}

	if ev.Kind == schedule.EventError {
		lt.log.Error("schedule reported an error", logx.Err(ev.Err))
		return
	}
	if ev.Kind != schedule.EventNext {
		return
	}

	ctx := context.Background()
	handle := &TaskHandle{Name: lt.name, Logger: lt.log, Context: lt.proxy}

	resolved, err := taskconfig.Resolve(ctx, lt.cfg, e.cfg.Defaults, handle)
	if err != nil {
		lt.log.Error("config resolution failed; firing aborted", logx.Err(err))
		return
	}

	if !resolved.Enabled {
		lt.log.Debug("task disabled, skipping firing")
		return
	}
	if resolved.Skip {
		lt.log.Debug("task skip=true, skipping firing")
		return
	}

	if !resolved.AllowMultiple && e.hasOutstandingJob(taskName) {
		lt.log.Debug("task already has a job outstanding; refusing")
		return
	}

	var groupSem *concurrency.Semaphore
	if lt.cfg.ConcurrencyLimit > 0 {
		key := concurrency.Key(lt.cfg.ConcurrencyKey, taskName)
		groupSem = e.groups.Get(key, lt.cfg.ConcurrencyLimit)
		if groupSem != nil && !groupSem.TryAcquire() {
			lt.log.Debug("concurrency group full; refusing firing", logx.String("group", key))
			return
		}
	}

	circuitCfg := e.cfg.Circuit
	if lt.cfg.CircuitTripFailures != nil {
		circuitCfg.Trip = *lt.cfg.CircuitTripFailures
	}
	now := time.Now()
	if open, until := e.circuits.IsOpen(now, taskName, circuitCfg); open {
		lt.log.Warn("circuit open; refusing firing", logx.Time("until", until))
		if groupSem != nil {
			groupSem.Release()
		}
		return
	}

	j := job.New(taskName)
	started := time.Now()

	rec := &jobRecord{taskName: taskName}
	if resolved.InterruptTimeoutSecs != nil {
		rec.interruptCh = make(chan struct{})
	}
	e.mu.Lock()
	e.jobs[j.ID] = rec
	e.mu.Unlock()

	release := func() {
		e.mu.Lock()
		delete(e.jobs, j.ID)
		e.mu.Unlock()
		if groupSem != nil {
			groupSem.Release()
		}
	}

	if rec.interruptCh != nil {
		e.hub.publish(WorkEvent{Kind: WorkInterruptable, Task: taskName, JobID: j.ID})
		wait := time.Duration(*resolved.InterruptTimeoutSecs * float64(time.Second))
		timer := time.NewTimer(wait)
		select {
		case <-rec.interruptCh:
			timer.Stop()
			lt.log.Debug("job interrupted before submission")
			release()
			return
		case <-timer.C:
			// The window has closed: drop the interrupt channel so a late
			// InterruptJob reports ErrNotInterruptable.
			e.mu.Lock()
			e.jobs[j.ID] = &jobRecord{taskName: taskName}
			e.mu.Unlock()
		}
	}

	q, err := selectQueue(resolved.Cost, resolved.Queues, e.queues)
	if err != nil {
		lt.log.Error("queue selection failed", logx.Err(err))
		e.circuits.RecordResult(time.Now(), taskName, circuitCfg, err)
		release()
		return
	}

	events, cancel := q.Subscribe()
	go e.watchQueueEvents(taskName, j.ID, started, circuitCfg, events, cancel, release)

	e.hub.publish(WorkEvent{Kind: WorkScheduled, Task: taskName, JobID: j.ID})
	q.AddJob(queue.Runnable{
		JobID: j.ID,
		Cost:  costOrZero(resolved.Cost),
		Run: func(ctx context.Context) error {
			return runJob(ctx, j, resolved, handle)
		},
	})
}

func (e *Engine) hasOutstandingJob(taskName string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, rec := range e.jobs {
		if rec.taskName == taskName {
			return true
		}
	}
	return false
}

func costOrZero(c *float64) float64 {
	if c == nil {
		return 0
	}
	return *c
}

// watchQueueEvents republishes the run/done/failed events concerning jobID
// as uniform WorkEvents, records the outcome against the circuit breaker,
// and releases the job's admission bookkeeping once it settles.
func (e *Engine) watchQueueEvents(taskName string, jobID uint64, started time.Time, circuitCfg circuit.Config, events <-chan queue.Event, cancel func(), release func()) {
	defer cancel()
	for ev := range events {
		if ev.JobID != jobID {
			continue
		}
		switch ev.Kind {
		case queue.EventRun:
			e.hub.publish(WorkEvent{Kind: WorkRun, Task: taskName, JobID: jobID})
		case queue.EventDone:
			e.circuits.RecordResult(time.Now(), taskName, circuitCfg, nil)
			e.history.Record(history.Item{JobID: jobID, Task: taskName, Started: started, Finished: time.Now()})
			e.hub.publish(WorkEvent{Kind: WorkDone, Task: taskName, JobID: jobID})
			release()
			return
		case queue.EventFailed:
			e.circuits.RecordResult(time.Now(), taskName, circuitCfg, ev.Err)
			e.history.Record(history.Item{JobID: jobID, Task: taskName, Started: started, Finished: time.Now(), Error: ev.Err.Error()})
			e.hub.publish(WorkEvent{Kind: WorkFailed, Task: taskName, JobID: jobID, Err: ev.Err})
			release()
			return
		}
	}
}
