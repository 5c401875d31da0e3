package queue

import (
	"context"
	"errors"
	"testing"
	"time"
)

func waitEvent(t *testing.T, ch <-chan Event, kind EventKind) Event {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case ev := <-ch:
			if ev.Kind == kind {
				return ev
			}
		case <-deadline:
			t.Fatalf("timed out waiting for event kind %v", kind)
		}
	}
}

func TestParallelQueueStartsPausedAndBacklogs(t *testing.T) {
	t.Parallel()
	q := NewParallel("q1", true, 1)
	defer q.Stop()

	ran := make(chan struct{}, 1)
	q.AddJob(Runnable{JobID: 1, Run: func(ctx context.Context) error { ran <- struct{}{}; return nil }})

	select {
	case <-ran:
		t.Fatal("job must not run while queue is paused")
	case <-time.After(50 * time.Millisecond):
	}
	if len(q.Backlog()) != 1 {
		t.Fatalf("Backlog() = %v, want one entry while paused", q.Backlog())
	}

	ch, cancel := q.Subscribe()
	defer cancel()
	q.Resume()

	waitEvent(t, ch, EventDone)
	select {
	case <-ran:
	default:
		t.Fatal("expected job to have run after Resume")
	}
}

func TestParallelQueueBoundsConcurrency(t *testing.T) {
	t.Parallel()
	q := NewParallel("q1", true, 1)
	defer q.Stop()
	q.Resume()

	ch, cancel := q.Subscribe()
	defer cancel()

	release := make(chan struct{})
	q.AddJob(Runnable{JobID: 1, Run: func(ctx context.Context) error { <-release; return nil }})
	waitEvent(t, ch, EventRun)

	q.AddJob(Runnable{JobID: 2, Run: func(ctx context.Context) error { return nil }})
	time.Sleep(30 * time.Millisecond)
	if len(q.CurrentJobs()) != 1 {
		t.Fatalf("CurrentJobs() = %v, want exactly one in-flight job at parallelism 1", q.CurrentJobs())
	}
	if len(q.Backlog()) != 1 {
		t.Fatalf("Backlog() = %v, want job 2 queued behind job 1", q.Backlog())
	}
	close(release)
}

func TestParallelQueueIsAppropriateOnlyForCostlessTasks(t *testing.T) {
	t.Parallel()
	q := NewParallel("q1", true, 1)
	defer q.Stop()
	if !q.IsAppropriate(nil) {
		t.Fatal("a parallel queue must accept a task with no declared cost")
	}
	c := 1.0
	if q.IsAppropriate(&c) {
		t.Fatal("a parallel queue must refuse a task with a declared cost")
	}
}

func TestCostQueueAppropriateWithinCapabilities(t *testing.T) {
	t.Parallel()
	q := NewCost("c1", true, 2.0, false)
	defer q.Stop()
	within, over := 1.5, 3.0
	if !q.IsAppropriate(&within) {
		t.Fatal("expected a cost within capabilities to be appropriate")
	}
	if q.IsAppropriate(&over) {
		t.Fatal("expected a cost over capabilities to be inappropriate without allowExclusive")
	}
	if q.IsAppropriate(nil) {
		t.Fatal("a cost queue must refuse a task with no declared cost")
	}
}

func TestCostQueueAllowExclusiveWhenIdle(t *testing.T) {
	t.Parallel()
	q := NewCost("c1", true, 1.0, true)
	defer q.Stop()
	over := 5.0
	if !q.IsAppropriate(&over) {
		t.Fatal("allowExclusive should admit an over-budget job while idle")
	}

	q.Resume()
	ch, cancel := q.Subscribe()
	defer cancel()
	release := make(chan struct{})
	q.AddJob(Runnable{JobID: 1, Run: func(ctx context.Context) error { <-release; return nil }})
	waitEvent(t, ch, EventRun)

	if q.IsAppropriate(&over) {
		t.Fatal("allowExclusive must not admit a second over-budget job while one is already working")
	}
	close(release)
}

func TestCostQueueSingleActiveWorker(t *testing.T) {
	t.Parallel()
	q := NewCost("c1", true, 10.0, false)
	defer q.Stop()
	q.Resume()
	ch, cancel := q.Subscribe()
	defer cancel()

	release := make(chan struct{})
	q.AddJob(Runnable{JobID: 1, Run: func(ctx context.Context) error { <-release; return nil }})
	waitEvent(t, ch, EventRun)
	q.AddJob(Runnable{JobID: 2, Run: func(ctx context.Context) error { return nil }})

	time.Sleep(30 * time.Millisecond)
	if got := q.CurrentJobs(); len(got) != 1 || got[0] != 1 {
		t.Fatalf("CurrentJobs() = %v, want [1]", got)
	}
	close(release)
	waitEvent(t, ch, EventDone)
	waitEvent(t, ch, EventRun)
}

func TestQueuePublishesFailedOnError(t *testing.T) {
	t.Parallel()
	q := NewParallel("q1", true, 2)
	defer q.Stop()
	q.Resume()
	ch, cancel := q.Subscribe()
	defer cancel()

	boom := errors.New("boom")
	q.AddJob(Runnable{JobID: 1, Run: func(ctx context.Context) error { return boom }})
	ev := waitEvent(t, ch, EventFailed)
	if !errors.Is(ev.Err, boom) {
		t.Fatalf("Err = %v, want %v", ev.Err, boom)
	}
}
