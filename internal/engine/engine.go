package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"cameleer/internal/circuit"
	"cameleer/internal/concurrency"
	"cameleer/internal/history"
	"cameleer/internal/job"
	"cameleer/internal/queue"
	"cameleer/internal/schedule"
	"cameleer/internal/statectx"
	"cameleer/internal/taskconfig"
	logx "cameleer/pkg/logx"
)

// loadedTask is one task's runtime state between loadTasks and clearTasks.
type loadedTask struct {
	name  string
	cfg   taskconfig.TaskConfig
	sched schedule.Schedule
	proxy *statectx.Proxy
	log   logx.Logger
}

// jobRecord tracks the bookkeeping an in-flight job needs released on
// completion: the concurrency-group permit it holds (if any) and its
// interruption-window signal channel (if still open).
type jobRecord struct {
	taskName    string
	groupSem    *concurrency.Semaphore
	interruptCh chan struct{}
	onceClose   sync.Once
}

// Engine is the Cameleer Engine: the component tying schedules, config
// resolution, admission gates, and queues together.
type Engine struct {
	log      logx.Logger
	cfg      Config
	queues   []queue.Queue
	fanin    *schedule.Fanin
	statectx *statectx.Store
	circuits *circuit.Store
	groups   *concurrency.GroupStore
	hub      *subHub
	history  *history.Ring

	mu     sync.Mutex
	tasks  map[string]*loadedTask
	jobs   map[uint64]*jobRecord
	loaded bool

	keepAliveStop chan struct{}
	doneCh        chan struct{}
	doneOnce      sync.Once
}

// New constructs an Engine. At most one default queue per kind is allowed.
func New(cfg Config, queues []queue.Queue, store *statectx.Store, log logx.Logger) (*Engine, error) {
	seenDefault := map[queue.Kind]bool{}
	for _, q := range queues {
		if q.IsDefault() {
			if seenDefault[q.Kind()] {
				return nil, fmt.Errorf("%w: %v", ErrDuplicateDefaultQueue, q.Kind())
			}
			seenDefault[q.Kind()] = true
		}
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Engine{
		log:      log,
		cfg:      cfg,
		queues:   queues,
		fanin:    schedule.NewFanin(),
		statectx: store,
		circuits: circuit.NewStore(),
		groups:   concurrency.NewGroupStore(),
		hub:      newSubHub(),
		history:  history.New(0),
		tasks:    map[string]*loadedTask{},
		jobs:     map[uint64]*jobRecord{},
		doneCh:   make(chan struct{}),
	}, nil
}

// GetLogger returns a logger scoped to typeTag, configured from the engine's
// logging policy.
func (e *Engine) GetLogger(typeTag string) logx.Logger {
	return e.log.With(logx.String("component", typeTag))
}

// History returns a snapshot of recently completed job outcomes, oldest
// first, reachable through the status command on either control surface.
func (e *Engine) History() []history.Item {
	return e.history.Snapshot()
}

// LoadTasks validates and registers every task config, attaching a logger
// and static-context proxy, and subscribes to its schedule's firings.
// Fails (aborting the whole load) on a duplicate task name.
func (e *Engine) LoadTasks(ctx context.Context, cfgs []taskconfig.TaskConfig) error {
	e.mu.Lock()
	if e.loaded {
		e.mu.Unlock()
		return ErrAlreadyLoaded
	}

	seen := make(map[string]bool, len(cfgs))
	for _, c := range cfgs {
		if seen[c.Name] {
			e.mu.Unlock()
			return fmt.Errorf("%w: %q", ErrDuplicateTaskName, c.Name)
		}
		seen[c.Name] = true
	}

	built := make([]*loadedTask, 0, len(cfgs))
	for _, c := range cfgs {
		className := c.Type
		if className == "" {
			className = c.Name
		}
		var proxy *statectx.Proxy
		if e.statectx != nil {
			proxy = e.statectx.ProxyFor(className, c.Name)
		}
		lt := &loadedTask{
			name:  c.Name,
			cfg:   c,
			sched: c.Schedule,
			proxy: proxy,
			log:   e.log.With(logx.String("task", c.Name)),
		}
		built = append(built, lt)
	}
	e.mu.Unlock()

	for _, lt := range built {
		if lt.sched == nil {
			lt.log.Warn("task has no schedule; it will never fire")
			e.mu.Lock()
			e.tasks[lt.name] = lt
			e.mu.Unlock()
			continue
		}
		firings, err := e.fanin.AddSchedule(lt.name, lt.sched)
		if err != nil {
			lt.log.Error("schedule registration failed", logx.Err(err))
			return err
		}
		e.mu.Lock()
		e.tasks[lt.name] = lt
		e.mu.Unlock()
		go e.watchFirings(lt.name, firings)
	}

	e.mu.Lock()
	e.loaded = true
	e.mu.Unlock()
	return nil
}

func (e *Engine) watchFirings(taskName string, firings <-chan schedule.Firing) {
	for firing := range firings {
		e.onFiring(taskName, firing.Event)
	}
}

// Run resumes every queue and (re)arms the keep-alive timer. Idempotent.
func (e *Engine) Run() {
	for _, q := range e.queues {
		q.Resume()
	}
	e.armKeepAlive()
}

// RunAsync runs the engine and blocks until Shutdown completes.
func (e *Engine) RunAsync(ctx context.Context) error {
	e.Run()
	select {
	case <-ctx.Done():
		return e.Shutdown(context.Background())
	case <-e.doneCh:
		return nil
	}
}

// Pause pauses every queue; running jobs continue to completion.
func (e *Engine) Pause() {
	for _, q := range e.queues {
		q.Pause()
	}
}

// PauseWait pauses every queue and waits until all report idle.
func (e *Engine) PauseWait(ctx context.Context) error {
	e.Pause()
	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()
	for {
		if e.allQueuesIdle() {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (e *Engine) allQueuesIdle() bool {
	for _, q := range e.queues {
		if !q.IsIdle() {
			return false
		}
	}
	return true
}

// ClearTasks clears every queue's backlog and removes every task's
// schedule. Safe to call while queues are paused.
func (e *Engine) ClearTasks() {
	for _, q := range e.queues {
		q.ClearBacklog()
	}
	e.fanin.Clear()
	e.mu.Lock()
	e.tasks = map[string]*loadedTask{}
	e.loaded = false
	e.mu.Unlock()
}

// Shutdown performs pauseWait, clearTasks, stops the keep-alive timer,
// persists static context, and emits a shutdown event. Single-shot.
func (e *Engine) Shutdown(ctx context.Context) error {
	if err := e.PauseWait(ctx); err != nil {
		return err
	}
	e.ClearTasks()
	e.stopKeepAlive()

	if e.statectx != nil {
		if err := e.statectx.Shutdown(); err != nil {
			e.log.Warn("static context final save failed", logx.Err(err))
		}
	}
	for _, q := range e.queues {
		q.Stop()
	}

	e.doneOnce.Do(func() { close(e.doneCh) })
	e.log.Info("engine shutdown complete")
	return nil
}

// InterruptJob cancels an admitted job's submission while it is still in its
// interruption window; fails otherwise.
func (e *Engine) InterruptJob(jobID uint64) error {
	e.mu.Lock()
	rec, ok := e.jobs[jobID]
	e.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: job %d", ErrUnknownTask, jobID)
	}
	if rec.interruptCh == nil {
		return fmt.Errorf("%w: job %d", ErrNotInterruptable, jobID)
	}
	rec.onceClose.Do(func() { close(rec.interruptCh) })
	return nil
}

// GetObservableForWork returns a work-event stream filtered to one task.
func (e *Engine) GetObservableForWork(task string) (<-chan WorkEvent, func()) {
	raw, cancel := e.hub.subscribe()
	out := make(chan WorkEvent, 32)
	done := make(chan struct{})
	go func() {
		defer close(out)
		for {
			select {
			case ev, ok := <-raw:
				if !ok {
					return
				}
				if ev.Task != task {
					continue
				}
				select {
				case out <- ev:
				default:
				}
			case <-done:
				return
			}
		}
	}()
	return out, func() {
		cancel()
		close(done)
	}
}

// runJob wraps job.Run so the queue's Runnable.Run signature can
// drive it directly.
func runJob(ctx context.Context, j *job.Job, cfg taskconfig.ResolvedConfig, task any) error {
	return j.Run(ctx, cfg, task)
}
