package engine

import "errors"

var (
	// ErrAlreadyLoaded is raised by LoadTasks when tasks are already loaded.
	ErrAlreadyLoaded = errors.New("engine: tasks already loaded")
	// ErrDuplicateTaskName aborts the whole load when two tasks share a name.
	ErrDuplicateTaskName = errors.New("engine: duplicate task name")
	// ErrQueueSelection is raised when no appropriate queue can be found for
	// an admitted job.
	ErrQueueSelection = errors.New("engine: queue selection failed")
	// ErrDuplicateDefaultQueue is raised at construction when more than one
	// default queue is declared for the same kind.
	ErrDuplicateDefaultQueue = errors.New("engine: duplicate default queue for kind")
	// ErrUnknownTask is raised by InterruptJob for a job id the engine is not
	// currently tracking.
	ErrUnknownTask = errors.New("engine: unknown task")
	// ErrNotInterruptable is raised by InterruptJob when the job is not
	// currently in its interruption window.
	ErrNotInterruptable = errors.New("engine: job is not in an interruptable window")
	// ErrUnknownMethod names a command matching no public engine operation.
	// No Engine method currently returns it.
	ErrUnknownMethod = errors.New("engine: unknown method")
)
