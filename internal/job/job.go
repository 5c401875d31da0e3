// Package job implements the Job: ordered serial execution of a task's
// steps against a shared context, collecting one Result per completed step
// and failing fast on a step's final failure.
package job

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"cameleer/internal/attempt"
	"cameleer/internal/result"
	"cameleer/internal/taskconfig"
)

var idSeq uint64

func nextID() uint64 { return atomic.AddUint64(&idSeq, 1) }

// FailError wraps a Run Attempt's terminal failure as a job-level failure,
// preserving the step name and the original attempt error.
type FailError struct {
	Step  string
	Cause error
}

func (e *FailError) Error() string {
	return fmt.Sprintf("job: step %q failed: %v", e.Step, e.Cause)
}

func (e *FailError) Unwrap() error { return e.Cause }

// Job is one concrete execution of a task's steps, created on admission from
// a (Task, ResolvedConfig, firing) triple.
type Job struct {
	ID       uint64
	TaskName string

	mu            sync.Mutex
	context       map[string]any
	results       []result.Result
	funcTasksDone []string
}

// New allocates a Job with a monotonically increasing id.
func New(taskName string) *Job {
	return &Job{ID: nextID(), TaskName: taskName, context: map[string]any{}}
}

// Get reads the job's shared context map.
func (j *Job) Get(key string) (any, bool) {
	j.mu.Lock()
	defer j.mu.Unlock()
	v, ok := j.context[key]
	return v, ok
}

// Set mutates the job's shared context map. Step bodies are the only
// writers, and run strictly serially within one job.
func (j *Job) Set(key string, value any) {
	j.mu.Lock()
	j.context[key] = value
	j.mu.Unlock()
}

// Results returns a snapshot of the results appended so far, in step order
//: results[i] corresponds to step i.
func (j *Job) Results() []result.Result {
	j.mu.Lock()
	defer j.mu.Unlock()
	out := make([]result.Result, len(j.results))
	copy(out, j.results)
	return out
}

// Result returns the most recently appended step result.
func (j *Job) Result() (result.Result, bool) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if len(j.results) == 0 {
		return result.Result{}, false
	}
	return j.results[len(j.results)-1], true
}

// FuncTasksDone returns the names of steps that have appended a result.
func (j *Job) FuncTasksDone() []string {
	j.mu.Lock()
	defer j.mu.Unlock()
	out := make([]string, len(j.funcTasksDone))
	copy(out, j.funcTasksDone)
	return out
}

func (j *Job) appendResult(r result.Result, stepName string) {
	j.mu.Lock()
	j.results = append(j.results, r)
	if stepName != "" {
		j.funcTasksDone = append(j.funcTasksDone, stepName)
	}
	j.mu.Unlock()
}

// Run executes every step of cfg serially against task. A step whose Run
// Attempt returns a Result (ok, or err via skip/continue-on-final-fail) is
// appended; a step that raises finalFail is never appended and stops the
// job immediately, so no later step runs.
func (j *Job) Run(ctx context.Context, cfg taskconfig.ResolvedConfig, task any) error {
	for _, step := range cfg.Steps {
		a := attempt.Attempt{Step: step, Bag: cfg.Resolve, Task: task, Job: j}
		r, err := a.Run(ctx)
		if err != nil {
			var ae *attempt.Error
			if errors.As(err, &ae) {
				return &FailError{Step: step.Name, Cause: ae}
			}
			return &FailError{Step: step.Name, Cause: err}
		}
		j.appendResult(r, step.Name)
	}
	return nil
}
