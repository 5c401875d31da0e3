// Package attempt implements the Run Attempt: one functional step's
// regular invocation, then — on failure — a recovery loop driven by a
// per-step schedule, honoring retry budget, skip, and continue-on-final-fail.
package attempt

import (
	"context"
	"fmt"
	"runtime/debug"

	"cameleer/internal/result"
	"cameleer/internal/schedule"
	"cameleer/internal/taskconfig"
)

// Attempt executes a single step to completion (or final failure).
type Attempt struct {
	Step taskconfig.ResolvedStep
	Bag  map[string]any
	Task any
	// Job is appended as the last argument to the step body.
	Job any
}

// Run executes the step: a regular attempt, then recovery on failure.
// Returns a Result on skip/continue/success, or an *Error for the job to
// translate into a JobFail.
func (a Attempt) Run(ctx context.Context) (result.Result, error) {
	args, err := a.resolveArgs(ctx)
	if err != nil {
		return result.Result{}, &Error{Kind: KindResolveArgs, Cause: err}
	}

	val, callErr := a.invoke(ctx, args)
	if callErr == nil {
		return result.Ok(val), nil
	}

	cfg := a.Step.CanFail

	// Skip shortcut: treat the error as the step's result.
	if cfg.Skip {
		return result.Err(callErr), nil
	}

	// Zero-budget shortcut.
	if cfg.MaxNumFails == 0 {
		return result.Result{}, &Error{Kind: KindFinalFail, Cause: callErr}
	}

	sched, err := a.materializeRecoverySchedule()
	if err != nil {
		return result.Result{}, &Error{Kind: KindResolveErrConf, Cause: err}
	}

	recovered, recErr := a.recover(ctx, sched, args, cfg, callErr)
	if recErr == nil {
		return result.Ok(recovered), nil
	}
	if cfg.ContinueOnFinalFail {
		return result.Err(recErr), nil
	}
	return result.Result{}, &Error{Kind: KindFinalFail, Cause: recErr}
}

func (a Attempt) materializeRecoverySchedule() (schedule.Schedule, error) {
	if a.Step.CanFail.Schedule == nil {
		return nil, ErrNoRecoverySched
	}
	sched, err := a.Step.CanFail.Schedule(a.Bag, a.Task)
	if err != nil {
		return nil, err
	}
	if sched == nil {
		return nil, ErrNoRecoverySched
	}
	return sched, nil
}

func (a Attempt) resolveArgs(ctx context.Context) ([]any, error) {
	var args []any
	if a.Step.Args != nil {
		v, err := taskconfig.ResolveValue(ctx, a.Bag, a.Task, a.Step.Args)
		if err != nil {
			return nil, err
		}
		if v != nil {
			list, ok := v.([]any)
			if !ok {
				return nil, fmt.Errorf("args producer returned %T, want []any", v)
			}
			args = list
		}
	}
	out := make([]any, 0, len(args)+1)
	out = append(out, args...)
	out = append(out, a.Job)
	return out, nil
}

func (a Attempt) invoke(ctx context.Context, args []any) (val any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v\n%s", r, debug.Stack())
		}
	}()
	return a.Step.Fn(ctx, args)
}

// recover runs the retry loop against the step's own recovery schedule. At
// most one regular-or-recovery invocation is outstanding at any time: the
// loop blocks on invoke before reading the next firing, and any firing
// delivered to the schedule's channel while invoke is running is drained
// and dropped except for a terminal (error/complete) signal, whose decision
// is deferred until the outstanding attempt returns.
func (a Attempt) recover(ctx context.Context, sched schedule.Schedule, args []any, cfg taskconfig.ResolvedErrorConfig, firstCause error) (any, error) {
	ch, unsubscribe := sched.Subscribe()
	defer unsubscribe()
	// Subscribe before arming: an Interval with triggerImmediately may fire
	// as soon as Arm returns, and that first firing must not race the
	// subscription into being dropped.
	if iv, ok := sched.(*schedule.Interval); ok {
		iv.Arm()
		defer iv.Disarm()
	}

	numSubsequentFails := 0
	_ = firstCause

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case ev, ok := <-ch:
			if !ok {
				return nil, ErrNoMoreRetries
			}
			switch ev.Kind {
			case schedule.EventError:
				return nil, fmt.Errorf("%w: %v", ErrScheduleErrored, ev.Err)
			case schedule.EventComplete:
				return nil, ErrNoMoreRetries
			case schedule.EventNext:
				// Fall through below: invoke, then drain anything that piled
				// up on the channel while we were blocked.
			default:
				continue
			}

			val, err := a.invoke(ctx, args)
			hasErrorEv, errCause, hasCompleteEv := drainTerminal(ch)

			if err == nil {
				return val, nil
			}

			numSubsequentFails++
			if numSubsequentFails >= cfg.MaxNumFails {
				return nil, fmt.Errorf("%w: %v", ErrBudgetExhausted, err)
			}
			if hasErrorEv {
				return nil, fmt.Errorf("%w: %v", ErrScheduleErrored, errCause)
			}
			if hasCompleteEv {
				return nil, ErrNoMoreRetries
			}
			// Otherwise keep waiting for the next recovery firing.
		}
	}
}

// drainTerminal non-blockingly drains any events already buffered on ch,
// discarding extra Next firings (dropped, not queued) but remembering a
// terminal signal so its decision can be applied once the outstanding
// attempt (already completed by the time this runs) has returned.
func drainTerminal(ch <-chan schedule.Event) (hasError bool, errCause error, hasComplete bool) {
	for {
		select {
		case ev, ok := <-ch:
			if !ok {
				hasComplete = true
				continue
			}
			switch ev.Kind {
			case schedule.EventError:
				hasError = true
				errCause = ev.Err
			case schedule.EventComplete:
				hasComplete = true
			}
		default:
			return
		}
	}
}
