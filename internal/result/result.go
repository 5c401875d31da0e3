// Package result carries the outcome of one functional-task step: either the
// value it produced or the (wrapped) error it failed with. A Result is total —
// every completed step produces exactly one, whether it succeeded, was
// skipped, or exhausted its recovery budget with continueOnFinalFail set.
package result

// Result is the outcome of a single step invocation.
//
// The zero value is not meaningful; construct with Ok or Err.
type Result struct {
	value   any
	err     error
	isError bool
}

// Ok wraps a successful step value.
func Ok(value any) Result {
	return Result{value: value}
}

// Err wraps a step failure that the job continues past (skip, or
// continue-on-final-fail after recovery is exhausted). The original cause is
// preserved unchanged, never rewrapped or stringified.
func Err(cause error) Result {
	return Result{err: cause, isError: true}
}

// IsError reports whether this result represents a step failure carried
// forward rather than a successful value.
func (r Result) IsError() bool { return r.isError }

// Value returns the step's produced value. Meaningless if IsError is true.
func (r Result) Value() any { return r.value }

// Cause returns the wrapped error. Meaningless if IsError is false.
func (r Result) Cause() error { return r.err }
