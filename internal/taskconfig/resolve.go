package taskconfig

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"
)

// maxResolveDepth bounds the callable/future resolution loop so a
// self-referential config (a Callable that returns another Callable
// indefinitely) fails loudly instead of hanging.
const maxResolveDepth = 32

// resolveValue repeatedly invokes Callables and awaits Awaitables until a
// plain value settles out, or the depth guard trips.
func resolveValue(ctx context.Context, bag map[string]any, task any, raw any) (any, error) {
	v := raw
	for depth := 0; depth < maxResolveDepth; depth++ {
		switch fn := v.(type) {
		case Callable:
			out, err := fn(bag, task)
			if err != nil {
				return nil, fmt.Errorf("%w: %v", ErrCannotResolve, err)
			}
			v = out
		case Awaitable:
			out, err := fn.Await(ctx)
			if err != nil {
				return nil, fmt.Errorf("%w: %v", ErrCannotResolve, err)
			}
			v = out
		default:
			return v, nil
		}
	}
	return nil, fmt.Errorf("%w: resolution depth exceeded %d", ErrCannotResolve, maxResolveDepth)
}

// OptionalToValue implements optionalToValue(default, raw, expectedType)
//: absent raw returns def; a settled value must type-assert to T or
// the firing fails with ErrCannotResolve.
func OptionalToValue[T any](ctx context.Context, bag map[string]any, task any, def T, raw any) (T, error) {
	if raw == nil {
		return def, nil
	}
	v, err := resolveValue(ctx, bag, task, raw)
	if err != nil {
		var zero T
		return zero, err
	}
	if v == nil {
		return def, nil
	}
	t, ok := v.(T)
	if !ok {
		var zero T
		return zero, fmt.Errorf("%w: expected %T, got %T", ErrCannotResolve, def, v)
	}
	return t, nil
}

// ResolveValue exposes the Callable/Awaitable resolution loop for callers
// outside this package that need to resolve a single deferred value against
// an already-resolved bag, such as the Run Attempt's per-invocation args
// producer.
func ResolveValue(ctx context.Context, bag map[string]any, task any, raw any) (any, error) {
	return resolveValue(ctx, bag, task, raw)
}

// resolveBag processes the `resolve` mapping first and in parallel; a
// failure in any entry cancels its siblings and propagates to the caller
// rather than being swallowed.
func resolveBag(ctx context.Context, raw map[string]any, task any) (map[string]any, error) {
	out := make(map[string]any, len(raw))
	if len(raw) == 0 {
		return out, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	var mu sync.Mutex
	for k, v := range raw {
		k, v := k, v
		g.Go(func() error {
			resolved, err := resolveValue(gctx, nil, task, v)
			if err != nil {
				return fmt.Errorf("resolve[%s]: %w", k, err)
			}
			mu.Lock()
			out[k] = resolved
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// ResolveErrorConfig materializes a step's canFail policy, merging explicit
// fields over engine defaults. Each recognized key is copied from its own
// field; schedule and skip are never cross-assigned from one another.
// The canFail = true shorthand takes the defaults' values in full, not a
// hardcoded continueOnFinalFail = true.
func ResolveErrorConfig(raw any, defaults CameleerDefaults) ResolvedErrorConfig {
	def := ResolvedErrorConfig{
		Schedule:            defaults.RecoverySchedule,
		MaxNumFails:         defaults.MaxNumFails,
		Skip:                defaults.Skip,
		ContinueOnFinalFail: defaults.ContinueOnFinalFail,
	}

	switch v := raw.(type) {
	case nil:
		return def
	case bool:
		if !v {
			// canFail = false shorthand: zero retries, must not fail.
			return ResolvedErrorConfig{Schedule: defaults.RecoverySchedule, MaxNumFails: 0, Skip: false, ContinueOnFinalFail: false}
		}
		// canFail = true shorthand: defaults in full.
		return def
	case FunctionalTaskErrorConfig:
		out := def
		if v.Schedule != nil {
			out.Schedule = v.Schedule
		}
		if v.MaxNumFails != nil {
			out.MaxNumFails = *v.MaxNumFails
		}
		if v.Skip != nil {
			out.Skip = *v.Skip
		}
		if v.ContinueOnFinalFail != nil {
			out.ContinueOnFinalFail = *v.ContinueOnFinalFail
		}
		return out
	case *FunctionalTaskErrorConfig:
		if v == nil {
			return def
		}
		cp := *v
		return ResolveErrorConfig(cp, defaults)
	default:
		return def
	}
}

func normalizeStep(raw StepConfig, defaults CameleerDefaults) ResolvedStep {
	return ResolvedStep{
		Name:     raw.Name,
		Fn:       raw.Fn,
		Receiver: raw.Receiver,
		Args:     raw.Args,
		CanFail:  ResolveErrorConfig(raw.CanFail, defaults),
	}
}

// Resolve turns a TaskConfig into a ResolvedConfig: the `resolve` bag
// first and in parallel, then every other optional slot, then step
// normalization. Produced fresh on every firing — never cached.
func Resolve(ctx context.Context, cfg TaskConfig, defaults CameleerDefaults, task any) (ResolvedConfig, error) {
	bag, err := resolveBag(ctx, cfg.Resolve, task)
	if err != nil {
		return ResolvedConfig{}, err
	}

	enabled, err := OptionalToValue(ctx, bag, task, true, cfg.Enabled)
	if err != nil {
		return ResolvedConfig{}, err
	}
	skip, err := OptionalToValue(ctx, bag, task, false, cfg.Skip)
	if err != nil {
		return ResolvedConfig{}, err
	}
	allowMultiple, err := OptionalToValue(ctx, bag, task, false, cfg.AllowMultiple)
	if err != nil {
		return ResolvedConfig{}, err
	}
	queues, err := OptionalToValue[[]string](ctx, bag, task, nil, cfg.Queues)
	if err != nil {
		return ResolvedConfig{}, err
	}

	var cost *float64
	if cfg.Cost != nil {
		v, err := resolveValue(ctx, bag, task, cfg.Cost)
		if err != nil {
			return ResolvedConfig{}, err
		}
		if v != nil {
			f, err := asFloat64(v)
			if err != nil {
				return ResolvedConfig{}, err
			}
			cost = &f
		}
	}

	var interruptSecs *float64
	if cfg.InterruptTimeoutSecs != nil {
		v, err := resolveValue(ctx, bag, task, cfg.InterruptTimeoutSecs)
		if err != nil {
			return ResolvedConfig{}, err
		}
		if v != nil {
			f, err := asFloat64(v)
			if err != nil {
				return ResolvedConfig{}, err
			}
			interruptSecs = &f
		}
	}

	var rawSteps []StepConfig
	if cfg.Steps != nil {
		v, err := resolveValue(ctx, bag, task, cfg.Steps)
		if err != nil {
			return ResolvedConfig{}, err
		}
		switch s := v.(type) {
		case []StepConfig:
			rawSteps = s
		case nil:
		default:
			return ResolvedConfig{}, fmt.Errorf("%w: steps producer returned %T, want []StepConfig", ErrCannotResolve, v)
		}
	}

	steps := make([]ResolvedStep, 0, len(rawSteps))
	for _, s := range rawSteps {
		steps = append(steps, normalizeStep(s, defaults))
	}

	return ResolvedConfig{
		Name:                 cfg.Name,
		Enabled:              enabled,
		Schedule:             cfg.Schedule,
		Skip:                 skip,
		Cost:                 cost,
		AllowMultiple:        allowMultiple,
		Queues:               queues,
		Progress:             cfg.Progress,
		InterruptTimeoutSecs: interruptSecs,
		Steps:                steps,
		Resolve:              bag,
	}, nil
}

func asFloat64(v any) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	default:
		return 0, fmt.Errorf("%w: expected numeric, got %T", ErrCannotResolve, v)
	}
}
