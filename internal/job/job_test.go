package job

import (
	"context"
	"errors"
	"testing"

	"cameleer/internal/taskconfig"
)

func TestRunExecutesStepsSeriallyAndRecordsResults(t *testing.T) {
	t.Parallel()
	var order []string
	cfg := taskconfig.ResolvedConfig{
		Steps: []taskconfig.ResolvedStep{
			{Name: "a", Fn: func(ctx context.Context, args []any) (any, error) {
				order = append(order, "a")
				return 1, nil
			}},
			{Name: "b", Fn: func(ctx context.Context, args []any) (any, error) {
				order = append(order, "b")
				return 2, nil
			}},
		},
	}

	j := New("demo")
	if err := j.Run(context.Background(), cfg, nil); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(order) != 2 || order[0] != "a" || order[1] != "b" {
		t.Fatalf("unexpected step order: %+v", order)
	}
	results := j.Results()
	if len(results) != 2 || results[0].Value() != 1 || results[1].Value() != 2 {
		t.Fatalf("unexpected results: %+v", results)
	}
	done := j.FuncTasksDone()
	if len(done) != 2 || done[0] != "a" || done[1] != "b" {
		t.Fatalf("unexpected funcTasksDone: %+v", done)
	}
}

func TestRunStopsOnFinalFail(t *testing.T) {
	t.Parallel()
	boom := errors.New("boom")
	ranSecond := false
	cfg := taskconfig.ResolvedConfig{
		Steps: []taskconfig.ResolvedStep{
			{Name: "fails", Fn: func(ctx context.Context, args []any) (any, error) { return nil, boom },
				CanFail: taskconfig.ResolvedErrorConfig{MaxNumFails: 0}},
			{Name: "never", Fn: func(ctx context.Context, args []any) (any, error) {
				ranSecond = true
				return nil, nil
			}},
		},
	}

	j := New("demo")
	err := j.Run(context.Background(), cfg, nil)
	if err == nil {
		t.Fatal("expected FailError")
	}
	var fe *FailError
	if !errors.As(err, &fe) || fe.Step != "fails" {
		t.Fatalf("err = %v, want FailError for step %q", err, "fails")
	}
	if ranSecond {
		t.Fatal("step after a final failure must not run")
	}
	if len(j.Results()) != 0 {
		t.Fatalf("a final-failing step must not append a result, got %+v", j.Results())
	}
}

func TestContextGetSet(t *testing.T) {
	t.Parallel()
	j := New("demo")
	if _, ok := j.Get("missing"); ok {
		t.Fatal("expected missing key to report ok=false")
	}
	j.Set("k", "v")
	v, ok := j.Get("k")
	if !ok || v != "v" {
		t.Fatalf("Get(k) = (%v, %v), want (v, true)", v, ok)
	}
}

func TestNewAssignsMonotonicIDs(t *testing.T) {
	t.Parallel()
	a := New("t1")
	b := New("t1")
	if b.ID <= a.ID {
		t.Fatalf("expected monotonically increasing IDs, got %d then %d", a.ID, b.ID)
	}
}
