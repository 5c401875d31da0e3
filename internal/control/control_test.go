package control

import (
	"context"
	"errors"
	"net/http/httptest"
	"strings"
	"testing"

	"cameleer/internal/history"
	logx "cameleer/pkg/logx"
)

type fakeEngine struct {
	ran, paused, waited, shut bool
	interruptedID             uint64
	interruptErr              error
}

func (f *fakeEngine) Run()   { f.ran = true }
func (f *fakeEngine) Pause() { f.paused = true }
func (f *fakeEngine) PauseWait(ctx context.Context) error {
	f.waited = true
	return nil
}
func (f *fakeEngine) Shutdown(ctx context.Context) error {
	f.shut = true
	return nil
}
func (f *fakeEngine) InterruptJob(jobID uint64) error {
	f.interruptedID = jobID
	return f.interruptErr
}
func (f *fakeEngine) History() []history.Item { return nil }

func TestDispatchRun(t *testing.T) {
	f := &fakeEngine{}
	s := New(f, logx.Nop(), 0, 0)
	reply, err := s.Dispatch(context.Background(), "run")
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if reply != "ok" || !f.ran {
		t.Fatalf("expected run to be dispatched, got reply=%q ran=%v", reply, f.ran)
	}
}

func TestDispatchUnknownCommand(t *testing.T) {
	f := &fakeEngine{}
	s := New(f, logx.Nop(), 0, 0)
	if _, err := s.Dispatch(context.Background(), "frobnicate"); !errors.Is(err, ErrUnknownCommand) {
		t.Fatalf("expected ErrUnknownCommand, got %v", err)
	}
}

func TestDispatchInterrupt(t *testing.T) {
	f := &fakeEngine{}
	s := New(f, logx.Nop(), 0, 0)
	if _, err := s.Dispatch(context.Background(), "interrupt 42"); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if f.interruptedID != 42 {
		t.Fatalf("expected job id 42, got %d", f.interruptedID)
	}
}

func TestDispatchInterruptBadArgs(t *testing.T) {
	f := &fakeEngine{}
	s := New(f, logx.Nop(), 0, 0)
	if _, err := s.Dispatch(context.Background(), "interrupt"); !errors.Is(err, ErrUnknownCommand) {
		t.Fatalf("expected ErrUnknownCommand, got %v", err)
	}
}

func TestServeStdinRunsEachLine(t *testing.T) {
	f := &fakeEngine{}
	s := New(f, logx.Nop(), 0, 0)
	in := strings.NewReader("run\npause\n")
	var out strings.Builder
	if err := s.ServeStdin(context.Background(), in, &out); err != nil {
		t.Fatalf("ServeStdin: %v", err)
	}
	if !f.ran || !f.paused {
		t.Fatalf("expected both commands dispatched, got ran=%v paused=%v", f.ran, f.paused)
	}
	if !strings.Contains(out.String(), "ok") {
		t.Fatalf("expected ok replies, got %q", out.String())
	}
}

func TestHTTPHandlerDispatchesFromPath(t *testing.T) {
	f := &fakeEngine{}
	s := New(f, logx.Nop(), 0, 0)
	h := s.HTTPHandler()
	req := httptest.NewRequest("GET", "/control/command/pause", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if !f.paused {
		t.Fatal("expected pause to be dispatched via HTTP path")
	}
	if rec.Code != 200 {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestHTTPHandlerReturns500OnCommandFailure(t *testing.T) {
	f := &fakeEngine{interruptErr: errors.New("boom")}
	s := New(f, logx.Nop(), 0, 0)
	h := s.HTTPHandler()
	req := httptest.NewRequest("GET", "/control/command/interrupt/42", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != 500 {
		t.Fatalf("expected 500 on command failure, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "boom") {
		t.Fatalf("expected error text in body, got %q", rec.Body.String())
	}
}

func TestRateLimitRejectsBurst(t *testing.T) {
	f := &fakeEngine{}
	s := New(f, logx.Nop(), 1, 1)
	if _, err := s.Dispatch(context.Background(), "run"); err != nil {
		t.Fatalf("first dispatch: %v", err)
	}
	if _, err := s.Dispatch(context.Background(), "run"); err == nil {
		t.Fatal("expected second immediate dispatch to be rate limited")
	}
}
