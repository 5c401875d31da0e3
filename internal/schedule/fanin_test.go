package schedule

import (
	"testing"
	"time"
)

func TestFaninRoutesFirings(t *testing.T) {
	t.Parallel()
	f := NewFanin()
	m := NewManual()

	ch, err := f.AddSchedule("task-a", m)
	if err != nil {
		t.Fatalf("AddSchedule: %v", err)
	}

	m.Trigger()
	select {
	case firing := <-ch:
		if firing.Task != "task-a" || firing.Event.Kind != EventNext {
			t.Fatalf("unexpected firing: %+v", firing)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for fan-in firing")
	}
}

func TestFaninRemoveSchedule(t *testing.T) {
	t.Parallel()
	f := NewFanin()
	m := NewManual()
	ch, err := f.AddSchedule("task-a", m)
	if err != nil {
		t.Fatalf("AddSchedule: %v", err)
	}

	f.RemoveSchedule("task-a")
	select {
	case _, ok := <-ch:
		if ok {
			t.Fatal("expected channel to close after RemoveSchedule")
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for channel close")
	}
}

type unsupportedSchedule struct{}

func (unsupportedSchedule) Kind() Kind                         { return Kind(99) }
func (unsupportedSchedule) Subscribe() (<-chan Event, func()) { return nil, func() {} }

func TestFaninRejectsUnsupportedKind(t *testing.T) {
	t.Parallel()
	f := NewFanin()
	if _, err := f.AddSchedule("task-a", unsupportedSchedule{}); err == nil {
		t.Fatal("expected error for unsupported schedule kind")
	}
}
