package concurrency

import "testing"

func TestSemaphoreTryAcquireRespectsLimit(t *testing.T) {
	t.Parallel()
	s := newSemaphore(2)
	if !s.TryAcquire() {
		t.Fatal("expected first acquire to succeed")
	}
	if !s.TryAcquire() {
		t.Fatal("expected second acquire to succeed")
	}
	if s.TryAcquire() {
		t.Fatal("expected third acquire to fail at limit 2")
	}
	s.Release()
	if !s.TryAcquire() {
		t.Fatal("expected acquire to succeed after a release")
	}
}

func TestGroupStoreFirstSeenLimitWins(t *testing.T) {
	t.Parallel()
	g := NewGroupStore()
	a := g.Get("k", 1)
	b := g.Get("k", 5)
	if a != b {
		t.Fatal("expected the same Semaphore instance for a repeated key")
	}
	if !a.TryAcquire() {
		t.Fatal("expected first acquire to succeed")
	}
	if a.TryAcquire() {
		t.Fatal("expected second acquire to fail: first-seen limit of 1 must win over the later limit of 5")
	}
}

func TestGroupStoreZeroLimitDisablesGate(t *testing.T) {
	t.Parallel()
	g := NewGroupStore()
	if sem := g.Get("k", 0); sem != nil {
		t.Fatal("expected nil Semaphore for a non-positive limit")
	}
}

func TestKeyFallsBackToTaskName(t *testing.T) {
	t.Parallel()
	if got := Key("", "my-task"); got != "my-task" {
		t.Fatalf("Key(%q, %q) = %q, want %q", "", "my-task", got, "my-task")
	}
	if got := Key("shared-group", "my-task"); got != "shared-group" {
		t.Fatalf("Key(%q, %q) = %q, want %q", "shared-group", "my-task", got, "shared-group")
	}
}
