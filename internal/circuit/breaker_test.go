package circuit

import (
	"errors"
	"testing"
	"time"
)

func TestIsOpenDisabledWhenTripNonPositive(t *testing.T) {
	t.Parallel()
	s := NewStore()
	cfg := Config{Trip: 0}
	now := time.Now()
	s.RecordResult(now, "task", cfg, errors.New("boom"))
	open, _ := s.IsOpen(now, "task", cfg)
	if open {
		t.Fatal("a breaker with Trip <= 0 must never open")
	}
}

func TestTripsAfterConsecutiveFailures(t *testing.T) {
	t.Parallel()
	s := NewStore()
	cfg := Config{Trip: 3, BaseDelay: time.Second, MaxDelay: time.Minute, ResetAfter: time.Hour}
	now := time.Now()
	boom := errors.New("boom")

	for i := 0; i < 2; i++ {
		s.RecordResult(now, "task", cfg, boom)
		if open, _ := s.IsOpen(now, "task", cfg); open {
			t.Fatalf("circuit opened too early after %d failures", i+1)
		}
	}
	s.RecordResult(now, "task", cfg, boom)
	open, until := s.IsOpen(now, "task", cfg)
	if !open {
		t.Fatal("expected circuit to open after reaching Trip")
	}
	if !until.After(now) {
		t.Fatalf("openUntil = %v, want after %v", until, now)
	}
}

func TestSuccessResetsFailureCount(t *testing.T) {
	t.Parallel()
	s := NewStore()
	cfg := Config{Trip: 2, BaseDelay: time.Second, MaxDelay: time.Minute, ResetAfter: time.Hour}
	now := time.Now()
	boom := errors.New("boom")

	s.RecordResult(now, "task", cfg, boom)
	s.RecordResult(now, "task", cfg, nil)
	s.RecordResult(now, "task", cfg, boom)
	if open, _ := s.IsOpen(now, "task", cfg); open {
		t.Fatal("a success between failures must reset the streak")
	}
}

func TestCooldownExpires(t *testing.T) {
	t.Parallel()
	s := NewStore()
	cfg := Config{Trip: 1, BaseDelay: 10 * time.Millisecond, MaxDelay: time.Minute, ResetAfter: time.Hour}
	now := time.Now()
	s.RecordResult(now, "task", cfg, errors.New("boom"))
	if open, until := s.IsOpen(now, "task", cfg); !open {
		t.Fatal("expected circuit open immediately after trip")
	} else if open, _ := s.IsOpen(until.Add(time.Millisecond), "task", cfg); open {
		t.Fatal("expected circuit closed once cooldown elapses")
	}
}

func TestResetIfQuietClearsOldFailures(t *testing.T) {
	t.Parallel()
	s := NewStore()
	cfg := Config{Trip: 2, BaseDelay: time.Second, MaxDelay: time.Minute, ResetAfter: time.Millisecond}
	now := time.Now()
	s.RecordResult(now, "task", cfg, errors.New("boom"))

	later := now.Add(time.Hour)
	s.RecordResult(later, "task", cfg, errors.New("boom"))
	if open, _ := s.IsOpen(later, "task", cfg); open {
		t.Fatal("a quiet period should reset the failure streak before the second failure")
	}
}

func TestSnapshotCountsOpenCircuits(t *testing.T) {
	t.Parallel()
	s := NewStore()
	cfg := Config{Trip: 1, BaseDelay: time.Minute, MaxDelay: time.Minute, ResetAfter: time.Hour}
	now := time.Now()
	s.RecordResult(now, "a", cfg, errors.New("boom"))
	s.RecordResult(now, "b", cfg, nil)

	total, open := s.Snapshot(now)
	if total != 2 {
		t.Fatalf("total = %d, want 2", total)
	}
	if open != 1 {
		t.Fatalf("open = %d, want 1", open)
	}
}
