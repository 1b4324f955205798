package scheduler

import (
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func TestScheduler_RunsJob(t *testing.T) {
	s := New(nil)

	var runs atomic.Int32
	if err := s.AddJob("tick", "@every 100ms", func() error {
		runs.Add(1)
		return nil
	}); err != nil {
		t.Fatalf("AddJob failed: %v", err)
	}

	s.Start()
	defer s.Stop()

	deadline := time.After(2 * time.Second)
	for runs.Load() == 0 {
		select {
		case <-deadline:
			t.Fatal("job never ran")
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func TestScheduler_InvalidSpec(t *testing.T) {
	s := New(nil)
	if err := s.AddJob("bad", "not a cron spec", func() error { return nil }); err == nil {
		t.Error("expected error for invalid cron spec")
	}
}

func TestScheduler_JobErrorDoesNotStopScheduling(t *testing.T) {
	s := New(nil)

	var runs atomic.Int32
	if err := s.AddJob("flaky", "@every 50ms", func() error {
		runs.Add(1)
		return errors.New("boom")
	}); err != nil {
		t.Fatal(err)
	}

	s.Start()
	defer s.Stop()

	deadline := time.After(2 * time.Second)
	for runs.Load() < 2 {
		select {
		case <-deadline:
			t.Fatal("failing job was not rescheduled")
		case <-time.After(10 * time.Millisecond):
		}
	}
}
