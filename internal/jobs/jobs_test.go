package jobs

import (
	"context"
	"errors"
	"testing"
	"time"
)

func waitForStatus(t *testing.T, r *Runner, id string, want Status) *Job {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if j, ok := r.Get(id); ok && j.Status == want {
			return j
		}
		time.Sleep(5 * time.Millisecond)
	}
	j, _ := r.Get(id)
	t.Fatalf("job %s never reached %s, last seen: %+v", id, want, j)
	return nil
}

func TestSubmitRunsToCompletion(t *testing.T) {
	r := NewRunner(time.Hour)

	job := r.Submit(context.Background(), "rules.process", func(context.Context) (any, error) {
		return map[string]int{"created": 3}, nil
	})
	if job.Status != StatusPending && job.Status != StatusRunning {
		t.Fatalf("initial status = %s", job.Status)
	}

	done := waitForStatus(t, r, job.ID, StatusCompleted)
	if done.Error != "" {
		t.Fatalf("unexpected error: %s", done.Error)
	}
	result, ok := done.Result.(map[string]int)
	if !ok || result["created"] != 3 {
		t.Fatalf("result = %+v", done.Result)
	}
	if done.FinishedAt.IsZero() {
		t.Fatal("finished time not set")
	}
}

func TestSubmitRecordsFailure(t *testing.T) {
	r := NewRunner(time.Hour)

	job := r.Submit(context.Background(), "rules.process", func(context.Context) (any, error) {
		return nil, errors.New("store unavailable")
	})

	failed := waitForStatus(t, r, job.ID, StatusFailed)
	if failed.Error != "store unavailable" {
		t.Fatalf("error = %q", failed.Error)
	}
}

func TestGetUnknownJob(t *testing.T) {
	r := NewRunner(time.Hour)
	if _, ok := r.Get("nope"); ok {
		t.Fatal("unknown job found")
	}
}

func TestFinishedJobsArePruned(t *testing.T) {
	r := NewRunner(time.Nanosecond)

	job := r.Submit(context.Background(), "rules.process", func(context.Context) (any, error) {
		return nil, nil
	})
	waitForStatus(t, r, job.ID, StatusCompleted)
	time.Sleep(10 * time.Millisecond)

	// Submitting prunes finished jobs past retention.
	r.Submit(context.Background(), "rules.process", func(context.Context) (any, error) {
		return nil, nil
	})
	if _, ok := r.Get(job.ID); ok {
		t.Fatal("finished job survived pruning")
	}
}
