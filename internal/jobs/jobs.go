// Package jobs tracks asynchronous work started from the API, such as
// a manually triggered recurring-rule run. Jobs live in memory and are
// polled by id; they do not survive a restart.
package jobs

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusPending   Status = "PENDING"
	StatusRunning   Status = "RUNNING"
	StatusCompleted Status = "COMPLETED"
	StatusFailed    Status = "FAILED"
)

type Job struct {
	ID         string    `json:"id"`
	Kind       string    `json:"kind"`
	Status     Status    `json:"status"`
	Result     any       `json:"result,omitempty"`
	Error      string    `json:"error,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	StartedAt  time.Time `json:"started_at,omitzero"`
	FinishedAt time.Time `json:"finished_at,omitzero"`
}

// Fn is the unit of work. The returned value becomes the job result.
type Fn func(ctx context.Context) (any, error)

// Runner executes jobs in the background and keeps their state for
// polling. Finished jobs older than the retention window are pruned
// lazily on Submit.
type Runner struct {
	mu        sync.RWMutex
	jobs      map[string]*Job
	retention time.Duration
}

func NewRunner(retention time.Duration) *Runner {
	if retention <= 0 {
		retention = time.Hour
	}
	return &Runner{jobs: make(map[string]*Job), retention: retention}
}

// Submit registers the job and starts it. The passed context only
// gates submission; the work itself runs under its own context so an
// HTTP request ending does not cancel it.
func (r *Runner) Submit(ctx context.Context, kind string, fn Fn) *Job {
	job := &Job{
		ID:        uuid.NewString(),
		Kind:      kind,
		Status:    StatusPending,
		CreatedAt: time.Now().UTC(),
	}

	r.mu.Lock()
	r.pruneLocked()
	r.jobs[job.ID] = job
	r.mu.Unlock()

	slog.InfoContext(ctx, "job submitted", "job_id", job.ID, "kind", kind)
	go r.run(job.ID, fn)
	return snapshot(job)
}

func (r *Runner) run(id string, fn Fn) {
	ctx := context.Background()

	r.update(id, func(j *Job) {
		j.Status = StatusRunning
		j.StartedAt = time.Now().UTC()
	})

	result, err := fn(ctx)

	r.update(id, func(j *Job) {
		j.FinishedAt = time.Now().UTC()
		if err != nil {
			j.Status = StatusFailed
			j.Error = err.Error()
			slog.ErrorContext(ctx, "job failed", "job_id", id, "kind", j.Kind, "error", err)
			return
		}
		j.Status = StatusCompleted
		j.Result = result
		slog.InfoContext(ctx, "job completed", "job_id", id, "kind", j.Kind)
	})
}

// Get returns a copy of the job, or false when unknown or pruned.
func (r *Runner) Get(id string) (*Job, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	j, ok := r.jobs[id]
	if !ok {
		return nil, false
	}
	return snapshot(j), true
}

// List returns all known jobs, newest first.
func (r *Runner) List() []*Job {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Job, 0, len(r.jobs))
	for _, j := range r.jobs {
		out = append(out, snapshot(j))
	}
	sort.Slice(out, func(i, k int) bool { return out[i].CreatedAt.After(out[k].CreatedAt) })
	return out
}

func (r *Runner) update(id string, apply func(*Job)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if j, ok := r.jobs[id]; ok {
		apply(j)
	}
}

func (r *Runner) pruneLocked() {
	cutoff := time.Now().UTC().Add(-r.retention)
	for id, j := range r.jobs {
		done := j.Status == StatusCompleted || j.Status == StatusFailed
		if done && j.FinishedAt.Before(cutoff) {
			delete(r.jobs, id)
		}
	}
}

func snapshot(j *Job) *Job {
	c := *j
	return &c
}
