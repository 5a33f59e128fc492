package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"gridless-router/geometry"
	"gridless-router/pathfinder"
)

// Searcher is a resumable search the scheduler can drive.
// *pathfinder.Pathfinder implements it.
type Searcher interface {
	Step() pathfinder.Result
	Reset()
	Unroll(node pathfinder.DiscoveredNode) []geometry.Point
}

// Outcome is the final answer of a search
type Outcome struct {
	Found     bool             `json:"found"`
	Cost      float64          `json:"cost,omitempty"`
	Waypoints []geometry.Point `json:"waypoints,omitempty"`
}

// NewOutcome turns a terminal result into an Outcome
func NewOutcome(s Searcher, result pathfinder.Result) *Outcome {
	if result.Status != pathfinder.Found {
		return &Outcome{}
	}
	return &Outcome{
		Found:     true,
		Cost:      result.Node.Estimated,
		Waypoints: s.Unroll(result.Node),
	}
}

// Job is a queued search
type Job struct {
	ID        uuid.UUID
	Submitted time.Time

	searcher Searcher
	done     chan struct{}
	once     sync.Once
	outcome  *Outcome
	err      error

	// guarded by the scheduler mutex
	resetRequested bool
	steps          int
}

func newJob(s Searcher, now time.Time) *Job {
	return &Job{
		ID:        uuid.New(),
		Submitted: now,
		searcher:  s,
		done:      make(chan struct{}),
	}
}

// Done is closed once the job has an outcome or an error
func (j *Job) Done() <-chan struct{} {
	return j.done
}

// Wait blocks until the job finishes or ctx ends
func (j *Job) Wait(ctx context.Context) (*Outcome, error) {
	select {
	case <-j.done:
		return j.outcome, j.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Result returns the outcome without blocking. done is false while the
// job is still queued.
func (j *Job) Result() (outcome *Outcome, done bool, err error) {
	select {
	case <-j.done:
		return j.outcome, true, j.err
	default:
		return nil, false, nil
	}
}

func (j *Job) finish(outcome *Outcome, err error) bool {
	finished := false
	j.once.Do(func() {
		j.outcome = outcome
		j.err = err
		close(j.done)
		finished = true
	})
	return finished
}
