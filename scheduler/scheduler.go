// Package scheduler runs pathfinding jobs in the background, one at a time
// in submission order, in bounded time slices.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

var (
	// ErrCanceled is the error of a job removed with Cancel
	ErrCanceled = errors.New("scheduler: job canceled")

	// ErrSearchPanicked wraps a panic raised while stepping a job
	ErrSearchPanicked = errors.New("scheduler: search panicked")
)

const (
	DefaultStepsPerIteration = 20
	DefaultSliceBudget       = 50 * time.Millisecond
	DefaultSliceInterval     = time.Second / 60
)

// Options configures a Scheduler
type Options struct {
	// StepsPerIteration is how many steps run between clock checks
	StepsPerIteration int
	// SliceBudget bounds the time spent in one slice
	SliceBudget time.Duration
	// SliceInterval is the minimum spacing between slice starts
	SliceInterval time.Duration
	Logger        *slog.Logger
}

// DefaultOptions returns the default slice sizing
func DefaultOptions() Options {
	return Options{
		StepsPerIteration: DefaultStepsPerIteration,
		SliceBudget:       DefaultSliceBudget,
		SliceInterval:     DefaultSliceInterval,
		Logger:            slog.Default(),
	}
}

// Option mutates Options
type Option func(*Options)

// WithStepsPerIteration sets the steps run between clock checks
func WithStepsPerIteration(n int) Option {
	return func(o *Options) { o.StepsPerIteration = n }
}

// WithSliceBudget sets the time budget of one slice
func WithSliceBudget(d time.Duration) Option {
	return func(o *Options) { o.SliceBudget = d }
}

// WithSliceInterval sets the minimum spacing between slices. Zero disables
// pacing.
func WithSliceInterval(d time.Duration) Option {
	return func(o *Options) { o.SliceInterval = d }
}

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) Option {
	return func(o *Options) { o.Logger = logger }
}

// Scheduler is a first-come first-served queue of searches.
//
// Thread Safety:
//
//	Submit, Cancel, ResetAll and Pending may be called from any goroutine.
//	Searchers are only stepped by the goroutine calling RunSlice or Run.
type Scheduler struct {
	mu      sync.Mutex
	queue   []*Job
	wake    chan struct{}
	limiter *rate.Limiter
	options Options
}

// New creates an idle scheduler
func New(opts ...Option) *Scheduler {
	options := DefaultOptions()
	for _, opt := range opts {
		opt(&options)
	}
	if options.StepsPerIteration <= 0 {
		options.StepsPerIteration = DefaultStepsPerIteration
	}
	if options.SliceBudget <= 0 {
		options.SliceBudget = DefaultSliceBudget
	}

	limit := rate.Inf
	if options.SliceInterval > 0 {
		limit = rate.Every(options.SliceInterval)
	}
	return &Scheduler{
		wake:    make(chan struct{}, 1),
		limiter: rate.NewLimiter(limit, 1),
		options: options,
	}
}

// Submit queues a search and returns its job
func (s *Scheduler) Submit(searcher Searcher) *Job {
	job := newJob(searcher, time.Now())

	s.mu.Lock()
	s.queue = append(s.queue, job)
	depth := len(s.queue)
	s.mu.Unlock()

	jobsSubmitted.Inc()
	queueDepth.Set(float64(depth))
	select {
	case s.wake <- struct{}{}:
	default:
	}
	return job
}

// Cancel removes a queued job. It returns false if the job is unknown or
// already finished.
func (s *Scheduler) Cancel(id uuid.UUID) bool {
	s.mu.Lock()
	var job *Job
	for i, j := range s.queue {
		if j.ID == id {
			job = j
			s.queue = append(s.queue[:i], s.queue[i+1:]...)
			break
		}
	}
	depth := len(s.queue)
	s.mu.Unlock()

	if job == nil {
		return false
	}
	queueDepth.Set(float64(depth))
	if !job.finish(nil, ErrCanceled) {
		return false
	}
	jobsFinished.WithLabelValues("canceled").Inc()
	return true
}

// ResetAll restarts every queued search from its source. The reset is
// applied before the job is next stepped.
func (s *Scheduler) ResetAll() {
	s.mu.Lock()
	for _, job := range s.queue {
		job.resetRequested = true
	}
	n := len(s.queue)
	s.mu.Unlock()
	s.options.Logger.Debug("scheduled searches reset", slog.Int("jobs", n))
}

// Pending returns the number of queued jobs
func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue)
}

// Run processes slices until ctx ends
func (s *Scheduler) Run(ctx context.Context) error {
	for {
		if s.Pending() == 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-s.wake:
			}
		}
		if err := s.limiter.Wait(ctx); err != nil {
			return err
		}
		s.RunSlice()
	}
}

// RunSlice steps the head of the queue until the slice budget is spent or
// the queue is empty. It returns how many jobs finished.
func (s *Scheduler) RunSlice() int {
	start := time.Now()
	deadline := start.Add(s.options.SliceBudget)
	finished := 0

	for time.Now().Before(deadline) {
		job, reset := s.head()
		if job == nil {
			break
		}
		if reset {
			job.searcher.Reset()
		}

		outcome, steps, err := s.iterate(job)
		if outcome == nil && err == nil {
			s.addSteps(job, steps)
			continue
		}
		if s.remove(job) && job.finish(outcome, err) {
			finished++
			s.record(job, steps, outcome, err)
		}
	}

	sliceDuration.Observe(time.Since(start).Seconds())
	return finished
}

func (s *Scheduler) head() (*Job, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.queue) == 0 {
		return nil, false
	}
	job := s.queue[0]
	reset := job.resetRequested
	job.resetRequested = false
	return job, reset
}

// iterate runs up to StepsPerIteration steps. A nil outcome and nil error
// mean the search is still unfinished.
func (s *Scheduler) iterate(job *Job) (outcome *Outcome, steps int, err error) {
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			s.options.Logger.Error("panic in scheduled search",
				slog.String("job_id", job.ID.String()),
				slog.Any("panic", r),
				slog.String("stack", string(buf[:n])),
			)
			outcome = nil
			err = fmt.Errorf("%w: %v", ErrSearchPanicked, r)
		}
	}()

	for steps < s.options.StepsPerIteration {
		result := job.searcher.Step()
		steps++
		if result.Done() {
			return NewOutcome(job.searcher, result), steps, nil
		}
	}
	return nil, steps, nil
}

func (s *Scheduler) addSteps(job *Job, steps int) {
	s.mu.Lock()
	job.steps += steps
	s.mu.Unlock()
}

// remove drops a job from the queue, reporting false if Cancel got there first
func (s *Scheduler) remove(job *Job) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, j := range s.queue {
		if j == job {
			s.queue = append(s.queue[:i], s.queue[i+1:]...)
			queueDepth.Set(float64(len(s.queue)))
			return true
		}
	}
	return false
}

func (s *Scheduler) record(job *Job, steps int, outcome *Outcome, err error) {
	s.mu.Lock()
	job.steps += steps
	total := job.steps
	s.mu.Unlock()

	status := "no_path"
	switch {
	case err != nil:
		status = "failed"
	case outcome.Found:
		status = "path"
	}
	jobsFinished.WithLabelValues(status).Inc()
	jobDuration.Observe(time.Since(job.Submitted).Seconds())
	s.options.Logger.Debug("scheduled search finished",
		slog.String("job_id", job.ID.String()),
		slog.String("status", status),
		slog.Int("steps", total),
		slog.Duration("elapsed", time.Since(job.Submitted)),
	)
}
