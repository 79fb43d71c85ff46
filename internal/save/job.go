package save

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/spherical/pdf2jpeg/internal/domain"
	"github.com/spherical/pdf2jpeg/internal/observability"
	"github.com/spherical/pdf2jpeg/internal/progress"
)

// ErrJobStarted is returned when Start is called twice.
var ErrJobStarted = errors.New("job already started")

// Job runs a save on a background goroutine and signals completion by closing Done.
type Job struct {
	svc      *Service
	session  *domain.Session
	observer func(domain.StreamEvent)
	tracker  *progress.Tracker

	mu     sync.Mutex
	state  domain.RunState
	cancel context.CancelFunc
	result *domain.RunResult
	err    error

	done chan struct{}
}

// JobOption configures a Job.
type JobOption func(*Job)

// WithObserver receives every stream event on the job's event goroutine.
func WithObserver(fn func(domain.StreamEvent)) JobOption {
	return func(j *Job) {
		j.observer = fn
	}
}

// NewJob creates an idle job for the session.
func NewJob(svc *Service, session *domain.Session, opts ...JobOption) *Job {
	j := &Job{
		svc:     svc,
		session: session,
		tracker: progress.NewTracker(),
		state:   domain.StateIdle,
		done:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(j)
	}
	return j
}

// StartJob creates and starts a job.
func StartJob(ctx context.Context, svc *Service, session *domain.Session, opts ...JobOption) *Job {
	j := NewJob(svc, session, opts...)
	_ = j.Start(ctx)
	return j
}

// Start begins the save. The job stops early when ctx is cancelled or Cancel is called.
func (j *Job) Start(ctx context.Context) error {
	j.mu.Lock()
	if j.state != domain.StateIdle {
		j.mu.Unlock()
		return ErrJobStarted
	}
	runCtx, cancel := context.WithCancel(ctx)
	if j.session != nil {
		runCtx = observability.ContextWithRunID(runCtx, j.session.ID)
	}
	j.cancel = cancel
	j.state = domain.StateRunning
	j.mu.Unlock()

	events := make(chan domain.StreamEvent, j.svc.opts.EventQueue)
	consumed := make(chan struct{})

	go func() {
		defer close(consumed)
		for evt := range events {
			j.tracker.Observe(evt)
			if j.observer != nil {
				j.observer(evt)
			}
		}
	}()

	go func() {
		defer close(j.done)
		defer cancel()

		result, err := j.run(runCtx, events)
		close(events)
		<-consumed
		j.finish(result, err)
	}()

	return nil
}

func (j *Job) run(ctx context.Context, events chan<- domain.StreamEvent) (result *domain.RunResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = panicError(r)
			j.svc.logger.WithContext(ctx).Error().Err(err).Msg("Save aborted")
			j.svc.emitError(events, err)
		}
	}()
	return j.svc.Save(ctx, j.session, events)
}

func (j *Job) finish(result *domain.RunResult, err error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	j.result, j.err = result, err
	switch {
	case err == nil:
		j.state = domain.StateCompleted
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		j.state = domain.StateCancelled
	default:
		j.state = domain.StateFailed
	}
}

// Done is closed when the job reaches a terminal state.
func (j *Job) Done() <-chan struct{} {
	return j.done
}

// Wait blocks until the job finishes and returns its result.
// A cancelled run returns the outcomes gathered before cancellation.
func (j *Job) Wait() (*domain.RunResult, error) {
	<-j.done
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.result, j.err
}

// Cancel stops the run before the next page. It has no effect once the job is done.
func (j *Job) Cancel() {
	j.mu.Lock()
	cancel := j.cancel
	j.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// State returns the current lifecycle state.
func (j *Job) State() domain.RunState {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.state
}

// Progress returns the latest progress snapshot.
func (j *Job) Progress() progress.Snapshot {
	return j.tracker.Snapshot()
}

// panicError turns a recovered panic into a domain error, singling out
// allocation failures so callers can suggest a lower DPI.
func panicError(r interface{}) error {
	cause, ok := r.(error)
	if !ok {
		cause = fmt.Errorf("%v", r)
	}

	if isAllocationFailure(cause.Error()) {
		return domain.MemoryError("the system ran out of memory while saving images; consider lowering the DPI or processing fewer pages", cause)
	}
	return domain.SaveError("an error occurred while saving images", cause)
}

func isAllocationFailure(msg string) bool {
	msg = strings.ToLower(msg)
	for _, marker := range []string{"out of memory", "makeslice", "cannot allocate"} {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}
