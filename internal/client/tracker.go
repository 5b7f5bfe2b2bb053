package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"genstudio/internal/domain"
	"genstudio/internal/infra"
)

// State is the tracker's view of a job.
type State string

const (
	StateIdle       State = "idle"
	StateSubmitting State = "submitting"
	StateProcessing State = "processing"
	StateCompleted  State = "completed"
	StateFailed     State = "failed"
)

// IsTerminal reports whether no further transitions can happen.
func (s State) IsTerminal() bool {
	return s == StateCompleted || s == StateFailed
}

var (
	// ErrAbandoned marks a job the caller stopped tracking.
	ErrAbandoned = errors.New("client: job tracking abandoned")
	// ErrJobCancelled marks a job that was cancelled on the server.
	ErrJobCancelled = errors.New("client: job cancelled")
	// ErrBusy is returned by Submit when the tracker already holds a job.
	ErrBusy = errors.New("client: tracker already holds a job")
	// ErrNoJob is returned by CancelJob before a job id is known.
	ErrNoJob = errors.New("client: no job to cancel")
)

// JobFailedError reports a job that reached the failed status.
type JobFailedError struct {
	Kind    domain.ErrorKind
	Message string
}

func (e *JobFailedError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("job failed: %s", e.Kind)
	}
	return fmt.Sprintf("job failed: %s: %s", e.Kind, e.Message)
}

// Snapshot is a point-in-time copy of the tracker.
type Snapshot struct {
	State     State
	JobID     string
	ResultURL string
	Duplicate bool
	// Job is the last job payload seen, if any.
	Job *domain.Job
	Err error
}

// Options configures a Tracker.
type Options struct {
	// ReconnectAttempts bounds how often a dropped stream is reopened. Zero
	// makes any transport error terminal.
	ReconnectAttempts int
	// ReconnectDelay is multiplied by the attempt number between reconnects.
	ReconnectDelay time.Duration
	Logger         *infra.Logger
}

// Tracker follows one job from submission to a terminal state.
type Tracker struct {
	api  *Client
	opts Options
	log  infra.Logger

	mu         sync.Mutex
	snap       Snapshot
	listeners  []func(Snapshot)
	stopStream context.CancelFunc
	done       chan struct{}
}

// NewTracker builds an idle Tracker using api for all requests.
func NewTracker(api *Client, opts Options) *Tracker {
	if opts.ReconnectAttempts < 0 {
		opts.ReconnectAttempts = 0
	}
	if opts.ReconnectDelay <= 0 {
		opts.ReconnectDelay = time.Second
	}
	logger := zerolog.Nop()
	if opts.Logger != nil {
		logger = *opts.Logger
	}
	return &Tracker{
		api:  api,
		opts: opts,
		log:  logger,
		snap: Snapshot{State: StateIdle},
		done: make(chan struct{}),
	}
}

// OnChange registers fn to be called after every transition.
func (t *Tracker) OnChange(fn func(Snapshot)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.listeners = append(t.listeners, fn)
}

// State returns the current snapshot.
func (t *Tracker) State() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.snap
}

// Done is closed once the tracker reaches a terminal state.
func (t *Tracker) Done() <-chan struct{} {
	return t.done
}

// Wait blocks until the job is terminal and returns the final snapshot
// together with its error.
func (t *Tracker) Wait(ctx context.Context) (Snapshot, error) {
	select {
	case <-t.done:
		snap := t.State()
		return snap, snap.Err
	case <-ctx.Done():
		return t.State(), ctx.Err()
	}
}

// Submit sends the prompt and, unless the server answered with a finished
// duplicate, starts following the job's events in the background.
func (t *Tracker) Submit(ctx context.Context, prompt, platform string) error {
	started := t.transition(func(s *Snapshot) bool {
		if s.State != StateIdle {
			return false
		}
		s.State = StateSubmitting
		return true
	})
	if !started {
		return ErrBusy
	}

	res, err := t.api.Submit(ctx, prompt, platform)
	if err != nil {
		t.finish(StateFailed, nil, err)
		return err
	}

	if res.IsDuplicate {
		t.transition(func(s *Snapshot) bool {
			if s.State != StateSubmitting {
				return false
			}
			s.JobID = res.JobID
			s.ResultURL = res.ResultURL
			s.Duplicate = true
			s.State = StateCompleted
			return true
		})
		return nil
	}

	streamCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	ok := t.transition(func(s *Snapshot) bool {
		if s.State != StateSubmitting {
			return false
		}
		s.JobID = res.JobID
		s.State = StateProcessing
		return true
	}, func() { t.stopStream = cancel })
	if !ok {
		cancel()
		return t.State().Err
	}
	go t.follow(streamCtx, res.JobID)
	return nil
}

// Abandon stops tracking without contacting the server.
func (t *Tracker) Abandon() {
	t.finish(StateFailed, nil, ErrAbandoned)
}

// CancelJob asks the server to cancel the job and stops tracking it. A
// server rejection is returned as an *APIError whose Status holds the job's
// current status.
func (t *Tracker) CancelJob(ctx context.Context) error {
	jobID := t.State().JobID
	if jobID == "" {
		return ErrNoJob
	}
	job, err := t.api.Cancel(ctx, jobID)
	if err != nil {
		t.finish(StateFailed, nil, ErrAbandoned)
		return err
	}
	t.finish(StateFailed, job, ErrJobCancelled)
	return nil
}

func (t *Tracker) follow(ctx context.Context, jobID string) {
	logger := t.log.With().Str("job_id", jobID).Logger()
	attempts := 0
	for {
		err := t.streamOnce(ctx, jobID)
		if ctx.Err() != nil || t.State().State.IsTerminal() {
			return
		}
		if attempts >= t.opts.ReconnectAttempts {
			t.finish(StateFailed, nil, fmt.Errorf("client: event stream: %w", err))
			return
		}
		attempts++
		delay := t.opts.ReconnectDelay * time.Duration(attempts)
		logger.Warn().Err(err).Int("attempt", attempts).Dur("delay", delay).Msg("client: stream dropped, reconnecting")
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

// streamOnce follows a single stream connection. It returns nil once the job
// is terminal and an error when the connection could not carry it there.
func (t *Tracker) streamOnce(ctx context.Context, jobID string) error {
	stream, err := t.api.OpenStream(ctx)
	if err != nil {
		return err
	}
	defer stream.Close()
	stop := context.AfterFunc(ctx, func() { stream.Close() })
	defer stop()

	// The subscription is live once the response arrived, so anything that
	// happened before it is picked up from the status endpoint.
	job, err := t.api.Status(ctx, jobID)
	if err != nil {
		return err
	}
	if t.applyJob(job) {
		return nil
	}

	for {
		frame, err := stream.Next()
		if err != nil {
			return err
		}
		if frame.Event == "" || frame.Data == "" {
			continue
		}
		eventType, ok := domain.EventTypeFromStreamName(frame.Event)
		if !ok {
			continue
		}
		var job domain.Job
		if err := json.Unmarshal([]byte(frame.Data), &job); err != nil {
			t.log.Warn().Err(err).Str("event", frame.Event).Msg("client: skip malformed frame")
			continue
		}
		if job.ID != jobID {
			continue
		}
		switch eventType {
		case domain.EventCompleted:
			job.Status = domain.JobStatusCompleted
		case domain.EventFailed:
			job.Status = domain.JobStatusFailed
		default:
			continue
		}
		if t.applyJob(&job) {
			return nil
		}
	}
}

// applyJob moves the tracker to the terminal state matching job and reports
// whether it did.
func (t *Tracker) applyJob(job *domain.Job) bool {
	switch job.Status {
	case domain.JobStatusCompleted:
		t.finish(StateCompleted, job, nil)
	case domain.JobStatusFailed:
		t.finish(StateFailed, job, &JobFailedError{Kind: job.ErrorKind, Message: job.ErrorMessage})
	case domain.JobStatusCancelled:
		t.finish(StateFailed, job, ErrJobCancelled)
	default:
		return false
	}
	return true
}

func (t *Tracker) finish(state State, job *domain.Job, err error) {
	t.transition(func(s *Snapshot) bool {
		if s.State.IsTerminal() {
			return false
		}
		s.State = state
		s.Err = err
		if job != nil {
			s.Job = job
			s.ResultURL = job.ResultURL
		}
		return true
	})
}

// transition applies mutate under the lock. When it reports a change the
// stream is torn down on leaving processing and listeners are notified.
func (t *Tracker) transition(mutate func(*Snapshot) bool, locked ...func()) bool {
	t.mu.Lock()
	prev := t.snap.State
	if !mutate(&t.snap) {
		t.mu.Unlock()
		return false
	}
	for _, fn := range locked {
		fn()
	}
	snap := t.snap
	var stop context.CancelFunc
	if prev == StateProcessing && snap.State != StateProcessing {
		stop, t.stopStream = t.stopStream, nil
	}
	if snap.State.IsTerminal() {
		close(t.done)
	}
	listeners := append([]func(Snapshot){}, t.listeners...)
	t.mu.Unlock()

	if stop != nil {
		stop()
	}
	for _, fn := range listeners {
		fn(snap)
	}
	return true
}
