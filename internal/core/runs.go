package core

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrRunNotFound is returned for unknown or expired run ids.
	ErrRunNotFound = errors.New("run not found")

	// ErrRunInProgress is returned when a result is requested before the run finished.
	ErrRunInProgress = errors.New("run is still in progress")
)

// DefaultRunRetention is how long a finished run stays retrievable.
const DefaultRunRetention = 5 * time.Minute

// CompletionFunc is called once per background run after it finishes and
// before waiters are released.
type CompletionFunc func(ctx context.Context, summary RunSummary)

// RunRegistry runs pipeline passes in the background and keeps their progress
// and results retrievable by id for a retention period.
type RunRegistry struct {
	pipeline   *Pipeline
	limiter    *ParseLimiter
	retention  time.Duration
	onComplete CompletionFunc

	mu   sync.RWMutex
	runs map[string]*activeRun
}

type activeRun struct {
	ID        string
	FileName  string
	StartedAt time.Time
	Done      chan struct{}

	mu        sync.Mutex
	progress  Progress
	result    *ParseResult
	listeners []chan Progress
}

// RegistryOption configures a RunRegistry.
type RegistryOption func(*RunRegistry)

// WithRetention sets how long finished runs are kept.
func WithRetention(d time.Duration) RegistryOption {
	return func(r *RunRegistry) {
		if d > 0 {
			r.retention = d
		}
	}
}

// WithCompletion registers fn to receive every finished run.
func WithCompletion(fn CompletionFunc) RegistryOption {
	return func(r *RunRegistry) { r.onComplete = fn }
}

// NewRunRegistry creates a registry that runs p, admitting runs through limiter.
func NewRunRegistry(p *Pipeline, limiter *ParseLimiter, opts ...RegistryOption) *RunRegistry {
	if limiter == nil {
		limiter = NewParseLimiter(DefaultMaxConcurrentParses, DefaultMaxWaitTime)
	}
	r := &RunRegistry{
		pipeline:  p,
		limiter:   limiter,
		retention: DefaultRunRetention,
		runs:      make(map[string]*activeRun),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Limiter returns the limiter that admits runs.
func (r *RunRegistry) Limiter() *ParseLimiter { return r.limiter }

// Start waits for a parse slot, then parses in in the background and returns
// the run id immediately. ctx bounds only the wait for a slot; the run itself
// uses the logger carried by ctx and outlives the request.
func (r *RunRegistry) Start(ctx context.Context, in FileInput, opts ...ParseOption) (string, error) {
	if err := r.limiter.Acquire(ctx); err != nil {
		return "", err
	}

	id := uuid.New().String()
	run := &activeRun{
		ID:        id,
		FileName:  in.Name,
		StartedAt: time.Now(),
		Done:      make(chan struct{}),
		progress:  Progress{RunID: id, FileName: in.Name, Phase: PhaseDetecting},
	}

	r.mu.Lock()
	r.runs[id] = run
	r.mu.Unlock()

	runCtx := context.WithoutCancel(ctx)
	opts = append(opts, WithRunID(id), WithProgress(run.update))

	go func() {
		defer r.limiter.Release()
		defer r.cleanup(id, r.retention)

		result := r.pipeline.ParseAuto(runCtx, in, opts...)
		if r.onComplete != nil {
			r.complete(runCtx, RunSummary{
				RunID:    id,
				FileName: in.Name,
				Result:   result,
				Duration: time.Since(run.StartedAt),
			})
		}
		run.finish(result)
	}()

	return id, nil
}

// complete calls the completion hook, containing any panic it raises.
func (r *RunRegistry) complete(ctx context.Context, s RunSummary) {
	defer func() {
		if p := recover(); p != nil {
			LoggerFromContext(ctx).Error("run completion hook panicked", "run_id", s.RunID, "panic", p)
		}
	}()
	r.onComplete(ctx, s)
}

func (r *RunRegistry) get(id string) (*activeRun, error) {
	r.mu.RLock()
	run, ok := r.runs[id]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	return run, nil
}

// Subscribe returns a channel of progress updates for run id. The current
// progress is sent first; the channel is closed when the run finishes.
// Slow subscribers miss intermediate updates.
func (r *RunRegistry) Subscribe(id string) (<-chan Progress, error) {
	run, err := r.get(id)
	if err != nil {
		return nil, err
	}

	ch := make(chan Progress, 10)

	run.mu.Lock()
	defer run.mu.Unlock()
	ch <- run.progress
	if run.result != nil {
		close(ch)
		return ch, nil
	}
	run.listeners = append(run.listeners, ch)
	return ch, nil
}

// Progress returns the latest progress of run id without blocking.
func (r *RunRegistry) Progress(id string) (Progress, error) {
	run, err := r.get(id)
	if err != nil {
		return Progress{}, err
	}
	run.mu.Lock()
	defer run.mu.Unlock()
	return run.progress, nil
}

// Result returns the result of run id. The boolean is false while the run is
// still in progress.
func (r *RunRegistry) Result(id string) (ParseResult, bool, error) {
	run, err := r.get(id)
	if err != nil {
		return ParseResult{}, false, err
	}
	run.mu.Lock()
	defer run.mu.Unlock()
	if run.result == nil {
		return ParseResult{}, false, nil
	}
	return *run.result, true, nil
}

// Wait blocks until run id finishes or ctx ends.
func (r *RunRegistry) Wait(ctx context.Context, id string) (ParseResult, error) {
	run, err := r.get(id)
	if err != nil {
		return ParseResult{}, err
	}
	select {
	case <-run.Done:
	case <-ctx.Done():
		return ParseResult{}, ctx.Err()
	}
	run.mu.Lock()
	defer run.mu.Unlock()
	return *run.result, nil
}

// Len returns the number of tracked runs.
func (r *RunRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.runs)
}

// update records p and sends it to all listeners without blocking.
func (run *activeRun) update(p Progress) {
	run.mu.Lock()
	defer run.mu.Unlock()

	run.progress = p
	for _, ch := range run.listeners {
		select {
		case ch <- p:
		default:
			// Listener is slow, skip this update
		}
	}
}

// finish stores the result, closes all listener channels and releases waiters.
func (run *activeRun) finish(result ParseResult) {
	run.mu.Lock()
	run.result = &result
	for _, ch := range run.listeners {
		close(ch)
	}
	run.listeners = nil
	run.mu.Unlock()

	close(run.Done)
}

// cleanup removes the run from tracking after a delay.
func (r *RunRegistry) cleanup(id string, delay time.Duration) {
	time.AfterFunc(delay, func() {
		r.mu.Lock()
		delete(r.runs, id)
		r.mu.Unlock()
	})
}
