package analysis

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"furnacewear/internal/metrics"
	"furnacewear/internal/models"
	"furnacewear/pkg/repair"
)

// ErrRunnerClosed is returned by Await after Close.
var ErrRunnerClosed = errors.New("analysis runner closed")

// Job is one proposal computation.
type Job struct {
	File          *models.ParsedFile
	Params        models.AnalysisParams
	ParamsVersion uint64
}

// Result is the outcome of a job. Err is set for failures other than
// cancellation.
type Result struct {
	Generation    uint64          `json:"generation"`
	File          string          `json:"file"`
	ParamsVersion uint64          `json:"paramsVersion"`
	Proposal      models.Proposal `json:"proposal"`
	Err           error           `json:"-"`
	Error         string          `json:"error,omitempty"`
	Duration      time.Duration   `json:"duration"`
	CompletedAt   time.Time       `json:"completedAt"`
}

// Runner computes proposals in the background. Submitting a job cancels
// the one in flight, and a result is only published if no newer result
// has been published before it.
type Runner struct {
	calc   *repair.Calculator
	logger *slog.Logger

	mu      sync.Mutex
	gen     uint64
	cancel  context.CancelFunc
	last    *Job
	latest  *Result
	changed chan struct{}
	closed  chan struct{}
	wg      sync.WaitGroup
}

// NewRunner creates a runner backed by calc.
func NewRunner(calc *repair.Calculator, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{
		calc:    calc,
		logger:  logger,
		changed: make(chan struct{}),
		closed:  make(chan struct{}),
	}
}

// Submit starts job, cancelling any job still running, and returns its
// generation.
func (r *Runner) Submit(job Job) uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()

	select {
	case <-r.closed:
		return r.gen
	default:
	}

	if r.cancel != nil {
		r.cancel()
	}
	r.gen++
	gen := r.gen
	ctx, cancel := context.WithCancel(context.Background())
	r.cancel = cancel
	r.last = &job

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer cancel()
		r.run(ctx, gen, job)
	}()
	return gen
}

// Resubmit reruns the last submitted file with new parameters. It reports
// false when nothing has been submitted yet.
func (r *Runner) Resubmit(params models.AnalysisParams, version uint64) (uint64, bool) {
	r.mu.Lock()
	last := r.last
	r.mu.Unlock()
	if last == nil {
		return 0, false
	}
	return r.Submit(Job{File: last.File, Params: params, ParamsVersion: version}), true
}

func (r *Runner) run(ctx context.Context, gen uint64, job Job) {
	start := time.Now()
	proposal, err := r.calc.Propose(ctx, job.File.Points, job.Params)
	elapsed := time.Since(start)

	if errors.Is(err, context.Canceled) {
		r.logger.Debug("analysis superseded", "generation", gen, "file", job.File.Name)
		return
	}
	outcome := metrics.OutcomeSuccess
	if err != nil {
		outcome = metrics.OutcomeError
		r.logger.Warn("analysis failed", "generation", gen, "file", job.File.Name, "error", err)
	}
	metrics.ObserveProposal(string(job.Params.ClusterMode), elapsed, outcome)

	res := &Result{
		Generation:    gen,
		File:          job.File.Name,
		ParamsVersion: job.ParamsVersion,
		Proposal:      proposal,
		Err:           err,
		Duration:      elapsed,
		CompletedAt:   time.Now().UTC(),
	}
	if err != nil {
		res.Error = err.Error()
	}
	r.publish(res)
}

func (r *Runner) publish(res *Result) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.latest != nil && r.latest.Generation >= res.Generation {
		return
	}
	r.latest = res
	close(r.changed)
	r.changed = make(chan struct{})
}

// Latest returns the newest published result.
func (r *Runner) Latest() (Result, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.latest == nil {
		return Result{}, false
	}
	return *r.latest, true
}

// Await blocks until a result of generation gen or newer is published.
func (r *Runner) Await(ctx context.Context, gen uint64) (Result, error) {
	for {
		r.mu.Lock()
		if r.latest != nil && r.latest.Generation >= gen {
			res := *r.latest
			r.mu.Unlock()
			return res, nil
		}
		changed := r.changed
		r.mu.Unlock()

		select {
		case <-changed:
		case <-r.closed:
			return Result{}, ErrRunnerClosed
		case <-ctx.Done():
			return Result{}, ctx.Err()
		}
	}
}

// Close cancels the running job and waits for it to return.
func (r *Runner) Close() {
	r.mu.Lock()
	select {
	case <-r.closed:
		r.mu.Unlock()
		return
	default:
	}
	close(r.closed)
	if r.cancel != nil {
		r.cancel()
	}
	r.mu.Unlock()
	r.wg.Wait()
}
