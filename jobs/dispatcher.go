package jobs

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/owenfield/recall-api/apperr"
	"github.com/owenfield/recall-api/models"
)

// Handler processes one claimed job. The returned value is stored as the
// job's result; a non-nil error routes through Queue.Fail.
type Handler interface {
	Handle(ctx context.Context, job *models.Job) (any, error)
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(ctx context.Context, job *models.Job) (any, error)

// Handle implements Handler.
func (f HandlerFunc) Handle(ctx context.Context, job *models.Job) (any, error) {
	return f(ctx, job)
}

// Options configures a Dispatcher. Zero values produce sensible defaults.
type Options struct {
	BatchSize    int           // zero → 10
	PollInterval time.Duration // zero → 5s
	StaleAfter   time.Duration // zero → 5m
}

// Dispatcher polls the queue, claims eligible jobs, and invokes the handler
// registered for each job's type. The handler map is fixed at construction so
// a missing handler is deterministic, not a load-order accident. One bad job
// never terminates the loop: handler errors and panics are converted into
// Fail calls.
type Dispatcher struct {
	queue    *Queue
	handlers map[string]Handler
	logger   *zap.Logger

	batchSize    int
	pollInterval time.Duration
	staleAfter   time.Duration

	kick        chan struct{}
	stopChan    chan struct{}
	stoppedChan chan struct{}
}

// NewDispatcher creates a Dispatcher over the given queue and handler map.
func NewDispatcher(queue *Queue, handlers map[string]Handler, logger *zap.Logger, opts Options) *Dispatcher {
	if opts.BatchSize <= 0 {
		opts.BatchSize = 10
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = 5 * time.Second
	}
	if opts.StaleAfter <= 0 {
		opts.StaleAfter = 5 * time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{
		queue:        queue,
		handlers:     handlers,
		logger:       logger,
		batchSize:    opts.BatchSize,
		pollInterval: opts.PollInterval,
		staleAfter:   opts.StaleAfter,
		kick:         make(chan struct{}, 1),
		stopChan:     make(chan struct{}),
		stoppedChan:  make(chan struct{}),
	}
}

// Start begins the background processing loop.
func (d *Dispatcher) Start(ctx context.Context) {
	d.logger.Info("starting job dispatcher",
		zap.Int("batchSize", d.batchSize),
		zap.Duration("pollInterval", d.pollInterval),
		zap.Duration("staleAfter", d.staleAfter),
	)
	go d.processLoop(ctx)
}

// Stop gracefully stops the dispatcher, waiting for the current batch.
func (d *Dispatcher) Stop() {
	close(d.stopChan)
	<-d.stoppedChan
	d.logger.Info("job dispatcher stopped")
}

// Kick asks the dispatcher to process a batch soon. It never blocks, so a
// request handler can fire-and-forget after enqueueing a job.
func (d *Dispatcher) Kick() {
	select {
	case d.kick <- struct{}{}:
	default:
	}
}

// processLoop is the main processing loop.
func (d *Dispatcher) processLoop(ctx context.Context) {
	defer close(d.stoppedChan)

	ticker := time.NewTicker(d.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			d.logger.Info("context cancelled, stopping job dispatcher")
			return
		case <-d.stopChan:
			return
		case <-ticker.C:
			d.ProcessBatch(ctx)
		case <-d.kick:
			d.ProcessBatch(ctx)
		}
	}
}

// ProcessBatch reclaims stale jobs, then claims and dispatches up to the
// configured batch size. Claim races are expected under concurrent workers
// and are skipped, not reported.
func (d *Dispatcher) ProcessBatch(ctx context.Context) {
	if reclaimed, err := d.queue.ReclaimStale(ctx, d.staleAfter); err != nil {
		// Retried on the next tick; never fatal.
		d.logger.Error("stale job reclamation failed", zap.Error(err))
	} else if reclaimed > 0 {
		d.logger.Warn("reclaimed stale jobs", zap.Int64("count", reclaimed))
	}

	pending, err := d.queue.NextPending(ctx, d.batchSize)
	if err != nil {
		d.logger.Error("failed to list pending jobs", zap.Error(err))
		return
	}
	if len(pending) == 0 {
		return
	}

	for i := range pending {
		job, err := d.queue.Claim(ctx, pending[i].ID)
		if err != nil {
			if apperr.Is(err, apperr.CodeUnavailable) {
				continue // another worker won the claim
			}
			d.logger.Error("failed to claim job", zap.Uint("jobID", pending[i].ID), zap.Error(err))
			continue
		}
		d.Dispatch(ctx, job)
	}
}

// Dispatch runs the handler for a job already claimed into processing.
// A missing handler is a normal job failure, counted against the attempt
// budget like any other.
func (d *Dispatcher) Dispatch(ctx context.Context, job *models.Job) {
	handler, ok := d.handlers[job.Type]
	if !ok {
		d.fail(ctx, job, apperr.NewNoHandler(job.Type))
		return
	}

	result, err := d.run(ctx, handler, job)
	if err != nil {
		d.fail(ctx, job, err)
		return
	}

	if err := d.queue.Complete(ctx, job.ID, result); err != nil {
		d.logger.Error("failed to complete job",
			zap.String("jobID", job.PublicID),
			zap.String("type", job.Type),
			zap.Error(err),
		)
		return
	}
	d.logger.Info("job completed",
		zap.String("jobID", job.PublicID),
		zap.String("type", job.Type),
	)
}

// run invokes the handler, converting a panic into an error.
func (d *Dispatcher) run(ctx context.Context, handler Handler, job *models.Job) (result any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	return handler.Handle(ctx, job)
}

func (d *Dispatcher) fail(ctx context.Context, job *models.Job, cause error) {
	d.logger.Warn("job attempt failed",
		zap.String("jobID", job.PublicID),
		zap.String("type", job.Type),
		zap.Int("attempt", job.Attempts+1),
		zap.Int("maxAttempts", job.MaxAttempts),
		zap.Error(cause),
	)
	if err := d.queue.Fail(ctx, job.ID, cause); err != nil {
		d.logger.Error("failed to record job failure",
			zap.String("jobID", job.PublicID),
			zap.Error(err),
		)
	}
}
