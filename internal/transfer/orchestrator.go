package transfer

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/vodbridge/backend/internal/jobs"
	"github.com/vodbridge/backend/internal/models"
)

const (
	// DefaultMaxAttempts bounds the relay attempts per job.
	DefaultMaxAttempts = 3
	// DefaultBackoffBase is the first retry delay; doubled per attempt.
	DefaultBackoffBase = time.Second
	// DefaultBackoffCap bounds the retry delay.
	DefaultBackoffCap = 10 * time.Second
	// DefaultContentType is declared when the request does not name one.
	DefaultContentType = "video/webm"
)

// Config tunes the orchestrator's retry policy.
type Config struct {
	MaxAttempts        int
	BackoffBase        time.Duration
	BackoffCap         time.Duration
	DefaultContentType string
}

func (c Config) withDefaults() Config {
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = DefaultMaxAttempts
	}
	if c.BackoffBase < 0 {
		c.BackoffBase = DefaultBackoffBase
	}
	if c.BackoffCap <= 0 {
		c.BackoffCap = DefaultBackoffCap
	}
	if c.DefaultContentType == "" {
		c.DefaultContentType = DefaultContentType
	}
	return c
}

// Orchestrator drives relay attempts under a bounded-retry policy and owns
// every mutation of a job for its lifetime.
type Orchestrator struct {
	store    jobs.Store
	resolver LengthResolver
	relay    Relayer
	cfg      Config
	logger   *zap.Logger
}

// NewOrchestrator creates an orchestrator over the given store, resolver
// and relay.
func NewOrchestrator(store jobs.Store, resolver LengthResolver, relay Relayer, cfg Config, logger *zap.Logger) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{store: store, resolver: resolver, relay: relay, cfg: cfg.withDefaults(), logger: logger}
}

// Submit accepts a validated request, creates its job and dispatches the
// transfer. Synchronous requests block until the job is terminal;
// asynchronous requests return the pending job immediately and progress is
// observed by polling. Exactly one execution of the attempt sequence exists
// per job: both modes funnel into a single runUpload call made here.
func (o *Orchestrator) Submit(ctx context.Context, req models.UploadRequest, token string) (*models.Job, error) {
	if req.ContentType == "" {
		req.ContentType = o.cfg.DefaultContentType
	}
	job := models.NewJob(req)
	if err := o.store.Add(ctx, job); err != nil {
		return nil, err
	}
	o.logger.Info("job accepted",
		zap.String("job_id", job.ID.String()),
		zap.String("source_url", req.SourceURL),
		zap.Bool("synchronous", req.Synchronous),
	)

	if req.Synchronous {
		o.runUpload(ctx, job, req, token)
		return job.Clone(), nil
	}

	// Snapshot before dispatch: runUpload owns the job once started.
	accepted := job.Clone()
	go o.runUpload(context.Background(), job, req, token)
	return accepted, nil
}

// runUpload is the single execution path for a job: resolve length, run
// relay attempts under the retry policy, record the terminal outcome.
func (o *Orchestrator) runUpload(ctx context.Context, job *models.Job, req models.UploadRequest, token string) {
	o.advance(ctx, job, models.JobStatusDownloading)

	length, err := o.resolveLength(ctx, req)
	if err != nil {
		o.fail(ctx, job, Classify(err))
		return
	}

	o.advance(ctx, job, models.JobStatusUploading)
	t := Transfer{
		SourceURL:      req.SourceURL,
		DestinationURL: req.DestinationURL,
		AuthToken:      token,
		ContentType:    req.ContentType,
		ContentLength:  length,
	}

	var lastErr *Error
	for attempt := 1; attempt <= o.cfg.MaxAttempts; attempt++ {
		if attempt > 1 {
			if !o.backoff(ctx, attempt-1) {
				break
			}
		}
		result, err := o.relay.Relay(ctx, t)
		if err == nil {
			o.complete(ctx, job, result)
			return
		}
		lastErr = Classify(err)
		if !lastErr.Retryable {
			break
		}
		o.logger.Warn("attempt failed, retrying",
			zap.String("job_id", job.ID.String()),
			zap.Int("attempt", attempt),
			zap.String("kind", string(lastErr.Kind)),
			zap.Error(lastErr),
		)
	}
	o.fail(ctx, job, lastErr)
}

// resolveLength returns the explicit request length or probes the source.
func (o *Orchestrator) resolveLength(ctx context.Context, req models.UploadRequest) (int64, error) {
	if req.ContentLength != nil {
		return *req.ContentLength, nil
	}
	return o.resolver.Resolve(ctx, req.SourceURL)
}

// backoff sleeps min(base·2^(attempt-1), cap) between retries. Returns
// false if the context expired while waiting.
func (o *Orchestrator) backoff(ctx context.Context, attempt int) bool {
	d := o.cfg.BackoffBase << (attempt - 1)
	if d > o.cfg.BackoffCap {
		d = o.cfg.BackoffCap
	}
	if d <= 0 {
		return true
	}
	select {
	case <-time.After(d):
		return true
	case <-ctx.Done():
		return false
	}
}

func (o *Orchestrator) advance(ctx context.Context, job *models.Job, next models.JobStatus) {
	if !job.Status.CanAdvanceTo(next) {
		return
	}
	job.Status = next
	if err := o.store.Update(ctx, job); err != nil {
		o.logger.Error("store update failed", zap.Error(err), zap.String("job_id", job.ID.String()))
	}
}

func (o *Orchestrator) complete(ctx context.Context, job *models.Job, result *models.UploadResult) {
	now := time.Now().UTC()
	job.Status = models.JobStatusCompleted
	job.Result = result
	job.CompletedAt = &now
	if err := o.store.Update(ctx, job); err != nil {
		o.logger.Error("store update failed", zap.Error(err), zap.String("job_id", job.ID.String()))
	}
	o.logger.Info("job completed",
		zap.String("job_id", job.ID.String()),
		zap.String("assigned_id", result.AssignedID),
		zap.Int("status_code", result.StatusCode),
	)
}

func (o *Orchestrator) fail(ctx context.Context, job *models.Job, terr *Error) {
	now := time.Now().UTC()
	job.Status = models.JobStatusFailed
	job.Error = &models.JobError{Message: terr.Error(), Code: string(terr.Kind)}
	job.CompletedAt = &now
	if err := o.store.Update(ctx, job); err != nil {
		o.logger.Error("store update failed", zap.Error(err), zap.String("job_id", job.ID.String()))
	}
	o.logger.Error("job failed",
		zap.String("job_id", job.ID.String()),
		zap.String("kind", string(terr.Kind)),
		zap.Error(terr),
	)
}
