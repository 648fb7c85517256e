package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"StockScreener/internal/domain/models"
	"StockScreener/internal/domain/repository"
	applogger "StockScreener/pkg/logger"
)

// RunFunc performs the work of a job and returns a JSON-encodable result.
type RunFunc func(ctx context.Context) (any, error)

// Tracker runs requests in the background and records their lifecycle.
// Identical requests map to the same job id.
type Tracker struct {
	store     repository.JobStore
	publisher repository.EventPublisher
	metrics   repository.Metrics
	log       *applogger.Logger

	retention time.Duration
	lockTTL   time.Duration
	sem       *semaphore.Weighted
	now       func() time.Time

	wg sync.WaitGroup
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithRetention sets how long job records are kept.
func WithRetention(d time.Duration) Option {
	return func(t *Tracker) {
		if d > 0 {
			t.retention = d
		}
	}
}

// WithLockTTL bounds how long an in-flight claim survives a crashed worker.
func WithLockTTL(d time.Duration) Option {
	return func(t *Tracker) {
		if d > 0 {
			t.lockTTL = d
		}
	}
}

// WithMaxConcurrent caps the number of running jobs; 0 means unbounded.
func WithMaxConcurrent(n int) Option {
	return func(t *Tracker) {
		if n > 0 {
			t.sem = semaphore.NewWeighted(int64(n))
		}
	}
}

func WithPublisher(p repository.EventPublisher) Option {
	return func(t *Tracker) { t.publisher = p }
}

func WithMetrics(m repository.Metrics) Option {
	return func(t *Tracker) { t.metrics = m }
}

func WithLogger(l *applogger.Logger) Option {
	return func(t *Tracker) {
		if l != nil {
			t.log = l
		}
	}
}

func withClock(now func() time.Time) Option {
	return func(t *Tracker) { t.now = now }
}

// NewTracker returns a tracker persisting records in store.
func NewTracker(store repository.JobStore, opts ...Option) *Tracker {
	t := &Tracker{
		store:     store,
		log:       applogger.Nop(),
		retention: 24 * time.Hour,
		lockTTL:   30 * time.Minute,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Submit registers the request and starts fn in the background. While a job
// with the same id is processing, the existing record is returned and fn is
// not run again.
func (t *Tracker) Submit(ctx context.Context, jobType string, request any, fn RunFunc) (*models.Job, error) {
	id, err := HashRequest(request)
	if err != nil {
		return nil, err
	}

	acquired, err := t.store.AcquireJob(ctx, jobType, id, t.lockTTL)
	if err != nil {
		return nil, fmt.Errorf("acquire job %s: %w", id, err)
	}
	if !acquired {
		existing, err := t.store.GetJob(ctx, jobType, id)
		if err == nil && existing != nil {
			return existing, nil
		}
		return &models.Job{ID: id, Type: jobType, Status: models.JobProcessing, CreatedAt: t.now()}, nil
	}

	raw, err := json.Marshal(request)
	if err != nil {
		_ = t.store.ReleaseJob(ctx, jobType, id)
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	job := &models.Job{
		ID:        id,
		Type:      jobType,
		Status:    models.JobProcessing,
		Request:   raw,
		CreatedAt: t.now(),
	}
	if err := t.store.SaveJob(ctx, job, t.retention); err != nil {
		_ = t.store.ReleaseJob(ctx, jobType, id)
		return nil, fmt.Errorf("save job %s: %w", id, err)
	}
	t.record(jobType, models.JobProcessing)

	t.wg.Add(1)
	go t.run(*job, fn)

	t.log.Info("job submitted", applogger.String("job_type", jobType), applogger.String("job_id", id))
	return job, nil
}

// run executes fn detached from the caller's context and stores the outcome once.
func (t *Tracker) run(job models.Job, fn RunFunc) {
	defer t.wg.Done()
	ctx := context.Background()

	if t.sem != nil {
		if err := t.sem.Acquire(ctx, 1); err == nil {
			defer t.sem.Release(1)
		}
	}

	start := t.now()
	result, err := safeRun(ctx, fn)
	if err == nil {
		job.Result, err = json.Marshal(result)
		if err != nil {
			err = fmt.Errorf("marshal result: %w", err)
		}
	}

	done := t.now()
	job.CompletedAt = &done
	if err != nil {
		job.Status = models.JobError
		job.Error = err.Error()
		job.Result = nil
	} else {
		job.Status = models.JobDone
	}

	if serr := t.store.SaveJob(ctx, &job, t.retention); serr != nil {
		t.log.Error("job record not stored",
			applogger.String("job_type", job.Type),
			applogger.String("job_id", job.ID),
			applogger.Error(serr),
		)
	}
	if rerr := t.store.ReleaseJob(ctx, job.Type, job.ID); rerr != nil {
		t.log.Warn("job lock not released", applogger.String("job_id", job.ID), applogger.Error(rerr))
	}

	t.record(job.Type, job.Status)
	if t.metrics != nil {
		t.metrics.RecordLatency("job_"+job.Type, done.Sub(start).Seconds())
	}
	t.publish(ctx, &job)

	fields := []applogger.Field{
		applogger.String("job_type", job.Type),
		applogger.String("job_id", job.ID),
		applogger.String("status", string(job.Status)),
		applogger.Duration("elapsed", done.Sub(start)),
	}
	if err != nil {
		t.log.Error("job failed", append(fields, applogger.Error(err))...)
		return
	}
	t.log.Info("job finished", fields...)
}

func safeRun(ctx context.Context, fn RunFunc) (result any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("job panicked: %v", r)
		}
	}()
	return fn(ctx)
}

// Status returns the stored record of a job.
func (t *Tracker) Status(ctx context.Context, jobType, jobID string) (*models.Job, error) {
	job, err := t.store.GetJob(ctx, jobType, jobID)
	if err != nil {
		if errors.Is(err, models.ErrJobNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("get job %s: %w", jobID, err)
	}
	if job == nil {
		return nil, &models.JobNotFoundError{JobType: jobType, JobID: jobID}
	}
	return job, nil
}

// Drain waits for in-flight jobs or until ctx is done.
func (t *Tracker) Drain(ctx context.Context) error {
	finished := make(chan struct{})
	go func() {
		t.wg.Wait()
		close(finished)
	}()
	select {
	case <-finished:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (t *Tracker) record(jobType string, status models.JobStatus) {
	if t.metrics != nil {
		t.metrics.RecordJob(jobType, status)
	}
}

func (t *Tracker) publish(ctx context.Context, job *models.Job) {
	if t.publisher == nil {
		return
	}
	ev := &models.JobEvent{
		EventID:   uuid.NewString(),
		JobID:     job.ID,
		JobType:   job.Type,
		Status:    job.Status,
		Error:     job.Error,
		Timestamp: t.now(),
	}
	if err := t.publisher.PublishJob(ctx, ev); err != nil {
		t.log.Warn("job event not published", applogger.String("job_id", job.ID), applogger.Error(err))
	}
}
