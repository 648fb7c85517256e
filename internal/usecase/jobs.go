package usecase

import (
	"context"

	"StockScreener/internal/domain/models"
	"StockScreener/internal/service/jobs"
)

// Jobs submits screening work to the async tracker.
type Jobs struct {
	tracker  *jobs.Tracker
	screener *Screener
	trend    *TrendAnalysis
	history  *HistoryFetcher
}

func NewJobs(tracker *jobs.Tracker, screener *Screener, trend *TrendAnalysis, history *HistoryFetcher) *Jobs {
	return &Jobs{tracker: tracker, screener: screener, trend: trend, history: history}
}

func (j *Jobs) SubmitFilter(ctx context.Context, req models.FilterRequest) (*models.Job, error) {
	return j.tracker.Submit(ctx, models.JobTypeFilter, req, func(ctx context.Context) (any, error) {
		res, err := j.screener.Filter(ctx, req)
		if err != nil {
			return nil, err
		}
		return res, nil
	})
}

func (j *Jobs) SubmitTrend(ctx context.Context, req models.TrendRequest) (*models.Job, error) {
	return j.tracker.Submit(ctx, models.JobTypeTrend, req, func(ctx context.Context) (any, error) {
		res, err := j.trend.Analyze(ctx, req)
		if err != nil {
			return nil, err
		}
		return res, nil
	})
}

func (j *Jobs) SubmitHistory(ctx context.Context, req models.FetchHistoryRequest) (*models.Job, error) {
	return j.tracker.Submit(ctx, models.JobTypeHistory, req, func(ctx context.Context) (any, error) {
		res, err := j.history.Fetch(ctx, req)
		if err != nil {
			return nil, err
		}
		return res, nil
	})
}

// Status returns the stored record, or an error matching models.ErrJobNotFound.
func (j *Jobs) Status(ctx context.Context, jobType, jobID string) (*models.Job, error) {
	return j.tracker.Status(ctx, jobType, jobID)
}

// Drain waits for running jobs to finish.
func (j *Jobs) Drain(ctx context.Context) error { return j.tracker.Drain(ctx) }
