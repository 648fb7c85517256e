package usecase

import (
	"context"
	"fmt"

	cronrunner "StockScreener/internal/cron"
	"StockScreener/internal/domain/models"
	applogger "StockScreener/pkg/logger"
)

// Scheduler submits a filtering job on a cron spec.
type Scheduler struct {
	runner  *cronrunner.Runner
	jobs    *Jobs
	spec    string
	request models.FilterRequest
	log     *applogger.Logger
}

func NewScheduler(runner *cronrunner.Runner, jobs *Jobs, spec string, request models.FilterRequest) *Scheduler {
	return &Scheduler{runner: runner, jobs: jobs, spec: spec, request: request, log: applogger.Nop()}
}

// SetLogger injects a structured logger.
func (s *Scheduler) SetLogger(l *applogger.Logger) {
	if l != nil {
		s.log = l
	}
}

// Start registers the job and starts the runner.
func (s *Scheduler) Start() error {
	if _, err := s.runner.Add(s.spec, s.Trigger); err != nil {
		return fmt.Errorf("schedule %q: %w", s.spec, err)
	}
	s.runner.Start()
	s.log.Info("screening scheduled", applogger.String("spec", s.spec), applogger.Strings("symbols", s.request.Symbols))
	return nil
}

// Trigger submits one filtering job.
func (s *Scheduler) Trigger(ctx context.Context) {
	job, err := s.jobs.SubmitFilter(ctx, s.request)
	if err != nil {
		s.log.Error("scheduled screening not submitted", applogger.Error(err))
		return
	}
	s.log.Info("scheduled screening submitted",
		applogger.String("job_id", job.ID),
		applogger.String("status", string(job.Status)),
	)
}

func (s *Scheduler) Stop() { s.runner.Stop() }
