package cronrunner

import (
	"context"

	"github.com/robfig/cron/v3"

	applogger "StockScreener/pkg/logger"
)

// Runner schedules functions on six-field cron specs (seconds first).
type Runner struct {
	cron    *cron.Cron
	log     *applogger.Logger
	baseCtx context.Context
}

func New(log *applogger.Logger, baseCtx context.Context) *Runner {
	if baseCtx == nil {
		baseCtx = context.Background()
	}
	if log == nil {
		log = applogger.Nop()
	}
	return &Runner{
		cron:    cron.New(cron.WithSeconds(), cron.WithChain(cron.Recover(cron.DiscardLogger))),
		log:     log,
		baseCtx: baseCtx,
	}
}

// Add registers job under spec. Runs share the runner's base context.
func (r *Runner) Add(spec string, job func(context.Context)) (cron.EntryID, error) {
	return r.cron.AddFunc(spec, func() {
		job(r.baseCtx)
	})
}

// Entries returns the number of registered jobs.
func (r *Runner) Entries() int { return len(r.cron.Entries()) }

func (r *Runner) Start() {
	r.log.Info("cron started", applogger.Int("entries", r.Entries()))
	r.cron.Start()
}

// Stop halts scheduling and waits for running jobs.
func (r *Runner) Stop() {
	ctx := r.cron.Stop()
	<-ctx.Done()
	r.log.Info("cron stopped")
}
