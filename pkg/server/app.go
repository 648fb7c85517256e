package server

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"StockScreener/internal/usecase"
	"StockScreener/pkg/config"
	xhttp "StockScreener/pkg/http"
	pkgkafka "StockScreener/pkg/kafka"
	applogger "StockScreener/pkg/logger"
)

// App owns the lifecycle of the HTTP server, the scheduler, the request
// consumer and the async job tracker.
type App struct {
	cfg       *config.Config
	log       *applogger.Logger
	http      *xhttp.Server
	jobs      *usecase.Jobs
	scheduler *usecase.Scheduler
	consumer  *pkgkafka.Consumer
	requests  pkgkafka.MessageHandler
}

// New builds an App. scheduler and consumer may be nil when disabled.
func New(
	cfg *config.Config,
	log *applogger.Logger,
	httpServer *xhttp.Server,
	jobs *usecase.Jobs,
	scheduler *usecase.Scheduler,
	consumer *pkgkafka.Consumer,
	requests *usecase.ScreenRequestsHandler,
) *App {
	if log == nil {
		log = applogger.Nop()
	}
	return &App{
		cfg:       cfg,
		log:       log,
		http:      httpServer,
		jobs:      jobs,
		scheduler: scheduler,
		consumer:  consumer,
		requests:  requests,
	}
}

// Run starts every component and blocks until SIGINT or SIGTERM.
func (a *App) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return a.RunContext(ctx)
}

// RunContext starts every component and shuts down when ctx is done.
func (a *App) RunContext(ctx context.Context) error {
	if err := a.http.Start(); err != nil {
		return err
	}

	if a.scheduler != nil {
		if err := a.scheduler.Start(); err != nil {
			a.log.Error("scheduler not started", applogger.Error(err))
			return errors.Join(err, a.shutdown())
		}
	}

	if a.consumer != nil && a.requests != nil {
		a.consumer.RegisterHandler(a.requests)
		go func() {
			if err := a.consumer.Start(); err != nil {
				a.log.Error("kafka consumer stopped", applogger.Error(err))
			}
		}()
		a.log.Info("kafka consumer started", applogger.String("topic", a.requests.Topic()))
	}

	a.log.Info("stock screener running",
		applogger.String("env", a.cfg.Environment),
		applogger.Int("port", a.cfg.Server.Port),
	)
	<-ctx.Done()
	a.log.Info("shutdown signal received")
	return a.shutdown()
}

// shutdown stops intake first, then waits for running jobs.
func (a *App) shutdown() error {
	timeout := a.cfg.Server.ShutdownTimeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	var errs []error
	if err := a.http.Stop(ctx); err != nil {
		errs = append(errs, err)
	}
	if a.scheduler != nil {
		a.scheduler.Stop()
	}
	if a.consumer != nil {
		if err := a.consumer.Stop(ctx); err != nil {
			a.log.Warn("kafka consumer stop error", applogger.Error(err))
		}
	}
	if err := a.jobs.Drain(ctx); err != nil {
		a.log.Warn("jobs still running at shutdown", applogger.Error(err))
		errs = append(errs, err)
	}

	a.log.Info("shutdown complete")
	return errors.Join(errs...)
}
