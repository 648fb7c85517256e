package usecase

import (
	"context"
	"fmt"

	"StockScreener/internal/domain/models"
	domrepo "StockScreener/internal/domain/repository"
	pkgkafka "StockScreener/pkg/kafka"
	applogger "StockScreener/pkg/logger"
	"StockScreener/pkg/queue"
)

// ScreenRequestsHandler turns broker messages into async jobs. Messages are
// envelopes {"type": "filter"|"trend"|"history", "payload": {...}}.
type ScreenRequestsHandler struct {
	topic   string
	jobs    *Jobs
	metrics domrepo.Metrics
	log     *applogger.Logger
}

var _ pkgkafka.MessageHandler = (*ScreenRequestsHandler)(nil)

func NewScreenRequestsHandler(topic string, jobs *Jobs) *ScreenRequestsHandler {
	return &ScreenRequestsHandler{topic: topic, jobs: jobs, log: applogger.Nop()}
}

// SetLogger injects a structured logger.
func (h *ScreenRequestsHandler) SetLogger(l *applogger.Logger) {
	if l != nil {
		h.log = l
	}
}

func (h *ScreenRequestsHandler) SetMetrics(m domrepo.Metrics) { h.metrics = m }

func (h *ScreenRequestsHandler) Topic() string { return h.topic }

func (h *ScreenRequestsHandler) Handle(ctx context.Context, b []byte) error {
	msg, err := queue.Decode(b)
	if err != nil {
		h.recordError("consumer_decode")
		return err
	}

	var job *models.Job
	switch msg.Type {
	case models.JobTypeFilter:
		req, perr := queue.ParsePayload[models.FilterRequest](msg.Payload)
		if perr != nil {
			h.recordError("consumer_decode")
			return perr
		}
		job, err = h.jobs.SubmitFilter(ctx, *req)
	case models.JobTypeTrend:
		req, perr := queue.ParsePayload[models.TrendRequest](msg.Payload)
		if perr != nil {
			h.recordError("consumer_decode")
			return perr
		}
		job, err = h.jobs.SubmitTrend(ctx, *req)
	case models.JobTypeHistory:
		req, perr := queue.ParsePayload[models.FetchHistoryRequest](msg.Payload)
		if perr != nil {
			h.recordError("consumer_decode")
			return perr
		}
		job, err = h.jobs.SubmitHistory(ctx, *req)
	default:
		h.recordError("consumer_unknown_type")
		return fmt.Errorf("unknown request type %q", msg.Type)
	}
	if err != nil {
		h.recordError("consumer_submit")
		return err
	}

	h.log.Info("screen request accepted",
		applogger.String("message_id", msg.ID),
		applogger.String("job_type", job.Type),
		applogger.String("job_id", job.ID),
		applogger.String("status", string(job.Status)),
	)
	return nil
}

func (h *ScreenRequestsHandler) recordError(kind string) {
	if h.metrics != nil {
		h.metrics.RecordError(kind)
	}
}
