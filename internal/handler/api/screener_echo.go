package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"StockScreener/internal/domain/models"
	"StockScreener/internal/service/ratelimit"
	"StockScreener/internal/usecase"
	xhttp "StockScreener/pkg/http"
	applogger "StockScreener/pkg/logger"
)

// ScreenerEchoHandler serves the screening API.
type ScreenerEchoHandler struct {
	log      *applogger.Logger
	screener *usecase.Screener
	trend    *usecase.TrendAnalysis
	history  *usecase.HistoryFetcher
	jobs     *usecase.Jobs

	limiter  *ratelimit.Limiter
	burst    float64
	perSec   float64
	upgrader websocket.Upgrader
	poll     time.Duration
}

// HandlerOption configures a ScreenerEchoHandler.
type HandlerOption func(*ScreenerEchoHandler)

// WithClientRateLimit caps synchronous screening calls per client IP.
func WithClientRateLimit(l *ratelimit.Limiter, burst, perSec float64) HandlerOption {
	return func(h *ScreenerEchoHandler) {
		h.limiter, h.burst, h.perSec = l, burst, perSec
	}
}

// WithWatchInterval sets how often a watched job is polled.
func WithWatchInterval(d time.Duration) HandlerOption {
	return func(h *ScreenerEchoHandler) {
		if d > 0 {
			h.poll = d
		}
	}
}

func NewScreenerEchoHandler(
	log *applogger.Logger,
	screener *usecase.Screener,
	trend *usecase.TrendAnalysis,
	history *usecase.HistoryFetcher,
	jobs *usecase.Jobs,
	opts ...HandlerOption,
) *ScreenerEchoHandler {
	if log == nil {
		log = applogger.Nop()
	}
	h := &ScreenerEchoHandler{
		log:      log,
		screener: screener,
		trend:    trend,
		history:  history,
		jobs:     jobs,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		poll: time.Second,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *ScreenerEchoHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api")
	g.POST("/trigger_fetch_filtering", h.Filter, h.rateLimited)
	g.POST("/trigger_fetch_filtering_async", h.FilterAsync)
	g.POST("/retrieve_filtered_stocks", h.Retrieve)
	g.POST("/trend_analysis", h.Trend, h.rateLimited)
	g.POST("/trend_analysis_async", h.TrendAsync)
	g.POST("/fetch_stock_history", h.History, h.rateLimited)
	g.POST("/fetch_stock_history_async", h.HistoryAsync)
	g.GET("/jobs/:type/:id", h.JobStatus)
	g.GET("/jobs/:type/:id/watch", h.WatchJob)
}

func (h *ScreenerEchoHandler) rateLimited(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if h.limiter != nil && !h.limiter.Allow("client:"+c.RealIP(), h.burst, h.perSec) {
			return xhttp.AppErrorResponse(c, xhttp.TooManyRequestsError("too many screening requests, use the async endpoints"))
		}
		return next(c)
	}
}

func (h *ScreenerEchoHandler) fail(c echo.Context, op string, err error) error {
	appErr := appError(err)
	if appErr.Status >= http.StatusInternalServerError {
		h.log.Error(op+" failed", applogger.Error(err))
	} else {
		h.log.Debug(op+" rejected", applogger.Error(err))
	}
	return xhttp.AppErrorResponse(c, appErr)
}

func accepted(c echo.Context, job *models.Job) error {
	return xhttp.AcceptedResponse(c, models.JobAccepted{JobID: job.ID, Status: job.Status})
}

func (h *ScreenerEchoHandler) Filter(c echo.Context) error {
	req := &models.FilterRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	res, err := h.screener.Filter(c.Request().Context(), *req)
	if err != nil {
		return h.fail(c, "filtering", err)
	}
	return xhttp.SuccessResponse(c, res)
}

func (h *ScreenerEchoHandler) FilterAsync(c echo.Context) error {
	req := &models.FilterRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	job, err := h.jobs.SubmitFilter(c.Request().Context(), *req)
	if err != nil {
		return h.fail(c, "filter submit", err)
	}
	return accepted(c, job)
}

func (h *ScreenerEchoHandler) Retrieve(c echo.Context) error {
	req := &models.RetrieveFilteredRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	res, err := h.screener.Retrieve(c.Request().Context(), *req)
	if err != nil {
		return h.fail(c, "retrieve", err)
	}
	return xhttp.SuccessResponse(c, res)
}

func (h *ScreenerEchoHandler) Trend(c echo.Context) error {
	req := &models.TrendRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	res, err := h.trend.Analyze(c.Request().Context(), *req)
	if err != nil {
		return h.fail(c, "trend analysis", err)
	}
	return xhttp.SuccessResponse(c, res)
}

func (h *ScreenerEchoHandler) TrendAsync(c echo.Context) error {
	req := &models.TrendRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	job, err := h.jobs.SubmitTrend(c.Request().Context(), *req)
	if err != nil {
		return h.fail(c, "trend submit", err)
	}
	return accepted(c, job)
}

func (h *ScreenerEchoHandler) History(c echo.Context) error {
	req := &models.FetchHistoryRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	res, err := h.history.Fetch(c.Request().Context(), *req)
	if err != nil {
		return h.fail(c, "history fetch", err)
	}
	return xhttp.SuccessResponse(c, res)
}

func (h *ScreenerEchoHandler) HistoryAsync(c echo.Context) error {
	req := &models.FetchHistoryRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	job, err := h.jobs.SubmitHistory(c.Request().Context(), *req)
	if err != nil {
		return h.fail(c, "history submit", err)
	}
	return accepted(c, job)
}

func (h *ScreenerEchoHandler) JobStatus(c echo.Context) error {
	req := &models.JobStatusRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	job, err := h.jobs.Status(c.Request().Context(), req.JobType, req.JobID)
	if err != nil {
		return h.fail(c, "job status", err)
	}
	return xhttp.SuccessResponse(c, job)
}

// WatchJob streams the job record over a websocket each time its status
// changes, and closes once the job is done or failed.
func (h *ScreenerEchoHandler) WatchJob(c echo.Context) error {
	req := &models.JobStatusRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	ctx := c.Request().Context()
	job, err := h.jobs.Status(ctx, req.JobType, req.JobID)
	if err != nil {
		return h.fail(c, "job watch", err)
	}

	conn, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", applogger.Error(err))
		return nil
	}
	defer conn.Close()

	// Drain client frames so close messages are noticed.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(h.poll)
	defer ticker.Stop()
	var last models.JobStatus
	for {
		if job.Status != last {
			if err := conn.WriteJSON(job); err != nil {
				h.log.Debug("job watcher gone", applogger.String("job_id", job.ID), applogger.Error(err))
				return nil
			}
			last = job.Status
		}
		if job.Status.IsTerminal() {
			msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, string(job.Status))
			_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
			return nil
		}

		select {
		case <-ctx.Done():
			return nil
		case <-closed:
			return nil
		case <-ticker.C:
		}
		next, err := h.jobs.Status(context.WithoutCancel(ctx), req.JobType, req.JobID)
		if err != nil {
			h.log.Warn("job watch lookup failed", applogger.String("job_id", req.JobID), applogger.Error(err))
			continue
		}
		job = next
	}
}
