package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	models "mmlens/internal/domain/models"
	domrepo "mmlens/internal/domain/repository"
	"mmlens/internal/engine"
	"mmlens/internal/jobs"
	"mmlens/internal/service/metrics"
	"mmlens/internal/service/ratelimit"
	"mmlens/internal/usecase"
	pkgcache "mmlens/pkg/cache"
	xhttp "mmlens/pkg/http"
	xlogger "mmlens/pkg/logger"
	"mmlens/pkg/queue"
	"mmlens/pkg/util"
)

// DiagnosticsEchoHandler exposes the diagnostic and universe read endpoints
// plus the on-demand run trigger.
type DiagnosticsEchoHandler struct {
	logger    *xlogger.Logger
	diagStore domrepo.DiagnosticStore
	uniStore  domrepo.UniverseStore
	features  domrepo.FeatureStore
	orch      *usecase.Orchestrator
	cache     pkgcache.Service
	queue     queue.QueueService
	rl        *ratelimit.Limiter
}

func NewDiagnosticsEchoHandler(
	logger *xlogger.Logger,
	diagStore domrepo.DiagnosticStore,
	uniStore domrepo.UniverseStore,
	features domrepo.FeatureStore,
	orch *usecase.Orchestrator,
) *DiagnosticsEchoHandler {
	metrics.Register()
	return &DiagnosticsEchoHandler{
		logger:    logger,
		diagStore: diagStore,
		uniStore:  uniStore,
		features:  features,
		orch:      orch,
		rl:        ratelimit.New(),
	}
}

// SetCache injects the response cache.
func (h *DiagnosticsEchoHandler) SetCache(c pkgcache.Service) { h.cache = c }

// SetQueue injects the job queue used for async run requests.
func (h *DiagnosticsEchoHandler) SetQueue(q queue.QueueService) { h.queue = q }

func (h *DiagnosticsEchoHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api")
	g.GET("/diagnostics", h.Diagnostic)
	g.GET("/diagnostics/text", h.DiagnosticText)
	g.GET("/universe", h.Universe)
	g.POST("/run", h.Run)
	e.GET("/healthz", h.Health)
}

// Diagnostic returns the stored record for one (ticker, date), as JSON or as
// the deterministic text rendering.
func (h *DiagnosticsEchoHandler) Diagnostic(c echo.Context) error {
	return h.diagnostic(c, "")
}

// DiagnosticText always returns the text rendering.
func (h *DiagnosticsEchoHandler) DiagnosticText(c echo.Context) error {
	return h.diagnostic(c, "text")
}

func (h *DiagnosticsEchoHandler) diagnostic(c echo.Context, forceFormat string) error {
	start := time.Now()
	defer func() {
		metrics.DiagnosticsLatency.WithLabelValues("diagnostic").Observe(time.Since(start).Seconds())
	}()

	req := &models.DiagnosticRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		metrics.DiagnosticsErrors.WithLabelValues("diagnostic").Inc()
		return xhttp.BadRequestResponse(c, verr)
	}
	if !h.rl.Allow(c.RealIP()+":diagnostic", 10, 5) {
		return c.String(http.StatusTooManyRequests, "rate limited")
	}
	if forceFormat != "" {
		req.Format = forceFormat
	}

	cacheKey := "diag:" + req.Ticker + ":" + req.Date + ":" + req.Format
	if h.cache != nil {
		if body, err := h.cache.Get(c.Request().Context(), cacheKey); err == nil {
			if req.Format == "text" {
				return c.String(http.StatusOK, body)
			}
			return c.JSONBlob(http.StatusOK, []byte(body))
		}
	}

	date, _ := util.ParseDate(req.Date)
	d, err := h.diagStore.Get(c.Request().Context(), req.Ticker, date)
	if err != nil {
		h.logger.Error("diagnostic lookup error", xlogger.Error(err))
		metrics.DiagnosticsErrors.WithLabelValues("diagnostic").Inc()
		return xhttp.AppErrorResponse(c, err)
	}
	if d == nil {
		return xhttp.AppErrorResponse(c, xhttp.NotFoundError("no diagnostic for ticker/date"))
	}

	if req.Format == "text" {
		text := engine.FormatText(d)
		if h.cache != nil {
			_ = h.cache.Set(c.Request().Context(), cacheKey, text, 5*time.Minute)
		}
		return c.String(http.StatusOK, text)
	}

	if h.cache != nil {
		if b, err := json.Marshal(d); err == nil {
			_ = h.cache.Set(c.Request().Context(), cacheKey, string(b), 5*time.Minute)
		}
	}
	return xhttp.SuccessResponse(c, d)
}

// Universe returns the persisted snapshot for a date.
func (h *DiagnosticsEchoHandler) Universe(c echo.Context) error {
	start := time.Now()
	defer func() {
		metrics.DiagnosticsLatency.WithLabelValues("universe").Observe(time.Since(start).Seconds())
	}()

	req := &models.UniverseRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		metrics.DiagnosticsErrors.WithLabelValues("universe").Inc()
		return xhttp.BadRequestResponse(c, verr)
	}

	date, _ := util.ParseDate(req.Date)
	snap, found, err := h.uniStore.Load(c.Request().Context(), date)
	if err != nil {
		h.logger.Error("universe lookup error", xlogger.Error(err))
		metrics.DiagnosticsErrors.WithLabelValues("universe").Inc()
		return xhttp.AppErrorResponse(c, err)
	}
	if !found {
		return xhttp.AppErrorResponse(c, xhttp.NotFoundError("no snapshot for date"))
	}
	return xhttp.SuccessResponse(c, snap)
}

// Run triggers a full daily cycle, or a single-ticker ad-hoc diagnostic when
// a ticker is given. Ad-hoc runs never mutate FOCUS membership.
func (h *DiagnosticsEchoHandler) Run(c echo.Context) error {
	start := time.Now()
	defer func() {
		metrics.DiagnosticsLatency.WithLabelValues("run").Observe(time.Since(start).Seconds())
	}()

	req := &models.RunRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		metrics.DiagnosticsErrors.WithLabelValues("run").Inc()
		return xhttp.BadRequestResponse(c, verr)
	}
	if !h.rl.Allow(c.RealIP()+":run", 2, 0.2) {
		return c.String(http.StatusTooManyRequests, "rate limited")
	}

	date, _ := util.ParseDate(req.Date)
	ctx := c.Request().Context()

	if req.Async && h.queue != nil {
		err := h.queue.PublishMessage(ctx, jobs.TypeDiagnosticsRun, map[string]string{
			"date":   req.Date,
			"ticker": req.Ticker,
		})
		if err != nil {
			h.logger.Error("run enqueue error", xlogger.Error(err))
			metrics.DiagnosticsErrors.WithLabelValues("run").Inc()
			return xhttp.AppErrorResponse(c, err)
		}
		return c.JSON(http.StatusAccepted, map[string]string{"status": "queued", "date": req.Date})
	}

	if req.Ticker != "" {
		d, err := h.orch.RunSingle(ctx, req.Ticker, date)
		if err != nil {
			h.logger.Error("single run error", xlogger.String("ticker", req.Ticker), xlogger.Error(err))
			metrics.DiagnosticsErrors.WithLabelValues("run").Inc()
			return xhttp.AppErrorResponse(c, err)
		}
		return xhttp.SuccessResponse(c, d)
	}

	res, err := h.orch.RunCycle(ctx, date)
	if err != nil {
		h.logger.Error("cycle run error", xlogger.Error(err))
		metrics.DiagnosticsErrors.WithLabelValues("run").Inc()
		return xhttp.AppErrorResponse(c, err)
	}
	return xhttp.SuccessResponse(c, map[string]interface{}{
		"date":        res.Snapshot.Date,
		"version":     res.Snapshot.Version,
		"diagnostics": len(res.Diagnostics),
		"focus":       len(res.Snapshot.Focus),
		"promoted":    res.Promoted,
		"expired":     res.Expired,
		"evicted":     res.Evicted,
	})
}

// Health reports storage reachability.
func (h *DiagnosticsEchoHandler) Health(c echo.Context) error {
	if err := h.features.Health(c.Request().Context()); err != nil {
		return c.JSON(http.StatusServiceUnavailable, map[string]string{"status": "degraded", "error": err.Error()})
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}
