package api

import (
	"time"

	"github.com/labstack/echo/v4"

	models "TradeCore/internal/domain/models"
	"TradeCore/internal/service/ratelimit"
	"TradeCore/internal/usecase"
	xhttp "TradeCore/pkg/http"
	xlogger "TradeCore/pkg/logger"
)

// AuditEchoHandler exposes the decision/outcome audit trail over HTTP.
type AuditEchoHandler struct {
	logger *xlogger.Logger
	query  *usecase.AuditQueryUseCase
	fusion *usecase.SignalFusionEngine
	rl     *ratelimit.Limiter
}

func NewAuditEchoHandler(logger *xlogger.Logger, query *usecase.AuditQueryUseCase, fusion *usecase.SignalFusionEngine) *AuditEchoHandler {
	return &AuditEchoHandler{logger: logger, query: query, fusion: fusion, rl: ratelimit.New()}
}

func (h *AuditEchoHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/health", h.Health)
	g := e.Group("/api")
	g.GET("/decisions", h.Decisions)
	g.GET("/outcomes", h.Outcomes)
	g.GET("/decisions/recent", h.RecentDecisions)
}

// Health reports audit-backend liveness.
func (h *AuditEchoHandler) Health(c echo.Context) error {
	if err := h.query.Health(c.Request().Context()); err != nil {
		return xhttp.AppErrorResponse(c, xhttp.InternalErrorf("audit backend unhealthy: %v", err))
	}
	return xhttp.SuccessResponse(c, map[string]string{"status": "ok"})
}

func (h *AuditEchoHandler) Decisions(c echo.Context) error {
	req := &models.DecisionsRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	if !h.rl.Allow(c.RealIP()+":decisions", 10, 5) {
		return xhttp.BadRequestResponse(c, "rate limited")
	}
	from, to, err := parseRange(req.From, req.To)
	if err != nil {
		return xhttp.BadRequestResponse(c, err.Error())
	}

	res, err := h.query.Decisions(c.Request().Context(), usecase.AuditQueryParams{
		Symbol: req.Symbol,
		From:   from,
		To:     to,
		Limit:  req.Limit,
		Final:  req.Final,
	})
	if err != nil {
		h.logger.Error("decisions usecase error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	return xhttp.SuccessResponse(c, res)
}

func (h *AuditEchoHandler) Outcomes(c echo.Context) error {
	req := &models.OutcomesRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	if !h.rl.Allow(c.RealIP()+":outcomes", 10, 5) {
		return xhttp.BadRequestResponse(c, "rate limited")
	}
	from, to, err := parseRange(req.From, req.To)
	if err != nil {
		return xhttp.BadRequestResponse(c, err.Error())
	}

	res, err := h.query.Outcomes(c.Request().Context(), usecase.AuditQueryParams{
		Symbol: req.Symbol,
		From:   from,
		To:     to,
		Limit:  req.Limit,
		State:  req.State,
	})
	if err != nil {
		h.logger.Error("outcomes usecase error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	return xhttp.SuccessResponse(c, res)
}

// RecentDecisions serves the fusion engine's in-memory tail without touching
// the audit backend.
func (h *AuditEchoHandler) RecentDecisions(c echo.Context) error {
	if h.fusion == nil {
		return xhttp.NotFoundResponse(c, "fusion engine not running")
	}
	hist := h.fusion.History()
	return xhttp.ListResponse(c, hist, int64(len(hist)))
}

// parseRange accepts RFC3339 or unix-seconds timestamps; empty strings fall
// back to the usecase defaults.
func parseRange(from, to string) (time.Time, time.Time, error) {
	var f, t time.Time
	if from != "" {
		v, ok := xhttp.ParseTime(from)
		if !ok {
			return f, t, xhttp.BadRequestErrorf("invalid from timestamp: %s", from)
		}
		f = v
	}
	if to != "" {
		v, ok := xhttp.ParseTime(to)
		if !ok {
			return f, t, xhttp.BadRequestErrorf("invalid to timestamp: %s", to)
		}
		t = v
	}
	return f, t, nil
}
