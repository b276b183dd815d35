package server

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"TradeCore/internal/handler/api"
	"TradeCore/internal/usecase"
	pkgch "TradeCore/pkg/clickhouse"
	"TradeCore/pkg/config"
	xhttp "TradeCore/pkg/http"
	applogger "TradeCore/pkg/logger"
	"TradeCore/pkg/queue"
)

// App owns the application lifecycle: the bar collector, the per-symbol
// trade engine, the reconcile queue and the audit HTTP API.
type App struct {
	cfg        *config.Config
	l          *applogger.Logger
	collector  *usecase.BarCollector
	engine     *usecase.TradeEngine
	queue      *queue.RedisQueue
	chClient   *pkgch.Client
	auditQuery *usecase.AuditQueryUseCase
	fusion     *usecase.SignalFusionEngine
	httpServer *xhttp.Server
}

// New creates the application with all its collaborators.
func New(
	cfg *config.Config,
	l *applogger.Logger,
	collector *usecase.BarCollector,
	engine *usecase.TradeEngine,
	q *queue.RedisQueue,
	chClient *pkgch.Client,
	auditQuery *usecase.AuditQueryUseCase,
	fusion *usecase.SignalFusionEngine,
) *App {
	return &App{
		cfg:        cfg,
		l:          l,
		collector:  collector,
		engine:     engine,
		queue:      q,
		chClient:   chClient,
		auditQuery: auditQuery,
		fusion:     fusion,
	}
}

// Run starts all components and blocks until interrupted.
func (a *App) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := a.engine.Start(ctx); err != nil {
		return err
	}

	if a.queue != nil {
		if err := a.queue.Start(); err != nil {
			a.l.Error("reconcile queue start error", applogger.Error(err))
		} else {
			a.queue.StartRetryProcessor()
			a.l.Info("reconcile queue started")
		}
	}

	go func() {
		if err := a.collector.Start(ctx); err != nil {
			a.l.Error("collector error", applogger.Error(err))
		}
	}()
	a.l.Info("collector started", applogger.Strings("symbols", a.cfg.MarketData.Symbols))

	handler := api.NewAuditEchoHandler(a.l, a.auditQuery, a.fusion)
	a.httpServer = xhttp.NewServer(handler,
		xhttp.WithPort(a.cfg.Server.Port),
		xhttp.WithTimeouts(a.cfg.Server.ReadTimeout, a.cfg.Server.WriteTimeout, a.cfg.Server.ShutdownTimeout),
	)
	if err := a.httpServer.Start(); err != nil {
		a.l.Error("http server start error", applogger.Error(err))
		return err
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	a.l.Info("shutdown signal received")
	return a.shutdown(ctx)
}

// shutdown stops components in dependency order: no new bars, then no new
// decisions, then the reconcile queue, then infrastructure.
func (a *App) shutdown(ctx context.Context) error {
	if err := a.collector.Shutdown(ctx); err != nil {
		a.l.Warn("collector stop error", applogger.Error(err))
	}

	a.engine.Stop()

	shutdownCtx, cancel := context.WithTimeout(ctx, a.cfg.Server.ShutdownTimeout)
	defer cancel()
	if a.httpServer != nil {
		if err := a.httpServer.Stop(shutdownCtx); err != nil {
			a.l.Error("http shutdown error", applogger.Error(err))
		}
	}

	if a.queue != nil {
		if err := a.queue.Stop(shutdownCtx); err != nil {
			a.l.Warn("reconcile queue stop error", applogger.Error(err))
		}
	}

	if a.chClient != nil {
		if err := a.chClient.Close(); err != nil {
			a.l.Warn("clickhouse close error", applogger.Error(err))
		}
	}

	a.l.Info("shutdown complete")
	return nil
}
