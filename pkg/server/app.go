package server

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"EconDash/pkg/config"
	xhttp "EconDash/pkg/http"
	pkgkafka "EconDash/pkg/kafka"
	applogger "EconDash/pkg/logger"
)

// App encapsulates the entire application lifecycle.
type App struct {
	cfg        *config.Config
	log        *applogger.Logger
	httpServer *xhttp.Server
	consumer   *pkgkafka.Consumer
}

// New creates a new App. consumer may be nil when Kafka is disabled.
func New(cfg *config.Config, l *applogger.Logger, httpServer *xhttp.Server, consumer *pkgkafka.Consumer) *App {
	if l == nil {
		l = applogger.Nop()
	}
	return &App{
		cfg:        cfg,
		log:        l.With("app"),
		httpServer: httpServer,
		consumer:   consumer,
	}
}

// Run starts the application and blocks until interrupted.
func (a *App) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return a.RunContext(ctx)
}

// RunContext starts the consumer and HTTP server and shuts both down once
// ctx is done.
func (a *App) RunContext(ctx context.Context) error {
	if a.consumer != nil {
		if err := a.consumer.Start(context.Background()); err != nil {
			a.log.Error("kafka consumer start error", applogger.Error(err))
			return err
		}
	}

	if err := a.httpServer.Start(); err != nil {
		a.log.Error("http server start error", applogger.Error(err))
		return err
	}
	a.log.Info("econdash started",
		applogger.String("env", a.cfg.Environment),
		applogger.Int("port", a.cfg.Server.Port),
		applogger.Int("sources", len(a.cfg.Sources)),
		applogger.Bool("kafka", a.consumer != nil),
	)

	<-ctx.Done()
	a.log.Info("shutdown signal received")
	return a.shutdown()
}

// shutdown gracefully stops all services. Clients are closed by the
// injector cleanup.
func (a *App) shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), a.httpServer.ShutdownTimeout())
	defer cancel()

	var firstErr error
	if err := a.httpServer.Stop(ctx); err != nil {
		a.log.Error("http shutdown error", applogger.Error(err))
		firstErr = err
	}
	if a.consumer != nil {
		if err := a.consumer.Stop(ctx); err != nil {
			a.log.Warn("kafka consumer stop error", applogger.Error(err))
			if firstErr == nil {
				firstErr = err
			}
		}
	}

	a.log.Info("shutdown complete")
	return firstErr
}
