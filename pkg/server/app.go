package server

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"Volatile/internal/domain/models"
	"Volatile/internal/usecase"
	"Volatile/pkg/config"
	xhttp "Volatile/pkg/http"
	applogger "Volatile/pkg/logger"
)

const flushTimeout = 10 * time.Second

// App runs one estimation, writes its reports and optionally keeps serving
// the result over HTTP.
type App struct {
	cfg       *config.Config
	estimator *usecase.Estimator
	holder    *usecase.EstimationHolder
	server    *xhttp.Server
	digest    *applogger.Digest
	publisher applogger.Publisher
	topic     string
	l         *applogger.Logger
	stdout    io.Writer
}

// Option configures an App.
type Option func(*App)

func WithLogger(l *applogger.Logger) Option {
	return func(a *App) {
		if l != nil {
			a.l = l
		}
	}
}

// WithHTTPServer serves the estimation once the run completes.
func WithHTTPServer(s *xhttp.Server) Option { return func(a *App) { a.server = s } }

// WithDigest flushes the run's warnings and errors to topic.
func WithDigest(d *applogger.Digest, p applogger.Publisher, topic string) Option {
	return func(a *App) {
		a.digest, a.publisher, a.topic = d, p, topic
	}
}

// WithStdout redirects the printed table.
func WithStdout(w io.Writer) Option { return func(a *App) { a.stdout = w } }

// New creates a new App instance with all dependencies.
func New(cfg *config.Config, estimator *usecase.Estimator, holder *usecase.EstimationHolder, opts ...Option) *App {
	a := &App{
		cfg:       cfg,
		estimator: estimator,
		holder:    holder,
		l:         applogger.Nop(),
		stdout:    os.Stdout,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Run estimates symbols, writes the configured outputs and, when a server
// is configured, serves until ctx is done or a termination signal arrives.
func (a *App) Run(ctx context.Context, symbols []string) error {
	est, err := a.estimator.Run(ctx, symbols)
	a.flushDigest()
	if err != nil {
		return err
	}
	a.holder.Set(est)

	if err := a.writeOutputs(est); err != nil {
		return err
	}

	if a.server == nil {
		return nil
	}
	return a.serve(ctx)
}

func (a *App) writeOutputs(est *models.Estimation) error {
	out := a.cfg.Output
	if out.PrintTable {
		if err := usecase.WriteTable(a.stdout, est); err != nil {
			return fmt.Errorf("print table: %w", err)
		}
	}
	files := []struct {
		path  string
		write func(io.Writer, *models.Estimation) error
	}{
		{out.TablePath, usecase.WriteCSV},
		{out.XLSXPath, usecase.WriteXLSX},
		{out.LossesPath, usecase.WriteLossesCSV},
	}
	for _, f := range files {
		if f.path == "" {
			continue
		}
		if err := usecase.WriteFile(f.path, est, f.write); err != nil {
			return err
		}
		a.l.Info("Report written", applogger.String("path", f.path))
	}
	return nil
}

func (a *App) serve(ctx context.Context) error {
	if err := a.server.Start(); err != nil {
		return fmt.Errorf("start http server: %w", err)
	}
	a.l.Info("Serving predictions", applogger.Int("port", a.cfg.Server.Port))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	var serveErr error
	select {
	case <-ctx.Done():
	case sig := <-sigCh:
		a.l.Info("Shutdown signal received", applogger.String("signal", sig.String()))
	case serveErr = <-a.server.Err():
	}

	stopCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := a.server.Stop(stopCtx); err != nil {
		a.l.Warn("HTTP shutdown error", applogger.Error(err))
	}
	a.flushDigest()
	return serveErr
}

func (a *App) flushDigest() {
	if a.digest == nil || a.publisher == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), flushTimeout)
	defer cancel()
	if err := a.digest.Flush(ctx, a.publisher, a.topic); err != nil {
		a.l.Warn("Failed to publish run digest", applogger.Error(err))
	}
}
