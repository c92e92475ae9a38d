package injector

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/lk2023060901/linkedin-discovery/internal/conf"
	"github.com/lk2023060901/linkedin-discovery/internal/pkg/logger"
	"github.com/lk2023060901/linkedin-discovery/internal/server"
)

// App encapsulates all application dependencies
type App struct {
	Config     *conf.Config
	Logger     *logger.Logger
	Engine     *Engine
	HTTPServer *server.HTTPServer
}

// Run starts the HTTP server and blocks until it fails or ctx is done,
// then shuts everything down in reverse order.
func (a *App) Run(ctx context.Context) error {
	if err := a.Engine.Start(); err != nil {
		return err
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- a.HTTPServer.Start()
	}()
	a.Logger.Info("discovery service started")

	var runErr error
	select {
	case <-ctx.Done():
	case runErr = <-errCh:
		if runErr != nil {
			a.Logger.Error("HTTP server failed", zap.Error(runErr))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.Config.Server.ShutdownTimeout)
	defer cancel()
	return errors.Join(runErr, a.Shutdown(shutdownCtx))
}

// Shutdown stops accepting requests, then drains the engine
func (a *App) Shutdown(ctx context.Context) error {
	var errs []error
	if err := a.HTTPServer.Stop(ctx); err != nil {
		errs = append(errs, err)
	}
	if err := a.Engine.Stop(ctx); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
