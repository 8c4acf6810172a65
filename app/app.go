package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/tech-arch1tect/otpauth/config"
	"github.com/tech-arch1tect/otpauth/openapi"
	"github.com/tech-arch1tect/otpauth/server"
	"github.com/tech-arch1tect/otpauth/services/logging"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type App struct {
	fx     *fx.App
	config *config.Config
	logger *logging.Service
	db     *gorm.DB
	server *server.Server
	docs   *openapi.Document
}

func (a *App) Start(ctx context.Context) error {
	return a.fx.Start(ctx)
}

func (a *App) Stop(ctx context.Context) error {
	return a.fx.Stop(ctx)
}

// Run starts the application and blocks until SIGINT or SIGTERM, or until a
// component asks fx to shut down.
func (a *App) Run() error {
	startCtx, cancel := context.WithTimeout(context.Background(), a.fx.StartTimeout())
	defer cancel()

	if err := a.Start(startCtx); err != nil {
		return fmt.Errorf("failed to start application: %w", err)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	exitCode := 0
	select {
	case sig := <-sigChan:
		a.logger.Info("received shutdown signal, stopping gracefully", zap.String("signal", sig.String()))
	case shutdown := <-a.fx.Wait():
		exitCode = shutdown.ExitCode
		a.logger.Info("shutdown requested", zap.Int("exit_code", exitCode))
	}

	stopCtx, stopCancel := context.WithTimeout(context.Background(), a.stopTimeout())
	defer stopCancel()

	if err := a.Stop(stopCtx); err != nil {
		a.logger.Error("failed to stop application gracefully", zap.Error(err))
		return err
	}
	if exitCode != 0 {
		return fmt.Errorf("application exited with code %d", exitCode)
	}
	return nil
}

func (a *App) stopTimeout() time.Duration {
	if a.config.Server.ShutdownTimeout > 0 {
		// leave room for the remaining stop hooks after the server drains
		return a.config.Server.ShutdownTimeout + 5*time.Second
	}
	return 30 * time.Second
}

func (a *App) Echo() *echo.Echo {
	if a.server == nil {
		return nil
	}
	return a.server.Echo()
}

func (a *App) Server() *server.Server {
	return a.server
}

func (a *App) DB() *gorm.DB {
	return a.db
}

func (a *App) Logger() *logging.Service {
	return a.logger
}

func (a *App) Config() *config.Config {
	return a.config
}

// Docs is the OpenAPI document for every registered route.
func (a *App) Docs() *openapi.Document {
	return a.docs
}

func (a *App) Get(path string, handler echo.HandlerFunc, middleware ...echo.MiddlewareFunc) {
	if e := a.Echo(); e != nil {
		e.GET(path, handler, middleware...)
	}
}

func (a *App) Post(path string, handler echo.HandlerFunc, middleware ...echo.MiddlewareFunc) {
	if e := a.Echo(); e != nil {
		e.POST(path, handler, middleware...)
	}
}

func (a *App) Put(path string, handler echo.HandlerFunc, middleware ...echo.MiddlewareFunc) {
	if e := a.Echo(); e != nil {
		e.PUT(path, handler, middleware...)
	}
}

func (a *App) Delete(path string, handler echo.HandlerFunc, middleware ...echo.MiddlewareFunc) {
	if e := a.Echo(); e != nil {
		e.DELETE(path, handler, middleware...)
	}
}
