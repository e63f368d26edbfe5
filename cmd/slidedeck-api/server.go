package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/MarcoPoloResearchLab/slidedeck/internal/config"
	"github.com/MarcoPoloResearchLab/slidedeck/internal/database"
	"github.com/MarcoPoloResearchLab/slidedeck/internal/logging"
	"github.com/MarcoPoloResearchLab/slidedeck/internal/render"
	"github.com/MarcoPoloResearchLab/slidedeck/internal/server"
	"github.com/MarcoPoloResearchLab/slidedeck/internal/slides"
	"go.uber.org/zap"
)

const (
	readHeaderTimeout = 10 * time.Second
	shutdownTimeout   = 10 * time.Second
)

// application is the wired HTTP stack and the store it owns.
type application struct {
	handler http.Handler
	events  *server.EventDispatcher
	closeDB func() error
}

func (a *application) close() error {
	return a.closeDB()
}

func buildApplication(appConfig config.AppConfig, logger *zap.Logger) (*application, error) {
	db, err := database.OpenSQLite(appConfig.DatabasePath, logger, appConfig.SeedDefaultSlides)
	if err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}

	slidesService, err := slides.NewService(slides.ServiceConfig{
		Database: db,
		Clock:    time.Now,
		Logger:   logger,
	})
	if err != nil {
		_ = sqlDB.Close()
		return nil, err
	}

	events := server.NewEventDispatcher()
	handler, err := server.NewHTTPHandler(server.Dependencies{
		SlidesService:      slidesService,
		Renderer:           render.New(render.Config{StyleName: appConfig.CodeStyle}),
		Events:             events,
		Logger:             logger,
		Environment:        appConfig.Environment,
		ExposeErrorDetails: appConfig.IsDevelopment(),
		AllowedOrigins:     appConfig.CORSAllowedOrigins,
	})
	if err != nil {
		_ = sqlDB.Close()
		return nil, err
	}

	return &application{handler: handler, events: events, closeDB: sqlDB.Close}, nil
}

func runServer(ctx context.Context, appConfig config.AppConfig) error {
	logger, err := logging.NewLogger(appConfig.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	app, err := buildApplication(appConfig, logger)
	if err != nil {
		return err
	}
	defer app.close() //nolint:errcheck

	signalCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("server starting",
		zap.String("address", appConfig.HTTPAddress),
		zap.String("environment", appConfig.Environment),
		zap.String("database", appConfig.DatabasePath),
	)
	return serve(signalCtx, &http.Server{
		Addr:              appConfig.HTTPAddress,
		Handler:           app.handler,
		ReadHeaderTimeout: readHeaderTimeout,
	}, app.events, logger)
}

// serve runs httpServer until it fails or ctx ends, then shuts it down gracefully.
func serve(ctx context.Context, httpServer *http.Server, events *server.EventDispatcher, logger *zap.Logger) error {
	errCh := make(chan error, 1)
	go func() {
		err := httpServer.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("server shutting down", zap.Int("event_subscribers", events.SubscriberCount()))
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return httpServer.Shutdown(shutdownCtx)
}
