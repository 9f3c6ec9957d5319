package internal

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"hed/internal/controllers"
	"hed/internal/export"
	"hed/internal/export/interfaces"
	"hed/internal/providers"
	"hed/internal/structures"
)

const initTimeout = 30 * time.Second

// initSinks prepares the archive and the warehouse before the schedule
// starts. Credential and permission faults abort start-up; anything else is
// retried lazily by the first run.
func initSinks(pipeline *export.Pipeline, logger providers.Logger) error {
	ctx, cancel := context.WithTimeout(context.Background(), initTimeout)
	defer cancel()

	_, err := pipeline.Init(ctx)
	if err == nil {
		return nil
	}
	if export.IsConfigFault(err) {
		return fmt.Errorf("export sinks misconfigured: %w", err)
	}
	logger.Errorf(providers.TypeApp, "Export sinks not ready: %s", err)
	return nil
}

type App struct {
	WebServer *http.Server
}

func NewApp(exportController *controllers.ExportController, healthController *controllers.HealthController, scheduler interfaces.SchedulerInterface, pipeline *export.Pipeline, conf *structures.Config, logger providers.Logger, router providers.RouterProviderInterface, metrics providers.MetricsProviderInterface) (*App, error) {
	// Inner mux: API routes
	apiMux := http.NewServeMux()
	for _, route := range router.GetRoutes() {
		apiMux.Handle(route.Url, route.Handler)
	}

	// Wrap API routes with metrics middleware
	instrumentedAPI := providers.MetricsMiddleware(metrics, logger, apiMux)

	// Outer mux: infrastructure + instrumented API
	mux := http.NewServeMux()
	mux.HandleFunc("/health", healthController.Health)
	if conf.Metrics.Enabled {
		mux.Handle("/metrics", promhttp.Handler())
	}
	mux.Handle("/", instrumentedAPI)

	logger.Infof(providers.TypeApp, "Starting %s", conf.AppName)
	err := scheduler.Restore()
	if err != nil {
		logger.Errorf(providers.TypeApp, "Restore error: %s", err)
	}
	pipeline.OnManifest(exportController.Invalidate)

	if err = initSinks(pipeline, logger); err != nil {
		return nil, err
	}

	app := &App{
		WebServer: &http.Server{
			Addr:        conf.WebServer.Host + ":" + strconv.Itoa(conf.WebServer.Port),
			Handler:     mux,
			ReadTimeout: 5 * time.Second,
			// Manual exports answer once the run is done.
			WriteTimeout: 10 * time.Minute,
			IdleTimeout:  60 * time.Second,
		},
	}

	scheduler.Init()

	serverErr := make(chan error, 1)
	go func() {
		logger.Infof(providers.TypeApp, "Listening HTTP clients on %s:%d", conf.WebServer.Host, conf.WebServer.Port)
		if err := app.WebServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		logger.Infof(providers.TypeApp, "Shutdown signal received")
	case err := <-serverErr:
		scheduler.Stop()
		return nil, fmt.Errorf("server error: %w", err)
	}

	scheduler.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err = app.WebServer.Shutdown(ctx); err != nil {
		return nil, err
	}
	err = scheduler.Persist()
	if err != nil {
		return nil, err
	}
	logger.Infof(providers.TypeApp, "gracefully stopped")
	return app, nil
}
