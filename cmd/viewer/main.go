package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	httpadapter "github.com/kirillkom/document-viewer/internal/adapters/http"
	"github.com/kirillkom/document-viewer/internal/bootstrap"
	"github.com/kirillkom/document-viewer/internal/config"
	"github.com/kirillkom/document-viewer/internal/core/domain"
	"github.com/kirillkom/document-viewer/internal/observability/logging"
	"github.com/kirillkom/document-viewer/internal/observability/metrics"
)

const serviceName = "viewer"

func main() {
	cfg := config.Load()
	logging.Install(serviceName, cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg, serviceName)
	if err != nil {
		slog.Error("bootstrap_failed", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	router := httpadapter.NewRouter(cfg, httpadapter.Services{
		Library:   app.Library,
		Detail:    app.Detail,
		Uploader:  app.Uploads,
		Remover:   app.DocService,
		Settings:  app.Settings,
		Metrics:   metrics.NewHTTPServerMetrics(serviceName),
		Gatherers: []prometheus.Gatherer{app.ClientMetrics.Registry()},
	}).Handler()

	server := &http.Server{
		Addr:         ":" + cfg.ViewerPort,
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: cfg.DocServiceTimeout + 30*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	if err := app.Library.Reload(ctx); err != nil {
		slog.Warn("initial_library_load_skipped", "error", err)
	}

	if app.Events != nil {
		go func() {
			err := app.Events.SubscribeDocumentReady(ctx, func(ctx context.Context, event domain.DocumentReadyEvent) error {
				slog.Info("document_ready_received", "document_id", event.DocumentID, "filename", event.Filename)
				if app.Detail.View().DocumentID == event.DocumentID {
					if err := app.Detail.Refresh(ctx); err != nil {
						return err
					}
				}
				return app.Library.Reload(ctx)
			})
			if err != nil {
				slog.Error("ready_subscription_failed", "error", err)
			}
		}()
	}

	go func() {
		slog.Info("viewer_listening", "addr", server.Addr, "docservice_url", cfg.DocServiceURL)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("viewer_server_failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Warn("viewer_shutdown_failed", "error", err)
	}
}
