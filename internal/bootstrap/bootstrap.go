package bootstrap

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/time/rate"

	"github.com/kirillkom/document-viewer/internal/config"
	"github.com/kirillkom/document-viewer/internal/core/ports"
	"github.com/kirillkom/document-viewer/internal/core/usecase"
	"github.com/kirillkom/document-viewer/internal/infrastructure/docservice"
	"github.com/kirillkom/document-viewer/internal/infrastructure/preflight"
	"github.com/kirillkom/document-viewer/internal/infrastructure/queue/nats"
	"github.com/kirillkom/document-viewer/internal/infrastructure/resilience"
	"github.com/kirillkom/document-viewer/internal/infrastructure/settings/yamlfile"
	"github.com/kirillkom/document-viewer/internal/observability/metrics"
)

type App struct {
	Config config.Config

	Settings      *yamlfile.Store
	DocService    *docservice.Client
	ClientMetrics *metrics.ClientMetrics

	Library *usecase.CollectionLoader
	Detail  *usecase.DetailOrchestrator
	Uploads *usecase.UploadUseCase

	// Events is nil when no broker is configured.
	Events *nats.Notifier

	closeFn func()
}

func New(_ context.Context, cfg config.Config, service string) (*App, error) {
	settings, err := yamlfile.New(cfg.SettingsPath, cfg.APIKey)
	if err != nil {
		return nil, fmt.Errorf("init settings store: %w", err)
	}

	clientMetrics := metrics.NewClientMetrics(service)
	executor := resilience.NewExecutor(cfg.DocServiceResilience).WithObserver(clientMetrics)

	var limiter *rate.Limiter
	if cfg.DocServiceRateRPS > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.DocServiceRateRPS), max(cfg.DocServiceRateBurst, 1))
	}

	client := docservice.New(cfg.DocServiceURL, settings, docservice.Options{
		Timeout:  cfg.DocServiceTimeout,
		Executor: executor,
		Limiter:  limiter,
		Metrics:  clientMetrics,
	})

	var (
		notifier ports.ReadyNotifier = nats.Noop{}
		events   *nats.Notifier
	)
	if cfg.NATSURL != "" {
		events, err = nats.New(cfg.NATSURL, cfg.NATSReadySubject, nats.Options{
			ResilienceExecutor: executor,
		})
		if err != nil {
			return nil, fmt.Errorf("init ready notifier: %w", err)
		}
		notifier = events
	} else {
		slog.Info("ready_notifier_disabled", "reason", "NATS_URL is empty")
	}

	uploads := usecase.NewUploadUseCase(
		client,
		preflight.NewInspector(cfg.UploadMaxBytes),
		notifier,
		cfg.PollInterval,
		cfg.UploadMaxBytes,
	)

	return &App{
		Config: cfg,

		Settings:      settings,
		DocService:    client,
		ClientMetrics: clientMetrics,

		Library: usecase.NewCollectionLoader(client, cfg.PageSize),
		Detail: usecase.NewDetailOrchestrator(client, usecase.DetailOptions{
			SummaryMaxLength: cfg.SummaryMaxLength,
			MaxKeyPoints:     cfg.KeyPointsMax,
			MaxInsights:      cfg.InsightsMax,
		}),
		Uploads: uploads,
		Events:  events,

		closeFn: func() {
			if events != nil {
				events.Close()
			}
		},
	}, nil
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}
