package main

import (
	"context"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	alarmapp "gse-control/internal/alarms/application"
	alarmmemory "gse-control/internal/alarms/infrastructure/memory"
	alarmpostgres "gse-control/internal/alarms/infrastructure/postgres"
	alarmhttp "gse-control/internal/alarms/interfaces/http"
	"gse-control/internal/alarms/notify"
	"gse-control/internal/analytics"
	apihttp "gse-control/internal/api/http"
	"gse-control/internal/catalog"
	commandapp "gse-control/internal/commands/application"
	commandevents "gse-control/internal/commands/application/events"
	"gse-control/internal/commands/infrastructure/dispatch"
	commandmemory "gse-control/internal/commands/infrastructure/memory"
	commandpostgres "gse-control/internal/commands/infrastructure/postgres"
	commandhttp "gse-control/internal/commands/interfaces/http"
	"gse-control/internal/config"
	"gse-control/internal/control"
	deviceapp "gse-control/internal/devices/application"
	"gse-control/internal/eventing"
	"gse-control/internal/events"
	"gse-control/internal/observability/metrics"
	"gse-control/internal/telemetry/detection"
	telemetry "gse-control/internal/telemetry/domain"
	telemetrypostgres "gse-control/internal/telemetry/infrastructure/postgres"
	telemetryhttp "gse-control/internal/telemetry/interfaces/http"
	"gse-control/internal/telemetry/statistics"
	"gse-control/pkg/logging"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		boot := logging.New("info", "json")
		boot.Fatal().Err(err).Msg("load config")
	}
	logger := logging.New(cfg.LogLevel, cfg.LogFormat)

	fleet := make([]catalog.Device, 0, len(cfg.Fleet))
	for _, d := range cfg.Fleet {
		fleet = append(fleet, catalog.Device{
			ID:        d.ID,
			Type:      catalog.DeviceType(d.Type),
			Subsystem: d.Subsystem,
			Location:  d.Location,
		})
	}
	cat, err := catalog.New(fleet...)
	if err != nil {
		logger.Fatal().Err(err).Msg("build device catalog")
	}

	var pool *pgxpool.Pool
	if cfg.DatabaseURL != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		pool, err = pgxpool.New(ctx, cfg.DatabaseURL)
		cancel()
		if err != nil {
			logger.Fatal().Err(err).Msg("connect postgres")
		}
		defer pool.Close()
	} else {
		logger.Warn().Msg("no database configured; history queries disabled")
	}
	metrics.Init(pool, logger)

	bus := eventing.NewInMemoryBus()
	publisher := eventing.NewPublisher(bus)

	alarmRepo := alarmmemory.NewRepository()
	alarmManager, err := alarmapp.NewManager(alarmRepo,
		alarmapp.WithPublisher(publisher),
		alarmapp.WithClearHysteresis(cfg.Detection.ClearAfter),
	)
	if err != nil {
		logger.Fatal().Err(err).Msg("build alarm manager")
	}

	deviceTracker := deviceapp.NewTracker(deviceapp.WithPublisher(publisher))

	commandOpts := []commandapp.ServiceOption{}
	if cfg.Dispatch.BaseURL != "" {
		dispatcher, err := dispatch.NewHTTPDispatcher(cfg.Dispatch.BaseURL, cfg.Dispatch.Timeout.Std(), logger)
		if err != nil {
			logger.Fatal().Err(err).Msg("build command dispatcher")
		}
		commandOpts = append(commandOpts, commandapp.WithDispatcher(dispatcher))
	}
	commandService, err := commandapp.NewService(
		commandmemory.NewRepository(),
		commandapp.NewValidator(cat),
		publisher,
		commandOpts...,
	)
	if err != nil {
		logger.Fatal().Err(err).Msg("build command service")
	}

	core, err := control.New(control.Deps{
		Catalog:   cat,
		Stats:     statistics.NewTracker(cfg.Detection.WindowSize),
		Detector:  detection.New(cfg.Detection.SigmaThreshold, cfg.Detection.MinSamples),
		Alarms:    alarmManager,
		Devices:   deviceTracker,
		Commands:  commandService,
		Publisher: publisher,
		Logger:    logger,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("build control core")
	}

	var telemetryHistory telemetry.Repository
	var eventStore events.Store = events.NewMemoryStore()
	if pool != nil {
		alarmSink, err := alarmpostgres.NewHistorySink(pool, logger)
		if err != nil {
			logger.Fatal().Err(err).Msg("build alarm history sink")
		}
		alarmSink.Attach(bus)

		commandSink, err := commandpostgres.NewHistorySink(pool, logger)
		if err != nil {
			logger.Fatal().Err(err).Msg("build command history sink")
		}
		commandSink.Attach(bus)

		telemetrySink, err := telemetrypostgres.NewHistorySink(pool, logger)
		if err != nil {
			logger.Fatal().Err(err).Msg("build telemetry history sink")
		}
		telemetrySink.Attach(bus)
		telemetryHistory = telemetrySink

		eventStore, err = events.NewPostgresStore(pool)
		if err != nil {
			logger.Fatal().Err(err).Msg("build event store")
		}
	}
	events.NewRecorder(eventStore, logger).Attach(bus,
		eventing.EventTypeOf[alarmapp.AlarmRaised](),
		eventing.EventTypeOf[alarmapp.AlarmAcknowledged](),
		eventing.EventTypeOf[alarmapp.AlarmCleared](),
		eventing.EventTypeOf[deviceapp.DeviceStateChanged](),
		eventing.EventTypeOf[commandevents.CommandAdmitted](),
		eventing.EventTypeOf[commandevents.CommandRejected](),
		eventing.EventTypeOf[commandevents.CommandExecuted](),
		eventing.EventTypeOf[commandevents.CommandFailed](),
	)

	if cfg.Notify.WebhookURL != "" {
		channel, err := notify.NewWebhookChannel(cfg.Notify.WebhookURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("build webhook channel")
		}
		opts := []notify.Option{}
		if cfg.Notify.Escalation.Std() > 0 {
			opts = append(opts, notify.WithEscalation(cfg.Notify.Escalation.Std()))
		}
		if cfg.Notify.Cooldown.Std() > 0 {
			opts = append(opts, notify.WithCooldown(cfg.Notify.Cooldown.Std()))
		}
		notifier, err := notify.NewNotifier(alarmRepo, channel, nil, logger, opts...)
		if err != nil {
			logger.Fatal().Err(err).Msg("build alarm notifier")
		}
		notifier.Attach(bus)
		defer notifier.Close()
	}

	analyticsService, err := analytics.NewService(alarmRepo)
	if err != nil {
		logger.Fatal().Err(err).Msg("build analytics service")
	}

	telemetryHandler, err := telemetryhttp.NewTelemetryHandler(core, telemetryHistory)
	if err != nil {
		logger.Fatal().Err(err).Msg("build telemetry handler")
	}
	commandsHandler, err := commandhttp.NewHandler(core, commandService)
	if err != nil {
		logger.Fatal().Err(err).Msg("build commands handler")
	}
	alarmsHandler, err := alarmhttp.NewHandler(core, alarmManager)
	if err != nil {
		logger.Fatal().Err(err).Msg("build alarms handler")
	}
	devicesHandler, err := apihttp.NewDevicesHandler(core)
	if err != nil {
		logger.Fatal().Err(err).Msg("build devices handler")
	}
	analyticsHandler, err := apihttp.NewAnalyticsHandler(analyticsService)
	if err != nil {
		logger.Fatal().Err(err).Msg("build analytics handler")
	}
	exportsHandler, err := apihttp.NewExportsHandler(analyticsService, alarmRepo)
	if err != nil {
		logger.Fatal().Err(err).Msg("build exports handler")
	}
	eventsHandler, err := apihttp.NewEventsHandler(eventStore)
	if err != nil {
		logger.Fatal().Err(err).Msg("build events handler")
	}

	mux := http.NewServeMux()
	mux.Handle("/api/v1/telemetry", telemetryHandler)
	mux.Handle("/api/v1/telemetry/batch", telemetryHandler)
	mux.Handle("/api/v1/commands", commandsHandler)
	mux.Handle("/api/v1/commands/", commandsHandler)
	mux.Handle("/api/v1/alarms", alarmsHandler)
	mux.Handle("/api/v1/alarms/", alarmsHandler)
	mux.Handle("/api/v1/devices", devicesHandler)
	mux.Handle("/api/v1/devices/", devicesHandler)
	mux.Handle("/api/v1/analytics/alarms", analyticsHandler)
	mux.Handle("/api/v1/analytics/mttr", analyticsHandler)
	mux.Handle("/api/v1/analytics/alarm-frequency", analyticsHandler)
	mux.Handle("/api/v1/exports/", exportsHandler)
	mux.Handle("/api/v1/events", eventsHandler)
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	server := &http.Server{Addr: cfg.HTTPAddr, Handler: loggingMiddleware(mux, logger)}
	logger.Info().Str("addr", cfg.HTTPAddr).Msg("http listening")
	if err := server.ListenAndServe(); err != nil {
		logger.Fatal().Err(err).Msg("http server")
	}
}

func loggingMiddleware(next http.Handler, logger zerolog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		started := time.Now()
		next.ServeHTTP(w, r)
		logger.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Dur("elapsed", time.Since(started)).
			Msg("request")
	})
}
