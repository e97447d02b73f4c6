package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/n0rdy/guardian/api"
	"github.com/n0rdy/guardian/broker"
	"github.com/n0rdy/guardian/configs"
	"github.com/n0rdy/guardian/db"
	"github.com/n0rdy/guardian/guardian"
	"github.com/n0rdy/guardian/jobs/guard"
	"github.com/n0rdy/guardian/jobs/maintenance"
	"github.com/n0rdy/guardian/metrics"
	"github.com/n0rdy/guardian/notifier"
	"github.com/n0rdy/guardian/services"
	"github.com/n0rdy/guardian/ui"
	"github.com/n0rdy/guardian/utils"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	appConfigs, err := configs.Load(os.Args[1:])
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configs")
	}

	setupLogger(appConfigs.Log)

	dbPath, err := utils.ResolveDBPath(appConfigs.DbPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to resolve database path")
	}

	if err := db.RunMigrations(dbPath); err != nil {
		log.Fatal().Err(err).Msg("failed to run migrations")
	}

	repo, err := db.NewSQLiteRepo(dbPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create SQLite repository")
	}
	defer repo.Close()

	metricsService := metrics.NewMetricsService(appConfigs.MetricsEnabled, prometheus.DefaultRegisterer)
	var metricsHandler http.Handler
	if appConfigs.MetricsEnabled {
		metricsHandler = promhttp.Handler()
	}

	managementClient, err := broker.NewManagementClient(
		appConfigs.Rabbitmq.Url,
		appConfigs.Rabbitmq.User,
		appConfigs.Rabbitmq.Password,
		&http.Client{Timeout: appConfigs.CollaboratorTimeout},
	)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create RabbitMQ management client")
	}

	mailer, err := notifier.NewSMTPMailer(appConfigs.Smtp)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create SMTP mailer")
	}
	outbox := notifier.NewOutbox(mailer, metricsService, appConfigs.OutboxSize, appConfigs.CollaboratorTimeout)

	engine := guardian.NewEngine(repo, managementClient, outbox, metricsService, guardian.EngineConfigs{
		Thresholds: guardian.Thresholds{
			Warn:    appConfigs.WarnThreshold,
			Archive: appConfigs.ArchiveThreshold,
			Delete:  appConfigs.DeleteThreshold,
		},
		EmailsEnabled:       appConfigs.EmailsEnabled,
		CollaboratorTimeout: appConfigs.CollaboratorTimeout,
	})

	guardJob := guard.NewGuardJob(engine, appConfigs.PollingInterval)
	dbOptimizationJob := maintenance.NewDbOptimizationJob(
		repo,
		appConfigs.JobsIntervals.DbOptimizationMs,
		appConfigs.JobsIntervals.DbOptimizationMaxDurationMs,
	)
	defer dbOptimizationJob.Close()

	queuesService := services.NewQueuesService(repo, engine)
	usersService := services.NewUsersService(repo)
	monitoringService := services.NewMonitoringService(repo)
	sessionsService := services.NewSessionsService()
	defer sessionsService.Close()

	apiRouter := api.NewRouter(queuesService, usersService, monitoringService, metricsHandler, appConfigs.AuthSecret)
	uiRouter := ui.NewRouter(queuesService, usersService, sessionsService, appConfigs.AuthSecret)

	rootRouter := chi.NewRouter()
	rootRouter.Mount("/ui", uiRouter.NewRouter())
	rootRouter.Mount("/", apiRouter.NewRouter())

	server := &http.Server{
		Addr:              appConfigs.Addr,
		Handler:           http.TimeoutHandler(rootRouter, appConfigs.ServerConfig.Timeouts.Handle, "timeout"),
		WriteTimeout:      appConfigs.ServerConfig.Timeouts.Write,
		ReadTimeout:       appConfigs.ServerConfig.Timeouts.Read,
		ReadHeaderTimeout: appConfigs.ServerConfig.Timeouts.ReadHeader,
		IdleTimeout:       appConfigs.ServerConfig.Timeouts.Idle,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		log.Info().
			Str("addr", appConfigs.Addr).
			Str("rabbitmq", appConfigs.Rabbitmq.Url).
			Dur("polling_interval", appConfigs.PollingInterval).
			Bool("emails_enabled", appConfigs.EmailsEnabled).
			Msg("guardian started")

		err := server.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("server failed")
			stop()
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutdown requested")

	// the poller goes first, so that no new notifications are enqueued while the outbox drains
	guardJob.Close()
	outbox.Close()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), appConfigs.ServerConfig.Timeouts.Handle)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("failed to shut down server gracefully")
		server.Close()
	}
	log.Info().Msg("guardian stopped")
}

func setupLogger(logConfigs configs.LogConfigs) {
	level, err := zerolog.ParseLevel(logConfigs.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if logConfigs.Pretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}
}
