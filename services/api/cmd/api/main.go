package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cimillas/panache/services/api/internal/app"
	"github.com/cimillas/panache/services/api/internal/cache"
	"github.com/cimillas/panache/services/api/internal/clock"
	"github.com/cimillas/panache/services/api/internal/config"
	"github.com/cimillas/panache/services/api/internal/gate"
	"github.com/cimillas/panache/services/api/internal/notify"
	"github.com/cimillas/panache/services/api/internal/payment"
	"github.com/cimillas/panache/services/api/internal/storage/postgres"
	transporthttp "github.com/cimillas/panache/services/api/internal/transport/http"
	"github.com/cimillas/panache/services/api/internal/transport/ws"
	"github.com/cimillas/panache/services/api/migrations"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"
)

// hydrationTimeout bounds the start-up cache load; the service does not serve
// until it completes.
const hydrationTimeout = 2 * time.Minute

func main() {
	logger := logrus.New()
	config.LoadEnvFile(logger)

	cfg, err := config.Load()
	if err != nil {
		logger.WithError(err).Fatal("load config")
	}
	configureLogger(logger, cfg)

	startupCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	pool, err := pgxpool.New(startupCtx, cfg.DatabaseURL)
	if err != nil {
		logger.WithError(err).Fatal("connect to db")
	}
	defer pool.Close()

	if err := pool.Ping(startupCtx); err != nil {
		logger.WithError(err).Fatal("db ping")
	}
	if err := migrations.Apply(startupCtx, pool, logger); err != nil {
		logger.WithError(err).Fatal("apply migrations")
	}

	calendar, err := clock.NewCalendar(clock.NewSystem(), cfg.FestivalTimezone, cfg.FestivalStartDate)
	if err != nil {
		logger.WithError(err).Fatal("festival calendar")
	}

	runCtx, stopWorkers := context.WithCancel(context.Background())
	defer stopWorkers()

	ticketCache := cache.New()
	tasks := app.NewTaskQueue(logger, cfg.RefreshQueueSize)
	tasks.Start(runCtx, cfg.RefreshWorkers)

	tickets := postgres.NewTicketRepository(pool)
	ledger := postgres.NewLedgerRepository(pool)
	refresher := app.NewRefresher(tickets, ticketCache, tasks, logger)
	hydrator := app.NewHydrator(tickets, ticketCache, logger, app.WithChunkSize(cfg.HydrationChunkSize))

	var notifier app.Notifier = notify.LogNotifier{Logger: logger}
	if cfg.AMQPURL != "" {
		publisher, err := notify.NewPublisher(cfg.AMQPURL, cfg.AMQPExchange)
		if err != nil {
			logger.WithError(err).Fatal("connect to broker")
		}
		defer publisher.Close()
		notifier = publisher
	}

	verifier := payment.NewVerifier(cfg.PaymentKeySecret)
	gateway := payment.NewHTTPGateway(cfg.PaymentAPIURL, cfg.PaymentKeyID, cfg.PaymentKeySecret)

	registrationSvc := app.NewRegistrationService(postgres.NewRegistrationRepository(pool), verifier, refresher, tasks, notifier, calendar)
	concertSvc := app.NewConcertService(postgres.NewConcertRepository(pool), verifier, refresher, tasks, notifier, calendar)
	checkoutSvc := app.NewCheckoutService(postgres.NewCheckoutRepository(pool), gateway)
	adminSvc := app.NewAdminService(postgres.NewAdminRepository(pool), ledger, refresher, calendar)

	hub := gate.NewHub(logger)
	gateSvc := gate.NewService(ticketCache, ledger, calendar, refresher, logger)
	admission := ws.NewAdmission(cfg.WSMaxConnsPerAddr, cfg.WSCooldown, clock.NewSystem())
	go admission.RunJanitor(runCtx, cfg.WSAdmissionReset)
	gateServer := ws.NewServer(gateSvc, hub, admission, cfg.CORSOrigins, logger)

	hydrator.OnReady(func() {
		hub.Broadcast(gate.ReadyMessage())
	})
	hydrateCtx, hydrateCancel := context.WithTimeout(context.Background(), hydrationTimeout)
	if err := hydrator.Run(hydrateCtx); err != nil {
		logger.WithError(err).Fatal("hydrate ticket cache")
	}
	hydrateCancel()

	router := transporthttp.NewRouter(transporthttp.Services{
		Teams:     registrationSvc,
		Tickets:   concertSvc,
		Orders:    checkoutSvc,
		Catalog:   adminSvc,
		Admin:     adminSvc,
		Rebuilder: hydrator,
		Cache:     ticketCache,
		Gate:      gateServer,
	})
	handler := transporthttp.RequestLogger(transporthttp.CORS(cfg.CORSOrigins, router), logger)

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.WithField("port", cfg.Port).Info("api listening")

	srvErr := make(chan error, 1)
	go func() {
		srvErr <- server.ListenAndServe()
	}()

	stopCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	select {
	case err := <-srvErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Error("server error")
		}
	case <-stopCtx.Done():
		logger.Info("shutdown signal received, stopping server")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.WithError(err).Error("server shutdown error")
	}
	stopWorkers()
	tasks.Wait()
	logger.Info("server stopped")
}

func configureLogger(logger *logrus.Logger, cfg config.Config) {
	if cfg.LogFormat == "text" {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	} else {
		logger.SetFormatter(&logrus.JSONFormatter{})
	}
	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		logger.WithField("level", cfg.LogLevel).Warn("unknown log level, using info")
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)
}
