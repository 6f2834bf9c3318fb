package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/ridedesk/autobook/internal/calendar"
	"github.com/ridedesk/autobook/internal/config"
	"github.com/ridedesk/autobook/internal/database"
	"github.com/ridedesk/autobook/internal/events"
	"github.com/ridedesk/autobook/internal/handler"
	"github.com/ridedesk/autobook/internal/jobs"
	"github.com/ridedesk/autobook/internal/middleware"
	"github.com/ridedesk/autobook/internal/notify"
	"github.com/ridedesk/autobook/internal/redis"
	"github.com/ridedesk/autobook/internal/repository"
	"github.com/ridedesk/autobook/internal/service"
	"github.com/ridedesk/autobook/internal/sse"
)

type calendarClient interface {
	service.BusyCalendar
	service.EventCalendar
	Ping(ctx context.Context) error
}

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	setLogLevel(cfg.LogLevel)

	isProduction := os.Getenv("FLY_APP_NAME") != ""
	if err := cfg.Validate(isProduction); err != nil {
		log.Fatal().Err(err).Msg("invalid config")
	}
	loc := cfg.Location()

	db, err := database.Connect(context.Background(), cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()
	log.Info().Msg("database connected")

	if cfg.RunMigrations {
		ctx, cancel := context.WithTimeout(context.Background(), config.ServerShutdownTimeout)
		if err := db.Migrate(ctx); err != nil {
			log.Fatal().Err(err).Msg("failed to apply schema")
		}
		cancel()
		log.Info().Msg("schema applied")
	}

	redisClient, err := redis.NewClient(context.Background(), cfg.RedisURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to redis")
	}
	defer redisClient.Close()
	log.Info().Msg("redis connected")

	rideRepo := repository.NewRideRepository(db.DB)
	userRepo := repository.NewUserRepository(db.DB)
	convRepo := repository.NewConversationRepository(db.DB)

	var cal calendarClient = calendar.Disabled{}
	if cfg.CalendarEnabled() {
		g, err := calendar.NewGoogle(context.Background(), cfg.GoogleCredentialsFile, cfg.GoogleCalendarID, loc)
		if err != nil {
			log.Error().Err(err).Msg("failed to initialise google calendar, continuing without it")
		} else {
			cal = g
			log.Info().Str("calendarId", cfg.GoogleCalendarID).Msg("google calendar enabled")
		}
	} else {
		log.Warn().Msg("GOOGLE_CREDENTIALS_FILE not set: calendar conflicts and events disabled")
	}

	var notifier service.Notifier = notify.Log{}
	if cfg.TwilioEnabled() {
		notifier = notify.NewTwilio(cfg.TwilioAccountSID, cfg.TwilioAuthToken, cfg.TwilioPhoneNumber, cfg.MessagingChannel)
		log.Info().Str("channel", cfg.MessagingChannel).Msg("twilio messaging enabled")
	} else {
		log.Warn().Msg("twilio not configured: outbound messages are only logged")
	}

	broker := sse.NewBroker(redisClient)
	defer broker.Close()

	publishers := events.Multi{events.NewBroker(broker)}
	if len(cfg.KafkaBrokers) > 0 {
		kafkaPublisher := events.NewKafka(cfg.KafkaBrokers, cfg.KafkaTopic)
		defer kafkaPublisher.Close()
		publishers = append(publishers, kafkaPublisher)
		log.Info().Strs("brokers", cfg.KafkaBrokers).Str("topic", cfg.KafkaTopic).Msg("kafka publishing enabled")
	}

	locker := service.NewRedisLocker(redis.NewLocker(redisClient, config.LockWaitTime))
	rateLimiter := service.NewRateLimiter(redisClient.Client)

	detector := service.NewConflictDetector(cal, rideRepo)
	rideService := service.NewRideService(detector, rideRepo, userRepo, cal, notifier, publishers, locker, loc)
	convService := service.NewConversationService(convRepo, rideService, notifier, locker, cfg.ConversationTTL(), loc)
	statsService := service.NewStatsService(rideRepo, userRepo, convRepo, cfg.ConversationTTL())

	adminAuthMiddleware := middleware.NewAdminAuthMiddleware(cfg.AdminAPIToken)
	twilioSignatureMiddleware := middleware.NewTwilioSignatureMiddleware(cfg.TwilioAuthToken, cfg.PublicBaseURL)
	bookingRateLimit := middleware.NewRateLimitMiddleware(
		rateLimiter, cfg.BookingRateLimitPerMin, time.Minute, "booking", middleware.ByClientIP,
	)
	webhookRateLimit := middleware.NewRateLimitMiddleware(
		rateLimiter, cfg.WebhookRateLimitPerMin, time.Minute, "webhook", middleware.ByFormContact,
	)
	bodyLimitMiddleware := middleware.NewBodyLimitMiddleware(0)
	securityHeadersMiddleware := middleware.NewSecurityHeadersMiddleware(isProduction)

	rideHandler := handler.NewRideHandler(rideService, loc)
	whatsAppHandler := handler.NewWhatsAppHandler(convService, notifier)
	conversationsHandler := handler.NewConversationsHandler(convService)
	eventsHandler := handler.NewEventsHandler(broker)

	mode := "development"
	if isProduction {
		mode = "production"
	}
	healthHandler := &handler.HealthHandler{
		Database:     db.Ping,
		Redis:        redisClient.HealthCheck,
		Calendar:     cal.Ping,
		Stats:        statsService,
		Mode:         mode,
		TwilioMocked: !cfg.TwilioEnabled(),
	}

	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestLogger)
	r.Use(chimiddleware.Recoverer)
	r.Use(securityHeadersMiddleware.Handler)
	r.Use(bodyLimitMiddleware.Handler)

	r.Get("/health", healthHandler.ServeHTTP)
	r.Handle("/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		r.Use(chimiddleware.Timeout(config.ServerRequestTimeout))

		r.Route("/ride", func(r chi.Router) {
			r.With(bookingRateLimit.Handler).Post("/request", rideHandler.Request)
			r.Get("/status/{rideId}", rideHandler.Status)
		})

		r.Route("/webhook", func(r chi.Router) {
			r.Use(twilioSignatureMiddleware.Handler)
			r.Use(webhookRateLimit.Handler)
			r.Post("/whatsapp", whatsAppHandler.Webhook)
		})

		r.Route("/conversations", func(r chi.Router) {
			r.Use(adminAuthMiddleware.Handler)
			r.Get("/active", conversationsHandler.Active)
			r.Post("/reset", conversationsHandler.Reset)
		})
	})

	r.Route("/v1/rides", func(r chi.Router) {
		r.Use(adminAuthMiddleware.Handler)
		r.Get("/events", eventsHandler.ServeHTTP)
	})

	cleanupJob := jobs.NewCleanupJob(convRepo, cfg.ConversationTTL(), config.CleanupJobInterval)
	cleanupJob.Start()
	defer cleanupJob.Stop()

	server := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      r,
		ReadTimeout:  config.ServerReadTimeout,
		WriteTimeout: 0,
		IdleTimeout:  config.ServerIdleTimeout,
	}

	go func() {
		log.Info().Str("addr", cfg.Addr()).Str("mode", mode).Str("timezone", loc.String()).Msg("starting server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("shutting down server")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), config.ServerShutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server stopped")
}

func setLogLevel(level string) {
	switch level {
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "info":
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	case "warn":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
}
