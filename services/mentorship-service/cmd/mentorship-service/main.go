package main

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/mentorloop/backend/libs/config"
	"github.com/mentorloop/backend/libs/db"
	"github.com/mentorloop/backend/libs/httpx"
	"github.com/mentorloop/backend/libs/kafkax"
	otelx "github.com/mentorloop/backend/libs/otel"
	"github.com/mentorloop/backend/libs/outboxx"
	"github.com/mentorloop/backend/libs/runtime"
	"github.com/mentorloop/backend/services/mentorship-service/internal/handlers"
	"github.com/mentorloop/backend/services/mentorship-service/internal/policy"
	"github.com/mentorloop/backend/services/mentorship-service/internal/storage"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

func parseReminderOffsets(raw string, logger *slog.Logger) []time.Duration {
	var offsets []time.Duration
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		mins, err := strconv.Atoi(part)
		if err != nil || mins <= 0 {
			logger.Warn("invalid reminder offset", "value", part)
			continue
		}
		offsets = append(offsets, time.Duration(mins)*time.Minute)
	}
	if len(offsets) == 0 {
		offsets = []time.Duration{24 * time.Hour}
	}
	return offsets
}

func main() {
	service := config.String("SERVICE_NAME", "mentorship-service")
	port, err := config.Port("PORT", "8082")
	if err != nil {
		panic(err)
	}
	logger := runtime.NewLogger(service)

	ctx, stop := runtime.SignalContext()
	defer stop()

	otelShutdown, err := otelx.Setup(ctx, otelx.ConfigFromEnv(service))
	if err != nil {
		logger.Error("otel setup failed", "err", err)
	} else {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = otelShutdown(shutdownCtx)
		}()
	}

	dbURL, err := config.RequiredString("DATABASE_URL")
	if err != nil {
		panic(err)
	}

	pool, err := db.Open(ctx, dbURL)
	if err != nil {
		logger.Error("db connection failed", "err", err)
		panic(err)
	}
	defer pool.Close()

	availabilityRepo := storage.NewAvailabilityRepository(pool)
	bookingRepo := storage.NewBookingRepository(pool)
	outboxRepo := outboxx.NewRepository(pool)

	fallbackPolicy := policy.SessionPolicy{
		DurationMinutes: config.Int("SESSION_DURATION_MINUTES", 60),
		ReminderOffsets: parseReminderOffsets(config.String("REMINDER_OFFSETS_MINUTES", "1440,60"), logger),
	}
	policyProvider, err := policy.NewProfilePolicyProvider(logger, fallbackPolicy, config.String("PROFILE_GRPC_ADDR", ""))
	if err != nil {
		logger.Error("policy provider init failed; using static defaults", "err", err)
		policyProvider = policy.NewStaticProvider(fallbackPolicy)
	}

	outboxPublisher := outboxx.NewPublisher(pool, outboxRepo, logger, outboxx.PublisherConfig{
		Brokers:   config.String("KAFKA_BROKERS", ""),
		PollEvery: 2 * time.Second,
		BatchSize: 50,
	})
	go outboxPublisher.Run(ctx)

	availabilityHandler := handlers.NewAvailabilityHandler(availabilityRepo, logger)
	slotsHandler := handlers.NewSlotsHandler(availabilityRepo, bookingRepo, logger, nil)
	bookingHandler := handlers.NewBookingHandler(bookingRepo, outboxRepo, policyProvider, logger, nil)

	mux := runtime.NewBaseMux(
		runtime.ReadyCheck{Name: "db", Check: db.ReadyCheck(pool)},
		runtime.ReadyCheck{Name: "kafka", Check: kafkax.ReadyCheck(config.String("KAFKA_BROKERS", ""))},
	)
	mux.HandleFunc("/api/v1/public/slots", slotsHandler.List)
	mux.HandleFunc("/api/v1/mentors/availability", availabilityHandler.Handle)
	mux.HandleFunc("/api/v1/mentors/availability/list", availabilityHandler.Get)
	mux.HandleFunc("/api/v1/mentors/availability/toggle", availabilityHandler.Toggle)
	mux.HandleFunc("/api/v1/mentors/availability/delete", availabilityHandler.Delete)
	mux.HandleFunc("/api/v1/bookings", bookingHandler.Handle)
	mux.HandleFunc("/api/v1/bookings/list", bookingHandler.List)
	mux.HandleFunc("/api/v1/bookings/confirm", bookingHandler.Confirm)
	mux.HandleFunc("/api/v1/bookings/decline", bookingHandler.Decline)
	mux.HandleFunc("/api/v1/bookings/complete", bookingHandler.Complete)
	mux.HandleFunc("/api/v1/bookings/cancel", bookingHandler.Cancel)
	mux.HandleFunc("/api/v1/bookings/rate", bookingHandler.Rate)

	httpHandler := httpx.Chain(mux,
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
		httpx.WithBodyLimit(1<<20),
	)
	httpHandler = otelhttp.NewHandler(httpHandler, "mentorship")
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           httpHandler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("http server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server error", "err", err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "err", err)
	}
	logger.Info("http server stopped")
}
