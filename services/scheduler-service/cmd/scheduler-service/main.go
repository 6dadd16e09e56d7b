package main

import (
	"context"
	"encoding/json"
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
	"github.com/mentorloop/backend/services/scheduler-service/internal/consumer"
	"github.com/mentorloop/backend/services/scheduler-service/internal/inbox"
	"github.com/mentorloop/backend/services/scheduler-service/internal/jobs"
	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

type bookingEvent struct {
	BookingID    string `json:"booking_id"`
	StudentID    string `json:"student_id"`
	StudentEmail string `json:"student_email"`
	MentorID     string `json:"mentor_id"`
	ScheduledAt  string `json:"scheduled_at"`
}

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
		offsets = []time.Duration{24 * time.Hour, time.Hour}
	}
	return offsets
}

func main() {
	service := config.String("SERVICE_NAME", "scheduler-service")
	port, err := config.Port("PORT", "8086")
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

	jobsRepo := jobs.NewRepository()
	inboxRepo := inbox.NewRepository(pool)
	outboxRepo := outboxx.NewRepository(pool)
	offsets := parseReminderOffsets(config.String("REMINDER_OFFSETS_MINUTES", "1440,60"), logger)

	outboxPublisher := outboxx.NewPublisher(pool, outboxRepo, logger, outboxx.PublisherConfig{
		Brokers:   config.String("KAFKA_BROKERS", ""),
		PollEvery: 2 * time.Second,
		BatchSize: 50,
	})
	go outboxPublisher.Run(ctx)

	worker := jobs.NewWorker(pool, jobsRepo, outboxRepo, logger, jobs.WorkerConfig{
		Interval:  time.Duration(config.Int("WORKER_INTERVAL_SECONDS", 2)) * time.Second,
		BatchSize: config.Int("WORKER_BATCH_SIZE", 50),
		Backoff:   config.Minutes("WORKER_BACKOFF_MINUTES", time.Minute),
	})
	go worker.Run(ctx)

	onConfirmed := func(ctx context.Context, msg kafka.Message) error {
		var evt bookingEvent
		if err := json.Unmarshal(msg.Value, &evt); err != nil {
			logger.Error("invalid booking event", "err", err)
			return nil
		}
		scheduledAt, err := time.Parse(time.RFC3339, evt.ScheduledAt)
		if err != nil || evt.BookingID == "" {
			logger.Error("missing booking event fields", "err", err)
			return nil
		}

		tx, err := pool.Begin(ctx)
		if err != nil {
			return err
		}
		defer func() { _ = tx.Rollback(ctx) }()

		for offset, remindAt := range jobs.PlanTimes(scheduledAt, time.Now().UTC(), offsets) {
			if err := jobsRepo.Insert(ctx, tx, jobs.Job{
				IdempotencyKey: jobs.IdempotencyKey(evt.BookingID, offset),
				BookingID:      evt.BookingID,
				StudentID:      evt.StudentID,
				StudentEmail:   evt.StudentEmail,
				MentorID:       evt.MentorID,
				ScheduledAt:    scheduledAt,
				RemindAt:       remindAt,
			}); err != nil {
				return err
			}
		}
		if err := tx.Commit(ctx); err != nil {
			return err
		}
		logger.Info("reminders scheduled", "booking_id", evt.BookingID)
		return nil
	}

	onCancelled := func(ctx context.Context, msg kafka.Message) error {
		var evt bookingEvent
		if err := json.Unmarshal(msg.Value, &evt); err != nil || evt.BookingID == "" {
			logger.Error("invalid booking event", "err", err)
			return nil
		}

		tx, err := pool.Begin(ctx)
		if err != nil {
			return err
		}
		defer func() { _ = tx.Rollback(ctx) }()

		cancelled, err := jobsRepo.CancelForBooking(ctx, tx, evt.BookingID)
		if err != nil {
			return err
		}
		if err := tx.Commit(ctx); err != nil {
			return err
		}
		logger.Info("reminders cancelled", "booking_id", evt.BookingID, "count", cancelled)
		return nil
	}

	brokers := config.String("KAFKA_BROKERS", "")
	groupID := config.String("KAFKA_GROUP_ID", "scheduler-service")
	startConsumer := func(topic string, handler consumer.Handler) {
		if strings.TrimSpace(topic) == "" {
			return
		}
		c := consumer.New(logger, inboxRepo, consumer.Config{
			Brokers: brokers,
			GroupID: groupID,
			Topic:   topic,
		}, handler)
		go c.Run(ctx)
	}
	startConsumer(config.String("KAFKA_CONFIRMED_TOPIC", "booking.confirmed.v1"), onConfirmed)
	startConsumer(config.String("KAFKA_CANCELLED_TOPIC", "booking.cancelled.v1"), onCancelled)

	mux := runtime.NewBaseMux(
		runtime.ReadyCheck{Name: "db", Check: db.ReadyCheck(pool)},
		runtime.ReadyCheck{Name: "kafka", Check: kafkax.ReadyCheck(brokers)},
	)
	httpHandler := httpx.Chain(mux,
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
	)
	httpHandler = otelhttp.NewHandler(httpHandler, "scheduler")
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
