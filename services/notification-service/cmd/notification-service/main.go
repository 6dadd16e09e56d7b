package main

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/mentorloop/backend/libs/config"
	"github.com/mentorloop/backend/libs/db"
	"github.com/mentorloop/backend/libs/httpx"
	"github.com/mentorloop/backend/libs/kafkax"
	otelx "github.com/mentorloop/backend/libs/otel"
	"github.com/mentorloop/backend/libs/runtime"
	"github.com/mentorloop/backend/services/notification-service/internal/consumer"
	"github.com/mentorloop/backend/services/notification-service/internal/email"
	"github.com/mentorloop/backend/services/notification-service/internal/handlers"
	"github.com/mentorloop/backend/services/notification-service/internal/inbox"
	"github.com/mentorloop/backend/services/notification-service/internal/message"
	"github.com/mentorloop/backend/services/notification-service/internal/storage"
	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// defaultTopics covers every booking lifecycle event plus due reminders.
const defaultTopics = "booking.requested.v1,booking.confirmed.v1,booking.declined.v1,booking.completed.v1,booking.cancelled.v1,session.reminder.due.v1"

func main() {
	service := config.String("SERVICE_NAME", "notification-service")
	port, err := config.Port("PORT", "8084")
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

	inboxRepo := inbox.NewRepository(pool)
	notificationsRepo := storage.NewRepository(pool)

	var emailSender email.Sender = email.NoopSender{}
	smtpHost := config.String("SMTP_HOST", "")
	if smtpHost != "" {
		emailSender = email.NewSMTPSender(
			smtpHost,
			config.String("SMTP_PORT", "1025"),
			config.String("SMTP_FROM", "no-reply@mentorloop.local"),
		)
	} else {
		logger.Warn("SMTP_HOST not set, email delivery disabled")
	}

	handle := func(ctx context.Context, msg kafka.Message) error {
		var evt message.BookingEvent
		if err := json.Unmarshal(msg.Value, &evt); err != nil {
			logger.Error("invalid event payload", "err", err, "topic", msg.Topic)
			return nil
		}
		if evt.BookingID == "" || evt.StudentID == "" || evt.MentorID == "" {
			logger.Error("missing event fields", "topic", msg.Topic)
			return nil
		}

		for _, note := range message.ForEvent(msg.Topic, evt) {
			emailStatus := "none"
			if note.Email && evt.StudentEmail != "" {
				if err := emailSender.Send(evt.StudentEmail, note.Title, note.Body); err != nil {
					emailStatus = "failed"
					logger.Error("email send failed", "err", err, "booking_id", evt.BookingID)
				} else {
					emailStatus = "sent"
				}
			}

			if _, err := notificationsRepo.Insert(ctx, storage.Notification{
				UserID:      note.UserID,
				BookingID:   evt.BookingID,
				Kind:        note.Kind,
				Title:       note.Title,
				Body:        note.Body,
				EmailStatus: emailStatus,
			}); err != nil {
				logger.Error("failed to persist notification", "err", err, "booking_id", evt.BookingID)
				return err
			}
		}

		logger.Info("event processed", "topic", msg.Topic, "booking_id", evt.BookingID)
		return nil
	}

	brokers := config.String("KAFKA_BROKERS", "")
	groupID := config.String("KAFKA_GROUP_ID", "notification-service")
	for _, topic := range strings.Split(config.String("KAFKA_CONSUME_TOPICS", defaultTopics), ",") {
		topic = strings.TrimSpace(topic)
		if topic == "" {
			continue
		}
		eventConsumer := consumer.New(logger, inboxRepo, consumer.Config{
			Brokers: brokers,
			GroupID: groupID,
			Topic:   topic,
		}, handle)
		go eventConsumer.Run(ctx)
	}

	notificationsHandler := handlers.NewNotificationsHandler(notificationsRepo, logger)

	mux := runtime.NewBaseMux(
		runtime.ReadyCheck{Name: "db", Check: db.ReadyCheck(pool)},
		runtime.ReadyCheck{Name: "kafka", Check: kafkax.ReadyCheck(brokers)},
	)
	mux.HandleFunc("/api/v1/notifications", notificationsHandler.List)
	mux.HandleFunc("/api/v1/notifications/read", notificationsHandler.MarkRead)
	mux.HandleFunc("/api/v1/notifications/read-all", notificationsHandler.MarkAllRead)
	mux.HandleFunc("/api/v1/notifications/delete", notificationsHandler.Delete)

	httpHandler := httpx.Chain(mux,
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
	)
	httpHandler = otelhttp.NewHandler(httpHandler, "notification")
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
