package storage

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/mentorloop/backend/libs/db"
	"github.com/mentorloop/backend/services/mentorship-service/internal/model"
)

const bookingColumns = `id, student_id, COALESCE(student_email, ''), mentor_id, status, scheduled_at, duration_minutes,
	COALESCE(career_topic, ''), COALESCE(decline_reason, ''), COALESCE(rating, 0),
	requested_at, completed_at, cancelled_at, COALESCE(cancelled_by, '')`

type BookingRepository struct {
	pool *db.Pool
}

func NewBookingRepository(pool *db.Pool) *BookingRepository {
	return &BookingRepository{pool: pool}
}

func (r *BookingRepository) Begin(ctx context.Context) (pgx.Tx, error) {
	return r.pool.Begin(ctx)
}

func (r *BookingRepository) Create(ctx context.Context, tx pgx.Tx, b *model.Booking) (string, error) {
	var id string
	err := tx.QueryRow(ctx, `
		INSERT INTO bookings
			(student_id, student_email, mentor_id, status, scheduled_at, duration_minutes, career_topic)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id
	`, b.StudentID, b.StudentEmail, b.MentorID, string(b.Status), b.ScheduledAt, b.DurationMinutes, b.CareerTopic).Scan(&id)
	if err != nil {
		return "", err
	}
	return id, nil
}

func (r *BookingRepository) GetForUpdate(ctx context.Context, tx pgx.Tx, bookingID string) (model.Booking, error) {
	row := tx.QueryRow(ctx, `
		SELECT `+bookingColumns+`
		FROM bookings
		WHERE id = $1
		FOR UPDATE
	`, bookingID)
	return scanBooking(row)
}

// ExistsConfirmedAt is the write-time collision re-check: the slot list a
// student picked from can be stale, so every request/confirm re-validates
// the (mentor, occurrence) coordinate under the transaction.
func (r *BookingRepository) ExistsConfirmedAt(ctx context.Context, tx pgx.Tx, mentorID string, scheduledAt time.Time) (bool, error) {
	var exists bool
	err := tx.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM bookings
			WHERE mentor_id = $1 AND scheduled_at = $2 AND status = 'confirmed'
		)
	`, mentorID, scheduledAt).Scan(&exists)
	return exists, err
}

func (r *BookingRepository) SetConfirmed(ctx context.Context, tx pgx.Tx, bookingID string) error {
	_, err := tx.Exec(ctx, `
		UPDATE bookings
		SET status = 'confirmed', updated_at = now()
		WHERE id = $1
	`, bookingID)
	return err
}

func (r *BookingRepository) SetDeclined(ctx context.Context, tx pgx.Tx, bookingID, reason string) error {
	_, err := tx.Exec(ctx, `
		UPDATE bookings
		SET status = 'declined', decline_reason = $2, updated_at = now()
		WHERE id = $1
	`, bookingID, reason)
	return err
}

func (r *BookingRepository) SetCompleted(ctx context.Context, tx pgx.Tx, bookingID string) (time.Time, error) {
	var completedAt time.Time
	err := tx.QueryRow(ctx, `
		UPDATE bookings
		SET status = 'completed', completed_at = now(), updated_at = now()
		WHERE id = $1
		RETURNING completed_at
	`, bookingID).Scan(&completedAt)
	return completedAt, err
}

func (r *BookingRepository) SetCancelled(ctx context.Context, tx pgx.Tx, bookingID, cancelledBy string) (time.Time, error) {
	var cancelledAt time.Time
	err := tx.QueryRow(ctx, `
		UPDATE bookings
		SET status = 'cancelled', cancelled_at = now(), cancelled_by = $2, updated_at = now()
		WHERE id = $1
		RETURNING cancelled_at
	`, bookingID, cancelledBy).Scan(&cancelledAt)
	return cancelledAt, err
}

func (r *BookingRepository) SetRating(ctx context.Context, tx pgx.Tx, bookingID string, rating int) error {
	_, err := tx.Exec(ctx, `
		UPDATE bookings
		SET rating = $2, updated_at = now()
		WHERE id = $1
	`, bookingID, rating)
	return err
}

// ListConfirmedStarts returns the start timestamps of the mentor's
// confirmed bookings inside the window; the expansion engine uses them as
// its collision input.
func (r *BookingRepository) ListConfirmedStarts(ctx context.Context, mentorID string, windowStart, windowEnd time.Time) ([]time.Time, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT scheduled_at
		FROM bookings
		WHERE mentor_id = $1
			AND status = 'confirmed'
			AND scheduled_at >= $2
			AND scheduled_at <= $3
		ORDER BY scheduled_at
	`, mentorID, windowStart, windowEnd)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var starts []time.Time
	for rows.Next() {
		var t time.Time
		if err := rows.Scan(&t); err != nil {
			return nil, err
		}
		starts = append(starts, t)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return starts, nil
}

// ListForUser returns bookings where the user is either party, newest first.
func (r *BookingRepository) ListForUser(ctx context.Context, userID string, limit int) ([]model.Booking, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.pool.Query(ctx, `
		SELECT `+bookingColumns+`
		FROM bookings
		WHERE student_id = $1 OR mentor_id = $1
		ORDER BY scheduled_at DESC
		LIMIT $2
	`, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var bookings []model.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		bookings = append(bookings, b)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return bookings, nil
}

// IsConflict reports whether err is the partial unique index on confirmed
// bookings firing. That index is the database-level backstop for the
// one-confirmed-booking-per-slot invariant.
func IsConflict(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && (pgErr.Code == "23505" || pgErr.Code == "23P01")
}

func IsNotFound(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}

func scanBooking(row pgx.Row) (model.Booking, error) {
	var b model.Booking
	var status string
	var completedAt, cancelledAt *time.Time
	if err := row.Scan(
		&b.ID,
		&b.StudentID,
		&b.StudentEmail,
		&b.MentorID,
		&status,
		&b.ScheduledAt,
		&b.DurationMinutes,
		&b.CareerTopic,
		&b.DeclineReason,
		&b.Rating,
		&b.RequestedAt,
		&completedAt,
		&cancelledAt,
		&b.CancelledBy,
	); err != nil {
		return model.Booking{}, err
	}
	b.Status = model.Status(status)
	b.CompletedAt = completedAt
	b.CancelledAt = cancelledAt
	return b, nil
}
