package storage

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/mentorloop/backend/libs/db"
	"github.com/mentorloop/backend/services/mentorship-service/internal/availability"
)

type AvailabilityRepository struct {
	pool *db.Pool
}

func NewAvailabilityRepository(pool *db.Pool) *AvailabilityRepository {
	return &AvailabilityRepository{pool: pool}
}

func (r *AvailabilityRepository) Begin(ctx context.Context) (pgx.Tx, error) {
	return r.pool.Begin(ctx)
}

// ReplaceAll implements the weekly template save: every existing rule for
// the mentor is dropped and the new set inserted in the same transaction,
// so a slot query sees either the old template or the new one, never a mix.
func (r *AvailabilityRepository) ReplaceAll(ctx context.Context, tx pgx.Tx, mentorID string, rules []availability.Rule) ([]string, error) {
	_, err := tx.Exec(ctx, `
		DELETE FROM availability_rules
		WHERE mentor_id = $1
	`, mentorID)
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(rules))
	for _, rule := range rules {
		id := uuid.NewString()
		_, err := tx.Exec(ctx, `
			INSERT INTO availability_rules
				(id, mentor_id, weekday, start_time, end_time, max_bookings, active, timezone)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		`, id, mentorID, int(rule.Weekday), rule.Start, rule.End, rule.MaxBookings, rule.Active, rule.Timezone)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// ListActive returns the mentor's active rules, the only ones the slot
// expansion engine consumes.
func (r *AvailabilityRepository) ListActive(ctx context.Context, mentorID string) ([]availability.Rule, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, mentor_id, weekday, start_time, end_time, max_bookings, active, timezone
		FROM availability_rules
		WHERE mentor_id = $1 AND active
		ORDER BY weekday, start_time
	`, mentorID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanRules(rows)
}

// ListAll returns every rule for the mentor, including inactive ones, for
// the mentor's own template view.
func (r *AvailabilityRepository) ListAll(ctx context.Context, mentorID string) ([]availability.Rule, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, mentor_id, weekday, start_time, end_time, max_bookings, active, timezone
		FROM availability_rules
		WHERE mentor_id = $1
		ORDER BY weekday, start_time
	`, mentorID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanRules(rows)
}

func (r *AvailabilityRepository) GetRuleForUpdate(ctx context.Context, tx pgx.Tx, ruleID string) (availability.Rule, error) {
	var rule availability.Rule
	var weekday int
	err := tx.QueryRow(ctx, `
		SELECT id, mentor_id, weekday, start_time, end_time, max_bookings, active, timezone
		FROM availability_rules
		WHERE id = $1
		FOR UPDATE
	`, ruleID).Scan(
		&rule.ID,
		&rule.MentorID,
		&weekday,
		&rule.Start,
		&rule.End,
		&rule.MaxBookings,
		&rule.Active,
		&rule.Timezone,
	)
	if err != nil {
		return availability.Rule{}, err
	}
	rule.Weekday = time.Weekday(weekday)
	return rule, nil
}

func (r *AvailabilityRepository) SetActive(ctx context.Context, tx pgx.Tx, ruleID string, active bool) error {
	_, err := tx.Exec(ctx, `
		UPDATE availability_rules
		SET active = $2, updated_at = now()
		WHERE id = $1
	`, ruleID, active)
	return err
}

func (r *AvailabilityRepository) Delete(ctx context.Context, tx pgx.Tx, ruleID string) error {
	_, err := tx.Exec(ctx, `
		DELETE FROM availability_rules
		WHERE id = $1
	`, ruleID)
	return err
}

func scanRules(rows pgx.Rows) ([]availability.Rule, error) {
	var rules []availability.Rule
	for rows.Next() {
		var rule availability.Rule
		var weekday int
		if err := rows.Scan(
			&rule.ID,
			&rule.MentorID,
			&weekday,
			&rule.Start,
			&rule.End,
			&rule.MaxBookings,
			&rule.Active,
			&rule.Timezone,
		); err != nil {
			return nil, err
		}
		rule.Weekday = time.Weekday(weekday)
		rules = append(rules, rule)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return rules, nil
}
