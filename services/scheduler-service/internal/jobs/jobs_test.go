package jobs

import (
	"testing"
	"time"
)

func TestPlanTimesDropsPastOffsets(t *testing.T) {
	scheduledAt := time.Date(2026, time.September, 7, 14, 0, 0, 0, time.UTC)
	now := time.Date(2026, time.September, 7, 2, 0, 0, 0, time.UTC) // 12h before

	plan := PlanTimes(scheduledAt, now, []time.Duration{24 * time.Hour, time.Hour})
	if len(plan) != 1 {
		t.Fatalf("got %d planned reminders, want 1", len(plan))
	}
	remindAt, ok := plan[time.Hour]
	if !ok {
		t.Fatal("1h offset missing from plan")
	}
	want := time.Date(2026, time.September, 7, 13, 0, 0, 0, time.UTC)
	if !remindAt.Equal(want) {
		t.Errorf("remindAt = %v, want %v", remindAt, want)
	}
}

func TestPlanTimesAllOffsetsInFuture(t *testing.T) {
	scheduledAt := time.Date(2026, time.September, 14, 10, 0, 0, 0, time.UTC)
	now := time.Date(2026, time.September, 1, 10, 0, 0, 0, time.UTC)

	plan := PlanTimes(scheduledAt, now, []time.Duration{24 * time.Hour, time.Hour})
	if len(plan) != 2 {
		t.Fatalf("got %d planned reminders, want 2", len(plan))
	}
}

func TestPlanTimesIgnoresNonPositiveOffsets(t *testing.T) {
	scheduledAt := time.Date(2026, time.September, 14, 10, 0, 0, 0, time.UTC)
	now := time.Date(2026, time.September, 1, 10, 0, 0, 0, time.UTC)

	plan := PlanTimes(scheduledAt, now, []time.Duration{0, -time.Hour})
	if len(plan) != 0 {
		t.Fatalf("got %d planned reminders, want 0", len(plan))
	}
}

func TestIdempotencyKeyStableAcrossReplays(t *testing.T) {
	a := IdempotencyKey("b-42", time.Hour)
	b := IdempotencyKey("b-42", time.Hour)
	if a != b {
		t.Fatalf("keys differ: %q vs %q", a, b)
	}
	if a == IdempotencyKey("b-42", 24*time.Hour) {
		t.Error("different offsets must produce different keys")
	}
	if a == IdempotencyKey("b-43", time.Hour) {
		t.Error("different bookings must produce different keys")
	}
}
