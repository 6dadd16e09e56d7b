package policy

import (
	"context"
	"time"
)

// SessionPolicy carries the per-mentor knobs the booking flow needs:
// how long a session runs and when reminder emails should fire.
type SessionPolicy struct {
	DurationMinutes int
	ReminderOffsets []time.Duration
}

type Provider interface {
	SessionPolicy(ctx context.Context, mentorID string) (SessionPolicy, error)
}

type staticProvider struct {
	policy SessionPolicy
}

func NewStaticProvider(policy SessionPolicy) Provider {
	return &staticProvider{policy: policy}
}

func (p *staticProvider) SessionPolicy(_ context.Context, _ string) (SessionPolicy, error) {
	return p.policy, nil
}
