//go:build protogen

package policy

import (
	"context"
	"log/slog"
	"time"

	"github.com/mentorloop/backend/libs/grpcx"
	profilev1 "github.com/mentorloop/backend/protos/gen/profile/v1"
)

type grpcProvider struct {
	client   profilev1.ProfileServiceClient
	fallback SessionPolicy
}

// NewProfilePolicyProvider looks up per-mentor session policy from the
// profile service when an address is configured, falling back to the
// static defaults when it is not reachable.
func NewProfilePolicyProvider(logger *slog.Logger, fallback SessionPolicy, addr string) (Provider, error) {
	if addr == "" {
		return NewStaticProvider(fallback), nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, err := grpcx.Dial(ctx, addr, grpcx.DialOptions{Timeout: 5 * time.Second})
	if err != nil {
		logger.Warn("grpc policy provider unavailable, using fallback", "err", err)
		return NewStaticProvider(fallback), nil
	}

	logger.Info("grpc policy provider enabled", "addr", addr)
	return &grpcProvider{client: profilev1.NewProfileServiceClient(conn), fallback: fallback}, nil
}

func (p *grpcProvider) SessionPolicy(ctx context.Context, mentorID string) (SessionPolicy, error) {
	resp, err := p.client.GetMentorProfile(ctx, &profilev1.MentorProfileRequest{MentorId: mentorID})
	if err != nil {
		return SessionPolicy{}, err
	}

	policy := p.fallback
	if mins := int(resp.GetSessionDurationMinutes()); mins > 0 {
		policy.DurationMinutes = mins
	}
	var offsets []time.Duration
	for _, mins := range resp.GetReminderOffsetsMinutes() {
		if mins <= 0 {
			continue
		}
		offsets = append(offsets, time.Duration(mins)*time.Minute)
	}
	if len(offsets) > 0 {
		policy.ReminderOffsets = offsets
	}
	return policy, nil
}
