package handlers

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/mentorloop/backend/services/mentorship-service/internal/model"
)

// Caller is the authenticated identity forwarded by the gateway after it
// has verified the identity provider's token. The service never sees raw
// tokens, only these headers.
type Caller struct {
	ID    string
	Email string
	Role  model.Role
}

const (
	headerUserID = "X-User-Id"
	headerEmail  = "X-User-Email"
	headerRole   = "X-Role"
)

func callerFrom(r *http.Request) (Caller, error) {
	id := strings.TrimSpace(r.Header.Get(headerUserID))
	rawRole := strings.TrimSpace(r.Header.Get(headerRole))
	if id == "" || rawRole == "" {
		return Caller{}, fmt.Errorf("%w: missing identity headers", model.ErrForbidden)
	}
	role, err := model.ParseRole(rawRole)
	if err != nil {
		return Caller{}, fmt.Errorf("%w: unrecognized role", model.ErrForbidden)
	}
	return Caller{
		ID:    id,
		Email: strings.TrimSpace(r.Header.Get(headerEmail)),
		Role:  role,
	}, nil
}
