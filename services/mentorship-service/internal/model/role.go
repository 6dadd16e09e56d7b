package model

import "fmt"

// Role is the caller's platform role as asserted by the identity provider.
// Kept as a closed enum so capability checks are explicit at every
// operation boundary instead of comparing loose strings.
type Role int

const (
	RoleUnknown Role = iota
	RoleStudent
	RoleMentor
	RoleAdmin
)

func ParseRole(raw string) (Role, error) {
	switch raw {
	case "student":
		return RoleStudent, nil
	case "mentor":
		return RoleMentor, nil
	case "admin":
		return RoleAdmin, nil
	default:
		return RoleUnknown, fmt.Errorf("%w: unknown role %q", ErrValidation, raw)
	}
}

func (r Role) String() string {
	switch r {
	case RoleStudent:
		return "student"
	case RoleMentor:
		return "mentor"
	case RoleAdmin:
		return "admin"
	default:
		return "unknown"
	}
}
