package model

import "testing"

func TestCanTransition(t *testing.T) {
	allowed := []struct{ from, to Status }{
		{StatusRequested, StatusConfirmed},
		{StatusRequested, StatusDeclined},
		{StatusConfirmed, StatusCompleted},
		{StatusConfirmed, StatusCancelled},
	}
	for _, tc := range allowed {
		if !CanTransition(tc.from, tc.to) {
			t.Errorf("expected %s -> %s to be allowed", tc.from, tc.to)
		}
	}

	all := []Status{StatusRequested, StatusConfirmed, StatusDeclined, StatusCompleted, StatusCancelled}
	isAllowed := func(from, to Status) bool {
		for _, tc := range allowed {
			if tc.from == from && tc.to == to {
				return true
			}
		}
		return false
	}
	for _, from := range all {
		for _, to := range all {
			if isAllowed(from, to) {
				continue
			}
			if CanTransition(from, to) {
				t.Errorf("expected %s -> %s to be rejected", from, to)
			}
		}
	}
}

func TestTerminalStatesHaveNoSuccessors(t *testing.T) {
	for _, s := range []Status{StatusDeclined, StatusCompleted, StatusCancelled} {
		if next := NextStates(s); len(next) != 0 {
			t.Errorf("expected %s to be terminal, got successors %v", s, next)
		}
	}
}

func TestParseRole(t *testing.T) {
	for raw, want := range map[string]Role{
		"student": RoleStudent,
		"mentor":  RoleMentor,
		"admin":   RoleAdmin,
	} {
		got, err := ParseRole(raw)
		if err != nil {
			t.Fatalf("ParseRole(%q) failed: %v", raw, err)
		}
		if got != want {
			t.Fatalf("ParseRole(%q) = %v, want %v", raw, got, want)
		}
	}
	if _, err := ParseRole("owner"); err == nil {
		t.Fatal("expected unknown role to be rejected")
	}
}
