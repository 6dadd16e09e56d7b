package handlers

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

// The collection path serves both reads and writes; GET has to reach Get
// rather than bounce off Set's method check with a 405.
func TestAvailabilityHandleDispatchesByMethod(t *testing.T) {
	h := NewAvailabilityHandler(nil, discardLogger())

	get := httptest.NewRequest(http.MethodGet, "/api/v1/mentors/availability", nil)
	rec := httptest.NewRecorder()
	h.Handle(rec, get)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("GET status = %d, want %d", rec.Code, http.StatusForbidden)
	}

	put := httptest.NewRequest(http.MethodPut, "/api/v1/mentors/availability", strings.NewReader(`{}`))
	rec = httptest.NewRecorder()
	h.Handle(rec, put)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("PUT status = %d, want %d", rec.Code, http.StatusForbidden)
	}
}
