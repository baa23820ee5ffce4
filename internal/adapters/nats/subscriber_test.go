package natsadapter

import (
	"errors"
	"fmt"
	"testing"

	"github.com/samirrijal/rescuelink/internal/core/domain"
)

func TestDecodeLocationReport(t *testing.T) {
	u, err := decodeLocationReport("emergency.ambulance.report.amb-1",
		[]byte(`{"location":{"latitude":27.7,"longitude":85.3}}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if u.AmbulanceID != "amb-1" {
		t.Errorf("expected id from subject, got %q", u.AmbulanceID)
	}
	if u.Location.Lat != 27.7 || u.Location.Lon != 85.3 {
		t.Errorf("unexpected location %+v", u.Location)
	}

	u, err = decodeLocationReport("emergency.ambulance.report.amb-1",
		[]byte(`{"ambulanceId":"amb-2","location":{"latitude":1,"longitude":2}}`))
	if err != nil || u.AmbulanceID != "amb-2" {
		t.Errorf("expected payload id to win, got %+v %v", u, err)
	}

	if _, err := decodeLocationReport("emergency.ambulance.report.x", []byte(`{`)); err == nil {
		t.Error("expected error for malformed payload")
	}
	if _, err := decodeLocationReport("other.subject", []byte(`{}`)); err == nil {
		t.Error("expected error when no id can be derived")
	}
}

func TestSubjects(t *testing.T) {
	if got := CandidateSubject("d1"); got != "emergency.dispatch.d1.candidate" {
		t.Errorf("unexpected subject %s", got)
	}
	if got := CompletedSubject("d1"); got != "emergency.dispatch.d1.completed" {
		t.Errorf("unexpected subject %s", got)
	}
	if got := LocationSubject("a1"); got != "emergency.ambulance.location.a1" {
		t.Errorf("unexpected subject %s", got)
	}
	if got := LocationReportSubject("a1"); got != "emergency.ambulance.report.a1" {
		t.Errorf("unexpected subject %s", got)
	}
}

func TestRetryable(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{errors.New("connection reset"), true},
		{&domain.DatastoreError{Op: "update location", Err: errors.New("timeout")}, true},
		{fmt.Errorf("update: %w", domain.ErrNotFound), false},
		{domain.NewValidationError("latitude", "must be between -90 and 90"), false},
	}
	for _, tt := range tests {
		if got := retryable(tt.err); got != tt.want {
			t.Errorf("retryable(%v) = %v, want %v", tt.err, got, tt.want)
		}
	}
}
