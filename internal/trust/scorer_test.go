package trust

import (
	"math"
	"sync"
	"testing"

	"github.com/MikeSquared-Agency/triage/internal/ticket"
)

func TestSignalWeight(t *testing.T) {
	tests := []struct {
		name     string
		severity ticket.Severity
		want     float64
	}{
		{"low", ticket.SeverityLow, 0.01},
		{"medium", ticket.SeverityMedium, 0.03},
		{"high", ticket.SeverityHigh, 0.05},
		{"unknown defaults to low", ticket.Severity("banana"), 0.01},
		{"empty defaults to low", "", 0.01},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SignalWeight(tt.severity)
			if got != tt.want {
				t.Errorf("SignalWeight(%q) = %f, want %f", tt.severity, got, tt.want)
			}
		})
	}
}

func TestUpdateScore(t *testing.T) {
	tests := []struct {
		name     string
		current  float64
		severity ticket.Severity
		correct  bool
		want     float64
	}{
		{"low correct from zero", 0.0, ticket.SeverityLow, true, 0.01},
		{"high correct from 0.5", 0.5, ticket.SeverityHigh, true, 0.55},
		{"clamped at 1.0", 0.99, ticket.SeverityMedium, true, 1.0},
		{"low wrong from 0.5", 0.5, ticket.SeverityLow, false, 0.48},
		{"high wrong from 0.5", 0.5, ticket.SeverityHigh, false, 0.40},
		{"clamped at 0.0", 0.05, ticket.SeverityHigh, false, 0.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := UpdateScore(tt.current, tt.severity, tt.correct)
			if math.Abs(got-tt.want) > 0.001 {
				t.Errorf("UpdateScore(%f, %q, %v) = %f, want %f", tt.current, tt.severity, tt.correct, got, tt.want)
			}
		})
	}
}

func TestBoard_Observe(t *testing.T) {
	b := NewBoard()

	if rec, ok := b.Get("SRE"); ok || rec.Score != InitialScore {
		t.Errorf("expected unseen team at initial score, got %+v ok=%v", rec, ok)
	}

	b.Observe("SRE", ticket.SeverityHigh, true)
	rec := b.Observe("SRE", ticket.SeverityHigh, false)

	if rec.Reviewed != 2 || rec.Confirmed != 1 {
		t.Errorf("expected 2 reviewed / 1 confirmed, got %+v", rec)
	}
	if math.Abs(rec.Score-0.45) > 0.001 {
		t.Errorf("expected score 0.45, got %f", rec.Score)
	}

	other, ok := b.Get("IAM")
	if ok || other.Reviewed != 0 {
		t.Errorf("expected IAM untouched, got %+v", other)
	}
}

func TestRecord_Apply(t *testing.T) {
	start := NewRecord("IAM")

	next := start.Apply(ticket.SeverityMedium, true)
	if next.Reviewed != 1 || next.Confirmed != 1 || math.Abs(next.Score-0.53) > 0.001 {
		t.Errorf("unexpected record after confirmation: %+v", next)
	}
	if start.Reviewed != 0 || start.Score != InitialScore {
		t.Errorf("Apply must not modify the receiver, got %+v", start)
	}

	next = next.Apply(ticket.SeverityMedium, false)
	if next.Reviewed != 2 || next.Confirmed != 1 || math.Abs(next.Score-0.47) > 0.001 {
		t.Errorf("unexpected record after rejection: %+v", next)
	}
}

func TestBoard_Concurrent(t *testing.T) {
	b := NewBoard()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			b.Observe("Finance Ops", ticket.SeverityLow, true)
		}()
	}
	wg.Wait()

	rec, _ := b.Get("Finance Ops")
	if rec.Reviewed != 50 {
		t.Errorf("expected 50 reviews, got %d", rec.Reviewed)
	}
}
