//go:build integration

package store

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/google/uuid"

	"github.com/MikeSquared-Agency/triage/internal/ticket"
	"github.com/MikeSquared-Agency/triage/internal/trust"
)

func setupTestStore(t *testing.T) *Store {
	t.Helper()
	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		t.Skip("DATABASE_URL not set, skipping integration test")
	}

	ctx := context.Background()
	s, err := New(ctx, dbURL)
	if err != nil {
		t.Fatalf("failed to connect: %v", err)
	}

	t.Cleanup(func() {
		s.Close()
	})
	return s
}

func TestIntegration_WriteAndReviewRun(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	run := sampleRun()
	run.Ticket.ID = "integration-test-" + uuid.New().String()[:8]

	id, err := s.WriteRun(ctx, run, "claude-haiku")
	if err != nil {
		t.Fatalf("WriteRun failed: %v", err)
	}
	if id == uuid.Nil {
		t.Fatal("expected non-nil run ID")
	}

	rec, err := s.GetRun(ctx, id)
	if err != nil {
		t.Fatalf("GetRun failed: %v", err)
	}
	if rec.TicketID != run.Ticket.ID {
		t.Errorf("expected ticket_id %q, got %q", run.Ticket.ID, rec.TicketID)
	}
	if rec.ReviewStatus != ReviewPending {
		t.Errorf("expected review_status 'pending', got %q", rec.ReviewStatus)
	}
	if rec.Run.Routing.Value.Team != "SRE" {
		t.Errorf("expected team SRE in stored run, got %q", rec.Run.Routing.Value.Team)
	}

	if err := s.UpdateReviewStatus(ctx, id, ReviewConfirmed, "U123"); err != nil {
		t.Fatalf("UpdateReviewStatus failed: %v", err)
	}

	rec, err = s.GetRun(ctx, id)
	if err != nil {
		t.Fatalf("GetRun after update failed: %v", err)
	}
	if rec.ReviewStatus != ReviewConfirmed {
		t.Errorf("expected review_status 'confirmed', got %q", rec.ReviewStatus)
	}
	if rec.ReviewedAt == nil {
		t.Error("expected reviewed_at to be set")
	}
}

func TestIntegration_GetRunNotFound(t *testing.T) {
	s := setupTestStore(t)

	_, err := s.GetRun(context.Background(), uuid.New())
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestIntegration_TeamTrust(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	team := "integration-team-" + uuid.New().String()[:8]

	if _, err := s.GetTeamTrust(ctx, team); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unseen team, got %v", err)
	}

	rec := trust.NewRecord(team).Apply(ticket.SeverityHigh, true)
	if err := s.UpsertTeamTrust(ctx, rec); err != nil {
		t.Fatalf("UpsertTeamTrust failed: %v", err)
	}
	rec = rec.Apply(ticket.SeverityHigh, false)
	if err := s.UpsertTeamTrust(ctx, rec); err != nil {
		t.Fatalf("second UpsertTeamTrust failed: %v", err)
	}

	got, err := s.GetTeamTrust(ctx, team)
	if err != nil {
		t.Fatalf("GetTeamTrust failed: %v", err)
	}
	if got.Reviewed != 2 || got.Confirmed != 1 {
		t.Errorf("expected 2 reviewed / 1 confirmed, got %+v", got)
	}
}
