package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/MikeSquared-Agency/triage/internal/triage"
	"github.com/MikeSquared-Agency/triage/internal/trust"
)

// ErrNotFound is returned when a run id or team is unknown.
var ErrNotFound = errors.New("not found")

const (
	ReviewPending   = "pending"
	ReviewConfirmed = "confirmed"
	ReviewRejected  = "rejected"
	ReviewSkipped   = "skipped"
)

// RunRecord is a persisted triage run plus its review state.
type RunRecord struct {
	ID           uuid.UUID   `json:"id"`
	TicketID     string      `json:"ticket_id"`
	Team         string      `json:"team"`
	Priority     string      `json:"priority"`
	Model        string      `json:"model"`
	Run          *triage.Run `json:"run"`
	ReviewStatus string      `json:"review_status"`
	ReviewedBy   string      `json:"reviewed_by,omitempty"`
	CreatedAt    time.Time   `json:"created_at"`
	ReviewedAt   *time.Time  `json:"reviewed_at,omitempty"`
}

// Recorder persists triage runs for audit and review, and the per-team
// routing trust derived from those reviews.
type Recorder interface {
	WriteRun(ctx context.Context, run *triage.Run, model string) (uuid.UUID, error)
	GetRun(ctx context.Context, id uuid.UUID) (*RunRecord, error)
	UpdateReviewStatus(ctx context.Context, id uuid.UUID, status, reviewer string) error

	// GetTeamTrust returns ErrNotFound for a team that was never reviewed.
	GetTeamTrust(ctx context.Context, team string) (*trust.Record, error)
	UpsertTeamTrust(ctx context.Context, rec trust.Record) error
	ListTeamTrust(ctx context.Context) ([]trust.Record, error)

	Close()
}

// Open picks a backend from the URL scheme: postgres:// and postgresql://
// use Postgres, sqlite:// and file: use an embedded SQLite database.
func Open(ctx context.Context, databaseURL string) (Recorder, error) {
	switch {
	case strings.HasPrefix(databaseURL, "postgres://"), strings.HasPrefix(databaseURL, "postgresql://"):
		return New(ctx, databaseURL)
	case strings.HasPrefix(databaseURL, "sqlite://"):
		return NewSQLiteStore(strings.TrimPrefix(databaseURL, "sqlite://"))
	case strings.HasPrefix(databaseURL, "file:"):
		return NewSQLiteStore(databaseURL)
	default:
		return nil, fmt.Errorf("unsupported database url scheme: %q", schemeOf(databaseURL))
	}
}

func schemeOf(u string) string {
	if i := strings.Index(u, ":"); i > 0 {
		return u[:i]
	}
	return u
}

func validReview(status string) bool {
	switch status {
	case ReviewPending, ReviewConfirmed, ReviewRejected, ReviewSkipped:
		return true
	}
	return false
}
