package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/MikeSquared-Agency/triage/internal/triage"
)

// Store is the Postgres Recorder.
type Store struct {
	pool *pgxpool.Pool
}

func New(ctx context.Context, databaseURL string) (*Store, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	s := &Store{pool: pool}
	if err := s.migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS triage_runs (
			id             UUID PRIMARY KEY,
			ticket_id      TEXT NOT NULL,
			team           TEXT NOT NULL,
			priority       TEXT NOT NULL,
			model          TEXT NOT NULL DEFAULT '',
			prompt_version TEXT NOT NULL,
			run            JSONB NOT NULL,
			review_status  TEXT NOT NULL DEFAULT 'pending',
			reviewed_by    TEXT NOT NULL DEFAULT '',
			created_at     TIMESTAMPTZ NOT NULL DEFAULT now(),
			reviewed_at    TIMESTAMPTZ
		);
		CREATE INDEX IF NOT EXISTS idx_triage_runs_ticket ON triage_runs(ticket_id);
		CREATE INDEX IF NOT EXISTS idx_triage_runs_review ON triage_runs(review_status);

		CREATE TABLE IF NOT EXISTS team_trust (
			team        TEXT PRIMARY KEY,
			trust_score DOUBLE PRECISION NOT NULL,
			reviewed    INTEGER NOT NULL DEFAULT 0,
			confirmed   INTEGER NOT NULL DEFAULT 0,
			updated_at  TIMESTAMPTZ NOT NULL DEFAULT now()
		);
	`)
	if err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

func (s *Store) Close() {
	s.pool.Close()
}

// WriteRun inserts a run with review status pending and returns its id.
func (s *Store) WriteRun(ctx context.Context, run *triage.Run, model string) (uuid.UUID, error) {
	payload, err := json.Marshal(run)
	if err != nil {
		return uuid.Nil, fmt.Errorf("marshal run: %w", err)
	}

	id := uuid.New()
	_, err = s.pool.Exec(ctx, `
		INSERT INTO triage_runs (id, ticket_id, team, priority, model, prompt_version, run, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, now())`,
		id, run.Ticket.ID, run.Routing.Value.Team, string(run.Routing.Value.Priority), model, run.PromptVersion, payload,
	)
	if err != nil {
		return uuid.Nil, fmt.Errorf("insert run: %w", err)
	}
	return id, nil
}

func (s *Store) GetRun(ctx context.Context, id uuid.UUID) (*RunRecord, error) {
	var (
		rec     RunRecord
		payload []byte
	)
	err := s.pool.QueryRow(ctx, `
		SELECT id, ticket_id, team, priority, model, run, review_status, reviewed_by, created_at, reviewed_at
		FROM triage_runs WHERE id = $1`, id,
	).Scan(&rec.ID, &rec.TicketID, &rec.Team, &rec.Priority, &rec.Model, &payload,
		&rec.ReviewStatus, &rec.ReviewedBy, &rec.CreatedAt, &rec.ReviewedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get run: %w", err)
	}

	rec.Run = &triage.Run{}
	if err := json.Unmarshal(payload, rec.Run); err != nil {
		return nil, fmt.Errorf("unmarshal run: %w", err)
	}
	return &rec, nil
}

func (s *Store) UpdateReviewStatus(ctx context.Context, id uuid.UUID, status, reviewer string) error {
	if !validReview(status) {
		return fmt.Errorf("invalid review status %q", status)
	}
	tag, err := s.pool.Exec(ctx, `
		UPDATE triage_runs SET review_status = $2, reviewed_by = $3, reviewed_at = $4
		WHERE id = $1`,
		id, status, reviewer, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("update review status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
