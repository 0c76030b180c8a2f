package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/MikeSquared-Agency/triage/internal/triage"
	"github.com/MikeSquared-Agency/triage/internal/trust"
)

// SQLiteStore is the embedded Recorder for single-node deployments and the CLI.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) a SQLite database and runs migrations.
// The pragmas travel in the DSN so every pooled connection gets them.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", sqliteDSN(path))
	if err != nil {
		return nil, fmt.Errorf("sqlite store: open: %w", err)
	}
	if isMemory(path) {
		// each connection to :memory: is a separate database
		db.SetMaxOpenConns(1)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite store: ping: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func sqliteDSN(path string) string {
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return path + sep + "_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
}

func isMemory(path string) bool {
	return path == ":memory:" || strings.Contains(path, "mode=memory")
}

func (s *SQLiteStore) migrate() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS triage_runs (
			id             TEXT PRIMARY KEY,
			ticket_id      TEXT NOT NULL,
			team           TEXT NOT NULL,
			priority       TEXT NOT NULL,
			model          TEXT NOT NULL DEFAULT '',
			prompt_version TEXT NOT NULL,
			run            TEXT NOT NULL,
			review_status  TEXT NOT NULL DEFAULT 'pending',
			reviewed_by    TEXT NOT NULL DEFAULT '',
			created_at     TEXT NOT NULL,
			reviewed_at    TEXT
		);

		CREATE INDEX IF NOT EXISTS idx_triage_runs_ticket ON triage_runs(ticket_id);
		CREATE INDEX IF NOT EXISTS idx_triage_runs_review ON triage_runs(review_status);

		CREATE TABLE IF NOT EXISTS team_trust (
			team        TEXT PRIMARY KEY,
			trust_score REAL NOT NULL,
			reviewed    INTEGER NOT NULL DEFAULT 0,
			confirmed   INTEGER NOT NULL DEFAULT 0,
			updated_at  TEXT NOT NULL
		);
	`)
	if err != nil {
		return fmt.Errorf("sqlite store: migrate: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Close() {
	s.db.Close()
}

func (s *SQLiteStore) WriteRun(ctx context.Context, run *triage.Run, model string) (uuid.UUID, error) {
	payload, err := json.Marshal(run)
	if err != nil {
		return uuid.Nil, fmt.Errorf("marshal run: %w", err)
	}

	id := uuid.New()
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO triage_runs (id, ticket_id, team, priority, model, prompt_version, run, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		id.String(), run.Ticket.ID, run.Routing.Value.Team, string(run.Routing.Value.Priority),
		model, run.PromptVersion, string(payload), time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return uuid.Nil, fmt.Errorf("sqlite store: insert run: %w", err)
	}
	return id, nil
}

func (s *SQLiteStore) GetRun(ctx context.Context, id uuid.UUID) (*RunRecord, error) {
	var (
		rec        RunRecord
		rawID      string
		payload    string
		createdAt  string
		reviewedAt sql.NullString
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, ticket_id, team, priority, model, run, review_status, reviewed_by, created_at, reviewed_at
		FROM triage_runs WHERE id = ?`, id.String(),
	).Scan(&rawID, &rec.TicketID, &rec.Team, &rec.Priority, &rec.Model, &payload,
		&rec.ReviewStatus, &rec.ReviewedBy, &createdAt, &reviewedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite store: get run: %w", err)
	}

	if rec.ID, err = uuid.Parse(rawID); err != nil {
		return nil, fmt.Errorf("sqlite store: parse id: %w", err)
	}
	rec.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	if reviewedAt.Valid {
		t, _ := time.Parse(time.RFC3339Nano, reviewedAt.String)
		rec.ReviewedAt = &t
	}

	rec.Run = &triage.Run{}
	if err := json.Unmarshal([]byte(payload), rec.Run); err != nil {
		return nil, fmt.Errorf("sqlite store: unmarshal run: %w", err)
	}
	return &rec, nil
}

func (s *SQLiteStore) UpdateReviewStatus(ctx context.Context, id uuid.UUID, status, reviewer string) error {
	if !validReview(status) {
		return fmt.Errorf("invalid review status %q", status)
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE triage_runs SET review_status = ?, reviewed_by = ?, reviewed_at = ?
		WHERE id = ?`,
		status, reviewer, time.Now().UTC().Format(time.RFC3339Nano), id.String(),
	)
	if err != nil {
		return fmt.Errorf("sqlite store: update review status: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite store: rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLiteStore) GetTeamTrust(ctx context.Context, team string) (*trust.Record, error) {
	var rec trust.Record
	err := s.db.QueryRowContext(ctx, `
		SELECT team, trust_score, reviewed, confirmed
		FROM team_trust WHERE team = ?`, team,
	).Scan(&rec.Team, &rec.Score, &rec.Reviewed, &rec.Confirmed)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite store: get team trust: %w", err)
	}
	return &rec, nil
}

func (s *SQLiteStore) UpsertTeamTrust(ctx context.Context, rec trust.Record) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO team_trust (team, trust_score, reviewed, confirmed, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (team) DO UPDATE SET
			trust_score = excluded.trust_score,
			reviewed = excluded.reviewed,
			confirmed = excluded.confirmed,
			updated_at = excluded.updated_at`,
		rec.Team, rec.Score, rec.Reviewed, rec.Confirmed, time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("sqlite store: upsert team trust: %w", err)
	}
	return nil
}

func (s *SQLiteStore) ListTeamTrust(ctx context.Context) ([]trust.Record, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT team, trust_score, reviewed, confirmed
		FROM team_trust ORDER BY team`)
	if err != nil {
		return nil, fmt.Errorf("sqlite store: list team trust: %w", err)
	}
	defer rows.Close()

	var out []trust.Record
	for rows.Next() {
		var rec trust.Record
		if err := rows.Scan(&rec.Team, &rec.Score, &rec.Reviewed, &rec.Confirmed); err != nil {
			return nil, fmt.Errorf("sqlite store: scan team trust: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}
