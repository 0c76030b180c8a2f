package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/MikeSquared-Agency/triage/internal/trust"
)

// GetTeamTrust fetches the routing trust record for a team.
func (s *Store) GetTeamTrust(ctx context.Context, team string) (*trust.Record, error) {
	var rec trust.Record
	err := s.pool.QueryRow(ctx, `
		SELECT team, trust_score, reviewed, confirmed
		FROM team_trust
		WHERE team = $1`,
		team,
	).Scan(&rec.Team, &rec.Score, &rec.Reviewed, &rec.Confirmed)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get team trust: %w", err)
	}
	return &rec, nil
}

// UpsertTeamTrust creates or replaces the trust record for rec.Team.
func (s *Store) UpsertTeamTrust(ctx context.Context, rec trust.Record) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO team_trust (team, trust_score, reviewed, confirmed, updated_at)
		VALUES ($1, $2, $3, $4, now())
		ON CONFLICT (team)
		DO UPDATE SET
			trust_score = $2,
			reviewed = $3,
			confirmed = $4,
			updated_at = now()`,
		rec.Team, rec.Score, rec.Reviewed, rec.Confirmed,
	)
	if err != nil {
		return fmt.Errorf("upsert team trust: %w", err)
	}
	return nil
}

// ListTeamTrust returns every team's trust record ordered by team.
func (s *Store) ListTeamTrust(ctx context.Context) ([]trust.Record, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT team, trust_score, reviewed, confirmed
		FROM team_trust
		ORDER BY team`)
	if err != nil {
		return nil, fmt.Errorf("list team trust: %w", err)
	}
	defer rows.Close()

	var out []trust.Record
	for rows.Next() {
		var rec trust.Record
		if err := rows.Scan(&rec.Team, &rec.Score, &rec.Reviewed, &rec.Confirmed); err != nil {
			return nil, fmt.Errorf("scan team trust: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}
