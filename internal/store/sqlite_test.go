package store

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MikeSquared-Agency/triage/internal/heuristic"
	"github.com/MikeSquared-Agency/triage/internal/ticket"
	"github.com/MikeSquared-Agency/triage/internal/triage"
	"github.com/MikeSquared-Agency/triage/internal/trust"
)

func newTestStore(t *testing.T) Recorder {
	t.Helper()
	s, err := Open(context.Background(), "sqlite://"+filepath.Join(t.TempDir(), "triage.db"))
	require.NoError(t, err)
	t.Cleanup(s.Close)
	return s
}

func sampleRun() *triage.Run {
	c := heuristic.Classify("Server down")
	r := heuristic.Route(c)
	return &triage.Run{
		Ticket:         ticket.Ticket{ID: "T001", Message: "Server down", VIPLevel: ticket.VIPGold},
		Classification: triage.Outcome[ticket.Classification]{Value: c, Source: triage.SourceHeuristic},
		Routing:        triage.Outcome[ticket.Routing]{Raw: "not json", Value: r, Source: triage.SourceHeuristic},
		Reply:          triage.Outcome[string]{Value: heuristic.Reply(c.Summary, r, "Barney", 0), Source: triage.SourceTemplate},
		PromptVersion:  triage.PromptVersion,
	}
}

func TestSQLite_WriteAndGetRun(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	id, err := s.WriteRun(ctx, sampleRun(), "llama2")
	require.NoError(t, err)
	require.NotEqual(t, uuid.Nil, id)

	rec, err := s.GetRun(ctx, id)
	require.NoError(t, err)

	assert.Equal(t, id, rec.ID)
	assert.Equal(t, "T001", rec.TicketID)
	assert.Equal(t, "SRE", rec.Team)
	assert.Equal(t, "P1", rec.Priority)
	assert.Equal(t, "llama2", rec.Model)
	assert.Equal(t, ReviewPending, rec.ReviewStatus)
	assert.Nil(t, rec.ReviewedAt)
	assert.False(t, rec.CreatedAt.IsZero())

	require.NotNil(t, rec.Run)
	assert.Equal(t, "not json", rec.Run.Routing.Raw)
	assert.Equal(t, triage.SourceTemplate, rec.Run.Reply.Source)
	assert.Equal(t, "Availability", rec.Run.Classification.Value.ServiceName())
}

func TestSQLite_UpdateReviewStatus(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	id, err := s.WriteRun(ctx, sampleRun(), "")
	require.NoError(t, err)

	require.NoError(t, s.UpdateReviewStatus(ctx, id, ReviewRejected, "U123"))

	rec, err := s.GetRun(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, ReviewRejected, rec.ReviewStatus)
	assert.Equal(t, "U123", rec.ReviewedBy)
	assert.NotNil(t, rec.ReviewedAt)
}

func TestSQLite_InvalidReviewStatus(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	id, err := s.WriteRun(ctx, sampleRun(), "")
	require.NoError(t, err)

	assert.Error(t, s.UpdateReviewStatus(ctx, id, "maybe", "U123"))
}

func TestSQLite_NotFound(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.GetRun(ctx, uuid.New())
	assert.True(t, errors.Is(err, ErrNotFound))

	err = s.UpdateReviewStatus(ctx, uuid.New(), ReviewConfirmed, "")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestSQLite_ReopenKeepsRuns(t *testing.T) {
	path := filepath.Join(t.TempDir(), "triage.db")
	ctx := context.Background()

	s, err := NewSQLiteStore(path)
	require.NoError(t, err)
	id, err := s.WriteRun(ctx, sampleRun(), "")
	require.NoError(t, err)
	s.Close()

	s, err = NewSQLiteStore(path)
	require.NoError(t, err)
	defer s.Close()

	rec, err := s.GetRun(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "T001", rec.TicketID)
}

func TestSQLite_TeamTrustRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "triage.db")
	ctx := context.Background()

	s, err := NewSQLiteStore(path)
	require.NoError(t, err)

	_, err = s.GetTeamTrust(ctx, "SRE")
	assert.True(t, errors.Is(err, ErrNotFound))

	rec := trust.NewRecord("SRE").Apply(ticket.SeverityHigh, false)
	require.NoError(t, s.UpsertTeamTrust(ctx, rec))
	rec = rec.Apply(ticket.SeverityLow, true)
	require.NoError(t, s.UpsertTeamTrust(ctx, rec))
	require.NoError(t, s.UpsertTeamTrust(ctx, trust.NewRecord("IAM").Apply(ticket.SeverityMedium, true)))
	s.Close()

	s, err = NewSQLiteStore(path)
	require.NoError(t, err)
	defer s.Close()

	got, err := s.GetTeamTrust(ctx, "SRE")
	require.NoError(t, err)
	assert.Equal(t, 2, got.Reviewed)
	assert.Equal(t, 1, got.Confirmed)
	assert.InDelta(t, 0.41, got.Score, 0.0001)

	all, err := s.ListTeamTrust(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "IAM", all[0].Team)
	assert.Equal(t, "SRE", all[1].Team)
}

func TestSQLite_PragmasOnEveryConnection(t *testing.T) {
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "triage.db"))
	require.NoError(t, err)
	defer s.Close()
	ctx := context.Background()

	c1, err := s.db.Conn(ctx)
	require.NoError(t, err)
	defer c1.Close()
	c2, err := s.db.Conn(ctx)
	require.NoError(t, err)
	defer c2.Close()

	for _, c := range []*sql.Conn{c1, c2} {
		var timeout int
		require.NoError(t, c.QueryRowContext(ctx, "PRAGMA busy_timeout").Scan(&timeout))
		assert.Equal(t, 5000, timeout)

		var mode string
		require.NoError(t, c.QueryRowContext(ctx, "PRAGMA journal_mode").Scan(&mode))
		assert.Equal(t, "wal", mode)
	}
}

func TestSQLite_InMemory(t *testing.T) {
	s, err := Open(context.Background(), "sqlite://:memory:")
	require.NoError(t, err)
	defer s.Close()
	ctx := context.Background()

	id, err := s.WriteRun(ctx, sampleRun(), "")
	require.NoError(t, err)
	rec, err := s.GetRun(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "T001", rec.TicketID)
}

func TestSQLiteDSN(t *testing.T) {
	assert.Equal(t, "/tmp/t.db?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", sqliteDSN("/tmp/t.db"))
	assert.Equal(t, "file:t.db?cache=shared&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", sqliteDSN("file:t.db?cache=shared"))
	assert.True(t, isMemory(":memory:"))
	assert.True(t, isMemory("file:x?mode=memory"))
	assert.False(t, isMemory("/tmp/t.db"))
}

func TestOpen_UnsupportedScheme(t *testing.T) {
	_, err := Open(context.Background(), "mysql://localhost/triage")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mysql")
}
