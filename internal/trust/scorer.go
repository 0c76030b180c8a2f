// Package trust scores how reliably each team's routing decisions hold up
// under human review.
package trust

import (
	"sync"

	"github.com/MikeSquared-Agency/triage/internal/ticket"
)

// InitialScore is the score of a team with no reviews yet.
const InitialScore = 0.5

// SignalWeight returns the score increment for a reviewed ticket of the given severity.
func SignalWeight(severity ticket.Severity) float64 {
	switch severity {
	case ticket.SeverityLow:
		return 0.01
	case ticket.SeverityMedium:
		return 0.03
	case ticket.SeverityHigh:
		return 0.05
	default:
		return 0.01
	}
}

// UpdateScore calculates the new score after a review verdict.
// Degradation is asymmetric: misroutes count 2x.
func UpdateScore(currentScore float64, severity ticket.Severity, correct bool) float64 {
	weight := SignalWeight(severity)
	if correct {
		return clamp(currentScore + weight)
	}
	return clamp(currentScore - weight*2.0)
}

func clamp(score float64) float64 {
	if score < 0.0 {
		return 0.0
	}
	if score > 1.0 {
		return 1.0
	}
	return score
}

// Record is the review history of one team.
type Record struct {
	Team      string  `json:"team"`
	Score     float64 `json:"score"`
	Reviewed  int     `json:"reviewed"`
	Confirmed int     `json:"confirmed"`
}

// NewRecord is the record of a team with no reviews yet.
func NewRecord(team string) Record {
	return Record{Team: team, Score: InitialScore}
}

// Apply returns r updated with one review verdict.
func (r Record) Apply(severity ticket.Severity, correct bool) Record {
	r.Score = UpdateScore(r.Score, severity, correct)
	r.Reviewed++
	if correct {
		r.Confirmed++
	}
	return r
}

// Board keeps a score per team in memory, for deployments without a store.
// It is safe for concurrent use.
type Board struct {
	mu      sync.Mutex
	records map[string]*Record
}

func NewBoard() *Board {
	return &Board{records: make(map[string]*Record)}
}

// Observe applies one verdict to team and returns the updated record.
func (b *Board) Observe(team string, severity ticket.Severity, correct bool) Record {
	b.mu.Lock()
	defer b.mu.Unlock()

	rec, ok := b.records[team]
	if !ok {
		r := NewRecord(team)
		rec = &r
		b.records[team] = rec
	}
	*rec = rec.Apply(severity, correct)
	return *rec
}

// Get returns the record for team, with ok false when it has never been reviewed.
func (b *Board) Get(team string) (Record, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	rec, ok := b.records[team]
	if !ok {
		return NewRecord(team), false
	}
	return *rec, true
}
