// Package batch triages a file of tickets offline, appending one JSON result
// per line and recording progress so an interrupted run can resume.
package batch

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sort"

	"github.com/MikeSquared-Agency/triage/internal/processor"
	"github.com/MikeSquared-Agency/triage/internal/ticket"
	"github.com/MikeSquared-Agency/triage/internal/triage"
)

// Triager triages a single ticket.
type Triager interface {
	Triage(ctx context.Context, t ticket.Ticket) (*processor.Result, error)
}

type Config struct {
	InPath  string
	OutPath string
	// StatePath defaults to OutPath + ".state.json".
	StatePath string
	// DryRun triages with heuristics only and leaves the state file untouched.
	DryRun bool
	// Limit stops after this many newly triaged tickets; zero means no limit.
	Limit int
	// Pipeline configures the heuristic pipeline used for dry runs.
	Pipeline triage.Options
}

// Stats summarises a batch run.
type Stats struct {
	Total    int            `json:"total"`
	Skipped  int            `json:"skipped"`
	Triaged  int            `json:"triaged"`
	Failed   int            `json:"failed"`
	ByTeam   map[string]int `json:"by_team"`
	BySource map[string]int `json:"by_source"`
}

// Teams returns the team names in ByTeam, sorted.
func (s Stats) Teams() []string {
	teams := make([]string, 0, len(s.ByTeam))
	for team := range s.ByTeam {
		teams = append(teams, team)
	}
	sort.Strings(teams)
	return teams
}

type Runner struct {
	cfg     Config
	triager Triager
	logger  *slog.Logger
}

// NewRunner creates a batch runner. In dry-run mode live is ignored and a
// heuristics-only processor with no outputs is used instead.
func NewRunner(cfg Config, live Triager, logger *slog.Logger) *Runner {
	if cfg.StatePath == "" {
		cfg.StatePath = cfg.OutPath + ".state.json"
	}
	logger = logger.With("component", "batch")

	t := live
	if cfg.DryRun {
		t = processor.New(triage.New(nil, cfg.Pipeline, logger), processor.Deps{}, logger)
	}
	return &Runner{cfg: cfg, triager: t, logger: logger}
}

// Run executes the batch.
func (r *Runner) Run(ctx context.Context) (Stats, error) {
	stats := Stats{ByTeam: map[string]int{}, BySource: map[string]int{}}

	state, err := LoadState(r.cfg.StatePath)
	if err != nil {
		return stats, fmt.Errorf("load state: %w", err)
	}

	in, err := os.Open(r.cfg.InPath)
	if err != nil {
		return stats, fmt.Errorf("open input: %w", err)
	}
	tickets, err := ReadTickets(in)
	in.Close()
	if err != nil {
		return stats, err
	}
	stats.Total = len(tickets)

	out, err := os.OpenFile(r.cfg.OutPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return stats, fmt.Errorf("open output: %w", err)
	}
	defer out.Close()
	enc := json.NewEncoder(out)

	r.logger.Info("batch starting",
		"tickets", len(tickets),
		"already_processed", len(state.Processed),
		"dry_run", r.cfg.DryRun,
	)

	save := func() {
		if r.cfg.DryRun {
			return
		}
		if err := state.Save(); err != nil {
			r.logger.Error("failed to save state", "error", err)
		}
	}

	for _, t := range tickets {
		select {
		case <-ctx.Done():
			r.logger.Info("batch interrupted, saving state")
			save()
			return stats, ctx.Err()
		default:
		}

		if state.IsProcessed(t.ID) {
			stats.Skipped++
			continue
		}
		if r.cfg.Limit > 0 && stats.Triaged >= r.cfg.Limit {
			break
		}

		res, err := r.triager.Triage(ctx, t)
		if err != nil {
			r.logger.Warn("triage failed", "ticket_id", t.ID, "error", err)
			state.AddError(fmt.Sprintf("%s: %v", t.ID, err))
			stats.Failed++
			continue
		}
		if err := enc.Encode(res); err != nil {
			save()
			return stats, fmt.Errorf("write result %s: %w", t.ID, err)
		}

		state.MarkProcessed(t.ID)
		stats.Triaged++
		stats.ByTeam[res.Run.Routing.Value.Team]++
		stats.BySource[string(res.Run.Classification.Source)]++

		save()
	}

	r.logger.Info("batch complete",
		"triaged", stats.Triaged,
		"skipped", stats.Skipped,
		"failed", stats.Failed,
	)
	return stats, nil
}
