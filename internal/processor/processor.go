package processor

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/MikeSquared-Agency/triage/internal/hermes"
	"github.com/MikeSquared-Agency/triage/internal/metrics"
	"github.com/MikeSquared-Agency/triage/internal/slack"
	"github.com/MikeSquared-Agency/triage/internal/store"
	"github.com/MikeSquared-Agency/triage/internal/ticket"
	"github.com/MikeSquared-Agency/triage/internal/triage"
	"github.com/MikeSquared-Agency/triage/internal/trust"
)

const rejectionPrompt = "Which team should own this ticket, and at what priority? Your correction is used to tune routing."

// Publisher sends events on the message bus.
type Publisher interface {
	Publish(subject string, data any) error
}

// Sink receives a copy of every triaged event, keyed by ticket id.
type Sink interface {
	Send(ctx context.Context, key string, v any) error
}

// Notifier posts triaged tickets for human review.
type Notifier interface {
	PostTriage(ctx context.Context, run *triage.Run) (string, error)
	PostThread(ctx context.Context, threadTS, text string) error
}

// Deps are the optional outputs of a Processor. Nil members are skipped.
type Deps struct {
	Recorder  store.Recorder
	Publisher Publisher
	Sink      Sink
	Notifier  Notifier
	// Metrics records review verdicts and routing trust.
	Metrics *metrics.Metrics
	// Model is recorded with each run.
	Model string
}

// Result is a triaged ticket and the id it was recorded under.
// RunID is uuid.Nil when no recorder is configured or the write failed.
type Result struct {
	RunID uuid.UUID   `json:"run_id"`
	Run   *triage.Run `json:"run"`
}

// Processor runs tickets through the pipeline and fans the results out.
type Processor struct {
	pipeline *triage.Pipeline
	deps     Deps
	trust    *trust.Board
	logger   *slog.Logger

	mu      sync.Mutex
	pending map[string]*pendingReview // keyed by Slack message TS
}

// pendingReview maps a posted triage message to its stored run.
type pendingReview struct {
	RunID       uuid.UUID
	TicketID    string
	Team        string
	Priority    string
	Severity    ticket.Severity
	RouteSource string
}

func New(pipeline *triage.Pipeline, deps Deps, logger *slog.Logger) *Processor {
	return &Processor{
		pipeline: pipeline,
		deps:     deps,
		trust:    trust.NewBoard(),
		logger:   logger.With("component", "processor"),
		pending:  make(map[string]*pendingReview),
	}
}

// Triage runs t through the pipeline, records the run and emits it to every
// configured output. Output failures are logged and never fail the triage.
func (p *Processor) Triage(ctx context.Context, t ticket.Ticket) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(t.ID) == "" {
		t.ID = uuid.New().String()
	}

	run := p.pipeline.Run(ctx, t)
	res := &Result{Run: run}

	if p.deps.Recorder != nil {
		id, err := p.deps.Recorder.WriteRun(ctx, run, p.deps.Model)
		if err != nil {
			p.logger.Error("failed to record run", "ticket_id", t.ID, "error", err)
		} else {
			res.RunID = id
		}
	}

	evt := triagedEvent(res.RunID, run)

	if p.deps.Publisher != nil {
		if err := p.deps.Publisher.Publish(hermes.SubjectTicketTriaged, evt); err != nil {
			p.logger.Error("failed to publish triaged event", "ticket_id", t.ID, "error", err)
		}
	}

	if p.deps.Sink != nil {
		if err := p.deps.Sink.Send(ctx, t.ID, evt); err != nil {
			p.logger.Error("failed to send triaged event to sink", "ticket_id", t.ID, "error", err)
		}
	}

	if p.deps.Notifier != nil {
		ts, err := p.deps.Notifier.PostTriage(ctx, run)
		if err != nil {
			p.logger.Error("slack post failed", "ticket_id", t.ID, "error", err)
		} else {
			p.mu.Lock()
			p.pending[ts] = &pendingReview{
				RunID:       res.RunID,
				TicketID:    t.ID,
				Team:        run.Routing.Value.Team,
				Priority:    string(run.Routing.Value.Priority),
				Severity:    run.Classification.Value.Severity,
				RouteSource: string(run.Routing.Source),
			}
			p.mu.Unlock()
		}
	}

	return res, nil
}

// HandleTicketCreated is the NATS handler for support.ticket.created.
func (p *Processor) HandleTicketCreated(subject string, data []byte) {
	ctx := context.Background()

	var evt hermes.TicketEvent
	if err := json.Unmarshal(data, &evt); err != nil {
		p.logger.Error("failed to parse ticket event", "subject", subject, "error", err)
		return
	}

	p.logger.Info("processing ticket", "ticket_id", evt.TicketID, "customer_id", evt.CustomerID)

	t := ticket.Ticket{
		ID:         evt.TicketID,
		Message:    evt.Message,
		CustomerID: evt.CustomerID,
		VIPLevel:   ticket.ParseVIPLevel(evt.VIPLevel),
	}
	if _, err := p.Triage(ctx, t); err != nil {
		p.logger.Error("triage failed", "ticket_id", evt.TicketID, "error", err)
	}
}

// HandleReaction processes Slack reaction feedback from slack-forwarder via NATS.
func (p *Processor) HandleReaction(subject string, data []byte) {
	ctx := context.Background()

	evt, err := slack.ParseReactionEvent(data, p.logger)
	if err != nil {
		p.logger.Error("failed to parse reaction", "error", err)
		return
	}

	verdict := slack.ParseReaction(evt.Reaction)
	if verdict == slack.VerdictUnknown {
		return // not a review reaction
	}

	p.mu.Lock()
	review, ok := p.pending[evt.MessageTS]
	if ok {
		delete(p.pending, evt.MessageTS)
	}
	p.mu.Unlock()
	if !ok {
		return // not a message we're tracking
	}

	p.logger.Info("processing routing review",
		"reaction", evt.Reaction,
		"verdict", string(verdict),
		"ticket_id", review.TicketID,
		"run_id", review.RunID,
	)

	if p.deps.Recorder != nil && review.RunID != uuid.Nil {
		if err := p.deps.Recorder.UpdateReviewStatus(ctx, review.RunID, string(verdict), evt.UserID); err != nil {
			p.logger.Error("failed to update review status", "run_id", review.RunID, "error", err)
		}
	}

	p.deps.Metrics.ObserveReview(string(verdict), review.RouteSource)
	if verdict == slack.VerdictSkipped {
		return
	}

	rec := p.observeTrust(ctx, review.Team, review.Severity, verdict == slack.VerdictConfirmed)
	p.deps.Metrics.SetRoutingTrust(rec.Team, rec.Score)
	p.logger.Info("routing trust updated", "team", rec.Team, "score", rec.Score, "reviewed", rec.Reviewed)

	if p.deps.Publisher != nil {
		fb := hermes.FeedbackEvent{
			TicketID:    review.TicketID,
			Verdict:     string(verdict),
			Team:        review.Team,
			Priority:    review.Priority,
			RouteSource: review.RouteSource,
			ReviewerID:  evt.UserID,
		}
		if review.RunID != uuid.Nil {
			fb.RunID = review.RunID.String()
		}
		if err := p.deps.Publisher.Publish(hermes.SubjectTriageFeedback, fb); err != nil {
			p.logger.Error("failed to publish feedback", "ticket_id", review.TicketID, "error", err)
		}
	}

	if verdict == slack.VerdictRejected && p.deps.Notifier != nil {
		if err := p.deps.Notifier.PostThread(ctx, evt.MessageTS, rejectionPrompt); err != nil {
			p.logger.Error("failed to post correction thread", "error", err)
		}
	}
}

// observeTrust applies one verdict to team's routing trust. With a recorder the
// record is loaded and saved through it; the in-memory board is used otherwise
// and when the recorder cannot be read.
func (p *Processor) observeTrust(ctx context.Context, team string, severity ticket.Severity, correct bool) trust.Record {
	if p.deps.Recorder == nil {
		return p.trust.Observe(team, severity, correct)
	}

	prev, err := p.deps.Recorder.GetTeamTrust(ctx, team)
	switch {
	case errors.Is(err, store.ErrNotFound):
		r := trust.NewRecord(team)
		prev = &r
	case err != nil:
		p.logger.Error("failed to load team trust", "team", team, "error", err)
		return p.trust.Observe(team, severity, correct)
	}

	rec := prev.Apply(severity, correct)
	if err := p.deps.Recorder.UpsertTeamTrust(ctx, rec); err != nil {
		p.logger.Error("failed to save team trust", "team", team, "error", err)
	}
	return rec
}

// RestoreTrust publishes the persisted routing trust of every team to the
// metrics gauge. It is a no-op without a recorder.
func (p *Processor) RestoreTrust(ctx context.Context) error {
	if p.deps.Recorder == nil {
		return nil
	}
	recs, err := p.deps.Recorder.ListTeamTrust(ctx)
	if err != nil {
		return err
	}
	for _, rec := range recs {
		p.deps.Metrics.SetRoutingTrust(rec.Team, rec.Score)
	}
	p.logger.Info("routing trust restored", "teams", len(recs))
	return nil
}

// PendingReviews is the number of posted triages still awaiting a reaction.
func (p *Processor) PendingReviews() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.pending)
}

func triagedEvent(runID uuid.UUID, run *triage.Run) hermes.TriagedEvent {
	c := run.Classification.Value
	r := run.Routing.Value
	evt := hermes.TriagedEvent{
		TicketID:       run.Ticket.ID,
		CustomerID:     run.Ticket.CustomerID,
		TicketType:     string(c.TicketType),
		Service:        c.ServiceName(),
		Severity:       string(c.Severity),
		Summary:        c.Summary,
		Team:           r.Team,
		Priority:       string(r.Priority),
		VIPEscalation:  r.VIPEscalation,
		Reply:          run.Reply.Value,
		ClassifySource: string(run.Classification.Source),
		RouteSource:    string(run.Routing.Source),
		ReplySource:    string(run.Reply.Source),
		PromptVersion:  run.PromptVersion,
		TriagedAt:      time.Now().UTC(),
	}
	if runID != uuid.Nil {
		evt.RunID = runID.String()
	}
	return evt
}
