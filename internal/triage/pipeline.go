// Package triage runs a ticket through classify, route and reply. Each stage
// tries the model first, then a single repair pass, then the deterministic
// heuristic, so every run ends with a schema-valid result.
package triage

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	"github.com/MikeSquared-Agency/triage/internal/extractor"
	"github.com/MikeSquared-Agency/triage/internal/heuristic"
	"github.com/MikeSquared-Agency/triage/internal/metrics"
	"github.com/MikeSquared-Agency/triage/internal/ticket"
)

// Source records which path produced a stage result.
type Source string

const (
	SourceGenerated Source = "generated"
	SourceRepaired  Source = "repaired"
	SourceHeuristic Source = "heuristic"
	SourceTemplate  Source = "template"
)

const (
	StageClassify = "classify"
	StageRoute    = "route"
	StageReply    = "reply"
)

const (
	DefaultMinReplyWords = 20
	DefaultMaxReplyWords = 200
)

// Outcome pairs the raw model text with the accepted result. Raw is the
// first-pass generation, kept for audit even when the result came from a
// later path.
type Outcome[T any] struct {
	Raw    string `json:"raw"`
	Value  T      `json:"value"`
	Source Source `json:"source"`
}

// Run is the complete result of triaging one ticket.
type Run struct {
	Ticket         ticket.Ticket                  `json:"ticket"`
	Classification Outcome[ticket.Classification] `json:"classification"`
	Routing        Outcome[ticket.Routing]        `json:"routing"`
	Reply          Outcome[string]                `json:"reply"`
	PromptVersion  string                         `json:"prompt_version"`
	Duration       time.Duration                  `json:"duration_ns"`
}

type Options struct {
	// Signature closes drafted and templated replies.
	Signature string
	// MinReplyWords is the shortest generated reply accepted before the template is used.
	MinReplyWords int
	// MaxReplyWords caps generated replies.
	MaxReplyWords int
	Metrics       *metrics.Metrics
}

// Pipeline is safe for concurrent use: it holds no per-ticket state.
type Pipeline struct {
	llm     extractor.Completer
	opts    Options
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// New builds a pipeline around llm. A nil llm runs heuristics only.
func New(llm extractor.Completer, opts Options, logger *slog.Logger) *Pipeline {
	if opts.MinReplyWords <= 0 {
		opts.MinReplyWords = DefaultMinReplyWords
	}
	if opts.MaxReplyWords <= 0 {
		opts.MaxReplyWords = DefaultMaxReplyWords
	}
	if opts.Signature == "" {
		opts.Signature = heuristic.DefaultSignature
	}
	return &Pipeline{
		llm:     llm,
		opts:    opts,
		logger:  logger.With("component", "triage"),
		metrics: opts.Metrics,
	}
}

// Run triages t start to finish.
func (p *Pipeline) Run(ctx context.Context, t ticket.Ticket) *Run {
	start := time.Now()

	c := p.Classify(ctx, t.Message)
	r := p.Route(ctx, c.Value, t.VIPLevel)
	reply := p.Reply(ctx, t.Message, c.Value, r.Value)

	p.metrics.ObserveTicket()
	run := &Run{
		Ticket:         t,
		Classification: c,
		Routing:        r,
		Reply:          reply,
		PromptVersion:  PromptVersion,
		Duration:       time.Since(start),
	}

	p.logger.Info("ticket triaged",
		"ticket_id", t.ID,
		"team", r.Value.Team,
		"priority", r.Value.Priority,
		"classify_source", c.Source,
		"route_source", r.Source,
		"reply_source", reply.Source,
		"duration", run.Duration,
	)
	return run
}

// Classify produces the classification for a ticket message.
func (p *Pipeline) Classify(ctx context.Context, message string) Outcome[ticket.Classification] {
	out := runStage(ctx, p, StageClassify, BuildClassifyPrompt(message), ClassificationSchema,
		ticket.ParseClassification,
		func() ticket.Classification { return heuristic.Classify(message) },
	)
	if out.Value.Summary == "" {
		out.Value.Summary = heuristic.Summarize(message)
	}
	return out
}

// Route produces the routing decision for a classification. The VIP flag is
// always set from the customer's tier and the classifier confidence, whichever
// path produced the routing.
func (p *Pipeline) Route(ctx context.Context, c ticket.Classification, vip ticket.VIPLevel) Outcome[ticket.Routing] {
	out := runStage(ctx, p, StageRoute, BuildRoutePrompt(mustJSON(c), vip), RoutingSchema,
		ticket.ParseRouting,
		func() ticket.Routing { return heuristic.Route(c) },
	)
	out.Value.VIPEscalation = ticket.EscalateVIP(vip, c.Confidence)
	return out
}

// Reply drafts the customer-facing reply. Missing, failed or too-short
// generations are replaced by the deterministic template.
func (p *Pipeline) Reply(ctx context.Context, message string, c ticket.Classification, r ticket.Routing) Outcome[string] {
	var raw string
	if p.llm != nil {
		prompt := BuildReplyPrompt(message, mustJSON(c), mustJSON(r), p.opts.Signature)
		out, err := p.complete(ctx, StageReply, prompt)
		if err == nil {
			raw = out
			text := strings.TrimSpace(out)
			if heuristic.WordCount(text) >= p.opts.MinReplyWords {
				p.metrics.ObserveStage(StageReply, string(SourceGenerated))
				return Outcome[string]{Raw: raw, Value: heuristic.CapWords(text, p.opts.MaxReplyWords), Source: SourceGenerated}
			}
			p.logger.Warn("generated reply too short, using template", "words", heuristic.WordCount(text))
		}
	}

	p.metrics.ObserveStage(StageReply, string(SourceTemplate))
	return Outcome[string]{Raw: raw, Value: heuristic.Reply(c.Summary, r, p.opts.Signature, p.opts.MaxReplyWords), Source: SourceTemplate}
}

// runStage escalates generated -> repaired -> heuristic. Only malformed output
// gets the single repair call; a failed generation call goes straight to the
// heuristic, so a provider error is not treated like malformed output.
func runStage[T any](ctx context.Context, p *Pipeline, stage, prompt, schema string, parse func(json.RawMessage) (T, error), fallback func() T) Outcome[T] {
	if p.llm == nil {
		p.metrics.ObserveStage(stage, string(SourceHeuristic))
		return Outcome[T]{Value: fallback(), Source: SourceHeuristic}
	}

	raw, err := p.complete(ctx, stage, prompt)
	if err == nil {
		if v, ok := accept(p, stage, raw, parse); ok {
			p.metrics.ObserveStage(stage, string(SourceGenerated))
			return Outcome[T]{Raw: raw, Value: v, Source: SourceGenerated}
		}

		repairer := extractor.NewRepairer(extractor.CompleterFunc(func(ctx context.Context, prompt string) (string, error) {
			return p.complete(ctx, stage, prompt)
		}), p.logger.With("stage", stage))

		if obj, ok := repairer.Repair(ctx, raw, schema); ok {
			v, perr := parse(obj)
			if perr == nil {
				p.metrics.ObserveStage(stage, string(SourceRepaired))
				return Outcome[T]{Raw: raw, Value: v, Source: SourceRepaired}
			}
			p.logger.Warn("repaired output rejected", "stage", stage, "error", perr)
		}
	}

	p.logger.Warn("falling back to heuristic", "stage", stage)
	p.metrics.ObserveStage(stage, string(SourceHeuristic))
	return Outcome[T]{Raw: raw, Value: fallback(), Source: SourceHeuristic}
}

func accept[T any](p *Pipeline, stage, raw string, parse func(json.RawMessage) (T, error)) (T, bool) {
	var zero T
	obj, ok := extractor.ExtractFirstJSON(raw)
	if !ok {
		p.logger.Warn("no JSON object in model output", "stage", stage, "raw", extractor.Snippet(raw, 200))
		return zero, false
	}
	v, err := parse(obj)
	if err != nil {
		p.logger.Warn("model output rejected", "stage", stage, "error", err)
		return zero, false
	}
	return v, true
}

func (p *Pipeline) complete(ctx context.Context, stage, prompt string) (string, error) {
	start := time.Now()
	out, err := p.llm.Complete(ctx, prompt)
	p.metrics.ObserveCompletion(stage, time.Since(start), err)
	if err != nil {
		p.logger.Warn("completion failed", "stage", stage, "error", err)
	}
	return out, err
}

func mustJSON(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return "{}"
	}
	return string(b)
}
