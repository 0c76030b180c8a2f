package ticket

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ErrSchema marks a parsed object whose fields fall outside the allowed values.
var ErrSchema = errors.New("schema violation")

type classificationWire struct {
	TicketType string   `json:"ticket_type"`
	Service    *string  `json:"service"`
	Subservice *string  `json:"subservice"`
	Severity   string   `json:"severity"`
	Summary    string   `json:"summary"`
	Entities   []string `json:"entities"`
	Confidence any      `json:"confidence"`
}

// ParseClassification decodes model output into a Classification, normalising
// case and whitespace before checking the ticket_type and severity enums.
// An empty summary is left empty for the caller to default. A confidence that
// is not a number in [0,1] is dropped rather than rejected.
func ParseClassification(raw json.RawMessage) (Classification, error) {
	var w classificationWire
	if err := json.Unmarshal(raw, &w); err != nil {
		return Classification{}, fmt.Errorf("decode classification: %w", err)
	}

	c := Classification{
		TicketType: TicketType(normEnum(w.TicketType)),
		Service:    optional(w.Service),
		Subservice: optional(w.Subservice),
		Severity:   Severity(normEnum(w.Severity)),
		Summary:    TruncateRunes(strings.TrimSpace(w.Summary), MaxSummaryLen),
		Entities:   w.Entities,
		Confidence: parseConfidence(w.Confidence),
	}
	if c.Entities == nil {
		c.Entities = []string{}
	}

	switch c.TicketType {
	case TypeIncident, TypeRequest:
	default:
		return Classification{}, fmt.Errorf("%w: ticket_type %q", ErrSchema, w.TicketType)
	}
	switch c.Severity {
	case SeverityLow, SeverityMedium, SeverityHigh:
	default:
		return Classification{}, fmt.Errorf("%w: severity %q", ErrSchema, w.Severity)
	}
	return c, nil
}

type routingWire struct {
	Team          string   `json:"team"`
	Department    string   `json:"department"`
	Priority      string   `json:"priority"`
	Rationale     string   `json:"rationale"`
	Reasons       []string `json:"reasons"`
	VIPEscalation bool     `json:"vip_escalation"`
}

// ParseRouting decodes model output into a Routing. "department" is accepted in
// place of "team", high/medium/low in place of P1/P2/P3, and a "reasons" list
// in place of "rationale".
func ParseRouting(raw json.RawMessage) (Routing, error) {
	var w routingWire
	if err := json.Unmarshal(raw, &w); err != nil {
		return Routing{}, fmt.Errorf("decode routing: %w", err)
	}

	team := strings.TrimSpace(w.Team)
	if team == "" {
		team = strings.TrimSpace(w.Department)
	}
	if team == "" {
		return Routing{}, fmt.Errorf("%w: team is empty", ErrSchema)
	}

	priority, ok := ParsePriority(w.Priority)
	if !ok {
		return Routing{}, fmt.Errorf("%w: priority %q", ErrSchema, w.Priority)
	}

	rationale := strings.TrimSpace(w.Rationale)
	if rationale == "" && len(w.Reasons) > 0 {
		rationale = strings.Join(w.Reasons, "; ")
	}

	return Routing{
		Team:          team,
		Priority:      priority,
		Rationale:     rationale,
		VIPEscalation: w.VIPEscalation,
	}, nil
}

// ParsePriority accepts P1/P2/P3 in any case, or the high/medium/low labels
// used by the agent prompts.
func ParsePriority(s string) (Priority, bool) {
	switch normEnum(s) {
	case "p1", "high":
		return P1, true
	case "p2", "medium":
		return P2, true
	case "p3", "low":
		return P3, true
	default:
		return "", false
	}
}

func parseConfidence(v any) *float64 {
	var f float64
	switch t := v.(type) {
	case float64:
		f = t
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil {
			return nil
		}
		f = parsed
	default:
		return nil
	}
	if math.IsNaN(f) || f < 0 || f > 1 {
		return nil
	}
	return &f
}

func normEnum(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func optional(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" || strings.EqualFold(v, "null") {
		return nil
	}
	return &v
}
