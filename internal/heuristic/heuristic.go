// Package heuristic implements the keyword-based classifier, router and reply
// template used when model output cannot be trusted. Every function here is
// pure and total: no model calls, no I/O, and any input yields a valid record.
package heuristic

import (
	"fmt"
	"strings"

	"github.com/MikeSquared-Agency/triage/internal/ticket"
)

// DefaultService is used when no service keyword matches.
const DefaultService = "Application"

// DefaultTeam is used for services missing from the team table.
const DefaultTeam = "App Support"

type keywordService struct {
	keyword string
	service string
}

// serviceKeywords is checked in order; the first keyword found wins.
var serviceKeywords = []keywordService{
	{"refund", "Billing"},
	{"payment", "Billing"},
	{"invoice", "Billing"},
	{"login", "Identity"},
	{"password", "Identity"},
	{"account", "Identity"},
	{"slow", "Performance"},
	{"down", "Availability"},
	{"error", "Application"},
}

var requestWords = []string{"request", "feature", "access", "please enable", "refund"}

var highWords = []string{"urgent", "immediately", "down", "critical", "p1"}

var mediumWords = []string{"not provided", "not working", "error", "failed", "pending"}

// entityVocabulary fixes both the recognised entities and their output order.
var entityVocabulary = []string{"order", "invoice", "account", "payment", "refund", "login", "password", "server", "api"}

var serviceTeams = map[string]string{
	"Billing":      "Finance Ops",
	"Identity":     "IAM",
	"Performance":  "SRE",
	"Availability": "SRE",
	"Application":  "App Support",
}

// Classify derives a Classification from keyword matches in text.
func Classify(text string) ticket.Classification {
	lower := strings.ToLower(text)

	service := DefaultService
	for _, ks := range serviceKeywords {
		if strings.Contains(lower, ks.keyword) {
			service = ks.service
			break
		}
	}

	ticketType := ticket.TypeIncident
	if containsAny(lower, requestWords) {
		ticketType = ticket.TypeRequest
	}

	severity := ticket.SeverityLow
	switch {
	case containsAny(lower, highWords):
		severity = ticket.SeverityHigh
	case containsAny(lower, mediumWords):
		severity = ticket.SeverityMedium
	}

	entities := []string{}
	for _, e := range entityVocabulary {
		if strings.Contains(lower, e) {
			entities = append(entities, e)
		}
	}

	return ticket.Classification{
		TicketType: ticketType,
		Service:    ticket.StringPtr(service),
		Severity:   severity,
		Summary:    Summarize(text),
		Entities:   entities,
	}
}

// Summarize trims text and truncates it to the summary limit.
func Summarize(text string) string {
	return ticket.TruncateRunes(strings.TrimSpace(text), ticket.MaxSummaryLen)
}

// Route maps a classification to a team and priority.
func Route(c ticket.Classification) ticket.Routing {
	service := c.ServiceName()
	team, ok := serviceTeams[service]
	if !ok {
		team = DefaultTeam
	}

	return ticket.Routing{
		Team:      team,
		Priority:  PriorityFor(c.Severity),
		Rationale: fmt.Sprintf("Heuristic mapping: service=%s, severity=%s", orUnknown(service), orUnknown(string(c.Severity))),
	}
}

// PriorityFor maps severity to priority; unknown severities get P2.
func PriorityFor(s ticket.Severity) ticket.Priority {
	switch s {
	case ticket.SeverityHigh:
		return ticket.P1
	case ticket.SeverityMedium:
		return ticket.P2
	case ticket.SeverityLow:
		return ticket.P3
	default:
		return ticket.P2
	}
}

func containsAny(s string, words []string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}

func orUnknown(s string) string {
	if s == "" {
		return "unknown"
	}
	return s
}
