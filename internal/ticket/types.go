// Package ticket holds the records that flow through a triage run.
package ticket

import (
	"strings"
	"unicode/utf8"
)

// MaxSummaryLen is the maximum summary length in characters.
const MaxSummaryLen = 240

type TicketType string

const (
	TypeIncident TicketType = "incident"
	TypeRequest  TicketType = "request"
)

type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

type Priority string

const (
	P1 Priority = "P1"
	P2 Priority = "P2"
	P3 Priority = "P3"
)

// VIPLevel is the loyalty tier of the customer who raised the ticket.
type VIPLevel string

const (
	VIPNone     VIPLevel = ""
	VIPBronze   VIPLevel = "bronze"
	VIPSilver   VIPLevel = "silver"
	VIPGold     VIPLevel = "gold"
	VIPPlatinum VIPLevel = "platinum"
)

// ParseVIPLevel maps free-form tier names ("Gold", " PLATINUM ") to a VIPLevel.
// Unknown tiers map to VIPNone.
func ParseVIPLevel(s string) VIPLevel {
	switch v := VIPLevel(strings.ToLower(strings.TrimSpace(s))); v {
	case VIPBronze, VIPSilver, VIPGold, VIPPlatinum:
		return v
	default:
		return VIPNone
	}
}

// Escalates reports whether this tier is eligible for the VIP flag (Gold and above).
func (v VIPLevel) Escalates() bool {
	return v == VIPGold || v == VIPPlatinum
}

// VIPConfidenceThreshold is the classifier confidence at or above which an
// eligible ticket is routed normally instead of being flagged.
const VIPConfidenceThreshold = 0.7

// EscalateVIP reports whether a ticket from tier v carries the VIP flag given
// the classifier's confidence. Without a confidence the tier alone decides.
func EscalateVIP(v VIPLevel, confidence *float64) bool {
	if !v.Escalates() {
		return false
	}
	return confidence == nil || *confidence < VIPConfidenceThreshold
}

// Ticket is one unit of customer-submitted text.
type Ticket struct {
	ID         string   `json:"ticket_id"`
	Message    string   `json:"message"`
	CustomerID string   `json:"customer_id,omitempty"`
	VIPLevel   VIPLevel `json:"vip_level,omitempty"`
}

// Classification is the result of the classify stage.
type Classification struct {
	TicketType TicketType `json:"ticket_type"`
	Service    *string    `json:"service"`
	Subservice *string    `json:"subservice"`
	Severity   Severity   `json:"severity"`
	Summary    string     `json:"summary"`
	Entities   []string   `json:"entities"`
	// Confidence is the classifier's self-reported certainty in [0,1], when given.
	Confidence *float64 `json:"confidence,omitempty"`
}

// ServiceName returns the service tag, or "" when absent.
func (c Classification) ServiceName() string {
	if c.Service == nil {
		return ""
	}
	return *c.Service
}

// Routing is the result of the route stage.
type Routing struct {
	Team          string   `json:"team"`
	Priority      Priority `json:"priority"`
	Rationale     string   `json:"rationale"`
	VIPEscalation bool     `json:"vip_escalation"`
}

// TruncateRunes cuts s to at most n characters without splitting a multi-byte rune.
func TruncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n])
}

// StringPtr returns a pointer to s.
func StringPtr(s string) *string {
	return &s
}
