package heuristic

import (
	"fmt"
	"strings"

	"github.com/MikeSquared-Agency/triage/internal/ticket"
)

// DefaultSignature closes templated replies when no signature is configured.
const DefaultSignature = "Customer Support"

const replyTemplate = `Hello,

Thank you for reaching out to us. We have reviewed your message about "%s" and logged it as a support ticket. It has been routed to our %s team with priority %s, and a specialist from that team will pick it up as soon as possible.%s We will keep you updated as the investigation progresses. If you have extra details such as screenshots, order numbers or the time the problem started, simply reply to this message and we will add them to your ticket.

Kind regards,
%s`

const vipSentence = " As a VIP customer, your ticket is also flagged for priority attention."

// TemplateMaxWords bounds the templated reply.
const TemplateMaxWords = 110

// Reply renders the deterministic customer reply for a routed ticket. The
// quoted summary is shortened until the reply fits TemplateMaxWords and
// maxWords (ignored when <= 0). A maxWords below the fixed template text
// truncates the whole reply.
func Reply(summary string, r ticket.Routing, signature string, maxWords int) string {
	summary = strings.TrimSpace(summary)
	if summary == "" {
		summary = "your request"
	}
	team := r.Team
	if team == "" {
		team = DefaultTeam
	}
	priority := r.Priority
	if priority == "" {
		priority = ticket.P2
	}
	if signature == "" {
		signature = DefaultSignature
	}
	vip := ""
	if r.VIPEscalation {
		vip = vipSentence
	}

	limit := TemplateMaxWords
	if maxWords > 0 && maxWords < limit {
		limit = maxWords
	}

	out := fmt.Sprintf(replyTemplate, summary, team, priority, vip, signature)
	if over := WordCount(out) - limit; over > 0 {
		keep := WordCount(summary) - over
		if keep < 1 {
			keep = 1
		}
		out = fmt.Sprintf(replyTemplate, CapWords(summary, keep), team, priority, vip, signature)
	}
	return CapWords(out, limit)
}

// WordCount counts whitespace-separated words.
func WordCount(s string) int {
	return len(strings.Fields(s))
}

// CapWords truncates s to at most max words. Text within the limit is returned unchanged.
func CapWords(s string, max int) string {
	words := strings.Fields(s)
	if len(words) <= max {
		return s
	}
	return strings.Join(words[:max], " ") + "…"
}
