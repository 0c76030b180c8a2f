package triage

import (
	"fmt"

	"github.com/MikeSquared-Agency/triage/internal/ticket"
)

// PromptVersion identifies the prompt set below. Bump it whenever prompt text changes.
const PromptVersion = "2026-10.2"

// ClassificationSchema documents the classify stage output for the model and the repair pass.
const ClassificationSchema = `{
  "ticket_type": "incident|request",
  "service": "string or null (e.g. Billing, Identity, Performance, Availability, Application)",
  "subservice": "string or null",
  "severity": "low|medium|high",
  "summary": "string, at most 240 characters",
  "entities": ["string"],
  "confidence": "number between 0 and 1, how sure you are of this classification"
}`

// RoutingSchema documents the route stage output.
const RoutingSchema = `{
  "team": "string, non-empty",
  "priority": "P1|P2|P3",
  "rationale": "string",
  "vip_escalation": true|false
}`

const classifyPrompt = `You are the Ticket Classifier. You help support teams determine issue types quickly.

Classify the support ticket and return STRICT JSON matching this schema:
%s

Rules:
- "request" means the customer asks for something (access, a feature, a refund); anything broken is an "incident".
- "high" severity is for outages, blocked customers and anything marked urgent.
- "entities" lists the things the ticket mentions, such as order, invoice, account, payment, refund, login, password, server, api.

Ticket: My refund is still pending. I need urgent resolution
JSON: {"ticket_type":"request","service":"Billing","subservice":"Refunds","severity":"high","summary":"Refund still pending, customer needs urgent resolution","entities":["refund"],"confidence":0.9}

Ticket: I forgot my password and the reset link isn't working.
JSON: {"ticket_type":"incident","service":"Identity","subservice":"Password reset","severity":"medium","summary":"Password reset link not working","entities":["password"],"confidence":0.85}

Ticket: Live dealer blackjack video keeps buffering, can't play.
JSON: {"ticket_type":"incident","service":"Performance","subservice":"Streaming","severity":"medium","summary":"Live dealer video keeps buffering","entities":[],"confidence":0.6}

Ticket: %s
JSON:`

const routePrompt = `You are the Routing Advisor. You know the internal routing rules and department scopes.

Decide which team handles the ticket using the classification JSON and customer context.

Team rules:
- Billing -> Finance Ops
- Identity -> IAM
- Performance or Availability -> SRE
- Application or anything else -> App Support

Priority rules: severity high -> P1, medium -> P2, low -> P3.
Set vip_escalation to true when the customer VIP level is Gold or Platinum and the classification confidence is below 0.7 or missing.

Return STRICT JSON matching this schema:
%s

Classification: {"ticket_type":"request","service":"Billing","subservice":"Refunds","severity":"high","summary":"Refund still pending","entities":["refund"]}
Customer VIP level: silver
JSON: {"team":"Finance Ops","priority":"P1","rationale":"Billing refund issue with high severity","vip_escalation":false}

Classification: {"ticket_type":"incident","service":"Availability","subservice":null,"severity":"high","summary":"Site is down","entities":["server"]}
Customer VIP level: platinum
JSON: {"team":"SRE","priority":"P1","rationale":"Outage affecting a platinum customer","vip_escalation":true}

Classification: %s
Customer VIP level: %s
JSON:`

const replyPrompt = `You are the Support Responder. You draft clear, polite support replies in the company tone and prioritise VIP experiences.

Write a short customer reply (at most 200 words, plain text) using the ticket, classification and routing decision.
- Acknowledge the issue in the customer's terms.
- Say which team is handling it and with what priority.
- Acknowledge VIP status if vip_escalation is true.
- Avoid promises about timing or outcome; state the next step.
- Sign the reply as %s.

Ticket: %s
Classification: %s
Routing: %s

Reply:`

// BuildClassifyPrompt renders the few-shot classification prompt for a ticket message.
func BuildClassifyPrompt(message string) string {
	return fmt.Sprintf(classifyPrompt, ClassificationSchema, message)
}

// BuildRoutePrompt renders the routing prompt from the classification JSON.
func BuildRoutePrompt(classificationJSON string, vip ticket.VIPLevel) string {
	level := string(vip)
	if level == "" {
		level = "none"
	}
	return fmt.Sprintf(routePrompt, RoutingSchema, classificationJSON, level)
}

// BuildReplyPrompt renders the reply prompt from the prior stages' JSON.
func BuildReplyPrompt(message, classificationJSON, routingJSON, signature string) string {
	return fmt.Sprintf(replyPrompt, signature, message, classificationJSON, routingJSON)
}
