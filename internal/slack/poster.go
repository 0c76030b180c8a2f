package slack

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/MikeSquared-Agency/triage/internal/triage"
)

const defaultPostMessageURL = "https://slack.com/api/chat.postMessage"

type Poster struct {
	token   string
	channel string
	client  *http.Client
	logger  *slog.Logger
	apiURL  string
}

func NewPoster(token, channel string, logger *slog.Logger) *Poster {
	return &Poster{
		token:   token,
		channel: channel,
		client:  &http.Client{Timeout: 10 * time.Second},
		apiURL:  defaultPostMessageURL,
		logger:  logger,
	}
}

// PostTriage posts a triaged ticket for human review of its routing.
// Returns the message timestamp (ts) which is used for tracking reactions.
func (p *Poster) PostTriage(ctx context.Context, run *triage.Run) (string, error) {
	text := formatTriageMessage(run)

	ts, err := p.post(ctx, map[string]any{
		"channel": p.channel,
		"text":    text,
		"blocks": []map[string]any{
			{
				"type": "section",
				"text": map[string]any{
					"type": "mrkdwn",
					"text": text,
				},
			},
			{
				"type": "context",
				"elements": []map[string]any{
					{
						"type": "mrkdwn",
						"text": "React: :+1: routing correct | :-1: wrong team or priority | :shrug: skip",
					},
				},
			},
		},
	})
	if err != nil {
		return "", err
	}

	p.logger.Info("posted triage to slack", "ts", ts, "ticket_id", run.Ticket.ID)
	return ts, nil
}

// PostThread posts a threaded reply to a message.
func (p *Poster) PostThread(ctx context.Context, threadTS, text string) error {
	_, err := p.post(ctx, map[string]any{
		"channel":   p.channel,
		"thread_ts": threadTS,
		"text":      text,
	})
	return err
}

func (p *Poster) post(ctx context.Context, payload map[string]any) (string, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal slack payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.apiURL, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json; charset=utf-8")
	req.Header.Set("Authorization", "Bearer "+p.token)

	resp, err := p.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("slack post: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}

	var slackResp struct {
		OK    bool   `json:"ok"`
		TS    string `json:"ts"`
		Error string `json:"error,omitempty"`
	}
	if err := json.Unmarshal(respBody, &slackResp); err != nil {
		return "", fmt.Errorf("parse slack response: %w", err)
	}
	if !slackResp.OK {
		return "", fmt.Errorf("slack error: %s", slackResp.Error)
	}
	return slackResp.TS, nil
}

func formatTriageMessage(run *triage.Run) string {
	var sb strings.Builder

	c := run.Classification.Value
	r := run.Routing.Value

	fmt.Fprintf(&sb, "*Ticket:* %s", run.Ticket.ID)
	if run.Ticket.CustomerID != "" {
		fmt.Fprintf(&sb, " (customer %s)", run.Ticket.CustomerID)
	}
	sb.WriteString("\n")
	if r.VIPEscalation {
		fmt.Fprintf(&sb, ":rotating_light: *VIP escalation* (%s)\n", run.Ticket.VIPLevel)
	}
	fmt.Fprintf(&sb, "*Summary:* %s\n", c.Summary)
	fmt.Fprintf(&sb, "*Type:* %s | *Service:* %s | *Severity:* %s\n", c.TicketType, c.ServiceName(), c.Severity)
	fmt.Fprintf(&sb, "*Routed to:* %s at %s\n", r.Team, r.Priority)
	if r.Rationale != "" {
		fmt.Fprintf(&sb, "_%s_\n", r.Rationale)
	}
	fmt.Fprintf(&sb, "Sources: classify=%s, route=%s, reply=%s",
		run.Classification.Source, run.Routing.Source, run.Reply.Source)

	return sb.String()
}
