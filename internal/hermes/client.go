package hermes

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
)

const (
	// SubjectTicketCreated carries new tickets from the helpdesk.
	SubjectTicketCreated = "support.ticket.created"
	// SubjectTicketTriaged is published once per triaged ticket.
	SubjectTicketTriaged = "support.ticket.triaged"
	// SubjectTriageFeedback carries reviewer verdicts on a routing decision.
	SubjectTriageFeedback = "support.triage.feedback"
	// SubjectSlackReaction is published by slack-forwarder for every reaction.
	SubjectSlackReaction = "swarm.slack.reaction"
)

// TicketEvent is the payload of support.ticket.created.
type TicketEvent struct {
	TicketID   string `json:"ticket_id"`
	Message    string `json:"message"`
	CustomerID string `json:"customer_id,omitempty"`
	VIPLevel   string `json:"vip_level,omitempty"`
}

// TriagedEvent is the payload of support.ticket.triaged.
type TriagedEvent struct {
	RunID          string    `json:"run_id"`
	TicketID       string    `json:"ticket_id"`
	CustomerID     string    `json:"customer_id,omitempty"`
	TicketType     string    `json:"ticket_type"`
	Service        string    `json:"service"`
	Severity       string    `json:"severity"`
	Summary        string    `json:"summary"`
	Team           string    `json:"team"`
	Priority       string    `json:"priority"`
	VIPEscalation  bool      `json:"vip_escalation"`
	Reply          string    `json:"reply"`
	ClassifySource string    `json:"classify_source"`
	RouteSource    string    `json:"route_source"`
	ReplySource    string    `json:"reply_source"`
	PromptVersion  string    `json:"prompt_version"`
	TriagedAt      time.Time `json:"triaged_at"`
}

// FeedbackEvent is emitted when a reviewer confirms or rejects a routing,
// so routing prompts can be tuned against human verdicts.
type FeedbackEvent struct {
	RunID       string `json:"run_id"`
	TicketID    string `json:"ticket_id"`
	Verdict     string `json:"verdict"`
	Team        string `json:"team"`
	Priority    string `json:"priority"`
	RouteSource string `json:"route_source"`
	ReviewerID  string `json:"reviewer_id,omitempty"`
}

type Client struct {
	conn   *nats.Conn
	subs   []*nats.Subscription
	logger *slog.Logger
}

func NewClient(ctx context.Context, url, token string, logger *slog.Logger) (*Client, error) {
	opts := []nats.Option{
		nats.Name("triage"),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(60),
		nats.ReconnectWait(2 * time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("nats disconnected", "error", err)
			}
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			logger.Info("nats reconnected")
		}),
	}
	if token != "" {
		opts = append(opts, nats.Token(token))
	}

	nc, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}

	return &Client{conn: nc, logger: logger}, nil
}

func (c *Client) Publish(subject string, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	return c.conn.Publish(subject, payload)
}

func (c *Client) Subscribe(subject string, handler func(subject string, data []byte)) error {
	sub, err := c.conn.Subscribe(subject, func(msg *nats.Msg) {
		handler(msg.Subject, msg.Data)
	})
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", subject, err)
	}
	c.subs = append(c.subs, sub)
	c.logger.Info("subscribed", "subject", subject)
	return nil
}

// Connected reports whether the underlying connection is currently up.
func (c *Client) Connected() bool {
	return c.conn.IsConnected()
}

func (c *Client) Close() {
	for _, sub := range c.subs {
		_ = sub.Unsubscribe()
	}
	c.conn.Close()
}
