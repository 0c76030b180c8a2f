package slack

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
)

// ReactionEvent is the structure received from slack-forwarder via NATS.
type ReactionEvent struct {
	Reaction  string `json:"reaction"`
	UserID    string `json:"user_id"`
	Channel   string `json:"channel"`
	MessageTS string `json:"message_ts"`
}

// ReviewVerdict maps a Slack reaction to a routing review status.
type ReviewVerdict string

const (
	VerdictConfirmed ReviewVerdict = "confirmed"
	VerdictRejected  ReviewVerdict = "rejected"
	VerdictSkipped   ReviewVerdict = "skipped"
	VerdictUnknown   ReviewVerdict = "unknown"
)

// ParseReaction converts a Slack reaction emoji name to a review verdict.
// Skin-tone suffixes such as "+1::skin-tone-3" are ignored.
func ParseReaction(reaction string) ReviewVerdict {
	if i := strings.Index(reaction, "::"); i > 0 {
		reaction = reaction[:i]
	}
	switch reaction {
	case "+1", "thumbsup", "white_check_mark":
		return VerdictConfirmed
	case "-1", "thumbsdown", "x":
		return VerdictRejected
	case "shrug":
		return VerdictSkipped
	default:
		return VerdictUnknown
	}
}

// ParseReactionEvent parses a NATS message payload from slack-forwarder into a ReactionEvent.
func ParseReactionEvent(data []byte, logger *slog.Logger) (*ReactionEvent, error) {
	// slack-forwarder publishes events with the reaction fields in a metadata wrapper.
	var wrapper struct {
		Metadata map[string]string `json:"metadata"`
	}
	if err := json.Unmarshal(data, &wrapper); err != nil {
		return nil, fmt.Errorf("parse reaction wrapper: %w", err)
	}

	evt := &ReactionEvent{
		Reaction:  strings.Trim(wrapper.Metadata["text"], ":"),
		UserID:    wrapper.Metadata["user_id"],
		Channel:   wrapper.Metadata["channel_id"],
		MessageTS: wrapper.Metadata["message_ts"],
	}
	if evt.MessageTS == "" {
		return nil, fmt.Errorf("reaction event has no message_ts")
	}

	logger.Debug("reaction received", "reaction", evt.Reaction, "user_id", evt.UserID, "message_ts", evt.MessageTS)
	return evt, nil
}
