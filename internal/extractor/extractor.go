// Package extractor recovers structured JSON from free-text model output.
package extractor

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"unicode/utf8"
)

// Completer is a text-completion backend: one prompt in, one string out.
// Implementations may be slow, non-deterministic and return malformed text.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// CompleterFunc adapts a plain function to Completer.
type CompleterFunc func(ctx context.Context, prompt string) (string, error)

func (f CompleterFunc) Complete(ctx context.Context, prompt string) (string, error) {
	return f(ctx, prompt)
}

// ExtractFirstJSON returns the span from the first '{' to the last '}' in text
// if that span is valid JSON. The match is greedy: two separate objects in the
// same text yield one invalid span and therefore no result.
func ExtractFirstJSON(text string) (json.RawMessage, bool) {
	start := strings.IndexByte(text, '{')
	if start < 0 {
		return nil, false
	}
	end := strings.LastIndexByte(text, '}')
	if end < start {
		return nil, false
	}
	span := text[start : end+1]
	if !json.Valid([]byte(span)) {
		return nil, false
	}
	return json.RawMessage(span), true
}

// Repairer asks the model once to rewrite malformed output as schema-shaped JSON.
type Repairer struct {
	llm    Completer
	logger *slog.Logger
}

func NewRepairer(llm Completer, logger *slog.Logger) *Repairer {
	return &Repairer{llm: llm, logger: logger}
}

// Repair makes exactly one completion call. A completion error is reported the
// same way as unparseable output.
func (r *Repairer) Repair(ctx context.Context, raw, schema string) (json.RawMessage, bool) {
	out, err := r.llm.Complete(ctx, BuildRepairPrompt(raw, schema))
	if err != nil {
		r.logger.Warn("repair completion failed", "error", err)
		return nil, false
	}

	obj, ok := ExtractFirstJSON(out)
	if !ok {
		r.logger.Warn("repair output has no JSON object", "raw", Snippet(out, 200))
	}
	return obj, ok
}

// Snippet shortens s to at most n bytes for log attributes, backing off to a
// rune boundary so the result stays valid UTF-8.
func Snippet(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n] + "…"
}
