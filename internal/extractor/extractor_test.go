package extractor

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"reflect"
	"strings"
	"testing"
	"unicode/utf8"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestExtractFirstJSON_RoundTrip(t *testing.T) {
	objects := []map[string]any{
		{},
		{"a": float64(1)},
		{"ticket_type": "incident", "entities": []any{"server", "api"}, "service": nil},
		{"nested": map[string]any{"deep": map[string]any{"x": "}{"}}},
		{"unicode": "résumé ✓", "flag": true},
	}

	for _, want := range objects {
		encoded, err := json.Marshal(want)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		raw, ok := ExtractFirstJSON("noise " + string(encoded) + " noise")
		if !ok {
			t.Fatalf("expected extraction for %s", encoded)
		}
		var got map[string]any
		if err := json.Unmarshal(raw, &got); err != nil {
			t.Fatalf("unmarshal extracted: %v", err)
		}
		if !reflect.DeepEqual(got, want) {
			t.Errorf("round trip mismatch: got %v, want %v", got, want)
		}
	}
}

func TestExtractFirstJSON_NoResult(t *testing.T) {
	tests := []struct {
		name string
		text string
	}{
		{"empty", ""},
		{"no braces", "no braces here"},
		{"only open", "{ unterminated"},
		{"reversed", "} then {"},
		{"invalid body", "{not json}"},
		// Greedy span covers both objects and the text between them.
		{"two objects", `prefix {"a":1} middle {"b":2} suffix`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw, ok := ExtractFirstJSON(tt.text)
			if ok || raw != nil {
				t.Errorf("expected no result, got %s", raw)
			}
		})
	}
}

func TestExtractFirstJSON_MarkdownFence(t *testing.T) {
	text := "Here you go:\n```json\n{\"team\": \"SRE\", \"priority\": \"P1\"}\n```\nLet me know!"

	raw, ok := ExtractFirstJSON(text)
	if !ok {
		t.Fatal("expected extraction from fenced block")
	}
	if string(raw) != `{"team": "SRE", "priority": "P1"}` {
		t.Errorf("unexpected span %s", raw)
	}
}

func TestRepair_Success(t *testing.T) {
	var calls int
	var gotPrompt string
	llm := CompleterFunc(func(_ context.Context, prompt string) (string, error) {
		calls++
		gotPrompt = prompt
		return `Sure! {"team":"IAM","priority":"P2","rationale":"login"}`, nil
	})

	r := NewRepairer(llm, discardLogger())
	raw, ok := r.Repair(context.Background(), "team: IAM, priority P2", "SCHEMA-DESC")
	if !ok {
		t.Fatal("expected repair to succeed")
	}
	if calls != 1 {
		t.Errorf("expected 1 completion call, got %d", calls)
	}
	if !strings.Contains(gotPrompt, "team: IAM, priority P2") || !strings.Contains(gotPrompt, "SCHEMA-DESC") {
		t.Errorf("repair prompt missing raw text or schema: %q", gotPrompt)
	}
	if !json.Valid(raw) {
		t.Errorf("expected valid JSON, got %s", raw)
	}
}

func TestRepair_StillMalformed(t *testing.T) {
	var calls int
	llm := CompleterFunc(func(context.Context, string) (string, error) {
		calls++
		return "I cannot produce JSON", nil
	})

	r := NewRepairer(llm, discardLogger())
	if _, ok := r.Repair(context.Background(), "garbage", "schema"); ok {
		t.Fatal("expected repair to fail")
	}
	if calls != 1 {
		t.Errorf("expected exactly 1 completion call, got %d", calls)
	}
}

func TestRepair_CompletionError(t *testing.T) {
	llm := CompleterFunc(func(context.Context, string) (string, error) {
		return "", errors.New("connection refused")
	})

	r := NewRepairer(llm, discardLogger())
	if _, ok := r.Repair(context.Background(), "garbage", "schema"); ok {
		t.Fatal("expected repair to fail on completion error")
	}
}

func TestSnippet(t *testing.T) {
	if got := Snippet("short", 10); got != "short" {
		t.Errorf("expected text within limit unchanged, got %q", got)
	}
	if got := Snippet("abcdef", 3); got != "abc…" {
		t.Errorf("expected abc…, got %q", got)
	}

	// "é" is two bytes; cutting at byte 2 would split it
	got := Snippet("héllo wörld", 2)
	if got != "h…" {
		t.Errorf("expected h…, got %q", got)
	}
	for _, s := range []string{"héllo wörld", "日本語のチケット", "🚀🚀🚀"} {
		for n := 0; n < len(s); n++ {
			if out := Snippet(s, n); !utf8.ValidString(out) {
				t.Errorf("Snippet(%q, %d) = %q is not valid UTF-8", s, n, out)
			}
		}
	}
}
