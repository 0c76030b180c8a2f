package main

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/MikeSquared-Agency/triage/internal/anthropic"
	"github.com/MikeSquared-Agency/triage/internal/config"
	"github.com/MikeSquared-Agency/triage/internal/ollama"
	"github.com/MikeSquared-Agency/triage/internal/ticket"
	"github.com/MikeSquared-Agency/triage/internal/triage"
)

func TestNewCompleter(t *testing.T) {
	c := config.Config{LLMProvider: config.ProviderNone}
	if got := newCompleter(c); got != nil {
		t.Errorf("expected nil completer for provider none, got %T", got)
	}

	c = config.Config{LLMProvider: config.ProviderOllama, OllamaModel: "llama2"}
	oc, ok := newCompleter(c).(*ollama.Client)
	if !ok {
		t.Fatal("expected ollama client")
	}
	if oc.Model() != "llama2" {
		t.Errorf("expected model llama2, got %s", oc.Model())
	}

	c = config.Config{LLMProvider: config.ProviderAnthropic, AnthropicAPIKey: "k", AnthropicModel: "m"}
	ac, ok := newCompleter(c).(*anthropic.Client)
	if !ok {
		t.Fatal("expected anthropic client")
	}
	if ac.Model() != "m" {
		t.Errorf("expected model m, got %s", ac.Model())
	}
}

func TestPrintRun(t *testing.T) {
	c := config.Config{LLMProvider: config.ProviderNone, Signature: "Barney", MinReplyWords: 20, MaxReplyWords: 200}
	run := newPipeline(c, nil).Run(context.Background(), ticket.Ticket{ID: "T001", Message: "Server down"})

	var buf bytes.Buffer
	if err := printRun(&buf, run); err != nil {
		t.Fatalf("printRun: %v", err)
	}
	out := buf.String()

	for _, want := range []string{
		"Ticket T001",
		"== Classification (heuristic) ==",
		`"service": "Availability"`,
		"== Routing (heuristic) ==",
		`"team": "SRE"`,
		"== Reply (template) ==",
		"Barney",
		triage.PromptVersion,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("expected output to contain %q, got:\n%s", want, out)
		}
	}
	if strings.Contains(out, "raw:") {
		t.Error("expected no raw lines for a heuristic-only run")
	}
}
