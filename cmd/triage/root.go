package main

import (
	"errors"
	"io"
	"io/fs"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/MikeSquared-Agency/triage/internal/anthropic"
	"github.com/MikeSquared-Agency/triage/internal/config"
	"github.com/MikeSquared-Agency/triage/internal/extractor"
	"github.com/MikeSquared-Agency/triage/internal/metrics"
	"github.com/MikeSquared-Agency/triage/internal/ollama"
	"github.com/MikeSquared-Agency/triage/internal/triage"
)

var (
	envFile  string
	logLevel string
	provider string

	cfg config.Config
)

var rootCmd = &cobra.Command{
	Use:   "triage",
	Short: "Support ticket triage: classify, route and draft a reply",
	Long: `triage classifies customer support tickets, routes them to a team and
priority, and drafts a customer reply. Every stage falls back to deterministic
heuristics when the language model is unavailable or returns unusable output.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return err
		}
		loaded, err := config.Load()
		if err != nil {
			return err
		}
		if logLevel != "" {
			loaded.LogLevel = logLevel
		}
		if provider != "" {
			loaded.LLMProvider = provider
			if err := loaded.Validate(); err != nil {
				return err
			}
		}
		cfg = loaded
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file loaded before the environment is read")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level override (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&provider, "provider", "", "completion provider override (ollama, anthropic, none)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(batchCmd)
	rootCmd.SetErr(os.Stderr)
}

func setupLogging(level string, w io.Writer) {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{Level: lvl})
	slog.SetDefault(slog.New(handler))
}

// newCompleter constructs the configured provider once per process. It
// returns nil for the "none" provider.
func newCompleter(c config.Config) extractor.Completer {
	switch c.LLMProvider {
	case config.ProviderAnthropic:
		client := anthropic.NewClient(c.AnthropicAPIKey, c.AnthropicModel)
		client.SetTemperature(c.Temperature)
		client.SetTimeout(c.LLMTimeout)
		slog.Info("anthropic client ready", "model", client.Model())
		return client
	case config.ProviderOllama:
		client := ollama.NewClient(c.OllamaURL, c.OllamaModel, c.Temperature, c.LLMTimeout)
		slog.Info("ollama client ready", "url", c.OllamaURL, "model", client.Model())
		return client
	default:
		slog.Warn("no completion provider configured, running heuristics only")
		return nil
	}
}

func pipelineOptions(c config.Config, m *metrics.Metrics) triage.Options {
	return triage.Options{
		Signature:     c.Signature,
		MinReplyWords: c.MinReplyWords,
		MaxReplyWords: c.MaxReplyWords,
		Metrics:       m,
	}
}

func newPipeline(c config.Config, m *metrics.Metrics) *triage.Pipeline {
	return triage.New(newCompleter(c), pipelineOptions(c, m), slog.Default())
}
