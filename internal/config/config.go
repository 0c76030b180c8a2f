package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	ProviderOllama    = "ollama"
	ProviderAnthropic = "anthropic"
	// ProviderNone runs heuristics and the reply template only.
	ProviderNone = "none"
)

type Config struct {
	Port        int    `yaml:"port"`
	NatsURL     string `yaml:"nats_url"`
	NatsToken   string `yaml:"nats_token"`
	DatabaseURL string `yaml:"database_url"`
	LogLevel    string `yaml:"log_level"`

	LLMProvider     string        `yaml:"llm_provider"`
	LLMTimeout      time.Duration `yaml:"llm_timeout"`
	Temperature     float64       `yaml:"temperature"`
	AnthropicAPIKey string        `yaml:"anthropic_api_key"`
	AnthropicModel  string        `yaml:"anthropic_model"`
	OllamaURL       string        `yaml:"ollama_url"`
	OllamaModel     string        `yaml:"ollama_model"`

	Signature     string `yaml:"signature"`
	MinReplyWords int    `yaml:"min_reply_words"`
	MaxReplyWords int    `yaml:"max_reply_words"`

	SlackBotToken string   `yaml:"slack_bot_token"`
	SlackChannel  string   `yaml:"slack_channel"`
	APIToken      string   `yaml:"api_token"`
	KafkaBrokers  []string `yaml:"kafka_brokers"`
	KafkaTopic    string   `yaml:"kafka_topic"`
}

func defaults() Config {
	return Config{
		Port:           8760,
		LogLevel:       "info",
		LLMProvider:    ProviderOllama,
		LLMTimeout:     60 * time.Second,
		Temperature:    0.3,
		AnthropicModel: "claude-3-5-haiku-latest",
		OllamaURL:      "http://localhost:11434",
		OllamaModel:    "llama2",
		Signature:      "Barney",
		MinReplyWords:  20,
		MaxReplyWords:  200,
		KafkaTopic:     "support.ticket.triaged",
	}
}

// Load builds the configuration from defaults, then the YAML file named by
// TRIAGE_CONFIG (if set), then environment variables.
func Load() (Config, error) {
	cfg := defaults()

	if path := os.Getenv("TRIAGE_CONFIG"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}

	cfg.Port = envInt("TRIAGE_PORT", cfg.Port)
	cfg.NatsURL = envStr("NATS_URL", cfg.NatsURL)
	cfg.NatsToken = envStr("NATS_TOKEN", cfg.NatsToken)
	cfg.DatabaseURL = envStr("DATABASE_URL", cfg.DatabaseURL)
	cfg.LogLevel = envStr("LOG_LEVEL", cfg.LogLevel)

	cfg.LLMProvider = strings.ToLower(envStr("TRIAGE_LLM_PROVIDER", cfg.LLMProvider))
	cfg.LLMTimeout = envDuration("TRIAGE_LLM_TIMEOUT", cfg.LLMTimeout)
	cfg.Temperature = envFloat("TRIAGE_TEMPERATURE", cfg.Temperature)
	cfg.AnthropicAPIKey = envStr("ANTHROPIC_API_KEY", cfg.AnthropicAPIKey)
	cfg.AnthropicModel = envStr("TRIAGE_ANTHROPIC_MODEL", cfg.AnthropicModel)
	cfg.OllamaURL = envStr("OLLAMA_URL", cfg.OllamaURL)
	cfg.OllamaModel = envStr("OLLAMA_MODEL", cfg.OllamaModel)

	cfg.Signature = envStr("TRIAGE_SIGNATURE", cfg.Signature)
	cfg.MinReplyWords = envInt("TRIAGE_MIN_REPLY_WORDS", cfg.MinReplyWords)
	cfg.MaxReplyWords = envInt("TRIAGE_MAX_REPLY_WORDS", cfg.MaxReplyWords)

	cfg.SlackBotToken = envStr("SLACK_BOT_TOKEN", cfg.SlackBotToken)
	cfg.SlackChannel = envStr("SLACK_TRIAGE_CHANNEL", cfg.SlackChannel)
	cfg.APIToken = envStr("TRIAGE_API_TOKEN", cfg.APIToken)
	cfg.KafkaBrokers = envList("KAFKA_BROKERS", cfg.KafkaBrokers)
	cfg.KafkaTopic = envStr("KAFKA_TOPIC", cfg.KafkaTopic)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	switch c.LLMProvider {
	case ProviderOllama, ProviderNone:
	case ProviderAnthropic:
		if c.AnthropicAPIKey == "" {
			return fmt.Errorf("llm provider %q requires ANTHROPIC_API_KEY", c.LLMProvider)
		}
	default:
		return fmt.Errorf("unknown llm provider %q (want ollama, anthropic or none)", c.LLMProvider)
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Port)
	}
	if c.MinReplyWords > c.MaxReplyWords {
		return fmt.Errorf("min_reply_words %d exceeds max_reply_words %d", c.MinReplyWords, c.MaxReplyWords)
	}
	return nil
}

// Model names the configured completion model, empty for ProviderNone.
func (c Config) Model() string {
	switch c.LLMProvider {
	case ProviderAnthropic:
		return c.AnthropicModel
	case ProviderOllama:
		return c.OllamaModel
	}
	return ""
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func envList(key string, fallback []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
