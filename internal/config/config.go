package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/jwebster45206/adventure-agent/internal/services"
	"github.com/jwebster45206/adventure-agent/pkg/autoplay"
	"github.com/jwebster45206/adventure-agent/pkg/game"
)

type Config struct {
	Port        string
	Environment string
	LogLevel    slog.Level
	LogFile     string
	RedisURL    string

	LLMProvider     string
	ModelName       string
	OllamaURL       string
	OpenAIBaseURL   string
	OpenAIAPIKey    string
	AnthropicAPIKey string
	GeminiAPIKey    string

	GameInterpreter   string
	GameFile          string
	GameSettleTimeout time.Duration

	TurnLogDB   string
	AgentConfig string
	Agent       autoplay.Options
}

// Load reads the environment and, when AGENT_CONFIG names a file, overlays
// its agent tuning on the defaults.
func Load() (*Config, error) {
	settle, err := time.ParseDuration(getEnv("GAME_SETTLE_TIMEOUT", "3s"))
	if err != nil {
		return nil, fmt.Errorf("invalid GAME_SETTLE_TIMEOUT: %w", err)
	}

	cfg := &Config{
		Port:        getEnv("PORT", "8080"),
		Environment: getEnv("ENVIRONMENT", "development"),
		LogLevel:    parseLogLevel(getEnv("LOG_LEVEL", "info")),
		LogFile:     getEnv("LOG_FILE", ""),
		RedisURL:    getEnv("REDIS_URL", "localhost:6379"),

		LLMProvider:     strings.ToLower(getEnv("LLM_PROVIDER", services.ProviderOllama)),
		ModelName:       getEnv("MODEL_NAME", "llama3.1"),
		OllamaURL:       getEnv("OLLAMA_URL", "http://localhost:11434"),
		OpenAIBaseURL:   getEnv("OPENAI_BASE_URL", ""),
		OpenAIAPIKey:    getEnv("OPENAI_API_KEY", ""),
		AnthropicAPIKey: getEnv("ANTHROPIC_API_KEY", ""),
		GeminiAPIKey:    getEnv("GEMINI_API_KEY", ""),

		GameInterpreter:   getEnv("GAME_INTERPRETER", "dfrotz"),
		GameFile:          getEnv("GAME_FILE", game.BuiltinPrefix+"house"),
		GameSettleTimeout: settle,

		TurnLogDB:   getEnv("TURN_LOG_DB", ""),
		AgentConfig: getEnv("AGENT_CONFIG", ""),
		Agent:       autoplay.DefaultOptions(),
	}

	if cfg.AgentConfig != "" {
		agent, err := LoadAgentOptions(cfg.AgentConfig)
		if err != nil {
			return nil, err
		}
		cfg.Agent = agent
	}
	return cfg, nil
}

// LoadAgentOptions reads a YAML tuning file. Keys it omits keep their defaults.
func LoadAgentOptions(path string) (autoplay.Options, error) {
	opts := autoplay.DefaultOptions()
	data, err := os.ReadFile(path)
	if err != nil {
		return opts, fmt.Errorf("failed to read agent config: %w", err)
	}
	if err := yaml.Unmarshal(data, &opts); err != nil {
		return opts, fmt.Errorf("failed to parse agent config %s: %w", path, err)
	}
	return opts, nil
}

// Validate checks that the selected provider has what it needs.
func (c *Config) Validate() error {
	switch c.LLMProvider {
	case services.ProviderOllama:
		if c.OllamaURL == "" {
			return fmt.Errorf("OLLAMA_URL is required for the ollama provider")
		}
	case services.ProviderOpenAI:
		// compatible local servers need no key
		if c.OpenAIBaseURL == "" && c.OpenAIAPIKey == "" {
			return fmt.Errorf("OPENAI_API_KEY is required when OPENAI_BASE_URL is not set")
		}
	case services.ProviderAnthropic:
		if c.AnthropicAPIKey == "" {
			return fmt.Errorf("ANTHROPIC_API_KEY is required for the anthropic provider")
		}
	case services.ProviderGemini:
		if c.GeminiAPIKey == "" {
			return fmt.Errorf("GEMINI_API_KEY is required for the gemini provider")
		}
	default:
		return fmt.Errorf("unsupported LLM_PROVIDER: %s", c.LLMProvider)
	}
	if c.ModelName == "" {
		return fmt.Errorf("MODEL_NAME is required")
	}
	if err := c.Agent.Validate(); err != nil {
		return fmt.Errorf("invalid agent config: %w", err)
	}
	return nil
}

func (c *Config) ProviderOptions() services.ProviderOptions {
	return services.ProviderOptions{
		Provider:     c.LLMProvider,
		ModelName:    c.ModelName,
		OllamaURL:    c.OllamaURL,
		OpenAIURL:    c.OpenAIBaseURL,
		OpenAIKey:    c.OpenAIAPIKey,
		AnthropicKey: c.AnthropicAPIKey,
		GeminiKey:    c.GeminiAPIKey,
	}
}

func (c *Config) GameOptions() game.Options {
	return game.Options{
		Interpreter:   c.GameInterpreter,
		SettleTimeout: c.GameSettleTimeout,
	}
}

func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
