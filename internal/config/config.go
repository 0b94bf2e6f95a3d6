// Package config loads the agent configuration from YAML and the environment.
package config

import (
	"encoding/hex"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/ravituringworks/agency/pkg/runner"
)

// Config is the root configuration document.
type Config struct {
	Agent  AgentConfig  `koanf:"agent"`
	Saga   SagaConfig   `koanf:"saga"`
	LLM    LLMConfig    `koanf:"llm"`
	Memory MemoryConfig `koanf:"memory"`
	Store  StoreConfig  `koanf:"store"`
	Tools  ToolsConfig  `koanf:"tools"`
	Alerts AlertsConfig `koanf:"alerts"`
	HTTP   HTTPConfig   `koanf:"http"`
	Log    LogConfig    `koanf:"log"`
}

// AgentConfig tunes conversations.
type AgentConfig struct {
	Name         string `koanf:"name" default:"agency"`
	SystemPrompt string `koanf:"system_prompt"`
	MaxSteps     int    `koanf:"max_steps" default:"5" validate:"min=1"`
	MaxHistory   int    `koanf:"max_history" default:"20" validate:"min=1"`
}

// SagaConfig tunes saga retries.
type SagaConfig struct {
	BaseDelay  time.Duration `koanf:"base_delay" default:"100ms" validate:"min=0"`
	MaxRetries int           `koanf:"max_retries" default:"0" validate:"min=0"`
}

// LLMConfig points at an OpenAI-compatible endpoint. An empty BaseURL
// disables generation.
type LLMConfig struct {
	BaseURL        string        `koanf:"base_url" validate:"omitempty,url"`
	Model          string        `koanf:"model" default:"gpt-4o-mini"`
	EmbeddingModel string        `koanf:"embedding_model"`
	APIKey         string        `koanf:"api_key"`
	Timeout        time.Duration `koanf:"timeout" default:"60s"`
	Retries        int           `koanf:"retries" default:"2" validate:"min=0"`
}

// MemoryConfig configures the vector memory.
type MemoryConfig struct {
	Enabled       bool    `koanf:"enabled" default:"true"`
	Collection    string  `koanf:"collection" default:"agency-memories"`
	PersistPath   string  `koanf:"persist_path"`
	Limit         int     `koanf:"limit" default:"10" validate:"min=1"`
	MinSimilarity float32 `koanf:"min_similarity" validate:"min=0,max=1"`
	// Embedder is "hash" for the offline embedder or "llm" for the LLM endpoint.
	Embedder string `koanf:"embedder" default:"hash" validate:"oneof=hash llm"`
}

// StoreConfig selects where ledgers and conversations are kept.
type StoreConfig struct {
	Kind          string        `koanf:"kind" default:"memory" validate:"oneof=memory file redis"`
	Dir           string        `koanf:"dir" validate:"required_if=Kind file"`
	RedisAddr     string        `koanf:"redis_addr" validate:"required_if=Kind redis"`
	RedisPassword string        `koanf:"redis_password"`
	RedisDB       int           `koanf:"redis_db" validate:"min=0"`
	TTL           time.Duration `koanf:"ttl"`
	LockTTL       time.Duration `koanf:"lock_ttl" default:"30s"`
	// EncryptionKey is a hex encoded AES-256 key for stored ledgers.
	EncryptionKey string `koanf:"encryption_key" validate:"omitempty,len=64,hexadecimal"`
	// RedactKeys are metadata and result keys masked before ledgers are stored.
	RedactKeys []string `koanf:"redact_keys"`
}

// ToolsConfig configures tool execution.
type ToolsConfig struct {
	Enabled bool `koanf:"enabled" default:"true"`
	// Rate is tool calls per second; zero disables limiting.
	Rate  float64  `koanf:"rate" validate:"min=0"`
	Burst int      `koanf:"burst" default:"1" validate:"min=1"`
	Allow []string `koanf:"allow"`
	// ProcessFile is a YAML or JSON file of local commands exposed as tools.
	ProcessFile string `koanf:"process_file"`
	// MCPCommand starts an MCP server over stdio whose tools are added.
	MCPCommand string   `koanf:"mcp_command"`
	MCPArgs    []string `koanf:"mcp_args"`
}

// AlertsConfig enables RabbitMQ alerting when AMQPURL is set.
type AlertsConfig struct {
	AMQPURL string `koanf:"amqp_url" validate:"omitempty,url"`
	Queue   string `koanf:"queue" default:"agency.saga.alerts"`
}

// HTTPConfig configures the API server.
type HTTPConfig struct {
	Addr            string        `koanf:"addr" default:":8080" validate:"required"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout" default:"10s"`
}

// LogConfig configures the slog handler.
type LogConfig struct {
	Level  string `koanf:"level" default:"info" validate:"oneof=debug info warn warning error"`
	Format string `koanf:"format" default:"text" validate:"oneof=text json"`
}

var validate = validator.New()

// Validate checks the struct tags of every section.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// Runner maps the agent, memory and tools sections onto runner settings.
func (c *Config) Runner() runner.Config {
	cfg := runner.DefaultConfig()
	if c.Agent.SystemPrompt != "" {
		cfg.SystemPrompt = c.Agent.SystemPrompt
	}
	cfg.MaxSteps = c.Agent.MaxSteps
	cfg.MaxHistory = c.Agent.MaxHistory
	cfg.UseMemory = c.Memory.Enabled
	cfg.MemoryLimit = c.Memory.Limit
	cfg.UseTools = c.Tools.Enabled
	return cfg
}

// EncryptionKeyBytes decodes Store.EncryptionKey; nil when unset.
func (c *Config) EncryptionKeyBytes() ([]byte, error) {
	if c.Store.EncryptionKey == "" {
		return nil, nil
	}
	key, err := hex.DecodeString(c.Store.EncryptionKey)
	if err != nil {
		return nil, fmt.Errorf("invalid encryption key: %w", err)
	}
	return key, nil
}
