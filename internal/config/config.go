package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/imkarma/crew/internal/errors"
)

// Config is the root configuration for a crew project.
type Config struct {
	Version    int        `yaml:"version" mapstructure:"version"`
	Completion Completion `yaml:"completion" mapstructure:"completion"`
	Embedding  Embedding  `yaml:"embedding" mapstructure:"embedding"`
	Relay      Relay      `yaml:"relay" mapstructure:"relay"`
	Planner    Planner    `yaml:"planner" mapstructure:"planner"`
	DocQA      DocQA      `yaml:"docqa" mapstructure:"docqa"`
	Log        Log        `yaml:"log" mapstructure:"log"`
}

// Completion describes the chat completion service every agent talks to.
type Completion struct {
	Provider    string   `yaml:"provider" mapstructure:"provider"`                 // azure, openai, anthropic, google, cli
	Model       string   `yaml:"model,omitempty" mapstructure:"model"`             // model name (openai, anthropic, google)
	Endpoint    string   `yaml:"endpoint,omitempty" mapstructure:"endpoint"`       // base URL; required for azure
	Deployment  string   `yaml:"deployment,omitempty" mapstructure:"deployment"`   // azure deployment name
	APIVersion  string   `yaml:"api_version,omitempty" mapstructure:"api_version"` // azure api-version query value
	APIKeyEnv   string   `yaml:"api_key_env,omitempty" mapstructure:"api_key_env"` // env var holding the key
	APIKey      string   `yaml:"-" mapstructure:"api_key"`                         // only ever set from the environment
	Temperature float64  `yaml:"temperature,omitempty" mapstructure:"temperature"` // sampling temperature
	MaxTokens   int      `yaml:"max_tokens,omitempty" mapstructure:"max_tokens"`   // 0 = default 4096
	TimeoutSec  int      `yaml:"timeout_sec,omitempty" mapstructure:"timeout_sec"` // 0 = default 300
	Command     string   `yaml:"command,omitempty" mapstructure:"command"`         // cli provider: executable to spawn
	Args        []string `yaml:"args,omitempty" mapstructure:"args"`               // cli provider: arguments before the prompt
}

// Embedding describes the embedding service used by document Q&A.
type Embedding struct {
	Provider   string `yaml:"provider" mapstructure:"provider"`                 // azure or openai
	Model      string `yaml:"model,omitempty" mapstructure:"model"`             // embedding model or deployment
	Endpoint   string `yaml:"endpoint,omitempty" mapstructure:"endpoint"`       // defaults to completion endpoint
	APIVersion string `yaml:"api_version,omitempty" mapstructure:"api_version"` // defaults to completion api_version
	APIKeyEnv  string `yaml:"api_key_env,omitempty" mapstructure:"api_key_env"` // defaults to completion api_key_env
	APIKey     string `yaml:"-" mapstructure:"api_key"`
	BatchSize  int    `yaml:"batch_size,omitempty" mapstructure:"batch_size"` // texts per request
	Workers    int    `yaml:"workers,omitempty" mapstructure:"workers"`       // parallel embedding requests
}

// Relay configures the agent-to-agent message bus.
type Relay struct {
	Backend      string        `yaml:"backend" mapstructure:"backend"`                 // memory or redis
	ProjectID    string        `yaml:"project_id,omitempty" mapstructure:"project_id"` // namespace for topics
	TopicPrefix  string        `yaml:"topic_prefix" mapstructure:"topic_prefix"`       // topic = <prefix>-<agent>
	RedisAddr    string        `yaml:"redis_addr,omitempty" mapstructure:"redis_addr"` // host:port for the redis backend
	PollInterval time.Duration `yaml:"poll_interval" mapstructure:"poll_interval"`     // orchestrator result polling
	Timeout      time.Duration `yaml:"timeout" mapstructure:"timeout"`                 // orchestrator overall wait
}

// Planner configures the planning pipeline.
type Planner struct {
	MaxSteps     int    `yaml:"max_steps" mapstructure:"max_steps"`         // graph step budget
	HistoryLimit int    `yaml:"history_limit" mapstructure:"history_limit"` // entries visible to agents
	ExportDir    string `yaml:"export_dir" mapstructure:"export_dir"`       // where exported plans go
}

// DocQA configures chunking and retrieval.
type DocQA struct {
	IndexDir     string `yaml:"index_dir" mapstructure:"index_dir"`
	Separator    string `yaml:"separator" mapstructure:"separator"`
	ChunkSize    int    `yaml:"chunk_size" mapstructure:"chunk_size"`
	ChunkOverlap int    `yaml:"chunk_overlap" mapstructure:"chunk_overlap"`
	TopK         int    `yaml:"top_k" mapstructure:"top_k"`
}

// Log configures the rotating log file.
type Log struct {
	Dir        string `yaml:"dir" mapstructure:"dir"`
	MaxSizeMB  int    `yaml:"max_size_mb,omitempty" mapstructure:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups,omitempty" mapstructure:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days,omitempty" mapstructure:"max_age_days"`
}

// DefaultTimeout returns the effective request timeout for the completion service.
func (c Completion) DefaultTimeout() time.Duration {
	if c.TimeoutSec > 0 {
		return time.Duration(c.TimeoutSec) * time.Second
	}
	return 300 * time.Second
}

// DefaultMaxTokens returns the effective response token cap.
func (c Completion) DefaultMaxTokens() int {
	if c.MaxTokens > 0 {
		return c.MaxTokens
	}
	return 4096
}

// ResolveKey returns the API key, reading APIKeyEnv when no key was injected.
func (c Completion) ResolveKey() string {
	if c.APIKey != "" {
		return c.APIKey
	}
	if c.APIKeyEnv != "" {
		return os.Getenv(c.APIKeyEnv)
	}
	return ""
}

// Effective fills unset embedding connection fields from the completion section.
func (e Embedding) Effective(c Completion) Embedding {
	if e.Provider == "" {
		e.Provider = c.Provider
	}
	if e.Endpoint == "" {
		e.Endpoint = c.Endpoint
	}
	if e.APIVersion == "" {
		e.APIVersion = c.APIVersion
	}
	if e.APIKeyEnv == "" {
		e.APIKeyEnv = c.APIKeyEnv
	}
	if e.APIKey == "" {
		e.APIKey = c.APIKey
	}
	if e.BatchSize <= 0 {
		e.BatchSize = 16
	}
	if e.Workers <= 0 {
		e.Workers = 4
	}
	return e
}

// ResolveKey returns the embedding API key.
func (e Embedding) ResolveKey() string {
	if e.APIKey != "" {
		return e.APIKey
	}
	if e.APIKeyEnv != "" {
		return os.Getenv(e.APIKeyEnv)
	}
	return ""
}

// Save writes the config to the given path.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	return os.WriteFile(path, data, 0644)
}

// DefaultConfig returns the starter config written by `crew init`.
func DefaultConfig() *Config {
	return &Config{
		Version: 1,
		Completion: Completion{
			Provider:    "azure",
			Deployment:  "gpt-4o",
			APIVersion:  "2024-06-01",
			APIKeyEnv:   "AOAI_API_KEY",
			Temperature: 0.7,
		},
		Embedding: Embedding{
			Model:     "text-embedding-3-large",
			BatchSize: 16,
			Workers:   4,
		},
		Relay: Relay{
			Backend:      "memory",
			TopicPrefix:  "agent-communication",
			RedisAddr:    "localhost:6379",
			PollInterval: 5 * time.Second,
			Timeout:      300 * time.Second,
		},
		Planner: Planner{
			MaxSteps:     25,
			HistoryLimit: 5,
			ExportDir:    ".",
		},
		DocQA: DocQA{
			IndexDir:     ".crew/index",
			Separator:    "\n\n",
			ChunkSize:    500,
			ChunkOverlap: 100,
			TopK:         4,
		},
		Log: Log{
			Dir: ".crew/logs",
		},
	}
}

// Validate checks the loaded configuration for values that would make a
// pipeline fail later in a confusing way.
func Validate(c *Config) error {
	if c == nil {
		return errors.Wrap(errors.ErrEmptyValue, "config is nil")
	}
	switch c.Completion.Provider {
	case "azure":
		// Endpoint is checked when a client is built so `crew init` and
		// offline commands work without credentials.
	case "openai", "anthropic", "google":
	case "cli":
		if c.Completion.Command == "" {
			return fmt.Errorf("completion: command is required for the cli provider")
		}
	default:
		return fmt.Errorf("completion: unsupported provider %q", c.Completion.Provider)
	}
	switch c.Relay.Backend {
	case "memory", "redis":
	default:
		return fmt.Errorf("relay: unsupported backend %q", c.Relay.Backend)
	}
	if c.Relay.PollInterval <= 0 {
		return fmt.Errorf("relay: poll_interval must be positive")
	}
	if c.Relay.Timeout < c.Relay.PollInterval {
		return fmt.Errorf("relay: timeout must be at least poll_interval")
	}
	if c.Planner.MaxSteps <= 0 {
		return fmt.Errorf("planner: max_steps must be positive")
	}
	if c.DocQA.ChunkSize <= 0 {
		return fmt.Errorf("docqa: chunk_size must be positive")
	}
	if c.DocQA.ChunkOverlap < 0 || c.DocQA.ChunkOverlap >= c.DocQA.ChunkSize {
		return fmt.Errorf("docqa: chunk_overlap must be in [0, chunk_size)")
	}
	return nil
}
