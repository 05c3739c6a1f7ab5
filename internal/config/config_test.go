package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return path
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)

	def := DefaultConfig()
	assert.Equal(t, def.Completion.Provider, cfg.Completion.Provider)
	assert.Equal(t, 5*time.Second, cfg.Relay.PollInterval)
	assert.Equal(t, 300*time.Second, cfg.Relay.Timeout)
	assert.Equal(t, 500, cfg.DocQA.ChunkSize)
	assert.Equal(t, 100, cfg.DocQA.ChunkOverlap)
	assert.Equal(t, "\n\n", cfg.DocQA.Separator)
	assert.Equal(t, 25, cfg.Planner.MaxSteps)
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
version: 1
completion:
  provider: openai
  model: gpt-4o-mini
relay:
  backend: redis
  poll_interval: 2s
  timeout: 1m
docqa:
  chunk_size: 800
  chunk_overlap: 50
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "openai", cfg.Completion.Provider)
	assert.Equal(t, "gpt-4o-mini", cfg.Completion.Model)
	assert.Equal(t, "redis", cfg.Relay.Backend)
	assert.Equal(t, 2*time.Second, cfg.Relay.PollInterval)
	assert.Equal(t, time.Minute, cfg.Relay.Timeout)
	assert.Equal(t, 800, cfg.DocQA.ChunkSize)
	// Untouched sections keep their defaults.
	assert.Equal(t, "agent-communication", cfg.Relay.TopicPrefix)
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	t.Setenv("AOAI_ENDPOINT", "https://example.openai.azure.com")
	t.Setenv("AOAI_API_KEY", "test-key")
	t.Setenv("GCP_PROJECT_ID", "proj-1")
	t.Setenv("CREW_PLANNER_MAX_STEPS", "40")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "https://example.openai.azure.com", cfg.Completion.Endpoint)
	assert.Equal(t, "test-key", cfg.Completion.ResolveKey())
	assert.Equal(t, "proj-1", cfg.Relay.ProjectID)
	assert.Equal(t, 40, cfg.Planner.MaxSteps)
}

func TestLoad_CrewPrefixWinsOverAlias(t *testing.T) {
	t.Setenv("AOAI_ENDPOINT", "https://alias.example")
	t.Setenv("CREW_COMPLETION_ENDPOINT", "https://crew.example")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "https://crew.example", cfg.Completion.Endpoint)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"unknown provider", "completion:\n  provider: llama\n", "unsupported provider"},
		{"unknown backend", "relay:\n  backend: kafka\n", "unsupported backend"},
		{"overlap too big", "docqa:\n  chunk_size: 100\n  chunk_overlap: 100\n", "chunk_overlap"},
		{"timeout below poll", "relay:\n  poll_interval: 10s\n  timeout: 5s\n", "timeout"},
		{"zero steps", "planner:\n  max_steps: 0\n", "max_steps"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tc.body))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.want)
		})
	}
}

func TestSave_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	cfg := DefaultConfig()
	cfg.Completion.Provider = "anthropic"
	cfg.Completion.Model = "claude-sonnet-4-5"
	cfg.Completion.APIKey = "never-written"

	require.NoError(t, Save(path, cfg))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "never-written")

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "anthropic", loaded.Completion.Provider)
	assert.Equal(t, "claude-sonnet-4-5", loaded.Completion.Model)
	assert.Equal(t, cfg.Relay.PollInterval, loaded.Relay.PollInterval)
}

func TestCompletion_Defaults(t *testing.T) {
	var c Completion
	assert.Equal(t, 300*time.Second, c.DefaultTimeout())
	assert.Equal(t, 4096, c.DefaultMaxTokens())

	c.TimeoutSec = 30
	c.MaxTokens = 512
	assert.Equal(t, 30*time.Second, c.DefaultTimeout())
	assert.Equal(t, 512, c.DefaultMaxTokens())
}

func TestEmbedding_EffectiveInheritsCompletion(t *testing.T) {
	c := Completion{Provider: "azure", Endpoint: "https://e", APIVersion: "v1", APIKeyEnv: "K"}
	e := Embedding{Model: "text-embedding-3-large"}.Effective(c)

	assert.Equal(t, "azure", e.Provider)
	assert.Equal(t, "https://e", e.Endpoint)
	assert.Equal(t, "v1", e.APIVersion)
	assert.Equal(t, "K", e.APIKeyEnv)
	assert.Equal(t, 16, e.BatchSize)
	assert.Equal(t, 4, e.Workers)
}
