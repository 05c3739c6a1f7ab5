// Package llm talks to chat completion and embedding services over HTTP.
//
// Supported providers are azure (Azure OpenAI deployments), openai,
// anthropic and google, plus cli, which spawns a local command such as
// `claude --print` or `ollama run llama3`. Embeddings are available for
// azure and openai.
package llm

import (
	"context"
	"fmt"
	"time"

	"github.com/imkarma/crew/internal/config"
	"github.com/imkarma/crew/internal/errors"
)

// Request is a single chat completion call.
type Request struct {
	System string // system prompt
	User   string // user message
	JSON   bool   // ask the provider for a JSON object response
}

// Response is what the completion service returned.
type Response struct {
	Output   string        // model text
	Status   int           // HTTP status code
	Duration time.Duration // wall time of the call
}

// Client completes prompts.
type Client interface {
	Complete(ctx context.Context, req Request) (*Response, error)
}

// Embedder turns texts into vectors. The result has one vector per input,
// in input order.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// New builds the client for the configured provider.
// A missing API key or Azure endpoint is reported as ErrMissingConfig.
func New(cfg config.Completion) (Client, error) {
	if cfg.Provider == "cli" {
		if cfg.Command == "" {
			return nil, errors.Wrap(errors.ErrMissingConfig, "completion: cli provider needs a command")
		}
		return NewCommandClient(cfg), nil
	}

	key := cfg.ResolveKey()
	if key == "" {
		name := cfg.APIKeyEnv
		if name == "" {
			name = "CREW_COMPLETION_API_KEY"
		}
		return nil, errors.Wrapf(errors.ErrMissingConfig, "completion: set %s", name)
	}

	switch cfg.Provider {
	case "azure":
		if cfg.Endpoint == "" {
			return nil, errors.Wrap(errors.ErrMissingConfig, "completion: azure needs an endpoint (AOAI_ENDPOINT)")
		}
		if cfg.Deployment == "" {
			return nil, errors.Wrap(errors.ErrMissingConfig, "completion: azure needs a deployment")
		}
	case "openai", "anthropic", "google":
	default:
		return nil, fmt.Errorf("unsupported completion provider: %s", cfg.Provider)
	}

	return newHTTPClient(cfg, key), nil
}

// NewEmbedder builds the embedding client. Only azure and openai expose an
// embeddings endpoint.
func NewEmbedder(cfg config.Embedding) (*HTTPEmbedder, error) {
	key := cfg.ResolveKey()
	if key == "" {
		return nil, errors.Wrapf(errors.ErrMissingConfig, "embedding: set %s", cfg.APIKeyEnv)
	}
	switch cfg.Provider {
	case "azure":
		if cfg.Endpoint == "" {
			return nil, errors.Wrap(errors.ErrMissingConfig, "embedding: azure needs an endpoint (AOAI_ENDPOINT)")
		}
	case "openai":
	default:
		return nil, fmt.Errorf("embeddings are not supported for provider %s", cfg.Provider)
	}
	if cfg.Model == "" {
		return nil, errors.Wrap(errors.ErrEmptyValue, "embedding: model is required")
	}
	return newHTTPEmbedder(cfg, key), nil
}
