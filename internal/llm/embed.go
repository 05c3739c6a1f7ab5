package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"

	"github.com/imkarma/crew/internal/config"
	"github.com/imkarma/crew/internal/errors"
)

// HTTPEmbedder calls an embeddings endpoint.
type HTTPEmbedder struct {
	cfg    config.Embedding
	apiKey string
	client *http.Client
}

func newHTTPEmbedder(cfg config.Embedding, apiKey string) *HTTPEmbedder {
	return &HTTPEmbedder{
		cfg:    cfg,
		apiKey: apiKey,
		client: &http.Client{Timeout: config.Completion{}.DefaultTimeout()},
	}
}

// Embed returns one vector per input text.
func (e *HTTPEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	var (
		endpoint string
		headers  map[string]string
		body     = map[string]any{"input": texts}
	)
	switch e.cfg.Provider {
	case "azure":
		endpoint = fmt.Sprintf("%s/openai/deployments/%s/embeddings?api-version=%s",
			strings.TrimRight(e.cfg.Endpoint, "/"), url.PathEscape(e.cfg.Model), url.QueryEscape(e.cfg.APIVersion))
		headers = map[string]string{"api-key": e.apiKey}
	case "openai":
		base := openAIBaseURL
		if e.cfg.Endpoint != "" {
			base = strings.TrimRight(e.cfg.Endpoint, "/")
		}
		endpoint = base + "/v1/embeddings"
		headers = map[string]string{"Authorization": "Bearer " + e.apiKey}
		body["model"] = e.cfg.Model
	default:
		return nil, fmt.Errorf("embeddings are not supported for provider %s", e.cfg.Provider)
	}

	respBody, _, err := postJSON(ctx, e.client, endpoint, body, headers)
	if err != nil {
		return nil, err
	}

	var result struct {
		Data []struct {
			Index     int       `json:"index"`
			Embedding []float32 `json:"embedding"`
		} `json:"data"`
	}
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, errors.Wrap(errors.ErrParse, "parse embeddings: "+err.Error())
	}
	if len(result.Data) != len(texts) {
		return nil, errors.Wrapf(errors.ErrParse, "expected %d embeddings, got %d", len(texts), len(result.Data))
	}

	sort.Slice(result.Data, func(i, j int) bool { return result.Data[i].Index < result.Data[j].Index })
	vectors := make([][]float32, len(result.Data))
	for i, d := range result.Data {
		vectors[i] = d.Embedding
	}
	return vectors, nil
}
