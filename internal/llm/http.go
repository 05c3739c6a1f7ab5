package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/imkarma/crew/internal/config"
	"github.com/imkarma/crew/internal/errors"
)

const (
	openAIBaseURL    = "https://api.openai.com"
	anthropicBaseURL = "https://api.anthropic.com"
	googleBaseURL    = "https://generativelanguage.googleapis.com"
)

// HTTPClient calls a provider's HTTP API directly.
type HTTPClient struct {
	cfg    config.Completion
	apiKey string
	client *http.Client
}

func newHTTPClient(cfg config.Completion, apiKey string) *HTTPClient {
	return &HTTPClient{
		cfg:    cfg,
		apiKey: apiKey,
		client: &http.Client{Timeout: cfg.DefaultTimeout()},
	}
}

// Provider returns the configured provider name.
func (c *HTTPClient) Provider() string { return c.cfg.Provider }

// Complete sends the request to the configured provider.
func (c *HTTPClient) Complete(ctx context.Context, req Request) (*Response, error) {
	start := time.Now()

	var (
		resp *Response
		err  error
	)
	switch c.cfg.Provider {
	case "azure":
		resp, err = c.completeAzure(ctx, req)
	case "openai":
		resp, err = c.completeOpenAI(ctx, req)
	case "anthropic":
		resp, err = c.completeAnthropic(ctx, req)
	case "google":
		resp, err = c.completeGoogle(ctx, req)
	default:
		return nil, fmt.Errorf("unsupported completion provider: %s", c.cfg.Provider)
	}
	if resp != nil {
		resp.Duration = time.Since(start)
	}
	return resp, err
}

// chatMessages builds the OpenAI-style message list shared by azure and openai.
func chatMessages(req Request) []map[string]string {
	msgs := make([]map[string]string, 0, 2)
	if req.System != "" {
		msgs = append(msgs, map[string]string{"role": "system", "content": req.System})
	}
	return append(msgs, map[string]string{"role": "user", "content": req.User})
}

func (c *HTTPClient) chatBody(req Request) map[string]any {
	body := map[string]any{
		"messages":    chatMessages(req),
		"max_tokens":  c.cfg.DefaultMaxTokens(),
		"temperature": c.cfg.Temperature,
	}
	if req.JSON {
		body["response_format"] = map[string]string{"type": "json_object"}
	}
	return body
}

// completeAzure handles Azure OpenAI deployments.
func (c *HTTPClient) completeAzure(ctx context.Context, req Request) (*Response, error) {
	endpoint := fmt.Sprintf("%s/openai/deployments/%s/chat/completions?api-version=%s",
		strings.TrimRight(c.cfg.Endpoint, "/"), url.PathEscape(c.cfg.Deployment), url.QueryEscape(c.cfg.APIVersion))

	respBody, status, err := c.post(ctx, endpoint, c.chatBody(req), map[string]string{"api-key": c.apiKey})
	if err != nil {
		return nil, err
	}
	return parseChatResponse(respBody, status)
}

// completeOpenAI handles OpenAI-compatible APIs (OpenAI, OpenRouter, local proxies).
func (c *HTTPClient) completeOpenAI(ctx context.Context, req Request) (*Response, error) {
	base := openAIBaseURL
	if c.cfg.Endpoint != "" {
		base = strings.TrimRight(c.cfg.Endpoint, "/")
	}
	body := c.chatBody(req)
	body["model"] = c.cfg.Model

	respBody, status, err := c.post(ctx, base+"/v1/chat/completions", body, map[string]string{"Authorization": "Bearer " + c.apiKey})
	if err != nil {
		return nil, err
	}
	return parseChatResponse(respBody, status)
}

func parseChatResponse(respBody []byte, status int) (*Response, error) {
	var result struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, errors.Wrap(errors.ErrParse, "parse response: "+err.Error())
	}

	output := ""
	if len(result.Choices) > 0 {
		output = result.Choices[0].Message.Content
	}
	return &Response{Output: output, Status: status}, nil
}

// completeAnthropic handles Anthropic's Messages API.
func (c *HTTPClient) completeAnthropic(ctx context.Context, req Request) (*Response, error) {
	base := anthropicBaseURL
	if c.cfg.Endpoint != "" {
		base = strings.TrimRight(c.cfg.Endpoint, "/")
	}
	body := map[string]any{
		"model":      c.cfg.Model,
		"max_tokens": c.cfg.DefaultMaxTokens(),
		"messages": []map[string]string{
			{"role": "user", "content": req.User},
		},
	}
	if req.System != "" {
		body["system"] = req.System
	}
	if c.cfg.Temperature > 0 {
		body["temperature"] = c.cfg.Temperature
	}

	respBody, status, err := c.post(ctx, base+"/v1/messages", body, map[string]string{
		"x-api-key":         c.apiKey,
		"anthropic-version": "2023-06-01",
	})
	if err != nil {
		return nil, err
	}

	var result struct {
		Content []struct {
			Text string `json:"text"`
		} `json:"content"`
	}
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, errors.Wrap(errors.ErrParse, "parse response: "+err.Error())
	}

	output := ""
	if len(result.Content) > 0 {
		output = result.Content[0].Text
	}
	return &Response{Output: output, Status: status}, nil
}

// completeGoogle handles Google's Generative AI API (Gemini).
func (c *HTTPClient) completeGoogle(ctx context.Context, req Request) (*Response, error) {
	model := c.cfg.Model
	if model == "" {
		model = "gemini-2.5-pro"
	}
	base := googleBaseURL
	if c.cfg.Endpoint != "" {
		base = strings.TrimRight(c.cfg.Endpoint, "/")
	}
	endpoint := fmt.Sprintf("%s/v1beta/models/%s:generateContent?key=%s", base, model, url.QueryEscape(c.apiKey))

	body := map[string]any{
		"contents": []map[string]any{
			{
				"role": "user",
				"parts": []map[string]string{
					{"text": req.User},
				},
			},
		},
	}
	if req.System != "" {
		body["systemInstruction"] = map[string]any{
			"parts": []map[string]string{{"text": req.System}},
		}
	}
	genCfg := map[string]any{"maxOutputTokens": c.cfg.DefaultMaxTokens()}
	if req.JSON {
		genCfg["responseMimeType"] = "application/json"
	}
	body["generationConfig"] = genCfg

	respBody, status, err := c.post(ctx, endpoint, body, nil)
	if err != nil {
		return nil, err
	}

	var result struct {
		Candidates []struct {
			Content struct {
				Parts []struct {
					Text string `json:"text"`
				} `json:"parts"`
			} `json:"content"`
		} `json:"candidates"`
	}
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, errors.Wrap(errors.ErrParse, "parse response: "+err.Error())
	}

	output := ""
	if len(result.Candidates) > 0 && len(result.Candidates[0].Content.Parts) > 0 {
		output = result.Candidates[0].Content.Parts[0].Text
	}
	return &Response{Output: output, Status: status}, nil
}

// post marshals body, sends it, and returns the response body. Network
// failures and non-200 statuses are reported as ErrTransport.
func (c *HTTPClient) post(ctx context.Context, endpoint string, body any, headers map[string]string) ([]byte, int, error) {
	return postJSON(ctx, c.client, endpoint, body, headers)
}

func postJSON(ctx context.Context, client *http.Client, endpoint string, body any, headers map[string]string) ([]byte, int, error) {
	jsonBody, err := json.Marshal(body)
	if err != nil {
		return nil, 0, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(jsonBody))
	if err != nil {
		return nil, 0, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		httpReq.Header.Set(k, v)
	}

	httpResp, err := client.Do(httpReq)
	if err != nil {
		return nil, 0, errors.Wrap(errors.ErrTransport, "API call failed: "+redactURL(err.Error()))
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, httpResp.StatusCode, errors.Wrap(errors.ErrTransport, "read response: "+err.Error())
	}

	if httpResp.StatusCode != http.StatusOK {
		return respBody, httpResp.StatusCode, errors.Wrapf(errors.ErrTransport,
			"API returned status %d: %s", httpResp.StatusCode, truncate(string(respBody), 512))
	}
	return respBody, httpResp.StatusCode, nil
}

// redactURL strips query strings from url errors so API keys passed as
// ?key= never reach logs.
func redactURL(msg string) string {
	if i := strings.Index(msg, "?"); i >= 0 {
		end := strings.IndexAny(msg[i:], "\": ")
		if end < 0 {
			return msg[:i]
		}
		return msg[:i] + msg[i+end:]
	}
	return msg
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
