package llm

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/imkarma/crew/internal/config"
	"github.com/imkarma/crew/internal/errors"
)

type captured struct {
	path    string
	query   string
	headers http.Header
	body    map[string]any
}

func fakeServer(t *testing.T, status int, response string) (*httptest.Server, *captured) {
	t.Helper()
	c := &captured{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c.path = r.URL.Path
		c.query = r.URL.RawQuery
		c.headers = r.Header.Clone()
		data, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(data, &c.body)
		w.WriteHeader(status)
		_, _ = w.Write([]byte(response))
	}))
	t.Cleanup(srv.Close)
	return srv, c
}

func TestNew_MissingKey(t *testing.T) {
	_, err := New(config.Completion{Provider: "openai", APIKeyEnv: "CREW_TEST_UNSET_KEY"})
	if !stderrors.Is(err, errors.ErrMissingConfig) {
		t.Fatalf("expected ErrMissingConfig, got %v", err)
	}
	if !strings.Contains(err.Error(), "CREW_TEST_UNSET_KEY") {
		t.Errorf("error should name the env var: %v", err)
	}
}

func TestNew_AzureNeedsEndpoint(t *testing.T) {
	_, err := New(config.Completion{Provider: "azure", APIKey: "k", Deployment: "gpt-4o"})
	if !stderrors.Is(err, errors.ErrMissingConfig) {
		t.Fatalf("expected ErrMissingConfig, got %v", err)
	}
}

func TestNew_UnknownProvider(t *testing.T) {
	_, err := New(config.Completion{Provider: "llama", APIKey: "k"})
	if err == nil || !strings.Contains(err.Error(), "unsupported") {
		t.Fatalf("expected unsupported provider error, got %v", err)
	}
}

func TestComplete_Azure(t *testing.T) {
	srv, got := fakeServer(t, http.StatusOK, `{"choices":[{"message":{"content":"{\"ok\":true}"}}]}`)

	client, err := New(config.Completion{
		Provider:   "azure",
		Endpoint:   srv.URL + "/",
		Deployment: "gpt-4o",
		APIVersion: "2024-06-01",
		APIKey:     "secret",
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	resp, err := client.Complete(context.Background(), Request{System: "sys", User: "hi", JSON: true})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if resp.Output != `{"ok":true}` {
		t.Errorf("output: got %q", resp.Output)
	}
	if got.path != "/openai/deployments/gpt-4o/chat/completions" {
		t.Errorf("path: got %q", got.path)
	}
	if got.query != "api-version=2024-06-01" {
		t.Errorf("query: got %q", got.query)
	}
	if got.headers.Get("api-key") != "secret" {
		t.Errorf("api-key header missing")
	}
	msgs, _ := got.body["messages"].([]any)
	if len(msgs) != 2 {
		t.Fatalf("expected system+user messages, got %v", got.body["messages"])
	}
	if rf, _ := got.body["response_format"].(map[string]any); rf["type"] != "json_object" {
		t.Errorf("response_format: got %v", got.body["response_format"])
	}
}

func TestComplete_OpenAINoSystemPrompt(t *testing.T) {
	srv, got := fakeServer(t, http.StatusOK, `{"choices":[{"message":{"content":"hello"}}]}`)

	client, err := New(config.Completion{Provider: "openai", Model: "gpt-4o-mini", Endpoint: srv.URL, APIKey: "k"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	resp, err := client.Complete(context.Background(), Request{User: "hi"})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if resp.Output != "hello" {
		t.Errorf("output: got %q", resp.Output)
	}
	if got.path != "/v1/chat/completions" {
		t.Errorf("path: got %q", got.path)
	}
	if got.headers.Get("Authorization") != "Bearer k" {
		t.Errorf("authorization: got %q", got.headers.Get("Authorization"))
	}
	if got.body["model"] != "gpt-4o-mini" {
		t.Errorf("model: got %v", got.body["model"])
	}
	if _, ok := got.body["response_format"]; ok {
		t.Errorf("response_format should be absent for text requests")
	}
	if msgs, _ := got.body["messages"].([]any); len(msgs) != 1 {
		t.Errorf("expected only the user message, got %v", got.body["messages"])
	}
}

func TestComplete_Anthropic(t *testing.T) {
	srv, got := fakeServer(t, http.StatusOK, `{"content":[{"text":"answer"}]}`)

	client, err := New(config.Completion{Provider: "anthropic", Model: "claude-sonnet-4-5", Endpoint: srv.URL, APIKey: "k"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	resp, err := client.Complete(context.Background(), Request{System: "be brief", User: "q"})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if resp.Output != "answer" {
		t.Errorf("output: got %q", resp.Output)
	}
	if got.body["system"] != "be brief" {
		t.Errorf("system: got %v", got.body["system"])
	}
	if got.headers.Get("x-api-key") != "k" || got.headers.Get("anthropic-version") == "" {
		t.Errorf("anthropic headers missing: %v", got.headers)
	}
}

func TestComplete_Google(t *testing.T) {
	srv, got := fakeServer(t, http.StatusOK, `{"candidates":[{"content":{"parts":[{"text":"{}"}]}}]}`)

	client, err := New(config.Completion{Provider: "google", Model: "gemini-2.5-flash", Endpoint: srv.URL, APIKey: "k"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	resp, err := client.Complete(context.Background(), Request{System: "s", User: "u", JSON: true})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if resp.Output != "{}" {
		t.Errorf("output: got %q", resp.Output)
	}
	if got.path != "/v1beta/models/gemini-2.5-flash:generateContent" {
		t.Errorf("path: got %q", got.path)
	}
	gen, _ := got.body["generationConfig"].(map[string]any)
	if gen["responseMimeType"] != "application/json" {
		t.Errorf("generationConfig: got %v", gen)
	}
	if _, ok := got.body["systemInstruction"]; !ok {
		t.Errorf("systemInstruction missing")
	}
}

func TestComplete_NonOKIsTransportError(t *testing.T) {
	srv, _ := fakeServer(t, http.StatusTooManyRequests, `{"error":"rate limited"}`)

	client, _ := New(config.Completion{Provider: "openai", Endpoint: srv.URL, APIKey: "k"})
	_, err := client.Complete(context.Background(), Request{User: "hi"})
	if !stderrors.Is(err, errors.ErrTransport) {
		t.Fatalf("expected ErrTransport, got %v", err)
	}
	if !strings.Contains(err.Error(), "429") {
		t.Errorf("error should carry the status: %v", err)
	}
}

func TestComplete_UnreachableIsTransportError(t *testing.T) {
	srv, _ := fakeServer(t, http.StatusOK, `{}`)
	url := srv.URL
	srv.Close()

	client, _ := New(config.Completion{Provider: "google", Endpoint: url, APIKey: "super-secret-key"})
	_, err := client.Complete(context.Background(), Request{User: "hi"})
	if !stderrors.Is(err, errors.ErrTransport) {
		t.Fatalf("expected ErrTransport, got %v", err)
	}
	if strings.Contains(err.Error(), "super-secret-key") {
		t.Errorf("error leaks the api key: %v", err)
	}
}

func TestComplete_BadBodyIsParseError(t *testing.T) {
	srv, _ := fakeServer(t, http.StatusOK, `not json`)

	client, _ := New(config.Completion{Provider: "anthropic", Endpoint: srv.URL, APIKey: "k"})
	_, err := client.Complete(context.Background(), Request{User: "hi"})
	if !stderrors.Is(err, errors.ErrParse) {
		t.Fatalf("expected ErrParse, got %v", err)
	}
}

func TestEmbed_OpenAIOrdersByIndex(t *testing.T) {
	srv, got := fakeServer(t, http.StatusOK,
		`{"data":[{"index":1,"embedding":[0,1]},{"index":0,"embedding":[1,0]}]}`)

	emb, err := NewEmbedder(config.Embedding{Provider: "openai", Model: "text-embedding-3-small", Endpoint: srv.URL, APIKey: "k"})
	if err != nil {
		t.Fatalf("NewEmbedder: %v", err)
	}
	vecs, err := emb.Embed(context.Background(), []string{"first", "second"})
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if got.path != "/v1/embeddings" {
		t.Errorf("path: got %q", got.path)
	}
	if len(vecs) != 2 || vecs[0][0] != 1 || vecs[1][1] != 1 {
		t.Errorf("vectors out of order: %v", vecs)
	}
}

func TestEmbed_AzurePath(t *testing.T) {
	srv, got := fakeServer(t, http.StatusOK, `{"data":[{"index":0,"embedding":[0.5]}]}`)

	emb, err := NewEmbedder(config.Embedding{
		Provider:   "azure",
		Model:      "text-embedding-3-large",
		Endpoint:   srv.URL,
		APIVersion: "2024-06-01",
		APIKey:     "k",
	})
	if err != nil {
		t.Fatalf("NewEmbedder: %v", err)
	}
	if _, err := emb.Embed(context.Background(), []string{"x"}); err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if got.path != "/openai/deployments/text-embedding-3-large/embeddings" {
		t.Errorf("path: got %q", got.path)
	}
}

func TestEmbed_CountMismatch(t *testing.T) {
	srv, _ := fakeServer(t, http.StatusOK, `{"data":[{"index":0,"embedding":[1]}]}`)

	emb, _ := NewEmbedder(config.Embedding{Provider: "openai", Model: "m", Endpoint: srv.URL, APIKey: "k"})
	_, err := emb.Embed(context.Background(), []string{"a", "b"})
	if !stderrors.Is(err, errors.ErrParse) {
		t.Fatalf("expected ErrParse, got %v", err)
	}
}

func TestNewEmbedder_UnsupportedProvider(t *testing.T) {
	_, err := NewEmbedder(config.Embedding{Provider: "anthropic", Model: "m", APIKey: "k"})
	if err == nil {
		t.Fatal("expected error for anthropic embeddings")
	}
}
