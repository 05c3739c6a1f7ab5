// Package llmtest provides scripted completion and embedding services for
// tests.
package llmtest

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
	"sync"
	"unicode"

	"github.com/imkarma/crew/internal/errors"
	"github.com/imkarma/crew/internal/llm"
)

// Reply is one scripted completion outcome.
type Reply struct {
	Output string
	Err    error
}

// Text is a successful reply.
func Text(s string) Reply { return Reply{Output: s} }

// Fail is a transport failure.
func Fail(msg string) Reply { return Reply{Err: errors.Wrap(errors.ErrTransport, msg)} }

// Client replays its script in order. Once the script is exhausted every
// call fails with ErrTransport. It records every request.
type Client struct {
	mu       sync.Mutex
	script   []Reply
	requests []llm.Request
	// Route, when set, answers instead of the script.
	Route func(req llm.Request) Reply
}

// New returns a client that replays replies.
func New(replies ...Reply) *Client {
	return &Client{script: replies}
}

// Complete implements llm.Client.
func (c *Client) Complete(ctx context.Context, req llm.Request) (*llm.Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.requests = append(c.requests, req)

	var r Reply
	switch {
	case c.Route != nil:
		r = c.Route(req)
	case len(c.script) > 0:
		r, c.script = c.script[0], c.script[1:]
	default:
		r = Fail("script exhausted")
	}
	if r.Err != nil {
		return nil, r.Err
	}
	return &llm.Response{Output: r.Output, Status: 200}, nil
}

// Requests returns a copy of the recorded requests.
func (c *Client) Requests() []llm.Request {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]llm.Request(nil), c.requests...)
}

// Calls returns the number of completions requested so far.
func (c *Client) Calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.requests)
}

// Embedder hashes words into a fixed number of buckets, so texts that share
// words get similar vectors.
type Embedder struct {
	Dim int
	Err error

	mu    sync.Mutex
	calls int
}

// Embed implements llm.Embedder.
func (e *Embedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	e.mu.Lock()
	e.calls++
	e.mu.Unlock()
	if e.Err != nil {
		return nil, e.Err
	}

	dim := e.Dim
	if dim == 0 {
		dim = 64
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = bagOfWords(t, dim)
	}
	return out, nil
}

// Calls returns the number of Embed calls.
func (e *Embedder) Calls() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.calls
}

func bagOfWords(text string, dim int) []float32 {
	v := make([]float32, dim)
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for _, w := range words {
		h := fnv.New32a()
		_, _ = h.Write([]byte(w))
		v[h.Sum32()%uint32(dim)]++
	}

	var norm float64
	for _, x := range v {
		norm += float64(x * x)
	}
	if norm == 0 {
		return v
	}
	n := float32(math.Sqrt(norm))
	for i := range v {
		v[i] /= n
	}
	return v
}

var (
	_ llm.Client   = (*Client)(nil)
	_ llm.Embedder = (*Embedder)(nil)
)
