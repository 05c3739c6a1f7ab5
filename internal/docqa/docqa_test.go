package docqa

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imkarma/crew/internal/agent"
	"github.com/imkarma/crew/internal/errors"
	"github.com/imkarma/crew/internal/llm/llmtest"
)

// --- Splitter tests ---

func TestSplitter_PacksParagraphs(t *testing.T) {
	s := Splitter{Separator: "\n\n", Size: 12, Overlap: 0}
	got := s.Split("aaaa\n\nbbbb\n\ncccc\n\ndddd")
	assert.Equal(t, []string{"aaaa\n\nbbbb", "cccc\n\ndddd"}, got)
}

func TestSplitter_Overlap(t *testing.T) {
	s := Splitter{Separator: " ", Size: 10, Overlap: 4}
	got := s.Split("one two three four five")
	assert.Equal(t, []string{"one two", "two three", "four five"}, got)
}

func TestSplitter_OversizedPiece(t *testing.T) {
	s := Splitter{Separator: "\n\n", Size: 5, Overlap: 0}
	got := s.Split("short\n\nthis piece is too long\n\nend")
	assert.Equal(t, []string{"short", "this piece is too long", "end"}, got)
}

func TestSplitter_CountsRunes(t *testing.T) {
	s := Splitter{Separator: "\n\n", Size: 5, Overlap: 0}
	got := s.Split("고용 전망\n\n좋음")
	assert.Equal(t, []string{"고용 전망", "좋음"}, got)
}

func TestSplitter_SkipsBlank(t *testing.T) {
	s := Splitter{Separator: "\n\n", Size: 100, Overlap: 10}
	assert.Empty(t, s.Split("\n\n\n\n  "))
}

// --- Index tests ---

func openIndex(t *testing.T, emb *llmtest.Embedder) *Index {
	t.Helper()
	ix, err := Open(Options{
		Dir:       t.TempDir(),
		Embedder:  emb,
		Splitter:  Splitter{Separator: "\n\n", Size: 60, Overlap: 0},
		BatchSize: 2,
		Workers:   3,
		Logger:    zerolog.Nop(),
	})
	require.NoError(t, err)
	t.Cleanup(func() { ix.Close() })
	return ix
}

var corpus = []Document{
	{Source: "jobs.md", Text: "Employment outlook for 2025 is stable.\n\nHiring in tech slows down."},
	{Source: "food.md", Text: "Kimchi is fermented cabbage.\n\nBibimbap mixes rice and vegetables."},
	{Source: "sport.md", Text: "Football season starts in spring."},
}

func TestIndex_SearchWithScore(t *testing.T) {
	emb := &llmtest.Embedder{}
	ix := openIndex(t, emb)

	n, err := ix.Index(context.Background(), corpus)
	require.NoError(t, err)
	assert.Equal(t, 5, n)
	assert.Equal(t, 3, emb.Calls(), "5 chunks in batches of 2")

	hits, err := ix.SearchWithScore(context.Background(), "employment outlook 2025", 2)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, "jobs.md", hits[0].Source)
	assert.Equal(t, 0, hits[0].Seq)
	assert.GreaterOrEqual(t, hits[0].Score, hits[1].Score)
	assert.Greater(t, hits[0].Score, 0.5)

	plain, err := ix.Search(context.Background(), "employment outlook 2025", 2)
	require.NoError(t, err)
	require.Len(t, plain, 2)
	assert.Equal(t, hits[0].Text, plain[0].Text)
	assert.Zero(t, plain[0].Score)
}

func TestIndex_ReindexReplacesSource(t *testing.T) {
	ix := openIndex(t, &llmtest.Embedder{})

	_, err := ix.Index(context.Background(), corpus)
	require.NoError(t, err)
	_, err = ix.Index(context.Background(), []Document{{Source: "jobs.md", Text: "Rewritten."}})
	require.NoError(t, err)

	stats, err := ix.Stats()
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"jobs.md": 1, "food.md": 2, "sport.md": 1}, stats)
}

func TestIndex_PersistsAcrossOpen(t *testing.T) {
	dir := t.TempDir()
	opts := Options{Dir: dir, Embedder: &llmtest.Embedder{}, Splitter: Splitter{Separator: "\n\n", Size: 100}}

	ix, err := Open(opts)
	require.NoError(t, err)
	_, err = ix.Index(context.Background(), corpus)
	require.NoError(t, err)
	require.NoError(t, ix.Close())

	assert.FileExists(t, filepath.Join(dir, IndexFile))

	ix, err = Open(opts)
	require.NoError(t, err)
	defer ix.Close()
	hits, err := ix.SearchWithScore(context.Background(), "kimchi cabbage", 1)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "food.md", hits[0].Source)
}

func TestIndex_EmbedFailure(t *testing.T) {
	ix := openIndex(t, &llmtest.Embedder{Err: errors.Wrap(errors.ErrTransport, "503")})

	_, err := ix.Index(context.Background(), corpus)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrTransport))

	stats, _ := ix.Stats()
	assert.Empty(t, stats, "nothing is stored when embedding fails")
}

func TestOpen_Validation(t *testing.T) {
	_, err := Open(Options{Dir: t.TempDir(), Splitter: Splitter{Size: 10}})
	assert.True(t, errors.Is(err, errors.ErrMissingConfig))

	_, err = Open(Options{Dir: t.TempDir(), Embedder: &llmtest.Embedder{}})
	assert.Error(t, err)
}

func TestCosine(t *testing.T) {
	assert.InDelta(t, 1.0, Cosine([]float32{1, 2}, []float32{2, 4}), 1e-9)
	assert.InDelta(t, 0.0, Cosine([]float32{1, 0}, []float32{0, 1}), 1e-9)
	assert.InDelta(t, -1.0, Cosine([]float32{1, 0}, []float32{-1, 0}), 1e-9)
	assert.Zero(t, Cosine([]float32{1}, []float32{1, 2}))
	assert.Zero(t, Cosine([]float32{0, 0}, []float32{1, 2}))
}

func TestLoadDir(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.md"), []byte("alpha"), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "sub"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "sub", "b.TXT"), []byte("beta"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "c.csv"), []byte("x,y"), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, ".crew"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".crew", "x.md"), []byte("hidden"), 0o644))

	docs, err := LoadDir(dir)
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, Document{Source: "a.md", Text: "alpha"}, docs[0])
	assert.Equal(t, Document{Source: "sub/b.TXT", Text: "beta"}, docs[1])
}

func TestLoadDir_PDFPages(t *testing.T) {
	data, err := os.ReadFile(filepath.Join("testdata", "report.pdf"))
	require.NoError(t, err)
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "reports"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "reports", "q1.pdf"), data, 0o644))

	docs, err := LoadDir(dir)
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, "reports/q1.pdf#1", docs[0].Source)
	assert.Contains(t, docs[0].Text, "Employment outlook for 2025 is stable.")
	assert.Equal(t, "reports/q1.pdf#2", docs[1].Source)
	assert.Contains(t, docs[1].Text, "Wages grew three percent.")
	assert.NotContains(t, docs[0].Text, "Wages")
}

func TestLoadDir_BrokenPDF(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "c.pdf"), []byte("%PDF"), 0o644))

	_, err := LoadDir(dir)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrParse))
	assert.Contains(t, err.Error(), "c.pdf")
}

// --- Answerer tests ---

type staticRetriever []Hit

func (r staticRetriever) SearchWithScore(context.Context, string, int) ([]Hit, error) {
	return r, nil
}

func TestAnswerer_Ask(t *testing.T) {
	c := llmtest.New(llmtest.Text("Stable, per jobs.md."))
	a := NewAnswerer(staticRetriever{{Source: "jobs.md", Text: "Employment outlook for 2025 is stable.", Score: 0.8}},
		agent.Deps{Client: c, Logger: zerolog.Nop()}, 4)

	s, err := a.Ask(context.Background(), "2025 고용 전망은 어떠한가?")
	require.NoError(t, err)
	assert.Equal(t, "Stable, per jobs.md.", s.Answer)
	assert.False(t, s.Degraded)
	require.Len(t, c.Requests(), 1)
	assert.True(t, strings.Contains(c.Requests()[0].User, "Employment outlook for 2025 is stable."))
}

func TestAnswerer_EndToEndWithIndex(t *testing.T) {
	ix := openIndex(t, &llmtest.Embedder{})
	_, err := ix.Index(context.Background(), corpus)
	require.NoError(t, err)

	c := llmtest.New(llmtest.Text("Fermented cabbage."))
	a := NewAnswerer(ix, agent.Deps{Client: c, Logger: zerolog.Nop()}, 1)

	s, err := a.Ask(context.Background(), "what is kimchi")
	require.NoError(t, err)
	require.Len(t, s.Hits, 1)
	assert.Equal(t, "food.md", s.Hits[0].Source)
	assert.Equal(t, "Fermented cabbage.", s.Answer)
}

func TestAnswerer_Degraded(t *testing.T) {
	a := NewAnswerer(staticRetriever{}, agent.Deps{Client: llmtest.New(), Logger: zerolog.Nop()}, 0)

	s, err := a.Ask(context.Background(), "anything")
	require.NoError(t, err)
	assert.True(t, s.Degraded)
	assert.Equal(t, agent.DefaultAnswer, s.Answer)
}

func TestAnswerer_EmptyQuestion(t *testing.T) {
	a := NewAnswerer(staticRetriever{}, agent.Deps{Client: llmtest.New()}, 1)
	_, err := a.Ask(context.Background(), "  ")
	assert.True(t, errors.Is(err, errors.ErrEmptyValue))
}
