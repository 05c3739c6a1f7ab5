package docqa

import (
	"context"
	"fmt"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rs/zerolog"

	"github.com/imkarma/crew/internal/errors"
	"github.com/imkarma/crew/internal/llm"
	"github.com/imkarma/crew/internal/store"
	"github.com/imkarma/crew/internal/worker"
)

// IndexFile is the database file inside the index directory.
const IndexFile = "index.db"

// Document is a named text to index.
type Document struct {
	Source string
	Text   string
}

// Hit is a retrieved chunk. Score is the cosine similarity to the query,
// higher is closer.
type Hit struct {
	Source string
	Seq    int
	Text   string
	Score  float64
}

// Options configure an Index.
type Options struct {
	Dir       string
	Embedder  llm.Embedder
	Splitter  Splitter
	BatchSize int
	Workers   int
	Logger    zerolog.Logger
}

// Index is a persistent vector store over document chunks. Similarity is
// computed by brute force over every stored chunk.
type Index struct {
	db       *store.Store
	embedder llm.Embedder
	splitter Splitter
	batch    int
	pool     *worker.Pool
	log      zerolog.Logger
}

// Open opens or creates the index in opts.Dir.
func Open(opts Options) (*Index, error) {
	if opts.Embedder == nil {
		return nil, errors.Wrap(errors.ErrMissingConfig, "index needs an embedder")
	}
	if opts.Splitter.Size <= 0 {
		return nil, fmt.Errorf("chunk size must be positive")
	}
	if err := os.MkdirAll(opts.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("create index dir: %w", err)
	}
	db, err := store.New(filepath.Join(opts.Dir, IndexFile))
	if err != nil {
		return nil, err
	}

	batch := opts.BatchSize
	if batch <= 0 {
		batch = 16
	}
	log := opts.Logger.With().Str("component", "docqa").Logger()
	return &Index{
		db:       db,
		embedder: opts.Embedder,
		splitter: opts.Splitter,
		batch:    batch,
		pool:     worker.NewPool(worker.PoolConfig{MaxWorkers: opts.Workers, Logger: log}),
		log:      log,
	}, nil
}

// Close closes the index database.
func (ix *Index) Close() error { return ix.db.Close() }

// Index chunks and embeds docs and stores them, replacing any chunks
// previously indexed for the same sources. It returns the number of chunks
// stored.
func (ix *Index) Index(ctx context.Context, docs []Document) (int, error) {
	var chunks []store.Chunk
	for _, d := range docs {
		for i, text := range ix.splitter.Split(d.Text) {
			chunks = append(chunks, store.Chunk{Source: d.Source, Seq: i, Text: text})
		}
	}
	if len(chunks) == 0 {
		return 0, nil
	}

	var jobs []worker.Job[[][]float32]
	for start := 0; start < len(chunks); start += ix.batch {
		end := min(start+ix.batch, len(chunks))
		texts := make([]string, 0, end-start)
		for _, c := range chunks[start:end] {
			texts = append(texts, c.Text)
		}
		jobs = append(jobs, worker.Job[[][]float32]{
			Name: fmt.Sprintf("embed %d-%d", start, end-1),
			Run: func(ctx context.Context) ([][]float32, error) {
				return ix.embedder.Embed(ctx, texts)
			},
		})
	}

	ix.log.Info().Int("documents", len(docs)).Int("chunks", len(chunks)).Int("batches", len(jobs)).Msg("embedding")
	results := worker.Run(ctx, ix.pool, jobs)
	if err := worker.FirstError(results); err != nil {
		return 0, fmt.Errorf("embedding chunks: %w", err)
	}

	i := 0
	for _, r := range results {
		for _, v := range r.Value {
			chunks[i].Embedding = v
			i++
		}
	}
	if i != len(chunks) {
		return 0, errors.Wrapf(errors.ErrParse, "got %d embeddings for %d chunks", i, len(chunks))
	}

	for _, d := range docs {
		if _, err := ix.db.DeleteSource(d.Source); err != nil {
			return 0, err
		}
	}
	if err := ix.db.InsertChunks(chunks); err != nil {
		return 0, err
	}
	return len(chunks), nil
}

// Search returns the k chunks most similar to query.
func (ix *Index) Search(ctx context.Context, query string, k int) ([]Hit, error) {
	hits, err := ix.SearchWithScore(ctx, query, k)
	for i := range hits {
		hits[i].Score = 0
	}
	return hits, err
}

// SearchWithScore returns the k chunks most similar to query with their
// cosine similarity, best first.
func (ix *Index) SearchWithScore(ctx context.Context, query string, k int) ([]Hit, error) {
	if k <= 0 {
		return nil, nil
	}
	vecs, err := ix.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}
	if len(vecs) != 1 {
		return nil, errors.Wrapf(errors.ErrParse, "got %d embeddings for the query", len(vecs))
	}
	q := vecs[0]

	chunks, err := ix.db.AllChunks()
	if err != nil {
		return nil, err
	}

	hits := make([]Hit, 0, len(chunks))
	for _, c := range chunks {
		hits = append(hits, Hit{Source: c.Source, Seq: c.Seq, Text: c.Text, Score: Cosine(q, c.Embedding)})
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
	if len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}

// Stats reports indexed sources and their chunk counts.
func (ix *Index) Stats() (map[string]int, error) { return ix.db.Sources() }

// Cosine returns the cosine similarity of a and b, or 0 when either is
// zero or their lengths differ.
func Cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

// textExts are the file types LoadDir indexes.
var textExts = map[string]bool{".md": true, ".markdown": true, ".txt": true, ".text": true}

// LoadDir reads every text, markdown and PDF file under dir. Sources are
// paths relative to dir; each PDF page becomes its own Document with source
// path#page.
func LoadDir(dir string) ([]Document, error) {
	var docs []Document
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != dir && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		ext := strings.ToLower(filepath.Ext(path))
		if !textExts[ext] && ext != ".pdf" {
			return nil
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			rel = path
		}
		rel = filepath.ToSlash(rel)
		if ext == ".pdf" {
			pages, err := loadPDF(path, rel)
			if err != nil {
				return err
			}
			docs = append(docs, pages...)
			return nil
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		docs = append(docs, Document{Source: rel, Text: string(data)})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", dir, err)
	}
	return docs, nil
}
