package cli

import (
	"fmt"
	"sort"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/imkarma/crew/internal/config"
	"github.com/imkarma/crew/internal/docqa"
	"github.com/imkarma/crew/internal/llm"
)

var indexCmd = &cobra.Command{
	Use:   "index [dir]",
	Short: "Index text, markdown and PDF documents for crew ask",
	Long: `Splits every .md, .txt and .pdf file under dir into chunks, embeds them
and stores them in docqa.index_dir. Each PDF page is indexed on its own with
source file.pdf#page. Re-indexing a file replaces its chunks.`,
	Args: cobra.ExactArgs(1),
	RunE: runIndex,
}

var indexStats bool

func init() {
	indexCmd.Flags().BoolVar(&indexStats, "stats", false, "Only show what is indexed")
}

func runIndex(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	ix, err := openIndex(cfg)
	if err != nil {
		return err
	}
	defer ix.Close()

	if !indexStats {
		docs, err := docqa.LoadDir(args[0])
		if err != nil {
			return err
		}
		if len(docs) == 0 {
			return fmt.Errorf("no .md, .txt or .pdf files found in %s", args[0])
		}
		fmt.Printf("Indexing %d document(s) from %s\n", len(docs), args[0])

		ctx, cancel := signalContext()
		defer cancel()
		n, err := ix.Index(ctx, docs)
		if err != nil {
			return fmt.Errorf("index: %w", err)
		}
		fmt.Printf("%s✓%s Stored %d chunk(s)\n\n", colorGreen, colorReset, n)
	}

	stats, err := ix.Stats()
	if err != nil {
		return err
	}
	sources := make([]string, 0, len(stats))
	for src := range stats {
		sources = append(sources, src)
	}
	sort.Strings(sources)
	fmt.Printf("%sIndex: %d source(s)%s\n", colorBold, len(sources), colorReset)
	for _, src := range sources {
		fmt.Printf("  %-50s %s%d chunks%s\n", truncate(src, 50), colorDim, stats[src], colorReset)
	}
	return nil
}

// openIndex opens the vector index with the configured embedder.
func openIndex(cfg *config.Config) (*docqa.Index, error) {
	eff := cfg.Embedding.Effective(cfg.Completion)
	emb, err := llm.NewEmbedder(eff)
	if err != nil {
		return nil, err
	}
	return docqa.Open(docqa.Options{
		Dir:      cfg.DocQA.IndexDir,
		Embedder: emb,
		Splitter: docqa.Splitter{
			Separator: cfg.DocQA.Separator,
			Size:      cfg.DocQA.ChunkSize,
			Overlap:   cfg.DocQA.ChunkOverlap,
		},
		BatchSize: eff.BatchSize,
		Workers:   eff.Workers,
		Logger:    log.Logger,
	})
}
