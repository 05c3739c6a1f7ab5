package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/imkarma/crew/internal/docqa"
)

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Answer a question from the indexed documents",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runAsk,
}

var askSources bool

func init() {
	askCmd.Flags().BoolVarP(&askSources, "sources", "s", false, "Show the retrieved passages")
}

func runAsk(cmd *cobra.Command, args []string) error {
	question := strings.TrimSpace(strings.Join(args, " "))

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	deps, err := newDeps(cfg)
	if err != nil {
		return err
	}
	ix, err := openIndex(cfg)
	if err != nil {
		return err
	}
	defer ix.Close()

	ctx, cancel := signalContext()
	defer cancel()

	res, err := docqa.NewAnswerer(ix, deps, cfg.DocQA.TopK).Ask(ctx, question)
	if err != nil {
		return err
	}
	if len(res.Hits) == 0 {
		fmt.Printf("%sNothing indexed yet.%s Run: %screw index <dir>%s\n\n", colorYellow, colorReset, colorCyan, colorReset)
	}

	fmt.Println(renderMarkdown(res.Answer))
	if res.Degraded {
		fmt.Printf("\n%s⚠  The completion service failed:%s %v\n", colorYellow, colorReset, res.Cause)
	}

	if askSources {
		fmt.Printf("\n%sSources:%s\n", colorBold, colorReset)
		for _, h := range res.Hits {
			first, _, _ := strings.Cut(strings.TrimSpace(h.Text), "\n")
			fmt.Printf("  %s%s#%d%s %s(%.3f)%s %s\n", colorCyan, h.Source, h.Seq, colorReset, colorDim, h.Score, colorReset, truncate(first, 70))
		}
	}
	return nil
}
