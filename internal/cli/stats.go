package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

func NewStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show knowledge collections and their sizes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := openRuntime()
			if err != nil {
				return err
			}
			defer rt.Close()

			stats, err := rt.container.KnowledgeService.Stats(cmd.Context())
			if err != nil {
				return fmt.Errorf("reading stats: %w", err)
			}

			out := cmd.OutOrStdout()
			color.New(color.FgCyan).Fprintf(out, "Backend: %s  Embeddings: %s\n\n", stats.Backend, stats.EmbeddingProvider)
			if len(stats.Collections) == 0 {
				fmt.Fprintln(out, "No collections yet. Run `chatctl seed` first.")
				return nil
			}
			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "COLLECTION\tITEMS\tDIMENSION")
			for _, c := range stats.Collections {
				fmt.Fprintf(w, "%s\t%d\t%d\n", c.Name, c.Count, c.Dimension)
			}
			return w.Flush()
		},
	}
}
