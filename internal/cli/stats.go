package cli

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show document and chunk counts",
	Args:  cobra.NoArgs,
	RunE:  runStats,
}

func init() {
	rootCmd.AddCommand(statsCmd)
}

func runStats(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := cmd.Context()
	stats, err := a.Store.Stats(ctx)
	if err != nil {
		return fmt.Errorf("failed to read stats: %w", err)
	}
	info, err := a.Store.SchemaInfo(ctx)
	if err != nil {
		return fmt.Errorf("failed to read schema info: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Store:      %s (%s)\n", a.Config.StorePath(a.Dir), a.Config.Store.Driver)
	if info.EmbeddingModel != "" {
		fmt.Fprintf(out, "Model:      %s (dim %d, schema v%d)\n", info.EmbeddingModel, info.Dimension, info.Version)
	}
	fmt.Fprintf(out, "Documents:  %d\n", stats.Documents)
	fmt.Fprintf(out, "Chunks:     %d\n", stats.Chunks)

	slugs := make([]string, 0, len(stats.PerDoc))
	for s := range stats.PerDoc {
		slugs = append(slugs, s)
	}
	sort.Strings(slugs)
	for _, s := range slugs {
		fmt.Fprintf(out, "  %-12s %d chunks\n", s, stats.PerDoc[s])
	}
	return nil
}
