package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	packQuery  string
	packDocs   []string
	packClient string
	packOutput string
)

var packCmd = &cobra.Command{
	Use:   "pack",
	Short: "Pack relevant context for LLM consumption",
	Long: `Retrieve and pack the passages for a question into the configured
character budget and write them as JSON.

Examples:
  resumerag pack -q "what is the current role?"
  resumerag pack -q "education" --doc resume -o context.json`,
	Args: cobra.NoArgs,
	RunE: runPack,
}

func init() {
	rootCmd.AddCommand(packCmd)
	addRetrieveFlags(packCmd, &packQuery, &packDocs, &packClient)
	packCmd.Flags().StringVarP(&packOutput, "output", "o", "", "output file (default: stdout)")
}

func runPack(cmd *cobra.Command, args []string) error {
	packed, err := retrieveContext(cmd.Context(), packQuery, packDocs, packClient)
	if err != nil {
		return describeError(err)
	}

	if packOutput == "" {
		return writeJSON(cmd.OutOrStdout(), packed)
	}

	f, err := os.Create(packOutput)
	if err != nil {
		return fmt.Errorf("failed to write output file: %w", err)
	}
	defer f.Close()
	if err := writeJSON(f, packed); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Context packed to: %s\n", packOutput)
	fmt.Fprintf(cmd.OutOrStdout(), "  Passages: %d\n", len(packed.Chunks))
	fmt.Fprintf(cmd.OutOrStdout(), "  Chars:    %d / %d\n", packed.UsedChars, packed.BudgetChars)
	return nil
}
