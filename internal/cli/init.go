package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"resumerag/config"
)

var initForce bool

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default rag.yaml",
	Long: `Write the effective configuration to rag.yaml in the root directory.
Edit the corpus section to point at your résumé and about page.`,
	Args: cobra.NoArgs,
	RunE: runInit,
}

func init() {
	rootCmd.AddCommand(initCmd)
	initCmd.Flags().BoolVarP(&initForce, "force", "f", false, "overwrite an existing rag.yaml")
}

func runInit(cmd *cobra.Command, args []string) error {
	path := filepath.Join(GetRootDir(), "rag.yaml")
	if _, err := os.Stat(path); err == nil && !initForce {
		return fmt.Errorf("%s already exists (use --force to overwrite)", path)
	}

	if err := config.EnsureRAGDir(GetRootDir()); err != nil {
		return fmt.Errorf("failed to create .rag directory: %w", err)
	}
	if err := GetConfig().Save(path); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", path)
	return nil
}
