package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"resumerag/internal/adapter/fs"
	"resumerag/internal/domain"
	"resumerag/internal/usecase"
)

var (
	ingestRebuild bool
	ingestSlug    string
	ingestTitle   string
	ingestFile    string
	ingestType    string
	ingestWeight  int
	ingestQuiet   bool
)

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Chunk, embed and store the corpus",
	Long: `Ingest every document listed in the corpus section of rag.yaml, or a
single file given with --slug, --title and --file.

Each document's chunks are replaced only after all of them were embedded.
Switching embedding model or dimension requires --rebuild.

Examples:
  resumerag ingest
  resumerag ingest --rebuild
  resumerag ingest --slug about --title "About" --file content/about.txt`,
	Args: cobra.NoArgs,
	RunE: runIngest,
}

func init() {
	rootCmd.AddCommand(ingestCmd)
	ingestCmd.Flags().BoolVar(&ingestRebuild, "rebuild", false, "clear the store before ingesting")
	ingestCmd.Flags().StringVar(&ingestSlug, "slug", "", "document slug for single-file ingest")
	ingestCmd.Flags().StringVar(&ingestTitle, "title", "", "document title for single-file ingest")
	ingestCmd.Flags().StringVar(&ingestFile, "file", "", "text or PDF file for single-file ingest")
	ingestCmd.Flags().StringVar(&ingestType, "type", "", "document type (default generic)")
	ingestCmd.Flags().IntVar(&ingestWeight, "weight", 0, "document weight (default 1)")
	ingestCmd.Flags().BoolVar(&ingestQuiet, "quiet", false, "hide the progress bar")
	ingestCmd.MarkFlagsRequiredTogether("slug", "title", "file")
}

func runIngest(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := cmd.Context()
	ingest := a.Ingester()
	if ingestRebuild {
		fmt.Println("Clearing existing index...")
		if err := ingest.Rebuild(ctx); err != nil {
			return fmt.Errorf("failed to clear index: %w", err)
		}
	} else if err := ingest.CheckSchema(ctx); err != nil {
		if errors.Is(err, usecase.ErrSchemaMismatch) {
			return fmt.Errorf("%w (run with --rebuild)", err)
		}
		return err
	}

	if !ingestQuiet {
		ingest.OnProgress(newProgress())
	}

	start := time.Now()
	var results []usecase.IngestResult
	if ingestFile != "" {
		var res usecase.IngestResult
		res, err = ingestSingle(ctx, ingest)
		if err == nil {
			results = append(results, res)
		}
	} else {
		fmt.Printf("Reading corpus from %s...\n", a.Config.CorpusRoot(a.Dir))
		results, err = ingest.IngestCorpus(ctx, a.Corpus())
	}

	printIngestResults(results)
	if err != nil {
		return fmt.Errorf("ingest failed: %w", err)
	}
	fmt.Printf("\nIngest complete in %s\n", formatDuration(time.Since(start)))
	return nil
}

func ingestSingle(ctx context.Context, ingest *usecase.IngestUseCase) (usecase.IngestResult, error) {
	body, err := fs.ReadDocumentFile(ingestFile)
	if err != nil {
		return usecase.IngestResult{}, fmt.Errorf("failed to read %s: %w", ingestFile, err)
	}
	return ingest.Ingest(ctx, domain.Document{
		Slug:   ingestSlug,
		Title:  ingestTitle,
		Body:   body,
		Type:   ingestType,
		Weight: ingestWeight,
	})
}

// newProgress draws one bar per document.
func newProgress() usecase.ProgressFunc {
	var (
		bar     *progressbar.ProgressBar
		current string
	)
	return func(slug string, done, total int) {
		if bar == nil || slug != current {
			current = slug
			bar = progressbar.NewOptions(total,
				progressbar.OptionEnableColorCodes(true),
				progressbar.OptionShowBytes(false),
				progressbar.OptionSetWidth(40),
				progressbar.OptionShowCount(),
				progressbar.OptionSetDescription(fmt.Sprintf("[cyan]Embedding %s[reset]", slug)),
				progressbar.OptionSetTheme(progressbar.Theme{
					Saucer:        "[green]=[reset]",
					SaucerHead:    "[green]>[reset]",
					SaucerPadding: " ",
					BarStart:      "[",
					BarEnd:        "]",
				}),
				progressbar.OptionOnCompletion(func() {
					fmt.Println()
				}),
			)
		}
		_ = bar.Set(done)
	}
}

func printIngestResults(results []usecase.IngestResult) {
	if len(results) == 0 {
		return
	}
	fmt.Printf("\nDocuments:\n")
	for _, r := range results {
		if r.Inserted == 0 {
			fmt.Printf("  %-12s skipped (empty)\n", r.Slug)
			continue
		}
		fmt.Printf("  %-12s id=%d chunks=%d\n", r.Slug, r.DocumentID, r.Inserted)
	}
}

// formatDuration formats a duration in a human-readable way.
func formatDuration(d time.Duration) string {
	if d < time.Second {
		return "<1s"
	}
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	if d < time.Hour {
		m := int(d.Minutes())
		s := int(d.Seconds()) % 60
		return fmt.Sprintf("%dm%ds", m, s)
	}
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	return fmt.Sprintf("%dh%dm", h, m)
}
