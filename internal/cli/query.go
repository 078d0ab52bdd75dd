package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"resumerag/internal/domain"
)

var (
	queryText   string
	queryDocs   []string
	queryClient string
	queryJSON   bool
)

var queryCmd = &cobra.Command{
	Use:   "query",
	Short: "Retrieve the passages that answer a question",
	Long: `Embed the question, search each requested document, expand the best
hits into neighbouring chunks and print the packed result, most similar first.

Examples:
  resumerag query -q "which databases has this person used?"
  resumerag query -q "hobbies" --doc about --json`,
	Args: cobra.NoArgs,
	RunE: runQuery,
}

func init() {
	rootCmd.AddCommand(queryCmd)
	addRetrieveFlags(queryCmd, &queryText, &queryDocs, &queryClient)
	queryCmd.Flags().BoolVar(&queryJSON, "json", false, "output as JSON")
}

// addRetrieveFlags registers the flags shared by every retrieving command.
func addRetrieveFlags(cmd *cobra.Command, query *string, docs *[]string, client *string) {
	cmd.Flags().StringVarP(query, "query", "q", "", "question (required)")
	cmd.Flags().StringArrayVar(docs, "doc", nil, "restrict to a document slug (repeatable)")
	cmd.Flags().StringVar(client, "client", "", "client id for rate limiting (default: not limited)")
	_ = cmd.MarkFlagRequired("query")
}

func retrieveContext(ctx context.Context, query string, docs []string, client string) (domain.PackedContext, error) {
	a, err := openApp()
	if err != nil {
		return domain.PackedContext{}, err
	}
	defer a.Close()

	return a.Retriever().Context(ctx, docs, query, client)
}

func runQuery(cmd *cobra.Command, args []string) error {
	packed, err := retrieveContext(cmd.Context(), queryText, queryDocs, queryClient)
	out := cmd.OutOrStdout()
	if err != nil {
		if queryJSON {
			_ = writeJSON(out, errorEnvelope(err))
		}
		return describeError(err)
	}

	if queryJSON {
		return writeJSON(out, packed)
	}

	if len(packed.Chunks) == 0 {
		fmt.Fprintln(out, "No results found.")
		return nil
	}

	header := color.New(color.FgCyan, color.Bold).SprintFunc()
	score := color.New(color.FgGreen).SprintFunc()
	dim := color.New(color.Faint).SprintFunc()

	fmt.Fprintf(out, "Found %d passages for: %s\n", len(packed.Chunks), packed.Query)
	fmt.Fprintln(out, dim(fmt.Sprintf("%d / %d characters", packed.UsedChars, packed.BudgetChars)))
	fmt.Fprintln(out)
	for i, c := range packed.Chunks {
		fmt.Fprintf(out, "%s %s\n", header(fmt.Sprintf("--- [%d] %s #%d", i+1, c.DocumentSlug, c.ChunkIndex)),
			score(fmt.Sprintf("(similarity: %.3f)", c.Similarity)))
		fmt.Fprintln(out, strings.TrimSpace(c.Content))
		fmt.Fprintln(out)
	}
	return nil
}

func writeJSON(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal output: %w", err)
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}

type errorBody struct {
	Code    domain.Code    `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

func errorEnvelope(err error) map[string]errorBody {
	var re *domain.RetrieverError
	if !errors.As(err, &re) {
		return map[string]errorBody{"error": {Code: domain.CodeUnexpected, Message: err.Error()}}
	}
	return map[string]errorBody{"error": {Code: re.Code, Message: re.Message, Details: re.PublicDetails()}}
}

// describeError turns a retrieval failure into a one-line CLI error.
func describeError(err error) error {
	var re *domain.RetrieverError
	if !errors.As(err, &re) {
		return err
	}
	switch re.Code {
	case domain.CodeValidation:
		if v, ok := re.Details["errors"].([]string); ok && len(v) > 0 {
			return fmt.Errorf("%s: %s", re.Message, strings.Join(v, "; "))
		}
	case domain.CodeRateLimited:
		return fmt.Errorf("%s, retry in %s", re.Message, re.RetryAfter(time.Now()))
	}
	return err
}
