package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"resumerag/internal/domain"
	"resumerag/internal/usecase"
)

var (
	promptQuery   string
	promptDocs    []string
	promptClient  string
	promptCtx     string
	promptSubject string
	promptJSON    bool
)

var promptCmd = &cobra.Command{
	Use:   "prompt",
	Short: "Print the system and user messages for a question",
	Long: `Render the hand-off prompt for a chat model: a system message naming
the subject and a user message with the question and the packed passages.

The passages come from a fresh retrieval, or from a file written by
'resumerag pack -o' when --ctx is given.

Examples:
  resumerag prompt -q "what is the current role?"
  resumerag prompt --ctx context.json
  resumerag prompt --ctx context.json -q "and before that?"`,
	Args: cobra.NoArgs,
	RunE: runPrompt,
}

func init() {
	rootCmd.AddCommand(promptCmd)
	promptCmd.Flags().StringVarP(&promptQuery, "query", "q", "", "question (required without --ctx)")
	promptCmd.Flags().StringArrayVar(&promptDocs, "doc", nil, "restrict to a document slug (repeatable)")
	promptCmd.Flags().StringVar(&promptClient, "client", "", "client id for rate limiting (default: not limited)")
	promptCmd.Flags().StringVar(&promptCtx, "ctx", "", "path to packed context JSON file")
	promptCmd.Flags().StringVar(&promptSubject, "subject", "", "who the corpus is about (default from config)")
	promptCmd.Flags().BoolVar(&promptJSON, "json", false, "output the messages as JSON")
}

func runPrompt(cmd *cobra.Command, args []string) error {
	var packed domain.PackedContext
	switch {
	case promptCtx != "":
		data, err := os.ReadFile(promptCtx)
		if err != nil {
			return fmt.Errorf("failed to read context file: %w", err)
		}
		if err := json.Unmarshal(data, &packed); err != nil {
			return fmt.Errorf("failed to parse context file: %w", err)
		}
		if promptQuery != "" {
			packed.Query = promptQuery
		}
	case promptQuery != "":
		var err error
		packed, err = retrieveContext(cmd.Context(), promptQuery, promptDocs, promptClient)
		if err != nil {
			return describeError(err)
		}
	default:
		return fmt.Errorf("must specify --query or --ctx")
	}

	subject := promptSubject
	if subject == "" {
		subject = GetConfig().Prompt.Subject
	}

	p, err := usecase.BuildPrompt(subject, packed.Query, packed.Chunks)
	if err != nil {
		return fmt.Errorf("failed to render prompt: %w", err)
	}

	out := cmd.OutOrStdout()
	if promptJSON {
		return writeJSON(out, []map[string]string{
			{"role": "system", "content": p.System},
			{"role": "user", "content": p.User},
		})
	}
	fmt.Fprintln(out, "=== system ===")
	fmt.Fprintln(out, p.System)
	fmt.Fprintln(out)
	fmt.Fprintln(out, "=== user ===")
	fmt.Fprintln(out, p.User)
	return nil
}
