// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pdiddy/proxima/internal/phrase"
)

var phrasesCmd = &cobra.Command{
	Use:   "phrases",
	Short: "Print the search phrases extracted from each abstract",
	Long: `Phrases runs phrase extraction alone. Each abstract is sent to the configured
model; a failed or malformed answer falls back to the frequency heuristic.
The source of every list (llm or heuristic) is printed with it.`,
	RunE: runPhrases,
}

func init() {
	phrasesCmd.Flags().StringArray("abstract", nil, "abstract (repeatable)")
	phrasesCmd.Flags().StringArray("abstract-file", nil, "file holding one abstract (repeatable)")
	phrasesCmd.Flags().Int("max-terms", 0, "phrases per abstract (default from config)")
	phrasesCmd.Flags().Bool("json", false, "output results as JSON")

	rootCmd.AddCommand(phrasesCmd)
}

func runPhrases(cmd *cobra.Command, args []string) error {
	in, err := queryInput(cmd)
	if err != nil {
		return err
	}
	abstracts := in.CleanAbstracts()
	if len(abstracts) == 0 {
		return fmt.Errorf("provide --abstract or --abstract-file")
	}

	ex := newExtractor(cmd.Context())
	maxTerms := intFlagOr(cmd, "max-terms", cfg.LLM.MaxTerms)
	results := make([]phrase.Result, len(abstracts))
	for i, a := range abstracts {
		results[i] = ex.Extract(cmd.Context(), a, maxTerms)
	}

	if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(results)
	}
	for i, r := range results {
		fmt.Fprintf(os.Stdout, "%d. [%s] %s\n", i+1, r.Source, strings.Join(r.Phrases, "; "))
	}
	return nil
}
