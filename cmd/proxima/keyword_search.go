// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pdiddy/proxima/internal/pipeline"
)

var keywordSearchCmd = &cobra.Command{
	Use:   "keyword-search",
	Short: "Run one relaxed OpenAlex search over all phrases and keywords",
	Long: `Keyword-search flattens the phrases of every abstract and the keywords into a
single token list, removes duplicates, and runs one progressively relaxed
search. Results are printed in OpenAlex order without embedding or reranking,
which makes it useful for checking what retrieval alone returns.`,
	RunE: runKeywordSearch,
}

func init() {
	addQueryFlags(keywordSearchCmd)
	rootCmd.AddCommand(keywordSearchCmd)
}

func runKeywordSearch(cmd *cobra.Command, args []string) error {
	in, err := queryInput(cmd)
	if err != nil {
		return err
	}
	if in.IsEmpty() {
		return fmt.Errorf("provide --abstract, --abstract-file, or --keywords")
	}

	p, err := newPipeline(cmd.Context())
	if err != nil {
		return err
	}
	res, err := p.KeywordSearch(cmd.Context(), in, pipeline.Options{
		MaxTerms: intFlagOr(cmd, "max-terms", cfg.LLM.MaxTerms),
		PerGroup: intFlagOr(cmd, "per-group", cfg.Retrieval.PerGroup),
	})
	if err != nil {
		return err
	}

	if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	}

	fmt.Fprintf(os.Stdout, "tokens: %s\n", strings.Join(res.Tokens, "; "))
	fmt.Fprintf(os.Stdout, "final query: %q (dropped: %s)\n\n", res.Round.Query, strings.Join(res.Round.Dropped, "; "))
	if len(res.Works) == 0 {
		fmt.Fprintln(os.Stdout, "no results")
		return nil
	}
	for i, w := range res.Works {
		fmt.Fprintf(os.Stdout, "%3d. %s  %s\n     %s\n", i+1, yearOf(w), w.Title, w.URL)
	}
	return nil
}
