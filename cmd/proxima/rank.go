// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/pdiddy/proxima/internal/pipeline"
	"github.com/pdiddy/proxima/pkg/types"
)

var rankCmd = &cobra.Command{
	Use:   "rank",
	Short: "Rank OpenAlex works against abstracts and keywords",
	Long: `Rank extracts search phrases from each abstract, collects candidate works
from OpenAlex with progressively relaxed searches, and orders the candidates
by their summed embedding similarity to every query. Each result reports how
much of its score came from each abstract.

Queries come from --abstract, --abstract-file, and --keywords, or from YAML
query files selected with --query-file or a --queries glob ("queries/**/*.yaml").`,
	RunE: runRank,
}

func init() {
	addQueryFlags(rankCmd)
	rankCmd.Flags().Int("top-k", 0, "maximum number of ranked results (default from config)")
	rankCmd.Flags().Bool("centroid", false, "rank against one vector averaged over all abstracts")
	rankCmd.Flags().StringArray("query-file", nil, "YAML query file (repeatable)")
	rankCmd.Flags().String("queries", "", "glob of YAML query files; ** matches directories")
	rankCmd.Flags().String("out", "results", "directory for query-file results")

	rootCmd.AddCommand(rankCmd)
}

func rankOptions(cmd *cobra.Command) pipeline.Options {
	centroid, _ := cmd.Flags().GetBool("centroid")
	return pipeline.Options{
		MaxTerms: intFlagOr(cmd, "max-terms", cfg.LLM.MaxTerms),
		PerGroup: intFlagOr(cmd, "per-group", cfg.Retrieval.PerGroup),
		TopK:     intFlagOr(cmd, "top-k", cfg.Rank.TopK),
		Centroid: centroid,
	}
}

func runRank(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	p, err := newPipeline(ctx)
	if err != nil {
		return err
	}
	opts := rankOptions(cmd)

	files, err := queryFiles(cmd)
	if err != nil {
		return err
	}
	if len(files) > 0 {
		out, _ := cmd.Flags().GetString("out")
		return rankQueryFiles(cmd, p, files, opts, out)
	}

	in, err := queryInput(cmd)
	if err != nil {
		return err
	}
	if in.IsEmpty() {
		return fmt.Errorf("provide --abstract, --abstract-file, --keywords, or a query file")
	}

	res, err := p.Run(ctx, in, opts)
	if err != nil {
		return err
	}

	if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	}
	printRanked(os.Stdout, res)
	return nil
}

func queryFiles(cmd *cobra.Command) ([]pipeline.QueryFile, error) {
	var files []pipeline.QueryFile
	paths, _ := cmd.Flags().GetStringArray("query-file")
	for _, path := range paths {
		q, err := pipeline.LoadQueryFile(path)
		if err != nil {
			return nil, err
		}
		files = append(files, q)
	}
	if pattern, _ := cmd.Flags().GetString("queries"); pattern != "" {
		matched, err := pipeline.GlobQueryFiles(pattern)
		if err != nil {
			return nil, err
		}
		if len(matched) == 0 {
			return nil, fmt.Errorf("no query files match %s", pattern)
		}
		files = append(files, matched...)
	}
	return files, nil
}

// rankQueryFiles runs each file and writes <out>/<name>.yaml. One failing
// query does not stop the others.
func rankQueryFiles(cmd *cobra.Command, p *pipeline.Pipeline, files []pipeline.QueryFile, opts pipeline.Options, out string) error {
	ctx := cmd.Context()
	var failed int
	for _, q := range files {
		path := filepath.Join(out, q.Name+".yaml")
		n, err := rankQueryFile(ctx, p, q, opts, path)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			failed++
			fmt.Fprintf(os.Stdout, "failed  %s: %v\n", q.Name, err)
			logger.Warn("query file failed", zap.String("path", q.Path), zap.Error(err))
			continue
		}
		fmt.Fprintf(os.Stdout, "ranked  %s: %d results -> %s\n", q.Name, n, path)
	}

	fmt.Fprintf(os.Stdout, "\nqueries: %d, failed: %d\n", len(files), failed)
	if failed > 0 {
		return fmt.Errorf("%d query file(s) failed", failed)
	}
	return nil
}

func rankQueryFile(ctx context.Context, p *pipeline.Pipeline, q pipeline.QueryFile, opts pipeline.Options, path string) (int, error) {
	in, err := q.Input()
	if err != nil {
		return 0, err
	}
	res, err := p.Run(ctx, in, q.Apply(opts))
	if err != nil {
		return 0, err
	}
	if err := pipeline.WriteResultFile(path, pipeline.NewResultFile(q, res, time.Now())); err != nil {
		return 0, err
	}
	return len(res.Ranked), nil
}

func printRanked(w io.Writer, res *pipeline.Result) {
	for i, e := range res.Extractions {
		fmt.Fprintf(w, "abstract %d phrases (%s): %s\n", i+1, e.Source, strings.Join(e.Phrases, "; "))
	}
	for _, r := range res.Rounds {
		status := fmt.Sprintf("%d results, %d new", r.Results, r.New)
		if r.Failed {
			status = "failed"
		}
		fmt.Fprintf(w, "round %-11s %q (dropped %d): %s\n", r.Round.Label(), r.Query, r.Steps, status)
	}
	fmt.Fprintf(w, "\ncandidates: %d, skipped: %d, query vectors: %d\n\n", res.Candidates, res.Skipped, res.QueryVectors)

	if len(res.Ranked) == 0 {
		fmt.Fprintln(w, "no results")
		return
	}
	for i, sw := range res.Ranked {
		fmt.Fprintf(w, "%3d. %.4f  %s  %s\n", i+1, sw.TotalScore, yearOf(sw.Work), sw.Work.Title)
		fmt.Fprintf(w, "     %s  contributions: %s\n", sw.Work.URL, percentages(sw.Contributions))
	}
}

func yearOf(w types.Work) string {
	if w.Year == 0 {
		return "----"
	}
	return fmt.Sprintf("%d", w.Year)
}

func percentages(vals []float64) string {
	parts := make([]string, len(vals))
	for i, v := range vals {
		parts[i] = fmt.Sprintf("%.1f%%", v*100)
	}
	return strings.Join(parts, " ")
}
