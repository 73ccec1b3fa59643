// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/pdiddy/proxima/pkg/types"
)

const dateLayout = "2006-01-02"

// addQueryFlags registers the flags that describe a query.
func addQueryFlags(cmd *cobra.Command) {
	cmd.Flags().StringArray("abstract", nil, "query abstract (repeatable)")
	cmd.Flags().StringArray("abstract-file", nil, "file holding one query abstract (repeatable)")
	cmd.Flags().String("keywords", "", "keywords separated by ';' or ','")
	cmd.Flags().Int("year-min", 0, "earliest publication year")
	cmd.Flags().Int("year-max", 0, "latest publication year")
	cmd.Flags().String("from", "", "publication date range start (YYYY-MM-DD)")
	cmd.Flags().String("to", "", "publication date range end (YYYY-MM-DD)")
	cmd.Flags().Int("max-terms", 0, "phrases per abstract (default from config)")
	cmd.Flags().Int("per-group", 0, "results per relaxation round (default from config)")
	cmd.Flags().Bool("json", false, "output results as JSON")
}

// queryInput builds a QueryInput from the query flags.
func queryInput(cmd *cobra.Command) (types.QueryInput, error) {
	abstracts, _ := cmd.Flags().GetStringArray("abstract")
	files, _ := cmd.Flags().GetStringArray("abstract-file")
	for _, f := range files {
		data, err := os.ReadFile(f)
		if err != nil {
			return types.QueryInput{}, fmt.Errorf("reading abstract file: %w", err)
		}
		abstracts = append(abstracts, string(data))
	}

	in := types.QueryInput{Abstracts: abstracts}
	if kw, _ := cmd.Flags().GetString("keywords"); kw != "" {
		in.Keywords = []string{kw}
	}

	yearMin, _ := cmd.Flags().GetInt("year-min")
	yearMax, _ := cmd.Flags().GetInt("year-max")
	in.YearBounds(yearMin, yearMax)

	var err error
	if in.From, err = dateFlag(cmd, "from", in.From); err != nil {
		return in, err
	}
	if in.To, err = dateFlag(cmd, "to", in.To); err != nil {
		return in, err
	}
	if !in.From.IsZero() && !in.To.IsZero() && in.To.Before(in.From) {
		return in, fmt.Errorf("--to %s is before --from %s", in.To.Format(dateLayout), in.From.Format(dateLayout))
	}
	return in, nil
}

func dateFlag(cmd *cobra.Command, name string, fallback time.Time) (time.Time, error) {
	s, _ := cmd.Flags().GetString(name)
	if s == "" {
		return fallback, nil
	}
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid --%s %q, want YYYY-MM-DD", name, s)
	}
	return t, nil
}

func intFlagOr(cmd *cobra.Command, name string, fallback int) int {
	if v, _ := cmd.Flags().GetInt(name); v > 0 {
		return v
	}
	return fallback
}
