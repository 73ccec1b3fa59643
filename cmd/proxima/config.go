// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/proxima/pkg/types"
)

// flagKeys binds persistent flags to configuration keys.
var flagKeys = map[string]string{
	"log-level":    "log.level",
	"log-format":   "log.format",
	"llm-provider": "llm.provider",
}

// loadConfig reads proxima.yaml, PROXIMA_* environment variables, and bound
// flags over types.DefaultConfig. PROXIMA_LLM_API_KEY sets llm.api_key.
func loadConfig(cmd *cobra.Command) (types.Config, error) {
	v := viper.GetViper()
	setDefaults(v, types.DefaultConfig())

	cfgFile, _ := cmd.Flags().GetString("config")
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("proxima")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".config", "proxima"))
		}
	}

	v.SetEnvPrefix("PROXIMA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for name, key := range flagKeys {
		if f := cmd.Flags().Lookup(name); f != nil && f.Changed {
			if err := v.BindPFlag(key, f); err != nil {
				return types.Config{}, fmt.Errorf("binding flag %s: %w", name, err)
			}
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			return types.Config{}, fmt.Errorf("reading config: %w", err)
		}
	} else {
		fmt.Fprintln(os.Stderr, "Using config file:", v.ConfigFileUsed())
	}

	var c types.Config
	if err := v.Unmarshal(&c); err != nil {
		return types.Config{}, fmt.Errorf("decoding config: %w", err)
	}
	return c, nil
}

// setDefaults registers every configuration key so that environment
// variables can override keys absent from the config file.
func setDefaults(v *viper.Viper, d types.Config) {
	defaults := map[string]any{
		"openalex.timeout":      d.OpenAlex.Timeout,
		"openalex.user_agent":   d.OpenAlex.UserAgent,
		"openalex.base_url":     d.OpenAlex.BaseURL,
		"openalex.mailto":       d.OpenAlex.Mailto,
		"openalex.max_retries":  d.OpenAlex.MaxRetries,
		"retrieval.per_group":   d.Retrieval.PerGroup,
		"retrieval.min_terms":   d.Retrieval.MinTerms,
		"retrieval.drop_policy": string(d.Retrieval.DropPolicy),
		"retrieval.seed":        d.Retrieval.Seed,
		"retrieval.concurrency": d.Retrieval.Concurrency,
		"llm.provider":          string(d.LLM.Provider),
		"llm.model":             d.LLM.Model,
		"llm.api_key":           d.LLM.APIKey,
		"llm.base_url":          d.LLM.BaseURL,
		"llm.max_terms":         d.LLM.MaxTerms,
		"llm.timeout":           d.LLM.Timeout,
		"embedding.base_url":    d.Embedding.BaseURL,
		"embedding.model":       d.Embedding.Model,
		"embedding.api_key":     d.Embedding.APIKey,
		"embedding.batch_size":  d.Embedding.BatchSize,
		"embedding.workers":     d.Embedding.Workers,
		"rank.top_k":            d.Rank.TopK,
		"rank.concurrency":      d.Rank.Concurrency,
		"digest.db_path":        d.Digest.DBPath,
		"digest.output_dir":     d.Digest.OutputDir,
		"digest.lookback":       d.Digest.Lookback,
		"digest.interval":       d.Digest.Interval,
		"digest.max_items":      d.Digest.MaxItems,
		"digest.top_k":          d.Digest.TopK,
		"digest.per_group":      d.Digest.PerGroup,
		"log.level":             d.Log.Level,
		"log.format":            d.Log.Format,
	}
	for k, val := range defaults {
		v.SetDefault(k, val)
	}
}
