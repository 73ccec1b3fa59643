// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main is the entry point for the proxima CLI.
// See docs/ARCHITECTURE § Pipeline Interface.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/pdiddy/proxima/internal/logging"
	"github.com/pdiddy/proxima/internal/metrics"
	"github.com/pdiddy/proxima/internal/secrets"
	"github.com/pdiddy/proxima/pkg/types"
)

// version is set at build time via ldflags.
var version = "dev"

// Process-wide state set up by PersistentPreRunE.
var (
	cfg        types.Config
	logger     = zap.NewNop()
	met        = metrics.New()
	metricsSrv *http.Server
)

// rootCmd is the base command for the proxima CLI.
var rootCmd = &cobra.Command{
	Use:   "proxima",
	Short: "Find scholarly works related to a set of abstracts",
	Long: `proxima ranks OpenAlex works against one or more abstracts and keywords.
Search phrases are extracted from each abstract, candidates are collected with
progressively relaxed keyword searches, and every candidate is scored by its
embedding similarity to each query.

Subcommands: rank, phrases, keyword-search, digest, and version.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		cfg = loaded

		l, err := logging.New(cfg.Log.Level, cfg.Log.Format)
		if err != nil {
			return err
		}
		logger = l

		s, err := secrets.Load(".secrets/", logger)
		if err != nil {
			return err
		}
		s.Apply(&cfg)
		if len(s) > 0 {
			keys := make([]string, 0, len(s))
			for k := range s {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			logger.Debug("loaded secrets", zap.Strings("keys", keys))
		}

		addr, _ := cmd.Flags().GetString("metrics-addr")
		return serveMetrics(addr)
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if metricsSrv != nil {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = metricsSrv.Shutdown(ctx)
		}
		_ = logger.Sync()
	},
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "config file (default: ./proxima.yaml or ~/.config/proxima/proxima.yaml)")
	rootCmd.PersistentFlags().String("log-level", "", "log level: debug, info, warn, error")
	rootCmd.PersistentFlags().String("log-format", "", "log format: console or json")
	rootCmd.PersistentFlags().String("metrics-addr", "", "serve Prometheus metrics on this address (e.g. :9090)")
	rootCmd.PersistentFlags().String("llm-provider", "", "phrase model provider: googleai, openai, anthropic, none")
}

// serveMetrics exposes the process metrics on addr. An empty addr disables it.
func serveMetrics(addr string) error {
	if addr == "" {
		return nil
	}
	reg := prometheus.NewRegistry()
	if err := met.Register(reg); err != nil {
		return fmt.Errorf("registering metrics: %w", err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	metricsSrv = &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server", zap.Error(err))
		}
	}()
	logger.Info("serving metrics", zap.String("addr", addr))
	return nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}
