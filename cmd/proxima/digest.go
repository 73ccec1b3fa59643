// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/pdiddy/proxima/internal/digest"
)

var digestCmd = &cobra.Command{
	Use:   "digest",
	Short: "Manage weekly digest subscriptions",
	Long: `Digest stores saved searches in SQLite and renders a weekly digest of newly
published works for each verified, active subscription. Works already sent
to a subscription are never sent again.`,
}

var subscribeCmd = &cobra.Command{
	Use:   "subscribe",
	Short: "Save a search as a weekly digest subscription",
	RunE:  runSubscribe,
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List digest subscriptions",
	RunE:  runList,
}

var verifyCmd = &cobra.Command{
	Use:   "verify <token>",
	Short: "Verify a subscription by its token",
	Args:  cobra.ExactArgs(1),
	RunE:  runVerify,
}

var unsubscribeCmd = &cobra.Command{
	Use:   "unsubscribe <id>",
	Short: "Deactivate a subscription",
	Args:  cobra.ExactArgs(1),
	RunE:  runUnsubscribe,
}

var digestRunCmd = &cobra.Command{
	Use:   "run",
	Short: "Render digests for every due subscription",
	RunE:  runDigest,
}

func init() {
	subscribeCmd.Flags().String("email", "", "recipient address (required)")
	subscribeCmd.Flags().String("name", "", "display name for the search")
	subscribeCmd.Flags().StringArray("abstract", nil, "query abstract (repeatable)")
	subscribeCmd.Flags().StringArray("abstract-file", nil, "file holding one query abstract (repeatable)")
	subscribeCmd.Flags().String("keywords", "", "keywords separated by ';' or ','")
	_ = subscribeCmd.MarkFlagRequired("email")

	digestRunCmd.Flags().String("out", "", "directory for rendered digests (default from config)")

	digestCmd.AddCommand(subscribeCmd, listCmd, verifyCmd, unsubscribeCmd, digestRunCmd)
	rootCmd.AddCommand(digestCmd)
}

func openStore() (*digest.Store, error) {
	store, err := digest.OpenStore(cfg.Digest.DBPath)
	if err != nil {
		return nil, fmt.Errorf("opening subscription store %s: %w", cfg.Digest.DBPath, err)
	}
	return store, nil
}

func runSubscribe(cmd *cobra.Command, args []string) error {
	in, err := queryInput(cmd)
	if err != nil {
		return err
	}
	email, _ := cmd.Flags().GetString("email")
	name, _ := cmd.Flags().GetString("name")

	sub, err := digest.NewSubscription(email, name, in.Abstracts, in.Keywords, time.Now())
	if err != nil {
		return err
	}

	store, err := openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	if err := store.Add(cmd.Context(), sub); err != nil {
		return err
	}
	logger.Info("subscription added", zap.String("id", sub.ID))
	fmt.Fprintf(os.Stdout, "id:    %s\ntoken: %s\n", sub.ID, sub.VerificationToken)
	return nil
}

func runList(cmd *cobra.Command, args []string) error {
	store, err := openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	subs, err := store.List(cmd.Context())
	if err != nil {
		return err
	}
	if len(subs) == 0 {
		fmt.Fprintln(os.Stdout, "no subscriptions")
		return nil
	}

	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tEMAIL\tNAME\tVERIFIED\tACTIVE\tLAST SENT")
	for _, s := range subs {
		last := "never"
		if !s.LastSentAt.IsZero() {
			last = s.LastSentAt.Format(dateLayout)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%t\t%t\t%s\n", s.ID, s.Email, s.Name, s.Verified, s.Active, last)
	}
	return tw.Flush()
}

func runVerify(cmd *cobra.Command, args []string) error {
	store, err := openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	sub, err := store.Verify(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	fmt.Fprintf(os.Stdout, "verified %s (%s)\n", sub.ID, sub.Email)
	return nil
}

func runUnsubscribe(cmd *cobra.Command, args []string) error {
	store, err := openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	if err := store.Deactivate(cmd.Context(), args[0]); err != nil {
		return err
	}
	fmt.Fprintf(os.Stdout, "unsubscribed %s\n", args[0])
	return nil
}

func runDigest(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	store, err := openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	p, err := newPipeline(ctx)
	if err != nil {
		return err
	}

	out, _ := cmd.Flags().GetString("out")
	if out == "" {
		out = cfg.Digest.OutputDir
	}
	runner := digest.NewRunner(store, p, digest.NewFileSink(out), cfg.Digest,
		digest.WithLogger(logger),
		digest.WithMetrics(met),
	)

	sum, err := runner.Run(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(os.Stdout, "due %d, sent %d, empty %d, failed %d\n", sum.Due, sum.Sent, sum.Empty, sum.Failed)
	if sum.Failed > 0 {
		return fmt.Errorf("%d digests failed", sum.Failed)
	}
	return nil
}
