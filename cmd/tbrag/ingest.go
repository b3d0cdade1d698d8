package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Chunk, embed and index the textbook chapters",
	Long: `Chunk, embed and index every chapter-*.md file in the docs directory.

Each chapter becomes one queued job; failed chapters are retried with
exponential backoff before the command gives up on them.

Examples:
  tbrag ingest
  tbrag ingest --docs ./website/docs`,
	RunE: func(cmd *cobra.Command, args []string) error {
		docs, _ := cmd.Flags().GetString("docs")
		return runIngest(docs)
	},
}

func init() {
	ingestCmd.Flags().String("docs", "", "docs directory (default ingest.docs_dir)")
}

func runIngest(docsDir string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := loadApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	if docsDir == "" {
		docsDir = a.cfg.Ingest.DocsDir
	}

	printStep("Ensuring vector collection %q", a.cfg.Vector.Collection)
	if err := a.index.EnsureCollection(ctx); err != nil {
		return fmt.Errorf("preparing vector index: %w", err)
	}

	n, err := a.worker.EnqueueDir(ctx, docsDir)
	if err != nil {
		return err
	}
	if n == 0 {
		printWarning("No chapter-*.md files found in %s", docsDir)
		return nil
	}
	printStep("Queued %d chapters from %s", n, docsDir)

	sum, err := a.worker.Drain(ctx)
	if err != nil {
		return err
	}

	total, err := a.index.Count(ctx)
	if err != nil {
		a.logger.Warn("counting indexed vectors", "error", err)
	}
	printSuccess("Indexed %d chunks from %d chapters (%d vectors in index)", sum.Chunks, sum.Completed, total)
	if sum.Failed > 0 {
		printWarning("%d chapter attempts failed; see the log for details", sum.Failed)
	}
	return nil
}
