package cmd

import (
	"context"
	"fmt"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"ocrsweep/src/core/ocrjob"
)

var drainMax int

var drainCmd = &cobra.Command{
	Use:   "drain",
	Short: "Process pending documents one after another",
	Long: `The drain command repeats single invocations until the backlog is empty,
another job of the same kind is in flight, or an invocation fails.`,
	RunE: runDrain,
}

func init() {
	rootCmd.AddCommand(drainCmd)
	drainCmd.Flags().IntVar(&drainMax, "max", 0, "stop after this many documents (0 means no limit)")
}

func runDrain(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	store, closeDB, err := openStore()
	if err != nil {
		return err
	}
	defer closeDB()

	minioService, err := newMinioService()
	if err != nil {
		return err
	}

	scheduler, err := newScheduler(ctx, store, minioService)
	if err != nil {
		return err
	}

	pending, err := store.Documents().CountPending(ctx)
	if err != nil {
		return err
	}
	if drainMax > 0 && int64(drainMax) < pending {
		pending = int64(drainMax)
	}

	bar := progressbar.Default(pending, "ocr")
	processed, err := drain(ctx, scheduler, drainMax, func() { bar.Add(1) })
	if err != nil {
		bar.Clear()
		return err
	}
	bar.Finish()

	fmt.Fprintf(cmd.OutOrStdout(), "\nprocessed %d documents\n", processed)
	return nil
}

type invoker interface {
	RunOnce(ctx context.Context) (ocrjob.Report, error)
}

// drain runs invocations until one does not succeed or max documents have
// been processed. max <= 0 means no limit. done is called after each
// successful document.
func drain(ctx context.Context, s invoker, max int, done func()) (int, error) {
	processed := 0
	for max <= 0 || processed < max {
		report, err := s.RunOnce(ctx)
		if err != nil {
			return processed, fmt.Errorf("document %d: %w", report.Document, err)
		}
		if report.Outcome != ocrjob.OutcomeSucceeded {
			break
		}
		processed++
		done()
	}
	return processed, nil
}
