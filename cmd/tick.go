package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"ocrsweep/src/core/ocrjob"
)

var tickCmd = &cobra.Command{
	Use:   "tick",
	Short: "Run a single OCR invocation and print its outcome",
	RunE:  runTick,
}

func init() {
	rootCmd.AddCommand(tickCmd)
}

func runTick(cmd *cobra.Command, args []string) error {
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

	report, err := scheduler.RunOnce(ctx)
	printReport(cmd.OutOrStdout(), report, err)
	return err
}

// printReport writes the invocation outcome. Pages are omitted when the
// invocation returned an error.
func printReport(out io.Writer, report ocrjob.Report, err error) {
	fmt.Fprintf(out, "outcome: %s\n", report.Outcome)
	if report.JobID != "" {
		fmt.Fprintf(out, "job: %s\ndocument: %d\n", report.JobID, report.Document)
	}
	if err == nil && report.Pages > 0 {
		fmt.Fprintf(out, "pages: %d\n", report.Pages)
	}
}
