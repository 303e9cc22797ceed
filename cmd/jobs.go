package cmd

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var jobsLimit int

var jobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: "List recent ledger rows of the configured kind",
	RunE:  runJobs,
}

func init() {
	rootCmd.AddCommand(jobsCmd)
	jobsCmd.Flags().IntVarP(&jobsLimit, "limit", "n", 20, "Number of rows to show")
}

func runJobs(cmd *cobra.Command, args []string) error {
	store, closeDB, err := openStore()
	if err != nil {
		return err
	}
	defer closeDB()

	records, err := store.Jobs().List(cmd.Context(), viper.GetString("cron.kind"), jobsLimit, 0)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tDOCUMENT\tSTARTED\tSTATE\tERROR")
	for _, r := range records {
		state := "succeeded"
		switch {
		case r.Running():
			state = "running"
		case r.Flagged:
			state = "failed"
		}
		detail := ""
		if r.Error != nil {
			detail = *r.Error
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", r.ID, r.Subject, r.StartedAt.Local().Format(time.DateTime), state, detail)
	}
	return w.Flush()
}
