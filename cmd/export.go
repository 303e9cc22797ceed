package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"ocrsweep/src/export"
)

var (
	exportOut  string
	exportJobs int
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write folder page totals and recent jobs to an XLSX workbook",
	RunE:  runExport,
}

func init() {
	rootCmd.AddCommand(exportCmd)
	exportCmd.Flags().StringVarP(&exportOut, "out", "o", "ocr-stats.xlsx", "Output file path")
	exportCmd.Flags().IntVar(&exportJobs, "jobs", 500, "Number of recent jobs to include")
}

func runExport(cmd *cobra.Command, args []string) error {
	store, closeDB, err := openStore()
	if err != nil {
		return err
	}
	defer closeDB()

	svc := export.NewService(store.Stats(), store.Jobs(), viper.GetString("cron.kind"))
	data, err := svc.WorkbookXLSX(cmd.Context(), exportJobs)
	if err != nil {
		return err
	}

	if err := os.WriteFile(exportOut, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", exportOut, err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", exportOut)
	return nil
}
