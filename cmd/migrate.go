package cmd

import (
	"github.com/spf13/cobra"

	"ocrsweep/src/log"
	"ocrsweep/src/storage"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the crons, documents and doc_stats tables",
	RunE:  runMigrate,
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}

func runMigrate(cmd *cobra.Command, args []string) error {
	store, closeDB, err := openStore()
	if err != nil {
		return err
	}
	defer closeDB()

	if err := storage.Migrate(cmd.Context(), store.DB()); err != nil {
		return err
	}
	log.Info("migration complete")
	return nil
}
