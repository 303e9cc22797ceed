package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"ocrsweep/src/log"
)

var (
	enqueueLink   string
	enqueueFolder string
	enqueueSite   string
)

var enqueueCmd = &cobra.Command{
	Use:   "enqueue",
	Short: "Add a document to the OCR backlog",
	RunE:  runEnqueue,
}

func init() {
	rootCmd.AddCommand(enqueueCmd)
	enqueueCmd.Flags().StringVarP(&enqueueLink, "link", "l", "", "PDF link, e.g. s3://pdfs/scans/D1.pdf (required)")
	enqueueCmd.Flags().StringVarP(&enqueueFolder, "folder", "f", "", "Folder the page totals roll up under (required)")
	enqueueCmd.Flags().StringVarP(&enqueueSite, "site", "s", "", "Site of the folder")
	enqueueCmd.MarkFlagRequired("link")
	enqueueCmd.MarkFlagRequired("folder")
}

func runEnqueue(cmd *cobra.Command, args []string) error {
	store, closeDB, err := openStore()
	if err != nil {
		return err
	}
	defer closeDB()

	document, err := store.Documents().Create(cmd.Context(), enqueueLink, enqueueFolder, enqueueSite)
	if err != nil {
		return err
	}

	log.Info("document enqueued", "doc_number", document.Number, "folder", document.Folder)
	fmt.Fprintln(cmd.OutOrStdout(), document.Number)
	return nil
}
