package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"ocrsweep/src/log"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "ocrsweep",
	Short: "Single-flight OCR cron over the document backlog",
	Long: `ocrsweep periodically picks one unprocessed document, runs OCR on its PDF
and records the result, the per-folder page totals and a job ledger row.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return log.Setup(viper.GetString("log.format"), viper.GetInt("log.verbosity"))
	},
}

// Execute runs the root command and exits non-zero on error.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (yaml, json or toml)")
	settingDefaultConfig()
}

func initConfig() {
	if cfgFile == "" {
		return
	}
	viper.SetConfigFile(cfgFile)
	if err := viper.ReadInConfig(); err != nil {
		fmt.Fprintf(os.Stderr, "failed to read config %s: %v\n", cfgFile, err)
		os.Exit(1)
	}
}
