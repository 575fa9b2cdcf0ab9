/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/shelfwise/apiserver/config"
	"github.com/shelfwise/apiserver/internal/logging"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "shelfwise",
	Short: "Library catalog API server",
	Long: `shelfwise serves a library catalog: accounts, books, reviews with
aggregated ratings, and per-user reading lists.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logging.Init(config.LoadConfig().Log)
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
