package cli

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "mnemo",
	Short: "Long-term memory engine for personal assistants",
	Long:  "Mnemo scores, retrieves, consolidates, and ages the durable memories a personal assistant keeps about its users.",
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(sweepCmd)
	rootCmd.AddCommand(consolidateCmd)
	rootCmd.AddCommand(statsCmd)
}
