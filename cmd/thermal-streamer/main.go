package main

import (
	"os"

	"github.com/spf13/cobra"
)

func NewRootCommand() *cobra.Command {

	var configFile string
	var batchSize int
	var interval float64

	var rootCmd = &cobra.Command{
		Use: "thermal-streamer",
	}

	var streamCmd = &cobra.Command{
		Use:   "stream",
		Short: "Continuously stream sensor batches into the ingestion service",
		Run: func(cmd *cobra.Command, args []string) {
			os.Exit(startStreamLoop(configFile, batchSize, interval))
		},
	}

	var checkConnectionCmd = &cobra.Command{
		Use:   "check_connection",
		Short: "Verify configuration, credentials and channel access",
		Run: func(cmd *cobra.Command, args []string) {
			os.Exit(startConnectionCheck(configFile))
		},
	}

	rootCmd.AddCommand(streamCmd)
	streamCmd.Flags().StringVarP(&configFile, "config", "c", "", "Path to json configuration file")
	streamCmd.Flags().IntVarP(&batchSize, "batch-size", "b", 0, "Readings per batch (overrides configuration)")
	streamCmd.Flags().Float64VarP(&interval, "interval", "i", 0, "Seconds between batches (overrides configuration)")

	rootCmd.AddCommand(checkConnectionCmd)
	checkConnectionCmd.Flags().StringVarP(&configFile, "config", "c", "", "Path to json configuration file")

	return rootCmd
}

func main() {
	cmd := NewRootCommand()
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
