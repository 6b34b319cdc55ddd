// Package cmd provides the command-line interface for kestrel.
package cmd

import (
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use: "kestrel",
	Short: "Kestrel CLI tool runs and inspects workloads built on the " +
		"kestrel virtualization core.",
	Long: `Kestrel CLI tool runs and inspects workloads built on the ` +
		`kestrel virtualization core. Currently, it supports running a demo ` +
		`workload with live monitoring.`,
}

// Execute adds all child commands to the root command and sets flags
// appropriately.
func Execute() {
	// Values in a .env file back the environment-driven settings. A missing
	// file is fine.
	_ = godotenv.Load()

	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}
