package cmd

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "facegate",
	Short: "Face enrollment and verification service for employee check-in",
	Long: `Facegate stores face encodings for employees and verifies snapshots
against them. It runs as an HTTP service (serve) and offers local commands
to enroll or verify images directly against the configured store.

Configuration is read from FACEGATE_* environment variables, an optional
YAML file named by FACEGATE_CONFIG and a .env file in the working directory.`,
	SilenceUsage: true,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
}

func initConfig() {
	// .env file is optional, don't fail if not found
	_ = godotenv.Load()
}
