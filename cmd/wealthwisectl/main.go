package main

import (
	"os"

	"wealthwise/internal/cli"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	cli.LoadEnvFile()

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
