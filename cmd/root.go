// Package cmd wires the CLI commands.
package cmd

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"sjsage522/hotdealmatcher/config"
	"sjsage522/hotdealmatcher/logger"
)

var cfg config.Config

var rootCmd = &cobra.Command{
	Use:   "hotdealmatcher",
	Short: "Hotdeal price matcher - community hotdeal crawler and catalog price comparator",
	Long: "Crawls Korean hotdeal community boards incrementally, resolves each post's " +
		"shopping link and canonical mall title, and matches it against the shopping " +
		"catalog for price comparison.",
}

// Execute runs the root command.
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
	// Load environment variables
	godotenv.Load()

	// Initialize logger first
	logger.Init()

	cfg = config.LoadConfig()
}
