package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "gigflow",
	Short: "GigFlow - job and bid marketplace API",
	Long: `GigFlow - job and bid marketplace API.

Configuration is read from the environment (and an optional .env file).

Available commands:
  serve   - Start the HTTP API, websocket notifications and notification consumer
  migrate - Create or update the MySQL schema`,
	SilenceUsage: true,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(migrateCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
