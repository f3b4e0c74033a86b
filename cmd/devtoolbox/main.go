// Package main provides the devtoolbox CLI.
package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/sakif/devtoolbox/internal/config"
	"github.com/sakif/devtoolbox/internal/server"
)

// configFile is set by the --config flag.
var configFile string

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "devtoolbox",
	Short: "DevToolbox snippet storage and sharing service",
	Long: `DevToolbox backs the browser developer-utility suite with a snippet
store: private and public snippets, per-owner listings, and shareable
links for public snippets.`,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "",
		"config file (default: ./devtoolbox.yaml or ~/.devtoolbox/devtoolbox.yaml)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(versionCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the snippet service",
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		}))

		cfg, err := config.Load(configFile)
		if err != nil {
			return err
		}
		if err := cfg.Validate(); err != nil {
			return err
		}

		// The SQLite file lives inside a directory that may not exist yet.
		if dir := filepath.Dir(cfg.DBPath); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return fmt.Errorf("creating data directory %s: %w", dir, err)
			}
		}

		srv, err := server.New(cfg, logger)
		if err != nil {
			return fmt.Errorf("creating server: %w", err)
		}

		return srv.Start()
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("devtoolbox v0.1.0")
	},
}
