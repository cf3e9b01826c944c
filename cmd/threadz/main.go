package main

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var (
	version    = "0.1.0"
	configPath string
	logLevel   string

	cfg    = defaultConfig()
	logger zerolog.Logger

	rootCmd = &cobra.Command{
		Use:   "threadz",
		Short: "Native thread handle demos and benchmarks",
		Long: `threadz is a CLI tool for exploring thread handles through
small demonstrations and performance benchmarks.

Each demo starts callables on dedicated OS threads and walks through
the join, detach and cancel lifecycle. Thread attributes (name, CPU
affinity, nice value) can be supplied with a TOML config file.`,
		Version: version,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if configPath != "" {
				loaded, err := loadConfig(configPath)
				if err != nil {
					return err
				}
				cfg = loaded
			}
			if cmd.Flags().Changed("log-level") {
				level, err := zerolog.ParseLevel(logLevel)
				if err != nil {
					return fmt.Errorf("parse log level: %w", err)
				}
				cfg.LogLevel = level
			}
			logger = initLogger("threadz", cfg.LogLevel, os.Stderr)
			return nil
		},
	}
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	// Disable default completion command
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "TOML file with thread attributes")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level (trace, debug, info, warn, error)")

	// Add commands
	rootCmd.AddCommand(demoCmd)
	rootCmd.AddCommand(benchmarkCmd)
	rootCmd.AddCommand(listCmd)
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List all available examples",
	Long:  "Display a list of all available thread examples with descriptions.",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("Available examples:")
		fmt.Println()
		for _, ex := range getAllExamples() {
			fmt.Printf("  %-12s %s\n", ex.Name(), ex.Description())
		}
	},
}
