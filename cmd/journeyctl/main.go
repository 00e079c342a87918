package main

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/journeys/internal/ui"
)

var (
	configPath string
	jsonOutput bool
	projectID  int64
	verbose    bool

	logger *slog.Logger
	styler ui.Styler
	deps   *app
)

func defaultProject() int64 {
	if v := os.Getenv("JOURNEYS_PROJECT_ID"); v != "" {
		if id, err := strconv.ParseInt(v, 10, 64); err == nil {
			return id
		}
	}
	return 0
}

// loadDotEnv reads .env from the working directory if present. Variables
// already set in the environment are not overridden.
func loadDotEnv() error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("loading .env: %w", err)
	}
	return nil
}

func setupLogging() {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	styler = ui.NewStyler(!jsonOutput && ui.ShouldUseColor(os.Stdout))
}

var rootCmd = &cobra.Command{
	Use:           "journeyctl <command>",
	Short:         "Administer journeys, their step graphs and user progression",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := loadDotEnv(); err != nil {
			return err
		}
		setupLogging()
		a, err := openApp(cmd.Context(), configPath, logger)
		if err != nil {
			return err
		}
		deps = a
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if deps != nil {
			deps.Close()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to a TOML config file (default $JOURNEYS_CONFIG)")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output as JSON")
	rootCmd.PersistentFlags().Int64Var(&projectID, "project", defaultProject(), "project id (default $JOURNEYS_PROJECT_ID)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log debug output to stderr")

	rootCmd.AddGroup(
		&cobra.Group{ID: "journeys", Title: "Journeys:"},
		&cobra.Group{ID: "graph", Title: "Step graphs:"},
		&cobra.Group{ID: "progress", Title: "Progression:"},
		&cobra.Group{ID: "system", Title: "System:"},
	)
	cobra.EnableCommandSorting = false

	// Journeys
	rootCmd.AddCommand(createCmd)
	rootCmd.AddCommand(showCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(updateCmd)
	rootCmd.AddCommand(deleteCmd)

	// Step graphs
	rootCmd.AddCommand(stepsCmd)
	rootCmd.AddCommand(statsCmd)

	// Progression
	rootCmd.AddCommand(recordCmd)
	rootCmd.AddCommand(positionCmd)
	rootCmd.AddCommand(reachedCmd)

	// System
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(watchCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
