package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/DaanHessen/rewire/internal/ui"
)

var version = "0.1.0"

var (
	// Global flags
	configPath string
	dsnFlag    string
	themeFlag  string
	debug      bool
)

var rootCmd = &cobra.Command{
	Use:   "rewire",
	Short: "Rewire Quest - ride out the urge, journal the wave, level up",
	Long: `Rewire Quest is a terminal companion for breaking compulsive habits.

When an urge hits, start a wave: a 90 second guided exercise followed by a
short journal entry. Holding on advances your day; three levels (Awareness,
Control, Switching) change what the app asks of you.

Run without arguments to start the interactive interface.`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()
		return ui.Run(cmd.Context(), a.sess, a.cfg, version)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default: ~/.rewire/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&dsnFlag, "dsn", "", "Postgres URL, sqlite path or \"memory\" (or set REWIRE_DSN)")
	rootCmd.PersistentFlags().StringVar(&themeFlag, "theme", "", "Colour theme: catppuccin|dracula|gruvbox|solarized_dark")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug logging")

	migrateCmd.AddCommand(migrateUpCmd, migrateDownCmd)
	resetCmd.Flags().BoolVar(&resetConfirmed, "yes", false, "Confirm the reset")

	rootCmd.AddCommand(botCmd, migrateCmd, statusCmd, exportCmd, resetCmd, versionCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
