package main

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/DaanHessen/rewire/internal/engine"
	"github.com/DaanHessen/rewire/internal/store"
	"github.com/DaanHessen/rewire/internal/telegram"
)

var resetConfirmed bool

var botCmd = &cobra.Command{
	Use:   "bot",
	Short: "Run the Telegram front end (TG_TOKEN and TG_CHAT_ID)",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()
		if err := a.cfg.ValidateTelegram(); err != nil {
			return err
		}
		bot, err := telegram.NewBot(a.cfg.Telegram.Token, a.cfg.Telegram.ChatID, a.sess, a.log,
			telegram.WithCountdown(a.cfg.Wave.CountdownSeconds))
		if err != nil {
			return err
		}
		fmt.Println("Bot running. Press Ctrl+C to stop.")
		return bot.Run(cmd.Context(), a.cfg.Telegram.Schedule)
	},
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply or roll back postgres schema migrations",
}

var migrateUpCmd = &cobra.Command{
	Use:   "up",
	Short: "Apply all pending migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runMigration(cmd.Context(), "up")
	},
}

var migrateDownCmd = &cobra.Command{
	Use:   "down",
	Short: "Roll back the last migration",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runMigration(cmd.Context(), "down")
	},
}

func runMigration(ctx context.Context, direction string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	migrator, err := store.NewMigrator(cfg.DSN)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, migrateTimeout)
	defer cancel()
	if direction == "up" {
		err = migrator.Up(ctx)
	} else {
		err = migrator.Down(ctx)
	}
	switch {
	case errors.Is(err, store.ErrNoChange):
		fmt.Println("No migrations to apply")
	case err != nil:
		return err
	case direction == "up":
		fmt.Println("Migrations applied")
	default:
		fmt.Println("Migrations rolled back")
	}
	return nil
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Print the current day, level and points",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()
		st := a.sess.State()
		fmt.Printf("Day %d, level %d (%s)\n", st.CurrentDay, int(st.Level), st.Level)
		fmt.Printf("awareness %d  control %d  energy %d\n", st.AwarenessPoints, st.ControlPoints, st.Energy)
		if st.Level == engine.LevelSwitching {
			env := engine.EnvironmentFor(st.Energy)
			fmt.Printf("environment: %s %s\n", env.Emoji, env.Name)
		}
		if last, ok := st.LastLog(); ok {
			fmt.Printf("%d waves logged, last %s: %s\n", len(st.Logs),
				last.Time(time.Local).Format("2006-01-02 15:04"), last.Outcome())
		} else {
			fmt.Println("no waves logged yet")
		}
		return nil
	},
}

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Print the stored save-state blob as JSON",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()
		blob, err := a.repo.Raw(cmd.Context())
		if errors.Is(err, store.ErrNotFound) {
			blob, err = store.Encode(a.sess.State())
		}
		if err != nil {
			return err
		}
		fmt.Println(string(blob))
		return nil
	},
}

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Overwrite all progress with a fresh start",
	RunE: func(cmd *cobra.Command, args []string) error {
		if !resetConfirmed {
			return errors.New("reset erases all progress; rerun with --yes to confirm")
		}
		a, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()
		if err := a.sess.Reset(cmd.Context()); err != nil {
			return err
		}
		fmt.Println("Progress reset to day 1")
		return nil
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("rewire", version)
	},
}
