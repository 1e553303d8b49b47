package ui

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/DaanHessen/rewire/internal/session"
	"github.com/DaanHessen/rewire/internal/util"
)

// Run boots the TUI program and blocks until it exits.
func Run(ctx context.Context, sess *session.Session, cfg util.Config, version string) error {
	m := initialModel(ctx, sess, cfg, version)
	program := tea.NewProgram(m, tea.WithContext(ctx), tea.WithAltScreen())
	_, err := program.Run()
	return err
}
