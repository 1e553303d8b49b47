package ui

import (
	"sort"

	"github.com/charmbracelet/lipgloss"

	"github.com/DaanHessen/rewire/internal/engine"
)

type palette struct {
	Background lipgloss.Color
	Surface    lipgloss.Color
	Panel      lipgloss.Color
	Text       lipgloss.Color
	Muted      lipgloss.Color
	Accent     lipgloss.Color
	AccentAlt  lipgloss.Color
	Border     lipgloss.Color
	Success    lipgloss.Color
	Warning    lipgloss.Color
	BarFill    lipgloss.Color
	BarEmpty   lipgloss.Color
	Awareness  lipgloss.Color
	Control    lipgloss.Color
	Energy     lipgloss.Color
}

var palettes = map[string]palette{
	"catppuccin": {
		Background: lipgloss.Color("#1e1e2e"),
		Surface:    lipgloss.Color("#313244"),
		Panel:      lipgloss.Color("#45475a"),
		Text:       lipgloss.Color("#cdd6f4"),
		Muted:      lipgloss.Color("#a6adc8"),
		Accent:     lipgloss.Color("#cba6f7"),
		AccentAlt:  lipgloss.Color("#f38ba8"),
		Border:     lipgloss.Color("#585b70"),
		Success:    lipgloss.Color("#94e2d5"),
		Warning:    lipgloss.Color("#f9e2af"),
		BarFill:    lipgloss.Color("#94e2d5"),
		BarEmpty:   lipgloss.Color("#313244"),
		Awareness:  lipgloss.Color("#89b4fa"),
		Control:    lipgloss.Color("#f9e2af"),
		Energy:     lipgloss.Color("#a6e3a1"),
	},
	"dracula": {
		Background: lipgloss.Color("#282a36"),
		Surface:    lipgloss.Color("#343746"),
		Panel:      lipgloss.Color("#3c4053"),
		Text:       lipgloss.Color("#f8f8f2"),
		Muted:      lipgloss.Color("#6272a4"),
		Accent:     lipgloss.Color("#ff79c6"),
		AccentAlt:  lipgloss.Color("#bd93f9"),
		Border:     lipgloss.Color("#44475a"),
		Success:    lipgloss.Color("#50fa7b"),
		Warning:    lipgloss.Color("#f1fa8c"),
		BarFill:    lipgloss.Color("#50fa7b"),
		BarEmpty:   lipgloss.Color("#343746"),
		Awareness:  lipgloss.Color("#8be9fd"),
		Control:    lipgloss.Color("#f1fa8c"),
		Energy:     lipgloss.Color("#50fa7b"),
	},
	"gruvbox": {
		Background: lipgloss.Color("#282828"),
		Surface:    lipgloss.Color("#3c3836"),
		Panel:      lipgloss.Color("#504945"),
		Text:       lipgloss.Color("#ebdbb2"),
		Muted:      lipgloss.Color("#a89984"),
		Accent:     lipgloss.Color("#fabd2f"),
		AccentAlt:  lipgloss.Color("#d3869b"),
		Border:     lipgloss.Color("#665c54"),
		Success:    lipgloss.Color("#b8bb26"),
		Warning:    lipgloss.Color("#fe8019"),
		BarFill:    lipgloss.Color("#b8bb26"),
		BarEmpty:   lipgloss.Color("#3c3836"),
		Awareness:  lipgloss.Color("#83a598"),
		Control:    lipgloss.Color("#fabd2f"),
		Energy:     lipgloss.Color("#b8bb26"),
	},
	"solarized_dark": {
		Background: lipgloss.Color("#002b36"),
		Surface:    lipgloss.Color("#073642"),
		Panel:      lipgloss.Color("#0a3a45"),
		Text:       lipgloss.Color("#fdf6e3"),
		Muted:      lipgloss.Color("#93a1a1"),
		Accent:     lipgloss.Color("#b58900"),
		AccentAlt:  lipgloss.Color("#268bd2"),
		Border:     lipgloss.Color("#586e75"),
		Success:    lipgloss.Color("#859900"),
		Warning:    lipgloss.Color("#cb4b16"),
		BarFill:    lipgloss.Color("#859900"),
		BarEmpty:   lipgloss.Color("#073642"),
		Awareness:  lipgloss.Color("#268bd2"),
		Control:    lipgloss.Color("#b58900"),
		Energy:     lipgloss.Color("#859900"),
	},
}

func paletteFor(name string) palette {
	if p, ok := palettes[name]; ok {
		return p
	}
	return palettes["catppuccin"]
}

func themeNames() []string {
	names := make([]string, 0, len(palettes))
	for k := range palettes {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

func nextThemeName(current string, step int) string {
	names := themeNames()
	if len(names) == 0 {
		return current
	}
	idx := 0
	for i, name := range names {
		if name == current {
			idx = i
			break
		}
	}
	idx = (idx + step) % len(names)
	if idx < 0 {
		idx += len(names)
	}
	return names[idx]
}

// levelColor matches the level to the counter it feeds.
func (p palette) levelColor(l engine.Level) lipgloss.Color {
	switch l {
	case engine.LevelAwareness:
		return p.Awareness
	case engine.LevelControl:
		return p.Control
	case engine.LevelSwitching:
		return p.Energy
	default:
		return p.Text
	}
}

type styles struct {
	title  lipgloss.Style
	muted  lipgloss.Style
	panel  lipgloss.Style
	modal  lipgloss.Style
	accent lipgloss.Style
	warn   lipgloss.Style
	ok     lipgloss.Style
	key    lipgloss.Style
}

func newStyles(p palette) styles {
	return styles{
		title:  lipgloss.NewStyle().Bold(true).Foreground(p.Accent),
		muted:  lipgloss.NewStyle().Foreground(p.Muted),
		panel:  lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(p.Border).Padding(0, 2),
		modal:  lipgloss.NewStyle().Border(lipgloss.ThickBorder()).BorderForeground(p.Warning).Padding(1, 3),
		accent: lipgloss.NewStyle().Foreground(p.AccentAlt).Bold(true),
		warn:   lipgloss.NewStyle().Foreground(p.Warning),
		ok:     lipgloss.NewStyle().Foreground(p.Success),
		key:    lipgloss.NewStyle().Foreground(p.Accent).Bold(true),
	}
}
