package ui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"

	"github.com/DaanHessen/rewire/internal/engine"
	"github.com/DaanHessen/rewire/internal/session"
	"github.com/DaanHessen/rewire/internal/util"
)

const (
	viewStatus   = "status"
	viewExercise = "exercise"
	viewJournal  = "journal"
	viewSurprise = "surprise"
	viewHistory  = "history"
	viewHelp     = "help"
)

// journal focus slots: two text fields then the outcome buttons
const (
	focusFeeling = iota
	focusTrigger
	focusOutcome
)

type (
	tickMsg          struct{ wave int }
	surpriseCheckMsg struct{}
	surpriseFireMsg  struct{ gen uint64 }
	insightMsg       struct {
		text string
		err  error
	}
	suggestionMsg   struct{ text string }
	alternativesMsg struct{ alts []string }
)

type model struct {
	ctx     context.Context
	sess    *session.Session
	cfg     util.Config
	version string

	view      string
	themeName string
	pal       palette
	styles    styles
	md        *glamour.TermRenderer
	width     int
	height    int
	status    string

	// guided exercise
	wave      int // bumps on every new wave so stale ticks are dropped
	remaining int
	bar       progress.Model

	// journal form
	inputs    []textinput.Model
	focus     int
	succeeded bool

	// advisory panels
	spinner             spinner.Model
	loadingInsight      bool
	loadingSuggestion   bool
	loadingAlternatives bool
	alternatives        []string
	altIndex            int

	historyScroll int

	initCmd tea.Cmd
}

func initialModel(ctx context.Context, sess *session.Session, cfg util.Config, version string) model {
	m := model{
		ctx:       ctx,
		sess:      sess,
		cfg:       cfg,
		version:   version,
		view:      viewStatus,
		themeName: cfg.Theme,
		succeeded: true,
		width:     80,
	}
	m.spinner = spinner.New(spinner.WithSpinner(spinner.Dot))
	m.applyTheme(cfg.Theme)

	feeling := textinput.New()
	feeling.Placeholder = "What did you feel? (boredom, anxiety, curiosity)"
	feeling.CharLimit = 120
	trigger := textinput.New()
	trigger.Placeholder = "What triggered it? (scrolling, end of work)"
	trigger.CharLimit = 120
	m.inputs = []textinput.Model{feeling, trigger}
	m, m.initCmd = m.startPendingAdvice()
	return m
}

func (m *model) applyTheme(name string) {
	m.themeName = name
	m.pal = paletteFor(name)
	m.styles = newStyles(m.pal)
	m.spinner.Style = lipgloss.NewStyle().Foreground(m.pal.Accent)
	m.bar = progress.New(progress.WithSolidFill(string(m.pal.BarFill)), progress.WithoutPercentage())
	m.bar.EmptyColor = string(m.pal.BarEmpty)
	m.bar.Width = 40
	m.md = newMarkdownRenderer(m.width)
}

func newMarkdownRenderer(width int) *glamour.TermRenderer {
	wrap := width - 8
	if wrap < 20 {
		wrap = 20
	}
	r, err := glamour.NewTermRenderer(glamour.WithStandardStyle("dark"), glamour.WithWordWrap(wrap))
	if err != nil {
		return nil
	}
	return r
}

func (m model) renderMarkdown(s string) string {
	if m.md == nil {
		return s
	}
	out, err := m.md.Render(s)
	if err != nil {
		return s
	}
	return strings.TrimSpace(out)
}

// tea.Model implementation ---------------------------------------------------

func (m model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.scheduleSurpriseCheck(), m.initCmd)
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.md = newMarkdownRenderer(msg.Width)
		return m, nil
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	case tickMsg:
		return m.onTick(msg)
	case surpriseCheckMsg:
		return m.onSurpriseCheck()
	case surpriseFireMsg:
		return m.onSurpriseFire(msg)
	case insightMsg:
		m.loadingInsight = false
		if errors.Is(msg.err, session.ErrNotSaved) {
			m.status = "Insight received but progress could not be saved."
		}
		return m, nil
	case suggestionMsg:
		m.loadingSuggestion = false
		return m, nil
	case alternativesMsg:
		m.loadingAlternatives = false
		m.alternatives = msg.alts
		m.altIndex = 0
		return m, nil
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
		switch m.view {
		case viewExercise:
			return m.keyExercise(msg)
		case viewJournal:
			return m.keyJournal(msg)
		case viewSurprise:
			return m.keySurprise(msg)
		case viewHistory:
			return m.keyHistory(msg)
		case viewHelp:
			if k := msg.String(); k == "esc" || k == "q" || k == "?" {
				m.view = viewStatus
			}
			return m, nil
		default:
			return m.keyStatus(msg)
		}
	}
	return m, nil
}

func (m model) View() string {
	switch m.view {
	case viewExercise:
		return m.renderExercise()
	case viewJournal:
		return m.renderJournal()
	case viewSurprise:
		return m.renderSurprise()
	case viewHistory:
		return m.renderHistory()
	case viewHelp:
		return m.renderHelp()
	default:
		return m.renderStatus()
	}
}

// modalOpen reports whether the log flow is on screen. The check-in never
// interrupts it.
func (m model) modalOpen() bool {
	return m.view == viewExercise || m.view == viewJournal
}

// key handling ---------------------------------------------------------------

func (m model) keyStatus(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "esc":
		return m, tea.Quit
	case "w", "enter", " ":
		return m.startWave()
	case "h":
		m.view = viewHistory
		m.historyScroll = 0
	case "t":
		m.applyTheme(nextThemeName(m.themeName, 1))
		m.status = "Theme: " + m.themeName
	case "?":
		m.view = viewHelp
	}
	return m, nil
}

func (m model) startWave() (tea.Model, tea.Cmd) {
	m.wave++
	m.remaining = m.cfg.Wave.CountdownSeconds
	if m.remaining <= 0 {
		m.remaining = engine.DefaultCountdown
	}
	m.view = viewExercise
	m.status = ""
	return m, waveTick(m.wave)
}

func waveTick(wave int) tea.Cmd {
	return tea.Tick(time.Second, func(time.Time) tea.Msg { return tickMsg{wave: wave} })
}

func (m model) onTick(msg tickMsg) (tea.Model, tea.Cmd) {
	if msg.wave != m.wave || m.view != viewExercise {
		return m, nil
	}
	m.remaining--
	if m.remaining > 0 {
		return m, waveTick(m.wave)
	}
	return m.openJournal()
}

func (m model) openJournal() (tea.Model, tea.Cmd) {
	m.view = viewJournal
	m.succeeded = true
	for i := range m.inputs {
		m.inputs[i].Reset()
		m.inputs[i].Blur()
	}
	m.focus = focusFeeling
	return m, m.inputs[focusFeeling].Focus()
}

func (m model) keyExercise(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.String() == "esc" {
		m.view = viewStatus
		m.wave++
	}
	return m, nil
}

func (m model) setFocus(i int) (model, tea.Cmd) {
	for j := range m.inputs {
		m.inputs[j].Blur()
	}
	m.focus = i
	if i < len(m.inputs) {
		return m, m.inputs[i].Focus()
	}
	return m, nil
}

func (m model) keyJournal(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	k := msg.String()
	switch k {
	case "esc":
		m.view = viewStatus
		m.status = ""
		return m, nil
	case "tab", "down":
		next, cmd := m.setFocus((m.focus + 1) % 3)
		return next, cmd
	case "shift+tab", "up":
		next, cmd := m.setFocus((m.focus + 2) % 3)
		return next, cmd
	case "enter":
		if m.focus < focusOutcome {
			next, cmd := m.setFocus(m.focus + 1)
			return next, cmd
		}
		return m.submitJournal()
	}
	if m.focus == focusOutcome {
		switch k {
		case "left", "right", "h", "l":
			m.succeeded = !m.succeeded
		case "y":
			m.succeeded = true
			return m.submitJournal()
		case "n":
			m.succeeded = false
			return m.submitJournal()
		}
		return m, nil
	}
	var cmd tea.Cmd
	m.inputs[m.focus], cmd = m.inputs[m.focus].Update(msg)
	return m, cmd
}

func (m model) submitJournal() (tea.Model, tea.Cmd) {
	sub := engine.Submission{
		Feeling:   m.inputs[focusFeeling].Value(),
		Trigger:   m.inputs[focusTrigger].Value(),
		Succeeded: m.succeeded,
	}
	before := m.sess.State()
	_, err := m.sess.Submit(m.ctx, sub)
	var verr *engine.ValidationError
	switch {
	case errors.As(err, &verr):
		m.status = "Please fill in both the feeling and the trigger."
		slot := focusFeeling
		if verr.Field == "trigger" {
			slot = focusTrigger
		}
		next, cmd := m.setFocus(slot)
		return next, cmd
	case errors.Is(err, session.ErrNotSaved):
		m.status = "Logged, but progress could not be saved. It will be retried on the next change."
	case err != nil:
		m.status = "Logging failed: " + err.Error()
	default:
		m.status = transitionSummary(before, m.sess.State())
	}
	m.view = viewStatus
	next, cmd := m.startPendingAdvice()
	return next, cmd
}

func transitionSummary(before, after engine.ProgressState) string {
	switch {
	case after.Level > before.Level:
		return fmt.Sprintf("Level up! Welcome to %s.", after.Level)
	case after.CurrentDay > before.CurrentDay:
		return fmt.Sprintf("Wave ridden out. Day %d.", after.CurrentDay)
	case after.CurrentDay < before.CurrentDay:
		return fmt.Sprintf("Logged. Back to day %d; the next wave is a new chance.", after.CurrentDay)
	default:
		return "Logged."
	}
}

func (m model) keySurprise(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch k := msg.String(); k {
	case "esc", "d":
		m.sess.DismissSurprise()
		m.view = viewStatus
		m.alternatives = nil
	case "up", "k":
		if m.altIndex > 0 {
			m.altIndex--
		}
	case "down", "j":
		if m.altIndex < len(m.alternatives)-1 {
			m.altIndex++
		}
	case "1", "2", "3":
		idx := int(k[0] - '1')
		if idx < len(m.alternatives) {
			m.altIndex = idx
			return m.answerSurprise()
		}
	case "enter":
		if !m.loadingAlternatives && len(m.alternatives) > 0 {
			return m.answerSurprise()
		}
	}
	return m, nil
}

func (m model) answerSurprise() (tea.Model, tea.Cmd) {
	choice := m.alternatives[m.altIndex]
	if err := m.sess.AnswerSurprise(m.ctx); err != nil && !errors.Is(err, session.ErrNotSaved) {
		m.status = "Check-in closed: " + err.Error()
	} else {
		m.status = fmt.Sprintf("%s it is. +%d control.", choice, engine.SurpriseReward)
	}
	m.view = viewStatus
	m.alternatives = nil
	return m, nil
}

func (m model) keyHistory(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "pgdown", "ctrl+f":
		m.historyScroll += 12
	case "pgup", "ctrl+b":
		m.historyScroll -= 12
	case "down", "j":
		m.historyScroll += 1
	case "up", "k":
		m.historyScroll -= 1
	case "home":
		m.historyScroll = 0
	case "end":
		m.historyScroll = 1 << 30
	case "esc", "q", "h":
		m.view = viewStatus
	}
	if m.historyScroll < 0 {
		m.historyScroll = 0
	}
	return m, nil
}

// advisory calls -------------------------------------------------------------

// startPendingAdvice fires the advisory calls the current state makes due.
// Each runs as its own command and never blocks a transition.
func (m model) startPendingAdvice() (model, tea.Cmd) {
	var cmds []tea.Cmd
	for _, c := range m.sess.PendingAdvice() {
		switch c {
		case session.CapInsight:
			if m.loadingInsight {
				continue
			}
			m.loadingInsight = true
			cmds = append(cmds, func() tea.Msg {
				s, err := m.sess.RequestInsight(m.ctx)
				return insightMsg{text: s, err: err}
			})
		case session.CapSuggestion:
			if m.loadingSuggestion {
				continue
			}
			m.loadingSuggestion = true
			cmds = append(cmds, func() tea.Msg {
				return suggestionMsg{text: m.sess.RequestSuggestion(m.ctx)}
			})
		}
	}
	return m, tea.Batch(cmds...)
}

// surprise check-in ----------------------------------------------------------

func (m model) scheduleSurpriseCheck() tea.Cmd {
	interval := m.cfg.Surprise.CheckInterval
	if interval <= 0 {
		interval = time.Minute
	}
	return tea.Tick(interval, func(time.Time) tea.Msg { return surpriseCheckMsg{} })
}

func (m model) onSurpriseCheck() (tea.Model, tea.Cmd) {
	cmds := []tea.Cmd{m.scheduleSurpriseCheck()}
	if !m.modalOpen() && m.view != viewSurprise && m.sess.SurpriseDue() {
		gen := m.sess.Generation()
		cmds = append(cmds, tea.Tick(m.cfg.Surprise.DisplayDelay, func(time.Time) tea.Msg { return surpriseFireMsg{gen: gen} }))
	}
	return m, tea.Batch(cmds...)
}

// onSurpriseFire opens the check-in unless anything it depended on moved since
// it was armed.
func (m model) onSurpriseFire(msg surpriseFireMsg) (tea.Model, tea.Cmd) {
	if msg.gen != m.sess.Generation() || m.modalOpen() || m.view == viewSurprise {
		return m, nil
	}
	if !m.sess.OpenSurprise() {
		return m, nil
	}
	m.view = viewSurprise
	m.loadingAlternatives = true
	m.alternatives = nil
	return m, func() tea.Msg {
		return alternativesMsg{alts: m.sess.RequestAlternatives(m.ctx)}
	}
}

// rendering ------------------------------------------------------------------

func (m model) renderStatus() string {
	st := m.sess.State()
	var b strings.Builder
	b.WriteString(m.styles.title.Render("REWIRE QUEST") + "  " + m.styles.muted.Render("your journey to a new mind") + "\n\n")
	b.WriteString(m.renderStats(st) + "\n")
	b.WriteString("  " + m.styles.key.Render("[w]") + " Face a wave now  " + m.styles.muted.Render("press when an urge or trigger hits") + "\n")

	if panel := m.renderInsight(st); panel != "" {
		b.WriteString("\n" + panel + "\n")
	}
	if st.Level == engine.LevelSwitching {
		b.WriteString("\n" + m.renderEnvironment(st) + "\n")
		if panel := m.renderSuggestion(); panel != "" {
			b.WriteString("\n" + panel + "\n")
		}
	}
	b.WriteString("\n" + m.renderBottomBar())
	return b.String()
}

func (m model) renderStats(st engine.ProgressState) string {
	levelStyle := lipgloss.NewStyle().Bold(true).Foreground(m.pal.levelColor(st.Level))
	top := fmt.Sprintf("Day %s    Level %d: %s",
		lipgloss.NewStyle().Bold(true).Render(fmt.Sprint(st.CurrentDay)),
		int(st.Level), levelStyle.Render(st.Level.String()))
	points := fmt.Sprintf("%s %d   %s %d   %s %d",
		lipgloss.NewStyle().Foreground(m.pal.Awareness).Render(engine.LevelAwareness.Counter()), st.AwarenessPoints,
		lipgloss.NewStyle().Foreground(m.pal.Control).Render(engine.LevelControl.Counter()), st.ControlPoints,
		lipgloss.NewStyle().Foreground(m.pal.Energy).Render(engine.LevelSwitching.Counter()), st.Energy)
	if c := st.Level.Counter(); c != "" {
		points += "\n" + m.styles.muted.Render("a held wave earns "+c)
	}
	return m.styles.panel.Render(top + "\n" + points)
}

func (m model) renderInsight(st engine.ProgressState) string {
	title := m.styles.accent.Render("Insight from your coach")
	switch {
	case m.loadingInsight:
		return m.styles.panel.Render(title + "\n" + m.spinner.View() + " reading your notes...")
	case st.AIInsight != nil && *st.AIInsight != "":
		return m.styles.panel.Render(title + "\n" + m.renderMarkdown(*st.AIInsight))
	}
	return ""
}

func (m model) renderSuggestion() string {
	title := m.styles.accent.Render("A suggestion for you")
	if m.loadingSuggestion {
		return m.styles.panel.Render(title + "\n" + m.spinner.View() + " thinking...")
	}
	if s, ok := m.sess.Suggestion(); ok {
		return m.styles.panel.Render(title + "\n" + m.renderMarkdown(s))
	}
	return ""
}

func (m model) renderEnvironment(st engine.ProgressState) string {
	env := engine.EnvironmentFor(st.Energy)
	body := fmt.Sprintf("%s\n%s  %s\n%s",
		m.styles.accent.Render("Your inner environment"),
		env.Emoji, lipgloss.NewStyle().Bold(true).Foreground(m.pal.Energy).Render(env.Name),
		m.styles.muted.Render(env.Description))
	return m.styles.panel.Render(body)
}

func (m model) renderBottomBar() string {
	keys := []string{"w wave", "h history", "t theme", "? help", "q quit"}
	bar := m.styles.muted.Render(strings.Join(keys, "  ·  "))
	if m.status != "" {
		bar = m.styles.warn.Render(m.status) + "\n" + bar
	}
	return bar
}

func (m model) renderExercise() string {
	total := m.cfg.Wave.CountdownSeconds
	if total <= 0 {
		total = engine.DefaultCountdown
	}
	phase := engine.PhaseFor(m.remaining, total)
	elapsed := float64(total-m.remaining) / float64(total)
	content := fmt.Sprintf("%s\n\n%s\n\n%s  %s\n\n%s",
		m.styles.title.Render(phase.Name),
		phase.Hint,
		m.bar.ViewAs(elapsed),
		lipgloss.NewStyle().Bold(true).Render(fmt.Sprintf("%2ds", m.remaining)),
		m.styles.muted.Render("This exercise helps you ride out the wave. Stay with the moment.  esc close"))
	return m.styles.panel.Padding(1, 3).Render(content)
}

func (m model) renderJournal() string {
	var b strings.Builder
	b.WriteString(m.styles.title.Render("Log your notes") + "\n\n")
	b.WriteString("Feeling\n" + m.inputs[focusFeeling].View() + "\n\n")
	b.WriteString("Trigger\n" + m.inputs[focusTrigger].View() + "\n\n")

	resisted, gaveIn := "  I held on  ", "  I gave in  "
	on := lipgloss.NewStyle().Bold(true).Reverse(true)
	if m.succeeded {
		resisted = on.Foreground(m.pal.Success).Render(resisted)
		gaveIn = m.styles.muted.Render(gaveIn)
	} else {
		resisted = m.styles.muted.Render(resisted)
		gaveIn = on.Foreground(m.pal.AccentAlt).Render(gaveIn)
	}
	marker := "  "
	if m.focus == focusOutcome {
		marker = m.styles.key.Render("> ")
	}
	b.WriteString(marker + resisted + "   " + gaveIn + "\n\n")
	if m.status != "" {
		b.WriteString(m.styles.warn.Render(m.status) + "\n")
	}
	b.WriteString(m.styles.muted.Render("tab next field · ←/→ choose · enter submit · y/n quick submit · esc close"))
	return m.styles.panel.Padding(1, 3).Render(b.String())
}

func (m model) renderSurprise() string {
	var b strings.Builder
	b.WriteString(m.styles.title.Render("Surprise check-in!") + "\n\n")
	b.WriteString("What is the trigger right now? Pick a healthy alternative to face it.\n\n")
	if m.loadingAlternatives {
		b.WriteString(m.spinner.View() + " finding alternatives...\n")
	} else {
		for i, alt := range m.alternatives {
			line := fmt.Sprintf("[%d] %s", i+1, alt)
			if i == m.altIndex {
				line = m.styles.key.Render("> " + line)
			} else {
				line = "  " + line
			}
			b.WriteString(line + "\n")
		}
	}
	b.WriteString("\n" + m.styles.muted.Render(fmt.Sprintf("enter pick (+%d control) · esc ignore", engine.SurpriseReward)))
	return m.styles.modal.Render(b.String())
}

func (m model) renderHistory() string {
	st := m.sess.State()
	lines := make([]string, 0, len(st.Logs))
	loc := m.sess.Now().Location()
	for _, l := range st.Logs {
		mark := m.styles.ok.Render("✓")
		if !l.Succeeded {
			mark = m.styles.warn.Render("✗")
		}
		lines = append(lines, fmt.Sprintf("%s day %-3d %s  felt %q due to %q",
			mark, l.Day, m.styles.muted.Render(l.Time(loc).Format("Jan 02 15:04")), l.Feeling, l.Trigger))
	}
	if len(lines) == 0 {
		lines = append(lines, m.styles.muted.Render("(no waves logged yet)"))
	}
	page := m.height - 6
	if page < 5 {
		page = 15
	}
	start := m.historyScroll
	if maxStart := len(lines) - page; start > maxStart {
		start = max(maxStart, 0)
	}
	end := min(start+page, len(lines))
	var b strings.Builder
	b.WriteString(m.styles.title.Render(fmt.Sprintf("History (%d waves)", len(st.Logs))) + "\n\n")
	b.WriteString(strings.Join(lines[start:end], "\n") + "\n\n")
	b.WriteString(m.styles.muted.Render("↑/↓ scroll · pgup/pgdn page · esc back"))
	return b.String()
}

func (m model) renderHelp() string {
	content := fmt.Sprintf(`REWIRE QUEST: HOW IT WORKS

When an urge hits, press w. A %d second exercise helps the wave pass,
then note what you felt and what triggered it.

Levels
  1 Awareness  days 1-3   successes earn awareness
  2 Control    days 4-7   successes earn control; surprise check-ins appear
  3 Switching  day 8+     successes earn energy and grow your environment

Holding on advances one day, at most once per calendar day.
Giving in steps back one day, never below the start of your level.

Version %s  ·  esc back`, m.cfg.Wave.CountdownSeconds, m.version)
	return lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(m.pal.Border).Padding(1, 2).Width(72).Render(content)
}
