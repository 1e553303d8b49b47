package telegram

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/DaanHessen/rewire/internal/engine"
	"github.com/DaanHessen/rewire/internal/session"
)

const welcomeTemplate = `🌊 <b>Rewire Quest</b>

When an urge hits, ride the wave and write down what happened.

/wave - guided exercise for the next %d seconds
/log feeling ; trigger ; yes|no - record a wave (yes = you held on)
/status - day, level and points
/history - your last waves
/help - this message

Example:
/log bored ; scrolling after work ; yes`

const historyLimit = 10

// errLogUsage is returned by parseLog for malformed /log arguments.
var errLogUsage = errors.New("usage: /log feeling ; trigger ; yes|no")

func escape(s string) string { return html.EscapeString(s) }

func (b *Bot) welcomeText() string { return fmt.Sprintf(welcomeTemplate, b.countdown) }

func (b *Bot) handleStart(_ context.Context, _ *tgbotapi.Message) {
	b.sendOrLog(b.welcomeText())
}

func (b *Bot) handleStatus(_ context.Context, _ *tgbotapi.Message) {
	b.sendOrLog(statusText(b.sess.State(), b.suggestion()))
}

func (b *Bot) suggestion() string {
	s, _ := b.sess.Suggestion()
	return s
}

func (b *Bot) handleWave(_ context.Context, _ *tgbotapi.Message) {
	var sb strings.Builder
	fmt.Fprintf(&sb, "🌊 <b>Ride the wave</b>\n\nThe urge peaks and passes. Stay with it for %d seconds:\n\n", b.countdown)
	step := engine.PhaseSeconds(b.countdown)
	for i, p := range engine.Phases {
		fmt.Fprintf(&sb, "%d. <b>%s</b> (%ds)\n<i>%s</i>\n\n", i+1, p.Name, step, p.Hint)
	}
	sb.WriteString("Then send /log feeling ; trigger ; yes|no")
	b.sendOrLog(sb.String())
}

func (b *Bot) handleLog(ctx context.Context, msg *tgbotapi.Message) {
	sub, err := parseLog(msg.Text)
	if err != nil {
		b.sendOrLog("❌ " + escape(err.Error()))
		return
	}
	before := b.sess.State()
	_, err = b.sess.Submit(ctx, sub)
	var verr *engine.ValidationError
	switch {
	case errors.As(err, &verr):
		b.sendOrLog("❌ Please fill in both the feeling and the trigger.")
		return
	case errors.Is(err, session.ErrNotSaved):
		b.sendOrLog("⚠️ Logged, but progress could not be saved.")
	case err != nil:
		b.log.Error("submit failed", zap.Error(err))
		b.sendOrLog("❌ Could not log this wave.")
		return
	}
	b.sendOrLog(transitionText(before, b.sess.State()))
	if pending := b.sess.PendingAdvice(); len(pending) > 0 {
		b.advice.Add(1)
		go func() {
			defer b.advice.Done()
			b.deliverAdvice(ctx, pending)
		}()
	}
}

// deliverAdvice runs the advisory calls the last transition made due and
// sends their results. It runs off the update loop.
func (b *Bot) deliverAdvice(ctx context.Context, pending []session.Capability) {
	for _, c := range pending {
		switch c {
		case session.CapInsight:
			insight, err := b.sess.RequestInsight(ctx)
			if err != nil {
				b.log.Warn("insight not saved", zap.Error(err))
			}
			if insight != "" {
				b.sendOrLog("🧠 <b>Insight from your coach</b>\n\n" + escape(insight))
			}
		case session.CapSuggestion:
			b.sendOrLog("💡 <b>A suggestion for you</b>\n\n" + escape(b.sess.RequestSuggestion(ctx)))
		}
	}
}

func (b *Bot) handleHistory(_ context.Context, _ *tgbotapi.Message) {
	st := b.sess.State()
	if len(st.Logs) == 0 {
		b.sendOrLog("📭 No waves logged yet.")
		return
	}
	loc := b.sess.Now().Location()
	logs := st.Logs
	if len(logs) > historyLimit {
		logs = logs[len(logs)-historyLimit:]
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "📜 <b>Last %d of %d waves</b>\n\n", len(logs), len(st.Logs))
	for i := len(logs) - 1; i >= 0; i-- {
		l := logs[i]
		mark := "✅"
		if !l.Succeeded {
			mark = "➖"
		}
		fmt.Fprintf(&sb, "%s day %d · %s\n<i>%s</i> due to <i>%s</i>\n\n",
			mark, l.Day, l.Time(loc).Format("Jan 02 15:04"), escape(l.Feeling), escape(l.Trigger))
	}
	b.sendOrLog(strings.TrimSpace(sb.String()))
}

// parseLog reads "/log feeling ; trigger ; yes|no".
func parseLog(text string) (engine.Submission, error) {
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return engine.Submission{}, errLogUsage
	}
	rest := strings.TrimSpace(strings.TrimPrefix(text, fields[0]))
	parts := strings.Split(rest, ";")
	if len(parts) != 3 {
		return engine.Submission{}, errLogUsage
	}
	sub := engine.Submission{
		Feeling: strings.TrimSpace(parts[0]),
		Trigger: strings.TrimSpace(parts[1]),
	}
	switch strings.ToLower(strings.TrimSpace(parts[2])) {
	case "yes", "y", "held", "1":
		sub.Succeeded = true
	case "no", "n", "gave in", "0":
		sub.Succeeded = false
	default:
		return engine.Submission{}, errLogUsage
	}
	return sub, nil
}

func statusText(st engine.ProgressState, suggestion string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "📅 <b>Day %d</b> · Level %d: <b>%s</b>\n\n", st.CurrentDay, int(st.Level), st.Level)
	fmt.Fprintf(&sb, "🧭 Awareness: %d\n🎯 Control: %d\n⚡ Energy: %d\n", st.AwarenessPoints, st.ControlPoints, st.Energy)
	if c := st.Level.Counter(); c != "" {
		fmt.Fprintf(&sb, "<i>A held wave earns %s.</i>\n", c)
	}
	if st.Level == engine.LevelSwitching {
		env := engine.EnvironmentFor(st.Energy)
		fmt.Fprintf(&sb, "\n%s <b>%s</b>\n<i>%s</i>\n", env.Emoji, env.Name, env.Description)
	}
	if st.AIInsight != nil && *st.AIInsight != "" {
		fmt.Fprintf(&sb, "\n🧠 %s\n", escape(*st.AIInsight))
	}
	if suggestion != "" {
		fmt.Fprintf(&sb, "\n💡 %s\n", escape(suggestion))
	}
	return strings.TrimSpace(sb.String())
}

func transitionText(before, after engine.ProgressState) string {
	switch {
	case after.Level > before.Level:
		return fmt.Sprintf("🎉 Level up! Welcome to <b>%s</b>. Day %d.", after.Level, after.CurrentDay)
	case after.CurrentDay > before.CurrentDay:
		return fmt.Sprintf("✅ Wave ridden out. Day %d.", after.CurrentDay)
	case after.CurrentDay < before.CurrentDay:
		return fmt.Sprintf("➖ Logged. Back to day %d; the next wave is a new chance.", after.CurrentDay)
	case len(after.Logs) > 0 && after.Logs[len(after.Logs)-1].Succeeded:
		return fmt.Sprintf("✅ Logged. Day %d; the day advances once per calendar day.", after.CurrentDay)
	default:
		return fmt.Sprintf("📝 Logged. Day %d.", after.CurrentDay)
	}
}
