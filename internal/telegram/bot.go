// Package telegram is the chat front end. It drives the same session as the
// TUI for a single configured chat.
package telegram

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/DaanHessen/rewire/internal/engine"
	"github.com/DaanHessen/rewire/internal/session"
)

const (
	cbPick    = "surprise_pick_"
	cbDismiss = "surprise_dismiss"
)

// sender is the part of tgbotapi.BotAPI the bot talks through.
type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

type handler func(ctx context.Context, msg *tgbotapi.Message)

type Option func(*Bot)

// WithCountdown sets the length in seconds of the guided exercise.
func WithCountdown(seconds int) Option {
	return func(b *Bot) {
		if seconds > 0 {
			b.countdown = seconds
		}
	}
}

type Bot struct {
	api       sender
	client    *tgbotapi.BotAPI
	chatID    int64
	sess      *session.Session
	log       *zap.Logger
	handlers  map[string]handler
	countdown int

	mu      sync.Mutex
	pending []string // alternatives offered by the open check-in

	advice sync.WaitGroup
}

// NewBot connects to the Bot API.
func NewBot(token string, chatID int64, sess *session.Session, log *zap.Logger, opts ...Option) (*Bot, error) {
	client, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("create bot: %w", err)
	}
	b := newBot(client, chatID, sess, log, opts...)
	b.client = client
	b.log.Info("bot connected", zap.String("username", client.Self.UserName))
	return b, nil
}

func newBot(api sender, chatID int64, sess *session.Session, log *zap.Logger, opts ...Option) *Bot {
	if log == nil {
		log = zap.NewNop()
	}
	b := &Bot{
		api:       api,
		chatID:    chatID,
		sess:      sess,
		log:       log.With(zap.String("component", "telegram")),
		handlers:  map[string]handler{},
		countdown: engine.DefaultCountdown,
	}
	for _, opt := range opts {
		opt(b)
	}
	b.registerHandlers()
	return b
}

func (b *Bot) registerHandlers() {
	b.handlers["/start"] = b.handleStart
	b.handlers["/help"] = b.handleStart
	b.handlers["/status"] = b.handleStatus
	b.handlers["/wave"] = b.handleWave
	b.handlers["/log"] = b.handleLog
	b.handlers["/history"] = b.handleHistory
}

// Run polls for updates and runs the surprise check on schedule until ctx is
// cancelled.
func (b *Bot) Run(ctx context.Context, schedule string) error {
	if b.client == nil {
		return errors.New("bot is not connected")
	}
	c := cron.New()
	if _, err := c.AddFunc(schedule, func() { b.checkSurprise(ctx) }); err != nil {
		return fmt.Errorf("schedule %q: %w", schedule, err)
	}
	c.Start()
	defer func() { <-c.Stop().Done() }()
	defer b.advice.Wait()

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := b.client.GetUpdatesChan(u)
	defer b.client.StopReceivingUpdates()

	b.sendOrLog(b.welcomeText())
	for {
		select {
		case <-ctx.Done():
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			b.handleUpdate(ctx, update)
		}
	}
}

func (b *Bot) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	if update.CallbackQuery != nil {
		b.handleCallback(ctx, update.CallbackQuery)
		return
	}
	msg := update.Message
	if msg == nil || msg.Chat == nil || msg.Text == "" {
		return
	}
	if msg.Chat.ID != b.chatID {
		b.log.Warn("message from unknown chat", zap.Int64("chat_id", msg.Chat.ID))
		return
	}
	if !strings.HasPrefix(msg.Text, "/") {
		b.sendOrLog("Use /wave when an urge hits, then /log what happened. /help lists every command.")
		return
	}
	command := strings.Fields(msg.Text)[0]
	if at := strings.IndexByte(command, '@'); at > 0 {
		command = command[:at]
	}
	h, ok := b.handlers[command]
	if !ok {
		b.sendOrLog("Unknown command. Use /help")
		return
	}
	h(ctx, msg)
}

func (b *Bot) handleCallback(ctx context.Context, cb *tgbotapi.CallbackQuery) {
	if _, err := b.api.Request(tgbotapi.NewCallback(cb.ID, "")); err != nil {
		b.log.Warn("callback ack failed", zap.Error(err))
	}
	if cb.Message == nil || cb.Message.Chat == nil || cb.Message.Chat.ID != b.chatID {
		return
	}
	switch data := cb.Data; {
	case data == cbDismiss:
		b.sess.DismissSurprise()
		b.setPending(nil)
		b.clearKeyboard(cb.Message.MessageID)
		b.sendOrLog("Check-in dismissed.")
	case strings.HasPrefix(data, cbPick):
		idx, err := strconv.Atoi(strings.TrimPrefix(data, cbPick))
		if err != nil {
			return
		}
		b.answerSurprise(ctx, idx, cb.Message.MessageID)
	}
}

func (b *Bot) answerSurprise(ctx context.Context, idx, messageID int) {
	err := b.sess.AnswerSurprise(ctx)
	b.clearKeyboard(messageID)
	switch {
	case errors.Is(err, session.ErrNoPrompt):
		b.sendOrLog("This check-in has already closed.")
		return
	case errors.Is(err, session.ErrNotSaved):
		b.sendOrLog("Points awarded, but progress could not be saved.")
		return
	}
	choice := "Good choice"
	if alts := b.setPending(nil); idx >= 0 && idx < len(alts) {
		choice = alts[idx]
	}
	st := b.sess.State()
	b.sendOrLog(fmt.Sprintf("✅ <b>%s</b>. +%d control points (now %d).", escape(choice), engine.SurpriseReward, st.ControlPoints))
}

func (b *Bot) clearKeyboard(messageID int) {
	edit := tgbotapi.NewEditMessageReplyMarkup(b.chatID, messageID, tgbotapi.InlineKeyboardMarkup{InlineKeyboard: [][]tgbotapi.InlineKeyboardButton{}})
	if _, err := b.api.Request(edit); err != nil {
		b.log.Debug("clear keyboard failed", zap.Int("message_id", messageID), zap.Error(err))
	}
}

// checkSurprise is the cron job. It opens a check-in when the scheduler says
// one is due and offers the alternatives as buttons.
func (b *Bot) checkSurprise(ctx context.Context) {
	if !b.sess.SurpriseDue() || !b.sess.OpenSurprise() {
		return
	}
	alts := b.sess.RequestAlternatives(ctx)
	b.setPending(alts)

	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(alts)+1)
	for i, alt := range alts {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(alt, fmt.Sprintf("%s%d", cbPick, i))))
	}
	rows = append(rows, tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData("Not now", cbDismiss)))

	msg := tgbotapi.NewMessage(b.chatID, "🔔 <b>Surprise check-in!</b>\n\nWhat is the trigger right now? Pick a healthy alternative to face it.")
	msg.ParseMode = tgbotapi.ModeHTML
	msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(rows...)
	if _, err := b.api.Send(msg); err != nil {
		b.log.Error("send check-in failed", zap.Error(err))
		b.sess.DismissSurprise()
		b.setPending(nil)
		return
	}
	b.log.Info("check-in sent", zap.Int("alternatives", len(alts)))
}

// setPending replaces the offered alternatives and returns the previous ones.
func (b *Bot) setPending(alts []string) []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	prev := b.pending
	b.pending = alts
	return prev
}

func (b *Bot) send(text string) error {
	msg := tgbotapi.NewMessage(b.chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	_, err := b.api.Send(msg)
	return err
}

func (b *Bot) sendOrLog(text string) {
	if err := b.send(text); err != nil {
		b.log.Error("send failed", zap.Error(err))
	}
}
