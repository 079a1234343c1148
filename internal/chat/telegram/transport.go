package telegram

import (
	"context"
	"fmt"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/tm-signals/signals_service/internal/chat"
	"github.com/tm-signals/signals_service/pkg/metrics"
	"go.uber.org/zap"
)

const defaultPollTimeout = 60 * time.Second

// commands are counted by name; anything else is counted as "unknown"
var commands = map[string]bool{
	"start": true, "help": true, "signal": true, "top": true, "market": true,
	"portfolio": true, "buy": true, "sell": true, "transactions": true,
	"performance": true, "subscribe": true, "unsubscribe": true, "email": true,
}

// Handler answers chat input. *chat.Bot implements it.
type Handler interface {
	HandleCommand(ctx context.Context, user chat.User, command string, args []string) chat.Reply
	HandleCallback(ctx context.Context, user chat.User, data string) chat.Reply
}

// botAPI is the subset of *tgbotapi.BotAPI the transport uses
type botAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

type Config struct {
	Token       string
	PollTimeout time.Duration
	Debug       bool
}

// Transport long-polls Telegram for updates and posts replies
type Transport struct {
	api         botAPI
	handler     Handler
	pollTimeout time.Duration
	logger      *zap.Logger
}

func New(cfg Config, handler Handler, logger *zap.Logger) (*Transport, error) {
	if cfg.Token == "" {
		return nil, fmt.Errorf("telegram bot token is required")
	}
	api, err := tgbotapi.NewBotAPI(cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to telegram: %w", err)
	}
	api.Debug = cfg.Debug

	logger.Info("Telegram bot authorized", zap.String("username", api.Self.UserName))
	return newTransport(api, handler, cfg.PollTimeout, logger), nil
}

func newTransport(api botAPI, handler Handler, pollTimeout time.Duration, logger *zap.Logger) *Transport {
	if pollTimeout <= 0 {
		pollTimeout = defaultPollTimeout
	}
	return &Transport{
		api:         api,
		handler:     handler,
		pollTimeout: pollTimeout,
		logger:      logger.Named("telegram"),
	}
}

// Run processes updates until ctx is cancelled
func (t *Transport) Run(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = int(t.pollTimeout.Seconds())
	updates := t.api.GetUpdatesChan(u)

	t.logger.Info("Telegram long polling started")
	for {
		select {
		case <-ctx.Done():
			t.api.StopReceivingUpdates()
			t.logger.Info("Telegram long polling stopped")
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			t.dispatch(ctx, update)
		}
	}
}

// SendText posts a plain message to chatID
func (t *Transport) SendText(ctx context.Context, chatID int64, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := t.api.Send(tgbotapi.NewMessage(chatID, text)); err != nil {
		return fmt.Errorf("telegram send to %d: %w", chatID, err)
	}
	return nil
}

func (t *Transport) dispatch(ctx context.Context, update tgbotapi.Update) {
	defer func() {
		if r := recover(); r != nil {
			t.logger.Error("Panic while handling telegram update",
				zap.Int("update_id", update.UpdateID),
				zap.Any("panic", r))
		}
	}()

	switch {
	case update.CallbackQuery != nil:
		t.handleCallback(ctx, update.CallbackQuery)
	case update.Message != nil && update.Message.IsCommand():
		t.handleCommand(ctx, update.Message)
	}
}

func (t *Transport) handleCommand(ctx context.Context, msg *tgbotapi.Message) {
	user := chat.User{ChatID: msg.Chat.ID}
	if msg.From != nil {
		user.ID = msg.From.ID
		user.Username = msg.From.UserName
		user.FirstName = msg.From.FirstName
	}

	command := strings.ToLower(msg.Command())
	label := command
	if !commands[label] {
		label = "unknown"
	}
	metrics.ChatCommandsTotal.WithLabelValues(label).Inc()

	reply := t.handler.HandleCommand(ctx, user, command, strings.Fields(msg.CommandArguments()))
	t.post(msg.Chat.ID, reply)
}

func (t *Transport) handleCallback(ctx context.Context, q *tgbotapi.CallbackQuery) {
	if _, err := t.api.Request(tgbotapi.NewCallback(q.ID, "")); err != nil {
		t.logger.Warn("Failed to answer callback query", zap.Error(err))
	}
	if q.Message == nil || q.From == nil {
		return
	}

	user := chat.User{
		ID:        q.From.ID,
		ChatID:    q.Message.Chat.ID,
		Username:  q.From.UserName,
		FirstName: q.From.FirstName,
	}
	metrics.ChatCommandsTotal.WithLabelValues("callback").Inc()
	reply := t.handler.HandleCallback(ctx, user, q.Data)

	if !reply.Edit {
		t.post(q.Message.Chat.ID, reply)
		return
	}

	edit := tgbotapi.NewEditMessageText(q.Message.Chat.ID, q.Message.MessageID, reply.Text)
	if markup := keyboard(reply.Keyboard); markup != nil {
		edit.ReplyMarkup = markup
	}
	if _, err := t.api.Send(edit); err != nil {
		t.logger.Error("Failed to edit telegram message",
			zap.Int64("chat_id", q.Message.Chat.ID),
			zap.Error(err))
	}
}

func (t *Transport) post(chatID int64, reply chat.Reply) {
	msg := tgbotapi.NewMessage(chatID, reply.Text)
	if markup := keyboard(reply.Keyboard); markup != nil {
		msg.ReplyMarkup = *markup
	}
	if _, err := t.api.Send(msg); err != nil {
		t.logger.Error("Failed to send telegram message", zap.Int64("chat_id", chatID), zap.Error(err))
	}
}

func keyboard(rows [][]chat.Button) *tgbotapi.InlineKeyboardMarkup {
	if len(rows) == 0 {
		return nil
	}
	out := make([][]tgbotapi.InlineKeyboardButton, 0, len(rows))
	for _, row := range rows {
		buttons := make([]tgbotapi.InlineKeyboardButton, 0, len(row))
		for _, b := range row {
			buttons = append(buttons, tgbotapi.NewInlineKeyboardButtonData(b.Text, b.Data))
		}
		out = append(out, tgbotapi.NewInlineKeyboardRow(buttons...))
	}
	markup := tgbotapi.NewInlineKeyboardMarkup(out...)
	return &markup
}
