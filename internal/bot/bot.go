package bot

import (
	"context"
	"fmt"

	"movie-shop/internal/models"
	"movie-shop/internal/service"
	"movie-shop/internal/store"
	"movie-shop/internal/util"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

// purchasesShown bounds the /purchases listing
const purchasesShown = 20

// ConversationStore persists the per-account dialogue state
type ConversationStore interface {
	GetConversation(ctx context.Context, chatID int64) (models.Conversation, error)
	SetConversation(ctx context.Context, chatID int64, conv models.Conversation) error
	ClearConversation(ctx context.Context, chatID int64) error
}

// Bot turns chat updates into catalog, balance and checkout operations
type Bot struct {
	sender   Sender
	store    *store.Store
	convs    ConversationStore
	checkout *service.Checkout
	notifier *Notifier
	adminID  int64
	logger   *zap.Logger
}

// New creates a new bot
func New(
	sender Sender,
	store *store.Store,
	convs ConversationStore,
	checkout *service.Checkout,
	notifier *Notifier,
	adminID int64,
) *Bot {
	return &Bot{
		sender:   sender,
		store:    store,
		convs:    convs,
		checkout: checkout,
		notifier: notifier,
		adminID:  adminID,
		logger:   util.GetLogger(),
	}
}

// HandleUpdate processes a single update. Errors are logged and reported to
// the chat; nothing is returned so the poll loop keeps running.
func (b *Bot) HandleUpdate(ctx context.Context, update tgbotapi.Update) {
	switch {
	case update.CallbackQuery != nil:
		util.ChatUpdatesTotal.WithLabelValues("callback").Inc()
		b.handleCallback(ctx, update.CallbackQuery)
	case update.Message != nil:
		if update.Message.IsCommand() {
			util.ChatUpdatesTotal.WithLabelValues("command").Inc()
		} else {
			util.ChatUpdatesTotal.WithLabelValues("message").Inc()
		}
		b.handleMessage(ctx, update.Message)
	default:
		util.ChatUpdatesTotal.WithLabelValues("other").Inc()
	}
}

func (b *Bot) isAdmin(userID int64) bool {
	return b.adminID != 0 && userID == b.adminID
}

// reply sends Markdown text to a chat, optionally with markup. A rejected
// Markdown message is resent as plain text.
func (b *Bot) reply(chatID int64, text string, markup interface{}) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeMarkdown
	if markup != nil {
		msg.ReplyMarkup = markup
	}
	_, err := b.sender.Send(msg)
	switch {
	case markupRejected(err):
		b.logger.Debug("Markdown reply rejected, sending plain", zap.Int64("chat_id", chatID), zap.Error(err))
		msg.ParseMode = ""
		b.send(msg)
	case err != nil:
		util.NotificationFailuresTotal.Inc()
		b.logger.Warn("Failed to reply", zap.Int64("chat_id", chatID), zap.Error(err))
	}
}

// replyPlain sends text that must not be parsed as Markdown
func (b *Bot) replyPlain(chatID int64, text string) {
	b.send(tgbotapi.NewMessage(chatID, text))
}

func (b *Bot) send(msg tgbotapi.MessageConfig) {
	if _, err := b.sender.Send(msg); err != nil {
		util.NotificationFailuresTotal.Inc()
		b.logger.Warn("Failed to reply", zap.Int64("chat_id", msg.ChatID), zap.Error(err))
	}
}

func (b *Bot) replyf(chatID int64, format string, args ...interface{}) {
	b.reply(chatID, fmt.Sprintf(format, args...), nil)
}

func (b *Bot) answer(cb *tgbotapi.CallbackQuery, text string) {
	if _, err := b.sender.Request(tgbotapi.NewCallback(cb.ID, text)); err != nil {
		b.logger.Debug("Failed to answer callback", zap.String("callback_id", cb.ID), zap.Error(err))
	}
}

func (b *Bot) setConversation(ctx context.Context, chatID int64, conv models.Conversation) {
	if err := b.convs.SetConversation(ctx, chatID, conv); err != nil {
		b.logger.Error("Failed to save conversation", zap.Int64("chat_id", chatID), zap.Error(err))
	}
}

func (b *Bot) clearConversation(ctx context.Context, chatID int64) {
	if err := b.convs.ClearConversation(ctx, chatID); err != nil {
		b.logger.Error("Failed to clear conversation", zap.Int64("chat_id", chatID), zap.Error(err))
	}
}
