package bot

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"movie-shop/internal/models"
	"movie-shop/internal/util"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

// Sender is the part of the Telegram client the bot uses
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

// Notifier delivers messages and content to chats. The HTTP client behind
// the Sender carries the send timeout.
type Notifier struct {
	sender  Sender
	adminID int64
	logger  *zap.Logger
}

// NewNotifier creates a new notifier; adminID 0 disables operator alerts
func NewNotifier(sender Sender, adminID int64) *Notifier {
	return &Notifier{
		sender:  sender,
		adminID: adminID,
		logger:  util.GetLogger(),
	}
}

// Notify sends Markdown text, retrying as plain text when Telegram rejects
// the markup. Other send errors are returned without a retry.
func (n *Notifier) Notify(ctx context.Context, chatID int64, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeMarkdown
	_, err := n.sender.Send(msg)
	if markupRejected(err) {
		n.logger.Debug("Markdown message rejected, sending plain", zap.Int64("chat_id", chatID), zap.Error(err))
		msg.ParseMode = ""
		_, err = n.sender.Send(msg)
	}
	if err != nil {
		return fmt.Errorf("failed to send message: %w", err)
	}
	return nil
}

// DeliverContent sends the item's content as a document
func (n *Notifier) DeliverContent(ctx context.Context, chatID int64, item *models.Item) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if item.ContentRef == "" {
		return fmt.Errorf("item %s has no content", item.ID)
	}

	if _, err := n.sender.Request(tgbotapi.NewChatAction(chatID, tgbotapi.ChatUploadDocument)); err != nil {
		n.logger.Debug("Chat action failed", zap.Int64("chat_id", chatID), zap.Error(err))
	}

	doc := tgbotapi.NewDocument(chatID, fileData(item.ContentRef))
	doc.Caption = item.Title
	if _, err := n.sender.Send(doc); err != nil {
		return fmt.Errorf("failed to send document: %w", err)
	}

	n.logger.Info("Content delivered", zap.Int64("chat_id", chatID), zap.String("item_id", item.ID))
	return nil
}

// AlertOperator messages the admin chat
func (n *Notifier) AlertOperator(ctx context.Context, text string) error {
	if n.adminID == 0 {
		n.logger.Warn("Operator alert dropped, no admin configured", zap.String("text", util.Excerpt(text, 200)))
		return nil
	}
	return n.Notify(ctx, n.adminID, text)
}

// markupRejected reports whether Telegram refused a message because its
// Markdown entities could not be parsed. Nothing was delivered in that case.
func markupRejected(err error) bool {
	var apiErr *tgbotapi.Error
	if !errors.As(err, &apiErr) {
		return false
	}
	return apiErr.Code == http.StatusBadRequest && strings.Contains(apiErr.Message, "parse entities")
}

// fileData picks a URL or a Telegram file id reference
func fileData(ref string) tgbotapi.RequestFileData {
	if strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://") {
		return tgbotapi.FileURL(ref)
	}
	return tgbotapi.FileID(ref)
}
