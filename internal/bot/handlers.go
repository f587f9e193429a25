package bot

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"movie-shop/internal/models"
	"movie-shop/internal/payhero"
	"movie-shop/internal/service"
	"movie-shop/internal/store"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

const (
	welcomeText = "🎬 Welcome to MovieShop! Use the keyboard to browse and buy movies."

	helpText = "How to use:\n" +
		"• Press 🎞️ Movies to view available movies.\n" +
		"• On each movie card press Buy (Balance) or Buy (STK).\n" +
		"• Buy (Balance) sends the movie immediately if you have enough balance.\n" +
		"• Buy (STK) sends an M-Pesa prompt to your phone. After you complete payment, the bot delivers the movie.\n" +
		"• Top-up: send /topup and follow the prompts.\n" +
		"• Questions: send /contact."

	adminHelpText = "Admin commands:\n" +
		"/admin_add <chat_id> <amount>\n" +
		"/admin_remove <chat_id> <amount>\n" +
		"/get_file_id"

	msgUnknownInput  = "I didn't understand. Use /movies or the keyboard."
	msgUnauthorized  = "Unauthorized."
	msgItemNotFound  = "Movie not found."
	msgBadPhone      = "Phone not recognised. Use 07XXXXXXXX or +2541XXXXXXXX."
	msgBadAmount     = "Enter a valid numeric amount, e.g. 50"
	msgRequestFailed = "Sorry, there was a problem with your request. Try again later."
	msgGatewayError  = "Sorry, there was a problem with your request. Payhero returned an error. Try again."
)

func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	chatID := msg.Chat.ID
	if err := b.store.EnsureAccount(ctx, chatID); err != nil {
		b.logger.Error("Failed to ensure account", zap.Int64("chat_id", chatID), zap.Error(err))
		b.reply(chatID, msgRequestFailed, nil)
		return
	}

	if fileID := mediaFileID(msg); fileID != "" {
		b.replyf(chatID, "file_id: `%s`", fileID)
		return
	}

	if msg.IsCommand() {
		b.clearConversation(ctx, chatID)
		b.handleCommand(ctx, msg)
		return
	}

	text := strings.TrimSpace(msg.Text)
	conv, err := b.convs.GetConversation(ctx, chatID)
	if err != nil {
		b.logger.Error("Failed to load conversation", zap.Int64("chat_id", chatID), zap.Error(err))
	}
	if !conv.IsIdle() {
		b.continueConversation(ctx, msg, conv, text)
		return
	}

	switch text {
	case labelMovies:
		b.showMovies(ctx, chatID)
	case labelBalance:
		b.showBalance(ctx, chatID)
	case labelPurchases:
		b.showPurchases(ctx, chatID)
	case labelHelp:
		b.replyPlain(chatID, helpText)
	case labelAdmin:
		if b.isAdmin(senderID(msg)) {
			b.reply(chatID, "Admin actions:", adminKeyboard())
			return
		}
		b.reply(chatID, msgUnknownInput, nil)
	default:
		b.reply(chatID, msgUnknownInput, nil)
	}
}

func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message) {
	chatID := msg.Chat.ID
	switch msg.Command() {
	case "start":
		b.reply(chatID, welcomeText, mainKeyboard(b.isAdmin(senderID(msg))))
	case "help", "howtopay":
		b.replyPlain(chatID, helpText)
	case "contact":
		if b.adminID == 0 {
			b.reply(chatID, "Admin not set.", nil)
			return
		}
		b.replyf(chatID, "Admin contact: Telegram ID `%d`", b.adminID)
	case "movies":
		b.showMovies(ctx, chatID)
	case "topup":
		b.setConversation(ctx, chatID, models.Conversation{Step: models.StepTopupAmount})
		b.reply(chatID, "To top up, send the amount you want to add (e.g. 50).", nil)
	case "balance":
		b.showBalance(ctx, chatID)
	case "purchases":
		b.showPurchases(ctx, chatID)
	case "get_file_id":
		b.replyPlain(chatID, "Send a file (video/document/photo) and I'll reply with its file_id.")
	case "admin":
		if !b.isAdmin(senderID(msg)) {
			b.reply(chatID, msgUnauthorized, nil)
			return
		}
		b.reply(chatID, "Admin actions:", adminKeyboard())
	case "admin_add", "admin_remove":
		b.adjustBalance(ctx, msg)
	default:
		b.reply(chatID, msgUnknownInput, nil)
	}
}

func (b *Bot) handleCallback(ctx context.Context, cb *tgbotapi.CallbackQuery) {
	if cb.Message == nil || cb.Message.Chat == nil {
		b.answer(cb, "")
		return
	}
	chatID := cb.Message.Chat.ID
	if err := b.store.EnsureAccount(ctx, chatID); err != nil {
		b.logger.Error("Failed to ensure account", zap.Int64("chat_id", chatID), zap.Error(err))
		b.answer(cb, "")
		return
	}

	data := cb.Data
	switch {
	case strings.HasPrefix(data, cbPaySTK):
		b.askPurchasePhone(ctx, cb, strings.TrimPrefix(data, cbPaySTK))
	case strings.HasPrefix(data, cbPayBalance):
		b.answer(cb, "")
		b.buyWithBalance(ctx, chatID, strings.TrimPrefix(data, cbPayBalance))
	case strings.HasPrefix(data, cbDetails):
		b.answer(cb, "")
		b.showDetails(ctx, chatID, strings.TrimPrefix(data, cbDetails))
	case data == cbAdminPanel:
		if cb.From == nil || !b.isAdmin(cb.From.ID) {
			b.answer(cb, msgUnauthorized)
			return
		}
		b.answer(cb, "")
		b.replyPlain(chatID, adminHelpText)
	default:
		b.answer(cb, "")
	}
}

func (b *Bot) askPurchasePhone(ctx context.Context, cb *tgbotapi.CallbackQuery, itemID string) {
	chatID := cb.Message.Chat.ID
	item, ok := b.lookupItem(ctx, chatID, itemID)
	if !ok {
		b.answer(cb, msgItemNotFound)
		return
	}
	b.answer(cb, "")
	b.setConversation(ctx, chatID, models.Conversation{Step: models.StepPurchasePhone, ItemID: item.ID})
	b.replyf(chatID, "To pay KES %s for *%s* via STK, send your phone number (07XXXXXXXX or 01XXXXXXX or +2541XXXXXXXX).",
		item.Price, item.Title)
}

func (b *Bot) continueConversation(ctx context.Context, msg *tgbotapi.Message, conv models.Conversation, text string) {
	chatID := msg.Chat.ID
	customer := customerName(msg)

	switch conv.Step {
	case models.StepPurchasePhone:
		b.clearConversation(ctx, chatID)
		intent, err := b.checkout.StartPurchase(ctx, chatID, conv.ItemID, text, customer)
		if err != nil {
			b.reportStartFailure(chatID, err)
			return
		}
		b.replyf(chatID, "✅ Payment request sent. You should receive a prompt on %s. Reference: `%s`",
			intent.Phone, intent.ExternalRef)

	case models.StepTopupAmount:
		amount, err := service.ParseAmount(text)
		if err != nil {
			b.reply(chatID, msgBadAmount, nil)
			return
		}
		b.setConversation(ctx, chatID, models.Conversation{Step: models.StepTopupPhone, Amount: amount})
		b.replyf(chatID, "Top-up KES %s, now send your phone number (07XXXXXXXX or +2541XXXXXXXX).", amount)

	case models.StepTopupPhone:
		b.clearConversation(ctx, chatID)
		intent, err := b.checkout.StartTopup(ctx, chatID, conv.Amount, text, customer)
		if err != nil {
			b.reportStartFailure(chatID, err)
			return
		}
		b.replyf(chatID, "✅ Top-up request sent. You should receive a prompt on %s. Reference: `%s`",
			intent.Phone, intent.ExternalRef)

	default:
		b.logger.Warn("Unknown conversation step", zap.Int64("chat_id", chatID), zap.String("step", string(conv.Step)))
		b.clearConversation(ctx, chatID)
		b.reply(chatID, msgUnknownInput, nil)
	}
}

func (b *Bot) reportStartFailure(chatID int64, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidPhone):
		b.reply(chatID, msgBadPhone, nil)
	case errors.Is(err, service.ErrItemNotFound):
		b.reply(chatID, msgItemNotFound, nil)
	case errors.Is(err, service.ErrItemUnavailable):
		b.reply(chatID, "This movie is not available yet.", nil)
	case errors.Is(err, service.ErrInvalidAmount):
		b.reply(chatID, msgBadAmount, nil)
	case errors.Is(err, service.ErrDuplicateReference):
		b.reply(chatID, "A payment request was just sent. Wait a moment and try again.", nil)
	case errors.Is(err, payhero.ErrGateway):
		b.reply(chatID, msgGatewayError, nil)
	default:
		b.logger.Error("Failed to start payment", zap.Int64("chat_id", chatID), zap.Error(err))
		b.reply(chatID, msgRequestFailed, nil)
	}
}

func (b *Bot) buyWithBalance(ctx context.Context, chatID int64, itemID string) {
	_, err := b.checkout.BuyWithBalance(ctx, chatID, itemID)
	var insufficient *service.InsufficientFundsError
	switch {
	case err == nil:
	case errors.As(err, &insufficient):
		b.replyf(chatID, "❌ Insufficient balance (you have KES %s, movie costs KES %s). Use /topup or Buy (STK).",
			insufficient.Balance, insufficient.Price)
	case errors.Is(err, service.ErrItemNotFound):
		b.reply(chatID, msgItemNotFound, nil)
	case errors.Is(err, service.ErrItemUnavailable):
		b.reply(chatID, "This movie is not available yet.", nil)
	case errors.Is(err, service.ErrDeliveryFailure):
		// buyer already told by the checkout
	default:
		b.logger.Error("Balance purchase failed", zap.Int64("chat_id", chatID), zap.String("item_id", itemID), zap.Error(err))
		b.reply(chatID, "⚠️ Error charging your balance. Try again later.", nil)
	}
}

func (b *Bot) showMovies(ctx context.Context, chatID int64) {
	items, err := b.store.ListItems(ctx)
	if err != nil {
		b.logger.Error("Failed to list items", zap.Error(err))
		b.reply(chatID, msgRequestFailed, nil)
		return
	}
	if len(items) == 0 {
		b.reply(chatID, "No movies available.", nil)
		return
	}

	for _, item := range items {
		caption := fmt.Sprintf("*%s*\nKES %s\n\n%s", item.Title, item.Price, item.Description)
		markup := itemKeyboard(item)
		if item.ThumbRef != "" {
			photo := tgbotapi.NewPhoto(chatID, fileData(item.ThumbRef))
			photo.Caption = caption
			photo.ParseMode = tgbotapi.ModeMarkdown
			photo.ReplyMarkup = markup
			if _, err := b.sender.Send(photo); err == nil {
				continue
			}
			b.logger.Debug("Thumbnail send failed, falling back to text", zap.String("item_id", item.ID))
		}
		b.reply(chatID, caption, markup)
	}
}

func (b *Bot) showDetails(ctx context.Context, chatID int64, itemID string) {
	item, ok := b.lookupItem(ctx, chatID, itemID)
	if !ok {
		b.reply(chatID, msgItemNotFound, nil)
		return
	}
	b.replyf(chatID, "*%s*\nPrice: KES %s\n\n%s", item.Title, item.Price, item.Description)
}

func (b *Bot) showBalance(ctx context.Context, chatID int64) {
	balance, err := b.store.GetBalance(ctx, chatID)
	if err != nil {
		b.logger.Error("Failed to read balance", zap.Int64("chat_id", chatID), zap.Error(err))
		b.reply(chatID, msgRequestFailed, nil)
		return
	}
	b.replyf(chatID, "Your balance: KES %s", balance)
}

func (b *Bot) showPurchases(ctx context.Context, chatID int64) {
	purchases, err := b.store.ListPurchases(ctx, chatID, purchasesShown)
	if err != nil {
		b.logger.Error("Failed to list purchases", zap.Int64("chat_id", chatID), zap.Error(err))
		b.reply(chatID, msgRequestFailed, nil)
		return
	}
	if len(purchases) == 0 {
		b.reply(chatID, "No purchases yet.", nil)
		return
	}

	var sb strings.Builder
	sb.WriteString("Your purchases:\n\n")
	for _, p := range purchases {
		what := "top-up"
		if p.ItemID.Valid {
			what = p.ItemID.String
		}
		fmt.Fprintf(&sb, "- %s - KES %s - %s - %s\n", what, p.Amount, p.Method, p.Time().Format("2006-01-02 15:04:05"))
	}

	b.replyPlain(chatID, sb.String())
}

// adjustBalance handles /admin_add and /admin_remove
func (b *Bot) adjustBalance(ctx context.Context, msg *tgbotapi.Message) {
	chatID := msg.Chat.ID
	if !b.isAdmin(senderID(msg)) {
		b.reply(chatID, msgUnauthorized, nil)
		return
	}

	args := strings.Fields(msg.CommandArguments())
	if len(args) < 2 {
		b.replyPlain(chatID, "Usage: /admin_add <chat_id> <amount>  OR  /admin_remove <chat_id> <amount>")
		return
	}
	target, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		b.replyPlain(chatID, "Invalid chat_id or amount.")
		return
	}
	amount, err := service.ParseAmount(args[1])
	if err != nil {
		b.replyPlain(chatID, "Invalid chat_id or amount.")
		return
	}

	if msg.Command() == "admin_add" {
		if _, err := b.checkout.AdminCredit(ctx, target, amount); err != nil {
			b.logger.Error("Admin credit failed", zap.Int64("target", target), zap.Error(err))
			b.reply(chatID, msgRequestFailed, nil)
			return
		}
		b.replyf(chatID, "Added KES %s to %d.", amount, target)
		return
	}

	balance, err := b.checkout.AdminDebit(ctx, target, amount)
	if err != nil {
		b.logger.Error("Admin debit failed", zap.Int64("target", target), zap.Error(err))
		b.reply(chatID, msgRequestFailed, nil)
		return
	}
	b.replyf(chatID, "Removed KES %s from %d. New balance %s.", amount, target, balance)
}

func (b *Bot) lookupItem(ctx context.Context, chatID int64, itemID string) (*models.Item, bool) {
	item, err := b.store.GetItem(ctx, itemID)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			b.logger.Error("Failed to load item", zap.Int64("chat_id", chatID), zap.String("item_id", itemID), zap.Error(err))
		}
		return nil, false
	}
	return item, true
}

// mediaFileID returns the file id of an attached document, video, audio or
// the largest photo size.
func mediaFileID(msg *tgbotapi.Message) string {
	switch {
	case msg.Document != nil:
		return msg.Document.FileID
	case msg.Video != nil:
		return msg.Video.FileID
	case msg.Audio != nil:
		return msg.Audio.FileID
	case len(msg.Photo) > 0:
		return msg.Photo[len(msg.Photo)-1].FileID
	}
	return ""
}

func senderID(msg *tgbotapi.Message) int64 {
	if msg.From == nil {
		return 0
	}
	return msg.From.ID
}

func customerName(msg *tgbotapi.Message) string {
	if msg.From == nil {
		return ""
	}
	return strings.TrimSpace(msg.From.FirstName + " " + msg.From.LastName)
}
