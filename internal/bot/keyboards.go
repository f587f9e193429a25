package bot

import (
	"fmt"

	"movie-shop/internal/models"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Reply keyboard labels
const (
	labelMovies    = "🎞️ Movies"
	labelBalance   = "💰 Balance"
	labelAdmin     = "🛠️ Admin"
	labelPurchases = "🛍️ Purchases"
	labelHelp      = "❓ Help"
)

// Inline button data prefixes
const (
	cbPayBalance = "pay_bal:"
	cbPaySTK     = "pay_stk:"
	cbDetails    = "details:"
	cbAdminPanel = "admin:panel"
)

func mainKeyboard(isAdmin bool) tgbotapi.ReplyKeyboardMarkup {
	top := tgbotapi.NewKeyboardButtonRow(
		tgbotapi.NewKeyboardButton(labelMovies),
		tgbotapi.NewKeyboardButton(labelBalance),
	)
	if isAdmin {
		top = append(top, tgbotapi.NewKeyboardButton(labelAdmin))
	}
	kb := tgbotapi.NewReplyKeyboard(
		top,
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(labelPurchases),
			tgbotapi.NewKeyboardButton(labelHelp),
		),
	)
	kb.ResizeKeyboard = true
	return kb
}

func itemKeyboard(item models.Item) tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(fmt.Sprintf("🧾 Buy (Balance) - KES %s", item.Price), cbPayBalance+item.ID),
			tgbotapi.NewInlineKeyboardButtonData(fmt.Sprintf("💳 Buy (STK) - KES %s", item.Price), cbPaySTK+item.ID),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("ℹ️ Details", cbDetails+item.ID),
		),
	)
}

func adminKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("Admin Panel", cbAdminPanel),
		),
	)
}
