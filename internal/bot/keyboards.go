package bot

import (
	"strconv"
	"strings"

	"receipts-bot/internal/domain/branch"
	"receipts-bot/internal/domain/user"
	"receipts-bot/internal/i18n"
	"receipts-bot/internal/platform/telegram"
)

const (
	callbackLocalePrefix = "lang_"
	callbackBranchPrefix = "branch_"
	callbackSubscribed   = "subscription_confirmed"
)

func (e *Engine) languageKeyboard() *telegram.InlineKeyboardMarkup {
	rows := make([][]telegram.InlineKeyboardButton, 0, len(user.Locales))
	for _, l := range user.Locales {
		rows = append(rows, []telegram.InlineKeyboardButton{{
			Text:         e.catalog.T(l, i18n.KeyLanguageName),
			CallbackData: callbackLocalePrefix + string(l),
		}})
	}
	return &telegram.InlineKeyboardMarkup{InlineKeyboard: rows}
}

func (e *Engine) contactKeyboard(l user.Locale) *telegram.ReplyKeyboardMarkup {
	return &telegram.ReplyKeyboardMarkup{
		Keyboard:        [][]telegram.KeyboardButton{{{Text: e.catalog.T(l, i18n.KeyContactButton), RequestContact: true}}},
		ResizeKeyboard:  true,
		OneTimeKeyboard: true,
	}
}

func (e *Engine) subscriptionKeyboard(l user.Locale) *telegram.InlineKeyboardMarkup {
	return &telegram.InlineKeyboardMarkup{InlineKeyboard: [][]telegram.InlineKeyboardButton{{
		{Text: e.catalog.T(l, i18n.KeySubscribeButton), CallbackData: callbackSubscribed},
	}}}
}

func (e *Engine) branchesKeyboard(branches []branch.Branch, l user.Locale) *telegram.InlineKeyboardMarkup {
	rows := make([][]telegram.InlineKeyboardButton, 0, len(branches))
	for _, b := range branches {
		rows = append(rows, []telegram.InlineKeyboardButton{{
			Text:         b.Name(l),
			CallbackData: callbackBranchPrefix + strconv.FormatInt(b.ID, 10),
		}})
	}
	return &telegram.InlineKeyboardMarkup{InlineKeyboard: rows}
}

func (e *Engine) mainMenuKeyboard(l user.Locale) *telegram.ReplyKeyboardMarkup {
	return &telegram.ReplyKeyboardMarkup{
		Keyboard: [][]telegram.KeyboardButton{{
			{Text: e.catalog.T(l, i18n.KeySendReceiptButton)},
			{Text: e.catalog.T(l, i18n.KeyChangeLanguage)},
		}},
		ResizeKeyboard: true,
	}
}

func (e *Engine) backKeyboard(l user.Locale) *telegram.ReplyKeyboardMarkup {
	return &telegram.ReplyKeyboardMarkup{
		Keyboard:       [][]telegram.KeyboardButton{{{Text: e.catalog.T(l, i18n.KeyBackToMenu)}}},
		ResizeKeyboard: true,
	}
}

// parseBranchCallback extracts the id from "branch_<id>".
func parseBranchCallback(data string) (int64, bool) {
	raw, ok := strings.CutPrefix(data, callbackBranchPrefix)
	if !ok {
		return 0, false
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}
