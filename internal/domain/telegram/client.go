package telegram

import "gopkg.in/telebot.v3"

// Client sends text messages to a Telegram chat. The run notifier depends on
// this interface rather than on the bot itself.
type Client interface {
	SendMessage(recipientChatID int64, text string, options *telebot.SendOptions) error
}
