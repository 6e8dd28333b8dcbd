// Package notify sends operator alerts to Telegram chats.
package notify

import (
	"fmt"
	"os"
	"strconv"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	log "github.com/sirupsen/logrus"
)

const maxChats = 3

type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// TelegramNotifier sends every message to all configured chats.
type TelegramNotifier struct {
	bot     sender
	chatIDs []int64
}

func NewTelegramNotifier(botToken string, chatIDs []int64) (*TelegramNotifier, error) {
	bot, err := tgbotapi.NewBotAPI(botToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create bot: %w", err)
	}

	return &TelegramNotifier{
		bot:     bot,
		chatIDs: chatIDs,
	}, nil
}

// SendNotification does not block on the Telegram API.
func (tn *TelegramNotifier) SendNotification(message string) {
	if tn == nil || tn.bot == nil {
		return
	}
	go tn.send(message)
}

func (tn *TelegramNotifier) send(message string) {
	for _, chatID := range tn.chatIDs {
		msg := tgbotapi.NewMessage(chatID, message)
		msg.ParseMode = tgbotapi.ModeMarkdown

		if _, err := tn.bot.Send(msg); err != nil {
			log.Errorf("Failed to send telegram message to chat %d: %v", chatID, err)
		}
	}
}

// FromEnv builds a notifier from TELEGRAM_BOT_TOKEN and TELEGRAM_CHAT_ID_1..3.
// It returns nil when alerts are not configured.
func FromEnv() *TelegramNotifier {
	botToken := os.Getenv("TELEGRAM_BOT_TOKEN")
	if botToken == "" {
		log.Warn("TELEGRAM_BOT_TOKEN not set, notifications disabled")
		return nil
	}

	chatIDs := chatIDsFromEnv()
	if len(chatIDs) == 0 {
		log.Warn("No valid telegram chat IDs found, notifications disabled")
		return nil
	}

	notifier, err := NewTelegramNotifier(botToken, chatIDs)
	if err != nil {
		log.Errorf("Failed to initialize Telegram notifier: %v", err)
		return nil
	}

	log.Infof("Telegram notifier initialized with %d chat IDs", len(chatIDs))
	return notifier
}

func chatIDsFromEnv() []int64 {
	var chatIDs []int64
	for i := 1; i <= maxChats; i++ {
		key := fmt.Sprintf("TELEGRAM_CHAT_ID_%d", i)
		v := os.Getenv(key)
		if v == "" {
			continue
		}
		chatID, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			log.Errorf("Invalid %s format: %v", key, err)
			continue
		}
		chatIDs = append(chatIDs, chatID)
	}
	return chatIDs
}
