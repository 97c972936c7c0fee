package notify

import (
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
)

// Sender 通知出口。测试里注入假实现。
type Sender interface {
	Send(text string) error
}

// Noop 未配置 token 时的空实现。
type Noop struct{}

func (Noop) Send(string) error { return nil }

// Telegram 通过 bot API 推送运行结果摘要。
type Telegram struct {
	bot    *tgbotapi.BotAPI
	chatID int64
	log    zerolog.Logger
}

// NewTelegram token 为空时返回 Noop。
func NewTelegram(token string, chatID int64, log zerolog.Logger) (Sender, error) {
	if token == "" || chatID == 0 {
		return Noop{}, nil
	}
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("telegram bot: %w", err)
	}
	return &Telegram{bot: bot, chatID: chatID, log: log}, nil
}

func (t *Telegram) Send(text string) error {
	msg := tgbotapi.NewMessage(t.chatID, text)
	if _, err := t.bot.Send(msg); err != nil {
		t.log.Warn().Err(err).Msg("telegram send failed")
		return fmt.Errorf("telegram send: %w", err)
	}
	return nil
}
