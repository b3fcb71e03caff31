package delivery

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/lueurxax/channel-digest/internal/platform/htmlutils"
)

// ErrBotBlocked means the user blocked the bot or deleted their account.
var ErrBotBlocked = errors.New("bot blocked by user")

// Sender posts HTML text to a chat.
type Sender interface {
	SendHTML(ctx context.Context, chatID int64, text string) error
}

// botAPI is the part of tgbotapi.BotAPI the sender needs.
type botAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// BotSender delivers through the Telegram Bot API, splitting long texts at
// safe HTML boundaries.
type BotSender struct {
	api   botAPI
	limit int
}

// NewBotSender connects to the Bot API with the given token.
func NewBotSender(token string) (*BotSender, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("creating bot API: %w", err)
	}

	return &BotSender{api: api, limit: htmlutils.MaxMessageLength}, nil
}

func (s *BotSender) SendHTML(ctx context.Context, chatID int64, text string) error {
	parts := htmlutils.SplitSafely(text, s.limit)

	for i, part := range parts {
		if err := ctx.Err(); err != nil {
			return err
		}

		msg := tgbotapi.NewMessage(chatID, part)
		msg.ParseMode = tgbotapi.ModeHTML
		msg.DisableWebPagePreview = true

		if _, err := s.api.Send(msg); err != nil {
			return fmt.Errorf("failed to send part %d to chat %d: %w", i+1, chatID, classify(err))
		}
	}

	return nil
}

func classify(err error) error {
	var apiErr *tgbotapi.Error
	if errors.As(err, &apiErr) && apiErr.Code == http.StatusForbidden {
		return fmt.Errorf("%w: %s", ErrBotBlocked, apiErr.Message)
	}

	return err
}
