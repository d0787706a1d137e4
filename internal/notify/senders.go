package notify

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/BatmanBruc/inkpay/internal/messages"
	"github.com/BatmanBruc/inkpay/types"
	"github.com/go-telegram/bot"
)

// LogSender writes notifications to the log. It is used when no chat is configured.
type LogSender struct {
	Logger *slog.Logger
}

func (s LogSender) Send(_ context.Context, n types.Notification) error {
	logger := s.Logger
	if logger == nil {
		logger = slog.Default()
	}
	level := slog.LevelInfo
	if n.Alert {
		level = slog.LevelError
	}
	logger.Log(context.Background(), level, "notification", "user_id", n.UserID, "title", n.Title, "text", n.Text)
	return nil
}

// TelegramSender posts notifications to an operator chat.
type TelegramSender struct {
	bot    *bot.Bot
	chatID int64
}

func NewTelegramSender(token string, chatID int64) (*TelegramSender, error) {
	if token == "" || chatID == 0 {
		return nil, errors.New("telegram token and chat id are required")
	}
	b, err := bot.New(token, bot.WithHTTPClient(30*time.Second, &http.Client{Timeout: 30 * time.Second}))
	if err != nil {
		return nil, err
	}
	return &TelegramSender{bot: b, chatID: chatID}, nil
}

func (s *TelegramSender) Send(ctx context.Context, n types.Notification) error {
	_, err := s.bot.SendMessage(ctx, &bot.SendMessageParams{
		ChatID:    s.chatID,
		Text:      messages.Telegram(n.Title, n.Text, n.Alert),
		ParseMode: messages.ParseModeHTML,
	})
	return err
}

// Multi fans a notification out to every sender and joins their errors.
type Multi []Sender

func (m Multi) Send(ctx context.Context, n types.Notification) error {
	var errs []error
	for _, s := range m {
		if err := s.Send(ctx, n); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
