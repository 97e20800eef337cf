// Package notify доставляет уведомления из outbox получателям
package notify

import (
	"context"
	"errors"

	"github.com/Freeeeeet/tutor_sessions/internal/model"
	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"go.uber.org/zap"
)

// ErrUndeliverable получателю невозможно доставить сообщение этим каналом; повтор не поможет
var ErrUndeliverable = errors.New("recipient cannot be reached")

type Sender interface {
	Send(ctx context.Context, recipient *model.User, text string) error
}

// messageSender часть *bot.Bot, которая нужна для отправки
type messageSender interface {
	SendMessage(ctx context.Context, params *bot.SendMessageParams) (*models.Message, error)
}

// TelegramSender отправляет уведомления в личный чат пользователя
type TelegramSender struct {
	bot    messageSender
	logger *zap.Logger
}

func NewTelegramSender(b *bot.Bot, logger *zap.Logger) *TelegramSender {
	return &TelegramSender{bot: b, logger: logger}
}

func (s *TelegramSender) Send(ctx context.Context, recipient *model.User, text string) error {
	if recipient.TelegramChatID == nil {
		return ErrUndeliverable
	}

	_, err := s.bot.SendMessage(ctx, &bot.SendMessageParams{
		ChatID: *recipient.TelegramChatID,
		Text:   text,
	})
	if err != nil {
		s.logger.Warn("Failed to send telegram message",
			zap.String("user_id", recipient.ID.String()),
			zap.Int64("chat_id", *recipient.TelegramChatID),
			zap.Error(err))
		if errors.Is(err, bot.ErrorForbidden) || errors.Is(err, bot.ErrorNotFound) {
			return errors.Join(ErrUndeliverable, err)
		}
		return err
	}
	return nil
}

// LogSender пишет уведомления в лог; используется когда Telegram не настроен
type LogSender struct {
	logger *zap.Logger
}

func NewLogSender(logger *zap.Logger) *LogSender {
	return &LogSender{logger: logger}
}

func (s *LogSender) Send(_ context.Context, recipient *model.User, text string) error {
	s.logger.Info("Notification",
		zap.String("user_id", recipient.ID.String()),
		zap.String("email", recipient.Email),
		zap.String("text", text))
	return nil
}
