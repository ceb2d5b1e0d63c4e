package worker

import (
	"context"
	"errors"
	"fmt"

	"rentalhub/internal/models"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
	"github.com/sendgrid/rest"
)

// errNoAddress means the sender has nowhere to deliver this notification.
var errNoAddress = errors.New("recipient has no address for this channel")

type emailClient interface {
	Send(email *mail.SGMailV3) (*rest.Response, error)
}

// SendGridSender delivers notifications by email.
type SendGridSender struct {
	client emailClient
	from   *mail.Email
}

func NewSendGridSender(apiKey, fromEmail, fromName string) *SendGridSender {
	return &SendGridSender{
		client: sendgrid.NewSendClient(apiKey),
		from:   mail.NewEmail(fromName, fromEmail),
	}
}

func (s *SendGridSender) Name() string { return "email" }

func (s *SendGridSender) Send(_ context.Context, n *models.Notification) error {
	if n.Email == "" {
		return errNoAddress
	}
	subject, body := render(n)
	message := mail.NewSingleEmail(s.from, subject, mail.NewEmail(n.Name, n.Email), body, "")

	response, err := s.client.Send(message)
	if err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	if response.StatusCode >= 400 {
		return fmt.Errorf("sendgrid error: status %d, body: %s", response.StatusCode, response.Body)
	}
	return nil
}

// TelegramAPI is the part of the bot client the sender needs.
type TelegramAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// TelegramSender delivers to users that linked a chat.
type TelegramSender struct {
	bot TelegramAPI
}

func NewTelegramSender(bot TelegramAPI) *TelegramSender {
	return &TelegramSender{bot: bot}
}

func (s *TelegramSender) Name() string { return "telegram" }

func (s *TelegramSender) Send(_ context.Context, n *models.Notification) error {
	if n.TelegramChatID == nil {
		return errNoAddress
	}
	subject, body := render(n)
	msg := tgbotapi.NewMessage(*n.TelegramChatID, subject+"\n\n"+body)
	if _, err := s.bot.Send(msg); err != nil {
		return fmt.Errorf("failed to send telegram message: %w", err)
	}
	return nil
}

// LogSender stands in for email when no provider key is configured.
type LogSender struct {
	logger *zerolog.Logger
}

func NewLogSender(logger *zerolog.Logger) *LogSender {
	return &LogSender{logger: logger}
}

func (s *LogSender) Name() string { return "log" }

func (s *LogSender) Send(_ context.Context, n *models.Notification) error {
	subject, body := render(n)
	s.logger.Info().
		Int64("recipient_id", n.RecipientID).
		Str("email", n.Email).
		Str("kind", string(n.Kind)).
		Str("subject", subject).
		Str("body", body).
		Msg("notification")
	return nil
}
