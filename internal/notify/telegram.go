// Package notify alerts support staff about payments that need manual attention.
package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"brainbridge/internal/booking"
)

// Sender is the part of the Telegram bot API used for notifications.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// RetryConfig holds configuration for retry logic.
type RetryConfig struct {
	MaxRetries  int
	RetryDelays []time.Duration
}

// DefaultRetryConfig returns the default retry configuration.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries: 3,
		RetryDelays: []time.Duration{
			1 * time.Second,
			5 * time.Second,
			30 * time.Second,
		},
	}
}

// TelegramNotifier messages every support chat.
type TelegramNotifier struct {
	sender  Sender
	chatIDs []int64
	retry   RetryConfig
	logger  *zerolog.Logger
}

var _ booking.SupportNotifier = (*TelegramNotifier)(nil)

// NewTelegramNotifier creates a notifier. logger may be nil.
func NewTelegramNotifier(sender Sender, chatIDs []int64, retry RetryConfig, logger *zerolog.Logger) *TelegramNotifier {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &TelegramNotifier{
		sender:  sender,
		chatIDs: chatIDs,
		retry:   retry,
		logger:  logger,
	}
}

// NewBotSender connects to the Telegram bot API.
func NewBotSender(token string) (*tgbotapi.BotAPI, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("telegram bot: %w", err)
	}
	return api, nil
}

// NotifyUnconfirmedPayment tells support that a payment was captured but the
// booking was not confirmed. Every chat is tried; the first error is returned.
func (n *TelegramNotifier) NotifyUnconfirmedPayment(ctx context.Context, a *booking.Attempt) error {
	text := UnconfirmedPaymentText(a)

	var firstErr error
	for _, chatID := range n.chatIDs {
		if err := n.send(ctx, chatID, text); err != nil {
			n.logger.Error().Err(err).Int64("chat_id", chatID).Str("attempt_id", a.ID).Msg("support notification failed")
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

// UnconfirmedPaymentText renders the support message for an attempt.
func UnconfirmedPaymentText(a *booking.Attempt) string {
	var b strings.Builder
	b.WriteString("Payment captured, booking NOT confirmed\n\n")
	fmt.Fprintf(&b, "Payment intent: %s\n", a.PaymentIntentID)
	fmt.Fprintf(&b, "Resource: %s #%d\n", a.Resource, a.ResourceID)
	if a.ScheduledDate != "" {
		fmt.Fprintf(&b, "Date: %s\n", a.ScheduledDate)
	}
	if a.Amount > 0 {
		fmt.Fprintf(&b, "Amount: %.2f %s\n", a.Amount, strings.ToUpper(a.Currency))
	}
	if a.PointsToUse > 0 {
		fmt.Fprintf(&b, "Points: %d\n", a.PointsToUse)
	}
	fmt.Fprintf(&b, "Attempt: %s\n", a.ID)
	if a.Message != "" {
		fmt.Fprintf(&b, "Error: %s\n", a.Message)
	}
	return b.String()
}

func (n *TelegramNotifier) send(ctx context.Context, chatID int64, text string) error {
	msg := tgbotapi.NewMessage(chatID, text)

	var lastErr error
	for attempt := 0; attempt <= n.retry.MaxRetries; attempt++ {
		_, err := n.sender.Send(msg)
		if err == nil {
			return nil
		}
		lastErr = err

		if attempt == n.retry.MaxRetries {
			break
		}

		wait := n.delay(attempt)
		var tgErr *tgbotapi.Error
		if errors.As(err, &tgErr) {
			switch {
			case tgErr.Code == 429 && tgErr.RetryAfter > 0:
				wait = time.Duration(tgErr.RetryAfter) * time.Second
			case tgErr.Code == 400 || tgErr.Code == 403:
				// Chat missing or bot blocked.
				return err
			}
		}

		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return fmt.Errorf("max retries exceeded: %w", lastErr)
}

func (n *TelegramNotifier) delay(attempt int) time.Duration {
	if len(n.retry.RetryDelays) == 0 {
		return 0
	}
	if attempt < len(n.retry.RetryDelays) {
		return n.retry.RetryDelays[attempt]
	}
	return n.retry.RetryDelays[len(n.retry.RetryDelays)-1]
}
