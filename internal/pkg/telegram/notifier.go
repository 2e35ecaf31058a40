// Package telegram posts operational notices to the admin chat.
package telegram

import (
	"context"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog/log"
)

// Sender is the subset of *tgbotapi.BotAPI the notifier needs.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// RechargeNotice describes a new recharge request.
type RechargeNotice struct {
	RechargeID    string
	UserEmail     string
	CreditsAmount int64
	PaymentAmount string
	PaymentMethod string
	Description   string
	ScreenshotURL string
	AutoApproved  bool
}

// Notifier sends messages to a single admin chat. A nil *Notifier is valid
// and does nothing.
type Notifier struct {
	sender Sender
	chatID int64
}

// New connects to the Bot API with token.
func New(token string, chatID int64) (*Notifier, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("telegram: %w", err)
	}
	log.Info().Str("bot", bot.Self.UserName).Int64("chat_id", chatID).Msg("Telegram notifier ready")
	return NewWithSender(bot, chatID), nil
}

// NewWithSender builds a notifier around an existing sender.
func NewWithSender(sender Sender, chatID int64) *Notifier {
	return &Notifier{sender: sender, chatID: chatID}
}

// NotifyRecharge announces a recharge request to the admin chat.
func (n *Notifier) NotifyRecharge(ctx context.Context, notice RechargeNotice) error {
	if n == nil || n.sender == nil {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	msg := tgbotapi.NewMessage(n.chatID, formatRecharge(notice))
	msg.DisableWebPagePreview = true
	if _, err := n.sender.Send(msg); err != nil {
		return fmt.Errorf("telegram send: %w", err)
	}
	return nil
}

func formatRecharge(n RechargeNotice) string {
	var b strings.Builder
	if n.AutoApproved {
		b.WriteString("Recharge auto-approved\n")
	} else {
		b.WriteString("New recharge request\n")
	}
	fmt.Fprintf(&b, "ID: %s\n", n.RechargeID)
	fmt.Fprintf(&b, "User: %s\n", n.UserEmail)
	fmt.Fprintf(&b, "Credits: %d\n", n.CreditsAmount)
	fmt.Fprintf(&b, "Payment: %s via %s\n", n.PaymentAmount, n.PaymentMethod)
	if n.Description != "" {
		fmt.Fprintf(&b, "Note: %s\n", n.Description)
	}
	if n.ScreenshotURL != "" {
		fmt.Fprintf(&b, "Screenshot: %s\n", n.ScreenshotURL)
	}
	return strings.TrimRight(b.String(), "\n")
}
