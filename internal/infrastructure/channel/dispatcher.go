// Package channel delivers issued codes to users over email, SMS or WhatsApp.
package channel

import (
	"context"
	"fmt"
	"time"

	"github.com/zabira-api/internal/domain"
	"go.uber.org/zap"
)

// Sender delivers one challenge to one address.
type Sender interface {
	Send(ctx context.Context, to string, ch *domain.Challenge) error
}

// Dispatcher routes a challenge to the sender registered for its method.
type Dispatcher struct {
	senders map[domain.Method]Sender
}

func NewDispatcher(senders map[domain.Method]Sender) *Dispatcher {
	return &Dispatcher{senders: senders}
}

func (d *Dispatcher) Dispatch(ctx context.Context, to string, ch *domain.Challenge) error {
	s, ok := d.senders[ch.Method]
	if !ok {
		return fmt.Errorf("no sender for method %q", ch.Method)
	}
	return s.Send(ctx, to, ch)
}

// Console logs codes instead of delivering them. Development only.
type Console struct {
	log *zap.Logger
}

func NewConsole(log *zap.Logger) *Console {
	return &Console{log: log}
}

func (c *Console) Send(_ context.Context, to string, ch *domain.Challenge) error {
	c.log.Info("otp issued",
		zap.String("to", to),
		zap.String("purpose", string(ch.Purpose)),
		zap.String("method", string(ch.Method)),
		zap.String("otp", ch.Code),
		zap.Time("expires_at", ch.ExpiresAt),
	)
	return nil
}

type mailer interface {
	SendEmail(to, subject, body string) error
}

// Email sends codes through a mailer.
type Email struct {
	mailer mailer
}

func NewEmail(m mailer) *Email {
	return &Email{mailer: m}
}

func (e *Email) Send(_ context.Context, to string, ch *domain.Challenge) error {
	subject := "Your Zabira verification code"
	if ch.Purpose == domain.PurposeEmailChange {
		subject = "Confirm your new Zabira email address"
	}
	return e.mailer.SendEmail(to, subject, body(ch))
}

type smsSender interface {
	SendSMS(ctx context.Context, to, message string) error
}

// SMS sends codes as text messages.
type SMS struct {
	sms smsSender
}

func NewSMS(s smsSender) *SMS {
	return &SMS{sms: s}
}

func (s *SMS) Send(ctx context.Context, to string, ch *domain.Challenge) error {
	return s.sms.SendSMS(ctx, to, body(ch))
}

func body(ch *domain.Challenge) string {
	minutes := int(ch.TTL().Round(time.Minute).Minutes())
	if minutes < 1 {
		minutes = 1
	}
	return fmt.Sprintf("Your Zabira verification code is %s. It expires in %d minutes. Do not share it with anyone.",
		ch.Code, minutes)
}
