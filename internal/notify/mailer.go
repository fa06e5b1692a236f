package notify

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/auth-service/internal/config"
)

// Notifier delivers a verification code to an email address.
type Notifier interface {
	SendOTP(ctx context.Context, email, code string) error
}

// SMTPMailer sends verification codes over SMTP.
type SMTPMailer struct {
	cfg    config.SMTPConfig
	logger *zap.Logger
}

// NewSMTPMailer builds an SMTP-backed notifier.
func NewSMTPMailer(cfg config.SMTPConfig, logger *zap.Logger) *SMTPMailer {
	return &SMTPMailer{cfg: cfg, logger: logger}
}

// SendOTP delivers the code as a plain-text message.
func (m *SMTPMailer) SendOTP(ctx context.Context, email, code string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	var auth smtp.Auth
	if m.cfg.Username != "" {
		auth = smtp.PlainAuth("", m.cfg.Username, m.cfg.Password, m.cfg.Host)
	}

	msg := strings.Join([]string{
		"From: " + m.cfg.From,
		"To: " + email,
		"Message-ID: <" + uuid.NewString() + "@" + m.cfg.Host + ">",
		"Subject: Your verification code",
		"",
		fmt.Sprintf("Your verification code is %s. It expires in 10 minutes.", code),
		"",
	}, "\r\n")

	addr := fmt.Sprintf("%s:%d", m.cfg.Host, m.cfg.Port)
	if err := smtp.SendMail(addr, auth, m.cfg.From, []string{email}, []byte(msg)); err != nil {
		return fmt.Errorf("send otp email: %w", err)
	}

	m.logger.Debug("otp email sent", zap.String("to", email))
	return nil
}

// LogMailer logs codes instead of sending them, for environments without SMTP.
type LogMailer struct {
	logger *zap.Logger
}

// NewLogMailer builds a log-only notifier.
func NewLogMailer(logger *zap.Logger) *LogMailer {
	return &LogMailer{logger: logger}
}

// SendOTP records the code in the log.
func (m *LogMailer) SendOTP(_ context.Context, email, code string) error {
	m.logger.Info("otp email suppressed (SMTP disabled)",
		zap.String("to", email),
		zap.String("code", code))
	return nil
}
