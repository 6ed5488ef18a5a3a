package email

import (
	"context"
	"crypto/tls"
	"fmt"

	mail "github.com/go-mail/mail/v2"
)

type dialer interface {
	DialAndSend(m ...*mail.Message) error
}

// SMTPClient sends mail through an SMTP relay with mandatory STARTTLS.
type SMTPClient struct {
	from   string
	dialer dialer
}

type SMTPConfig struct {
	Host          string
	Port          int
	Username      string
	Password      string
	From          string
	SkipTLSVerify bool
}

func NewSMTPClient(cfg SMTPConfig) *SMTPClient {
	port := cfg.Port
	if port == 0 {
		port = 587
	}
	d := mail.NewDialer(cfg.Host, port, cfg.Username, cfg.Password)
	d.StartTLSPolicy = mail.MandatoryStartTLS
	d.TLSConfig = &tls.Config{
		ServerName:         cfg.Host,
		InsecureSkipVerify: cfg.SkipTLSVerify,
	}
	return &SMTPClient{from: cfg.From, dialer: d}
}

func (c *SMTPClient) build(msg Message) *mail.Message {
	m := mail.NewMessage()
	m.SetHeader("From", c.from)
	m.SetHeader("To", msg.To)
	m.SetHeader("Subject", msg.Subject)
	m.SetBody("text/plain", msg.TextBody)
	m.AddAlternative("text/html", msg.HTMLBody)
	return m
}

// Send dials per message. The context is only checked before dialing since
// go-mail has no cancellable dial.
func (c *SMTPClient) Send(ctx context.Context, msg Message) error {
	if c.from == "" {
		return fmt.Errorf("smtp not configured: missing from address")
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := c.dialer.DialAndSend(c.build(msg)); err != nil {
		return fmt.Errorf("smtp send: %w", err)
	}
	return nil
}
