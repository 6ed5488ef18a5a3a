// Package email delivers the workflow's outbound mail through Postmark, SMTP
// or the log.
package email

import (
	"context"
	"fmt"
	"html"
	"log/slog"
	"time"
)

// Message is a single outbound email.
type Message struct {
	To       string
	Subject  string
	TextBody string
	HTMLBody string
}

// Transport sends one message.
type Transport interface {
	Send(ctx context.Context, msg Message) error
}

// Sender renders the submission emails and hands them to a Transport.
type Sender struct {
	transport Transport
	product   string
}

func NewSender(t Transport, product string) *Sender {
	if product == "" {
		product = "Profile update"
	}
	return &Sender{transport: t, product: product}
}

func (s *Sender) SendSubmissionLink(ctx context.Context, to, url string, expiresAt time.Time) error {
	return s.transport.Send(ctx, LinkMessage(s.product, to, url, expiresAt))
}

func (s *Sender) SendVerifyCode(ctx context.Context, to, code string, expiresAt time.Time) error {
	return s.transport.Send(ctx, CodeMessage(s.product, to, code, expiresAt))
}

const expiryLayout = "Jan 2, 2006 15:04 MST"

// LinkMessage asks the recipient to open their submission link.
func LinkMessage(product, to, url string, expiresAt time.Time) Message {
	expires := expiresAt.UTC().Format(expiryLayout)
	return Message{
		To:      to,
		Subject: fmt.Sprintf("%s: please review your profile", product),
		TextBody: fmt.Sprintf("You have been asked to add your work experience, education and skills.\n\n"+
			"Open the link below to get started:\n\n%s\n\nThis link expires on %s.", url, expires),
		HTMLBody: fmt.Sprintf(`<p>You have been asked to add your work experience, education and skills.</p>`+
			`<p><a href="%s">Open your submission</a></p><p>This link expires on %s.</p>`,
			html.EscapeString(url), expires),
	}
}

// CodeMessage carries a one-time verification code.
func CodeMessage(product, to, code string, expiresAt time.Time) Message {
	minutes := int(time.Until(expiresAt).Round(time.Minute) / time.Minute)
	if minutes < 1 {
		minutes = 1
	}
	return Message{
		To:       to,
		Subject:  fmt.Sprintf("%s: your verification code is %s", product, code),
		TextBody: fmt.Sprintf("Your verification code is %s\n\nIt expires in %d minutes.", code, minutes),
		HTMLBody: fmt.Sprintf(`<p>Your verification code is</p><p style="font-size:24px"><strong>%s</strong></p>`+
			`<p>It expires in %d minutes.</p>`, code, minutes),
	}
}

// LogTransport writes messages to the log instead of sending them. Used when
// no mail provider is configured.
type LogTransport struct {
	Logger *slog.Logger
}

func (t LogTransport) Send(ctx context.Context, msg Message) error {
	t.Logger.InfoContext(ctx, "email not sent, no provider configured",
		"to", msg.To, "subject", msg.Subject, "body", msg.TextBody)
	return nil
}
