// Package mail renders and delivers transactional email.
package mail

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"html/template"
	"log/slog"
	"net/url"
	"strings"

	"github.com/presskit/presskit/internal/apperror"
)

//go:embed templates/*.html
var templateFS embed.FS

// MsgSendFailed is the client-facing message for any delivery failure.
const MsgSendFailed = "Failed to send email"

// Message is a rendered email ready for delivery.
type Message struct {
	To      string
	Subject string
	HTML    string
}

// Sender delivers rendered messages.
type Sender interface {
	Send(ctx context.Context, msg *Message) error
}

// Mailer renders the transactional templates and hands them to a Sender.
type Mailer struct {
	sender    Sender
	clientURL string
	tmpl      *template.Template
	logger    *slog.Logger
}

// NewMailer parses the embedded templates. clientURL is the public web app
// that verification and reset links point to.
func NewMailer(sender Sender, clientURL string, logger *slog.Logger) (*Mailer, error) {
	tmpl, err := template.ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse email templates: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Mailer{
		sender:    sender,
		clientURL: strings.TrimRight(clientURL, "/"),
		tmpl:      tmpl,
		logger:    logger,
	}, nil
}

type button struct {
	URL   string
	Label string
}

// link builds a client URL carrying a token query parameter.
func (m *Mailer) link(path, token string) string {
	return m.clientURL + path + "?token=" + url.QueryEscape(token)
}

// SendWelcome greets a new user and asks them to verify their email.
func (m *Mailer) SendWelcome(ctx context.Context, to, name, verifyToken string) error {
	return m.send(ctx, to, "Welcome to PressKit Pro!", "welcome", map[string]any{
		"Name":   name,
		"Button": button{URL: m.link("/verify-email", verifyToken), Label: "Verify Email"},
	})
}

// SendVerification re-sends the email verification link.
func (m *Mailer) SendVerification(ctx context.Context, to, name, verifyToken string) error {
	return m.send(ctx, to, "Verify your PressKit Pro email", "verifyEmail", map[string]any{
		"Name":   name,
		"Button": button{URL: m.link("/verify-email", verifyToken), Label: "Verify Email"},
	})
}

// SendPasswordReset sends the password reset link.
func (m *Mailer) SendPasswordReset(ctx context.Context, to, resetToken string) error {
	return m.send(ctx, to, "Reset Your PressKit Pro Password", "passwordReset", map[string]any{
		"Button": button{URL: m.link("/reset-password", resetToken), Label: "Reset Password"},
	})
}

// ContactNotification describes a new inquiry for the EPK's contact address.
type ContactNotification struct {
	EPKTitle string
	Type     string
	Name     string
	Email    string
	Subject  string
	Message  string
}

// SendContactNotification tells the EPK owner about a new inquiry.
func (m *Mailer) SendContactNotification(ctx context.Context, to string, n ContactNotification) error {
	return m.send(ctx, to, "New Contact Form Submission", "contactNotification", n)
}

// SendInquiryResponse delivers the owner's reply to the inquiry's sender.
func (m *Mailer) SendInquiryResponse(ctx context.Context, to, name, originalSubject, message string) error {
	return m.send(ctx, to, "Response to your inquiry", "inquiryResponse", map[string]any{
		"Name":            name,
		"Message":         message,
		"OriginalSubject": originalSubject,
	})
}

// SendSubscriptionConfirmation confirms a new or changed subscription.
func (m *Mailer) SendSubscriptionConfirmation(ctx context.Context, to, plan, startDate string) error {
	return m.send(ctx, to, "Subscription Confirmation", "subscriptionConfirmation", map[string]any{
		"Plan":      plan,
		"StartDate": startDate,
	})
}

func (m *Mailer) send(ctx context.Context, to, subject, name string, data any) error {
	var buf bytes.Buffer
	if err := m.tmpl.ExecuteTemplate(&buf, name, data); err != nil {
		return apperror.External(MsgSendFailed, fmt.Errorf("render %s: %w", name, err))
	}

	msg := &Message{To: to, Subject: subject, HTML: buf.String()}
	if err := m.sender.Send(ctx, msg); err != nil {
		m.logger.Error("email_send_failed", "template", name, "error", err)
		return apperror.External(MsgSendFailed, err)
	}
	m.logger.Info("email_sent", "template", name)
	return nil
}
