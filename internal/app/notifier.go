package app

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/smtp"
	"strings"

	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"

	"jobtrack-service/internal/schedule"
)

// ConfirmationNotifier emails the guest after a booking confirms. It sends
// through the host's Gmail when connected, falls back to plain SMTP when
// configured, and is a silent no-op otherwise (the calendar invite already
// reaches the guest via sendUpdates).
type ConfirmationNotifier struct {
	Cfg      *Config
	Store    *Store
	Calendar *GoogleCalendar
}

func (n *ConfirmationNotifier) SendConfirmation(ctx context.Context, guestEmail string, c schedule.Confirmation) error {
	subject := fmt.Sprintf("Confirmed: %s with %s", c.Title, c.HostName)
	body := confirmationBody(c)

	host, err := n.Calendar.connectedHost(ctx, c.HostID)
	if err == nil && host != nil {
		return n.sendViaGmail(ctx, host, guestEmail, subject, body)
	}
	if n.Cfg.SMTPAddr != "" {
		return n.sendViaSMTP(guestEmail, subject, body)
	}
	return nil
}

func (n *ConfirmationNotifier) sendViaGmail(ctx context.Context, host *Host, to, subject, body string) error {
	ts := n.Calendar.tokenSource(ctx, host)
	if ts == nil {
		return fmt.Errorf("google not configured")
	}
	srv, err := gmail.NewService(ctx, option.WithTokenSource(ts))
	if err != nil {
		return err
	}

	raw := fmt.Sprintf("To: %s\r\nSubject: %s\r\nContent-Type: text/plain; charset=utf-8\r\n\r\n%s",
		to, subject, body)
	msg := &gmail.Message{Raw: base64.URLEncoding.WithPadding(base64.NoPadding).EncodeToString([]byte(raw))}
	_, err = srv.Users.Messages.Send("me", msg).Context(ctx).Do()
	return err
}

func (n *ConfirmationNotifier) sendViaSMTP(to, subject, body string) error {
	from := n.Cfg.SMTPFrom
	msg := fmt.Sprintf(
		"From: %s\r\nTo: %s\r\nSubject: %s\r\nMIME-Version: 1.0\r\nContent-Type: text/plain; charset=utf-8\r\n\r\n%s\r\n",
		from, to, subject, body)
	return smtp.SendMail(n.Cfg.SMTPAddr, nil, from, []string{to}, []byte(msg))
}

func confirmationBody(c schedule.Confirmation) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Your meeting has been confirmed!\n\n")
	fmt.Fprintf(&b, "Meeting Details:\n")
	fmt.Fprintf(&b, "- Title: %s\n", c.Title)
	fmt.Fprintf(&b, "- Date: %s\n", c.Date)
	fmt.Fprintf(&b, "- Time: %s\n", c.Time)
	fmt.Fprintf(&b, "- Duration: %d minutes\n", c.DurationMinutes)
	if c.MeetLink != "" {
		fmt.Fprintf(&b, "- Join: %s\n", c.MeetLink)
	}
	fmt.Fprintf(&b, "\nA calendar invite has been sent to your email.\n\nBest,\n%s\n", c.HostName)
	return b.String()
}
