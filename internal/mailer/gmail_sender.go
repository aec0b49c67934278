package mailer

import (
	"context"
	"fmt"

	"github.com/wneessen/go-mail"
)

const (
	smtpGmailHost = "smtp.gmail.com"
	smtpGmailPort = 587

	senderEmailName    = "CareLoop"
	senderEmailAddress = "careloop.noreply@gmail.com"
)

// InviteEmail is one rendered invitation email.
type InviteEmail struct {
	To          string
	TeamName    string
	InviterName string
}

type EmailSender interface {
	SendTeamInvite(ctx context.Context, email InviteEmail) error
}

type GmailSender struct {
	client *mail.Client
}

func NewGmailSender(username, password string) (*GmailSender, error) {
	client, err := mail.NewClient(smtpGmailHost, mail.WithPort(smtpGmailPort), mail.WithSMTPAuth(mail.SMTPAuthPlain),
		mail.WithUsername(username), mail.WithPassword(password))
	if err != nil {
		return nil, err
	}
	if err = client.DialWithContext(context.Background()); err != nil {
		return nil, fmt.Errorf("failed to connect to SMTP server: %w", err)
	}

	return &GmailSender{client: client}, nil
}

func (sender *GmailSender) SendTeamInvite(ctx context.Context, email InviteEmail) error {
	msg := mail.NewMsg()

	if err := msg.FromFormat(senderEmailName, senderEmailAddress); err != nil {
		return fmt.Errorf("failed to set From address: %w", err)
	}
	if err := msg.To(email.To); err != nil {
		return fmt.Errorf("failed to set To address: %w", err)
	}

	msg.Subject(fmt.Sprintf("%s invited you to the care team %q", email.InviterName, email.TeamName))
	body := fmt.Sprintf(
		"<p>%s invited you to join the care team <strong>%s</strong>.</p><p>Open your notifications to accept or decline the invitation.</p>",
		email.InviterName, email.TeamName,
	)
	msg.SetBodyString(mail.TypeTextHTML, body)

	if err := sender.client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	return nil
}
