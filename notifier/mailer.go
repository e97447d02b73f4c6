package notifier

import (
	"context"
	"fmt"

	"github.com/n0rdy/guardian/configs"

	"github.com/wneessen/go-mail"
)

type SMTPMailer struct {
	client *mail.Client
	from   string
}

func NewSMTPMailer(smtpConfigs configs.SmtpConfigs) (*SMTPMailer, error) {
	opts := []mail.Option{
		mail.WithPort(smtpConfigs.Port),
		mail.WithTLSPolicy(mail.TLSOpportunistic),
	}
	if smtpConfigs.User != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(smtpConfigs.User),
			mail.WithPassword(smtpConfigs.Password),
		)
	}

	client, err := mail.NewClient(smtpConfigs.Host, opts...)
	if err != nil {
		return nil, fmt.Errorf("create smtp client: %w", err)
	}

	return &SMTPMailer{
		client: client,
		from:   smtpConfigs.EmailFrom,
	}, nil
}

func (sm *SMTPMailer) Send(notification Notification, ctx context.Context) error {
	msg := mail.NewMsg()
	if err := msg.From(sm.from); err != nil {
		return fmt.Errorf("set sender %s: %w", sm.from, err)
	}
	if err := msg.To(notification.To); err != nil {
		return fmt.Errorf("set recipient %s: %w", notification.To, err)
	}
	msg.Subject(notification.Subject)
	msg.SetBodyString(mail.TypeTextPlain, notification.Body)

	if err := sm.client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("send email to %s: %w", notification.To, err)
	}
	return nil
}
