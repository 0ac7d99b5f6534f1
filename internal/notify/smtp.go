package notify

import (
	"context"
	"fmt"

	"github.com/Harshitk-cp/tenantbridge/internal/domain"
	mail "github.com/wneessen/go-mail"
)

type SMTPNotifier struct {
	cfg Config
}

func NewSMTPNotifier(cfg Config) *SMTPNotifier {
	return &SMTPNotifier{cfg: cfg}
}

func (n *SMTPNotifier) NotifyTenantCreated(ctx context.Context, c domain.TenantCreated) error {
	subject, body := composeMessage(c)

	from := n.cfg.From
	if from == "" {
		from = n.cfg.SMTPUsername
	}

	m := mail.NewMsg()
	if err := m.From(from); err != nil {
		return fmt.Errorf("set from: %w", err)
	}
	if err := m.To(n.cfg.To...); err != nil {
		return fmt.Errorf("set to: %w", err)
	}
	m.Subject(subject)
	m.SetBodyString(mail.TypeTextPlain, body)
	m.SetMessageID()

	client, err := mail.NewClient(n.cfg.SMTPHost, n.clientOptions()...)
	if err != nil {
		return fmt.Errorf("create smtp client: %w", err)
	}
	if err := client.DialAndSendWithContext(ctx, m); err != nil {
		return fmt.Errorf("send email: %w", err)
	}
	return nil
}

func (n *SMTPNotifier) clientOptions() []mail.Option {
	port := n.cfg.SMTPPort
	if port == 0 {
		port = 587
	}
	opts := []mail.Option{mail.WithPort(port)}
	if n.cfg.SMTPUsername != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(n.cfg.SMTPUsername),
			mail.WithPassword(n.cfg.SMTPPassword),
		)
	}
	switch n.cfg.SMTPSecurity {
	case "tls":
		opts = append(opts, mail.WithSSLPort(false), mail.WithTLSPolicy(mail.TLSMandatory))
	case "none":
		opts = append(opts, mail.WithTLSPolicy(mail.NoTLS))
	default:
		opts = append(opts, mail.WithTLSPolicy(mail.TLSMandatory))
	}
	return opts
}
