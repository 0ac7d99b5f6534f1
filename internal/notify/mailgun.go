package notify

import (
	"context"
	"fmt"

	"github.com/Harshitk-cp/tenantbridge/internal/domain"
	mg "github.com/mailgun/mailgun-go/v5"
)

type MailgunNotifier struct {
	cfg    Config
	client *mg.Client
}

func NewMailgunNotifier(cfg Config) *MailgunNotifier {
	client := mg.NewMailgun(cfg.MailgunAPIKey)
	if cfg.MailgunRegion == "eu" {
		client.SetAPIBase(mg.APIBaseEU)
	}
	return &MailgunNotifier{cfg: cfg, client: client}
}

func (n *MailgunNotifier) from() string {
	if n.cfg.From != "" {
		return n.cfg.From
	}
	return fmt.Sprintf("noreply@%s", n.cfg.MailgunDomain)
}

func (n *MailgunNotifier) NotifyTenantCreated(ctx context.Context, c domain.TenantCreated) error {
	subject, body := composeMessage(c)
	m := mg.NewMessage(n.cfg.MailgunDomain, n.from(), subject, body, n.cfg.To...)
	if _, err := n.client.Send(ctx, m); err != nil {
		return fmt.Errorf("mailgun send: %w", err)
	}
	return nil
}
