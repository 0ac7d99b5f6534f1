package notify

import (
	"context"
	"fmt"
	"strings"

	"github.com/Harshitk-cp/tenantbridge/internal/domain"
	"go.uber.org/zap"
)

// Provider constants
const (
	ProviderLog     = "log"
	ProviderSMTP    = "smtp"
	ProviderMailgun = "mailgun"
)

type Config struct {
	Provider string
	To       []string
	From     string

	SMTPHost     string
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string
	SMTPSecurity string

	MailgunDomain string
	MailgunAPIKey string
	MailgunRegion string
}

// New creates the notifier for the configured provider.
// Returns an error if required settings for that provider are missing.
func New(cfg Config, logger *zap.Logger) (domain.TenantNotifier, error) {
	switch cfg.Provider {
	case "", ProviderLog:
		return NewLogNotifier(logger), nil

	case ProviderSMTP:
		if cfg.SMTPHost == "" {
			return nil, fmt.Errorf("SMTP_HOST is required for smtp notifications")
		}
		if len(cfg.To) == 0 {
			return nil, fmt.Errorf("NOTIFY_TO is required for smtp notifications")
		}
		return NewSMTPNotifier(cfg), nil

	case ProviderMailgun:
		if cfg.MailgunDomain == "" || cfg.MailgunAPIKey == "" {
			return nil, fmt.Errorf("MAILGUN_DOMAIN and MAILGUN_API_KEY are required for mailgun notifications")
		}
		if len(cfg.To) == 0 {
			return nil, fmt.Errorf("NOTIFY_TO is required for mailgun notifications")
		}
		return NewMailgunNotifier(cfg), nil

	default:
		return nil, fmt.Errorf("unknown notification provider: %s", cfg.Provider)
	}
}

// LogNotifier writes the notification to the log instead of mailing it.
type LogNotifier struct {
	logger *zap.Logger
}

func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) NotifyTenantCreated(_ context.Context, c domain.TenantCreated) error {
	n.logger.Info("new tenant created",
		zap.String("tenant_id", c.TenantID),
		zap.String("user_id", c.UserID),
		zap.String("company_name", c.CompanyName),
		zap.String("email", c.Email),
		zap.Time("created_at", c.CreatedAt),
	)
	return nil
}

func composeMessage(c domain.TenantCreated) (subject, body string) {
	company := c.CompanyName
	if company == "" {
		company = "unknown company"
	}
	subject = fmt.Sprintf("New tenant: %s (%s)", company, c.TenantID)

	var b strings.Builder
	b.WriteString("A new tenant started chatting with the bot.\n\n")
	fmt.Fprintf(&b, "Tenant ID:    %s\n", c.TenantID)
	fmt.Fprintf(&b, "User ID:      %s\n", c.UserID)
	fmt.Fprintf(&b, "Company name: %s\n", c.CompanyName)
	if c.Email != "" {
		fmt.Fprintf(&b, "Email:        %s\n", c.Email)
	}
	if !c.CreatedAt.IsZero() {
		fmt.Fprintf(&b, "Created at:   %s\n", c.CreatedAt.UTC().Format("2006-01-02 15:04:05 MST"))
	}
	b.WriteString("\nAdd Voiceflow credentials for this tenant in the admin console.\n")
	return subject, b.String()
}
