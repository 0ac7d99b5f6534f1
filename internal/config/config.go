package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Load reads the .env file specified by TENANTBRIDGE_ENV (or .env by default),
// then loads the corresponding .secret file if it exists.
// All config is flat env vars read via os.Getenv after loading.
func Load() error {
	envFile := os.Getenv("TENANTBRIDGE_ENV")
	if envFile == "" {
		envFile = ".env"
	}

	// Load main env file (ignore error if file doesn't exist)
	_ = godotenv.Load(envFile)

	// Load secret sidecar if it exists
	_ = godotenv.Load(envFile + ".secret")

	return nil
}

func ServerPort() int {
	port, err := strconv.Atoi(os.Getenv("SERVER_PORT"))
	if err != nil {
		return 3978
	}
	return port
}

func ServerAddr() string {
	return fmt.Sprintf(":%d", ServerPort())
}

func DatabaseURL() string {
	return os.Getenv("DATABASE_URL")
}

// StoreBackend returns where tenant records live.
// Defaults to "postgres" if not set.
// Valid values: postgres, memory
func StoreBackend() string {
	b := os.Getenv("STORE_BACKEND")
	if b == "" {
		return "postgres"
	}
	return b
}

// StoreTimeout bounds every tenant store and index call.
// Defaults to 5s if not set.
func StoreTimeout() time.Duration {
	return durationOr("STORE_TIMEOUT", 5*time.Second)
}

// RedisURL returns the secondary index location. Empty disables the index.
func RedisURL() string {
	return os.Getenv("REDIS_URL")
}

// IndexReconcileInterval is how often the index is rebuilt from the primary
// records. Defaults to 15m; "0" disables reconciliation.
func IndexReconcileInterval() time.Duration {
	if os.Getenv("INDEX_RECONCILE_INTERVAL") == "0" {
		return 0
	}
	return durationOr("INDEX_RECONCILE_INTERVAL", 15*time.Minute)
}

// NotifyProvider returns the new-tenant notification provider.
// Defaults to "log" if not set.
// Valid values: log, smtp, mailgun
func NotifyProvider() string {
	p := os.Getenv("NOTIFY_PROVIDER")
	if p == "" {
		return "log"
	}
	return p
}

// NotifyTo returns the comma separated operational mailbox list.
func NotifyTo() []string {
	var out []string
	for _, addr := range strings.Split(os.Getenv("NOTIFY_TO"), ",") {
		if addr = strings.TrimSpace(addr); addr != "" {
			out = append(out, addr)
		}
	}
	return out
}

func NotifyFrom() string {
	return os.Getenv("NOTIFY_FROM")
}

// NotifyTimeout bounds a single notification delivery.
// Defaults to 30s if not set.
func NotifyTimeout() time.Duration {
	return durationOr("NOTIFY_TIMEOUT", 30*time.Second)
}

func SMTPHost() string {
	return os.Getenv("SMTP_HOST")
}

func SMTPPort() int {
	port, err := strconv.Atoi(os.Getenv("SMTP_PORT"))
	if err != nil || port <= 0 {
		return 587
	}
	return port
}

func SMTPUsername() string {
	return os.Getenv("SMTP_USERNAME")
}

func SMTPPassword() string {
	return os.Getenv("SMTP_PASSWORD")
}

// SMTPSecurity returns tls, starttls or none. Defaults to "starttls".
func SMTPSecurity() string {
	s := os.Getenv("SMTP_SECURITY")
	if s == "" {
		return "starttls"
	}
	return s
}

func MailgunDomain() string {
	return os.Getenv("MAILGUN_DOMAIN")
}

func MailgunAPIKey() string {
	return os.Getenv("MAILGUN_API_KEY")
}

// MailgunRegion returns us or eu. Defaults to "us".
func MailgunRegion() string {
	r := os.Getenv("MAILGUN_REGION")
	if r == "" {
		return "us"
	}
	return r
}

// VoiceflowAPIKey is the ambient runtime key for tenants without their own.
func VoiceflowAPIKey() string {
	return os.Getenv("VOICEFLOW_API_KEY")
}

func VoiceflowVersion() string {
	return os.Getenv("VOICEFLOW_VERSION")
}

func CompanyName() string {
	return os.Getenv("COMPANY_NAME")
}

// AdminAPIKey protects the administrative endpoints. Empty disables them.
func AdminAPIKey() string {
	return os.Getenv("ADMIN_API_KEY")
}

// RateLimitRPS returns requests per second limit.
// Defaults to 100 if not set.
func RateLimitRPS() float64 {
	rps, err := strconv.ParseFloat(os.Getenv("RATE_LIMIT_RPS"), 64)
	if err != nil || rps <= 0 {
		return 100
	}
	return rps
}

// RateLimitBurst returns the burst size for rate limiting.
// Defaults to 20 if not set.
func RateLimitBurst() int {
	burst, err := strconv.Atoi(os.Getenv("RATE_LIMIT_BURST"))
	if err != nil || burst <= 0 {
		return 20
	}
	return burst
}

// LogLevel returns the log level (debug, info, warn, error).
// Defaults to "info" if not set.
func LogLevel() string {
	level := os.Getenv("LOG_LEVEL")
	if level == "" {
		return "info"
	}
	return level
}

func durationOr(key string, def time.Duration) time.Duration {
	d, err := time.ParseDuration(os.Getenv(key))
	if err != nil || d <= 0 {
		return def
	}
	return d
}
