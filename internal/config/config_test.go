package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	for _, key := range []string{
		"SERVER_PORT", "STORE_BACKEND", "STORE_TIMEOUT", "NOTIFY_PROVIDER", "NOTIFY_TO",
		"NOTIFY_TIMEOUT", "SMTP_PORT", "SMTP_SECURITY", "MAILGUN_REGION",
		"RATE_LIMIT_RPS", "RATE_LIMIT_BURST", "LOG_LEVEL", "INDEX_RECONCILE_INTERVAL",
	} {
		t.Setenv(key, "")
	}

	assert.Equal(t, ":3978", ServerAddr())
	assert.Equal(t, "postgres", StoreBackend())
	assert.Equal(t, 5*time.Second, StoreTimeout())
	assert.Equal(t, "log", NotifyProvider())
	assert.Empty(t, NotifyTo())
	assert.Equal(t, 30*time.Second, NotifyTimeout())
	assert.Equal(t, 587, SMTPPort())
	assert.Equal(t, "starttls", SMTPSecurity())
	assert.Equal(t, "us", MailgunRegion())
	assert.Equal(t, 100.0, RateLimitRPS())
	assert.Equal(t, 20, RateLimitBurst())
	assert.Equal(t, "info", LogLevel())
	assert.Equal(t, 15*time.Minute, IndexReconcileInterval())
}

func TestIndexReconcileIntervalDisabled(t *testing.T) {
	t.Setenv("INDEX_RECONCILE_INTERVAL", "0")
	assert.Zero(t, IndexReconcileInterval())

	t.Setenv("INDEX_RECONCILE_INTERVAL", "90s")
	assert.Equal(t, 90*time.Second, IndexReconcileInterval())
}

func TestOverrides(t *testing.T) {
	t.Setenv("SERVER_PORT", "8080")
	t.Setenv("STORE_TIMEOUT", "750ms")
	t.Setenv("NOTIFY_TO", " ops@example.com, ,sales@example.com ")
	t.Setenv("RATE_LIMIT_RPS", "-3")

	assert.Equal(t, ":8080", ServerAddr())
	assert.Equal(t, 750*time.Millisecond, StoreTimeout())
	assert.Equal(t, []string{"ops@example.com", "sales@example.com"}, NotifyTo())
	assert.Equal(t, 100.0, RateLimitRPS())
}

func TestLoadReadsEnvAndSecretFiles(t *testing.T) {
	dir := t.TempDir()
	envFile := filepath.Join(dir, "test.env")
	require.NoError(t, os.WriteFile(envFile, []byte("COMPANY_NAME=Acme\n"), 0o600))
	require.NoError(t, os.WriteFile(envFile+".secret", []byte("VOICEFLOW_API_KEY=VF.secret\n"), 0o600))

	t.Setenv("TENANTBRIDGE_ENV", envFile)
	// godotenv.Load never overrides variables that are already set.
	t.Setenv("COMPANY_NAME", "")
	t.Setenv("VOICEFLOW_API_KEY", "")
	require.NoError(t, os.Unsetenv("COMPANY_NAME"))
	require.NoError(t, os.Unsetenv("VOICEFLOW_API_KEY"))

	require.NoError(t, Load())
	assert.Equal(t, "Acme", CompanyName())
	assert.Equal(t, "VF.secret", VoiceflowAPIKey())
}
