package domain

// Turn is the per-message context handed over by the chat channel.
// Empty strings mean the channel did not supply the hint.
type Turn struct {
	ActivityType       string
	Text               string
	UserID             string
	ConversationTenant string
	ChannelTenant      string
	HeaderTenant       string
	TeamName           string
	ConversationName   string
}

type CredentialSource string

const (
	CredentialSourceTenant  CredentialSource = "tenant"
	CredentialSourceDefault CredentialSource = "default"
	CredentialSourceMixed   CredentialSource = "mixed"
)

// TurnResolution is what the turn handler needs to call the AI runtime.
type TurnResolution struct {
	TenantID    string
	CompanyName string
	UserID      string
	APIKey      string
	VersionID   string
	Source      CredentialSource
	// Degraded is set when the tenant record could not be read or written
	// and ambient defaults or a stale record were used instead.
	Degraded    bool
	Record      *TenantRecord
}
