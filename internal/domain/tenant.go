package domain

import "time"

type TenantRecord struct {
	ID          string `json:"id"`
	UserID      string `json:"user_id,omitempty"`
	CompanyName string `json:"company_name,omitempty"`
	Email       string `json:"email,omitempty"`

	// Written only by the administrative path.
	VoiceflowSecret  string         `json:"-"`
	VoiceflowVersion string         `json:"voiceflow_version,omitempty"`
	Attributes       map[string]any `json:"attributes,omitempty"`

	LastSeen  time.Time `json:"last_seen"`
	CreatedAt time.Time `json:"created_at"`
	ETag      string    `json:"etag"`
}

// Clone returns a deep copy so callers can merge without touching a shared snapshot.
func (t *TenantRecord) Clone() *TenantRecord {
	if t == nil {
		return nil
	}
	c := *t
	if t.Attributes != nil {
		c.Attributes = make(map[string]any, len(t.Attributes))
		for k, v := range t.Attributes {
			c.Attributes[k] = v
		}
	}
	return &c
}

// TenantLookup is the result of a point read. Found is false when the
// tenant has never been stored; that is not an error.
type TenantLookup struct {
	Record *TenantRecord
	Found  bool
}

func Found(t *TenantRecord) TenantLookup { return TenantLookup{Record: t, Found: true} }

func NotFound() TenantLookup { return TenantLookup{} }

type UpsertTenantInput struct {
	TenantID    string
	UserID      string
	CompanyName string
	Email       string
}

// AdminUpdate carries the fields owned by the administrative console.
// Nil pointers leave the stored value untouched.
type AdminUpdate struct {
	VoiceflowSecret  *string
	VoiceflowVersion *string
	Attributes       map[string]any
}

func (u AdminUpdate) Empty() bool {
	return u.VoiceflowSecret == nil && u.VoiceflowVersion == nil && u.Attributes == nil
}

// TenantCreated is the payload handed to the notification sink.
type TenantCreated struct {
	TenantID    string    `json:"tenant_id"`
	UserID      string    `json:"user_id"`
	CompanyName string    `json:"company_name"`
	Email       string    `json:"email,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// IndexEntry is one row of the secondary index read path.
type IndexEntry struct {
	TenantID    string    `json:"tenant_id"`
	UserID      string    `json:"user_id,omitempty"`
	CompanyName string    `json:"company_name,omitempty"`
	Email       string    `json:"email,omitempty"`
	LastSeen    time.Time `json:"last_seen"`
	CreatedAt   time.Time `json:"created_at"`
}
