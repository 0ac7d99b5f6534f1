package domain

import "context"

// TenantStore is the primary record storage. Writes are conditional:
// Create succeeds only when no record exists and Replace only when etag
// matches the stored version. Both report a mismatch as store.ErrVersionConflict
// and set t.ETag to the new version on success.
type TenantStore interface {
	Get(ctx context.Context, id string) (TenantLookup, error)
	Create(ctx context.Context, t *TenantRecord) error
	Replace(ctx context.Context, t *TenantRecord, etag string) error
	// UpdateAdmin writes only administrative fields. An empty etag skips the
	// version check.
	UpdateAdmin(ctx context.Context, id string, u AdminUpdate, etag string) (*TenantRecord, error)
	// List returns every record ordered by id.
	List(ctx context.Context) ([]*TenantRecord, error)
}

// TenantIndex is the denormalized projection used by the management surface.
type TenantIndex interface {
	Seed(ctx context.Context, t *TenantRecord) error
	Sync(ctx context.Context, t *TenantRecord) error
	List(ctx context.Context) ([]IndexEntry, error)
}

type TenantNotifier interface {
	NotifyTenantCreated(ctx context.Context, n TenantCreated) error
}
