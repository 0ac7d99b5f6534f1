package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/Harshitk-cp/tenantbridge/internal/domain"
	"github.com/google/uuid"
)

// InMemoryTenantStore mirrors TenantStore for local runs and tests. The
// mutex stands in for the database's atomic conditional write; callers
// still go through the etag protocol.
type InMemoryTenantStore struct {
	mu      sync.Mutex
	tenants map[string]*domain.TenantRecord
	now     func() time.Time
}

func NewInMemoryTenantStore() *InMemoryTenantStore {
	return &InMemoryTenantStore{
		tenants: make(map[string]*domain.TenantRecord),
		now:     time.Now,
	}
}

func (s *InMemoryTenantStore) Get(ctx context.Context, id string) (domain.TenantLookup, error) {
	if err := ctx.Err(); err != nil {
		return domain.TenantLookup{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tenants[id]
	if !ok {
		return domain.NotFound(), nil
	}
	return domain.Found(t.Clone()), nil
}

func (s *InMemoryTenantStore) Create(ctx context.Context, t *domain.TenantRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.tenants[t.ID]; ok {
		return ErrVersionConflict
	}
	stored := &domain.TenantRecord{
		ID:          t.ID,
		UserID:      t.UserID,
		CompanyName: t.CompanyName,
		Email:       t.Email,
		LastSeen:    t.LastSeen,
		CreatedAt:   s.now().UTC().Truncate(time.Microsecond),
		ETag:        uuid.NewString(),
	}
	s.tenants[t.ID] = stored
	t.CreatedAt = stored.CreatedAt
	t.ETag = stored.ETag
	return nil
}

func (s *InMemoryTenantStore) Replace(ctx context.Context, t *domain.TenantRecord, etag string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.tenants[t.ID]
	if !ok || stored.ETag != etag {
		return ErrVersionConflict
	}
	stored.UserID = t.UserID
	stored.CompanyName = t.CompanyName
	stored.Email = t.Email
	stored.LastSeen = t.LastSeen
	stored.ETag = uuid.NewString()
	t.ETag = stored.ETag
	return nil
}

func (s *InMemoryTenantStore) UpdateAdmin(ctx context.Context, id string, u domain.AdminUpdate, etag string) (*domain.TenantRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.tenants[id]
	if !ok {
		return nil, ErrNotFound
	}
	if etag != "" && stored.ETag != etag {
		return nil, ErrVersionConflict
	}
	if u.VoiceflowSecret != nil {
		stored.VoiceflowSecret = *u.VoiceflowSecret
	}
	if u.VoiceflowVersion != nil {
		stored.VoiceflowVersion = *u.VoiceflowVersion
	}
	if u.Attributes != nil {
		if stored.Attributes == nil {
			stored.Attributes = make(map[string]any, len(u.Attributes))
		}
		for k, v := range u.Attributes {
			stored.Attributes[k] = v
		}
	}
	stored.ETag = uuid.NewString()
	return stored.Clone(), nil
}

func (s *InMemoryTenantStore) List(ctx context.Context) ([]*domain.TenantRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	tenants := make([]*domain.TenantRecord, 0, len(s.tenants))
	for _, t := range s.tenants {
		tenants = append(tenants, t.Clone())
	}
	sort.Slice(tenants, func(i, j int) bool { return tenants[i].ID < tenants[j].ID })
	return tenants, nil
}
