package service

import (
	"context"
	"sync"
	"time"

	"github.com/Harshitk-cp/tenantbridge/internal/domain"
	"github.com/Harshitk-cp/tenantbridge/internal/metrics"
	"github.com/Harshitk-cp/tenantbridge/internal/store"
	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"
)

// stepClock advances by one second on every call.
type stepClock struct {
	mu   sync.Mutex
	next time.Time
	step time.Duration
}

func newStepClock(start time.Time, step time.Duration) *stepClock {
	return &stepClock{next: start, step: step}
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.next
	c.next = c.next.Add(c.step)
	return now
}

var testEpoch = time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)

func newTestTenantService(st domain.TenantStore, idx domain.TenantIndex, n domain.TenantNotifier) *TenantService {
	svc := NewTenantService(st, idx, n, metrics.New(), zap.NewNop())
	svc.SetClock(newStepClock(testEpoch, time.Second).Now)
	return svc
}

// recordingNotifier keeps every notification it receives.
type recordingNotifier struct {
	mu   sync.Mutex
	sent []domain.TenantCreated
	err  error
}

func (n *recordingNotifier) NotifyTenantCreated(_ context.Context, c domain.TenantCreated) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, c)
	return n.err
}

func (n *recordingNotifier) Sent() []domain.TenantCreated {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]domain.TenantCreated(nil), n.sent...)
}

// countingIndex counts writes per kind.
type countingIndex struct {
	mu    sync.Mutex
	seeds map[string]int
	syncs map[string]int
}

func newCountingIndex() *countingIndex {
	return &countingIndex{seeds: map[string]int{}, syncs: map[string]int{}}
}

func (i *countingIndex) Seed(_ context.Context, t *domain.TenantRecord) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.seeds[t.ID]++
	return nil
}

func (i *countingIndex) Sync(_ context.Context, t *domain.TenantRecord) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.syncs[t.ID]++
	return nil
}

func (i *countingIndex) List(context.Context) ([]domain.IndexEntry, error) {
	return nil, nil
}

// mockIndex implements domain.TenantIndex with testify expectations.
type mockIndex struct {
	mock.Mock
}

func (m *mockIndex) Seed(ctx context.Context, t *domain.TenantRecord) error {
	return m.Called(ctx, t).Error(0)
}

func (m *mockIndex) Sync(ctx context.Context, t *domain.TenantRecord) error {
	return m.Called(ctx, t).Error(0)
}

func (m *mockIndex) List(ctx context.Context) ([]domain.IndexEntry, error) {
	args := m.Called(ctx)
	entries, _ := args.Get(0).([]domain.IndexEntry)
	return entries, args.Error(1)
}

// scriptedStore wraps the in-memory store and lets a test inject failures
// and observe the calls.
type scriptedStore struct {
	*store.InMemoryTenantStore

	mu             sync.Mutex
	reads          int
	writes         int
	forcedConflict int
	getErr         error
	writeErr       error
	beforeCreate   func()
	beforeReplace  func()
	blockGet       bool
}

func newScriptedStore() *scriptedStore {
	return &scriptedStore{InMemoryTenantStore: store.NewInMemoryTenantStore()}
}

func (s *scriptedStore) Get(ctx context.Context, id string) (domain.TenantLookup, error) {
	s.mu.Lock()
	s.reads++
	getErr, block := s.getErr, s.blockGet
	s.mu.Unlock()

	if block {
		<-ctx.Done()
		return domain.TenantLookup{}, ctx.Err()
	}
	if getErr != nil {
		return domain.TenantLookup{}, getErr
	}
	return s.InMemoryTenantStore.Get(ctx, id)
}

func (s *scriptedStore) nextWrite() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.writes++
	if s.writeErr != nil {
		return s.writeErr
	}
	if s.forcedConflict > 0 {
		s.forcedConflict--
		return store.ErrVersionConflict
	}
	return nil
}

func (s *scriptedStore) Create(ctx context.Context, t *domain.TenantRecord) error {
	if err := s.nextWrite(); err != nil {
		return err
	}
	if s.beforeCreate != nil {
		s.beforeCreate()
	}
	return s.InMemoryTenantStore.Create(ctx, t)
}

func (s *scriptedStore) Replace(ctx context.Context, t *domain.TenantRecord, etag string) error {
	if err := s.nextWrite(); err != nil {
		return err
	}
	if s.beforeReplace != nil {
		s.beforeReplace()
	}
	return s.InMemoryTenantStore.Replace(ctx, t, etag)
}

func (s *scriptedStore) counts() (reads, writes int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reads, s.writes
}

func strPtr(s string) *string { return &s }
