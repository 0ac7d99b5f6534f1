package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/Harshitk-cp/tenantbridge/internal/domain"
	"github.com/Harshitk-cp/tenantbridge/internal/metrics"
	"github.com/Harshitk-cp/tenantbridge/internal/store"
	"go.uber.org/zap"
)

const (
	// maxWriteAttempts is the first conditional write plus one retry after
	// a version conflict.
	maxWriteAttempts = 2

	defaultOpTimeout     = 5 * time.Second
	defaultNotifyTimeout = 30 * time.Second
)

var (
	ErrInvalidTenantID     = errors.New("tenant id is required")
	ErrStoreUnavailable    = errors.New("tenant store unavailable")
	ErrConcurrencyConflict = errors.New("tenant record changed concurrently")
	ErrTenantNotFound      = errors.New("tenant not found")
	ErrPreconditionFailed  = errors.New("tenant etag does not match")
	ErrEmptyAdminUpdate    = errors.New("no administrative fields to update")
	ErrIndexUnavailable    = errors.New("tenant index not configured")
)

// TenantService owns the tenant record lifecycle: lazy creation on first
// contact, last_seen refresh on every turn and the administrative updates.
// Concurrent writers, in this process or another, are reconciled only
// through the store's conditional writes.
type TenantService struct {
	store    domain.TenantStore
	index    domain.TenantIndex
	notifier domain.TenantNotifier
	metrics  *metrics.Metrics
	logger   *zap.Logger

	now           func() time.Time
	opTimeout     time.Duration
	notifyTimeout time.Duration

	notifications sync.WaitGroup
}

// NewTenantService wires the service. index and notifier may be nil.
func NewTenantService(s domain.TenantStore, idx domain.TenantIndex, n domain.TenantNotifier, m *metrics.Metrics, logger *zap.Logger) *TenantService {
	return &TenantService{
		store:         s,
		index:         idx,
		notifier:      n,
		metrics:       m,
		logger:        logger,
		now:           time.Now,
		opTimeout:     defaultOpTimeout,
		notifyTimeout: defaultNotifyTimeout,
	}
}

func (s *TenantService) SetClock(now func() time.Time) {
	s.now = now
}

func (s *TenantService) SetTimeouts(op, notify time.Duration) {
	if op > 0 {
		s.opTimeout = op
	}
	if notify > 0 {
		s.notifyTimeout = notify
	}
}

// UpsertTenant records that the tenant was seen and returns the committed
// record.
//
// The record is read, merged and written back conditioned on the etag that
// was read. A version conflict triggers one re-read and one more write; a
// second conflict returns ErrConcurrencyConflict together with the most
// recently read record (nil if that read found nothing) so the caller can
// carry on with stale data. Any other store failure returns
// ErrStoreUnavailable.
func (s *TenantService) UpsertTenant(ctx context.Context, in domain.UpsertTenantInput) (*domain.TenantRecord, error) {
	in.TenantID = strings.TrimSpace(in.TenantID)
	if in.TenantID == "" {
		return nil, ErrInvalidTenantID
	}

	var lastRead *domain.TenantRecord
	for attempt := 1; attempt <= maxWriteAttempts; attempt++ {
		lookup, err := s.read(ctx, in.TenantID)
		if err != nil {
			s.metrics.UpsertsTotal.WithLabelValues(metrics.OutcomeUnavailable).Inc()
			s.logger.Error("tenant read failed", zap.String("tenant_id", in.TenantID), zap.Error(err))
			return nil, fmt.Errorf("%w: read tenant %s: %w", ErrStoreUnavailable, in.TenantID, err)
		}
		lastRead = lookup.Record

		created := !lookup.Found
		merged := mergeTenant(lookup.Record, in, s.now())
		if created {
			s.logger.Info("creating new tenant record", zap.String("tenant_id", in.TenantID))
			err = s.create(ctx, merged)
		} else {
			err = s.replace(ctx, merged, lookup.Record.ETag)
		}

		if err == nil {
			s.afterCommit(ctx, merged, created)
			return merged, nil
		}
		if !errors.Is(err, store.ErrVersionConflict) {
			s.metrics.UpsertsTotal.WithLabelValues(metrics.OutcomeUnavailable).Inc()
			s.logger.Error("tenant write failed", zap.String("tenant_id", in.TenantID), zap.Error(err))
			return nil, fmt.Errorf("%w: write tenant %s: %w", ErrStoreUnavailable, in.TenantID, err)
		}

		s.metrics.VersionConflicts.Inc()
		s.logger.Warn("tenant write lost a race, reloading latest record",
			zap.String("tenant_id", in.TenantID),
			zap.Int("attempt", attempt),
			zap.Bool("create", created),
		)
	}

	s.metrics.UpsertsTotal.WithLabelValues(metrics.OutcomeConflict).Inc()
	s.logger.Error("tenant write still conflicting after retry",
		zap.String("tenant_id", in.TenantID),
		zap.Int("attempts", maxWriteAttempts),
	)
	return lastRead, fmt.Errorf("%w: tenant %s after %d attempts", ErrConcurrencyConflict, in.TenantID, maxWriteAttempts)
}

// GetTenantConfig returns the stored record. A tenant that was never stored
// yields (nil, false, nil).
func (s *TenantService) GetTenantConfig(ctx context.Context, id string) (*domain.TenantRecord, bool, error) {
	lookup, err := s.read(ctx, id)
	if err != nil {
		return nil, false, fmt.Errorf("%w: read tenant %s: %w", ErrStoreUnavailable, id, err)
	}
	return lookup.Record, lookup.Found, nil
}

// UpdateAdminFields is the administrative console's write path. It touches
// only credential fields and attributes. ifMatch, when set, must equal the
// stored etag.
func (s *TenantService) UpdateAdminFields(ctx context.Context, id string, u domain.AdminUpdate, ifMatch string) (*domain.TenantRecord, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, ErrInvalidTenantID
	}
	if u.Empty() {
		return nil, ErrEmptyAdminUpdate
	}

	opCtx, cancel := context.WithTimeout(ctx, s.opTimeout)
	defer cancel()
	start := time.Now()
	t, err := s.store.UpdateAdmin(opCtx, id, u, ifMatch)
	s.metrics.StoreOpDuration.WithLabelValues("update_admin").Observe(time.Since(start).Seconds())

	switch {
	case err == nil:
	case errors.Is(err, store.ErrNotFound):
		s.metrics.AdminUpdatesTotal.WithLabelValues("not_found").Inc()
		return nil, ErrTenantNotFound
	case errors.Is(err, store.ErrVersionConflict):
		s.metrics.AdminUpdatesTotal.WithLabelValues("precondition_failed").Inc()
		return nil, ErrPreconditionFailed
	default:
		s.metrics.AdminUpdatesTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("%w: update tenant %s: %w", ErrStoreUnavailable, id, err)
	}

	s.metrics.AdminUpdatesTotal.WithLabelValues("ok").Inc()
	s.logger.Info("tenant administrative fields updated",
		zap.String("tenant_id", id),
		zap.Bool("secret_changed", u.VoiceflowSecret != nil),
		zap.Bool("version_changed", u.VoiceflowVersion != nil),
		zap.Int("attributes", len(u.Attributes)),
	)
	s.syncIndex(ctx, t)
	return t, nil
}

// ListIndex reads the management projection, which may lag the primary records.
func (s *TenantService) ListIndex(ctx context.Context) ([]domain.IndexEntry, error) {
	if s.index == nil {
		return nil, ErrIndexUnavailable
	}
	opCtx, cancel := context.WithTimeout(ctx, s.opTimeout)
	defer cancel()
	return s.index.List(opCtx)
}

// Close waits for in-flight new-tenant notifications.
func (s *TenantService) Close() {
	s.notifications.Wait()
}

func (s *TenantService) read(ctx context.Context, id string) (domain.TenantLookup, error) {
	opCtx, cancel := context.WithTimeout(ctx, s.opTimeout)
	defer cancel()
	start := time.Now()
	defer func() {
		s.metrics.StoreOpDuration.WithLabelValues("get").Observe(time.Since(start).Seconds())
	}()
	return s.store.Get(opCtx, id)
}

func (s *TenantService) create(ctx context.Context, t *domain.TenantRecord) error {
	opCtx, cancel := context.WithTimeout(ctx, s.opTimeout)
	defer cancel()
	start := time.Now()
	defer func() {
		s.metrics.StoreOpDuration.WithLabelValues("create").Observe(time.Since(start).Seconds())
	}()
	return s.store.Create(opCtx, t)
}

func (s *TenantService) replace(ctx context.Context, t *domain.TenantRecord, etag string) error {
	opCtx, cancel := context.WithTimeout(ctx, s.opTimeout)
	defer cancel()
	start := time.Now()
	defer func() {
		s.metrics.StoreOpDuration.WithLabelValues("replace").Observe(time.Since(start).Seconds())
	}()
	return s.store.Replace(opCtx, t, etag)
}

// afterCommit runs the side effects of a committed write. None of them can
// fail the upsert.
func (s *TenantService) afterCommit(ctx context.Context, t *domain.TenantRecord, created bool) {
	if !created {
		s.metrics.UpsertsTotal.WithLabelValues(metrics.OutcomeUpdated).Inc()
		s.syncIndex(ctx, t)
		return
	}

	s.metrics.UpsertsTotal.WithLabelValues(metrics.OutcomeCreated).Inc()
	s.logger.Info("tenant record created", zap.String("tenant_id", t.ID), zap.String("company_name", t.CompanyName))
	s.seedIndex(ctx, t)
	s.dispatchCreated(ctx, t)
}

// seedIndex also carries the merged fields, so it doubles as the regular
// index write for the creating call.
func (s *TenantService) seedIndex(ctx context.Context, t *domain.TenantRecord) {
	if s.index == nil {
		return
	}
	opCtx, cancel := context.WithTimeout(ctx, s.opTimeout)
	defer cancel()
	err := s.index.Seed(opCtx, t)
	s.metrics.IndexWritesTotal.WithLabelValues("seed", metrics.Result(err)).Inc()
	if err != nil {
		s.logger.Warn("tenant index seed failed", zap.String("tenant_id", t.ID), zap.Error(err))
	}
}

func (s *TenantService) syncIndex(ctx context.Context, t *domain.TenantRecord) {
	if s.index == nil {
		return
	}
	opCtx, cancel := context.WithTimeout(ctx, s.opTimeout)
	defer cancel()
	err := s.index.Sync(opCtx, t)
	s.metrics.IndexWritesTotal.WithLabelValues("sync", metrics.Result(err)).Inc()
	if err != nil {
		s.logger.Warn("tenant index sync failed", zap.String("tenant_id", t.ID), zap.Error(err))
	}
}

// dispatchCreated sends the new-tenant notification without holding up the
// turn. The notification outlives the request context.
func (s *TenantService) dispatchCreated(ctx context.Context, t *domain.TenantRecord) {
	if s.notifier == nil {
		return
	}
	n := domain.TenantCreated{
		TenantID:    t.ID,
		UserID:      t.UserID,
		CompanyName: t.CompanyName,
		Email:       t.Email,
		CreatedAt:   t.CreatedAt,
	}

	s.notifications.Add(1)
	go func() {
		defer s.notifications.Done()
		nctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.notifyTimeout)
		defer cancel()

		err := s.notifier.NotifyTenantCreated(nctx, n)
		s.metrics.NotificationsTotal.WithLabelValues(metrics.Result(err)).Inc()
		if err != nil {
			s.logger.Error("new tenant notification failed", zap.String("tenant_id", n.TenantID), zap.Error(err))
			return
		}
		s.logger.Info("new tenant notification sent", zap.String("tenant_id", n.TenantID))
	}()
}
