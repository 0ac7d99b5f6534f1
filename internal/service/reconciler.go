package service

import (
	"context"
	"sync"
	"time"

	"github.com/Harshitk-cp/tenantbridge/internal/domain"
	"github.com/Harshitk-cp/tenantbridge/internal/metrics"
	"go.uber.org/zap"
)

const defaultReconcileInterval = 15 * time.Minute

// IndexReconciler periodically rewrites the secondary index from the
// primary records, repairing entries lost to failed best-effort writes.
type IndexReconciler struct {
	store   domain.TenantStore
	index   domain.TenantIndex
	metrics *metrics.Metrics
	logger  *zap.Logger

	interval time.Duration
	timeout  time.Duration
	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

func NewIndexReconciler(s domain.TenantStore, idx domain.TenantIndex, m *metrics.Metrics, logger *zap.Logger) *IndexReconciler {
	return &IndexReconciler{
		store:    s,
		index:    idx,
		metrics:  m,
		logger:   logger,
		interval: defaultReconcileInterval,
		timeout:  time.Minute,
		stopCh:   make(chan struct{}),
	}
}

func (r *IndexReconciler) SetInterval(d time.Duration) {
	if d > 0 {
		r.interval = d
	}
}

// Start runs the reconciler on a periodic schedule in a background goroutine.
func (r *IndexReconciler) Start() {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		ticker := time.NewTicker(r.interval)
		defer ticker.Stop()

		r.logger.Info("tenant index reconciler started", zap.Duration("interval", r.interval))

		for {
			select {
			case <-ticker.C:
				ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
				_, _ = r.Run(ctx)
				cancel()
			case <-r.stopCh:
				r.logger.Info("tenant index reconciler stopped")
				return
			}
		}
	}()
}

// Stop gracefully stops the reconciler.
func (r *IndexReconciler) Stop() {
	r.stopOnce.Do(func() { close(r.stopCh) })
	r.wg.Wait()
}

// Run syncs every stored tenant into the index once and returns how many
// entries were written. Individual sync failures are logged and skipped.
func (r *IndexReconciler) Run(ctx context.Context) (int, error) {
	tenants, err := r.store.List(ctx)
	if err != nil {
		r.logger.Error("failed to list tenants for index reconcile", zap.Error(err))
		return 0, err
	}

	synced := 0
	for _, t := range tenants {
		if err := ctx.Err(); err != nil {
			r.logger.Warn("index reconcile interrupted", zap.Int("synced", synced), zap.Error(err))
			return synced, err
		}
		err := r.index.Sync(ctx, t)
		r.metrics.IndexWritesTotal.WithLabelValues("reconcile", metrics.Result(err)).Inc()
		if err != nil {
			r.logger.Warn("tenant index reconcile failed", zap.String("tenant_id", t.ID), zap.Error(err))
			continue
		}
		synced++
	}

	r.logger.Info("tenant index reconciled", zap.Int("tenants", len(tenants)), zap.Int("synced", synced))
	return synced, nil
}
