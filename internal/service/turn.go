package service

import (
	"context"
	"errors"
	"strconv"

	"github.com/Harshitk-cp/tenantbridge/internal/domain"
	"github.com/Harshitk-cp/tenantbridge/internal/metrics"
	"go.uber.org/zap"
)

const (
	UnknownTenant  = "unknown-tenant"
	UnknownCompany = "unknown-company"
)

// TenantUpserter is the part of TenantService a turn needs.
type TenantUpserter interface {
	UpsertTenant(ctx context.Context, in domain.UpsertTenantInput) (*domain.TenantRecord, error)
}

// TurnDefaults are the ambient credentials used when a tenant has none of
// its own or its record cannot be loaded.
type TurnDefaults struct {
	APIKey      string
	VersionID   string
	CompanyName string
}

type TurnService struct {
	tenants  TenantUpserter
	defaults TurnDefaults
	metrics  *metrics.Metrics
	logger   *zap.Logger
}

func NewTurnService(tenants TenantUpserter, defaults TurnDefaults, m *metrics.Metrics, logger *zap.Logger) *TurnService {
	return &TurnService{tenants: tenants, defaults: defaults, metrics: m, logger: logger}
}

// Resolve refreshes the tenant record for an inbound message and picks the
// runtime credentials for it. It never fails: store errors degrade the turn
// to the ambient defaults (or to the stale record returned with a
// concurrency conflict).
func (s *TurnService) Resolve(ctx context.Context, turn domain.Turn) domain.TurnResolution {
	res := domain.TurnResolution{
		TenantID:    firstNonEmpty(turn.ConversationTenant, turn.ChannelTenant, turn.HeaderTenant, UnknownTenant),
		CompanyName: firstNonEmpty(turn.TeamName, turn.ConversationName, s.defaults.CompanyName, UnknownCompany),
		UserID:      turn.UserID,
	}

	rec, err := s.tenants.UpsertTenant(ctx, domain.UpsertTenantInput{
		TenantID:    res.TenantID,
		UserID:      res.UserID,
		CompanyName: res.CompanyName,
	})
	switch {
	case err == nil:
	case errors.Is(err, ErrConcurrencyConflict):
		res.Degraded = true
		s.logger.Warn("using last read tenant record after write conflict",
			zap.String("tenant_id", res.TenantID),
			zap.Bool("have_record", rec != nil),
		)
	default:
		res.Degraded = true
		rec = nil
		s.logger.Error("tenant lookup failed, falling back to default credentials",
			zap.String("tenant_id", res.TenantID),
			zap.Error(err),
		)
	}
	res.Record = rec

	var tenantKey, tenantVersion string
	if rec != nil {
		tenantKey, tenantVersion = rec.VoiceflowSecret, rec.VoiceflowVersion
	}
	res.APIKey = firstNonEmpty(tenantKey, s.defaults.APIKey)
	res.VersionID = firstNonEmpty(tenantVersion, s.defaults.VersionID)

	switch {
	case tenantKey != "" && tenantVersion != "":
		res.Source = domain.CredentialSourceTenant
	case tenantKey == "" && tenantVersion == "":
		res.Source = domain.CredentialSourceDefault
	default:
		res.Source = domain.CredentialSourceMixed
	}

	s.metrics.TurnsTotal.WithLabelValues(string(res.Source), strconv.FormatBool(res.Degraded)).Inc()
	s.logger.Debug("turn credentials resolved",
		zap.String("tenant_id", res.TenantID),
		zap.String("credential_source", string(res.Source)),
		zap.String("version_id", res.VersionID),
		zap.Bool("degraded", res.Degraded),
	)
	return res
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
