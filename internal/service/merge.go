package service

import (
	"time"

	"github.com/Harshitk-cp/tenantbridge/internal/domain"
)

// lastSeenResolution matches the precision of a Postgres timestamptz so a
// value survives a round trip unchanged.
const lastSeenResolution = time.Microsecond

// mergeTenant builds the record to write from the freshly read one.
//
// Precedence: every stored field wins, including administrative fields this
// service never writes. Provenance hints only fill fields that are still
// empty. last_seen is owned here and always advances.
func mergeTenant(existing *domain.TenantRecord, in domain.UpsertTenantInput, now time.Time) *domain.TenantRecord {
	var t *domain.TenantRecord
	if existing == nil {
		t = &domain.TenantRecord{ID: in.TenantID}
	} else {
		t = existing.Clone()
	}

	t.UserID = fillEmpty(t.UserID, in.UserID)
	t.CompanyName = fillEmpty(t.CompanyName, in.CompanyName)
	t.Email = fillEmpty(t.Email, in.Email)
	t.LastSeen = nextLastSeen(t.LastSeen, now)
	return t
}

func fillEmpty(current, hint string) string {
	if current != "" {
		return current
	}
	return hint
}

// nextLastSeen returns now, or the smallest representable step past prev
// when the clock has not moved beyond it.
func nextLastSeen(prev, now time.Time) time.Time {
	now = now.UTC().Truncate(lastSeenResolution)
	if now.After(prev) {
		return now
	}
	return prev.UTC().Add(lastSeenResolution)
}
