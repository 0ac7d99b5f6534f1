package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/Harshitk-cp/tenantbridge/internal/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const tenantColumns = `id, user_id, company_name, email, voiceflow_secret, voiceflow_version,
	attributes, last_seen, created_at, etag`

// TenantStore keeps tenant records in Postgres. Every write replaces the
// etag column with a fresh token and is conditioned on the previous one.
type TenantStore struct {
	db *pgxpool.Pool
}

func NewTenantStore(db *pgxpool.Pool) *TenantStore {
	return &TenantStore{db: db}
}

func (s *TenantStore) Get(ctx context.Context, id string) (domain.TenantLookup, error) {
	t, err := scanTenant(s.db.QueryRow(ctx,
		`SELECT `+tenantColumns+` FROM tenants WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.NotFound(), nil
		}
		return domain.TenantLookup{}, err
	}
	return domain.Found(t), nil
}

func (s *TenantStore) Create(ctx context.Context, t *domain.TenantRecord) error {
	etag := uuid.NewString()
	err := s.db.QueryRow(ctx,
		`INSERT INTO tenants (id, user_id, company_name, email, last_seen, etag)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (id) DO NOTHING
		 RETURNING created_at`,
		t.ID, t.UserID, t.CompanyName, t.Email, t.LastSeen, etag,
	).Scan(&t.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrVersionConflict
		}
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrVersionConflict
		}
		return err
	}
	t.ETag = etag
	return nil
}

// Replace writes the provenance columns and last_seen. Administrative
// columns are never part of the statement, so they survive untouched even
// if t carries an outdated copy of them.
func (s *TenantStore) Replace(ctx context.Context, t *domain.TenantRecord, etag string) error {
	next := uuid.NewString()
	tag, err := s.db.Exec(ctx,
		`UPDATE tenants
		 SET user_id = $2, company_name = $3, email = $4, last_seen = $5, etag = $6
		 WHERE id = $1 AND etag = $7`,
		t.ID, t.UserID, t.CompanyName, t.Email, t.LastSeen, next, etag,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrVersionConflict
	}
	t.ETag = next
	return nil
}

func (s *TenantStore) UpdateAdmin(ctx context.Context, id string, u domain.AdminUpdate, etag string) (*domain.TenantRecord, error) {
	var attrs any
	if u.Attributes != nil {
		attrs = u.Attributes
	}
	t, err := scanTenant(s.db.QueryRow(ctx,
		`UPDATE tenants
		 SET voiceflow_secret = COALESCE($2, voiceflow_secret),
		     voiceflow_version = COALESCE($3, voiceflow_version),
		     attributes = CASE WHEN $4::jsonb IS NULL THEN attributes ELSE attributes || $4::jsonb END,
		     etag = $5
		 WHERE id = $1 AND ($6 = '' OR etag = $6)
		 RETURNING `+tenantColumns,
		id, u.VoiceflowSecret, u.VoiceflowVersion, attrs, uuid.NewString(), etag,
	))
	if err == nil {
		return t, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, err
	}

	lookup, err := s.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("check tenant after failed admin update: %w", err)
	}
	if !lookup.Found {
		return nil, ErrNotFound
	}
	return nil, ErrVersionConflict
}

func (s *TenantStore) List(ctx context.Context) ([]*domain.TenantRecord, error) {
	rows, err := s.db.Query(ctx, `SELECT `+tenantColumns+` FROM tenants ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tenants []*domain.TenantRecord
	for rows.Next() {
		t, err := scanTenant(rows)
		if err != nil {
			return nil, err
		}
		tenants = append(tenants, t)
	}
	return tenants, rows.Err()
}

func scanTenant(row pgx.Row) (*domain.TenantRecord, error) {
	t := &domain.TenantRecord{}
	err := row.Scan(&t.ID, &t.UserID, &t.CompanyName, &t.Email, &t.VoiceflowSecret,
		&t.VoiceflowVersion, &t.Attributes, &t.LastSeen, &t.CreatedAt, &t.ETag)
	if err != nil {
		return nil, err
	}
	t.LastSeen = t.LastSeen.UTC()
	t.CreatedAt = t.CreatedAt.UTC()
	return t, nil
}
