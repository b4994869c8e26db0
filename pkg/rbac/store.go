package rbac

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/platinummonkey/tenantgate/pkg/authz"
	"github.com/platinummonkey/tenantgate/pkg/observability"
	"github.com/platinummonkey/tenantgate/pkg/storage"
)

const storeName = "grants"

const grantColumns = `id, organization_id, profile_id, permission, granted_by_profile_id, created_at, expires_at`

// activeClause is true for rows that are in force at the time bound to its placeholder
const activeClause = `(expires_at IS NULL OR expires_at > $%d)`

// Store persists permission grants. Whether a grant is active is always
// computed against the store clock at query time.
type Store struct {
	db      *sql.DB
	now     func() time.Time
	metrics *observability.Metrics
}

// StoreOption configures a Store
type StoreOption func(*Store)

// WithClock overrides the time source used for created_at and expiry checks
func WithClock(now func() time.Time) StoreOption {
	return func(s *Store) { s.now = now }
}

// WithStoreMetrics records store latencies
func WithStoreMetrics(m *observability.Metrics) StoreOption {
	return func(s *Store) { s.metrics = m }
}

// NewStore creates a Store backed by db
func NewStore(db *sql.DB, opts ...StoreOption) *Store {
	s := &Store{db: db, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Now returns the store clock in UTC
func (s *Store) Now() time.Time {
	return s.now().UTC()
}

// InsertGrant writes g through q and fills in its ID and CreatedAt. The
// (organization, profile, permission) uniqueness constraint applies whether or
// not an existing row has expired.
func (s *Store) InsertGrant(ctx context.Context, q storage.Queryer, g *Grant) error {
	defer s.metrics.ObserveStore(storeName, "insert", time.Now())

	g.CreatedAt = s.Now()
	if g.ExpiresAt != nil {
		utc := g.ExpiresAt.UTC()
		g.ExpiresAt = &utc
	}

	query := `
		INSERT INTO organization_permissions
			(organization_id, profile_id, permission, granted_by_profile_id, created_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`
	err := q.QueryRowContext(ctx, query,
		g.OrganizationID, g.ProfileID, g.Permission, g.GrantedByProfileID, g.CreatedAt, nullTime(g.ExpiresAt),
	).Scan(&g.ID)
	if err != nil {
		if storage.IsUniqueViolation(err) {
			return authz.Conflict("permission %s is already granted to profile %d in organization %d",
				g.Permission, g.ProfileID, g.OrganizationID)
		}
		if storage.IsForeignKeyViolation(err) {
			return authz.NotFound("organization %d or profile %d not found", g.OrganizationID, g.ProfileID)
		}
		return fmt.Errorf("failed to insert grant: %w", err)
	}
	return nil
}

// HasActive reports whether an active grant exists for the exact tuple
func (s *Store) HasActive(ctx context.Context, profileID, orgID int64, perm Permission) (found bool, err error) {
	defer s.metrics.ObserveStore(storeName, "has_active", time.Now())
	ctx, span := observability.StartSpan(ctx, "grants.has_active",
		attribute.Int64("authz.organization_id", orgID),
		attribute.String("authz.permission", string(perm)))
	defer func() { observability.EndSpan(span, err) }()

	query := `
		SELECT 1 FROM organization_permissions
		WHERE profile_id = $1 AND organization_id = $2 AND permission = $3
		AND ` + fmt.Sprintf(activeClause, 4) + `
		LIMIT 1
	`
	var one int
	err = s.db.QueryRowContext(ctx, query, profileID, orgID, perm, s.Now()).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check permission: %w", err)
	}
	return true, nil
}

// GetGrant retrieves a grant by ID
func (s *Store) GetGrant(ctx context.Context, id int64) (*Grant, error) {
	defer s.metrics.ObserveStore(storeName, "get", time.Now())

	query := `SELECT ` + grantColumns + ` FROM organization_permissions WHERE id = $1`
	g, err := scanGrant(s.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, authz.NotFound("permission grant %d not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get grant: %w", err)
	}
	return g, nil
}

// DeleteGrants removes every row for the tuple and returns how many were removed
func (s *Store) DeleteGrants(ctx context.Context, orgID, profileID int64, perm Permission) (int64, error) {
	defer s.metrics.ObserveStore(storeName, "delete", time.Now())

	query := `
		DELETE FROM organization_permissions
		WHERE organization_id = $1 AND profile_id = $2 AND permission = $3
	`
	result, err := s.db.ExecContext(ctx, query, orgID, profileID, perm)
	if err != nil {
		return 0, fmt.Errorf("failed to revoke grant: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to revoke grant: %w", err)
	}
	return n, nil
}

// UpdateExpiry replaces the expiry of grant id. A nil expiresAt removes it.
func (s *Store) UpdateExpiry(ctx context.Context, id int64, expiresAt *time.Time) (*Grant, error) {
	defer s.metrics.ObserveStore(storeName, "update_expiry", time.Now())

	result, err := s.db.ExecContext(ctx,
		`UPDATE organization_permissions SET expires_at = $1 WHERE id = $2`,
		nullTime(expiresAt), id)
	if err != nil {
		return nil, fmt.Errorf("failed to update grant: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to update grant: %w", err)
	}
	if n == 0 {
		return nil, authz.NotFound("permission grant %d not found", id)
	}
	return s.GetGrant(ctx, id)
}

// ListByOrganization lists every grant in an organization, newest first
func (s *Store) ListByOrganization(ctx context.Context, orgID int64) ([]*Grant, error) {
	defer s.metrics.ObserveStore(storeName, "list_by_organization", time.Now())
	return s.list(ctx, `WHERE organization_id = $1`, orgID)
}

// ListByProfile lists every grant held by a profile across organizations, newest first
func (s *Store) ListByProfile(ctx context.Context, profileID int64) ([]*Grant, error) {
	defer s.metrics.ObserveStore(storeName, "list_by_profile", time.Now())
	return s.list(ctx, `WHERE profile_id = $1`, profileID)
}

// ListActive lists the grants a profile holds right now in one organization
func (s *Store) ListActive(ctx context.Context, profileID, orgID int64) ([]*Grant, error) {
	defer s.metrics.ObserveStore(storeName, "list_active", time.Now())
	where := `WHERE profile_id = $1 AND organization_id = $2 AND ` + fmt.Sprintf(activeClause, 3)
	return s.list(ctx, where, profileID, orgID, s.Now())
}

// ListHistory lists every grant in an organization, optionally for one profile,
// including expired ones
func (s *Store) ListHistory(ctx context.Context, orgID int64, profileID *int64) ([]*Grant, error) {
	defer s.metrics.ObserveStore(storeName, "list_history", time.Now())
	if profileID != nil {
		return s.list(ctx, `WHERE organization_id = $1 AND profile_id = $2`, orgID, *profileID)
	}
	return s.list(ctx, `WHERE organization_id = $1`, orgID)
}

// ListExpired lists grants whose expiry has passed
func (s *Store) ListExpired(ctx context.Context) ([]*Grant, error) {
	defer s.metrics.ObserveStore(storeName, "list_expired", time.Now())
	return s.list(ctx, `WHERE expires_at IS NOT NULL AND expires_at <= $1`, s.Now())
}

// CountGrants returns the number of active and expired grants across all organizations
func (s *Store) CountGrants(ctx context.Context) (active, expired int64, err error) {
	defer s.metrics.ObserveStore(storeName, "count", time.Now())

	query := `
		SELECT
			COALESCE(SUM(CASE WHEN expires_at IS NULL OR expires_at > $1 THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN expires_at IS NOT NULL AND expires_at <= $1 THEN 1 ELSE 0 END), 0)
		FROM organization_permissions
	`
	if err := s.db.QueryRowContext(ctx, query, s.Now()).Scan(&active, &expired); err != nil {
		return 0, 0, fmt.Errorf("failed to count grants: %w", err)
	}
	return active, expired, nil
}

func (s *Store) list(ctx context.Context, where string, args ...interface{}) ([]*Grant, error) {
	query := `SELECT ` + grantColumns + ` FROM organization_permissions ` + where +
		` ORDER BY created_at DESC, id DESC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list grants: %w", err)
	}
	defer rows.Close()

	grants := []*Grant{}
	for rows.Next() {
		g, err := scanGrant(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan grant: %w", err)
		}
		grants = append(grants, g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list grants: %w", err)
	}
	return grants, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanGrant(row rowScanner) (*Grant, error) {
	g := &Grant{}
	var expiresAt sql.NullTime
	if err := row.Scan(
		&g.ID, &g.OrganizationID, &g.ProfileID, &g.Permission,
		&g.GrantedByProfileID, &g.CreatedAt, &expiresAt,
	); err != nil {
		return nil, err
	}
	g.CreatedAt = g.CreatedAt.UTC()
	if expiresAt.Valid {
		t := expiresAt.Time.UTC()
		g.ExpiresAt = &t
	}
	return g, nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}
