package orgs

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/platinummonkey/tenantgate/pkg/authz"
	"github.com/platinummonkey/tenantgate/pkg/observability"
	"github.com/platinummonkey/tenantgate/pkg/storage"
)

const storeName = "memberships"

// Store persists organizations and memberships
type Store struct {
	db      *sql.DB
	now     func() time.Time
	metrics *observability.Metrics
}

// StoreOption configures a Store
type StoreOption func(*Store)

// WithClock overrides the time source used for created_at
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

func (s *Store) timestamp() time.Time {
	return s.now().UTC()
}

// CreateOrganization inserts the organization and its MAIN_ADMIN membership in
// one transaction, then runs hooks inside the same transaction
func (s *Store) CreateOrganization(ctx context.Context, name, orgType string, creatorProfileID int64, hooks ...CreationHook) (*Organization, error) {
	defer s.metrics.ObserveStore(storeName, "create_organization", time.Now())

	org := &Organization{
		Name:               name,
		Type:               orgType,
		MainAdminProfileID: creatorProfileID,
		CreatedAt:          s.timestamp(),
	}

	err := storage.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		exists, err := profileExists(ctx, tx, creatorProfileID)
		if err != nil {
			return err
		}
		if !exists {
			return authz.NotFound("profile %d not found", creatorProfileID)
		}

		query := `
			INSERT INTO organizations (name, type, main_admin_profile_id, created_at)
			VALUES ($1, $2, $3, $4)
			RETURNING id
		`
		if err := tx.QueryRowContext(ctx, query, org.Name, org.Type, org.MainAdminProfileID, org.CreatedAt).Scan(&org.ID); err != nil {
			return fmt.Errorf("failed to create organization: %w", err)
		}

		if err := s.SetMainAdmin(ctx, tx, org.ID, creatorProfileID); err != nil {
			return err
		}

		for _, hook := range hooks {
			if err := hook(ctx, tx, org); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return org, nil
}

// SetMainAdmin writes the single MAIN_ADMIN membership of an organization.
// It is only called while the organization is being created.
func (s *Store) SetMainAdmin(ctx context.Context, q storage.Queryer, orgID, profileID int64) error {
	query := `
		INSERT INTO organization_memberships (profile_id, organization_id, role, created_at)
		VALUES ($1, $2, $3, $4)
	`
	if _, err := q.ExecContext(ctx, query, profileID, orgID, RoleMainAdmin, s.timestamp()); err != nil {
		if storage.IsUniqueViolation(err) {
			return authz.Conflict("organization %d already has a main admin", orgID)
		}
		return fmt.Errorf("failed to set main admin: %w", err)
	}
	return nil
}

// GetOrganization retrieves an organization by ID
func (s *Store) GetOrganization(ctx context.Context, id int64) (*Organization, error) {
	defer s.metrics.ObserveStore(storeName, "get_organization", time.Now())

	query := `
		SELECT id, name, type, main_admin_profile_id, created_at
		FROM organizations
		WHERE id = $1
	`
	org := &Organization{}
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&org.ID, &org.Name, &org.Type, &org.MainAdminProfileID, &org.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, authz.NotFound("organization %d not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get organization: %w", err)
	}
	org.CreatedAt = org.CreatedAt.UTC()

	return org, nil
}

// ListOrganizationsForProfile lists every organization the profile belongs to, with its role
func (s *Store) ListOrganizationsForProfile(ctx context.Context, profileID int64) ([]*ProfileOrganization, error) {
	defer s.metrics.ObserveStore(storeName, "list_for_profile", time.Now())

	query := `
		SELECT o.id, o.name, o.type, o.main_admin_profile_id, o.created_at, m.role
		FROM organizations o
		JOIN organization_memberships m ON m.organization_id = o.id
		WHERE m.profile_id = $1
		ORDER BY o.created_at DESC, o.id DESC
	`
	rows, err := s.db.QueryContext(ctx, query, profileID)
	if err != nil {
		return nil, fmt.Errorf("failed to list organizations: %w", err)
	}
	defer rows.Close()

	orgs := []*ProfileOrganization{}
	for rows.Next() {
		org := &ProfileOrganization{}
		if err := rows.Scan(
			&org.ID, &org.Name, &org.Type, &org.MainAdminProfileID, &org.CreatedAt, &org.Role,
		); err != nil {
			return nil, fmt.Errorf("failed to scan organization: %w", err)
		}
		org.CreatedAt = org.CreatedAt.UTC()
		orgs = append(orgs, org)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list organizations: %w", err)
	}

	return orgs, nil
}

// ListOrganizationsByMainAdmin lists the organizations whose main admin is profileID
func (s *Store) ListOrganizationsByMainAdmin(ctx context.Context, profileID int64) ([]*Organization, error) {
	defer s.metrics.ObserveStore(storeName, "list_by_main_admin", time.Now())

	query := `
		SELECT id, name, type, main_admin_profile_id, created_at
		FROM organizations
		WHERE main_admin_profile_id = $1
		ORDER BY created_at DESC, id DESC
	`
	rows, err := s.db.QueryContext(ctx, query, profileID)
	if err != nil {
		return nil, fmt.Errorf("failed to list organizations: %w", err)
	}
	defer rows.Close()

	orgs := []*Organization{}
	for rows.Next() {
		org := &Organization{}
		if err := rows.Scan(&org.ID, &org.Name, &org.Type, &org.MainAdminProfileID, &org.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan organization: %w", err)
		}
		org.CreatedAt = org.CreatedAt.UTC()
		orgs = append(orgs, org)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list organizations: %w", err)
	}

	return orgs, nil
}

func profileExists(ctx context.Context, q storage.Queryer, profileID int64) (bool, error) {
	var id int64
	err := q.QueryRowContext(ctx, "SELECT id FROM profiles WHERE id = $1", profileID).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to look up profile: %w", err)
	}
	return true, nil
}
