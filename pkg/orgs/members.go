package orgs

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

// CreateMembership adds a non main admin member. A second membership for the
// same (profile, organization) pair fails with Conflict.
func (s *Store) CreateMembership(ctx context.Context, profileID, orgID int64, role Role) (*Membership, error) {
	defer s.metrics.ObserveStore(storeName, "create_membership", time.Now())

	if role == RoleMainAdmin {
		return nil, authz.BadRequest("%s can only be assigned at organization creation", RoleMainAdmin)
	}
	if !role.Valid() {
		return nil, authz.BadRequest("invalid role %q", role)
	}

	m := &Membership{
		ProfileID:      profileID,
		OrganizationID: orgID,
		Role:           role,
		CreatedAt:      s.timestamp(),
	}

	query := `
		INSERT INTO organization_memberships (profile_id, organization_id, role, created_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`
	err := s.db.QueryRowContext(ctx, query, m.ProfileID, m.OrganizationID, m.Role, m.CreatedAt).Scan(&m.ID)
	switch {
	case storage.IsUniqueViolation(err):
		return nil, authz.Conflict("profile %d is already a member of organization %d", profileID, orgID)
	case storage.IsForeignKeyViolation(err):
		return nil, authz.NotFound("profile %d or organization %d not found", profileID, orgID)
	case err != nil:
		return nil, fmt.Errorf("failed to create membership: %w", err)
	}

	return m, nil
}

// GetMembership returns the membership of profileID in orgID, or nil when there is none
func (s *Store) GetMembership(ctx context.Context, profileID, orgID int64) (*Membership, error) {
	defer s.metrics.ObserveStore(storeName, "get_membership", time.Now())

	query := `
		SELECT id, profile_id, organization_id, role, created_at
		FROM organization_memberships
		WHERE profile_id = $1 AND organization_id = $2
	`
	m := &Membership{}
	err := s.db.QueryRowContext(ctx, query, profileID, orgID).Scan(
		&m.ID, &m.ProfileID, &m.OrganizationID, &m.Role, &m.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get membership: %w", err)
	}
	m.CreatedAt = m.CreatedAt.UTC()

	return m, nil
}

// HasRole reports whether profileID holds one of roles in orgID. A missing
// membership is a plain false.
func (s *Store) HasRole(ctx context.Context, profileID, orgID int64, roles []Role) (_ bool, err error) {
	ctx, span := observability.StartSpan(ctx, "memberships.has_role",
		attribute.Int64("authz.organization_id", orgID))
	defer func() { observability.EndSpan(span, err) }()

	m, err := s.GetMembership(ctx, profileID, orgID)
	if err != nil || m == nil {
		return false, err
	}
	for _, role := range roles {
		if m.Role == role {
			return true, nil
		}
	}
	return false, nil
}

// UpdateRole changes the role of a non main admin membership
func (s *Store) UpdateRole(ctx context.Context, profileID, orgID int64, role Role) error {
	defer s.metrics.ObserveStore(storeName, "update_role", time.Now())

	if role == RoleMainAdmin {
		return authz.BadRequest("%s can only be assigned at organization creation", RoleMainAdmin)
	}

	query := `
		UPDATE organization_memberships SET role = $1
		WHERE profile_id = $2 AND organization_id = $3 AND role <> $4
	`
	result, err := s.db.ExecContext(ctx, query, role, profileID, orgID, RoleMainAdmin)
	if err != nil {
		return fmt.Errorf("failed to update member role: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return authz.NotFound("profile %d has no changeable membership in organization %d", profileID, orgID)
	}

	return nil
}

// DeleteMembership removes a non main admin membership
func (s *Store) DeleteMembership(ctx context.Context, profileID, orgID int64) error {
	defer s.metrics.ObserveStore(storeName, "delete_membership", time.Now())

	query := `
		DELETE FROM organization_memberships
		WHERE profile_id = $1 AND organization_id = $2 AND role <> $3
	`
	result, err := s.db.ExecContext(ctx, query, profileID, orgID, RoleMainAdmin)
	if err != nil {
		return fmt.Errorf("failed to remove member: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return authz.NotFound("profile %d has no removable membership in organization %d", profileID, orgID)
	}

	return nil
}

// ListMembers lists the members of an organization, optionally filtered by role
func (s *Store) ListMembers(ctx context.Context, orgID int64, role *Role) ([]*Member, error) {
	defer s.metrics.ObserveStore(storeName, "list_members", time.Now())

	query := `
		SELECT m.id, m.profile_id, m.organization_id, m.role, m.created_at, p.name
		FROM organization_memberships m
		JOIN profiles p ON p.id = m.profile_id
		WHERE m.organization_id = $1
	`
	args := []any{orgID}
	if role != nil {
		query += " AND m.role = $2"
		args = append(args, *role)
	}
	query += " ORDER BY m.created_at ASC, m.id ASC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list members: %w", err)
	}
	defer rows.Close()

	members := []*Member{}
	for rows.Next() {
		member := &Member{}
		if err := rows.Scan(
			&member.ID, &member.ProfileID, &member.OrganizationID, &member.Role, &member.CreatedAt,
			&member.ProfileName,
		); err != nil {
			return nil, fmt.Errorf("failed to scan member: %w", err)
		}
		member.CreatedAt = member.CreatedAt.UTC()
		members = append(members, member)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list members: %w", err)
	}

	return members, nil
}
