package orgs

import (
	"context"
	"strconv"

	"github.com/platinummonkey/tenantgate/pkg/audit"
	"github.com/platinummonkey/tenantgate/pkg/authz"
	"github.com/platinummonkey/tenantgate/pkg/observability"
)

// Service applies the structural rules for organization and membership changes
type Service struct {
	store   *Store
	hooks   []CreationHook
	audit   audit.Logger
	metrics *observability.Metrics
}

// ServiceOption configures a Service
type ServiceOption func(*Service)

// WithCreationHook adds a hook run inside every organization creation transaction
func WithCreationHook(hook CreationHook) ServiceOption {
	return func(s *Service) { s.hooks = append(s.hooks, hook) }
}

// WithAuditLogger sets the audit sink for membership changes
func WithAuditLogger(logger audit.Logger) ServiceOption {
	return func(s *Service) { s.audit = logger }
}

// WithMetrics records membership mutation outcomes
func WithMetrics(m *observability.Metrics) ServiceOption {
	return func(s *Service) { s.metrics = m }
}

// NewService creates a Service over store
func NewService(store *Store, opts ...ServiceOption) *Service {
	s := &Service{store: store, audit: audit.NoOpLogger{}}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CheckStructuralRole reports whether profileID holds any of roles in orgID
func (s *Service) CheckStructuralRole(ctx context.Context, profileID, orgID int64, roles []Role) (bool, error) {
	return s.store.HasRole(ctx, profileID, orgID, roles)
}

// CreateOrganization creates an organization with creatorProfileID as its main admin
func (s *Service) CreateOrganization(ctx context.Context, creatorProfileID int64, req CreateOrganizationRequest) (*Organization, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	org, err := s.store.CreateOrganization(ctx, req.Name, req.Type, creatorProfileID, s.hooks...)
	s.metrics.ObserveMembershipMutation("create_organization", err)
	if err != nil {
		return nil, err
	}

	s.record(ctx, audit.NewEvent(ctx, audit.EventTypeOrgCreate, audit.EventStatusSuccess).
		WithOrganization(org.ID).
		WithTarget(creatorProfileID).
		WithResource(audit.ResourceTypeOrganization, strconv.FormatInt(org.ID, 10)).
		WithMessage("organization created"))

	observability.FromContext(ctx).WithFields(map[string]interface{}{
		"organization_id": org.ID,
		"profile_id":      creatorProfileID,
	}).Info("organization created")

	return org, nil
}

// GetOrganization returns one organization
func (s *Service) GetOrganization(ctx context.Context, orgID int64) (*Organization, error) {
	return s.store.GetOrganization(ctx, orgID)
}

// ListMembers lists every member of an organization
func (s *Service) ListMembers(ctx context.Context, orgID int64) ([]*Member, error) {
	return s.store.ListMembers(ctx, orgID, nil)
}

// ListMembersByRole lists the members of an organization holding role
func (s *Service) ListMembersByRole(ctx context.Context, orgID int64, role Role) ([]*Member, error) {
	if !role.Valid() {
		return nil, authz.BadRequest("invalid role %q", role)
	}
	return s.store.ListMembers(ctx, orgID, &role)
}

// ListOrganizationsForProfile lists the organizations profileID belongs to
func (s *Service) ListOrganizationsForProfile(ctx context.Context, profileID int64) ([]*ProfileOrganization, error) {
	return s.store.ListOrganizationsForProfile(ctx, profileID)
}

// ListOrganizationsByMainAdmin lists the organizations profileID created
func (s *Service) ListOrganizationsByMainAdmin(ctx context.Context, profileID int64) ([]*Organization, error) {
	return s.store.ListOrganizationsByMainAdmin(ctx, profileID)
}

// AddMember adds a profile to orgID. The requester must be MAIN_ADMIN or SUB_ADMIN there.
func (s *Service) AddMember(ctx context.Context, orgID, requesterProfileID int64, req AddMemberRequest) (*Membership, error) {
	m, err := s.addMember(ctx, orgID, requesterProfileID, req)
	s.metrics.ObserveMembershipMutation("add_member", err)
	if err != nil {
		return nil, err
	}

	s.record(ctx, audit.NewEvent(ctx, audit.EventTypeOrgMemberAdd, audit.EventStatusSuccess).
		WithOrganization(orgID).
		WithTarget(req.ProfileID).
		WithResource(audit.ResourceTypeMembership, strconv.FormatInt(m.ID, 10)).
		WithMetadata("role", string(m.Role)).
		WithMessage("member added"))

	return m, nil
}

func (s *Service) addMember(ctx context.Context, orgID, requesterProfileID int64, req AddMemberRequest) (*Membership, error) {
	if err := s.requireRequesterRole(ctx, orgID, requesterProfileID, AdminRoles(), "adding members"); err != nil {
		return nil, err
	}
	if req.Role == RoleMainAdmin {
		return nil, authz.BadRequest("%s cannot be assigned", RoleMainAdmin)
	}
	if !req.Role.Valid() {
		return nil, authz.BadRequest("invalid role %q", req.Role)
	}
	if req.ProfileID <= 0 {
		return nil, authz.BadRequest("profileId is required")
	}

	existing, err := s.store.GetMembership(ctx, req.ProfileID, orgID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, authz.Conflict("profile %d is already a member of organization %d", req.ProfileID, orgID)
	}

	return s.store.CreateMembership(ctx, req.ProfileID, orgID, req.Role)
}

// UpdateMemberRole changes the role of targetProfileID. Only the main admin may
// do this, and neither the main admin's row nor the MAIN_ADMIN role can be involved.
func (s *Service) UpdateMemberRole(ctx context.Context, orgID, targetProfileID int64, newRole Role, requesterProfileID int64) (*Membership, error) {
	before, err := s.updateMemberRole(ctx, orgID, targetProfileID, newRole, requesterProfileID)
	s.metrics.ObserveMembershipMutation("update_role", err)
	if err != nil {
		return nil, err
	}

	after := *before
	after.Role = newRole

	event := audit.NewEvent(ctx, audit.EventTypeOrgMemberRoleSet, audit.EventStatusSuccess).
		WithOrganization(orgID).
		WithTarget(targetProfileID).
		WithResource(audit.ResourceTypeMembership, strconv.FormatInt(before.ID, 10)).
		WithMessage("member role changed")
	event.Changes = &audit.ChangeDetails{
		Before: map[string]interface{}{"role": string(before.Role)},
		After:  map[string]interface{}{"role": string(newRole)},
	}
	s.record(ctx, event)

	return &after, nil
}

func (s *Service) updateMemberRole(ctx context.Context, orgID, targetProfileID int64, newRole Role, requesterProfileID int64) (*Membership, error) {
	if err := s.requireRequesterRole(ctx, orgID, requesterProfileID, []Role{RoleMainAdmin}, "changing member roles"); err != nil {
		return nil, err
	}
	if newRole == RoleMainAdmin {
		return nil, authz.BadRequest("%s cannot be assigned", RoleMainAdmin)
	}
	if !newRole.Valid() {
		return nil, authz.BadRequest("invalid role %q", newRole)
	}

	target, err := s.store.GetMembership(ctx, targetProfileID, orgID)
	if err != nil {
		return nil, err
	}
	if target == nil {
		return nil, authz.NotFound("profile %d is not a member of organization %d", targetProfileID, orgID)
	}
	if target.Role == RoleMainAdmin {
		return nil, authz.BadRequest("the %s role cannot be changed", RoleMainAdmin)
	}

	if err := s.store.UpdateRole(ctx, targetProfileID, orgID, newRole); err != nil {
		return nil, err
	}
	return target, nil
}

// RemoveMember deletes the membership of targetProfileID. Only the main admin
// may do this and the main admin cannot be removed.
func (s *Service) RemoveMember(ctx context.Context, orgID, targetProfileID, requesterProfileID int64) error {
	removed, err := s.removeMember(ctx, orgID, targetProfileID, requesterProfileID)
	s.metrics.ObserveMembershipMutation("remove_member", err)
	if err != nil {
		return err
	}

	s.record(ctx, audit.NewEvent(ctx, audit.EventTypeOrgMemberRemove, audit.EventStatusSuccess).
		WithOrganization(orgID).
		WithTarget(targetProfileID).
		WithResource(audit.ResourceTypeMembership, strconv.FormatInt(removed.ID, 10)).
		WithMetadata("role", string(removed.Role)).
		WithMessage("member removed"))

	return nil
}

func (s *Service) removeMember(ctx context.Context, orgID, targetProfileID, requesterProfileID int64) (*Membership, error) {
	if err := s.requireRequesterRole(ctx, orgID, requesterProfileID, []Role{RoleMainAdmin}, "removing members"); err != nil {
		return nil, err
	}

	target, err := s.store.GetMembership(ctx, targetProfileID, orgID)
	if err != nil {
		return nil, err
	}
	if target == nil {
		return nil, authz.NotFound("profile %d is not a member of organization %d", targetProfileID, orgID)
	}
	if target.Role == RoleMainAdmin {
		return nil, authz.BadRequest("the %s cannot be removed", RoleMainAdmin)
	}

	if err := s.store.DeleteMembership(ctx, targetProfileID, orgID); err != nil {
		return nil, err
	}
	return target, nil
}

// requireRequesterRole fails with Forbidden unless the requester holds one of
// roles in orgID. A missing organization is reported the same way.
func (s *Service) requireRequesterRole(ctx context.Context, orgID, requesterProfileID int64, roles []Role, action string) error {
	ok, err := s.store.HasRole(ctx, requesterProfileID, orgID, roles)
	if err != nil {
		return err
	}
	if !ok {
		return authz.Forbidden("%s in organization %d requires one of %v", action, orgID, roles)
	}
	return nil
}

func (s *Service) record(ctx context.Context, event *audit.Event) {
	if err := s.audit.Log(ctx, event); err != nil {
		observability.FromContext(ctx).WithError(err).Warn("failed to write audit event")
	}
}
