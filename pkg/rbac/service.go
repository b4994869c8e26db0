package rbac

import (
	"context"
	"database/sql"
	"strconv"
	"time"

	"github.com/platinummonkey/tenantgate/pkg/audit"
	"github.com/platinummonkey/tenantgate/pkg/authz"
	"github.com/platinummonkey/tenantgate/pkg/observability"
	"github.com/platinummonkey/tenantgate/pkg/orgs"
)

// Service manages permission grants. Every mutation requires the caller to
// hold an active MANAGE_PERMISSIONS grant in the organization it touches.
type Service struct {
	store     *Store
	checker   *Checker
	directory *Directory
	audit     audit.Logger
	metrics   *observability.Metrics
}

// ServiceOption configures a Service
type ServiceOption func(*Service)

// WithAuditLogger sets the audit sink for grant changes
func WithAuditLogger(logger audit.Logger) ServiceOption {
	return func(s *Service) { s.audit = logger }
}

// WithMetrics records grant mutation outcomes
func WithMetrics(m *observability.Metrics) ServiceOption {
	return func(s *Service) { s.metrics = m }
}

// NewService creates a Service over store, enriching results through directory
func NewService(store *Store, directory *Directory, opts ...ServiceOption) *Service {
	s := &Service{
		store:     store,
		checker:   NewChecker(store),
		directory: directory,
		audit:     audit.NoOpLogger{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Checker returns the checker backed by this service's store
func (s *Service) Checker() *Checker {
	return s.checker
}

// Grant gives req.Permission to req.ProfileID in orgID on behalf of grantorID
func (s *Service) Grant(ctx context.Context, orgID, grantorID int64, req GrantRequest) (*GrantView, error) {
	g, err := s.grant(ctx, orgID, grantorID, req)
	s.metrics.ObserveGrantMutation("grant", err)
	if err != nil {
		return nil, err
	}

	event := audit.NewEvent(ctx, audit.EventTypePermissionGrant, audit.EventStatusSuccess).
		WithOrganization(orgID).
		WithTarget(g.ProfileID).
		WithResource(audit.ResourceTypePermission, strconv.FormatInt(g.ID, 10)).
		WithMetadata("permission", string(g.Permission)).
		WithMessage("permission granted")
	if g.ExpiresAt != nil {
		event.WithMetadata("expires_at", g.ExpiresAt.Format(time.RFC3339))
	}
	s.record(ctx, event)

	return s.directory.view(ctx, g)
}

func (s *Service) grant(ctx context.Context, orgID, grantorID int64, req GrantRequest) (*Grant, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if err := s.requireManager(ctx, grantorID, orgID); err != nil {
		return nil, err
	}

	exists, err := s.store.HasActive(ctx, req.ProfileID, orgID, req.Permission)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, authz.Conflict("permission %s is already granted to profile %d in organization %d",
			req.Permission, req.ProfileID, orgID)
	}

	// A lapsed row for the same tuple still trips the unique constraint and
	// comes back as Conflict; it has to be revoked before re-granting.
	g := &Grant{
		OrganizationID:     orgID,
		ProfileID:          req.ProfileID,
		Permission:         req.Permission,
		GrantedByProfileID: grantorID,
		ExpiresAt:          req.ExpiresAt,
	}
	if err := s.store.InsertGrant(ctx, s.store.db, g); err != nil {
		return nil, err
	}
	return g, nil
}

// Revoke deletes the grant of perm held by profileID in orgID. Revoking a
// grant that does not exist succeeds without effect.
func (s *Service) Revoke(ctx context.Context, orgID, profileID int64, perm Permission, revokerID int64) error {
	removed, err := s.revoke(ctx, orgID, profileID, perm, revokerID)
	s.metrics.ObserveGrantMutation("revoke", err)
	if err != nil {
		return err
	}

	s.record(ctx, audit.NewEvent(ctx, audit.EventTypePermissionRevoke, audit.EventStatusSuccess).
		WithOrganization(orgID).
		WithTarget(profileID).
		WithResource(audit.ResourceTypePermission, string(perm)).
		WithMetadata("permission", string(perm)).
		WithMetadata("removed", removed).
		WithMessage("permission revoked"))

	if removed == 0 {
		observability.FromContext(ctx).WithFields(map[string]interface{}{
			"organization_id": orgID,
			"profile_id":      profileID,
			"permission":      string(perm),
		}).Debug("revoke matched no grant")
	}
	return nil
}

func (s *Service) revoke(ctx context.Context, orgID, profileID int64, perm Permission, revokerID int64) (int64, error) {
	if !perm.Valid() {
		return 0, authz.BadRequest("invalid permission %q", perm)
	}
	if err := s.requireManager(ctx, revokerID, orgID); err != nil {
		return 0, err
	}
	return s.store.DeleteGrants(ctx, orgID, profileID, perm)
}

// Update changes the expiry of grant id. The caller must manage permissions
// in the grant's own organization.
func (s *Service) Update(ctx context.Context, id int64, req UpdateRequest, updaterID int64) (*GrantView, error) {
	before, after, err := s.update(ctx, id, req, updaterID)
	s.metrics.ObserveGrantMutation("update", err)
	if err != nil {
		return nil, err
	}

	event := audit.NewEvent(ctx, audit.EventTypePermissionUpdate, audit.EventStatusSuccess).
		WithOrganization(after.OrganizationID).
		WithTarget(after.ProfileID).
		WithResource(audit.ResourceTypePermission, strconv.FormatInt(after.ID, 10)).
		WithMetadata("permission", string(after.Permission)).
		WithMessage("permission expiry updated")
	event.Changes = &audit.ChangeDetails{
		Before: map[string]interface{}{"expiresAt": before.ExpiresAt},
		After:  map[string]interface{}{"expiresAt": after.ExpiresAt},
	}
	s.record(ctx, event)

	return s.directory.view(ctx, after)
}

func (s *Service) update(ctx context.Context, id int64, req UpdateRequest, updaterID int64) (*Grant, *Grant, error) {
	before, err := s.store.GetGrant(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	if err := s.requireManager(ctx, updaterID, before.OrganizationID); err != nil {
		return nil, nil, err
	}
	if !req.ExpiresAt.Set {
		return before, before, nil
	}

	after, err := s.store.UpdateExpiry(ctx, id, req.ExpiresAt.Value)
	if err != nil {
		return nil, nil, err
	}
	return before, after, nil
}

// Check answers whether profileID holds perm in orgID right now
func (s *Service) Check(ctx context.Context, profileID, orgID int64, perm Permission) (*CheckResult, error) {
	if !perm.Valid() {
		return nil, authz.BadRequest("invalid permission %q", perm)
	}
	ok, err := s.checker.CheckPermission(ctx, profileID, orgID, perm)
	if err != nil {
		return nil, err
	}
	return &CheckResult{
		HasPermission:  ok,
		Permission:     perm,
		OrganizationID: orgID,
		ProfileID:      profileID,
	}, nil
}

// ListByOrganization lists every grant in orgID
func (s *Service) ListByOrganization(ctx context.Context, orgID int64) ([]*GrantView, error) {
	grants, err := s.store.ListByOrganization(ctx, orgID)
	if err != nil {
		return nil, err
	}
	return s.directory.views(ctx, grants)
}

// ListByProfile lists every grant held by profileID
func (s *Service) ListByProfile(ctx context.Context, profileID int64) ([]*GrantView, error) {
	grants, err := s.store.ListByProfile(ctx, profileID)
	if err != nil {
		return nil, err
	}
	return s.directory.views(ctx, grants)
}

// ListActive lists the grants profileID currently holds in orgID
func (s *Service) ListActive(ctx context.Context, profileID, orgID int64) ([]*GrantView, error) {
	grants, err := s.store.ListActive(ctx, profileID, orgID)
	if err != nil {
		return nil, err
	}
	return s.directory.views(ctx, grants)
}

// ListExpired lists grants whose expiry has passed
func (s *Service) ListExpired(ctx context.Context) ([]*GrantView, error) {
	grants, err := s.store.ListExpired(ctx)
	if err != nil {
		return nil, err
	}
	return s.directory.views(ctx, grants)
}

// ListHistory lists all grants of orgID, optionally narrowed to profileID,
// each flagged with whether it is active now
func (s *Service) ListHistory(ctx context.Context, orgID int64, profileID *int64) ([]*HistoryEntry, error) {
	grants, err := s.store.ListHistory(ctx, orgID, profileID)
	if err != nil {
		return nil, err
	}
	views, err := s.directory.views(ctx, grants)
	if err != nil {
		return nil, err
	}

	now := s.store.Now()
	entries := make([]*HistoryEntry, len(views))
	for i, v := range views {
		entries[i] = &HistoryEntry{GrantView: *v, IsActive: v.ActiveAt(now)}
	}
	return entries, nil
}

// SeedManagerGrant returns an organization creation hook that gives the
// creator MANAGE_PERMISSIONS in the new organization, granted by themselves
func (s *Service) SeedManagerGrant() orgs.CreationHook {
	return func(ctx context.Context, tx *sql.Tx, org *orgs.Organization) error {
		g := &Grant{
			OrganizationID:     org.ID,
			ProfileID:          org.MainAdminProfileID,
			Permission:         PermissionManagePermissions,
			GrantedByProfileID: org.MainAdminProfileID,
		}
		err := s.store.InsertGrant(ctx, tx, g)
		s.metrics.ObserveGrantMutation("seed", err)
		return err
	}
}

func (s *Service) requireManager(ctx context.Context, profileID, orgID int64) error {
	ok, err := s.checker.CheckPermission(ctx, profileID, orgID, PermissionManagePermissions)
	if err != nil {
		return err
	}
	if !ok {
		return authz.Forbidden("managing permissions in organization %d requires %s", orgID, PermissionManagePermissions)
	}
	return nil
}

func (s *Service) record(ctx context.Context, event *audit.Event) {
	if err := s.audit.Log(ctx, event); err != nil {
		observability.FromContext(ctx).WithError(err).Warn("failed to write audit event")
	}
}
