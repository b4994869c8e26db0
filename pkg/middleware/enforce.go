package middleware

import (
	"context"
	"net/http"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/platinummonkey/tenantgate/pkg/audit"
	"github.com/platinummonkey/tenantgate/pkg/auth"
	"github.com/platinummonkey/tenantgate/pkg/authz"
	"github.com/platinummonkey/tenantgate/pkg/contextkeys"
	"github.com/platinummonkey/tenantgate/pkg/httputil"
	"github.com/platinummonkey/tenantgate/pkg/observability"
	"github.com/platinummonkey/tenantgate/pkg/orgs"
	"github.com/platinummonkey/tenantgate/pkg/rbac"
)

// RoleChecker answers structural role questions
type RoleChecker interface {
	CheckStructuralRole(ctx context.Context, profileID, orgID int64, roles []orgs.Role) (bool, error)
}

// PermissionChecker enforces that every listed permission is held
type PermissionChecker interface {
	RequireAll(ctx context.Context, profileID, orgID int64, perms []rbac.Permission) error
}

// Decision describes one evaluation. Allowed is only true when no error was returned.
type Decision struct {
	Allowed        bool   `json:"allowed"`
	OrganizationID int64  `json:"organizationId"`
	ProfileID      int64  `json:"profileId"`
	Requirement    string `json:"requirement"`
}

// Enforcer runs the authorization pipeline in front of protected handlers:
// identity, requirement, profile, organization scope, then the check itself.
// Any failed step ends the request.
type Enforcer struct {
	roles   RoleChecker
	perms   PermissionChecker
	audit   audit.Logger
	metrics *observability.Metrics
	now     func() time.Time
}

// EnforcerOption configures an Enforcer
type EnforcerOption func(*Enforcer)

// WithDenialAudit sends every denial to logger
func WithDenialAudit(logger audit.Logger) EnforcerOption {
	return func(e *Enforcer) { e.audit = logger }
}

// WithDecisionMetrics records decision outcomes and latency
func WithDecisionMetrics(m *observability.Metrics) EnforcerOption {
	return func(e *Enforcer) { e.metrics = m }
}

// NewEnforcer creates an Enforcer
func NewEnforcer(roles RoleChecker, perms PermissionChecker, opts ...EnforcerOption) *Enforcer {
	e := &Enforcer{
		roles: roles,
		perms: perms,
		audit: audit.NoOpLogger{},
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Protect returns a handler that evaluates req before calling next. The
// resolved organization id is available to next via contextkeys.
func (e *Enforcer) Protect(req Requirement, next http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		decision, err := e.Evaluate(r, req)
		if err != nil {
			httputil.WriteServiceError(w, r, err)
			return
		}

		ctx := r.Context()
		if decision.OrganizationID != 0 {
			ctx = contextkeys.WithOrganizationID(ctx, decision.OrganizationID)
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// Evaluate decides whether the request satisfies req. Denials are authz
// errors; store failures are returned unchanged.
func (e *Enforcer) Evaluate(r *http.Request, req Requirement) (decision *Decision, err error) {
	start := e.now()
	name := requirementName(req)

	ctx, span := observability.StartSpan(r.Context(), "authz.evaluate",
		attribute.String("authz.requirement", name))
	defer func() {
		outcome := observability.OutcomeAllow
		switch {
		case err == nil:
		case authz.KindOf(err) == authz.KindInternal:
			outcome = observability.OutcomeError
		default:
			outcome = observability.OutcomeDeny
		}
		span.SetAttributes(attribute.String("authz.outcome", outcome))
		observability.EndSpan(span, err)
		e.metrics.ObserveDecision(name, outcome, e.now().Sub(start))
	}()

	decision, err = e.evaluate(ctx, r, req)
	if err != nil && authz.KindOf(err) != authz.KindInternal {
		e.recordDenial(ctx, decision, req, err)
	}
	return decision, err
}

func (e *Enforcer) evaluate(ctx context.Context, r *http.Request, req Requirement) (*Decision, error) {
	decision := &Decision{Requirement: "none"}

	identity := auth.IdentityFromContext(ctx)
	if identity == nil {
		return decision, authz.Unauthorized("authentication required")
	}
	if isEmpty(req) {
		decision.Allowed = true
		decision.ProfileID = identity.Profile()
		return decision, nil
	}
	decision.Requirement = req.String()

	if !identity.HasProfile() {
		return decision, authz.Unauthorized("profile required")
	}
	decision.ProfileID = identity.Profile()

	switch req := req.(type) {
	case StructuralRequirement:
		orgID, ok := StructuralScope(req.Param()).Extract(r)
		if !ok {
			return decision, authz.BadRequest("organization id required in path parameter %q", req.Param())
		}
		decision.OrganizationID = orgID

		ok, err := e.roles.CheckStructuralRole(ctx, decision.ProfileID, orgID, req.Roles)
		if err != nil {
			return decision, err
		}
		if !ok {
			return decision, authz.Forbidden("requires one of roles %v in organization %d", req.Roles, orgID)
		}

	case PermissionRequirement:
		orgID, ok := PermissionScope().Extract(r)
		if !ok {
			return decision, authz.BadRequest("organization id required")
		}
		decision.OrganizationID = orgID

		if err := e.perms.RequireAll(ctx, decision.ProfileID, orgID, req.Kinds); err != nil {
			return decision, err
		}

	default:
		return decision, authz.Forbidden("unsupported requirement %s", req)
	}

	decision.Allowed = true
	return decision, nil
}

func (e *Enforcer) recordDenial(ctx context.Context, decision *Decision, req Requirement, err error) {
	reason := authz.MessageOf(err)
	observability.FromContext(ctx).WithFields(map[string]interface{}{
		"organization_id": decision.OrganizationID,
		"profile_id":      decision.ProfileID,
		"requirement":     requirementName(req),
		"reason":          reason,
		"kind":            authz.KindOf(err).String(),
	}).Info("authorization denied")

	event := audit.NewEvent(ctx, audit.EventTypeAccessDenied, audit.EventStatusDenied).
		WithMessage(reason).
		WithMetadata("requirement", decision.Requirement)
	if decision.OrganizationID != 0 {
		event.WithOrganization(decision.OrganizationID)
	}
	if auditErr := e.audit.Log(ctx, event); auditErr != nil {
		observability.FromContext(ctx).WithError(auditErr).Warn("failed to write audit event")
	}
}
