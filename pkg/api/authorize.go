package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/platinummonkey/tenantgate/pkg/auth"
	"github.com/platinummonkey/tenantgate/pkg/authz"
	"github.com/platinummonkey/tenantgate/pkg/httputil"
	"github.com/platinummonkey/tenantgate/pkg/middleware"
	"github.com/platinummonkey/tenantgate/pkg/orgs"
	"github.com/platinummonkey/tenantgate/pkg/rbac"
)

// AuthorizePermissionsRequest is the body of POST /authorize/permissions
type AuthorizePermissionsRequest struct {
	// OrganizationID is read by the permission scope extractors, not by the handler
	OrganizationID json.RawMessage `json:"organizationId"`
	Permissions    []string        `json:"permissions"`
}

// AuthorizeRolesRequest is the body of POST /authorize/organizations/{id}/roles
type AuthorizeRolesRequest struct {
	Roles []string `json:"roles"`
}

// authorizePermissions answers whether the caller holds every listed
// permission in the organization named by the body
func (s *Server) authorizePermissions(w http.ResponseWriter, r *http.Request) {
	if !requireIdentity(w, r) {
		return
	}

	var req AuthorizePermissionsRequest
	if err := decodeAndRestore(r, &req); err != nil {
		httputil.WriteServiceError(w, r, err)
		return
	}
	if len(req.Permissions) == 0 {
		httputil.WriteServiceError(w, r, authz.BadRequest("permissions must not be empty"))
		return
	}

	kinds := make([]rbac.Permission, 0, len(req.Permissions))
	for _, p := range req.Permissions {
		kind, err := rbac.ParsePermission(p)
		if err != nil {
			httputil.WriteServiceError(w, r, err)
			return
		}
		kinds = append(kinds, kind)
	}

	s.writeDecision(w, r, middleware.RequirePermissions(kinds...))
}

// authorizeRoles answers whether the caller holds any of the listed roles in
// the organization named by the path
func (s *Server) authorizeRoles(w http.ResponseWriter, r *http.Request) {
	if !requireIdentity(w, r) {
		return
	}

	var req AuthorizeRolesRequest
	if err := httputil.ParseJSON(r, &req); err != nil {
		httputil.WriteServiceError(w, r, err)
		return
	}
	if len(req.Roles) == 0 {
		httputil.WriteServiceError(w, r, authz.BadRequest("roles must not be empty"))
		return
	}

	roles := make([]orgs.Role, 0, len(req.Roles))
	for _, name := range req.Roles {
		role, err := orgs.ParseRole(name)
		if err != nil {
			httputil.WriteServiceError(w, r, err)
			return
		}
		roles = append(roles, role)
	}

	s.writeDecision(w, r, middleware.RequireRoles(roles...))
}

func (s *Server) writeDecision(w http.ResponseWriter, r *http.Request, req middleware.Requirement) {
	decision, err := s.enforcer.Evaluate(r, req)
	if err != nil {
		httputil.WriteServiceError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, decision)
}

// requireIdentity rejects anonymous callers before the body is looked at
func requireIdentity(w http.ResponseWriter, r *http.Request) bool {
	if auth.IdentityFromContext(r.Context()) == nil {
		httputil.WriteServiceError(w, r, authz.Unauthorized("authentication required"))
		return false
	}
	return true
}

// decodeAndRestore parses the JSON body into dest and leaves the body readable
// for the scope extractors
func decodeAndRestore(r *http.Request, dest interface{}) error {
	raw, err := io.ReadAll(r.Body)
	if err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			return err
		}
		return authz.Wrap(authz.KindBadRequest, err, "failed to read request body")
	}

	r.Body = io.NopCloser(bytes.NewReader(raw))
	err = httputil.ParseJSON(r, dest)
	r.Body = io.NopCloser(bytes.NewReader(raw))
	return err
}
