package orgs

import (
	"net/http"

	"github.com/platinummonkey/tenantgate/pkg/auth"
	"github.com/platinummonkey/tenantgate/pkg/httputil"
)

// Path parameters used by the organization routes
const (
	OrganizationIDParam = "id"
	ProfileIDParam      = "profileId"
	RoleParam           = "role"
)

// Handlers exposes the organization service over HTTP. Structural requirements
// are enforced by the router before these run.
type Handlers struct {
	service *Service
}

// NewHandlers creates organization handlers
func NewHandlers(service *Service) *Handlers {
	return &Handlers{service: service}
}

// CreateOrganization handles POST /organizations
func (h *Handlers) CreateOrganization(w http.ResponseWriter, r *http.Request) {
	profileID, err := auth.RequireProfile(r.Context())
	if err != nil {
		httputil.WriteServiceError(w, r, err)
		return
	}

	var req CreateOrganizationRequest
	if err := httputil.ParseJSON(r, &req); err != nil {
		httputil.WriteServiceError(w, r, err)
		return
	}

	org, err := h.service.CreateOrganization(r.Context(), profileID, req)
	if err != nil {
		httputil.WriteServiceError(w, r, err)
		return
	}

	httputil.WriteCreated(w, org)
}

// MyOrganizations handles GET /organizations/my-organizations
func (h *Handlers) MyOrganizations(w http.ResponseWriter, r *http.Request) {
	profileID, err := auth.RequireProfile(r.Context())
	if err != nil {
		httputil.WriteServiceError(w, r, err)
		return
	}

	orgs, err := h.service.ListOrganizationsForProfile(r.Context(), profileID)
	if err != nil {
		httputil.WriteServiceError(w, r, err)
		return
	}

	httputil.WriteSuccess(w, orgs)
}

// MyAdminOrganizations handles GET /organizations/my-admin-organizations
func (h *Handlers) MyAdminOrganizations(w http.ResponseWriter, r *http.Request) {
	profileID, err := auth.RequireProfile(r.Context())
	if err != nil {
		httputil.WriteServiceError(w, r, err)
		return
	}

	orgs, err := h.service.ListOrganizationsByMainAdmin(r.Context(), profileID)
	if err != nil {
		httputil.WriteServiceError(w, r, err)
		return
	}

	httputil.WriteSuccess(w, orgs)
}

// GetOrganization handles GET /organizations/{id}
func (h *Handlers) GetOrganization(w http.ResponseWriter, r *http.Request) {
	orgID, err := httputil.ParsePathInt64(r, OrganizationIDParam)
	if err != nil {
		httputil.WriteServiceError(w, r, err)
		return
	}

	org, err := h.service.GetOrganization(r.Context(), orgID)
	if err != nil {
		httputil.WriteServiceError(w, r, err)
		return
	}

	httputil.WriteSuccess(w, org)
}

// ListMembers handles GET /organizations/{id}/members
func (h *Handlers) ListMembers(w http.ResponseWriter, r *http.Request) {
	orgID, err := httputil.ParsePathInt64(r, OrganizationIDParam)
	if err != nil {
		httputil.WriteServiceError(w, r, err)
		return
	}

	members, err := h.service.ListMembers(r.Context(), orgID)
	if err != nil {
		httputil.WriteServiceError(w, r, err)
		return
	}

	httputil.WriteSuccess(w, members)
}

// ListMembersByRole handles GET /organizations/{id}/members/{role}
func (h *Handlers) ListMembersByRole(w http.ResponseWriter, r *http.Request) {
	orgID, err := httputil.ParsePathInt64(r, OrganizationIDParam)
	if err != nil {
		httputil.WriteServiceError(w, r, err)
		return
	}
	raw, err := httputil.ParsePathString(r, RoleParam)
	if err != nil {
		httputil.WriteServiceError(w, r, err)
		return
	}
	role, err := ParseRole(raw)
	if err != nil {
		httputil.WriteServiceError(w, r, err)
		return
	}

	members, err := h.service.ListMembersByRole(r.Context(), orgID, role)
	if err != nil {
		httputil.WriteServiceError(w, r, err)
		return
	}

	httputil.WriteSuccess(w, members)
}

// AddMember handles POST /organizations/{id}/members
func (h *Handlers) AddMember(w http.ResponseWriter, r *http.Request) {
	requesterID, err := auth.RequireProfile(r.Context())
	if err != nil {
		httputil.WriteServiceError(w, r, err)
		return
	}
	orgID, err := httputil.ParsePathInt64(r, OrganizationIDParam)
	if err != nil {
		httputil.WriteServiceError(w, r, err)
		return
	}

	var req AddMemberRequest
	if err := httputil.ParseJSON(r, &req); err != nil {
		httputil.WriteServiceError(w, r, err)
		return
	}

	membership, err := h.service.AddMember(r.Context(), orgID, requesterID, req)
	if err != nil {
		httputil.WriteServiceError(w, r, err)
		return
	}

	httputil.WriteCreated(w, membership)
}

// UpdateMemberRole handles PUT /organizations/{id}/members/{profileId}/role
func (h *Handlers) UpdateMemberRole(w http.ResponseWriter, r *http.Request) {
	requesterID, err := auth.RequireProfile(r.Context())
	if err != nil {
		httputil.WriteServiceError(w, r, err)
		return
	}
	orgID, err := httputil.ParsePathInt64(r, OrganizationIDParam)
	if err != nil {
		httputil.WriteServiceError(w, r, err)
		return
	}
	targetID, err := httputil.ParsePathInt64(r, ProfileIDParam)
	if err != nil {
		httputil.WriteServiceError(w, r, err)
		return
	}

	var req UpdateRoleRequest
	if err := httputil.ParseJSON(r, &req); err != nil {
		httputil.WriteServiceError(w, r, err)
		return
	}

	membership, err := h.service.UpdateMemberRole(r.Context(), orgID, targetID, req.Role, requesterID)
	if err != nil {
		httputil.WriteServiceError(w, r, err)
		return
	}

	httputil.WriteSuccess(w, membership)
}

// RemoveMember handles DELETE /organizations/{id}/members/{profileId}
func (h *Handlers) RemoveMember(w http.ResponseWriter, r *http.Request) {
	requesterID, err := auth.RequireProfile(r.Context())
	if err != nil {
		httputil.WriteServiceError(w, r, err)
		return
	}
	orgID, err := httputil.ParsePathInt64(r, OrganizationIDParam)
	if err != nil {
		httputil.WriteServiceError(w, r, err)
		return
	}
	targetID, err := httputil.ParsePathInt64(r, ProfileIDParam)
	if err != nil {
		httputil.WriteServiceError(w, r, err)
		return
	}

	if err := h.service.RemoveMember(r.Context(), orgID, targetID, requesterID); err != nil {
		httputil.WriteServiceError(w, r, err)
		return
	}

	httputil.WriteNoContent(w)
}
