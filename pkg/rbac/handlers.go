package rbac

import (
	"net/http"

	"github.com/platinummonkey/tenantgate/pkg/auth"
	"github.com/platinummonkey/tenantgate/pkg/httputil"
)

// Path and query parameters used by the permission routes
const (
	OrganizationIDParam = "organizationId"
	ProfileIDParam      = "profileId"
	GrantIDParam        = "id"
	PermissionParam     = "permission"
)

// Handlers exposes the grant service over HTTP
type Handlers struct {
	service *Service
}

// NewHandlers creates permission handlers
func NewHandlers(service *Service) *Handlers {
	return &Handlers{service: service}
}

// Grant handles POST /permissions/organizations/{organizationId}
func (h *Handlers) Grant(w http.ResponseWriter, r *http.Request) {
	grantorID, err := auth.RequireProfile(r.Context())
	if err != nil {
		httputil.WriteServiceError(w, r, err)
		return
	}
	orgID, err := httputil.ParsePathInt64(r, OrganizationIDParam)
	if err != nil {
		httputil.WriteServiceError(w, r, err)
		return
	}

	var req GrantRequest
	if err := httputil.ParseJSON(r, &req); err != nil {
		httputil.WriteServiceError(w, r, err)
		return
	}

	view, err := h.service.Grant(r.Context(), orgID, grantorID, req)
	if err != nil {
		httputil.WriteServiceError(w, r, err)
		return
	}

	httputil.WriteCreated(w, view)
}

// Revoke handles DELETE /permissions/organizations/{organizationId}/profiles/{profileId}?permission=
func (h *Handlers) Revoke(w http.ResponseWriter, r *http.Request) {
	revokerID, err := auth.RequireProfile(r.Context())
	if err != nil {
		httputil.WriteServiceError(w, r, err)
		return
	}
	orgID, err := httputil.ParsePathInt64(r, OrganizationIDParam)
	if err != nil {
		httputil.WriteServiceError(w, r, err)
		return
	}
	profileID, err := httputil.ParsePathInt64(r, ProfileIDParam)
	if err != nil {
		httputil.WriteServiceError(w, r, err)
		return
	}
	raw, err := httputil.RequireQueryString(r, PermissionParam)
	if err != nil {
		httputil.WriteServiceError(w, r, err)
		return
	}
	perm, err := ParsePermission(raw)
	if err != nil {
		httputil.WriteServiceError(w, r, err)
		return
	}

	if err := h.service.Revoke(r.Context(), orgID, profileID, perm, revokerID); err != nil {
		httputil.WriteServiceError(w, r, err)
		return
	}

	httputil.WriteNoContent(w)
}

// Update handles PUT /permissions/{id}
func (h *Handlers) Update(w http.ResponseWriter, r *http.Request) {
	updaterID, err := auth.RequireProfile(r.Context())
	if err != nil {
		httputil.WriteServiceError(w, r, err)
		return
	}
	id, err := httputil.ParsePathInt64(r, GrantIDParam)
	if err != nil {
		httputil.WriteServiceError(w, r, err)
		return
	}

	var req UpdateRequest
	if err := httputil.ParseJSON(r, &req); err != nil {
		httputil.WriteServiceError(w, r, err)
		return
	}

	view, err := h.service.Update(r.Context(), id, req, updaterID)
	if err != nil {
		httputil.WriteServiceError(w, r, err)
		return
	}

	httputil.WriteSuccess(w, view)
}

// ListByOrganization handles GET /permissions/organizations/{organizationId}
func (h *Handlers) ListByOrganization(w http.ResponseWriter, r *http.Request) {
	orgID, err := httputil.ParsePathInt64(r, OrganizationIDParam)
	if err != nil {
		httputil.WriteServiceError(w, r, err)
		return
	}

	views, err := h.service.ListByOrganization(r.Context(), orgID)
	if err != nil {
		httputil.WriteServiceError(w, r, err)
		return
	}

	httputil.WriteSuccess(w, views)
}

// History handles GET /permissions/organizations/{organizationId}/history?profileId=
func (h *Handlers) History(w http.ResponseWriter, r *http.Request) {
	orgID, err := httputil.ParsePathInt64(r, OrganizationIDParam)
	if err != nil {
		httputil.WriteServiceError(w, r, err)
		return
	}
	profileID, ok, err := httputil.ParseQueryInt64(r, ProfileIDParam)
	if err != nil {
		httputil.WriteServiceError(w, r, err)
		return
	}
	var filter *int64
	if ok {
		filter = &profileID
	}

	entries, err := h.service.ListHistory(r.Context(), orgID, filter)
	if err != nil {
		httputil.WriteServiceError(w, r, err)
		return
	}

	httputil.WriteSuccess(w, entries)
}

// ListByProfile handles GET /permissions/profiles/{profileId}
func (h *Handlers) ListByProfile(w http.ResponseWriter, r *http.Request) {
	if _, err := auth.RequireProfile(r.Context()); err != nil {
		httputil.WriteServiceError(w, r, err)
		return
	}
	profileID, err := httputil.ParsePathInt64(r, ProfileIDParam)
	if err != nil {
		httputil.WriteServiceError(w, r, err)
		return
	}

	views, err := h.service.ListByProfile(r.Context(), profileID)
	if err != nil {
		httputil.WriteServiceError(w, r, err)
		return
	}

	httputil.WriteSuccess(w, views)
}

// ListActive handles GET /permissions/profiles/{profileId}/organizations/{organizationId}/active
func (h *Handlers) ListActive(w http.ResponseWriter, r *http.Request) {
	if _, err := auth.RequireProfile(r.Context()); err != nil {
		httputil.WriteServiceError(w, r, err)
		return
	}
	profileID, err := httputil.ParsePathInt64(r, ProfileIDParam)
	if err != nil {
		httputil.WriteServiceError(w, r, err)
		return
	}
	orgID, err := httputil.ParsePathInt64(r, OrganizationIDParam)
	if err != nil {
		httputil.WriteServiceError(w, r, err)
		return
	}

	views, err := h.service.ListActive(r.Context(), profileID, orgID)
	if err != nil {
		httputil.WriteServiceError(w, r, err)
		return
	}

	httputil.WriteSuccess(w, views)
}

// Check handles GET /permissions/check?profileId=&organizationId=&permission=
func (h *Handlers) Check(w http.ResponseWriter, r *http.Request) {
	if _, err := auth.RequireProfile(r.Context()); err != nil {
		httputil.WriteServiceError(w, r, err)
		return
	}
	profileID, err := httputil.RequireQueryInt64(r, ProfileIDParam)
	if err != nil {
		httputil.WriteServiceError(w, r, err)
		return
	}
	orgID, err := httputil.RequireQueryInt64(r, OrganizationIDParam)
	if err != nil {
		httputil.WriteServiceError(w, r, err)
		return
	}
	raw, err := httputil.RequireQueryString(r, PermissionParam)
	if err != nil {
		httputil.WriteServiceError(w, r, err)
		return
	}
	perm, err := ParsePermission(raw)
	if err != nil {
		httputil.WriteServiceError(w, r, err)
		return
	}

	result, err := h.service.Check(r.Context(), profileID, orgID, perm)
	if err != nil {
		httputil.WriteServiceError(w, r, err)
		return
	}

	httputil.WriteSuccess(w, result)
}

// Expired handles GET /permissions/expired
func (h *Handlers) Expired(w http.ResponseWriter, r *http.Request) {
	if _, err := auth.RequireProfile(r.Context()); err != nil {
		httputil.WriteServiceError(w, r, err)
		return
	}

	views, err := h.service.ListExpired(r.Context())
	if err != nil {
		httputil.WriteServiceError(w, r, err)
		return
	}

	httputil.WriteSuccess(w, views)
}
