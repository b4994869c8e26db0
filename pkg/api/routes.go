package api

import (
	"net/http"

	"github.com/platinummonkey/tenantgate/pkg/middleware"
	"github.com/platinummonkey/tenantgate/pkg/orgs"
)

// setupRoutes registers every route with its requirement
func (s *Server) setupRoutes() {
	e := s.enforcer
	authenticated := middleware.Unrestricted
	anyMember := middleware.RequireAnyMember()
	admins := middleware.RequireRoles(orgs.AdminRoles()...)
	mainAdmin := middleware.RequireRoles(orgs.RoleMainAdmin)
	// grant lists are scoped by the organizationId path parameter
	anyMemberOfGrantOrg := anyMember.WithOrgIDParam("organizationId")

	// Organization routes
	s.router.Handle("/organizations", s.mutation(e.Protect(authenticated, s.orgs.CreateOrganization))).Methods(http.MethodPost)
	s.router.Handle("/organizations/my-organizations", e.Protect(authenticated, s.orgs.MyOrganizations)).Methods(http.MethodGet)
	s.router.Handle("/organizations/my-admin-organizations", e.Protect(authenticated, s.orgs.MyAdminOrganizations)).Methods(http.MethodGet)
	s.router.Handle("/organizations/{id}", e.Protect(anyMember, s.orgs.GetOrganization)).Methods(http.MethodGet)
	s.router.Handle("/organizations/{id}/members", e.Protect(admins, s.orgs.ListMembers)).Methods(http.MethodGet)
	s.router.Handle("/organizations/{id}/members", s.mutation(e.Protect(admins, s.orgs.AddMember))).Methods(http.MethodPost)
	s.router.Handle("/organizations/{id}/members/{role}", e.Protect(admins, s.orgs.ListMembersByRole)).Methods(http.MethodGet)
	s.router.Handle("/organizations/{id}/members/{profileId}/role", s.mutation(e.Protect(mainAdmin, s.orgs.UpdateMemberRole))).Methods(http.MethodPut)
	s.router.Handle("/organizations/{id}/members/{profileId}", s.mutation(e.Protect(mainAdmin, s.orgs.RemoveMember))).Methods(http.MethodDelete)

	// Permission routes. Grant, revoke and update check permission:manage in
	// the service because update only learns the organization from the grant.
	s.router.Handle("/permissions/organizations/{organizationId}", s.mutation(e.Protect(authenticated, s.perms.Grant))).Methods(http.MethodPost)
	s.router.Handle("/permissions/organizations/{organizationId}", e.Protect(anyMemberOfGrantOrg, s.perms.ListByOrganization)).Methods(http.MethodGet)
	s.router.Handle("/permissions/organizations/{organizationId}/history", e.Protect(anyMemberOfGrantOrg, s.perms.History)).Methods(http.MethodGet)
	s.router.Handle("/permissions/organizations/{organizationId}/profiles/{profileId}", s.mutation(e.Protect(authenticated, s.perms.Revoke))).Methods(http.MethodDelete)
	s.router.Handle("/permissions/profiles/{profileId}", e.Protect(authenticated, s.perms.ListByProfile)).Methods(http.MethodGet)
	s.router.Handle("/permissions/profiles/{profileId}/organizations/{organizationId}/active", e.Protect(authenticated, s.perms.ListActive)).Methods(http.MethodGet)
	s.router.Handle("/permissions/check", e.Protect(authenticated, s.perms.Check)).Methods(http.MethodGet)
	s.router.Handle("/permissions/expired", e.Protect(authenticated, s.perms.Expired)).Methods(http.MethodGet)
	s.router.Handle("/permissions/{id}", s.mutation(e.Protect(authenticated, s.perms.Update))).Methods(http.MethodPut)

	// Decision routes
	s.router.HandleFunc("/authorize/permissions", s.authorizePermissions).Methods(http.MethodPost)
	s.router.HandleFunc("/authorize/organizations/{id}/roles", s.authorizeRoles).Methods(http.MethodPost)
}
