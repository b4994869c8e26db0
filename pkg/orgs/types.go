package orgs

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/platinummonkey/tenantgate/pkg/authz"
)

// Role is a structural role held by a profile within one organization
type Role string

const (
	RoleMainAdmin Role = "MAIN_ADMIN"
	RoleSubAdmin  Role = "SUB_ADMIN"
	RoleStudent   Role = "STUDENT"
	RoleParent    Role = "PARENT"
)

// AllRoles returns every structural role
func AllRoles() []Role {
	return []Role{RoleMainAdmin, RoleSubAdmin, RoleStudent, RoleParent}
}

// AdminRoles returns the roles allowed to manage members
func AdminRoles() []Role {
	return []Role{RoleMainAdmin, RoleSubAdmin}
}

// Valid reports whether r is one of the four structural roles
func (r Role) Valid() bool {
	switch r {
	case RoleMainAdmin, RoleSubAdmin, RoleStudent, RoleParent:
		return true
	}
	return false
}

// ParseRole converts a wire value into a Role
func ParseRole(s string) (Role, error) {
	role := Role(strings.TrimSpace(s))
	if !role.Valid() {
		return "", authz.BadRequest("invalid role %q", s)
	}
	return role, nil
}

// Organization is a tenant. MainAdminProfileID never changes after creation.
type Organization struct {
	ID                 int64     `json:"id"`
	Name               string    `json:"name"`
	Type               string    `json:"type"`
	MainAdminProfileID int64     `json:"mainAdminProfileId"`
	CreatedAt          time.Time `json:"createdAt"`
}

// Membership binds one profile to one organization with a structural role
type Membership struct {
	ID             int64     `json:"id"`
	ProfileID      int64     `json:"profileId"`
	OrganizationID int64     `json:"organizationId"`
	Role           Role      `json:"role"`
	CreatedAt      time.Time `json:"createdAt"`
}

// Member is a membership enriched with the profile display name
type Member struct {
	Membership
	ProfileName string `json:"profileName"`
}

// ProfileOrganization is an organization as seen by one of its members
type ProfileOrganization struct {
	Organization
	Role Role `json:"role"`
}

// CreationHook runs inside the organization creation transaction after the
// main admin membership is written. Returning an error aborts the creation.
type CreationHook func(ctx context.Context, tx *sql.Tx, org *Organization) error

// CreateOrganizationRequest is the body of POST /organizations
type CreateOrganizationRequest struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// Validate checks required fields and column limits
func (r *CreateOrganizationRequest) Validate() error {
	r.Name = strings.TrimSpace(r.Name)
	r.Type = strings.TrimSpace(r.Type)
	switch {
	case r.Name == "":
		return authz.BadRequest("name is required")
	case len(r.Name) > 100:
		return authz.BadRequest("name must be at most 100 characters")
	case r.Type == "":
		return authz.BadRequest("type is required")
	case len(r.Type) > 50:
		return authz.BadRequest("type must be at most 50 characters")
	}
	return nil
}

// AddMemberRequest is the body of POST /organizations/{id}/members
type AddMemberRequest struct {
	ProfileID int64 `json:"profileId"`
	Role      Role  `json:"role"`
}

// UpdateRoleRequest is the body of PUT /organizations/{id}/members/{profileId}/role
type UpdateRoleRequest struct {
	Role Role `json:"role"`
}
