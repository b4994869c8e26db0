package middleware

import (
	"fmt"

	"github.com/platinummonkey/tenantgate/pkg/orgs"
	"github.com/platinummonkey/tenantgate/pkg/rbac"
)

// DefaultOrgIDParam is the path parameter a structural requirement reads the
// organization id from unless told otherwise
const DefaultOrgIDParam = "id"

// Requirement is what a route demands of its caller before the handler runs.
// It is either a StructuralRequirement or a PermissionRequirement.
type Requirement interface {
	// Empty reports whether the requirement checks nothing
	Empty() bool
	// Name is a short label used for metrics
	Name() string
	String() string

	requirement()
}

// StructuralRequirement passes when the caller holds any of Roles in the
// organization named by the OrgIDParam path parameter
type StructuralRequirement struct {
	Roles      []orgs.Role
	OrgIDParam string
}

// RequireRoles declares a structural requirement read from the default path parameter
func RequireRoles(roles ...orgs.Role) StructuralRequirement {
	return StructuralRequirement{Roles: roles, OrgIDParam: DefaultOrgIDParam}
}

// RequireAnyMember declares that the caller must belong to the organization in any role
func RequireAnyMember() StructuralRequirement {
	return RequireRoles(orgs.AllRoles()...)
}

// WithOrgIDParam returns a copy of r reading the organization id from param
func (r StructuralRequirement) WithOrgIDParam(param string) StructuralRequirement {
	r.OrgIDParam = param
	return r
}

// Param returns the path parameter name, falling back to the default
func (r StructuralRequirement) Param() string {
	if r.OrgIDParam == "" {
		return DefaultOrgIDParam
	}
	return r.OrgIDParam
}

// Empty implements Requirement
func (r StructuralRequirement) Empty() bool { return len(r.Roles) == 0 }

// Name implements Requirement
func (StructuralRequirement) Name() string { return "roles" }

func (r StructuralRequirement) String() string {
	return fmt.Sprintf("roles%v@%s", r.Roles, r.Param())
}

func (StructuralRequirement) requirement() {}

// PermissionRequirement passes when the caller holds every one of Kinds in the
// organization resolved from the request
type PermissionRequirement struct {
	Kinds []rbac.Permission
}

// RequirePermissions declares a fine-grained requirement. All kinds must be held.
func RequirePermissions(kinds ...rbac.Permission) PermissionRequirement {
	return PermissionRequirement{Kinds: kinds}
}

// Empty implements Requirement
func (r PermissionRequirement) Empty() bool { return len(r.Kinds) == 0 }

// Name implements Requirement
func (PermissionRequirement) Name() string { return "permissions" }

func (r PermissionRequirement) String() string {
	return fmt.Sprintf("permissions%v", r.Kinds)
}

func (PermissionRequirement) requirement() {}

// Unrestricted declares no requirement. Only an identity is needed.
var Unrestricted Requirement = PermissionRequirement{}

func isEmpty(req Requirement) bool {
	return req == nil || req.Empty()
}

func requirementName(req Requirement) string {
	if isEmpty(req) {
		return "none"
	}
	return req.Name()
}
