package rbac

import (
	"bytes"
	"encoding/json"
	"strings"
	"time"

	"github.com/platinummonkey/tenantgate/pkg/authz"
)

// Permission is a fine-grained capability granted to a profile within one organization
type Permission string

const (
	PermissionCreateCourse      Permission = "course:create"
	PermissionUpdateCourse      Permission = "course:update"
	PermissionDeleteCourse      Permission = "course:delete"
	PermissionViewCourseDetails Permission = "course:view"
	PermissionManageEnrollments Permission = "course:enrollment:manage"
	PermissionManageAttendance  Permission = "course:attendance:manage"
	PermissionAssignInstructor  Permission = "course:instructor:assign"
	PermissionManageSessions    Permission = "course:session:manage"
	PermissionManageClasses     Permission = "course:class:manage"

	// PermissionManagePermissions is required to grant, revoke or update any
	// grant in an organization
	PermissionManagePermissions Permission = "permission:manage"
)

// AllPermissions returns every permission kind
func AllPermissions() []Permission {
	return []Permission{
		PermissionCreateCourse,
		PermissionUpdateCourse,
		PermissionDeleteCourse,
		PermissionViewCourseDetails,
		PermissionManageEnrollments,
		PermissionManageAttendance,
		PermissionAssignInstructor,
		PermissionManageSessions,
		PermissionManageClasses,
		PermissionManagePermissions,
	}
}

// Valid reports whether p is a known permission kind
func (p Permission) Valid() bool {
	for _, known := range AllPermissions() {
		if p == known {
			return true
		}
	}
	return false
}

// ParsePermission converts a wire value into a Permission
func ParsePermission(s string) (Permission, error) {
	p := Permission(strings.TrimSpace(s))
	if !p.Valid() {
		return "", authz.BadRequest("invalid permission %q", s)
	}
	return p, nil
}

// Grant is one stored permission record. A nil ExpiresAt never expires.
type Grant struct {
	ID                 int64      `json:"id"`
	OrganizationID     int64      `json:"organizationId"`
	ProfileID          int64      `json:"profileId"`
	Permission         Permission `json:"permission"`
	GrantedByProfileID int64      `json:"grantedByProfileId"`
	CreatedAt          time.Time  `json:"createdAt"`
	ExpiresAt          *time.Time `json:"expiresAt,omitempty"`
}

// ActiveAt reports whether the grant is in force at t
func (g *Grant) ActiveAt(t time.Time) bool {
	return g.ExpiresAt == nil || g.ExpiresAt.After(t)
}

// NamedRef is an id with its display name
type NamedRef struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// GrantView is a grant enriched with organization, profile and grantor names
type GrantView struct {
	Grant
	Organization NamedRef `json:"organization"`
	Profile      NamedRef `json:"profile"`
	GrantedBy    NamedRef `json:"grantedBy"`
}

// HistoryEntry is a grant view annotated with whether it was active when listed
type HistoryEntry struct {
	GrantView
	IsActive bool `json:"isActive"`
}

// GrantRequest is the body of POST /permissions/organizations/{organizationId}
type GrantRequest struct {
	ProfileID  int64      `json:"profileId"`
	Permission Permission `json:"permission"`
	ExpiresAt  *time.Time `json:"expiresAt,omitempty"`
}

// Validate checks the target profile and permission kind
func (r *GrantRequest) Validate() error {
	if r.ProfileID <= 0 {
		return authz.BadRequest("profileId is required")
	}
	if !r.Permission.Valid() {
		return authz.BadRequest("invalid permission %q", r.Permission)
	}
	return nil
}

// OptionalTime distinguishes an omitted timestamp from an explicit null
type OptionalTime struct {
	Set   bool
	Value *time.Time
}

// UnmarshalJSON marks the field as set; null clears the value
func (o *OptionalTime) UnmarshalJSON(data []byte) error {
	o.Set = true
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		o.Value = nil
		return nil
	}
	var t time.Time
	if err := json.Unmarshal(data, &t); err != nil {
		return authz.BadRequest("expiresAt must be an RFC 3339 timestamp")
	}
	t = t.UTC()
	o.Value = &t
	return nil
}

// UpdateRequest is the body of PUT /permissions/{id}. Only the expiry can change;
// an omitted expiresAt leaves it untouched and null removes it.
type UpdateRequest struct {
	ExpiresAt OptionalTime `json:"expiresAt"`
}

// CheckResult is the answer of GET /permissions/check
type CheckResult struct {
	HasPermission  bool       `json:"hasPermission"`
	Permission     Permission `json:"permission"`
	OrganizationID int64      `json:"organizationId"`
	ProfileID      int64      `json:"profileId"`
}
