package audit

import (
	"time"
)

// EventType represents the category of audit event
type EventType string

const (
	// Grant events
	EventTypePermissionGrant  EventType = "authz.permission_grant"
	EventTypePermissionRevoke EventType = "authz.permission_revoke"
	EventTypePermissionUpdate EventType = "authz.permission_update"

	// Decision events
	EventTypeAccessDenied EventType = "authz.access_denied"

	// Organization events
	EventTypeOrgCreate        EventType = "admin.org_create"
	EventTypeOrgMemberAdd     EventType = "admin.org_member_add"
	EventTypeOrgMemberRemove  EventType = "admin.org_member_remove"
	EventTypeOrgMemberRoleSet EventType = "admin.org_member_role_change"
)

// EventStatus represents the outcome of an event
type EventStatus string

const (
	EventStatusSuccess EventStatus = "success"
	EventStatusFailure EventStatus = "failure"
	EventStatusDenied  EventStatus = "denied"
)

// ResourceType represents the type of resource the event concerns
type ResourceType string

const (
	ResourceTypeOrganization ResourceType = "organization"
	ResourceTypeMembership   ResourceType = "membership"
	ResourceTypePermission   ResourceType = "permission"
)

// Event is a single audit log entry
type Event struct {
	Timestamp time.Time   `json:"timestamp"`
	EventType EventType   `json:"eventType"`
	Status    EventStatus `json:"status"`

	// Actor
	ProfileID *int64 `json:"profileId,omitempty"`
	UserID    int64  `json:"userId,omitempty"`

	// Scope and target
	OrganizationID  *int64       `json:"organizationId,omitempty"`
	TargetProfileID *int64       `json:"targetProfileId,omitempty"`
	ResourceType    ResourceType `json:"resourceType,omitempty"`
	ResourceID      string       `json:"resourceId,omitempty"`

	RequestID string                 `json:"requestId,omitempty"`
	Message   string                 `json:"message,omitempty"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Changes   *ChangeDetails         `json:"changes,omitempty"`
}

// ChangeDetails tracks before/after values for updates
type ChangeDetails struct {
	Before map[string]interface{} `json:"before,omitempty"`
	After  map[string]interface{} `json:"after,omitempty"`
}

// WithOrganization sets the organization the event is scoped to
func (e *Event) WithOrganization(orgID int64) *Event {
	e.OrganizationID = &orgID
	return e
}

// WithTarget sets the profile the event acted upon
func (e *Event) WithTarget(profileID int64) *Event {
	e.TargetProfileID = &profileID
	return e
}

// WithResource sets the resource type and id
func (e *Event) WithResource(resourceType ResourceType, id string) *Event {
	e.ResourceType = resourceType
	e.ResourceID = id
	return e
}

// WithMessage sets the human readable message
func (e *Event) WithMessage(message string) *Event {
	e.Message = message
	return e
}

// WithMetadata adds one metadata entry
func (e *Event) WithMetadata(key string, value interface{}) *Event {
	if e.Metadata == nil {
		e.Metadata = make(map[string]interface{})
	}
	e.Metadata[key] = value
	return e
}
