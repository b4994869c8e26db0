// Package audit records who changed authorization state and who was denied.
//
// Services build events with NewEvent, which picks up the caller identity,
// request ID and resolved organization from the context, and hand them to a
// Logger:
//
//	event := audit.NewEvent(ctx, audit.EventTypePermissionGrant, audit.EventStatusSuccess).
//		WithOrganization(orgID).
//		WithTarget(profileID).
//		WithResource(audit.ResourceTypePermission, strconv.FormatInt(grant.ID, 10))
//	_ = auditLogger.Log(ctx, event)
//
// LogrusLogger writes JSON lines to any writer; NewFileLogger appends them to
// a file. MultiLogger fans out to several sinks.
package audit
