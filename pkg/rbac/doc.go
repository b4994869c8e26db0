// Package rbac holds fine-grained permission grants and the checks built on them.
//
// # Grants
//
// A grant gives one profile one permission kind inside one organization:
//
//	course:create              course:update              course:delete
//	course:view                course:enrollment:manage   course:attendance:manage
//	course:instructor:assign   course:session:manage      course:class:manage
//	permission:manage
//
// A grant may carry an expiry. It is active while the expiry is absent or in
// the future, evaluated against the store clock on every query. Expired rows
// are kept and show up in history and in the expired listing.
//
// # Checking
//
//	checker := rbac.NewChecker(store)
//	ok, err := checker.CheckPermission(ctx, profileID, orgID, rbac.PermissionCreateCourse)
//
//	// all of, naming the first missing permission on denial
//	err = checker.RequireAll(ctx, profileID, orgID, []rbac.Permission{
//		rbac.PermissionCreateCourse,
//		rbac.PermissionManageEnrollments,
//	})
//
// # Managing grants
//
// Grant, Revoke and Update on Service require the caller to hold an active
// permission:manage grant in the organization being changed. For Update the
// organization is the one the target grant belongs to. Revoking a grant that
// does not exist is a successful no-op.
//
// Granting a tuple whose previous grant has lapsed fails with Conflict until
// the old row is revoked.
//
// Service.SeedManagerGrant returns an organization creation hook that gives the
// creator permission:manage in the new organization.
package rbac
