// Package orgs manages organizations, their memberships and the structural
// roles those memberships carry.
//
// # Roles
//
// Every membership holds exactly one of MAIN_ADMIN, SUB_ADMIN, STUDENT or
// PARENT. The MAIN_ADMIN membership is written once, in the same transaction
// that creates the organization, and a partial unique index keeps it single.
// No membership operation can assign, change or remove it.
//
// # Structural checks
//
//	ok, err := service.CheckStructuralRole(ctx, profileID, orgID, orgs.AdminRoles())
//
// A profile without a membership is a plain false, never an error.
//
// # Membership changes
//
//   - AddMember: requester is MAIN_ADMIN or SUB_ADMIN; the new role is not MAIN_ADMIN.
//   - UpdateMemberRole: requester is MAIN_ADMIN; neither the new nor the current role is MAIN_ADMIN.
//   - RemoveMember: requester is MAIN_ADMIN; the target is not MAIN_ADMIN.
//
// A requester outside the organization gets Forbidden, so callers cannot probe
// which organizations exist.
//
// # Creation hooks
//
// CreationHook functions run inside the creation transaction. The rbac package
// uses one to seed the creator's permission management grant.
package orgs
