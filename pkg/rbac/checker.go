package rbac

import (
	"context"
	"strings"

	"github.com/platinummonkey/tenantgate/pkg/authz"
)

// GrantReader answers whether an active grant exists for a tuple
type GrantReader interface {
	HasActive(ctx context.Context, profileID, orgID int64, perm Permission) (bool, error)
}

// Checker evaluates fine-grained permissions against the grant store. It
// never caches; every call re-reads current state.
type Checker struct {
	grants GrantReader
}

// NewChecker creates a Checker over grants
func NewChecker(grants GrantReader) *Checker {
	return &Checker{grants: grants}
}

// CheckPermission reports whether profileID holds an active grant of perm in orgID
func (c *Checker) CheckPermission(ctx context.Context, profileID, orgID int64, perm Permission) (bool, error) {
	return c.grants.HasActive(ctx, profileID, orgID, perm)
}

// RequireAll fails with Forbidden naming the first permission in perms that
// profileID does not hold. Store errors are returned unchanged.
func (c *Checker) RequireAll(ctx context.Context, profileID, orgID int64, perms []Permission) error {
	for _, perm := range perms {
		ok, err := c.grants.HasActive(ctx, profileID, orgID, perm)
		if err != nil {
			return err
		}
		if !ok {
			return authz.Forbidden("missing permission %s in organization %d", perm, orgID)
		}
	}
	return nil
}

// RequireAny succeeds at the first permission in perms that profileID holds
func (c *Checker) RequireAny(ctx context.Context, profileID, orgID int64, perms []Permission) error {
	for _, perm := range perms {
		ok, err := c.grants.HasActive(ctx, profileID, orgID, perm)
		if err != nil {
			return err
		}
		if ok {
			return nil
		}
	}
	return authz.Forbidden("requires one of [%s] in organization %d", joinPermissions(perms), orgID)
}

func joinPermissions(perms []Permission) string {
	s := make([]string, len(perms))
	for i, p := range perms {
		s[i] = string(p)
	}
	return strings.Join(s, ", ")
}
