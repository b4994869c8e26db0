package rbac

import (
	"context"
	"database/sql"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/tenantgate/pkg/audit"
	"github.com/platinummonkey/tenantgate/pkg/authz"
	"github.com/platinummonkey/tenantgate/pkg/observability"
	"github.com/platinummonkey/tenantgate/pkg/orgs"
	"github.com/platinummonkey/tenantgate/pkg/storage/storagetest"
)

type recordingAudit struct {
	mu     sync.Mutex
	events []*audit.Event
}

func (r *recordingAudit) Log(_ context.Context, event *audit.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

func (r *recordingAudit) Close() error { return nil }

func (r *recordingAudit) last() *audit.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.events) == 0 {
		return nil
	}
	return r.events[len(r.events)-1]
}

type fixture struct {
	service *Service
	store   *Store
	db      *sql.DB
	audit   *recordingAudit
	metrics *observability.Metrics
	orgID   int64
	// manager created the organization and holds permission:manage there
	manager int64
	teacher int64
	student int64
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := storagetest.NewSQLite(t)
	rec := &recordingAudit{}
	metrics := observability.NewMetrics(prometheus.NewRegistry())
	store := NewStore(db, WithClock(clock))
	f := &fixture{
		store:   store,
		db:      db,
		audit:   rec,
		metrics: metrics,
		service: NewService(store, NewDirectory(db, DefaultDirectoryConfig(), metrics),
			WithAuditLogger(rec), WithMetrics(metrics)),
		manager: storagetest.InsertProfile(t, db, "Manager"),
		teacher: storagetest.InsertProfile(t, db, "Teacher"),
		student: storagetest.InsertProfile(t, db, "Student"),
	}

	orgService := orgs.NewService(orgs.NewStore(db, orgs.WithClock(clock)),
		orgs.WithCreationHook(f.service.SeedManagerGrant()))
	org, err := orgService.CreateOrganization(context.Background(), f.manager,
		orgs.CreateOrganizationRequest{Name: "Hilltop", Type: "ACADEMY"})
	require.NoError(t, err)
	f.orgID = org.ID
	return f
}

func (f *fixture) has(t *testing.T, profileID int64, perm Permission) bool {
	t.Helper()
	ok, err := f.service.Checker().CheckPermission(context.Background(), profileID, f.orgID, perm)
	require.NoError(t, err)
	return ok
}

func TestSeedManagerGrant(t *testing.T) {
	f := newFixture(t)

	assert.True(t, f.has(t, f.manager, PermissionManagePermissions))

	grants, err := f.store.ListByOrganization(context.Background(), f.orgID)
	require.NoError(t, err)
	require.Len(t, grants, 1)
	assert.Equal(t, f.manager, grants[0].GrantedByProfileID)
	assert.Nil(t, grants[0].ExpiresAt)
}

func TestGrantByManager(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	view, err := f.service.Grant(ctx, f.orgID, f.manager, GrantRequest{
		ProfileID:  f.teacher,
		Permission: PermissionCreateCourse,
	})
	require.NoError(t, err)
	assert.True(t, f.has(t, f.teacher, PermissionCreateCourse))

	assert.Equal(t, NamedRef{ID: f.orgID, Name: "Hilltop"}, view.Organization)
	assert.Equal(t, NamedRef{ID: f.teacher, Name: "Teacher"}, view.Profile)
	assert.Equal(t, NamedRef{ID: f.manager, Name: "Manager"}, view.GrantedBy)
	assert.Nil(t, view.ExpiresAt)

	event := f.audit.last()
	require.NotNil(t, event)
	assert.Equal(t, audit.EventTypePermissionGrant, event.EventType)
	assert.Equal(t, "course:create", event.Metadata["permission"])
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.GrantMutationsTotal.WithLabelValues("grant", "success")))
}

func TestGrantAlreadyExpiredIsInactive(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	past := fixedNow.Add(-time.Second)
	_, err := f.service.Grant(ctx, f.orgID, f.manager, GrantRequest{
		ProfileID:  f.teacher,
		Permission: PermissionCreateCourse,
		ExpiresAt:  &past,
	})
	require.NoError(t, err)
	assert.False(t, f.has(t, f.teacher, PermissionCreateCourse))

	expired, err := f.service.ListExpired(ctx)
	require.NoError(t, err)
	require.Len(t, expired, 1)
	assert.Equal(t, f.teacher, expired[0].ProfileID)
	assert.Equal(t, PermissionCreateCourse, expired[0].Permission)
}

func TestGrantWithoutManagePermissionIsForbidden(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.service.Grant(ctx, f.orgID, f.teacher, GrantRequest{
		ProfileID:  f.student,
		Permission: PermissionCreateCourse,
	})
	assert.ErrorIs(t, err, authz.ErrForbidden)

	grants, err := f.store.ListByOrganization(ctx, f.orgID)
	require.NoError(t, err)
	assert.Len(t, grants, 1, "only the seeded manager grant")
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.GrantMutationsTotal.WithLabelValues("grant", "failure")))
}

func TestGrantRejectsInvalidRequests(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name string
		req  GrantRequest
	}{
		{"missing profile", GrantRequest{Permission: PermissionCreateCourse}},
		{"unknown permission", GrantRequest{ProfileID: f.teacher, Permission: "course:teleport"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.service.Grant(context.Background(), f.orgID, f.manager, tt.req)
			assert.ErrorIs(t, err, authz.ErrBadRequest)
		})
	}
}

func TestDuplicateActiveGrantConflicts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	req := GrantRequest{ProfileID: f.teacher, Permission: PermissionManageClasses}

	_, err := f.service.Grant(ctx, f.orgID, f.manager, req)
	require.NoError(t, err)

	_, err = f.service.Grant(ctx, f.orgID, f.manager, req)
	assert.ErrorIs(t, err, authz.ErrConflict)

	active, err := f.service.ListActive(ctx, f.teacher, f.orgID)
	require.NoError(t, err)
	assert.Len(t, active, 1)
}

// Re-granting a tuple whose earlier grant has lapsed is rejected until the
// lapsed row is revoked.
func TestRegrantAfterLapseRequiresRevoke(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	past := fixedNow.Add(-time.Hour)
	_, err := f.service.Grant(ctx, f.orgID, f.manager, GrantRequest{
		ProfileID: f.teacher, Permission: PermissionManageAttendance, ExpiresAt: &past,
	})
	require.NoError(t, err)

	req := GrantRequest{ProfileID: f.teacher, Permission: PermissionManageAttendance}
	_, err = f.service.Grant(ctx, f.orgID, f.manager, req)
	assert.ErrorIs(t, err, authz.ErrConflict)

	require.NoError(t, f.service.Revoke(ctx, f.orgID, f.teacher, PermissionManageAttendance, f.manager))
	_, err = f.service.Grant(ctx, f.orgID, f.manager, req)
	require.NoError(t, err)
	assert.True(t, f.has(t, f.teacher, PermissionManageAttendance))
}

func TestGrantRevokeRegrant(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	req := GrantRequest{ProfileID: f.teacher, Permission: PermissionAssignInstructor}

	_, err := f.service.Grant(ctx, f.orgID, f.manager, req)
	require.NoError(t, err)
	require.NoError(t, f.service.Revoke(ctx, f.orgID, f.teacher, PermissionAssignInstructor, f.manager))
	assert.False(t, f.has(t, f.teacher, PermissionAssignInstructor))

	_, err = f.service.Grant(ctx, f.orgID, f.manager, req)
	require.NoError(t, err)
	assert.True(t, f.has(t, f.teacher, PermissionAssignInstructor))
}

func TestRevokeIsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.service.Revoke(ctx, f.orgID, f.teacher, PermissionDeleteCourse, f.manager))
	require.NoError(t, f.service.Revoke(ctx, f.orgID, f.teacher, PermissionDeleteCourse, f.manager))
	assert.False(t, f.has(t, f.teacher, PermissionDeleteCourse))

	event := f.audit.last()
	require.NotNil(t, event)
	assert.Equal(t, audit.EventTypePermissionRevoke, event.EventType)
	assert.Equal(t, int64(0), event.Metadata["removed"])
}

func TestRevokeWithoutManagePermissionIsForbidden(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.service.Grant(ctx, f.orgID, f.manager, GrantRequest{ProfileID: f.teacher, Permission: PermissionCreateCourse})
	require.NoError(t, err)

	err = f.service.Revoke(ctx, f.orgID, f.teacher, PermissionCreateCourse, f.student)
	assert.ErrorIs(t, err, authz.ErrForbidden)
	assert.True(t, f.has(t, f.teacher, PermissionCreateCourse))

	err = f.service.Revoke(ctx, f.orgID, f.teacher, "nope", f.manager)
	assert.ErrorIs(t, err, authz.ErrBadRequest)
}

func TestUpdateExpiry(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	view, err := f.service.Grant(ctx, f.orgID, f.manager, GrantRequest{ProfileID: f.teacher, Permission: PermissionUpdateCourse})
	require.NoError(t, err)

	past := fixedNow.Add(-time.Minute)
	updated, err := f.service.Update(ctx, view.ID, UpdateRequest{ExpiresAt: OptionalTime{Set: true, Value: &past}}, f.manager)
	require.NoError(t, err)
	require.NotNil(t, updated.ExpiresAt)
	assert.False(t, f.has(t, f.teacher, PermissionUpdateCourse))

	event := f.audit.last()
	require.NotNil(t, event)
	assert.Equal(t, audit.EventTypePermissionUpdate, event.EventType)
	require.NotNil(t, event.Changes)

	unchanged, err := f.service.Update(ctx, view.ID, UpdateRequest{}, f.manager)
	require.NoError(t, err)
	require.NotNil(t, unchanged.ExpiresAt, "omitted expiresAt leaves the expiry alone")

	cleared, err := f.service.Update(ctx, view.ID, UpdateRequest{ExpiresAt: OptionalTime{Set: true}}, f.manager)
	require.NoError(t, err)
	assert.Nil(t, cleared.ExpiresAt)
	assert.True(t, f.has(t, f.teacher, PermissionUpdateCourse))
}

func TestUpdateChecksTheGrantsOrganization(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	view, err := f.service.Grant(ctx, f.orgID, f.manager, GrantRequest{ProfileID: f.teacher, Permission: PermissionUpdateCourse})
	require.NoError(t, err)

	// the teacher manages permissions in their own organization, not this one
	orgService := orgs.NewService(orgs.NewStore(f.db, orgs.WithClock(clock)),
		orgs.WithCreationHook(f.service.SeedManagerGrant()))
	_, err = orgService.CreateOrganization(ctx, f.teacher, orgs.CreateOrganizationRequest{Name: "Elsewhere", Type: "SCHOOL"})
	require.NoError(t, err)

	_, err = f.service.Update(ctx, view.ID, UpdateRequest{ExpiresAt: OptionalTime{Set: true}}, f.teacher)
	assert.ErrorIs(t, err, authz.ErrForbidden)

	_, err = f.service.Update(ctx, 9999, UpdateRequest{}, f.manager)
	assert.ErrorIs(t, err, authz.ErrNotFound)
}

func TestListHistoryFlagsActiveGrants(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	past := fixedNow.Add(-time.Hour)
	_, err := f.service.Grant(ctx, f.orgID, f.manager, GrantRequest{ProfileID: f.teacher, Permission: PermissionCreateCourse, ExpiresAt: &past})
	require.NoError(t, err)
	_, err = f.service.Grant(ctx, f.orgID, f.manager, GrantRequest{ProfileID: f.teacher, Permission: PermissionViewCourseDetails})
	require.NoError(t, err)

	teacher := f.teacher
	history, err := f.service.ListHistory(ctx, f.orgID, &teacher)
	require.NoError(t, err)
	require.Len(t, history, 2)

	byPerm := map[Permission]bool{}
	for _, h := range history {
		byPerm[h.Permission] = h.IsActive
		assert.Equal(t, "Teacher", h.Profile.Name)
	}
	assert.False(t, byPerm[PermissionCreateCourse])
	assert.True(t, byPerm[PermissionViewCourseDetails])

	all, err := f.service.ListHistory(ctx, f.orgID, nil)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestCheck(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	result, err := f.service.Check(ctx, f.manager, f.orgID, PermissionManagePermissions)
	require.NoError(t, err)
	assert.Equal(t, &CheckResult{
		HasPermission:  true,
		Permission:     PermissionManagePermissions,
		OrganizationID: f.orgID,
		ProfileID:      f.manager,
	}, result)

	result, err = f.service.Check(ctx, f.student, f.orgID, PermissionManagePermissions)
	require.NoError(t, err)
	assert.False(t, result.HasPermission)

	_, err = f.service.Check(ctx, f.student, f.orgID, "bogus")
	assert.ErrorIs(t, err, authz.ErrBadRequest)
}
