package rbac

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/tenantgate/pkg/authz"
	"github.com/platinummonkey/tenantgate/pkg/orgs"
	"github.com/platinummonkey/tenantgate/pkg/storage/storagetest"
)

var fixedNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func clock() time.Time { return fixedNow }

type storeFixture struct {
	store   *Store
	db      *sql.DB
	orgID   int64
	ownerID int64
	otherID int64
}

func newStoreFixture(t *testing.T) *storeFixture {
	t.Helper()
	db := storagetest.NewSQLite(t)
	f := &storeFixture{
		store:   NewStore(db, WithClock(clock)),
		db:      db,
		ownerID: storagetest.InsertProfile(t, db, "Owner"),
		otherID: storagetest.InsertProfile(t, db, "Other"),
	}
	org, err := orgs.NewStore(db, orgs.WithClock(clock)).
		CreateOrganization(context.Background(), "Grant School", "SCHOOL", f.ownerID)
	require.NoError(t, err)
	f.orgID = org.ID
	return f
}

func (f *storeFixture) insert(t *testing.T, perm Permission, expiresAt *time.Time) *Grant {
	t.Helper()
	g := &Grant{
		OrganizationID:     f.orgID,
		ProfileID:          f.otherID,
		Permission:         perm,
		GrantedByProfileID: f.ownerID,
		ExpiresAt:          expiresAt,
	}
	require.NoError(t, f.store.InsertGrant(context.Background(), f.db, g))
	return g
}

func at(t time.Time) *time.Time { return &t }

func TestInsertAndGetGrant(t *testing.T) {
	f := newStoreFixture(t)
	ctx := context.Background()

	expires := fixedNow.Add(24 * time.Hour)
	g := f.insert(t, PermissionCreateCourse, &expires)
	assert.NotZero(t, g.ID)
	assert.Equal(t, fixedNow, g.CreatedAt)

	got, err := f.store.GetGrant(ctx, g.ID)
	require.NoError(t, err)
	assert.Equal(t, f.orgID, got.OrganizationID)
	assert.Equal(t, f.otherID, got.ProfileID)
	assert.Equal(t, PermissionCreateCourse, got.Permission)
	assert.Equal(t, f.ownerID, got.GrantedByProfileID)
	require.NotNil(t, got.ExpiresAt)
	assert.True(t, expires.Equal(*got.ExpiresAt))

	_, err = f.store.GetGrant(ctx, 9999)
	assert.ErrorIs(t, err, authz.ErrNotFound)
}

func TestHasActiveHonorsExpiry(t *testing.T) {
	tests := []struct {
		name      string
		expiresAt *time.Time
		want      bool
	}{
		{"no expiry", nil, true},
		{"future expiry", at(fixedNow.Add(time.Second)), true},
		{"expires now", at(fixedNow), false},
		{"past expiry", at(fixedNow.Add(-time.Second)), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newStoreFixture(t)
			f.insert(t, PermissionCreateCourse, tt.expiresAt)

			ok, err := f.store.HasActive(context.Background(), f.otherID, f.orgID, PermissionCreateCourse)
			require.NoError(t, err)
			assert.Equal(t, tt.want, ok)
		})
	}
}

func TestHasActiveIsScopedToExactTuple(t *testing.T) {
	f := newStoreFixture(t)
	ctx := context.Background()
	f.insert(t, PermissionCreateCourse, nil)

	ok, err := f.store.HasActive(ctx, f.otherID, f.orgID, PermissionUpdateCourse)
	require.NoError(t, err)
	assert.False(t, ok, "different permission")

	ok, err = f.store.HasActive(ctx, f.ownerID, f.orgID, PermissionCreateCourse)
	require.NoError(t, err)
	assert.False(t, ok, "different profile")

	ok, err = f.store.HasActive(ctx, f.otherID, f.orgID+1, PermissionCreateCourse)
	require.NoError(t, err)
	assert.False(t, ok, "different organization")
}

func TestInsertGrantDuplicateTupleConflicts(t *testing.T) {
	f := newStoreFixture(t)
	f.insert(t, PermissionCreateCourse, at(fixedNow.Add(-time.Hour)))

	err := f.store.InsertGrant(context.Background(), f.db, &Grant{
		OrganizationID:     f.orgID,
		ProfileID:          f.otherID,
		Permission:         PermissionCreateCourse,
		GrantedByProfileID: f.ownerID,
	})
	assert.ErrorIs(t, err, authz.ErrConflict)
}

func TestInsertGrantUnknownProfile(t *testing.T) {
	f := newStoreFixture(t)

	err := f.store.InsertGrant(context.Background(), f.db, &Grant{
		OrganizationID:     f.orgID,
		ProfileID:          424242,
		Permission:         PermissionCreateCourse,
		GrantedByProfileID: f.ownerID,
	})
	assert.ErrorIs(t, err, authz.ErrNotFound)
}

func TestDeleteGrants(t *testing.T) {
	f := newStoreFixture(t)
	ctx := context.Background()
	f.insert(t, PermissionCreateCourse, nil)

	n, err := f.store.DeleteGrants(ctx, f.orgID, f.otherID, PermissionCreateCourse)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	n, err = f.store.DeleteGrants(ctx, f.orgID, f.otherID, PermissionCreateCourse)
	require.NoError(t, err)
	assert.Zero(t, n)

	// the tuple is free again
	f.insert(t, PermissionCreateCourse, nil)
}

func TestUpdateExpiry(t *testing.T) {
	f := newStoreFixture(t)
	ctx := context.Background()
	g := f.insert(t, PermissionManageSessions, nil)

	past := fixedNow.Add(-time.Minute)
	updated, err := f.store.UpdateExpiry(ctx, g.ID, &past)
	require.NoError(t, err)
	require.NotNil(t, updated.ExpiresAt)
	assert.True(t, past.Equal(*updated.ExpiresAt))

	ok, err := f.store.HasActive(ctx, f.otherID, f.orgID, PermissionManageSessions)
	require.NoError(t, err)
	assert.False(t, ok)

	cleared, err := f.store.UpdateExpiry(ctx, g.ID, nil)
	require.NoError(t, err)
	assert.Nil(t, cleared.ExpiresAt)

	_, err = f.store.UpdateExpiry(ctx, 9999, nil)
	assert.ErrorIs(t, err, authz.ErrNotFound)
}

func TestListProjections(t *testing.T) {
	f := newStoreFixture(t)
	ctx := context.Background()

	active := f.insert(t, PermissionCreateCourse, nil)
	expired := f.insert(t, PermissionDeleteCourse, at(fixedNow.Add(-time.Hour)))
	future := f.insert(t, PermissionViewCourseDetails, at(fixedNow.Add(time.Hour)))

	byOrg, err := f.store.ListByOrganization(ctx, f.orgID)
	require.NoError(t, err)
	assert.Equal(t, []int64{future.ID, expired.ID, active.ID}, grantIDs(byOrg), "newest first")

	byProfile, err := f.store.ListByProfile(ctx, f.otherID)
	require.NoError(t, err)
	assert.Len(t, byProfile, 3)

	act, err := f.store.ListActive(ctx, f.otherID, f.orgID)
	require.NoError(t, err)
	assert.ElementsMatch(t, []int64{active.ID, future.ID}, grantIDs(act))

	exp, err := f.store.ListExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, []int64{expired.ID}, grantIDs(exp))

	other := f.ownerID
	history, err := f.store.ListHistory(ctx, f.orgID, &other)
	require.NoError(t, err)
	assert.Empty(t, history)

	history, err = f.store.ListHistory(ctx, f.orgID, nil)
	require.NoError(t, err)
	assert.Len(t, history, 3)

	nCount, nExpired, err := f.store.CountGrants(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), nCount)
	assert.Equal(t, int64(1), nExpired)
}

func TestListsAreEmptyNotNil(t *testing.T) {
	f := newStoreFixture(t)

	grants, err := f.store.ListByOrganization(context.Background(), f.orgID)
	require.NoError(t, err)
	assert.NotNil(t, grants)
	assert.Empty(t, grants)
}

func grantIDs(grants []*Grant) []int64 {
	ids := make([]int64, len(grants))
	for i, g := range grants {
		ids[i] = g.ID
	}
	return ids
}

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewStore(db, WithClock(clock)), mock
}

func TestHasActivePropagatesStoreErrors(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery(`SELECT 1 FROM organization_permissions`).
		WithArgs(int64(7), int64(3), PermissionCreateCourse, fixedNow).
		WillReturnError(errors.New("connection reset"))

	ok, err := store.HasActive(context.Background(), 7, 3, PermissionCreateCourse)
	assert.False(t, ok)
	assert.ErrorContains(t, err, "connection reset")
	assert.Equal(t, authz.KindInternal, authz.KindOf(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertGrantClassifiesPostgresErrors(t *testing.T) {
	tests := []struct {
		name     string
		dbErr    error
		wantKind authz.Kind
	}{
		{"unique violation", &pq.Error{Code: "23505"}, authz.KindConflict},
		{"foreign key violation", &pq.Error{Code: "23503"}, authz.KindNotFound},
		{"other", errors.New("disk full"), authz.KindInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, mock := newMockStore(t)

			mock.ExpectQuery(`INSERT INTO organization_permissions`).
				WithArgs(int64(3), int64(7), PermissionCreateCourse, int64(1), fixedNow, sqlmock.AnyArg()).
				WillReturnError(tt.dbErr)

			err := store.InsertGrant(context.Background(), store.db, &Grant{
				OrganizationID:     3,
				ProfileID:          7,
				Permission:         PermissionCreateCourse,
				GrantedByProfileID: 1,
			})
			require.Error(t, err)
			assert.Equal(t, tt.wantKind, authz.KindOf(err))
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestDeleteGrantsPropagatesStoreErrors(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec(`DELETE FROM organization_permissions`).
		WithArgs(int64(3), int64(7), PermissionCreateCourse).
		WillReturnError(errors.New("read-only transaction"))

	_, err := store.DeleteGrants(context.Background(), 3, 7, PermissionCreateCourse)
	assert.ErrorContains(t, err, "read-only transaction")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListPropagatesScanErrors(t *testing.T) {
	store, mock := newMockStore(t)

	rows := sqlmock.NewRows([]string{"id", "organization_id"}).AddRow(1, 3)
	mock.ExpectQuery(`FROM organization_permissions WHERE organization_id`).
		WithArgs(int64(3)).
		WillReturnRows(rows)

	_, err := store.ListByOrganization(context.Background(), 3)
	assert.ErrorContains(t, err, "failed to scan grant")
}
