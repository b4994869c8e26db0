package rbac

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/tenantgate/pkg/observability"
)

func TestDirectoryCachesNames(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	metrics := observability.NewMetrics(prometheus.NewRegistry())
	dir := NewDirectory(db, DirectoryConfig{Size: 8, TTL: time.Minute}, metrics)

	mock.ExpectQuery(`SELECT name FROM profiles`).
		WithArgs(int64(4)).
		WillReturnRows(sqlmock.NewRows([]string{"name"}).AddRow("Grace"))

	for i := 0; i < 3; i++ {
		name, err := dir.ProfileName(context.Background(), 4)
		require.NoError(t, err)
		assert.Equal(t, "Grace", name)
	}

	assert.NoError(t, mock.ExpectationsWereMet(), "only the first lookup hits the database")
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.DirectoryLookupsTotal.WithLabelValues("miss")))
	assert.Equal(t, 2.0, testutil.ToFloat64(metrics.DirectoryLookupsTotal.WithLabelValues("hit")))

	dir.Forget()
	mock.ExpectQuery(`SELECT name FROM profiles`).
		WithArgs(int64(4)).
		WillReturnRows(sqlmock.NewRows([]string{"name"}).AddRow("Grace Hopper"))
	name, err := dir.ProfileName(context.Background(), 4)
	require.NoError(t, err)
	assert.Equal(t, "Grace Hopper", name)
}

func TestDirectoryMissingAndFailingLookups(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	dir := NewDirectory(db, DefaultDirectoryConfig(), nil)

	mock.ExpectQuery(`SELECT name FROM organizations`).
		WithArgs(int64(9)).
		WillReturnRows(sqlmock.NewRows([]string{"name"}))
	name, err := dir.OrganizationName(context.Background(), 9)
	require.NoError(t, err)
	assert.Empty(t, name)

	mock.ExpectQuery(`SELECT name FROM organizations`).
		WithArgs(int64(9)).
		WillReturnError(errors.New("too many connections"))
	_, err = dir.OrganizationName(context.Background(), 9)
	assert.ErrorContains(t, err, "too many connections")

	assert.NoError(t, mock.ExpectationsWereMet())
}
