package configdb

import (
	"context"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return &Store{db: db}, mock
}

func TestGetReturnsNotOKForMissingKey(t *testing.T) {
	s, mock := newMockStore(t)
	mock.ExpectQuery(`SELECT value FROM config WHERE key = \$1`).
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows([]string{"value"}))

	_, ok, err := s.Get(context.Background(), "missing")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSetUpsertsKey(t *testing.T) {
	s, mock := newMockStore(t)
	mock.ExpectExec(`INSERT INTO config`).
		WithArgs("k", "v", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, s.Set(context.Background(), "k", "v"))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPutAndGetCameraConfigRoundTrips(t *testing.T) {
	s, mock := newMockStore(t)
	cfg := CameraConfig{ID: "cam1", Name: "Lobby", Running: true}

	mock.ExpectExec(`INSERT INTO camera_config`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, s.PutCameraConfig(context.Background(), cfg))

	mock.ExpectQuery(`SELECT config FROM camera_config WHERE camera_id = \$1`).
		WithArgs("cam1").
		WillReturnRows(sqlmock.NewRows([]string{"config"}).AddRow(`{"id":"cam1","name":"Lobby","running":true}`))

	got, ok, err := s.GetCameraConfig(context.Background(), "cam1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "cam1", got.ID)
	assert.True(t, got.Running)
}

func TestGetCameraConfigNotFound(t *testing.T) {
	s, mock := newMockStore(t)
	mock.ExpectQuery(`SELECT config FROM camera_config WHERE camera_id = \$1`).
		WithArgs("ghost").
		WillReturnRows(sqlmock.NewRows([]string{"config"}))

	_, ok, err := s.GetCameraConfig(context.Background(), "ghost")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestDeleteCameraConfigIsIdempotent(t *testing.T) {
	s, mock := newMockStore(t)
	mock.ExpectExec(`DELETE FROM camera_config WHERE camera_id = \$1`).
		WithArgs("cam1").
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, s.DeleteCameraConfig(context.Background(), "cam1"))
}
