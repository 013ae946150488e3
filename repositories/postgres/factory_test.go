package postgres

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/upb/emergency-console/repositories"
	"go.uber.org/zap"
)

func TestRepositoryFactoryFromDB(t *testing.T) {
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)

	db := Wrap(sqlDB, zap.NewNop())
	factory := NewRepositoryFactoryFromDB(db, zap.NewNop())
	assert.Same(t, db, factory.GetDB())

	repos := factory.NewRepositories()
	require.NotNil(t, repos.Users)
	require.NotNil(t, repos.AuditLogs)

	mock.ExpectQuery("SELECT (.+) FROM users WHERE email").
		WithArgs("nobody@emergency.city.gov").
		WillReturnRows(sqlmock.NewRows(userRowColumns))

	_, err = repos.Users.GetByEmail(context.Background(), "nobody@emergency.city.gov")
	assert.ErrorIs(t, err, repositories.ErrNotFound)

	mock.ExpectClose()
	require.NoError(t, factory.Close())
	assert.NoError(t, mock.ExpectationsWereMet())
}
