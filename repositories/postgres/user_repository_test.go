package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/upb/emergency-console/models"
	"github.com/upb/emergency-console/rbac"
	"github.com/upb/emergency-console/repositories"
	"go.uber.org/zap"
)

var userRowColumns = []string{
	"id", "email", "name", "role", "password_hash", "avatar_url",
	"phone", "location", "department", "created_at", "updated_at",
}

func newMockUserRepository(t *testing.T) (*UserRepository, sqlmock.Sqlmock) {
	t.Helper()

	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	return NewUserRepository(Wrap(sqlDB, zap.NewNop()), zap.NewNop()), mock
}

func TestUserRepository_GetByEmail(t *testing.T) {
	t.Run("normalizes email and scans row", func(t *testing.T) {
		repo, mock := newMockUserRepository(t)
		id := uuid.New()
		now := time.Now().UTC()

		mock.ExpectQuery("SELECT (.+) FROM users WHERE email = \\$1").
			WithArgs("dispatch@city.gov").
			WillReturnRows(sqlmock.NewRows(userRowColumns).
				AddRow(id.String(), "dispatch@city.gov", "Dana", "manager", "hash", nil, "555", nil, nil, now, now))

		user, err := repo.GetByEmail(context.Background(), " Dispatch@City.gov")
		require.NoError(t, err)

		assert.Equal(t, id, user.ID)
		assert.Equal(t, rbac.RoleManager, user.Role)
		assert.Equal(t, "hash", user.PasswordHash)
		assert.Nil(t, user.AvatarURL)
		require.NotNil(t, user.Phone)
		assert.Equal(t, "555", *user.Phone)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("missing row maps to ErrNotFound", func(t *testing.T) {
		repo, mock := newMockUserRepository(t)

		mock.ExpectQuery("SELECT (.+) FROM users WHERE email").
			WithArgs("ghost@city.gov").
			WillReturnRows(sqlmock.NewRows(userRowColumns))

		_, err := repo.GetByEmail(context.Background(), "ghost@city.gov")
		assert.ErrorIs(t, err, repositories.ErrNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestUserRepository_Create(t *testing.T) {
	t.Run("inserts user", func(t *testing.T) {
		repo, mock := newMockUserRepository(t)
		user := models.NewUser("new@city.gov", "New", rbac.RoleResident, "hash")

		mock.ExpectExec("INSERT INTO users").
			WillReturnResult(sqlmock.NewResult(0, 1))

		require.NoError(t, repo.Create(context.Background(), user))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("unique violation maps to ErrDuplicate", func(t *testing.T) {
		repo, mock := newMockUserRepository(t)
		user := models.NewUser("taken@city.gov", "Taken", rbac.RoleResident, "hash")

		mock.ExpectExec("INSERT INTO users").
			WillReturnError(&pq.Error{Code: "23505"})

		err := repo.Create(context.Background(), user)
		assert.ErrorIs(t, err, repositories.ErrDuplicate)
	})
}

func TestUserRepository_List(t *testing.T) {
	repo, mock := newMockUserRepository(t)
	now := time.Now().UTC()

	mock.ExpectQuery("SELECT (.+) FROM users ORDER BY email").
		WillReturnRows(sqlmock.NewRows(userRowColumns).
			AddRow(uuid.New().String(), "a@city.gov", "A", "admin", "h", nil, nil, nil, nil, now, now).
			AddRow(uuid.New().String(), "b@city.gov", "B", "responder", "h", nil, nil, nil, nil, now, now))

	users, err := repo.List(context.Background())
	require.NoError(t, err)
	require.Len(t, users, 2)
	assert.Equal(t, rbac.RoleAdmin, users[0].Role)
	assert.Equal(t, rbac.RoleResponder, users[1].Role)
}

func TestUserRepository_UpdateProfile(t *testing.T) {
	t.Run("locks row and writes patch in a transaction", func(t *testing.T) {
		repo, mock := newMockUserRepository(t)
		id := uuid.New()
		created := time.Now().Add(-time.Hour).UTC()
		fixed := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
		repo.now = func() time.Time { return fixed }
		name := "Renamed"

		mock.ExpectBegin()
		mock.ExpectQuery("SELECT (.+) FROM users WHERE id = \\$1 FOR UPDATE").
			WithArgs(id).
			WillReturnRows(sqlmock.NewRows(userRowColumns).
				AddRow(id.String(), "r@city.gov", "Old", "responder", "h", nil, nil, "Ward 3", nil, created, created))
		mock.ExpectExec("UPDATE users").
			WithArgs(id, "Renamed", nil, nil, "Ward 3", nil, fixed).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		user, err := repo.UpdateProfile(context.Background(), id, models.ProfileUpdate{Name: &name})
		require.NoError(t, err)

		assert.Equal(t, "Renamed", user.Name)
		assert.Equal(t, rbac.RoleResponder, user.Role)
		assert.Equal(t, fixed, user.UpdatedAt)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("unknown user rolls back", func(t *testing.T) {
		repo, mock := newMockUserRepository(t)
		id := uuid.New()

		mock.ExpectBegin()
		mock.ExpectQuery("FOR UPDATE").
			WithArgs(id).
			WillReturnRows(sqlmock.NewRows(userRowColumns))
		mock.ExpectRollback()

		_, err := repo.UpdateProfile(context.Background(), id, models.ProfileUpdate{})
		assert.ErrorIs(t, err, repositories.ErrNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
