package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/upb/emergency-console/models"
	"github.com/upb/emergency-console/rbac"
	"github.com/upb/emergency-console/repositories"
	"go.uber.org/zap"
)

const uniqueViolation = "23505"

const userColumns = `id, email, name, role, password_hash, avatar_url, phone, location, department, created_at, updated_at`

// UserRepository implements the repositories.UserRepository interface
type UserRepository struct {
	db     *DB
	tx     *TransactionManager
	now    func() time.Time
	logger *zap.Logger
}

// NewUserRepository creates a new user repository
func NewUserRepository(db *DB, logger *zap.Logger) *UserRepository {
	return &UserRepository{
		db:     db,
		tx:     NewTransactionManager(db, logger),
		now:    time.Now,
		logger: logger,
	}
}

// Create creates a new user
func (r *UserRepository) Create(ctx context.Context, user *models.User) error {
	query := `
		INSERT INTO users (` + userColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`

	executor := GetExecutor(ctx, r.db)
	_, err := executor.ExecContext(ctx, query,
		user.ID,
		models.NormalizeEmail(user.Email),
		user.Name,
		string(user.Role),
		user.PasswordHash,
		user.AvatarURL,
		user.Phone,
		user.Location,
		user.Department,
		user.CreatedAt,
		user.UpdatedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return fmt.Errorf("email %s: %w", user.Email, repositories.ErrDuplicate)
		}
		return fmt.Errorf("failed to create user: %w", err)
	}

	r.logger.Debug("user created", zap.String("id", user.ID.String()), zap.String("email", user.Email))
	return nil
}

// GetByID retrieves a user by ID
func (r *UserRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`

	user, err := scanUser(GetExecutor(ctx, r.db).QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, fmt.Errorf("get user %s: %w", id, err)
	}
	return user, nil
}

// GetByEmail retrieves a user by email
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1`

	user, err := scanUser(GetExecutor(ctx, r.db).QueryRowContext(ctx, query, models.NormalizeEmail(email)))
	if err != nil {
		return nil, fmt.Errorf("get user by email: %w", err)
	}
	return user, nil
}

// List returns all users ordered by email
func (r *UserRepository) List(ctx context.Context) ([]*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users ORDER BY email`

	rows, err := GetExecutor(ctx, r.db).QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query users: %w", err)
	}
	defer rows.Close()

	var users []*models.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, user)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating user rows: %w", err)
	}

	return users, nil
}

// UpdateProfile locks the row, applies the patch and writes it back in one
// transaction so concurrent edits of different fields do not clobber each other
func (r *UserRepository) UpdateProfile(ctx context.Context, id uuid.UUID, patch models.ProfileUpdate) (*models.User, error) {
	var updated *models.User

	err := r.tx.InTransaction(ctx, func(ctx context.Context, _ repositories.Transaction) error {
		executor := GetExecutor(ctx, r.db)

		user, err := scanUser(executor.QueryRowContext(ctx,
			`SELECT `+userColumns+` FROM users WHERE id = $1 FOR UPDATE`, id))
		if err != nil {
			return err
		}

		patch.Apply(user, r.now())

		_, err = executor.ExecContext(ctx, `
			UPDATE users
			SET name = $2,
			    avatar_url = $3,
			    phone = $4,
			    location = $5,
			    department = $6,
			    updated_at = $7
			WHERE id = $1
		`,
			user.ID,
			user.Name,
			user.AvatarURL,
			user.Phone,
			user.Location,
			user.Department,
			user.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to update user: %w", err)
		}

		updated = user
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("update profile %s: %w", id, err)
	}

	r.logger.Debug("user profile updated", zap.String("id", id.String()))
	return updated, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanUser(row rowScanner) (*models.User, error) {
	user := &models.User{}
	var role string

	err := row.Scan(
		&user.ID,
		&user.Email,
		&user.Name,
		&role,
		&user.PasswordHash,
		&user.AvatarURL,
		&user.Phone,
		&user.Location,
		&user.Department,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repositories.ErrNotFound
		}
		return nil, err
	}

	user.Role = rbac.Role(role)
	return user, nil
}
