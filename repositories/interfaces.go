package repositories

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/upb/emergency-console/models"
)

var (
	// ErrNotFound is returned when a lookup matches no row
	ErrNotFound = errors.New("record not found")

	// ErrDuplicate is returned when a unique key is already taken
	ErrDuplicate = errors.New("duplicate record")
)

// TransactionManager manages database transactions
type TransactionManager interface {
	// Begin starts a new transaction
	Begin(ctx context.Context) (Transaction, error)

	// InTransaction executes a function within a transaction
	// Automatically commits if function succeeds, rolls back on error
	InTransaction(ctx context.Context, fn func(ctx context.Context, tx Transaction) error) error
}

// Transaction represents a database transaction
type Transaction interface {
	// Commit commits the transaction
	Commit() error

	// Rollback rolls back the transaction
	Rollback() error

	// Context returns the transaction context
	Context() context.Context
}

// UserRepository handles user data operations
type UserRepository interface {
	// Create provisions a new user. Returns ErrDuplicate when the email is taken.
	Create(ctx context.Context, user *models.User) error

	// GetByID retrieves a user by ID
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)

	// GetByEmail retrieves a user by email, case-insensitively
	GetByEmail(ctx context.Context, email string) (*models.User, error)

	// List returns all users ordered by email
	List(ctx context.Context) ([]*models.User, error)

	// UpdateProfile applies a profile patch and returns the stored user
	UpdateProfile(ctx context.Context, id uuid.UUID, patch models.ProfileUpdate) (*models.User, error)
}

// AuditRepository handles audit log data operations
type AuditRepository interface {
	// Insert inserts a new audit log entry
	Insert(ctx context.Context, log *models.AuditLog) error

	// List returns the newest entries first with pagination
	List(ctx context.Context, limit, offset int) ([]*models.AuditLog, error)

	// ListByUser returns the newest entries for a user first with pagination
	ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*models.AuditLog, error)
}

// Repositories groups all repository interfaces for dependency injection
type Repositories struct {
	Users     UserRepository
	AuditLogs AuditRepository
}
