package user

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/banana-studio/banana-api/internal/pkg/database"
)

// Repository defines user data access interface
type Repository interface {
	Create(ctx context.Context, user *User) error
	// CreateTx inserts the user inside a caller-owned transaction.
	CreateTx(ctx context.Context, tx *sqlx.Tx, user *User) error
	GetByID(ctx context.Context, id uuid.UUID) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	ExistsByEmail(ctx context.Context, email string) (bool, error)
}

type repository struct {
	db *sqlx.DB
}

// NewRepository creates new user repository
func NewRepository(db *sqlx.DB) Repository {
	return &repository{db: db}
}

const userColumns = `id, email, password_hash, email_confirmed_at, created_at, updated_at`

func (r *repository) Create(ctx context.Context, user *User) error {
	return insert(ctx, r.db, user)
}

func (r *repository) CreateTx(ctx context.Context, tx *sqlx.Tx, user *User) error {
	return insert(ctx, tx, user)
}

func insert(ctx context.Context, q sqlx.QueryerContext, user *User) error {
	query := `
		INSERT INTO users (id, email, password_hash, email_confirmed_at)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at, updated_at
	`
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	err := q.QueryRowxContext(ctx, query, user.ID, user.Email, user.PasswordHash, user.EmailConfirmedAt).
		Scan(&user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return ErrEmailAlreadyExists
		}
		return fmt.Errorf("user repository create: %w", err)
	}
	return nil
}

// GetByID returns user by ID
func (r *repository) GetByID(ctx context.Context, id uuid.UUID) (*User, error) {
	var u User
	err := r.db.GetContext(ctx, &u, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("user repository get by id: %w", err)
	}
	return &u, nil
}

// GetByEmail returns user by normalized email
func (r *repository) GetByEmail(ctx context.Context, email string) (*User, error) {
	var u User
	err := r.db.GetContext(ctx, &u, `SELECT `+userColumns+` FROM users WHERE email = $1`, email)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("user repository get by email: %w", err)
	}
	return &u, nil
}

func (r *repository) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	var exists bool
	if err := r.db.GetContext(ctx, &exists, `SELECT EXISTS(SELECT 1 FROM users WHERE email = $1)`, email); err != nil {
		return false, fmt.Errorf("user repository exists: %w", err)
	}
	return exists, nil
}
