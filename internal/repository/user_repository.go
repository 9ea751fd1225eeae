package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/tatugacamp/school-api/internal/models"
	appErrors "github.com/tatugacamp/school-api/pkg/errors"
)

const userColumns = "id, email, password, first_name, last_name, phone, photo, blur_hash, is_verify_email, verify_email_token, verify_email_token_expires_at, reset_password_token, reset_password_token_expires_at, last_active_at, created_at, updated_at"

// UserRepository provides database access for user accounts.
type UserRepository struct {
	db *sqlx.DB
}

// NewUserRepository creates a new instance of UserRepository.
func NewUserRepository(db *sqlx.DB) *UserRepository {
	return &UserRepository{db: db}
}

// FindByID returns a user by identifier.
func (r *UserRepository) FindByID(ctx context.Context, id string) (*models.User, error) {
	query := fmt.Sprintf("SELECT %s FROM users WHERE id = $1 LIMIT 1", userColumns)
	var user models.User
	if err := r.db.GetContext(ctx, &user, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find user by id: %w", appErrors.FromStore(err, ""))
	}
	return &user, nil
}

// FindByEmail returns a user by email address.
func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	query := fmt.Sprintf("SELECT %s FROM users WHERE email = $1 LIMIT 1", userColumns)
	var user models.User
	if err := r.db.GetContext(ctx, &user, query, email); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find user by email: %w", appErrors.FromStore(err, ""))
	}
	return &user, nil
}

// SearchVerifiedByEmail returns at most limit verified users whose email
// contains the fragment. Containment is case-sensitive LIKE.
func (r *UserRepository) SearchVerifiedByEmail(ctx context.Context, fragment string, limit int) ([]models.User, error) {
	if limit <= 0 {
		limit = 5
	}
	query := fmt.Sprintf("SELECT %s FROM users WHERE email LIKE $1 AND is_verify_email = TRUE LIMIT %d", userColumns, limit)
	var users []models.User
	if err := r.db.SelectContext(ctx, &users, query, "%"+fragment+"%"); err != nil {
		return nil, fmt.Errorf("search users by email: %w", appErrors.FromStore(err, ""))
	}
	return users, nil
}

// Update persists the mutable account fields, including verification state,
// and returns nothing; callers hold the updated struct.
func (r *UserRepository) Update(ctx context.Context, user *models.User) error {
	user.UpdatedAt = time.Now().UTC()
	const query = `UPDATE users SET email = :email, first_name = :first_name, last_name = :last_name, phone = :phone, photo = :photo, blur_hash = :blur_hash, is_verify_email = :is_verify_email, verify_email_token = :verify_email_token, verify_email_token_expires_at = :verify_email_token_expires_at, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, user); err != nil {
		return fmt.Errorf("update user: %w", appErrors.FromStore(err, "email is already taken"))
	}
	return nil
}

// UpdatePassword updates the stored password hash. Reset token fields are
// intentionally left untouched on this path.
func (r *UserRepository) UpdatePassword(ctx context.Context, id, passwordHash string) error {
	const query = `UPDATE users SET password = $2, updated_at = $3 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, passwordHash, time.Now().UTC()); err != nil {
		return fmt.Errorf("update password: %w", appErrors.FromStore(err, ""))
	}
	return nil
}

// TouchLastActive refreshes the user's last activity timestamp.
func (r *UserRepository) TouchLastActive(ctx context.Context, id string) error {
	const query = `UPDATE users SET last_active_at = $2 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, time.Now().UTC()); err != nil {
		return fmt.Errorf("touch last active: %w", appErrors.FromStore(err, ""))
	}
	return nil
}
