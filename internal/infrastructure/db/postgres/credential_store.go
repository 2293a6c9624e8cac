package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dreamhome/auth-gateway/internal/core/domain"
	"github.com/dreamhome/auth-gateway/internal/core/ports"
)

const uniqueViolation = "23505"

const selectUser = `
SELECT id, username, email, password_hash, role, active,
       first_name, last_name, phone_number, created_at, updated_at
FROM users
`

// CredentialStore implements ports.CredentialStore on PostgreSQL.
type CredentialStore struct {
	pool *pgxpool.Pool
}

var _ ports.CredentialStore = (*CredentialStore)(nil)

func NewCredentialStore(pool *pgxpool.Pool) *CredentialStore {
	return &CredentialStore{pool: pool}
}

func (s *CredentialStore) FindByUsername(ctx context.Context, username string) (*domain.User, error) {
	return s.findOne(ctx, selectUser+"WHERE username = $1", username)
}

func (s *CredentialStore) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	return s.findOne(ctx, selectUser+"WHERE email = $1", email)
}

func (s *CredentialStore) ExistsByUsername(ctx context.Context, username string) (bool, error) {
	return s.exists(ctx, "SELECT EXISTS (SELECT 1 FROM users WHERE username = $1)", username)
}

func (s *CredentialStore) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	return s.exists(ctx, "SELECT EXISTS (SELECT 1 FROM users WHERE email = $1)", email)
}

// Save inserts a new credential. A unique constraint violation is reported
// as a DuplicateIdentifierError naming the colliding field.
func (s *CredentialStore) Save(ctx context.Context, user *domain.User) (*domain.User, error) {
	const query = `
INSERT INTO users (id, username, email, password_hash, role, active,
                   first_name, last_name, phone_number, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
`
	_, err := s.pool.Exec(ctx, query,
		user.ID,
		user.Username,
		user.Email,
		user.PasswordHash,
		string(user.Role),
		user.Active,
		user.FirstName,
		user.LastName,
		user.PhoneNumber,
		user.CreatedAt,
		user.UpdatedAt,
	)
	if err != nil {
		if field, ok := uniqueViolationField(err); ok {
			return nil, &domain.DuplicateIdentifierError{Fields: []string{field}}
		}
		return nil, fmt.Errorf("insert user: %w", err)
	}
	saved := *user
	return &saved, nil
}

func (s *CredentialStore) findOne(ctx context.Context, query string, arg any) (*domain.User, error) {
	user, err := scanUser(s.pool.QueryRow(ctx, query, arg))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrUserNotFound
		}
		return nil, fmt.Errorf("find user: %w", err)
	}
	return user, nil
}

func (s *CredentialStore) exists(ctx context.Context, query string, arg any) (bool, error) {
	var found bool
	if err := s.pool.QueryRow(ctx, query, arg).Scan(&found); err != nil {
		return false, fmt.Errorf("exists user: %w", err)
	}
	return found, nil
}

func scanUser(row pgx.Row) (*domain.User, error) {
	var (
		u    domain.User
		role string
	)
	if err := row.Scan(
		&u.ID,
		&u.Username,
		&u.Email,
		&u.PasswordHash,
		&role,
		&u.Active,
		&u.FirstName,
		&u.LastName,
		&u.PhoneNumber,
		&u.CreatedAt,
		&u.UpdatedAt,
	); err != nil {
		return nil, err
	}
	u.Role = domain.Role(role)
	u.CreatedAt = u.CreatedAt.UTC()
	u.UpdatedAt = u.UpdatedAt.UTC()
	return &u, nil
}

// uniqueViolationField maps a unique violation to the identifier it guards.
func uniqueViolationField(err error) (string, bool) {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != uniqueViolation {
		return "", false
	}
	if pgErr.ConstraintName == "users_email_key" {
		return "email", true
	}
	return "username", true
}
