package ports

import (
	"context"

	"github.com/dreamhome/auth-gateway/internal/core/domain"
)

// CredentialStore is the persistence collaborator that owns user records.
// Find* return domain.ErrUserNotFound on a miss. Save returns
// domain.ErrDuplicateIdentifier when a unique index rejects the insert.
type CredentialStore interface {
	FindByUsername(ctx context.Context, username string) (*domain.User, error)
	FindByEmail(ctx context.Context, email string) (*domain.User, error)
	ExistsByUsername(ctx context.Context, username string) (bool, error)
	ExistsByEmail(ctx context.Context, email string) (bool, error)
	Save(ctx context.Context, user *domain.User) (*domain.User, error)
}
