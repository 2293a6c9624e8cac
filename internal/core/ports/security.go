package ports

import (
	"time"

	"github.com/dreamhome/auth-gateway/internal/core/domain"
)

// PasswordHasher hashes and verifies secrets. Verify never errors: a
// malformed stored hash simply does not match.
type PasswordHasher interface {
	Hash(plaintext string) (string, error)
	Verify(plaintext, hash string) bool
}

// IssuedToken is a signed bearer token plus its validity window.
type IssuedToken struct {
	Token     string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// TokenCodec issues and validates self-contained bearer tokens. Validate
// failures always satisfy errors.Is(err, domain.ErrInvalidToken).
type TokenCodec interface {
	Issue(p domain.Principal, ttl time.Duration) (IssuedToken, error)
	Validate(token string) (domain.Principal, error)
}
