package ports

import (
	"context"
	"time"

	"github.com/dreamhome/auth-gateway/internal/core/domain"
)

// LoginInput carries the login body. Username may also be an email.
type LoginInput struct {
	Username string
	Password string
}

// RegisterInput carries the registration body. There is deliberately no
// role field: new accounts are always USER.
type RegisterInput struct {
	Username    string
	Email       string
	Password    string
	FirstName   string
	LastName    string
	PhoneNumber string
}

// AuthResult is returned by both login and register.
type AuthResult struct {
	Token     string
	ExpiresAt time.Time
	User      *domain.User
}

type AuthService interface {
	Login(ctx context.Context, in LoginInput) (*AuthResult, error)
	Register(ctx context.Context, in RegisterInput) (*AuthResult, error)
}
