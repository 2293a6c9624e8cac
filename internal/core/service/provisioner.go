package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/dreamhome/auth-gateway/internal/core/domain"
	"github.com/dreamhome/auth-gateway/internal/core/ports"
)

// AccountInput describes an operator-provisioned account. Unlike
// registration, the role is taken from the input.
type AccountInput struct {
	Username  string
	Email     string
	Password  string
	Role      domain.Role
	FirstName string
	LastName  string
}

// Provisioner creates accounts out of band, e.g. the initial administrator.
// It is not reachable over HTTP.
type Provisioner struct {
	store  ports.CredentialStore
	hasher ports.PasswordHasher
	audit  ports.AuditSink
	log    zerolog.Logger
}

func NewProvisioner(store ports.CredentialStore, hasher ports.PasswordHasher, audit ports.AuditSink, log zerolog.Logger) *Provisioner {
	if audit == nil {
		audit = discardAudit{}
	}
	return &Provisioner{store: store, hasher: hasher, audit: audit, log: log}
}

// EnsureAccount creates the account unless the username already exists, in
// which case the stored user is returned unchanged and created is false.
func (p *Provisioner) EnsureAccount(ctx context.Context, in AccountInput) (user *domain.User, created bool, err error) {
	username := strings.TrimSpace(in.Username)
	email := strings.ToLower(strings.TrimSpace(in.Email))
	if username == "" || email == "" || in.Password == "" {
		return nil, false, domain.InvalidInput("username, email and password are required")
	}
	if !in.Role.Valid() {
		return nil, false, domain.InvalidInput(fmt.Sprintf("unknown role %q", in.Role))
	}

	existing, err := p.store.FindByUsername(ctx, username)
	switch {
	case err == nil:
		p.log.Info().Str("username", username).Msg("account already provisioned")
		return existing.Sanitized(), false, nil
	case !errors.Is(err, domain.ErrUserNotFound):
		return nil, false, domain.TemporaryFailure(err)
	}

	if err := checkUnique(ctx, p.store, username, email); err != nil {
		return nil, false, err
	}

	hash, err := p.hasher.Hash(in.Password)
	if err != nil {
		return nil, false, fmt.Errorf("provision: %w", err)
	}

	now := time.Now().UTC()
	saved, err := p.store.Save(ctx, &domain.User{
		ID:           uuid.NewString(),
		Username:     username,
		Email:        email,
		PasswordHash: hash,
		Role:         in.Role,
		Active:       true,
		FirstName:    in.FirstName,
		LastName:     in.LastName,
		CreatedAt:    now,
		UpdatedAt:    now,
	})
	if err != nil {
		if errors.Is(err, domain.ErrDuplicateIdentifier) {
			return nil, false, err
		}
		return nil, false, domain.TemporaryFailure(err)
	}

	p.audit.Record(domain.AuthEvent{
		Kind: domain.EventAccountSeeded, Username: saved.Username, At: now, Detail: string(saved.Role),
	})
	p.log.Info().Str("username", saved.Username).Str("role", string(saved.Role)).Msg("account provisioned")
	return saved.Sanitized(), true, nil
}
