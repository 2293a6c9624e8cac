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

// dummyPassword is hashed once at construction; unknown identifiers are
// compared against it so a miss costs the same as a wrong password. The
// parity holds only while stored hashes use the hasher's own cost, so every
// write path (Register, Provisioner, dreamhomectl) hashes with BCRYPT_COST.
const dummyPassword = "dreamhome-timing-equaliser"

type authService struct {
	store     ports.CredentialStore
	hasher    ports.PasswordHasher
	codec     ports.TokenCodec
	audit     ports.AuditSink
	log       zerolog.Logger
	tokenTTL  time.Duration
	dummyHash string
	now       func() time.Time
}

// NewAuthService returns an AuthService. A nil audit sink discards events.
func NewAuthService(
	store ports.CredentialStore,
	hasher ports.PasswordHasher,
	codec ports.TokenCodec,
	audit ports.AuditSink,
	log zerolog.Logger,
	tokenTTL time.Duration,
) (ports.AuthService, error) {
	dummy, err := hasher.Hash(dummyPassword)
	if err != nil {
		return nil, fmt.Errorf("auth service: prepare dummy hash: %w", err)
	}
	if audit == nil {
		audit = discardAudit{}
	}
	return &authService{
		store:     store,
		hasher:    hasher,
		codec:     codec,
		audit:     audit,
		log:       log,
		tokenTTL:  tokenTTL,
		dummyHash: dummy,
		now:       func() time.Time { return time.Now().UTC() },
	}, nil
}

// Login verifies the credential and issues a token carrying the stored role.
// Unknown identifier, wrong password and inactive account all yield
// ErrInvalidCredentials.
func (s *authService) Login(ctx context.Context, in ports.LoginInput) (*ports.AuthResult, error) {
	identifier := strings.TrimSpace(in.Username)

	var user *domain.User
	if identifier != "" {
		found, err := s.lookup(ctx, identifier)
		if err != nil {
			s.log.Error().Err(err).Msg("credential lookup failed")
			return nil, domain.TemporaryFailure(err)
		}
		user = found
	}

	if user == nil {
		s.hasher.Verify(in.Password, s.dummyHash)
		s.recordFailure(identifier, "unknown_identifier")
		return nil, domain.ErrInvalidCredentials
	}
	if !s.hasher.Verify(in.Password, user.PasswordHash) {
		s.recordFailure(user.Username, "bad_password")
		return nil, domain.ErrInvalidCredentials
	}
	if !user.Active {
		s.recordFailure(user.Username, "inactive")
		return nil, domain.ErrInvalidCredentials
	}

	result, err := s.issue(user)
	if err != nil {
		return nil, err
	}
	s.audit.Record(domain.AuthEvent{Kind: domain.EventLoginSucceeded, Username: user.Username, At: s.now()})
	s.log.Info().Str("username", user.Username).Str("role", string(user.Role)).Msg("login succeeded")
	return result, nil
}

// Register creates a USER credential and issues a token for it. Both
// uniqueness checks always run so the conflict lists every colliding field.
func (s *authService) Register(ctx context.Context, in ports.RegisterInput) (*ports.AuthResult, error) {
	username := strings.TrimSpace(in.Username)
	email := strings.ToLower(strings.TrimSpace(in.Email))
	if username == "" || email == "" || in.Password == "" {
		return nil, domain.InvalidInput("username, email and password are required")
	}

	if err := checkUnique(ctx, s.store, username, email); err != nil {
		if errors.Is(err, domain.ErrDuplicateIdentifier) {
			s.audit.Record(domain.AuthEvent{
				Kind: domain.EventRegisterConflict, Username: username, At: s.now(), Detail: err.Error(),
			})
		}
		return nil, err
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, fmt.Errorf("register: %w", err)
	}

	now := s.now()
	user := &domain.User{
		ID:           uuid.NewString(),
		Username:     username,
		Email:        email,
		PasswordHash: hash,
		Role:         domain.RoleUser,
		Active:       true,
		FirstName:    strings.TrimSpace(in.FirstName),
		LastName:     strings.TrimSpace(in.LastName),
		PhoneNumber:  strings.TrimSpace(in.PhoneNumber),
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	saved, err := s.store.Save(ctx, user)
	if err != nil {
		if errors.Is(err, domain.ErrDuplicateIdentifier) {
			return nil, err
		}
		s.log.Error().Err(err).Str("username", username).Msg("save credential failed")
		return nil, domain.TemporaryFailure(err)
	}

	result, err := s.issue(saved)
	if err != nil {
		return nil, err
	}
	s.audit.Record(domain.AuthEvent{Kind: domain.EventRegistered, Username: saved.Username, At: now})
	s.log.Info().Str("username", saved.Username).Msg("user registered")
	return result, nil
}

// lookup resolves the identifier as a username and, when it looks like an
// email, also as an email. Both queries run for an email-shaped identifier
// whatever the first one finds, so a hit and a miss cost the same round-trips.
// A username match wins. A miss returns (nil, nil).
func (s *authService) lookup(ctx context.Context, identifier string) (*domain.User, error) {
	byName, err := s.store.FindByUsername(ctx, identifier)
	if err != nil && !errors.Is(err, domain.ErrUserNotFound) {
		return nil, err
	}
	if !strings.Contains(identifier, "@") {
		return byName, nil
	}

	byEmail, err := s.store.FindByEmail(ctx, strings.ToLower(identifier))
	if err != nil && !errors.Is(err, domain.ErrUserNotFound) {
		return nil, err
	}
	if byName != nil {
		return byName, nil
	}
	return byEmail, nil
}

func (s *authService) issue(user *domain.User) (*ports.AuthResult, error) {
	tok, err := s.codec.Issue(user.Principal(), s.tokenTTL)
	if err != nil {
		return nil, fmt.Errorf("issue token: %w", err)
	}
	return &ports.AuthResult{Token: tok.Token, ExpiresAt: tok.ExpiresAt, User: user.Sanitized()}, nil
}

func (s *authService) recordFailure(username, reason string) {
	s.audit.Record(domain.AuthEvent{Kind: domain.EventLoginFailed, Username: username, At: s.now(), Detail: reason})
	s.log.Debug().Str("username", username).Str("reason", reason).Msg("login rejected")
}

// checkUnique evaluates both identifier checks and reports every collision.
func checkUnique(ctx context.Context, store ports.CredentialStore, username, email string) error {
	usernameTaken, err := store.ExistsByUsername(ctx, username)
	if err != nil {
		return domain.TemporaryFailure(err)
	}
	emailTaken, err := store.ExistsByEmail(ctx, email)
	if err != nil {
		return domain.TemporaryFailure(err)
	}

	var fields []string
	if usernameTaken {
		fields = append(fields, "username")
	}
	if emailTaken {
		fields = append(fields, "email")
	}
	if len(fields) > 0 {
		return &domain.DuplicateIdentifierError{Fields: fields}
	}
	return nil
}

type discardAudit struct{}

func (discardAudit) Record(domain.AuthEvent) {}
