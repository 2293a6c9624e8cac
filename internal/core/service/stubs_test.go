package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/dreamhome/auth-gateway/internal/core/domain"
	"github.com/dreamhome/auth-gateway/internal/core/ports"
)

var errStoreDown = errors.New("connection refused")

type memStore struct {
	mu    sync.Mutex
	users map[string]*domain.User
	// fail, when set, is returned by every call.
	fail error
	// saveErr, when set, is returned by Save only.
	saveErr error
	// finds counts FindByUsername and FindByEmail calls.
	finds int
}

func newMemStore() *memStore {
	return &memStore{users: make(map[string]*domain.User)}
}

func cloneUser(u *domain.User) *domain.User {
	if u == nil {
		return nil
	}
	clone := *u
	return &clone
}

func (s *memStore) FindByUsername(_ context.Context, username string) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.finds++
	if s.fail != nil {
		return nil, s.fail
	}
	if u, ok := s.users[username]; ok {
		return cloneUser(u), nil
	}
	return nil, domain.ErrUserNotFound
}

func (s *memStore) FindByEmail(_ context.Context, email string) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.finds++
	if s.fail != nil {
		return nil, s.fail
	}
	for _, u := range s.users {
		if u.Email == email {
			return cloneUser(u), nil
		}
	}
	return nil, domain.ErrUserNotFound
}

func (s *memStore) ExistsByUsername(ctx context.Context, username string) (bool, error) {
	_, err := s.FindByUsername(ctx, username)
	if errors.Is(err, domain.ErrUserNotFound) {
		return false, nil
	}
	return err == nil, err
}

func (s *memStore) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	_, err := s.FindByEmail(ctx, email)
	if errors.Is(err, domain.ErrUserNotFound) {
		return false, nil
	}
	return err == nil, err
}

func (s *memStore) Save(_ context.Context, user *domain.User) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail != nil {
		return nil, s.fail
	}
	if s.saveErr != nil {
		return nil, s.saveErr
	}
	if _, exists := s.users[user.Username]; exists {
		return nil, &domain.DuplicateIdentifierError{Fields: []string{"username"}}
	}
	s.users[user.Username] = cloneUser(user)
	return cloneUser(user), nil
}

func (s *memStore) findCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.finds
}

func (s *memStore) put(u *domain.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[u.Username] = cloneUser(u)
}

// plainHasher is a transparent hasher that counts Verify calls.
type plainHasher struct {
	mu       sync.Mutex
	verifies int
	hashes   []string
}

func (h *plainHasher) Hash(plain string) (string, error) {
	return "hashed:" + plain, nil
}

func (h *plainHasher) Verify(plain, hash string) bool {
	h.mu.Lock()
	h.verifies++
	h.hashes = append(h.hashes, hash)
	h.mu.Unlock()
	return hash == "hashed:"+plain
}

func (h *plainHasher) verifyCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.verifies
}

type stubCodec struct {
	issued []domain.Principal
	err    error
}

func (c *stubCodec) Issue(p domain.Principal, ttl time.Duration) (ports.IssuedToken, error) {
	if c.err != nil {
		return ports.IssuedToken{}, c.err
	}
	c.issued = append(c.issued, p)
	now := time.Now().UTC()
	return ports.IssuedToken{
		Token:     strings.Join([]string{"tok", p.Username, string(p.Role)}, "."),
		IssuedAt:  now,
		ExpiresAt: now.Add(ttl),
	}, nil
}

func (c *stubCodec) Validate(string) (domain.Principal, error) {
	return domain.Principal{}, domain.ErrInvalidToken
}

type recordingAudit struct {
	mu     sync.Mutex
	events []domain.AuthEvent
}

func (a *recordingAudit) Record(e domain.AuthEvent) {
	a.mu.Lock()
	a.events = append(a.events, e)
	a.mu.Unlock()
}

func (a *recordingAudit) kinds() []domain.AuthEventKind {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]domain.AuthEventKind, 0, len(a.events))
	for _, e := range a.events {
		out = append(out, e.Kind)
	}
	return out
}
