package service

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/dreamhome/auth-gateway/internal/core/domain"
	"github.com/dreamhome/auth-gateway/internal/core/ports"
	"github.com/dreamhome/auth-gateway/internal/infrastructure/security"
)

type fixture struct {
	store  *memStore
	hasher *plainHasher
	codec  *stubCodec
	audit  *recordingAudit
	svc    ports.AuthService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		store:  newMemStore(),
		hasher: &plainHasher{},
		codec:  &stubCodec{},
		audit:  &recordingAudit{},
	}
	svc, err := NewAuthService(f.store, f.hasher, f.codec, f.audit, zerolog.Nop(), time.Hour)
	if err != nil {
		t.Fatalf("NewAuthService: %v", err)
	}
	f.svc = svc
	return f
}

func (f *fixture) seed(username, email, password string, role domain.Role, active bool) {
	f.store.put(&domain.User{
		ID:           "id-" + username,
		Username:     username,
		Email:        email,
		PasswordHash: "hashed:" + password,
		Role:         role,
		Active:       active,
	})
}

func TestAuthService_Register_Success(t *testing.T) {
	f := newFixture(t)

	res, err := f.svc.Register(context.Background(), ports.RegisterInput{
		Username:  "alice",
		Email:     "Alice@Example.com",
		Password:  "pass123",
		FirstName: "Alice",
	})
	if err != nil {
		t.Fatalf("Register returned error: %v", err)
	}
	if res.Token == "" {
		t.Fatalf("expected token")
	}
	if res.User.PasswordHash != "" {
		t.Fatalf("response must not carry the password hash")
	}
	if res.User.Email != "alice@example.com" {
		t.Fatalf("expected normalised email, got %q", res.User.Email)
	}

	stored, err := f.store.FindByUsername(context.Background(), "alice")
	if err != nil {
		t.Fatalf("user not stored: %v", err)
	}
	if stored.PasswordHash == "pass123" {
		t.Fatalf("expected password to be hashed")
	}
	if stored.Role != domain.RoleUser || !stored.Active {
		t.Fatalf("unexpected stored user: %+v", stored)
	}
	if stored.ID == "" {
		t.Fatalf("expected generated id")
	}
	if got := f.codec.issued[0]; got.Role != domain.RoleUser || got.Username != "alice" {
		t.Fatalf("unexpected issued principal: %+v", got)
	}
}

func TestAuthService_Register_AlwaysUserRole(t *testing.T) {
	f := newFixture(t)

	// RegisterInput has no role field; a JSON body carrying "role":"ADMIN"
	// is dropped by the handler before it gets here.
	res, err := f.svc.Register(context.Background(), ports.RegisterInput{
		Username: "mallory", Email: "mallory@x.com", Password: "pw",
	})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if res.User.Role != domain.RoleUser {
		t.Fatalf("expected USER, got %s", res.User.Role)
	}
	stored, _ := f.store.FindByUsername(context.Background(), "mallory")
	if stored.Role != domain.RoleUser {
		t.Fatalf("stored role escalated to %s", stored.Role)
	}
}

func TestAuthService_Register_Validation(t *testing.T) {
	f := newFixture(t)

	inputs := []ports.RegisterInput{
		{Username: "", Email: "a@x.com", Password: "pw"},
		{Username: "a", Email: "", Password: "pw"},
		{Username: "a", Email: "a@x.com", Password: ""},
		{Username: "   ", Email: "a@x.com", Password: "pw"},
	}
	for _, in := range inputs {
		if _, err := f.svc.Register(context.Background(), in); !errors.Is(err, domain.ErrInvalidInput) {
			t.Fatalf("expected ErrInvalidInput for %+v, got %v", in, err)
		}
	}
}

func TestAuthService_Register_Duplicate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first, err := f.svc.Register(ctx, ports.RegisterInput{Username: "bob", Email: "bob@x.com", Password: "pass"})
	if err != nil {
		t.Fatalf("first register: %v", err)
	}

	tests := []struct {
		name   string
		in     ports.RegisterInput
		fields []string
	}{
		{"same username", ports.RegisterInput{Username: "bob", Email: "other@x.com", Password: "p2"}, []string{"username"}},
		{"same email", ports.RegisterInput{Username: "bobby", Email: "BOB@x.com", Password: "p2"}, []string{"email"}},
		{"both", ports.RegisterInput{Username: "bob", Email: "bob@x.com", Password: "p2"}, []string{"username", "email"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.Register(ctx, tt.in)
			if !errors.Is(err, domain.ErrDuplicateIdentifier) {
				t.Fatalf("expected ErrDuplicateIdentifier, got %v", err)
			}
			var dup *domain.DuplicateIdentifierError
			if !errors.As(err, &dup) {
				t.Fatalf("expected DuplicateIdentifierError, got %T", err)
			}
			if !reflect.DeepEqual(dup.Fields, tt.fields) {
				t.Fatalf("expected fields %v, got %v", tt.fields, dup.Fields)
			}
		})
	}

	stored, _ := f.store.FindByUsername(ctx, "bob")
	if stored.ID != first.User.ID || stored.PasswordHash != "hashed:pass" || stored.Email != "bob@x.com" {
		t.Fatalf("first credential was mutated: %+v", stored)
	}
}

func TestAuthService_Register_StoreDown(t *testing.T) {
	f := newFixture(t)
	f.store.fail = errStoreDown

	_, err := f.svc.Register(context.Background(), ports.RegisterInput{Username: "x", Email: "x@x.com", Password: "pw"})
	if !errors.Is(err, domain.ErrTemporaryFailure) {
		t.Fatalf("expected ErrTemporaryFailure, got %v", err)
	}
}

func TestAuthService_Register_SaveRace(t *testing.T) {
	f := newFixture(t)
	f.store.saveErr = &domain.DuplicateIdentifierError{Fields: []string{"email"}}

	_, err := f.svc.Register(context.Background(), ports.RegisterInput{Username: "x", Email: "x@x.com", Password: "pw"})
	if !errors.Is(err, domain.ErrDuplicateIdentifier) {
		t.Fatalf("expected ErrDuplicateIdentifier, got %v", err)
	}
}

func TestAuthService_Login_Success(t *testing.T) {
	f := newFixture(t)
	f.seed("carol", "carol@x.com", "s3cret", domain.RoleAdmin, true)

	res, err := f.svc.Login(context.Background(), ports.LoginInput{Username: "carol", Password: "s3cret"})
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}
	if res.Token == "" || res.User.Username != "carol" {
		t.Fatalf("unexpected result: %+v", res)
	}
	if res.User.PasswordHash != "" {
		t.Fatalf("response must not carry the password hash")
	}
	if got := f.codec.issued[0].Role; got != domain.RoleAdmin {
		t.Fatalf("token role must come from the store, got %s", got)
	}
	if kinds := f.audit.kinds(); len(kinds) != 1 || kinds[0] != domain.EventLoginSucceeded {
		t.Fatalf("unexpected audit trail: %v", kinds)
	}
}

func TestAuthService_Login_ByEmail(t *testing.T) {
	f := newFixture(t)
	f.seed("dave", "dave@x.com", "goodpass", domain.RoleUser, true)

	res, err := f.svc.Login(context.Background(), ports.LoginInput{Username: "Dave@X.com", Password: "goodpass"})
	if err != nil {
		t.Fatalf("login by email failed: %v", err)
	}
	if res.User.Username != "dave" {
		t.Fatalf("unexpected user %q", res.User.Username)
	}
}

func TestAuthService_Login_EmailShapedIdentifierCostsTwoLookups(t *testing.T) {
	f := newFixture(t)
	f.seed("dave", "dave@x.com", "goodpass", domain.RoleUser, true)
	f.seed("ops@x.com", "ops@corp.com", "goodpass", domain.RoleAdmin, true)

	tests := []struct {
		name       string
		identifier string
		wantUser   string
	}{
		{"matched by email", "dave@x.com", "dave"},
		{"matched by username", "ops@x.com", "ops@x.com"},
		{"unknown", "nobody@x.com", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before := f.store.findCalls()
			res, err := f.svc.Login(context.Background(), ports.LoginInput{Username: tt.identifier, Password: "goodpass"})
			if got := f.store.findCalls() - before; got != 2 {
				t.Fatalf("expected 2 store lookups, got %d", got)
			}
			if tt.wantUser == "" {
				if !errors.Is(err, domain.ErrInvalidCredentials) {
					t.Fatalf("expected ErrInvalidCredentials, got %v", err)
				}
				return
			}
			if err != nil || res.User.Username != tt.wantUser {
				t.Fatalf("expected %s, got %+v (%v)", tt.wantUser, res, err)
			}
		})
	}

	before := f.store.findCalls()
	_, _ = f.svc.Login(context.Background(), ports.LoginInput{Username: "dave", Password: "goodpass"})
	if got := f.store.findCalls() - before; got != 1 {
		t.Fatalf("plain usernames need a single lookup, got %d", got)
	}
}

func TestAuthService_Login_UniformFailure(t *testing.T) {
	f := newFixture(t)
	f.seed("erin", "erin@x.com", "right", domain.RoleUser, true)
	f.seed("frank", "frank@x.com", "right", domain.RoleUser, false)

	tests := []struct {
		name string
		in   ports.LoginInput
	}{
		{"unknown user", ports.LoginInput{Username: "nobody", Password: "anything"}},
		{"unknown email", ports.LoginInput{Username: "nobody@x.com", Password: "anything"}},
		{"wrong password", ports.LoginInput{Username: "erin", Password: "wrong"}},
		{"inactive account", ports.LoginInput{Username: "frank", Password: "right"}},
		{"empty identifier", ports.LoginInput{Username: "", Password: "anything"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before := f.hasher.verifyCount()
			_, err := f.svc.Login(context.Background(), tt.in)
			if !errors.Is(err, domain.ErrInvalidCredentials) {
				t.Fatalf("expected ErrInvalidCredentials, got %v", err)
			}
			if got := f.hasher.verifyCount() - before; got != 1 {
				t.Fatalf("expected exactly one hash comparison, got %d", got)
			}
		})
	}
	if len(f.codec.issued) != 0 {
		t.Fatalf("no token may be issued on failure")
	}
}

func TestAuthService_Login_StoreDown(t *testing.T) {
	f := newFixture(t)
	f.store.fail = errStoreDown

	_, err := f.svc.Login(context.Background(), ports.LoginInput{Username: "erin", Password: "x"})
	if !errors.Is(err, domain.ErrTemporaryFailure) {
		t.Fatalf("expected ErrTemporaryFailure, got %v", err)
	}
	if errors.Is(err, domain.ErrInvalidCredentials) {
		t.Fatalf("store outage must not look like bad credentials")
	}
}

func TestAuthService_Login_IssueFailure(t *testing.T) {
	f := newFixture(t)
	f.seed("gina", "gina@x.com", "pw", domain.RoleUser, true)
	f.codec.err = errors.New("signing failed")

	if _, err := f.svc.Login(context.Background(), ports.LoginInput{Username: "gina", Password: "pw"}); err == nil {
		t.Fatalf("expected error")
	}
}

// With real bcrypt the unknown-user path must cost about as much as a wrong
// password, since both run exactly one bcrypt comparison.
func TestAuthService_Login_TimingParity(t *testing.T) {
	if testing.Short() {
		t.Skip("timing test")
	}

	hasher := security.NewBcryptHasher(bcrypt.DefaultCost)
	store := newMemStore()
	hash, err := hasher.Hash("right-password")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	store.put(&domain.User{ID: "1", Username: "real", Email: "real@x.com", PasswordHash: hash, Role: domain.RoleUser, Active: true})

	svc, err := NewAuthService(store, hasher, &stubCodec{}, nil, zerolog.Nop(), time.Hour)
	if err != nil {
		t.Fatalf("NewAuthService: %v", err)
	}

	measure := func(username string) time.Duration {
		const rounds = 5
		var total time.Duration
		for i := 0; i < rounds; i++ {
			start := time.Now()
			_, err := svc.Login(context.Background(), ports.LoginInput{Username: username, Password: "wrong"})
			total += time.Since(start)
			if !errors.Is(err, domain.ErrInvalidCredentials) {
				t.Fatalf("expected ErrInvalidCredentials, got %v", err)
			}
		}
		return total / rounds
	}

	missing := measure("ghost")
	wrong := measure("real")

	ratio := float64(missing) / float64(wrong)
	if ratio < 0.5 || ratio > 2.0 {
		t.Fatalf("timing leak: unknown user %v vs wrong password %v", missing, wrong)
	}
}
