package mongo

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/dreamhome/auth-gateway/internal/core/domain"
	"github.com/dreamhome/auth-gateway/internal/core/ports"
)

const (
	usersCollection = "users"
	usernameIndex   = "uniq_username"
	emailIndex      = "uniq_email"
)

// CredentialStore implements ports.CredentialStore using MongoDB. Uniqueness
// is enforced by the indexes created in EnsureIndexes.
type CredentialStore struct {
	coll *mongo.Collection
}

var _ ports.CredentialStore = (*CredentialStore)(nil)

func NewCredentialStore(db *mongo.Database) *CredentialStore {
	return &CredentialStore{coll: db.Collection(usersCollection)}
}

type userDocument struct {
	ID           string    `bson:"_id"`
	Username     string    `bson:"username"`
	Email        string    `bson:"email"`
	PasswordHash string    `bson:"password_hash"`
	Role         string    `bson:"role"`
	Active       bool      `bson:"active"`
	FirstName    string    `bson:"first_name,omitempty"`
	LastName     string    `bson:"last_name,omitempty"`
	PhoneNumber  string    `bson:"phone_number,omitempty"`
	CreatedAt    time.Time `bson:"created_at"`
	UpdatedAt    time.Time `bson:"updated_at"`
}

func toDocument(u *domain.User) userDocument {
	return userDocument{
		ID:           u.ID,
		Username:     u.Username,
		Email:        u.Email,
		PasswordHash: u.PasswordHash,
		Role:         string(u.Role),
		Active:       u.Active,
		FirstName:    u.FirstName,
		LastName:     u.LastName,
		PhoneNumber:  u.PhoneNumber,
		CreatedAt:    u.CreatedAt.UTC(),
		UpdatedAt:    u.UpdatedAt.UTC(),
	}
}

// toDomain maps a stored document back. A role outside the enum is kept
// verbatim; the token codec refuses to issue for it.
func (d userDocument) toDomain() *domain.User {
	return &domain.User{
		ID:           d.ID,
		Username:     d.Username,
		Email:        d.Email,
		PasswordHash: d.PasswordHash,
		Role:         domain.Role(d.Role),
		Active:       d.Active,
		FirstName:    d.FirstName,
		LastName:     d.LastName,
		PhoneNumber:  d.PhoneNumber,
		CreatedAt:    d.CreatedAt.UTC(),
		UpdatedAt:    d.UpdatedAt.UTC(),
	}
}

func (s *CredentialStore) FindByUsername(ctx context.Context, username string) (*domain.User, error) {
	return s.findOne(ctx, bson.M{"username": username})
}

func (s *CredentialStore) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	return s.findOne(ctx, bson.M{"email": email})
}

func (s *CredentialStore) ExistsByUsername(ctx context.Context, username string) (bool, error) {
	return s.exists(ctx, bson.M{"username": username})
}

func (s *CredentialStore) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	return s.exists(ctx, bson.M{"email": email})
}

// Save inserts a new credential. A unique index violation is reported as a
// DuplicateIdentifierError naming the colliding field.
func (s *CredentialStore) Save(ctx context.Context, user *domain.User) (*domain.User, error) {
	if _, err := s.coll.InsertOne(ctx, toDocument(user)); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, &domain.DuplicateIdentifierError{Fields: duplicateFields(err)}
		}
		return nil, fmt.Errorf("insert user: %w", err)
	}
	saved := *user
	return &saved, nil
}

func (s *CredentialStore) findOne(ctx context.Context, filter bson.M) (*domain.User, error) {
	var doc userDocument
	if err := s.coll.FindOne(ctx, filter).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrUserNotFound
		}
		return nil, fmt.Errorf("find user: %w", err)
	}
	return doc.toDomain(), nil
}

func (s *CredentialStore) exists(ctx context.Context, filter bson.M) (bool, error) {
	n, err := s.coll.CountDocuments(ctx, filter, options.Count().SetLimit(1))
	if err != nil {
		return false, fmt.Errorf("count users: %w", err)
	}
	return n > 0, nil
}

// duplicateFields inspects the server message for the violated index.
func duplicateFields(err error) []string {
	var fields []string
	var we mongo.WriteException
	if errors.As(err, &we) {
		for _, e := range we.WriteErrors {
			fields = appendIndexField(fields, e.Message)
		}
	}
	if len(fields) == 0 {
		fields = appendIndexField(fields, err.Error())
	}
	if len(fields) == 0 {
		fields = []string{"username"}
	}
	return fields
}

func appendIndexField(fields []string, msg string) []string {
	switch {
	case strings.Contains(msg, usernameIndex):
		return append(fields, "username")
	case strings.Contains(msg, emailIndex):
		return append(fields, "email")
	}
	return fields
}
