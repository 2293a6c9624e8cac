package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrInvalidCredentials  = errors.New("invalid credentials")
	ErrDuplicateIdentifier = errors.New("duplicate identifier")
	ErrUnauthenticated     = errors.New("authentication required")
	ErrInvalidToken        = errors.New("invalid token")
	ErrForbidden           = errors.New("access forbidden")
	ErrTemporaryFailure    = errors.New("temporary failure")
	ErrUserNotFound        = errors.New("user not found")
	ErrInvalidInput        = errors.New("invalid input")
	ErrRateLimited         = errors.New("too many requests")
)

// DuplicateIdentifierError lists every identifier field that already exists.
type DuplicateIdentifierError struct {
	Fields []string
}

func (e *DuplicateIdentifierError) Error() string {
	return fmt.Sprintf("duplicate identifier: %s", strings.Join(e.Fields, ", "))
}

func (e *DuplicateIdentifierError) Unwrap() error { return ErrDuplicateIdentifier }

// TemporaryFailure marks err as a collaborator outage the client may retry.
func TemporaryFailure(err error) error {
	if err == nil || errors.Is(err, ErrTemporaryFailure) {
		return err
	}
	return fmt.Errorf("%w: %v", ErrTemporaryFailure, err)
}

// InvalidInput wraps a field-level validation message.
func InvalidInput(msg string) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, msg)
}
