package domain

import "time"

// AuthEventKind names an audited authentication outcome.
type AuthEventKind string

const (
	EventLoginSucceeded   AuthEventKind = "login_succeeded"
	EventLoginFailed      AuthEventKind = "login_failed"
	EventRegistered       AuthEventKind = "registered"
	EventRegisterConflict AuthEventKind = "register_conflict"
	EventAccountSeeded    AuthEventKind = "account_seeded"
)

// AuthEvent is one entry of the authentication audit trail. Detail never
// carries secrets.
type AuthEvent struct {
	Kind     AuthEventKind
	Username string
	At       time.Time
	Detail   string
}
