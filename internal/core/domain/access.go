package domain

// Access is the requirement attached to a route pattern.
type Access string

const (
	AccessPublic        Access = "public"
	AccessAuthenticated Access = "authenticated"
	AccessUser          Access = "USER"
	AccessAdmin         Access = "ADMIN"
)

// Decision is the outcome of evaluating a request against the access rules.
type Decision int

const (
	Allow Decision = iota
	DenyUnauthenticated
	DenyForbidden
)

func (d Decision) String() string {
	switch d {
	case Allow:
		return "allow"
	case DenyUnauthenticated:
		return "unauthenticated"
	case DenyForbidden:
		return "forbidden"
	}
	return "unknown"
}

// Err converts a deny decision into its domain error; Allow yields nil.
func (d Decision) Err() error {
	switch d {
	case DenyUnauthenticated:
		return ErrUnauthenticated
	case DenyForbidden:
		return ErrForbidden
	}
	return nil
}
