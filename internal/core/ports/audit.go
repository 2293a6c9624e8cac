package ports

import (
	"context"

	"github.com/dreamhome/auth-gateway/internal/core/domain"
)

// AuditSink accepts authentication events. Record must not block the caller.
type AuditSink interface {
	Record(event domain.AuthEvent)
}

// AuditRepository persists audit events.
type AuditRepository interface {
	InsertAuthEvent(ctx context.Context, event domain.AuthEvent) error
}
