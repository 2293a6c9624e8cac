package middleware

import (
	"errors"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/dreamhome/auth-gateway/internal/api/metrics"
	"github.com/dreamhome/auth-gateway/internal/core/domain"
	"github.com/dreamhome/auth-gateway/internal/core/policy"
	"github.com/dreamhome/auth-gateway/internal/core/ports"
)

// PrincipalKey is the echo.Context key the gate stores the principal under,
// next to the request context value.
const PrincipalKey = "principal"

// Authenticate is the request gate. Routes the policy marks public pass
// through untouched. Everything else must carry "Authorization: Bearer <token>";
// a missing or malformed header yields ErrUnauthenticated and a token the
// codec rejects yields ErrInvalidToken. The rejection reason is logged, never
// returned.
func Authenticate(codec ports.TokenCodec, pol *policy.Policy, log zerolog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			if pol.IsPublic(req.Method, req.URL.Path) {
				metrics.GateDecisionsTotal.WithLabelValues("public").Inc()
				return next(c)
			}

			raw, ok := bearerToken(req.Header.Get(echo.HeaderAuthorization))
			if !ok {
				metrics.GateDecisionsTotal.WithLabelValues("unauthenticated").Inc()
				return domain.ErrUnauthenticated
			}

			principal, err := codec.Validate(raw)
			if err != nil {
				reason := rejectReason(err)
				metrics.GateDecisionsTotal.WithLabelValues("invalid_token").Inc()
				metrics.TokenRejectionsTotal.WithLabelValues(reason).Inc()
				log.Debug().
					Str("reason", reason).
					Str("method", req.Method).
					Str("path", req.URL.Path).
					Msg("bearer token rejected")
				return domain.ErrInvalidToken
			}

			c.SetRequest(req.WithContext(domain.WithPrincipal(req.Context(), principal)))
			c.Set(PrincipalKey, principal)
			return next(c)
		}
	}
}

// bearerToken extracts the token from an Authorization header value.
func bearerToken(header string) (string, bool) {
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return "", false
	}
	token := strings.TrimSpace(parts[1])
	if token == "" || strings.ContainsAny(token, " \t") {
		return "", false
	}
	return token, true
}

func rejectReason(err error) string {
	var reasoned interface{ RejectReason() string }
	if errors.As(err, &reasoned) {
		return reasoned.RejectReason()
	}
	return "invalid"
}
