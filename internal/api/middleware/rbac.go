package middleware

import (
	"github.com/labstack/echo/v4"

	"github.com/dreamhome/auth-gateway/internal/api/metrics"
	"github.com/dreamhome/auth-gateway/internal/core/domain"
	"github.com/dreamhome/auth-gateway/internal/core/policy"
)

// Authorize evaluates the access policy for the request. It runs after
// Authenticate, which leaves no principal on public routes.
func Authorize(pol *policy.Policy) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()

			var principal *domain.Principal
			if p, ok := domain.PrincipalFrom(req.Context()); ok {
				principal = &p
			}

			switch decision := pol.Authorize(req.Method, req.URL.Path, principal); decision {
			case domain.Allow:
				if principal != nil {
					metrics.GateDecisionsTotal.WithLabelValues("allow").Inc()
				}
				return next(c)
			default:
				metrics.GateDecisionsTotal.WithLabelValues(decision.String()).Inc()
				return decision.Err()
			}
		}
	}
}

// RequireRole guards a route group explicitly. The principal passes when its
// role satisfies any of roles; ADMIN satisfies USER.
func RequireRole(roles ...domain.Role) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			var principal *domain.Principal
			if p, ok := domain.PrincipalFrom(c.Request().Context()); ok {
				principal = &p
			}
			if err := policy.Require(principal, roles...); err != nil {
				return err
			}
			return next(c)
		}
	}
}
