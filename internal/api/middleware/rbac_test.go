package middleware

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/dreamhome/auth-gateway/internal/core/domain"
	"github.com/dreamhome/auth-gateway/internal/core/policy"
)

func withPrincipal(req *http.Request, role domain.Role) *http.Request {
	return req.WithContext(domain.WithPrincipal(req.Context(), domain.Principal{
		UserID: "1", Username: "alice", Role: role,
	}))
}

func TestAuthorize_Scenarios(t *testing.T) {
	tests := []struct {
		name   string
		path   string
		role   domain.Role
		want   error
		called bool
	}{
		{"user at admin route", "/admin/system/info", domain.RoleUser, domain.ErrForbidden, false},
		{"admin at admin route", "/admin/system/info", domain.RoleAdmin, nil, true},
		{"user at user route", "/user/me", domain.RoleUser, nil, true},
		{"admin at user route", "/user/me", domain.RoleAdmin, nil, true},
		{"anonymous at user route", "/user/me", "", domain.ErrUnauthenticated, false},
		{"anonymous at public route", "/properties/search", "", nil, true},
	}

	pol := policy.Default()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := echo.New()
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			if tt.role != "" {
				req = withPrincipal(req, tt.role)
			}
			rec := httptest.NewRecorder()
			c := e.NewContext(req, rec)

			called := false
			err := Authorize(pol)(func(c echo.Context) error {
				called = true
				return c.NoContent(http.StatusOK)
			})(c)

			if tt.want == nil && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if tt.want != nil && !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
			if called != tt.called {
				t.Fatalf("expected called=%v, got %v", tt.called, called)
			}
		})
	}
}

func TestRequireRole_Allows(t *testing.T) {
	e := echo.New()
	req := withPrincipal(httptest.NewRequest(http.MethodGet, "/", nil), domain.RoleAdmin)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	called := false
	handler := RequireRole(domain.RoleUser)(func(c echo.Context) error {
		called = true
		return c.NoContent(http.StatusOK)
	})

	if err := handler(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if !called {
		t.Fatalf("next handler not called")
	}
}

func TestRequireRole_Forbids(t *testing.T) {
	e := echo.New()
	req := withPrincipal(httptest.NewRequest(http.MethodGet, "/", nil), domain.RoleUser)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	handler := RequireRole(domain.RoleAdmin)(func(c echo.Context) error {
		t.Fatalf("should not reach next handler")
		return nil
	})

	if err := handler(c); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
}

func TestRequireRole_Anonymous(t *testing.T) {
	e := echo.New()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())

	err := RequireRole(domain.RoleUser)(func(c echo.Context) error { return nil })(c)
	if !errors.Is(err, domain.ErrUnauthenticated) {
		t.Fatalf("expected ErrUnauthenticated, got %v", err)
	}
}
