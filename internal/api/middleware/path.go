package middleware

import (
	"path"
	"strings"

	"github.com/labstack/echo/v4"
)

// CanonicalPath rewrites the request path to its cleaned form before routing
// so the router and the access policy always see the same path.
func CanonicalPath() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			u := c.Request().URL
			p := u.Path
			if p == "" || !strings.HasPrefix(p, "/") {
				p = "/" + p
			}
			if cleaned := path.Clean(p); cleaned != u.Path {
				u.Path = cleaned
				u.RawPath = ""
			}
			return next(c)
		}
	}
}
