package handler

import (
	"github.com/labstack/echo/v4"

	"github.com/dreamhome/auth-gateway/internal/core/domain"
)

// currentPrincipal returns the caller resolved by the auth middleware.
// Its absence on a protected route means the middleware did not run, which
// is reported as ErrUnauthenticated.
func currentPrincipal(c echo.Context) (domain.Principal, error) {
	p, ok := domain.PrincipalFrom(c.Request().Context())
	if !ok {
		return domain.Principal{}, domain.ErrUnauthenticated
	}
	return p, nil
}

// bindAndValidate decodes the JSON body into req and runs the struct
// validator. Both failures surface as ErrInvalidInput.
func bindAndValidate(c echo.Context, req any) error {
	if err := c.Bind(req); err != nil {
		return domain.InvalidInput("invalid payload")
	}
	if err := c.Validate(req); err != nil {
		return domain.InvalidInput(err.Error())
	}
	return nil
}
