package handler

import (
	"net/http"
	"runtime"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/dreamhome/auth-gateway/internal/core/domain"
	"github.com/dreamhome/auth-gateway/internal/core/policy"
)

// ProfileHandler serves identity endpoints that read only the token's claims.
type ProfileHandler struct{}

func NewProfileHandler() *ProfileHandler {
	return &ProfileHandler{}
}

// Me returns the authenticated principal.
//
// @Summary      Current principal
// @Tags         user
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  domain.Principal
// @Failure      401  {object}  map[string]string
// @Router       /user/me [get]
func (h *ProfileHandler) Me(c echo.Context) error {
	p, err := currentPrincipal(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, p)
}

// AdminHandler serves operator endpoints.
type AdminHandler struct {
	service string
	version string
	started time.Time
}

func NewAdminHandler(service, version string) *AdminHandler {
	return &AdminHandler{service: service, version: version, started: time.Now().UTC()}
}

type systemInfoResponse struct {
	Service   string    `json:"service"`
	Version   string    `json:"version"`
	GoVersion string    `json:"go_version"`
	StartedAt time.Time `json:"started_at"`
	Uptime    string    `json:"uptime"`
	Viewer    string    `json:"viewer"`
}

// SystemInfo reports build and uptime information.
//
// @Summary      System information
// @Tags         admin
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  systemInfoResponse
// @Failure      401  {object}  map[string]string
// @Failure      403  {object}  map[string]string
// @Router       /admin/system/info [get]
func (h *AdminHandler) SystemInfo(c echo.Context) error {
	p, err := currentPrincipal(c)
	if err != nil {
		return err
	}
	if err := policy.Require(&p, domain.RoleAdmin); err != nil {
		return err
	}

	return c.JSON(http.StatusOK, systemInfoResponse{
		Service:   h.service,
		Version:   h.version,
		GoVersion: runtime.Version(),
		StartedAt: h.started,
		Uptime:    time.Since(h.started).Truncate(time.Second).String(),
		Viewer:    p.Username,
	})
}
