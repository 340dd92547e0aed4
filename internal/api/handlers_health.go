// handlers_health.go - Health check handlers
package api

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// HealthHandlerImpl implements the HealthHandler interface
type HealthHandlerImpl struct {
	version  string
	uploader string
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(version, uploaderMode string) HealthHandler {
	return &HealthHandlerImpl{
		version:  version,
		uploader: uploaderMode,
	}
}

// HandleHealth returns server health status
func (h *HealthHandlerImpl) HandleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]interface{}{
		"status":   "ok",
		"version":  h.version,
		"uploader": h.uploader,
	})
}

// HandleHealthz is the bare liveness probe
func (h *HealthHandlerImpl) HandleHealthz(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}
