// interfaces.go - Handler interface definitions for clean separation of concerns
package api

import (
	"github.com/labstack/echo/v4"

	"github.com/bv-saas/web/internal/models"
	"github.com/bv-saas/web/internal/session"
	"github.com/bv-saas/web/internal/widget"
)

// HealthHandler handles health check operations
type HealthHandler interface {
	HandleHealth(c echo.Context) error
	HandleHealthz(c echo.Context) error
}

// WidgetHandler exposes upload widget operations over REST
type WidgetHandler interface {
	HandleCreateWidget(c echo.Context) error
	HandleListWidgets(c echo.Context) error
	HandleGetWidget(c echo.Context) error
	HandleGetWidgetMsgpack(c echo.Context) error
	HandleSelectFile(c echo.Context) error
	HandleClearFile(c echo.Context) error
	HandleTriggerUpload(c echo.Context) error
	HandleDeleteWidget(c echo.Context) error
}

// UploadsHandler receives files posted to the uploads API
type UploadsHandler interface {
	HandleReceiveUpload(c echo.Context) error
}

// SocketHandler drives an upload widget over a websocket
type SocketHandler interface {
	HandleWebSocket(c echo.Context) error
}

// SessionManager defines the widget session operations the handlers need.
// This allows mocking in tests
type SessionManager interface {
	Create() *session.State
	Get(id string) (*widget.Widget, bool)
	Touch(id string) bool
	Attach(id string) (release func(), ok bool)
	Remove(id string) bool
	List() []models.WidgetSnapshot
}
