// routes.go - Route registration helpers
// This file provides a clean way to register all API routes
package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-kit/log"
	"github.com/jonboulle/clockwork"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/bv-saas/web/internal/config"
)

// Dependencies holds all handler dependencies
type Dependencies struct {
	Sessions     SessionManager
	Logger       log.Logger
	Clock        clockwork.Clock
	Version      string
	UploaderMode string
	ReadLimit    int64
	// UploadsAPI enables the /v1/uploads receiver
	UploadsAPI bool
}

// Handlers holds all handler instances
type Handlers struct {
	Health  HealthHandler
	Widget  WidgetHandler
	Socket  SocketHandler
	Uploads UploadsHandler
}

// NewHandlers creates all handler instances
func NewHandlers(deps *Dependencies) *Handlers {
	h := &Handlers{
		Health: NewHealthHandler(deps.Version, deps.UploaderMode),
		Widget: NewWidgetHandler(deps.Sessions, deps.Logger),
		Socket: NewWebSocketHandler(deps.Sessions, deps.Logger, deps.ReadLimit),
	}
	if deps.UploadsAPI {
		h.Uploads = NewUploadsHandler(deps.Logger, deps.Clock)
	}
	return h
}

// RegisterRoutes registers all API routes with the Echo instance
func RegisterRoutes(e *echo.Echo, handlers *Handlers) {
	// Health check
	e.GET("/healthz", handlers.Health.HandleHealthz)
	e.GET("/api/health", handlers.Health.HandleHealth)

	// Widget routes
	widgetGroup := e.Group("/api/widgets")
	widgetGroup.POST("", handlers.Widget.HandleCreateWidget)
	widgetGroup.GET("", handlers.Widget.HandleListWidgets)
	widgetGroup.GET("/:id", handlers.Widget.HandleGetWidget)
	widgetGroup.GET("/:id/msgpack", handlers.Widget.HandleGetWidgetMsgpack)
	widgetGroup.PUT("/:id/file", handlers.Widget.HandleSelectFile)
	widgetGroup.DELETE("/:id/file", handlers.Widget.HandleClearFile)
	widgetGroup.POST("/:id/upload", handlers.Widget.HandleTriggerUpload)
	widgetGroup.DELETE("/:id", handlers.Widget.HandleDeleteWidget)

	RegisterWebSocketRoutes(e, handlers)

	if handlers.Uploads != nil {
		e.POST("/v1/uploads", handlers.Uploads.HandleReceiveUpload)
	}
}

// RegisterWebSocketRoutes registers WebSocket routes
func RegisterWebSocketRoutes(e *echo.Echo, handlers *Handlers) {
	e.GET("/api/ws/widget", handlers.Socket.HandleWebSocket)
}

// SetupMiddleware configures common middleware
func SetupMiddleware(e *echo.Echo, cfg *config.AppConfig, logger log.Logger) {
	e.HTTPErrorHandler = NewErrorHandler(logger, cfg.Advanced.LogLevel == "debug")

	e.Use(middleware.LoggerWithConfig(middleware.LoggerConfig{
		Skipper: func(c echo.Context) bool {
			// Skip logging if disabled in config
			if !cfg.Advanced.EnableRequestLogging {
				return true
			}
			path := c.Request().URL.Path
			return path == "/healthz" || path == "/api/health"
		},
	}))

	e.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{
		StackSize: 1024 * 4,
	}))

	e.Use(middleware.TimeoutWithConfig(middleware.TimeoutConfig{
		Timeout:      time.Duration(cfg.Server.ReadTimeout) * time.Second,
		Skipper:      isStreamingRequest,
		ErrorMessage: "Request timeout",
	}))

	// Compression middleware
	if cfg.Server.EnableCompression {
		e.Use(middleware.GzipWithConfig(middleware.GzipConfig{
			Level: cfg.Server.CompressionLevel,
			Skipper: func(c echo.Context) bool {
				return isWebSocketRequest(c)
			},
		}))
	}

	// Body limit middleware
	e.Use(middleware.BodyLimit(cfg.Server.BodyLimit))

	if cfg.Server.EnableCORS {
		e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
			AllowOrigins: allowedOrigins(cfg.Server.AllowOrigins),
			AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
			AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization},
		}))
	}
}

func isWebSocketRequest(c echo.Context) bool {
	return strings.EqualFold(c.Request().Header.Get(echo.HeaderUpgrade), "websocket") ||
		strings.HasPrefix(c.Request().URL.Path, "/api/ws/")
}

// isStreamingRequest reports requests that may legitimately outlive the timeout
func isStreamingRequest(c echo.Context) bool {
	path := c.Request().URL.Path
	return isWebSocketRequest(c) ||
		strings.HasSuffix(path, "/file") ||
		path == "/v1/uploads"
}

func allowedOrigins(list string) []string {
	var origins []string
	for _, o := range strings.Split(list, ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	return origins
}
