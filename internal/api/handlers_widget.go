// handlers_widget.go - Upload widget REST handlers
package api

import (
	"errors"
	"io"
	"net/http"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/labstack/echo/v4"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/bv-saas/web/internal/models"
	"github.com/bv-saas/web/internal/widget"
)

// MIMEApplicationMsgpack is the content type of msgpack responses
const MIMEApplicationMsgpack = "application/msgpack"

// WidgetHandlerImpl implements the WidgetHandler interface
type WidgetHandlerImpl struct {
	sessions SessionManager
	logger   log.Logger
}

// NewWidgetHandler creates a new widget handler instance
func NewWidgetHandler(sessions SessionManager, logger log.Logger) WidgetHandler {
	if logger == nil {
		logger = log.NewNopLogger()
	}
	return &WidgetHandlerImpl{
		sessions: sessions,
		logger:   logger,
	}
}

// HandleCreateWidget opens a new widget session
func (h *WidgetHandlerImpl) HandleCreateWidget(c echo.Context) error {
	state := h.sessions.Create()
	return c.JSON(http.StatusCreated, state.Widget.Snapshot())
}

// HandleListWidgets returns all live widgets, most recently used first
func (h *WidgetHandlerImpl) HandleListWidgets(c echo.Context) error {
	return c.JSON(http.StatusOK, h.sessions.List())
}

// HandleGetWidget returns the widget snapshot as JSON
func (h *WidgetHandlerImpl) HandleGetWidget(c echo.Context) error {
	w, err := h.lookup(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, w.Snapshot())
}

// HandleGetWidgetMsgpack returns the widget snapshot in MessagePack format
func (h *WidgetHandlerImpl) HandleGetWidgetMsgpack(c echo.Context) error {
	w, err := h.lookup(c)
	if err != nil {
		return err
	}

	data, err := msgpack.Marshal(w.Snapshot())
	if err != nil {
		return NewInternalError("failed to encode msgpack", err)
	}
	return c.Blob(http.StatusOK, MIMEApplicationMsgpack, data)
}

// HandleSelectFile replaces the widget's selection with the multipart "file"
// part. A request without that part clears the selection.
func (h *WidgetHandlerImpl) HandleSelectFile(c echo.Context) error {
	w, err := h.lookup(c)
	if err != nil {
		return err
	}

	file, err := readFormFile(c, "file")
	if err != nil {
		return err
	}

	w.SelectFile(file)
	if file != nil {
		level.Debug(h.logger).Log("msg", "file selected", "widget", w.ID(), "file", file.Name, "size", file.Size)
	}
	return c.JSON(http.StatusOK, w.Snapshot())
}

// HandleClearFile clears the widget's selection
func (h *WidgetHandlerImpl) HandleClearFile(c echo.Context) error {
	w, err := h.lookup(c)
	if err != nil {
		return err
	}
	w.SelectFile(nil)
	return c.JSON(http.StatusOK, w.Snapshot())
}

// HandleTriggerUpload presses the widget's Upload button. Responds 202 when an
// upload was started and 200 with the unchanged snapshot when nothing is selected.
func (h *WidgetHandlerImpl) HandleTriggerUpload(c echo.Context) error {
	w, err := h.lookup(c)
	if err != nil {
		return err
	}

	if !w.TriggerUpload() {
		if w.Closed() {
			return errWidgetClosed(w.ID())
		}
		return c.JSON(http.StatusOK, w.Snapshot())
	}
	return c.JSON(http.StatusAccepted, w.Snapshot())
}

// HandleDeleteWidget tears the widget down and ends its session
func (h *WidgetHandlerImpl) HandleDeleteWidget(c echo.Context) error {
	id := c.Param("id")
	if id == "" {
		return NewValidationError("id")
	}
	if !h.sessions.Remove(id) {
		return NewNotFoundError("widget", id)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *WidgetHandlerImpl) lookup(c echo.Context) (*widget.Widget, error) {
	id := c.Param("id")
	if id == "" {
		return nil, NewValidationError("id")
	}
	w, ok := h.sessions.Get(id)
	if !ok {
		return nil, NewNotFoundError("widget", id)
	}
	if w.Closed() {
		return nil, errWidgetClosed(id)
	}
	return w, nil
}

func errWidgetClosed(id string) *APIError {
	return NewConflictError("widget has been closed: " + id)
}

// readFormFile reads a multipart file part fully into memory. It returns nil
// without error when the request carries no such part.
func readFormFile(c echo.Context, field string) (*models.FileRef, error) {
	fh, err := c.FormFile(field)
	if errors.Is(err, http.ErrMissingFile) || errors.Is(err, http.ErrNotMultipart) {
		return nil, nil
	}
	if err != nil {
		return nil, NewBadRequestError("invalid multipart body", err)
	}

	src, err := fh.Open()
	if err != nil {
		return nil, NewInternalError("failed to open uploaded file", err)
	}
	defer src.Close()

	data, err := io.ReadAll(src)
	if err != nil {
		return nil, NewBadRequestError("failed to read uploaded file", err)
	}

	return &models.FileRef{
		Name:        fh.Filename,
		Size:        int64(len(data)),
		ContentType: fh.Header.Get(echo.HeaderContentType),
		Data:        data,
	}, nil
}
