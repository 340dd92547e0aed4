// handlers_uploads.go - Stub receiver for the /v1/uploads API
package api

import (
	"io"
	"net/http"

	"github.com/dustin/go-humanize"
	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/labstack/echo/v4"

	"github.com/bv-saas/web/internal/models"
)

// UploadsHandlerImpl implements the UploadsHandler interface.
// It accepts a file, counts its bytes and discards it.
type UploadsHandlerImpl struct {
	logger log.Logger
	clock  clockwork.Clock
}

// NewUploadsHandler creates a new uploads receiver
func NewUploadsHandler(logger log.Logger, clock clockwork.Clock) UploadsHandler {
	if logger == nil {
		logger = log.NewNopLogger()
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &UploadsHandlerImpl{
		logger: log.With(logger, "component", "uploads"),
		clock:  clock,
	}
}

// HandleReceiveUpload accepts the multipart "file" part and returns a receipt
func (h *UploadsHandlerImpl) HandleReceiveUpload(c echo.Context) error {
	fh, err := c.FormFile("file")
	if err != nil {
		return NewBadRequestError("no file provided", err)
	}

	src, err := fh.Open()
	if err != nil {
		return NewInternalError("failed to open uploaded file", err)
	}
	defer src.Close()

	n, err := io.Copy(io.Discard, src)
	if err != nil {
		return NewBadRequestError("failed to read uploaded file", err)
	}

	receipt := models.UploadReceipt{
		ID:         uuid.New().String(),
		Name:       fh.Filename,
		Size:       n,
		ReceivedAt: h.clock.Now().UTC(),
	}

	level.Info(h.logger).Log("msg", "upload received", "file", receipt.Name, "size", humanize.Bytes(uint64(n)), "receipt", receipt.ID)
	return c.JSON(http.StatusCreated, receipt)
}
