package upload

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/go-kit/log"
	"github.com/go-kit/log/level"

	"github.com/bv-saas/web/internal/models"
)

// UploadsPath is the API route files are posted to.
const UploadsPath = "/v1/uploads"

// maxErrorBody bounds how much of a failed response is kept for the error.
const maxErrorBody = 4 * 1024

// HTTPUploader posts files to the uploads API as multipart/form-data.
type HTTPUploader struct {
	endpoint string
	client   *http.Client
	logger   log.Logger
}

// NewHTTPUploader creates an uploader that targets baseURL + UploadsPath.
func NewHTTPUploader(baseURL string, client *http.Client, logger log.Logger) *HTTPUploader {
	if client == nil {
		client = http.DefaultClient
	}
	if logger == nil {
		logger = log.NewNopLogger()
	}
	return &HTTPUploader{
		endpoint: strings.TrimRight(baseURL, "/") + UploadsPath,
		client:   client,
		logger:   log.With(logger, "component", "http_uploader"),
	}
}

// Endpoint returns the full URL files are posted to.
func (u *HTTPUploader) Endpoint() string {
	return u.endpoint
}

// Upload sends the file and decodes the receipt from a 2xx response.
// 4xx responses are validation failures, everything else that goes wrong
// is reported as a network failure.
func (u *HTTPUploader) Upload(ctx context.Context, file *models.FileRef) (*models.UploadReceipt, error) {
	const op = "http upload"

	if file == nil {
		return nil, &Error{Kind: KindSelectionRequired, Op: op, Err: ErrSelectionRequired}
	}

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile("file", file.Name)
	if err != nil {
		return nil, fmt.Errorf("%s: creating form file: %w", op, err)
	}
	if _, err := part.Write(file.Data); err != nil {
		return nil, fmt.Errorf("%s: writing form file: %w", op, err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("%s: closing multipart writer: %w", op, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.endpoint, body)
	if err != nil {
		return nil, fmt.Errorf("%s: building request: %w", op, err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("Accept", "application/json")

	level.Debug(u.logger).Log("msg", "posting file", "endpoint", u.endpoint, "file", file.Name,
		"size", humanize.Bytes(uint64(len(file.Data))))

	resp, err := u.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("%s: %w", op, ctx.Err())
		}
		return nil, &Error{Kind: KindNetwork, Op: op, Err: err}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		return nil, &Error{Kind: KindValidation, Op: op, Err: responseError(resp)}
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return nil, &Error{Kind: KindNetwork, Op: op, Err: responseError(resp)}
	}

	var receipt models.UploadReceipt
	if err := json.NewDecoder(resp.Body).Decode(&receipt); err != nil {
		return nil, &Error{Kind: KindNetwork, Op: op, Err: fmt.Errorf("decoding receipt: %w", err)}
	}

	level.Info(u.logger).Log("msg", "upload accepted", "receipt", receipt.ID, "file", file.Name)

	return &receipt, nil
}

func responseError(resp *http.Response) error {
	msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	text := strings.TrimSpace(string(msg))
	if text == "" {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, text)
}
