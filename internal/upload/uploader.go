// Package upload provides the collaborators an upload widget hands its
// selected file to: a mock that always succeeds after a fixed delay, and an
// HTTP client for the /v1/uploads API.
package upload

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-kit/log"
	"github.com/jonboulle/clockwork"

	"github.com/bv-saas/web/internal/models"
)

// Uploader transfers a selected file and reports the outcome.
type Uploader interface {
	Upload(ctx context.Context, file *models.FileRef) (*models.UploadReceipt, error)
}

// Supported uploader modes.
const (
	ModeMock = "mock"
	ModeHTTP = "http"
)

// DefaultMockDelay is how long the mock uploader takes to "finish".
const DefaultMockDelay = 600 * time.Millisecond

// Options selects and tunes the uploader built by New.
type Options struct {
	Mode      string
	BaseURL   string
	MockDelay time.Duration
	Timeout   time.Duration
	Clock     clockwork.Clock
}

// New builds the uploader described by opts.
func New(opts Options, logger log.Logger) (Uploader, error) {
	switch opts.Mode {
	case "", ModeMock:
		delay := opts.MockDelay
		if delay <= 0 {
			delay = DefaultMockDelay
		}
		clock := opts.Clock
		if clock == nil {
			clock = clockwork.NewRealClock()
		}
		return NewMockUploader(delay, clock, logger), nil
	case ModeHTTP:
		if opts.BaseURL == "" {
			return nil, fmt.Errorf("http uploader requires a base URL")
		}
		client := &http.Client{Timeout: opts.Timeout}
		return NewHTTPUploader(opts.BaseURL, client, logger), nil
	default:
		return nil, fmt.Errorf("unknown uploader mode: %q", opts.Mode)
	}
}
