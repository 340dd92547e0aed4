package upload

import (
	"context"
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/bv-saas/web/internal/models"
)

// MockUploader accepts every file after a fixed delay without transferring it.
type MockUploader struct {
	delay  time.Duration
	clock  clockwork.Clock
	logger log.Logger
}

// NewMockUploader creates a mock uploader that completes after delay.
func NewMockUploader(delay time.Duration, clock clockwork.Clock, logger log.Logger) *MockUploader {
	if logger == nil {
		logger = log.NewNopLogger()
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &MockUploader{
		delay:  delay,
		clock:  clock,
		logger: log.With(logger, "component", "mock_uploader"),
	}
}

// Delay returns the fixed completion delay.
func (m *MockUploader) Delay() time.Duration {
	return m.delay
}

// Upload waits for the configured delay, then returns a receipt.
func (m *MockUploader) Upload(ctx context.Context, file *models.FileRef) (*models.UploadReceipt, error) {
	if file == nil {
		return nil, &Error{Kind: KindSelectionRequired, Op: "mock upload", Err: ErrSelectionRequired}
	}

	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("mock upload: %w", ctx.Err())
	case <-m.clock.After(m.delay):
	}

	receipt := &models.UploadReceipt{
		ID:         uuid.New().String(),
		Name:       file.Name,
		Size:       file.Size,
		ReceivedAt: m.clock.Now().UTC(),
	}

	level.Debug(m.logger).Log(
		"msg", "mock upload accepted",
		"receipt", receipt.ID,
		"file", file.Name,
		"size", humanize.Bytes(uint64(max(file.Size, 0))),
	)

	return receipt, nil
}
