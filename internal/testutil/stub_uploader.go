// stub_uploader.go - Scriptable uploader for tests
package testutil

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/bv-saas/web/internal/models"
)

// StubUploader implements upload.Uploader for testing.
// When Release is non-nil each Upload blocks until a value is received from it
// or the context is done.
type StubUploader struct {
	Err     error
	Release chan struct{}

	mu    sync.Mutex
	calls []*models.FileRef
}

// NewStubUploader creates a stub that succeeds immediately.
func NewStubUploader() *StubUploader {
	return &StubUploader{}
}

// NewFailingUploader creates a stub whose uploads fail with err.
func NewFailingUploader(err error) *StubUploader {
	return &StubUploader{Err: err}
}

// NewGatedUploader creates a stub whose uploads wait for Release.
func NewGatedUploader() *StubUploader {
	return &StubUploader{Release: make(chan struct{})}
}

func (s *StubUploader) Upload(ctx context.Context, file *models.FileRef) (*models.UploadReceipt, error) {
	s.mu.Lock()
	s.calls = append(s.calls, file)
	s.mu.Unlock()

	if s.Release != nil {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-s.Release:
		}
	}

	if s.Err != nil {
		return nil, s.Err
	}

	return &models.UploadReceipt{
		ID:         generateTestID(),
		Name:       file.Name,
		Size:       file.Size,
		ReceivedAt: time.Now(),
	}, nil
}

// Calls returns the files passed to Upload so far.
func (s *StubUploader) Calls() []*models.FileRef {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*models.FileRef, len(s.calls))
	copy(out, s.calls)
	return out
}

// StatusRecorder collects snapshots delivered to a widget listener.
type StatusRecorder struct {
	mu        sync.Mutex
	snapshots []models.WidgetSnapshot
}

// Record is a widget.Listener.
func (r *StatusRecorder) Record(s models.WidgetSnapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.snapshots = append(r.snapshots, s)
}

// Statuses returns the status messages in delivery order.
func (r *StatusRecorder) Statuses() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.snapshots))
	for _, s := range r.snapshots {
		out = append(out, s.Status)
	}
	return out
}

// Snapshots returns every recorded snapshot.
func (r *StatusRecorder) Snapshots() []models.WidgetSnapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]models.WidgetSnapshot, len(r.snapshots))
	copy(out, r.snapshots)
	return out
}

// NewFile returns a small in-memory file reference.
func NewFile(name string, data string) *models.FileRef {
	return &models.FileRef{
		Name:        name,
		Size:        int64(len(data)),
		ContentType: "text/plain",
		Data:        []byte(data),
	}
}

func generateTestID() string {
	return "test-receipt-" + uuid.New().String()[:8]
}
