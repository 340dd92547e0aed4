// Package widget implements the upload widget: a file selection, a status
// message, and the idle -> uploading -> completed cycle driven by an
// injected uploader.
package widget

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/bv-saas/web/internal/models"
	"github.com/bv-saas/web/internal/upload"
)

// Listener receives a snapshot every time the status message is set.
// Listeners are called one at a time and must not call back into the widget.
type Listener func(models.WidgetSnapshot)

// Option configures a Widget.
type Option func(*Widget)

// WithID sets the widget ID instead of generating one.
func WithID(id string) Option {
	return func(w *Widget) { w.id = id }
}

// WithLogger sets the logger.
func WithLogger(logger log.Logger) Option {
	return func(w *Widget) { w.logger = logger }
}

// WithListener subscribes l for the lifetime of the widget.
func WithListener(l Listener) Option {
	return func(w *Widget) { w.addListener(l) }
}

// WithClock sets the clock used for snapshot timestamps.
func WithClock(clock clockwork.Clock) Option {
	return func(w *Widget) { w.clock = clock }
}

// Widget owns one file selection and one status message.
type Widget struct {
	id       string
	uploader upload.Uploader
	logger   log.Logger
	clock    clockwork.Clock

	mu        sync.Mutex
	file      *models.FileRef
	status    string
	state     models.WidgetState
	updatedAt time.Time
	pending   int
	closed    bool
	listeners map[int]Listener
	nextSub   int

	// notifyMu keeps listener deliveries in the order the status was set.
	notifyMu sync.Mutex

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates an idle widget with no file and an empty status.
func New(uploader upload.Uploader, opts ...Option) *Widget {
	ctx, cancel := context.WithCancel(context.Background())
	w := &Widget{
		id:        uuid.New().String(),
		uploader:  uploader,
		logger:    log.NewNopLogger(),
		clock:     clockwork.NewRealClock(),
		status:    StatusIdle,
		state:     models.WidgetStateIdle,
		listeners: make(map[int]Listener),
		ctx:       ctx,
		cancel:    cancel,
	}
	for _, opt := range opts {
		opt(w)
	}
	w.logger = log.With(w.logger, "widget", w.id)
	w.updatedAt = w.clock.Now()
	return w
}

// ID returns the widget identifier.
func (w *Widget) ID() string {
	return w.id
}

// Subscribe registers l and returns a function that removes it.
func (w *Widget) Subscribe(l Listener) func() {
	w.mu.Lock()
	id := w.addListener(l)
	w.mu.Unlock()

	return func() {
		w.mu.Lock()
		delete(w.listeners, id)
		w.mu.Unlock()
	}
}

func (w *Widget) addListener(l Listener) int {
	id := w.nextSub
	w.nextSub++
	w.listeners[id] = l
	return id
}

// SelectFile replaces the current selection. nil clears it.
// A pending completion is not affected.
func (w *Widget) SelectFile(file *models.FileRef) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.file = file
}

// SelectedFile returns the current selection, or nil.
func (w *Widget) SelectedFile() *models.FileRef {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.file
}

// Status returns the current status message.
func (w *Widget) Status() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.status
}

// State returns the current state.
func (w *Widget) State() models.WidgetState {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

// Snapshot returns a copy of the widget state.
func (w *Widget) Snapshot() models.WidgetSnapshot {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.snapshotLocked()
}

// TriggerUpload starts an upload of the selected file. Without a selection,
// or once the widget is closed, it does nothing and returns false.
//
// The status becomes "Uploading..." before TriggerUpload returns. Each call
// schedules its own completion; calling again while one is pending does not
// cancel the first.
func (w *Widget) TriggerUpload() bool {
	w.mu.Lock()
	if w.closed || w.file == nil {
		w.mu.Unlock()
		return false
	}

	file := w.file
	w.pending++
	w.wg.Add(1)
	w.setStatusAndNotify(StatusUploading, models.WidgetStateUploading)

	level.Debug(w.logger).Log("msg", "upload triggered", "file", file.Name)

	go w.complete(file)
	return true
}

// complete waits for the uploader and records the outcome.
func (w *Widget) complete(file *models.FileRef) {
	defer w.wg.Done()

	receipt, err := w.uploader.Upload(w.ctx, file)

	w.mu.Lock()
	w.pending--
	if w.closed {
		w.mu.Unlock()
		return
	}

	if err != nil {
		if errors.Is(err, context.Canceled) {
			w.mu.Unlock()
			return
		}
		level.Error(w.logger).Log("msg", "upload failed", "file", file.Name, "err", err)
		w.setStatusAndNotify(failureStatus(err), models.WidgetStateFailed)
		return
	}

	level.Info(w.logger).Log("msg", "upload completed", "file", file.Name, "receipt", receipt.ID)
	w.setStatusAndNotify(StatusCompleted, models.WidgetStateCompleted)
}

// setStatusAndNotify must be called with mu held and releases it.
func (w *Widget) setStatusAndNotify(status string, state models.WidgetState) {
	w.status = status
	w.state = state
	w.updatedAt = w.clock.Now()

	snap := w.snapshotLocked()
	listeners := make([]Listener, 0, len(w.listeners))
	for _, l := range w.listeners {
		listeners = append(listeners, l)
	}

	w.notifyMu.Lock()
	w.mu.Unlock()
	defer w.notifyMu.Unlock()

	for _, l := range listeners {
		l(snap)
	}
}

func (w *Widget) snapshotLocked() models.WidgetSnapshot {
	snap := models.WidgetSnapshot{
		ID:        w.id,
		State:     w.state,
		Status:    w.status,
		HasFile:   w.file != nil,
		Pending:   w.pending,
		UpdatedAt: w.updatedAt,
	}
	if w.file != nil {
		snap.FileName = w.file.Name
	}
	return snap
}

// Wait blocks until every scheduled completion has finished.
func (w *Widget) Wait() {
	w.wg.Wait()
}

// Close tears the widget down. Pending completions are cancelled and no
// status change happens after Close returns. Safe to call more than once.
func (w *Widget) Close() {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return
	}
	w.closed = true
	pending := w.pending
	w.listeners = make(map[int]Listener)
	w.mu.Unlock()

	w.cancel()
	w.wg.Wait()

	if pending > 0 {
		level.Debug(w.logger).Log("msg", "cancelled pending uploads", "count", pending)
	}
}

// Closed reports whether Close has been called.
func (w *Widget) Closed() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.closed
}
