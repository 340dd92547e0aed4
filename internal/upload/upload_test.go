package upload

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-kit/log"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bv-saas/web/internal/models"
)

func testFile() *models.FileRef {
	return &models.FileRef{Name: "hello.txt", Size: 5, ContentType: "text/plain", Data: []byte("hello")}
}

func TestMockUploader_CompletesAfterDelay(t *testing.T) {
	clock := clockwork.NewFakeClock()
	u := NewMockUploader(DefaultMockDelay, clock, nil)

	type result struct {
		receipt *models.UploadReceipt
		err     error
	}
	done := make(chan result, 1)
	go func() {
		r, err := u.Upload(context.Background(), testFile())
		done <- result{r, err}
	}()

	clock.BlockUntil(1)
	clock.Advance(DefaultMockDelay - time.Millisecond)
	select {
	case <-done:
		t.Fatal("upload finished before the delay elapsed")
	default:
	}

	clock.Advance(time.Millisecond)
	res := <-done
	require.NoError(t, res.err)
	assert.NotEmpty(t, res.receipt.ID)
	assert.Equal(t, "hello.txt", res.receipt.Name)
	assert.Equal(t, int64(5), res.receipt.Size)
}

func TestMockUploader_Cancelled(t *testing.T) {
	clock := clockwork.NewFakeClock()
	u := NewMockUploader(DefaultMockDelay, clock, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := u.Upload(ctx, testFile())
	assert.ErrorIs(t, err, context.Canceled)
}

func TestMockUploader_NoFile(t *testing.T) {
	u := NewMockUploader(DefaultMockDelay, clockwork.NewFakeClock(), nil)

	_, err := u.Upload(context.Background(), nil)
	assert.ErrorIs(t, err, ErrSelectionRequired)
	assert.Equal(t, KindSelectionRequired, KindOf(err))
}

func TestMockUploader_NilClockUsesRealClock(t *testing.T) {
	u := NewMockUploader(time.Millisecond, nil, nil)

	receipt, err := u.Upload(context.Background(), testFile())
	require.NoError(t, err)
	assert.Equal(t, "hello.txt", receipt.Name)
}

func TestHTTPUploader_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, UploadsPath, r.URL.Path)

		f, fh, err := r.FormFile("file")
		if !assert.NoError(t, err) {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		defer f.Close()
		data, _ := io.ReadAll(f)
		assert.Equal(t, "hello", string(data))

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(models.UploadReceipt{ID: "r-1", Name: fh.Filename, Size: int64(len(data))})
	}))
	defer srv.Close()

	u := NewHTTPUploader(srv.URL+"/", srv.Client(), log.NewNopLogger())
	assert.Equal(t, srv.URL+UploadsPath, u.Endpoint())

	receipt, err := u.Upload(context.Background(), testFile())
	require.NoError(t, err)
	assert.Equal(t, "r-1", receipt.ID)
	assert.Equal(t, "hello.txt", receipt.Name)
	assert.Equal(t, int64(5), receipt.Size)
}

func TestHTTPUploader_ErrorKinds(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		wantKind Kind
	}{
		{name: "rejected", status: http.StatusBadRequest, body: "unsupported file type", wantKind: KindValidation},
		{name: "too large", status: http.StatusRequestEntityTooLarge, wantKind: KindValidation},
		{name: "server error", status: http.StatusInternalServerError, wantKind: KindNetwork},
		{name: "bad gateway", status: http.StatusBadGateway, wantKind: KindNetwork},
		{name: "garbage receipt", status: http.StatusOK, body: "not json", wantKind: KindNetwork},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				fmt.Fprint(w, tt.body)
			}))
			defer srv.Close()

			u := NewHTTPUploader(srv.URL, srv.Client(), nil)
			_, err := u.Upload(context.Background(), testFile())
			require.Error(t, err)
			assert.Equal(t, tt.wantKind, KindOf(err))
			if tt.body != "" && tt.status >= 400 {
				assert.Contains(t, err.Error(), tt.body)
			}
		})
	}
}

func TestHTTPUploader_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	u := NewHTTPUploader(url, &http.Client{Timeout: time.Second}, nil)
	_, err := u.Upload(context.Background(), testFile())
	require.Error(t, err)
	assert.Equal(t, KindNetwork, KindOf(err))
}

func TestHTTPUploader_Cancelled(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	ctx, cancel := context.WithCancel(context.Background())
	u := NewHTTPUploader(srv.URL, srv.Client(), nil)

	errCh := make(chan error, 1)
	go func() {
		_, err := u.Upload(ctx, testFile())
		errCh <- err
	}()
	cancel()

	err := <-errCh
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, KindUnknown, KindOf(err))
}

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		opts    Options
		want    interface{}
		wantErr bool
	}{
		{name: "default is mock", opts: Options{}, want: &MockUploader{}},
		{name: "mock", opts: Options{Mode: ModeMock, MockDelay: time.Second}, want: &MockUploader{}},
		{name: "http", opts: Options{Mode: ModeHTTP, BaseURL: "http://api.local"}, want: &HTTPUploader{}},
		{name: "http without url", opts: Options{Mode: ModeHTTP}, wantErr: true},
		{name: "unknown mode", opts: Options{Mode: "ftp"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u, err := New(tt.opts, log.NewNopLogger())
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.IsType(t, tt.want, u)
		})
	}
}

func TestNew_MockDelayDefaults(t *testing.T) {
	u, err := New(Options{Mode: ModeMock}, nil)
	require.NoError(t, err)
	assert.Equal(t, DefaultMockDelay, u.(*MockUploader).Delay())
}

func TestError(t *testing.T) {
	cause := errors.New("dial tcp: refused")
	err := fmt.Errorf("wrapped: %w", &Error{Kind: KindNetwork, Op: "http upload", Err: cause})

	assert.ErrorIs(t, err, cause)
	assert.Equal(t, KindNetwork, KindOf(err))
	assert.Equal(t, "wrapped: http upload: network failure: dial tcp: refused", err.Error())
	assert.Equal(t, "op: validation failed", (&Error{Kind: KindValidation, Op: "op"}).Error())
	assert.Equal(t, KindUnknown, KindOf(cause))
}
