package web

import (
	"io/fs"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHasEmbeddedFiles(t *testing.T) {
	assert.True(t, HasEmbeddedFiles())
}

func TestGetFileSystem(t *testing.T) {
	staticFS, err := GetFileSystem()
	require.NoError(t, err)

	content, err := fs.ReadFile(staticFS, "index.html")
	require.NoError(t, err)
	page := string(content)
	assert.Contains(t, page, "<title>BV SaaS</title>")
	assert.Contains(t, page, `type="file"`)
	assert.Contains(t, page, ">Upload</button>")
	assert.Contains(t, page, `<p id="msg"></p>`)

	_, err = fs.ReadFile(staticFS, "missing.css")
	assert.Error(t, err)
}

func TestRegisterStaticRoutes(t *testing.T) {
	e := echo.New()
	e.GET("/api/health", func(c echo.Context) error {
		return c.String(http.StatusOK, "api")
	})
	require.NoError(t, RegisterStaticRoutes(e))

	tests := []struct {
		name     string
		path     string
		wantBody string
		wantType string
	}{
		{name: "root serves page", path: "/", wantBody: "BV SaaS", wantType: "text/html"},
		{name: "script asset", path: "/app.js", wantBody: "/api/ws/widget", wantType: "javascript"},
		{name: "unknown path falls back to page", path: "/settings/profile", wantBody: "BV SaaS", wantType: "text/html"},
		{name: "api routes win", path: "/api/health", wantBody: "api", wantType: "text/plain"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			rec := httptest.NewRecorder()
			e.ServeHTTP(rec, req)

			assert.Equal(t, http.StatusOK, rec.Code)
			assert.Contains(t, rec.Body.String(), tt.wantBody)
			assert.Contains(t, rec.Header().Get(echo.HeaderContentType), tt.wantType)
		})
	}
}

func TestPageScript_SendsMetadataOverSocket(t *testing.T) {
	staticFS, err := GetFileSystem()
	require.NoError(t, err)

	script, err := fs.ReadFile(staticFS, "app.js")
	require.NoError(t, err)

	// File contents go through the REST endpoint, never the websocket.
	assert.NotContains(t, string(script), "readAsDataURL")
	assert.Contains(t, string(script), `method: "PUT"`)
	assert.Contains(t, string(script), `"/file"`)
}
