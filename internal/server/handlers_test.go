package server

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Tyrowin/nexus-chat-server/internal/chat"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x02\x00\x00\x00")

func newTestServer(t *testing.T, maxUpload int64) *Server {
	t.Helper()
	cfg := NewConfig()
	cfg.UploadDir = t.TempDir()
	cfg.MaxUploadSize = maxUpload
	cfg.Argon2MemoryKiB = 1024
	cfg.Argon2Iterations = 1
	return New(cfg, zap.NewNop())
}

func multipartRequest(t *testing.T, username, filename string, content []byte) *http.Request {
	t.Helper()
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	if username != "" {
		require.NoError(t, w.WriteField("username", username))
	}
	if filename != "" {
		part, err := w.CreateFormFile("file", filename)
		require.NoError(t, err)
		_, err = part.Write(content)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())

	r := httptest.NewRequest(http.MethodPost, "/upload", &body)
	r.Header.Set("Content-Type", w.FormDataContentType())
	return r
}

func TestHealthHandler(t *testing.T) {
	rec := httptest.NewRecorder()
	HealthHandler(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "Nexus chat server is running!", rec.Body.String())
}

func TestTestPageHandler(t *testing.T) {
	rec := httptest.NewRecorder()
	TestPageHandler(rec, httptest.NewRequest(http.MethodGet, "/test", nil))

	require.Equal(t, "text/html", rec.Header().Get("Content-Type"))
	require.Contains(t, rec.Body.String(), "new WebSocket")
}

func TestWebSocketHandlerRejectsNonGet(t *testing.T) {
	srv := newTestServer(t, 1024)
	rec := httptest.NewRecorder()
	srv.WebSocketHandler(rec, httptest.NewRequest(http.MethodPost, "/ws", nil))

	require.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestWebSocketHandlerRejectsPlainGet(t *testing.T) {
	srv := newTestServer(t, 1024)
	rec := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/ws", nil)
	r.Header.Set("Origin", "http://localhost:8080")
	srv.WebSocketHandler(rec, r)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Zero(t, srv.Hub().ClientCount())
}

func TestUploadHandlerStoresAndAnnounces(t *testing.T) {
	req := require.New(t)
	srv := newTestServer(t, 1024)
	watcher := addClient(srv.hub)
	srv.engine.Connect(watcher.ID())

	rec := httptest.NewRecorder()
	srv.UploadHandler(rec, multipartRequest(t, "alice", "../cat picture.png", pngHeader))
	req.Equal(http.StatusCreated, rec.Code)

	var notice chat.FileNotice
	req.NoError(json.Unmarshal(rec.Body.Bytes(), &notice))
	req.Equal("alice", notice.Username)
	req.Equal("cat_picture.png", notice.Filename)
	req.True(strings.HasPrefix(notice.FilePath, "/uploads/"))

	stored, err := os.ReadFile(filepath.Join(srv.cfg.UploadDir, strings.TrimPrefix(notice.FilePath, "/uploads/")))
	req.NoError(err)
	req.Equal(pngHeader, stored)

	env := decodeFrame(t, <-watcher.send)
	req.Equal(chat.EventFileUploaded, env.Event)
	var announced chat.FileNotice
	req.NoError(json.Unmarshal(env.Data, &announced))
	req.Equal(notice.FilePath, announced.FilePath)

	// The stored file is served back under /uploads/.
	get := httptest.NewRecorder()
	srv.SetupRoutes().ServeHTTP(get, httptest.NewRequest(http.MethodGet, notice.FilePath, nil))
	req.Equal(http.StatusOK, get.Code)
	req.Equal(pngHeader, get.Body.Bytes())
}

func TestUploadHandlerRejections(t *testing.T) {
	tests := []struct {
		name     string
		request  func(t *testing.T) *http.Request
		wantCode int
	}{
		{
			name:     "wrong method",
			request:  func(*testing.T) *http.Request { return httptest.NewRequest(http.MethodGet, "/upload", nil) },
			wantCode: http.StatusMethodNotAllowed,
		},
		{
			name:     "not multipart",
			request:  func(*testing.T) *http.Request { return httptest.NewRequest(http.MethodPost, "/upload", strings.NewReader("x")) },
			wantCode: http.StatusBadRequest,
		},
		{
			name:     "missing file",
			request:  func(t *testing.T) *http.Request { return multipartRequest(t, "alice", "", nil) },
			wantCode: http.StatusBadRequest,
		},
		{
			name:     "missing username",
			request:  func(t *testing.T) *http.Request { return multipartRequest(t, "", "a.png", pngHeader) },
			wantCode: http.StatusBadRequest,
		},
		{
			name: "too large",
			request: func(t *testing.T) *http.Request {
				return multipartRequest(t, "alice", "big.txt", bytes.Repeat([]byte("a"), 2048))
			},
			wantCode: http.StatusRequestEntityTooLarge,
		},
		{
			name: "type not allowed",
			request: func(t *testing.T) *http.Request {
				return multipartRequest(t, "alice", "tool.bin", []byte("\x7fELF\x02\x01\x01\x00\x00\x00\x00\x00\x00\x00\x00\x00\x02\x00"))
			},
			wantCode: http.StatusUnsupportedMediaType,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newTestServer(t, 1024)
			rec := httptest.NewRecorder()
			srv.UploadHandler(rec, tt.request(t))
			require.Equal(t, tt.wantCode, rec.Code)

			entries, err := os.ReadDir(srv.cfg.UploadDir)
			require.NoError(t, err)
			require.Empty(t, entries)
		})
	}
}

func TestSanitizeFilename(t *testing.T) {
	require.Equal(t, "report.pdf", sanitizeFilename("report.pdf"))
	require.Equal(t, "passwd", sanitizeFilename("../../etc/passwd"))
	require.Equal(t, "evil.txt", sanitizeFilename(`C:\Users\evil.txt`))
	require.Equal(t, "file", sanitizeFilename(".."))
}

func TestNewLogger(t *testing.T) {
	for _, level := range []string{"debug", "info", "warn", "error"} {
		log, err := NewLogger(level)
		require.NoError(t, err, level)
		require.NotNil(t, log)
	}

	_, err := NewLogger("loud")
	require.Error(t, err)
}
