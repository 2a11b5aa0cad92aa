// Package testhelpers provides a running chat server and a small WebSocket
// client for integration tests.
package testhelpers

import (
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/Tyrowin/nexus-chat-server/internal/chat"
	"github.com/Tyrowin/nexus-chat-server/internal/server"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// TestOrigin is the Origin header sent by Dial and allowed by StartChatServer.
const TestOrigin = "http://localhost:8080"

// DefaultWait bounds every expectation on a WebSocket client.
const DefaultWait = 2 * time.Second

// ChatServer is a fully wired chat server listening on a loopback port.
type ChatServer struct {
	*server.Server
	HTTP *httptest.Server
}

// StartChatServer starts a server with cheap password hashing and a temporary
// upload directory. customize may adjust the config before wiring.
func StartChatServer(t *testing.T, customize func(cfg *server.Config)) *ChatServer {
	t.Helper()

	cfg := server.NewConfig()
	cfg.AllowedOrigins = []string{TestOrigin}
	cfg.UploadDir = t.TempDir()
	cfg.Argon2MemoryKiB = 1024
	cfg.Argon2Iterations = 1
	if customize != nil {
		customize(cfg)
	}

	srv := server.New(cfg, zap.NewNop())
	srv.StartHub()
	httpServer := httptest.NewServer(srv.SetupRoutes())

	t.Cleanup(func() {
		_ = srv.Hub().Shutdown(time.Second)
		httpServer.Close()
	})
	return &ChatServer{Server: srv, HTTP: httpServer}
}

// WebSocketURL returns the ws:// address of the chat endpoint.
func (s *ChatServer) WebSocketURL() string {
	return "ws" + strings.TrimPrefix(s.HTTP.URL, "http") + "/ws"
}

// Dial opens a WebSocket connection with the test origin.
func (s *ChatServer) Dial(t *testing.T) *WSClient {
	t.Helper()
	conn, err := DialWithOrigin(s.WebSocketURL(), TestOrigin)
	require.NoError(t, err)

	client := &WSClient{t: t, conn: conn}
	t.Cleanup(func() { _ = conn.Close() })
	return client
}

// DialWithOrigin opens a WebSocket connection; an empty origin sends none.
func DialWithOrigin(url, origin string) (*websocket.Conn, error) {
	dialer := websocket.Dialer{HandshakeTimeout: 5 * time.Second}

	headers := http.Header{}
	if origin != "" {
		headers.Set("Origin", origin)
	}

	conn, resp, err := dialer.Dial(url, headers)
	if resp != nil {
		_ = resp.Body.Close()
	}
	return conn, err
}

// MakeRequest executes an HTTP request with a short timeout.
func MakeRequest(t *testing.T, method, url string) *http.Response {
	t.Helper()

	client := &http.Client{Timeout: 5 * time.Second}
	req, err := http.NewRequest(method, url, http.NoBody)
	require.NoError(t, err)

	resp, err := client.Do(req)
	require.NoError(t, err)
	return resp
}

// WSClient speaks the chat protocol over one connection.
type WSClient struct {
	t    *testing.T
	conn *websocket.Conn
}

// Conn exposes the underlying connection.
func (c *WSClient) Conn() *websocket.Conn {
	return c.conn
}

// Emit sends one event frame. A nil data omits the payload.
func (c *WSClient) Emit(event string, data any) {
	c.t.Helper()
	frame := struct {
		Event string `json:"event"`
		Data  any    `json:"data,omitempty"`
	}{Event: event, Data: data}
	require.NoError(c.t, c.conn.WriteJSON(frame))
}

// Next reads frames until one satisfies match, failing the test after
// DefaultWait.
func (c *WSClient) Next(match func(server.Envelope) bool) server.Envelope {
	c.t.Helper()
	require.NoError(c.t, c.conn.SetReadDeadline(time.Now().Add(DefaultWait)))
	for {
		_, raw, err := c.conn.ReadMessage()
		require.NoError(c.t, err, "waiting for frame")

		var env server.Envelope
		require.NoError(c.t, json.Unmarshal(raw, &env))
		if match(env) {
			return env
		}
	}
}

// Expect waits for the next frame carrying event.
func (c *WSClient) Expect(event string) server.Envelope {
	c.t.Helper()
	return c.Next(func(env server.Envelope) bool { return env.Event == event })
}

// ExpectText waits for a frame carrying event with a plain string payload.
func (c *WSClient) ExpectText(event, text string) {
	c.t.Helper()
	c.Next(func(env server.Envelope) bool {
		var got string
		return env.Event == event && json.Unmarshal(env.Data, &got) == nil && got == text
	})
}

// ExpectRoster waits for an update users frame listing exactly names.
func (c *WSClient) ExpectRoster(names ...string) {
	c.t.Helper()
	c.Next(func(env server.Envelope) bool {
		var got []string
		if env.Event != chat.EventUpdateUsers || json.Unmarshal(env.Data, &got) != nil {
			return false
		}
		return slices.Equal(got, names)
	})
}

// ExpectChat waits for a chat message posted by username and returns it.
func (c *WSClient) ExpectChat(username string) chat.ChatPayload {
	c.t.Helper()
	var payload chat.ChatPayload
	c.Next(func(env server.Envelope) bool {
		if env.Event != chat.EventChatMessage {
			return false
		}
		var p chat.ChatPayload
		if json.Unmarshal(env.Data, &p) != nil || p.Username != username {
			return false
		}
		payload = p
		return true
	})
	return payload
}

// Sync sends an empty chat message, which the server rejects with an error to
// this connection only, and reads up to that error. It fails if a forbidden
// event arrives first. Frames to one connection keep their order, so anything
// queued for it before the round trip is seen here.
func (c *WSClient) Sync(forbidden ...string) {
	c.t.Helper()
	c.Emit(chat.EventChatMessage, "")
	c.Next(func(env server.Envelope) bool {
		require.NotContains(c.t, forbidden, env.Event, "unexpected frame: %s", env.Data)
		return env.Event == chat.EventError
	})
}

// ExpectClosed waits for the server to close the connection.
func (c *WSClient) ExpectClosed() {
	c.t.Helper()
	require.NoError(c.t, c.conn.SetReadDeadline(time.Now().Add(DefaultWait)))
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			var netErr net.Error
			require.False(c.t, errors.As(err, &netErr) && netErr.Timeout(), "connection still open")
			return
		}
	}
}

// Register creates an account and waits for the confirmation.
func (c *WSClient) Register(username, password string) {
	c.t.Helper()
	c.Emit("register", map[string]string{"username": username, "password": password})
	c.Expect(chat.EventRegistrationSuccess)
}

// Login binds the connection to username and waits for the confirmation.
func (c *WSClient) Login(username, password string) {
	c.t.Helper()
	c.Emit("login", map[string]string{"username": username, "password": password})
	c.Expect(chat.EventLoginSuccess)
}

// Join registers and logs in username on a fresh connection.
func (s *ChatServer) Join(t *testing.T, username string) *WSClient {
	t.Helper()
	client := s.Dial(t)
	client.Register(username, "secret-"+username)
	client.Login(username, "secret-"+username)
	return client
}

// Close sends a normal close frame and closes the connection.
func (c *WSClient) Close() {
	_ = c.conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	_ = c.conn.Close()
}
