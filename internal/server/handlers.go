// Package server exposes HTTP handlers, including WebSocket upgrades, health
// checks, and the built-in test page.
package server

import (
	"fmt"
	"net/http"

	"go.uber.org/zap"
)

// WebSocketHandler upgrades GET requests to WebSocket and hands the new
// client to the hub, which starts its pumps and opens its chat session.
func (s *Server) WebSocketHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed. WebSocket endpoint only accepts GET requests.", http.StatusMethodNotAllowed)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("WebSocket upgrade failed", zap.String("addr", r.RemoteAddr), zap.Error(err))
		return
	}

	client := NewClient(conn, s.hub, r.RemoteAddr)
	if !s.hub.Register(client) {
		_ = conn.Close()
	}
}

// HealthHandler provides a simple health check endpoint that returns server status.
func HealthHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	_, _ = fmt.Fprintf(w, "Nexus chat server is running!")
}

// TestPageHandler serves a minimal HTML client for manual testing of the
// WebSocket protocol.
func TestPageHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html")
	_, _ = fmt.Fprint(w, testPageHTML)
}

const testPageHTML = `<!DOCTYPE html>
<html>
<head>
    <title>Nexus Chat Test</title>
    <style>
        body { font-family: Arial, sans-serif; margin: 20px; }
        #messages { border: 1px solid #ccc; height: 300px; padding: 10px; overflow-y: scroll; margin: 10px 0; background-color: #f9f9f9; }
        #users { color: #555; margin: 10px 0; }
        #typing { color: #999; font-style: italic; height: 1em; }
        input[type="text"], input[type="password"] { width: 160px; padding: 5px; margin-right: 5px; }
        button { padding: 5px 15px; background-color: #007cba; color: white; border: none; cursor: pointer; }
    </style>
</head>
<body>
    <h1>Nexus Chat Test</h1>
    <div>
        <input type="text" id="username" placeholder="username">
        <input type="password" id="password" placeholder="password">
        <button onclick="emit('register', creds())">Register</button>
        <button onclick="emit('login', creds())">Login</button>
    </div>
    <div>
        <input type="text" id="room" placeholder="room">
        <button onclick="emit('join room', val('room'))">Join</button>
        <button onclick="emit('leave room', val('room'))">Leave</button>
    </div>
    <div id="users">Online: </div>
    <div id="messages"></div>
    <div id="typing"></div>
    <div>
        <input type="text" id="message" placeholder="Type a message..." oninput="typing()">
        <button onclick="send()">Send</button>
    </div>
    <script>
        const ws = new WebSocket((location.protocol === 'https:' ? 'wss://' : 'ws://') + location.host + '/ws');
        const messages = document.getElementById('messages');
        let typingTimer = null;

        function val(id) { return document.getElementById(id).value.trim(); }
        function creds() { return { username: val('username'), password: document.getElementById('password').value }; }
        function emit(event, data) { ws.send(JSON.stringify({ event: event, data: data })); }
        function add(text) {
            const el = document.createElement('div');
            el.textContent = text;
            messages.appendChild(el);
            messages.scrollTop = messages.scrollHeight;
        }
        function send() {
            const body = val('message');
            if (!body) return;
            const room = val('room');
            if (room) { emit('room message', { room: room, message: body }); } else { emit('chat message', body); }
            document.getElementById('message').value = '';
            emit('stop typing', val('username'));
        }
        function typing() {
            emit('typing', val('username'));
            clearTimeout(typingTimer);
            typingTimer = setTimeout(() => emit('stop typing', val('username')), 1000);
        }

        ws.onmessage = function(event) {
            const msg = JSON.parse(event.data);
            const data = msg.data;
            switch (msg.event) {
            case 'update users':
                document.getElementById('users').textContent = 'Online: ' + data.join(', ');
                break;
            case 'typing':
                document.getElementById('typing').textContent = data + ' is typing...';
                break;
            case 'stop typing':
                document.getElementById('typing').textContent = '';
                break;
            case 'chat message':
                add(typeof data === 'string' ? data : data.username + ': ' + data.message);
                break;
            case 'room message':
                add('[' + data.room + '] ' + data.username + ': ' + data.message);
                break;
            case 'file uploaded':
                add(data.username + ' uploaded ' + data.filename + ' (' + data.filePath + ')');
                break;
            default:
                add(msg.event + ': ' + data);
            }
        };
        ws.onclose = function() { add('Connection closed'); };
    </script>
</body>
</html>`
