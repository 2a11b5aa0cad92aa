// Package server defines the JSON wire protocol exchanged with WebSocket
// clients and converts it to and from chat engine events.
package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/Tyrowin/nexus-chat-server/internal/chat"
)

// Inbound event names.
const (
	eventRegister    = "register"
	eventLogin       = "login"
	eventChatMessage = "chat message"
	eventJoinRoom    = "join room"
	eventLeaveRoom   = "leave room"
	eventRoomMessage = "room message"
	eventTyping      = "typing"
	eventStopTyping  = "stop typing"
)

var errMalformedFrame = errors.New("malformed message")

// Envelope is a single frame: an event name and its payload.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

type credentialsData struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type roomMessageData struct {
	Room    string `json:"room"`
	Message string `json:"message"`
}

// decodeInbound parses a raw frame into a chat event.
func decodeInbound(raw []byte) (chat.Inbound, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", errMalformedFrame, err)
	}

	switch env.Event {
	case eventRegister:
		var creds credentialsData
		if err := decodeData(env.Data, &creds); err != nil {
			return nil, err
		}
		return chat.Register{Username: creds.Username, Password: creds.Password}, nil
	case eventLogin:
		var creds credentialsData
		if err := decodeData(env.Data, &creds); err != nil {
			return nil, err
		}
		return chat.Login{Username: creds.Username, Password: creds.Password}, nil
	case eventChatMessage:
		var body string
		if err := decodeData(env.Data, &body); err != nil {
			return nil, err
		}
		return chat.SendMessage{Body: body}, nil
	case eventJoinRoom:
		var room string
		if err := decodeData(env.Data, &room); err != nil {
			return nil, err
		}
		return chat.JoinRoom{Room: room}, nil
	case eventLeaveRoom:
		var room string
		if err := decodeData(env.Data, &room); err != nil {
			return nil, err
		}
		return chat.LeaveRoom{Room: room}, nil
	case eventRoomMessage:
		var msg roomMessageData
		if err := decodeData(env.Data, &msg); err != nil {
			return nil, err
		}
		return chat.RoomMessage{Room: msg.Room, Body: msg.Message}, nil
	case eventTyping:
		// The payload names the typist; the bound identity is relayed instead.
		return chat.Typing{}, nil
	case eventStopTyping:
		return chat.StopTyping{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", chat.ErrUnknownEvent, env.Event)
	}
}

func decodeData(data json.RawMessage, v any) error {
	if len(data) == 0 {
		return fmt.Errorf("%w: missing data", errMalformedFrame)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("%w: %v", errMalformedFrame, err)
	}
	return nil
}

// encodeOutbound renders an engine event as a frame.
func encodeOutbound(out chat.Outbound) ([]byte, error) {
	return json.Marshal(struct {
		Event string `json:"event"`
		Data  any    `json:"data"`
	}{Event: out.Event, Data: out.Data})
}

// isExpectedCloseError checks if an error is expected during connection closure.
func isExpectedCloseError(err error) bool {
	if err == nil {
		return true
	}
	errStr := err.Error()
	return strings.Contains(errStr, "use of closed network connection") ||
		strings.Contains(errStr, "websocket: close sent") ||
		strings.Contains(errStr, "broken pipe")
}
