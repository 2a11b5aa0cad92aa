package chat

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

const (
	noticeUserJoined = "A user has joined the chat"
	noticeUserLeft   = "%s has left the chat"
)

// Engine drives the connection lifecycle and dispatches inbound events.
//
// A connection starts Connected, becomes Authenticated after a successful
// login and ends Disconnected. Every step that touches more than one registry
// (login, disconnect, room changes, posting) runs under one lock, so a roster
// or announcement never reflects a half-applied change, and all connections
// observe broadcasts in the same order.
type Engine struct {
	mu          sync.Mutex
	conns       map[ConnID]*Connection
	credentials *CredentialStore
	presence    *PresenceRegistry
	rooms       *RoomDirectory
	messages    *MessageLog
	router      *Router
	log         *zap.Logger
	now         func() time.Time
}

// NewEngine wires the registries around credentials and transport.
func NewEngine(credentials *CredentialStore, transport Transport, log *zap.Logger) *Engine {
	rooms := NewRoomDirectory()
	return &Engine{
		conns:       make(map[ConnID]*Connection),
		credentials: credentials,
		presence:    NewPresenceRegistry(),
		rooms:       rooms,
		messages:    NewMessageLog(),
		router:      NewRouter(transport, rooms, log),
		log:         log,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// Connect records a new unauthenticated connection and announces it to every
// other connection.
func (e *Engine) Connect(id ConnID) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, exists := e.conns[id]; exists {
		e.log.Warn("Connection already registered", zap.String("conn_id", string(id)))
		return
	}
	e.conns[id] = &Connection{ID: id, State: StateConnected, ConnectedAt: e.now()}
	e.router.add(id)

	e.log.Info("Connection opened",
		zap.String("conn_id", string(id)),
		zap.Int("connections", len(e.conns)))
	e.router.Broadcast(ToOthers, id, "", Outbound{Event: EventChatMessage, Data: noticeUserJoined})
}

// Disconnect releases everything held by the connection. Departures of
// authenticated connections are announced together with the updated roster.
// Unknown or already disconnected ids are ignored.
func (e *Engine) Disconnect(id ConnID) {
	e.mu.Lock()
	defer e.mu.Unlock()

	conn, ok := e.conns[id]
	if !ok {
		return
	}
	conn.State = StateDisconnected
	delete(e.conns, id)
	e.router.remove(id)

	identity, wasBound := e.presence.Unbind(id)
	rooms := e.rooms.LeaveAll(id)

	e.log.Info("Connection closed",
		zap.String("conn_id", string(id)),
		zap.String("username", identity.Username),
		zap.Strings("rooms", rooms),
		zap.Int("connections", len(e.conns)))

	if !wasBound {
		return
	}
	e.router.Broadcast(ToOthers, id, "", Outbound{
		Event: EventChatMessage,
		Data:  fmt.Sprintf(noticeUserLeft, identity.Username),
	})
	e.broadcastRoster(id)
}

// Handle dispatches one inbound event from the connection. Failures are
// reported to the originating connection as named events; the returned error
// is for the caller's logs only.
func (e *Engine) Handle(id ConnID, in Inbound) error {
	if !e.connected(id) {
		return ErrUnknownConnection
	}

	switch ev := in.(type) {
	case Register:
		return e.register(id, ev)
	case Login:
		return e.login(id, ev)
	case SendMessage:
		return e.sendMessage(id, ev)
	case JoinRoom:
		return e.joinRoom(id, ev)
	case LeaveRoom:
		return e.leaveRoom(id, ev)
	case RoomMessage:
		return e.roomMessage(id, ev)
	case Typing:
		return e.relayTyping(id, EventTyping)
	case StopTyping:
		return e.relayTyping(id, EventStopTyping)
	default:
		e.reply(id, EventError, ErrUnknownEvent.Error())
		return fmt.Errorf("%w: %T", ErrUnknownEvent, in)
	}
}

// FileUploaded announces a stored file to every connection.
func (e *Engine) FileUploaded(notice FileNotice) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if notice.Timestamp.IsZero() {
		notice.Timestamp = e.now()
	}
	e.log.Info("File uploaded",
		zap.String("username", notice.Username),
		zap.String("file", notice.FilePath))
	e.router.Broadcast(ToAll, "", "", Outbound{Event: EventFileUploaded, Data: notice})
}

// Online returns the online usernames in the order they came online.
func (e *Engine) Online() []string {
	return e.presence.OnlineSnapshot()
}

// Members returns the connections joined to room.
func (e *Engine) Members(room string) []ConnID {
	return e.rooms.Members(room)
}

// State returns the lifecycle state of a live connection.
func (e *Engine) State(id ConnID) (State, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	conn, ok := e.conns[id]
	if !ok {
		return StateDisconnected, false
	}
	return conn.State, true
}

// History returns the logged messages after sequence index seq.
func (e *Engine) History(seq uint64) []Message {
	return e.messages.Since(seq)
}

// Connections returns the number of live connections.
func (e *Engine) Connections() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.conns)
}

func (e *Engine) connected(id ConnID) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, ok := e.conns[id]
	return ok
}

func (e *Engine) register(id ConnID, req Register) error {
	if err := validateCredentials(req); err != nil {
		e.reply(id, EventRegistrationError, err.Error())
		return err
	}

	if err := e.credentials.Register(req.Username, req.Password); err != nil {
		if errors.Is(err, ErrAlreadyExists) {
			e.reply(id, EventRegistrationError, ErrAlreadyExists.Error())
		} else {
			e.reply(id, EventRegistrationError, "registration failed")
		}
		return err
	}

	e.log.Info("User registered",
		zap.String("conn_id", string(id)),
		zap.String("username", req.Username))
	e.reply(id, EventRegistrationSuccess, "registration successful, please log in")
	return nil
}

func (e *Engine) login(id ConnID, req Login) error {
	if err := validateCredentials(req); err != nil {
		e.reply(id, EventLoginError, err.Error())
		return err
	}
	// Reject re-login before paying for password verification.
	if _, bound := e.presence.Lookup(id); bound {
		e.reply(id, EventLoginError, ErrAlreadyBound.Error())
		return ErrAlreadyBound
	}

	identity, err := e.credentials.Verify(req.Username, req.Password)
	if err != nil {
		// NotFound and Mismatch share one message.
		e.reply(id, EventLoginError, ErrInvalidCredentials.Error())
		return fmt.Errorf("%w: %w", ErrInvalidCredentials, err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	conn, ok := e.conns[id]
	if !ok {
		return ErrUnknownConnection
	}
	if err := e.presence.Bind(id, identity); err != nil {
		e.router.Broadcast(ToOrigin, id, "", Outbound{Event: EventLoginError, Data: err.Error()})
		return err
	}
	conn.State = StateAuthenticated

	e.log.Info("User logged in",
		zap.String("conn_id", string(id)),
		zap.String("username", identity.Username),
		zap.Int("sessions", e.presence.Sessions(identity.Username)))

	e.router.Broadcast(ToOrigin, id, "", Outbound{Event: EventLoginSuccess, Data: "login successful"})
	e.broadcastRoster(id)
	e.router.Broadcast(ToOthers, id, "", Outbound{Event: EventUserConnected, Data: identity.Username})
	return nil
}

func (e *Engine) sendMessage(id ConnID, msg SendMessage) error {
	identity, err := e.requireIdentity(id)
	if err != nil {
		return err
	}
	if strings.TrimSpace(msg.Body) == "" {
		e.reply(id, EventError, "message is empty")
		return nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	ts := e.now()
	seq := e.messages.Append(Message{Username: identity.Username, Body: msg.Body, Timestamp: ts})
	e.log.Debug("Chat message",
		zap.Uint64("seq", seq),
		zap.String("username", identity.Username))
	e.router.Broadcast(ToAll, id, "", Outbound{
		Event: EventChatMessage,
		Data:  ChatPayload{Username: identity.Username, Message: msg.Body, Timestamp: ts},
	})
	return nil
}

func (e *Engine) joinRoom(id ConnID, req JoinRoom) error {
	identity, err := e.requireIdentity(id)
	if err != nil {
		return err
	}
	room := strings.TrimSpace(req.Room)
	if !validRoomName(room) {
		e.reply(id, EventError, "room name is required")
		return nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	joined := e.rooms.Join(id, room)
	e.router.Broadcast(ToOrigin, id, room, Outbound{
		Event: EventChatMessage,
		Data:  fmt.Sprintf("You joined room %s", room),
	})
	if joined {
		e.log.Info("Room joined",
			zap.String("conn_id", string(id)),
			zap.String("username", identity.Username),
			zap.String("room", room))
		e.router.Broadcast(ToRoomOthers, id, room, Outbound{
			Event: EventChatMessage,
			Data:  fmt.Sprintf("%s joined room %s", identity.Username, room),
		})
	}
	return nil
}

func (e *Engine) leaveRoom(id ConnID, req LeaveRoom) error {
	identity, err := e.requireIdentity(id)
	if err != nil {
		return err
	}
	room := strings.TrimSpace(req.Room)

	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.rooms.Leave(id, room) {
		return nil
	}
	e.log.Info("Room left",
		zap.String("conn_id", string(id)),
		zap.String("username", identity.Username),
		zap.String("room", room))
	e.router.Broadcast(ToOrigin, id, room, Outbound{
		Event: EventChatMessage,
		Data:  fmt.Sprintf("You left room %s", room),
	})
	e.router.Broadcast(ToRoom, id, room, Outbound{
		Event: EventChatMessage,
		Data:  fmt.Sprintf("%s left room %s", identity.Username, room),
	})
	return nil
}

func (e *Engine) roomMessage(id ConnID, msg RoomMessage) error {
	identity, err := e.requireIdentity(id)
	if err != nil {
		return err
	}
	room := strings.TrimSpace(msg.Room)
	if strings.TrimSpace(msg.Body) == "" {
		e.reply(id, EventError, "message is empty")
		return nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.rooms.IsMember(id, room) {
		e.router.Broadcast(ToOrigin, id, "", Outbound{Event: EventError, Data: ErrNotInRoom.Error()})
		return ErrNotInRoom
	}
	ts := e.now()
	e.messages.Append(Message{Username: identity.Username, Room: room, Body: msg.Body, Timestamp: ts})
	e.router.Broadcast(ToRoom, id, room, Outbound{
		Event: EventRoomMessage,
		Data:  RoomPayload{Room: room, Username: identity.Username, Message: msg.Body, Timestamp: ts},
	})
	return nil
}

func (e *Engine) relayTyping(id ConnID, event string) error {
	identity, err := e.requireIdentity(id)
	if err != nil {
		return err
	}
	e.router.Broadcast(ToOthers, id, "", Outbound{Event: event, Data: identity.Username})
	return nil
}

// requireIdentity returns the identity bound to the connection, or reports
// ErrNotAuthenticated to it.
func (e *Engine) requireIdentity(id ConnID) (Identity, error) {
	identity, ok := e.presence.Lookup(id)
	if !ok {
		e.reply(id, EventError, ErrNotAuthenticated.Error())
		return Identity{}, ErrNotAuthenticated
	}
	return identity, nil
}

// broadcastRoster pushes the online list to every connection. Callers hold mu.
func (e *Engine) broadcastRoster(origin ConnID) {
	e.router.Broadcast(ToAll, origin, "", Outbound{Event: EventUpdateUsers, Data: e.presence.OnlineSnapshot()})
}

func (e *Engine) reply(id ConnID, event, message string) {
	e.router.Broadcast(ToOrigin, id, "", Outbound{Event: event, Data: message})
}
