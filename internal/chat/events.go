package chat

import "time"

// Inbound is an event received from a connection. The set of inbound events
// is closed: only the types in this file implement it.
type Inbound interface {
	inbound()
}

type Register struct {
	Username string `validate:"required,max=64"`
	Password string `validate:"required,max=72"`
}

type Login struct {
	Username string `validate:"required,max=64"`
	Password string `validate:"required,max=72"`
}

// SendMessage posts to the global chat.
type SendMessage struct {
	Body string
}

type JoinRoom struct {
	Room string
}

type LeaveRoom struct {
	Room string
}

// RoomMessage posts to the members of one room.
type RoomMessage struct {
	Room string
	Body string
}

type Typing struct{}

type StopTyping struct{}

func (Register) inbound()    {}
func (Login) inbound()       {}
func (SendMessage) inbound() {}
func (JoinRoom) inbound()    {}
func (LeaveRoom) inbound()   {}
func (RoomMessage) inbound() {}
func (Typing) inbound()      {}
func (StopTyping) inbound()  {}

// Outbound event names.
const (
	EventRegistrationSuccess = "registration success"
	EventRegistrationError   = "registration error"
	EventLoginSuccess        = "login success"
	EventLoginError          = "login error"
	EventUpdateUsers         = "update users"
	EventUserConnected       = "user connected"
	EventChatMessage         = "chat message"
	EventRoomMessage         = "room message"
	EventTyping              = "typing"
	EventStopTyping          = "stop typing"
	EventFileUploaded        = "file uploaded"
	EventError               = "error"
)

// Outbound is an event handed to the Transport. Data is either a string or
// one of the payload types below.
type Outbound struct {
	Event string
	Data  any
}

// ChatPayload is the data of a user chat message.
type ChatPayload struct {
	Username  string    `json:"username"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// RoomPayload is the data of a room-scoped chat message.
type RoomPayload struct {
	Room      string    `json:"room"`
	Username  string    `json:"username"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// FileNotice describes a file stored by the upload handler.
type FileNotice struct {
	Username  string    `json:"username"`
	Filename  string    `json:"filename"`
	FilePath  string    `json:"filePath"`
	Timestamp time.Time `json:"timestamp"`
}
