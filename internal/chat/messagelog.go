package chat

import (
	"sync"
	"time"
)

// Message is a chat message as recorded in the MessageLog. Room is empty for
// global chat.
type Message struct {
	Seq       uint64
	Username  string
	Room      string
	Body      string
	Timestamp time.Time
}

// MessageLog is an append-only, process-lifetime history of chat messages.
type MessageLog struct {
	mu       sync.RWMutex
	messages []Message
}

func NewMessageLog() *MessageLog {
	return &MessageLog{}
}

// Append records msg and returns its sequence index. Indices start at 1 and
// increase strictly in insertion order.
func (l *MessageLog) Append(msg Message) uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()

	msg.Seq = uint64(len(l.messages)) + 1
	l.messages = append(l.messages, msg)
	return msg.Seq
}

// Len returns the number of recorded messages.
func (l *MessageLog) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.messages)
}

// Since returns a copy of the messages whose sequence index is greater than
// seq, in insertion order.
func (l *MessageLog) Since(seq uint64) []Message {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if seq >= uint64(len(l.messages)) {
		return nil
	}
	return append([]Message(nil), l.messages[seq:]...)
}
