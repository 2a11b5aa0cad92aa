package chat

import (
	"crypto/subtle"
	"errors"
	"sync"
	"testing"

	"go.uber.org/zap"
)

// stubHasher tags secrets instead of hashing them.
type stubHasher struct {
	err error
}

func (h stubHasher) Hash(secret string) (string, error) {
	if h.err != nil {
		return "", h.err
	}
	return "stub:" + secret, nil
}

func (h stubHasher) Verify(secret, digest string) (bool, error) {
	return subtle.ConstantTimeCompare([]byte("stub:"+secret), []byte(digest)) == 1, nil
}

// recorder is a Transport that keeps every delivered event per connection.
type recorder struct {
	mu  sync.Mutex
	got map[ConnID][]Outbound
}

func newRecorder() *recorder {
	return &recorder{got: make(map[ConnID][]Outbound)}
}

func (r *recorder) Deliver(out Outbound, targets []ConnID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, id := range targets {
		r.got[id] = append(r.got[id], out)
	}
}

func (r *recorder) events(id ConnID) []Outbound {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Outbound(nil), r.got[id]...)
}

// named returns the events with the given name delivered to id.
func (r *recorder) named(id ConnID, event string) []Outbound {
	var out []Outbound
	for _, ev := range r.events(id) {
		if ev.Event == event {
			out = append(out, ev)
		}
	}
	return out
}

func (r *recorder) reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.got = make(map[ConnID][]Outbound)
}

var errHashBroken = errors.New("hash broken")

func newTestEngine(t *testing.T) (*Engine, *recorder) {
	t.Helper()
	rec := newRecorder()
	engine := NewEngine(NewCredentialStore(stubHasher{}), rec, zap.NewNop())
	return engine, rec
}

// loggedIn connects id, registers username if needed and logs it in.
func loggedIn(t *testing.T, e *Engine, id ConnID, username string) {
	t.Helper()
	e.Connect(id)
	if _, err := e.credentials.Verify(username, "secret"); errors.Is(err, ErrNotFound) {
		if err := e.Handle(id, Register{Username: username, Password: "secret"}); err != nil {
			t.Fatalf("register %s: %v", username, err)
		}
	}
	if err := e.Handle(id, Login{Username: username, Password: "secret"}); err != nil {
		t.Fatalf("login %s: %v", username, err)
	}
}
