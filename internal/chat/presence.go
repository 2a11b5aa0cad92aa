package chat

import (
	"sync"

	"github.com/samber/lo"
)

// PresenceRegistry binds connections to identities and derives the set of
// online usernames. An identity stays online while at least one connection
// is bound to it.
type PresenceRegistry struct {
	mu       sync.RWMutex
	bindings map[ConnID]Identity
	sessions map[string]int
	// order in which usernames came online, oldest first
	order []string
}

func NewPresenceRegistry() *PresenceRegistry {
	return &PresenceRegistry{
		bindings: make(map[ConnID]Identity),
		sessions: make(map[string]int),
	}
}

// Bind attaches identity to the connection. A connection holds at most one
// identity; a second Bind returns ErrAlreadyBound and keeps the first.
func (p *PresenceRegistry) Bind(id ConnID, identity Identity) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, bound := p.bindings[id]; bound {
		return ErrAlreadyBound
	}
	p.bindings[id] = identity
	p.sessions[identity.Username]++
	if p.sessions[identity.Username] == 1 {
		p.order = append(p.order, identity.Username)
	}
	return nil
}

// Unbind removes the connection's binding and returns the identity it held.
// The username leaves the online set only when its last connection unbinds.
func (p *PresenceRegistry) Unbind(id ConnID) (Identity, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	identity, bound := p.bindings[id]
	if !bound {
		return Identity{}, false
	}
	delete(p.bindings, id)

	p.sessions[identity.Username]--
	if p.sessions[identity.Username] <= 0 {
		delete(p.sessions, identity.Username)
		p.order = lo.Without(p.order, identity.Username)
	}
	return identity, true
}

// Lookup returns the identity bound to the connection, if any.
func (p *PresenceRegistry) Lookup(id ConnID) (Identity, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	identity, ok := p.bindings[id]
	return identity, ok
}

// Sessions returns how many live connections are bound to username.
func (p *PresenceRegistry) Sessions(username string) int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.sessions[username]
}

// OnlineSnapshot lists the online usernames in the order they came online,
// oldest first.
func (p *PresenceRegistry) OnlineSnapshot() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return append([]string{}, p.order...)
}
