package chat

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPresenceRegistry_BindRejectsSecondIdentity(t *testing.T) {
	req := require.New(t)
	p := NewPresenceRegistry()

	req.NoError(p.Bind("c1", Identity{Username: "alice"}))
	req.ErrorIs(p.Bind("c1", Identity{Username: "bob"}), ErrAlreadyBound)

	identity, ok := p.Lookup("c1")
	req.True(ok)
	req.Equal("alice", identity.Username)
	req.Equal([]string{"alice"}, p.OnlineSnapshot())
}

func TestPresenceRegistry_SnapshotOrderIsOrderOfComingOnline(t *testing.T) {
	req := require.New(t)
	p := NewPresenceRegistry()

	req.NoError(p.Bind("c1", Identity{Username: "carol"}))
	req.NoError(p.Bind("c2", Identity{Username: "alice"}))
	req.NoError(p.Bind("c3", Identity{Username: "bob"}))
	req.Equal([]string{"carol", "alice", "bob"}, p.OnlineSnapshot())

	p.Unbind("c1")
	req.NoError(p.Bind("c4", Identity{Username: "carol"}))
	req.Equal([]string{"alice", "bob", "carol"}, p.OnlineSnapshot())
}

func TestPresenceRegistry_MultiSessionStaysOnlineUntilLastUnbind(t *testing.T) {
	req := require.New(t)
	p := NewPresenceRegistry()

	req.NoError(p.Bind("c1", Identity{Username: "alice"}))
	req.NoError(p.Bind("c2", Identity{Username: "alice"}))
	req.Equal(2, p.Sessions("alice"))
	req.Equal([]string{"alice"}, p.OnlineSnapshot())

	identity, ok := p.Unbind("c1")
	req.True(ok)
	req.Equal("alice", identity.Username)
	req.Equal([]string{"alice"}, p.OnlineSnapshot())

	_, ok = p.Unbind("c2")
	req.True(ok)
	req.Empty(p.OnlineSnapshot())
	req.Zero(p.Sessions("alice"))
}

func TestPresenceRegistry_UnbindUnknownConnection(t *testing.T) {
	p := NewPresenceRegistry()
	_, ok := p.Unbind("nobody")
	require.False(t, ok)
}

func TestPresenceRegistry_SnapshotIsACopy(t *testing.T) {
	req := require.New(t)
	p := NewPresenceRegistry()
	req.NoError(p.Bind("c1", Identity{Username: "alice"}))

	snapshot := p.OnlineSnapshot()
	snapshot[0] = "mallory"
	req.Equal([]string{"alice"}, p.OnlineSnapshot())
}
