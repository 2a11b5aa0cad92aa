package chat

import (
	"sync"

	"github.com/samber/lo"
	"go.uber.org/zap"
)

// Transport delivers outbound events to connections. Delivery is
// fire-and-forget: Deliver must not block on slow receivers, and targets that
// are no longer live are skipped silently.
type Transport interface {
	Deliver(out Outbound, targets []ConnID)
}

// Audience selects the recipients of an outbound event relative to the
// originating connection.
type Audience int

const (
	// ToOrigin targets the originating connection only.
	ToOrigin Audience = iota
	// ToAll targets every live connection, the origin included.
	ToAll
	// ToOthers targets every live connection except the origin.
	ToOthers
	// ToRoom targets every member of a room, the origin included.
	ToRoom
	// ToRoomOthers targets every member of a room except the origin.
	ToRoomOthers
)

func (a Audience) String() string {
	switch a {
	case ToOrigin:
		return "origin"
	case ToAll:
		return "all"
	case ToOthers:
		return "others"
	case ToRoom:
		return "room"
	case ToRoomOthers:
		return "room-others"
	default:
		return "unknown"
	}
}

// Router computes broadcast audiences and hands events to the Transport.
type Router struct {
	mu        sync.RWMutex
	live      map[ConnID]struct{}
	rooms     *RoomDirectory
	transport Transport
	log       *zap.Logger
}

func NewRouter(transport Transport, rooms *RoomDirectory, log *zap.Logger) *Router {
	return &Router{
		live:      make(map[ConnID]struct{}),
		rooms:     rooms,
		transport: transport,
		log:       log,
	}
}

func (r *Router) add(id ConnID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.live[id] = struct{}{}
}

func (r *Router) remove(id ConnID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.live, id)
}

// Audience returns the live connections selected by aud. Room audiences only
// include members that are still live.
func (r *Router) Audience(aud Audience, origin ConnID, room string) []ConnID {
	r.mu.RLock()
	defer r.mu.RUnlock()

	switch aud {
	case ToOrigin:
		if _, ok := r.live[origin]; !ok {
			return nil
		}
		return []ConnID{origin}
	case ToAll:
		return lo.Keys(r.live)
	case ToOthers:
		return lo.Without(lo.Keys(r.live), origin)
	case ToRoom, ToRoomOthers:
		members := lo.Filter(r.rooms.Members(room), func(id ConnID, _ int) bool {
			_, ok := r.live[id]
			return ok
		})
		if aud == ToRoomOthers {
			members = lo.Without(members, origin)
		}
		return members
	default:
		return nil
	}
}

// Broadcast sends out to the audience and returns the number of targets.
func (r *Router) Broadcast(aud Audience, origin ConnID, room string, out Outbound) int {
	targets := r.Audience(aud, origin, room)
	if len(targets) == 0 {
		return 0
	}
	r.log.Debug("Broadcasting event",
		zap.String("event", out.Event),
		zap.Stringer("audience", aud),
		zap.String("origin", string(origin)),
		zap.Int("targets", len(targets)))
	r.transport.Deliver(out, targets)
	return len(targets)
}
