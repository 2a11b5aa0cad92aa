package chat

import (
	"sort"
	"sync"

	"github.com/samber/lo"
)

// RoomDirectory tracks which connections have joined which rooms. Rooms are
// created on first join and dropped once their last member leaves.
type RoomDirectory struct {
	mu     sync.RWMutex
	rooms  map[string]map[ConnID]struct{}
	joined map[ConnID]map[string]struct{}
}

func NewRoomDirectory() *RoomDirectory {
	return &RoomDirectory{
		rooms:  make(map[string]map[ConnID]struct{}),
		joined: make(map[ConnID]map[string]struct{}),
	}
}

// Join adds the connection to room. It reports whether the connection was not
// already a member; joining twice is a no-op.
func (d *RoomDirectory) Join(id ConnID, room string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	members, ok := d.rooms[room]
	if !ok {
		members = make(map[ConnID]struct{})
		d.rooms[room] = members
	}
	if _, member := members[id]; member {
		return false
	}
	members[id] = struct{}{}

	if d.joined[id] == nil {
		d.joined[id] = make(map[string]struct{})
	}
	d.joined[id][room] = struct{}{}
	return true
}

// Leave removes the connection from room. It reports whether the connection
// was a member; leaving a room not joined is a no-op.
func (d *RoomDirectory) Leave(id ConnID, room string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.leave(id, room)
}

// LeaveAll removes the connection from every room and returns the rooms it
// left, sorted by name.
func (d *RoomDirectory) LeaveAll(id ConnID) []string {
	d.mu.Lock()
	defer d.mu.Unlock()

	rooms := lo.Keys(d.joined[id])
	sort.Strings(rooms)
	for _, room := range rooms {
		d.leave(id, room)
	}
	delete(d.joined, id)
	return rooms
}

func (d *RoomDirectory) leave(id ConnID, room string) bool {
	members, ok := d.rooms[room]
	if !ok {
		return false
	}
	if _, member := members[id]; !member {
		return false
	}
	delete(members, id)
	if len(members) == 0 {
		delete(d.rooms, room)
	}

	if rooms := d.joined[id]; rooms != nil {
		delete(rooms, room)
		if len(rooms) == 0 {
			delete(d.joined, id)
		}
	}
	return true
}

// Members returns the connections joined to room. An unknown room has no
// members.
func (d *RoomDirectory) Members(room string) []ConnID {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return lo.Keys(d.rooms[room])
}

// IsMember reports whether the connection has joined room.
func (d *RoomDirectory) IsMember(id ConnID, room string) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	_, ok := d.rooms[room][id]
	return ok
}

// Rooms returns the rooms the connection belongs to, sorted by name.
func (d *RoomDirectory) Rooms(id ConnID) []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	rooms := lo.Keys(d.joined[id])
	sort.Strings(rooms)
	return rooms
}
