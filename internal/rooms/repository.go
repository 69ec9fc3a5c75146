// Package rooms manages voting rooms and their membership.
package rooms

import (
	"errors"
	"sort"
	"sync"

	"github.com/samber/lo"
)

// ErrUnknownRoom is returned when a room id does not exist or was deleted.
var ErrUnknownRoom = errors.New("unknown room")

// Room is one isolated voting session.
type Room struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	RevealShown bool   `json:"reveal_shown"`
}

// Repository is the in-memory room registry. Room ids are assigned
// monotonically and never reused for the life of the process; state is
// volatile and lost on restart.
type Repository struct {
	mu      sync.RWMutex
	nextID  int64
	rooms   map[int64]*Room
	members map[int64]map[int64]struct{}
}

// NewRepository creates an empty room repository.
func NewRepository() *Repository {
	return &Repository{
		rooms:   make(map[int64]*Room),
		members: make(map[int64]map[int64]struct{}),
	}
}

// Create adds a room and returns its id.
func (r *Repository) Create(name string) int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	id := r.nextID
	r.rooms[id] = &Room{ID: id, Name: name}
	r.members[id] = make(map[int64]struct{})
	return id
}

// Get returns a copy of the room.
func (r *Repository) Get(id int64) (Room, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	room, ok := r.rooms[id]
	if !ok {
		return Room{}, false
	}
	return *room, true
}

// List returns all rooms ordered by id.
func (r *Repository) List() []Room {
	r.mu.RLock()
	out := make([]Room, 0, len(r.rooms))
	for _, room := range r.rooms {
		out = append(out, *room)
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Delete removes the room and its membership set, returning the ids of the
// participants that were still joined. The caller is responsible for
// disconnecting those orphans through the session lifecycle.
func (r *Repository) Delete(id int64) []int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	orphans := lo.Keys(r.members[id])
	delete(r.rooms, id)
	delete(r.members, id)
	return orphans
}

// SetRevealShown flips the room's reveal flag. Returns false for an unknown
// room.
func (r *Repository) SetRevealShown(id int64, shown bool) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	room, ok := r.rooms[id]
	if !ok {
		return false
	}
	room.RevealShown = shown
	return true
}

// AddMember joins a participant to the room. Returns ErrUnknownRoom when the
// room was deleted between lookup and insert so the caller can roll back.
func (r *Repository) AddMember(roomID, participantID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	set, ok := r.members[roomID]
	if !ok {
		return ErrUnknownRoom
	}
	set[participantID] = struct{}{}
	return nil
}

// RemoveMember drops a participant from the room's membership. A no-op for
// unknown rooms or participants.
func (r *Repository) RemoveMember(roomID, participantID int64) {
	r.mu.Lock()
	if set, ok := r.members[roomID]; ok {
		delete(set, participantID)
	}
	r.mu.Unlock()
}

// Members returns a copy of the participant ids joined to the room.
func (r *Repository) Members(roomID int64) []int64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return lo.Keys(r.members[roomID])
}
