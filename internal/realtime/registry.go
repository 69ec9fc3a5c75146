// Package realtime implements the session and broadcast engine: per-room
// connection tracking, the per-connection state machine, and room-wide
// fan-out of rendered board state.
package realtime

import (
	"errors"
	"sync"
)

// ErrSendBufferFull is returned by a Sender whose outbound queue is full.
var ErrSendBufferFull = errors.New("send buffer full")

// ErrConnClosed is returned by a Sender whose connection has been closed.
var ErrConnClosed = errors.New("connection closed")

// Sender is the outbound side of one participant's connection. Send must not
// block; it either enqueues the payload or fails immediately.
type Sender interface {
	Send(payload string) error
	Close() error
}

// Entry pairs a participant id with its outbound sender.
type Entry struct {
	ParticipantID int64
	Sender        Sender
}

// Registry maps (room id, participant id) to the participant's outbound
// sender. It holds its lock only around map access, never during sends.
type Registry struct {
	mu    sync.RWMutex
	rooms map[int64]map[int64]Sender
}

// NewRegistry creates an empty connection registry.
func NewRegistry() *Registry {
	return &Registry{rooms: make(map[int64]map[int64]Sender)}
}

// Register adds the sender for a participant in a room. Idempotent: a second
// registration for the same participant replaces the previous sender, which
// covers a reconnect without a clean disconnect.
func (r *Registry) Register(roomID, participantID int64, s Sender) {
	r.mu.Lock()
	set, ok := r.rooms[roomID]
	if !ok {
		set = make(map[int64]Sender)
		r.rooms[roomID] = set
	}
	set[participantID] = s
	r.mu.Unlock()
}

// Unregister removes the participant's sender from the room.
func (r *Registry) Unregister(roomID, participantID int64) {
	r.mu.Lock()
	if set, ok := r.rooms[roomID]; ok {
		delete(set, participantID)
		if len(set) == 0 {
			delete(r.rooms, roomID)
		}
	}
	r.mu.Unlock()
}

// SendersFor returns a point-in-time copy of the room's senders so the
// caller can fan out without holding the registry lock.
func (r *Registry) SendersFor(roomID int64) []Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	set := r.rooms[roomID]
	out := make([]Entry, 0, len(set))
	for id, s := range set {
		out = append(out, Entry{ParticipantID: id, Sender: s})
	}
	return out
}
