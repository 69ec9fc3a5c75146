package realtime

import (
	"errors"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/jfairfie/planning-poker/internal/rooms"
	"github.com/jfairfie/planning-poker/internal/votes"
)

// ErrSessionClosed is returned for operations on a session that already left.
var ErrSessionClosed = errors.New("session closed")

// State is the per-connection lifecycle state.
type State int32

const (
	StateConnecting State = iota
	StateJoined
	StateLeaving
	StateClosed
)

// Session is one joined participant's connection state.
type Session struct {
	ParticipantID int64
	RoomID        int64
	Name          string
	state         atomic.Int32
}

// State returns the session's current lifecycle state.
func (s *Session) State() State {
	return State(s.state.Load())
}

// Active reports whether the session is in the Joined state.
func (s *Session) Active() bool {
	return s.State() == StateJoined
}

// Sessions owns the session lifecycle: the join transaction, message
// handling while joined, and leave cleanup across all three stores.
// Participant ids are assigned monotonically and never reused.
type Sessions struct {
	mu            sync.Mutex
	byParticipant map[int64]*Session
	nextID        atomic.Int64

	rooms       *rooms.Repository
	votes       *votes.Store
	registry    *Registry
	broadcaster *Broadcaster
	logger      *zap.Logger
}

// NewSessions creates the session lifecycle service and wires itself in as
// the broadcaster's reaper.
func NewSessions(roomRepo *rooms.Repository, voteStore *votes.Store, registry *Registry, broadcaster *Broadcaster, logger *zap.Logger) *Sessions {
	s := &Sessions{
		byParticipant: make(map[int64]*Session),
		rooms:         roomRepo,
		votes:         voteStore,
		registry:      registry,
		broadcaster:   broadcaster,
		logger:        logger,
	}
	broadcaster.SetReaper(s.Leave)
	return s
}

// Join transitions Connecting -> Joined: validates the room, assigns a fresh
// participant id, and inserts into the vote store, room membership, and
// connection registry as one logical unit. A failure partway rolls back the
// partial insert so no store sees the participant unless all three did.
// Ends with a broadcast so existing members see the arrival.
func (s *Sessions) Join(sender Sender, roomID int64, name string) (*Session, error) {
	if _, ok := s.rooms.Get(roomID); !ok {
		return nil, rooms.ErrUnknownRoom
	}

	id := s.nextID.Add(1)
	s.votes.Add(id, name)
	if err := s.rooms.AddMember(roomID, id); err != nil {
		// Room deleted between lookup and insert; undo the vote entry.
		s.votes.Remove(id)
		return nil, rooms.ErrUnknownRoom
	}
	s.registry.Register(roomID, id, sender)

	sess := &Session{ParticipantID: id, RoomID: roomID, Name: name}
	sess.state.Store(int32(StateJoined))
	s.mu.Lock()
	s.byParticipant[id] = sess
	s.mu.Unlock()

	// A room delete can race this join: the delete's registry snapshot may
	// have been taken before the Register above, so its force-disconnect
	// never saw this connection. Re-check and compensate instead of
	// stranding a member in a deleted room.
	if _, ok := s.rooms.Get(roomID); !ok {
		s.Leave(id)
		_ = sender.Close()
		return nil, rooms.ErrUnknownRoom
	}

	s.logger.Debug("participant joined",
		zap.Int64("participant_id", id),
		zap.Int64("room_id", roomID),
		zap.String("name", name))
	s.broadcaster.Broadcast(roomID)
	return sess, nil
}

// Vote applies a vote update. An invalid value leaves the prior vote
// unchanged, triggers no broadcast, and keeps the session joined.
func (s *Sessions) Vote(sess *Session, point string) error {
	if !sess.Active() {
		return ErrSessionClosed
	}
	if err := s.votes.SetVote(sess.ParticipantID, point); err != nil {
		return err
	}
	s.broadcaster.Broadcast(sess.RoomID)
	return nil
}

// Reveal sets the room's reveal flag. Any member may toggle it; there is no
// distinguished moderator identity.
func (s *Sessions) Reveal(sess *Session, show bool) error {
	if !sess.Active() {
		return ErrSessionClosed
	}
	s.rooms.SetRevealShown(sess.RoomID, show)
	s.broadcaster.Broadcast(sess.RoomID)
	return nil
}

// Clear resets every current member's vote to zero, keeping membership.
func (s *Sessions) Clear(sess *Session) error {
	if !sess.Active() {
		return ErrSessionClosed
	}
	s.votes.ClearAll(s.rooms.Members(sess.RoomID))
	s.broadcaster.Broadcast(sess.RoomID)
	return nil
}

// Leave transitions Joined -> Leaving -> Closed: removes the participant
// from all three stores and triggers one final broadcast so the remaining
// members see the departure. Idempotent; safe to call from both the
// connection's own read loop and the broadcaster's reap path.
func (s *Sessions) Leave(participantID int64) {
	s.mu.Lock()
	sess, ok := s.byParticipant[participantID]
	if !ok {
		s.mu.Unlock()
		return
	}
	delete(s.byParticipant, participantID)
	s.mu.Unlock()

	sess.state.Store(int32(StateLeaving))
	s.votes.Remove(participantID)
	s.rooms.RemoveMember(sess.RoomID, participantID)
	s.registry.Unregister(sess.RoomID, participantID)
	sess.state.Store(int32(StateClosed))

	s.logger.Debug("participant left",
		zap.Int64("participant_id", participantID),
		zap.Int64("room_id", sess.RoomID))
	s.broadcaster.Broadcast(sess.RoomID)
}

// DisconnectRoom force-disconnects every connection of a deleted room.
// Called by the room admin layer after the room itself is gone, with the
// participant ids the delete found still in the membership set. Those ids
// are walked in addition to the registry snapshot because a join that has
// reached the membership set but not yet the registry is invisible to the
// snapshot.
func (s *Sessions) DisconnectRoom(roomID int64, participantIDs []int64) {
	for _, e := range s.registry.SendersFor(roomID) {
		s.Leave(e.ParticipantID)
		_ = e.Sender.Close()
	}
	for _, id := range participantIDs {
		s.Leave(id)
	}
}
