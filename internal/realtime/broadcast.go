package realtime

import (
	"errors"

	"go.uber.org/zap"

	"github.com/jfairfie/planning-poker/internal/rooms"
	"github.com/jfairfie/planning-poker/internal/view"
	"github.com/jfairfie/planning-poker/internal/votes"
)

// RenderFunc renders one board snapshot into the payload pushed to every
// member. The broadcaster calls it once per broadcast and treats the result
// as opaque.
type RenderFunc func(roomName string, members []view.Member) string

// Broadcaster fans out the current room state to every registered
// connection. Failed sends are collected during the loop and reaped through
// the session lifecycle afterwards; this is the only mechanism by which dead
// connections are detected.
type Broadcaster struct {
	rooms      *rooms.Repository
	votes      *votes.Store
	registry   *Registry
	render     RenderFunc
	reap       func(participantID int64)
	dropOnFull bool
	logger     *zap.Logger
}

// NewBroadcaster creates a broadcaster. dropOnFull selects the backpressure
// policy for a full send buffer: drop the payload and let the next broadcast
// catch the client up, or (default) treat it as a dead peer and reap it.
// The reaper is wired afterwards via SetReaper to break the construction
// cycle with the session lifecycle.
func NewBroadcaster(roomRepo *rooms.Repository, voteStore *votes.Store, registry *Registry, render RenderFunc, dropOnFull bool, logger *zap.Logger) *Broadcaster {
	return &Broadcaster{
		rooms:      roomRepo,
		votes:      voteStore,
		registry:   registry,
		render:     render,
		dropOnFull: dropOnFull,
		logger:     logger,
	}
}

// SetReaper sets the callback invoked for each participant whose send failed.
func (b *Broadcaster) SetReaper(fn func(participantID int64)) {
	b.reap = fn
}

// Broadcast snapshots the room's membership, votes and effective reveal
// state, renders one payload, and pushes it to every member. Each store is
// locked briefly and independently; no lock is held across a send.
func (b *Broadcaster) Broadcast(roomID int64) {
	room, ok := b.rooms.Get(roomID)
	if !ok {
		return
	}
	snapshot := b.votes.Snapshot(b.rooms.Members(roomID))

	// An all-zero board is forced back to hidden regardless of the reveal
	// flag, so an emptied room never sticks in a revealed state. The mask
	// comes from the same snapshot as the rows so a concurrent vote cannot
	// make them disagree.
	shown := room.RevealShown && !votes.Cleared(snapshot)

	members := make([]view.Member, 0, len(snapshot))
	for _, p := range snapshot {
		members = append(members, view.Member{Name: p.Name, Vote: p.Vote, EffectiveShown: shown})
	}
	payload := b.render(room.Name, members)

	var failed []int64
	for _, e := range b.registry.SendersFor(roomID) {
		err := e.Sender.Send(payload)
		if err == nil {
			continue
		}
		if b.dropOnFull && errors.Is(err, ErrSendBufferFull) {
			b.logger.Debug("send buffer full, dropping update",
				zap.Int64("participant_id", e.ParticipantID),
				zap.Int64("room_id", roomID))
			continue
		}
		failed = append(failed, e.ParticipantID)
	}

	// Reap after the fan-out loop. Each reap triggers its own final
	// broadcast; the recursion terminates because every reap shrinks the
	// room.
	if b.reap != nil {
		for _, id := range failed {
			b.logger.Debug("reaping failed connection",
				zap.Int64("participant_id", id),
				zap.Int64("room_id", roomID))
			b.reap(id)
		}
	}
}
