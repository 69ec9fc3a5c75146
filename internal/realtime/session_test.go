package realtime

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/jfairfie/planning-poker/internal/rooms"
	"github.com/jfairfie/planning-poker/internal/view"
	"github.com/jfairfie/planning-poker/internal/votes"
)

type fixture struct {
	sessions *Sessions
	rooms    *rooms.Repository
	votes    *votes.Store
	registry *Registry
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	roomRepo := rooms.NewRepository()
	voteStore := votes.NewStore()
	registry := NewRegistry()
	broadcaster := NewBroadcaster(roomRepo, voteStore, registry, view.RenderBoard, false, zap.NewNop())
	sessions := NewSessions(roomRepo, voteStore, registry, broadcaster, zap.NewNop())
	return &fixture{sessions: sessions, rooms: roomRepo, votes: voteStore, registry: registry}
}

func lastPayload(t *testing.T, s *stubSender) string {
	t.Helper()
	require.NotEmpty(t, s.payloads)
	return s.payloads[len(s.payloads)-1]
}

func TestSessions_Join_InsertsIntoAllThreeStores(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	roomID := f.rooms.Create("sprint 12")
	sender := &stubSender{}

	sess, err := f.sessions.Join(sender, roomID, "Alice")
	req.NoError(err)
	req.Equal(StateJoined, sess.State())

	// Atomicity: present in vote store, room membership, and registry
	p, ok := f.votes.Get(sess.ParticipantID)
	req.True(ok)
	req.Equal("Alice", p.Name)
	req.Zero(p.Vote)
	req.Contains(f.rooms.Members(roomID), sess.ParticipantID)
	req.Len(f.registry.SendersFor(roomID), 1)

	// The joiner receives the initial board, hidden
	req.Contains(lastPayload(t, sender), "Alice: ?")
}

func TestSessions_Join_UnknownRoom(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)

	_, err := f.sessions.Join(&stubSender{}, 42, "Alice")
	req.ErrorIs(err, rooms.ErrUnknownRoom)

	// No store saw the participant
	req.Empty(f.registry.SendersFor(42))
	req.Empty(f.rooms.Members(42))
}

func TestSessions_Join_MonotonicParticipantIDs(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	roomID := f.rooms.Create("room")

	a, err := f.sessions.Join(&stubSender{}, roomID, "Alice")
	req.NoError(err)
	b, err := f.sessions.Join(&stubSender{}, roomID, "Bob")
	req.NoError(err)
	req.Less(a.ParticipantID, b.ParticipantID)

	// Ids are not reused after a leave
	f.sessions.Leave(b.ParticipantID)
	c, err := f.sessions.Join(&stubSender{}, roomID, "Carol")
	req.NoError(err)
	req.Less(b.ParticipantID, c.ParticipantID)
}

func TestSessions_Leave_RemovesFromAllThreeStores(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	roomID := f.rooms.Create("room")
	alice := &stubSender{}
	bob := &stubSender{}

	a, _ := f.sessions.Join(alice, roomID, "Alice")
	_, err := f.sessions.Join(bob, roomID, "Bob")
	req.NoError(err)

	f.sessions.Leave(a.ParticipantID)

	req.Equal(StateClosed, a.State())
	_, ok := f.votes.Get(a.ParticipantID)
	req.False(ok)
	req.NotContains(f.rooms.Members(roomID), a.ParticipantID)
	req.Len(f.registry.SendersFor(roomID), 1)

	// Remaining member sees the departure in a final broadcast
	last := lastPayload(t, bob)
	req.NotContains(last, "Alice")
	req.Contains(last, "Bob: ?")

	// Idempotent
	f.sessions.Leave(a.ParticipantID)
}

func TestSessions_Vote_InvalidLeavesStateUntouched(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	roomID := f.rooms.Create("room")
	sender := &stubSender{}
	sess, _ := f.sessions.Join(sender, roomID, "Alice")
	req.NoError(f.sessions.Vote(sess, "8"))

	broadcasts := len(sender.payloads)
	err := f.sessions.Vote(sess, "not-a-number")
	req.ErrorIs(err, votes.ErrInvalidVote)

	// Connection stays joined, prior vote kept, no broadcast for the bad
	// message
	req.True(sess.Active())
	p, _ := f.votes.Get(sess.ParticipantID)
	req.Equal(8.0, p.Vote)
	req.Len(sender.payloads, broadcasts)
}

func TestSessions_RevealClearScenario(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	roomID := f.rooms.Create("sprint 12")
	alice := &stubSender{}
	sess, err := f.sessions.Join(alice, roomID, "Alice")
	req.NoError(err)

	// Board starts hidden at zero
	req.Contains(lastPayload(t, alice), "Alice: ?")

	// A votes 5: entry updates but stays hidden until reveal
	req.NoError(f.sessions.Vote(sess, "5"))
	req.Contains(lastPayload(t, alice), "Alice: ?")

	// Reveal shows the number
	req.NoError(f.sessions.Reveal(sess, true))
	req.Contains(lastPayload(t, alice), "Alice: 5")

	// Clear resets the vote and forces the board back to hidden even though
	// the reveal flag is still set
	req.NoError(f.sessions.Clear(sess))
	room, _ := f.rooms.Get(roomID)
	req.True(room.RevealShown)
	p, _ := f.votes.Get(sess.ParticipantID)
	req.Zero(p.Vote)
	req.Contains(lastPayload(t, alice), "Alice: ?")
	req.Contains(lastPayload(t, alice), ">Show</button>")
}

func TestSessions_RevealOnAllZeroBoardStaysHidden(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	roomID := f.rooms.Create("room")
	alice := &stubSender{}
	sess, _ := f.sessions.Join(alice, roomID, "Alice")

	req.NoError(f.sessions.Reveal(sess, true))

	// reveal_shown is set, but the all-zero board renders hidden
	room, _ := f.rooms.Get(roomID)
	req.True(room.RevealShown)
	req.Contains(lastPayload(t, alice), "Alice: ?")
}

func TestSessions_BroadcastReapsFailedConnections(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	roomID := f.rooms.Create("room")
	alice := &stubSender{}
	bob := &stubSender{}

	a, err := f.sessions.Join(alice, roomID, "Alice")
	req.NoError(err)
	b, err := f.sessions.Join(bob, roomID, "Bob")
	req.NoError(err)

	// Alice's connection dies uncleanly: sends start failing
	alice.sendErr = ErrConnClosed

	// Any subsequent event triggers the broadcast that detects and reaps her
	req.NoError(f.sessions.Vote(b, "3"))

	_, ok := f.votes.Get(a.ParticipantID)
	req.False(ok)
	req.NotContains(f.rooms.Members(roomID), a.ParticipantID)
	req.Len(f.registry.SendersFor(roomID), 1)

	// Bob's view no longer lists Alice
	last := lastPayload(t, bob)
	req.NotContains(last, "Alice")
	req.Contains(last, "Bob")
}

func TestSessions_DisconnectRoom(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	roomID := f.rooms.Create("doomed")
	alice := &stubSender{}
	bob := &stubSender{}
	a, _ := f.sessions.Join(alice, roomID, "Alice")
	b, _ := f.sessions.Join(bob, roomID, "Bob")

	orphans := f.rooms.Delete(roomID)
	f.sessions.DisconnectRoom(roomID, orphans)

	req.True(alice.closed)
	req.True(bob.closed)
	req.Empty(f.registry.SendersFor(roomID))
	_, ok := f.votes.Get(a.ParticipantID)
	req.False(ok)
	_, ok = f.votes.Get(b.ParticipantID)
	req.False(ok)
}

func TestSessions_DisconnectRoomReachesUnregisteredMembers(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	roomID := f.rooms.Create("room")
	sess, err := f.sessions.Join(&stubSender{}, roomID, "Alice")
	req.NoError(err)

	// A joiner whose registration the delete's registry snapshot cannot
	// see: only the membership set knows the id.
	f.registry.Unregister(roomID, sess.ParticipantID)

	orphans := f.rooms.Delete(roomID)
	req.Contains(orphans, sess.ParticipantID)
	f.sessions.DisconnectRoom(roomID, orphans)

	// The orphan walk still cleans every store
	req.Equal(StateClosed, sess.State())
	_, ok := f.votes.Get(sess.ParticipantID)
	req.False(ok)
	req.ErrorIs(f.sessions.Vote(sess, "5"), ErrSessionClosed)
}

func TestSessions_JoinRacingRoomDelete(t *testing.T) {
	req := require.New(t)

	// Whatever way the join and the delete interleave, no store may end up
	// holding a participant for a room that no longer exists.
	for i := 0; i < 100; i++ {
		f := newFixture(t)
		roomID := f.rooms.Create("room")
		sender := &stubSender{}

		done := make(chan *Session, 1)
		go func() {
			sess, err := f.sessions.Join(sender, roomID, "Alice")
			if err != nil {
				sess = nil
			}
			done <- sess
		}()

		orphans := f.rooms.Delete(roomID)
		f.sessions.DisconnectRoom(roomID, orphans)
		sess := <-done

		req.Empty(f.registry.SendersFor(roomID))
		req.Empty(f.rooms.Members(roomID))
		if sess != nil {
			// The join won the race; the delete must still have reaped it
			req.Equal(StateClosed, sess.State())
			_, ok := f.votes.Get(sess.ParticipantID)
			req.False(ok)
		}
	}
}

func TestSessions_OperationsOnClosedSession(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	roomID := f.rooms.Create("room")
	sess, _ := f.sessions.Join(&stubSender{}, roomID, "Alice")

	f.sessions.Leave(sess.ParticipantID)

	req.ErrorIs(f.sessions.Vote(sess, "5"), ErrSessionClosed)
	req.ErrorIs(f.sessions.Reveal(sess, true), ErrSessionClosed)
	req.ErrorIs(f.sessions.Clear(sess), ErrSessionClosed)
}
