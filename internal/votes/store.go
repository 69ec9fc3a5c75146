// Package votes holds the in-memory vote state for connected participants.
package votes

import (
	"errors"
	"math"
	"sort"
	"strconv"
	"sync"

	"github.com/samber/lo"
)

// ErrInvalidVote is returned when a raw vote value does not parse as a
// non-negative finite number. The participant's prior vote is kept.
var ErrInvalidVote = errors.New("invalid vote value")

// ErrUnknownParticipant is returned when the participant id has no entry.
var ErrUnknownParticipant = errors.New("unknown participant")

// Participant is one connected voter. Vote starts at zero on join.
type Participant struct {
	ID   int64
	Name string
	Vote float64
}

// Store maps participant id to current vote and display name.
// All methods are safe for concurrent use; critical sections are kept short
// and never span I/O.
type Store struct {
	mu           sync.RWMutex
	participants map[int64]*Participant
}

// NewStore creates an empty vote store.
func NewStore() *Store {
	return &Store{participants: make(map[int64]*Participant)}
}

// Add inserts a participant with a zero vote. A second Add for the same id
// resets the entry (reconnect without clean disconnect).
func (s *Store) Add(id int64, name string) {
	s.mu.Lock()
	s.participants[id] = &Participant{ID: id, Name: name}
	s.mu.Unlock()
}

// Get returns a copy of the participant's entry.
func (s *Store) Get(id int64) (Participant, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.participants[id]
	if !ok {
		return Participant{}, false
	}
	return *p, true
}

// Remove deletes the participant's entry.
func (s *Store) Remove(id int64) {
	s.mu.Lock()
	delete(s.participants, id)
	s.mu.Unlock()
}

// SetVote parses raw and stores it as the participant's vote. On a parse
// failure the prior vote is left unchanged and ErrInvalidVote is returned.
func (s *Store) SetVote(id int64, raw string) error {
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || v < 0 || math.IsInf(v, 0) || math.IsNaN(v) {
		return ErrInvalidVote
	}
	if v == 0 {
		v = 0 // "-0" parses to negative zero; store it unsigned
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.participants[id]
	if !ok {
		return ErrUnknownParticipant
	}
	p.Vote = v
	return nil
}

// ClearAll resets the vote to zero for every listed participant without
// touching membership. Unknown ids are skipped.
func (s *Store) ClearAll(ids []int64) {
	s.mu.Lock()
	for _, id := range ids {
		if p, ok := s.participants[id]; ok {
			p.Vote = 0
		}
	}
	s.mu.Unlock()
}

// AllCleared reports whether every listed participant's vote is exactly zero.
// Ids without an entry count as cleared.
func (s *Store) AllCleared(ids []int64) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return lo.EveryBy(ids, func(id int64) bool {
		p, ok := s.participants[id]
		return !ok || p.Vote == 0
	})
}

// Cleared reports whether every participant in an already-taken snapshot has
// a zero vote. Deriving the reveal mask from the same snapshot that feeds
// the rendered rows keeps the two consistent without a second store read.
func Cleared(snapshot []Participant) bool {
	return lo.EveryBy(snapshot, func(p Participant) bool { return p.Vote == 0 })
}

// Snapshot copies out the entries for the listed ids, ordered by id
// (join order). Ids without an entry are omitted.
func (s *Store) Snapshot(ids []int64) []Participant {
	s.mu.RLock()
	out := make([]Participant, 0, len(ids))
	for _, id := range ids {
		if p, ok := s.participants[id]; ok {
			out = append(out, *p)
		}
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
