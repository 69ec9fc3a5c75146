package realtime

import (
	"encoding/json"
	"errors"
)

// ErrMalformed marks an inbound message that cannot be classified as exactly
// one action. The message is dropped; the connection stays open.
var ErrMalformed = errors.New("malformed message")

// Kind is the closed set of inbound message variants.
type Kind int

const (
	// KindNone is a recognized message that causes no state change (e.g. a
	// reveal toggle with a value other than "true"/"false").
	KindNone Kind = iota
	KindJoin
	KindVote
	KindReveal
	KindClear
)

// Message is one classified inbound message.
type Message struct {
	Kind   Kind
	RoomID string // join only, as sent on the wire
	Name   string // join only
	Point  string // vote only, raw numeric string
	Show   bool   // reveal only
}

// inbound is the raw wire shape: a tagged record with all fields optional.
// Pointers distinguish an absent field from an empty one, which matters for
// the join sentinel (id present and empty).
type inbound struct {
	RoomID *string `json:"roomId"`
	Name   *string `json:"name"`
	Point  *string `json:"point"`
	ID     *string `json:"id"`
	Show   *string `json:"show"`
	Clear  *string `json:"clear"`
}

// Classify parses and classifies one inbound payload. Exactly one action tag
// (id/point/show/clear) must be present; anything else is malformed rather
// than guessing a priority between simultaneous tags.
func Classify(data []byte) (Message, error) {
	var in inbound
	if err := json.Unmarshal(data, &in); err != nil {
		return Message{}, ErrMalformed
	}

	tags := 0
	for _, present := range []bool{in.ID != nil, in.Point != nil, in.Show != nil, in.Clear != nil} {
		if present {
			tags++
		}
	}
	if tags != 1 {
		return Message{}, ErrMalformed
	}

	switch {
	case in.ID != nil:
		// Join: id is an empty-string sentinel, roomId and name carry the
		// actual payload.
		if *in.ID != "" || in.RoomID == nil || *in.RoomID == "" || in.Name == nil || *in.Name == "" {
			return Message{}, ErrMalformed
		}
		return Message{Kind: KindJoin, RoomID: *in.RoomID, Name: *in.Name}, nil
	case in.RoomID != nil || in.Name != nil:
		// Join fields mixed into a non-join action.
		return Message{}, ErrMalformed
	case in.Point != nil:
		return Message{Kind: KindVote, Point: *in.Point}, nil
	case in.Show != nil:
		switch *in.Show {
		case "true":
			return Message{Kind: KindReveal, Show: true}, nil
		case "false":
			return Message{Kind: KindReveal, Show: false}, nil
		default:
			return Message{Kind: KindNone}, nil
		}
	default:
		// Clear: presence is the signal, the value is ignored.
		return Message{Kind: KindClear}, nil
	}
}
