// Package traffic records the frames crossing a connection boundary
// and hands them to the host application for display. Every inbound
// and outbound frame becomes an immutable Message emitted on a Feed.
package traffic

import (
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// Direction reports which way a message crossed the connection.
type Direction int

const (
	Outbound Direction = iota
	Inbound
)

// String returns the direction as a lowercase word.
func (d Direction) String() string {
	switch d {
	case Outbound:
		return "outbound"
	case Inbound:
		return "inbound"
	default:
		return "unknown"
	}
}

// Kind reports what kind of frame a message records.
type Kind int

const (
	KindText Kind = iota
	KindBinary
	KindPing
)

// String returns the kind as a lowercase word.
func (k Kind) String() string {
	switch k {
	case KindText:
		return "text"
	case KindBinary:
		return "binary"
	case KindPing:
		return "ping"
	default:
		return "unknown"
	}
}

// Message is one frame that crossed the connection boundary. Messages
// are immutable once created; the engine keeps no history beyond the
// Feed buffer, retention is the consumer's concern.
type Message struct {
	ID        string
	Direction Direction
	Kind      Kind
	Payload   []byte
	Time      time.Time
}

// DefaultFeedSize is the Feed buffer size used when none is given.
const DefaultFeedSize = 256

// Feed is the bounded hand-off between the engine and the host's log
// view. Emit never blocks: when the consumer has fallen behind by more
// than the buffer size, the oldest unread message is dropped and the
// dropped counter incremented. This keeps a slow consumer from ever
// stalling the transport read loop.
type Feed struct {
	ch      chan Message
	dropped atomic.Int64
}

// NewFeed creates a Feed with the given buffer size. Sizes below one
// fall back to DefaultFeedSize.
func NewFeed(size int) *Feed {
	if size < 1 {
		size = DefaultFeedSize
	}

	return &Feed{ch: make(chan Message, size)}
}

// Emit records a frame crossing the boundary and returns the Message
// created for it. Callers must invoke Emit in the order frames actually
// cross the boundary; the Feed preserves that order.
func (f *Feed) Emit(dir Direction, kind Kind, payload []byte) Message {
	m := Message{
		ID:        uuid.NewString(),
		Direction: dir,
		Kind:      kind,
		Payload:   payload,
		Time:      time.Now(),
	}

	for {
		select {
		case f.ch <- m:
			return m
		default:
		}

		// Buffer full, drop the oldest unread message.
		select {
		case <-f.ch:
			f.dropped.Add(1)
		default:
		}
	}
}

// Messages returns the receive side of the feed.
func (f *Feed) Messages() <-chan Message {
	return f.ch
}

// Dropped returns how many messages were discarded because the
// consumer fell behind.
func (f *Feed) Dropped() int64 {
	return f.dropped.Load()
}
