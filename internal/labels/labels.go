package labels

import (
	"errors"
	"fmt"
)

// #region types

// Label is one replayed value in {0,1,2}.
type Label uint8

// ErrUnknownSession is returned by Open and Lookup for ids not in the registry.
var ErrUnknownSession = errors.New("unknown session")

// Session is an immutable named label sequence.
type Session struct {
	id  string
	seq []Label
}

// ID returns the two-digit session id.
func (s *Session) ID() string { return s.id }

// Len returns the sequence length (always >= 1).
func (s *Session) Len() int { return len(s.seq) }

// Label returns seq[i].
func (s *Session) Label(i int) Label { return s.seq[i] }

// Labels copies the sequence out.
func (s *Session) Labels() []Label {
	out := make([]Label, len(s.seq))
	copy(out, s.seq)
	return out
}

// #endregion types

// #region registry

// Count returns the number of registered sessions.
func Count() int { return len(registry) }

// ByIndex returns the i-th registered session.
func ByIndex(i int) (*Session, error) {
	if i < 0 || i >= len(registry) {
		return nil, fmt.Errorf("%w: index %d", ErrUnknownSession, i)
	}
	return &registry[i], nil
}

// Lookup finds a session by id.
func Lookup(id string) (*Session, error) {
	for i := range registry {
		if registry[i].id == id {
			return &registry[i], nil
		}
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownSession, id)
}

// Sessions returns the registry in order.
func Sessions() []*Session {
	out := make([]*Session, len(registry))
	for i := range registry {
		out[i] = &registry[i]
	}
	return out
}

// #endregion registry

// #region cursor

// Cursor replays a session cyclically.
type Cursor struct {
	s   *Session
	pos int
}

// Open returns a cursor positioned at the start of session id.
func Open(id string) (Cursor, error) {
	s, err := Lookup(id)
	if err != nil {
		return Cursor{}, fmt.Errorf("open: %w", err)
	}
	return Cursor{s: s}, nil
}

// Next returns the current label and advances, wrapping at the end.
func (c *Cursor) Next() Label {
	l := c.s.seq[c.pos]
	c.pos++
	if c.pos == len(c.s.seq) {
		c.pos = 0
	}
	return l
}

// Pos is the index the next call to Next will return.
func (c *Cursor) Pos() int { return c.pos }

// Reset rewinds to the start of the session.
func (c *Cursor) Reset() { c.pos = 0 }

// Session returns the session being replayed.
func (c *Cursor) Session() *Session { return c.s }

// #endregion cursor
