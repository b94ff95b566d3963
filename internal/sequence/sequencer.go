package sequence

import "sync/atomic"

// Sequencer hands out strictly increasing log sequence numbers.
// The dispatcher goroutine is the only caller of Next; other goroutines
// may read Current.
type Sequencer struct {
	last atomic.Uint64
}

// New returns a sequencer whose first Next is start+1. Pass the last
// journaled sequence when resuming, zero on a fresh start.
func New(start uint64) *Sequencer {
	s := &Sequencer{}
	s.last.Store(start)
	return s
}

// Next returns the next sequence number.
func (s *Sequencer) Next() uint64 {
	return s.last.Add(1)
}

// Current returns the last sequence handed out.
func (s *Sequencer) Current() uint64 {
	return s.last.Load()
}
