package correlator

import (
	"sync/atomic"

	"github.com/kbukum/streamfetch/protocol"
)

// Generator allocates request ids. Implementations must never return the
// same id twice.
type Generator interface {
	Next() protocol.RequestID
}

// Sequence is a monotonic, lock-free Generator.
type Sequence struct {
	n atomic.Int64
}

// NewSequence returns a Sequence whose first id is start.
func NewSequence(start int64) *Sequence {
	s := &Sequence{}
	s.n.Store(start - 1)
	return s
}

// Next returns the next id.
func (s *Sequence) Next() protocol.RequestID {
	return protocol.RequestID(s.n.Add(1))
}
