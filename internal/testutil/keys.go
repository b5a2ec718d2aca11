package testutil

import (
	"fmt"
	"sync"
)

// KeySequence hands out record keys "<prefix>-1", "<prefix>-2", ...
//
// Two sequences with the same prefix produce the same keys in the same
// order, so scenario traces stay byte-identical across runs.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type KeySequence struct {
	mu     sync.Mutex
	prefix string
	seq    int64
}

// NewKeySequence creates a sequence. An empty prefix means "key".
func NewKeySequence(prefix string) *KeySequence {
	if prefix == "" {
		prefix = "key"
	}
	return &KeySequence{prefix: prefix}
}

// Next returns the next key.
func (s *KeySequence) Next() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	return fmt.Sprintf("%s-%d", s.prefix, s.seq)
}

// Issued returns how many keys were handed out.
func (s *KeySequence) Issued() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.seq
}

// Reset starts over; the next key is "<prefix>-1" again.
func (s *KeySequence) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq = 0
}
