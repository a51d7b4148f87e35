package persist

import (
	"context"
	"sync"
)

// Signal is a verification outcome that can be resolved exactly once, at any time, by
// any goroutine. The persister polls it between chunks and awaits it after copying.
// The zero value is an unresolved signal.
type Signal struct {
	ready sync.Once
	once  sync.Once
	done  chan struct{}
	value bool
}

// NewSignal returns an unresolved signal.
func NewSignal() *Signal {
	return &Signal{}
}

// Resolved returns a signal already resolved to v.
func Resolved(v bool) *Signal {
	s := NewSignal()
	s.Resolve(v)
	return s
}

func (s *Signal) ch() chan struct{} {
	s.ready.Do(func() { s.done = make(chan struct{}) })
	return s.done
}

// Resolve sets the outcome. Only the first call has an effect; it reports whether this
// call resolved the signal.
func (s *Signal) Resolve(v bool) bool {
	done := s.ch()
	resolved := false
	s.once.Do(func() {
		s.value = v
		close(done)
		resolved = true
	})
	return resolved
}

// Peek returns the outcome without blocking.
func (s *Signal) Peek() (value, resolved bool) {
	select {
	case <-s.ch():
		return s.value, true
	default:
		return false, false
	}
}

// Done is closed once the signal is resolved.
func (s *Signal) Done() <-chan struct{} {
	return s.ch()
}

// Wait blocks until the signal is resolved or ctx ends.
func (s *Signal) Wait(ctx context.Context) (bool, error) {
	select {
	case <-s.ch():
		return s.value, nil
	case <-ctx.Done():
		return false, ctx.Err()
	}
}
