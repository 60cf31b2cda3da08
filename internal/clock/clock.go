// Package clock provides an injectable source of "now".
//
// Services stamp createdAt on posts, likes and comments. Reading the time
// through an interface (instead of calling time.Now directly) lets tests pin
// timestamps and assert on ordering without sleeping.
package clock

import (
	"sync"
	"time"
)

// Clock returns the current time in UTC.
type Clock interface {
	NowUTC() time.Time
}

// Real is the production clock.
type Real struct{}

func (Real) NowUTC() time.Time {
	return time.Now().UTC()
}

// Stub is a test clock. It only moves when told to.
type Stub struct {
	mu  sync.Mutex
	now time.Time
}

// NewStub returns a Stub frozen at t.
func NewStub(t time.Time) *Stub {
	return &Stub{now: t.UTC()}
}

func (s *Stub) NowUTC() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.now
}

// Set moves the clock to t.
func (s *Stub) Set(t time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = t.UTC()
}

// Advance moves the clock forward by d and returns the new time.
func (s *Stub) Advance(d time.Duration) time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = s.now.Add(d)
	return s.now
}
