// Package session holds the process-wide state shared by the HTTP handlers:
// the frame ingestion counter and the latest annotation.
package session

import (
	"sync"
	"sync/atomic"
)

type State struct {
	counter  atomic.Int64
	received atomic.Int64

	mu         sync.RWMutex
	annotation string
	ready      bool
}

func NewState() *State {
	return &State{}
}

// NextOrdinal reserves the next frame ordinal. The first call returns 0 and
// concurrent callers never receive the same value.
func (s *State) NextOrdinal() int64 {
	return s.counter.Add(1) - 1
}

// FrameStored records a frame that was written to the store. Rejected
// uploads still consume an ordinal but are never counted here.
func (s *State) FrameStored() {
	s.received.Add(1)
}

// Received reports how many frames have been stored.
func (s *State) Received() int64 {
	return s.received.Load()
}

func (s *State) ClearAnnotation() {
	s.mu.Lock()
	s.annotation = ""
	s.ready = false
	s.mu.Unlock()
}

func (s *State) SetAnnotation(text string) {
	s.mu.Lock()
	s.annotation = text
	s.ready = true
	s.mu.Unlock()
}

// Annotation returns the stored text and whether a run has produced one
// since the slot was last cleared.
func (s *State) Annotation() (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.annotation, s.ready
}
