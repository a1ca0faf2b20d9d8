package state

import (
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// State is the process-wide status shown to clients: which symbol the
// overlay is attached to, whether the feed is up, and repaint activity.
type State struct {
	activeMu     sync.RWMutex
	activeSymbol string
	lastFrameAt  time.Time

	connected atomic.Bool
	frames    atomic.Uint64
}

func NewState(symbol string) *State {
	s := &State{}
	s.SetSymbol(symbol)
	return s
}

func (s *State) SetSymbol(sym string) string {
	canon := strings.ToUpper(strings.TrimSpace(sym))
	s.activeMu.Lock()
	defer s.activeMu.Unlock()
	s.activeSymbol = canon
	return canon
}

func (s *State) Symbol() string {
	s.activeMu.RLock()
	defer s.activeMu.RUnlock()
	return s.activeSymbol
}

func (s *State) SetConnected(v bool) { s.connected.Store(v) }
func (s *State) Connected() bool     { return s.connected.Load() }

// FramePublished records a repaint sent to clients.
func (s *State) FramePublished(at time.Time) {
	s.frames.Add(1)
	s.activeMu.Lock()
	s.lastFrameAt = at
	s.activeMu.Unlock()
}

func (s *State) Frames() uint64 { return s.frames.Load() }

func (s *State) LastFrameAt() time.Time {
	s.activeMu.RLock()
	defer s.activeMu.RUnlock()
	return s.lastFrameAt
}
