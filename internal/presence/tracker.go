// Package presence derives typing indicators from realtime events and debounces the local
// user's own typing signals.
package presence

import (
	"sync"
	"time"
)

// State is the peer typing state.
type State int

const (
	Idle State = iota
	PeerTyping
)

func (s State) String() string {
	if s == PeerTyping {
		return "peer_typing"
	}
	return "idle"
}

// Tracker turns inbound typing / stop_typing events from the peer into a boolean state.
//
// A typing event enters PeerTyping and cancels any pending reversion. A stop_typing event
// schedules the reversion to Idle after stopDelay; a typing event arriving first cancels it.
// A PeerTyping state without any stop_typing expires after ttl.
type Tracker struct {
	stopDelay time.Duration
	ttl       time.Duration
	onChange  func(typing bool)

	mu    sync.Mutex
	state State
	timer *time.Timer
	// gen invalidates timer callbacks that fired while being stopped.
	gen uint64
}

// NewTracker creates a tracker. onChange, when non-nil, is called outside the tracker's lock
// every time the state flips.
func NewTracker(stopDelay, ttl time.Duration, onChange func(typing bool)) *Tracker {
	return &Tracker{
		stopDelay: stopDelay,
		ttl:       ttl,
		onChange:  onChange,
	}
}

// State returns the current state.
func (t *Tracker) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// PeerTyping reports whether the peer is currently typing.
func (t *Tracker) PeerTyping() bool {
	return t.State() == PeerTyping
}

// Typing handles a typing event from the peer.
func (t *Tracker) Typing() {
	t.mu.Lock()
	changed := t.state != PeerTyping
	t.state = PeerTyping
	t.scheduleLocked(t.ttl)
	t.mu.Unlock()

	if changed {
		t.notify(true)
	}
}

// StopTyping handles a stop_typing event from the peer.
func (t *Tracker) StopTyping() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state != PeerTyping {
		return
	}
	t.scheduleLocked(t.stopDelay)
}

// Reset cancels pending timers and returns to Idle.
func (t *Tracker) Reset() {
	t.mu.Lock()
	changed := t.state != Idle
	t.state = Idle
	t.cancelLocked()
	t.mu.Unlock()

	if changed {
		t.notify(false)
	}
}

func (t *Tracker) scheduleLocked(d time.Duration) {
	t.cancelLocked()
	if d <= 0 {
		return
	}
	gen := t.gen
	t.timer = time.AfterFunc(d, func() { t.expire(gen) })
}

func (t *Tracker) cancelLocked() {
	t.gen++
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
}

func (t *Tracker) expire(gen uint64) {
	t.mu.Lock()
	if gen != t.gen || t.state != PeerTyping {
		t.mu.Unlock()
		return
	}
	t.state = Idle
	t.timer = nil
	t.mu.Unlock()

	t.notify(false)
}

func (t *Tracker) notify(typing bool) {
	if t.onChange != nil {
		t.onChange(typing)
	}
}
