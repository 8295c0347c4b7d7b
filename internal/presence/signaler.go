package presence

import (
	"sync"
	"time"

	"github.com/anshu-sharma0/chatmessage/internal/protocol"
)

// Signaler debounces the local user's typing signals.
//
// The first non-empty input emits typing. Every further non-empty input re-arms the debounce
// window; once it elapses without input, stop_typing is emitted. Clearing the input or calling
// Stop emits stop_typing right away.
type Signaler struct {
	debounce time.Duration
	emit     func(eventType string)

	// emitMu is held across a state change and its emit so signals leave in state order.
	// It is taken before mu.
	emitMu sync.Mutex
	mu     sync.Mutex
	typing bool
	timer  *time.Timer
	gen    uint64
}

// NewSignaler creates a signaler. emit receives protocol.TypeTyping or protocol.TypeStopTyping.
// Calls to emit are serialized and must not call back into the signaler.
func NewSignaler(debounce time.Duration, emit func(eventType string)) *Signaler {
	return &Signaler{
		debounce: debounce,
		emit:     emit,
	}
}

// Typing reports whether a typing signal is outstanding.
func (s *Signaler) Typing() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.typing
}

// Input records the current content of the input box.
func (s *Signaler) Input(text string) {
	if text == "" {
		s.Stop()
		return
	}

	s.emitMu.Lock()
	defer s.emitMu.Unlock()
	s.mu.Lock()
	started := !s.typing
	s.typing = true
	s.cancelLocked()
	gen := s.gen
	s.timer = time.AfterFunc(s.debounce, func() { s.expire(gen) })
	s.mu.Unlock()

	if started {
		s.emit(protocol.TypeTyping)
	}
}

// Stop emits stop_typing if a typing signal is outstanding.
func (s *Signaler) Stop() {
	s.emitMu.Lock()
	defer s.emitMu.Unlock()
	s.mu.Lock()
	wasTyping := s.typing
	s.typing = false
	s.cancelLocked()
	s.mu.Unlock()

	if wasTyping {
		s.emit(protocol.TypeStopTyping)
	}
}

// Reset forgets any outstanding signal without emitting anything.
func (s *Signaler) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.typing = false
	s.cancelLocked()
}

func (s *Signaler) cancelLocked() {
	s.gen++
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}

func (s *Signaler) expire(gen uint64) {
	s.emitMu.Lock()
	defer s.emitMu.Unlock()
	s.mu.Lock()
	if gen != s.gen || !s.typing {
		s.mu.Unlock()
		return
	}
	s.typing = false
	s.timer = nil
	s.mu.Unlock()

	s.emit(protocol.TypeStopTyping)
}
