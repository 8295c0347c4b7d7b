package conversation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/golang/glog"
	"github.com/google/uuid"

	"github.com/anshu-sharma0/chatmessage/internal/domain"
	"github.com/anshu-sharma0/chatmessage/internal/identity"
	"github.com/anshu-sharma0/chatmessage/internal/presence"
	"github.com/anshu-sharma0/chatmessage/internal/protocol"
)

var (
	// ErrEmptyBody is returned when a message body is empty after trimming.
	ErrEmptyBody = errors.New("message body is empty")
	// ErrNoConversation is returned when sending before a conversation is resolved.
	ErrNoConversation = errors.New("no active conversation")
	// ErrStaleSelection is returned when a newer peer selection superseded the one being opened.
	ErrStaleSelection = errors.New("selection superseded")
)

// API is the subset of the REST backend the session uses.
type API interface {
	UserLister
	ConversationCreator
	GetMessages(ctx context.Context, conversationID string) ([]domain.Message, error)
	SendMessage(ctx context.Context, req *domain.SendMessageRequest) (*domain.Message, error)
}

// Bridge emits realtime events. *bridge.Client implements it.
type Bridge interface {
	Join(conversationID, userID string) error
	Typing(conversationID, userID string) error
	StopTyping(conversationID, userID string) error
	Publish(conversationID string, msg domain.Message) error
}

type nopBridge struct{}

func (nopBridge) Join(string, string) error            { return nil }
func (nopBridge) Typing(string, string) error          { return nil }
func (nopBridge) StopTyping(string, string) error      { return nil }
func (nopBridge) Publish(string, domain.Message) error { return nil }

// Options tunes the session's timers.
type Options struct {
	TypingDebounce  time.Duration
	StopTypingDelay time.Duration
	PeerTypingTTL   time.Duration
}

// DefaultOptions returns the standard timer values.
func DefaultOptions() Options {
	return Options{
		TypingDebounce:  1500 * time.Millisecond,
		StopTypingDelay: 2 * time.Second,
		PeerTypingTTL:   10 * time.Second,
	}
}

// Entry is a timeline message classified relative to the local user.
type Entry struct {
	domain.Message
	Kind domain.SenderKind
}

// Snapshot is an immutable view of the session state.
type Snapshot struct {
	Peer           *domain.User
	ConversationID string
	Entries        []Entry
	Loading        bool
	PeerTyping     bool
}

// Selection identifies one peer selection. It is returned by Select and consumed by Open.
type Selection struct {
	Peer domain.User
	gen  uint64
}

// Session owns the state of the active conversation: the selected peer, the resolved
// conversation id, the timeline and the presence state.
type Session struct {
	ident     identity.Identity
	api       API
	bridge    Bridge
	directory *Directory
	resolver  *Resolver
	tracker   *presence.Tracker
	signaler  *presence.Signaler
	updates   chan struct{}

	// now and newClientID are replaced in tests.
	now         func() time.Time
	newClientID func() string

	mu             sync.Mutex
	gen            uint64
	peer           *domain.User
	conversationID string
	loading        bool
	timeline       Timeline
}

// New creates a session for ident. A nil bridge runs the session over REST only.
func New(ident identity.Identity, api API, bridge Bridge, opts Options) *Session {
	if bridge == nil {
		bridge = nopBridge{}
	}
	s := &Session{
		ident:       ident,
		api:         api,
		bridge:      bridge,
		directory:   NewDirectory(api),
		resolver:    NewResolver(api),
		updates:     make(chan struct{}, 1),
		now:         time.Now,
		newClientID: uuid.NewString,
	}
	s.tracker = presence.NewTracker(opts.StopTypingDelay, opts.PeerTypingTTL, func(bool) { s.notify() })
	s.signaler = presence.NewSignaler(opts.TypingDebounce, s.emitTyping)
	return s
}

// Identity returns the local user.
func (s *Session) Identity() identity.Identity {
	return s.ident
}

// Updates delivers a value whenever the snapshot may have changed. Notifications coalesce.
func (s *Session) Updates() <-chan struct{} {
	return s.updates
}

// Users lists the directory without the local user.
func (s *Session) Users(ctx context.Context) []domain.User {
	all := s.directory.List(ctx)
	users := make([]domain.User, 0, len(all))
	for _, u := range all {
		if u.ID == s.ident.UserID() {
			continue
		}
		users = append(users, u)
	}
	return users
}

// Select makes peer the active peer. It clears the timeline and presence state synchronously,
// so nothing from the previous conversation is visible afterwards. The conversation is
// resolved and hydrated by Open.
func (s *Session) Select(peer domain.User) (Selection, error) {
	if peer.ID == "" {
		return Selection{}, ErrMissingParticipant
	}
	if peer.ID == s.ident.UserID() {
		return Selection{}, ErrSelfConversation
	}

	s.signaler.Stop()
	s.tracker.Reset()

	s.mu.Lock()
	s.gen++
	p := peer
	s.peer = &p
	s.conversationID = ""
	s.loading = true
	s.timeline.Reset()
	sel := Selection{Peer: peer, gen: s.gen}
	s.mu.Unlock()

	s.notify()
	return sel, nil
}

// Open resolves the conversation of sel, joins it on the bridge and loads its history.
// It returns ErrStaleSelection when another Select happened in the meantime; nothing is
// applied in that case.
func (s *Session) Open(ctx context.Context, sel Selection) error {
	conversationID, err := s.resolver.Resolve(ctx, s.ident.UserID(), sel.Peer.ID)
	if err != nil {
		s.finishLoading(sel)
		return err
	}

	s.mu.Lock()
	if sel.gen != s.gen {
		s.mu.Unlock()
		return ErrStaleSelection
	}
	s.conversationID = conversationID
	s.mu.Unlock()
	s.notify()

	if err := s.bridge.Join(conversationID, s.ident.UserID()); err != nil {
		glog.Warningf("session: join %s: %v", conversationID, err)
	}

	history, err := s.api.GetMessages(ctx, conversationID)
	if err != nil {
		glog.Warningf("session: load history of %s: %v", conversationID, err)
		history = nil
	}

	s.mu.Lock()
	if sel.gen != s.gen {
		s.mu.Unlock()
		glog.V(1).Infof("session: discarding stale history of %s", conversationID)
		return ErrStaleSelection
	}
	s.timeline.Hydrate(history)
	s.loading = false
	s.mu.Unlock()

	s.notify()
	return nil
}

// Switch selects peer and opens its conversation.
func (s *Session) Switch(ctx context.Context, peer domain.User) error {
	sel, err := s.Select(peer)
	if err != nil {
		return err
	}
	return s.Open(ctx, sel)
}

func (s *Session) finishLoading(sel Selection) {
	s.mu.Lock()
	if sel.gen == s.gen {
		s.loading = false
	}
	s.mu.Unlock()
	s.notify()
}

// Send sends body to the active conversation. The body is trimmed first; an empty body
// returns ErrEmptyBody and changes nothing. When the backend cannot be reached a local
// message is appended instead, so the send is never lost from the timeline.
func (s *Session) Send(ctx context.Context, body string) (domain.Message, error) {
	body = strings.TrimSpace(body)
	if body == "" {
		return domain.Message{}, ErrEmptyBody
	}

	s.mu.Lock()
	conversationID, gen := s.conversationID, s.gen
	s.mu.Unlock()
	if conversationID == "" {
		return domain.Message{}, ErrNoConversation
	}

	req := &domain.SendMessageRequest{
		ConversationID: conversationID,
		SenderID:       s.ident.UserID(),
		Message:        body,
		ClientID:       s.newClientID(),
	}
	msg, err := s.api.SendMessage(ctx, req)
	if err != nil {
		glog.Warningf("session: send to %s: %v", conversationID, err)
		msg = s.localMessage(req)
	}
	if msg.ClientID == "" {
		msg.ClientID = req.ClientID
	}
	if msg.ConversationID == "" {
		msg.ConversationID = conversationID
	}

	s.mu.Lock()
	if gen == s.gen {
		s.timeline.Merge(*msg)
	}
	s.mu.Unlock()
	s.notify()

	if err := s.bridge.Publish(conversationID, *msg); err != nil {
		glog.Warningf("session: publish to %s: %v", conversationID, err)
	}
	s.signaler.Stop()
	return *msg, nil
}

func (s *Session) localMessage(req *domain.SendMessageRequest) *domain.Message {
	now := s.now()
	return &domain.Message{
		ID:             fmt.Sprintf("msg_%d", now.UnixMilli()),
		ConversationID: req.ConversationID,
		SenderID:       req.SenderID,
		Body:           req.Message,
		Timestamp:      domain.FormatTimestamp(now),
		ClientID:       req.ClientID,
	}
}

// InputChanged reports the current content of the input box for typing signals.
func (s *Session) InputChanged(text string) {
	s.mu.Lock()
	active := s.conversationID != ""
	s.mu.Unlock()
	if !active {
		return
	}
	s.signaler.Input(strings.TrimSpace(text))
}

func (s *Session) emitTyping(eventType string) {
	s.mu.Lock()
	conversationID := s.conversationID
	s.mu.Unlock()
	if conversationID == "" {
		return
	}

	var err error
	if eventType == protocol.TypeTyping {
		err = s.bridge.Typing(conversationID, s.ident.UserID())
	} else {
		err = s.bridge.StopTyping(conversationID, s.ident.UserID())
	}
	if err != nil {
		glog.V(1).Infof("session: %s on %s: %v", eventType, conversationID, err)
	}
}

// HandleEvent applies one inbound realtime event.
func (s *Session) HandleEvent(evt protocol.Event) {
	switch evt.Type {
	case protocol.TypeReceiveMessage:
		s.receive(evt)
	case protocol.TypeTyping, protocol.TypeStopTyping:
		if evt.Subject() == s.ident.UserID() || !s.isActive(evt.ConversationID) {
			return
		}
		if evt.Type == protocol.TypeTyping {
			s.tracker.Typing()
		} else {
			s.tracker.StopTyping()
		}
	case protocol.TypeError:
		glog.Warningf("session: event service error %s: %s", evt.Code, evt.Text)
	default:
		glog.V(1).Infof("session: ignoring event %q", evt.Type)
	}
}

func (s *Session) receive(evt protocol.Event) {
	if evt.Message == nil || strings.TrimSpace(evt.Message.Body) == "" {
		return
	}
	msg := *evt.Message
	conversationID := evt.ConversationID
	if conversationID == "" {
		conversationID = msg.ConversationID
	}

	s.mu.Lock()
	if s.conversationID == "" || (conversationID != "" && conversationID != s.conversationID) {
		s.mu.Unlock()
		return
	}
	s.timeline.Merge(msg)
	s.mu.Unlock()
	s.notify()
}

func (s *Session) isActive(conversationID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conversationID == "" {
		return false
	}
	return conversationID == "" || conversationID == s.conversationID
}

// Listen applies events until ctx is done or events is closed.
func (s *Session) Listen(ctx context.Context, events <-chan protocol.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case evt, ok := <-events:
			if !ok {
				glog.Warning("session: event stream closed")
				return
			}
			s.HandleEvent(evt)
		}
	}
}

// Snapshot returns the current state.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := Snapshot{
		ConversationID: s.conversationID,
		Loading:        s.loading,
		PeerTyping:     s.tracker.PeerTyping(),
	}
	if s.peer != nil {
		p := *s.peer
		snap.Peer = &p
	}
	self := s.ident.UserID()
	for _, msg := range s.timeline.Messages() {
		snap.Entries = append(snap.Entries, Entry{Message: msg, Kind: domain.KindOf(msg, self)})
	}
	return snap
}

// Leave stops typing signals and clears the active conversation.
func (s *Session) Leave() {
	s.signaler.Stop()
	s.tracker.Reset()

	s.mu.Lock()
	s.gen++
	s.peer = nil
	s.conversationID = ""
	s.loading = false
	s.timeline.Reset()
	s.mu.Unlock()
	s.notify()
}

// Close releases timers. The session must not be used afterwards.
func (s *Session) Close() {
	s.Leave()
	s.signaler.Reset()
}

func (s *Session) notify() {
	select {
	case s.updates <- struct{}{}:
	default:
	}
}
