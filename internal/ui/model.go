// Package ui is the terminal front end of a conversation session.
package ui

import (
	"context"
	"errors"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/golang/glog"

	"github.com/anshu-sharma0/chatmessage/internal/conversation"
	"github.com/anshu-sharma0/chatmessage/internal/domain"
)

type screen int

const (
	screenDirectory screen = iota
	screenChat
)

// --- Messages ---

type usersLoadedMsg struct {
	users []domain.User
}

type openedMsg struct {
	err error
}

type sentMsg struct {
	err error
}

type sessionUpdateMsg struct{}

// Model is the bubbletea model of the chat client.
type Model struct {
	ctx     context.Context
	session *conversation.Session

	screen  screen
	users   []domain.User
	cursor  int
	loading bool

	input    textinput.Model
	timeline viewport.Model
	spinner  spinner.Model

	showEmoji   bool
	emojiCursor int

	snap conversation.Snapshot
	err  error

	width  int
	height int
}

// New creates the model for session. ctx bounds every network call the UI makes.
func New(ctx context.Context, session *conversation.Session) Model {
	input := textinput.New()
	input.Placeholder = "Type a message..."
	input.CharLimit = 1000
	input.Width = 50

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	return Model{
		ctx:      ctx,
		session:  session,
		loading:  true,
		input:    input,
		timeline: viewport.New(80, 20),
		spinner:  sp,
		width:    80,
		height:   24,
	}
}

// Run starts the full screen program and blocks until the user quits.
func Run(ctx context.Context, session *conversation.Session) error {
	_, err := tea.NewProgram(New(ctx, session), tea.WithAltScreen()).Run()
	return err
}

// --- Commands ---

func (m Model) loadUsers() tea.Msg {
	return usersLoadedMsg{users: m.session.Users(m.ctx)}
}

func (m Model) waitForUpdate() tea.Msg {
	select {
	case <-m.session.Updates():
		return sessionUpdateMsg{}
	case <-m.ctx.Done():
		return nil
	}
}

func (m Model) open(sel conversation.Selection) tea.Cmd {
	return func() tea.Msg {
		return openedMsg{err: m.session.Open(m.ctx, sel)}
	}
}

func (m Model) send(body string) tea.Cmd {
	return func() tea.Msg {
		_, err := m.session.Send(m.ctx, body)
		return sentMsg{err: err}
	}
}

// --- Init ---

func (m Model) Init() tea.Cmd {
	return tea.Batch(m.loadUsers, m.waitForUpdate, m.spinner.Tick, textinput.Blink)
}

// --- Update ---

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
		if m.screen == screenDirectory {
			return m.updateDirectory(msg)
		}
		return m.updateChat(msg)

	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.layout()
		m.refresh()
		return m, nil

	case usersLoadedMsg:
		m.users = msg.users
		m.loading = false
		if m.cursor >= len(m.users) {
			m.cursor = 0
		}
		return m, nil

	case openedMsg:
		if msg.err != nil && !errors.Is(msg.err, conversation.ErrStaleSelection) {
			m.err = msg.err
		}
		m.refresh()
		return m, nil

	case sentMsg:
		if msg.err != nil && !errors.Is(msg.err, conversation.ErrEmptyBody) {
			glog.Warningf("ui: send: %v", msg.err)
			m.err = msg.err
		}
		return m, nil

	case sessionUpdateMsg:
		m.refresh()
		return m, m.waitForUpdate

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) updateDirectory(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q":
		return m, tea.Quit
	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}
	case "down", "j":
		if m.cursor < len(m.users)-1 {
			m.cursor++
		}
	case "r":
		m.loading = true
		return m, m.loadUsers
	case "enter":
		if len(m.users) == 0 {
			return m, nil
		}
		sel, err := m.session.Select(m.users[m.cursor])
		if err != nil {
			m.err = err
			return m, nil
		}
		m.err = nil
		m.screen = screenChat
		m.showEmoji = false
		m.input.Reset()
		focus := m.input.Focus()
		m.refresh()
		return m, tea.Batch(focus, m.open(sel))
	}
	return m, nil
}

func (m Model) updateChat(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.showEmoji {
		return m.updatePalette(msg)
	}

	switch msg.String() {
	case "esc":
		m.session.Leave()
		m.screen = screenDirectory
		m.input.Blur()
		m.input.Reset()
		m.err = nil
		return m, nil
	case "ctrl+e":
		m.showEmoji = true
		return m, nil
	case "enter":
		// Keep the draft until the conversation is resolved.
		if m.session.Snapshot().ConversationID == "" {
			return m, nil
		}
		body := m.input.Value()
		m.input.Reset()
		return m, m.send(body)
	case "pgup", "pgdown":
		var cmd tea.Cmd
		m.timeline, cmd = m.timeline.Update(msg)
		return m, cmd
	}

	before := m.input.Value()
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	if m.input.Value() != before {
		m.session.InputChanged(m.input.Value())
	}
	return m, cmd
}

func (m Model) updatePalette(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	key := msg.String()
	switch key {
	case "esc", "ctrl+e":
		m.showEmoji = false
	case "left", "h":
		if m.emojiCursor > 0 {
			m.emojiCursor--
		}
	case "right", "l":
		if m.emojiCursor < len(Emojis)-1 {
			m.emojiCursor++
		}
	case "enter":
		m.insertEmoji(Emojis[m.emojiCursor])
	default:
		if glyph, ok := emojiForKey(key); ok {
			m.insertEmoji(glyph)
		}
	}
	return m, nil
}

// insertEmoji appends glyph to the end of the input and closes the palette.
func (m *Model) insertEmoji(glyph string) {
	m.input.SetValue(m.input.Value() + glyph)
	m.input.CursorEnd()
	m.showEmoji = false
	m.session.InputChanged(m.input.Value())
}

func (m *Model) layout() {
	m.input.Width = m.width - 4
	m.timeline.Width = m.width
	// header, typing line, input and palette
	h := m.height - 8
	if h < 3 {
		h = 3
	}
	m.timeline.Height = h
}

// refresh re-reads the session snapshot and re-renders the timeline.
func (m *Model) refresh() {
	m.snap = m.session.Snapshot()
	m.timeline.SetContent(renderTimeline(m.snap, m.timeline.Width, now()))
	m.timeline.GotoBottom()
}
