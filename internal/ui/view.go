package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/anshu-sharma0/chatmessage/internal/conversation"
	"github.com/anshu-sharma0/chatmessage/internal/domain"
)

// now is replaced in tests.
var now = time.Now

func (m Model) View() string {
	if m.screen == screenDirectory {
		return m.directoryView()
	}
	return m.chatView()
}

func (m Model) directoryView() string {
	var b strings.Builder
	me := m.session.Identity().Profile
	b.WriteString(titleStyle.Render("Chats"))
	b.WriteString(mutedStyle.Render(" signed in as " + me.Name))
	b.WriteString("\n\n")

	switch {
	case m.loading:
		b.WriteString(m.spinner.View() + " Loading users...\n")
	case len(m.users) == 0:
		b.WriteString(mutedStyle.Render("No users found") + "\n")
	default:
		for i, u := range m.users {
			line := avatar(u.Initials(), u.ID) + " " + u.Name + " " + mutedStyle.Render(u.Email)
			if i == m.cursor {
				b.WriteString(selectedItemStyle.Render(line))
			} else {
				b.WriteString(unselectedItemStyle.Render(line))
			}
			b.WriteString("\n")
		}
	}

	if m.err != nil {
		b.WriteString("\n" + errorStyle.Render(m.err.Error()) + "\n")
	}
	b.WriteString("\n" + mutedStyle.Render("↑/↓ move • enter chat • r reload • q quit"))
	return b.String()
}

func (m Model) chatView() string {
	var b strings.Builder

	name := ""
	if m.snap.Peer != nil {
		name = avatar(m.snap.Peer.Initials(), m.snap.Peer.ID) + " " + m.snap.Peer.Name
	}
	b.WriteString(headerStyle.Width(m.width).Render(name))
	b.WriteString("\n")

	if m.snap.Loading {
		b.WriteString(m.spinner.View() + " Loading messages...\n")
	} else {
		b.WriteString(m.timeline.View())
		b.WriteString("\n")
	}

	if m.snap.PeerTyping {
		b.WriteString(mutedStyle.Italic(true).Render("typing..."))
	}
	b.WriteString("\n")

	if m.err != nil {
		b.WriteString(errorStyle.Render(m.err.Error()) + "\n")
	}
	if m.showEmoji {
		b.WriteString(renderPalette(m.emojiCursor) + "\n")
	}
	b.WriteString(footerStyle.Width(m.width).Render(m.input.View()))
	b.WriteString("\n" + mutedStyle.Render("enter send • ctrl+e emoji • esc back"))
	return b.String()
}

// renderTimeline renders the entries of snap, one bubble per message.
func renderTimeline(snap conversation.Snapshot, width int, at time.Time) string {
	if len(snap.Entries) == 0 {
		return mutedStyle.Render("No messages yet. Say hi!")
	}
	lines := make([]string, 0, len(snap.Entries))
	for _, e := range snap.Entries {
		lines = append(lines, renderEntry(e, snap.Peer, width, at))
	}
	return strings.Join(lines, "\n")
}

func renderEntry(e conversation.Entry, peer *domain.User, width int, at time.Time) string {
	stamp := mutedStyle.Render(FormatTime(e.Time(), at))
	if e.Kind == domain.SenderLocal {
		line := stamp + " " + localBubbleStyle.Render(e.Body)
		return lipgloss.PlaceHorizontal(width, lipgloss.Right, line)
	}

	initials := "?"
	if peer != nil {
		initials = peer.Initials()
	}
	return fmt.Sprintf("%s %s %s", avatar(initials, e.SenderID), remoteBubbleStyle.Render(e.Body), stamp)
}

func renderPalette(cursor int) string {
	cells := make([]string, 0, len(Emojis))
	for i, glyph := range Emojis {
		cell := glyph
		if i < 10 {
			cell = fmt.Sprintf("%d %s", (i+1)%10, glyph)
		}
		if i == cursor {
			cell = paletteCursorStyle.Render(cell)
		}
		cells = append(cells, cell)
	}
	return paletteStyle.Render(strings.Join(cells, "  "))
}
