package ui

import (
	"hash/fnv"
	"time"

	"github.com/charmbracelet/lipgloss"
)

// Emojis is the picker palette, in display order.
var Emojis = []string{"😀", "😂", "🥰", "😍", "🤔", "👍", "👎", "❤️", "🔥", "💯", "🎉", "👏", "🤝", "💪", "🙏"}

var avatarColors = []lipgloss.Color{
	lipgloss.Color("#EC4899"),
	lipgloss.Color("#8B5CF6"),
	lipgloss.Color("#3B82F6"),
	lipgloss.Color("#10B981"),
	lipgloss.Color("#F59E0B"),
	lipgloss.Color("#EF4444"),
}

// FormatTime renders t relative to now: "just now" within a minute, the clock time on the same
// day, "yesterday at" the clock time, or the month and day otherwise. Calendar days are taken in
// now's location.
func FormatTime(t, now time.Time) string {
	if t.IsZero() {
		return ""
	}
	if now.Sub(t) < time.Minute {
		return "just now"
	}

	t = t.In(now.Location())
	clock := t.Format("15:04")
	switch {
	case sameDay(t, now):
		return clock
	case sameDay(t, now.AddDate(0, 0, -1)):
		return "yesterday at " + clock
	}
	return t.Format("January 2") + " at " + clock
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

// avatarColor picks a stable palette color for a user id.
func avatarColor(userID string) lipgloss.Color {
	h := fnv.New32a()
	h.Write([]byte(userID))
	return avatarColors[h.Sum32()%uint32(len(avatarColors))]
}

// emojiForKey maps the digit keys 1-9 and 0 to the first ten palette entries.
func emojiForKey(key string) (string, bool) {
	if len(key) != 1 || key[0] < '0' || key[0] > '9' {
		return "", false
	}
	i := int(key[0] - '1')
	if key[0] == '0' {
		i = 9
	}
	return Emojis[i], true
}
