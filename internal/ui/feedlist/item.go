package feedlist

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/notifeed/internal/model"
	"github.com/nhle/notifeed/internal/theme"
)

// NotificationItem wraps a model.Notification so it can be used in a
// bubbles/list.
type NotificationItem struct {
	N model.Notification
}

// FilterValue returns the string used for fuzzy filtering.
func (i NotificationItem) FilterValue() string { return i.Title() }

// Title returns the headline of the notification.
func (i NotificationItem) Title() string {
	return Headline(i.N)
}

// Description returns a short summary line for the list.
func (i NotificationItem) Description() string {
	parts := []string{string(i.N.Source), i.N.Type, relativeTime(i.N.CreatedAt, time.Now())}
	return strings.Join(parts, " | ")
}

// Headline picks the most telling one-line text for n.
func Headline(n model.Notification) string {
	switch {
	case n.Sender != nil && n.Discussion != nil:
		return fmt.Sprintf("%s · %s: %s", n.Sender.DisplayName(), n.Discussion.Title, n.Message)
	case n.Title != "":
		return n.Title + ": " + n.Message
	default:
		return n.Message
	}
}

// ItemDelegate implements list.ItemDelegate for rendering notifications.
type ItemDelegate struct {
	// degraded maps sources whose last fetch failed. Shared by reference
	// with the feedlist Model so updates are visible.
	degraded map[model.Source]bool
	now      func() time.Time
}

// Height returns the number of lines each item takes.
func (d ItemDelegate) Height() int { return 1 }

// Spacing returns the number of blank lines between items.
func (d ItemDelegate) Spacing() int { return 0 }

// Update handles per-item messages (unused).
func (d ItemDelegate) Update(_ tea.Msg, _ *list.Model) tea.Cmd {
	return nil
}

// Render draws a single notification line.
func (d ItemDelegate) Render(w io.Writer, m list.Model, index int, item list.Item) {
	it, ok := item.(NotificationItem)
	if !ok {
		return
	}
	n := it.N
	isSelected := index == m.Index()

	marker := " "
	if !n.IsRead {
		marker = theme.UnreadMarkerStyle.Render("●")
	}

	label := strings.ToUpper(string(n.Source))
	srcBadge := theme.SourceLabelStyle(n.Source).Render(label[:min(3, len(label))])

	staleIndicator := ""
	if d.degraded[n.Source] {
		staleIndicator = lipgloss.NewStyle().
			Foreground(theme.ColorYellow).
			Render(" ⚠")
	}

	priBadge := ""
	if n.Priority != "" {
		priBadge = theme.PriorityStyle(n.Priority).Render(strings.ToUpper(n.Priority[:1])) + " "
	}

	timeStr := lipgloss.NewStyle().
		Foreground(theme.ColorGray).
		Render(relativeTime(n.CreatedAt, d.now()))

	line := fmt.Sprintf(
		"%s %s %s%s%s  %s",
		marker, srcBadge, priBadge, Headline(n), staleIndicator, timeStr,
	)

	if n.IsRead {
		line = theme.DimmedStyle.Render(line)
	}

	if isSelected {
		line = theme.SelectedItemStyle.Render(line)
	} else {
		line = theme.ListItemStyle.Render(line)
	}

	fmt.Fprint(w, line)
}

// relativeTime returns a human-friendly relative time string.
func relativeTime(t, now time.Time) string {
	if t.IsZero() {
		return ""
	}

	d := now.Sub(t)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	case d < 7*24*time.Hour:
		return fmt.Sprintf("%dd ago", int(d.Hours()/24))
	default:
		return fmt.Sprintf("%dw ago", int(d.Hours()/24/7))
	}
}
