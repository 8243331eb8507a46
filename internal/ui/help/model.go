// Package help renders the shortcut reference and the per-source sync
// state.
package help

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/notifeed/internal/keys"
	appsync "github.com/nhle/notifeed/internal/sync"
	"github.com/nhle/notifeed/internal/theme"
	"github.com/nhle/notifeed/internal/ui/command"
)

const legend = "● unread   ⚠ source unavailable, showing partial data   tab: all → unread → system → forum"

// Model is the help overlay view.
type Model struct {
	keys     *keys.KeyMap
	help     help.Model
	statuses []appsync.SyncStatus
	width    int
	height   int
}

// New creates a new help view model.
func New(keys *keys.KeyMap, width, height int) Model {
	h := help.New()
	h.Width = width
	h.ShowAll = true
	return Model{
		keys:   keys,
		help:   h,
		width:  width,
		height: height,
	}
}

// Init returns the initial command.
func (m Model) Init() tea.Cmd {
	return nil
}

// Update handles messages for the help view.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	return m, nil
}

// SetStatuses replaces the source states shown under "Sources".
func (m *Model) SetStatuses(statuses []appsync.SyncStatus) {
	m.statuses = statuses
}

// View renders the help overlay.
func (m Model) View() string {
	section := lipgloss.NewStyle().
		Bold(true).
		Foreground(theme.ColorWhite)

	parts := []string{
		section.MarginBottom(1).Render("Keyboard Shortcuts"),
		m.help.View(m.keys),
		"",
		section.Render("Commands"),
		theme.HelpStyle.Render(":" + strings.Join(command.Names(), "  :")),
	}

	if len(m.statuses) > 0 {
		parts = append(parts, "", section.Render("Sources"))
		for _, s := range m.statuses {
			parts = append(parts, statusLine(s))
		}
	}

	parts = append(parts, "", theme.HelpStyle.Render(legend))

	return theme.DetailPanelStyle.
		Width(m.width - 4).
		Height(m.height - 4).
		Render(lipgloss.JoinVertical(lipgloss.Left, parts...))
}

func statusLine(s appsync.SyncStatus) string {
	label := theme.SourceLabelStyle(s.Source).Render(string(s.Source))
	line := fmt.Sprintf("%s %s", label, s.State)
	if !s.LastSuccess.IsZero() {
		line += theme.DimmedStyle.Render(" last ok " + s.LastSuccess.Format("15:04:05"))
	}
	if s.State == appsync.SyncDegraded && s.Error != nil {
		line += " " + theme.ErrorStyle.Render(s.Error.Error())
	}
	return line
}

// SetSize updates the help view dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.help.Width = width - 4
}
