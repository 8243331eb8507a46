package app

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/nhle/notifeed/internal/keys"
	"github.com/nhle/notifeed/internal/session"
	"github.com/nhle/notifeed/internal/theme"
	"github.com/nhle/notifeed/internal/ui"
	"github.com/nhle/notifeed/internal/ui/command"
	"github.com/nhle/notifeed/internal/ui/detail"
	"github.com/nhle/notifeed/internal/ui/feedlist"
	helpview "github.com/nhle/notifeed/internal/ui/help"
)

// feedChangedMsg is produced when the session signals a feed mutation.
type feedChangedMsg struct{}

// ViewState represents the current active view in the application.
type ViewState int

const (
	ViewList ViewState = iota
	ViewDetail
	ViewHelp
	ViewCommand
)

// Model is the root Bubble Tea model that manages view routing and
// layout around a notification session.
type Model struct {
	currentView  ViewState
	previousView ViewState
	layout       ui.Layout
	session      *session.Session
	keys         *keys.KeyMap
	feedList     feedlist.Model
	detail       detail.Model
	helpView     helpview.Model
	palette      command.Model
	ready        bool
}

// New creates a new root application model around s. Commands run with
// ctx.
func New(ctx context.Context, s *session.Session) Model {
	k := keys.DefaultKeyMap()

	return Model{
		currentView: ViewList,
		session:     s,
		keys:        k,
		feedList:    feedlist.New(ctx, s, k, 80, 24),
		detail:      detail.New(k, 80, 24),
		helpView:    helpview.New(k, 80, 24),
		palette:     command.New(80, 24),
	}
}

// Init loads the first page and starts listening for feed changes.
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		m.feedList.Init(),
		m.waitForChange(),
	)
}

// waitForChange blocks until the session reports a feed mutation.
func (m Model) waitForChange() tea.Cmd {
	ch := m.session.Changes()
	return func() tea.Msg {
		<-ch
		return feedChangedMsg{}
	}
}

// Update handles messages and dispatches to the active view.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.layout = ui.NewLayout(msg.Width, msg.Height)
		m.ready = true
		m.resize()
		return m, nil

	case feedChangedMsg:
		var cmd tea.Cmd
		m.feedList, cmd = m.feedList.Update(feedlist.FeedChangedMsg{})
		m.resize()
		return m, tea.Batch(cmd, m.waitForChange())

	case feedlist.NoticeMsg, feedlist.FeedChangedMsg:
		var cmd tea.Cmd
		m.feedList, cmd = m.feedList.Update(msg)
		m.resize()
		return m, cmd

	case detail.ShowMsg:
		m.detail.SetNotification(msg.Notification)
		m.previousView = m.currentView
		m.currentView = ViewDetail
		return m, nil

	case detail.BackMsg, command.CancelMsg:
		m.currentView = ViewList
		return m, nil

	case command.CommandMsg:
		m.currentView = ViewList
		c, err := command.Parse(string(msg))
		if err != nil {
			return m, func() tea.Msg { return feedlist.NoticeMsg{Err: err} }
		}
		if c.Kind == command.Quit {
			m.session.Close()
			return m, tea.Quit
		}
		var cmd tea.Cmd
		m.feedList, cmd = m.feedList.Exec(c)
		return m, cmd

	case tea.KeyMsg:
		if m.currentView == ViewCommand {
			return m.updateActiveView(msg)
		}
		switch {
		case key.Matches(msg, m.keys.Command) && m.currentView == ViewList:
			m.currentView = ViewCommand
			return m, m.palette.Focus()

		case key.Matches(msg, m.keys.Quit):
			if m.currentView == ViewList || msg.String() == "ctrl+c" {
				m.session.Close()
				return m, tea.Quit
			}

		case key.Matches(msg, m.keys.Help):
			if m.currentView == ViewHelp {
				m.currentView = m.previousView
				return m, nil
			}
			m.previousView = m.currentView
			m.currentView = ViewHelp
			m.helpView.SetStatuses(m.session.Statuses())
			return m, nil

		case key.Matches(msg, m.keys.Back) && m.currentView == ViewHelp:
			m.currentView = m.previousView
			return m, nil
		}
	}

	return m.updateActiveView(msg)
}

// updateActiveView forwards msg to the view in focus.
func (m Model) updateActiveView(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	switch m.currentView {
	case ViewDetail:
		m.detail, cmd = m.detail.Update(msg)
	case ViewHelp:
		m.helpView, cmd = m.helpView.Update(msg)
	case ViewCommand:
		m.palette, cmd = m.palette.Update(msg)
	default:
		m.feedList, cmd = m.feedList.Update(msg)
	}
	return m, cmd
}

// resize recomputes view sizes; the banner line comes and goes with the
// degraded state.
func (m *Model) resize() {
	if !m.ready {
		return
	}
	m.layout = m.layout.WithBanner(m.banner() != "")
	w, h := m.layout.ContentWidth(), m.layout.ContentHeight()
	m.feedList.SetSize(w, h)
	m.detail.SetSize(w, h)
	m.helpView.SetSize(w, h)
	m.palette.SetSize(w, h)
}

// View renders the full application frame.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}

	var content string
	switch m.currentView {
	case ViewDetail:
		content = m.detail.View()
	case ViewHelp:
		content = m.helpView.View()
	case ViewCommand:
		content = m.palette.View()
	default:
		content = m.feedList.View()
	}

	return m.layout.RenderWithFrame(
		m.layout.RenderHeader("notifeed", m.summary()),
		m.layout.RenderBanner(m.banner()),
		content,
		m.layout.RenderStatusBar(m.statusLine()),
	)
}

// summary renders the unread counter and active filter.
func (m Model) summary() string {
	return fmt.Sprintf("%d unread · %s", m.session.UnreadCount(), m.session.Filter())
}

// banner warns about partial data while a source is degraded.
func (m Model) banner() string {
	degraded := m.feedList.Degraded()
	if len(degraded) == 0 {
		return ""
	}
	names := make([]string, len(degraded))
	for i, src := range degraded {
		names[i] = string(src)
	}
	return fmt.Sprintf("⚠ partial data: %s unavailable", strings.Join(names, ", "))
}

// statusLine shows the last notice, or key hints for the active view.
func (m Model) statusLine() string {
	if m.currentView == ViewList {
		notice := m.feedList.Notice()
		switch {
		case notice.Err != nil && notice.Text != "":
			return theme.ErrorStyle.Render(notice.Text + ": " + notice.Err.Error())
		case notice.Err != nil:
			return theme.ErrorStyle.Render(notice.Err.Error())
		case notice.Text != "":
			return notice.Text
		}
	}
	return m.keyHints()
}

// keyHints returns keyboard shortcut hints for the status bar.
func (m Model) keyHints() string {
	switch m.currentView {
	case ViewHelp:
		return "? close help | esc back"
	case ViewDetail:
		return "esc back | j/k scroll"
	case ViewCommand:
		return "enter run | esc cancel"
	default:
		more := ""
		if m.session.HasMore() {
			more = " | n more"
		}
		return "q quit | ? help | : command | enter open | m read | A all read | d delete | tab filter" + more
	}
}
