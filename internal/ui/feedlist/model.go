package feedlist

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/nhle/notifeed/internal/feed"
	"github.com/nhle/notifeed/internal/keys"
	"github.com/nhle/notifeed/internal/model"
	"github.com/nhle/notifeed/internal/readstate"
	"github.com/nhle/notifeed/internal/session"
	appsync "github.com/nhle/notifeed/internal/sync"
	"github.com/nhle/notifeed/internal/theme"
	"github.com/nhle/notifeed/internal/ui/command"
)

// Feed is the part of session.Session the list drives.
type Feed interface {
	Notifications() []model.Notification
	Filter() session.Filter
	Statuses() []appsync.SyncStatus
	HasMore() bool
	Refresh(ctx context.Context) (appsync.Page, error)
	NextPage(ctx context.Context) (appsync.Page, error)
	SetFilter(ctx context.Context, f session.Filter) (appsync.Page, error)
	MarkAsRead(ctx context.Context, n model.Notification) readstate.Report
	MarkAllAsRead(ctx context.Context) readstate.Report
	Delete(ctx context.Context, n model.Notification) error
	Open(ctx context.Context, n model.Notification) readstate.Report
	RetryFailed(ctx context.Context) (session.RetrySummary, error)
}

// FeedChangedMsg asks the list to re-read the feed.
type FeedChangedMsg struct{}

// NoticeMsg carries the outcome of a command for the status line.
type NoticeMsg struct {
	Text string
	Err  error
}

// Model is the notification list view component.
type Model struct {
	list     list.Model
	feed     Feed
	keys     *keys.KeyMap
	ctx      context.Context
	degraded map[model.Source]bool
	notice   NoticeMsg
	width    int
	height   int
}

// New creates a new notification list model.
func New(ctx context.Context, f Feed, k *keys.KeyMap, width, height int) Model {
	degraded := make(map[model.Source]bool)
	delegate := ItemDelegate{degraded: degraded, now: time.Now}

	l := list.New([]list.Item{}, delegate, width, height-2)
	l.Title = "Notifications"
	l.SetShowStatusBar(true)
	l.SetShowHelp(false)
	l.SetFilteringEnabled(false)
	l.Styles.Title = theme.HeaderStyle

	return Model{
		list:     l,
		feed:     f,
		keys:     k,
		ctx:      ctx,
		degraded: degraded,
		width:    width,
		height:   height,
	}
}

// Init fetches the first page.
func (m Model) Init() tea.Cmd {
	return m.fetch(func(ctx context.Context) (appsync.Page, error) {
		return m.feed.Refresh(ctx)
	})
}

// Update handles messages for the list view.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case FeedChangedMsg:
		cmd := m.reload()
		return m, cmd

	case NoticeMsg:
		m.notice = msg
		cmd := m.reload()
		return m, cmd

	case tea.KeyMsg:
		return m.handleKeys(msg)
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

func (m Model) handleKeys(msg tea.KeyMsg) (Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Refresh):
		return m, m.fetch(m.feed.Refresh)

	case key.Matches(msg, m.keys.NextPage):
		if !m.feed.HasMore() {
			m.notice = NoticeMsg{Text: "no more notifications"}
			return m, nil
		}
		return m, m.fetch(m.feed.NextPage)

	case key.Matches(msg, m.keys.CycleFilter):
		next := m.feed.Filter().Next()
		return m, m.fetch(func(ctx context.Context) (appsync.Page, error) {
			return m.feed.SetFilter(ctx, next)
		})

	case key.Matches(msg, m.keys.Open):
		n, ok := m.selected()
		if !ok {
			return m, nil
		}
		return m, m.report(func(ctx context.Context) readstate.Report {
			return m.feed.Open(ctx, n)
		})

	case key.Matches(msg, m.keys.MarkRead):
		n, ok := m.selected()
		if !ok || n.IsRead {
			return m, nil
		}
		return m, m.report(func(ctx context.Context) readstate.Report {
			return m.feed.MarkAsRead(ctx, n)
		})

	case key.Matches(msg, m.keys.MarkAll):
		return m, m.report(m.feed.MarkAllAsRead)

	case key.Matches(msg, m.keys.Delete):
		n, ok := m.selected()
		if !ok {
			return m, nil
		}
		ctx := m.ctx
		return m, func() tea.Msg {
			if err := m.feed.Delete(ctx, n); err != nil {
				return NoticeMsg{Text: "deleted locally; the server refused", Err: err}
			}
			return NoticeMsg{Text: "deleted"}
		}

	case key.Matches(msg, m.keys.Retry):
		return m, m.retry()
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

// Exec runs a palette command against the feed. Quit is left to the
// caller.
func (m Model) Exec(c command.Command) (Model, tea.Cmd) {
	switch c.Kind {
	case command.Refresh:
		return m, m.fetch(m.feed.Refresh)

	case command.More:
		if !m.feed.HasMore() {
			m.notice = NoticeMsg{Text: "no more notifications"}
			return m, nil
		}
		return m, m.fetch(m.feed.NextPage)

	case command.Filter:
		f, err := session.ParseFilter(c.Arg)
		if err != nil {
			m.notice = NoticeMsg{Err: err}
			return m, nil
		}
		return m, m.fetch(func(ctx context.Context) (appsync.Page, error) {
			return m.feed.SetFilter(ctx, f)
		})

	case command.ReadAll:
		return m, m.report(m.feed.MarkAllAsRead)

	case command.Retry:
		return m, m.retry()
	}
	return m, nil
}

// fetch runs a page load and reports it on the status line.
func (m Model) fetch(load func(context.Context) (appsync.Page, error)) tea.Cmd {
	ctx := m.ctx
	return func() tea.Msg {
		page, err := load(ctx)
		switch {
		case errors.Is(err, feed.ErrStaleFetch):
			return FeedChangedMsg{}
		case err != nil:
			return NoticeMsg{Err: err}
		}
		degraded := false
		for _, r := range page.Sources {
			degraded = degraded || r.Degraded
		}
		if degraded {
			return NoticeMsg{Text: fmt.Sprintf("page %d loaded with partial data", page.Number)}
		}
		return NoticeMsg{Text: fmt.Sprintf("page %d loaded", page.Number)}
	}
}

// retry replays failed journal steps.
func (m Model) retry() tea.Cmd {
	ctx := m.ctx
	return func() tea.Msg {
		sum, err := m.feed.RetryFailed(ctx)
		if err != nil {
			return NoticeMsg{Err: err}
		}
		return NoticeMsg{Text: fmt.Sprintf("retried %d, %d succeeded", sum.Attempted, sum.Succeeded)}
	}
}

// report runs a read-state mutation and summarizes its per-source report.
func (m Model) report(run func(context.Context) readstate.Report) tea.Cmd {
	ctx := m.ctx
	return func() tea.Msg {
		r := run(ctx)
		switch {
		case r.OK():
			return NoticeMsg{}
		case r.Partial():
			return NoticeMsg{Text: fmt.Sprintf("partially applied, failed: %v", r.Failed()), Err: r.Err()}
		default:
			return NoticeMsg{Err: r.Err()}
		}
	}
}

// reload copies the feed into the list and refreshes degraded flags.
func (m *Model) reload() tea.Cmd {
	for _, st := range m.feed.Statuses() {
		m.degraded[st.Source] = st.State == appsync.SyncDegraded
	}

	ns := m.feed.Notifications()
	items := make([]list.Item, len(ns))
	for i, n := range ns {
		items[i] = NotificationItem{N: n}
	}
	return m.list.SetItems(items)
}

func (m Model) selected() (model.Notification, bool) {
	it, ok := m.list.SelectedItem().(NotificationItem)
	if !ok {
		return model.Notification{}, false
	}
	return it.N, true
}

// Degraded returns the sources currently flagged as degraded.
func (m Model) Degraded() []model.Source {
	var out []model.Source
	for _, src := range model.Sources {
		if m.degraded[src] {
			out = append(out, src)
		}
	}
	return out
}

// Notice returns the last status line notice.
func (m Model) Notice() NoticeMsg { return m.notice }

// View renders the list.
func (m Model) View() string {
	m.list.Title = fmt.Sprintf("Notifications · %s", m.feed.Filter())
	return m.list.View()
}

// SetSize updates the list dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.list.SetSize(width, height)
}
