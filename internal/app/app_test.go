package app

import (
	"context"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/nhle/notifeed/internal/model"
	"github.com/nhle/notifeed/internal/session"
	"github.com/nhle/notifeed/internal/source"
	"github.com/nhle/notifeed/internal/source/sourcetest"
	"github.com/nhle/notifeed/internal/ui/command"
	"github.com/nhle/notifeed/internal/ui/detail"
	"github.com/nhle/notifeed/internal/ui/feedlist"
	"github.com/nhle/notifeed/tests/testutil"
)

func newTestModel(t *testing.T) (Model, *sourcetest.System, *sourcetest.Forum) {
	t.Helper()

	sys := sourcetest.NewSystem()
	forum := sourcetest.NewForum()
	sys.QueueItems(sourcetest.SystemItem("s1", testutil.T0))
	forum.QueueFailure(context.DeadlineExceeded)

	sess := session.New(session.Options{
		Sources: []source.Source{sys, forum},
		Logger:  zerolog.Nop(),
	})

	m := New(context.Background(), sess)
	updated, _ := m.Update(tea.WindowSizeMsg{Width: 100, Height: 30})
	return updated.(Model), sys, forum
}

func runes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func TestViewBeforeSize(t *testing.T) {
	t.Parallel()

	sess := session.New(session.Options{Logger: zerolog.Nop()})
	require.Equal(t, "Loading...", New(context.Background(), sess).View())
}

func TestDegradedSourceShowsBanner(t *testing.T) {
	t.Parallel()

	m, _, _ := newTestModel(t)
	_, err := m.session.Refresh(context.Background())
	require.NoError(t, err)

	updated, _ := m.Update(feedlist.FeedChangedMsg{})
	m = updated.(Model)

	require.Equal(t, []model.Source{model.SourceForum}, m.feedList.Degraded())
	view := m.View()
	require.Contains(t, view, "partial data: forum unavailable")
	require.Contains(t, view, "1 unread")
}

func TestHelpToggle(t *testing.T) {
	t.Parallel()

	m, _, _ := newTestModel(t)

	updated, _ := m.Update(runes("?"))
	m = updated.(Model)
	require.Equal(t, ViewHelp, m.currentView)

	updated, _ = m.Update(runes("?"))
	m = updated.(Model)
	require.Equal(t, ViewList, m.currentView)
}

func TestShowAndBackFromDetail(t *testing.T) {
	t.Parallel()

	m, _, _ := newTestModel(t)
	n := sourcetest.ForumItem("f1", testutil.T0.Add(-time.Hour))

	updated, _ := m.Update(detail.ShowMsg{Notification: n})
	m = updated.(Model)
	require.Equal(t, ViewDetail, m.currentView)
	require.True(t, strings.Contains(m.View(), "Thread f1"))

	updated, _ = m.Update(detail.BackMsg{})
	m = updated.(Model)
	require.Equal(t, ViewList, m.currentView)
}

func TestCommandPalette(t *testing.T) {
	t.Parallel()

	m, sys, _ := newTestModel(t)

	updated, _ := m.Update(runes(":"))
	m = updated.(Model)
	require.Equal(t, ViewCommand, m.currentView)

	// Keys go to the palette, not the list.
	updated, _ = m.Update(runes("q"))
	m = updated.(Model)
	require.Equal(t, ViewCommand, m.currentView)

	updated, cmd := m.Update(command.CommandMsg("filter system"))
	m = updated.(Model)
	require.Equal(t, ViewList, m.currentView)
	require.NotNil(t, cmd)

	msg := cmd()
	require.IsType(t, feedlist.NoticeMsg{}, msg)
	require.Equal(t, session.FilterSystem, m.session.Filter())
	require.Len(t, sys.Fetches(), 1)
}

func TestCommandPaletteRejectsUnknownCommand(t *testing.T) {
	t.Parallel()

	m, _, _ := newTestModel(t)

	_, cmd := m.Update(command.CommandMsg("archive everything"))
	require.NotNil(t, cmd)

	notice, ok := cmd().(feedlist.NoticeMsg)
	require.True(t, ok)
	require.ErrorContains(t, notice.Err, "unknown command")
}

func TestQuitFromList(t *testing.T) {
	t.Parallel()

	m, _, _ := newTestModel(t)

	_, cmd := m.Update(runes("q"))
	require.NotNil(t, cmd)
	require.IsType(t, tea.QuitMsg{}, cmd())
}
