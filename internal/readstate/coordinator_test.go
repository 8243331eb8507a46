package readstate

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/nhle/notifeed/internal/feed"
	"github.com/nhle/notifeed/internal/model"
	"github.com/nhle/notifeed/internal/source"
	"github.com/nhle/notifeed/internal/source/sourcetest"
	"github.com/nhle/notifeed/tests/testutil"
)

type fixture struct {
	store  *feed.Store
	system *sourcetest.System
	forum  *sourcetest.Forum
	coord  *Coordinator
}

func newFixture(t *testing.T, journal Journal, items ...model.Notification) fixture {
	t.Helper()

	f := fixture{
		store:  feed.New(0),
		system: sourcetest.NewSystem(),
		forum:  sourcetest.NewForum(),
	}
	require.NoError(t, f.store.ApplyFetch(f.store.BeginFetch(), 1, items))
	f.coord = New(f.store, []source.Source{f.system, f.forum}, journal, zerolog.Nop())
	return f
}

func ago(m int) time.Time {
	return testutil.T0.Add(-time.Duration(m) * time.Minute)
}

func isRead(t *testing.T, s *feed.Store, k model.Key) bool {
	t.Helper()
	n, ok := s.Get(k)
	require.True(t, ok, "missing %s", k)
	return n.IsRead
}

func TestMarkReadSendsOneCallPerSource(t *testing.T) {
	t.Parallel()

	s1 := sourcetest.SystemItem("1", ago(1))
	s2 := sourcetest.SystemItem("2", ago(2))
	f1 := sourcetest.ForumItem("1", ago(3))
	f := newFixture(t, nil, s1, s2, f1)

	report := f.coord.MarkRead(context.Background(), []model.Key{s1.Key(), f1.Key(), s2.Key(), s1.Key()})

	require.True(t, report.OK())
	require.Equal(t, []sourcetest.Call{{Method: "MarkRead", IDs: []string{"1", "2"}}}, f.system.Calls())
	require.Equal(t, []sourcetest.Call{{Method: "MarkRead", IDs: []string{"1"}}}, f.forum.Calls())
	require.Zero(t, f.store.UnreadCount())
}

func TestMarkReadRollsBackOnlyFailingSource(t *testing.T) {
	t.Parallel()

	s1 := sourcetest.SystemItem("1", ago(1))
	f1 := sourcetest.ForumItem("1", ago(2))
	f := newFixture(t, nil, s1, f1)
	f.forum.FailMarkRead(errors.New("forum down"))

	report := f.coord.MarkRead(context.Background(), []model.Key{s1.Key(), f1.Key()})

	require.True(t, report.Partial())
	require.Equal(t, []model.Source{model.SourceForum}, report.Failed())

	var failed *MarkReadFailedError
	require.ErrorAs(t, report.Err(), &failed)
	require.Equal(t, model.SourceForum, failed.Source)
	require.Equal(t, []model.Key{f1.Key()}, failed.Keys)

	require.True(t, isRead(t, f.store, s1.Key()))
	require.False(t, isRead(t, f.store, f1.Key()))
	require.Equal(t, 1, f.store.UnreadCount())
	require.Equal(t, f.store.RecountUnread(), f.store.UnreadCount())
}

func TestMarkReadDoesNotRevertEntriesAlreadyRead(t *testing.T) {
	t.Parallel()

	read := sourcetest.Read(sourcetest.SystemItem("1", ago(1)))
	unread := sourcetest.SystemItem("2", ago(2))
	f := newFixture(t, nil, read, unread)
	f.system.FailMarkRead(errors.New("nope"))

	report := f.coord.MarkRead(context.Background(), []model.Key{read.Key(), unread.Key()})

	require.False(t, report.OK())
	require.True(t, isRead(t, f.store, read.Key()))
	require.False(t, isRead(t, f.store, unread.Key()))
}

func TestMarkAllReadUsesBulkAndPerIDPrimitives(t *testing.T) {
	t.Parallel()

	s1 := sourcetest.SystemItem("1", ago(1))
	s2 := sourcetest.Read(sourcetest.SystemItem("2", ago(2)))
	s3 := sourcetest.SystemItem("3", ago(3))
	f1 := sourcetest.ForumItem("1", ago(4))
	f := newFixture(t, nil, s1, s2, s3, f1)

	report := f.coord.MarkAllRead(context.Background())

	require.True(t, report.OK())
	require.Equal(t, model.OpMarkAllRead, report.Op)
	require.Equal(t, []sourcetest.Call{{Method: "MarkRead", IDs: []string{"1", "3"}}}, f.system.Calls())
	require.Equal(t, []sourcetest.Call{{Method: "MarkAllRead"}}, f.forum.Calls())
	require.Zero(t, f.store.UnreadCount())
}

func TestMarkAllReadSkipsSourceWithNothingUnread(t *testing.T) {
	t.Parallel()

	f1 := sourcetest.ForumItem("1", ago(1))
	f := newFixture(t, nil, f1)

	report := f.coord.MarkAllRead(context.Background())

	sys, ok := report.For(model.SourceSystem)
	require.True(t, ok)
	require.True(t, sys.Skipped)
	require.Empty(t, f.system.Calls())

	// The bulk primitive is sent even when nothing is unread locally.
	require.Len(t, f.forum.Calls(), 1)
}

func TestMarkAllReadPartialFailure(t *testing.T) {
	t.Parallel()

	s1 := sourcetest.SystemItem("1", ago(1))
	f1 := sourcetest.ForumItem("1", ago(2))
	f2 := sourcetest.ForumItem("2", ago(3))
	f := newFixture(t, nil, s1, f1, f2)
	f.forum.FailMarkRead(errors.New("503"))

	report := f.coord.MarkAllRead(context.Background())

	require.True(t, report.Partial())
	require.True(t, isRead(t, f.store, s1.Key()))
	require.False(t, isRead(t, f.store, f1.Key()))
	require.False(t, isRead(t, f.store, f2.Key()))
	require.Equal(t, 2, f.store.UnreadCount())
}

func TestMarkReadUnknownSource(t *testing.T) {
	t.Parallel()

	store := feed.New(0)
	n := sourcetest.ForumItem("1", ago(1))
	require.NoError(t, store.ApplyFetch(store.BeginFetch(), 1, []model.Notification{n}))
	coord := New(store, []source.Source{sourcetest.NewSystem()}, nil, zerolog.Nop())

	report := coord.MarkRead(context.Background(), []model.Key{n.Key()})

	require.ErrorIs(t, report.Err(), ErrUnknownSource)
	require.False(t, isRead(t, store, n.Key()))
}

func TestDeleteRemovesLocallyAndRemotely(t *testing.T) {
	t.Parallel()

	s1 := sourcetest.SystemItem("1", ago(1))
	f1 := sourcetest.ForumItem("1", ago(2))
	f := newFixture(t, nil, s1, f1)

	require.NoError(t, f.coord.Delete(context.Background(), s1.Key()))
	require.NoError(t, f.coord.Delete(context.Background(), f1.Key()))

	require.Zero(t, f.store.Len())
	require.Equal(t, []sourcetest.Call{{Method: "Delete", IDs: []string{"1"}}}, f.system.Calls())
	require.Equal(t, []sourcetest.Call{{Method: "DeleteOne", IDs: []string{"1"}}}, f.forum.Calls())
}

func TestDeleteFailureDoesNotReinsert(t *testing.T) {
	t.Parallel()

	f1 := sourcetest.ForumItem("1", ago(1))
	f := newFixture(t, nil, f1)
	f.forum.FailDelete(errors.New("gone wrong"))

	err := f.coord.Delete(context.Background(), f1.Key())

	var delErr *DeleteFailedError
	require.ErrorAs(t, err, &delErr)
	require.Equal(t, f1.Key(), delErr.Key)
	require.Zero(t, f.store.Len())
	require.Zero(t, f.store.UnreadCount())
}

func TestMutationsAreJournaled(t *testing.T) {
	t.Parallel()

	journal := testutil.NewTestJournal(t)
	s1 := sourcetest.SystemItem("1", ago(1))
	f1 := sourcetest.ForumItem("1", ago(2))
	f := newFixture(t, journal, s1, f1)
	f.forum.FailMarkRead(errors.New("forum down"))

	f.coord.MarkAllRead(context.Background())

	failed, err := journal.ListFailed(context.Background())
	require.NoError(t, err)
	require.Len(t, failed, 1)
	require.Equal(t, model.OpMarkAllRead, failed[0].Step.Op)
	require.Equal(t, model.SourceForum, failed[0].Step.Source)
	require.Equal(t, model.StepFailed, failed[0].Status)
	require.Contains(t, failed[0].Error, "forum down")
}

// cancellingSystem cancels the caller's context from inside MarkRead, the
// way a request that outlives its deadline fails.
type cancellingSystem struct {
	*sourcetest.System
	cancel context.CancelFunc
}

func (c cancellingSystem) MarkRead(ctx context.Context, _ []string) error {
	c.cancel()
	<-ctx.Done()
	return ctx.Err()
}

func TestCancelledStepIsJournaledAsFailed(t *testing.T) {
	t.Parallel()

	journal := testutil.NewTestJournal(t)
	s1 := sourcetest.SystemItem("1", ago(1))

	store := feed.New(0)
	require.NoError(t, store.ApplyFetch(store.BeginFetch(), 1, []model.Notification{s1}))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sys := cancellingSystem{System: sourcetest.NewSystem(), cancel: cancel}
	coord := New(store, []source.Source{sys}, journal, zerolog.Nop())

	report := coord.MarkRead(ctx, []model.Key{s1.Key()})
	require.False(t, report.OK())
	require.False(t, isRead(t, store, s1.Key()))

	failed, err := journal.ListFailed(context.Background())
	require.NoError(t, err)
	require.Len(t, failed, 1)
	require.Equal(t, model.OpMarkRead, failed[0].Step.Op)
	require.Equal(t, []string{"1"}, failed[0].Step.IDs)
	require.Contains(t, failed[0].Error, context.Canceled.Error())
}

func TestReplayFailedSteps(t *testing.T) {
	t.Parallel()

	s1 := sourcetest.SystemItem("1", ago(1))
	f1 := sourcetest.ForumItem("1", ago(2))
	f := newFixture(t, nil, s1, f1)

	err := f.coord.Replay(context.Background(), model.Step{
		Op: model.OpMarkRead, Source: model.SourceSystem, IDs: []string{"1"},
	})
	require.NoError(t, err)
	require.True(t, isRead(t, f.store, s1.Key()))

	err = f.coord.Replay(context.Background(), model.Step{
		Op: model.OpMarkAllRead, Source: model.SourceForum,
	})
	require.NoError(t, err)
	require.True(t, isRead(t, f.store, f1.Key()))

	err = f.coord.Replay(context.Background(), model.Step{
		Op: model.OpDelete, Source: model.SourceForum, IDs: []string{"1"},
	})
	require.NoError(t, err)
	require.Equal(t, 1, f.store.Len())

	err = f.coord.Replay(context.Background(), model.Step{Op: "archive", Source: model.SourceForum})
	require.ErrorIs(t, err, ErrUnsupported)
}
