package feed

import (
	"fmt"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/nhle/notifeed/internal/model"
	"github.com/nhle/notifeed/internal/source/sourcetest"
	"github.com/nhle/notifeed/tests/testutil"
)

func minutesAgo(m int) time.Time {
	return testutil.T0.Add(-time.Duration(m) * time.Minute)
}

func requireCounterConsistent(t *testing.T, s *Store) {
	t.Helper()
	require.Equal(t, s.RecountUnread(), s.UnreadCount(), "unread counter drifted")
}

func apply(t *testing.T, s *Store, page int, items ...model.Notification) {
	t.Helper()
	require.NoError(t, s.ApplyFetch(s.BeginFetch(), page, items))
	requireCounterConsistent(t, s)
}

func TestApplyFetchReplacesOnFirstPage(t *testing.T) {
	t.Parallel()

	s := New(0)
	apply(t, s, 1,
		sourcetest.SystemItem("1", minutesAgo(1)),
		sourcetest.ForumItem("1", minutesAgo(2)),
	)
	require.Equal(t, 2, s.UnreadCount())

	apply(t, s, 1, sourcetest.SystemItem("2", minutesAgo(0)))
	require.Equal(t, []string{"2"}, sourcetest.IDs(s.Snapshot()))
	require.Equal(t, 1, s.UnreadCount())
}

func TestApplyFetchAppendsLaterPagesWithoutDuplicates(t *testing.T) {
	t.Parallel()

	s := New(0)
	apply(t, s, 1,
		sourcetest.SystemItem("1", minutesAgo(1)),
		sourcetest.SystemItem("2", minutesAgo(2)),
	)
	apply(t, s, 2,
		sourcetest.SystemItem("2", minutesAgo(2)),
		sourcetest.SystemItem("3", minutesAgo(3)),
	)

	require.Equal(t, []string{"1", "2", "3"}, sourcetest.IDs(s.Snapshot()))
	require.Equal(t, 3, s.UnreadCount())
}

func TestSameIDInDifferentSourcesAreDistinct(t *testing.T) {
	t.Parallel()

	s := New(0)
	apply(t, s, 1,
		sourcetest.SystemItem("7", minutesAgo(1)),
		sourcetest.ForumItem("7", minutesAgo(1)),
	)
	require.Equal(t, 2, s.Len())

	flipped := s.MarkRead([]model.Key{{Source: model.SourceForum, ID: "7"}})
	require.Len(t, flipped, 1)

	sys, ok := s.Get(model.Key{Source: model.SourceSystem, ID: "7"})
	require.True(t, ok)
	require.False(t, sys.IsRead)
	requireCounterConsistent(t, s)
}

func TestReadStateSurvivesRefetch(t *testing.T) {
	t.Parallel()

	s := New(0)
	n := sourcetest.SystemItem("1", minutesAgo(1))
	apply(t, s, 1, n)
	s.MarkRead([]model.Key{n.Key()})

	// The server has not caught up yet and still reports it unread.
	apply(t, s, 1, n)

	got, ok := s.Get(n.Key())
	require.True(t, ok)
	require.True(t, got.IsRead)
	require.Zero(t, s.UnreadCount())
}

func TestLaterPageCarriesReadFlagOntoExistingEntry(t *testing.T) {
	t.Parallel()

	s := New(0)
	n := sourcetest.SystemItem("1", minutesAgo(1))
	apply(t, s, 1, n)
	apply(t, s, 2, sourcetest.Read(n))

	got, _ := s.Get(n.Key())
	require.True(t, got.IsRead)
	require.Zero(t, s.UnreadCount())
}

func TestStaleFetchIsDiscarded(t *testing.T) {
	t.Parallel()

	s := New(0)
	first := s.BeginFetch()
	second := s.BeginFetch()

	require.NoError(t, s.ApplyFetch(second, 1, []model.Notification{
		sourcetest.ForumItem("new", minutesAgo(0)),
	}))
	err := s.ApplyFetch(first, 1, []model.Notification{
		sourcetest.SystemItem("old", minutesAgo(5)),
	})

	require.ErrorIs(t, err, ErrStaleFetch)
	require.Equal(t, []string{"new"}, sourcetest.IDs(s.Snapshot()))
	requireCounterConsistent(t, s)
}

func TestResetInvalidatesInFlightFetch(t *testing.T) {
	t.Parallel()

	s := New(0)
	seq := s.BeginFetch()
	s.Reset()

	require.ErrorIs(t, s.ApplyFetch(seq, 1, nil), ErrStaleFetch)
	require.Zero(t, s.Len())
}

func TestPushPrependsWithoutSorting(t *testing.T) {
	t.Parallel()

	s := New(0)
	apply(t, s, 1, sourcetest.SystemItem("fetched", minutesAgo(0)))

	require.True(t, s.Push(sourcetest.ForumItem("old-push", minutesAgo(60))))
	require.True(t, s.Push(sourcetest.SystemItem("new-push", minutesAgo(30))))

	require.Equal(t, []string{"new-push", "old-push", "fetched"}, sourcetest.IDs(s.Snapshot()))
	require.Equal(t, 3, s.UnreadCount())
	requireCounterConsistent(t, s)
}

func TestDuplicatePushKeepsExistingEntry(t *testing.T) {
	t.Parallel()

	s := New(0)
	n := sourcetest.SystemItem("1", minutesAgo(1))
	apply(t, s, 1, n)
	s.MarkRead([]model.Key{n.Key()})

	require.False(t, s.Push(n))
	require.Equal(t, 1, s.Len())

	got, _ := s.Get(n.Key())
	require.True(t, got.IsRead)
	requireCounterConsistent(t, s)
}

func TestFetchDoesNotDuplicateLiveEntries(t *testing.T) {
	t.Parallel()

	s := New(0)
	n := sourcetest.ForumItem("1", minutesAgo(1))
	require.True(t, s.Push(n))

	apply(t, s, 1, sourcetest.Read(n), sourcetest.SystemItem("2", minutesAgo(2)))

	require.Equal(t, []string{"1", "2"}, sourcetest.IDs(s.Snapshot()))
	live, _ := s.Get(n.Key())
	require.True(t, live.IsRead)
	require.Equal(t, 1, s.UnreadCount())
}

func TestBoundEvictsFetchedTailFirst(t *testing.T) {
	t.Parallel()

	s := New(3)
	apply(t, s, 1,
		sourcetest.SystemItem("a", minutesAgo(1)),
		sourcetest.SystemItem("b", minutesAgo(2)),
		sourcetest.SystemItem("c", minutesAgo(3)),
	)

	s.Push(sourcetest.ForumItem("p1", minutesAgo(0)))
	s.Push(sourcetest.ForumItem("p2", minutesAgo(0)))

	require.Equal(t, []string{"p2", "p1", "a"}, sourcetest.IDs(s.Snapshot()))
	requireCounterConsistent(t, s)

	s.Push(sourcetest.ForumItem("p3", minutesAgo(0)))
	s.Push(sourcetest.ForumItem("p4", minutesAgo(0)))
	require.Equal(t, []string{"p4", "p3", "p2"}, sourcetest.IDs(s.Snapshot()))
	require.Equal(t, 3, s.UnreadCount())
}

func TestBoundAppliesToFetchOnlyOnceLive(t *testing.T) {
	t.Parallel()

	var items []model.Notification
	for i := range 5 {
		items = append(items, sourcetest.SystemItem(fmt.Sprint(i), minutesAgo(i)))
	}

	s := New(3)
	apply(t, s, 1, items...)
	require.Equal(t, 5, s.Len())

	s.ActivateLive()
	require.Equal(t, 3, s.Len())

	apply(t, s, 2, sourcetest.SystemItem("9", minutesAgo(9)))
	require.Equal(t, 3, s.Len())
	require.Equal(t, []string{"0", "1", "2"}, sourcetest.IDs(s.Snapshot()))
}

func TestMarkReadIgnoresAbsentAndRead(t *testing.T) {
	t.Parallel()

	s := New(0)
	a := sourcetest.SystemItem("a", minutesAgo(1))
	b := sourcetest.Read(sourcetest.SystemItem("b", minutesAgo(2)))
	apply(t, s, 1, a, b)

	flipped := s.MarkRead([]model.Key{
		a.Key(), b.Key(), {Source: model.SourceForum, ID: "missing"},
	})
	require.Equal(t, []model.Key{a.Key()}, flipped)
	require.Zero(t, s.UnreadCount())
}

func TestMarkSourceReadAndRevert(t *testing.T) {
	t.Parallel()

	s := New(0)
	apply(t, s, 1,
		sourcetest.SystemItem("1", minutesAgo(1)),
		sourcetest.ForumItem("1", minutesAgo(2)),
		sourcetest.ForumItem("2", minutesAgo(3)),
	)

	flipped := s.MarkSourceRead(model.SourceForum)
	require.Len(t, flipped, 2)
	require.Equal(t, 1, s.UnreadCount())
	require.Empty(t, s.UnreadKeys(model.SourceForum))

	require.Equal(t, 2, s.Revert(flipped))
	require.Equal(t, 3, s.UnreadCount())
	requireCounterConsistent(t, s)
}

func TestRevertSkipsRemovedEntries(t *testing.T) {
	t.Parallel()

	s := New(0)
	n := sourcetest.SystemItem("1", minutesAgo(1))
	apply(t, s, 1, n)
	flipped := s.MarkRead([]model.Key{n.Key()})

	_, ok := s.Remove(n.Key())
	require.True(t, ok)
	require.Zero(t, s.Revert(flipped))
	requireCounterConsistent(t, s)
}

func TestRemoveAdjustsCounter(t *testing.T) {
	t.Parallel()

	s := New(0)
	n := sourcetest.ForumItem("1", minutesAgo(1))
	s.Push(n)

	got, ok := s.Remove(n.Key())
	require.True(t, ok)
	require.Equal(t, n.ID, got.ID)
	require.Zero(t, s.UnreadCount())

	_, ok = s.Remove(n.Key())
	require.False(t, ok)
}

func TestRemoveKeepsOtherEntriesIntact(t *testing.T) {
	t.Parallel()

	s := New(0)
	apply(t, s, 1,
		sourcetest.SystemItem("1", minutesAgo(2)),
		sourcetest.Read(sourcetest.ForumItem("2", minutesAgo(3))),
		sourcetest.SystemItem("3", minutesAgo(4)),
		sourcetest.ForumItem("4", minutesAgo(5)),
	)
	s.ActivateLive()
	require.True(t, s.Push(sourcetest.ForumItem("live", minutesAgo(0))))
	require.True(t, s.Push(sourcetest.SystemItem("live", minutesAgo(1))))

	before := s.Snapshot()
	require.Len(t, before, 6)

	for _, tc := range []struct {
		name string
		key  model.Key
	}{
		{name: "fetched middle", key: model.Key{Source: model.SourceSystem, ID: "3"}},
		{name: "live tail", key: model.Key{Source: model.SourceForum, ID: "live"}},
	} {
		idx := slices.IndexFunc(before, func(n model.Notification) bool { return n.Key() == tc.key })
		require.GreaterOrEqual(t, idx, 0, tc.name)
		want := slices.Delete(slices.Clone(before), idx, idx+1)

		_, ok := s.Remove(tc.key)
		require.True(t, ok, tc.name)
		require.Equal(t, want, s.Snapshot(), tc.name)
		requireCounterConsistent(t, s)

		before = want
	}
}

func TestCounterConsistentAcrossMixedOperations(t *testing.T) {
	t.Parallel()

	s := New(6)
	key := func(src model.Source, id string) model.Key { return model.Key{Source: src, ID: id} }
	var flipped []model.Key

	steps := []struct {
		name string
		run  func()
	}{
		{"fetch page 1", func() {
			require.NoError(t, s.ApplyFetch(s.BeginFetch(), 1, []model.Notification{
				sourcetest.SystemItem("1", minutesAgo(1)),
				sourcetest.ForumItem("2", minutesAgo(2)),
				sourcetest.Read(sourcetest.SystemItem("3", minutesAgo(3))),
			}))
		}},
		{"fetch page 2", func() {
			require.NoError(t, s.ApplyFetch(s.BeginFetch(), 2, []model.Notification{
				sourcetest.SystemItem("3", minutesAgo(3)),
				sourcetest.ForumItem("4", minutesAgo(4)),
			}))
		}},
		{"mark one read", func() { s.MarkRead([]model.Key{key(model.SourceSystem, "1")}) }},
		{"push", func() {
			s.ActivateLive()
			s.Push(sourcetest.ForumItem("5", minutesAgo(0)))
		}},
		{"mark all forum read", func() { flipped = s.MarkSourceRead(model.SourceForum) }},
		{"delete read entry", func() { s.Remove(key(model.SourceForum, "2")) }},
		{"revert mark all", func() { s.Revert(flipped) }},
		{"delete unread entry", func() { s.Remove(key(model.SourceForum, "4")) }},
		{"push past bound", func() {
			for i := range 4 {
				s.Push(sourcetest.SystemItem(fmt.Sprintf("p%d", i), minutesAgo(0)))
			}
		}},
		{"mark all system read", func() { s.MarkSourceRead(model.SourceSystem) }},
		{"refetch page 1", func() {
			require.NoError(t, s.ApplyFetch(s.BeginFetch(), 1, []model.Notification{
				sourcetest.SystemItem("6", minutesAgo(1)),
			}))
		}},
	}

	for _, step := range steps {
		step.run()
		require.Equal(t, s.RecountUnread(), s.UnreadCount(), "after %s", step.name)
		require.LessOrEqual(t, s.Len(), 6, "after %s", step.name)
	}
}

func TestViews(t *testing.T) {
	t.Parallel()

	s := New(0)
	apply(t, s, 1,
		sourcetest.SystemItem("1", minutesAgo(1)),
		sourcetest.Read(sourcetest.ForumItem("2", minutesAgo(2))),
		sourcetest.ForumItem("3", minutesAgo(3)),
	)

	require.Equal(t, []string{"2", "3"}, sourcetest.IDs(s.View(model.SourceForum)))
	require.Equal(t, []string{"1", "3"}, sourcetest.IDs(s.Unread()))
	require.Empty(t, s.View(model.Source("other")))
}

func TestChangesAreCoalesced(t *testing.T) {
	t.Parallel()

	s := New(0)
	s.Push(sourcetest.SystemItem("1", minutesAgo(1)))
	s.Push(sourcetest.SystemItem("2", minutesAgo(1)))

	select {
	case <-s.Changes():
	default:
		t.Fatal("expected a change signal")
	}
	select {
	case <-s.Changes():
		t.Fatal("expected signals to be coalesced")
	default:
	}
}

func TestConcurrentMutationsKeepCounterConsistent(t *testing.T) {
	t.Parallel()

	s := New(20)
	var wg sync.WaitGroup
	for i := range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range 25 {
				n := sourcetest.ForumItem(fmt.Sprintf("%d-%d", i, j), minutesAgo(j))
				s.Push(n)
				if j%3 == 0 {
					s.MarkRead([]model.Key{n.Key()})
				}
				if j%5 == 0 {
					_ = s.ApplyFetch(s.BeginFetch(), 1, []model.Notification{
						sourcetest.SystemItem(fmt.Sprint(j), minutesAgo(j)),
					})
				}
			}
		}()
	}
	wg.Wait()

	require.LessOrEqual(t, s.Len(), 20)
	requireCounterConsistent(t, s)
}
