// Package session wires the feed store, aggregator, read-state
// coordinator and realtime ingestor into the surface a UI consumes.
package session

import (
	"context"
	"errors"
	"fmt"
	gosync "sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/nhle/notifeed/internal/feed"
	"github.com/nhle/notifeed/internal/model"
	"github.com/nhle/notifeed/internal/readstate"
	"github.com/nhle/notifeed/internal/realtime"
	"github.com/nhle/notifeed/internal/source"
	appsync "github.com/nhle/notifeed/internal/sync"
)

// Journal is the part of store.Journal a session uses.
type Journal interface {
	readstate.Journal
	ListFailed(ctx context.Context) ([]model.JournalEntry, error)
	MarkRetried(ctx context.Context, id string) error
}

// Options configures a Session.
type Options struct {
	Sources []source.Source

	// Channel is the push channel. Nil disables live ingestion.
	Channel realtime.Channel
	Events  []string

	// Navigate is called by Open. Nil disables navigation.
	Navigate func(model.Notification)

	// Journal records mutation steps. Nil disables journaling and retry.
	Journal Journal

	Logger          zerolog.Logger
	PageSize        int
	Bound           int
	FetchTimeout    time.Duration
	RefreshSchedule string
	Clock           func() time.Time
}

// RetrySummary counts the outcome of RetryFailed.
type RetrySummary struct {
	Attempted int
	Succeeded int
}

// Session is one user's notification feed.
type Session struct {
	store     *feed.Store
	agg       *appsync.Aggregator
	coord     *readstate.Coordinator
	ingestor  *realtime.Ingestor
	scheduler *appsync.Scheduler

	channel  realtime.Channel
	events   []string
	navigate func(model.Notification)
	journal  Journal
	log      zerolog.Logger

	mu      gosync.Mutex
	filter  Filter
	page    int
	hasMore bool
	cancel  context.CancelFunc
}

// New builds a Session from opts.
func New(opts Options) *Session {
	log := opts.Logger.With().Str("component", "session").Logger()

	store := feed.New(opts.Bound)

	var journal readstate.Journal
	if opts.Journal != nil {
		journal = opts.Journal
	}

	s := &Session{
		store: store,
		agg: appsync.NewAggregator(opts.Sources, appsync.Options{
			PageSize:     opts.PageSize,
			FetchTimeout: opts.FetchTimeout,
			Logger:       opts.Logger,
			Clock:        opts.Clock,
		}),
		coord:    readstate.New(store, opts.Sources, journal, opts.Logger),
		ingestor: realtime.NewIngestor(store, opts.Sources, opts.Logger),
		channel:  opts.Channel,
		events:   opts.Events,
		navigate: opts.Navigate,
		journal:  opts.Journal,
		log:      log,
	}
	s.scheduler = appsync.NewScheduler(opts.RefreshSchedule, s.scheduledRefresh, opts.Logger)
	return s
}

// Start attaches the push channel and starts scheduled refresh. Both stop
// when ctx is done or Close is called.
func (s *Session) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)

	s.mu.Lock()
	s.cancel = cancel
	s.mu.Unlock()

	if s.channel != nil {
		if err := s.ingestor.Attach(s.channel, s.events...); err != nil {
			cancel()
			return fmt.Errorf("attaching push channel: %w", err)
		}
		if r, ok := s.channel.(realtime.Runner); ok {
			go func() {
				if err := r.Run(ctx); err != nil {
					s.log.Error().Err(err).Msg("push channel stopped")
				}
			}()
		}
	}

	if err := s.scheduler.Start(ctx); err != nil {
		cancel()
		return err
	}
	return nil
}

// Close detaches the push channel and stops scheduled refresh.
func (s *Session) Close() {
	s.mu.Lock()
	cancel := s.cancel
	s.cancel = nil
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	s.ingestor.Detach()
	s.scheduler.Stop()
}

func (s *Session) scheduledRefresh(ctx context.Context) {
	if _, err := s.Refresh(ctx); err != nil && !errors.Is(err, feed.ErrStaleFetch) {
		s.log.Warn().Err(err).Msg("scheduled refresh failed")
	}
}

// FetchPage fetches unified page n under the current filter and applies
// it to the feed. It returns feed.ErrStaleFetch when a newer fetch was
// issued while this one was in flight; the page is then discarded.
func (s *Session) FetchPage(ctx context.Context, n int) (appsync.Page, error) {
	if n < 1 {
		n = 1
	}

	s.mu.Lock()
	filter := s.filter
	s.mu.Unlock()

	seq := s.store.BeginFetch()
	page := s.agg.Fetch(ctx, seq, n, filter.fetchFilter())

	if err := s.store.ApplyFetch(seq, n, page.Items); err != nil {
		s.log.Debug().Uint64("seq", seq).Int("page", n).Msg("discarding stale fetch")
		return page, err
	}

	s.mu.Lock()
	s.page = n
	s.hasMore = page.HasMore
	s.mu.Unlock()

	return page, nil
}

// Refresh reloads page 1.
func (s *Session) Refresh(ctx context.Context) (appsync.Page, error) {
	return s.FetchPage(ctx, 1)
}

// NextPage fetches the page after the last applied one.
func (s *Session) NextPage(ctx context.Context) (appsync.Page, error) {
	s.mu.Lock()
	next := s.page + 1
	s.mu.Unlock()
	return s.FetchPage(ctx, next)
}

// SetFilter switches the filter and fetches page 1 for it. Any fetch
// still in flight for the previous filter is discarded when it lands.
func (s *Session) SetFilter(ctx context.Context, f Filter) (appsync.Page, error) {
	s.mu.Lock()
	s.filter = f
	s.mu.Unlock()
	return s.FetchPage(ctx, 1)
}

// Filter returns the active filter.
func (s *Session) Filter() Filter {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.filter
}

// Notifications returns the feed as seen through the active filter.
func (s *Session) Notifications() []model.Notification {
	switch s.Filter() {
	case FilterUnread:
		return s.store.Unread()
	case FilterSystem:
		return s.store.View(model.SourceSystem)
	case FilterForum:
		return s.store.View(model.SourceForum)
	default:
		return s.store.Snapshot()
	}
}

// UnreadCount returns the number of unread entries in the whole feed.
func (s *Session) UnreadCount() int {
	return s.store.UnreadCount()
}

// Statuses returns the loading/degraded state of every source.
func (s *Session) Statuses() []appsync.SyncStatus {
	return s.agg.Statuses()
}

// HasMore reports whether the last applied page suggested more data.
func (s *Session) HasMore() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hasMore
}

// Page returns the number of the last applied page.
func (s *Session) Page() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.page
}

// Changes signals feed mutations, coalesced.
func (s *Session) Changes() <-chan struct{} {
	return s.store.Changes()
}

// MarkAsRead marks n read.
func (s *Session) MarkAsRead(ctx context.Context, n model.Notification) readstate.Report {
	return s.coord.MarkRead(ctx, []model.Key{n.Key()})
}

// MarkAllAsRead marks every entry of every source read.
func (s *Session) MarkAllAsRead(ctx context.Context) readstate.Report {
	return s.coord.MarkAllRead(ctx)
}

// Delete removes n from the feed and its source.
func (s *Session) Delete(ctx context.Context, n model.Notification) error {
	return s.coord.Delete(ctx, n.Key())
}

// Open marks n read when needed and hands it to the navigation callback.
// Navigation happens whether or not the mark-read call succeeds.
func (s *Session) Open(ctx context.Context, n model.Notification) readstate.Report {
	report := readstate.Report{Op: model.OpMarkRead}
	if !n.IsRead {
		report = s.MarkAsRead(ctx, n)
	}
	if s.navigate != nil {
		s.navigate(n)
	}
	return report
}

// RetryFailed replays every failed journal step once. Replayed steps are
// journaled anew, and the originals are marked retried.
func (s *Session) RetryFailed(ctx context.Context) (RetrySummary, error) {
	var sum RetrySummary
	if s.journal == nil {
		return sum, nil
	}

	entries, err := s.journal.ListFailed(ctx)
	if err != nil {
		return sum, fmt.Errorf("listing failed steps: %w", err)
	}

	for _, e := range entries {
		if err := s.journal.MarkRetried(ctx, e.ID); err != nil {
			return sum, fmt.Errorf("marking step %s retried: %w", e.ID, err)
		}
		sum.Attempted++

		if err := s.coord.Replay(ctx, e.Step); err != nil {
			s.log.Warn().Err(err).
				Str("step", e.ID).
				Str("op", string(e.Step.Op)).
				Str("source", string(e.Step.Source)).
				Msg("retry failed")
			continue
		}
		sum.Succeeded++
	}

	return sum, nil
}
