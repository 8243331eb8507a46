package sync

import (
	"context"
	"fmt"
	gosync "sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/nhle/notifeed/internal/model"
	"github.com/nhle/notifeed/internal/source"
)

// SyncState represents the fetch state of a single source.
type SyncState int

const (
	SyncIdle SyncState = iota
	SyncLoading
	SyncDegraded
)

func (s SyncState) String() string {
	switch s {
	case SyncLoading:
		return "loading"
	case SyncDegraded:
		return "degraded"
	default:
		return "idle"
	}
}

// SyncStatus holds the fetch state for a single source.
type SyncStatus struct {
	Source      model.Source
	State       SyncState
	LastSuccess time.Time
	Error       error
}

// FetchFilter narrows a unified fetch. An empty Sources means every
// registered source.
type FetchFilter struct {
	UnreadOnly bool
	Sources    []model.Source
}

func (f FetchFilter) includes(src model.Source) bool {
	if len(f.Sources) == 0 {
		return true
	}
	for _, s := range f.Sources {
		if s == src {
			return true
		}
	}
	return false
}

// SourceResult is one source's contribution to a unified page.
type SourceResult struct {
	Count    int
	Degraded bool
	Err      error
}

// Page is one merged, unified page.
type Page struct {
	Number  int
	Items   []model.Notification
	HasMore bool
	Sources map[model.Source]SourceResult
}

// Degraded reports whether src failed to contribute to the page.
func (p Page) Degraded(src model.Source) bool {
	return p.Sources[src].Degraded
}

// defaultFetchTimeout bounds a single adapter call.
const defaultFetchTimeout = 10 * time.Second

// Options configures an Aggregator.
type Options struct {
	PageSize     int
	FetchTimeout time.Duration
	Logger       zerolog.Logger
	Clock        func() time.Time
}

// Aggregator fans a page request out to every source and merges the
// results. A failing or slow source degrades only its own contribution.
type Aggregator struct {
	sources []source.Source
	limit   int
	timeout time.Duration
	log     zerolog.Logger
	now     func() time.Time

	mu       gosync.Mutex
	statuses map[model.Source]*SyncStatus
	// latest is the highest fetch sequence that has written each status.
	latest map[model.Source]uint64
}

// NewAggregator creates an Aggregator over the given sources.
func NewAggregator(sources []source.Source, opts Options) *Aggregator {
	if opts.PageSize < 1 {
		opts.PageSize = 20
	}
	if opts.FetchTimeout <= 0 {
		opts.FetchTimeout = defaultFetchTimeout
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}

	a := &Aggregator{
		sources:  sources,
		limit:    opts.PageSize,
		timeout:  opts.FetchTimeout,
		log:      opts.Logger.With().Str("component", "aggregator").Logger(),
		now:      opts.Clock,
		statuses: make(map[model.Source]*SyncStatus, len(sources)),
		latest:   make(map[model.Source]uint64, len(sources)),
	}
	for _, src := range sources {
		a.statuses[src.Source()] = &SyncStatus{Source: src.Source(), State: SyncIdle}
	}
	return a
}

// PageSize returns the per-source limit used for every fetch.
func (a *Aggregator) PageSize() int { return a.limit }

// Fetch requests the same page number from every selected source
// concurrently and merges the results. It waits for every call to settle
// or time out and never returns an error.
//
// seq orders concurrent fetches. A fetch never overwrites a source status
// written by a fetch with a higher seq, so a late response cannot undo the
// state of a newer one.
func (a *Aggregator) Fetch(ctx context.Context, seq uint64, page int, filter FetchFilter) Page {
	if page < 1 {
		page = 1
	}
	opts := source.FetchOptions{Page: page, Limit: a.limit, UnreadOnly: filter.UnreadOnly}

	var selected []source.Source
	for _, src := range a.sources {
		if filter.includes(src.Source()) {
			selected = append(selected, src)
		}
	}

	results := make([]source.FetchResult, len(selected))
	var g errgroup.Group
	for i, src := range selected {
		g.Go(func() error {
			results[i] = a.fetchOne(ctx, seq, src, opts)
			return nil
		})
	}
	_ = g.Wait()

	out := Page{
		Number:  page,
		Sources: make(map[model.Source]SourceResult, len(selected)),
	}
	lists := make([][]model.Notification, 0, len(selected))
	counts := make([]int, 0, len(selected))
	for i, src := range selected {
		res := results[i]
		out.Sources[src.Source()] = SourceResult{
			Count:    len(res.Items),
			Degraded: res.Degraded,
			Err:      res.Err,
		}
		lists = append(lists, res.Items)
		counts = append(counts, len(res.Items))
	}

	out.Items = Merge(lists...)
	out.HasMore = HasMore(counts, a.limit)
	return out
}

// fetchOne calls a single adapter under the fetch timeout. An adapter that
// ignores its context is abandoned once the deadline passes.
func (a *Aggregator) fetchOne(
	ctx context.Context,
	seq uint64,
	src source.Source,
	opts source.FetchOptions,
) source.FetchResult {
	name := src.Source()
	a.setStatus(name, seq, SyncLoading, nil)

	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	done := make(chan source.FetchResult, 1)
	go func() {
		done <- src.FetchPage(ctx, opts)
	}()

	var res source.FetchResult
	select {
	case res = <-done:
	case <-ctx.Done():
		res = source.Degrade(&source.UnavailableError{
			Source: name,
			Err:    fmt.Errorf("fetch page %d timed out after %s: %w", opts.Page, a.timeout, ctx.Err()),
		})
	}

	if res.Items == nil {
		res.Items = []model.Notification{}
	}

	if res.Degraded {
		a.log.Warn().Err(res.Err).
			Str("source", string(name)).
			Int("page", opts.Page).
			Msg("source degraded")
		a.setStatus(name, seq, SyncDegraded, res.Err)
		return res
	}

	a.setStatus(name, seq, SyncIdle, nil)
	return res
}

// Statuses returns the current fetch status of every registered source in
// canonical source order.
func (a *Aggregator) Statuses() []SyncStatus {
	a.mu.Lock()
	defer a.mu.Unlock()

	out := make([]SyncStatus, 0, len(a.statuses))
	for _, src := range model.Sources {
		if s, ok := a.statuses[src]; ok {
			out = append(out, *s)
		}
	}
	return out
}

func (a *Aggregator) setStatus(src model.Source, seq uint64, state SyncState, err error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if seq < a.latest[src] {
		return
	}
	a.latest[src] = seq

	s, ok := a.statuses[src]
	if !ok {
		s = &SyncStatus{Source: src}
		a.statuses[src] = s
	}
	s.State = state
	s.Error = err
	if state == SyncIdle {
		s.LastSuccess = a.now()
	}
}
