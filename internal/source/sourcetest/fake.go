// Package sourcetest provides scriptable in-memory source adapters for
// tests of the packages that consume source.Source.
package sourcetest

import (
	"context"
	"slices"
	"sync"

	"github.com/goccy/go-json"

	"github.com/nhle/notifeed/internal/model"
	"github.com/nhle/notifeed/internal/source"
)

// Call records one invocation of a mutation primitive.
type Call struct {
	Method string
	IDs    []string
}

// Fake is the behaviour shared by System and Forum. Fetch results are
// served from a queue; once the queue is drained the last result repeats.
type Fake struct {
	src model.Source

	mu        sync.Mutex
	results   []source.FetchResult
	fetches   []source.FetchOptions
	block     chan struct{}
	calls     []Call
	markErr   error
	deleteErr error
}

func newFake(src model.Source) *Fake {
	return &Fake{src: src}
}

// Source implements source.Source.
func (f *Fake) Source() model.Source { return f.src }

// QueueItems appends a successful fetch result. Items are sorted into
// canonical order the way a real adapter returns them.
func (f *Fake) QueueItems(items ...model.Notification) {
	sorted := slices.Clone(items)
	if sorted == nil {
		sorted = []model.Notification{}
	}
	slices.SortStableFunc(sorted, model.Compare)

	f.mu.Lock()
	defer f.mu.Unlock()
	f.results = append(f.results, source.FetchResult{Items: sorted})
}

// QueueFailure appends a degraded fetch result.
func (f *Fake) QueueFailure(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.results = append(f.results, source.Degrade(
		&source.UnavailableError{Source: f.src, Err: err},
	))
}

// Block makes subsequent fetches wait until Release is called or their
// context ends.
func (f *Fake) Block() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.block = make(chan struct{})
}

// Release unblocks fetches held by Block.
func (f *Fake) Release() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.block != nil {
		close(f.block)
		f.block = nil
	}
}

// FailMarkRead makes every mark-read primitive return err.
func (f *Fake) FailMarkRead(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.markErr = err
}

// FailDelete makes every delete primitive return err.
func (f *Fake) FailDelete(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleteErr = err
}

// Calls returns the recorded mutation calls.
func (f *Fake) Calls() []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.calls)
}

// Fetches returns the options of every fetch received.
func (f *Fake) Fetches() []source.FetchOptions {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.fetches)
}

// FetchPage implements source.Source.
func (f *Fake) FetchPage(ctx context.Context, opts source.FetchOptions) source.FetchResult {
	f.mu.Lock()
	f.fetches = append(f.fetches, opts)
	block := f.block
	var res source.FetchResult
	switch len(f.results) {
	case 0:
		res = source.FetchResult{Items: []model.Notification{}}
	case 1:
		res = f.results[0]
	default:
		res = f.results[0]
		f.results = f.results[1:]
	}
	f.mu.Unlock()

	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return source.Degrade(&source.UnavailableError{Source: f.src, Err: ctx.Err()})
		}
	}

	res.Items = slices.Clone(res.Items)
	if res.Items == nil {
		res.Items = []model.Notification{}
	}
	if opts.UnreadOnly {
		res.Items = slices.DeleteFunc(res.Items, func(n model.Notification) bool {
			return n.IsRead
		})
	}
	return res
}

// TranslatePush decodes payload as a model.Notification. Forum payloads
// must carry a sender and a discussion, system payloads a message.
func (f *Fake) TranslatePush(payload []byte) (model.Notification, bool) {
	var n model.Notification
	if err := json.Unmarshal(payload, &n); err != nil || n.ID == "" {
		return model.Notification{}, false
	}
	switch f.src {
	case model.SourceForum:
		if n.Sender == nil || n.Discussion == nil {
			return model.Notification{}, false
		}
	default:
		if n.Message == "" && n.Title == "" {
			return model.Notification{}, false
		}
	}
	n.Source = f.src
	n.IsRead = false
	return n, true
}

func (f *Fake) record(method string, ids []string, err error) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, Call{Method: method, IDs: slices.Clone(ids)})
	return err
}

// System mimics the System adapter: per-id mark-read and batch delete.
type System struct {
	*Fake
}

// NewSystem returns a fake System adapter.
func NewSystem() *System {
	return &System{Fake: newFake(model.SourceSystem)}
}

// MarkRead implements source.IDMarker.
func (s *System) MarkRead(_ context.Context, ids []string) error {
	return s.record("MarkRead", ids, s.markErrValue())
}

// Delete implements source.BatchDeleter.
func (s *System) Delete(_ context.Context, ids []string) error {
	return s.record("Delete", ids, s.deleteErrValue())
}

// Forum mimics the Forum adapter: per-id and bulk mark-read, single delete.
type Forum struct {
	*Fake
}

// NewForum returns a fake Forum adapter.
func NewForum() *Forum {
	return &Forum{Fake: newFake(model.SourceForum)}
}

// MarkRead implements source.IDMarker.
func (f *Forum) MarkRead(_ context.Context, ids []string) error {
	return f.record("MarkRead", ids, f.markErrValue())
}

// MarkAllRead implements source.BulkMarker.
func (f *Forum) MarkAllRead(_ context.Context) error {
	return f.record("MarkAllRead", nil, f.markErrValue())
}

// DeleteOne implements source.SingleDeleter.
func (f *Forum) DeleteOne(_ context.Context, id string) error {
	return f.record("DeleteOne", []string{id}, f.deleteErrValue())
}

func (f *Fake) markErrValue() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.markErr
}

func (f *Fake) deleteErrValue() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.deleteErr
}
