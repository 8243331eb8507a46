// Package feed holds the canonical in-memory notification feed and its
// unread counter.
//
// The feed has two partitions. The live partition holds pushed entries in
// arrival order, newest arrival first. The fetched partition holds the
// merged result of page fetches in canonical order. Snapshots list live
// entries ahead of fetched ones. A fetch never overwrites live entries.
package feed

import (
	"errors"
	"slices"
	gosync "sync"

	"github.com/nhle/notifeed/internal/model"
)

// DefaultBound is the maximum feed length once live ingestion is active.
const DefaultBound = 50

// ErrStaleFetch is returned by ApplyFetch when a newer fetch has been
// issued since the one being applied.
var ErrStaleFetch = errors.New("stale fetch result discarded")

// Store is the single mutable feed. All methods are safe for concurrent
// use; mutations are applied atomically in call order.
type Store struct {
	mu gosync.Mutex

	bound   int
	live    []model.Notification
	fetched []model.Notification
	unread  int

	seq        uint64
	liveActive bool

	changes chan struct{}
}

// New creates an empty Store. A bound below one selects DefaultBound.
func New(bound int) *Store {
	if bound < 1 {
		bound = DefaultBound
	}
	return &Store{
		bound:   bound,
		changes: make(chan struct{}, 1),
	}
}

// Bound returns the configured maximum length.
func (s *Store) Bound() int { return s.bound }

// Changes returns a channel that receives a value after a mutation.
// Signals are coalesced: several mutations may produce one signal.
func (s *Store) Changes() <-chan struct{} { return s.changes }

func (s *Store) notify() {
	select {
	case s.changes <- struct{}{}:
	default:
	}
}

// ActivateLive marks live ingestion as active. From then on the bound is
// enforced after every fetch apply as well as every push.
func (s *Store) ActivateLive() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.liveActive {
		return
	}
	s.liveActive = true
	if s.enforceBound() > 0 {
		s.notify()
	}
}

// BeginFetch issues the sequence number for a new fetch. Any fetch issued
// earlier becomes stale.
func (s *Store) BeginFetch() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	return s.seq
}

// ApplyFetch applies a merged page obtained under seq. Page 1 replaces
// the fetched partition; later pages append entries not already present.
// It returns ErrStaleFetch, and changes nothing, when seq is not the most
// recently issued sequence number.
func (s *Store) ApplyFetch(seq uint64, page int, items []model.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if seq != s.seq {
		return ErrStaleFetch
	}

	liveIdx := indexOf(s.live)

	if page <= 1 {
		prevRead := make(map[model.Key]bool, len(s.fetched))
		for _, n := range s.fetched {
			if n.IsRead {
				prevRead[n.Key()] = true
			} else {
				s.unread--
			}
		}
		s.fetched = s.merge(nil, items, liveIdx, prevRead)
	} else {
		s.fetched = s.merge(s.fetched, items, liveIdx, nil)
	}

	if s.liveActive {
		s.enforceBound()
	}
	s.notify()
	return nil
}

// merge appends the entries of items that are new to dst and keeps the
// unread counter current. Entries already in the live partition only
// contribute their read flag. prevRead carries read state over a replace.
func (s *Store) merge(
	dst []model.Notification,
	items []model.Notification,
	liveIdx map[model.Key]int,
	prevRead map[model.Key]bool,
) []model.Notification {
	seen := indexOf(dst)
	if dst == nil {
		dst = make([]model.Notification, 0, len(items))
	}

	for _, n := range items {
		key := n.Key()
		if i, ok := liveIdx[key]; ok {
			if n.IsRead && !s.live[i].IsRead {
				s.live[i].IsRead = true
				s.unread--
			}
			continue
		}
		if i, ok := seen[key]; ok {
			if n.IsRead && !dst[i].IsRead {
				dst[i].IsRead = true
				s.unread--
			}
			continue
		}
		if prevRead[key] {
			n.IsRead = true
		}
		seen[key] = len(dst)
		dst = append(dst, n)
		if !n.IsRead {
			s.unread++
		}
	}
	return dst
}

// Push prepends a live entry without re-sorting. It returns false when an
// entry with the same key is already present; the existing entry is kept.
func (s *Store) Push(n model.Notification) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := n.Key()
	if _, _, ok := s.find(key); ok {
		return false
	}

	s.live = slices.Insert(s.live, 0, n)
	if !n.IsRead {
		s.unread++
	}
	s.liveActive = true
	s.enforceBound()
	s.notify()
	return true
}

// enforceBound evicts entries from the tail until the feed fits. Fetched
// entries sit behind live ones and go first. Returns the number evicted.
func (s *Store) enforceBound() int {
	evicted := 0
	for len(s.live)+len(s.fetched) > s.bound {
		var n model.Notification
		if len(s.fetched) > 0 {
			n = s.fetched[len(s.fetched)-1]
			s.fetched = s.fetched[:len(s.fetched)-1]
		} else {
			n = s.live[len(s.live)-1]
			s.live = s.live[:len(s.live)-1]
		}
		if !n.IsRead {
			s.unread--
		}
		evicted++
	}
	return evicted
}

// MarkRead flips the given entries to read and returns the keys that were
// actually unread. Absent or already-read keys are ignored.
func (s *Store) MarkRead(keys []model.Key) []model.Key {
	s.mu.Lock()
	defer s.mu.Unlock()

	var flipped []model.Key
	for _, k := range keys {
		part, i, ok := s.find(k)
		if !ok || (*part)[i].IsRead {
			continue
		}
		(*part)[i].IsRead = true
		s.unread--
		flipped = append(flipped, k)
	}
	if len(flipped) > 0 {
		s.notify()
	}
	return flipped
}

// MarkSourceRead flips every unread entry of src to read and returns the
// flipped keys.
func (s *Store) MarkSourceRead(src model.Source) []model.Key {
	s.mu.Lock()
	defer s.mu.Unlock()

	var flipped []model.Key
	for _, part := range []*[]model.Notification{&s.live, &s.fetched} {
		for i := range *part {
			n := &(*part)[i]
			if n.Source != src || n.IsRead {
				continue
			}
			n.IsRead = true
			s.unread--
			flipped = append(flipped, n.Key())
		}
	}
	if len(flipped) > 0 {
		s.notify()
	}
	return flipped
}

// Revert flips entries back to unread after a rejected mark-read. It is
// the only transition from read to unread and must only be given keys
// returned by MarkRead or MarkSourceRead. Evicted or deleted keys are
// skipped. Returns the number of entries reverted.
func (s *Store) Revert(keys []model.Key) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	reverted := 0
	for _, k := range keys {
		part, i, ok := s.find(k)
		if !ok || !(*part)[i].IsRead {
			continue
		}
		(*part)[i].IsRead = false
		s.unread++
		reverted++
	}
	if reverted > 0 {
		s.notify()
	}
	return reverted
}

// Remove deletes the entry with key and returns it.
func (s *Store) Remove(key model.Key) (model.Notification, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	part, i, ok := s.find(key)
	if !ok {
		return model.Notification{}, false
	}
	n := (*part)[i]
	*part = slices.Delete(*part, i, i+1)
	if !n.IsRead {
		s.unread--
	}
	s.notify()
	return n, true
}

// Get returns the entry with key.
func (s *Store) Get(key model.Key) (model.Notification, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	part, i, ok := s.find(key)
	if !ok {
		return model.Notification{}, false
	}
	return (*part)[i], true
}

// UnreadKeys returns the keys of unread entries of src in feed order.
func (s *Store) UnreadKeys(src model.Source) []model.Key {
	s.mu.Lock()
	defer s.mu.Unlock()

	var keys []model.Key
	s.each(func(n model.Notification) {
		if n.Source == src && !n.IsRead {
			keys = append(keys, n.Key())
		}
	})
	return keys
}

// Snapshot returns a copy of the feed in display order.
func (s *Store) Snapshot() []model.Notification {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]model.Notification, 0, len(s.live)+len(s.fetched))
	out = append(out, s.live...)
	return append(out, s.fetched...)
}

// View returns the entries of src in display order.
func (s *Store) View(src model.Source) []model.Notification {
	return s.filter(func(n model.Notification) bool { return n.Source == src })
}

// Unread returns the unread entries in display order.
func (s *Store) Unread() []model.Notification {
	return s.filter(func(n model.Notification) bool { return !n.IsRead })
}

func (s *Store) filter(keep func(model.Notification) bool) []model.Notification {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := []model.Notification{}
	s.each(func(n model.Notification) {
		if keep(n) {
			out = append(out, n)
		}
	})
	return out
}

// Len returns the number of entries.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.live) + len(s.fetched)
}

// UnreadCount returns the incrementally maintained unread counter.
func (s *Store) UnreadCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.unread
}

// RecountUnread counts unread entries by a full scan. It always equals
// UnreadCount.
func (s *Store) RecountUnread() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	s.each(func(e model.Notification) {
		if !e.IsRead {
			n++
		}
	})
	return n
}

// Reset clears every entry and invalidates in-flight fetches.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.live = nil
	s.fetched = nil
	s.unread = 0
	s.seq++
	s.notify()
}

func (s *Store) each(fn func(model.Notification)) {
	for _, n := range s.live {
		fn(n)
	}
	for _, n := range s.fetched {
		fn(n)
	}
}

// find locates key in either partition.
func (s *Store) find(key model.Key) (*[]model.Notification, int, bool) {
	for _, part := range []*[]model.Notification{&s.live, &s.fetched} {
		for i, n := range *part {
			if n.Key() == key {
				return part, i, true
			}
		}
	}
	return nil, 0, false
}

func indexOf(ns []model.Notification) map[model.Key]int {
	idx := make(map[model.Key]int, len(ns))
	for i, n := range ns {
		idx[n.Key()] = i
	}
	return idx
}
