package sync

import "github.com/nhle/notifeed/internal/model"

// Merge performs a stable k-way merge of lists that are each already in
// canonical order (model.Before). Every input item appears exactly once in
// the output; on a full tie the item from the earlier list wins.
func Merge(lists ...[]model.Notification) []model.Notification {
	total := 0
	for _, l := range lists {
		total += len(l)
	}

	out := make([]model.Notification, 0, total)
	heads := make([]int, len(lists))

	for len(out) < total {
		best := -1
		for i, l := range lists {
			if heads[i] >= len(l) {
				continue
			}
			if best < 0 || model.Before(l[heads[i]], lists[best][heads[best]]) {
				best = i
			}
		}
		out = append(out, lists[best][heads[best]])
		heads[best]++
	}

	return out
}

// HasMore reports whether another unified page is likely to exist: true
// when any source returned a full page.
func HasMore(counts []int, limit int) bool {
	for _, c := range counts {
		if c >= limit {
			return true
		}
	}
	return false
}
