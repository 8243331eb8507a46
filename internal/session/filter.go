package session

import (
	"fmt"

	"github.com/nhle/notifeed/internal/model"
	appsync "github.com/nhle/notifeed/internal/sync"
)

// Filter selects which part of the feed the consumer sees.
type Filter int

const (
	FilterAll Filter = iota
	FilterUnread
	FilterSystem
	FilterForum
)

var filterNames = []string{"all", "unread", "system", "forum"}

func (f Filter) String() string {
	if int(f) < 0 || int(f) >= len(filterNames) {
		return "unknown"
	}
	return filterNames[f]
}

// ParseFilter returns the filter with the given name.
func ParseFilter(name string) (Filter, error) {
	for i, n := range filterNames {
		if n == name {
			return Filter(i), nil
		}
	}
	return FilterAll, fmt.Errorf("unknown filter %q", name)
}

// Next cycles to the following filter.
func (f Filter) Next() Filter {
	return Filter((int(f) + 1) % len(filterNames))
}

// fetchFilter maps f onto an aggregator filter.
func (f Filter) fetchFilter() appsync.FetchFilter {
	switch f {
	case FilterUnread:
		return appsync.FetchFilter{UnreadOnly: true}
	case FilterSystem:
		return appsync.FetchFilter{Sources: []model.Source{model.SourceSystem}}
	case FilterForum:
		return appsync.FetchFilter{Sources: []model.Source{model.SourceForum}}
	default:
		return appsync.FetchFilter{}
	}
}
