package model

import (
	"fmt"
	"time"
)

// Source identifies which backend domain a notification belongs to.
type Source string

const (
	SourceSystem Source = "system"
	SourceForum  Source = "forum"
)

// Sources lists every known source in canonical tie-break order.
var Sources = []Source{SourceSystem, SourceForum}

// rank orders sources for deterministic tie-breaking.
func (s Source) rank() int {
	switch s {
	case SourceSystem:
		return 0
	case SourceForum:
		return 1
	default:
		return 2
	}
}

// Valid reports whether s is one of the known sources.
func (s Source) Valid() bool {
	return s == SourceSystem || s == SourceForum
}

// ParseSource converts a raw source tag into a Source.
func ParseSource(tag string) (Source, error) {
	s := Source(tag)
	if !s.Valid() {
		return "", fmt.Errorf("unknown source %q", tag)
	}
	return s, nil
}

// Key is the globally unique identity of a notification. Ids are only
// unique within their source, so both halves are required.
type Key struct {
	Source Source `json:"source"`
	ID     string `json:"id"`
}

func (k Key) String() string {
	return string(k.Source) + ":" + k.ID
}

// Sender describes the user who triggered a forum notification.
type Sender struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	AvatarURL string `json:"avatar_url,omitempty"`
}

// DisplayName joins the sender's first and last name.
func (s Sender) DisplayName() string {
	switch {
	case s.FirstName == "":
		return s.LastName
	case s.LastName == "":
		return s.FirstName
	default:
		return s.FirstName + " " + s.LastName
	}
}

// DiscussionRef points at the forum discussion a notification is about.
type DiscussionRef struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

// Notification is the unified representation of an entry from any source.
type Notification struct {
	// ID is opaque and only unique within Source.
	ID string `json:"id"`

	// Source disambiguates ID.
	Source Source `json:"source"`

	// Type selects the icon/label (e.g. "like", "job_match").
	Type string `json:"type"`

	// Title is a short label. System domain only.
	Title string `json:"title,omitempty"`

	// Message is the human-readable body text.
	Message string `json:"message"`

	// Sender is set for forum-originated items.
	Sender *Sender `json:"sender,omitempty"`

	// Discussion is set for forum-originated items.
	Discussion *DiscussionRef `json:"discussion,omitempty"`

	// ActionURL is the navigation target. System domain only.
	ActionURL string `json:"action_url,omitempty"`

	// IsRead only ever moves from false to true.
	IsRead bool `json:"is_read"`

	// CreatedAt is source supplied, or the local receipt time for push
	// events that carry none.
	CreatedAt time.Time `json:"created_at"`

	// Category and Priority are System domain metadata.
	Category string `json:"category,omitempty"`
	Priority string `json:"priority,omitempty"`
}

// Key returns the (source, id) identity of n.
func (n Notification) Key() Key {
	return Key{Source: n.Source, ID: n.ID}
}

// Before reports whether a sorts ahead of b in the canonical feed order:
// newest first, then by source, then by id.
func Before(a, b Notification) bool {
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.After(b.CreatedAt)
	}
	if a.Source != b.Source {
		return a.Source.rank() < b.Source.rank()
	}
	return a.ID < b.ID
}

// Compare is Before expressed as a three-way comparison for slices.SortFunc.
func Compare(a, b Notification) int {
	switch {
	case Before(a, b):
		return -1
	case Before(b, a):
		return 1
	default:
		return 0
	}
}
