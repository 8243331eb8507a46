package sourcetest

import (
	"time"

	"github.com/nhle/notifeed/internal/model"
)

// SystemItem builds an unread system notification.
func SystemItem(id string, createdAt time.Time) model.Notification {
	return model.Notification{
		ID:        id,
		Source:    model.SourceSystem,
		Type:      "job_match",
		Title:     "Job " + id,
		Message:   "system notification " + id,
		ActionURL: "/jobs/" + id,
		CreatedAt: createdAt,
	}
}

// ForumItem builds an unread forum notification.
func ForumItem(id string, createdAt time.Time) model.Notification {
	return model.Notification{
		ID:         id,
		Source:     model.SourceForum,
		Type:       "like",
		Message:    "forum notification " + id,
		Sender:     &model.Sender{FirstName: "Ada", LastName: "Lovelace"},
		Discussion: &model.DiscussionRef{ID: "d-" + id, Title: "Thread " + id},
		CreatedAt:  createdAt,
	}
}

// Read returns n marked as read.
func Read(n model.Notification) model.Notification {
	n.IsRead = true
	return n
}

// IDs returns the ids of ns in order.
func IDs(ns []model.Notification) []string {
	out := make([]string, len(ns))
	for i, n := range ns {
		out[i] = n.ID
	}
	return out
}
