package forum

import "github.com/nhle/notifeed/internal/source"

// ListResponse is the response from GET /api/forum/notifications.
type ListResponse struct {
	Data []Item   `json:"data"`
	Meta PageMeta `json:"meta"`
}

// PageMeta carries the pagination echo of a list call.
type PageMeta struct {
	Page  int `json:"page"`
	Limit int `json:"limit"`
	Total int `json:"total"`
}

// Item is a single forum notification record. It is also the shape of a
// forum push payload.
type Item struct {
	ID         source.ID        `json:"id"`
	Type       string           `json:"type"`
	Message    string           `json:"message"`
	IsRead     bool             `json:"is_read"`
	CreatedAt  source.Timestamp `json:"created_at"`
	Sender     *Actor           `json:"sender"`
	Discussion *Discussion      `json:"discussion"`
}

// Actor is the forum user who triggered the notification.
type Actor struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	AvatarURL string `json:"avatar_url"`
}

// Discussion references the thread a notification belongs to.
type Discussion struct {
	ID    source.ID `json:"id"`
	Title string    `json:"title"`
}

// markAll is the literal the API accepts in place of an id list.
const markAll = "all"

// MarkReadRequest is the body of POST /api/forum/notifications/read.
// IDs is either a list of ids or the string "all".
type MarkReadRequest struct {
	IDs interface{} `json:"ids"`
}
