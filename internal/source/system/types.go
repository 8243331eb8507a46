package system

import "github.com/nhle/notifeed/internal/source"

// ListResponse is the response from GET /api/notifications.
type ListResponse struct {
	Items []Item `json:"items"`
	Total int    `json:"total"`
	Page  int    `json:"page"`
	Limit int    `json:"limit"`
}

// Item is a single system/job notification record. It is also the shape
// of a system push payload.
type Item struct {
	ID        source.ID        `json:"id"`
	Type      string           `json:"type"`
	Title     string           `json:"title"`
	Message   string           `json:"message"`
	ActionURL string           `json:"action_url"`
	IsRead    bool             `json:"is_read"`
	CreatedAt source.Timestamp `json:"created_at"`
	Category  string           `json:"category"`
	Priority  string           `json:"priority"`
}

// MarkReadRequest is the body of POST /api/notifications/read.
type MarkReadRequest struct {
	IDs    []string `json:"ids"`
	IsRead bool     `json:"is_read"`
}

// DeleteRequest is the body of DELETE /api/notifications.
type DeleteRequest struct {
	IDs []string `json:"ids"`
}
