package backend

import (
	"time"

	notificationdomain "medconnect/client/internal/notification/domain"
	userdomain "medconnect/client/internal/user/domain"
)

// LoginResult is the successful POST /api/auth/login body.
type LoginResult struct {
	Token string          `json:"token"`
	User  userdomain.User `json:"user"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type validateResponse struct {
	Valid bool             `json:"valid"`
	User  *userdomain.User `json:"user"`
}

type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// Notification is the backend wire form of a notification.
type Notification struct {
	ID        string         `json:"_id"`
	Type      string         `json:"type"`
	Title     string         `json:"title"`
	Message   string         `json:"message"`
	Read      bool           `json:"read"`
	CreatedAt time.Time      `json:"createdAt"`
	Data      map[string]any `json:"data,omitempty"`
}

// Domain converts the wire form into the client model.
func (n Notification) Domain() notificationdomain.Notification {
	typ := notificationdomain.Type(n.Type)
	if !typ.Valid() {
		typ = notificationdomain.TypeInfo
	}
	return notificationdomain.Notification{
		ID:        n.ID,
		Type:      typ,
		Title:     n.Title,
		Message:   n.Message,
		Timestamp: n.CreatedAt,
		Read:      n.Read,
		Metadata:  notificationdomain.Metadata(n.Data),
	}
}

// NotificationPage is the GET /api/notifications body.
type NotificationPage struct {
	Notifications []Notification `json:"notifications"`
	UnreadCount   int            `json:"unreadCount"`
	CurrentPage   int            `json:"currentPage,omitempty"`
	TotalPages    int            `json:"totalPages,omitempty"`
}

// Domain returns the page's notifications in the client model, preserving order.
func (p *NotificationPage) Domain() []notificationdomain.Notification {
	out := make([]notificationdomain.Notification, 0, len(p.Notifications))
	for _, n := range p.Notifications {
		out = append(out, n.Domain())
	}
	return out
}

// ListOptions narrows GET /api/notifications. Zero values use the backend defaults.
type ListOptions struct {
	Page       int
	Limit      int
	UnreadOnly bool
}

// CreateNotificationRequest is the POST /api/notifications body.
type CreateNotificationRequest struct {
	Title   string `json:"title"`
	Message string `json:"message"`
	Type    string `json:"type"`
}
