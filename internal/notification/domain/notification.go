package domain

import (
	"strings"
	"time"
)

// Notification is one entry of the notification cache, newest first.
type Notification struct {
	ID        string    `json:"id"`
	Type      Type      `json:"type"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
	Read      bool      `json:"read"`
	Metadata  Metadata  `json:"metadata,omitempty"`
}

type Type string

const (
	TypeInfo         Type = "info"
	TypeSuccess      Type = "success"
	TypeWarning      Type = "warning"
	TypeError        Type = "error"
	TypeAppointment  Type = "appointment"
	TypePrescription Type = "prescription"
)

// Valid reports whether t is a known notification type.
func (t Type) Valid() bool {
	switch t {
	case TypeInfo, TypeSuccess, TypeWarning, TypeError, TypeAppointment, TypePrescription:
		return true
	}
	return false
}

// Metadata is the free-form data the backend attaches to a notification.
type Metadata map[string]any

// RequiresAction reports whether metadata carries requiresAction=true.
func (m Metadata) RequiresAction() bool {
	v, ok := m["requiresAction"].(bool)
	return ok && v
}

// Clone returns a shallow copy so snapshots never share a map with the cache.
func (m Metadata) Clone() Metadata {
	if m == nil {
		return nil
	}
	out := make(Metadata, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// IsSecurityAlert reports whether n is an unread, action-requiring notification whose title carries marker.
func (n Notification) IsSecurityAlert(marker string) bool {
	if n.Read || marker == "" {
		return false
	}
	return strings.Contains(n.Title, marker) && n.Metadata.RequiresAction()
}

// SameContent reports whether n has the given title and message.
func (n Notification) SameContent(title, message string) bool {
	return n.Title == title && n.Message == message
}

// CloneList copies list and each entry's metadata.
func CloneList(list []Notification) []Notification {
	if list == nil {
		return []Notification{}
	}
	out := make([]Notification, len(list))
	for i, n := range list {
		n.Metadata = n.Metadata.Clone()
		out[i] = n
	}
	return out
}
