// Package notification delivers human-facing status events of the attendance
// monitor: an in-memory history for the status server, subscriber channels for
// attached front-ends, and optional push (shoutrrr) and MQTT delivery.
package notification

import (
	"maps"
	"time"

	"github.com/google/uuid"
)

// Type represents the category of a notification.
type Type string

const (
	TypeError   Type = "error"
	TypeWarning Type = "warning"
	TypeInfo    Type = "info"
	TypeSystem  Type = "system"
)

// Priority represents the urgency level of a notification.
type Priority string

const (
	PriorityLow      Priority = "low"
	PriorityMedium   Priority = "medium"
	PriorityHigh     Priority = "high"
	PriorityCritical Priority = "critical"
)

// rank orders priorities; unknown values rank lowest.
func (p Priority) rank() int {
	switch p {
	case PriorityCritical:
		return 3
	case PriorityHigh:
		return 2
	case PriorityMedium:
		return 1
	default:
		return 0
	}
}

// AtLeast reports whether p is as urgent as min.
func (p Priority) AtLeast(minimum Priority) bool {
	return p.rank() >= minimum.rank()
}

// MetadataKeyEvent carries the lifecycle event name of a notification.
const MetadataKeyEvent = "event"

// Notification is one status event.
type Notification struct {
	ID        string         `json:"id"`
	Type      Type           `json:"type"`
	Priority  Priority       `json:"priority"`
	Title     string         `json:"title"`
	Message   string         `json:"message"`
	Component string         `json:"component,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// NewNotification creates a notification with a unique ID and timestamp.
func NewNotification(notifType Type, priority Priority, title, message string) *Notification {
	return &Notification{
		ID:        uuid.New().String(),
		Type:      notifType,
		Priority:  priority,
		Title:     title,
		Message:   message,
		Timestamp: time.Now(),
		Metadata:  make(map[string]any),
	}
}

// WithComponent sets the source component and returns the notification for chaining.
func (n *Notification) WithComponent(component string) *Notification {
	n.Component = component
	return n
}

// WithMetadata adds a metadata value and returns the notification for chaining.
func (n *Notification) WithMetadata(key string, value any) *Notification {
	if n.Metadata == nil {
		n.Metadata = make(map[string]any)
	}
	n.Metadata[key] = value
	return n
}

// Event returns the lifecycle event name, or "" when none is set.
func (n *Notification) Event() string {
	s, _ := n.Metadata[MetadataKeyEvent].(string)
	return s
}

// Clone copies the notification so subscribers never share the metadata map.
// Metadata values are expected to be scalars.
func (n *Notification) Clone() *Notification {
	if n == nil {
		return nil
	}
	clone := *n
	if n.Metadata != nil {
		clone.Metadata = maps.Clone(n.Metadata)
	}
	return &clone
}
