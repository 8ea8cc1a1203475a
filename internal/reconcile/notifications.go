package reconcile

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Notification severities.
const (
	SeverityInfo    = "info"
	SeveritySuccess = "success"
	SeverityWarning = "warning"
	SeverityError   = "error"
)

const maxNotifications = 50

// Notification is a client-local message derived from a received envelope.
// Notifications never outlive the session.
type Notification struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
	Read      bool      `json:"read"`
}

// NotificationCenter keeps the 50 most recent notifications, newest first.
type NotificationCenter struct {
	mu            sync.RWMutex
	notifications []Notification
	clock         func() time.Time
}

// NewNotificationCenter constructs an empty center. A nil clock means wall time.
func NewNotificationCenter(clock func() time.Time) *NotificationCenter {
	if clock == nil {
		clock = time.Now
	}
	return &NotificationCenter{clock: clock}
}

// Add prepends a notification, dropping the oldest beyond the cap, and
// returns the stored entry.
func (n *NotificationCenter) Add(severity, title, message string) Notification {
	notification := Notification{
		ID:        uuid.NewString(),
		Type:      severity,
		Title:     title,
		Message:   message,
		Timestamp: n.clock().UTC(),
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	n.notifications = append([]Notification{notification}, n.notifications...)
	if len(n.notifications) > maxNotifications {
		n.notifications = n.notifications[:maxNotifications]
	}
	return notification
}

// MarkRead flags the notification with the given id as read.
func (n *NotificationCenter) MarkRead(notificationID string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	for i := range n.notifications {
		if n.notifications[i].ID == notificationID {
			n.notifications[i].Read = true
			return
		}
	}
}

// Clear drops every notification.
func (n *NotificationCenter) Clear() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.notifications = nil
}

// List snapshots the notifications, newest first.
func (n *NotificationCenter) List() []Notification {
	n.mu.RLock()
	defer n.mu.RUnlock()
	snapshot := make([]Notification, len(n.notifications))
	copy(snapshot, n.notifications)
	return snapshot
}

// Unread counts notifications not yet marked read.
func (n *NotificationCenter) Unread() int {
	n.mu.RLock()
	defer n.mu.RUnlock()
	count := 0
	for i := range n.notifications {
		if !n.notifications[i].Read {
			count++
		}
	}
	return count
}
