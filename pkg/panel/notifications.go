package panel

import (
	"slices"
	"sync"

	"github.com/haivivi/ancpanel/pkg/ancapi"
)

// DefaultNotificationLimit is how many notifications a log keeps.
const DefaultNotificationLimit = 10

// NotificationLog keeps the most recent notifications, newest first.
type NotificationLog struct {
	mu    sync.RWMutex
	items []ancapi.Notification
	limit int
}

// NewNotificationLog creates a log holding at most limit entries. A
// non-positive limit selects DefaultNotificationLimit.
func NewNotificationLog(limit int) *NotificationLog {
	if limit <= 0 {
		limit = DefaultNotificationLimit
	}
	return &NotificationLog{limit: limit}
}

// Push adds notifications in arrival order; each one goes to the front.
// Entries beyond the limit are dropped from the back.
func (l *NotificationLog) Push(ns ...ancapi.Notification) {
	if len(ns) == 0 {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, n := range ns {
		l.items = slices.Insert(l.items, 0, n)
	}
	if len(l.items) > l.limit {
		l.items = slices.Clip(l.items[:l.limit])
	}
}

// Items returns a copy of the entries, newest first.
func (l *NotificationLog) Items() []ancapi.Notification {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return slices.Clone(l.items)
}

// Len returns the number of entries.
func (l *NotificationLog) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.items)
}

// Clear removes every entry.
func (l *NotificationLog) Clear() {
	l.mu.Lock()
	l.items = nil
	l.mu.Unlock()
}
