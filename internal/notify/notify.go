// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package notify holds the stacked notifications shown to an editor.
// Entries remove themselves after their duration; a zero duration keeps
// the entry until it is dismissed.
package notify

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Type is the notification severity.
type Type string

// Notification types.
const (
	TypeSuccess Type = "success"
	TypeError   Type = "error"
	TypeWarning Type = "warning"
	TypeInfo    Type = "info"
)

// Default display durations.
const (
	SuccessDuration = 5 * time.Second
	InfoDuration    = 5 * time.Second
	WarningDuration = 8 * time.Second
	ErrorDuration   = 0
)

// Notification is a single message.
type Notification struct {
	ID        string
	Type      Type
	Title     string
	Message   string
	Duration  time.Duration
	CreatedAt time.Time
}

// Sticky reports whether the notification waits for dismissal.
func (n Notification) Sticky() bool {
	return n.Duration <= 0
}

// Channel is an ordered set of live notifications.
type Channel struct {
	mu      sync.Mutex
	entries []Notification
	timers  map[string]*time.Timer
	closed  bool
	now     func() time.Time
}

// NewChannel creates an empty channel.
func NewChannel() *Channel {
	return &Channel{
		timers: make(map[string]*time.Timer),
		now:    time.Now,
	}
}

// Push appends n and returns its id. An empty ID is generated.
func (c *Channel) Push(n Notification) string {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return n.ID
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = c.now()
	}
	c.entries = append(c.entries, n)

	if n.Duration > 0 {
		id := n.ID
		c.timers[id] = time.AfterFunc(n.Duration, func() { c.Dismiss(id) })
	}
	return n.ID
}

// Success pushes a success notification with the default duration.
func (c *Channel) Success(title, message string) string {
	return c.Push(Notification{Type: TypeSuccess, Title: title, Message: message, Duration: SuccessDuration})
}

// Info pushes an info notification with the default duration.
func (c *Channel) Info(title, message string) string {
	return c.Push(Notification{Type: TypeInfo, Title: title, Message: message, Duration: InfoDuration})
}

// Warning pushes a warning notification with the default duration.
func (c *Channel) Warning(title, message string) string {
	return c.Push(Notification{Type: TypeWarning, Title: title, Message: message, Duration: WarningDuration})
}

// Error pushes a sticky error notification.
func (c *Channel) Error(title, message string) string {
	return c.Push(Notification{Type: TypeError, Title: title, Message: message, Duration: ErrorDuration})
}

// Dismiss removes the notification with id. Unknown ids are ignored.
func (c *Channel) Dismiss(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if t, ok := c.timers[id]; ok {
		t.Stop()
		delete(c.timers, id)
	}
	for i, n := range c.entries {
		if n.ID == id {
			c.entries = append(c.entries[:i], c.entries[i+1:]...)
			return
		}
	}
}

// List returns the live notifications, most recent first.
func (c *Channel) List() []Notification {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]Notification, len(c.entries))
	for i, n := range c.entries {
		out[len(c.entries)-1-i] = n
	}
	return out
}

// Len returns the number of live notifications.
func (c *Channel) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Close stops all pending expiry timers and drops every entry.
func (c *Channel) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	for id, t := range c.timers {
		t.Stop()
		delete(c.timers, id)
	}
	c.entries = nil
	c.closed = true
}
