// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package notify

import "sync"

// Center hands out one Channel per browser session key.
type Center struct {
	mu       sync.Mutex
	channels map[string]*Channel
}

// NewCenter creates an empty Center.
func NewCenter() *Center {
	return &Center{channels: make(map[string]*Channel)}
}

// For returns the channel for key, creating it on first use.
func (c *Center) For(key string) *Channel {
	c.mu.Lock()
	defer c.mu.Unlock()

	ch, ok := c.channels[key]
	if !ok {
		ch = NewChannel()
		c.channels[key] = ch
	}
	return ch
}

// Drop closes and forgets the channel for key.
func (c *Center) Drop(key string) {
	c.mu.Lock()
	ch, ok := c.channels[key]
	delete(c.channels, key)
	c.mu.Unlock()

	if ok {
		ch.Close()
	}
}

// Len returns the number of live channels.
func (c *Center) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.channels)
}
