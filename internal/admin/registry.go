// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package admin

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/ajwan-web/ajwan-admin/internal/model"
	"github.com/ajwan-web/ajwan-admin/internal/notify"
	"github.com/ajwan-web/ajwan-admin/internal/resource"
	"github.com/ajwan-web/ajwan-admin/internal/session"
)

// DefaultIdle is the inactivity after which a workspace is evicted.
const DefaultIdle = 2 * time.Hour

// Config configures a Registry.
type Config struct {
	// Deps are shared by every manager. Notifier is replaced by the
	// workspace channel.
	Deps      resource.Deps
	Idle      time.Duration
	ChoiceTTL time.Duration
	Logger    *slog.Logger
}

// Registry hands out workspaces by key.
type Registry struct {
	cfg    Config
	center *notify.Center
	logger *slog.Logger
	now    func() time.Time

	mu         sync.Mutex
	workspaces map[string]*Workspace
}

// NewRegistry creates an empty registry.
func NewRegistry(cfg Config) *Registry {
	if cfg.Idle <= 0 {
		cfg.Idle = DefaultIdle
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Registry{
		cfg:        cfg,
		center:     notify.NewCenter(),
		logger:     cfg.Logger,
		now:        time.Now,
		workspaces: make(map[string]*Workspace),
	}
}

// Get returns the workspace for key, creating it on first use, and marks
// it active.
func (r *Registry) Get(key string) *Workspace {
	now := r.now()

	r.mu.Lock()
	ws, ok := r.workspaces[key]
	if !ok {
		deps := r.cfg.Deps
		deps.Logger = r.logger.With("workspace", shortKey(key))
		ws = newWorkspace(key, r.center.For(key), deps, r.cfg.ChoiceTTL)
		r.workspaces[key] = ws
	}
	ws.touch(now)
	r.mu.Unlock()

	if !ok {
		r.logger.Debug("workspace created", "workspace", shortKey(key))
	}
	return ws
}

// Peek returns the workspace for key without creating or touching it.
func (r *Registry) Peek(key string) (*Workspace, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ws, ok := r.workspaces[key]
	return ws, ok
}

// Drop discards the workspace for key. Unknown keys are ignored.
func (r *Registry) Drop(key string) {
	r.mu.Lock()
	ws, ok := r.workspaces[key]
	delete(r.workspaces, key)
	r.mu.Unlock()

	if ok {
		r.release(key, ws)
	}
}

func (r *Registry) release(key string, ws *Workspace) {
	ws.close()
	r.center.Drop(key)
	r.logger.Debug("workspace dropped", "workspace", shortKey(key))
}

// Len returns the number of live workspaces.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.workspaces)
}

// EvictIdle drops every workspace idle for longer than the configured
// period and returns how many were dropped. Idleness is checked under the
// registry lock, so a workspace handed out by Get is never evicted.
func (r *Registry) EvictIdle() int {
	now := r.now()

	r.mu.Lock()
	stale := make(map[string]*Workspace)
	for key, ws := range r.workspaces {
		if ws.idleSince(now) > r.cfg.Idle {
			stale[key] = ws
			delete(r.workspaces, key)
		}
	}
	r.mu.Unlock()

	for key, ws := range stale {
		r.release(key, ws)
	}
	if len(stale) > 0 {
		r.logger.Info("evicted idle workspaces", "count", len(stale), "category", model.EventCategorySession)
	}
	return len(stale)
}

// Run evicts idle workspaces every interval until ctx is done.
func (r *Registry) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.EvictIdle()
		}
	}
}

// ExpirySource is a session store whose token can expire.
type ExpirySource interface {
	OnExpire(fn session.ExpireFunc)
	PeekWorkspaceKey(ctx context.Context) string
}

// WatchExpiry resets the cached data of a browser session's workspace as
// soon as its token expires or is rejected by the CMS. Open forms and
// their drafts are kept for the editor to save after signing in again;
// the workspace goes away on logout or idle eviction.
func (r *Registry) WatchExpiry(src ExpirySource) {
	src.OnExpire(func(ctx context.Context) {
		key := src.PeekWorkspaceKey(ctx)
		if key == "" {
			return
		}
		if ws, ok := r.Peek(key); ok {
			ws.expire(ctx)
			r.logger.Debug("workspace token expired", "workspace", shortKey(key))
		}
	})
}

func shortKey(key string) string {
	if len(key) > 8 {
		return key[:8]
	}
	return key
}
