// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package session keeps the CMS token of each browser session.
package session

import (
	"context"
	"database/sql"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/alexedwards/scs/sqlite3store"
	"github.com/alexedwards/scs/v2"
	"github.com/google/uuid"
)

// Session keys.
const (
	KeyToken     = "cms_token"
	KeyWorkspace = "workspace_key"
	KeyUsername  = "username"
	KeyFlash     = "flash"
	KeyFlashType = "flash_type"
)

// New creates a new session manager configured with SQLite store.
func New(db *sql.DB, isDev bool) *scs.SessionManager {
	sm := scs.New()

	sm.Store = sqlite3store.New(db)

	sm.Lifetime = 24 * time.Hour
	sm.IdleTimeout = 2 * time.Hour
	sm.Cookie.HttpOnly = true
	sm.Cookie.SameSite = http.SameSiteLaxMode
	sm.Cookie.Path = "/"
	sm.Cookie.Secure = !isDev
	if !isDev {
		sm.Cookie.Name = "__Host-session"
	}

	return sm
}

// ExpireFunc is called when a session loses its token because it expired
// or was rejected by the CMS.
type ExpireFunc func(ctx context.Context)

// listeners is the callback list shared by Store and Memory.
type listeners struct {
	mu  sync.RWMutex
	fns []ExpireFunc
}

func (l *listeners) add(fn ExpireFunc) {
	l.mu.Lock()
	l.fns = append(l.fns, fn)
	l.mu.Unlock()
}

func (l *listeners) fire(ctx context.Context) {
	l.mu.RLock()
	fns := make([]ExpireFunc, len(l.fns))
	copy(fns, l.fns)
	l.mu.RUnlock()

	for _, fn := range fns {
		fn(ctx)
	}
}

// Store keeps the token in the scs session of the current request.
// The request context must have passed through sm.LoadAndSave.
type Store struct {
	sm        *scs.SessionManager
	listeners listeners
}

// NewStore wraps a session manager.
func NewStore(sm *scs.SessionManager) *Store {
	return &Store{sm: sm}
}

// Manager returns the underlying session manager.
func (s *Store) Manager() *scs.SessionManager {
	return s.sm
}

// Token returns the CMS token. A token whose exp claim lies in the past is
// cleared and reported as absent.
func (s *Store) Token(ctx context.Context) string {
	token := s.sm.GetString(ctx, KeyToken)
	if token == "" {
		return ""
	}
	if Expired(token, time.Now()) {
		slog.Info("session token expired", "category", "auth")
		s.Clear(ctx)
		return ""
	}
	return token
}

// SetToken stores a new token. The session id is renewed first to prevent
// fixation.
func (s *Store) SetToken(ctx context.Context, token string) error {
	if err := s.sm.RenewToken(ctx); err != nil {
		return err
	}
	s.sm.Put(ctx, KeyToken, token)
	return nil
}

// Clear removes the token. Expiry listeners run only when a token was
// actually present.
func (s *Store) Clear(ctx context.Context) {
	if !s.sm.Exists(ctx, KeyToken) {
		return
	}
	s.sm.Remove(ctx, KeyToken)
	s.listeners.fire(ctx)
}

// OnExpire registers fn to run whenever Clear removes a token.
func (s *Store) OnExpire(fn ExpireFunc) {
	s.listeners.add(fn)
}

// SetUsername remembers the display name of the signed in user.
func (s *Store) SetUsername(ctx context.Context, name string) {
	s.sm.Put(ctx, KeyUsername, name)
}

// Username returns the display name stored at login.
func (s *Store) Username(ctx context.Context) string {
	return s.sm.GetString(ctx, KeyUsername)
}

// WorkspaceKey returns the key identifying this browser session's
// workspace, creating it on first use.
func (s *Store) WorkspaceKey(ctx context.Context) string {
	if key := s.sm.GetString(ctx, KeyWorkspace); key != "" {
		return key
	}
	key := uuid.NewString()
	s.sm.Put(ctx, KeyWorkspace, key)
	return key
}

// PeekWorkspaceKey returns the workspace key without creating one.
func (s *Store) PeekWorkspaceKey(ctx context.Context) string {
	return s.sm.GetString(ctx, KeyWorkspace)
}

// Flash queues a one-shot message for the next rendered page.
func (s *Store) Flash(ctx context.Context, message, flashType string) {
	s.sm.Put(ctx, KeyFlash, message)
	s.sm.Put(ctx, KeyFlashType, flashType)
}

// PopFlash returns and removes the queued message. The type defaults to
// "info".
func (s *Store) PopFlash(ctx context.Context) (message, flashType string) {
	message = s.sm.PopString(ctx, KeyFlash)
	if message == "" {
		return "", ""
	}
	flashType = s.sm.PopString(ctx, KeyFlashType)
	if flashType == "" {
		flashType = "info"
	}
	return message, flashType
}

// Destroy ends the browser session.
func (s *Store) Destroy(ctx context.Context) error {
	return s.sm.Destroy(ctx)
}

// Memory is a process-wide token holder for scripts and tests.
type Memory struct {
	mu        sync.RWMutex
	token     string
	listeners listeners
}

// NewMemory creates a Memory session holding token.
func NewMemory(token string) *Memory {
	return &Memory{token: token}
}

// Token returns the token, clearing it when its exp claim has passed.
func (m *Memory) Token(ctx context.Context) string {
	m.mu.RLock()
	token := m.token
	m.mu.RUnlock()

	if token != "" && Expired(token, time.Now()) {
		m.Clear(ctx)
		return ""
	}
	return token
}

// SetToken replaces the token.
func (m *Memory) SetToken(_ context.Context, token string) error {
	m.mu.Lock()
	m.token = token
	m.mu.Unlock()
	return nil
}

// Clear removes the token and fires expiry listeners if one was present.
func (m *Memory) Clear(ctx context.Context) {
	m.mu.Lock()
	had := m.token != ""
	m.token = ""
	m.mu.Unlock()

	if had {
		m.listeners.fire(ctx)
	}
}

// OnExpire registers fn to run whenever Clear removes a token.
func (m *Memory) OnExpire(fn ExpireFunc) {
	m.listeners.add(fn)
}
