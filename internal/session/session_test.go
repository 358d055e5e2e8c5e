// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package session

import (
	"context"
	"database/sql"
	"net/http"
	"testing"
	"time"

	"github.com/lestrrat-go/jwx/jwa"
	"github.com/lestrrat-go/jwx/jwt"

	_ "modernc.org/sqlite"
)

func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	db.SetMaxOpenConns(1)

	// Create sessions table required by sqlite3store
	_, err = db.Exec(`
		CREATE TABLE sessions (
			token TEXT PRIMARY KEY,
			data BLOB NOT NULL,
			expiry REAL NOT NULL
		);
		CREATE INDEX sessions_expiry_idx ON sessions(expiry);
	`)
	if err != nil {
		t.Fatalf("failed to create sessions table: %v", err)
	}

	t.Cleanup(func() { _ = db.Close() })
	return db
}

func signedToken(t *testing.T, exp time.Time) string {
	t.Helper()
	tok := jwt.New()
	if err := tok.Set(jwt.SubjectKey, "1"); err != nil {
		t.Fatalf("set sub: %v", err)
	}
	if err := tok.Set(jwt.ExpirationKey, exp); err != nil {
		t.Fatalf("set exp: %v", err)
	}
	signed, err := jwt.Sign(tok, jwa.HS256, []byte("test-signing-key"))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return string(signed)
}

func loadedContext(t *testing.T, s *Store) context.Context {
	t.Helper()
	ctx, err := s.Manager().Load(context.Background(), "")
	if err != nil {
		t.Fatalf("loading session: %v", err)
	}
	return ctx
}

func TestNew_DevMode(t *testing.T) {
	db := setupTestDB(t)

	sm := New(db, true)

	if sm.Cookie.Secure {
		t.Error("expected Cookie.Secure = false in dev mode")
	}
	if sm.Cookie.Name == "__Host-session" {
		t.Error("expected default cookie name in dev mode")
	}
	if sm.Store == nil {
		t.Error("expected Store to be initialized")
	}
}

func TestNew_ProductionMode(t *testing.T) {
	db := setupTestDB(t)

	sm := New(db, false)

	if !sm.Cookie.Secure {
		t.Error("expected Cookie.Secure = true in production mode")
	}
	if sm.Cookie.Name != "__Host-session" {
		t.Errorf("expected __Host-session cookie name, got %q", sm.Cookie.Name)
	}
	if sm.Cookie.Path != "/" {
		t.Errorf("expected Cookie.Path = '/', got %q", sm.Cookie.Path)
	}
}

func TestNew_SessionSettings(t *testing.T) {
	db := setupTestDB(t)

	sm := New(db, true)

	if sm.Lifetime != 24*time.Hour {
		t.Errorf("Lifetime = %v, want 24h", sm.Lifetime)
	}
	if !sm.Cookie.HttpOnly {
		t.Error("expected Cookie.HttpOnly = true")
	}
	if sm.Cookie.SameSite != http.SameSiteLaxMode {
		t.Errorf("expected SameSite = Lax, got %v", sm.Cookie.SameSite)
	}
}

func TestStore_TokenRoundTrip(t *testing.T) {
	s := NewStore(New(setupTestDB(t), true))
	ctx := loadedContext(t, s)

	if got := s.Token(ctx); got != "" {
		t.Fatalf("Token() = %q, want empty", got)
	}

	token := signedToken(t, time.Now().Add(time.Hour))
	if err := s.SetToken(ctx, token); err != nil {
		t.Fatalf("SetToken: %v", err)
	}
	if got := s.Token(ctx); got != token {
		t.Errorf("Token() = %q, want stored token", got)
	}
}

func TestStore_ClearFiresListeners(t *testing.T) {
	s := NewStore(New(setupTestDB(t), true))
	ctx := loadedContext(t, s)

	fired := 0
	s.OnExpire(func(context.Context) { fired++ })

	// Nothing to clear yet.
	s.Clear(ctx)
	if fired != 0 {
		t.Fatalf("listeners fired %d times without a token", fired)
	}

	if err := s.SetToken(ctx, "opaque-token"); err != nil {
		t.Fatalf("SetToken: %v", err)
	}
	s.Clear(ctx)
	if fired != 1 {
		t.Errorf("listeners fired %d times, want 1", fired)
	}
	if got := s.Token(ctx); got != "" {
		t.Errorf("Token() after Clear = %q, want empty", got)
	}
}

func TestStore_ExpiredTokenIsAbsent(t *testing.T) {
	s := NewStore(New(setupTestDB(t), true))
	ctx := loadedContext(t, s)

	fired := 0
	s.OnExpire(func(context.Context) { fired++ })

	if err := s.SetToken(ctx, signedToken(t, time.Now().Add(-time.Minute))); err != nil {
		t.Fatalf("SetToken: %v", err)
	}
	if got := s.Token(ctx); got != "" {
		t.Errorf("Token() = %q, want empty for expired token", got)
	}
	if fired != 1 {
		t.Errorf("listeners fired %d times, want 1", fired)
	}
}

func TestStore_WorkspaceKeyStable(t *testing.T) {
	s := NewStore(New(setupTestDB(t), true))
	ctx := loadedContext(t, s)

	if got := s.PeekWorkspaceKey(ctx); got != "" {
		t.Fatalf("PeekWorkspaceKey() = %q before creation", got)
	}
	first := s.WorkspaceKey(ctx)
	if first == "" {
		t.Fatal("WorkspaceKey() returned empty key")
	}
	if second := s.WorkspaceKey(ctx); second != first {
		t.Errorf("WorkspaceKey() changed: %q != %q", second, first)
	}
}

func TestStore_Flash(t *testing.T) {
	s := NewStore(New(setupTestDB(t), true))
	ctx := loadedContext(t, s)

	if msg, _ := s.PopFlash(ctx); msg != "" {
		t.Fatalf("PopFlash() = %q before any flash", msg)
	}

	s.Flash(ctx, "Signed out", "")
	msg, typ := s.PopFlash(ctx)
	if msg != "Signed out" || typ != "info" {
		t.Errorf("PopFlash() = (%q, %q), want (Signed out, info)", msg, typ)
	}
	if msg, _ := s.PopFlash(ctx); msg != "" {
		t.Errorf("flash survived a second pop: %q", msg)
	}
}

func TestMemory(t *testing.T) {
	ctx := context.Background()
	m := NewMemory("abc")

	fired := 0
	m.OnExpire(func(context.Context) { fired++ })

	if got := m.Token(ctx); got != "abc" {
		t.Fatalf("Token() = %q, want abc", got)
	}
	m.Clear(ctx)
	m.Clear(ctx)
	if fired != 1 {
		t.Errorf("listeners fired %d times, want 1", fired)
	}

	_ = m.SetToken(ctx, signedToken(t, time.Now().Add(-time.Second)))
	if got := m.Token(ctx); got != "" {
		t.Errorf("Token() = %q, want empty for expired token", got)
	}
}

func TestExpired(t *testing.T) {
	now := time.Now()

	tests := []struct {
		name  string
		token string
		want  bool
	}{
		{"opaque", "not-a-jwt", false},
		{"future", signedToken(t, now.Add(time.Hour)), false},
		{"past", signedToken(t, now.Add(-time.Hour)), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Expired(tt.token, now); got != tt.want {
				t.Errorf("Expired() = %v, want %v", got, tt.want)
			}
		})
	}
}
