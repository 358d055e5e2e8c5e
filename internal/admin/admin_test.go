// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package admin

import (
	"context"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajwan-web/ajwan-admin/internal/cms"
	"github.com/ajwan-web/ajwan-admin/internal/content"
	"github.com/ajwan-web/ajwan-admin/internal/form"
	"github.com/ajwan-web/ajwan-admin/internal/locale"
	"github.com/ajwan-web/ajwan-admin/internal/media"
	"github.com/ajwan-web/ajwan-admin/internal/resource"
	"github.com/ajwan-web/ajwan-admin/internal/session"
	"github.com/ajwan-web/ajwan-admin/internal/testutil"
)

const testToken = "admin-token"

func newTestRegistry(t *testing.T) (*Registry, *testutil.FakeCMS) {
	t.Helper()
	return newTestRegistryWith(t, session.NewMemory(testToken))
}

func newTestRegistryWith(t *testing.T, sess cms.Session) (*Registry, *testutil.FakeCMS) {
	t.Helper()
	fake := testutil.NewFakeCMS(t)
	fake.AddAccount("admin", "secret", testToken, 3)

	client := cms.New(cms.Config{BaseURL: fake.URL(), Logger: testutil.TestLoggerSilent()}, sess)
	reg := NewRegistry(Config{
		Deps: resource.Deps{
			API:        client,
			Locales:    locale.MustNew("en", "ar-SA"),
			Normalizer: media.NewNormalizer(fake.URL()),
			Logger:     testutil.TestLoggerSilent(),
		},
		Idle:   time.Hour,
		Logger: testutil.TestLoggerSilent(),
	})
	return reg, fake
}

func TestRegistry_GetCreatesOnce(t *testing.T) {
	reg, _ := newTestRegistry(t)

	a := reg.Get("key-1")
	b := reg.Get("key-1")
	c := reg.Get("key-2")

	assert.Same(t, a, b)
	assert.NotSame(t, a, c)
	assert.Equal(t, 2, reg.Len())
	assert.NotSame(t, a.Notes(), c.Notes(), "each workspace has its own channel")
}

func TestRegistry_Drop(t *testing.T) {
	reg, _ := newTestRegistry(t)
	ws := reg.Get("key-1")
	ws.Notes().Info("hello", "")

	reg.Drop("key-1")
	reg.Drop("unknown")

	_, ok := reg.Peek("key-1")
	assert.False(t, ok)
	assert.Equal(t, 0, reg.Len())
	assert.NotSame(t, ws, reg.Get("key-1"), "a dropped key gets a fresh workspace")
}

func TestRegistry_EvictIdle(t *testing.T) {
	reg, _ := newTestRegistry(t)
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	reg.now = func() time.Time { return now }

	reg.Get("old")
	now = now.Add(50 * time.Minute)
	reg.Get("fresh")
	now = now.Add(20 * time.Minute)

	assert.Equal(t, 1, reg.EvictIdle())
	_, oldOK := reg.Peek("old")
	_, freshOK := reg.Peek("fresh")
	assert.False(t, oldOK)
	assert.True(t, freshOK)
}

func TestRegistry_EvictIdleKeepsTouched(t *testing.T) {
	reg, _ := newTestRegistry(t)
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	reg.now = func() time.Time { return now }

	stale := reg.Get("stale")
	svc, _ := stale.Resource("services")
	require.NoError(t, svc.StartCreate(context.Background(), "en"))
	touched := reg.Get("touched")

	now = now.Add(2 * time.Hour)
	assert.Same(t, touched, reg.Get("touched"))

	assert.Equal(t, 1, reg.EvictIdle())
	_, ok := reg.Peek("touched")
	assert.True(t, ok)
	assert.False(t, svc.Form().IsOpen(), "evicted workspaces close their forms")
	assert.NotSame(t, stale, reg.Get("stale"))
}

func TestRegistry_EvictIdleConcurrentGet(t *testing.T) {
	reg, _ := newTestRegistry(t)
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	var offset atomic.Int64
	reg.now = func() time.Time { return base.Add(time.Duration(offset.Load())) }

	for i := 0; i < 50; i++ {
		reg.Get("k")
		offset.Add(int64(2 * time.Hour))

		got := make(chan *Workspace, 1)
		go func() { got <- reg.Get("k") }()
		reg.EvictIdle()
		ws := <-got

		current, ok := reg.Peek("k")
		require.True(t, ok, "a workspace just handed out stays registered")
		assert.Same(t, ws, current)
	}
}

func TestRegistry_RunStopsWithContext(t *testing.T) {
	reg, _ := newTestRegistry(t)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		reg.Run(ctx, time.Millisecond)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

type keyedMemory struct {
	*session.Memory
	key string
}

func (m *keyedMemory) PeekWorkspaceKey(context.Context) string { return m.key }

func TestRegistry_WatchExpiryKeepsDrafts(t *testing.T) {
	sess := &keyedMemory{Memory: session.NewMemory(testToken), key: "browser-1"}
	reg, fake := newTestRegistryWith(t, sess)
	reg.WatchExpiry(sess)
	fake.Add("service-items", "en", map[string]any{"title": "Logo"})
	ctx := context.Background()

	ws := reg.Get("browser-1")
	reg.Get("browser-2")
	rel := form.RelationField{Name: "service_items", Collection: "service-items", Multiple: true}
	_, err := ws.RelationChoices(ctx, rel, "en")
	require.NoError(t, err)

	svc, _ := ws.Resource("services")
	require.NoError(t, svc.StartCreate(ctx, "en"))
	svc.Form().SetField("title_en", "Consulting")
	svc.Form().SetField("description_en", "Advice")

	fake.Revoke(testToken)
	err = svc.Save(ctx)
	require.True(t, cms.IsAuthExpired(err))

	current, ok := reg.Peek("browser-1")
	require.True(t, ok)
	assert.Same(t, ws, current)
	assert.Equal(t, 2, reg.Len())
	require.True(t, svc.Form().IsOpen())
	assert.Equal(t, "Consulting", svc.Form().Draft().Values["title_en"])

	var titles []string
	for _, n := range ws.Notes().List() {
		titles = append(titles, n.Title)
	}
	assert.Contains(t, titles, "Session expired")

	// Signing in again: cached choices are refetched and the draft saves.
	fake.AddAccount("admin", "secret", testToken, 3)
	require.NoError(t, sess.SetToken(ctx, testToken))
	_, err = ws.RelationChoices(ctx, rel, "en")
	require.NoError(t, err)
	assert.Len(t, fake.RequestsTo(http.MethodGet, "/service-items"), 2)

	require.NoError(t, svc.Save(ctx))
	entries := fake.Entries("services")
	require.Len(t, entries, 1)
	assert.Equal(t, "Consulting", entries[0]["title"])
}

func TestWorkspace_Resources(t *testing.T) {
	reg, _ := newTestRegistry(t)
	ws := reg.Get("k")

	var names []string
	for _, r := range ws.Resources() {
		names = append(names, r.Collection())
	}
	assert.Equal(t, []string{
		content.CollectionServices,
		content.CollectionServiceItems,
		content.CollectionProducts,
		content.CollectionProjects,
		content.CollectionTestimonials,
		content.CollectionUsers,
		content.CollectionMessages,
	}, names)

	msgs, ok := ws.Resource(content.CollectionMessages)
	require.True(t, ok)
	assert.False(t, msgs.Creatable())

	_, ok = ws.Resource("pages")
	assert.False(t, ok)
}

func TestWorkspace_Counts(t *testing.T) {
	reg, fake := newTestRegistry(t)
	fake.Add("services", "en", map[string]any{"title": "Design"})
	fake.Add("services", "en", map[string]any{"title": "Build"})
	fake.Add("services", "ar-SA", map[string]any{"title": "تصميم"})
	fake.Fail("GET /products", http.StatusInternalServerError)

	counts := reg.Get("k").Counts(context.Background(), "en")
	require.Len(t, counts, 7)

	byName := map[string]Count{}
	for _, c := range counts {
		byName[c.Collection] = c
	}
	assert.Equal(t, 2, byName["services"].Total)
	assert.NoError(t, byName["services"].Err)
	assert.Error(t, byName["products"].Err)
	assert.Equal(t, 0, byName["messages"].Total)
}

func TestWorkspace_RelationChoicesCached(t *testing.T) {
	reg, fake := newTestRegistry(t)
	fake.Add("service-items", "en", map[string]any{"title": "Logo"})
	ws := reg.Get("k")
	ctx := context.Background()
	rel := form.RelationField{Name: "service_items", Collection: "service-items", Multiple: true}

	first, err := ws.RelationChoices(ctx, rel, "en")
	require.NoError(t, err)
	require.Len(t, first, 1)
	assert.Equal(t, "Logo", first[0].Label)

	_, err = ws.RelationChoices(ctx, rel, "en")
	require.NoError(t, err)
	assert.Len(t, fake.RequestsTo(http.MethodGet, "/service-items"), 1, "second lookup is cached")

	ws.InvalidateChoices(ctx, "service-items")
	_, err = ws.RelationChoices(ctx, rel, "en")
	require.NoError(t, err)
	assert.Len(t, fake.RequestsTo(http.MethodGet, "/service-items"), 2)

	_, err = ws.RelationChoices(ctx, form.RelationField{Collection: "nope"}, "en")
	assert.ErrorIs(t, err, resource.ErrNotFound)
}

func TestView_RowsAndEdit(t *testing.T) {
	reg, fake := newTestRegistry(t)
	fake.Add("services", "en", map[string]any{
		"title":       "Interior design",
		"description": "Full   rooms\nplanned end to end",
		"image":       map[string]any{"id": 9, "url": "/uploads/room.jpg", "name": "room.jpg"},
		"publishedAt": "2026-01-02T00:00:00Z",
	})
	fake.Add("services", "en", map[string]any{"title": "Landscaping"})

	ws := reg.Get("k")
	svc, _ := ws.Resource("services")
	require.NoError(t, svc.Load(context.Background(), "en"))

	rows := svc.Rows("interior")
	require.Len(t, rows, 1)
	row := rows[0]
	assert.Equal(t, "Interior design", row.Label)
	assert.Equal(t, "Full rooms planned end to end", row.Summary)
	assert.Equal(t, fake.URL()+"/uploads/room.jpg", row.Thumb)
	assert.False(t, row.ThumbIsVideo)
	assert.Equal(t, resource.StatusPublished, row.Status)

	got, ok := svc.Row(row.Key)
	require.True(t, ok)
	assert.Equal(t, row, got)

	require.NoError(t, svc.StartEdit(row.Key))
	assert.Equal(t, resource.StateFormOpen, svc.State())
	assert.Equal(t, "Interior design", svc.Form().Draft().Values["title_en"])

	assert.ErrorIs(t, svc.StartEdit("missing"), resource.ErrNotFound)
}

func TestView_LinkOptions(t *testing.T) {
	reg, fake := newTestRegistry(t)
	en := fake.Add("services", "en", map[string]any{"title": "Design"})
	fake.Add("services", "en", map[string]any{"title": "Build", "documentId": "translated"})
	fake.Add("services", "ar-SA", map[string]any{"title": "بناء", "documentId": "translated"})

	svc, _ := reg.Get("k").Resource("services")
	require.NoError(t, svc.StartCreate(context.Background(), "ar-SA"))

	opts := svc.LinkOptions()
	require.Len(t, opts, 1)
	assert.Equal(t, en["documentId"], opts[0].DocumentID)
	assert.Equal(t, "Design", opts[0].Label)
}

func TestExcerpt(t *testing.T) {
	tests := []struct {
		in   string
		n    int
		want string
	}{
		{"short", 10, "short"},
		{"  spaced\n\tout  ", 20, "spaced out"},
		{"one two three four", 12, "one two…"},
		{"abcdefghij", 5, "abcde…"},
		{"تصميم المواقع الحديثة للشركات", 20, "تصميم المواقع…"},
		// The space sits early in runes but late in bytes.
		{"تصميم مواقعالحديثةللشركات", 16, "تصميم مواقعالحدي…"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, excerpt(tt.in, tt.n), "excerpt(%q, %d)", tt.in, tt.n)
	}
}

func TestIsVideo(t *testing.T) {
	assert.True(t, IsVideo("clip.MP4"))
	assert.False(t, IsVideo("photo.jpg"))
	assert.False(t, IsVideo("noext"))
}
