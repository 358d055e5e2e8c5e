// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package admin keeps the per-browser workspaces of the dashboard: one
// manager per collection and one notification channel for each signed in
// browser session.
package admin

import (
	"context"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ajwan-web/ajwan-admin/internal/cache"
	"github.com/ajwan-web/ajwan-admin/internal/content"
	"github.com/ajwan-web/ajwan-admin/internal/form"
	"github.com/ajwan-web/ajwan-admin/internal/notify"
	"github.com/ajwan-web/ajwan-admin/internal/resource"
)

// DefaultChoiceTTL is how long relation picker options are reused.
const DefaultChoiceTTL = time.Minute

// Workspace is the state of one browser session.
type Workspace struct {
	key       string
	notes     *notify.Channel
	resources map[string]Resource
	order     []Resource

	choiceStore *cache.MemoryCache
	choices     *cache.TypedCache[[]resource.Choice]

	lastSeen atomic.Int64
}

func newWorkspace(key string, notes *notify.Channel, deps resource.Deps, choiceTTL time.Duration) *Workspace {
	if choiceTTL <= 0 {
		choiceTTL = DefaultChoiceTTL
	}
	deps.Notifier = notes
	store := cache.NewSimpleMemoryCache(choiceTTL)

	ws := &Workspace{
		key:         key,
		notes:       notes,
		resources:   make(map[string]Resource),
		choiceStore: store,
		choices:     cache.NewTypedCache[[]resource.Choice](store, choiceTTL),
	}

	ws.add(newView(resource.NewManager(content.ServiceDefinition(), deps)))
	ws.add(newView(resource.NewManager(content.ServiceItemDefinition(), deps)))
	ws.add(newView(resource.NewManager(content.ProductDefinition(), deps)))
	ws.add(newView(resource.NewManager(content.ProjectDefinition(), deps)))
	ws.add(newView(resource.NewManager(content.TestimonialDefinition(), deps)))
	ws.add(newView(resource.NewManager(content.UserDefinition(), deps)))
	ws.add(newView(resource.NewManager(content.MessageDefinition(), deps)))

	return ws
}

func (ws *Workspace) add(r Resource) {
	ws.resources[r.Collection()] = r
	ws.order = append(ws.order, r)
}

// Key returns the workspace key.
func (ws *Workspace) Key() string {
	return ws.key
}

// Notes returns the notification channel.
func (ws *Workspace) Notes() *notify.Channel {
	return ws.notes
}

// Resource returns the manager of a collection.
func (ws *Workspace) Resource(collection string) (Resource, bool) {
	r, ok := ws.resources[collection]
	return r, ok
}

// Resources returns every manager in menu order.
func (ws *Workspace) Resources() []Resource {
	out := make([]Resource, len(ws.order))
	copy(out, ws.order)
	return out
}

// RelationChoices returns the options of a relation picker in locale.
// Results are reused for a short while.
func (ws *Workspace) RelationChoices(ctx context.Context, rel form.RelationField, locale string) ([]resource.Choice, error) {
	target, ok := ws.resources[rel.Collection]
	if !ok {
		return nil, resource.ErrNotFound
	}
	choices, err := ws.choices.GetOrSet(ctx, rel.Collection+":"+locale, func() (*[]resource.Choice, error) {
		list, err := target.Choices(ctx, locale)
		if err != nil {
			return nil, err
		}
		return &list, nil
	})
	if err != nil {
		return nil, err
	}
	return *choices, nil
}

// InvalidateChoices forgets cached picker options of a collection after
// it changed.
func (ws *Workspace) InvalidateChoices(ctx context.Context, collection string) {
	_ = ws.choiceStore.DeleteByPrefix(ctx, collection+":")
}

// Count is the number of entries of one collection.
type Count struct {
	Collection string
	Name       string
	Total      int
	Err        error
}

// Counts fetches the entry count of every collection in locale in
// parallel. Failures are reported per collection.
func (ws *Workspace) Counts(ctx context.Context, locale string) []Count {
	out := make([]Count, len(ws.order))

	var g errgroup.Group
	for i, r := range ws.order {
		g.Go(func() error {
			n, err := r.Count(ctx, locale)
			out[i] = Count{Collection: r.Collection(), Name: r.Name(), Total: n, Err: err}
			return nil
		})
	}
	_ = g.Wait()
	return out
}

func (ws *Workspace) touch(now time.Time) {
	ws.lastSeen.Store(now.UnixNano())
}

func (ws *Workspace) idleSince(now time.Time) time.Duration {
	return now.Sub(time.Unix(0, ws.lastSeen.Load()))
}

// expire forgets data fetched with the old token. Forms stay open.
func (ws *Workspace) expire(ctx context.Context) {
	_ = ws.choiceStore.Clear(ctx)
}

func (ws *Workspace) close() {
	for _, r := range ws.order {
		r.CloseForm()
	}
	_ = ws.choiceStore.Close()
}
