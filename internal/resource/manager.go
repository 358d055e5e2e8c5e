// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package resource

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/ajwan-web/ajwan-admin/internal/cms"
	"github.com/ajwan-web/ajwan-admin/internal/form"
	"github.com/ajwan-web/ajwan-admin/internal/locale"
	"github.com/ajwan-web/ajwan-admin/internal/media"
)

// State is the manager state as shown to the editor.
type State string

// Manager states.
const (
	StateIdle      State = "idle"
	StateLoading   State = "loading"
	StateReady     State = "ready"
	StateLoadError State = "load_error"
	StateFormOpen  State = "form_open"
	StateSaving    State = "saving"
	StateDeleting  State = "deleting"
)

type operation int

const (
	opNone operation = iota
	opSaving
	opDeleting
)

// Deps are the collaborators of a Manager.
type Deps struct {
	API         API
	Notifier    Notifier
	Activity    ActivityRecorder
	Locales     locale.Locales
	Normalizer  *media.Normalizer
	Logger      *slog.Logger
	MaxFileSize int64
}

// Manager is the CRUD manager of one collection.
type Manager[E Entity] struct {
	def        Definition[E]
	api        API
	notes      Notifier
	activity   ActivityRecorder
	locales    locale.Locales
	normalizer *media.Normalizer
	logger     *slog.Logger
	form       *form.Controller

	mu          sync.Mutex
	state       State
	op          operation
	items       []E
	locale      string
	loadErr     error
	linkOptions []E

	inFlight atomic.Bool
	loadSeq  atomic.Uint64
}

// NewManager creates a Manager for def.
func NewManager[E Entity](def Definition[E], deps Deps) *Manager[E] {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Normalizer == nil {
		deps.Normalizer = media.NewNormalizer("")
	}
	if deps.Notifier == nil {
		deps.Notifier = discardNotifier{}
	}
	return &Manager[E]{
		def:        def,
		api:        deps.API,
		notes:      deps.Notifier,
		activity:   deps.Activity,
		locales:    deps.Locales,
		normalizer: deps.Normalizer,
		logger:     deps.Logger.With("collection", def.Collection),
		form:       form.NewController(def.Schema, form.Options{Locales: deps.Locales, MaxFileSize: deps.MaxFileSize}),
		state:      StateIdle,
		locale:     deps.Locales.Primary(),
		items:      []E{},
	}
}

// Definition returns the collection definition.
func (m *Manager[E]) Definition() Definition[E] {
	return m.def
}

// Form returns the form controller.
func (m *Manager[E]) Form() *form.Controller {
	return m.form
}

// State returns the current state. A running save or delete wins over an
// open form, which wins over the load state.
func (m *Manager[E]) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch {
	case m.op == opSaving:
		return StateSaving
	case m.op == opDeleting:
		return StateDeleting
	case m.form.IsOpen():
		return StateFormOpen
	default:
		return m.state
	}
}

// Locale returns the locale of the loaded list.
func (m *Manager[E]) Locale() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.locale
}

// LoadErr returns the error of the last failed load.
func (m *Manager[E]) LoadErr() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.loadErr
}

// Items returns the loaded entries.
func (m *Manager[E]) Items() []E {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.items)
}

// LinkOptions returns the primary entries a new translation may attach to.
func (m *Manager[E]) LinkOptions() []E {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.linkOptions)
}

func (m *Manager[E]) listLocale(code string) string {
	if !m.def.Schema.Localized {
		return ""
	}
	return m.locales.Resolve(code)
}

// Load fetches the collection for locale and replaces the list. When loads
// overlap only the most recently started one is applied; older responses
// are dropped and return nil. A failed load sets the LoadError state and
// notifies the editor.
func (m *Manager[E]) Load(ctx context.Context, code string) error {
	code = m.locales.Resolve(code)
	seq := m.loadSeq.Add(1)

	m.mu.Lock()
	m.state = StateLoading
	m.locale = code
	m.mu.Unlock()

	items, err := m.fetch(ctx, m.listLocale(code))

	m.mu.Lock()
	defer m.mu.Unlock()

	if seq != m.loadSeq.Load() {
		m.logger.Debug("discarding superseded load", "locale", code, "seq", seq)
		return nil
	}

	if err != nil {
		m.state = StateLoadError
		m.loadErr = err
		m.logger.Error("loading collection failed", "locale", code, "error", err)
		m.notes.Error("Could not load "+strings.ToLower(m.def.Name), UserMessage(err))
		return err
	}

	m.items = items
	m.loadErr = nil
	m.state = StateReady
	return nil
}

// fetch lists and decodes a collection. Entries that fail to decode are
// skipped with a warning.
func (m *Manager[E]) fetch(ctx context.Context, code string) ([]E, error) {
	raws, err := m.api.List(ctx, m.def.Collection, code)
	if err != nil {
		return nil, err
	}
	return m.decodeAll(raws), nil
}

func (m *Manager[E]) decodeAll(raws []json.RawMessage) []E {
	items := make([]E, 0, len(raws))
	for _, raw := range raws {
		e, err := m.decode(raw)
		if err != nil {
			m.logger.Warn("skipping undecodable entry", "category", "cms", "error", err)
			continue
		}
		items = append(items, e)
	}
	return items
}

func (m *Manager[E]) decode(raw json.RawMessage) (E, error) {
	var zero E
	it, err := NewItem(raw, m.normalizer)
	if err != nil {
		return zero, err
	}
	return m.def.Decode(it)
}

// Filter returns the entries whose search text contains term, ignoring
// case. An empty term returns every entry. The stored list is not changed.
func (m *Manager[E]) Filter(term string) []E {
	m.mu.Lock()
	items := slices.Clone(m.items)
	m.mu.Unlock()

	return FilterEntities(items, term)
}

// FilterEntities is the pure filter behind Manager.Filter.
func FilterEntities[E Entity](items []E, term string) []E {
	if term == "" {
		return items
	}
	needle := strings.ToLower(term)

	out := make([]E, 0, len(items))
	for _, e := range items {
		for _, s := range e.SearchText() {
			if strings.Contains(strings.ToLower(s), needle) {
				out = append(out, e)
				break
			}
		}
	}
	return out
}

// Find returns the loaded entry with the given key.
func (m *Manager[E]) Find(key string) (E, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, e := range m.items {
		if m.keyOf(e) == key {
			return e, true
		}
	}
	var zero E
	return zero, false
}

func (m *Manager[E]) keyOf(e E) string {
	return e.EntityMeta().Key(m.def.KeyByID)
}

// Key returns the URL key of an entry.
func (m *Manager[E]) Key(e E) string {
	return m.keyOf(e)
}

// StartCreate opens an empty form for locale. For the secondary locale the
// primary entries without a translation are fetched as link targets.
func (m *Manager[E]) StartCreate(ctx context.Context, code string) error {
	if m.def.NoCreate {
		return ErrCreateDisabled
	}
	code = m.locales.Resolve(code)

	m.form.Open(form.ModeCreate, code)
	m.mu.Lock()
	m.linkOptions = nil
	m.mu.Unlock()

	if !m.def.Schema.Localized || !m.locales.IsSecondary(code) {
		return nil
	}

	options, err := m.linkTargets(ctx, code)
	if err != nil {
		m.logger.Error("loading link targets failed", "error", err)
		m.notes.Error("Could not load "+m.locales.Label(m.locales.Primary())+" entries", UserMessage(err))
		return err
	}

	m.mu.Lock()
	m.linkOptions = options
	m.mu.Unlock()
	return nil
}

func (m *Manager[E]) linkTargets(ctx context.Context, secondary string) ([]E, error) {
	primaries, err := m.fetch(ctx, m.locales.Primary())
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	var translated []E
	loaded := m.state == StateReady && m.locale == secondary
	if loaded {
		translated = slices.Clone(m.items)
	}
	m.mu.Unlock()

	if !loaded {
		if translated, err = m.fetch(ctx, secondary); err != nil {
			return nil, err
		}
	}

	linked := make(map[string]bool, len(translated))
	for _, e := range translated {
		if id := e.EntityMeta().DocumentID; id != "" {
			linked[id] = true
		}
	}

	out := make([]E, 0, len(primaries))
	for _, e := range primaries {
		if m.def.eligible(e, linked) {
			out = append(out, e)
		}
	}
	return out, nil
}

// StartEdit opens the form seeded with entity, keyed by its documentId and
// locale.
func (m *Manager[E]) StartEdit(entity E) {
	meta := entity.EntityMeta()
	code := meta.Locale
	if code == "" {
		code = m.Locale()
	}
	code = m.locales.Resolve(code)
	suffix := m.locales.Suffix(code)

	values := make(map[string]string)
	for name, value := range entity.DraftValues() {
		if f, ok := m.def.Schema.Field(name); ok {
			values[m.def.Schema.Key(f, suffix)] = value
		}
	}

	seed := form.Seed{
		DocumentID: meta.DocumentID,
		Key:        m.keyOf(entity),
		Values:     values,
		Relations:  entity.DraftRelations(),
		Media:      entity.EntityMedia(),
	}
	if m.def.Schema.Publishable {
		published := meta.Published()
		seed.Published = &published
	}

	m.form.OpenEdit(code, seed)
}

// CloseForm discards the open form.
func (m *Manager[E]) CloseForm() {
	m.form.Close()
	m.clearLinkOptions()
}

func (m *Manager[E]) clearLinkOptions() {
	m.mu.Lock()
	m.linkOptions = nil
	m.mu.Unlock()
}

// Choices lists the entries of the collection in locale for relation
// pickers. The manager state is not touched.
func (m *Manager[E]) Choices(ctx context.Context, code string) ([]Choice, error) {
	items, err := m.fetch(ctx, m.listLocale(code))
	if err != nil {
		return nil, err
	}
	out := make([]Choice, 0, len(items))
	for _, e := range items {
		meta := e.EntityMeta()
		out = append(out, Choice{ID: meta.ID, DocumentID: meta.DocumentID, Label: e.Label()})
	}
	return out, nil
}

// Delete removes the entry with key after confirm agrees. On success every
// loaded row with that key is dropped; on failure the list is unchanged.
func (m *Manager[E]) Delete(ctx context.Context, key string, confirm Confirmer) error {
	if !m.inFlight.CompareAndSwap(false, true) {
		return ErrBusy
	}
	defer m.inFlight.Store(false)

	entity, ok := m.Find(key)
	if !ok {
		return ErrNotFound
	}
	label := entity.Label()

	prompt := fmt.Sprintf("Delete %s %q? This cannot be undone.", strings.ToLower(m.def.Singular), label)
	if confirm == nil || !confirm.Confirm(ctx, prompt) {
		return ErrCancelled
	}

	if m.api.Token(ctx) == "" {
		m.notifyFailure("Delete failed", cms.ErrNoToken)
		return cms.ErrNoToken
	}

	m.setOp(opDeleting)
	defer m.setOp(opNone)

	if err := m.api.Delete(ctx, m.def.Collection, key); err != nil {
		m.logger.Error("deleting entry failed", "key", key, "error", err)
		m.notifyFailure("Delete failed", err)
		return err
	}

	m.mu.Lock()
	m.items = slices.DeleteFunc(m.items, func(e E) bool { return m.keyOf(e) == key })
	m.mu.Unlock()

	meta := entity.EntityMeta()
	m.record(ctx, Activity{
		Action:     ActionDelete,
		Collection: m.def.Collection,
		DocumentID: key,
		Locale:     meta.Locale,
		Label:      label,
	})
	m.notes.Success(m.def.Singular+" deleted", fmt.Sprintf("%q was deleted.", label))
	return nil
}

func (m *Manager[E]) setOp(op operation) {
	m.mu.Lock()
	m.op = op
	m.mu.Unlock()
}

func (m *Manager[E]) record(ctx context.Context, a Activity) {
	if m.activity == nil {
		return
	}
	if err := m.activity.RecordActivity(ctx, a); err != nil {
		m.logger.Warn("recording activity failed", "action", a.Action, "error", err)
	}
}

func (m *Manager[E]) notifyFailure(title string, err error) {
	if cms.IsAuthExpired(err) {
		m.notes.Error("Session expired", "Please sign in again.")
		return
	}
	m.notes.Error(title, UserMessage(err))
}

// UserMessage turns an error into text suitable for a notification.
func UserMessage(err error) string {
	var (
		se *cms.ServerError
		ue *UploadError
		ve *form.ValidationError
	)
	switch {
	case err == nil:
		return ""
	case cms.IsAuthExpired(err):
		return "Your session has expired. Please sign in again."
	case errors.Is(err, cms.ErrTimeout):
		return "The CMS did not respond in time. Please try again."
	case errors.As(err, &ve):
		return "Please correct the highlighted fields."
	case errors.As(err, &ue):
		return "The files could not be uploaded: " + UserMessage(ue.Err)
	case errors.As(err, &se):
		if msg := se.Message(); msg != "" && len(msg) < 200 {
			return msg + " (status " + strconv.Itoa(se.Status) + ")"
		}
		return "The CMS returned an error (status " + strconv.Itoa(se.Status) + "). Please try again."
	default:
		var ne *cms.NetworkError
		if errors.As(err, &ne) {
			return "The CMS could not be reached. Please check the connection and try again."
		}
		return err.Error()
	}
}

type discardNotifier struct{}

func (discardNotifier) Success(string, string) string { return "" }
func (discardNotifier) Warning(string, string) string { return "" }
func (discardNotifier) Error(string, string) string   { return "" }
