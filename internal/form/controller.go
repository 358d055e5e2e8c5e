// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package form

import (
	"fmt"
	"maps"
	"slices"
	"sync"

	"github.com/ajwan-web/ajwan-admin/internal/locale"
	"github.com/ajwan-web/ajwan-admin/internal/media"
)

// DefaultMaxFileSize is the per-file upload ceiling (10 MiB).
const DefaultMaxFileSize int64 = 10 << 20

// KeyLink is the error key of the link target on secondary-locale create.
const KeyLink = "link_document_id"

// Mode is the form mode.
type Mode int

// Form modes.
const (
	ModeCreate Mode = iota
	ModeEdit
)

func (m Mode) String() string {
	if m == ModeEdit {
		return "edit"
	}
	return "create"
}

// File is a staged upload.
type File struct {
	Name        string
	ContentType string
	Size        int64
	Data        []byte
}

// Rejection explains why a file was not staged.
type Rejection struct {
	Name    string
	Message string
}

// Draft is the state of an open form.
type Draft struct {
	Mode       Mode
	Language   string
	DocumentID string
	// Key identifies the edited entry for update calls.
	Key string
	// Values holds draft values keyed by Schema.Key.
	Values    map[string]string
	Relations map[string][]int64
	// Publish is nil when the publication state is left untouched.
	Publish *bool
	// WasPublished is the state of the edited entry when the form opened.
	WasPublished *bool
	Staged       []File
	Kept         []media.Reference
	// ToDelete lists existing media ids removed by the editor.
	ToDelete []int64
	// LinkDocumentID is the primary document a secondary-locale create
	// attaches to.
	LinkDocumentID string

	gen uint64
}

// Seed is the data an edit form starts from.
type Seed struct {
	DocumentID string
	Key        string
	Values     map[string]string
	Relations  map[string][]int64
	Published  *bool
	Media      []media.Reference
}

// Options configures a Controller.
type Options struct {
	Locales     locale.Locales
	MaxFileSize int64
}

// Controller owns a draft and its errors. It is safe for concurrent use.
type Controller struct {
	mu     sync.Mutex
	schema Schema
	opts   Options
	open   bool
	draft  Draft
	errors ErrorMap
	// gen counts Open calls so a finished save only closes its own draft.
	gen uint64
}

// NewController creates a closed controller for schema.
func NewController(schema Schema, opts Options) *Controller {
	if opts.MaxFileSize <= 0 {
		opts.MaxFileSize = DefaultMaxFileSize
	}
	return &Controller{
		schema: schema,
		opts:   opts,
		errors: ErrorMap{},
	}
}

// Schema returns the controller schema.
func (c *Controller) Schema() Schema {
	return c.schema
}

// Locales returns the configured locales.
func (c *Controller) Locales() locale.Locales {
	return c.opts.Locales
}

// MaxFileSize returns the per-file upload ceiling.
func (c *Controller) MaxFileSize() int64 {
	return c.opts.MaxFileSize
}

// Open resets the draft to empty defaults for language.
func (c *Controller) Open(mode Mode, language string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.open = true
	c.gen++
	c.errors = ErrorMap{}
	c.draft = Draft{
		Mode:      mode,
		Language:  c.opts.Locales.Resolve(language),
		Values:    map[string]string{},
		Relations: map[string][]int64{},
		Kept:      []media.Reference{},
		gen:       c.gen,
	}
}

// OpenEdit opens the form in edit mode seeded with an existing entry.
func (c *Controller) OpenEdit(language string, seed Seed) {
	c.Open(ModeEdit, language)

	c.mu.Lock()
	defer c.mu.Unlock()

	c.draft.DocumentID = seed.DocumentID
	c.draft.Key = seed.Key
	maps.Copy(c.draft.Values, seed.Values)
	for k, ids := range seed.Relations {
		c.draft.Relations[k] = slices.Clone(ids)
	}
	c.draft.Publish = cloneBool(seed.Published)
	c.draft.WasPublished = cloneBool(seed.Published)
	c.draft.Kept = append(c.draft.Kept, seed.Media...)
}

// Close discards the draft and staged files.
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.open = false
	c.draft = Draft{}
	c.errors = ErrorMap{}
}

// IsOpen reports whether a draft is being edited.
func (c *Controller) IsOpen() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.open
}

// Draft returns a copy of the current draft.
func (c *Controller) Draft() Draft {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.copyDraft()
}

// Snapshot validates the draft and returns a copy of exactly the data that
// was validated. ok is false when no form is open.
func (c *Controller) Snapshot() (d Draft, errs ErrorMap, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.open {
		return Draft{}, nil, false
	}
	c.errors = validateDraft(c.schema, c.opts.Locales, c.draft)
	return c.copyDraft(), maps.Clone(c.errors), true
}

// CloseDraft closes the form only if it still holds the draft d was copied
// from. It reports whether the form was closed.
func (c *Controller) CloseDraft(d Draft) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.open || c.draft.gen != d.gen {
		return false
	}
	c.open = false
	c.draft = Draft{}
	c.errors = ErrorMap{}
	return true
}

func (c *Controller) copyDraft() Draft {
	d := c.draft
	d.Values = maps.Clone(c.draft.Values)
	d.Relations = make(map[string][]int64, len(c.draft.Relations))
	for k, ids := range c.draft.Relations {
		d.Relations[k] = slices.Clone(ids)
	}
	d.Staged = slices.Clone(c.draft.Staged)
	d.Kept = slices.Clone(c.draft.Kept)
	d.ToDelete = slices.Clone(c.draft.ToDelete)
	d.Publish = cloneBool(c.draft.Publish)
	d.WasPublished = cloneBool(c.draft.WasPublished)
	return d
}

func cloneBool(b *bool) *bool {
	if b == nil {
		return nil
	}
	v := *b
	return &v
}

// SetField sets a draft value and clears that field's error.
func (c *Controller) SetField(key, value string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.draft.Values == nil {
		c.draft.Values = map[string]string{}
	}
	c.draft.Values[key] = value
	delete(c.errors, key)
}

// SetRelation replaces the selected ids of a relation.
func (c *Controller) SetRelation(name string, ids []int64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.draft.Relations == nil {
		c.draft.Relations = map[string][]int64{}
	}
	c.draft.Relations[name] = slices.Clone(ids)
	delete(c.errors, name)
}

// SetPublish sets the requested publication state.
func (c *Controller) SetPublish(published bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.draft.Publish = &published
}

// SetLink selects the primary document a translation attaches to.
func (c *Controller) SetLink(documentID string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.draft.LinkDocumentID = documentID
	delete(c.errors, KeyLink)
}

// AddFiles stages files for the media field. Each file is checked for its
// MIME class and size; rejected files are reported and left out. Accepted
// files are appended, except on single-file fields where only the newest
// accepted file is kept.
func (c *Controller) AddFiles(field string, files []File) []Rejection {
	c.mu.Lock()
	defer c.mu.Unlock()

	var rejected []Rejection
	mf := c.schema.Media
	if mf == nil || mf.Name != field {
		for _, f := range files {
			rejected = append(rejected, Rejection{Name: f.Name, Message: fmt.Sprintf("%s: this form has no %q media field", f.Name, field)})
		}
		return rejected
	}

	for _, f := range files {
		if f.Size <= 0 {
			f.Size = int64(len(f.Data))
		}
		f.ContentType = detectMIME(f.Name, f.ContentType)

		if !mf.Accept.Allows(f.ContentType) {
			rejected = append(rejected, Rejection{Name: f.Name, Message: typeMessage(f.Name, mf.Accept)})
			continue
		}
		if f.Size > c.opts.MaxFileSize {
			rejected = append(rejected, Rejection{
				Name:    f.Name,
				Message: fmt.Sprintf("%s is larger than %s", f.Name, FormatSize(c.opts.MaxFileSize)),
			})
			continue
		}

		if mf.Multiple {
			c.draft.Staged = append(c.draft.Staged, f)
		} else {
			c.draft.Staged = []File{f}
		}
	}
	if len(c.draft.Staged) > 0 {
		delete(c.errors, field)
	}
	return rejected
}

// RemoveStagedFile drops the staged file at index. It reports false for an
// index out of range.
func (c *Controller) RemoveStagedFile(index int) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if index < 0 || index >= len(c.draft.Staged) {
		return false
	}
	c.draft.Staged = slices.Delete(c.draft.Staged, index, index+1)
	return true
}

// StagedFile returns the staged file at index.
func (c *Controller) StagedFile(index int) (File, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if index < 0 || index >= len(c.draft.Staged) {
		return File{}, false
	}
	return c.draft.Staged[index], true
}

// RemoveExistingMedia moves an existing media id from kept to to-delete.
// Nothing is sent to the CMS until the draft is saved.
func (c *Controller) RemoveExistingMedia(id int64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	i := slices.IndexFunc(c.draft.Kept, func(r media.Reference) bool { return r.ID == id })
	if i < 0 {
		return false
	}
	c.draft.Kept = slices.Delete(c.draft.Kept, i, i+1)
	if !slices.Contains(c.draft.ToDelete, id) {
		c.draft.ToDelete = append(c.draft.ToDelete, id)
	}
	return true
}

// Errors returns a copy of the current field errors.
func (c *Controller) Errors() ErrorMap {
	c.mu.Lock()
	defer c.mu.Unlock()
	return maps.Clone(c.errors)
}

// SetError records an error for key, used for errors found outside
// Validate such as a rejected upload.
func (c *Controller) SetError(key, message string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.errors[key] = message
}

func typeMessage(name string, a Accept) string {
	if a == AcceptImageVideo {
		return fmt.Sprintf("%s is not an image or video", name)
	}
	return fmt.Sprintf("%s is not an image", name)
}

// FormatSize renders a byte count for messages, for example "10 MB".
func FormatSize(n int64) string {
	const unit = 1024
	switch {
	case n >= unit*unit && n%(unit*unit) == 0:
		return fmt.Sprintf("%d MB", n/(unit*unit))
	case n >= unit*unit:
		return fmt.Sprintf("%.1f MB", float64(n)/(unit*unit))
	case n >= unit:
		return fmt.Sprintf("%d KB", n/unit)
	default:
		return fmt.Sprintf("%d bytes", n)
	}
}
