// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package resource

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ajwan-web/ajwan-admin/internal/cms"
	"github.com/ajwan-web/ajwan-admin/internal/form"
	"github.com/ajwan-web/ajwan-admin/internal/media"
)

// Save submits the open form. The steps run in order:
//
//  1. validate the active language; invalid drafts never reach the CMS
//  2. delete media the editor removed; failures only warn
//  3. upload staged files as one batch; a failure aborts the save
//  4. create, attach a localization, or update
//  5. close the form, reload the list and notify
//
// On any failure after validation the form stays open with its values and
// the editor is notified. A second Save or Delete while one is running
// returns ErrBusy.
func (m *Manager[E]) Save(ctx context.Context) error {
	if !m.inFlight.CompareAndSwap(false, true) {
		return ErrBusy
	}
	defer m.inFlight.Store(false)

	// Everything below works on d; edits made while the save runs stay in
	// the open form and are not sent.
	d, errs, ok := m.form.Snapshot()
	if !ok {
		return ErrNoForm
	}
	if len(errs) > 0 {
		return &form.ValidationError{Fields: errs}
	}

	if m.api.Token(ctx) == "" {
		m.notifyFailure("Save failed", cms.ErrNoToken)
		return cms.ErrNoToken
	}

	m.setOp(opSaving)
	defer m.setOp(opNone)

	if err := m.deleteMarkedMedia(ctx, d.ToDelete); err != nil {
		return m.failSave(err)
	}

	var uploaded []cms.MediaRecord
	if len(d.Staged) > 0 {
		files := make([]cms.UploadFile, 0, len(d.Staged))
		for _, f := range d.Staged {
			files = append(files, cms.UploadFile{Name: f.Name, ContentType: f.ContentType, Data: f.Data})
		}
		recs, err := m.api.Upload(ctx, files)
		if err != nil {
			return m.failSave(&UploadError{Err: err})
		}
		uploaded = recs
	}

	payload := form.PayloadOf(m.def.Schema, m.locales, d)
	m.applyMedia(payload, d, uploaded)
	if m.def.BeforeSave != nil {
		m.def.BeforeSave(d, payload)
	}

	activity, err := m.submit(ctx, d, payload)
	if err != nil {
		return m.failSave(err)
	}

	if m.form.CloseDraft(d) {
		m.clearLinkOptions()
	}
	m.record(ctx, activity)

	// A failed reload notifies on its own; the save itself succeeded.
	_ = m.Load(ctx, m.Locale())

	title := m.def.Singular + " saved"
	switch activity.Action {
	case ActionCreate:
		title = m.def.Singular + " created"
	case ActionLocalize:
		title = "Translation added"
	}
	m.notes.Success(title, savedMessage(activity.Label))
	return nil
}

// deleteMarkedMedia removes media the editor dropped from the entry. Only
// an expired session is fatal; other failures become one warning.
func (m *Manager[E]) deleteMarkedMedia(ctx context.Context, ids []int64) error {
	var failed []string
	for _, id := range ids {
		err := m.api.DeleteMedia(ctx, id)
		if err == nil {
			continue
		}
		if cms.IsAuthExpired(err) {
			return err
		}
		m.logger.Warn("removing media failed", "category", "media", "media_id", id, "error", err)
		failed = append(failed, fmt.Sprintf("#%d", id))
	}
	if len(failed) > 0 {
		m.notes.Warning("Some media could not be removed",
			"The entry was still saved. Media "+strings.Join(failed, ", ")+" may remain in the library.")
	}
	return nil
}

// applyMedia writes the final media ids into the payload.
func (m *Manager[E]) applyMedia(payload map[string]any, d form.Draft, uploaded []cms.MediaRecord) {
	mf := m.def.Schema.Media
	if mf == nil {
		return
	}

	if mf.Multiple {
		payload[mf.Name] = MergeMediaIDs(d.Kept, d.Staged, uploaded)
		return
	}

	newIDs := MergeMediaIDs(nil, d.Staged, uploaded)
	switch {
	case len(newIDs) > 0:
		payload[mf.Name] = newIDs[len(newIDs)-1]
	case len(d.Kept) > 0:
		payload[mf.Name] = d.Kept[0].ID
	default:
		payload[mf.Name] = nil
	}
}

func (m *Manager[E]) submit(ctx context.Context, d form.Draft, payload map[string]any) (Activity, error) {
	a := Activity{
		Collection: m.def.Collection,
		Locale:     d.Language,
		Label:      draftLabel(m.def.Schema, d, m.locales.Suffix(d.Language)),
	}
	code := m.listLocale(d.Language)
	body := cms.Payload{Fields: payload, Raw: m.def.RawBody}

	switch {
	case d.Mode == form.ModeCreate && m.def.Schema.Localized && m.locales.IsSecondary(d.Language):
		a.Action = ActionLocalize
		a.DocumentID = d.LinkDocumentID
		return a, m.attachLocalization(ctx, d.LinkDocumentID, code, payload)

	case d.Mode == form.ModeCreate:
		a.Action = ActionCreate
		raw, err := m.api.Create(ctx, m.def.Collection, code, body)
		if err != nil {
			return a, err
		}
		if e, derr := m.decode(raw); derr == nil {
			a.DocumentID = m.keyOf(e)
		}
		return a, nil

	default:
		a.Action = ActionUpdate
		a.DocumentID = d.Key
		_, err := m.api.Update(ctx, m.def.Collection, d.Key, code, body)
		return a, err
	}
}

// attachLocalization adds a translation in locale to an existing primary
// document. The CMS stores it as another row of that document.
func (m *Manager[E]) attachLocalization(ctx context.Context, documentID, code string, payload map[string]any) error {
	if documentID == "" {
		return errors.New("resource: no document to attach the translation to")
	}
	_, err := m.api.Localize(ctx, m.def.Collection, documentID, code, cms.Payload{Fields: payload})
	return err
}

func (m *Manager[E]) failSave(err error) error {
	m.logger.Error("saving entry failed", "error", err)
	title := "Save failed"
	var ue *UploadError
	if errors.As(err, &ue) {
		title = "Upload failed"
	}
	m.notifyFailure(title, err)
	return err
}

// MergeMediaIDs returns the media ids to store on an entry: the kept
// existing ids first, then the uploaded ids in the order of the staged
// files they match by filename, then uploaded records that matched no
// staged file.
func MergeMediaIDs(kept []media.Reference, staged []form.File, uploaded []cms.MediaRecord) []int64 {
	ids := make([]int64, 0, len(kept)+len(uploaded))
	seen := make(map[int64]bool, len(kept)+len(uploaded))
	add := func(id int64) {
		if id == 0 || seen[id] {
			return
		}
		seen[id] = true
		ids = append(ids, id)
	}

	for _, r := range kept {
		add(r.ID)
	}

	used := make([]bool, len(uploaded))
	for _, f := range staged {
		for i, rec := range uploaded {
			if !used[i] && rec.Name == f.Name {
				used[i] = true
				add(rec.ID)
				break
			}
		}
	}
	for i, rec := range uploaded {
		if !used[i] {
			add(rec.ID)
		}
	}
	return ids
}

func draftLabel(s form.Schema, d form.Draft, suffix string) string {
	for _, name := range []string{"title", "name", "username", "subject"} {
		if f, ok := s.Field(name); ok {
			if v := strings.TrimSpace(d.Values[s.Key(f, suffix)]); v != "" {
				return v
			}
		}
	}
	return d.DocumentID
}

func savedMessage(label string) string {
	if label == "" {
		return "Your changes were saved."
	}
	return fmt.Sprintf("%q was saved.", label)
}
