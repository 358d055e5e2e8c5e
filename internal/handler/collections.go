// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package handler

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/url"
	"slices"
	"strconv"
	"strings"

	"github.com/ajwan-web/ajwan-admin/internal/admin"
	"github.com/ajwan-web/ajwan-admin/internal/form"
	"github.com/ajwan-web/ajwan-admin/internal/imaging"
	"github.com/ajwan-web/ajwan-admin/internal/resource"
)

const (
	// maxFilesPerRequest bounds the request body of a form post.
	maxFilesPerRequest = 10
	// multipartMemory is kept in memory before parts spill to disk.
	multipartMemory = 32 << 20
)

// CollectionHandler serves the list, form and delete screens of every
// collection.
type CollectionHandler struct {
	Base
	previewer *imaging.Previewer
}

// NewCollectionHandler creates a new CollectionHandler.
func NewCollectionHandler(base Base, previewer *imaging.Previewer) *CollectionHandler {
	if previewer == nil {
		previewer = imaging.NewPreviewer(0)
	}
	return &CollectionHandler{Base: base, previewer: previewer}
}

// resource returns the workspace and the manager named by the URL. It
// writes a 404 for unknown collections.
func (h *CollectionHandler) resource(w http.ResponseWriter, r *http.Request) (*admin.Workspace, admin.Resource, bool) {
	ws := h.workspace(r)
	res, ok := ws.Resource(chiParam(r, "collection"))
	if !ok {
		http.NotFound(w, r)
		return nil, nil, false
	}
	return ws, res, true
}

func listURL(res admin.Resource) string {
	return collectionPath(res.Collection()) + "?locale=" + url.QueryEscape(res.Locale())
}

func formURL(res admin.Resource) string {
	return collectionPath(res.Collection()) + RouteSuffixForm
}

// ListData holds data for the list template.
type ListData struct {
	Collection string
	Name       string
	Singular   string
	Creatable  bool
	Localized  bool
	Locale     string
	Locales    []localeOption
	Query      string
	Rows       []admin.Row
	Total      int
	LoadError  string
	FormOpen   bool
}

// List handles GET /admin/{collection}?locale=&q=. The collection is
// reloaded on every visit.
func (h *CollectionHandler) List(w http.ResponseWriter, r *http.Request) {
	ws, res, ok := h.resource(w, r)
	if !ok {
		return
	}

	code := h.localeOf(r, res.Locale())
	if err := res.Load(r.Context(), code); redirectIfExpired(w, r, h.Renderer, err) {
		return
	}

	query := strings.TrimSpace(r.URL.Query().Get("q"))
	data := ListData{
		Collection: res.Collection(),
		Name:       res.Name(),
		Singular:   res.Singular(),
		Creatable:  res.Creatable(),
		Localized:  res.Schema().Localized,
		Locale:     res.Locale(),
		Locales:    h.localeOptions(res.Locale()),
		Query:      query,
		Rows:       res.Rows(query),
		Total:      len(res.Rows("")),
		FormOpen:   res.Form().IsOpen(),
	}
	if err := res.LoadErr(); err != nil {
		data.LoadError = resource.UserMessage(err)
	}

	td := h.page(r, ws, res.Name(), data)
	if data.Localized {
		td.Lang = res.Locale()
	}
	renderPage(w, r, h.Renderer, http.StatusOK, "admin/list", td)
}

// New handles GET /admin/{collection}/new?locale=.
func (h *CollectionHandler) New(w http.ResponseWriter, r *http.Request) {
	ws, res, ok := h.resource(w, r)
	if !ok {
		return
	}

	err := res.StartCreate(r.Context(), h.localeOf(r, res.Locale()))
	if errors.Is(err, resource.ErrCreateDisabled) {
		flashError(w, r, h.Renderer, collectionPath(res.Collection()), res.Name()+" cannot be created from the dashboard.")
		return
	}
	if redirectIfExpired(w, r, h.Renderer, err) {
		return
	}
	// Other failures were notified; the form stays open without link
	// targets.

	h.renderForm(w, r, ws, res, http.StatusOK)
}

// Edit handles GET /admin/{collection}/{key}?locale=.
func (h *CollectionHandler) Edit(w http.ResponseWriter, r *http.Request) {
	ws, res, ok := h.resource(w, r)
	if !ok {
		return
	}

	key := chiParam(r, "key")
	if !h.ensureRow(w, r, res, key) {
		return
	}

	if err := res.StartEdit(key); err != nil {
		flashError(w, r, h.Renderer, listURL(res), res.Singular()+" not found.")
		return
	}
	h.renderForm(w, r, ws, res, http.StatusOK)
}

// ensureRow loads the list when key is not among the loaded rows or the
// requested locale differs. It returns false after redirecting to login.
func (h *CollectionHandler) ensureRow(w http.ResponseWriter, r *http.Request, res admin.Resource, key string) bool {
	code := h.localeOf(r, res.Locale())
	if _, found := res.Row(key); found && res.Locale() == code {
		return true
	}
	err := res.Load(r.Context(), code)
	return !redirectIfExpired(w, r, h.Renderer, err)
}

// ShowForm handles GET /admin/{collection}/form.
func (h *CollectionHandler) ShowForm(w http.ResponseWriter, r *http.Request) {
	ws, res, ok := h.resource(w, r)
	if !ok {
		return
	}
	if !res.Form().IsOpen() {
		http.Redirect(w, r, listURL(res), http.StatusSeeOther)
		return
	}
	h.renderForm(w, r, ws, res, http.StatusOK)
}

// SubmitForm handles POST /admin/{collection}/form. It applies edited
// values, added files and removals to the draft. With action=save the
// draft is saved, with action=cancel it is discarded.
func (h *CollectionHandler) SubmitForm(w http.ResponseWriter, r *http.Request) {
	ws, res, ok := h.resource(w, r)
	if !ok {
		return
	}

	ctl := res.Form()
	if !ctl.IsOpen() {
		flashError(w, r, h.Renderer, listURL(res), "The form was closed. Please start again.")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, ctl.MaxFileSize()*maxFilesPerRequest+(1<<20))
	if err := r.ParseMultipartForm(multipartMemory); err != nil && !errors.Is(err, http.ErrNotMultipart) {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			ws.Notes().Error("Upload too large", fmt.Sprintf("Add at most %d files of up to %s each at a time.",
				maxFilesPerRequest, form.FormatSize(ctl.MaxFileSize())))
			http.Redirect(w, r, formURL(res), http.StatusSeeOther)
			return
		}
		flashError(w, r, h.Renderer, formURL(res), "Invalid form data.")
		return
	}
	if r.MultipartForm != nil {
		defer func() { _ = r.MultipartForm.RemoveAll() }()
	}

	switch r.FormValue("action") {
	case "cancel":
		res.CloseForm()
		http.Redirect(w, r, listURL(res), http.StatusSeeOther)
		return
	case "save":
		h.applyForm(ws, ctl, r)
		h.save(w, r, ws, res)
		return
	default:
		h.applyForm(ws, ctl, r)
		http.Redirect(w, r, formURL(res), http.StatusSeeOther)
	}
}

func (h *CollectionHandler) save(w http.ResponseWriter, r *http.Request, ws *admin.Workspace, res admin.Resource) {
	err := res.Save(r.Context())

	var invalid *form.ValidationError
	switch {
	case err == nil:
		ws.InvalidateChoices(r.Context(), res.Collection())
		http.Redirect(w, r, listURL(res), http.StatusSeeOther)
	case errors.As(err, &invalid):
		h.renderForm(w, r, ws, res, http.StatusUnprocessableEntity)
	case redirectIfExpired(w, r, h.Renderer, err):
	case errors.Is(err, resource.ErrNoForm):
		http.Redirect(w, r, listURL(res), http.StatusSeeOther)
	case errors.Is(err, resource.ErrBusy):
		ws.Notes().Warning("Please wait", "Another save or delete is still running.")
		http.Redirect(w, r, formURL(res), http.StatusSeeOther)
	default:
		// The manager has notified; the draft stays open for another try.
		http.Redirect(w, r, formURL(res), http.StatusSeeOther)
	}
}

// applyForm copies the posted values into the draft. Fields missing from
// the post are left untouched, so a partial post never clears the other
// language.
func (h *CollectionHandler) applyForm(ws *admin.Workspace, ctl *form.Controller, r *http.Request) {
	schema := ctl.Schema()
	suffix := h.Locales.Suffix(ctl.Draft().Language)

	for _, f := range schema.Fields {
		key := schema.Key(f, suffix)
		if v, ok := lastValue(r, key); ok {
			ctl.SetField(key, v)
		}
	}

	for _, rel := range schema.Relations {
		if _, present := r.Form["rel_present_"+rel.Name]; !present {
			continue
		}
		ids := []int64{}
		for _, raw := range r.Form["rel_"+rel.Name] {
			if id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64); err == nil && id > 0 && !slices.Contains(ids, id) {
				ids = append(ids, id)
			}
		}
		ctl.SetRelation(rel.Name, ids)
	}

	if schema.Publishable {
		if v, ok := lastValue(r, "publish"); ok {
			ctl.SetPublish(form.ParseBool(v))
		}
	}
	if v, ok := lastValue(r, form.KeyLink); ok {
		ctl.SetLink(strings.TrimSpace(v))
	}

	for _, raw := range r.Form["remove_media"] {
		if id, err := strconv.ParseInt(raw, 10, 64); err == nil {
			ctl.RemoveExistingMedia(id)
		}
	}

	// Highest index first so earlier removals do not shift later ones.
	var staged []int
	for _, raw := range r.Form["remove_staged"] {
		if i, err := strconv.Atoi(raw); err == nil && !slices.Contains(staged, i) {
			staged = append(staged, i)
		}
	}
	slices.Sort(staged)
	for _, i := range slices.Backward(staged) {
		ctl.RemoveStagedFile(i)
	}

	if schema.Media != nil && r.MultipartForm != nil {
		h.stageFiles(ws, ctl, schema.Media.Name, r.MultipartForm.File["files"])
	}
}

func (h *CollectionHandler) stageFiles(ws *admin.Workspace, ctl *form.Controller, field string, headers []*multipart.FileHeader) {
	files := make([]form.File, 0, len(headers))
	for _, fh := range headers {
		if fh.Filename == "" && fh.Size == 0 {
			continue
		}
		f, err := readUpload(fh, ctl.MaxFileSize())
		if err != nil {
			slog.Warn("reading uploaded file failed", "file", fh.Filename, "error", err)
			ws.Notes().Warning("File not added", fh.Filename+" could not be read.")
			continue
		}
		files = append(files, f)
	}
	if len(files) == 0 {
		return
	}

	for _, rej := range ctl.AddFiles(field, files) {
		ws.Notes().Warning("File not added", rej.Message)
	}
}

// readUpload reads a posted file. Files over limit are read only up to
// limit+1 bytes; the recorded size still exceeds the limit so the draft
// rejects them.
func readUpload(fh *multipart.FileHeader, limit int64) (form.File, error) {
	src, err := fh.Open()
	if err != nil {
		return form.File{}, err
	}
	defer func() { _ = src.Close() }()

	data, err := io.ReadAll(io.LimitReader(src, limit+1))
	if err != nil {
		return form.File{}, err
	}
	return form.File{
		Name:        fh.Filename,
		ContentType: fh.Header.Get("Content-Type"),
		Size:        fh.Size,
		Data:        data,
	}, nil
}

func lastValue(r *http.Request, key string) (string, bool) {
	values, ok := r.Form[key]
	if !ok || len(values) == 0 {
		return "", false
	}
	return values[len(values)-1], true
}

// StagedPreview handles GET /admin/{collection}/form/staged/{index}. It
// serves a thumbnail of a staged image.
func (h *CollectionHandler) StagedPreview(w http.ResponseWriter, r *http.Request) {
	_, res, ok := h.resource(w, r)
	if !ok {
		return
	}

	index, err := strconv.Atoi(chiParam(r, "index"))
	if err != nil {
		http.NotFound(w, r)
		return
	}
	file, ok := res.Form().StagedFile(index)
	if !ok {
		http.NotFound(w, r)
		return
	}

	thumb, err := h.previewer.Thumbnail(file.Data)
	if err != nil {
		if !errors.Is(err, imaging.ErrUnsupported) {
			slog.Debug("rendering preview failed", "file", file.Name, "error", err)
		}
		http.NotFound(w, r)
		return
	}

	w.Header().Set("Content-Type", thumb.ContentType)
	w.Header().Set("Cache-Control", "private, no-store")
	w.Header().Set("Content-Length", strconv.Itoa(len(thumb.Data)))
	_, _ = w.Write(thumb.Data)
}

// DeleteData holds data for the delete confirmation template.
type DeleteData struct {
	Collection string
	Singular   string
	Key        string
	Locale     string
	Row        admin.Row
	Prompt     string
	ListPath   string
}

// ConfirmDelete handles GET /admin/{collection}/{key}/delete.
func (h *CollectionHandler) ConfirmDelete(w http.ResponseWriter, r *http.Request) {
	ws, res, ok := h.resource(w, r)
	if !ok {
		return
	}

	key := chiParam(r, "key")
	if !h.ensureRow(w, r, res, key) {
		return
	}
	row, found := res.Row(key)
	if !found {
		flashError(w, r, h.Renderer, listURL(res), res.Singular()+" not found.")
		return
	}

	renderPage(w, r, h.Renderer, http.StatusOK, "admin/delete", h.page(r, ws, "Delete "+strings.ToLower(res.Singular()), DeleteData{
		Collection: res.Collection(),
		Singular:   res.Singular(),
		Key:        key,
		Locale:     res.Locale(),
		Row:        row,
		Prompt:     fmt.Sprintf("Delete %s %q? This cannot be undone.", strings.ToLower(res.Singular()), row.Label),
		ListPath:   listURL(res),
	}))
}

// Delete handles POST /admin/{collection}/{key}/delete. Nothing is deleted
// unless confirm=yes is posted.
func (h *CollectionHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ws, res, ok := h.resource(w, r)
	if !ok {
		return
	}

	key := chiParam(r, "key")
	if !h.ensureRow(w, r, res, key) {
		return
	}

	err := res.Delete(r.Context(), key, resource.Confirmed(r.FormValue("confirm") == "yes"))
	switch {
	case err == nil:
		ws.InvalidateChoices(r.Context(), res.Collection())
		http.Redirect(w, r, listURL(res), http.StatusSeeOther)
	case errors.Is(err, resource.ErrCancelled):
		http.Redirect(w, r, listURL(res), http.StatusSeeOther)
	case errors.Is(err, resource.ErrNotFound):
		flashError(w, r, h.Renderer, listURL(res), res.Singular()+" not found.")
	case redirectIfExpired(w, r, h.Renderer, err):
	case errors.Is(err, resource.ErrBusy):
		ws.Notes().Warning("Please wait", "Another save or delete is still running.")
		http.Redirect(w, r, listURL(res), http.StatusSeeOther)
	default:
		http.Redirect(w, r, listURL(res), http.StatusSeeOther)
	}
}
