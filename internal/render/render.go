// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package render parses the dashboard templates once and renders them with
// the data every page shares.
package render

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/ajwan-web/ajwan-admin/internal/form"
	"github.com/ajwan-web/ajwan-admin/internal/locale"
	"github.com/ajwan-web/ajwan-admin/internal/notify"
)

// Flashes stores one-shot messages between a redirect and the next page.
type Flashes interface {
	Flash(ctx context.Context, message, flashType string)
	PopFlash(ctx context.Context) (message, flashType string)
}

// Renderer handles template rendering with caching.
type Renderer struct {
	templates map[string]*template.Template
	flashes   Flashes
	locales   locale.Locales
	isDev     bool
	now       func() time.Time
}

// Config holds renderer configuration.
type Config struct {
	TemplatesFS fs.FS
	Flashes     Flashes
	Locales     locale.Locales
	IsDev       bool
}

// New creates a new Renderer with parsed templates.
func New(cfg Config) (*Renderer, error) {
	r := &Renderer{
		templates: make(map[string]*template.Template),
		flashes:   cfg.Flashes,
		locales:   cfg.Locales,
		isDev:     cfg.IsDev,
		now:       time.Now,
	}

	if err := r.parseTemplates(cfg.TemplatesFS); err != nil {
		return nil, err
	}

	return r, nil
}

// parseTemplates parses every page of the admin and auth directories with
// its layout and the shared partials.
func (r *Renderer) parseTemplates(templatesFS fs.FS) error {
	partials, err := templateFiles(templatesFS, "partials")
	if err != nil {
		return fmt.Errorf("getting partials: %w", err)
	}

	layouts := map[string][]string{
		"admin": {"layouts/base.html", "layouts/admin.html"},
		"auth":  {"layouts/base.html"},
	}

	for dir, layout := range layouts {
		pages, err := templateFiles(templatesFS, dir)
		if err != nil {
			return fmt.Errorf("getting %s templates: %w", dir, err)
		}

		for _, page := range pages {
			name := dir + "/" + strings.TrimSuffix(path.Base(page), ".html")

			files := append([]string{}, layout...)
			files = append(files, partials...)
			files = append(files, page)

			tmpl, err := template.New("").Funcs(r.templateFuncs()).ParseFS(templatesFS, files...)
			if err != nil {
				return fmt.Errorf("parsing template %s: %w", name, err)
			}
			r.templates[name] = tmpl
		}
	}

	if len(r.templates) == 0 {
		return fmt.Errorf("no templates found")
	}
	return nil
}

// templateFiles returns all .html files in a directory. A missing
// directory yields no files.
func templateFiles(templatesFS fs.FS, dir string) ([]string, error) {
	entries, err := fs.ReadDir(templatesFS, dir)
	if err != nil {
		return nil, nil
	}

	var files []string
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".html") {
			files = append(files, path.Join(dir, entry.Name()))
		}
	}
	return files, nil
}

// Has reports whether a template is known.
func (r *Renderer) Has(name string) bool {
	_, ok := r.templates[name]
	return ok
}

// templateFuncs returns custom template functions.
func (r *Renderer) templateFuncs() template.FuncMap {
	return template.FuncMap{
		"formatDate":     func(t any) string { return formatTime(t, "Jan 2, 2006") },
		"formatDateTime": func(t any) string { return formatTime(t, "Jan 2, 2006 3:04 PM") },
		"truncate":       truncate,
		"add":            func(a, b int) int { return a + b },
		"sub":            func(a, b int) int { return a - b },
		"fileSize":       form.FormatSize,
		"dir":            r.locales.Direction,
		"localeLabel":    r.locales.Label,
		"isSecondary":    r.locales.IsSecondary,
		"notifyClass":    notifyClass,
		"durationMS":     func(d time.Duration) int64 { return d.Milliseconds() },
		"initial": func(s string) string {
			for _, c := range s {
				return strings.ToUpper(string(c))
			}
			return "?"
		},
	}
}

// NavItem is an entry of the sidebar.
type NavItem struct {
	Label  string
	Path   string
	Active bool
}

// TemplateData holds data passed to templates.
type TemplateData struct {
	Title         string
	Data          any
	Flash         string
	FlashType     string
	CurrentYear   int
	Username      string
	CurrentPath   string
	Nav           []NavItem
	Notifications []notify.Notification
	// Lang and Dir describe the content language of the page.
	Lang  string
	Dir   string
	IsDev bool
}

// Render renders a template with status 200.
func (r *Renderer) Render(w http.ResponseWriter, req *http.Request, name string, data TemplateData) error {
	return r.RenderStatus(w, req, http.StatusOK, name, data)
}

// RenderStatus renders a template with the given status code.
func (r *Renderer) RenderStatus(w http.ResponseWriter, req *http.Request, status int, name string, data TemplateData) error {
	tmpl, ok := r.templates[name]
	if !ok {
		return fmt.Errorf("template %s not found", name)
	}

	data.CurrentYear = r.now().Year()
	data.IsDev = r.isDev
	if data.Lang == "" {
		data.Lang = r.locales.Primary()
	}
	if data.Dir == "" {
		data.Dir = r.locales.Direction(data.Lang)
	}

	if r.flashes != nil {
		if flash, flashType := r.flashes.PopFlash(req.Context()); flash != "" {
			data.Flash = flash
			data.FlashType = flashType
		}
	}

	// Render to buffer first to catch errors
	buf := new(bytes.Buffer)
	if err := tmpl.ExecuteTemplate(buf, "base", data); err != nil {
		return fmt.Errorf("executing template %s: %w", name, err)
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
	return nil
}

// SetFlash sets a flash message in the session.
func (r *Renderer) SetFlash(req *http.Request, message, flashType string) {
	if r.flashes != nil {
		r.flashes.Flash(req.Context(), message, flashType)
	}
}

func formatTime(v any, layout string) string {
	switch t := v.(type) {
	case time.Time:
		if t.IsZero() {
			return ""
		}
		return t.Format(layout)
	case *time.Time:
		if t == nil || t.IsZero() {
			return ""
		}
		return t.Format(layout)
	default:
		return ""
	}
}

// truncate shortens s to length runes.
func truncate(s string, length int) string {
	runes := []rune(s)
	if len(runes) <= length {
		return s
	}
	return string(runes[:length]) + "..."
}

func notifyClass(t notify.Type) string {
	switch t {
	case notify.TypeSuccess:
		return "note-success"
	case notify.TypeWarning:
		return "note-warning"
	case notify.TypeError:
		return "note-error"
	default:
		return "note-info"
	}
}
