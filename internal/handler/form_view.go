// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package handler

import (
	"net/http"
	"slices"
	"strconv"
	"strings"

	"github.com/ajwan-web/ajwan-admin/internal/admin"
	"github.com/ajwan-web/ajwan-admin/internal/form"
	"github.com/ajwan-web/ajwan-admin/internal/imaging"
	"github.com/ajwan-web/ajwan-admin/internal/resource"
)

// FormData holds data for the form template.
type FormData struct {
	Collection    string
	Singular      string
	Heading       string
	Mode          string
	Language      string
	LanguageLabel string
	Dir           string
	Fields        []fieldView
	Media         *mediaView
	Relations     []relationView
	Publishable   bool
	Published     bool
	NeedsLink     bool
	LinkOptions   []optionView
	LinkError     string
	ErrorCount    int
	Locales       []localeOption
	FormPath      string
	ListPath      string
}

type fieldView struct {
	Key      string
	Label    string
	Type     string
	Value    string
	Checked  bool
	Required bool
	Step     string
	Min      string
	Max      string
	Dir      string
	Error    string
}

type mediaView struct {
	Field    string
	Label    string
	Accept   string
	Multiple bool
	MaxSize  string
	Kept     []keptView
	Staged   []stagedView
	Error    string
}

type keptView struct {
	ID      int64
	URL     string
	Name    string
	IsVideo bool
}

type stagedView struct {
	Index       int
	Name        string
	Size        string
	IsImage     bool
	PreviewPath string
}

type relationView struct {
	Name     string
	Label    string
	Multiple bool
	Options  []optionView
	Error    string
}

type optionView struct {
	Value    string
	Label    string
	Selected bool
}

// renderForm renders the open form of res with status.
func (h *CollectionHandler) renderForm(w http.ResponseWriter, r *http.Request, ws *admin.Workspace, res admin.Resource, status int) {
	ctl := res.Form()
	schema := ctl.Schema()
	d := ctl.Draft()
	errs := ctl.Errors()
	suffix := h.Locales.Suffix(d.Language)

	data := FormData{
		Collection:    res.Collection(),
		Singular:      res.Singular(),
		Mode:          d.Mode.String(),
		Language:      d.Language,
		LanguageLabel: h.Locales.Label(d.Language),
		Dir:           h.Locales.Direction(d.Language),
		Publishable:   schema.Publishable,
		Published:     d.Publish != nil && *d.Publish,
		ErrorCount:    len(errs),
		FormPath:      formURL(res),
		ListPath:      listURL(res),
	}

	switch {
	case d.Mode == form.ModeEdit:
		data.Heading = "Edit " + strings.ToLower(res.Singular())
	case schema.Localized && h.Locales.IsSecondary(d.Language):
		data.Heading = "Add " + h.Locales.Label(d.Language) + " translation"
		data.NeedsLink = true
	default:
		data.Heading = "New " + strings.ToLower(res.Singular())
	}
	if d.Mode == form.ModeCreate && schema.Localized {
		data.Locales = h.localeOptions(d.Language)
	}

	for _, f := range schema.Fields {
		key := schema.Key(f, suffix)
		fv := fieldView{
			Key:      key,
			Label:    f.Label,
			Value:    d.Values[key],
			Required: f.Required,
			Dir:      "ltr",
			Error:    errs[key],
		}
		if schema.Localized && f.Localized {
			fv.Dir = data.Dir
			fv.Label = f.Label + " (" + data.LanguageLabel + ")"
		}
		switch f.Kind {
		case form.KindRichText:
			fv.Type = "textarea"
		case form.KindEmail:
			fv.Type = "email"
		case form.KindDecimal:
			fv.Type, fv.Step = "number", "0.01"
		case form.KindInt:
			fv.Type, fv.Step = "number", "1"
			if f.Max > f.Min {
				fv.Min, fv.Max = strconv.Itoa(f.Min), strconv.Itoa(f.Max)
			}
		case form.KindBool:
			fv.Type = "checkbox"
			fv.Checked = form.ParseBool(fv.Value)
		case form.KindDate:
			fv.Type = "date"
		default:
			fv.Type = "text"
		}
		data.Fields = append(data.Fields, fv)
	}

	if mf := schema.Media; mf != nil {
		mv := &mediaView{
			Field:    mf.Name,
			Label:    mf.Label,
			Accept:   mf.Accept.String(),
			Multiple: mf.Multiple,
			MaxSize:  form.FormatSize(ctl.MaxFileSize()),
			Error:    errs[mf.Name],
		}
		for _, ref := range d.Kept {
			mv.Kept = append(mv.Kept, keptView{ID: ref.ID, URL: ref.URL, Name: ref.Name, IsVideo: admin.IsVideo(ref.Name)})
		}
		for i, f := range d.Staged {
			mv.Staged = append(mv.Staged, stagedView{
				Index:       i,
				Name:        f.Name,
				Size:        form.FormatSize(f.Size),
				IsImage:     strings.HasPrefix(imaging.DetectMimeType(f.Data), "image/"),
				PreviewPath: formURL(res) + "/staged/" + strconv.Itoa(i),
			})
		}
		data.Media = mv
	}

	for _, rel := range schema.Relations {
		rv := relationView{Name: rel.Name, Label: rel.Label, Multiple: rel.Multiple, Error: errs[rel.Name]}
		choices, err := ws.RelationChoices(r.Context(), rel, d.Language)
		if err != nil {
			if redirectIfExpired(w, r, h.Renderer, err) {
				return
			}
			rv.Error = "Options could not be loaded: " + resource.UserMessage(err)
		}
		selected := d.Relations[rel.Name]
		for _, c := range choices {
			rv.Options = append(rv.Options, optionView{
				Value:    strconv.FormatInt(c.ID, 10),
				Label:    c.Label,
				Selected: slices.Contains(selected, c.ID),
			})
		}
		data.Relations = append(data.Relations, rv)
	}

	if data.NeedsLink {
		data.LinkError = errs[form.KeyLink]
		for _, c := range res.LinkOptions() {
			data.LinkOptions = append(data.LinkOptions, optionView{
				Value:    c.DocumentID,
				Label:    c.Label,
				Selected: c.DocumentID == d.LinkDocumentID,
			})
		}
	}

	td := h.page(r, ws, data.Heading, data)
	td.Lang = d.Language
	renderPage(w, r, h.Renderer, status, "admin/form", td)
}
