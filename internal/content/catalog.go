// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package content

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/ajwan-web/ajwan-admin/internal/form"
	"github.com/ajwan-web/ajwan-admin/internal/media"
	"github.com/ajwan-web/ajwan-admin/internal/resource"
)

// Product is a catalog product.
type Product struct {
	resource.Meta
	Name        string
	Description string
	Price       decimal.NullDecimal
	Featured    bool
	Images      []media.Reference
}

func (p Product) Label() string { return p.Name }

func (p Product) SearchText() []string { return []string{p.Name, p.Description} }

// PriceText formats the price with two decimals, or "" when unset.
func (p Product) PriceText() string {
	if !p.Price.Valid {
		return ""
	}
	return p.Price.Decimal.StringFixed(2)
}

func (p Product) DraftValues() map[string]string {
	values := map[string]string{
		"name":        p.Name,
		"description": p.Description,
		"featured":    formatBool(p.Featured),
	}
	if p.Price.Valid {
		values["price"] = p.Price.Decimal.String()
	}
	return values
}

func (p Product) DraftRelations() map[string][]int64 { return map[string][]int64{} }

func (p Product) EntityMedia() []media.Reference { return p.Images }

// DecodeProduct decodes a products entry.
func DecodeProduct(it resource.Item) (Product, error) {
	p := Product{
		Meta:        it.Meta(),
		Name:        it.String("name"),
		Description: it.String("description"),
		Featured:    it.Bool("featured"),
		Images:      it.Media("images"),
	}
	if d, ok := it.Decimal("price"); ok {
		p.Price = decimal.NullDecimal{Decimal: d, Valid: true}
	}
	return p, nil
}

// ProductDefinition describes the products collection.
func ProductDefinition() resource.Definition[Product] {
	return resource.Definition[Product]{
		Name:       "Products",
		Singular:   "Product",
		Collection: CollectionProducts,
		Decode:     DecodeProduct,
		Schema: form.Schema{
			Localized:   true,
			Publishable: true,
			Fields: []form.Field{
				{Name: "name", Label: "Name", Kind: form.KindText, Required: true, Localized: true},
				{Name: "description", Label: "Description", Kind: form.KindRichText, Localized: true},
				{Name: "price", Label: "Price", Kind: form.KindDecimal},
				{Name: "featured", Label: "Featured", Kind: form.KindBool},
			},
			Media: &form.MediaField{Name: "images", Label: "Images", Accept: form.AcceptImage, Multiple: true},
		},
	}
}

// Project is a portfolio project.
type Project struct {
	resource.Meta
	Title          string
	Description    string
	Client         string
	Slug           string
	CompletionDate *time.Time
	Images         []media.Reference
	Services       []resource.Relation
}

func (p Project) Label() string { return p.Title }

func (p Project) SearchText() []string {
	return append([]string{p.Title, p.Description, p.Client}, resource.RelationLabels(p.Services)...)
}

func (p Project) DraftValues() map[string]string {
	values := map[string]string{
		"title":       p.Title,
		"description": p.Description,
		"client":      p.Client,
		"slug":        p.Slug,
	}
	if p.CompletionDate != nil {
		values["completion_date"] = p.CompletionDate.Format(form.DateLayout)
	}
	return values
}

func (p Project) DraftRelations() map[string][]int64 {
	return relationMap("services", p.Services)
}

func (p Project) EntityMedia() []media.Reference { return p.Images }

// DecodeProject decodes a projects entry.
func DecodeProject(it resource.Item) (Project, error) {
	return Project{
		Meta:           it.Meta(),
		Title:          it.String("title"),
		Description:    it.String("description"),
		Client:         it.String("client"),
		Slug:           it.String("slug"),
		CompletionDate: it.Time("completion_date"),
		Images:         it.Media("images"),
		Services:       it.Relations("services"),
	}, nil
}

// ProjectDefinition describes the projects collection.
func ProjectDefinition() resource.Definition[Project] {
	return resource.Definition[Project]{
		Name:       "Projects",
		Singular:   "Project",
		Collection: CollectionProjects,
		Decode:     DecodeProject,
		BeforeSave: slugFrom("title"),
		Schema: form.Schema{
			Localized:   true,
			Publishable: true,
			Fields: []form.Field{
				{Name: "title", Label: "Title", Kind: form.KindText, Required: true, Localized: true},
				{Name: "description", Label: "Description", Kind: form.KindRichText, Required: true, Localized: true},
				{Name: "client", Label: "Client", Kind: form.KindText, Localized: true},
				{Name: "slug", Label: "Slug", Kind: form.KindText},
				{Name: "completion_date", Label: "Completion date", Kind: form.KindDate},
			},
			Media: &form.MediaField{Name: "images", Label: "Images and videos", Accept: form.AcceptImageVideo, Multiple: true},
			Relations: []form.RelationField{
				{Name: "services", Label: "Services", Collection: CollectionServices, Multiple: true},
			},
		},
	}
}
