// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package content

import (
	"github.com/ajwan-web/ajwan-admin/internal/form"
	"github.com/ajwan-web/ajwan-admin/internal/media"
	"github.com/ajwan-web/ajwan-admin/internal/resource"
)

// Service is an offered service.
type Service struct {
	resource.Meta
	Title        string
	Description  string
	Slug         string
	Image        *media.Reference
	ServiceItems []resource.Relation
}

func (s Service) Label() string { return s.Title }

func (s Service) SearchText() []string {
	return append([]string{s.Title, s.Description}, resource.RelationLabels(s.ServiceItems)...)
}

func (s Service) DraftValues() map[string]string {
	return map[string]string{"title": s.Title, "description": s.Description, "slug": s.Slug}
}

func (s Service) DraftRelations() map[string][]int64 {
	return relationMap("service_items", s.ServiceItems)
}

func (s Service) EntityMedia() []media.Reference { return refs(s.Image) }

// DecodeService decodes a services entry.
func DecodeService(it resource.Item) (Service, error) {
	return Service{
		Meta:         it.Meta(),
		Title:        it.String("title"),
		Description:  it.String("description"),
		Slug:         it.String("slug"),
		Image:        it.MediaOne("image"),
		ServiceItems: it.Relations("service_items"),
	}, nil
}

// ServiceDefinition describes the services collection.
func ServiceDefinition() resource.Definition[Service] {
	return resource.Definition[Service]{
		Name:       "Services",
		Singular:   "Service",
		Collection: CollectionServices,
		Decode:     DecodeService,
		BeforeSave: slugFrom("title"),
		Schema: form.Schema{
			Localized:   true,
			Publishable: true,
			Fields: []form.Field{
				{Name: "title", Label: "Title", Kind: form.KindText, Required: true, Localized: true},
				{Name: "description", Label: "Description", Kind: form.KindRichText, Required: true, Localized: true},
				{Name: "slug", Label: "Slug", Kind: form.KindText},
			},
			Media: &form.MediaField{Name: "image", Label: "Image", Accept: form.AcceptImage},
			Relations: []form.RelationField{
				{Name: "service_items", Label: "Service items", Collection: CollectionServiceItems, Multiple: true},
			},
		},
	}
}

// ServiceItem is a line item belonging to a service.
type ServiceItem struct {
	resource.Meta
	Title       string
	Description string
	Image       *media.Reference
	Service     *resource.Relation
}

func (s ServiceItem) Label() string { return s.Title }

func (s ServiceItem) SearchText() []string {
	out := []string{s.Title, s.Description}
	if s.Service != nil {
		out = append(out, s.Service.Label)
	}
	return out
}

func (s ServiceItem) DraftValues() map[string]string {
	return map[string]string{"title": s.Title, "description": s.Description}
}

func (s ServiceItem) DraftRelations() map[string][]int64 {
	if s.Service == nil {
		return map[string][]int64{"service": {}}
	}
	return map[string][]int64{"service": {s.Service.ID}}
}

func (s ServiceItem) EntityMedia() []media.Reference { return refs(s.Image) }

// DecodeServiceItem decodes a service-items entry.
func DecodeServiceItem(it resource.Item) (ServiceItem, error) {
	item := ServiceItem{
		Meta:        it.Meta(),
		Title:       it.String("title"),
		Description: it.String("description"),
		Image:       it.MediaOne("image"),
	}
	if rels := it.Relations("service"); len(rels) > 0 {
		item.Service = &rels[0]
	}
	return item, nil
}

// ServiceItemDefinition describes the service-items collection.
func ServiceItemDefinition() resource.Definition[ServiceItem] {
	return resource.Definition[ServiceItem]{
		Name:       "Service items",
		Singular:   "Service item",
		Collection: CollectionServiceItems,
		Decode:     DecodeServiceItem,
		Schema: form.Schema{
			Localized:   true,
			Publishable: true,
			Fields: []form.Field{
				{Name: "title", Label: "Title", Kind: form.KindText, Required: true, Localized: true},
				{Name: "description", Label: "Description", Kind: form.KindRichText, Localized: true},
			},
			Media: &form.MediaField{Name: "image", Label: "Image", Accept: form.AcceptImage},
			Relations: []form.RelationField{
				{Name: "service", Label: "Service", Collection: CollectionServices},
			},
		},
	}
}
