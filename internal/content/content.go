// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package content defines the collections managed by the dashboard: their
// entry types, how entries decode from the CMS and their form schemas.
package content

import (
	"strconv"
	"strings"

	"github.com/ajwan-web/ajwan-admin/internal/form"
	"github.com/ajwan-web/ajwan-admin/internal/media"
	"github.com/ajwan-web/ajwan-admin/internal/resource"
	"github.com/ajwan-web/ajwan-admin/internal/util"
)

// Collection paths.
const (
	CollectionServices     = "services"
	CollectionServiceItems = "service-items"
	CollectionProducts     = "products"
	CollectionProjects     = "projects"
	CollectionTestimonials = "testimonials"
	CollectionUsers        = "users"
	CollectionMessages     = "messages"
)

func refs(r *media.Reference) []media.Reference {
	if r == nil {
		return []media.Reference{}
	}
	return []media.Reference{*r}
}

func relationMap(name string, rels []resource.Relation) map[string][]int64 {
	return map[string][]int64{name: resource.RelationIDs(rels)}
}

// slugFrom derives an empty slug from the title field of the payload.
func slugFrom(titleField string) func(form.Draft, map[string]any) {
	return func(_ form.Draft, payload map[string]any) {
		slug, _ := payload["slug"].(string)
		if strings.TrimSpace(slug) != "" {
			payload["slug"] = util.Slugify(slug)
			return
		}
		title, _ := payload[titleField].(string)
		if s := util.Slugify(title); s != "" {
			payload["slug"] = s
		} else if _, ok := payload["slug"]; ok {
			delete(payload, "slug")
		}
	}
}

func formatBool(b bool) string {
	return strconv.FormatBool(b)
}
