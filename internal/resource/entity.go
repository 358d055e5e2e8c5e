// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package resource

import (
	"strconv"
	"time"

	"github.com/ajwan-web/ajwan-admin/internal/media"
)

// Status is the publication state of an entry.
type Status string

// Publication states.
const (
	StatusDraft     Status = "draft"
	StatusPublished Status = "published"
)

// Meta holds the fields every CMS entry carries.
type Meta struct {
	ID          int64
	DocumentID  string
	Locale      string
	Status      Status
	PublishedAt *time.Time
	CreatedAt   *time.Time
	UpdatedAt   *time.Time
}

// EntityMeta returns m. Embedding Meta satisfies that part of Entity.
func (m Meta) EntityMeta() Meta {
	return m
}

// Published reports whether the entry is published.
func (m Meta) Published() bool {
	return m.Status == StatusPublished
}

// Key returns the identifier used in item URLs: the documentId, or the
// numeric id when byID is set or no documentId exists.
func (m Meta) Key(byID bool) string {
	if byID || m.DocumentID == "" {
		return strconv.FormatInt(m.ID, 10)
	}
	return m.DocumentID
}

// Entity is a decoded CMS entry.
type Entity interface {
	EntityMeta() Meta
	// Label is the display name used in lists and prompts.
	Label() string
	// SearchText lists the values matched by Filter.
	SearchText() []string
	// DraftValues returns form values keyed by unsuffixed field name.
	DraftValues() map[string]string
	// DraftRelations returns selected relation ids keyed by relation name.
	DraftRelations() map[string][]int64
	// EntityMedia returns the existing media of the entry.
	EntityMedia() []media.Reference
}

// Relation is a related entry as embedded in a populated response.
type Relation struct {
	ID         int64
	DocumentID string
	Label      string
}

// RelationIDs returns the ids of rels in order.
func RelationIDs(rels []Relation) []int64 {
	ids := make([]int64, 0, len(rels))
	for _, r := range rels {
		ids = append(ids, r.ID)
	}
	return ids
}

// RelationLabels returns the labels of rels in order.
func RelationLabels(rels []Relation) []string {
	out := make([]string, 0, len(rels))
	for _, r := range rels {
		out = append(out, r.Label)
	}
	return out
}

// Choice is an option of a relation or link picker.
type Choice struct {
	ID         int64
	DocumentID string
	Label      string
}
