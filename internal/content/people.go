// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package content

import (
	"strconv"

	"github.com/ajwan-web/ajwan-admin/internal/form"
	"github.com/ajwan-web/ajwan-admin/internal/media"
	"github.com/ajwan-web/ajwan-admin/internal/resource"
)

// Testimonial is a customer quote.
type Testimonial struct {
	resource.Meta
	Name     string
	Message  string
	Position string
	Rating   int64
	Avatar   *media.Reference
}

func (t Testimonial) Label() string { return t.Name }

func (t Testimonial) SearchText() []string { return []string{t.Name, t.Message, t.Position} }

func (t Testimonial) DraftValues() map[string]string {
	values := map[string]string{"name": t.Name, "message": t.Message, "position": t.Position}
	if t.Rating > 0 {
		values["rating"] = strconv.FormatInt(t.Rating, 10)
	}
	return values
}

func (t Testimonial) DraftRelations() map[string][]int64 { return map[string][]int64{} }

func (t Testimonial) EntityMedia() []media.Reference { return refs(t.Avatar) }

// DecodeTestimonial decodes a testimonials entry.
func DecodeTestimonial(it resource.Item) (Testimonial, error) {
	return Testimonial{
		Meta:     it.Meta(),
		Name:     it.String("name"),
		Message:  it.String("message"),
		Position: it.String("position"),
		Rating:   it.Int("rating"),
		Avatar:   it.MediaOne("avatar"),
	}, nil
}

// TestimonialDefinition describes the testimonials collection.
func TestimonialDefinition() resource.Definition[Testimonial] {
	return resource.Definition[Testimonial]{
		Name:       "Testimonials",
		Singular:   "Testimonial",
		Collection: CollectionTestimonials,
		Decode:     DecodeTestimonial,
		Schema: form.Schema{
			Localized:   true,
			Publishable: true,
			Fields: []form.Field{
				{Name: "name", Label: "Name", Kind: form.KindText, Required: true, Localized: true},
				{Name: "message", Label: "Message", Kind: form.KindRichText, Required: true, Localized: true},
				{Name: "position", Label: "Position", Kind: form.KindText, Localized: true},
				{Name: "rating", Label: "Rating", Kind: form.KindInt, Min: 1, Max: 5},
			},
			Media: &form.MediaField{Name: "avatar", Label: "Avatar", Accept: form.AcceptImage},
		},
	}
}

// User is a CMS user account. Users are not localized and are addressed by
// numeric id.
type User struct {
	resource.Meta
	Username  string
	Email     string
	Blocked   bool
	Confirmed bool
	Role      string
}

func (u User) Label() string { return u.Username }

func (u User) SearchText() []string { return []string{u.Username, u.Email, u.Role} }

func (u User) DraftValues() map[string]string {
	return map[string]string{
		"username":  u.Username,
		"email":     u.Email,
		"blocked":   formatBool(u.Blocked),
		"confirmed": formatBool(u.Confirmed),
	}
}

func (u User) DraftRelations() map[string][]int64 { return map[string][]int64{} }

func (u User) EntityMedia() []media.Reference { return []media.Reference{} }

// DecodeUser decodes a users entry.
func DecodeUser(it resource.Item) (User, error) {
	u := User{
		Meta:      it.Meta(),
		Username:  it.String("username"),
		Email:     it.String("email"),
		Blocked:   it.Bool("blocked"),
		Confirmed: it.Bool("confirmed"),
	}
	if rels := it.Relations("role"); len(rels) > 0 {
		u.Role = rels[0].Label
	}
	return u, nil
}

// UserDefinition describes the users collection.
func UserDefinition() resource.Definition[User] {
	return resource.Definition[User]{
		Name:       "Users",
		Singular:   "User",
		Collection: CollectionUsers,
		Decode:     DecodeUser,
		RawBody:    true,
		KeyByID:    true,
		Schema: form.Schema{
			Fields: []form.Field{
				{Name: "username", Label: "Username", Kind: form.KindText, Required: true},
				{Name: "email", Label: "Email", Kind: form.KindEmail, Required: true},
				{Name: "blocked", Label: "Blocked", Kind: form.KindBool},
				{Name: "confirmed", Label: "Confirmed", Kind: form.KindBool},
			},
		},
	}
}

// Message is a contact form submission.
type Message struct {
	resource.Meta
	Name    string
	Email   string
	Subject string
	Body    string
	Read    bool
}

func (m Message) Label() string {
	if m.Subject != "" {
		return m.Subject
	}
	return m.Name
}

func (m Message) SearchText() []string { return []string{m.Name, m.Email, m.Subject, m.Body} }

func (m Message) DraftValues() map[string]string {
	return map[string]string{
		"name":    m.Name,
		"email":   m.Email,
		"subject": m.Subject,
		"message": m.Body,
		"read":    formatBool(m.Read),
	}
}

func (m Message) DraftRelations() map[string][]int64 { return map[string][]int64{} }

func (m Message) EntityMedia() []media.Reference { return []media.Reference{} }

// DecodeMessage decodes a messages entry.
func DecodeMessage(it resource.Item) (Message, error) {
	return Message{
		Meta:    it.Meta(),
		Name:    it.String("name"),
		Email:   it.String("email"),
		Subject: it.String("subject"),
		Body:    it.String("message"),
		Read:    it.Bool("read"),
	}, nil
}

// MessageDefinition describes the messages collection. Messages arrive
// from the public site, so the dashboard only reads, flags and deletes them.
func MessageDefinition() resource.Definition[Message] {
	return resource.Definition[Message]{
		Name:       "Messages",
		Singular:   "Message",
		Collection: CollectionMessages,
		Decode:     DecodeMessage,
		NoCreate:   true,
		Schema: form.Schema{
			Fields: []form.Field{
				{Name: "name", Label: "Name", Kind: form.KindText, Required: true},
				{Name: "email", Label: "Email", Kind: form.KindEmail, Required: true},
				{Name: "subject", Label: "Subject", Kind: form.KindText},
				{Name: "message", Label: "Message", Kind: form.KindText, Required: true},
				{Name: "read", Label: "Read", Kind: form.KindBool},
			},
		},
	}
}
