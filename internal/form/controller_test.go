// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package form

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajwan-web/ajwan-admin/internal/locale"
	"github.com/ajwan-web/ajwan-admin/internal/media"
)

func testSchema() Schema {
	return Schema{
		Localized:   true,
		Publishable: true,
		Fields: []Field{
			{Name: "title", Label: "Title", Kind: KindText, Required: true, Localized: true},
			{Name: "description", Label: "Description", Kind: KindRichText, Required: true, Localized: true},
			{Name: "price", Label: "Price", Kind: KindDecimal},
			{Name: "rating", Label: "Rating", Kind: KindInt, Min: 1, Max: 5},
			{Name: "email", Label: "Email", Kind: KindEmail},
			{Name: "featured", Label: "Featured", Kind: KindBool},
		},
		Media:     &MediaField{Name: "images", Label: "Images", Accept: AcceptImage, Multiple: true},
		Relations: []RelationField{{Name: "services", Label: "Services", Collection: "services", Multiple: true}},
	}
}

func newTestController() *Controller {
	return NewController(testSchema(), Options{Locales: locale.MustNew("en", "ar-SA")})
}

func TestSetField_ClearsError(t *testing.T) {
	c := newTestController()
	c.Open(ModeCreate, "en")

	errs := c.Validate()
	require.Contains(t, errs, "title_en")

	c.SetField("title_en", "Web design")
	assert.NotContains(t, c.Errors(), "title_en")
	assert.Contains(t, c.Errors(), "description_en")
}

func TestValidate_ActiveLanguageOnly(t *testing.T) {
	c := newTestController()
	c.Open(ModeEdit, "en")

	c.SetField("title_en", "Web")
	c.SetField("description_en", "Sites")

	assert.Empty(t, c.Validate(), "arabic fields must not be required while editing english")

	c.Open(ModeEdit, "ar-SA")
	c.SetField("title_en", "Web")
	c.SetField("description_en", "Sites")
	errs := c.Validate()
	assert.Contains(t, errs, "title_ar")
	assert.Contains(t, errs, "description_ar")
	assert.NotContains(t, errs, "title_en")
}

func TestValidate_LinkRequiredForSecondaryCreate(t *testing.T) {
	c := newTestController()
	c.Open(ModeCreate, "ar")

	c.SetField("title_ar", "تصميم")
	c.SetField("description_ar", "مواقع")

	errs := c.Validate()
	require.Len(t, errs, 1)
	assert.Contains(t, errs, KeyLink)

	c.SetLink("doc-1")
	assert.NotContains(t, c.Errors(), KeyLink)
	assert.Empty(t, c.Validate())
}

func TestValidate_Kinds(t *testing.T) {
	c := newTestController()
	c.Open(ModeCreate, "en")
	c.SetField("title_en", "T")
	c.SetField("description_en", "D")
	c.SetField("price", "abc")
	c.SetField("rating", "9")
	c.SetField("email", "not-an-email")

	errs := c.Validate()
	assert.Equal(t, "Price must be a number", errs["price"])
	assert.Equal(t, "Rating must be between 1 and 5", errs["rating"])
	assert.Equal(t, "Email must be a valid email address", errs["email"])

	c.SetField("price", "12.50")
	c.SetField("rating", "4")
	c.SetField("email", "a@example.com")
	assert.Empty(t, c.Validate())
}

func TestAddFiles_SizeLimit(t *testing.T) {
	c := newTestController()
	c.Open(ModeCreate, "en")

	c.AddFiles("images", []File{{Name: "ok.jpg", ContentType: "image/jpeg", Size: 1024}})
	before := c.Draft().Staged

	rejected := c.AddFiles("images", []File{{Name: "huge.jpg", ContentType: "image/jpeg", Size: 11 << 20}})

	require.Len(t, rejected, 1)
	assert.Equal(t, "huge.jpg", rejected[0].Name)
	assert.Equal(t, "huge.jpg is larger than 10 MB", rejected[0].Message)
	assert.Equal(t, before, c.Draft().Staged)
}

func TestAddFiles_TypeCheck(t *testing.T) {
	c := newTestController()
	c.Open(ModeCreate, "en")

	rejected := c.AddFiles("images", []File{
		{Name: "clip.mp4", ContentType: "video/mp4", Size: 10},
		{Name: "doc.pdf", ContentType: "application/pdf", Size: 10},
		{Name: "photo.png", ContentType: "", Size: 10},
	})

	require.Len(t, rejected, 2)
	assert.Equal(t, "clip.mp4 is not an image", rejected[0].Message)
	staged := c.Draft().Staged
	require.Len(t, staged, 1)
	assert.Equal(t, "image/png", staged[0].ContentType)
}

func TestAddFiles_AppendsAndSingleKeepsNewest(t *testing.T) {
	c := newTestController()
	c.Open(ModeCreate, "en")

	c.AddFiles("images", []File{{Name: "a.jpg", ContentType: "image/jpeg", Size: 1}})
	c.AddFiles("images", []File{{Name: "b.jpg", ContentType: "image/jpeg", Size: 1}})
	assert.Len(t, c.Draft().Staged, 2)

	single := NewController(Schema{
		Fields: []Field{{Name: "name", Kind: KindText}},
		Media:  &MediaField{Name: "avatar", Accept: AcceptImage},
	}, Options{Locales: locale.MustNew("", "")})
	single.Open(ModeCreate, "en")
	single.AddFiles("avatar", []File{{Name: "a.jpg", ContentType: "image/jpeg", Size: 1}})
	single.AddFiles("avatar", []File{{Name: "b.jpg", ContentType: "image/jpeg", Size: 1}})

	staged := single.Draft().Staged
	require.Len(t, staged, 1)
	assert.Equal(t, "b.jpg", staged[0].Name)
}

func TestAddFiles_UnknownField(t *testing.T) {
	c := newTestController()
	c.Open(ModeCreate, "en")

	rejected := c.AddFiles("avatar", []File{{Name: "a.jpg", ContentType: "image/jpeg", Size: 1}})
	assert.Len(t, rejected, 1)
	assert.Empty(t, c.Draft().Staged)
}

func TestRemoveExistingMedia_DisjointFromStaged(t *testing.T) {
	c := newTestController()
	c.OpenEdit("en", Seed{
		DocumentID: "doc-1",
		Media: []media.Reference{
			{ID: 1, URL: "https://cms/a.jpg", Name: "a.jpg"},
			{ID: 2, URL: "https://cms/b.jpg", Name: "b.jpg"},
		},
	})
	c.AddFiles("images", []File{{Name: "c.jpg", ContentType: "image/jpeg", Size: 1}})

	assert.True(t, c.RemoveExistingMedia(1))
	assert.False(t, c.RemoveExistingMedia(1))

	d := c.Draft()
	assert.Equal(t, []int64{1}, d.ToDelete)
	assert.Equal(t, []int64{2}, media.IDs(d.Kept))
	require.Len(t, d.Staged, 1)

	assert.True(t, c.RemoveStagedFile(0))
	assert.False(t, c.RemoveStagedFile(0))
	d = c.Draft()
	assert.Equal(t, []int64{1}, d.ToDelete)
	assert.Empty(t, d.Staged)
}

func TestPayload(t *testing.T) {
	c := newTestController()
	published := true
	c.OpenEdit("ar-SA", Seed{DocumentID: "doc-1", Published: &published})

	c.SetField("title_ar", " تصميم ")
	c.SetField("title_en", "ignored")
	c.SetField("description_ar", `<p>نص<script>alert(1)</script></p>`)
	c.SetField("price", "19.90")
	c.SetField("rating", "")
	c.SetField("featured", "on")
	c.SetRelation("services", []int64{3, 4})
	c.SetPublish(false)

	p := c.Payload()

	assert.Equal(t, "تصميم", p["title"])
	assert.Equal(t, "<p>نص</p>", p["description"])
	assert.Equal(t, json.Number("19.9"), p["price"])
	assert.NotContains(t, p, "rating")
	assert.NotContains(t, p, "email")
	assert.Equal(t, true, p["featured"])
	assert.Equal(t, []int64{3, 4}, p["services"])
	assert.Contains(t, p, "publishedAt")
	assert.Nil(t, p["publishedAt"])
}

func TestPayload_PublishUntouched(t *testing.T) {
	c := newTestController()
	c.Open(ModeCreate, "en")
	c.SetField("title_en", "x")

	p := c.Payload()
	assert.NotContains(t, p, "publishedAt")
	assert.NotContains(t, p, "services")
}

func TestPayload_PublishedAtOnlyOnChange(t *testing.T) {
	yes, no := true, false
	tests := []struct {
		name    string
		mode    Mode
		was     *bool
		publish *bool
		want    bool
		wantNil bool
	}{
		{name: "edit keeps published", mode: ModeEdit, was: &yes, publish: &yes},
		{name: "edit keeps draft", mode: ModeEdit, was: &no, publish: &no},
		{name: "edit publishes", mode: ModeEdit, was: &no, publish: &yes, want: true},
		{name: "edit unpublishes", mode: ModeEdit, was: &yes, publish: &no, want: true, wantNil: true},
		{name: "edit unknown state", mode: ModeEdit, publish: &yes, want: true},
		{name: "create publishes", mode: ModeCreate, publish: &yes, want: true},
		{name: "create untouched", mode: ModeCreate},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := Draft{Mode: tt.mode, Language: "en", Publish: tt.publish, WasPublished: tt.was}
			p := PayloadOf(testSchema(), locale.MustNew("en", "ar-SA"), d)

			if !tt.want {
				assert.NotContains(t, p, "publishedAt")
				return
			}
			require.Contains(t, p, "publishedAt")
			if tt.wantNil {
				assert.Nil(t, p["publishedAt"])
			} else {
				assert.NotEmpty(t, p["publishedAt"])
			}
		})
	}
}

func TestSnapshot(t *testing.T) {
	c := newTestController()
	_, _, ok := c.Snapshot()
	assert.False(t, ok)

	c.Open(ModeCreate, "en")
	c.SetField("title_en", "x")

	d, errs, ok := c.Snapshot()
	require.True(t, ok)
	assert.Equal(t, errs, c.Errors())
	assert.Equal(t, "x", d.Values["title_en"])

	c.SetField("title_en", "later")
	assert.Equal(t, "x", d.Values["title_en"])
	assert.Equal(t, "x", PayloadOf(c.Schema(), c.Locales(), d)["title"])
}

func TestCloseDraft_OnlyClosesSameForm(t *testing.T) {
	c := newTestController()
	c.Open(ModeCreate, "en")
	d := c.Draft()

	c.OpenEdit("en", Seed{DocumentID: "doc-2"})
	assert.False(t, c.CloseDraft(d))
	assert.True(t, c.IsOpen())

	assert.True(t, c.CloseDraft(c.Draft()))
	assert.False(t, c.IsOpen())
	assert.False(t, c.CloseDraft(d))
}

func TestDraft_IsCopy(t *testing.T) {
	c := newTestController()
	c.Open(ModeCreate, "en")
	c.SetField("title_en", "x")

	d := c.Draft()
	d.Values["title_en"] = "changed"

	assert.Equal(t, "x", c.Draft().Values["title_en"])
}

func TestFormatSize(t *testing.T) {
	assert.Equal(t, "10 MB", FormatSize(10<<20))
	assert.Equal(t, "1.5 MB", FormatSize(3<<19))
	assert.Equal(t, "2 KB", FormatSize(2048))
	assert.True(t, strings.HasSuffix(FormatSize(12), "bytes"))
}
