// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package handler

import (
	"bytes"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"io"
	"io/fs"
	"mime/multipart"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajwan-web/ajwan-admin/internal/admin"
	"github.com/ajwan-web/ajwan-admin/internal/cache"
	"github.com/ajwan-web/ajwan-admin/internal/cms"
	"github.com/ajwan-web/ajwan-admin/internal/locale"
	"github.com/ajwan-web/ajwan-admin/internal/media"
	"github.com/ajwan-web/ajwan-admin/internal/middleware"
	"github.com/ajwan-web/ajwan-admin/internal/render"
	"github.com/ajwan-web/ajwan-admin/internal/resource"
	"github.com/ajwan-web/ajwan-admin/internal/session"
	"github.com/ajwan-web/ajwan-admin/internal/store"
	"github.com/ajwan-web/ajwan-admin/internal/testutil"
	"github.com/ajwan-web/ajwan-admin/web"
)

const adminRoleID = 3

type testEnv struct {
	fake     *testutil.FakeCMS
	registry *admin.Registry
	server   *httptest.Server
	client   *http.Client
}

type response struct {
	status   int
	location string
	header   http.Header
	body     string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	fake := testutil.NewFakeCMS(t)
	fake.AddAccount("admin", "secret", "admin-token", adminRoleID)
	fake.AddAccount("editor", "secret", "editor-token", 1)

	db := testutil.TestDB(t)
	sm := session.New(db, true)
	sessions := session.NewStore(sm)
	locales := locale.MustNew("en", "ar-SA")
	logger := testutil.TestLoggerSilent()

	client := cms.New(cms.Config{BaseURL: fake.URL(), Logger: logger}, sessions)
	registry := admin.NewRegistry(admin.Config{
		Deps: resource.Deps{
			API:        client,
			Activity:   store.NewActivityLog(db, sessions.Username),
			Locales:    locales,
			Normalizer: media.NewNormalizer(fake.URL()),
			Logger:     logger,
		},
		Logger: logger,
	})
	registry.WatchExpiry(sessions)

	templatesFS, err := fs.Sub(web.Templates, "templates")
	require.NoError(t, err)
	renderer, err := render.New(render.Config{
		TemplatesFS: templatesFS,
		Flashes:     sessions,
		Locales:     locales,
		IsDev:       true,
	})
	require.NoError(t, err)

	roles := cache.NewRoleCache(cache.NewSimpleMemoryCache(time.Minute), time.Minute)
	base := Base{Renderer: renderer, Sessions: sessions, Registry: registry, Locales: locales}

	h := Handlers{
		Auth: NewAuthHandler(AuthConfig{
			Auth:            client,
			Renderer:        renderer,
			Sessions:        sessions,
			Users:           roles,
			Registry:        registry,
			LoginProtection: middleware.NewLoginProtection(middleware.DefaultLoginProtectionConfig()),
			AdminRoleID:     adminRoleID,
		}),
		Dashboard:     NewDashboardHandler(base, store.New(db), nil),
		Collections:   NewCollectionHandler(base, nil),
		Notifications: NewNotificationsHandler(base),
		Health:        NewHealthHandler(db, nil, registry.Len),
	}

	r := chi.NewRouter()
	r.Use(sm.LoadAndSave)
	h.RegisterRoutes(r, middleware.RequireAdmin(middleware.GateConfig{
		Sessions:    sessions,
		Users:       roles,
		Me:          client.Me,
		AdminRoleID: adminRoleID,
	}), nil)

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	jar, err := cookiejar.New(nil)
	require.NoError(t, err)

	return &testEnv{
		fake:     fake,
		registry: registry,
		server:   srv,
		client: &http.Client{
			Jar: jar,
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
	}
}

func (e *testEnv) do(t *testing.T, req *http.Request) response {
	t.Helper()
	resp, err := e.client.Do(req)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return response{
		status:   resp.StatusCode,
		location: resp.Header.Get("Location"),
		header:   resp.Header,
		body:     string(body),
	}
}

func (e *testEnv) get(t *testing.T, path string) response {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, e.server.URL+path, nil)
	require.NoError(t, err)
	return e.do(t, req)
}

func (e *testEnv) post(t *testing.T, path string, form url.Values) response {
	t.Helper()
	req, err := http.NewRequest(http.MethodPost, e.server.URL+path, strings.NewReader(form.Encode()))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return e.do(t, req)
}

func (e *testEnv) postFile(t *testing.T, path, field, name string, data []byte) response {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile(field, name)
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)
	require.NoError(t, mw.WriteField("action", "apply"))
	require.NoError(t, mw.Close())

	req, err := http.NewRequest(http.MethodPost, e.server.URL+path, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return e.do(t, req)
}

func (e *testEnv) login(t *testing.T, identifier string) response {
	t.Helper()
	return e.post(t, RouteLogin, url.Values{"identifier": {identifier}, "password": {"secret"}})
}

func pngBytes(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 8, 8))
	img.Set(1, 1, color.RGBA{R: 255, A: 255})
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestAdmin_RequiresLogin(t *testing.T) {
	env := newTestEnv(t)

	resp := env.get(t, "/admin")
	assert.Equal(t, http.StatusSeeOther, resp.status)
	assert.Equal(t, RouteLogin, resp.location)

	page := env.get(t, RouteLogin)
	assert.Equal(t, http.StatusOK, page.status)
	assert.Contains(t, page.body, middleware.FlashSignIn)
	assert.Contains(t, page.body, `name="identifier"`)
}

func TestLogin_Success(t *testing.T) {
	env := newTestEnv(t)

	resp := env.login(t, "admin")
	require.Equal(t, http.StatusSeeOther, resp.status)
	assert.Equal(t, RouteAdmin, resp.location)

	dash := env.get(t, "/admin")
	require.Equal(t, http.StatusOK, dash.status)
	assert.Contains(t, dash.body, "Welcome back, admin.")
	assert.Contains(t, dash.body, "Services")
	assert.Contains(t, dash.body, "Testimonials")
	assert.Equal(t, "no-store", dash.header.Get("Cache-Control"))

	// A signed in browser skips the login form.
	again := env.get(t, RouteLogin)
	assert.Equal(t, http.StatusSeeOther, again.status)
	assert.Equal(t, RouteAdmin, again.location)
}

func TestLogin_InvalidCredentials(t *testing.T) {
	env := newTestEnv(t)

	resp := env.post(t, RouteLogin, url.Values{"identifier": {"admin"}, "password": {"wrong"}})
	assert.Equal(t, http.StatusSeeOther, resp.status)
	assert.Equal(t, RouteLogin, resp.location)

	page := env.get(t, RouteLogin)
	assert.Contains(t, page.body, "Invalid email, username or password.")
}

func TestLogin_MissingFields(t *testing.T) {
	env := newTestEnv(t)

	env.post(t, RouteLogin, url.Values{"identifier": {"admin"}})
	page := env.get(t, RouteLogin)
	assert.Contains(t, page.body, "password are required")
	assert.Empty(t, env.fake.RequestsTo(http.MethodPost, "/auth/local"))
}

func TestLogin_WithoutAdminRole(t *testing.T) {
	env := newTestEnv(t)

	resp := env.login(t, "editor")
	assert.Equal(t, http.StatusSeeOther, resp.status)
	assert.Equal(t, RouteLogin, resp.location)

	page := env.get(t, RouteLogin)
	assert.Contains(t, page.body, middleware.FlashNoAccess)

	denied := env.get(t, "/admin")
	assert.Equal(t, http.StatusSeeOther, denied.status)
	assert.Equal(t, RouteLogin, denied.location)
}

func TestLogout(t *testing.T) {
	env := newTestEnv(t)
	env.login(t, "admin")
	env.get(t, "/admin")
	require.Equal(t, 1, env.registry.Len())

	resp := env.post(t, RouteLogout, nil)
	assert.Equal(t, http.StatusSeeOther, resp.status)
	assert.Equal(t, RouteLogin, resp.location)
	assert.Equal(t, 0, env.registry.Len())

	page := env.get(t, RouteLogin)
	assert.Contains(t, page.body, "You have been signed out.")

	after := env.get(t, "/admin")
	assert.Equal(t, http.StatusSeeOther, after.status)
}

func TestCollection_ListAndFilter(t *testing.T) {
	env := newTestEnv(t)
	env.fake.Add("services", "en", map[string]any{"title": "Web design", "description": "Sites"})
	env.fake.Add("services", "en", map[string]any{"title": "Branding", "description": "Logos"})
	env.fake.Add("services", "ar-SA", map[string]any{"title": "تصميم", "description": "مواقع"})
	env.login(t, "admin")

	all := env.get(t, "/admin/services")
	require.Equal(t, http.StatusOK, all.status)
	assert.Contains(t, all.body, "Web design")
	assert.Contains(t, all.body, "Branding")
	assert.NotContains(t, all.body, "تصميم")

	filtered := env.get(t, "/admin/services?q=web")
	assert.Contains(t, filtered.body, "Web design")
	assert.NotContains(t, filtered.body, "Branding")
	assert.Contains(t, filtered.body, "1 of 2")

	arabic := env.get(t, "/admin/services?locale=ar")
	assert.Contains(t, arabic.body, "تصميم")
	assert.Contains(t, arabic.body, `dir="rtl"`)
	assert.NotContains(t, arabic.body, "Web design")
}

func TestCollection_Unknown(t *testing.T) {
	env := newTestEnv(t)
	env.login(t, "admin")

	resp := env.get(t, "/admin/nope")
	assert.Equal(t, http.StatusNotFound, resp.status)
}

func TestCollection_CreateFlow(t *testing.T) {
	env := newTestEnv(t)
	env.login(t, "admin")

	form := env.get(t, "/admin/services/new?locale=en")
	require.Equal(t, http.StatusOK, form.status)
	assert.Contains(t, form.body, "New service")
	assert.Contains(t, form.body, `name="title_en"`)

	resp := env.post(t, "/admin/services/form", url.Values{
		"title_en":       {"Consulting"},
		"description_en": {"Advice"},
		"publish":        {"false", "true"},
		"action":         {"save"},
	})
	require.Equal(t, http.StatusSeeOther, resp.status)
	assert.Equal(t, "/admin/services?locale=en", resp.location)

	entries := env.fake.Entries("services")
	require.Len(t, entries, 1)
	assert.Equal(t, "Consulting", entries[0]["title"])

	list := env.get(t, resp.location)
	assert.Contains(t, list.body, "Consulting")
	assert.Contains(t, list.body, "Service created")

	activity := env.get(t, "/admin/activity?category=content")
	assert.Equal(t, http.StatusOK, activity.status)
	assert.Contains(t, activity.body, "Consulting")
}

func TestCollection_SaveShowsFieldErrors(t *testing.T) {
	env := newTestEnv(t)
	env.login(t, "admin")
	env.get(t, "/admin/services/new")

	resp := env.post(t, "/admin/services/form", url.Values{
		"title_en": {""},
		"action":   {"save"},
	})
	assert.Equal(t, http.StatusUnprocessableEntity, resp.status)
	assert.Contains(t, resp.body, "Please correct the highlighted fields.")
	assert.Contains(t, resp.body, "has-error")
	assert.Empty(t, env.fake.RequestsTo(http.MethodPost, "/services"))
}

func TestCollection_SecondaryCreateNeedsLink(t *testing.T) {
	env := newTestEnv(t)
	env.fake.Add("services", "en", map[string]any{"documentId": "svc1", "title": "Web design", "description": "Sites"})
	env.login(t, "admin")

	form := env.get(t, "/admin/services/new?locale=ar-SA")
	require.Equal(t, http.StatusOK, form.status)
	assert.Contains(t, form.body, "translation")
	assert.Contains(t, form.body, `value="svc1"`)
	assert.Contains(t, form.body, `name="title_ar"`)

	resp := env.post(t, "/admin/services/form", url.Values{
		"title_ar":         {"تصميم"},
		"description_ar":   {"مواقع"},
		"link_document_id": {"svc1"},
		"action":           {"save"},
	})
	require.Equal(t, http.StatusSeeOther, resp.status)

	var arabic int
	for _, e := range env.fake.Entries("services") {
		if e["locale"] == "ar-SA" {
			arabic++
			assert.Equal(t, "svc1", e["documentId"])
		}
	}
	assert.Equal(t, 1, arabic)
}

func TestCollection_EditFlow(t *testing.T) {
	env := newTestEnv(t)
	entry := env.fake.Add("services", "en", map[string]any{"title": "Old title", "description": "Text"})
	env.login(t, "admin")

	key := entry["documentId"].(string)
	form := env.get(t, "/admin/services/"+key)
	require.Equal(t, http.StatusOK, form.status)
	assert.Contains(t, form.body, "Edit service")
	assert.Contains(t, form.body, `value="Old title"`)

	resp := env.post(t, "/admin/services/form", url.Values{"title_en": {"New title"}, "action": {"save"}})
	require.Equal(t, http.StatusSeeOther, resp.status)
	assert.Equal(t, "New title", env.fake.Entries("services")[0]["title"])

	missing := env.get(t, "/admin/services/unknown")
	assert.Equal(t, http.StatusSeeOther, missing.status)
}

func TestCollection_StagedFilesAndPreview(t *testing.T) {
	env := newTestEnv(t)
	env.login(t, "admin")
	env.get(t, "/admin/services/new")

	resp := env.postFile(t, "/admin/services/form", "files", "photo.png", pngBytes(t))
	require.Equal(t, http.StatusSeeOther, resp.status)
	assert.Equal(t, "/admin/services/form", resp.location)

	form := env.get(t, "/admin/services/form")
	assert.Contains(t, form.body, "photo.png")
	assert.Contains(t, form.body, "/admin/services/form/staged/0")

	preview := env.get(t, "/admin/services/form/staged/0")
	assert.Equal(t, http.StatusOK, preview.status)
	assert.Equal(t, "image/png", preview.header.Get("Content-Type"))

	assert.Equal(t, http.StatusNotFound, env.get(t, "/admin/services/form/staged/5").status)

	// Text files are rejected with a notification.
	env.postFile(t, "/admin/services/form", "files", "notes.txt", []byte("plain text"))
	form = env.get(t, "/admin/services/form")
	assert.Contains(t, form.body, "File not added")

	env.post(t, "/admin/services/form", url.Values{"remove_staged": {"0"}, "action": {"apply"}})
	assert.Equal(t, http.StatusNotFound, env.get(t, "/admin/services/form/staged/0").status)
}

func TestCollection_CancelClosesForm(t *testing.T) {
	env := newTestEnv(t)
	env.login(t, "admin")
	env.get(t, "/admin/services/new")

	resp := env.post(t, "/admin/services/form", url.Values{"action": {"cancel"}})
	assert.Equal(t, http.StatusSeeOther, resp.status)

	form := env.get(t, "/admin/services/form")
	assert.Equal(t, http.StatusSeeOther, form.status)
}

func TestCollection_DeleteNeedsConfirmation(t *testing.T) {
	env := newTestEnv(t)
	entry := env.fake.Add("services", "en", map[string]any{"title": "Old", "description": "Text"})
	key := entry["documentId"].(string)
	env.login(t, "admin")

	confirm := env.get(t, "/admin/services/"+key+"/delete")
	require.Equal(t, http.StatusOK, confirm.status)
	assert.Contains(t, confirm.body, "This cannot be undone.")
	assert.Contains(t, confirm.body, `name="confirm" value="yes"`)

	cancelled := env.post(t, "/admin/services/"+key+"/delete", url.Values{})
	assert.Equal(t, http.StatusSeeOther, cancelled.status)
	assert.Len(t, env.fake.Entries("services"), 1)
	assert.Empty(t, env.fake.RequestsTo(http.MethodDelete, "/services/"+key))

	deleted := env.post(t, "/admin/services/"+key+"/delete", url.Values{"confirm": {"yes"}})
	assert.Equal(t, http.StatusSeeOther, deleted.status)
	assert.Empty(t, env.fake.Entries("services"))

	list := env.get(t, deleted.location)
	assert.Contains(t, list.body, "Service deleted")
}

func TestCollection_ExpiredTokenRedirectsToLogin(t *testing.T) {
	env := newTestEnv(t)
	env.login(t, "admin")
	env.get(t, "/admin/services")
	require.Equal(t, 1, env.registry.Len())

	env.fake.Revoke("admin-token")

	resp := env.get(t, "/admin/services")
	assert.Equal(t, http.StatusSeeOther, resp.status)
	assert.Equal(t, RouteLogin, resp.location)
	assert.Equal(t, 1, env.registry.Len(), "the workspace outlives the token")

	page := env.get(t, RouteLogin)
	assert.Contains(t, page.body, middleware.FlashSessionExpired)
}

func TestCollection_DraftSurvivesExpiredToken(t *testing.T) {
	env := newTestEnv(t)
	env.login(t, "admin")
	env.get(t, "/admin/services/new?locale=en")

	env.fake.Revoke("admin-token")
	resp := env.post(t, "/admin/services/form", url.Values{
		"title_en":       {"Consulting"},
		"description_en": {"Advice"},
		"action":         {"save"},
	})
	require.Equal(t, http.StatusSeeOther, resp.status)
	assert.Equal(t, RouteLogin, resp.location)
	assert.Empty(t, env.fake.Entries("services"))

	env.login(t, "admin")
	form := env.get(t, "/admin/services/form")
	require.Equal(t, http.StatusOK, form.status)
	assert.Contains(t, form.body, `value="Consulting"`)

	saved := env.post(t, "/admin/services/form", url.Values{"action": {"save"}})
	require.Equal(t, http.StatusSeeOther, saved.status)
	entries := env.fake.Entries("services")
	require.Len(t, entries, 1)
	assert.Equal(t, "Consulting", entries[0]["title"])
}

func TestLogin_OtherUserGetsFreshWorkspace(t *testing.T) {
	env := newTestEnv(t)
	env.fake.AddAccount("second", "secret", "second-token", adminRoleID)
	env.login(t, "admin")
	env.get(t, "/admin/services/new?locale=en")
	env.post(t, "/admin/services/form", url.Values{"title_en": {"Draft of admin"}, "action": {"apply"}})

	env.fake.Revoke("admin-token")
	env.get(t, "/admin/services")

	env.login(t, "second")
	form := env.get(t, "/admin/services/form")
	assert.Equal(t, http.StatusSeeOther, form.status, "no form is open for the new user")
}

func TestCollection_MessagesCannotBeCreated(t *testing.T) {
	env := newTestEnv(t)
	env.login(t, "admin")

	resp := env.get(t, "/admin/messages/new")
	assert.Equal(t, http.StatusSeeOther, resp.status)
	assert.True(t, strings.HasPrefix(resp.location, "/admin/messages"))
}

var dismissPath = regexp.MustCompile(`/admin/notifications/([0-9a-f-]+)/dismiss`)

func TestNotifications_Dismiss(t *testing.T) {
	env := newTestEnv(t)
	env.fake.Fail("GET /services", http.StatusInternalServerError)
	env.login(t, "admin")

	list := env.get(t, "/admin/services")
	assert.Contains(t, list.body, "Could not load services")
	m := dismissPath.FindStringSubmatch(list.body)
	require.Len(t, m, 2)

	resp := env.post(t, "/admin/notifications/"+m[1]+"/dismiss", url.Values{"back": {"/admin/activity"}})
	assert.Equal(t, http.StatusSeeOther, resp.status)
	assert.Equal(t, "/admin/activity", resp.location)

	page := env.get(t, "/admin/activity")
	assert.NotContains(t, page.body, m[1])

	external := env.post(t, "/admin/notifications/unknown/dismiss", url.Values{"back": {"//evil.example"}})
	assert.Equal(t, RouteAdmin, external.location)
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t)

	resp := env.get(t, RouteHealth)
	require.Equal(t, http.StatusOK, resp.status)

	var status HealthStatus
	require.NoError(t, json.Unmarshal([]byte(resp.body), &status))
	assert.Equal(t, "healthy", status.Status)
	assert.Equal(t, "healthy", status.Checks["database"].Status)
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{30 * time.Second, "30 seconds"},
		{time.Minute, "1 minute"},
		{15 * time.Minute, "15 minutes"},
		{time.Hour, "1 hour"},
		{5 * time.Hour, "5 hours"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, formatDuration(tt.d))
	}
}

func TestIsLocalPath(t *testing.T) {
	assert.True(t, isLocalPath("/admin/services?locale=en"))
	assert.False(t, isLocalPath("//evil.example"))
	assert.False(t, isLocalPath("https://evil.example"))
	assert.False(t, isLocalPath(""))
}
