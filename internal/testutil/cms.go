// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package testutil

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"
)

// Request is a request seen by FakeCMS.
type Request struct {
	Method string
	Path   string
	Locale string
	Body   map[string]any
	Files  []string
}

type account struct {
	password string
	token    string
	user     map[string]any
}

// FakeCMS is an in-memory CMS speaking the REST dialect the dashboard
// uses. Entries are flat objects carrying id, documentId and locale.
type FakeCMS struct {
	Server *httptest.Server

	mu       sync.Mutex
	entries  map[string][]map[string]any
	accounts map[string]account
	tokens   map[string]map[string]any
	requests []Request
	failures map[string]int
	nextID   int64
}

// NewFakeCMS starts a FakeCMS that is closed when the test ends.
func NewFakeCMS(t *testing.T) *FakeCMS {
	t.Helper()
	f := &FakeCMS{
		entries:  make(map[string][]map[string]any),
		accounts: make(map[string]account),
		tokens:   make(map[string]map[string]any),
		failures: make(map[string]int),
		nextID:   1,
	}
	f.Server = httptest.NewServer(http.HandlerFunc(f.serve))
	t.Cleanup(f.Server.Close)
	return f
}

// URL returns the origin of the server.
func (f *FakeCMS) URL() string {
	return f.Server.URL
}

// AddAccount registers a user that can log in and call users/me. The
// token is returned by the login endpoint.
func (f *FakeCMS) AddAccount(identifier, password, token string, roleID int64) {
	f.mu.Lock()
	defer f.mu.Unlock()

	user := map[string]any{
		"id":        f.nextID,
		"username":  identifier,
		"email":     identifier + "@example.com",
		"confirmed": true,
		"blocked":   false,
		"role":      map[string]any{"id": roleID, "name": "Role " + strconv.FormatInt(roleID, 10), "type": "custom"},
	}
	f.nextID++
	f.accounts[identifier] = account{password: password, token: token, user: user}
	f.tokens[token] = user
}

// Revoke makes token unknown, so calls with it answer 401.
func (f *FakeCMS) Revoke(token string) {
	f.mu.Lock()
	delete(f.tokens, token)
	f.mu.Unlock()
}

// Fail makes every request whose "METHOD /path" starts with prefix answer
// status. A zero status removes the failure.
func (f *FakeCMS) Fail(prefix string, status int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if status == 0 {
		delete(f.failures, prefix)
		return
	}
	f.failures[prefix] = status
}

// Add stores an entry and returns it with its generated id and, unless
// attrs carries one, documentId.
func (f *FakeCMS) Add(collection, locale string, attrs map[string]any) map[string]any {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.addLocked(collection, locale, attrs)
}

func (f *FakeCMS) addLocked(collection, locale string, attrs map[string]any) map[string]any {
	e := make(map[string]any, len(attrs)+5)
	for k, v := range attrs {
		e[k] = v
	}
	e["id"] = f.nextID
	if _, ok := e["documentId"]; !ok {
		e["documentId"] = fmt.Sprintf("doc%d", f.nextID)
	}
	f.nextID++
	if locale != "" {
		e["locale"] = locale
	}
	now := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC).Format(time.RFC3339)
	e["createdAt"] = now
	e["updatedAt"] = now
	f.entries[collection] = append(f.entries[collection], e)
	return e
}

// Entries returns a copy of the stored entries of a collection.
func (f *FakeCMS) Entries(collection string) []map[string]any {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]map[string]any, len(f.entries[collection]))
	copy(out, f.entries[collection])
	return out
}

// Requests returns the requests seen so far.
func (f *FakeCMS) Requests() []Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Request, len(f.requests))
	copy(out, f.requests)
	return out
}

// RequestsTo returns the requests with the given method and path.
func (f *FakeCMS) RequestsTo(method, path string) []Request {
	var out []Request
	for _, r := range f.Requests() {
		if r.Method == method && r.Path == path {
			out = append(out, r)
		}
	}
	return out
}

func (f *FakeCMS) serve(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api")
	req := Request{Method: r.Method, Path: path, Locale: r.URL.Query().Get("locale")}

	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/") {
		if err := r.ParseMultipartForm(32 << 20); err == nil {
			for _, fh := range r.MultipartForm.File["files"] {
				req.Files = append(req.Files, fh.Filename)
			}
		}
	} else if r.Body != nil {
		data, _ := io.ReadAll(r.Body)
		if len(data) > 0 {
			_ = json.Unmarshal(data, &req.Body)
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)

	for prefix, status := range f.failures {
		if strings.HasPrefix(r.Method+" "+path, prefix) {
			writeJSON(w, status, map[string]any{"error": map[string]any{"status": status, "message": "injected failure"}})
			return
		}
	}

	if r.Method == http.MethodPost && path == "/auth/local" {
		f.login(w, req)
		return
	}

	user, ok := f.tokens[strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")]
	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]any{"error": map[string]any{"status": 401, "message": "Missing or invalid credentials"}})
		return
	}

	switch {
	case r.Method == http.MethodGet && path == "/users/me":
		writeJSON(w, http.StatusOK, user)
	case r.Method == http.MethodPost && path == "/upload":
		f.upload(w, req)
	case r.Method == http.MethodDelete && strings.HasPrefix(path, "/upload/files/"):
		writeJSON(w, http.StatusOK, map[string]any{})
	default:
		f.collection(w, r, req)
	}
}

func (f *FakeCMS) login(w http.ResponseWriter, req Request) {
	id, _ := req.Body["identifier"].(string)
	pw, _ := req.Body["password"].(string)
	acc, ok := f.accounts[id]
	if !ok || acc.password != pw {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": map[string]any{"status": 400, "message": "Invalid identifier or password"}})
		return
	}
	f.tokens[acc.token] = acc.user
	writeJSON(w, http.StatusOK, map[string]any{"jwt": acc.token, "user": acc.user})
}

func (f *FakeCMS) upload(w http.ResponseWriter, req Request) {
	out := make([]map[string]any, 0, len(req.Files))
	for _, name := range req.Files {
		out = append(out, map[string]any{"id": f.nextID, "name": name, "url": "/uploads/" + name})
		f.nextID++
	}
	writeJSON(w, http.StatusOK, out)
}

func (f *FakeCMS) collection(w http.ResponseWriter, r *http.Request, req Request) {
	parts := strings.Split(strings.Trim(req.Path, "/"), "/")
	name := parts[0]
	key := ""
	if len(parts) > 1 {
		key = parts[1]
	}
	raw := name == "users"

	switch {
	case r.Method == http.MethodGet && key == "":
		var list []map[string]any
		for _, e := range f.entries[name] {
			if req.Locale == "" || e["locale"] == req.Locale {
				list = append(list, e)
			}
		}
		if list == nil {
			list = []map[string]any{}
		}
		if raw {
			writeJSON(w, http.StatusOK, list)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"data": list})

	case r.Method == http.MethodPost && key == "":
		e := f.addLocked(name, req.Locale, attrsOf(req.Body, raw))
		writeJSON(w, http.StatusOK, map[string]any{"data": e})

	case r.Method == http.MethodPut && key != "":
		attrs := attrsOf(req.Body, raw)
		for _, e := range f.entries[name] {
			if matches(e, key) && (req.Locale == "" || e["locale"] == req.Locale) {
				for k, v := range attrs {
					e[k] = v
				}
				writeJSON(w, http.StatusOK, map[string]any{"data": e})
				return
			}
		}
		if req.Locale != "" && f.hasKey(name, key) {
			attrs["documentId"] = key
			e := f.addLocked(name, req.Locale, attrs)
			writeJSON(w, http.StatusOK, map[string]any{"data": e})
			return
		}
		writeJSON(w, http.StatusNotFound, map[string]any{"error": map[string]any{"status": 404, "message": "Not Found"}})

	case r.Method == http.MethodDelete && key != "":
		kept := f.entries[name][:0]
		for _, e := range f.entries[name] {
			if !matches(e, key) {
				kept = append(kept, e)
			}
		}
		f.entries[name] = kept
		w.WriteHeader(http.StatusNoContent)

	default:
		writeJSON(w, http.StatusNotFound, map[string]any{"error": map[string]any{"status": 404, "message": "Not Found"}})
	}
}

func (f *FakeCMS) hasKey(name, key string) bool {
	for _, e := range f.entries[name] {
		if matches(e, key) {
			return true
		}
	}
	return false
}

func matches(e map[string]any, key string) bool {
	if e["documentId"] == key {
		return true
	}
	id, _ := e["id"].(int64)
	return strconv.FormatInt(id, 10) == key
}

func attrsOf(body map[string]any, raw bool) map[string]any {
	if raw {
		if body == nil {
			return map[string]any{}
		}
		return body
	}
	data, _ := body["data"].(map[string]any)
	if data == nil {
		data = map[string]any{}
	}
	return data
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
