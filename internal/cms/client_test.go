// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package cms

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSession struct {
	mu      sync.Mutex
	token   string
	cleared int
}

func (s *fakeSession) Token(context.Context) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token
}

func (s *fakeSession) Clear(context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = ""
	s.cleared++
}

func newTestClient(t *testing.T, h http.HandlerFunc, s Session) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return New(Config{
		BaseURL: srv.URL,
		Timeout: 2 * time.Second,
		Logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	}, s)
}

func TestDo_BearerToken(t *testing.T) {
	var gotAuth string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		_, _ = w.Write([]byte(`{"data":[]}`))
	}, &fakeSession{token: "abc"})

	_, err := c.Do(context.Background(), http.MethodGet, "/services", RequestOptions{})
	require.NoError(t, err)
	assert.Equal(t, "Bearer abc", gotAuth)
}

func TestDo_NoTokenOmitsHeader(t *testing.T) {
	var gotAuth = "unset"
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		_, _ = w.Write([]byte(`{}`))
	}, &fakeSession{})

	_, err := c.Do(context.Background(), http.MethodGet, "/services", RequestOptions{})
	require.NoError(t, err)
	assert.Empty(t, gotAuth)
}

func TestDo_UnauthorizedClearsToken(t *testing.T) {
	for _, status := range []int{http.StatusUnauthorized, http.StatusForbidden} {
		t.Run(http.StatusText(status), func(t *testing.T) {
			sess := &fakeSession{token: "expired"}
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(status)
				_, _ = w.Write([]byte(`{"error":{"message":"Forbidden"}}`))
			}, sess)

			_, err := c.Do(context.Background(), http.MethodGet, "/products", RequestOptions{})
			require.Error(t, err)

			assert.True(t, errors.Is(err, ErrAuthExpired))
			var se *ServerError
			assert.False(t, errors.As(err, &se), "must not be a ServerError")
			assert.Equal(t, 1, sess.cleared)
			assert.Empty(t, sess.Token(context.Background()))
		})
	}
}

func TestDo_ServerError(t *testing.T) {
	sess := &fakeSession{token: "abc"}
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte("<html>boom</html>"))
	}, sess)

	_, err := c.Do(context.Background(), http.MethodGet, "/services", RequestOptions{})

	var se *ServerError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusInternalServerError, se.Status)
	assert.Equal(t, "<html>boom</html>", se.Body)
	assert.False(t, IsAuthExpired(err))
	assert.Equal(t, 0, sess.cleared)
}

func TestDo_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(time.Second):
		}
	}))
	t.Cleanup(srv.Close)

	c := New(Config{
		BaseURL: srv.URL,
		Timeout: 50 * time.Millisecond,
		Logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	}, nil)

	_, err := c.Do(context.Background(), http.MethodGet, "/services", RequestOptions{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrTimeout))

	var ne *NetworkError
	assert.ErrorAs(t, err, &ne)
}

func TestList_Envelopes(t *testing.T) {
	tests := []struct {
		name string
		body string
		want int
	}{
		{"wrapped", `{"data":[{"id":1},{"id":2}],"meta":{}}`, 2},
		{"raw array", `[{"id":1}]`, 1},
		{"null data", `{"data":null}`, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var query string
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				query = r.URL.RawQuery
				_, _ = w.Write([]byte(tt.body))
			}, &fakeSession{token: "abc"})

			items, err := c.List(context.Background(), "services", "ar-SA")
			require.NoError(t, err)
			assert.Len(t, items, tt.want)
			assert.Contains(t, query, "populate=%2A")
			assert.Contains(t, query, "locale=ar-SA")
		})
	}
}

func TestCreate_WrapsData(t *testing.T) {
	var (
		path string
		got  map[string]any
	)
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path + "?" + r.URL.RawQuery
		_ = json.NewDecoder(r.Body).Decode(&got)
		_, _ = w.Write([]byte(`{"data":{"id":7,"documentId":"doc7"}}`))
	}, &fakeSession{token: "abc"})

	out, err := c.Create(context.Background(), "services", "en", Payload{Fields: map[string]any{"title": "Web"}})
	require.NoError(t, err)
	assert.Equal(t, "/api/services?locale=en", path)
	assert.Equal(t, map[string]any{"data": map[string]any{"title": "Web"}}, got)
	assert.JSONEq(t, `{"id":7,"documentId":"doc7"}`, string(out))
}

func TestUpdate_RawBody(t *testing.T) {
	var got map[string]any
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "/api/users/5", r.URL.Path)
		_ = json.NewDecoder(r.Body).Decode(&got)
		_, _ = w.Write([]byte(`{"id":5}`))
	}, &fakeSession{token: "abc"})

	_, err := c.Update(context.Background(), "users", "5", "", Payload{Fields: map[string]any{"blocked": true}, Raw: true})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"blocked": true}, got)
}

func TestLocalize(t *testing.T) {
	var (
		method, path, query string
	)
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		method, path, query = r.Method, r.URL.Path, r.URL.RawQuery
		_, _ = w.Write([]byte(`{"data":{"id":9}}`))
	}, &fakeSession{token: "abc"})

	_, err := c.Localize(context.Background(), "services", "doc1", "ar-SA", Payload{Fields: map[string]any{"title": "ويب"}})
	require.NoError(t, err)
	assert.Equal(t, http.MethodPut, method)
	assert.Equal(t, "/api/services/doc1", path)
	assert.Equal(t, "locale=ar-SA", query)

	_, err = c.Localize(context.Background(), "services", "", "ar-SA", Payload{})
	assert.Error(t, err)
}

func TestUpload_Multipart(t *testing.T) {
	var (
		contentType string
		names       []string
	)
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		contentType = r.Header.Get("Content-Type")
		if !assert.NoError(t, r.ParseMultipartForm(1<<20)) {
			return
		}
		for _, fh := range r.MultipartForm.File["files"] {
			names = append(names, fh.Filename)
		}
		_, _ = w.Write([]byte(`[{"id":11,"name":"a.jpg","url":"/uploads/a.jpg"},{"id":12,"name":"b.png","url":"/uploads/b.png"}]`))
	}, &fakeSession{token: "abc"})

	recs, err := c.Upload(context.Background(), []UploadFile{
		{Name: "a.jpg", ContentType: "image/jpeg", Data: []byte("jpeg")},
		{Name: "b.png", ContentType: "image/png", Data: []byte("png")},
	})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(contentType, "multipart/form-data; boundary="))
	assert.Equal(t, []string{"a.jpg", "b.png"}, names)
	require.Len(t, recs, 2)
	assert.Equal(t, int64(11), recs[0].ID)
}

func TestDeleteMedia(t *testing.T) {
	var path string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		path = r.Method + " " + r.URL.Path
		w.WriteHeader(http.StatusNoContent)
	}, &fakeSession{token: "abc"})

	require.NoError(t, c.DeleteMedia(context.Background(), 42))
	assert.Equal(t, "DELETE /api/upload/files/42", path)
}

func TestLogin(t *testing.T) {
	sess := &fakeSession{token: "old"}
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.Header.Get("Authorization"))
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body["password"] != "secret" {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":{"message":"Invalid identifier or password"}}`))
			return
		}
		_, _ = w.Write([]byte(`{"jwt":"new-token","user":{"id":1}}`))
	}, sess)

	token, err := c.Login(context.Background(), "admin@example.com", "secret")
	require.NoError(t, err)
	assert.Equal(t, "new-token", token)

	_, err = c.Login(context.Background(), "admin@example.com", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	assert.Equal(t, 0, sess.cleared)
}

func TestMe(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/users/me", r.URL.Path)
		assert.Equal(t, "role", r.URL.Query().Get("populate"))
		_, _ = w.Write([]byte(`{"id":1,"username":"admin","email":"a@example.com","role":{"id":3,"name":"Admin","type":"admin"}}`))
	}, &fakeSession{token: "abc"})

	u, err := c.Me(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "admin", u.Username)
	assert.True(t, u.HasRole(3))
	assert.False(t, u.HasRole(1))
}

func TestMe_NoToken(t *testing.T) {
	called := false
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		called = true
	}, &fakeSession{})

	_, err := c.Me(context.Background())
	assert.ErrorIs(t, err, ErrNoToken)
	assert.ErrorIs(t, err, ErrAuthExpired)
	assert.False(t, called)
}

func TestServerError_Message(t *testing.T) {
	se := &ServerError{Status: 400, Body: `{"error":{"status":400,"message":"title must be unique"}}`}
	assert.Equal(t, "title must be unique", se.Message())

	se = &ServerError{Status: 502, Body: "Bad Gateway"}
	assert.Equal(t, "Bad Gateway", se.Message())
}
