// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package cms is the HTTP client for the headless CMS REST API.
//
// Every call is a single attempt with a deadline; there is no retry.
// Authenticated calls carry the session token as a bearer credential and a
// 401 or 403 response clears that token through the Session.
package cms

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"
	"time"
)

// Client defaults.
const (
	DefaultTimeout       = 30 * time.Second
	DefaultUploadTimeout = 60 * time.Second
	DefaultAPIPath       = "/api"
	UserAgent            = "ajwan-admin/1.0"

	// maxLoggedBody caps how much of an error body is logged and kept.
	maxLoggedBody = 4 * 1024
)

// Session supplies and invalidates the bearer token.
type Session interface {
	Token(ctx context.Context) string
	Clear(ctx context.Context)
}

// Config configures a Client.
type Config struct {
	BaseURL       string
	APIPath       string
	Timeout       time.Duration
	UploadTimeout time.Duration
	HTTPClient    *http.Client
	Logger        *slog.Logger
}

// Client talks to the CMS.
type Client struct {
	origin        string
	apiBase       string
	timeout       time.Duration
	uploadTimeout time.Duration
	http          *http.Client
	session       Session
	logger        *slog.Logger
}

// RequestOptions controls a single request.
type RequestOptions struct {
	Query     url.Values
	Body      any
	Multipart []UploadFile
	// Anonymous omits the bearer token and never clears the session.
	Anonymous bool
}

// New creates a Client. A nil session behaves like a session without token.
func New(cfg Config, session Session) *Client {
	if cfg.APIPath == "" {
		cfg.APIPath = DefaultAPIPath
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.UploadTimeout <= 0 {
		cfg.UploadTimeout = DefaultUploadTimeout
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	origin := strings.TrimRight(cfg.BaseURL, "/")
	apiPath := "/" + strings.Trim(cfg.APIPath, "/")

	return &Client{
		origin:        origin,
		apiBase:       origin + apiPath,
		timeout:       cfg.Timeout,
		uploadTimeout: cfg.UploadTimeout,
		http:          cfg.HTTPClient,
		session:       session,
		logger:        cfg.Logger,
	}
}

// Origin returns the CMS origin used to absolutize media URLs.
func (c *Client) Origin() string {
	return c.origin
}

// Token returns the current session token, or "" when there is none.
func (c *Client) Token(ctx context.Context) string {
	if c.session == nil {
		return ""
	}
	return c.session.Token(ctx)
}

// Do performs one request against the REST API and returns the raw
// response body. An empty body yields a nil RawMessage.
func (c *Client) Do(ctx context.Context, method, path string, opts RequestOptions) (json.RawMessage, error) {
	timeout := c.timeout
	if len(opts.Multipart) > 0 {
		timeout = c.uploadTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	op := method + " " + path

	req, err := c.newRequest(ctx, method, path, opts)
	if err != nil {
		return nil, fmt.Errorf("cms: building %s: %w", op, err)
	}

	if !opts.Anonymous {
		if token := c.Token(ctx); token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		timedOut := errors.Is(err, context.DeadlineExceeded) || isTimeout(err)
		c.logger.Warn("cms request failed",
			"category", "cms",
			"method", method,
			"path", path,
			"duration", time.Since(start),
			"timeout", timedOut,
			"error", err)
		return nil, &NetworkError{Op: op, Timeout: timedOut, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		timedOut := errors.Is(err, context.DeadlineExceeded) || isTimeout(err)
		return nil, &NetworkError{Op: op, Timeout: timedOut, Err: err}
	}

	c.logger.Debug("cms request",
		"method", method,
		"path", path,
		"status", resp.StatusCode,
		"duration", time.Since(start))

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		if !opts.Anonymous && c.session != nil {
			c.session.Clear(ctx)
		}
		c.logger.Warn("cms rejected session token",
			"category", "auth",
			"method", method,
			"path", path,
			"status", resp.StatusCode)
		return nil, &AuthExpiredError{Status: resp.StatusCode}
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		text := truncate(string(body), maxLoggedBody)
		c.logger.Warn("cms request returned error status",
			"category", "cms",
			"method", method,
			"path", path,
			"status", resp.StatusCode,
			"body", text)
		return nil, &ServerError{Status: resp.StatusCode, Body: text}
	}

	if len(bytes.TrimSpace(body)) == 0 {
		return nil, nil
	}
	return body, nil
}

func (c *Client) newRequest(ctx context.Context, method, path string, opts RequestOptions) (*http.Request, error) {
	u := c.apiBase + "/" + strings.TrimLeft(path, "/")
	if len(opts.Query) > 0 {
		u += "?" + opts.Query.Encode()
	}

	var (
		body        io.Reader
		contentType string
	)

	switch {
	case len(opts.Multipart) > 0:
		buf, ct, err := encodeMultipart(opts.Multipart)
		if err != nil {
			return nil, err
		}
		body, contentType = buf, ct
	case opts.Body != nil:
		data, err := json.Marshal(opts.Body)
		if err != nil {
			return nil, fmt.Errorf("encoding body: %w", err)
		}
		body, contentType = bytes.NewReader(data), "application/json"
	}

	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", UserAgent)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	return req, nil
}

// encodeMultipart writes one "files" part per upload.
func encodeMultipart(files []UploadFile) (*bytes.Buffer, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	for _, f := range files {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`,
			uploadField, escapeQuotes(f.Name)))
		ct := f.ContentType
		if ct == "" {
			ct = "application/octet-stream"
		}
		h.Set("Content-Type", ct)

		part, err := w.CreatePart(h)
		if err != nil {
			return nil, "", fmt.Errorf("creating part for %q: %w", f.Name, err)
		}
		if _, err := part.Write(f.Data); err != nil {
			return nil, "", fmt.Errorf("writing part for %q: %w", f.Name, err)
		}
	}

	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("closing multipart writer: %w", err)
	}
	return &buf, w.FormDataContentType(), nil
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func escapeQuotes(s string) string {
	return quoteEscaper.Replace(s)
}

func isTimeout(err error) bool {
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

// errorMessage pulls error.message out of a CMS error body when present.
func errorMessage(body []byte) string {
	var env struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &env); err != nil {
		return ""
	}
	return env.Error.Message
}
