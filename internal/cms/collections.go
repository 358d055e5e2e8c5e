// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package cms

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
)

// Payload is the attribute set sent on create and update. Raw payloads are
// sent as the request body directly; all others are wrapped as {"data": ...}.
type Payload struct {
	Fields map[string]any
	Raw    bool
}

func (p Payload) body() any {
	fields := p.Fields
	if fields == nil {
		fields = map[string]any{}
	}
	if p.Raw {
		return fields
	}
	return map[string]any{"data": fields}
}

// List fetches every entry of a collection for the locale with all
// relations populated. An empty locale omits the locale parameter.
// Both {"data": [...]} envelopes and raw arrays are accepted.
func (c *Client) List(ctx context.Context, collection, locale string) ([]json.RawMessage, error) {
	q := url.Values{}
	q.Set("populate", "*")
	if locale != "" {
		q.Set("locale", locale)
	}

	body, err := c.Do(ctx, http.MethodGet, "/"+collection, RequestOptions{Query: q})
	if err != nil {
		return nil, fmt.Errorf("listing %s: %w", collection, err)
	}

	items, err := decodeList(body)
	if err != nil {
		return nil, fmt.Errorf("decoding %s list: %w", collection, err)
	}
	return items, nil
}

// Create posts a new entry tagged with the locale.
func (c *Client) Create(ctx context.Context, collection, locale string, p Payload) (json.RawMessage, error) {
	body, err := c.Do(ctx, http.MethodPost, "/"+collection, RequestOptions{
		Query: localeQuery(locale),
		Body:  p.body(),
	})
	if err != nil {
		return nil, fmt.Errorf("creating %s: %w", collection, err)
	}
	return unwrapData(body), nil
}

// Update replaces the given fields of an existing entry. The key is the
// documentId for localized collections and the numeric id otherwise.
func (c *Client) Update(ctx context.Context, collection, key, locale string, p Payload) (json.RawMessage, error) {
	body, err := c.Do(ctx, http.MethodPut, "/"+collection+"/"+url.PathEscape(key), RequestOptions{
		Query: localeQuery(locale),
		Body:  p.body(),
	})
	if err != nil {
		return nil, fmt.Errorf("updating %s %s: %w", collection, key, err)
	}
	return unwrapData(body), nil
}

// Localize attaches a translation in locale to the document identified by
// documentID. The CMS stores it as another row of the same document.
func (c *Client) Localize(ctx context.Context, collection, documentID, locale string, p Payload) (json.RawMessage, error) {
	if documentID == "" {
		return nil, fmt.Errorf("localizing %s: empty document id", collection)
	}
	if locale == "" {
		return nil, fmt.Errorf("localizing %s %s: empty locale", collection, documentID)
	}
	p.Raw = false

	body, err := c.Do(ctx, http.MethodPut, "/"+collection+"/"+url.PathEscape(documentID), RequestOptions{
		Query: localeQuery(locale),
		Body:  p.body(),
	})
	if err != nil {
		return nil, fmt.Errorf("localizing %s %s as %s: %w", collection, documentID, locale, err)
	}
	return unwrapData(body), nil
}

// Delete removes an entry.
func (c *Client) Delete(ctx context.Context, collection, key string) error {
	if _, err := c.Do(ctx, http.MethodDelete, "/"+collection+"/"+url.PathEscape(key), RequestOptions{}); err != nil {
		return fmt.Errorf("deleting %s %s: %w", collection, key, err)
	}
	return nil
}

func localeQuery(locale string) url.Values {
	if locale == "" {
		return nil
	}
	return url.Values{"locale": []string{locale}}
}

func decodeList(body json.RawMessage) ([]json.RawMessage, error) {
	body = bytes.TrimSpace(body)
	if len(body) == 0 || bytes.Equal(body, []byte("null")) {
		return []json.RawMessage{}, nil
	}

	if body[0] == '[' {
		var items []json.RawMessage
		if err := json.Unmarshal(body, &items); err != nil {
			return nil, err
		}
		return items, nil
	}

	var env struct {
		Data []json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, err
	}
	if env.Data == nil {
		return []json.RawMessage{}, nil
	}
	return env.Data, nil
}

func unwrapData(body json.RawMessage) json.RawMessage {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return body
	}
	var env map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &env); err != nil {
		return body
	}
	if data, ok := env["data"]; ok && len(env) <= 2 {
		return data
	}
	return body
}
