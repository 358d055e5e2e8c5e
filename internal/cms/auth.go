// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package cms

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
)

// ErrInvalidCredentials is returned when the CMS rejects a login.
var ErrInvalidCredentials = errors.New("cms: invalid identifier or password")

// Role is the CMS role attached to a user.
type Role struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
	Type string `json:"type"`
}

// User is the authenticated CMS user.
type User struct {
	ID         int64  `json:"id"`
	DocumentID string `json:"documentId"`
	Username   string `json:"username"`
	Email      string `json:"email"`
	Blocked    bool   `json:"blocked"`
	Confirmed  bool   `json:"confirmed"`
	Role       *Role  `json:"role"`
}

// HasRole reports whether the user carries the role with the given id.
func (u *User) HasRole(id int64) bool {
	return u != nil && u.Role != nil && u.Role.ID == id
}

// Login exchanges credentials for a JWT. The call is unauthenticated and
// never touches the session.
func (c *Client) Login(ctx context.Context, identifier, password string) (string, error) {
	body, err := c.Do(ctx, http.MethodPost, "/auth/local", RequestOptions{
		Body: map[string]string{
			"identifier": identifier,
			"password":   password,
		},
		Anonymous: true,
	})
	if err != nil {
		var se *ServerError
		if errors.As(err, &se) && se.Status == http.StatusBadRequest {
			return "", ErrInvalidCredentials
		}
		if IsAuthExpired(err) {
			return "", ErrInvalidCredentials
		}
		return "", fmt.Errorf("logging in: %w", err)
	}

	var resp struct {
		JWT string `json:"jwt"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("decoding login response: %w", err)
	}
	if resp.JWT == "" {
		return "", errors.New("cms: login response without token")
	}
	return resp.JWT, nil
}

// Me returns the user behind the current session token with its role.
func (c *Client) Me(ctx context.Context) (*User, error) {
	if c.Token(ctx) == "" {
		return nil, ErrNoToken
	}

	body, err := c.Do(ctx, http.MethodGet, "/users/me", RequestOptions{
		Query: url.Values{"populate": []string{"role"}},
	})
	if err != nil {
		return nil, fmt.Errorf("fetching current user: %w", err)
	}

	var u User
	if err := json.Unmarshal(body, &u); err != nil {
		return nil, fmt.Errorf("decoding current user: %w", err)
	}
	return &u, nil
}
