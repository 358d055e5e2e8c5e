// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package store

import (
	"context"
	"database/sql"
	"time"
)

// DBTX is satisfied by *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(context.Context, string, ...any) (sql.Result, error)
	QueryContext(context.Context, string, ...any) (*sql.Rows, error)
	QueryRowContext(context.Context, string, ...any) *sql.Row
}

// Queries runs the statements of the local database.
type Queries struct {
	db DBTX
}

// New returns Queries bound to db.
func New(db DBTX) *Queries {
	return &Queries{db: db}
}

// WithTx returns Queries bound to tx.
func (q *Queries) WithTx(tx *sql.Tx) *Queries {
	return &Queries{db: tx}
}

// Event is one activity log row.
type Event struct {
	ID        int64     `json:"id"`
	Level     string    `json:"level"`
	Category  string    `json:"category"`
	Message   string    `json:"message"`
	Username  string    `json:"username"`
	Metadata  string    `json:"metadata"`
	CreatedAt time.Time `json:"created_at"`
}

const createEvent = `
INSERT INTO events (level, category, message, username, metadata, created_at)
VALUES (?, ?, ?, ?, ?, ?)
RETURNING id, level, category, message, username, metadata, created_at
`

// CreateEventParams are the columns of a new event.
type CreateEventParams struct {
	Level     string
	Category  string
	Message   string
	Username  string
	Metadata  string
	CreatedAt time.Time
}

// CreateEvent inserts an event and returns the stored row.
func (q *Queries) CreateEvent(ctx context.Context, arg CreateEventParams) (Event, error) {
	if arg.Metadata == "" {
		arg.Metadata = "{}"
	}
	row := q.db.QueryRowContext(ctx, createEvent,
		arg.Level,
		arg.Category,
		arg.Message,
		arg.Username,
		arg.Metadata,
		arg.CreatedAt.UTC(),
	)
	var e Event
	err := row.Scan(&e.ID, &e.Level, &e.Category, &e.Message, &e.Username, &e.Metadata, &e.CreatedAt)
	return e, err
}

const listRecentEvents = `
SELECT id, level, category, message, username, metadata, created_at
FROM events
ORDER BY created_at DESC, id DESC
LIMIT ?
`

// ListRecentEvents returns the newest events first.
func (q *Queries) ListRecentEvents(ctx context.Context, limit int64) ([]Event, error) {
	return q.listEvents(ctx, listRecentEvents, limit)
}

const listRecentEventsByCategory = `
SELECT id, level, category, message, username, metadata, created_at
FROM events
WHERE category = ?
ORDER BY created_at DESC, id DESC
LIMIT ?
`

// ListRecentEventsByCategory returns the newest events of one category.
func (q *Queries) ListRecentEventsByCategory(ctx context.Context, category string, limit int64) ([]Event, error) {
	return q.listEvents(ctx, listRecentEventsByCategory, category, limit)
}

func (q *Queries) listEvents(ctx context.Context, query string, args ...any) ([]Event, error) {
	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	items := []Event{}
	for rows.Next() {
		var e Event
		if err := rows.Scan(&e.ID, &e.Level, &e.Category, &e.Message, &e.Username, &e.Metadata, &e.CreatedAt); err != nil {
			return nil, err
		}
		items = append(items, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const countEvents = `SELECT COUNT(*) FROM events`

// CountEvents returns the number of stored events.
func (q *Queries) CountEvents(ctx context.Context) (int64, error) {
	var n int64
	err := q.db.QueryRowContext(ctx, countEvents).Scan(&n)
	return n, err
}

const deleteEventsBefore = `DELETE FROM events WHERE created_at < ?`

// DeleteEventsBefore removes events older than before and returns how many
// rows were deleted.
func (q *Queries) DeleteEventsBefore(ctx context.Context, before time.Time) (int64, error) {
	res, err := q.db.ExecContext(ctx, deleteEventsBefore, before.UTC())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
