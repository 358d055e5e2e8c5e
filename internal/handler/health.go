// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package handler

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"time"

	"github.com/ajwan-web/ajwan-admin/internal/version"
)

// HealthHandler handles health check requests.
type HealthHandler struct {
	db         *sql.DB
	version    *version.Info
	workspaces func() int
	startTime  time.Time
}

// NewHealthHandler creates a new health handler. workspaces reports the
// number of live workspaces and may be nil.
func NewHealthHandler(db *sql.DB, info *version.Info, workspaces func() int) *HealthHandler {
	if info == nil {
		info = &version.Info{Version: "dev"}
	}
	return &HealthHandler{
		db:         db,
		version:    info,
		workspaces: workspaces,
		startTime:  time.Now(),
	}
}

// HealthStatus represents the overall health status.
type HealthStatus struct {
	Status     string           `json:"status"`
	Timestamp  time.Time        `json:"timestamp"`
	Uptime     string           `json:"uptime"`
	Version    string           `json:"version"`
	Workspaces int              `json:"workspaces"`
	Checks     map[string]Check `json:"checks"`
}

// Check represents a single health check result.
type Check struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
	Latency string `json:"latency,omitempty"`
}

// Health handles GET /health requests.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	dbCheck := h.checkDatabase(r.Context())

	status := HealthStatus{
		Status:    "healthy",
		Timestamp: time.Now().UTC(),
		Uptime:    time.Since(h.startTime).Round(time.Second).String(),
		Version:   h.version.Version,
		Checks:    map[string]Check{"database": dbCheck},
	}
	if h.workspaces != nil {
		status.Workspaces = h.workspaces()
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	if dbCheck.Status != "healthy" {
		status.Status = "degraded"
		w.WriteHeader(http.StatusServiceUnavailable)
	} else {
		w.WriteHeader(http.StatusOK)
	}
	_ = json.NewEncoder(w).Encode(status)
}

// checkDatabase verifies database connectivity.
func (h *HealthHandler) checkDatabase(ctx context.Context) Check {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	start := time.Now()
	if err := h.db.PingContext(ctx); err != nil {
		return Check{Status: "unhealthy", Message: "database connection failed"}
	}

	var one int
	if err := h.db.QueryRowContext(ctx, "SELECT 1").Scan(&one); err != nil {
		return Check{Status: "unhealthy", Message: "database query failed"}
	}

	return Check{Status: "healthy", Latency: time.Since(start).String()}
}
