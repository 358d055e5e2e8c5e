// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package web embeds the dashboard templates and static assets.
package web

import "embed"

// Templates holds the HTML templates under templates/.
//
//go:embed all:templates
var Templates embed.FS

// Static holds the stylesheets and scripts under static/.
//
//go:embed all:static
var Static embed.FS
