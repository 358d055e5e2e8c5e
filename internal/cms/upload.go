// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package cms

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
)

// uploadField is the multipart field name the CMS reads files from.
const uploadField = "files"

// UploadFile is one file in an upload batch.
type UploadFile struct {
	Name        string
	ContentType string
	Data        []byte
}

// MediaRecord is a stored media file as returned by the upload endpoint.
type MediaRecord struct {
	ID   int64   `json:"id"`
	Name string  `json:"name"`
	URL  string  `json:"url"`
	Mime string  `json:"mime"`
	Size float64 `json:"size"`
}

// Upload sends all files as one multipart batch.
func (c *Client) Upload(ctx context.Context, files []UploadFile) ([]MediaRecord, error) {
	if len(files) == 0 {
		return []MediaRecord{}, nil
	}

	body, err := c.Do(ctx, http.MethodPost, "/upload", RequestOptions{Multipart: files})
	if err != nil {
		return nil, fmt.Errorf("uploading %d files: %w", len(files), err)
	}

	var records []MediaRecord
	if err := json.Unmarshal(body, &records); err != nil {
		// Some CMS versions answer a single object for a single file.
		var one MediaRecord
		if err2 := json.Unmarshal(body, &one); err2 != nil || one.ID == 0 {
			return nil, fmt.Errorf("decoding upload response: %w", err)
		}
		records = []MediaRecord{one}
	}
	if len(records) == 0 {
		return nil, errors.New("cms: upload returned no files")
	}
	return records, nil
}

// DeleteMedia removes a stored media file.
func (c *Client) DeleteMedia(ctx context.Context, id int64) error {
	path := "/upload/files/" + strconv.FormatInt(id, 10)
	if _, err := c.Do(ctx, http.MethodDelete, path, RequestOptions{}); err != nil {
		return fmt.Errorf("deleting media %d: %w", id, err)
	}
	return nil
}
