// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"strings"
)

// SearchResult is one advisory web result.
type SearchResult struct {
	Title   string `json:"title"`
	Snippet string `json:"snippet"`
	Source  string `json:"source,omitempty"`
	URL     string `json:"url,omitempty"`
}

// Search asks /api/search for results about query. Results are advisory:
// callers treat a failure as "no results".
func (c *Client) Search(ctx context.Context, query string) ([]SearchResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, nil
	}
	payload, err := json.Marshal(map[string]string{"query": query})
	if err != nil {
		return nil, &Error{Type: ErrTypeUnknown, Message: "failed to encode search request", Cause: err}
	}

	ctx, cancel := context.WithTimeout(ctx, c.config.ChatTimeout)
	defer cancel()

	raw, err := c.do(ctx, "search", http.MethodPost, "/api/search", "application/json", bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}

	var resp struct {
		Results []SearchResult `json:"results"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, &Error{Type: ErrTypeMalformedResponse, Message: "search: unexpected response body", Cause: err}
	}
	return resp.Results, nil
}
