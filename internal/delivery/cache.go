// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package delivery

import (
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/efgfdsdfdf/edutrack/internal/transport"
)

// DefaultAnalysisTTL is how long an attachment analysis is reused.
const DefaultAnalysisTTL = time.Hour

// AnalysisCache remembers attachment analyses by attachment ID so a retry
// or edit does not upload the same file again.
type AnalysisCache struct {
	cache *cache.Cache
}

// NewAnalysisCache creates a cache whose entries expire after ttl.
func NewAnalysisCache(ttl time.Duration) *AnalysisCache {
	if ttl <= 0 {
		ttl = DefaultAnalysisTTL
	}
	return &AnalysisCache{
		cache: cache.New(ttl, 10*time.Minute),
	}
}

// Get returns the analysis cached for id.
func (c *AnalysisCache) Get(id string) (transport.Analysis, bool) {
	if x, found := c.cache.Get(id); found {
		return x.(transport.Analysis), true
	}
	return transport.Analysis{}, false
}

// Set stores a for id.
func (c *AnalysisCache) Set(id string, a transport.Analysis) {
	c.cache.Set(id, a, cache.DefaultExpiration)
}

// Len returns the number of cached analyses, expired ones included until
// the next cleanup.
func (c *AnalysisCache) Len() int {
	return c.cache.ItemCount()
}

// Flush drops every entry.
func (c *AnalysisCache) Flush() {
	c.cache.Flush()
}
