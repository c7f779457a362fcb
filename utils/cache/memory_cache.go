/*
 * Copyright 2024 The Weave Authors.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package cache provides the in-memory TTL cache backing the builtin
// result-cache advice.
package cache

import (
	"strings"
	"sync"
	"time"

	"github.com/weavego/weave/api/types"
)

// MemoryCache is an in-memory cache with optional per-entry expiration.
// Expired entries are collected by a lazy GC goroutine that starts with
// the first expirable entry and stops when none remain.
type MemoryCache struct {
	items      map[string]item
	mu         sync.RWMutex
	gcInterval time.Duration
	ticker     *time.Ticker
	stopGc     chan struct{}
}

type item struct {
	value      interface{}
	expiration int64 // unix nanos, 0 = never expires
}

var _ types.Cache = (*MemoryCache)(nil)

// NewMemoryCache creates a cache whose GC runs at the given interval;
// a non-positive interval defaults to five minutes.
func NewMemoryCache(gcInterval time.Duration) *MemoryCache {
	if gcInterval <= 0 {
		gcInterval = time.Minute * 5
	}
	return &MemoryCache{
		items:      make(map[string]item),
		gcInterval: gcInterval,
	}
}

// Set stores value under key. ttl is a duration string such as "10m";
// empty means the entry never expires.
func (c *MemoryCache) Set(key string, value interface{}, ttl string) error {
	var expiration int64
	if ttl != "" {
		dur, err := time.ParseDuration(ttl)
		if err != nil {
			return err
		}
		if dur > 0 {
			expiration = time.Now().Add(dur).UnixNano()
		}
	}

	c.mu.Lock()
	c.items[key] = item{value: value, expiration: expiration}
	startGC := expiration > 0 && c.ticker == nil
	c.mu.Unlock()

	if startGC {
		c.startGC()
	}
	return nil
}

// Get returns the value for key, or nil if absent or expired.
func (c *MemoryCache) Get(key string) interface{} {
	c.mu.RLock()
	defer c.mu.RUnlock()
	it, found := c.items[key]
	if !found || expired(it, time.Now().UnixNano()) {
		return nil
	}
	return it.value
}

// Has reports whether key exists and has not expired.
func (c *MemoryCache) Has(key string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	it, found := c.items[key]
	return found && !expired(it, time.Now().UnixNano())
}

// Delete removes key.
func (c *MemoryCache) Delete(key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.items, key)
	return nil
}

// DeleteByPrefix removes every entry whose key has the given prefix.
func (c *MemoryCache) DeleteByPrefix(prefix string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for k := range c.items {
		if strings.HasPrefix(k, prefix) {
			delete(c.items, k)
		}
	}
	return nil
}

// Stop terminates the GC goroutine if it is running.
func (c *MemoryCache) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ticker != nil {
		close(c.stopGc)
		c.ticker = nil
	}
}

func expired(it item, now int64) bool {
	return it.expiration > 0 && now > it.expiration
}

func (c *MemoryCache) startGC() {
	c.mu.Lock()
	if c.ticker != nil {
		c.mu.Unlock()
		return
	}
	c.ticker = time.NewTicker(c.gcInterval)
	c.stopGc = make(chan struct{})
	ticker := c.ticker
	stop := c.stopGc
	c.mu.Unlock()

	go func() {
		for {
			select {
			case <-ticker.C:
				if !c.deleteExpired() {
					ticker.Stop()
					c.mu.Lock()
					if c.ticker == ticker {
						c.ticker = nil
					}
					c.mu.Unlock()
					return
				}
			case <-stop:
				ticker.Stop()
				return
			}
		}
	}()
}

// deleteExpired removes expired entries and reports whether any expirable
// entries remain.
func (c *MemoryCache) deleteExpired() bool {
	now := time.Now().UnixNano()
	c.mu.Lock()
	defer c.mu.Unlock()
	remaining := false
	for k, it := range c.items {
		if expired(it, now) {
			delete(c.items, k)
		} else if it.expiration > 0 {
			remaining = true
		}
	}
	return remaining
}
