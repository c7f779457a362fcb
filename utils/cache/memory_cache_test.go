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

package cache

import (
	"testing"
	"time"

	"github.com/weavego/weave/test/assert"
)

func TestMemoryCacheBasics(t *testing.T) {
	c := NewMemoryCache(0)
	defer c.Stop()

	assert.Nil(t, c.Set("k1", "v1", ""))
	assert.True(t, c.Has("k1"))
	assert.Equal(t, "v1", c.Get("k1"))

	assert.False(t, c.Has("missing"))
	assert.Nil(t, c.Get("missing"))

	assert.Nil(t, c.Delete("k1"))
	assert.False(t, c.Has("k1"))
}

func TestMemoryCacheTTL(t *testing.T) {
	c := NewMemoryCache(time.Millisecond * 10)
	defer c.Stop()

	assert.Nil(t, c.Set("short", "v", "20ms"))
	assert.Nil(t, c.Set("keep", "v", ""))
	assert.True(t, c.Has("short"))

	time.Sleep(time.Millisecond * 50)
	// The expired entry is invisible even before GC collects it.
	assert.False(t, c.Has("short"))
	assert.Nil(t, c.Get("short"))
	assert.True(t, c.Has("keep"))
}

func TestMemoryCacheInvalidTTL(t *testing.T) {
	c := NewMemoryCache(0)
	defer c.Stop()

	assert.NotNil(t, c.Set("k", "v", "not a duration"))
	assert.False(t, c.Has("k"))
}

func TestMemoryCacheDeleteByPrefix(t *testing.T) {
	c := NewMemoryCache(0)
	defer c.Stop()

	assert.Nil(t, c.Set("result:Orders.Place[a]", 1, ""))
	assert.Nil(t, c.Set("result:Orders.Place[b]", 2, ""))
	assert.Nil(t, c.Set("result:Orders.Cancel[a]", 3, ""))

	assert.Nil(t, c.DeleteByPrefix("result:Orders.Place"))
	assert.False(t, c.Has("result:Orders.Place[a]"))
	assert.False(t, c.Has("result:Orders.Place[b]"))
	assert.True(t, c.Has("result:Orders.Cancel[a]"))
}

func TestMemoryCacheGCCollectsExpired(t *testing.T) {
	c := NewMemoryCache(time.Millisecond * 5)
	defer c.Stop()

	assert.Nil(t, c.Set("gone", "v", "1ms"))
	time.Sleep(time.Millisecond * 30)

	c.mu.RLock()
	_, found := c.items["gone"]
	c.mu.RUnlock()
	assert.False(t, found)
}
