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

package aspect

import (
	"fmt"

	"github.com/weavego/weave/api/types"
	"github.com/weavego/weave/utils/cache"
)

// keyPrefix namespaces result-cache entries in a shared cache instance.
const keyPrefix = "result:"

// ResultCache memoizes successful results of the operations it is bound
// to. On a hit the Around body returns the cached value without calling
// proceed, so inner advice and the target implementation are skipped.
// Failures and nil results are never cached; both always recompute.
type ResultCache struct {
	cache types.Cache
	ttl   string
}

// NewResultCache creates a result cache backed by c, falling back to an
// in-memory cache when c is nil. ttl is a duration string such as "10m";
// empty entries never expire.
func NewResultCache(c types.Cache, ttl string) *ResultCache {
	if c == nil {
		c = cache.NewMemoryCache(0)
	}
	return &ResultCache{cache: c, ttl: ttl}
}

// Aspect builds the caching aspect for the operations matched by selector.
// Order 30 nests it inside limiter and metrics, so a cache hit still counts
// in the metrics but never occupies the target.
func (a *ResultCache) Aspect(selector string) *types.Aspect {
	return types.NewAspect("resultCache").
		Around(selector, 30, a.around)
}

// Invalidate drops every cached result for the given operation name.
func (a *ResultCache) Invalidate(operation string) error {
	return a.cache.DeleteByPrefix(keyPrefix + operation)
}

func (a *ResultCache) around(inv *types.Invocation) (interface{}, error) {
	key := cacheKey(inv)
	// A single read: an entry may expire between a Has and a Get, and a
	// vanished entry must proceed, never serve nil. Nil results are
	// therefore indistinguishable from misses and are never cached.
	if v := a.cache.Get(key); v != nil {
		return v, nil
	}
	v, err := inv.Proceed()
	if err != nil {
		return nil, err
	}
	if v != nil {
		_ = a.cache.Set(key, v, a.ttl)
	}
	return v, nil
}

// cacheKey fingerprints the call as operation key plus argument values.
func cacheKey(inv *types.Invocation) string {
	return fmt.Sprintf("%s%s%v", keyPrefix, inv.Descriptor.Key(), inv.Args)
}
