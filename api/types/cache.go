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

package types

// Cache is the key-value store used by the builtin result-cache advice.
// Implementations must be safe for concurrent use.
type Cache interface {
	// Set stores a value under key with an optional ttl such as "10m".
	// An empty ttl means the entry never expires.
	Set(key string, value interface{}, ttl string) error
	// Get returns the value for key, or nil if absent or expired.
	Get(key string) interface{}
	// Has reports whether key exists and has not expired.
	Has(key string) bool
	// Delete removes key.
	Delete(key string) error
	// DeleteByPrefix removes every key with the given prefix.
	DeleteByPrefix(prefix string) error
}
