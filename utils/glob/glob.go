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

// Package glob matches dot-separated qualified names against glob patterns.
// `*` matches any run of characters within one segment; `..` matches any
// number of whole segments, including none.
package glob

import (
	"strings"
)

// deep is the internal token for a `..` gap in a pattern.
const deep = ".."

// Match reports whether the qualified name matches pattern.
//
// Examples:
//
//	Match("*Service.*", "UserService.FindUser")        == true
//	Match("com.example..*Service.*", "com.example.order.OrderService.Get") == true
//	Match("com.example.*", "com.example.a.b")          == false
func Match(pattern, name string) bool {
	if pattern == "" {
		return name == ""
	}
	return match(tokenize(pattern), strings.Split(name, "."))
}

// tokenize splits a pattern into segment tokens, collapsing each `..` gap
// (and any run of them) into a single deep token. `a..b` becomes
// ["a", "..", "b"]; a leading or trailing `..` keeps its gap token.
func tokenize(pattern string) []string {
	parts := strings.Split(pattern, ".")
	tokens := make([]string, 0, len(parts))
	gap := false
	for _, p := range parts {
		if p == "" {
			gap = true
			continue
		}
		if gap {
			tokens = append(tokens, deep)
			gap = false
		}
		tokens = append(tokens, p)
	}
	if gap {
		tokens = append(tokens, deep)
	}
	return tokens
}

func match(tokens []string, segs []string) bool {
	if len(tokens) == 0 {
		return len(segs) == 0
	}
	if tokens[0] == deep {
		// Try consuming zero or more whole segments.
		for i := 0; i <= len(segs); i++ {
			if match(tokens[1:], segs[i:]) {
				return true
			}
		}
		return false
	}
	if len(segs) == 0 {
		return false
	}
	return matchSegment(tokens[0], segs[0]) && match(tokens[1:], segs[1:])
}

// matchSegment matches one segment against a pattern where `*` stands for
// any run of characters. Iterative two-pointer matching with backtracking
// on the last star.
func matchSegment(pattern, s string) bool {
	var pi, si int
	star := -1
	mark := 0
	for si < len(s) {
		switch {
		case pi < len(pattern) && (pattern[pi] == s[si]):
			pi++
			si++
		case pi < len(pattern) && pattern[pi] == '*':
			star = pi
			mark = si
			pi++
		case star >= 0:
			pi = star + 1
			mark++
			si = mark
		default:
			return false
		}
	}
	for pi < len(pattern) && pattern[pi] == '*' {
		pi++
	}
	return pi == len(pattern)
}
