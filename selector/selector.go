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

// Package selector implements pointcut matching over operation descriptors.
//
// A selector is a pure predicate built from primitive matchers, combined
// with AND/OR/NOT:
//
//   - exec("<name-glob>")   matches the qualified operation name
//   - within("<type-glob>") matches the declaring type name
//   - marker("<tag>")       matches the operation's marker set
//   - expr("<expression>")  evaluates an expr-lang program over the
//     descriptor fields {name, type, params, returns, markers}
//
// Selectors are evaluated once per distinct operation at wrap time, never
// per call.
package selector

import (
	"fmt"
	"strings"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"github.com/weavego/weave/api/types"
	"github.com/weavego/weave/utils/glob"
)

// Exec returns a selector matching the qualified operation name against a
// glob pattern (`*` one segment run, `..` any depth).
func Exec(pattern string) types.Selector {
	return &execSelector{pattern: pattern}
}

type execSelector struct {
	pattern string
}

func (s *execSelector) Matches(desc types.OperationDescriptor) bool {
	return glob.Match(s.pattern, desc.Name)
}

func (s *execSelector) String() string {
	return fmt.Sprintf("exec(%q)", s.pattern)
}

// Within returns a selector matching the declaring type name against a
// glob pattern.
func Within(pattern string) types.Selector {
	return &withinSelector{pattern: pattern}
}

type withinSelector struct {
	pattern string
}

func (s *withinSelector) Matches(desc types.OperationDescriptor) bool {
	return glob.Match(s.pattern, desc.DeclaringType)
}

func (s *withinSelector) String() string {
	return fmt.Sprintf("within(%q)", s.pattern)
}

// Marker returns a selector matching operations carrying the given tag.
func Marker(tag string) types.Selector {
	return &markerSelector{tag: tag}
}

type markerSelector struct {
	tag string
}

func (s *markerSelector) Matches(desc types.OperationDescriptor) bool {
	return desc.HasMarker(s.tag)
}

func (s *markerSelector) String() string {
	return fmt.Sprintf("marker(%q)", s.tag)
}

// Expr compiles an expr-lang program over the descriptor environment
// {name, type, params, returns, markers}. Compilation errors are reported
// as ErrMalformedSelector; a runtime evaluation error or a non-boolean
// result counts as no match.
func Expr(source string) (types.Selector, error) {
	program, err := expr.Compile(source, expr.AllowUndefinedVariables())
	if err != nil {
		return nil, fmt.Errorf("%w: expr %q: %v", types.ErrMalformedSelector, source, err)
	}
	return &exprSelector{source: source, program: program}, nil
}

type exprSelector struct {
	source  string
	program *vm.Program
}

func (s *exprSelector) Matches(desc types.OperationDescriptor) bool {
	env := map[string]interface{}{
		"name":    desc.Name,
		"type":    desc.DeclaringType,
		"params":  desc.ParamTypes,
		"returns": desc.ReturnType,
		"markers": desc.Markers,
	}
	v := vm.VM{}
	out, err := v.Run(s.program, env)
	if err != nil {
		return false
	}
	b, ok := out.(bool)
	return ok && b
}

func (s *exprSelector) String() string {
	return fmt.Sprintf("expr(%q)", s.source)
}

// And returns the conjunction of the given selectors. An empty conjunction
// matches everything.
func And(sels ...types.Selector) types.Selector {
	return andSelector(sels)
}

type andSelector []types.Selector

func (s andSelector) Matches(desc types.OperationDescriptor) bool {
	for _, child := range s {
		if !child.Matches(desc) {
			return false
		}
	}
	return true
}

func (s andSelector) String() string {
	return joinSelectors([]types.Selector(s), " AND ")
}

// Or returns the disjunction of the given selectors. An empty disjunction
// matches nothing.
func Or(sels ...types.Selector) types.Selector {
	return orSelector(sels)
}

type orSelector []types.Selector

func (s orSelector) Matches(desc types.OperationDescriptor) bool {
	for _, child := range s {
		if child.Matches(desc) {
			return true
		}
	}
	return false
}

func (s orSelector) String() string {
	return joinSelectors([]types.Selector(s), " OR ")
}

// Not returns the negation of the given selector.
func Not(sel types.Selector) types.Selector {
	return &notSelector{child: sel}
}

type notSelector struct {
	child types.Selector
}

func (s *notSelector) Matches(desc types.OperationDescriptor) bool {
	return !s.child.Matches(desc)
}

func (s *notSelector) String() string {
	return "NOT " + s.child.String()
}

func joinSelectors(sels []types.Selector, sep string) string {
	parts := make([]string, 0, len(sels))
	for _, s := range sels {
		parts = append(parts, s.String())
	}
	return "(" + strings.Join(parts, sep) + ")"
}
