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

package engine

import (
	"fmt"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/weavego/weave/api/types"
	"github.com/weavego/weave/selector"
)

// Binding is one registered advice binding with its compiled selector and
// its position in the global ordering.
type Binding struct {
	aspectName     string
	aspectPriority int
	kind           types.AdviceKind
	order          int
	seq            int
	selectorText   string
	selector       types.Selector
	body           interface{}
}

// AspectName returns the name of the aspect the binding belongs to.
func (b *Binding) AspectName() string { return b.aspectName }

// Kind returns the advice kind.
func (b *Binding) Kind() types.AdviceKind { return b.kind }

// Order returns the binding's numeric priority within its aspect.
func (b *Binding) Order() int { return b.order }

// Selector returns the selector expression text.
func (b *Binding) Selector() string { return b.selectorText }

// Matches reports whether the binding applies to the descriptor.
func (b *Binding) Matches(desc types.OperationDescriptor) bool {
	return b.selector.Matches(desc)
}

// registrySnapshot is the immutable state published after every mutation.
// Readers load it atomically and see either the fully-old or the fully-new
// ordering, never a partial rebuild.
type registrySnapshot struct {
	version  uint64
	bindings []*Binding
}

// Registry stores ordered advice bindings grouped into named aspects.
//
// Ordering rule: bindings are ordered first by aspect priority, then by
// binding order, then by registration sequence as a stable tie-break.
// Because chains nest, lower values run earlier for Before-style advice
// and later for After-style advice, giving stack-like symmetry.
//
// Registry 以命名切面为单位存储有序的增强绑定。
//
// 排序规则：先按切面优先级，再按绑定顺序，最后按注册序号作为稳定的
// 平局判定。由于链是嵌套结构，数值越小的 Before 类增强越先执行，
// After 类增强越后执行，形成栈式对称。
type Registry struct {
	mu       sync.Mutex
	defs     map[string]*types.Aspect
	bindings map[string][]*Binding
	seq      int
	version  uint64
	snapshot atomic.Value // *registrySnapshot
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	r := &Registry{
		defs:     make(map[string]*types.Aspect),
		bindings: make(map[string][]*Binding),
	}
	r.snapshot.Store(&registrySnapshot{})
	return r
}

// Register validates and adds an aspect. Every binding's selector is parsed
// and its body checked against its kind here; registration-time errors are
// never deferred to call time. Registering a name twice is an error.
func (r *Registry) Register(aspect *types.Aspect) error {
	if aspect == nil || aspect.Name == "" {
		return fmt.Errorf("aspect name must not be empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.defs[aspect.Name]; ok {
		return fmt.Errorf("%w: %s", types.ErrAspectAlreadyExists, aspect.Name)
	}

	// Validate everything before touching registry state, so a failed
	// registration leaves the ordering untouched.
	compiled := make([]*Binding, 0, len(aspect.Advice))
	for i, binding := range aspect.Advice {
		if err := binding.Validate(); err != nil {
			return fmt.Errorf("aspect %s advice[%d]: %w", aspect.Name, i, err)
		}
		sel, err := selector.Parse(binding.Selector)
		if err != nil {
			return fmt.Errorf("aspect %s advice[%d]: %w", aspect.Name, i, err)
		}
		compiled = append(compiled, &Binding{
			aspectName:     aspect.Name,
			aspectPriority: aspect.Priority,
			kind:           binding.Kind,
			order:          binding.Order,
			selectorText:   binding.Selector,
			selector:       sel,
			body:           binding.Body,
		})
	}

	for _, b := range compiled {
		b.seq = r.seq
		r.seq++
	}
	r.defs[aspect.Name] = aspect.Copy()
	r.bindings[aspect.Name] = compiled
	r.publish()
	return nil
}

// Unregister removes a previously registered aspect.
func (r *Registry) Unregister(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.defs[name]; !ok {
		return fmt.Errorf("%w: %s", types.ErrAspectNotFound, name)
	}
	delete(r.defs, name)
	delete(r.bindings, name)
	r.publish()
	return nil
}

// publish rebuilds and atomically swaps the ordered snapshot.
// Callers must hold r.mu.
func (r *Registry) publish() {
	var all []*Binding
	for _, bs := range r.bindings {
		all = append(all, bs...)
	}
	sort.SliceStable(all, func(i, j int) bool {
		if all[i].aspectPriority != all[j].aspectPriority {
			return all[i].aspectPriority < all[j].aspectPriority
		}
		if all[i].order != all[j].order {
			return all[i].order < all[j].order
		}
		return all[i].seq < all[j].seq
	})
	r.version++
	r.snapshot.Store(&registrySnapshot{version: r.version, bindings: all})
}

// load returns the current snapshot without locking.
func (r *Registry) load() *registrySnapshot {
	return r.snapshot.Load().(*registrySnapshot)
}

// Version returns the current registry version. It changes on every
// mutation and drives chain cache invalidation.
func (r *Registry) Version() uint64 {
	return r.load().version
}

// Bindings returns the fully ordered binding sequence.
func (r *Registry) Bindings() []*Binding {
	snap := r.load()
	return append([]*Binding(nil), snap.bindings...)
}

// Aspects returns the names of all registered aspects.
func (r *Registry) Aspects() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	names := make([]string, 0, len(r.defs))
	for name := range r.defs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
