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

// Package engine implements the core of the weave interception engine:
// the advice registry, the interception chain builder with its cache, and
// the proxy/wrapper factory.
//
// Package engine 实现 weave 拦截引擎的核心：
// 增强注册表、带缓存的拦截链构建器，以及代理/包装器工厂。
//
// Control flow: selectors are evaluated once per distinct target operation
// at wrap time to build a cached chain; each live call then walks the
// cached chain. The registry feeds the chain builder, the chain builder
// feeds the proxy factory, and the proxy is what callers actually invoke.
//
// 控制流：选择器在包装时对每个不同的目标操作求值一次以构建缓存链；
// 之后每次实际调用都沿缓存链执行。注册表驱动链构建器，
// 链构建器驱动代理工厂，调用方实际调用的是代理。
package engine

import (
	"sync"

	"github.com/weavego/weave/api/types"
)

// Weaver owns an advice registry and the chains derived from it. It is the
// single explicit handle callers use; there is no ambient process-wide
// instance.
//
// Thread safety: concurrent calls read chains lock-free from the cache;
// registering or unregistering an aspect is serialized and atomically
// publishes a new ordering, so a concurrent caller observes either the
// fully-old or the fully-new chain, never a partial rebuild.
//
// Weaver 持有一个增强注册表以及由它派生的链。它是调用方使用的唯一
// 显式句柄；不存在进程级的隐式实例。
//
// 线程安全：并发调用从缓存中无锁读取链；注册或注销切面是串行化的，
// 并原子地发布新的排序，因此并发调用方看到的要么是完全旧的链，
// 要么是完全新的链，绝不会是部分重建的链。
type Weaver struct {
	// Config holds the weaver configuration.
	Config types.Config

	registry *Registry

	mu     sync.RWMutex
	chains map[string]*Chain
}

// NewWeaver creates a weaver with an empty registry.
func NewWeaver(config types.Config) *Weaver {
	return &Weaver{
		Config:   config,
		registry: NewRegistry(),
		chains:   make(map[string]*Chain),
	}
}

// Registry returns the weaver's advice registry for inspection.
func (w *Weaver) Registry() *Registry {
	return w.registry
}

// Register adds an aspect. Every chain cached so far is invalidated;
// chains rebuild lazily on the next call of their operation.
func (w *Weaver) Register(aspect *types.Aspect) error {
	return w.registry.Register(aspect)
}

// Unregister removes an aspect, invalidating cached chains the same way.
func (w *Weaver) Unregister(name string) error {
	return w.registry.Unregister(name)
}

// ChainFor returns the cached chain for the descriptor, building it if
// absent or stale. Chains carry only the composed advice sequence; the
// terminal handler is supplied per call, so every proxy of the same type
// reaches its own implementation through the shared chain.
func (w *Weaver) ChainFor(desc types.OperationDescriptor) *Chain {
	snap := w.registry.load()
	key := desc.Key()

	w.mu.RLock()
	chain, ok := w.chains[key]
	w.mu.RUnlock()
	if ok && chain.version == snap.version {
		return chain
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	// Re-check under the write lock; another goroutine may have rebuilt.
	snap = w.registry.load()
	if chain, ok = w.chains[key]; ok && chain.version == snap.version {
		return chain
	}
	chain = buildChain(snap, desc)
	w.chains[key] = chain
	return chain
}

// Invoke routes one call for the descriptor through its chain, ending at
// terminal, the caller's link to the real implementation.
func (w *Weaver) Invoke(desc types.OperationDescriptor, target interface{}, args []interface{}, terminal Handler) (interface{}, error) {
	chain := w.ChainFor(desc)
	inv := types.NewInvocation(desc, target, args)
	return chain.Call(inv, terminal)
}

// Stop tears the weaver down, dropping every cached chain. The registry
// content is kept; the weaver may be used again afterwards.
func (w *Weaver) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.chains = make(map[string]*Chain)
}
