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

// Package weave is a method-interception weaving engine: it attaches
// cross-cutting behavior (logging, metrics, caching, security checks) to
// selected operations of a target without modifying the target's source.
//
// Package weave 是一个方法拦截织入引擎：在不修改目标源码的情况下，
// 把横切行为（日志、指标、缓存、安全检查）附加到目标的指定操作上。
//
// A weaver is an explicit handle; there is no ambient process-wide
// instance. Typical usage:
//
//	w := weave.New()
//	_ = w.Register(weave.NewAspect("logging").
//		Before(`exec("*Service.*") AND NOT marker("internal")`, 0,
//			func(inv *types.Invocation) error {
//				log.Printf("enter %s", inv.Descriptor.Name)
//				return nil
//			}))
//
//	proxy, _ := w.WrapTarget(&UserService{})
//	user, err := proxy.Call("FindUser", "u-1")
//
// Wrapping evaluates selectors once per distinct operation and caches the
// composed interception chain; live calls walk the cached chain. Mutating
// the registry invalidates every cached chain atomically.
//
// Self-invocation inside a wrapped target bypasses the proxy and therefore
// the advice chain. This is an inherent property of proxy-based
// interception and is deliberately preserved.
package weave

import (
	"github.com/weavego/weave/api/types"
	"github.com/weavego/weave/engine"
)

// Weaver is the engine handle produced by New.
type Weaver = engine.Weaver

// AspectDefinition is the declarative aspect form accepted by
// Weaver.RegisterDefinition.
type AspectDefinition = engine.AspectDefinition

// New creates a weaver with an empty advice registry.
func New(opts ...types.Option) *Weaver {
	return engine.NewWeaver(types.NewConfig(opts...))
}

// NewAspect creates an empty named aspect.
func NewAspect(name string) *types.Aspect {
	return types.NewAspect(name)
}

// ParseAspectDefinition decodes a JSON aspect definition.
func ParseAspectDefinition(data []byte) (*AspectDefinition, error) {
	return engine.ParseAspectDefinition(data)
}
