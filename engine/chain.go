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
	"github.com/weavego/weave/api/types"
)

// Handler is one composed link of an interception chain. The terminal
// handler invokes the real implementation; every other link wraps the next
// one. The invocation's result-or-failure slot is kept authoritative: each
// link records what it returns.
type Handler func(inv *types.Invocation) (interface{}, error)

// Chain is the cached, ordered sequence of applicable advice bindings for
// one operation descriptor, composed into a single nested handler with a
// terminal link to the real implementation. Built once per descriptor and
// reused for every call until the registry changes.
//
// Chain 是针对一个操作描述符缓存的、按序排列的适用增强绑定序列，
// 组合为一个嵌套的处理函数，末端链接到真实实现。
// 每个描述符只构建一次，注册表变化前每次调用都复用。
type Chain struct {
	descriptor types.OperationDescriptor
	bindings   []*Binding
	handler    Handler
	version    uint64
}

// buildChain filters the snapshot's bindings through their selectors,
// relies on the snapshot's stable ordering, and composes the survivors
// around the terminal link by a reverse fold: the earliest binding becomes
// the outermost link. The chain is target-agnostic; the real implementation
// is bound per call on the invocation.
func buildChain(snap *registrySnapshot, desc types.OperationDescriptor) *Chain {
	var matched []*Binding
	for _, b := range snap.bindings {
		if b.Matches(desc) {
			matched = append(matched, b)
		}
	}
	h := Handler(terminalLink)
	for i := len(matched) - 1; i >= 0; i-- {
		h = wrapBinding(matched[i], h)
	}
	return &Chain{
		descriptor: desc,
		bindings:   matched,
		handler:    h,
		version:    snap.version,
	}
}

// Descriptor returns the operation descriptor the chain was built for.
func (c *Chain) Descriptor() types.OperationDescriptor {
	return c.descriptor
}

// Bindings returns the ordered applicable bindings, outermost first.
func (c *Chain) Bindings() []*Binding {
	return append([]*Binding(nil), c.bindings...)
}

// Call runs one invocation through the chain. terminal invokes the real
// implementation; it travels with the call rather than with the cached
// chain, so two targets of the same type never share one implementation.
func (c *Chain) Call(inv *types.Invocation, terminal Handler) (interface{}, error) {
	inv.BindTerminal(terminal)
	return c.handler(inv)
}

// terminalLink invokes the call's bound real implementation and records its
// outcome on the invocation so After-style bodies observe it there.
func terminalLink(inv *types.Invocation) (interface{}, error) {
	v, err := inv.CallTerminal()
	if err != nil {
		inv.SetError(err)
		return nil, err
	}
	inv.SetResult(v)
	return v, nil
}

// wrapBinding nests one binding around the rest of the chain. Before,
// After, AfterSuccess and AfterFailure are degenerate Around links that
// unconditionally continue and run their body at the right point.
func wrapBinding(b *Binding, next Handler) Handler {
	switch b.kind {
	case types.KindAround:
		return wrapAround(b, next)
	case types.KindBefore:
		return wrapBefore(b, next)
	case types.KindAfter:
		return wrapAfter(b, next)
	case types.KindAfterSuccess:
		return wrapAfterSuccess(b, next)
	case types.KindAfterFailure:
		return wrapAfterFailure(b, next)
	default:
		// Unreachable: kinds are validated at registration.
		return next
	}
}

func wrapAround(b *Binding, next Handler) Handler {
	body := b.body.(types.AroundFunc)
	return func(inv *types.Invocation) (interface{}, error) {
		prev := inv.PushProceed(func() (interface{}, error) {
			return next(inv)
		})
		v, err := body(inv)
		inv.PopProceed(prev)
		if err != nil {
			// An error the body merely propagated from proceed keeps its
			// identity; an error the body raised itself is an advice failure.
			if err != inv.Err() {
				err = adviceError(b, inv, err)
			}
			inv.SetError(err)
			return nil, err
		}
		inv.SetResult(v)
		return v, nil
	}
}

func wrapBefore(b *Binding, next Handler) Handler {
	body := b.body.(types.BeforeFunc)
	return func(inv *types.Invocation) (interface{}, error) {
		if err := body(inv); err != nil {
			werr := adviceError(b, inv, err)
			inv.SetError(werr)
			return nil, werr
		}
		return next(inv)
	}
}

func wrapAfter(b *Binding, next Handler) Handler {
	body := b.body.(types.AfterFunc)
	return func(inv *types.Invocation) (interface{}, error) {
		v, err := next(inv)
		// Always runs, on success, failure and cancellation alike.
		body(inv)
		return v, err
	}
}

func wrapAfterSuccess(b *Binding, next Handler) Handler {
	body := b.body.(types.AfterSuccessFunc)
	return func(inv *types.Invocation) (interface{}, error) {
		v, err := next(inv)
		if err == nil {
			body(inv, v)
		}
		return v, err
	}
}

func wrapAfterFailure(b *Binding, next Handler) Handler {
	body := b.body.(types.AfterFailureFunc)
	return func(inv *types.Invocation) (interface{}, error) {
		v, err := next(inv)
		if err == nil {
			return v, nil
		}
		// The body gets one chance to observe the failure. Returning
		// (substitute, nil) suppresses it; returning an error, the same or
		// a replacement, keeps propagating.
		sub, nerr := body(inv, err)
		if nerr == nil {
			inv.SetResult(sub)
			return sub, nil
		}
		inv.SetError(nerr)
		return nil, nerr
	}
}

func adviceError(b *Binding, inv *types.Invocation, err error) error {
	if _, ok := err.(*types.AdviceError); ok {
		return err
	}
	return &types.AdviceError{
		AspectName: b.aspectName,
		Kind:       b.kind,
		Operation:  inv.Descriptor.Name,
		Err:        err,
	}
}
