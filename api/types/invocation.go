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

import (
	"errors"

	"github.com/gofrs/uuid/v5"
)

// ProceedFunc continues the remainder of an interception chain and returns
// its result. It is installed by the chain for the duration of an Around
// body and removed afterwards.
type ProceedFunc func() (interface{}, error)

// Invocation is the per-call context passed to advice bodies. It carries
// the operation descriptor, the live arguments, the target, and a mutable
// result-or-failure slot. One invocation is created per call, owned
// exclusively by that call, and never shared across goroutines.
//
// Invocation 是传递给增强体的每次调用上下文。它携带操作描述符、
// 实际参数、目标对象以及一个可变的“结果或失败”槽位。
// 每次调用创建一个 Invocation，由该调用独占，绝不跨协程共享。
type Invocation struct {
	// Descriptor identifies the intercepted operation.
	Descriptor OperationDescriptor
	// Target is the original object the operation belongs to.
	Target interface{}
	// Args are the live argument values. Around advice may replace elements
	// before calling Proceed to modify what the rest of the chain sees.
	Args []interface{}

	id       string
	result   interface{}
	err      error
	proceed  ProceedFunc
	terminal func(inv *Invocation) (interface{}, error)
	values   map[string]interface{}
}

// NewInvocation creates a fresh invocation context for one call.
func NewInvocation(desc OperationDescriptor, target interface{}, args []interface{}) *Invocation {
	id, _ := uuid.NewV4()
	return &Invocation{
		Descriptor: desc,
		Target:     target,
		Args:       args,
		id:         id.String(),
	}
}

// ID returns the unique identifier of this call.
func (inv *Invocation) ID() string {
	return inv.id
}

// Result returns the current content of the result slot.
func (inv *Invocation) Result() interface{} {
	return inv.result
}

// Err returns the current content of the failure slot.
func (inv *Invocation) Err() error {
	return inv.err
}

// SetResult stores a result and clears any recorded failure.
func (inv *Invocation) SetResult(v interface{}) {
	inv.result = v
	inv.err = nil
}

// SetError stores a failure and clears any recorded result.
func (inv *Invocation) SetError(err error) {
	inv.err = err
	inv.result = nil
}

// Proceed continues the remainder of the chain with the current (possibly
// modified) arguments and returns its (possibly modified) result. It is
// only available while an Around body is running; calling it anywhere else
// returns ErrProceedOutsideAround.
//
// Proceed 以当前（可能已修改的）参数继续执行链的剩余部分，
// 并返回其（可能已修改的）结果。它仅在 Around 增强体执行期间可用；
// 在其他位置调用会返回 ErrProceedOutsideAround。
func (inv *Invocation) Proceed() (interface{}, error) {
	if inv.proceed == nil {
		return nil, ErrProceedOutsideAround
	}
	return inv.proceed()
}

// PushProceed installs a proceed continuation and returns the previous one,
// so nested Around links restore it when they unwind. Intended for the
// chain builder, not for advice bodies.
func (inv *Invocation) PushProceed(fn ProceedFunc) ProceedFunc {
	prev := inv.proceed
	inv.proceed = fn
	return prev
}

// PopProceed restores a previously installed proceed continuation.
func (inv *Invocation) PopProceed(prev ProceedFunc) {
	inv.proceed = prev
}

// BindTerminal installs the link that invokes the real implementation for
// this call. The terminal belongs to the proxy that created the call, never
// to the chain: chains are cached per operation and shared by every target
// of the same type. Intended for the chain, not for advice bodies.
func (inv *Invocation) BindTerminal(fn func(inv *Invocation) (interface{}, error)) {
	inv.terminal = fn
}

// CallTerminal invokes the real implementation with the current arguments.
func (inv *Invocation) CallTerminal() (interface{}, error) {
	if inv.terminal == nil {
		return nil, errors.New("no terminal implementation bound")
	}
	return inv.terminal(inv)
}

// Set stores an advice-scoped value on the invocation, e.g. a start
// timestamp recorded before proceed and read afterwards.
func (inv *Invocation) Set(key string, value interface{}) {
	if inv.values == nil {
		inv.values = make(map[string]interface{})
	}
	inv.values[key] = value
}

// Value returns a value stored with Set, or nil.
func (inv *Invocation) Value(key string) interface{} {
	if inv.values == nil {
		return nil
	}
	return inv.values[key]
}
