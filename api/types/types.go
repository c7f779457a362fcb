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

// Package types defines the public contracts of the weave interception
// engine: operation descriptors, selectors, advice kinds and bodies,
// aspects, and the per-call invocation context.
//
// Package types 定义 weave 拦截引擎的公共契约：
// 操作描述符、选择器、增强类型和增强体、切面，以及每次调用的调用上下文。
//
// The engine provides an AOP (Aspect Oriented Programming) mechanism. It is
// similar to an interceptor or hook mechanism, but more powerful and flexible.
//
//   - It allows adding extra behavior to selected operations of a target
//     without modifying the target's original logic.
//   - It allows separating common behaviors (such as logging, security checks,
//     rate limiting, result caching) from the business logic.
//
// 该引擎提供 AOP（面向切面编程）机制，类似拦截器或者 hook 机制，但是功能更加强大和灵活。
//
//   - 它允许在不修改目标原有逻辑的情况下，对目标的指定操作添加额外的行为。
//   - 它允许把一些公共的行为（例如：日志、安全检查、限流、结果缓存）从业务逻辑中分离出来。
package types

import (
	"fmt"
	"strings"
)

// AdviceKind identifies where an advice body runs relative to the
// intercepted operation.
// AdviceKind 标识增强体相对于被拦截操作的执行位置。
type AdviceKind string

const (
	// KindBefore runs before the operation. A non-nil error aborts the call.
	// KindBefore 在操作之前执行。返回非 nil 错误会中止调用。
	KindBefore AdviceKind = "BEFORE"
	// KindAfter always runs after the operation, on success and on failure.
	// KindAfter 总是在操作之后执行，无论成功还是失败。
	KindAfter AdviceKind = "AFTER"
	// KindAfterSuccess runs after the operation only when it succeeded.
	// KindAfterSuccess 仅在操作成功后执行。
	KindAfterSuccess AdviceKind = "AFTER_SUCCESS"
	// KindAfterFailure runs after the operation only when it failed, and may
	// suppress or replace the failure.
	// KindAfterFailure 仅在操作失败后执行，并且可以抑制或替换该失败。
	KindAfterFailure AdviceKind = "AFTER_FAILURE"
	// KindAround wraps the remainder of the chain and controls whether it
	// runs at all via Invocation.Proceed.
	// KindAround 环绕链的剩余部分，并通过 Invocation.Proceed 控制其是否执行。
	KindAround AdviceKind = "AROUND"
)

// Flow type constants used by debug callbacks.
const (
	In  = "IN"
	Out = "OUT"
)

// OperationDescriptor identifies one interceptable operation of a target.
// It is an immutable value: descriptors are introspected once at wrap time
// and reused for every call.
//
// OperationDescriptor 标识目标的一个可拦截操作。
// 它是不可变的值：描述符在包装时内省一次，之后每次调用复用。
type OperationDescriptor struct {
	// Name is the qualified operation name, segments joined with dots,
	// e.g. "UserService.FindUser".
	Name string
	// DeclaringType is the qualified name of the type declaring the operation.
	DeclaringType string
	// ParamTypes lists the parameter type names in declaration order.
	ParamTypes []string
	// ReturnType is the primary return type name, empty for none.
	ReturnType string
	// Markers is the set of tags attached to the operation.
	Markers []string
}

// Key returns a stable identity for the descriptor, used as the chain
// cache key.
func (d OperationDescriptor) Key() string {
	return d.Name + "(" + strings.Join(d.ParamTypes, ",") + ")"
}

// HasMarker reports whether the marker set contains tag.
func (d OperationDescriptor) HasMarker(tag string) bool {
	for _, m := range d.Markers {
		if m == tag {
			return true
		}
	}
	return false
}

// Copy returns a deep copy of the descriptor.
func (d OperationDescriptor) Copy() OperationDescriptor {
	c := d
	if d.ParamTypes != nil {
		c.ParamTypes = append([]string(nil), d.ParamTypes...)
	}
	if d.Markers != nil {
		c.Markers = append([]string(nil), d.Markers...)
	}
	return c
}

// Selector is a predicate over operation descriptors. Implementations must
// be pure: Matches never mutates state and is deterministic for a given
// descriptor.
//
// Selector 是操作描述符上的谓词。实现必须是纯函数：
// Matches 不得修改状态，并且对同一描述符的结果是确定的。
type Selector interface {
	Matches(desc OperationDescriptor) bool
	String() string
}

// Advice body signatures. The chain builder dispatches on the binding kind;
// a body whose type does not match its kind is rejected at registration.
type (
	// BeforeFunc runs before the operation. Returning a non-nil error aborts
	// the call; the error reaches the caller wrapped as *AdviceError.
	BeforeFunc func(inv *Invocation) error

	// AfterFunc always runs after the operation. The invocation carries the
	// result or the failure of the inner chain.
	AfterFunc func(inv *Invocation)

	// AfterSuccessFunc runs only on the success path.
	AfterSuccessFunc func(inv *Invocation, result interface{})

	// AfterFailureFunc runs only on the failure path. Returning (v, nil)
	// suppresses the failure and substitutes v as the call result. Returning
	// an error, the one it was given or a replacement, keeps propagating.
	AfterFailureFunc func(inv *Invocation, err error) (interface{}, error)

	// AroundFunc wraps the remainder of the chain. It may call
	// Invocation.Proceed zero or more times; if it never proceeds, the inner
	// advice and the terminal implementation are skipped and its return
	// value becomes the call result.
	AroundFunc func(inv *Invocation) (interface{}, error)
)

// AdviceBinding couples a selector expression with an advice kind, an
// ordering priority and a body. Lower Order runs earlier for Before-style
// advice and, by chain nesting, later for After-style advice.
//
// AdviceBinding 将选择器表达式与增强类型、排序优先级和增强体绑定在一起。
// Order 越小，Before 类增强越先执行；由于链的嵌套结构，After 类增强则越后执行。
type AdviceBinding struct {
	Kind     AdviceKind
	Selector string
	Order    int
	Body     interface{}
}

// Validate checks that the body type matches the advice kind. Selector
// syntax is checked separately at registration.
func (b AdviceBinding) Validate() error {
	var ok bool
	switch b.Kind {
	case KindBefore:
		_, ok = b.Body.(BeforeFunc)
	case KindAfter:
		_, ok = b.Body.(AfterFunc)
	case KindAfterSuccess:
		_, ok = b.Body.(AfterSuccessFunc)
	case KindAfterFailure:
		_, ok = b.Body.(AfterFailureFunc)
	case KindAround:
		_, ok = b.Body.(AroundFunc)
	default:
		return fmt.Errorf("%w: unknown advice kind %q", ErrInvalidAdviceBody, b.Kind)
	}
	if !ok {
		return fmt.Errorf("%w: kind %s got %T", ErrInvalidAdviceBody, b.Kind, b.Body)
	}
	return nil
}

// Aspect is a named, ordered bundle of advice bindings registered as a
// unit. All bindings of an aspect share its Priority relative to other
// aspects; within an aspect, binding Order and declaration order decide.
//
// Aspect 是一个命名的、有序的增强绑定集合，作为一个整体注册。
// 切面内的所有绑定共享其相对于其他切面的 Priority；
// 切面内部由绑定的 Order 和声明顺序决定先后。
type Aspect struct {
	Name     string
	Priority int
	Advice   []AdviceBinding
}

// NewAspect creates an empty aspect with the given name.
func NewAspect(name string) *Aspect {
	return &Aspect{Name: name}
}

// WithPriority sets the aspect's relative priority versus other aspects.
// Lower values run earlier for Before-style advice.
func (a *Aspect) WithPriority(priority int) *Aspect {
	a.Priority = priority
	return a
}

// Before appends a Before binding.
func (a *Aspect) Before(selector string, order int, fn BeforeFunc) *Aspect {
	return a.bind(KindBefore, selector, order, fn)
}

// After appends an After binding.
func (a *Aspect) After(selector string, order int, fn AfterFunc) *Aspect {
	return a.bind(KindAfter, selector, order, fn)
}

// AfterSuccess appends an AfterSuccess binding.
func (a *Aspect) AfterSuccess(selector string, order int, fn AfterSuccessFunc) *Aspect {
	return a.bind(KindAfterSuccess, selector, order, fn)
}

// AfterFailure appends an AfterFailure binding.
func (a *Aspect) AfterFailure(selector string, order int, fn AfterFailureFunc) *Aspect {
	return a.bind(KindAfterFailure, selector, order, fn)
}

// Around appends an Around binding.
func (a *Aspect) Around(selector string, order int, fn AroundFunc) *Aspect {
	return a.bind(KindAround, selector, order, fn)
}

func (a *Aspect) bind(kind AdviceKind, selector string, order int, body interface{}) *Aspect {
	a.Advice = append(a.Advice, AdviceBinding{
		Kind:     kind,
		Selector: selector,
		Order:    order,
		Body:     body,
	})
	return a
}

// Copy returns a deep copy of the aspect definition. Bodies are shared;
// they are immutable by contract.
func (a *Aspect) Copy() *Aspect {
	c := &Aspect{Name: a.Name, Priority: a.Priority}
	c.Advice = append([]AdviceBinding(nil), a.Advice...)
	return c
}
