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
	"fmt"
)

var (
	// ErrMalformedSelector is returned at registration time when a selector
	// expression cannot be parsed. Selector errors are never deferred to
	// call time.
	ErrMalformedSelector = errors.New("malformed selector")

	// ErrNonInterceptable is returned at wrap time when a target operation
	// cannot be intercepted by the chosen strategy.
	ErrNonInterceptable = errors.New("operation is not interceptable")

	// ErrInvalidAdviceBody is returned at registration time when an advice
	// body's type does not match its declared kind.
	ErrInvalidAdviceBody = errors.New("invalid advice body")

	// ErrAspectAlreadyExists is returned when registering an aspect whose
	// name is already taken.
	ErrAspectAlreadyExists = errors.New("aspect already exists")

	// ErrAspectNotFound is returned when unregistering an unknown aspect.
	ErrAspectNotFound = errors.New("aspect not found")

	// ErrProceedOutsideAround is returned when Invocation.Proceed is called
	// outside a running Around body.
	ErrProceedOutsideAround = errors.New("proceed is only available to around advice")

	// ErrConcurrencyLimitReached is returned by the builtin limiter advice
	// when the maximum number of concurrent calls is exceeded.
	ErrConcurrencyLimitReached = errors.New("concurrency limit reached")

	// ErrCacheNotInitialized is returned by cache wrappers with no backing
	// cache.
	ErrCacheNotInitialized = errors.New("cache not initialized")
)

// AdviceError reports that an advice body itself raised an unhandled
// failure. It propagates to the original caller unless an AfterFailure or
// Around body suppresses it. Failures raised by the target implementation
// are never wrapped; they propagate unchanged.
//
// AdviceError 表示增强体自身抛出了未处理的失败。除非被 AfterFailure 或
// Around 增强体抑制，否则它会传播给原始调用方。目标实现抛出的失败
// 不会被包装，原样传播。
type AdviceError struct {
	// AspectName is the aspect the failing binding belongs to.
	AspectName string
	// Kind is the advice kind of the failing binding.
	Kind AdviceKind
	// Operation is the qualified name of the intercepted operation.
	Operation string
	// Err is the failure the body raised.
	Err error
}

func (e *AdviceError) Error() string {
	return fmt.Sprintf("advice failure: aspect=%s kind=%s operation=%s: %v",
		e.AspectName, e.Kind, e.Operation, e.Err)
}

func (e *AdviceError) Unwrap() error {
	return e.Err
}
