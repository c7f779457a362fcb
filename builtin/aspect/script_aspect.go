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

package aspect

import (
	"fmt"

	"github.com/weavego/weave/api/types"
	"github.com/weavego/weave/utils/js"
)

// NewScriptAdvice compiles a JavaScript advice body for the given kind.
// The script text is the body of a function with parameter `inv`, a plain
// object {id, name, type, args, result, error}; configuration properties
// are reachable as global.xx and registered udf functions by name.
//
// Semantics per kind:
//
//   - BEFORE: a thrown error aborts the call as an advice failure.
//   - AFTER / AFTER_SUCCESS: observe only; a thrown error is reported to
//     the logger and otherwise ignored.
//   - AFTER_FAILURE: a returned non-null value suppresses the failure and
//     becomes the call result; anything else keeps the original failure.
//   - AROUND is not scriptable: proceed is a native capability. Requesting
//     it is a registration-time error.
//
// Compilation happens here, so a broken script fails registration, not a
// live call.
func NewScriptAdvice(config types.Config, kind types.AdviceKind, script string) (interface{}, error) {
	engine, err := js.NewEngine(config, script)
	if err != nil {
		return nil, err
	}
	logger := types.NewLogger(config.Logger)

	switch kind {
	case types.KindBefore:
		return types.BeforeFunc(func(inv *types.Invocation) error {
			_, err := engine.Execute(scriptView(inv, nil))
			return err
		}), nil
	case types.KindAfter:
		return types.AfterFunc(func(inv *types.Invocation) {
			if _, err := engine.Execute(scriptView(inv, inv.Err())); err != nil {
				logger.Printf("script after advice: %s: %v", inv.Descriptor.Name, err)
			}
		}), nil
	case types.KindAfterSuccess:
		return types.AfterSuccessFunc(func(inv *types.Invocation, result interface{}) {
			if _, err := engine.Execute(scriptView(inv, nil)); err != nil {
				logger.Printf("script afterSuccess advice: %s: %v", inv.Descriptor.Name, err)
			}
		}), nil
	case types.KindAfterFailure:
		return types.AfterFailureFunc(func(inv *types.Invocation, cause error) (interface{}, error) {
			v, err := engine.Execute(scriptView(inv, cause))
			if err != nil {
				logger.Printf("script afterFailure advice: %s: %v", inv.Descriptor.Name, err)
				return nil, cause
			}
			if v == nil {
				return nil, cause
			}
			return v, nil
		}), nil
	case types.KindAround:
		return nil, fmt.Errorf("%w: around advice requires a native body", types.ErrInvalidAdviceBody)
	default:
		return nil, fmt.Errorf("%w: unknown advice kind %q", types.ErrInvalidAdviceBody, kind)
	}
}

// scriptView projects an invocation into the plain object scripts receive.
func scriptView(inv *types.Invocation, cause error) map[string]interface{} {
	view := map[string]interface{}{
		"id":     inv.ID(),
		"name":   inv.Descriptor.Name,
		"type":   inv.Descriptor.DeclaringType,
		"args":   inv.Args,
		"result": inv.Result(),
	}
	if cause != nil {
		view["error"] = cause.Error()
	}
	return view
}
