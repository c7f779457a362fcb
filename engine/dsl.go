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
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mitchellh/mapstructure"

	"github.com/weavego/weave/api/types"
	"github.com/weavego/weave/builtin/aspect"
)

// AspectDefinition is the declarative form of an aspect: a named bundle of
// advice whose bodies are JavaScript. There is no implicit discovery
// mechanism; a definition is an explicit registration call carrying
// selector expression text plus a body.
//
// AspectDefinition 是切面的声明式形式：一个命名的增强集合，
// 其增强体为 JavaScript。不存在隐式发现机制；
// 一个定义就是一次显式注册调用，携带选择器表达式文本和增强体。
type AspectDefinition struct {
	// Name is the aspect name, unique per registry.
	Name string `json:"name"`
	// Priority is the aspect's relative priority versus other aspects.
	Priority int `json:"priority"`
	// Advice lists the advice definitions in declaration order.
	Advice []AdviceDefinition `json:"advice"`
}

// AdviceDefinition declares one advice binding.
type AdviceDefinition struct {
	// Kind is the advice kind, case-insensitive: before, after,
	// afterSuccess, afterFailure.
	Kind string `json:"kind"`
	// Selector is the selector expression text.
	Selector string `json:"selector"`
	// Order is the binding's numeric priority within the aspect.
	Order int `json:"order"`
	// Script is the JavaScript body, a function body with parameter `inv`.
	Script string `json:"script"`
}

// ParseAspectDefinition decodes a JSON aspect definition.
func ParseAspectDefinition(data []byte) (*AspectDefinition, error) {
	var def AspectDefinition
	if err := json.Unmarshal(data, &def); err != nil {
		return nil, fmt.Errorf("aspect definition: %w", err)
	}
	return &def, nil
}

// DecodeAspectDefinition decodes an aspect definition from an untyped map,
// as produced by configuration loaders.
func DecodeAspectDefinition(input interface{}) (*AspectDefinition, error) {
	var def AspectDefinition
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &def,
		TagName:          "json",
		WeaklyTypedInput: true,
	})
	if err != nil {
		return nil, err
	}
	if err := decoder.Decode(input); err != nil {
		return nil, fmt.Errorf("aspect definition: %w", err)
	}
	return &def, nil
}

// RegisterDefinition compiles a declarative aspect and registers it.
// Script compilation, selector parsing and kind validation all happen
// here; a broken definition never reaches call time.
func (w *Weaver) RegisterDefinition(def *AspectDefinition) error {
	if def == nil {
		return fmt.Errorf("nil aspect definition")
	}
	built := types.NewAspect(def.Name).WithPriority(def.Priority)
	for i, ad := range def.Advice {
		kind, err := adviceKind(ad.Kind)
		if err != nil {
			return fmt.Errorf("aspect %s advice[%d]: %w", def.Name, i, err)
		}
		body, err := aspect.NewScriptAdvice(w.Config, kind, ad.Script)
		if err != nil {
			return fmt.Errorf("aspect %s advice[%d]: %w", def.Name, i, err)
		}
		built.Advice = append(built.Advice, types.AdviceBinding{
			Kind:     kind,
			Selector: ad.Selector,
			Order:    ad.Order,
			Body:     body,
		})
	}
	return w.Register(built)
}

func adviceKind(kind string) (types.AdviceKind, error) {
	switch strings.ToUpper(strings.ReplaceAll(kind, "_", "")) {
	case "BEFORE":
		return types.KindBefore, nil
	case "AFTER":
		return types.KindAfter, nil
	case "AFTERSUCCESS":
		return types.KindAfterSuccess, nil
	case "AFTERFAILURE":
		return types.KindAfterFailure, nil
	case "AROUND":
		return types.KindAround, nil
	default:
		return "", fmt.Errorf("%w: unknown advice kind %q", types.ErrInvalidAdviceBody, kind)
	}
}
