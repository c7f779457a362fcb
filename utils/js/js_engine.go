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

// Package js executes JavaScript advice bodies using the goja library.
// Programs are precompiled once and run in pooled VMs; global properties
// and user-defined Go functions from the configuration are exposed to the
// script.
package js

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dop251/goja"

	"github.com/weavego/weave/api/types"
)

const (
	// GlobalKey is the object name the configuration properties are
	// exposed under; scripts access them as global.xx.
	GlobalKey = "global"

	funcName = "__advice"
)

// Engine compiles one script and executes it against invocations. The
// script text is the body of a function with a single parameter `inv`.
type Engine struct {
	config  types.Config
	program *goja.Program
	vmPool  sync.Pool
}

// NewEngine precompiles the script. Compilation errors surface here,
// never at call time.
func NewEngine(config types.Config, script string) (*Engine, error) {
	src := "function " + funcName + "(inv) {\n" + script + "\n}"
	program, err := goja.Compile("", src, true)
	if err != nil {
		return nil, fmt.Errorf("script compile: %w", err)
	}
	e := &Engine{config: config, program: program}
	e.vmPool.New = func() interface{} {
		vm, err := e.newVm()
		if err != nil {
			return err
		}
		return vm
	}
	return e, nil
}

func (e *Engine) newVm() (*goja.Runtime, error) {
	vm := goja.New()
	global := make(map[string]interface{}, len(e.config.Properties))
	for k, v := range e.config.Properties {
		global[k] = v
	}
	if err := vm.Set(GlobalKey, global); err != nil {
		return nil, err
	}
	for name, f := range e.config.Udf {
		if err := vm.Set(name, f); err != nil {
			return nil, err
		}
	}
	if _, err := vm.RunProgram(e.program); err != nil {
		return nil, err
	}
	return vm, nil
}

// Execute runs the script with the given invocation view and returns its
// exported result. Execution is bounded by ScriptMaxExecutionTime; an
// interrupted run returns an error.
func (e *Engine) Execute(inv interface{}) (interface{}, error) {
	pooled := e.vmPool.Get()
	if err, ok := pooled.(error); ok {
		return nil, err
	}
	vm := pooled.(*goja.Runtime)
	defer e.vmPool.Put(vm)

	fn, ok := goja.AssertFunction(vm.Get(funcName))
	if !ok {
		return nil, errors.New("script advice function missing")
	}

	timeout := e.config.ScriptMaxExecutionTime
	if timeout <= 0 {
		timeout = time.Millisecond * 2000
	}
	timer := time.AfterFunc(timeout, func() {
		vm.Interrupt("execution timeout")
	})
	defer func() {
		timer.Stop()
		vm.ClearInterrupt()
	}()

	res, err := fn(goja.Undefined(), vm.ToValue(inv))
	if err != nil {
		return nil, err
	}
	if res == nil || goja.IsUndefined(res) || goja.IsNull(res) {
		return nil, nil
	}
	return res.Export(), nil
}
