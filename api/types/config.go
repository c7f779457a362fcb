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
	"time"
)

// Config defines the configuration for a weaver instance.
type Config struct {
	// OnDebug is a callback for the builtin debug aspect.
	// - flowType: In when a call enters the chain, Out when it leaves.
	// - operation: the qualified name of the intercepted operation.
	// - inv: the current invocation.
	// - err: error information, if any.
	// The engine core never calls it; only registered advice does.
	OnDebug func(flowType string, operation string, inv *Invocation, err error)
	// ScriptMaxExecutionTime is the maximum execution time for script advice
	// bodies, defaulting to 2000 milliseconds.
	ScriptMaxExecutionTime time.Duration
	// Logger is the logging interface used by builtin advice, defaulting to
	// DefaultLogger(). The engine core never logs on its own initiative.
	Logger Logger
	// Properties are global properties in key-value format, exposed to
	// script advice bodies as the `global` object.
	Properties map[string]string
	// Udf is a map for registering custom Golang functions that can be
	// called at runtime by script advice bodies.
	Udf map[string]interface{}
	// Cache is the cache instance used by the builtin result-cache advice.
	Cache Cache
}

// RegisterUdf registers a custom function callable from script advice.
func (c *Config) RegisterUdf(name string, value interface{}) {
	if c.Udf == nil {
		c.Udf = make(map[string]interface{})
	}
	c.Udf[name] = value
}

// NewConfig creates a new Config with default values and applies the
// provided options.
func NewConfig(opts ...Option) Config {
	c := &Config{
		ScriptMaxExecutionTime: time.Millisecond * 2000,
		Logger:                 DefaultLogger(),
		Properties:             make(map[string]string),
	}
	for _, opt := range opts {
		_ = opt(c)
	}
	return *c
}
