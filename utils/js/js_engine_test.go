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

package js

import (
	"strings"
	"testing"
	"time"

	"github.com/weavego/weave/api/types"
	"github.com/weavego/weave/test/assert"
)

func TestEngineExecute(t *testing.T) {
	e, err := NewEngine(types.NewConfig(), `return inv.name + "!";`)
	assert.Nil(t, err)

	v, err := e.Execute(map[string]interface{}{"name": "Orders.Place"})
	assert.Nil(t, err)
	assert.Equal(t, "Orders.Place!", v)
}

func TestEngineNullAndUndefined(t *testing.T) {
	for _, script := range []string{"return null;", "return undefined;", ""} {
		e, err := NewEngine(types.NewConfig(), script)
		assert.Nil(t, err)
		v, err := e.Execute(nil)
		assert.Nil(t, err)
		assert.Nil(t, v)
	}
}

func TestEngineCompileError(t *testing.T) {
	_, err := NewEngine(types.NewConfig(), `return (;`)
	assert.NotNil(t, err)
}

func TestEngineThrow(t *testing.T) {
	e, err := NewEngine(types.NewConfig(), `throw new Error('denied');`)
	assert.Nil(t, err)

	_, err = e.Execute(nil)
	assert.NotNil(t, err)
	assert.True(t, strings.Contains(err.Error(), "denied"))
}

func TestEngineGlobalProperties(t *testing.T) {
	config := types.NewConfig(types.WithProperties(map[string]string{
		"env": "staging",
	}))
	e, err := NewEngine(config, `return global.env;`)
	assert.Nil(t, err)

	v, err := e.Execute(nil)
	assert.Nil(t, err)
	assert.Equal(t, "staging", v)
}

func TestEngineUdf(t *testing.T) {
	config := types.NewConfig()
	config.RegisterUdf("double", func(n int64) int64 { return n * 2 })

	e, err := NewEngine(config, `return double(inv.n);`)
	assert.Nil(t, err)

	v, err := e.Execute(map[string]interface{}{"n": 21})
	assert.Nil(t, err)
	assert.Equal(t, int64(42), v)
}

func TestEngineTimeout(t *testing.T) {
	config := types.NewConfig(types.WithScriptMaxExecutionTime(time.Millisecond * 50))
	e, err := NewEngine(config, `while (true) {}`)
	assert.Nil(t, err)

	start := time.Now()
	_, err = e.Execute(nil)
	assert.NotNil(t, err)
	assert.True(t, time.Since(start) < time.Second*2)
}

func TestEnginePooledReuse(t *testing.T) {
	e, err := NewEngine(types.NewConfig(), `return inv.n + 1;`)
	assert.Nil(t, err)

	for i := 0; i < 10; i++ {
		v, err := e.Execute(map[string]interface{}{"n": i})
		assert.Nil(t, err)
		assert.Equal(t, int64(i+1), v)
	}
}
