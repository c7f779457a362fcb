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
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/weavego/weave/api/types"
	"github.com/weavego/weave/test/assert"
)

func opDesc(name string) types.OperationDescriptor {
	return types.OperationDescriptor{Name: name}
}

func TestChainCacheReuse(t *testing.T) {
	w := NewWeaver(types.NewConfig())
	assert.Nil(t, w.Register(types.NewAspect("a").Before(`exec("..")`, 0, noopBefore)))

	desc := opDesc("Orders.Place")

	c1 := w.ChainFor(desc)
	c2 := w.ChainFor(desc)
	assert.True(t, c1 == c2)
}

func TestChainCacheInvalidatedOnRegister(t *testing.T) {
	w := NewWeaver(types.NewConfig())
	desc := opDesc("Orders.Place")

	c1 := w.ChainFor(desc)
	assert.Equal(t, 0, len(c1.Bindings()))

	assert.Nil(t, w.Register(types.NewAspect("a").Before(`exec("..")`, 0, noopBefore)))
	c2 := w.ChainFor(desc)
	assert.True(t, c1 != c2)
	assert.Equal(t, 1, len(c2.Bindings()))

	assert.Nil(t, w.Unregister("a"))
	c3 := w.ChainFor(desc)
	assert.True(t, c2 != c3)
	assert.Equal(t, 0, len(c3.Bindings()))
}

func TestTerminalTravelsWithCall(t *testing.T) {
	// One cached chain serves every caller; each call brings its own
	// terminal to the real implementation.
	w := NewWeaver(types.NewConfig())
	assert.Nil(t, w.Register(types.NewAspect("a").Before(`exec("..")`, 0, noopBefore)))
	desc := opDesc("Orders.Place")

	chain := w.ChainFor(desc)
	v, err := chain.Call(types.NewInvocation(desc, nil, nil), succeedWith("first"))
	assert.Nil(t, err)
	assert.Equal(t, "first", v)

	v, err = chain.Call(types.NewInvocation(desc, nil, nil), succeedWith("second"))
	assert.Nil(t, err)
	assert.Equal(t, "second", v)
}

func TestInvoke(t *testing.T) {
	w := NewWeaver(types.NewConfig())
	assert.Nil(t, w.Register(types.NewAspect("double").
		Around(`exec("..")`, 0, func(inv *types.Invocation) (interface{}, error) {
			v, err := inv.Proceed()
			if err != nil {
				return nil, err
			}
			return v.(int) * 2, nil
		})))

	v, err := w.Invoke(opDesc("Math.Answer"), nil, nil, succeedWith(21))
	assert.Nil(t, err)
	assert.Equal(t, 42, v)
}

func TestStopDropsChains(t *testing.T) {
	w := NewWeaver(types.NewConfig())
	assert.Nil(t, w.Register(types.NewAspect("a").Before(`exec("..")`, 0, noopBefore)))

	desc := opDesc("Orders.Place")
	c1 := w.ChainFor(desc)
	w.Stop()

	// The registry survives Stop; chains rebuild from it.
	c2 := w.ChainFor(desc)
	assert.True(t, c1 != c2)
	assert.Equal(t, 1, len(c2.Bindings()))
	assert.Equal(t, []string{"a"}, w.Registry().Aspects())
}

func TestConcurrentCallsDuringMutation(t *testing.T) {
	// Callers keep invoking while aspects register and unregister. Every
	// call must observe a consistent chain: the before/after pair of one
	// aspect either both fire or neither does.
	w := NewWeaver(types.NewConfig())
	desc := opDesc("Orders.Place")
	terminal := succeedWith("ok")

	var pre, post int64
	assert.Nil(t, w.Register(types.NewAspect("paired").
		Before(`exec("Orders.*")`, 0, func(inv *types.Invocation) error {
			atomic.AddInt64(&pre, 1)
			inv.Set("paired", true)
			return nil
		}).
		After(`exec("Orders.*")`, 0, func(inv *types.Invocation) {
			if inv.Value("paired") == true {
				atomic.AddInt64(&post, 1)
			}
		})))

	var wg sync.WaitGroup
	stop := make(chan struct{})

	for g := 0; g < 4; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				v, err := w.Invoke(desc, nil, nil, terminal)
				if err != nil || v != "ok" {
					t.Errorf("invoke: v=%v err=%v", v, err)
					return
				}
			}
		}()
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 200; i++ {
			name := fmt.Sprintf("churn-%d", i%8)
			_ = w.Register(types.NewAspect(name).Before(`exec("..")`, 0, noopBefore))
			_ = w.Unregister(name)
		}
		close(stop)
	}()

	wg.Wait()
	assert.Equal(t, atomic.LoadInt64(&pre), atomic.LoadInt64(&post))
	assert.True(t, atomic.LoadInt64(&pre) > 0)
}
