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
	"errors"
	"testing"

	"github.com/weavego/weave/api/types"
	"github.com/weavego/weave/test/assert"
)

func noopBefore(inv *types.Invocation) error { return nil }

func TestRegisterValidation(t *testing.T) {
	r := NewRegistry()

	t.Run("EmptyName", func(t *testing.T) {
		assert.NotNil(t, r.Register(types.NewAspect("")))
	})

	t.Run("Duplicate", func(t *testing.T) {
		assert.Nil(t, r.Register(types.NewAspect("dup").Before(`exec("*")`, 0, noopBefore)))
		err := r.Register(types.NewAspect("dup"))
		assert.True(t, errors.Is(err, types.ErrAspectAlreadyExists))
	})

	t.Run("MalformedSelectorFailsFast", func(t *testing.T) {
		err := r.Register(types.NewAspect("bad").Before(`exec(`, 0, noopBefore))
		assert.True(t, errors.Is(err, types.ErrMalformedSelector))
		// The failed registration left nothing behind.
		assert.Equal(t, []string{"dup"}, r.Aspects())
	})

	t.Run("BodyKindMismatch", func(t *testing.T) {
		aspect := types.NewAspect("mismatch")
		aspect.Advice = append(aspect.Advice, types.AdviceBinding{
			Kind:     types.KindBefore,
			Selector: `exec("*")`,
			Body:     types.AfterFunc(func(inv *types.Invocation) {}),
		})
		err := r.Register(aspect)
		assert.True(t, errors.Is(err, types.ErrInvalidAdviceBody))
	})

	t.Run("UnknownKind", func(t *testing.T) {
		aspect := types.NewAspect("unknown")
		aspect.Advice = append(aspect.Advice, types.AdviceBinding{
			Kind:     types.AdviceKind("SOMETIME"),
			Selector: `exec("*")`,
			Body:     types.BeforeFunc(noopBefore),
		})
		err := r.Register(aspect)
		assert.True(t, errors.Is(err, types.ErrInvalidAdviceBody))
	})
}

func TestUnregister(t *testing.T) {
	r := NewRegistry()
	assert.Nil(t, r.Register(types.NewAspect("a").Before(`exec("*")`, 0, noopBefore)))

	assert.Nil(t, r.Unregister("a"))
	assert.Equal(t, 0, len(r.Bindings()))

	err := r.Unregister("a")
	assert.True(t, errors.Is(err, types.ErrAspectNotFound))
}

func TestOrderingRule(t *testing.T) {
	r := NewRegistry()
	// Registered out of priority order on purpose.
	assert.Nil(t, r.Register(types.NewAspect("late").WithPriority(10).
		Before(`exec("*")`, 0, noopBefore)))
	assert.Nil(t, r.Register(types.NewAspect("early").WithPriority(0).
		Before(`exec("*")`, 5, noopBefore).
		Before(`exec("*")`, 2, noopBefore)))
	assert.Nil(t, r.Register(types.NewAspect("tie").WithPriority(10).
		Before(`exec("*")`, 0, noopBefore)))

	var got []string
	for _, b := range r.Bindings() {
		got = append(got, b.AspectName())
	}
	// Aspect priority first, then binding order, then registration sequence.
	assert.Equal(t, []string{"early", "early", "late", "tie"}, got)
	assert.Equal(t, 2, r.Bindings()[0].Order())
	assert.Equal(t, 5, r.Bindings()[1].Order())
}

func TestVersionBumpsOnEveryMutation(t *testing.T) {
	r := NewRegistry()
	v0 := r.Version()
	assert.Nil(t, r.Register(types.NewAspect("a").Before(`exec("*")`, 0, noopBefore)))
	v1 := r.Version()
	assert.True(t, v1 > v0)
	assert.Nil(t, r.Unregister("a"))
	assert.True(t, r.Version() > v1)
}
