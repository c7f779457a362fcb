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

func TestParseAspectDefinition(t *testing.T) {
	def, err := ParseAspectDefinition([]byte(`{
		"name": "audit",
		"priority": 5,
		"advice": [
			{"kind": "before", "selector": "exec(\"*Service.*\")", "order": 1, "script": "return null;"},
			{"kind": "after_failure", "selector": "exec(\"*Service.*\")", "order": 2, "script": "return null;"}
		]
	}`))
	assert.Nil(t, err)
	assert.Equal(t, "audit", def.Name)
	assert.Equal(t, 5, def.Priority)
	assert.Equal(t, 2, len(def.Advice))
	assert.Equal(t, "before", def.Advice[0].Kind)

	_, err = ParseAspectDefinition([]byte(`{not json`))
	assert.NotNil(t, err)
}

func TestDecodeAspectDefinition(t *testing.T) {
	// Configuration loaders hand over untyped maps, often with numbers as
	// strings; weak typing absorbs that.
	def, err := DecodeAspectDefinition(map[string]interface{}{
		"name":     "audit",
		"priority": "5",
		"advice": []interface{}{
			map[string]interface{}{
				"kind":     "afterSuccess",
				"selector": `exec("..")`,
				"order":    1,
				"script":   "return null;",
			},
		},
	})
	assert.Nil(t, err)
	assert.Equal(t, "audit", def.Name)
	assert.Equal(t, 5, def.Priority)
	assert.Equal(t, "afterSuccess", def.Advice[0].Kind)
}

func TestAdviceKind(t *testing.T) {
	for in, want := range map[string]types.AdviceKind{
		"before":        types.KindBefore,
		"BEFORE":        types.KindBefore,
		"after":         types.KindAfter,
		"afterSuccess":  types.KindAfterSuccess,
		"AFTER_SUCCESS": types.KindAfterSuccess,
		"after_failure": types.KindAfterFailure,
		"around":        types.KindAround,
	} {
		got, err := adviceKind(in)
		assert.Nil(t, err)
		assert.Equal(t, want, got)
	}
	_, err := adviceKind("sometime")
	assert.True(t, errors.Is(err, types.ErrInvalidAdviceBody))
}

func TestRegisterDefinitionScriptAdvice(t *testing.T) {
	w := NewWeaver(types.NewConfig(types.WithProperties(map[string]string{
		"blocked": "Orders.Forbidden",
	})))

	assert.Nil(t, w.RegisterDefinition(&AspectDefinition{
		Name: "guard",
		Advice: []AdviceDefinition{
			{
				Kind:     "before",
				Selector: `exec("Orders.*")`,
				Script:   `if (inv.name === global.blocked) { throw new Error('blocked'); }`,
			},
			{
				Kind:     "afterFailure",
				Selector: `exec("Orders.*")`,
				Script:   `if (inv.error === 'out of stock') { return 'backordered'; } return null;`,
			},
		},
	}))

	t.Run("BeforeThrowAborts", func(t *testing.T) {
		terminalRan := false
		_, err := w.Invoke(opDesc("Orders.Forbidden"), nil, nil, func(inv *types.Invocation) (interface{}, error) {
			terminalRan = true
			return "real", nil
		})
		assert.False(t, terminalRan)
		var adviceErr *types.AdviceError
		assert.True(t, errors.As(err, &adviceErr))
		assert.Equal(t, "guard", adviceErr.AspectName)
	})

	t.Run("OtherOperationsPass", func(t *testing.T) {
		v, err := w.Invoke(opDesc("Orders.Place"), nil, nil, succeedWith("placed"))
		assert.Nil(t, err)
		assert.Equal(t, "placed", v)
	})

	t.Run("AfterFailureSubstitutes", func(t *testing.T) {
		v, err := w.Invoke(opDesc("Orders.Place"), nil, nil, failWith(errors.New("out of stock")))
		assert.Nil(t, err)
		assert.Equal(t, "backordered", v)
	})

	t.Run("UnmatchedFailureKept", func(t *testing.T) {
		boom := errors.New("boom")
		_, err := w.Invoke(opDesc("Orders.Place"), nil, nil, failWith(boom))
		assert.Equal(t, boom, err)
	})
}

func TestRegisterDefinitionRejections(t *testing.T) {
	w := NewWeaver(types.NewConfig())

	t.Run("Nil", func(t *testing.T) {
		assert.NotNil(t, w.RegisterDefinition(nil))
	})

	t.Run("AroundNotScriptable", func(t *testing.T) {
		err := w.RegisterDefinition(&AspectDefinition{
			Name: "nope",
			Advice: []AdviceDefinition{
				{Kind: "around", Selector: `exec("..")`, Script: "return inv;"},
			},
		})
		assert.True(t, errors.Is(err, types.ErrInvalidAdviceBody))
	})

	t.Run("BrokenScriptFailsRegistration", func(t *testing.T) {
		err := w.RegisterDefinition(&AspectDefinition{
			Name: "broken",
			Advice: []AdviceDefinition{
				{Kind: "before", Selector: `exec("..")`, Script: "this is not javascript"},
			},
		})
		assert.NotNil(t, err)
		// Nothing was registered.
		assert.Equal(t, 0, len(w.Registry().Aspects()))
	})

	t.Run("MalformedSelectorFailsRegistration", func(t *testing.T) {
		err := w.RegisterDefinition(&AspectDefinition{
			Name: "badsel",
			Advice: []AdviceDefinition{
				{Kind: "before", Selector: `exec(`, Script: "return null;"},
			},
		})
		assert.True(t, errors.Is(err, types.ErrMalformedSelector))
	})
}
