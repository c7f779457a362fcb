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
	"reflect"

	"github.com/weavego/weave/api/types"
)

// The factory produces substitutes whose calls route through the cached
// interception chain. Two strategies exist, chosen by target capability:
//
//   - WrapFuncs: the target exposes a separable capability set, a struct of
//     exported func-typed fields. The substitute is a copy of that struct
//     with each func field replaced by a chain-routing wrapper; it satisfies
//     the same call surface as the original.
//   - WrapTarget: the target exposes no separable capability set. The
//     substitute is a Proxy owning the original and re-exposing each of its
//     exported methods via Call.
//
// Known limitation, inherent to proxy-based interception and deliberately
// preserved: an operation invoked from within the target's own
// implementation (self-invocation) calls the original directly, bypassing
// the proxy and therefore the chain. Do not rely on advice firing for
// internal calls.
//
// 已知限制（代理式拦截的固有属性，特意保留）：目标实现内部的自调用
// 直接调用原始实现，绕过代理，因此也绕过拦截链。
// 不要依赖增强在内部调用时触发。

// WrapOption configures how a target is wrapped.
type WrapOption func(*wrapOptions)

type wrapOptions struct {
	qualifier  string
	markers    map[string][]string
	operations []string
}

// WithQualifier overrides the qualifier segment used in operation names,
// which defaults to the target's type name.
func WithQualifier(qualifier string) WrapOption {
	return func(o *wrapOptions) {
		o.qualifier = qualifier
	}
}

// WithMarkers attaches marker tags to one operation of the target.
// Marker discovery is the caller's concern; the engine only matches them.
func WithMarkers(operation string, markers ...string) WrapOption {
	return func(o *wrapOptions) {
		if o.markers == nil {
			o.markers = make(map[string][]string)
		}
		o.markers[operation] = append(o.markers[operation], markers...)
	}
}

// WithOperations restricts wrapping to the named operations. By default
// every eligible operation is wrapped.
func WithOperations(names ...string) WrapOption {
	return func(o *wrapOptions) {
		o.operations = append(o.operations, names...)
	}
}

func applyWrapOptions(opts []WrapOption) *wrapOptions {
	o := &wrapOptions{}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

func (o *wrapOptions) wants(name string) bool {
	if len(o.operations) == 0 {
		return true
	}
	for _, n := range o.operations {
		if n == name {
			return true
		}
	}
	return false
}

// WrapFuncs implements the interface-based strategy. The target must be a
// pointer to a struct whose exported func-typed fields form its operation
// surface. The returned value is a new *T with every selected func field
// replaced by a wrapper that routes through the interception chain;
// non-func fields are copied as-is.
//
// An unexported func field among the selected operations cannot be
// overridden and is rejected with ErrNonInterceptable, as is a func field
// whose shape the chain cannot route (more than one non-error result).
func (w *Weaver) WrapFuncs(target interface{}, opts ...WrapOption) (interface{}, error) {
	o := applyWrapOptions(opts)

	rv := reflect.ValueOf(target)
	if rv.Kind() != reflect.Ptr || rv.IsNil() || rv.Elem().Kind() != reflect.Struct {
		return nil, fmt.Errorf("%w: target must be a non-nil pointer to a struct of func fields, got %T",
			types.ErrNonInterceptable, target)
	}
	st := rv.Elem().Type()
	declaring := st.String()
	qualifier := o.qualifier
	if qualifier == "" {
		qualifier = st.Name()
	}

	out := reflect.New(st)
	out.Elem().Set(rv.Elem())

	wrapped := 0
	for i := 0; i < st.NumField(); i++ {
		field := st.Field(i)
		if field.Type.Kind() != reflect.Func {
			continue
		}
		if !o.wants(field.Name) {
			continue
		}
		if field.PkgPath != "" {
			return nil, fmt.Errorf("%w: func field %s.%s is unexported and cannot be overridden",
				types.ErrNonInterceptable, st.Name(), field.Name)
		}
		if err := checkShape(field.Type); err != nil {
			return nil, fmt.Errorf("%w: %s.%s: %v", types.ErrNonInterceptable, st.Name(), field.Name, err)
		}
		original := rv.Elem().Field(i)
		if original.IsNil() {
			continue
		}
		desc := describeOperation(qualifier, field.Name, declaring, field.Type, o.markers[field.Name])
		terminal := funcTerminal(original)
		ft := field.Type
		wrapper := reflect.MakeFunc(ft, func(in []reflect.Value) []reflect.Value {
			args := make([]interface{}, len(in))
			for j, v := range in {
				args[j] = v.Interface()
			}
			res, err := w.Invoke(desc, target, args, terminal)
			return packResults(desc.Name, ft, res, err)
		})
		out.Elem().Field(i).Set(wrapper)
		wrapped++
	}
	if wrapped == 0 {
		return nil, fmt.Errorf("%w: %s exposes no separable capability set", types.ErrNonInterceptable, st.Name())
	}
	return out.Interface(), nil
}

// Proxy implements the subclass/delegate-based strategy: it owns the
// original target and re-exposes each of its exported methods, routing
// every Call through the chain for that operation's descriptor.
type Proxy struct {
	weaver *Weaver
	target interface{}
	ops    map[string]proxyOp
}

type proxyOp struct {
	desc     types.OperationDescriptor
	terminal Handler
}

// WrapTarget wraps an arbitrary object by its exported methods. A target
// with no exported methods, or a selected method the chain cannot route,
// is rejected with ErrNonInterceptable at wrap time.
func (w *Weaver) WrapTarget(target interface{}, opts ...WrapOption) (*Proxy, error) {
	o := applyWrapOptions(opts)

	rv := reflect.ValueOf(target)
	if !rv.IsValid() {
		return nil, fmt.Errorf("%w: nil target", types.ErrNonInterceptable)
	}
	rt := rv.Type()
	elem := rt
	if elem.Kind() == reflect.Ptr {
		elem = elem.Elem()
	}
	declaring := elem.String()
	qualifier := o.qualifier
	if qualifier == "" {
		qualifier = elem.Name()
	}

	ops := make(map[string]proxyOp)
	for i := 0; i < rt.NumMethod(); i++ {
		m := rt.Method(i)
		if !o.wants(m.Name) {
			continue
		}
		bound := rv.Method(i)
		if err := checkShape(bound.Type()); err != nil {
			return nil, fmt.Errorf("%w: %s.%s: %v", types.ErrNonInterceptable, elem.Name(), m.Name, err)
		}
		ops[m.Name] = proxyOp{
			desc:     describeOperation(qualifier, m.Name, declaring, bound.Type(), o.markers[m.Name]),
			terminal: funcTerminal(bound),
		}
	}
	if len(ops) == 0 {
		return nil, fmt.Errorf("%w: %s exposes no interceptable operations", types.ErrNonInterceptable, declaring)
	}
	for _, name := range o.operations {
		if _, ok := ops[name]; !ok {
			return nil, fmt.Errorf("%w: %s has no exported method %s", types.ErrNonInterceptable, declaring, name)
		}
	}
	return &Proxy{weaver: w, target: target, ops: ops}, nil
}

// Call routes one operation of the wrapped target through its chain and
// returns the result following the single-result convention: the first
// non-error return value, or nil for none.
func (p *Proxy) Call(method string, args ...interface{}) (interface{}, error) {
	op, ok := p.ops[method]
	if !ok {
		return nil, fmt.Errorf("%w: unknown operation %s", types.ErrNonInterceptable, method)
	}
	return p.weaver.Invoke(op.desc, p.target, args, op.terminal)
}

// Target returns the original wrapped object.
func (p *Proxy) Target() interface{} {
	return p.target
}

// Operations returns the names of the wrapped operations.
func (p *Proxy) Operations() []string {
	names := make([]string, 0, len(p.ops))
	for name := range p.ops {
		names = append(names, name)
	}
	return names
}

// Descriptor returns the descriptor of one wrapped operation.
func (p *Proxy) Descriptor(method string) (types.OperationDescriptor, bool) {
	op, ok := p.ops[method]
	return op.desc, ok
}

var errType = reflect.TypeOf((*error)(nil)).Elem()

func isErrorType(t reflect.Type) bool {
	return t.Implements(errType) && t.Kind() == reflect.Interface
}

// checkShape verifies the chain can route the operation's results: at most
// one non-error value, optionally followed by an error.
func checkShape(t reflect.Type) error {
	n := t.NumOut()
	switch {
	case n == 0:
		return nil
	case n == 1:
		return nil
	case n == 2 && isErrorType(t.Out(1)):
		return nil
	default:
		return fmt.Errorf("unsupported result shape %s", t.String())
	}
}

func describeOperation(qualifier, name, declaring string, ft reflect.Type, markers []string) types.OperationDescriptor {
	params := make([]string, 0, ft.NumIn())
	for i := 0; i < ft.NumIn(); i++ {
		params = append(params, ft.In(i).String())
	}
	returns := ""
	if ft.NumOut() > 0 && !isErrorType(ft.Out(0)) {
		returns = ft.Out(0).String()
	}
	return types.OperationDescriptor{
		Name:          qualifier + "." + name,
		DeclaringType: declaring,
		ParamTypes:    params,
		ReturnType:    returns,
		Markers:       append([]string(nil), markers...),
	}
}

// funcTerminal adapts a func value into the chain's terminal handler.
func funcTerminal(fn reflect.Value) Handler {
	t := fn.Type()
	return func(inv *types.Invocation) (interface{}, error) {
		in := make([]reflect.Value, len(inv.Args))
		for i, a := range inv.Args {
			var pt reflect.Type
			if t.IsVariadic() && i >= t.NumIn()-1 {
				pt = t.In(t.NumIn() - 1)
			} else {
				pt = t.In(i)
			}
			if a == nil {
				in[i] = reflect.Zero(pt)
			} else {
				in[i] = reflect.ValueOf(a)
			}
		}
		var outs []reflect.Value
		if t.IsVariadic() && len(in) == t.NumIn() && len(in) > 0 && in[len(in)-1].Kind() == reflect.Slice && in[len(in)-1].Type() == t.In(t.NumIn()-1) {
			outs = fn.CallSlice(in)
		} else {
			outs = fn.Call(in)
		}
		return splitResults(t, outs)
	}
}

// splitResults separates a call's reflect results into the chain's
// (value, error) pair.
func splitResults(t reflect.Type, outs []reflect.Value) (interface{}, error) {
	n := t.NumOut()
	var err error
	if n > 0 && isErrorType(t.Out(n-1)) {
		if e := outs[n-1]; !e.IsNil() {
			err = e.Interface().(error)
		}
		outs = outs[:n-1]
		n--
	}
	if n == 0 {
		return nil, err
	}
	return outs[0].Interface(), err
}

// packResults rebuilds reflect results for a MakeFunc wrapper from the
// chain's (value, error) pair. An advice-injected failure on an operation
// without an error result cannot be reported through the signature and
// panics instead, naming the operation.
func packResults(op string, t reflect.Type, res interface{}, err error) []reflect.Value {
	n := t.NumOut()
	outs := make([]reflect.Value, n)
	hasErr := n > 0 && isErrorType(t.Out(n-1))
	valN := n
	if hasErr {
		valN = n - 1
	}
	if valN >= 1 {
		ot := t.Out(0)
		if res == nil {
			outs[0] = reflect.Zero(ot)
		} else {
			ov := reflect.ValueOf(res)
			if ov.Type() != ot && ov.Type().ConvertibleTo(ot) {
				ov = ov.Convert(ot)
			}
			outs[0] = ov
		}
	}
	if hasErr {
		et := t.Out(n - 1)
		if err == nil {
			outs[n-1] = reflect.Zero(et)
		} else {
			outs[n-1] = reflect.ValueOf(err)
		}
	} else if err != nil {
		panic(fmt.Sprintf("advice injected failure into %s, which has no error result: %v", op, err))
	}
	return outs
}
