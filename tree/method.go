// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package tree

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/spf13/cast"
)

var errorType = reflect.TypeOf((*error)(nil)).Elem()

// Param describes one positional parameter of a Method.
type Param struct {
	Name string
	// Annotation is the verbose type annotation, e.g. "<class 'int'>".
	// Parameters of interface type have no quoted type name.
	Annotation string
	typ        reflect.Type
}

// Method is a callable exposed on an Object.
type Method struct {
	name   string
	doc    string
	params []Param
	fn     reflect.Value
}

// NewMethod wraps fn, which must be a non-variadic func with one name per
// parameter. fn may return nothing, a value, an error, or (value, error).
func NewMethod(name string, fn any, paramNames ...string) (*Method, error) {
	v := reflect.ValueOf(fn)
	if v.Kind() != reflect.Func {
		return nil, fmt.Errorf("method %s: %T is not a func", name, fn)
	}
	t := v.Type()
	if t.IsVariadic() {
		return nil, fmt.Errorf("method %s: variadic funcs are not supported", name)
	}
	if t.NumIn() != len(paramNames) {
		return nil, fmt.Errorf("method %s: %d parameter names for %d parameters", name, len(paramNames), t.NumIn())
	}
	switch t.NumOut() {
	case 0, 1:
	case 2:
		if !t.Out(1).Implements(errorType) {
			return nil, fmt.Errorf("method %s: second result must be an error", name)
		}
	default:
		return nil, fmt.Errorf("method %s: too many results", name)
	}

	params := make([]Param, t.NumIn())
	for i := range params {
		params[i] = Param{Name: paramNames[i], Annotation: annotation(t.In(i)), typ: t.In(i)}
	}
	return &Method{name: name, params: params, fn: v}, nil
}

// MustMethod is like NewMethod but panics on a malformed signature.
func MustMethod(name string, fn any, paramNames ...string) *Method {
	m, err := NewMethod(name, fn, paramNames...)
	if err != nil {
		panic("tree: " + err.Error())
	}
	return m
}

// WithDoc sets the method docstring.
func (m *Method) WithDoc(doc string) *Method {
	m.doc = doc
	return m
}

func (m *Method) Name() string { return m.name }

func (m *Method) Doc() string { return m.doc }

func (m *Method) Params() []Param { return append([]Param(nil), m.params...) }

// Signature formats the method as name(arg1, arg2).
func (m *Method) Signature() string {
	names := make([]string, len(m.params))
	for i, p := range m.params {
		names[i] = p.Name
	}
	return m.name + "(" + strings.Join(names, ", ") + ")"
}

// Call invokes the method with positional arguments converted to the
// declared parameter types. A panic in the callee is returned as an error.
func (m *Method) Call(args ...any) (result any, err error) {
	if len(args) != len(m.params) {
		return nil, fmt.Errorf("%w: %s takes %d arguments, got %d", ErrArgument, m.Signature(), len(m.params), len(args))
	}
	in := make([]reflect.Value, len(args))
	for i, a := range args {
		v, err := convertArg(a, m.params[i].typ)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: parameter %s: %v", ErrArgument, m.name, m.params[i].Name, err)
		}
		in[i] = v
	}

	defer func() {
		if r := recover(); r != nil {
			result, err = nil, fmt.Errorf("%s panicked: %v", m.name, r)
		}
	}()

	out := m.fn.Call(in)
	if n := len(out); n > 0 && m.fn.Type().Out(n-1).Implements(errorType) {
		if e := out[n-1]; !e.IsNil() {
			return nil, e.Interface().(error)
		}
		out = out[:n-1]
	}
	if len(out) == 0 {
		return nil, nil
	}
	return out[0].Interface(), nil
}

func convertArg(a any, t reflect.Type) (reflect.Value, error) {
	if a == nil {
		switch t.Kind() {
		case reflect.Interface, reflect.Pointer, reflect.Map, reflect.Slice:
			return reflect.Zero(t), nil
		}
		return reflect.Value{}, fmt.Errorf("nil for %s", t)
	}
	if at := reflect.TypeOf(a); at.AssignableTo(t) {
		return reflect.ValueOf(a), nil
	}

	var (
		v   any
		err error
	)
	switch t.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		v, err = cast.ToInt64E(a)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		v, err = cast.ToUint64E(a)
	case reflect.Float32, reflect.Float64:
		v, err = cast.ToFloat64E(a)
	case reflect.Bool:
		v, err = cast.ToBoolE(a)
	case reflect.String:
		v, err = cast.ToStringE(a)
	default:
		return reflect.Value{}, fmt.Errorf("cannot use %T as %s", a, t)
	}
	if err != nil {
		return reflect.Value{}, err
	}
	return reflect.ValueOf(v).Convert(t), nil
}

// annotation renders t the way serialized signatures carry it.
func annotation(t reflect.Type) string {
	if t.Kind() == reflect.Interface {
		return t.String()
	}
	return "<class '" + wireTypeName(t) + "'>"
}

func wireTypeName(t reflect.Type) string {
	switch t {
	case reflect.TypeOf(Quantity{}):
		return TypeQuantity
	case reflect.TypeOf(Enum{}):
		return TypeEnum
	}
	switch t.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return TypeInt
	case reflect.Float32, reflect.Float64:
		return TypeFloat
	case reflect.Bool:
		return TypeBool
	case reflect.String:
		return TypeStr
	case reflect.Slice, reflect.Array:
		return TypeList
	case reflect.Map:
		return TypeDict
	}
	return t.String()
}
