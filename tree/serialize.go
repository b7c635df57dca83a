// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package tree

import (
	"fmt"
	"reflect"
)

// Node is a serialized tree node: a generic document whose "value" shape is
// determined by its "type" tag. Nested nodes are plain map[string]any.
type Node map[string]any

// AsNode converts a nested document value into a Node.
func AsNode(v any) (Node, bool) {
	switch m := v.(type) {
	case Node:
		return m, true
	case map[string]any:
		return Node(m), true
	}
	return nil, false
}

func (n Node) Type() string {
	s, _ := n["type"].(string)
	return s
}

func (n Node) Value() any { return n["value"] }

func (n Node) Readonly() bool {
	b, _ := n["readonly"].(bool)
	return b
}

func (n Node) Doc() string {
	s, _ := n["doc"].(string)
	return s
}

// FullAccessPath is the path the node was serialized at.
func (n Node) FullAccessPath() string {
	s, _ := n["full_access_path"].(string)
	return s
}

// Dump serializes v as the root of a tree.
func Dump(v any) Node { return Node(dump(v, "")) }

// DumpAt serializes v as the node found at path.
func DumpAt(path string, v any) Node { return Node(dump(v, path)) }

func dump(v any, path string) map[string]any {
	n := map[string]any{
		"full_access_path": path,
		"doc":              nil,
		"readonly":         false,
	}
	switch x := v.(type) {
	case nil:
		n["type"], n["value"] = TypeNone, nil
	case bool:
		n["type"], n["value"] = TypeBool, x
	case string:
		n["type"], n["value"] = TypeStr, x
	case Quantity:
		n["type"] = TypeQuantity
		n["value"] = map[string]any{"magnitude": x.Magnitude, "unit": x.Unit}
	case Enum:
		n["type"], n["value"] = x.Type().tag(), x.Name()
		members := make(map[string]any, x.Type().Len())
		for _, m := range x.Type().members {
			members[m.Name] = m.Value
		}
		n["enum"] = members
	case *Method:
		dumpMethod(n, x)
	case *NumberSlider:
		dumpObject(n, x.Object, path)
	case *Object:
		dumpObject(n, x, path)
	case *List:
		n["type"], n["value"] = TypeList, dumpItems(x.Items(), path)
	case []any:
		n["type"], n["value"] = TypeList, dumpItems(x, path)
	case *Dict:
		value := make(map[string]any)
		for _, k := range x.Keys() {
			item, _ := x.Child(Key(k))
			value[k] = dump(item, JoinPath(path, Key(k)))
		}
		n["type"], n["value"] = TypeDict, value
	case map[string]any:
		value := make(map[string]any, len(x))
		for k, item := range x {
			value[k] = dump(item, JoinPath(path, Key(k)))
		}
		n["type"], n["value"] = TypeDict, value
	case error:
		n["type"], n["value"], n["name"] = TypeException, x.Error(), fmt.Sprintf("%T", x)
	default:
		dumpScalar(n, v)
	}
	return n
}

func dumpScalar(n map[string]any, v any) {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n["type"], n["value"] = TypeInt, v
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		n["type"], n["value"] = TypeInt, v
	case reflect.Float32, reflect.Float64:
		n["type"], n["value"] = TypeFloat, v
	default:
		n["type"], n["value"] = rv.Type().String(), fmt.Sprint(v)
	}
}

func dumpItems(items []any, path string) []any {
	out := make([]any, len(items))
	for i, item := range items {
		out[i] = dump(item, JoinPath(path, Index(i)))
	}
	return out
}

func dumpMethod(n map[string]any, m *Method) {
	params := make(map[string]any, len(m.params))
	for _, p := range m.params {
		params[p.Name] = map[string]any{
			"annotation": p.Annotation,
			"default":    map[string]any{},
		}
	}
	n["type"], n["value"] = TypeMethod, nil
	n["async"] = false
	n["signature"] = map[string]any{
		"parameters":        params,
		"return_annotation": map[string]any{},
	}
	n["readonly"] = true
	if m.doc != "" {
		n["doc"] = m.doc
	}
}

func dumpObject(n map[string]any, o *Object, path string) {
	n["type"], n["name"] = o.kind, o.typeName
	if o.doc != "" {
		n["doc"] = o.doc
	}

	value := make(map[string]any)
	for _, name := range o.Names() {
		a, err := o.lookup(name)
		if err != nil {
			continue
		}
		v, err := o.Get(name)
		if err != nil {
			v = err
		}
		child := dump(v, JoinPath(path, Name(name)))
		child["readonly"] = a.readonly()
		if a.doc != "" {
			child["doc"] = a.doc
		}
		value[name] = child
	}
	n["value"] = value
}
