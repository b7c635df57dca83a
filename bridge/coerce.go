// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package bridge

import (
	"encoding/json"
	"fmt"
	"math"
	"slices"
	"strings"

	"github.com/spf13/cast"

	"github.com/luxfi/treerpc/tree"
)

// class is the coercion rule selected by a declared type tag.
type class uint8

const (
	classScalar class = iota
	classEnum
	classQuantity
	classSlider
	classOpaque // NoneType, Exception: raw value passes unchanged
	classContainer
	classObject
	classMethod
)

func classify(tag string) class {
	switch {
	case strings.Contains(tag, tree.TypeEnum):
		return classEnum
	case tag == tree.TypeQuantity:
		return classQuantity
	case tag == tree.TypeNumberSlider:
		return classSlider
	case tag == tree.TypeInt, tag == tree.TypeFloat, tag == tree.TypeBool, tag == tree.TypeStr:
		return classScalar
	case tag == tree.TypeNone, tag == tree.TypeException:
		return classOpaque
	case tag == tree.TypeList, tag == tree.TypeDict:
		return classContainer
	case tag == tree.TypeMethod:
		return classMethod
	}
	return classObject
}

// Assignment is a fully coerced write, ready to be committed.
type Assignment struct {
	// Path is the effective target. For sliders it addresses the inner value.
	Path  string
	Value any
}

// CoerceForAssignment converts raw, as received from the wire, into the value
// to assign at path. decl is the cached node for path; parent and leaf address
// the live target without evaluating it. The rule is chosen from decl alone.
func CoerceForAssignment(decl tree.Node, parent tree.Container, leaf tree.Segment, path string, raw any) (Assignment, error) {
	tag := decl.Type()
	switch classify(tag) {
	case classEnum:
		meta, err := inspect(parent, leaf)
		if err != nil {
			return Assignment{}, err
		}
		v, err := coerceEnum(meta.Enum, raw)
		return Assignment{Path: path, Value: v}, err

	case classQuantity:
		meta, err := inspect(parent, leaf)
		if err != nil {
			return Assignment{}, err
		}
		unit := meta.Unit
		if unit == "" {
			unit = quantityUnit(decl)
		}
		if unit == "" {
			return Assignment{}, fmt.Errorf("%w: unit of %s is unknown", ErrTypeMismatch, path)
		}
		v, err := coerceQuantity(raw, unit)
		return Assignment{Path: path, Value: v}, err

	case classSlider:
		v, err := coerceSlider(decl, raw)
		return Assignment{Path: path + ".value", Value: v}, err

	case classScalar:
		v, err := coerceScalar(tag, raw)
		return Assignment{Path: path, Value: v}, err

	case classOpaque:
		return Assignment{Path: path, Value: raw}, nil

	case classContainer:
		if holdsObjects(decl) {
			return Assignment{}, fmt.Errorf("%w: %s holds objects, assign its items instead", ErrTypeMismatch, path)
		}
		v, ok := toContainer(tag, raw)
		if !ok {
			return Assignment{}, fmt.Errorf("%w: cannot assign %T to %s", ErrTypeMismatch, raw, tag)
		}
		return Assignment{Path: path, Value: v}, nil

	case classMethod:
		return Assignment{}, fmt.Errorf("%w: cannot assign to a method", ErrTypeMismatch)
	}
	return Assignment{}, fmt.Errorf("%w: cannot assign %T to %s object", ErrTypeMismatch, raw, tag)
}

func inspect(parent tree.Container, leaf tree.Segment) (tree.Meta, error) {
	in, ok := parent.(tree.Inspector)
	if !ok {
		return tree.Meta{}, fmt.Errorf("%w: %T cannot describe %s", ErrTypeMismatch, parent, leaf)
	}
	return in.Inspect(leaf)
}

func coerceEnum(t *tree.EnumType, raw any) (any, error) {
	if t == nil {
		return nil, fmt.Errorf("%w: enum type of target is unknown", ErrTypeMismatch)
	}
	switch v := raw.(type) {
	case tree.Enum:
		if v.Type() != t {
			return nil, fmt.Errorf("%w: %s is not a %s", ErrTypeMismatch, v, t.Name())
		}
		return v, nil
	case string:
		e, ok := t.ByName(v)
		if !ok {
			return nil, fmt.Errorf("%w: %s has no member %q", ErrTypeMismatch, t.Name(), v)
		}
		return e, nil
	}
	i, ok := ordinal(raw)
	if !ok {
		return nil, fmt.Errorf("%w: %T is neither a member name nor an index of %s", ErrTypeMismatch, raw, t.Name())
	}
	e, err := t.At(i)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidIndex, err)
	}
	return e, nil
}

// quantityUnit reads the unit recorded in a cached quantity node.
func quantityUnit(decl tree.Node) string {
	q, _ := decl.Value().(map[string]any)
	unit, _ := q["unit"].(string)
	return unit
}

// holdsObjects reports whether a cached list or dict node has object items.
// Replacing such a container wholesale would turn its objects into plain data.
func holdsObjects(decl tree.Node) bool {
	var items []any
	switch v := decl.Value().(type) {
	case []any:
		items = v
	case map[string]any:
		for _, item := range v {
			items = append(items, item)
		}
	}
	for _, item := range items {
		n, ok := tree.AsNode(item)
		if !ok {
			continue
		}
		switch classify(n.Type()) {
		case classObject, classSlider, classMethod:
			return true
		}
	}
	return false
}

// toContainer rebuilds wire arrays and objects as observed tree containers so
// the target stays addressable by path.
func toContainer(tag string, raw any) (any, bool) {
	switch v := raw.(type) {
	case *tree.List:
		return v, tag == tree.TypeList
	case *tree.Dict:
		return v, tag == tree.TypeDict
	case []any:
		if tag != tree.TypeList {
			return nil, false
		}
		return containerValue(v), true
	case map[string]any:
		if tag != tree.TypeDict {
			return nil, false
		}
		return containerValue(v), true
	}
	return nil, false
}

func containerValue(raw any) any {
	switch v := raw.(type) {
	case []any:
		items := make([]any, len(v))
		for i, item := range v {
			items[i] = containerValue(item)
		}
		return tree.NewList(items...)
	case map[string]any:
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		slices.Sort(keys)
		d := tree.NewDict()
		for _, k := range keys {
			d.Put(k, containerValue(v[k]))
		}
		return d
	}
	return raw
}

func coerceQuantity(raw any, unit string) (any, error) {
	if q, ok := raw.(tree.Quantity); ok {
		return q, nil
	}
	m, ok := magnitude(raw)
	if !ok {
		return nil, fmt.Errorf("%w: %T is not a magnitude", ErrTypeMismatch, raw)
	}
	return tree.Q(m, unit), nil
}

// coerceSlider converts raw for the slider's inner value. A quantity's unit
// comes from the cached node, never from the live slider.
func coerceSlider(decl tree.Node, raw any) (any, error) {
	children, _ := decl.Value().(map[string]any)
	inner, ok := tree.AsNode(children["value"])
	if !ok {
		return nil, fmt.Errorf("%w: cached slider has no value", ErrTypeMismatch)
	}
	if inner.Type() == tree.TypeQuantity {
		return coerceQuantity(raw, quantityUnit(inner))
	}
	if classify(inner.Type()) == classScalar {
		return coerceScalar(inner.Type(), raw)
	}
	return raw, nil
}

func coerceScalar(tag string, raw any) (any, error) {
	switch tag {
	case tree.TypeInt:
		i, ok := ordinal(raw)
		switch raw.(type) {
		case float64, float32, json.Number:
			if ok {
				return i, nil
			}
		default:
			if ok {
				return raw, nil
			}
		}
	case tree.TypeFloat:
		if _, ok := raw.(float64); ok {
			return raw, nil
		}
		if m, ok := magnitude(raw); ok {
			return m, nil
		}
	case tree.TypeBool:
		if _, ok := raw.(bool); ok {
			return raw, nil
		}
	case tree.TypeStr:
		if _, ok := raw.(string); ok {
			return raw, nil
		}
	}
	return nil, fmt.Errorf("%w: cannot assign %T to %s", ErrTypeMismatch, raw, tag)
}

// magnitude accepts any numeric wire value.
func magnitude(raw any) (float64, bool) {
	switch raw.(type) {
	case nil, bool, string:
		return 0, false
	}
	f, err := cast.ToFloat64E(raw)
	return f, err == nil
}

// ordinal accepts integers, including integral floats decoded from JSON.
func ordinal(raw any) (int, bool) {
	switch v := raw.(type) {
	case nil, bool, string:
		return 0, false
	case float64:
		if v != math.Trunc(v) || math.IsInf(v, 0) {
			return 0, false
		}
	case float32:
		if float64(v) != math.Trunc(float64(v)) {
			return 0, false
		}
	case json.Number:
		if _, err := v.Int64(); err != nil {
			return 0, false
		}
	}
	i, err := cast.ToIntE(raw)
	return i, err == nil
}

// SimplifyForWire turns a live value into what remote clients expect for a
// single read. path is where v was found.
func SimplifyForWire(path string, v any, enrich bool) any {
	switch x := v.(type) {
	case *tree.NumberSlider:
		return SimplifyForWire(path+".value", x.Value(), enrich)
	case *tree.Object, *tree.List, *tree.Dict:
		return tree.DumpAt(path, x)
	case *tree.Method:
		if enrich {
			return EnrichMethods(tree.DumpAt(path, x))
		}
		return x.Signature()
	case tree.Enum:
		return x.WireValue()
	case tree.Quantity:
		return x.Magnitude
	}
	return v
}
