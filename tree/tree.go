// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package tree is an in-process, strongly-typed object tree: services made of
// nested objects, properties, enums, physical quantities and methods.
//
// Nodes are addressed by attribute paths (see ParsePath). Every traversable
// node implements Container; SetChild is the only mutation entry point and
// notifies observers registered with OnChange, which bubble up to the root
// with full access paths. Dump serializes any value into the generic
// document shape ({type, value, readonly, doc, ...}) used on the wire, and
// StateManager keeps the most recent serialization as a snapshot.
package tree

import (
	"errors"
	"sync"
)

// Serialized type tags.
const (
	TypeInt          = "int"
	TypeFloat        = "float"
	TypeBool         = "bool"
	TypeStr          = "str"
	TypeNone         = "NoneType"
	TypeQuantity     = "Quantity"
	TypeEnum         = "Enum"
	TypeColouredEnum = "ColouredEnum"
	TypeNumberSlider = "NumberSlider"
	TypeMethod       = "method"
	TypeDataService  = "DataService"
	TypeList         = "list"
	TypeDict         = "dict"
	TypeException    = "Exception"
)

var (
	ErrNoAttribute = errors.New("no such attribute")
	ErrReadOnly    = errors.New("attribute is read-only")
	ErrSegmentKind = errors.New("segment not supported by container")
	ErrEnumRange   = errors.New("enum index out of range")
	ErrArgument    = errors.New("invalid argument")
)

// Container is implemented by every node that can be traversed by path.
type Container interface {
	// Child returns the value stored under seg. For properties this runs the
	// getter.
	Child(seg Segment) (any, error)
	// HasChild reports whether seg exists without evaluating it.
	HasChild(seg Segment) bool
	// SetChild assigns value under seg and notifies observers.
	SetChild(seg Segment, value any) error
}

// Meta is what a container knows about a child without evaluating it.
type Meta struct {
	Unit string    // unit of a quantity-valued child
	Enum *EnumType // enum type of an enum-valued child
}

// Inspector reports child metadata without running property getters.
type Inspector interface {
	Inspect(seg Segment) (Meta, error)
}

// ChangeFunc receives the path of a changed node, relative to the node it
// was registered on, and the value it now holds.
type ChangeFunc func(path string, value any)

type observable interface {
	OnChange(fn ChangeFunc)
}

// hub fans change notifications out to registered observers.
type hub struct {
	mu  sync.RWMutex
	fns []ChangeFunc
}

// OnChange registers fn to be called after every successful mutation below
// this node.
func (h *hub) OnChange(fn ChangeFunc) {
	h.mu.Lock()
	h.fns = append(h.fns, fn)
	h.mu.Unlock()
}

func (h *hub) emit(path string, value any) {
	h.mu.RLock()
	fns := h.fns
	h.mu.RUnlock()
	for _, fn := range fns {
		fn(path, value)
	}
}

// link forwards changes of child to h while child is still stored under seg.
func (h *hub) link(seg Segment, child any, current func() (any, bool)) {
	n, ok := child.(observable)
	if !ok {
		return
	}
	n.OnChange(func(path string, value any) {
		if v, ok := current(); !ok || v != child {
			return
		}
		h.emit(joinChild(seg, path), value)
	})
}

// sameNode reports whether v is the observable node already stored as prev,
// in which case it is linked already.
func sameNode(prev, v any) bool {
	_, ok := v.(observable)
	return ok && prev == v
}

func metaOf(v any) Meta {
	switch x := v.(type) {
	case Quantity:
		return Meta{Unit: x.Unit}
	case Enum:
		return Meta{Enum: x.Type()}
	}
	return Meta{}
}
