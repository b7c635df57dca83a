// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package tree

import (
	"fmt"
	"sync"
)

type attrKind uint8

const (
	attrField attrKind = iota
	attrProperty
	attrMethod
)

type attribute struct {
	kind   attrKind
	value  any
	get    func() (any, error)
	set    func(any) error
	method *Method
	meta   Meta
	doc    string
}

func (a *attribute) readonly() bool {
	switch a.kind {
	case attrProperty:
		return a.set == nil
	case attrMethod:
		return true
	}
	return false
}

// AttrOption configures an attribute when it is added to an Object.
type AttrOption func(*attribute)

// WithDoc attaches a docstring to the attribute.
func WithDoc(doc string) AttrOption {
	return func(a *attribute) { a.doc = doc }
}

// WithUnit declares the unit of a quantity-valued property so writers can
// pair magnitudes with it without running the getter.
func WithUnit(unit string) AttrOption {
	return func(a *attribute) { a.meta.Unit = unit }
}

// WithEnum declares the enum type of an enum-valued property.
func WithEnum(t *EnumType) AttrOption {
	return func(a *attribute) { a.meta.Enum = t }
}

// Object is a service node: an ordered set of fields, properties and
// methods. It is safe for concurrent use; getters, setters and observers run
// without the object lock held.
type Object struct {
	hub

	typeName string
	kind     string
	doc      string

	mu    sync.RWMutex
	attrs map[string]*attribute
	order []string
}

// NewObject returns an empty object whose serialized name is typeName.
func NewObject(typeName string) *Object {
	return &Object{
		typeName: typeName,
		kind:     TypeDataService,
		attrs:    make(map[string]*attribute),
	}
}

// TypeName is the concrete service type name.
func (o *Object) TypeName() string { return o.typeName }

// Doc returns the object's docstring.
func (o *Object) Doc() string { return o.doc }

// SetDoc sets the object's docstring.
func (o *Object) SetDoc(doc string) *Object {
	o.doc = doc
	return o
}

// AddField adds a stored attribute. Nested objects, lists and dicts are
// observed so their changes bubble up through o.
func (o *Object) AddField(name string, value any, opts ...AttrOption) *Object {
	a := &attribute{kind: attrField, value: value, meta: metaOf(value)}
	o.add(name, a, opts)
	o.link(Name(name), value, o.fieldValue(name))
	return o
}

// AddProperty adds a computed attribute. A nil set makes it read-only.
func (o *Object) AddProperty(name string, get func() (any, error), set func(any) error, opts ...AttrOption) *Object {
	o.add(name, &attribute{kind: attrProperty, get: get, set: set}, opts)
	return o
}

// AddMethod exposes m under its name.
func (o *Object) AddMethod(m *Method, opts ...AttrOption) *Object {
	a := &attribute{kind: attrMethod, method: m, doc: m.Doc()}
	o.add(m.Name(), a, opts)
	return o
}

func (o *Object) add(name string, a *attribute, opts []AttrOption) {
	for _, opt := range opts {
		opt(a)
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	if _, dup := o.attrs[name]; dup {
		panic(fmt.Sprintf("tree: %s already has attribute %q", o.typeName, name))
	}
	o.attrs[name] = a
	o.order = append(o.order, name)
}

func (o *Object) fieldValue(name string) func() (any, bool) {
	return func() (any, bool) {
		o.mu.RLock()
		defer o.mu.RUnlock()
		a, ok := o.attrs[name]
		if !ok || a.kind != attrField {
			return nil, false
		}
		return a.value, true
	}
}

func (o *Object) lookup(name string) (*attribute, error) {
	o.mu.RLock()
	a, ok := o.attrs[name]
	o.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s has no attribute %q", ErrNoAttribute, o.typeName, name)
	}
	return a, nil
}

// Names returns attribute names in definition order.
func (o *Object) Names() []string {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return append([]string(nil), o.order...)
}

// Has reports whether name is an attribute of o.
func (o *Object) Has(name string) bool {
	o.mu.RLock()
	_, ok := o.attrs[name]
	o.mu.RUnlock()
	return ok
}

// Get returns the attribute value, running the getter of a property.
// Methods are returned as *Method.
func (o *Object) Get(name string) (any, error) {
	a, err := o.lookup(name)
	if err != nil {
		return nil, err
	}
	switch a.kind {
	case attrProperty:
		return a.get()
	case attrMethod:
		return a.method, nil
	}
	o.mu.RLock()
	defer o.mu.RUnlock()
	return a.value, nil
}

// Set assigns an attribute and notifies observers. Properties delegate to
// their setter.
func (o *Object) Set(name string, value any) error {
	a, err := o.lookup(name)
	if err != nil {
		return err
	}
	if a.readonly() {
		return fmt.Errorf("%w: %s.%s", ErrReadOnly, o.typeName, name)
	}
	if a.kind == attrProperty {
		if err := a.set(value); err != nil {
			return err
		}
	} else {
		o.mu.Lock()
		prev := a.value
		a.value = value
		a.meta = metaOf(value)
		o.mu.Unlock()
		if !sameNode(prev, value) {
			o.link(Name(name), value, o.fieldValue(name))
		}
	}
	o.emit(name, value)
	return nil
}

// Readonly reports whether name cannot be assigned.
func (o *Object) Readonly(name string) bool {
	a, err := o.lookup(name)
	return err == nil && a.readonly()
}

// Child implements Container.
func (o *Object) Child(seg Segment) (any, error) {
	if seg.Kind != SegName {
		return nil, fmt.Errorf("%w: %s on %s", ErrSegmentKind, seg, o.typeName)
	}
	return o.Get(seg.Name)
}

// HasChild implements Container.
func (o *Object) HasChild(seg Segment) bool {
	return seg.Kind == SegName && o.Has(seg.Name)
}

// SetChild implements Container.
func (o *Object) SetChild(seg Segment, value any) error {
	if seg.Kind != SegName {
		return fmt.Errorf("%w: %s on %s", ErrSegmentKind, seg, o.typeName)
	}
	return o.Set(seg.Name, value)
}

// Inspect implements Inspector. Properties report their declared metadata.
func (o *Object) Inspect(seg Segment) (Meta, error) {
	if seg.Kind != SegName {
		return Meta{}, fmt.Errorf("%w: %s on %s", ErrSegmentKind, seg, o.typeName)
	}
	a, err := o.lookup(seg.Name)
	if err != nil {
		return Meta{}, err
	}
	o.mu.RLock()
	defer o.mu.RUnlock()
	return a.meta, nil
}
