// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package tree

import "fmt"

// EnumMember is one member of an EnumType.
type EnumMember struct {
	Name  string
	Value any
}

// EnumType is a fixed, ordered list of members. Definition order is the
// ordinal mapping used by remote clients.
type EnumType struct {
	name     string
	members  []EnumMember
	coloured bool
}

// NewEnumType defines an enum. Member names must be unique.
func NewEnumType(name string, members ...EnumMember) *EnumType {
	seen := make(map[string]struct{}, len(members))
	for _, m := range members {
		if _, dup := seen[m.Name]; dup {
			panic(fmt.Sprintf("tree: duplicate member %q in enum %s", m.Name, name))
		}
		seen[m.Name] = struct{}{}
	}
	return &EnumType{name: name, members: append([]EnumMember(nil), members...)}
}

// NewColouredEnumType defines an enum whose member values are display
// colours.
func NewColouredEnumType(name string, members ...EnumMember) *EnumType {
	t := NewEnumType(name, members...)
	t.coloured = true
	return t
}

func (t *EnumType) Name() string { return t.name }

func (t *EnumType) Len() int { return len(t.members) }

// Members returns the members in definition order.
func (t *EnumType) Members() []EnumMember {
	return append([]EnumMember(nil), t.members...)
}

// At returns the member at definition-order position i.
func (t *EnumType) At(i int) (Enum, error) {
	if i < 0 || i >= len(t.members) {
		return Enum{}, fmt.Errorf("%w: %d not in [0, %d) for %s", ErrEnumRange, i, len(t.members), t.name)
	}
	return Enum{typ: t, index: i}, nil
}

// ByName returns the member called name.
func (t *EnumType) ByName(name string) (Enum, bool) {
	for i, m := range t.members {
		if m.Name == name {
			return Enum{typ: t, index: i}, true
		}
	}
	return Enum{}, false
}

// Must returns the member called name and panics if there is none.
func (t *EnumType) Must(name string) Enum {
	e, ok := t.ByName(name)
	if !ok {
		panic(fmt.Sprintf("tree: enum %s has no member %q", t.name, name))
	}
	return e
}

func (t *EnumType) tag() string {
	if t.coloured {
		return TypeColouredEnum
	}
	return TypeEnum
}

// Enum is a member of an EnumType.
type Enum struct {
	typ   *EnumType
	index int
}

func (e Enum) Type() *EnumType { return e.typ }

// Index is the definition-order position of the member.
func (e Enum) Index() int { return e.index }

func (e Enum) Name() string {
	if e.typ == nil {
		return ""
	}
	return e.typ.members[e.index].Name
}

func (e Enum) Value() any {
	if e.typ == nil {
		return nil
	}
	return e.typ.members[e.index].Value
}

// WireValue is what remote clients display: the member value, or its name
// when the member carries no value.
func (e Enum) WireValue() any {
	if v := e.Value(); v != nil {
		return v
	}
	return e.Name()
}

func (e Enum) String() string {
	if e.typ == nil {
		return "<invalid enum>"
	}
	return e.typ.name + "." + e.Name()
}
