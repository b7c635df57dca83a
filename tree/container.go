// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package tree

import (
	"fmt"
	"sync"
)

// List is an observed, index-addressed container.
type List struct {
	hub

	mu    sync.RWMutex
	items []any
}

func NewList(items ...any) *List {
	l := &List{items: append([]any(nil), items...)}
	for i, v := range l.items {
		l.link(Index(i), v, l.itemAt(i))
	}
	return l
}

func (l *List) itemAt(i int) func() (any, bool) {
	return func() (any, bool) {
		l.mu.RLock()
		defer l.mu.RUnlock()
		if i >= len(l.items) {
			return nil, false
		}
		return l.items[i], true
	}
}

func (l *List) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.items)
}

// Items returns a copy of the elements.
func (l *List) Items() []any {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return append([]any(nil), l.items...)
}

// Append adds v and notifies observers with the new element's path.
func (l *List) Append(v any) {
	l.mu.Lock()
	i := len(l.items)
	l.items = append(l.items, v)
	l.mu.Unlock()
	l.link(Index(i), v, l.itemAt(i))
	l.emit(Index(i).String(), v)
}

func (l *List) index(seg Segment) (int, error) {
	if seg.Kind != SegIndex {
		return 0, fmt.Errorf("%w: %s on list", ErrSegmentKind, seg)
	}
	if seg.Index >= l.Len() {
		return 0, fmt.Errorf("%w: index %d out of range", ErrNoAttribute, seg.Index)
	}
	return seg.Index, nil
}

// Child implements Container.
func (l *List) Child(seg Segment) (any, error) {
	i, err := l.index(seg)
	if err != nil {
		return nil, err
	}
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.items[i], nil
}

// HasChild implements Container.
func (l *List) HasChild(seg Segment) bool {
	_, err := l.index(seg)
	return err == nil
}

// SetChild implements Container.
func (l *List) SetChild(seg Segment, value any) error {
	i, err := l.index(seg)
	if err != nil {
		return err
	}
	l.mu.Lock()
	prev := l.items[i]
	l.items[i] = value
	l.mu.Unlock()
	if !sameNode(prev, value) {
		l.link(seg, value, l.itemAt(i))
	}
	l.emit(seg.String(), value)
	return nil
}

// Inspect implements Inspector.
func (l *List) Inspect(seg Segment) (Meta, error) {
	v, err := l.Child(seg)
	if err != nil {
		return Meta{}, err
	}
	return metaOf(v), nil
}

// Dict is an observed, string-keyed container that keeps insertion order.
type Dict struct {
	hub

	mu    sync.RWMutex
	items map[string]any
	keys  []string
}

func NewDict() *Dict {
	return &Dict{items: make(map[string]any)}
}

func (d *Dict) itemAt(key string) func() (any, bool) {
	return func() (any, bool) {
		d.mu.RLock()
		defer d.mu.RUnlock()
		v, ok := d.items[key]
		return v, ok
	}
}

// Put stores v under key, adding the key if needed, and notifies observers.
func (d *Dict) Put(key string, v any) *Dict {
	d.mu.Lock()
	prev, ok := d.items[key]
	if !ok {
		d.keys = append(d.keys, key)
	}
	d.items[key] = v
	d.mu.Unlock()
	if !ok || !sameNode(prev, v) {
		d.link(Key(key), v, d.itemAt(key))
	}
	d.emit(Key(key).String(), v)
	return d
}

// Keys returns keys in insertion order.
func (d *Dict) Keys() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return append([]string(nil), d.keys...)
}

func (d *Dict) get(seg Segment) (any, error) {
	if seg.Kind != SegKey {
		return nil, fmt.Errorf("%w: %s on dict", ErrSegmentKind, seg)
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	v, ok := d.items[seg.Name]
	if !ok {
		return nil, fmt.Errorf("%w: key %q", ErrNoAttribute, seg.Name)
	}
	return v, nil
}

// Child implements Container.
func (d *Dict) Child(seg Segment) (any, error) { return d.get(seg) }

// HasChild implements Container.
func (d *Dict) HasChild(seg Segment) bool {
	_, err := d.get(seg)
	return err == nil
}

// SetChild implements Container. Only existing keys can be assigned.
func (d *Dict) SetChild(seg Segment, value any) error {
	if _, err := d.get(seg); err != nil {
		return err
	}
	d.Put(seg.Name, value)
	return nil
}

// Inspect implements Inspector.
func (d *Dict) Inspect(seg Segment) (Meta, error) {
	v, err := d.get(seg)
	if err != nil {
		return Meta{}, err
	}
	return metaOf(v), nil
}
