// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package tree

import "sync"

// StateManager owns a service root and the cached serialization of it.
//
// The cache is replaced copy-on-write on every change, so a Node returned by
// CacheValue is never mutated afterwards and may be read concurrently. It can
// lag the live tree while a change is being applied.
type StateManager struct {
	hub

	root *Object

	mu    sync.RWMutex
	cache Node
}

// NewStateManager serializes root once and keeps the cache current from
// root's change notifications.
func NewStateManager(root *Object) *StateManager {
	s := &StateManager{root: root, cache: Dump(root)}
	root.OnChange(s.update)
	return s
}

// Service returns the root object.
func (s *StateManager) Service() *Object { return s.root }

// CacheValue returns the current snapshot. Treat it as read-only.
func (s *StateManager) CacheValue() Node {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cache
}

// Refresh re-serializes the whole tree. This runs every property getter.
func (s *StateManager) Refresh() {
	n := Dump(s.root)
	s.mu.Lock()
	s.cache = n
	s.mu.Unlock()
}

func (s *StateManager) update(path string, value any) {
	segs, err := ParsePath(path)
	if err == nil {
		s.mu.Lock()
		next, ok := replaceAt(s.cache, segs, dump(value, path))
		if ok {
			s.cache = next
		}
		s.mu.Unlock()
		if !ok {
			s.Refresh()
		}
	}
	s.emit(path, value)
}

// replaceAt returns a copy of n with the node at segs replaced by leaf. Only
// maps and slices along the path are copied.
func replaceAt(n map[string]any, segs []Segment, leaf map[string]any) (map[string]any, bool) {
	if len(segs) == 0 {
		leaf["readonly"] = n["readonly"]
		if doc, ok := n["doc"]; ok && doc != nil {
			leaf["doc"] = doc
		}
		return leaf, true
	}

	out := make(map[string]any, len(n))
	for k, v := range n {
		out[k] = v
	}
	seg := segs[0]

	if seg.Kind == SegIndex {
		items, ok := n["value"].([]any)
		if !ok || seg.Index >= len(items) {
			return nil, false
		}
		child, ok := items[seg.Index].(map[string]any)
		if !ok {
			return nil, false
		}
		next, ok := replaceAt(child, segs[1:], leaf)
		if !ok {
			return nil, false
		}
		copied := append([]any(nil), items...)
		copied[seg.Index] = next
		out["value"] = copied
		return out, true
	}

	children, ok := n["value"].(map[string]any)
	if !ok {
		return nil, false
	}
	child, ok := children[seg.Name].(map[string]any)
	if !ok {
		return nil, false
	}
	next, ok := replaceAt(child, segs[1:], leaf)
	if !ok {
		return nil, false
	}
	copied := make(map[string]any, len(children))
	for k, v := range children {
		copied[k] = v
	}
	copied[seg.Name] = next
	out["value"] = copied
	return out, true
}
