// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package tree

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var ErrInvalidPath = errors.New("invalid path")

// SegmentKind identifies how a path segment addresses its container.
type SegmentKind uint8

const (
	SegName  SegmentKind = iota // attribute name: motor.speed
	SegIndex                    // list index: channels[2]
	SegKey                      // dict key: limits["upper"]
)

// Segment is one step of an attribute path.
type Segment struct {
	Kind  SegmentKind
	Name  string // attribute name or dict key
	Index int
}

// Name returns an attribute segment.
func Name(name string) Segment { return Segment{Kind: SegName, Name: name} }

// Index returns a list index segment.
func Index(i int) Segment { return Segment{Kind: SegIndex, Index: i} }

// Key returns a dict key segment.
func Key(key string) Segment { return Segment{Kind: SegKey, Name: key} }

func (s Segment) String() string {
	switch s.Kind {
	case SegIndex:
		return "[" + strconv.Itoa(s.Index) + "]"
	case SegKey:
		return `["` + s.Name + `"]`
	default:
		return s.Name
	}
}

// ParsePath splits a full access path such as `motor.limits["max"].value`
// into segments. The first segment is always an attribute name.
func ParsePath(path string) ([]Segment, error) {
	if path == "" {
		return nil, fmt.Errorf("%w: empty path", ErrInvalidPath)
	}

	var segs []Segment
	expectName := true
	for i := 0; i < len(path); {
		switch path[i] {
		case '.':
			if expectName {
				return nil, fmt.Errorf("%w: unexpected '.' at offset %d in %q", ErrInvalidPath, i, path)
			}
			expectName = true
			i++
		case '[':
			if expectName {
				return nil, fmt.Errorf("%w: unexpected '[' at offset %d in %q", ErrInvalidPath, i, path)
			}
			seg, n, err := parseBracket(path[i:])
			if err != nil {
				return nil, fmt.Errorf("%w: %q: %v", ErrInvalidPath, path, err)
			}
			segs = append(segs, seg)
			i += n
		case ']':
			return nil, fmt.Errorf("%w: unbalanced ']' at offset %d in %q", ErrInvalidPath, i, path)
		default:
			if !expectName {
				return nil, fmt.Errorf("%w: missing '.' at offset %d in %q", ErrInvalidPath, i, path)
			}
			j := i
			for j < len(path) && path[j] != '.' && path[j] != '[' && path[j] != ']' {
				j++
			}
			segs = append(segs, Name(path[i:j]))
			expectName = false
			i = j
		}
	}
	if expectName {
		return nil, fmt.Errorf("%w: trailing '.' in %q", ErrInvalidPath, path)
	}
	return segs, nil
}

// parseBracket parses `[3]`, `["key"]` or `['key']` at the start of s and
// returns the segment and the number of bytes consumed.
func parseBracket(s string) (Segment, int, error) {
	if len(s) > 1 && (s[1] == '"' || s[1] == '\'') {
		end := strings.Index(s[2:], string(s[1])+"]")
		if end < 0 {
			return Segment{}, 0, fmt.Errorf("unterminated key %s", s)
		}
		return Key(s[2 : 2+end]), end + 4, nil
	}
	end := strings.IndexByte(s, ']')
	if end < 0 {
		return Segment{}, 0, fmt.Errorf("unterminated index %s", s)
	}
	n, err := strconv.Atoi(s[1:end])
	if err != nil || n < 0 {
		return Segment{}, 0, fmt.Errorf("bad index %q", s[1:end])
	}
	return Index(n), end + 1, nil
}

// FormatPath is the inverse of ParsePath.
func FormatPath(segs []Segment) string {
	var b strings.Builder
	for i, s := range segs {
		if i > 0 && s.Kind == SegName {
			b.WriteByte('.')
		}
		b.WriteString(s.String())
	}
	return b.String()
}

// JoinPath appends seg to prefix.
func JoinPath(prefix string, seg Segment) string {
	if prefix == "" {
		return seg.String()
	}
	if seg.Kind == SegName {
		return prefix + "." + seg.Name
	}
	return prefix + seg.String()
}

// joinChild prefixes a path reported by a child node with the segment the
// parent stores it under.
func joinChild(seg Segment, rel string) string {
	head := seg.String()
	switch {
	case rel == "":
		return head
	case rel[0] == '[':
		return head + rel
	default:
		return head + "." + rel
	}
}
