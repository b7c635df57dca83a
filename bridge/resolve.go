// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package bridge

import (
	"errors"
	"fmt"

	"github.com/luxfi/treerpc/tree"
)

// Resolve returns the value addressed by path below root. Property getters
// along the way, including the last segment, are evaluated.
func Resolve(root tree.Container, path string) (any, error) {
	segs, err := tree.ParsePath(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPathNotFound, err)
	}
	return walk(root, segs)
}

// ResolveParent returns the container holding the last segment of path and
// that segment, unevaluated. Only the prefix is walked, so a getter behind
// the leaf never runs.
func ResolveParent(root tree.Container, path string) (tree.Container, tree.Segment, error) {
	segs, err := tree.ParsePath(path)
	if err != nil {
		return nil, tree.Segment{}, fmt.Errorf("%w: %v", ErrPathNotFound, err)
	}
	prefix, leaf := segs[:len(segs)-1], segs[len(segs)-1]

	v, err := walk(root, prefix)
	if err != nil {
		return nil, tree.Segment{}, err
	}
	parent, ok := v.(tree.Container)
	if !ok {
		return nil, tree.Segment{}, fmt.Errorf("%w: %s is not traversable", ErrPathNotFound, tree.FormatPath(prefix))
	}
	if !parent.HasChild(leaf) {
		return nil, tree.Segment{}, fmt.Errorf("%w: no %s in %s", ErrPathNotFound, leaf, describe(prefix))
	}
	return parent, leaf, nil
}

func walk(root tree.Container, segs []tree.Segment) (any, error) {
	var cur any = root
	for i, seg := range segs {
		c, ok := cur.(tree.Container)
		if !ok {
			return nil, fmt.Errorf("%w: %s is not traversable", ErrPathNotFound, tree.FormatPath(segs[:i]))
		}
		next, err := c.Child(seg)
		if errors.Is(err, tree.ErrNoAttribute) || errors.Is(err, tree.ErrSegmentKind) {
			return nil, fmt.Errorf("%w: %v", ErrPathNotFound, err)
		}
		if err != nil {
			return nil, err
		}
		cur = next
	}
	return cur, nil
}

func describe(prefix []tree.Segment) string {
	if len(prefix) == 0 {
		return "root"
	}
	return tree.FormatPath(prefix)
}
