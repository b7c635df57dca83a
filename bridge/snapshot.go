// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package bridge

import (
	"fmt"

	"github.com/ohler55/ojg/jp"

	"github.com/luxfi/treerpc/tree"
)

// LookupNode returns the serialized node for path inside snapshot. The live
// tree is never consulted, so this is the side-effect free way to learn the
// declared type of a target.
func LookupNode(snapshot tree.Node, path string) (tree.Node, error) {
	segs, err := tree.ParsePath(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPathNotFound, err)
	}
	for _, r := range snapshotExpr(segs).Get(map[string]any(snapshot)) {
		if n, ok := tree.AsNode(r); ok {
			return n, nil
		}
	}
	return nil, fmt.Errorf("%w: %s not in cached state", ErrPathNotFound, path)
}

// snapshotExpr builds $.value.<seg>.value.<seg>... for segs.
func snapshotExpr(segs []tree.Segment) jp.Expr {
	x := jp.R()
	for _, seg := range segs {
		x = x.C("value")
		if seg.Kind == tree.SegIndex {
			x = x.N(seg.Index)
		} else {
			x = x.C(seg.Name)
		}
	}
	return x
}
