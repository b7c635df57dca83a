// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package bridge

import (
	"regexp"

	"github.com/luxfi/treerpc/tree"
)

var quotedName = regexp.MustCompile(`'([^']*)'`)

// ExtractTypeName returns the first single-quoted substring of a verbose type
// annotation:
//
//	ExtractTypeName("<class 'int'>") // "int", true
//
// Annotations without quotes have no type name.
func ExtractTypeName(annotation string) (string, bool) {
	m := quotedName.FindStringSubmatch(annotation)
	if m == nil {
		return "", false
	}
	return m[1], true
}

// EnrichMethods adds a "parameters" map (name -> bare type name, or nil) to
// every method node inside doc, in place, and returns doc.
func EnrichMethods(doc tree.Node) tree.Node {
	enrich(map[string]any(doc))
	return doc
}

func enrich(v any) {
	switch x := v.(type) {
	case map[string]any:
		if x["type"] == tree.TypeMethod {
			x["parameters"] = methodParameters(x)
		}
		for k, child := range x {
			if k != "signature" {
				enrich(child)
			}
		}
	case []any:
		for _, child := range x {
			enrich(child)
		}
	}
}

func methodParameters(method map[string]any) map[string]any {
	out := map[string]any{}
	sig, _ := method["signature"].(map[string]any)
	params, _ := sig["parameters"].(map[string]any)
	for name, p := range params {
		spec, _ := p.(map[string]any)
		annotation, _ := spec["annotation"].(string)
		if typ, ok := ExtractTypeName(annotation); ok {
			out[name] = typ
		} else {
			out[name] = nil
		}
	}
	return out
}
