// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package tree

import "strconv"

// Quantity is a magnitude paired with a unit, e.g. 5 V.
type Quantity struct {
	Magnitude float64
	Unit      string
}

// Q is shorthand for Quantity{m, unit}.
func Q(m float64, unit string) Quantity {
	return Quantity{Magnitude: m, Unit: unit}
}

func (q Quantity) String() string {
	s := strconv.FormatFloat(q.Magnitude, 'g', -1, 64)
	if q.Unit == "" {
		return s
	}
	return s + " " + q.Unit
}
