// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package tree

// NumberSlider bundles a numeric value, optionally a Quantity, with the
// range metadata a slider widget needs. Its value lives in the "value" field.
type NumberSlider struct {
	*Object
}

// NewNumberSlider returns a slider holding value, a number or a Quantity.
func NewNumberSlider(value any, min, max, step float64) *NumberSlider {
	o := NewObject(TypeNumberSlider)
	o.kind = TypeNumberSlider
	o.AddField("value", value).
		AddField("min", min).
		AddField("max", max).
		AddField("step_size", step)
	return &NumberSlider{Object: o}
}

// Value reads the stored value field directly.
func (s *NumberSlider) Value() any {
	v, _ := s.fieldValue("value")()
	return v
}
