// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package main

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/luxfi/treerpc/tree"
)

var (
	outputMode = tree.NewEnumType("OutputMode",
		tree.EnumMember{Name: "CV", Value: "constant voltage"},
		tree.EnumMember{Name: "CC", Value: "constant current"},
		tree.EnumMember{Name: "OFF"},
	)
	supplyStatus = tree.NewColouredEnumType("SupplyStatus",
		tree.EnumMember{Name: "OK", Value: "#2E7D32"},
		tree.EnumMember{Name: "LIMIT", Value: "#F9A825"},
		tree.EnumMember{Name: "FAULT", Value: "#C62828"},
	)
)

// newPowerSupply builds the simulated bench supply served by "serve".
func newPowerSupply() *tree.Object {
	started := time.Now()
	current := tree.NewNumberSlider(tree.Q(0.5, "A"), 0, 3, 0.01)

	channel := tree.NewObject("Channel").
		SetDoc("Analog front end of the output stage.").
		AddField("label", "CH1").
		AddField("gain", 1).
		AddField("offset", 0.0)

	root := tree.NewObject("PowerSupply").
		SetDoc("Simulated single channel bench power supply.")

	root.AddField("voltage", tree.Q(5, "V"), tree.WithDoc("Output voltage setpoint.")).
		AddField("current", current, tree.WithDoc("Current limit.")).
		AddField("mode", outputMode.Must("CV")).
		AddField("status", supplyStatus.Must("OK")).
		AddField("output", false).
		AddField("channel", channel).
		AddField("presets", tree.NewList(tree.Q(3.3, "V"), tree.Q(5, "V"), tree.Q(12, "V"))).
		AddProperty("temperature", func() (any, error) {
			t := time.Since(started).Seconds()
			return tree.Q(25+3*math.Sin(t/30), "degC"), nil
		}, nil, tree.WithUnit("degC"), tree.WithDoc("Heat sink temperature.")).
		AddProperty("power", func() (any, error) {
			return outputPower(root, current)
		}, nil, tree.WithUnit("W")).
		AddMethod(tree.MustMethod("configure", func(gain int, offset float64) (string, error) {
			if gain <= 0 {
				return "", fmt.Errorf("gain must be positive, got %d", gain)
			}
			if err := errors.Join(channel.Set("gain", gain), channel.Set("offset", offset)); err != nil {
				return "", err
			}
			return fmt.Sprintf("gain=%d offset=%g", gain, offset), nil
		}, "gain", "offset").WithDoc("Set the front end gain and offset.")).
		AddMethod(tree.MustMethod("reset", func() error {
			return errors.Join(
				root.Set("output", false),
				root.Set("voltage", tree.Q(0, "V")),
				current.Set("value", tree.Q(0, "A")),
				root.Set("mode", outputMode.Must("OFF")),
			)
		}).WithDoc("Disable the output and zero the setpoints."))

	return root
}

func outputPower(root *tree.Object, current *tree.NumberSlider) (any, error) {
	on, err := root.Get("output")
	if err != nil {
		return nil, err
	}
	if on != true {
		return tree.Q(0, "W"), nil
	}
	v, err := root.Get("voltage")
	if err != nil {
		return nil, err
	}
	volts, ok := v.(tree.Quantity)
	if !ok {
		return nil, fmt.Errorf("voltage is %T", v)
	}
	amps, ok := current.Value().(tree.Quantity)
	if !ok {
		return nil, fmt.Errorf("current is %T", current.Value())
	}
	return tree.Q(volts.Magnitude*amps.Magnitude, "W"), nil
}
