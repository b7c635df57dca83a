// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package bridge

import (
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/luxfi/treerpc/tree"
)

var modeType = tree.NewEnumType("Mode",
	tree.EnumMember{Name: "A"},
	tree.EnumMember{Name: "B"},
	tree.EnumMember{Name: "C"},
)

var colourType = tree.NewColouredEnumType("Status",
	tree.EnumMember{Name: "OK", Value: "green"},
	tree.EnumMember{Name: "FAIL", Value: "red"},
)

var errDevice = errors.New("device offline")

type fixture struct {
	root  *tree.Object
	state *tree.StateManager

	channel  *tree.Object
	current  *tree.NumberSlider
	limit    tree.Quantity
	volts    tree.Quantity
	getCalls int
}

// newFixture builds a small instrument service. The "limit" property counts
// getter runs so tests can assert that writes never evaluate it. "volts" is a
// quantity property declared without a unit.
func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{limit: tree.Q(100, "mA"), volts: tree.Q(5, "V")}

	f.channel = tree.NewObject("Channel").
		AddField("gain", 2).
		AddMethod(tree.MustMethod("reset", func() string { return "reset" }))
	f.current = tree.NewNumberSlider(tree.Q(1, "A"), 0, 10, 0.1)

	f.root = tree.NewObject("Instrument").
		AddField("count", 3).
		AddField("gain", 1.5).
		AddField("enabled", true).
		AddField("label", "x").
		AddField("note", nil).
		AddField("mode", modeType.Must("A")).
		AddField("status", colourType.Must("OK")).
		AddField("voltage", tree.Q(5, "V")).
		AddProperty("limit",
			func() (any, error) { f.getCalls++; return f.limit, nil },
			func(v any) error { f.limit = v.(tree.Quantity); return nil },
			tree.WithUnit("mA")).
		AddProperty("volts",
			func() (any, error) { return f.volts, nil },
			func(v any) error { f.volts = v.(tree.Quantity); return nil }).
		AddProperty("serial", func() (any, error) { return "SN-1", nil }, nil).
		AddField("current", f.current).
		AddField("ratio", tree.NewNumberSlider(0.5, 0, 1, 0.01)).
		AddField("channel", f.channel).
		AddField("channels", tree.NewList(
			tree.NewObject("Channel").AddField("gain", 0),
			tree.NewObject("Channel").AddField("gain", 1),
		)).
		AddField("samples", tree.NewList(1.0, 2.0)).
		AddField("tags", tree.NewDict().Put("site", "lab")).
		AddMethod(tree.MustMethod("configure",
			func(gain int, offset float64) string { return fmt.Sprintf("gain=%d offset=%g", gain, offset) },
			"gain", "offset").WithDoc("Apply gain and offset.")).
		AddMethod(tree.MustMethod("echo", func(x any) any { return x }, "x")).
		AddMethod(tree.MustMethod("fail", func() error { return errDevice }))

	f.state = tree.NewStateManager(f.root)
	f.getCalls = 0
	return f
}

func (f *fixture) get(t *testing.T, name string) any {
	t.Helper()
	v, err := f.root.Get(name)
	if err != nil {
		t.Fatalf("get %s: %v", name, err)
	}
	return v
}

type observed struct {
	op  string
	err error
}

type recordingObserver struct {
	mu    sync.Mutex
	calls []observed
}

func (r *recordingObserver) ObserveCall(op string, _ time.Duration, err error) {
	r.mu.Lock()
	r.calls = append(r.calls, observed{op, err})
	r.mu.Unlock()
}
