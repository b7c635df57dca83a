// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package tree

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func child(t *testing.T, n Node, name string) Node {
	t.Helper()
	children, ok := n.Value().(map[string]any)
	require.True(t, ok, "node %s has no children", n.FullAccessPath())
	c, ok := AsNode(children[name])
	require.True(t, ok, "missing child %s", name)
	return c
}

func TestDump(t *testing.T) {
	mode := NewEnumType("Mode", EnumMember{Name: "CV", Value: "constant voltage"}, EnumMember{Name: "CC", Value: "constant current"})
	root := NewObject("Supply").SetDoc("bench supply").
		AddField("voltage", Q(5, "V"), WithDoc("output voltage")).
		AddField("mode", mode.Must("CC")).
		AddField("current", NewNumberSlider(Q(1.5, "A"), 0, 3, 0.1)).
		AddField("channels", NewList(NewObject("Channel").AddField("gain", 2))).
		AddProperty("broken", func() (any, error) { return nil, errors.New("no device") }, nil).
		AddMethod(MustMethod("configure", func(int, float64) {}, "gain", "offset"))

	n := Dump(root)
	assert.Equal(t, TypeDataService, n.Type())
	assert.Equal(t, "Supply", n["name"])
	assert.Equal(t, "bench supply", n.Doc())

	voltage := child(t, n, "voltage")
	assert.Equal(t, TypeQuantity, voltage.Type())
	assert.Equal(t, map[string]any{"magnitude": 5.0, "unit": "V"}, voltage.Value())
	assert.Equal(t, "output voltage", voltage.Doc())
	assert.Equal(t, "voltage", voltage.FullAccessPath())

	m := child(t, n, "mode")
	assert.Equal(t, TypeEnum, m.Type())
	assert.Equal(t, "CC", m.Value())
	assert.Equal(t, map[string]any{"CV": "constant voltage", "CC": "constant current"}, m["enum"])

	current := child(t, n, "current")
	assert.Equal(t, TypeNumberSlider, current.Type())
	inner := child(t, current, "value")
	assert.Equal(t, TypeQuantity, inner.Type())
	assert.Equal(t, "current.value", inner.FullAccessPath())

	channels := child(t, n, "channels")
	items := channels.Value().([]any)
	require.Len(t, items, 1)
	gain := child(t, Node(items[0].(map[string]any)), "gain")
	assert.Equal(t, "channels[0].gain", gain.FullAccessPath())
	assert.Equal(t, TypeInt, gain.Type())

	broken := child(t, n, "broken")
	assert.Equal(t, TypeException, broken.Type())
	assert.True(t, broken.Readonly())

	method := child(t, n, "configure")
	assert.Equal(t, TypeMethod, method.Type())
	params := method["signature"].(map[string]any)["parameters"].(map[string]any)
	assert.Equal(t, "<class 'int'>", params["gain"].(map[string]any)["annotation"])
}

func TestStateManagerTracksChanges(t *testing.T) {
	slider := NewNumberSlider(Q(1, "A"), 0, 3, 0.1)
	root := NewObject("Supply").
		AddField("voltage", Q(5, "V"), WithDoc("output voltage")).
		AddField("current", slider).
		AddField("channels", NewList(1, 2))
	s := NewStateManager(root)
	before := s.CacheValue()
	changes := record(s)

	require.NoError(t, root.Set("voltage", Q(7, "V")))
	require.NoError(t, slider.Set("value", Q(2, "A")))
	channels, err := root.Get("channels")
	require.NoError(t, err)
	require.NoError(t, channels.(*List).SetChild(Index(1), 9))

	after := s.CacheValue()
	voltage := child(t, after, "voltage")
	assert.Equal(t, 7.0, voltage.Value().(map[string]any)["magnitude"])
	assert.Equal(t, "output voltage", voltage.Doc(), "metadata survives updates")
	assert.Equal(t, 2.0, child(t, child(t, after, "current"), "value").Value().(map[string]any)["magnitude"])
	assert.Equal(t, 9, child(t, after, "channels").Value().([]any)[1].(map[string]any)["value"])

	assert.Equal(t, 5.0, child(t, before, "voltage").Value().(map[string]any)["magnitude"], "old snapshots are not mutated")
	assert.Len(t, *changes, 3)
}
