// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package tree

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type change struct {
	path  string
	value any
}

func record(n interface{ OnChange(ChangeFunc) }) *[]change {
	var got []change
	n.OnChange(func(path string, value any) {
		got = append(got, change{path, value})
	})
	return &got
}

func TestObjectFieldsAndProperties(t *testing.T) {
	var stored float64
	getterCalls := 0
	o := NewObject("Supply").
		AddField("label", "ch1", WithDoc("channel label")).
		AddProperty("setpoint",
			func() (any, error) { getterCalls++; return stored, nil },
			func(v any) error { stored = v.(float64); return nil }).
		AddProperty("serial", func() (any, error) { return "SN1", nil }, nil)

	assert.Equal(t, []string{"label", "setpoint", "serial"}, o.Names())

	v, err := o.Get("label")
	require.NoError(t, err)
	assert.Equal(t, "ch1", v)

	require.NoError(t, o.Set("setpoint", 2.5))
	assert.Equal(t, 2.5, stored)
	assert.Zero(t, getterCalls, "setting a property must not run its getter")

	assert.ErrorIs(t, o.Set("serial", "x"), ErrReadOnly)
	assert.True(t, o.Readonly("serial"))
	assert.False(t, o.Readonly("label"))

	_, err = o.Get("missing")
	assert.ErrorIs(t, err, ErrNoAttribute)
}

func TestObjectSetterError(t *testing.T) {
	boom := errors.New("device offline")
	o := NewObject("Dev").AddProperty("x", func() (any, error) { return 0, nil }, func(any) error { return boom })
	changes := record(o)

	assert.ErrorIs(t, o.Set("x", 1), boom)
	assert.Empty(t, *changes)
}

func TestObjectChangesBubbleUp(t *testing.T) {
	channel := NewObject("Channel").AddField("gain", 1)
	slider := NewNumberSlider(Q(1, "A"), 0, 10, 0.1)
	channels := NewList(NewObject("Channel").AddField("gain", 0))
	root := NewObject("Supply").
		AddField("channel", channel).
		AddField("current", slider).
		AddField("channels", channels)
	changes := record(root)

	require.NoError(t, channel.Set("gain", 4))
	require.NoError(t, slider.Set("value", Q(2, "A")))
	item, err := channels.Child(Index(0))
	require.NoError(t, err)
	require.NoError(t, item.(*Object).Set("gain", 7))

	assert.Equal(t, []change{
		{"channel.gain", 4},
		{"current.value", Q(2, "A")},
		{"channels[0].gain", 7},
	}, *changes)
}

func TestReplacedChildStopsNotifying(t *testing.T) {
	old := NewObject("Channel").AddField("gain", 1)
	root := NewObject("Supply").AddField("channel", old)
	changes := record(root)

	require.NoError(t, root.Set("channel", NewObject("Channel").AddField("gain", 2)))
	require.NoError(t, old.Set("gain", 9))

	require.Len(t, *changes, 1)
	assert.Equal(t, "channel", (*changes)[0].path)
}

func TestReassignedChildNotifiesOnce(t *testing.T) {
	channel := NewObject("Channel").AddField("gain", 1)
	sensor := NewObject("Sensor").AddField("gain", 1)
	channels := NewList(sensor)
	tags := NewDict().Put("ch", channel)
	root := NewObject("Supply").
		AddField("channel", channel).
		AddField("channels", channels).
		AddField("tags", tags)

	require.NoError(t, root.Set("channel", channel))
	require.NoError(t, channels.SetChild(Index(0), sensor))
	tags.Put("ch", channel)
	changes := record(root)

	require.NoError(t, channel.Set("gain", 2))
	require.NoError(t, sensor.Set("gain", 3))

	assert.Equal(t, []change{
		{`tags["ch"].gain`, 2},
		{"channel.gain", 2},
		{"channels[0].gain", 3},
	}, *changes)
}

func TestInspectDoesNotRunGetter(t *testing.T) {
	mode := NewEnumType("Mode", EnumMember{Name: "A"}, EnumMember{Name: "B"})
	o := NewObject("Dev").
		AddField("voltage", Q(5, "V")).
		AddField("mode", mode.Must("B")).
		AddProperty("temperature", func() (any, error) {
			t.Fatal("getter must not run")
			return nil, nil
		}, func(any) error { return nil }, WithUnit("degC"))

	m, err := o.Inspect(Name("voltage"))
	require.NoError(t, err)
	assert.Equal(t, "V", m.Unit)

	m, err = o.Inspect(Name("mode"))
	require.NoError(t, err)
	assert.Same(t, mode, m.Enum)

	m, err = o.Inspect(Name("temperature"))
	require.NoError(t, err)
	assert.Equal(t, "degC", m.Unit)
	assert.True(t, o.HasChild(Name("temperature")))
}

func TestContainers(t *testing.T) {
	l := NewList(1, 2)
	d := NewDict().Put("upper", Q(3, "V"))

	_, err := l.Child(Index(5))
	assert.ErrorIs(t, err, ErrNoAttribute)
	_, err = l.Child(Name("x"))
	assert.ErrorIs(t, err, ErrSegmentKind)
	require.NoError(t, l.SetChild(Index(1), 5))
	assert.Equal(t, []any{1, 5}, l.Items())

	m, err := d.Inspect(Key("upper"))
	require.NoError(t, err)
	assert.Equal(t, "V", m.Unit)
	assert.ErrorIs(t, d.SetChild(Key("lower"), 1), ErrNoAttribute)
	assert.False(t, d.HasChild(Name("upper")))
}

func TestEnumType(t *testing.T) {
	mode := NewColouredEnumType("Status",
		EnumMember{Name: "OK", Value: "green"},
		EnumMember{Name: "FAIL", Value: "red"},
		EnumMember{Name: "IDLE"})

	e, err := mode.At(1)
	require.NoError(t, err)
	assert.Equal(t, "FAIL", e.Name())
	assert.Equal(t, "red", e.WireValue())
	assert.Equal(t, "IDLE", mode.Must("IDLE").WireValue())
	assert.Equal(t, "Status.OK", mode.Must("OK").String())

	_, err = mode.At(3)
	assert.ErrorIs(t, err, ErrEnumRange)
	assert.Panics(t, func() { NewEnumType("Dup", EnumMember{Name: "A"}, EnumMember{Name: "A"}) })
}
